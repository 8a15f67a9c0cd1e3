// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package telemetry emits start/stop/exception event triples for the
// engine's subsystems under the "portfolio" namespace.
//
// Every instrumented operation is wrapped in a Span, which measures a
// monotonic duration and fans the resulting events out to the registered
// handlers. Handlers format events (text, JSON), bridge them to
// OpenTelemetry spans, or export Prometheus metrics.
package telemetry

import (
	"context"
	"sync"
	"time"
)

// Namespace prefixes every event name.
const Namespace = "portfolio"

// Phase identifies the stage of a span event.
type Phase string

const (
	PhaseStart     Phase = "start"
	PhaseStop      Phase = "stop"
	PhaseException Phase = "exception"
)

// Well-known event names. Handlers may rely on these.
const (
	EventEmbedderEmbed     = "embedder.embed"
	EventLLMComplete       = "llm.complete"
	EventVectorSearch      = "vector_store.search"
	EventVectorInsert      = "vector_store.insert"
	EventVectorInsertBatch = "vector_store.insert_batch"
	EventRAGRewrite        = "rag.rewrite"
	EventRAGExpand         = "rag.expand"
	EventRAGDecompose      = "rag.decompose"
	EventRAGSearch         = "rag.search"
	EventRAGRerank         = "rag.rerank"
	EventRAGSelfCorrect    = "rag.self_correct"
	EventGraphExtract      = "graph.extract"
	EventGraphDetect       = "graph.detect"
	EventGraphSummarize    = "graph.summarize"
	EventIngestFile        = "ingest.file"
	EventIngestRateLimited = "ingest.rate_limited"
	EventIngestFlush       = "ingest.flush"
	EventMaintenance       = "maintenance.progress"
)

// Event is a single telemetry emission.
type Event struct {
	// Name is the operation name without the namespace, e.g. "llm.complete".
	Name string

	// Phase is start, stop, or exception.
	Phase Phase

	// Duration is the elapsed monotonic time. Zero for start events.
	Duration time.Duration

	// Metadata carries operation-specific attributes.
	Metadata map[string]any

	// Err is set on exception events.
	Err error

	// Time is the wall-clock emission time.
	Time time.Time
}

// Handler consumes telemetry events. Implementations must be safe for
// concurrent use.
type Handler interface {
	Handle(ctx context.Context, event Event)
}

var (
	handlersMu sync.RWMutex
	handlers   []Handler
)

// RegisterHandler attaches a handler to the process-wide dispatcher.
func RegisterHandler(h Handler) {
	if h == nil {
		return
	}
	handlersMu.Lock()
	defer handlersMu.Unlock()
	handlers = append(handlers, h)
}

// ResetHandlers removes all registered handlers (for tests).
func ResetHandlers() {
	handlersMu.Lock()
	defer handlersMu.Unlock()
	handlers = nil
}

// Emit dispatches an event to every registered handler.
func Emit(ctx context.Context, event Event) {
	if event.Time.IsZero() {
		event.Time = time.Now()
	}

	handlersMu.RLock()
	defer handlersMu.RUnlock()
	for _, h := range handlers {
		h.Handle(ctx, event)
	}
}

// Span wraps fn in a start/stop pair, or start/exception if fn returns
// an error. The metadata map is shared across the pair; fn may add keys
// to it (result counts and the like) before returning.
func Span(ctx context.Context, name string, metadata map[string]any, fn func(ctx context.Context) error) error {
	if metadata == nil {
		metadata = make(map[string]any)
	}

	Emit(ctx, Event{Name: name, Phase: PhaseStart, Metadata: metadata})

	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)

	if err != nil {
		Emit(ctx, Event{Name: name, Phase: PhaseException, Duration: elapsed, Metadata: metadata, Err: err})
		return err
	}

	Emit(ctx, Event{Name: name, Phase: PhaseStop, Duration: elapsed, Metadata: metadata})
	return nil
}

// Count emits a standalone stop event with no duration, used for
// counter-style signals such as rag.self_correct.
func Count(ctx context.Context, name string, metadata map[string]any) {
	Emit(ctx, Event{Name: name, Phase: PhaseStop, Metadata: metadata})
}
