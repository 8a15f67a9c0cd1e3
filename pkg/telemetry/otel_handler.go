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

package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// OTelHandler bridges stop/exception events into OpenTelemetry spans.
// Each event becomes a span backdated by its measured duration, so
// traces reflect the same monotonic timings the text logger reports.
type OTelHandler struct {
	tracer trace.Tracer
}

// NewOTelHandler creates a handler using the given tracer. Passing nil
// uses the global tracer provider.
func NewOTelHandler(tracer trace.Tracer) *OTelHandler {
	if tracer == nil {
		tracer = otel.Tracer(Namespace)
	}
	return &OTelHandler{tracer: tracer}
}

func (h *OTelHandler) Handle(ctx context.Context, event Event) {
	if event.Phase == PhaseStart {
		return
	}

	started := event.Time.Add(-event.Duration)
	_, span := h.tracer.Start(ctx, Namespace+"."+event.Name,
		trace.WithTimestamp(started),
		trace.WithSpanKind(trace.SpanKindInternal))

	for key, value := range event.Metadata {
		span.SetAttributes(attribute.String(key, fmt.Sprint(value)))
	}

	if event.Phase == PhaseException {
		span.RecordError(event.Err)
		span.SetStatus(codes.Error, event.Err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.End(trace.WithTimestamp(event.Time))
}

// SetupTracing installs an SDK tracer provider with a stdout exporter
// and returns a shutdown function. Intended for development use; in
// production the host process installs its own provider.
func SetupTracing() (func(context.Context) error, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	provider := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(provider)

	return provider.Shutdown, nil
}
