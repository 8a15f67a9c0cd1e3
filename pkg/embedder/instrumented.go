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

package embedder

import (
	"context"

	"github.com/kadirpekel/portfolio/pkg/ratelimit"
	"github.com/kadirpekel/portfolio/pkg/telemetry"
)

// Instrumented wraps an embedder with rate limiting and telemetry.
// Unlike the LLM wrapper it never blocks on the limiter: a denied check
// surfaces as ErrRateLimited so callers (the ingestion workers) can
// re-enqueue instead of stalling a worker.
type Instrumented struct {
	inner   Embedder
	limiter *ratelimit.Limiter
}

// Instrument wraps an embedder. A nil limiter uses the process default.
func Instrument(inner Embedder, limiter *ratelimit.Limiter) *Instrumented {
	return &Instrumented{inner: inner, limiter: limiter}
}

func (e *Instrumented) Embed(ctx context.Context, text string, opts Options) (*Embedding, error) {
	if err := e.allow(); err != nil {
		return nil, err
	}

	metadata := map[string]any{
		"model":       e.model(opts),
		"provider":    e.inner.Provider(),
		"text_length": len(text),
	}

	var embedding *Embedding
	err := telemetry.Span(ctx, telemetry.EventEmbedderEmbed, metadata, func(ctx context.Context) error {
		var err error
		embedding, err = e.inner.Embed(ctx, text, opts)
		if err != nil {
			return err
		}
		metadata["dimensions"] = embedding.Dimensions
		metadata["token_count"] = embedding.TokenCount
		return nil
	})
	if err != nil {
		return nil, err
	}
	return embedding, nil
}

func (e *Instrumented) EmbedBatch(ctx context.Context, texts []string, opts Options) (*BatchResult, error) {
	if err := e.allow(); err != nil {
		return nil, err
	}

	metadata := map[string]any{
		"model":    e.model(opts),
		"provider": e.inner.Provider(),
		"count":    len(texts),
	}

	var result *BatchResult
	err := telemetry.Span(ctx, telemetry.EventEmbedderEmbed, metadata, func(ctx context.Context) error {
		var err error
		result, err = e.inner.EmbedBatch(ctx, texts, opts)
		if err != nil {
			return err
		}
		metadata["token_count"] = result.TotalTokens
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (e *Instrumented) allow() error {
	limiter := e.limiter
	if limiter == nil {
		limiter = ratelimit.Default()
	}
	if decision := limiter.Allow(e.inner.Provider(), ratelimit.OpEmbedding); !decision.OK {
		return ratelimit.BackoffError(e.inner.Provider(), ratelimit.OpEmbedding, decision.Backoff)
	}
	return nil
}

func (e *Instrumented) model(opts Options) string {
	if opts.Model != "" {
		return opts.Model
	}
	return e.inner.Model()
}

func (e *Instrumented) Dimensions(model string) int { return e.inner.Dimensions(model) }
func (e *Instrumented) SupportedModels() []string   { return e.inner.SupportedModels() }
func (e *Instrumented) Model() string               { return e.inner.Model() }
func (e *Instrumented) Provider() string            { return e.inner.Provider() }
func (e *Instrumented) Close() error                { return e.inner.Close() }

var _ Embedder = (*Instrumented)(nil)
