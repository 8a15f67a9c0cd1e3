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

package llm

import (
	"context"
	"time"

	"github.com/kadirpekel/portfolio/pkg/ratelimit"
	"github.com/kadirpekel/portfolio/pkg/telemetry"
)

// maxRateLimitWait caps how long an instrumented call blocks on the
// rate limiter before surfacing the backoff to the caller.
const maxRateLimitWait = 30 * time.Second

// Instrumented wraps a provider with rate limiting and telemetry.
// Every Complete call consults the process-wide limiter and emits an
// llm.complete span carrying model, prompt, and usage metadata.
type Instrumented struct {
	inner   Provider
	limiter *ratelimit.Limiter
}

// Instrument wraps a provider. A nil limiter uses the process default.
func Instrument(inner Provider, limiter *ratelimit.Limiter) *Instrumented {
	return &Instrumented{inner: inner, limiter: limiter}
}

func (p *Instrumented) Complete(ctx context.Context, messages []Message, opts Options) (*Completion, error) {
	limiter := p.limiter
	if limiter == nil {
		limiter = ratelimit.Default()
	}

	if decision := limiter.Wait(p.inner.Provider(), ratelimit.OpCompletion, maxRateLimitWait); !decision.OK {
		return nil, ratelimit.BackoffError(p.inner.Provider(), ratelimit.OpCompletion, decision.Backoff)
	}

	metadata := map[string]any{
		"model":         p.inner.Model(),
		"provider":      p.inner.Provider(),
		"prompt_length": PromptLength(messages),
	}

	var completion *Completion
	err := telemetry.Span(ctx, telemetry.EventLLMComplete, metadata, func(ctx context.Context) error {
		var err error
		completion, err = p.inner.Complete(ctx, messages, opts)
		if err != nil {
			return err
		}
		metadata["response_length"] = len(completion.Content)
		metadata["input_tokens"] = completion.Usage.InputTokens
		metadata["output_tokens"] = completion.Usage.OutputTokens
		return nil
	})
	if err != nil {
		return nil, err
	}
	return completion, nil
}

func (p *Instrumented) Stream(ctx context.Context, messages []Message, opts Options) (<-chan StreamChunk, error) {
	limiter := p.limiter
	if limiter == nil {
		limiter = ratelimit.Default()
	}

	if decision := limiter.Wait(p.inner.Provider(), ratelimit.OpCompletion, maxRateLimitWait); !decision.OK {
		return nil, ratelimit.BackoffError(p.inner.Provider(), ratelimit.OpCompletion, decision.Backoff)
	}

	return p.inner.Stream(ctx, messages, opts)
}

func (p *Instrumented) Model() string    { return p.inner.Model() }
func (p *Instrumented) Provider() string { return p.inner.Provider() }
func (p *Instrumented) Close() error     { return p.inner.Close() }

var _ Provider = (*Instrumented)(nil)
