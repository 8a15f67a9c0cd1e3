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

package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/kadirpekel/portfolio/pkg/llm"
	"github.com/kadirpekel/portfolio/pkg/logger"
	"github.com/kadirpekel/portfolio/pkg/registry"
	"github.com/kadirpekel/portfolio/pkg/telemetry"
)

func init() {
	registry.RegisterCompileTimeDefault(registry.CapReranker, Passthrough{})
}

// RerankOptions tunes one rerank call.
type RerankOptions struct {
	// TopN keeps at most n results after sorting. Zero keeps all.
	TopN int `mapstructure:"top_n"`

	// Threshold drops results with a rerank score below it.
	Threshold float32 `mapstructure:"threshold"`
}

// Reranker reorders and filters retrieval candidates.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []Result, opts RerankOptions) ([]Result, error)
	ModelName() string
}

// Passthrough is the identity reranker.
type Passthrough struct{}

func (Passthrough) Rerank(ctx context.Context, query string, candidates []Result, opts RerankOptions) ([]Result, error) {
	out := make([]Result, len(candidates))
	copy(out, candidates)
	if opts.TopN > 0 && len(out) > opts.TopN {
		out = out[:opts.TopN]
	}
	return out, nil
}

func (Passthrough) ModelName() string { return "passthrough" }

const rerankPrompt = `Score each document below for relevance to the query on a scale of
1 to 10. Respond with a JSON array of the form
[{"index": 0, "score": 7}, ...] covering every document, and nothing
else.`

// LLMReranker scores candidates with a completion model. A call or
// parse failure keeps the original ordering.
type LLMReranker struct {
	llm llm.Provider
}

// NewLLMReranker creates an LLM-backed reranker.
func NewLLMReranker(provider llm.Provider) (*LLMReranker, error) {
	if provider == nil {
		return nil, fmt.Errorf("LLM provider is required")
	}
	return &LLMReranker{llm: provider}, nil
}

func (r *LLMReranker) ModelName() string { return r.llm.Model() }

func (r *LLMReranker) Rerank(ctx context.Context, query string, candidates []Result, opts RerankOptions) ([]Result, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	out := make([]Result, len(candidates))
	copy(out, candidates)

	metadata := map[string]any{"model": r.llm.Model(), "candidates": len(candidates)}
	err := telemetry.Span(ctx, telemetry.EventRAGRerank, metadata, func(ctx context.Context) error {
		completion, err := r.llm.Complete(ctx, []llm.Message{
			llm.System(rerankPrompt),
			llm.User(rerankInput(query, candidates)),
		}, llm.Options{})
		if err != nil {
			return err
		}

		var scored []struct {
			Index int     `json:"index"`
			Score float32 `json:"score"`
		}
		if err := extractJSON(completion.Content, &scored); err != nil {
			return err
		}

		for _, s := range scored {
			if s.Index < 0 || s.Index >= len(out) {
				continue
			}
			out[s.Index].RerankScore = s.Score / 10
		}
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].RerankScore > out[j].RerankScore
		})
		if opts.Threshold > 0 {
			kept := out[:0]
			for _, hit := range out {
				if hit.RerankScore >= opts.Threshold {
					kept = append(kept, hit)
				}
			}
			out = kept
		}
		metadata["kept"] = len(out)
		return nil
	})
	if err != nil {
		// Advisory: a failed rerank keeps the retrieval ordering.
		logger.GetLogger().Warn("rerank failed, keeping original order", "error", err)
		telemetry.Count(ctx, telemetry.EventRAGRerank, map[string]any{"kept": "original"})
		out = make([]Result, len(candidates))
		copy(out, candidates)
	}

	if opts.TopN > 0 && len(out) > opts.TopN {
		out = out[:opts.TopN]
	}
	return out, nil
}

func rerankInput(query string, candidates []Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Query: %s\n\n", query)
	for i, hit := range candidates {
		fmt.Fprintf(&b, "[%d] %s\n", i, hit.Content)
	}
	return b.String()
}

// RerankStage wraps a reranker as an advisory pipeline stage, storing
// scores on the Context. A nil reranker is resolved per call through
// the Context's adapter layer, so callers can override the reranker
// with Adapters.With; without an override the process default or the
// compile-time Passthrough applies.
func RerankStage(reranker Reranker, opts RerankOptions) Stage {
	return func(ctx context.Context, pc Context) Context {
		active := reranker
		if active == nil {
			resolved, err := registry.Resolve[Reranker](registry.CapReranker, pc.Adapters)
			if err != nil {
				logger.GetLogger().Warn("no reranker available, keeping original order", "error", err)
				return pc
			}
			active = resolved
		}
		reranked, err := active.Rerank(ctx, pc.EffectiveQuery(), pc.Results, opts)
		if err != nil {
			logger.GetLogger().Warn("rerank stage failed, keeping original order", "error", err)
			return pc
		}
		scores := make(map[string]float32, len(reranked))
		for _, hit := range reranked {
			scores[hit.ID] = hit.RerankScore
		}
		pc.Results = reranked
		pc.RerankScores = scores
		return pc
	}
}

var (
	_ Reranker = (*LLMReranker)(nil)
	_ Reranker = Passthrough{}
)
