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
	"strings"

	"github.com/kadirpekel/portfolio/pkg/llm"
	"github.com/kadirpekel/portfolio/pkg/logger"
	"github.com/kadirpekel/portfolio/pkg/telemetry"
)

// Query processor stage names, usable in ProcessorOptions.Skip.
const (
	StageRewrite   = "rewrite"
	StageExpand    = "expand"
	StageDecompose = "decompose"
)

const rewritePrompt = `Rewrite the user's conversational input as a concise search query.
Return only the query, on a single line, with no explanation.`

const expandPrompt = `Expand the search query with synonyms and closely related terms to
improve recall. Return only the expanded query, with no explanation.`

const hydePrompt = `Write a short passage that would plausibly answer the question below.
The passage is used for similarity search, not shown to the user.
Return only the passage.`

const decomposePrompt = `Break the question into independent sub-questions that can be
searched separately. Respond with a JSON object of the form
{"sub_questions": ["...", "..."]}. If the question is simple, return it
as the only element.`

// ProcessorOptions tunes one Process call.
type ProcessorOptions struct {
	// Skip disables the named stages.
	Skip []string `mapstructure:"skip"`

	// HyDE switches the expand stage to hypothetical-answer expansion.
	HyDE bool `mapstructure:"hyde"`
}

// Processor runs the query preparation stages. All three stages are
// advisory: an LLM failure logs and leaves the Context unchanged.
type Processor struct {
	llm llm.Provider
}

// NewProcessor creates a query processor.
func NewProcessor(provider llm.Provider) (*Processor, error) {
	if provider == nil {
		return nil, fmt.Errorf("LLM provider is required")
	}
	return &Processor{llm: provider}, nil
}

// Process runs rewrite, expand, and decompose in order, honoring the
// skip set.
func (p *Processor) Process(ctx context.Context, pc Context, opts ProcessorOptions) Context {
	skip := make(map[string]bool, len(opts.Skip))
	for _, name := range opts.Skip {
		skip[name] = true
	}

	var stages []Stage
	if !skip[StageRewrite] {
		stages = append(stages, p.Rewrite())
	}
	if !skip[StageExpand] {
		stages = append(stages, p.Expand(opts.HyDE))
	}
	if !skip[StageDecompose] {
		stages = append(stages, p.Decompose())
	}
	return Run(ctx, pc, stages...)
}

// Rewrite turns conversational input into a search query.
func (p *Processor) Rewrite() Stage {
	return func(ctx context.Context, pc Context) Context {
		metadata := map[string]any{"question_length": len(pc.Question)}
		err := telemetry.Span(ctx, telemetry.EventRAGRewrite, metadata, func(ctx context.Context) error {
			completion, err := p.llm.Complete(ctx, []llm.Message{
				llm.System(rewritePrompt),
				llm.User(pc.Question),
			}, llm.Options{})
			if err != nil {
				return err
			}
			pc.RewrittenQuery = firstLine(completion.Content)
			metadata["query_length"] = len(pc.RewrittenQuery)
			return nil
		})
		if err != nil {
			logger.GetLogger().Warn("query rewrite failed, keeping original", "error", err)
		}
		return pc
	}
}

// Expand adds synonyms and adjacent terms to the query. With hyde set
// it generates a hypothetical answer passage instead.
func (p *Processor) Expand(hyde bool) Stage {
	return func(ctx context.Context, pc Context) Context {
		prompt := expandPrompt
		if hyde {
			prompt = hydePrompt
		}
		input := pc.RewrittenQuery
		if input == "" {
			input = pc.Question
		}

		metadata := map[string]any{"hyde": hyde}
		err := telemetry.Span(ctx, telemetry.EventRAGExpand, metadata, func(ctx context.Context) error {
			completion, err := p.llm.Complete(ctx, []llm.Message{
				llm.System(prompt),
				llm.User(input),
			}, llm.Options{})
			if err != nil {
				return err
			}
			pc.ExpandedQuery = strings.TrimSpace(completion.Content)
			metadata["query_length"] = len(pc.ExpandedQuery)
			return nil
		})
		if err != nil {
			logger.GetLogger().Warn("query expansion failed, keeping original", "error", err)
		}
		return pc
	}
}

// Decompose splits a complex question into sub-questions. An
// unparseable response falls back to the original question alone.
func (p *Processor) Decompose() Stage {
	return func(ctx context.Context, pc Context) Context {
		metadata := map[string]any{}
		err := telemetry.Span(ctx, telemetry.EventRAGDecompose, metadata, func(ctx context.Context) error {
			completion, err := p.llm.Complete(ctx, []llm.Message{
				llm.System(decomposePrompt),
				llm.User(pc.Question),
			}, llm.Options{JSONMode: true})
			if err != nil {
				return err
			}
			pc.SubQuestions = parseSubQuestions(completion.Content)
			metadata["sub_questions"] = len(pc.SubQuestions)
			return nil
		})
		if err != nil {
			logger.GetLogger().Warn("question decomposition failed, keeping original", "error", err)
		}
		if len(pc.SubQuestions) == 0 {
			pc.SubQuestions = []string{pc.Question}
		}
		pc.IsComplex = len(pc.SubQuestions) > 1
		return pc
	}
}

// parseSubQuestions accepts either a sub_questions or a questions key.
func parseSubQuestions(content string) []string {
	var parsed struct {
		SubQuestions []string `json:"sub_questions"`
		Questions    []string `json:"questions"`
	}
	if err := extractJSON(content, &parsed); err != nil {
		return nil
	}
	if len(parsed.SubQuestions) > 0 {
		return parsed.SubQuestions
	}
	return parsed.Questions
}

func firstLine(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	return strings.TrimSpace(text)
}
