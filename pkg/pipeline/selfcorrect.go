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

const (
	defaultMaxIterations  = 3
	defaultMaxCorrections = 2
	defaultAnswerChunks   = 5
)

// SearchFunc runs one retrieval attempt.
type SearchFunc func(ctx context.Context, query string) ([]Result, error)

// SearchLoopOptions tunes the self-correcting search.
type SearchLoopOptions struct {
	// MaxIterations bounds the loop. Zero means 3.
	MaxIterations int `mapstructure:"max_iterations"`

	// MinResults triggers a query rewrite when a search comes back
	// empty. Zero disables the empty-result rewrite.
	MinResults int `mapstructure:"min_results"`
}

const sufficiencyPrompt = `Judge whether the retrieved passages are sufficient to answer the
question. Respond with a JSON object {"sufficient": true|false,
"reasoning": "..."} and nothing else.`

const improvePrompt = `The previous search query did not retrieve sufficient results.
Produce an improved search query using the feedback. Return only the
query, on a single line.`

// SearchLoop runs retrieval with LLM sufficiency feedback, retrying
// with improved queries up to a bounded number of iterations.
type SearchLoop struct {
	llm llm.Provider
}

// NewSearchLoop creates a self-correcting search loop.
func NewSearchLoop(provider llm.Provider) (*SearchLoop, error) {
	if provider == nil {
		return nil, fmt.Errorf("LLM provider is required")
	}
	return &SearchLoop{llm: provider}, nil
}

// Run iterates search until the results are judged sufficient or the
// iteration bound is hit. A search error halts the Context; a judge
// error fails open and keeps the current results.
func (l *SearchLoop) Run(ctx context.Context, pc Context, search SearchFunc, opts SearchLoopOptions) Context {
	maxIterations := opts.MaxIterations
	if maxIterations <= 0 {
		maxIterations = defaultMaxIterations
	}

	for i := 0; i < maxIterations; i++ {
		results, err := search(ctx, pc.EffectiveQuery())
		if err != nil {
			return pc.Halt(err)
		}
		pc.Results = results

		if len(results) == 0 && opts.MinResults > 0 {
			rewritten, err := l.improveQuery(ctx, pc.Question, pc.EffectiveQuery(), "the search returned no results")
			if err != nil {
				logger.GetLogger().Warn("empty-result rewrite failed, keeping results", "error", err)
				return pc
			}
			pc.RewrittenQuery = rewritten
			pc.ExpandedQuery = ""
			pc.CorrectionCount++
			pc.Corrections = append(pc.Corrections, Correction{Reason: "no results", Query: rewritten})
			telemetry.Count(ctx, telemetry.EventRAGSelfCorrect, map[string]any{
				"correction_count": pc.CorrectionCount,
				"reason":           "no_results",
			})
			continue
		}

		verdict, err := l.judgeSufficiency(ctx, pc.Question, results)
		if err != nil {
			// Fail open: an unavailable judge should not discard results.
			logger.GetLogger().Warn("sufficiency judgement failed, assuming sufficient", "error", err)
			return pc
		}
		if verdict.Sufficient {
			return pc
		}

		improved, err := l.improveQuery(ctx, pc.Question, pc.EffectiveQuery(), verdict.Reasoning)
		if err != nil {
			logger.GetLogger().Warn("query improvement failed, keeping results", "error", err)
			return pc
		}
		pc.RewrittenQuery = improved
		pc.ExpandedQuery = ""
		pc.CorrectionCount++
		pc.Corrections = append(pc.Corrections, Correction{Reason: verdict.Reasoning, Query: improved})
		telemetry.Count(ctx, telemetry.EventRAGSelfCorrect, map[string]any{
			"correction_count": pc.CorrectionCount,
			"reason":           "insufficient",
		})
	}
	return pc
}

// Stage wraps the loop as a required pipeline stage.
func (l *SearchLoop) Stage(search SearchFunc, opts SearchLoopOptions) Stage {
	return func(ctx context.Context, pc Context) Context {
		return l.Run(ctx, pc, search, opts)
	}
}

type sufficiencyVerdict struct {
	Sufficient bool   `json:"sufficient"`
	Reasoning  string `json:"reasoning"`
}

func (l *SearchLoop) judgeSufficiency(ctx context.Context, question string, results []Result) (*sufficiencyVerdict, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\nPassages:\n", question)
	for i, hit := range results {
		fmt.Fprintf(&b, "[%d] %s\n", i, hit.Content)
	}

	completion, err := l.llm.Complete(ctx, []llm.Message{
		llm.System(sufficiencyPrompt),
		llm.User(b.String()),
	}, llm.Options{JSONMode: true})
	if err != nil {
		return nil, err
	}

	var verdict sufficiencyVerdict
	if err := extractJSON(completion.Content, &verdict); err != nil {
		return nil, err
	}
	return &verdict, nil
}

func (l *SearchLoop) improveQuery(ctx context.Context, question, query, feedback string) (string, error) {
	input := fmt.Sprintf("Question: %s\nPrevious query: %s\nFeedback: %s", question, query, feedback)
	completion, err := l.llm.Complete(ctx, []llm.Message{
		llm.System(improvePrompt),
		llm.User(input),
	}, llm.Options{})
	if err != nil {
		return "", err
	}
	improved := firstLine(completion.Content)
	if improved == "" {
		return "", fmt.Errorf("empty improved query")
	}
	return improved, nil
}

// AnswerOptions tunes the self-correcting answer generation.
type AnswerOptions struct {
	// MaxCorrections bounds grounding retries. Zero means 2.
	MaxCorrections int `mapstructure:"max_corrections"`

	// TopChunks limits how many results feed the prompt. Zero means 5.
	TopChunks int `mapstructure:"top_chunks"`
}

const answerPrompt = `Answer the question using only the provided passages. If the
passages do not contain the answer, say so.`

const groundingPrompt = `Judge whether the answer is grounded in the provided passages.
Respond with a JSON object {"grounded": true|false, "score": 0.0-1.0,
"reasoning": "..."} and nothing else.`

// Answerer generates an answer from retrieved chunks and retries with
// grounding feedback when the answer is not supported by them.
type Answerer struct {
	llm llm.Provider
}

// NewAnswerer creates a self-correcting answer generator.
func NewAnswerer(provider llm.Provider) (*Answerer, error) {
	if provider == nil {
		return nil, fmt.Errorf("LLM provider is required")
	}
	return &Answerer{llm: provider}, nil
}

// Run generates and grounds an answer. Generation errors halt the
// Context; grounding check errors keep the answer as-is.
func (a *Answerer) Run(ctx context.Context, pc Context, opts AnswerOptions) Context {
	maxCorrections := opts.MaxCorrections
	if maxCorrections <= 0 {
		maxCorrections = defaultMaxCorrections
	}
	topChunks := opts.TopChunks
	if topChunks <= 0 {
		topChunks = defaultAnswerChunks
	}

	passages := answerPassages(pc.Results, topChunks)
	question := pc.Question

	for {
		answer, err := a.generate(ctx, question, passages)
		if err != nil {
			return pc.Halt(err)
		}
		pc.Answer = answer

		verdict, reasoning, err := a.checkGrounding(ctx, answer, passages)
		if err != nil {
			logger.GetLogger().Warn("grounding check failed, keeping answer", "error", err)
			return pc
		}
		pc.Grounding = verdict
		if verdict.Grounded || pc.CorrectionCount >= maxCorrections {
			return pc
		}

		question = fmt.Sprintf("%s\n\nA previous answer was not grounded in the passages: %s", pc.Question, reasoning)
		pc.CorrectionCount++
		pc.Corrections = append(pc.Corrections, Correction{Reason: reasoning, Query: question})
		telemetry.Count(ctx, telemetry.EventRAGSelfCorrect, map[string]any{
			"correction_count": pc.CorrectionCount,
			"reason":           "ungrounded",
		})
	}
}

// Stage wraps answer generation as a required pipeline stage.
func (a *Answerer) Stage(opts AnswerOptions) Stage {
	return func(ctx context.Context, pc Context) Context {
		return a.Run(ctx, pc, opts)
	}
}

func (a *Answerer) generate(ctx context.Context, question, passages string) (string, error) {
	completion, err := a.llm.Complete(ctx, []llm.Message{
		llm.System(answerPrompt),
		llm.User(fmt.Sprintf("Question: %s\n\nPassages:\n%s", question, passages)),
	}, llm.Options{})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(completion.Content), nil
}

func (a *Answerer) checkGrounding(ctx context.Context, answer, passages string) (*GroundingVerdict, string, error) {
	completion, err := a.llm.Complete(ctx, []llm.Message{
		llm.System(groundingPrompt),
		llm.User(fmt.Sprintf("Answer: %s\n\nPassages:\n%s", answer, passages)),
	}, llm.Options{JSONMode: true})
	if err != nil {
		return nil, "", err
	}

	var parsed struct {
		Grounded  bool    `json:"grounded"`
		Score     float32 `json:"score"`
		Reasoning string  `json:"reasoning"`
	}
	if err := extractJSON(completion.Content, &parsed); err != nil {
		return nil, "", err
	}
	return &GroundingVerdict{Grounded: parsed.Grounded, Score: parsed.Score}, parsed.Reasoning, nil
}

func answerPassages(results []Result, limit int) string {
	if len(results) > limit {
		results = results[:limit]
	}
	var b strings.Builder
	for i, hit := range results {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, hit.Content)
	}
	return b.String()
}
