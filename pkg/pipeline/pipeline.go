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

// Package pipeline drives query processing, retrieval, reranking, and
// self-correcting answer generation.
//
// Stages consume and return an immutable Context value. A halted
// Context short-circuits every subsequent stage. Advisory stages
// (rewrite, expand, decompose, rerank) log failures and pass the
// Context through unchanged; required stages (search, answer) halt it.
package pipeline

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/kadirpekel/portfolio/pkg/registry"
)

// Result sources.
const (
	SourceVector      = "vector"
	SourceFulltext    = "fulltext"
	SourceHybrid      = "hybrid"
	SourceGraphLocal  = "graph_local"
	SourceGraphGlobal = "graph_global"
)

// Result is one retrieved candidate. Scores are normalized to [0, 1]
// with higher meaning more relevant.
type Result struct {
	ID       string
	Content  string
	Score    float32
	Metadata map[string]any
	Source   string

	// RerankScore is set by the reranker, zero before.
	RerankScore float32
}

// GroundingVerdict is the answer grounding check outcome.
type GroundingVerdict struct {
	Grounded bool    `json:"grounded"`
	Score    float32 `json:"score,omitempty"`
}

// Correction records one self-correction step.
type Correction struct {
	Reason string
	Query  string
}

// Context is the pipeline's value object. Stages never mutate it in
// place; they return a modified copy.
type Context struct {
	Question       string
	RewrittenQuery string
	ExpandedQuery  string
	SubQuestions   []string
	IsComplex      bool

	Results      []Result
	RerankScores map[string]float32

	Answer          string
	Grounding       *GroundingVerdict
	CorrectionCount int
	Corrections     []Correction

	Halted bool
	Err    error

	Adapters *registry.AdapterSet
	Opts     map[string]any
}

// New creates a Context for a question.
func New(question string) Context {
	return Context{Question: question}
}

// Halt marks the Context terminally failed.
func (c Context) Halt(err error) Context {
	c.Halted = true
	c.Err = err
	return c
}

// EffectiveQuery returns the best query string available: the expanded
// query, then the rewritten query, then the original question.
func (c Context) EffectiveQuery() string {
	if c.ExpandedQuery != "" {
		return c.ExpandedQuery
	}
	if c.RewrittenQuery != "" {
		return c.RewrittenQuery
	}
	return c.Question
}

// Stage transforms a Context.
type Stage func(ctx context.Context, pc Context) Context

// Run applies stages in order. A halted Context skips the rest.
func Run(ctx context.Context, pc Context, stages ...Stage) Context {
	for _, stage := range stages {
		if pc.Halted {
			return pc
		}
		pc = stage(ctx, pc)
	}
	return pc
}

// DecodeOpts decodes a free-form options map into a typed options
// struct.
func DecodeOpts[T any](opts map[string]any) (T, error) {
	var out T
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return out, fmt.Errorf("failed to build options decoder: %w", err)
	}
	if err := decoder.Decode(opts); err != nil {
		return out, fmt.Errorf("failed to decode options: %w", err)
	}
	return out, nil
}
