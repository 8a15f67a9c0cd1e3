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

package evaluation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kadirpekel/portfolio/pkg/logger"
	"github.com/kadirpekel/portfolio/pkg/store"
)

// RetrieveFunc runs one retrieval and returns the retrieved chunk ids
// in rank order.
type RetrieveFunc func(ctx context.Context, query string, k int) ([]string, error)

// Runner evaluates a retriever against a collection's test cases and
// persists the outcome.
type Runner struct {
	repo     store.Repository
	retrieve RetrieveFunc
	log      *slog.Logger
}

// NewRunner creates an evaluation runner.
func NewRunner(repo store.Repository, retrieve RetrieveFunc) (*Runner, error) {
	if repo == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if retrieve == nil {
		return nil, fmt.Errorf("retrieve function is required")
	}
	return &Runner{repo: repo, retrieve: retrieve, log: logger.GetLogger()}, nil
}

// Run evaluates every test case in the collection and records an
// evaluation run. Per-case retrieval errors fail the case, not the
// run; a run with no test cases fails.
func (r *Runner) Run(ctx context.Context, collectionID string, opts Options) (*store.EvaluationRun, error) {
	opts.SetDefaults()

	run := &store.EvaluationRun{
		CollectionID: collectionID,
		Status:       store.RunRunning,
		Config:       map[string]any{"k": opts.K},
		StartedAt:    time.Now(),
	}
	if err := r.repo.CreateEvaluationRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to create evaluation run: %w", err)
	}

	cases, err := r.repo.ListTestCases(ctx, collectionID)
	if err != nil {
		return run, r.fail(ctx, run, fmt.Errorf("failed to list test cases: %w", err))
	}
	if len(cases) == 0 {
		return run, r.fail(ctx, run, fmt.Errorf("collection %s has no test cases", collectionID))
	}

	var perCase []map[string]any
	var scored []Metrics
	for _, tc := range cases {
		result := map[string]any{
			"test_case_id": tc.ID,
			"query":        tc.Query,
		}

		retrieved, err := r.retrieve(ctx, tc.Query, opts.K)
		if err != nil {
			r.log.Warn("test case retrieval failed", "test_case", tc.ID, "error", err)
			result["error"] = err.Error()
			perCase = append(perCase, result)
			continue
		}

		metrics := Compute(tc.ExpectedIDs, retrieved, opts)
		scored = append(scored, metrics)
		result["metrics"] = metrics.asMap()
		perCase = append(perCase, result)
	}

	now := time.Now()
	run.Status = store.RunCompleted
	run.AggregateMetrics = Aggregate(scored).asMap()
	run.PerCaseResults = perCase
	run.CompletedAt = &now
	if err := r.repo.UpdateEvaluationRun(ctx, run); err != nil {
		return run, fmt.Errorf("failed to record evaluation run: %w", err)
	}
	return run, nil
}

func (r *Runner) fail(ctx context.Context, run *store.EvaluationRun, cause error) error {
	now := time.Now()
	run.Status = store.RunFailed
	run.ErrorMessage = cause.Error()
	run.CompletedAt = &now
	if err := r.repo.UpdateEvaluationRun(ctx, run); err != nil {
		r.log.Error("failed to record failed run", "run", run.ID, "error", err)
	}
	return cause
}
