package evaluation

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/kadirpekel/portfolio/pkg/store"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestCompute(t *testing.T) {
	expected := []string{"a", "b", "c", "d"}
	retrieved := []string{"a", "x", "b", "y", "z"}

	m := Compute(expected, retrieved, Options{K: 5})

	if !almostEqual(m.RecallAtK, 0.5) {
		t.Errorf("recall@5 = %f, want 0.5", m.RecallAtK)
	}
	if !almostEqual(m.Precision, 0.4) {
		t.Errorf("precision@5 = %f, want 0.4", m.Precision)
	}
	if !almostEqual(m.MRR, 1.0) {
		t.Errorf("mrr = %f, want 1.0 (first hit at rank 1)", m.MRR)
	}
	if m.HitRate != 1 {
		t.Errorf("hit_rate@5 = %f, want 1", m.HitRate)
	}
}

func TestComputeNoHits(t *testing.T) {
	m := Compute([]string{"a"}, []string{"x", "y"}, Options{K: 2})
	if m.RecallAtK != 0 || m.Precision != 0 || m.MRR != 0 || m.HitRate != 0 {
		t.Errorf("expected all-zero metrics, got %+v", m)
	}
}

func TestComputeMRRUsesFullList(t *testing.T) {
	// The only hit is beyond K; MRR still sees it.
	m := Compute([]string{"a"}, []string{"x", "y", "z", "a"}, Options{K: 2})
	if !almostEqual(m.MRR, 0.25) {
		t.Errorf("mrr = %f, want 0.25", m.MRR)
	}
	if m.RecallAtK != 0 || m.HitRate != 0 {
		t.Errorf("top-k metrics must ignore hits beyond K: %+v", m)
	}
}

func TestRecallNonDecreasingInK(t *testing.T) {
	expected := []string{"a", "b", "c"}
	retrieved := []string{"x", "a", "y", "b", "z", "c"}

	prev := 0.0
	for k := 1; k <= len(retrieved); k++ {
		m := Compute(expected, retrieved, Options{K: k})
		if m.RecallAtK < prev {
			t.Fatalf("recall@%d = %f dropped below recall@%d = %f", k, m.RecallAtK, k-1, prev)
		}
		prev = m.RecallAtK
	}
}

func TestPrecisionOrderIndependentBeyondK(t *testing.T) {
	expected := []string{"a", "b"}

	first := Compute(expected, []string{"a", "x", "y", "b"}, Options{K: 2})
	second := Compute(expected, []string{"a", "x", "b", "y"}, Options{K: 2})

	if !almostEqual(first.Precision, second.Precision) {
		t.Errorf("precision@2 must ignore order beyond K: %f vs %f", first.Precision, second.Precision)
	}
}

func TestAggregate(t *testing.T) {
	agg := Aggregate([]Metrics{
		{K: 5, RecallAtK: 1.0, Precision: 0.4, MRR: 1.0, HitRate: 1},
		{K: 5, RecallAtK: 0.0, Precision: 0.0, MRR: 0.0, HitRate: 0},
	})

	if !almostEqual(agg.RecallAtK, 0.5) || !almostEqual(agg.Precision, 0.2) ||
		!almostEqual(agg.MRR, 0.5) || !almostEqual(agg.HitRate, 0.5) {
		t.Errorf("unexpected aggregate: %+v", agg)
	}
	if agg.K != 5 {
		t.Errorf("aggregate K = %d, want 5", agg.K)
	}
}

func seedTestCases(t *testing.T, repo store.Repository) string {
	t.Helper()
	ctx := context.Background()

	collection, err := repo.CreateCollection(ctx, "docs", nil)
	if err != nil {
		t.Fatal(err)
	}
	cases := []store.TestCase{
		{CollectionID: collection.ID, Query: "first", ExpectedIDs: []string{"c1"}},
		{CollectionID: collection.ID, Query: "second", ExpectedIDs: []string{"c2"}},
	}
	for i := range cases {
		if err := repo.CreateTestCase(ctx, &cases[i]); err != nil {
			t.Fatal(err)
		}
	}
	return collection.ID
}

func TestRunnerPersistsRun(t *testing.T) {
	ctx := context.Background()
	repo := store.NewMemoryRepository()
	collectionID := seedTestCases(t, repo)

	retrieve := func(_ context.Context, query string, _ int) ([]string, error) {
		if query == "first" {
			return []string{"c1"}, nil
		}
		return []string{"x"}, nil
	}

	runner, err := NewRunner(repo, retrieve)
	if err != nil {
		t.Fatalf("failed to create runner: %v", err)
	}

	run, err := runner.Run(ctx, collectionID, Options{K: 3})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if run.Status != store.RunCompleted {
		t.Errorf("status = %q, want completed", run.Status)
	}
	if run.CompletedAt == nil {
		t.Error("completed run must carry a completion time")
	}
	if len(run.PerCaseResults) != 2 {
		t.Fatalf("expected 2 per-case results, got %d", len(run.PerCaseResults))
	}
	// One perfect case and one miss average to 0.5.
	if !almostEqual(run.AggregateMetrics["recall_at_k"], 0.5) {
		t.Errorf("aggregate recall = %f, want 0.5", run.AggregateMetrics["recall_at_k"])
	}
}

func TestRunnerCaseErrorDoesNotFailRun(t *testing.T) {
	ctx := context.Background()
	repo := store.NewMemoryRepository()
	collectionID := seedTestCases(t, repo)

	retrieve := func(_ context.Context, query string, _ int) ([]string, error) {
		if query == "second" {
			return nil, errors.New("backend down")
		}
		return []string{"c1"}, nil
	}

	runner, _ := NewRunner(repo, retrieve)
	run, err := runner.Run(ctx, collectionID, Options{})
	if err != nil {
		t.Fatalf("case errors must not fail the run: %v", err)
	}
	if run.Status != store.RunCompleted {
		t.Errorf("status = %q, want completed", run.Status)
	}

	var failed int
	for _, result := range run.PerCaseResults {
		if _, ok := result["error"]; ok {
			failed++
		}
	}
	if failed != 1 {
		t.Errorf("expected 1 failed case, got %d", failed)
	}
}

func TestRunnerFailsWithoutTestCases(t *testing.T) {
	ctx := context.Background()
	repo := store.NewMemoryRepository()
	collection, err := repo.CreateCollection(ctx, "empty", nil)
	if err != nil {
		t.Fatal(err)
	}

	runner, _ := NewRunner(repo, func(context.Context, string, int) ([]string, error) {
		return nil, nil
	})

	run, err := runner.Run(ctx, collection.ID, Options{})
	if err == nil {
		t.Fatal("expected an error for a collection with no test cases")
	}
	if run.Status != store.RunFailed || run.ErrorMessage == "" {
		t.Errorf("run must be recorded as failed: %+v", run)
	}
}
