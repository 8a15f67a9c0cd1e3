package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/kadirpekel/portfolio/pkg/llm"
	"github.com/kadirpekel/portfolio/pkg/registry"
)

func TestLLMReranker_FilterAndLimit(t *testing.T) {
	candidates := []Result{
		{ID: "c1", Content: "one", Score: 0.9},
		{ID: "c2", Content: "two", Score: 0.85},
		{ID: "c3", Content: "three", Score: 0.8},
		{ID: "c4", Content: "four", Score: 0.75},
	}
	mock := llm.NewMock(`[
		{"index": 0, "score": 9},
		{"index": 1, "score": 8},
		{"index": 2, "score": 7},
		{"index": 3, "score": 6}
	]`)
	reranker, err := NewLLMReranker(mock)
	if err != nil {
		t.Fatalf("failed to create reranker: %v", err)
	}

	out, err := reranker.Rerank(context.Background(), "q", candidates, RerankOptions{
		TopN:      2,
		Threshold: 0.75,
	})
	if err != nil {
		t.Fatalf("rerank failed: %v", err)
	}
	if len(out) != 2 || out[0].ID != "c1" || out[1].ID != "c2" {
		t.Fatalf("expected [c1 c2], got %v", out)
	}
	if out[0].RerankScore != 0.9 || out[1].RerankScore != 0.8 {
		t.Errorf("unexpected rerank scores: %v", out)
	}
	if out[0].Score != 0.9 {
		t.Errorf("original score must be preserved, got %g", out[0].Score)
	}
}

func TestLLMReranker_Reorders(t *testing.T) {
	candidates := []Result{
		{ID: "low", Content: "a", Score: 0.9},
		{ID: "high", Content: "b", Score: 0.1},
	}
	mock := llm.NewMock(`[{"index": 0, "score": 2}, {"index": 1, "score": 9}]`)
	reranker, _ := NewLLMReranker(mock)

	out, err := reranker.Rerank(context.Background(), "q", candidates, RerankOptions{})
	if err != nil {
		t.Fatalf("rerank failed: %v", err)
	}
	if out[0].ID != "high" {
		t.Errorf("expected rerank order, got %v", out)
	}
}

func TestLLMReranker_FailureKeepsOriginalOrder(t *testing.T) {
	candidates := []Result{
		{ID: "c1", Score: 0.9},
		{ID: "c2", Score: 0.8},
	}

	for name, mock := range map[string]*llm.Mock{
		"provider error": {Err: errors.New("down")},
		"invalid JSON":   llm.NewMock("I cannot score these documents."),
	} {
		reranker, _ := NewLLMReranker(mock)
		out, err := reranker.Rerank(context.Background(), "q", candidates, RerankOptions{})
		if err != nil {
			t.Fatalf("%s: rerank must not fail: %v", name, err)
		}
		if len(out) != 2 || out[0].ID != "c1" || out[1].ID != "c2" {
			t.Errorf("%s: expected original order, got %v", name, out)
		}
	}
}

func TestPassthrough(t *testing.T) {
	candidates := []Result{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	out, err := Passthrough{}.Rerank(context.Background(), "q", candidates, RerankOptions{TopN: 2})
	if err != nil {
		t.Fatalf("rerank failed: %v", err)
	}
	if len(out) != 2 || out[0].ID != "a" {
		t.Errorf("unexpected passthrough result: %v", out)
	}
}

type reversingReranker struct{ calls int }

func (r *reversingReranker) Rerank(ctx context.Context, query string, candidates []Result, opts RerankOptions) ([]Result, error) {
	r.calls++
	out := make([]Result, len(candidates))
	for i, hit := range candidates {
		out[len(candidates)-1-i] = hit
	}
	return out, nil
}

func (r *reversingReranker) ModelName() string { return "reversing" }

func TestRerankStage_ResolvesRerankerFromContext(t *testing.T) {
	registry.SetProcessDefaults(nil)
	t.Cleanup(func() { registry.SetProcessDefaults(nil) })

	reranker := &reversingReranker{}
	pc := New("q")
	pc.Results = []Result{{ID: "a"}, {ID: "b"}}
	pc.Adapters = registry.NewAdapterSet().With(registry.CapReranker, reranker)

	out := Run(context.Background(), pc, RerankStage(nil, RerankOptions{}))
	if out.Halted {
		t.Fatal("rerank stage must not halt")
	}
	if reranker.calls != 1 {
		t.Fatalf("expected the bound reranker to be called once, got %d", reranker.calls)
	}
	if out.Results[0].ID != "b" {
		t.Errorf("expected the bound reranker's ordering, got %v", out.Results)
	}
}

func TestRerankStage_DefaultsToPassthrough(t *testing.T) {
	registry.SetProcessDefaults(nil)
	t.Cleanup(func() { registry.SetProcessDefaults(nil) })

	pc := New("q")
	pc.Results = []Result{{ID: "a"}, {ID: "b"}, {ID: "c"}}

	// No per-call binding and no process default: resolution lands on
	// the compile-time Passthrough, which still honors TopN.
	out := Run(context.Background(), pc, RerankStage(nil, RerankOptions{TopN: 2}))
	if out.Halted {
		t.Fatal("rerank stage must not halt")
	}
	if len(out.Results) != 2 || out.Results[0].ID != "a" {
		t.Errorf("expected passthrough order with top-n applied, got %v", out.Results)
	}
}

func TestRerankStage_StoresScores(t *testing.T) {
	mock := llm.NewMock(`[{"index": 0, "score": 10}]`)
	reranker, _ := NewLLMReranker(mock)

	pc := New("q")
	pc.Results = []Result{{ID: "a", Content: "text", Score: 0.5}}
	out := Run(context.Background(), pc, RerankStage(reranker, RerankOptions{}))

	if out.Halted {
		t.Fatal("rerank stage must not halt")
	}
	if out.RerankScores["a"] != 1.0 {
		t.Errorf("expected rerank score 1.0, got %v", out.RerankScores)
	}
}
