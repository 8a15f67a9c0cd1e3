package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/kadirpekel/portfolio/pkg/embedder"
	"github.com/kadirpekel/portfolio/pkg/vector"
)

type stubRetriever struct {
	results []Result
	err     error
}

func (s *stubRetriever) Retrieve(ctx context.Context, query string, k int) ([]Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	if len(s.results) > k {
		return s.results[:k], nil
	}
	return s.results, nil
}

func TestMerge_DedupKeepsMaxScore(t *testing.T) {
	merged := Merge([][]Result{
		{{ID: "a", Score: 0.4}, {ID: "b", Score: 0.9}},
		{{ID: "a", Score: 0.7}, {ID: "c", Score: 0.5}},
	}, false)

	if len(merged) != 3 {
		t.Fatalf("expected 3 results, got %d", len(merged))
	}
	if merged[0].ID != "b" || merged[1].ID != "a" || merged[2].ID != "c" {
		t.Errorf("unexpected order: %v", merged)
	}
	if merged[1].Score != 0.7 {
		t.Errorf("expected max score for duplicate, got %g", merged[1].Score)
	}
}

func TestMerge_ContentHashDedup(t *testing.T) {
	merged := Merge([][]Result{
		{{ID: "a", Score: 0.9, Metadata: map[string]any{"content_hash": "h1"}}},
		{{ID: "b", Score: 0.8, Metadata: map[string]any{"content_hash": "h1"}}},
	}, true)

	if len(merged) != 1 {
		t.Fatalf("expected content dedup to collapse, got %d results", len(merged))
	}
	if merged[0].ID != "a" {
		t.Errorf("expected first-seen result kept, got %s", merged[0].ID)
	}
}

func TestComposer_MergesConcurrently(t *testing.T) {
	composer, err := NewComposer(
		&stubRetriever{results: []Result{{ID: "a", Score: 0.9, Source: SourceVector}}},
		&stubRetriever{results: []Result{{ID: "b", Score: 0.8, Source: SourceFulltext}}},
	)
	if err != nil {
		t.Fatalf("failed to create composer: %v", err)
	}

	results, err := composer.Retrieve(context.Background(), "q", 10)
	if err != nil {
		t.Fatalf("retrieve failed: %v", err)
	}
	if len(results) != 2 || results[0].ID != "a" {
		t.Errorf("unexpected results: %v", results)
	}
}

func TestComposer_StageHaltsOnError(t *testing.T) {
	boom := errors.New("store down")
	composer, _ := NewComposer(&stubRetriever{err: boom})

	out := Run(context.Background(), New("q"), composer.Stage(5))
	if !out.Halted || !errors.Is(out.Err, boom) {
		t.Fatalf("expected halted context, got %+v", out)
	}
}

func TestHybridRetriever_BlendsScores(t *testing.T) {
	hybrid, err := NewHybridRetriever(
		&stubRetriever{results: []Result{{ID: "a", Score: 1.0}, {ID: "b", Score: 0.5}}},
		&stubRetriever{results: []Result{{ID: "a", Score: 0.5}, {ID: "c", Score: 1.0}}},
		0.5,
	)
	if err != nil {
		t.Fatalf("failed to create hybrid retriever: %v", err)
	}

	results, err := hybrid.Retrieve(context.Background(), "q", 10)
	if err != nil {
		t.Fatalf("retrieve failed: %v", err)
	}

	scores := make(map[string]float32)
	for _, hit := range results {
		scores[hit.ID] = hit.Score
		if hit.Source != SourceHybrid {
			t.Errorf("expected hybrid source, got %s", hit.Source)
		}
	}
	if scores["a"] != 0.75 {
		t.Errorf("expected blended score 0.75 for a, got %g", scores["a"])
	}
	if scores["b"] != 0.25 || scores["c"] != 0.5 {
		t.Errorf("unexpected one-sided scores: %v", scores)
	}
	if results[0].ID != "a" {
		t.Errorf("expected a first, got %s", results[0].ID)
	}
}

func TestVectorRetriever_SearchesStore(t *testing.T) {
	ctx := context.Background()
	store := vector.NewMemoryStore()
	emb := embedder.NewStatic(3)

	if err := store.CreateIndex(ctx, "docs", vector.Index{Dimensions: 3, Metric: vector.MetricCosine}); err != nil {
		t.Fatalf("failed to create index: %v", err)
	}

	queryEmb, _ := emb.Embed(ctx, "query", embedder.Options{})
	if err := store.Store(ctx, "docs", "hit", queryEmb.Vector, map[string]any{"content": "matching chunk"}); err != nil {
		t.Fatalf("failed to store: %v", err)
	}

	retriever, err := NewVectorRetriever(emb, store, "docs", vector.SearchOptions{})
	if err != nil {
		t.Fatalf("failed to create retriever: %v", err)
	}

	results, err := retriever.Retrieve(ctx, "query", 5)
	if err != nil {
		t.Fatalf("retrieve failed: %v", err)
	}
	if len(results) != 1 || results[0].ID != "hit" {
		t.Fatalf("unexpected results: %v", results)
	}
	if results[0].Source != SourceVector {
		t.Errorf("expected vector source, got %s", results[0].Source)
	}
	if results[0].Content != "matching chunk" {
		t.Errorf("expected content from metadata, got %q", results[0].Content)
	}
}

func TestNewFulltextRetriever_RequiresHybridStore(t *testing.T) {
	store := vector.NewMemoryStore()
	if _, err := NewFulltextRetriever(store, "docs", vector.FulltextOptions{}); err != nil {
		t.Fatalf("memory store should be hybrid capable: %v", err)
	}
}

func TestFulltextRetriever_Searches(t *testing.T) {
	ctx := context.Background()
	store := vector.NewMemoryStore()
	if err := store.CreateIndex(ctx, "docs", vector.Index{Dimensions: 3}); err != nil {
		t.Fatalf("failed to create index: %v", err)
	}
	if err := store.Store(ctx, "docs", "d1", []float32{1, 0, 0}, map[string]any{"content": "the quick brown fox"}); err != nil {
		t.Fatalf("failed to store: %v", err)
	}

	retriever, err := NewFulltextRetriever(store, "docs", vector.FulltextOptions{})
	if err != nil {
		t.Fatalf("failed to create retriever: %v", err)
	}

	results, err := retriever.Retrieve(ctx, "quick fox", 5)
	if err != nil {
		t.Fatalf("retrieve failed: %v", err)
	}
	if len(results) != 1 || results[0].ID != "d1" || results[0].Source != SourceFulltext {
		t.Fatalf("unexpected results: %v", results)
	}
}
