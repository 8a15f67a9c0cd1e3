package vector

import (
	"context"
	"errors"
	"math"
	"testing"
)

func newTestIndex(t *testing.T, store *MemoryStore, id string, dims int) {
	t.Helper()
	if err := store.CreateIndex(context.Background(), id, Index{Dimensions: dims}); err != nil {
		t.Fatalf("failed to create index: %v", err)
	}
}

func TestMemoryStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	newTestIndex(t, store, "docs", 3)

	items := map[string][]float32{
		"a": {1, 0, 0},
		"b": {0, 1, 0},
		"c": {0.9, 0.1, 0},
	}
	for id, vec := range items {
		if err := store.Store(ctx, "docs", id, vec, map[string]any{"content": "item " + id}); err != nil {
			t.Fatalf("failed to store %s: %v", id, err)
		}
	}

	results, err := store.Search(ctx, "docs", []float32{1, 0, 0}, 2, SearchOptions{})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != "a" {
		t.Errorf("expected closest item a, got %s", results[0].ID)
	}
	if results[1].ID != "c" {
		t.Errorf("expected second item c, got %s", results[1].ID)
	}
	if results[0].Score < results[1].Score {
		t.Error("results not ordered by descending score")
	}
}

func TestMemoryStore_CreateIndexIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	newTestIndex(t, store, "docs", 4)

	// Same dimensions: no-op.
	if err := store.CreateIndex(ctx, "docs", Index{Dimensions: 4}); err != nil {
		t.Fatalf("expected idempotent create, got %v", err)
	}

	// Different dimensions: error.
	err := store.CreateIndex(ctx, "docs", Index{Dimensions: 8})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestMemoryStore_DimensionCheck(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	newTestIndex(t, store, "docs", 3)

	err := store.Store(ctx, "docs", "x", []float32{1, 0}, nil)
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}

	_, err = store.Search(ctx, "docs", []float32{1, 0}, 1, SearchOptions{})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch on search, got %v", err)
	}
}

func TestMemoryStore_UpsertReplaces(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	newTestIndex(t, store, "docs", 2)

	if err := store.Store(ctx, "docs", "x", []float32{1, 0}, map[string]any{"v": 1}); err != nil {
		t.Fatalf("store failed: %v", err)
	}
	if err := store.Store(ctx, "docs", "x", []float32{0, 1}, map[string]any{"v": 2}); err != nil {
		t.Fatalf("store failed: %v", err)
	}

	stats, err := store.IndexStats(ctx, "docs")
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.Count != 1 {
		t.Errorf("expected 1 live item after upsert, got %d", stats.Count)
	}

	results, err := store.Search(ctx, "docs", []float32{0, 1}, 1, SearchOptions{})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if results[0].Metadata["v"] != 2 {
		t.Errorf("expected latest version, got %v", results[0].Metadata["v"])
	}
}

func TestMemoryStore_SoftDeleteAndRestore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	newTestIndex(t, store, "docs", 2)

	if err := store.Store(ctx, "docs", "x", []float32{1, 0}, nil); err != nil {
		t.Fatalf("store failed: %v", err)
	}
	if err := store.Delete(ctx, "docs", "x"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	results, err := store.Search(ctx, "docs", []float32{1, 0}, 10, SearchOptions{})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results after delete, got %d", len(results))
	}

	if err := store.Restore(ctx, "docs", "x"); err != nil {
		t.Fatalf("restore failed: %v", err)
	}

	results, err = store.Search(ctx, "docs", []float32{1, 0}, 10, SearchOptions{})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(results) != 1 || results[0].ID != "x" {
		t.Fatalf("expected restored item, got %v", results)
	}
}

func TestMemoryStore_StoreBatchAtomic(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	newTestIndex(t, store, "docs", 2)

	err := store.StoreBatch(ctx, "docs", []Item{
		{ID: "good", Vector: []float32{1, 0}},
		{ID: "bad", Vector: []float32{1, 0, 0}},
	})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}

	stats, err := store.IndexStats(ctx, "docs")
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.Count != 0 {
		t.Errorf("expected empty index after failed batch, got %d items", stats.Count)
	}
}

func TestMemoryStore_FilterAndMinScore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	newTestIndex(t, store, "docs", 2)

	if err := store.StoreBatch(ctx, "docs", []Item{
		{ID: "a", Vector: []float32{1, 0}, Metadata: map[string]any{"lang": "go"}},
		{ID: "b", Vector: []float32{1, 0}, Metadata: map[string]any{"lang": "rust"}},
		{ID: "c", Vector: []float32{0, 1}, Metadata: map[string]any{"lang": "go"}},
	}); err != nil {
		t.Fatalf("batch failed: %v", err)
	}

	results, err := store.Search(ctx, "docs", []float32{1, 0}, 10, SearchOptions{
		Filter:   map[string]any{"lang": "go"},
		MinScore: 0.5,
	})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(results) != 1 || results[0].ID != "a" {
		t.Fatalf("expected only item a, got %v", results)
	}
}

func TestMemoryStore_EuclideanNormalization(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.CreateIndex(ctx, "docs", Index{Dimensions: 2, Metric: MetricEuclidean}); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := store.Store(ctx, "docs", "exact", []float32{1, 1}, nil); err != nil {
		t.Fatalf("store failed: %v", err)
	}

	results, err := store.Search(ctx, "docs", []float32{1, 1}, 1, SearchOptions{})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}

	// Zero distance normalizes to 1.
	if math.Abs(float64(results[0].Score)-1.0) > 1e-6 {
		t.Errorf("expected score 1 for identical vectors, got %f", results[0].Score)
	}
}

func TestMemoryStore_FulltextSearch(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	newTestIndex(t, store, "docs", 2)

	if err := store.StoreBatch(ctx, "docs", []Item{
		{ID: "a", Vector: []float32{1, 0}, Metadata: map[string]any{"content": "the quick brown fox"}},
		{ID: "b", Vector: []float32{0, 1}, Metadata: map[string]any{"content": "a lazy dog sleeps"}},
	}); err != nil {
		t.Fatalf("batch failed: %v", err)
	}

	results, err := store.FulltextSearch(ctx, "docs", "quick fox", 10, FulltextOptions{})
	if err != nil {
		t.Fatalf("fulltext search failed: %v", err)
	}
	if len(results) != 1 || results[0].ID != "a" {
		t.Fatalf("expected only item a, got %v", results)
	}

	// Phrase mode: terms must be adjacent.
	results, err = store.FulltextSearch(ctx, "docs", "brown fox", 10, FulltextOptions{Phrase: true})
	if err != nil {
		t.Fatalf("phrase search failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected phrase match, got %v", results)
	}

	results, err = store.FulltextSearch(ctx, "docs", "quick fox", 10, FulltextOptions{Phrase: true})
	if err != nil {
		t.Fatalf("phrase search failed: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no phrase match for non-adjacent terms, got %v", results)
	}
}

func TestMemoryStore_MissingIndex(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	if err := store.Store(ctx, "missing", "x", []float32{1}, nil); !errors.Is(err, ErrIndexNotFound) {
		t.Errorf("expected ErrIndexNotFound on store, got %v", err)
	}
	if _, err := store.Search(ctx, "missing", []float32{1}, 1, SearchOptions{}); !errors.Is(err, ErrIndexNotFound) {
		t.Errorf("expected ErrIndexNotFound on search, got %v", err)
	}
	if err := store.DeleteIndex(ctx, "missing"); !errors.Is(err, ErrIndexNotFound) {
		t.Errorf("expected ErrIndexNotFound on delete, got %v", err)
	}
}

func TestNormalizeScore(t *testing.T) {
	if got := NormalizeScore(MetricCosine, 0.8); got != 0.8 {
		t.Errorf("cosine should pass through, got %f", got)
	}
	if got := NormalizeScore(MetricDot, 2.5); got != 2.5 {
		t.Errorf("dot should pass through, got %f", got)
	}
	if got := NormalizeScore(MetricEuclidean, 0.25); got != 0.75 {
		t.Errorf("euclidean should map to 1-d, got %f", got)
	}
}

func TestCosineSimilarity(t *testing.T) {
	if got := CosineSimilarity([]float32{1, 0}, []float32{1, 0}); math.Abs(float64(got)-1) > 1e-6 {
		t.Errorf("identical vectors should score 1, got %f", got)
	}
	if got := CosineSimilarity([]float32{1, 0}, []float32{0, 1}); math.Abs(float64(got)) > 1e-6 {
		t.Errorf("orthogonal vectors should score 0, got %f", got)
	}
	if got := CosineSimilarity([]float32{0, 0}, []float32{1, 0}); got != 0 {
		t.Errorf("zero vector should score 0, got %f", got)
	}
}
