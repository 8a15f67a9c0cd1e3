package graphrag

import (
	"context"
	"testing"

	"github.com/kadirpekel/portfolio/pkg/embedder"
	"github.com/kadirpekel/portfolio/pkg/llm"
)

// pinnedEmbedder returns a static embedder whose query embedding
// matches entity A exactly.
func pinnedEmbedder() *embedder.Static {
	emb := embedder.NewStatic(3)
	emb.Vectors = map[string][]float32{
		"the query": {1, 0, 0},
	}
	return emb
}

func seedSearchGraph(t *testing.T, store *MemoryGraphStore) {
	t.Helper()
	ctx := context.Background()
	seedTriangle(t, store, "g")

	for name, vec := range map[string][]float32{
		"A": {1, 0, 0},
		"B": {0, 1, 0},
		"C": {0, 0, 1},
	} {
		if err := store.SetNodeEmbedding(ctx, "g", name, vec); err != nil {
			t.Fatalf("failed to set embedding: %v", err)
		}
	}
}

func TestSearcher_Local(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryGraphStore()
	seedSearchGraph(t, store)

	searcher, err := NewSearcher(store, pinnedEmbedder(), SearcherConfig{Seeds: 1, Depth: 1})
	if err != nil {
		t.Fatalf("failed to create searcher: %v", err)
	}

	hits, err := searcher.Search(ctx, "g", "the query", 10, SearchLocal)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(hits) != 3 {
		t.Fatalf("expected seed plus both neighbors, got %v", hits)
	}
	if hits[0].ID != "A" || hits[0].Depth != 0 {
		t.Errorf("expected seed A first, got %+v", hits[0])
	}
	for _, hit := range hits[1:] {
		if hit.Depth != 1 {
			t.Errorf("expected neighbors at depth 1, got %+v", hit)
		}
	}
}

func TestSearcher_Global(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryGraphStore()
	seedSearchGraph(t, store)

	community := Community{ID: "community_0", Level: 0, Members: []string{"A", "B", "C"}}
	if err := store.CreateCommunity(ctx, "g", community); err != nil {
		t.Fatal(err)
	}
	if err := store.UpdateCommunitySummary(ctx, "g", "community_0", "a summary", []float32{1, 0, 0}); err != nil {
		t.Fatal(err)
	}

	searcher, _ := NewSearcher(store, pinnedEmbedder(), SearcherConfig{})
	hits, err := searcher.Search(ctx, "g", "the query", 10, SearchGlobal)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != "community_0" || hits[0].Content != "a summary" {
		t.Fatalf("unexpected hits: %v", hits)
	}
}

func TestSearcher_HybridKeepsMaxScore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryGraphStore()
	seedSearchGraph(t, store)

	community := Community{ID: "community_0", Level: 0, Members: []string{"A"}}
	_ = store.CreateCommunity(ctx, "g", community)
	_ = store.UpdateCommunitySummary(ctx, "g", "community_0", "summary", []float32{1, 0, 0})

	searcher, _ := NewSearcher(store, pinnedEmbedder(), SearcherConfig{Seeds: 1, Depth: 1})
	hits, err := searcher.Search(ctx, "g", "the query", 10, SearchHybrid)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}

	seen := make(map[string]bool)
	for _, hit := range hits {
		if seen[hit.ID] {
			t.Errorf("duplicate id %s in hybrid results", hit.ID)
		}
		seen[hit.ID] = true
	}
	if !seen["A"] || !seen["community_0"] {
		t.Errorf("expected both local and global hits, got %v", hits)
	}
}

func TestSearcher_UnknownMode(t *testing.T) {
	store := NewMemoryGraphStore()
	searcher, _ := NewSearcher(store, pinnedEmbedder(), SearcherConfig{})
	if _, err := searcher.Search(context.Background(), "g", "q", 5, "psychic"); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestBuilder_EndToEnd(t *testing.T) {
	ctx := context.Background()
	mock := llm.NewMock(`{"entities": [
		{"name": "Indexer", "type": "Module", "description": "builds indexes"},
		{"name": "Tokenizer", "type": "Class"},
		{"name": "indexer", "type": "Module", "description": "builds search indexes from text"}
	], "relationships": [
		{"source": "Indexer", "target": "Tokenizer", "type": "USES"},
		{"source": "Indexer", "target": "Ghost", "type": "USES"}
	]}`)

	extractor, _ := NewExtractor(mock, ExtractorConfig{RateLimit: 1})
	store := NewMemoryGraphStore()
	builder, err := NewBuilder(extractor, embedder.NewStatic(3), store, BuilderConfig{
		Detect: DetectOptions{Seed: 1},
	})
	if err != nil {
		t.Fatalf("failed to create builder: %v", err)
	}

	result, err := builder.Build(ctx, "g", []string{"chunk"})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	if result.Entities != 2 {
		t.Errorf("expected duplicate entity merged, got %d", result.Entities)
	}
	if result.Relationships != 1 {
		t.Errorf("expected dangling relationship dropped, got %d", result.Relationships)
	}
	if result.Communities == 0 {
		t.Error("expected communities detected")
	}

	node, err := store.GetNode(ctx, "g", "Indexer")
	if err != nil {
		t.Fatalf("node missing: %v", err)
	}
	if node.Description != "builds search indexes from text" {
		t.Errorf("expected longer description kept, got %q", node.Description)
	}
	if node.Embedding == nil {
		t.Error("expected entity embedding set")
	}
}
