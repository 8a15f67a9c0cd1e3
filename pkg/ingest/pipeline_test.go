package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kadirpekel/portfolio/pkg/chunker"
	"github.com/kadirpekel/portfolio/pkg/embedder"
	"github.com/kadirpekel/portfolio/pkg/ratelimit"
	relstore "github.com/kadirpekel/portfolio/pkg/store"
	"github.com/kadirpekel/portfolio/pkg/vector"
)

func writeTestFiles(t *testing.T, contents map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range contents {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func newTestStore(t *testing.T) *vector.MemoryStore {
	t.Helper()
	store := vector.NewMemoryStore()
	if err := store.CreateIndex(context.Background(), "docs", vector.Index{Dimensions: 8}); err != nil {
		t.Fatal(err)
	}
	return store
}

func TestPipeline_Run(t *testing.T) {
	ctx := context.Background()
	dir := writeTestFiles(t, map[string]string{
		"one.txt": "the quick brown fox jumps over the lazy dog",
		"two.txt": "pack my box with five dozen liquor jugs",
	})
	store := newTestStore(t)

	pipeline, err := NewPipeline(embedder.NewStatic(8), store, nil, Config{
		Workers:      2,
		BatchSize:    10,
		BatchTimeout: 100 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("failed to create pipeline: %v", err)
	}

	files, err := Discover([]string{filepath.Join(dir, "*.txt")})
	if err != nil {
		t.Fatal(err)
	}

	stats, err := pipeline.Run(ctx, "docs", files)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if stats.Files != 2 || stats.FailedFiles != 0 {
		t.Errorf("expected 2 files and no failures, got %+v", stats)
	}
	if stats.Stored != stats.Chunks || stats.Stored == 0 {
		t.Errorf("every chunk must be stored: %+v", stats)
	}

	indexStats, err := store.IndexStats(ctx, "docs")
	if err != nil {
		t.Fatal(err)
	}
	if indexStats.Count != stats.Stored {
		t.Errorf("store holds %d items, stats claim %d", indexStats.Count, stats.Stored)
	}
}

func TestPipeline_StoredItemsCarryMetadata(t *testing.T) {
	ctx := context.Background()
	dir := writeTestFiles(t, map[string]string{
		"doc.txt": "portfolio indexes documents for retrieval",
	})
	store := newTestStore(t)
	emb := embedder.NewStatic(8)

	pipeline, err := NewPipeline(emb, store, nil, Config{Workers: 1, BatchSize: 1})
	if err != nil {
		t.Fatal(err)
	}
	files, _ := Discover([]string{filepath.Join(dir, "*.txt")})
	if _, err := pipeline.Run(ctx, "docs", files); err != nil {
		t.Fatal(err)
	}

	query, err := emb.Embed(ctx, "portfolio indexes documents for retrieval", embedder.Options{})
	if err != nil {
		t.Fatal(err)
	}
	results, err := store.Search(ctx, "docs", query.Vector, 1, vector.SearchOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("expected one result, got %d", len(results))
	}

	metadata := results[0].Metadata
	if metadata["content"] != "portfolio indexes documents for retrieval" {
		t.Errorf("content metadata missing: %v", metadata)
	}
	if source, _ := metadata["source"].(string); !strings.HasSuffix(source, "doc.txt") {
		t.Errorf("source metadata missing: %v", metadata)
	}
	if _, ok := metadata["token_count"]; !ok {
		t.Errorf("token_count metadata missing: %v", metadata)
	}
}

func TestPipeline_FailedFileDoesNotStopRun(t *testing.T) {
	ctx := context.Background()
	dir := writeTestFiles(t, map[string]string{
		"good.txt": "readable content",
	})
	store := newTestStore(t)

	pipeline, err := NewPipeline(embedder.NewStatic(8), store, nil, Config{Workers: 2, BatchSize: 10})
	if err != nil {
		t.Fatal(err)
	}

	files := []FileItem{
		{Path: filepath.Join(dir, "missing.txt"), Type: TypeText},
		{Path: filepath.Join(dir, "good.txt"), Type: TypeText},
	}

	stats, err := pipeline.Run(ctx, "docs", files)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if stats.Files != 2 || stats.FailedFiles != 1 {
		t.Errorf("expected 1 failed file out of 2, got %+v", stats)
	}
	if stats.Stored == 0 {
		t.Error("good file must still be stored")
	}
}

func TestPipeline_RateLimitedChunksAreRetried(t *testing.T) {
	ctx := context.Background()
	dir := writeTestFiles(t, map[string]string{
		"a.txt": "alpha content",
		"b.txt": "bravo content",
		"c.txt": "charlie content",
	})
	store := newTestStore(t)

	limiter, err := ratelimit.NewLimiter(ratelimit.Config{
		Enabled: true,
		Rules: map[string]ratelimit.Rule{
			"static/embedding": {RequestsPerSecond: 100, Burst: 1},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	pipeline, err := NewPipeline(embedder.NewStatic(8), store, limiter, Config{
		Workers:      4,
		BatchSize:    10,
		BatchTimeout: 50 * time.Millisecond,
	})
	if err != nil {
		t.Fatal(err)
	}

	files, _ := Discover([]string{filepath.Join(dir, "*.txt")})
	stats, err := pipeline.Run(ctx, "docs", files)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if stats.RateLimited == 0 {
		t.Error("burst of 1 must deny at least one concurrent chunk")
	}
	if stats.Stored != stats.Chunks {
		t.Errorf("denied chunks must be retried until stored: %+v", stats)
	}
}

func TestPipeline_LargeInputChunksInTokens(t *testing.T) {
	ctx := context.Background()
	dir := writeTestFiles(t, map[string]string{
		"big.txt": strings.Repeat("a", 1000),
	})
	store := newTestStore(t)

	pipeline, err := NewPipeline(embedder.NewStatic(8), store, nil, Config{
		Workers:   1,
		BatchSize: 100,
		Chunker: chunker.Config{
			Strategy:     chunker.StrategyCharacter,
			ChunkSize:    100,
			ChunkOverlap: 10,
			SizeUnit:     chunker.UnitTokens,
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	files, _ := Discover([]string{filepath.Join(dir, "*.txt")})
	stats, err := pipeline.Run(ctx, "docs", files)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	// 1000 chars at ~4 chars per token is ~250 tokens, so a 100-token
	// chunk size must produce more than one chunk.
	if stats.Chunks < 2 {
		t.Errorf("expected multiple chunks, got %d", stats.Chunks)
	}
	if stats.Stored != stats.Chunks {
		t.Errorf("every chunk must be stored: %+v", stats)
	}
}

func TestPipeline_RepositoryBookkeeping(t *testing.T) {
	ctx := context.Background()
	dir := writeTestFiles(t, map[string]string{
		"doc.txt": "relational rows track this document",
	})
	store := newTestStore(t)
	repo := relstore.NewMemoryRepository()
	collection, err := repo.CreateCollection(ctx, "docs", nil)
	if err != nil {
		t.Fatal(err)
	}

	pipeline, err := NewPipeline(embedder.NewStatic(8), store, nil, Config{Workers: 1, BatchSize: 10})
	if err != nil {
		t.Fatal(err)
	}
	pipeline.WithRepository(repo, collection.ID)

	files, _ := Discover([]string{filepath.Join(dir, "*.txt")})
	stats, err := pipeline.Run(ctx, "docs", files)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	docs, err := repo.ListDocuments(ctx, relstore.DocumentFilter{CollectionID: collection.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected one document record, got %d", len(docs))
	}
	if docs[0].Status != relstore.StatusCompleted {
		t.Errorf("document status = %q, want completed", docs[0].Status)
	}
	if docs[0].ChunkCount != stats.Chunks {
		t.Errorf("chunk count = %d, stats counted %d", docs[0].ChunkCount, stats.Chunks)
	}

	chunks, err := repo.ListChunks(ctx, relstore.ChunkFilter{DocumentID: docs[0].ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != stats.Chunks {
		t.Fatalf("expected %d chunk rows, got %d", stats.Chunks, len(chunks))
	}
	for _, chunk := range chunks {
		if chunk.Embedding == nil {
			t.Errorf("chunk %d has no embedding recorded", chunk.ChunkIndex)
		}
	}

	// Re-ingesting the identical file dedups on content hash.
	again, err := pipeline.Run(ctx, "docs", files)
	if err != nil {
		t.Fatal(err)
	}
	if again.SkippedFiles != 1 || again.Chunks != 0 {
		t.Errorf("unchanged file must be skipped, got %+v", again)
	}
}

func TestWatcherEmitsCreatedFiles(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dir := t.TempDir()
	watcher, err := NewWatcher(ctx, dir)
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}

	path := filepath.Join(dir, "new.txt")
	if err := os.WriteFile(path, []byte("fresh content"), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(3 * time.Second)
	for {
		select {
		case item := <-watcher.Items():
			if item.Path == path {
				if item.Type != TypeText {
					t.Errorf("expected text type, got %q", item.Type)
				}
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for watch event")
		}
	}
}
