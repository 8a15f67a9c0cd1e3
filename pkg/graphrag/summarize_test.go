package graphrag

import (
	"context"
	"errors"
	"testing"

	"github.com/kadirpekel/portfolio/pkg/embedder"
	"github.com/kadirpekel/portfolio/pkg/llm"
)

func TestSummarizer_Summarize(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryGraphStore()
	seedTriangle(t, store, "g")

	community := Community{ID: "community_0", Level: 0, Members: []string{"A", "B", "C"}}
	if err := store.CreateCommunity(ctx, "g", community); err != nil {
		t.Fatal(err)
	}

	mock := llm.NewMock("A, B, and C form a tightly connected cluster.")
	summarizer, err := NewSummarizer(mock, embedder.NewStatic(3), ExtractorConfig{RateLimit: 1})
	if err != nil {
		t.Fatalf("failed to create summarizer: %v", err)
	}

	if err := summarizer.Summarize(ctx, store, "g", community); err != nil {
		t.Fatalf("summarize failed: %v", err)
	}

	communities, _ := store.ListCommunities(ctx, "g", 0)
	if len(communities) != 1 {
		t.Fatalf("expected one community, got %d", len(communities))
	}
	if communities[0].Summary != "A, B, and C form a tightly connected cluster." {
		t.Errorf("summary not persisted: %q", communities[0].Summary)
	}
	if communities[0].Embedding == nil {
		t.Error("summary embedding not persisted")
	}
}

func TestSummarizer_SummarizeAllReturnsWrittenCount(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryGraphStore()
	seedTriangle(t, store, "g")

	for _, id := range []string{"community_0", "community_1"} {
		if err := store.CreateCommunity(ctx, "g", Community{ID: id, Level: 0, Members: []string{"A"}}); err != nil {
			t.Fatal(err)
		}
	}

	mock := llm.NewMock("a summary", "another summary")
	summarizer, _ := NewSummarizer(mock, embedder.NewStatic(3), ExtractorConfig{MaxConcurrency: 2, RateLimit: 1})

	summarized, err := summarizer.SummarizeAll(ctx, store, "g", 0)
	if err != nil {
		t.Fatalf("summarize all failed: %v", err)
	}
	if summarized != 2 {
		t.Errorf("expected 2 summaries written, got %d", summarized)
	}

	communities, _ := store.ListCommunities(ctx, "g", 0)
	for _, community := range communities {
		if community.Summary == "" {
			t.Errorf("community %s has no summary", community.ID)
		}
	}
}

func TestSummarizer_SummarizeAllSkipsFailures(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryGraphStore()
	seedTriangle(t, store, "g")

	for _, id := range []string{"community_0", "community_1"} {
		if err := store.CreateCommunity(ctx, "g", Community{ID: id, Level: 0, Members: []string{"A"}}); err != nil {
			t.Fatal(err)
		}
	}

	mock := llm.NewMock()
	mock.Err = errors.New("provider down")
	summarizer, _ := NewSummarizer(mock, embedder.NewStatic(3), ExtractorConfig{MaxConcurrency: 2, RateLimit: 1})

	summarized, err := summarizer.SummarizeAll(ctx, store, "g", 0)
	if err != nil {
		t.Fatalf("batch must not fail outright: %v", err)
	}
	if summarized != 0 {
		t.Errorf("expected no summaries written, got %d", summarized)
	}
}
