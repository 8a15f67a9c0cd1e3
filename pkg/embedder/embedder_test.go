package embedder

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/kadirpekel/portfolio/pkg/ratelimit"
)

func TestEstimate_Empty(t *testing.T) {
	if got := Estimate(""); got != 0 {
		t.Errorf("expected 0 tokens for empty string, got %d", got)
	}
}

func TestEstimate_NonEmptyIsAtLeastOne(t *testing.T) {
	for _, text := range []string{"a", "ab", "abc", "word"} {
		if got := Estimate(text); got < 1 {
			t.Errorf("expected at least 1 token for %q, got %d", text, got)
		}
	}
}

func TestEstimate_ApproximatesQuarterLength(t *testing.T) {
	text := strings.Repeat("a", 400)
	if got := Estimate(text); got != 100 {
		t.Errorf("expected 100 tokens for 400 ASCII chars, got %d", got)
	}
}

func TestStatic_Deterministic(t *testing.T) {
	e := NewStatic(16)

	first, err := e.Embed(context.Background(), "hello world", Options{})
	if err != nil {
		t.Fatalf("embed failed: %v", err)
	}
	second, err := e.Embed(context.Background(), "hello world", Options{})
	if err != nil {
		t.Fatalf("embed failed: %v", err)
	}

	if len(first.Vector) != 16 {
		t.Fatalf("expected 16 dimensions, got %d", len(first.Vector))
	}
	for i := range first.Vector {
		if first.Vector[i] != second.Vector[i] {
			t.Fatalf("vectors differ at %d: %f vs %f", i, first.Vector[i], second.Vector[i])
		}
	}
}

func TestStatic_UnitNorm(t *testing.T) {
	e := NewStatic(32)

	embedding, err := e.Embed(context.Background(), "normalize me", Options{})
	if err != nil {
		t.Fatalf("embed failed: %v", err)
	}

	var norm float64
	for _, v := range embedding.Vector {
		norm += float64(v) * float64(v)
	}
	if math.Abs(math.Sqrt(norm)-1.0) > 1e-5 {
		t.Errorf("expected unit norm, got %f", math.Sqrt(norm))
	}
}

func TestStatic_PinnedVectors(t *testing.T) {
	e := NewStatic(3)
	e.Vectors = map[string][]float32{
		"alpha": {1, 0, 0},
	}

	embedding, err := e.Embed(context.Background(), "alpha", Options{})
	if err != nil {
		t.Fatalf("embed failed: %v", err)
	}
	if embedding.Vector[0] != 1 || embedding.Vector[1] != 0 || embedding.Vector[2] != 0 {
		t.Errorf("expected pinned vector, got %v", embedding.Vector)
	}
}

func TestStatic_EmbedBatchPreservesOrder(t *testing.T) {
	e := NewStatic(8)
	texts := []string{"one", "two", "three"}

	result, err := e.EmbedBatch(context.Background(), texts, Options{})
	if err != nil {
		t.Fatalf("batch failed: %v", err)
	}
	if len(result.Embeddings) != 3 {
		t.Fatalf("expected 3 embeddings, got %d", len(result.Embeddings))
	}

	for i, text := range texts {
		single, err := e.Embed(context.Background(), text, Options{})
		if err != nil {
			t.Fatalf("embed failed: %v", err)
		}
		for d := range single.Vector {
			if result.Embeddings[i].Vector[d] != single.Vector[d] {
				t.Fatalf("batch order broken at item %d", i)
			}
		}
	}

	if result.TotalTokens < 3 {
		t.Errorf("expected at least 1 token per text, got %d total", result.TotalTokens)
	}
}

func TestInstrumented_ReturnsBackoffError(t *testing.T) {
	limiter, err := ratelimit.NewLimiter(ratelimit.Config{
		Enabled: true,
		Default: ratelimit.Rule{RequestsPerSecond: 0.001, Burst: 1},
	})
	if err != nil {
		t.Fatalf("failed to create limiter: %v", err)
	}

	e := Instrument(NewStatic(4), limiter)

	if _, err := e.Embed(context.Background(), "first", Options{}); err != nil {
		t.Fatalf("first call should pass: %v", err)
	}

	_, err = e.Embed(context.Background(), "second", Options{})
	if !errors.Is(err, ratelimit.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestHeuristicSizer_MatchesEstimate(t *testing.T) {
	sizer := HeuristicSizer{}
	for _, text := range []string{"", "x", "hello world, hello tokens"} {
		if sizer.Estimate(text) != Estimate(text) {
			t.Errorf("sizer and Estimate disagree on %q", text)
		}
	}
}
