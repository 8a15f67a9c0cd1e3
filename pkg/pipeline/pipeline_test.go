package pipeline

import (
	"context"
	"errors"
	"testing"
)

func TestContext_EffectiveQuery(t *testing.T) {
	pc := New("what is a monad")
	if pc.EffectiveQuery() != "what is a monad" {
		t.Errorf("expected question, got %q", pc.EffectiveQuery())
	}

	pc.RewrittenQuery = "monad definition"
	if pc.EffectiveQuery() != "monad definition" {
		t.Errorf("expected rewritten query, got %q", pc.EffectiveQuery())
	}

	pc.ExpandedQuery = "monad monoid endofunctor definition"
	if pc.EffectiveQuery() != "monad monoid endofunctor definition" {
		t.Errorf("expected expanded query, got %q", pc.EffectiveQuery())
	}
}

func TestRun_HaltShortCircuits(t *testing.T) {
	boom := errors.New("boom")
	var reached bool

	out := Run(context.Background(), New("q"),
		func(ctx context.Context, pc Context) Context { return pc.Halt(boom) },
		func(ctx context.Context, pc Context) Context {
			reached = true
			return pc
		},
	)

	if !out.Halted || !errors.Is(out.Err, boom) {
		t.Fatalf("expected halted context with error, got %+v", out)
	}
	if reached {
		t.Error("stage after halt should not run")
	}
}

func TestRun_StagesDoNotMutateInput(t *testing.T) {
	in := New("q")
	out := Run(context.Background(), in, func(ctx context.Context, pc Context) Context {
		pc.RewrittenQuery = "changed"
		return pc
	})

	if in.RewrittenQuery != "" {
		t.Error("input context was mutated")
	}
	if out.RewrittenQuery != "changed" {
		t.Error("stage result was lost")
	}
}

func TestDecodeOpts(t *testing.T) {
	opts, err := DecodeOpts[RerankOptions](map[string]any{
		"top_n":     3,
		"threshold": 0.5,
	})
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if opts.TopN != 3 || opts.Threshold != 0.5 {
		t.Errorf("unexpected options: %+v", opts)
	}
}

func TestExtractJSON(t *testing.T) {
	var obj struct {
		Sufficient bool `json:"sufficient"`
	}
	text := `Sure! Here is the verdict: {"sufficient": true} as requested.`
	if err := extractJSON(text, &obj); err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if !obj.Sufficient {
		t.Error("expected sufficient=true")
	}

	var arr []struct {
		Index int `json:"index"`
	}
	if err := extractJSON(`scores: [{"index": 2}]`, &arr); err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if len(arr) != 1 || arr[0].Index != 2 {
		t.Errorf("unexpected array: %v", arr)
	}

	// A bare top-level array of objects decodes as the array, not as
	// its first element.
	var scored []struct {
		Index int     `json:"index"`
		Score float32 `json:"score"`
	}
	if err := extractJSON(`[{"index": 0, "score": 7}, {"index": 1, "score": 3}]`, &scored); err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if len(scored) != 2 || scored[1].Score != 3 {
		t.Errorf("unexpected scores: %v", scored)
	}

	// A bracket in prose before the object falls back to the object
	// region.
	var verdict struct {
		Grounded bool `json:"grounded"`
	}
	if err := extractJSON(`Passage [0] supports it: {"grounded": true}`, &verdict); err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if !verdict.Grounded {
		t.Error("expected grounded=true")
	}

	if err := extractJSON("not valid JSON", &obj); err == nil {
		t.Error("expected error for prose without JSON")
	}

	// Braces inside string literals must not end the region early.
	var nested struct {
		Text string `json:"text"`
	}
	if err := extractJSON(`{"text": "closing } brace"}`, &nested); err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if nested.Text != "closing } brace" {
		t.Errorf("unexpected text: %q", nested.Text)
	}
}
