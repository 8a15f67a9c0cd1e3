package telemetry

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

type captureHandler struct {
	mu     sync.Mutex
	events []Event
}

func (h *captureHandler) Handle(ctx context.Context, event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
}

func (h *captureHandler) snapshot() []Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Event, len(h.events))
	copy(out, h.events)
	return out
}

func TestSpan_EmitsStartStop(t *testing.T) {
	ResetHandlers()
	defer ResetHandlers()

	capture := &captureHandler{}
	RegisterHandler(capture)

	err := Span(context.Background(), EventLLMComplete, map[string]any{"model": "test"}, func(ctx context.Context) error {
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	events := capture.snapshot()
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Phase != PhaseStart {
		t.Errorf("expected start phase, got %s", events[0].Phase)
	}
	if events[1].Phase != PhaseStop {
		t.Errorf("expected stop phase, got %s", events[1].Phase)
	}
	if events[1].Duration < 0 {
		t.Errorf("expected non-negative duration")
	}
}

func TestSpan_EmitsExceptionOnError(t *testing.T) {
	ResetHandlers()
	defer ResetHandlers()

	capture := &captureHandler{}
	RegisterHandler(capture)

	wantErr := errors.New("provider unavailable")
	err := Span(context.Background(), EventEmbedderEmbed, nil, func(ctx context.Context) error {
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected error to propagate, got %v", err)
	}

	events := capture.snapshot()
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[1].Phase != PhaseException {
		t.Errorf("expected exception phase, got %s", events[1].Phase)
	}
	if events[1].Err == nil {
		t.Errorf("expected error on exception event")
	}
}

func TestSpan_MetadataSharedAcrossPair(t *testing.T) {
	ResetHandlers()
	defer ResetHandlers()

	capture := &captureHandler{}
	RegisterHandler(capture)

	meta := map[string]any{}
	_ = Span(context.Background(), EventRAGSearch, meta, func(ctx context.Context) error {
		meta["result_count"] = 7
		return nil
	})

	events := capture.snapshot()
	if got := events[1].Metadata["result_count"]; got != 7 {
		t.Errorf("expected result_count=7 on stop event, got %v", got)
	}
}

func TestTextHandler_Format(t *testing.T) {
	var buf bytes.Buffer
	h := NewTextHandler(&buf)

	h.Handle(context.Background(), Event{
		Name:     EventLLMComplete,
		Phase:    PhaseStop,
		Duration: 1230 * time.Millisecond,
		Metadata: map[string]any{
			"model":           "gpt-4o-mini",
			"response_length": 532,
			"prompt_length":   1840,
		},
		Time: time.Now(),
	})

	line := buf.String()
	for _, want := range []string{"[Portfolio]", "llm.complete", "completed in 1.23s", "[gpt-4o-mini]", "ok", "(532 chars)", "prompt=1840chars"} {
		if !strings.Contains(line, want) {
			t.Errorf("expected line to contain %q, got %q", want, line)
		}
	}
}

func TestTextHandler_SuppressesStart(t *testing.T) {
	var buf bytes.Buffer
	h := NewTextHandler(&buf)

	h.Handle(context.Background(), Event{Name: EventRAGSearch, Phase: PhaseStart})
	if buf.Len() != 0 {
		t.Errorf("expected no output for start events, got %q", buf.String())
	}
}

func TestTextHandler_MillisecondFormat(t *testing.T) {
	var buf bytes.Buffer
	h := NewTextHandler(&buf)

	h.Handle(context.Background(), Event{
		Name:     EventVectorSearch,
		Phase:    PhaseStop,
		Duration: 42 * time.Millisecond,
	})

	if !strings.Contains(buf.String(), "42ms") {
		t.Errorf("expected millisecond format, got %q", buf.String())
	}
}

func TestJSONHandler_EncodesEvent(t *testing.T) {
	var buf bytes.Buffer
	h := NewJSONHandler(&buf)

	h.Handle(context.Background(), Event{
		Name:     EventRAGRerank,
		Phase:    PhaseStop,
		Duration: 10 * time.Millisecond,
		Metadata: map[string]any{"kept": 5},
		Time:     time.Now(),
	})

	out := buf.String()
	if !strings.Contains(out, `"event":"portfolio.rag.rerank"`) {
		t.Errorf("expected namespaced event name, got %q", out)
	}
	if !strings.Contains(out, `"phase":"stop"`) {
		t.Errorf("expected stop phase, got %q", out)
	}
}
