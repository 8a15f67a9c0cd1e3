package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kadirpekel/portfolio/pkg/llm"
)

// insufficientMock answers every sufficiency judgement with false and
// every other call with a fresh query.
func insufficientMock() *llm.Mock {
	mock := llm.NewMock()
	mock.RespondFunc = func(messages []llm.Message) (string, error) {
		if strings.Contains(messages[0].Content, "Judge whether") {
			return `{"sufficient": false, "reasoning": "too sparse"}`, nil
		}
		return "improved query", nil
	}
	return mock
}

func TestSearchLoop_StopsAtMaxIterations(t *testing.T) {
	loop, err := NewSearchLoop(insufficientMock())
	if err != nil {
		t.Fatalf("failed to create loop: %v", err)
	}

	searches := 0
	search := func(ctx context.Context, query string) ([]Result, error) {
		searches++
		return []Result{{ID: "r", Content: "text", Score: 0.5}}, nil
	}

	out := loop.Run(context.Background(), New("q"), search, SearchLoopOptions{MaxIterations: 2})
	if out.Halted {
		t.Fatal("bounded loop must not halt")
	}
	if searches != 2 {
		t.Errorf("expected 2 search attempts, got %d", searches)
	}
	if out.CorrectionCount > 2 {
		t.Errorf("correction count exceeds iterations: %d", out.CorrectionCount)
	}
	if len(out.Results) != 1 {
		t.Errorf("expected last results kept, got %v", out.Results)
	}
}

func TestSearchLoop_SufficientStopsEarly(t *testing.T) {
	mock := llm.NewMock(`{"sufficient": true}`)
	loop, _ := NewSearchLoop(mock)

	searches := 0
	search := func(ctx context.Context, query string) ([]Result, error) {
		searches++
		return []Result{{ID: "r"}}, nil
	}

	out := loop.Run(context.Background(), New("q"), search, SearchLoopOptions{})
	if searches != 1 {
		t.Errorf("expected a single search, got %d", searches)
	}
	if out.CorrectionCount != 0 {
		t.Errorf("expected no corrections, got %d", out.CorrectionCount)
	}
}

func TestSearchLoop_SearchErrorHalts(t *testing.T) {
	boom := errors.New("store down")
	loop, _ := NewSearchLoop(llm.NewMock())

	out := loop.Run(context.Background(), New("q"), func(ctx context.Context, query string) ([]Result, error) {
		return nil, boom
	}, SearchLoopOptions{})

	if !out.Halted || !errors.Is(out.Err, boom) {
		t.Fatalf("expected halted context, got %+v", out)
	}
}

func TestSearchLoop_JudgeErrorFailsOpen(t *testing.T) {
	mock := llm.NewMock()
	mock.Err = errors.New("judge down")
	loop, _ := NewSearchLoop(mock)

	out := loop.Run(context.Background(), New("q"), func(ctx context.Context, query string) ([]Result, error) {
		return []Result{{ID: "r"}}, nil
	}, SearchLoopOptions{})

	if out.Halted {
		t.Fatal("judge failure must fail open")
	}
	if len(out.Results) != 1 {
		t.Errorf("expected results kept, got %v", out.Results)
	}
}

func TestSearchLoop_EmptyResultsTriggerRewrite(t *testing.T) {
	mock := llm.NewMock("better query", `{"sufficient": true}`)
	loop, _ := NewSearchLoop(mock)

	var queries []string
	search := func(ctx context.Context, query string) ([]Result, error) {
		queries = append(queries, query)
		if len(queries) == 1 {
			return nil, nil
		}
		return []Result{{ID: "r"}}, nil
	}

	out := loop.Run(context.Background(), New("q"), search, SearchLoopOptions{MinResults: 1})
	if len(queries) != 2 || queries[1] != "better query" {
		t.Fatalf("expected rewritten second query, got %v", queries)
	}
	if out.CorrectionCount != 1 {
		t.Errorf("expected 1 correction, got %d", out.CorrectionCount)
	}
	if len(out.Corrections) != 1 || out.Corrections[0].Query != "better query" {
		t.Errorf("correction history missing: %v", out.Corrections)
	}
}

func TestAnswerer_GroundedFirstTry(t *testing.T) {
	mock := llm.NewMock("the answer", `{"grounded": true, "score": 0.9}`)
	answerer, err := NewAnswerer(mock)
	if err != nil {
		t.Fatalf("failed to create answerer: %v", err)
	}

	pc := New("q")
	pc.Results = []Result{{ID: "r", Content: "supporting text"}}
	out := answerer.Run(context.Background(), pc, AnswerOptions{})

	if out.Answer != "the answer" {
		t.Errorf("unexpected answer: %q", out.Answer)
	}
	if out.Grounding == nil || !out.Grounding.Grounded {
		t.Errorf("expected grounded verdict, got %+v", out.Grounding)
	}
	if out.CorrectionCount != 0 {
		t.Errorf("expected no corrections, got %d", out.CorrectionCount)
	}
}

func TestAnswerer_UngroundedRetriesUpToCap(t *testing.T) {
	generations := 0
	mock := llm.NewMock()
	mock.RespondFunc = func(messages []llm.Message) (string, error) {
		if strings.Contains(messages[0].Content, "grounded") {
			return `{"grounded": false, "reasoning": "made up"}`, nil
		}
		generations++
		return "attempt", nil
	}
	answerer, _ := NewAnswerer(mock)

	pc := New("q")
	pc.Results = []Result{{ID: "r", Content: "text"}}
	out := answerer.Run(context.Background(), pc, AnswerOptions{MaxCorrections: 2})

	if out.Halted {
		t.Fatal("capped retries must not halt")
	}
	if generations != 3 {
		t.Errorf("expected initial attempt plus 2 retries, got %d", generations)
	}
	if out.CorrectionCount != 2 {
		t.Errorf("expected 2 corrections, got %d", out.CorrectionCount)
	}
	if len(out.Corrections) != 2 {
		t.Errorf("expected correction history, got %v", out.Corrections)
	}
}

func TestAnswerer_GenerationErrorHalts(t *testing.T) {
	mock := llm.NewMock()
	mock.Err = errors.New("provider down")
	answerer, _ := NewAnswerer(mock)

	out := answerer.Run(context.Background(), New("q"), AnswerOptions{})
	if !out.Halted {
		t.Fatal("generation failure must halt")
	}
}
