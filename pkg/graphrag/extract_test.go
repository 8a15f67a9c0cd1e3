package graphrag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kadirpekel/portfolio/pkg/llm"
)

func TestParseExtraction(t *testing.T) {
	content := `Here are the results:
{"entities": [
	{"name": "Parser", "type": "Class", "description": "parses queries"},
	{"name": "", "type": "Class"},
	{"name": "Untyped"}
],
"relationships": [
	{"source": "Parser", "target": "Untyped", "type": "USES"},
	{"source": "", "target": "Untyped", "type": "USES"},
	{"source": "Parser", "target": "Lexer"}
]}
Let me know if you need more.`

	extraction, err := parseExtraction(content)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	if len(extraction.Entities) != 2 {
		t.Fatalf("nameless entity must be dropped, got %v", extraction.Entities)
	}
	if extraction.Entities[1].Type != EntityOther {
		t.Errorf("missing type must default to Other, got %s", extraction.Entities[1].Type)
	}
	if len(extraction.Relationships) != 2 {
		t.Fatalf("sourceless relationship must be dropped, got %v", extraction.Relationships)
	}
	if extraction.Relationships[1].Type != RelRelatedTo {
		t.Errorf("missing type must default to RELATED_TO, got %s", extraction.Relationships[1].Type)
	}
}

func TestParseExtraction_NoJSON(t *testing.T) {
	if _, err := parseExtraction("I could not find any entities."); err == nil {
		t.Fatal("expected error for prose without JSON")
	}
}

func TestBraceRegion_IgnoresBracesInStrings(t *testing.T) {
	region := braceRegion(`{"name": "has { brace"} trailing`)
	if region != `{"name": "has { brace"}` {
		t.Errorf("unexpected region: %s", region)
	}
}

func TestExtractor_Extract(t *testing.T) {
	mock := llm.NewMock(`{"entities": [{"name": "A", "type": "Concept"}], "relationships": []}`)
	extractor, err := NewExtractor(mock, ExtractorConfig{})
	if err != nil {
		t.Fatalf("failed to create extractor: %v", err)
	}

	extraction, err := extractor.Extract(context.Background(), "some text")
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if len(extraction.Entities) != 1 || extraction.Entities[0].Name != "A" {
		t.Errorf("unexpected extraction: %+v", extraction)
	}
}

func TestExtractor_BatchSkipsFailedChunks(t *testing.T) {
	mock := llm.NewMock()
	mock.RespondFunc = func(messages []llm.Message) (string, error) {
		if strings.Contains(messages[1].Content, "bad") {
			return "", errors.New("provider error")
		}
		return `{"entities": [{"name": "A", "type": "Concept"}], "relationships": []}`, nil
	}

	extractor, _ := NewExtractor(mock, ExtractorConfig{MaxConcurrency: 2, RateLimit: 1})
	extraction, err := extractor.ExtractBatch(context.Background(), []string{"good one", "bad one", "good two"})
	if err != nil {
		t.Fatalf("batch must succeed despite chunk failures: %v", err)
	}
	if extraction.Failed != 1 {
		t.Errorf("expected 1 failed chunk, got %d", extraction.Failed)
	}
	if len(extraction.Entities) != 2 {
		t.Errorf("expected entities from the good chunks, got %v", extraction.Entities)
	}
}
