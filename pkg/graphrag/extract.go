// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package graphrag

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kadirpekel/portfolio/pkg/llm"
	"github.com/kadirpekel/portfolio/pkg/logger"
	"github.com/kadirpekel/portfolio/pkg/telemetry"
)

const extractPrompt = `Extract entities and relationships from the text.

Allowed entity types: Module, Class, Function, Variable, Concept,
Person, Organization, Other.
Allowed relationship types: CALLS, USES, EXTENDS, IMPLEMENTS, CONTAINS,
DEPENDS_ON, RELATED_TO, CREATED_BY.

Respond with a JSON object of the form:
{"entities": [{"name": "...", "type": "...", "description": "..."}],
 "relationships": [{"source": "...", "target": "...", "type": "...",
 "description": "..."}]}`

// ExtractorConfig tunes batch extraction.
type ExtractorConfig struct {
	// MaxConcurrency bounds parallel LLM calls. Default: 5.
	MaxConcurrency int `yaml:"max_concurrency,omitempty"`

	// RateLimit is the pause between launched chunks. Default: 100ms.
	RateLimit time.Duration `yaml:"rate_limit,omitempty"`
}

// SetDefaults applies default values.
func (c *ExtractorConfig) SetDefaults() {
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = 5
	}
	if c.RateLimit <= 0 {
		c.RateLimit = 100 * time.Millisecond
	}
}

// Extraction is the outcome of extracting one or more chunks.
type Extraction struct {
	Entities      []Entity
	Relationships []Relationship

	// Failed counts chunks whose extraction failed and was skipped.
	Failed int
}

// Extractor pulls entities and relationships out of text with an LLM.
type Extractor struct {
	llm llm.Provider
	cfg ExtractorConfig
}

// NewExtractor creates an entity extractor.
func NewExtractor(provider llm.Provider, cfg ExtractorConfig) (*Extractor, error) {
	if provider == nil {
		return nil, fmt.Errorf("LLM provider is required")
	}
	cfg.SetDefaults()
	return &Extractor{llm: provider, cfg: cfg}, nil
}

// Extract processes one chunk of text. Records without a name are
// dropped silently.
func (e *Extractor) Extract(ctx context.Context, text string) (*Extraction, error) {
	var out *Extraction
	metadata := map[string]any{"text_length": len(text)}
	err := telemetry.Span(ctx, telemetry.EventGraphExtract, metadata, func(ctx context.Context) error {
		completion, err := e.llm.Complete(ctx, []llm.Message{
			llm.System(extractPrompt),
			llm.User(text),
		}, llm.Options{JSONMode: true})
		if err != nil {
			return err
		}

		parsed, err := parseExtraction(completion.Content)
		if err != nil {
			return err
		}
		out = parsed
		metadata["entities"] = len(out.Entities)
		metadata["relationships"] = len(out.Relationships)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ExtractBatch processes chunks with bounded concurrency. Individual
// chunk failures are logged and counted, not returned.
func (e *Extractor) ExtractBatch(ctx context.Context, chunks []string) (*Extraction, error) {
	var (
		mu     sync.Mutex
		merged Extraction
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.MaxConcurrency)

	for i, chunk := range chunks {
		if err := gctx.Err(); err != nil {
			break
		}
		g.Go(func() error {
			extraction, err := e.Extract(gctx, chunk)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logger.GetLogger().Warn("chunk extraction failed, skipping",
					"chunk", i, "error", err)
				merged.Failed++
				return nil
			}
			merged.Entities = append(merged.Entities, extraction.Entities...)
			merged.Relationships = append(merged.Relationships, extraction.Relationships...)
			return nil
		})

		// Pace launches to stay under provider rate limits.
		if i < len(chunks)-1 {
			time.Sleep(e.cfg.RateLimit)
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &merged, nil
}

// parseExtraction tolerates prose around the JSON object by matching
// the first balanced brace region.
func parseExtraction(content string) (*Extraction, error) {
	region := braceRegion(content)
	if region == "" {
		return nil, fmt.Errorf("no JSON object in extraction response")
	}

	var parsed struct {
		Entities      []Entity       `json:"entities"`
		Relationships []Relationship `json:"relationships"`
	}
	if err := json.Unmarshal([]byte(region), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse extraction response: %w", err)
	}

	out := &Extraction{}
	for _, entity := range parsed.Entities {
		if entity.Name == "" {
			continue
		}
		if entity.Type == "" {
			entity.Type = EntityOther
		}
		out.Entities = append(out.Entities, entity)
	}
	for _, rel := range parsed.Relationships {
		if rel.Source == "" || rel.Target == "" {
			continue
		}
		if rel.Type == "" {
			rel.Type = RelRelatedTo
		}
		out.Relationships = append(out.Relationships, rel)
	}
	return out, nil
}

// braceRegion returns the first balanced {...} region, ignoring braces
// inside string literals.
func braceRegion(text string) string {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}
