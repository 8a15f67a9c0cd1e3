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

// Package chunker partitions document text into overlapping chunks
// sized in characters or estimated tokens.
package chunker

import (
	"fmt"

	"github.com/kadirpekel/portfolio/pkg/embedder"
	"github.com/kadirpekel/portfolio/pkg/registry"
)

// Chunk is one span of a document.
type Chunk struct {
	Content    string
	Index      int
	StartChar  int
	EndChar    int
	TokenCount int
	Metadata   map[string]any
}

// SizeUnit selects how chunk sizes are measured.
type SizeUnit string

const (
	UnitCharacters SizeUnit = "characters"
	UnitTokens     SizeUnit = "tokens"
)

// Strategy selects how text is split into candidate pieces before
// accumulation.
type Strategy string

const (
	StrategyCharacter Strategy = "character"
	StrategySentence  Strategy = "sentence"
	StrategyParagraph Strategy = "paragraph"
	StrategyMarkdown  Strategy = "markdown"
	StrategyRecursive Strategy = "recursive"
	StrategySemantic  Strategy = "semantic"
)

// Sizer measures a piece of text in the configured unit.
type Sizer func(text string) int

// Config tunes chunking.
type Config struct {
	// Strategy selects the splitter. Default: recursive.
	Strategy Strategy `yaml:"strategy,omitempty"`

	// ChunkSize is the target chunk size in SizeUnit. Default: 1000.
	ChunkSize int `yaml:"chunk_size,omitempty"`

	// ChunkOverlap is how much of each chunk's tail repeats at the start
	// of the next. Default: 100.
	ChunkOverlap int `yaml:"chunk_overlap,omitempty"`

	// SizeUnit selects characters or tokens. Default: characters.
	SizeUnit SizeUnit `yaml:"size_unit,omitempty"`

	// Sizer overrides the size function. When nil, characters count
	// bytes and tokens use the heuristic estimator.
	Sizer Sizer `yaml:"-"`

	// Separators overrides the recursive strategy's separator ladder.
	Separators []string `yaml:"separators,omitempty"`
}

// SetDefaults applies default values.
func (c *Config) SetDefaults() {
	if c.Strategy == "" {
		c.Strategy = StrategyRecursive
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = 1000
	}
	if c.ChunkOverlap < 0 {
		c.ChunkOverlap = 0
	}
	if c.ChunkSize > 0 && c.ChunkOverlap == 0 && c.ChunkSize >= 200 {
		c.ChunkOverlap = 100
	}
	if c.SizeUnit == "" {
		c.SizeUnit = UnitCharacters
	}
	if len(c.Separators) == 0 {
		c.Separators = []string{"\n\n", "\n", ". ", " "}
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("chunk_overlap (%d) must be smaller than chunk_size (%d)", c.ChunkOverlap, c.ChunkSize)
	}
	switch c.SizeUnit {
	case UnitCharacters, UnitTokens:
	default:
		return fmt.Errorf("unknown size_unit %q", c.SizeUnit)
	}
	if _, ok := splitters.Get(string(c.Strategy)); !ok {
		return fmt.Errorf("unknown strategy %q", c.Strategy)
	}
	return nil
}

// splitFunc produces candidate pieces for one strategy.
type splitFunc func(text string, cfg Config) []span

// splitters holds every registered strategy; Validate and Chunk both
// consult it, so the two cannot drift apart.
var splitters = registry.NewBaseRegistry[splitFunc]()

func init() {
	register := func(strategy Strategy, split splitFunc) {
		if err := splitters.Register(string(strategy), split); err != nil {
			panic(err)
		}
	}
	register(StrategyCharacter, func(text string, cfg Config) []span {
		return splitRunes(text)
	})
	register(StrategySentence, func(text string, cfg Config) []span {
		return splitSentences(text)
	})
	register(StrategyParagraph, func(text string, cfg Config) []span {
		return splitParagraphs(text)
	})
	register(StrategyMarkdown, func(text string, cfg Config) []span {
		return splitMarkdown(text)
	})
	register(StrategySemantic, func(text string, cfg Config) []span {
		return splitSemantic(text, cfg.ChunkSize, cfg.sizer())
	})
	register(StrategyRecursive, func(text string, cfg Config) []span {
		return splitRecursive(text, 0, cfg.Separators, cfg.ChunkSize, cfg.sizer())
	})
}

// sizer returns the effective size function.
func (c *Config) sizer() Sizer {
	if c.Sizer != nil {
		return c.Sizer
	}
	if c.SizeUnit == UnitTokens {
		return embedder.Estimate
	}
	return func(text string) int { return len(text) }
}

// Chunker splits text into chunks.
type Chunker interface {
	Chunk(text string, cfg Config) ([]Chunk, error)
}

// TextChunker is the built-in chunker covering every strategy.
type TextChunker struct{}

// New creates a TextChunker.
func New() *TextChunker {
	return &TextChunker{}
}

// Chunk splits text per the configuration. Chunk indexes are dense from
// zero and offsets are byte positions into the input.
func (t *TextChunker) Chunk(text string, cfg Config) ([]Chunk, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid chunker config: %w", err)
	}
	if text == "" {
		return nil, nil
	}

	split, ok := splitters.Get(string(cfg.Strategy))
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q", cfg.Strategy)
	}
	pieces := split(text, cfg)

	chunks := accumulate(text, pieces, cfg)
	for i := range chunks {
		chunks[i].TokenCount = embedder.Estimate(chunks[i].Content)
		chunks[i].Metadata = map[string]any{
			"token_count": chunks[i].TokenCount,
			"strategy":    string(cfg.Strategy),
		}
	}
	return chunks, nil
}

// accumulate packs pieces into chunks of at most ChunkSize, carrying
// ChunkOverlap worth of trailing pieces into each next chunk. A piece
// larger than ChunkSize becomes its own chunk rather than being lost.
func accumulate(text string, pieces []span, cfg Config) []Chunk {
	size := cfg.sizer()

	var chunks []Chunk
	var current []span

	flush := func() {
		if len(current) == 0 {
			return
		}
		start := current[0].start
		end := current[len(current)-1].end
		chunks = append(chunks, Chunk{
			Content:   text[start:end],
			Index:     len(chunks),
			StartChar: start,
			EndChar:   end,
		})
	}

	currentSize := func() int {
		if len(current) == 0 {
			return 0
		}
		return size(text[current[0].start:current[len(current)-1].end])
	}

	for _, piece := range pieces {
		if len(current) > 0 {
			candidate := text[current[0].start:piece.end]
			if size(candidate) > cfg.ChunkSize {
				flush()

				// Carry the overlap tail into the next chunk.
				var tail []span
				for i := len(current) - 1; i >= 0; i-- {
					window := text[current[i].start:current[len(current)-1].end]
					if size(window) > cfg.ChunkOverlap {
						break
					}
					tail = append([]span{current[i]}, tail...)
				}
				current = tail
			}
		}
		current = append(current, piece)

		// An oversized single piece is emitted as-is.
		if len(current) == 1 && currentSize() > cfg.ChunkSize {
			flush()
			current = nil
		}
	}
	flush()

	return chunks
}
