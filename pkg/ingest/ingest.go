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

// Package ingest streams files through extraction, chunking, embedding,
// and batched vector storage. Stages are worker pools connected by
// in-memory queues; per-file failures are logged and do not stop the
// run.
package ingest

import (
	"crypto/md5"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/kadirpekel/portfolio/pkg/chunker"
)

// File types recognized by the producer.
const (
	TypeText     = "text"
	TypeMarkdown = "markdown"
	TypeCode     = "code"
	TypeConfig   = "config"
	TypePDF      = "pdf"
	TypeDOCX     = "docx"
	TypeUnknown  = "unknown"
)

// FileItem is one unit of work entering the pipeline.
type FileItem struct {
	Path string
	Type string
}

// ChunkItem is one chunk waiting to be embedded. Source is the
// originating file path. ChunkID is the relational chunk record id,
// empty when the pipeline runs without a repository.
type ChunkItem struct {
	Source  string
	ChunkID string
	Chunk   chunker.Chunk
}

// Config tunes the ingestion pipeline.
type Config struct {
	// Workers is the chunking and embedding worker count. Default: 10.
	Workers int `yaml:"workers,omitempty"`

	// BatchSize is how many embedded chunks accumulate before a store
	// write. Default: 100.
	BatchSize int `yaml:"batch_size,omitempty"`

	// BatchTimeout flushes a partial batch after this long. Default: 2s.
	BatchTimeout time.Duration `yaml:"batch_timeout,omitempty"`

	// MaxFileSize skips files larger than this many bytes.
	// Default: 5 MiB.
	MaxFileSize int64 `yaml:"max_file_size,omitempty"`

	// Chunker configures the splitter applied to extracted text.
	Chunker chunker.Config `yaml:"chunker,omitempty"`
}

// SetDefaults applies default values.
func (c *Config) SetDefaults() {
	if c.Workers <= 0 {
		c.Workers = 10
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.BatchTimeout <= 0 {
		c.BatchTimeout = 2 * time.Second
	}
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = 5 * 1024 * 1024
	}
	c.Chunker.SetDefaults()
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive, got %d", c.BatchSize)
	}
	return c.Chunker.Validate()
}

// Stats summarizes one pipeline run.
type Stats struct {
	Files         int
	FailedFiles   int
	SkippedFiles  int
	Chunks        int
	Embedded      int
	FailedChunks  int
	Stored        int
	FailedBatches int
	RateLimited   int
}

// ItemID derives the stored item id for a chunk. The id is content
// addressed so re-ingesting the same chunk upserts instead of
// duplicating.
func ItemID(source string, index int, content string) string {
	return fmt.Sprintf("%s:%d:%s", hash8(source), index, hash8(content))
}

func hash8(s string) string {
	sum := md5.Sum([]byte(s))
	return fmt.Sprintf("%x", sum)[:8]
}

// DetectType classifies a path by extension.
func DetectType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt":
		return TypeText
	case ".md", ".markdown":
		return TypeMarkdown
	case ".go", ".py", ".js", ".ts", ".java", ".rs", ".rb", ".c", ".cpp":
		return TypeCode
	case ".yaml", ".yml", ".json", ".toml", ".xml":
		return TypeConfig
	case ".pdf":
		return TypePDF
	case ".docx":
		return TypeDOCX
	default:
		return TypeUnknown
	}
}
