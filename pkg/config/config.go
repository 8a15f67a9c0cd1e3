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

// Package config loads the engine's YAML configuration, expands
// environment references, applies defaults, and builds the configured
// components.
package config

import (
	"fmt"

	"github.com/kadirpekel/portfolio/pkg/embedder"
	"github.com/kadirpekel/portfolio/pkg/graphrag"
	"github.com/kadirpekel/portfolio/pkg/ingest"
	"github.com/kadirpekel/portfolio/pkg/llm"
	"github.com/kadirpekel/portfolio/pkg/ratelimit"
	"github.com/kadirpekel/portfolio/pkg/vector"
)

// Config is the root configuration.
type Config struct {
	Logging    LoggingConfig    `yaml:"logging,omitempty"`
	Telemetry  TelemetryConfig  `yaml:"telemetry,omitempty"`
	RateLimits ratelimit.Config `yaml:"rate_limits,omitempty"`
	LLM        LLMConfig        `yaml:"llm,omitempty"`
	Embedder   EmbedderConfig   `yaml:"embedder,omitempty"`
	Vector     VectorConfig     `yaml:"vector,omitempty"`
	Store      StoreConfig      `yaml:"store,omitempty"`
	Ingestion  ingest.Config    `yaml:"ingestion,omitempty"`
	GraphRAG   GraphRAGConfig   `yaml:"graphrag,omitempty"`
	Query      QueryConfig      `yaml:"query,omitempty"`
}

// LoggingConfig tunes the process logger.
type LoggingConfig struct {
	// Level is debug, info, warn, or error. Default: info.
	Level string `yaml:"level,omitempty"`

	// Format is simple or verbose. Default: simple.
	Format string `yaml:"format,omitempty"`
}

// TelemetryConfig selects telemetry handlers.
type TelemetryConfig struct {
	Enabled bool `yaml:"enabled,omitempty"`

	// Handlers lists sinks to register: text, json, prometheus.
	Handlers []string `yaml:"handlers,omitempty"`
}

// LLMConfig selects and configures the chat provider.
type LLMConfig struct {
	// Provider is openai or ollama. Default: openai.
	Provider string `yaml:"provider,omitempty"`

	OpenAI llm.OpenAIConfig `yaml:"openai,omitempty"`
	Ollama llm.OllamaConfig `yaml:"ollama,omitempty"`
}

// EmbedderConfig selects and configures the embedding provider.
type EmbedderConfig struct {
	// Provider is openai, ollama, or static. Default: openai.
	Provider string `yaml:"provider,omitempty"`

	OpenAI embedder.OpenAIConfig `yaml:"openai,omitempty"`
	Ollama embedder.OllamaConfig `yaml:"ollama,omitempty"`

	// StaticDimensions sizes the deterministic test embedder.
	StaticDimensions int `yaml:"static_dimensions,omitempty"`
}

// VectorConfig selects and configures the vector store backend.
type VectorConfig struct {
	// Backend is memory, chromem, qdrant, or pgvector. Default: memory.
	Backend string `yaml:"backend,omitempty"`

	Chromem  vector.ChromemConfig  `yaml:"chromem,omitempty"`
	Qdrant   vector.QdrantConfig   `yaml:"qdrant,omitempty"`
	Pgvector vector.PgvectorConfig `yaml:"pgvector,omitempty"`
}

// StoreConfig selects the relational repository backend.
type StoreConfig struct {
	// Backend is memory or postgres. Default: memory.
	Backend string `yaml:"backend,omitempty"`

	// DSN is the PostgreSQL connection string for the postgres backend.
	DSN string `yaml:"dsn,omitempty"`
}

// GraphRAGConfig tunes graph building and search.
type GraphRAGConfig struct {
	Extractor graphrag.ExtractorConfig `yaml:"extractor,omitempty"`
	Builder   graphrag.BuilderConfig   `yaml:"builder,omitempty"`
	Searcher  graphrag.SearcherConfig  `yaml:"searcher,omitempty"`
}

// QueryConfig tunes the retrieval pipeline.
type QueryConfig struct {
	// TopK is how many results a search returns. Default: 10.
	TopK int `yaml:"top_k,omitempty"`

	// Skip lists query processing stages to bypass
	// (rewrite, expand, decompose).
	Skip []string `yaml:"skip,omitempty"`

	// HyDE switches expansion to hypothetical document mode.
	HyDE bool `yaml:"hyde,omitempty"`

	// HybridAlpha weighs vector against full-text scores. Default: 0.5.
	HybridAlpha float32 `yaml:"hybrid_alpha,omitempty"`

	// RerankTopN caps reranked results. Zero keeps all.
	RerankTopN int `yaml:"rerank_top_n,omitempty"`

	// RerankThreshold drops results scoring below it.
	RerankThreshold float32 `yaml:"rerank_threshold,omitempty"`
}

// SetDefaults applies default values.
func (c *Config) SetDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "simple"
	}
	if c.Telemetry.Enabled && len(c.Telemetry.Handlers) == 0 {
		c.Telemetry.Handlers = []string{"text"}
	}
	c.RateLimits.SetDefaults()
	if c.LLM.Provider == "" {
		c.LLM.Provider = "openai"
	}
	if c.Embedder.Provider == "" {
		c.Embedder.Provider = "openai"
	}
	if c.Vector.Backend == "" {
		c.Vector.Backend = "memory"
	}
	if c.Store.Backend == "" {
		c.Store.Backend = "memory"
	}
	c.Ingestion.SetDefaults()
	c.GraphRAG.Extractor.SetDefaults()
	c.GraphRAG.Builder.SetDefaults()
	c.GraphRAG.Searcher.SetDefaults()
	if c.Query.TopK <= 0 {
		c.Query.TopK = 10
	}
	if c.Query.HybridAlpha == 0 {
		c.Query.HybridAlpha = 0.5
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch c.Logging.Format {
	case "simple", "verbose":
	default:
		return fmt.Errorf("unknown logging format %q", c.Logging.Format)
	}
	for _, handler := range c.Telemetry.Handlers {
		switch handler {
		case "text", "json", "prometheus":
		default:
			return fmt.Errorf("unknown telemetry handler %q", handler)
		}
	}
	if err := c.RateLimits.Validate(); err != nil {
		return fmt.Errorf("rate_limits: %w", err)
	}
	switch c.LLM.Provider {
	case "openai", "ollama", "mock":
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}
	switch c.Embedder.Provider {
	case "openai", "ollama", "static":
	default:
		return fmt.Errorf("unknown embedder provider %q", c.Embedder.Provider)
	}
	switch c.Vector.Backend {
	case "memory", "chromem", "qdrant", "pgvector":
	default:
		return fmt.Errorf("unknown vector backend %q", c.Vector.Backend)
	}
	switch c.Store.Backend {
	case "memory", "postgres":
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Store.Backend == "postgres" && c.Store.DSN == "" {
		return fmt.Errorf("store backend postgres requires a dsn")
	}
	if err := c.Ingestion.Validate(); err != nil {
		return fmt.Errorf("ingestion: %w", err)
	}
	if c.Query.HybridAlpha < 0 || c.Query.HybridAlpha > 1 {
		return fmt.Errorf("hybrid_alpha must be in [0, 1], got %f", c.Query.HybridAlpha)
	}
	return nil
}
