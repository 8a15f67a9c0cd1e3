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

package config

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kadirpekel/portfolio/pkg/embedder"
	"github.com/kadirpekel/portfolio/pkg/llm"
	"github.com/kadirpekel/portfolio/pkg/logger"
	"github.com/kadirpekel/portfolio/pkg/ratelimit"
	"github.com/kadirpekel/portfolio/pkg/registry"
	"github.com/kadirpekel/portfolio/pkg/store"
	"github.com/kadirpekel/portfolio/pkg/telemetry"
	"github.com/kadirpekel/portfolio/pkg/vector"
)

// Components holds the constructed engine pieces.
type Components struct {
	Config   *Config
	LLM      llm.Provider
	Embedder embedder.Embedder
	Vector   vector.Store
	Repo     store.Repository
	Limiter  *ratelimit.Limiter
}

// Close releases every component.
func (c *Components) Close() error {
	var firstErr error
	for _, closer := range []func() error{
		c.LLM.Close, c.Embedder.Close, c.Vector.Close, c.Repo.Close,
	} {
		if err := closer(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Adapters binds the components into a registry set.
func (c *Components) Adapters() *registry.AdapterSet {
	set := registry.NewAdapterSet()
	set.Register(registry.CapLLM, c.LLM)
	set.Register(registry.CapEmbedder, c.Embedder)
	set.Register(registry.CapVectorStore, c.Vector)
	set.Register(registry.CapDocumentStore, c.Repo)
	return set
}

// Build constructs every configured component, installs the process
// logger, telemetry handlers, rate limiter, and adapter defaults.
func Build(ctx context.Context, cfg *Config) (*Components, error) {
	level, _ := logger.ParseLevel(cfg.Logging.Level)
	logger.Init(level, os.Stderr, cfg.Logging.Format)

	if cfg.Telemetry.Enabled {
		if err := registerTelemetry(cfg.Telemetry); err != nil {
			return nil, err
		}
	}

	limiter, err := ratelimit.NewLimiter(cfg.RateLimits)
	if err != nil {
		return nil, err
	}
	ratelimit.SetDefault(limiter)

	provider, err := buildLLM(cfg.LLM)
	if err != nil {
		return nil, err
	}

	emb, err := buildEmbedder(cfg.Embedder)
	if err != nil {
		return nil, err
	}

	vectorStore, err := buildVector(ctx, cfg.Vector)
	if err != nil {
		return nil, err
	}

	repo, err := buildStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	components := &Components{
		Config:   cfg,
		LLM:      llm.Instrument(provider, limiter),
		Embedder: embedder.Instrument(emb, limiter),
		Vector:   vector.Instrument(vectorStore),
		Repo:     repo,
		Limiter:  limiter,
	}
	registry.SetProcessDefaults(components.Adapters())
	return components, nil
}

func registerTelemetry(cfg TelemetryConfig) error {
	for _, name := range cfg.Handlers {
		switch name {
		case "text":
			telemetry.RegisterHandler(telemetry.NewTextHandler(os.Stderr))
		case "json":
			telemetry.RegisterHandler(telemetry.NewJSONHandler(os.Stderr))
		case "prometheus":
			handler, err := telemetry.NewPromHandler(prometheus.DefaultRegisterer)
			if err != nil {
				return fmt.Errorf("failed to register prometheus handler: %w", err)
			}
			telemetry.RegisterHandler(handler)
		}
	}
	return nil
}

func buildLLM(cfg LLMConfig) (llm.Provider, error) {
	switch cfg.Provider {
	case "openai":
		return llm.NewOpenAIProvider(cfg.OpenAI)
	case "ollama":
		return llm.NewOllamaProvider(cfg.Ollama)
	case "mock":
		return llm.NewMock(), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

func buildEmbedder(cfg EmbedderConfig) (embedder.Embedder, error) {
	switch cfg.Provider {
	case "openai":
		return embedder.NewOpenAIEmbedder(cfg.OpenAI)
	case "ollama":
		return embedder.NewOllamaEmbedder(cfg.Ollama)
	case "static":
		return embedder.NewStatic(cfg.StaticDimensions), nil
	default:
		return nil, fmt.Errorf("unknown embedder provider %q", cfg.Provider)
	}
}

func buildVector(ctx context.Context, cfg VectorConfig) (vector.Store, error) {
	switch cfg.Backend {
	case "memory":
		return vector.NewMemoryStore(), nil
	case "chromem":
		return vector.NewChromemStore(cfg.Chromem)
	case "qdrant":
		return vector.NewQdrantStore(cfg.Qdrant)
	case "pgvector":
		return vector.NewPgvectorStore(ctx, cfg.Pgvector)
	default:
		return nil, fmt.Errorf("unknown vector backend %q", cfg.Backend)
	}
}

func buildStore(ctx context.Context, cfg StoreConfig) (store.Repository, error) {
	switch cfg.Backend {
	case "memory":
		return store.NewMemoryRepository(), nil
	case "postgres":
		return store.NewPostgresRepository(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
