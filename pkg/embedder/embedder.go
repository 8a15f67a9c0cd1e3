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

// Package embedder defines the embedding provider contract and its
// implementations (OpenAI, Ollama, static).
package embedder

import (
	"context"
	"errors"
	"fmt"
)

// Embedding is the result of embedding one text.
type Embedding struct {
	Vector     []float32
	Model      string
	Dimensions int
	TokenCount int
}

// BatchResult is the result of embedding a batch of texts, in input order.
type BatchResult struct {
	Embeddings  []Embedding
	TotalTokens int
}

// Options tunes one embedding call.
type Options struct {
	// Model overrides the provider's configured model.
	Model string
}

// Embedder converts text into dense vectors. Implementations must be
// safe for concurrent use.
type Embedder interface {
	// Embed converts one text into a vector.
	Embed(ctx context.Context, text string, opts Options) (*Embedding, error)

	// EmbedBatch converts a slice of texts, preserving order.
	EmbedBatch(ctx context.Context, texts []string, opts Options) (*BatchResult, error)

	// Dimensions returns the vector width for a model, or 0 if unknown.
	Dimensions(model string) int

	// SupportedModels lists the models this provider knows about.
	SupportedModels() []string

	// Model returns the default model name in use.
	Model() string

	// Provider returns the provider name ("openai", "ollama", ...).
	Provider() string

	// Close releases resources.
	Close() error
}

// ErrProvider wraps upstream provider failures.
var ErrProvider = errors.New("embedder provider error")

// ProviderError creates an error carrying provider detail, matching
// ErrProvider under errors.Is.
func ProviderError(provider string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrProvider, provider, err)
}
