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

package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ollamaModelDimensions maps known Ollama embedding models to their
// vector widths.
var ollamaModelDimensions = map[string]int{
	"nomic-embed-text":  768,
	"mxbai-embed-large": 1024,
	"all-minilm":        384,
}

// OllamaConfig configures the Ollama embedder.
type OllamaConfig struct {
	// Host is the Ollama server base URL. Default: http://localhost:11434.
	Host string `yaml:"host,omitempty"`

	// Model is the embedding model. Default: nomic-embed-text.
	Model string `yaml:"model,omitempty"`

	// TimeoutSeconds caps each request. Default: 60.
	TimeoutSeconds int `yaml:"timeout_seconds,omitempty"`
}

// OllamaEmbedder implements Embedder against a local Ollama server.
type OllamaEmbedder struct {
	client  *http.Client
	baseURL string
	model   string
	sizer   Sizer
}

// NewOllamaEmbedder creates an Ollama-backed embedder.
func NewOllamaEmbedder(cfg OllamaConfig) (*OllamaEmbedder, error) {
	baseURL := cfg.Host
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	model := cfg.Model
	if model == "" {
		model = "nomic-embed-text"
	}

	timeout := 60 * time.Second
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}

	return &OllamaEmbedder{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		model:   model,
		sizer:   HeuristicSizer{},
	}, nil
}

type ollamaEmbedRequest struct {
	Model string `json:"model"`
	Input any    `json:"input"`
}

type ollamaEmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`

	PromptEvalCount int `json:"prompt_eval_count"`
}

func (e *OllamaEmbedder) Embed(ctx context.Context, text string, opts Options) (*Embedding, error) {
	result, err := e.EmbedBatch(ctx, []string{text}, opts)
	if err != nil {
		return nil, err
	}
	embedding := result.Embeddings[0]
	return &embedding, nil
}

func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string, opts Options) (*BatchResult, error) {
	if len(texts) == 0 {
		return &BatchResult{}, nil
	}

	model := e.model
	if opts.Model != "" {
		model = opts.Model
	}

	reqBody, err := json.Marshal(ollamaEmbedRequest{Model: model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embed", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, ProviderError("ollama", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, ProviderError("ollama", fmt.Errorf("status %d: %s", httpResp.StatusCode, string(body)))
	}

	var resp ollamaEmbedResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, ProviderError("ollama", fmt.Errorf("failed to decode response: %w", err))
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, ProviderError("ollama", fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Embeddings)))
	}

	result := &BatchResult{
		Embeddings:  make([]Embedding, len(resp.Embeddings)),
		TotalTokens: resp.PromptEvalCount,
	}
	for i, vector := range resp.Embeddings {
		result.Embeddings[i] = Embedding{
			Vector:     vector,
			Model:      model,
			Dimensions: len(vector),
			TokenCount: e.sizer.Estimate(texts[i]),
		}
	}
	if result.TotalTokens == 0 {
		for _, embedding := range result.Embeddings {
			result.TotalTokens += embedding.TokenCount
		}
	}
	return result, nil
}

func (e *OllamaEmbedder) Dimensions(model string) int {
	return ollamaModelDimensions[model]
}

func (e *OllamaEmbedder) SupportedModels() []string {
	models := make([]string, 0, len(ollamaModelDimensions))
	for model := range ollamaModelDimensions {
		models = append(models, model)
	}
	return models
}

func (e *OllamaEmbedder) Model() string    { return e.model }
func (e *OllamaEmbedder) Provider() string { return "ollama" }
func (e *OllamaEmbedder) Close() error     { return nil }

var _ Embedder = (*OllamaEmbedder)(nil)
