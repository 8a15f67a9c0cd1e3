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
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// openAIModelDimensions maps known OpenAI embedding models to their
// vector widths.
var openAIModelDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// OpenAIConfig configures the OpenAI embedder.
type OpenAIConfig struct {
	// APIKey authenticates with the API. Required.
	APIKey string `yaml:"api_key"`

	// Model is the embedding model. Default: text-embedding-3-small.
	Model string `yaml:"model,omitempty"`

	// BaseURL overrides the API endpoint. Optional.
	BaseURL string `yaml:"base_url,omitempty"`
}

// OpenAIEmbedder implements Embedder against the OpenAI embeddings API.
type OpenAIEmbedder struct {
	client *openai.Client
	model  string
}

// NewOpenAIEmbedder creates an OpenAI-backed embedder.
func NewOpenAIEmbedder(cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required for OpenAI embedder")
	}

	model := cfg.Model
	if model == "" {
		model = "text-embedding-3-small"
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAIEmbedder{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
	}, nil
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string, opts Options) (*Embedding, error) {
	result, err := e.EmbedBatch(ctx, []string{text}, opts)
	if err != nil {
		return nil, err
	}
	embedding := result.Embeddings[0]
	embedding.TokenCount = result.TotalTokens
	return &embedding, nil
}

func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string, opts Options) (*BatchResult, error) {
	if len(texts) == 0 {
		return &BatchResult{}, nil
	}

	model := e.model
	if opts.Model != "" {
		model = opts.Model
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: texts,
		Model: openai.EmbeddingModel(model),
	})
	if err != nil {
		return nil, ProviderError("openai", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, ProviderError("openai", fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data)))
	}

	result := &BatchResult{
		Embeddings:  make([]Embedding, len(resp.Data)),
		TotalTokens: resp.Usage.PromptTokens,
	}
	for i, item := range resp.Data {
		result.Embeddings[i] = Embedding{
			Vector:     item.Embedding,
			Model:      string(resp.Model),
			Dimensions: len(item.Embedding),
		}
	}
	return result, nil
}

func (e *OpenAIEmbedder) Dimensions(model string) int {
	return openAIModelDimensions[model]
}

func (e *OpenAIEmbedder) SupportedModels() []string {
	models := make([]string, 0, len(openAIModelDimensions))
	for model := range openAIModelDimensions {
		models = append(models, model)
	}
	return models
}

func (e *OpenAIEmbedder) Model() string    { return e.model }
func (e *OpenAIEmbedder) Provider() string { return "openai" }
func (e *OpenAIEmbedder) Close() error     { return nil }

var _ Embedder = (*OpenAIEmbedder)(nil)
