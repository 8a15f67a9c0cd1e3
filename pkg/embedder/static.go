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
	"crypto/md5"
	"encoding/binary"
	"math"
)

// Static is a deterministic embedder for tests and development. It
// hashes the text into a unit vector of the configured width, so equal
// texts always embed identically and no network is involved.
type Static struct {
	dimensions int

	// Vectors pins exact outputs per text, overriding the hash.
	Vectors map[string][]float32

	// Err, when set, is returned by every call.
	Err error
}

// NewStatic creates a static embedder producing vectors of the given
// width.
func NewStatic(dimensions int) *Static {
	if dimensions <= 0 {
		dimensions = 8
	}
	return &Static{dimensions: dimensions}
}

func (e *Static) Embed(ctx context.Context, text string, opts Options) (*Embedding, error) {
	if e.Err != nil {
		return nil, e.Err
	}

	vector, ok := e.Vectors[text]
	if !ok {
		vector = hashVector(text, e.dimensions)
	}

	return &Embedding{
		Vector:     vector,
		Model:      "static",
		Dimensions: len(vector),
		TokenCount: Estimate(text),
	}, nil
}

func (e *Static) EmbedBatch(ctx context.Context, texts []string, opts Options) (*BatchResult, error) {
	result := &BatchResult{Embeddings: make([]Embedding, 0, len(texts))}
	for _, text := range texts {
		embedding, err := e.Embed(ctx, text, opts)
		if err != nil {
			return nil, err
		}
		result.Embeddings = append(result.Embeddings, *embedding)
		result.TotalTokens += embedding.TokenCount
	}
	return result, nil
}

func (e *Static) Dimensions(model string) int { return e.dimensions }
func (e *Static) SupportedModels() []string   { return []string{"static"} }
func (e *Static) Model() string               { return "static" }
func (e *Static) Provider() string            { return "static" }
func (e *Static) Close() error                { return nil }

func hashVector(text string, dimensions int) []float32 {
	sum := md5.Sum([]byte(text))

	vector := make([]float32, dimensions)
	var norm float64
	for i := range vector {
		// Stretch the 16 digest bytes across the vector.
		offset := (i * 4) % (len(sum) - 4)
		bits := binary.LittleEndian.Uint32(sum[offset : offset+4])
		value := float32(bits%2000)/1000.0 - 1.0
		vector[i] = value
		norm += float64(value) * float64(value)
	}

	if norm > 0 {
		scale := float32(1.0 / math.Sqrt(norm))
		for i := range vector {
			vector[i] *= scale
		}
	}
	return vector
}

var _ Embedder = (*Static)(nil)
