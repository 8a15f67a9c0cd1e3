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

// Package vector defines the vector store contract and its backends
// (memory, chromem, qdrant, pgvector).
//
// Scores are normalized so that higher always means more similar,
// regardless of the backend's native distance: cosine and dot scores
// pass through, euclidean distances map to 1-d.
package vector

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// Metric is a vector distance function.
type Metric string

const (
	MetricCosine    Metric = "cosine"
	MetricEuclidean Metric = "euclidean"
	MetricDot       Metric = "dot"
)

// IndexType selects the backend's index structure where configurable.
type IndexType string

const (
	IndexFlat IndexType = "flat"
	IndexIVF  IndexType = "ivf"
	IndexHNSW IndexType = "hnsw"
)

// Mode selects how a search matches.
type Mode string

const (
	// ModeVector ranks by vector similarity.
	ModeVector Mode = "vector"

	// ModeKeyword matches documents containing all query terms.
	ModeKeyword Mode = "keyword"

	// ModeFulltext uses the backend's full-text index where available.
	ModeFulltext Mode = "fulltext"
)

// Index configures one index.
type Index struct {
	// Dimensions is the vector width. Required.
	Dimensions int `yaml:"dimensions"`

	// Metric is the distance function. Default: cosine.
	Metric Metric `yaml:"metric,omitempty"`

	// IndexType is the index structure. Default: flat.
	IndexType IndexType `yaml:"index_type,omitempty"`

	// Options carries backend-specific tuning.
	Options map[string]any `yaml:"options,omitempty"`
}

// SetDefaults applies default values.
func (i *Index) SetDefaults() {
	if i.Metric == "" {
		i.Metric = MetricCosine
	}
	if i.IndexType == "" {
		i.IndexType = IndexFlat
	}
}

// Validate checks the index configuration for errors.
func (i *Index) Validate() error {
	if i.Dimensions <= 0 {
		return fmt.Errorf("dimensions must be positive, got %d", i.Dimensions)
	}
	switch i.Metric {
	case MetricCosine, MetricEuclidean, MetricDot:
	default:
		return fmt.Errorf("unknown metric %q", i.Metric)
	}
	return nil
}

// IndexStats reports the state of one index.
type IndexStats struct {
	Count      int
	Dimensions int
	Metric     Metric
}

// Item is one entry of a batch store.
type Item struct {
	ID       string
	Vector   []float32
	Metadata map[string]any
}

// SearchOptions tunes one search.
type SearchOptions struct {
	// Metric overrides the index metric for this search.
	Metric Metric

	// Filter requires exact metadata matches.
	Filter map[string]any

	// MinScore drops results below the threshold (after normalization).
	MinScore float32

	// Mode selects vector, keyword, or fulltext matching. Default: vector.
	Mode Mode

	// IncludeVector returns stored vectors with each result.
	IncludeVector bool
}

// Result is one search hit.
type Result struct {
	ID       string
	Score    float32
	Content  string
	Metadata map[string]any
	Vector   []float32
}

// FulltextOptions tunes a full-text search.
type FulltextOptions struct {
	// Language selects the text search configuration (pgvector backend).
	Language string

	// Phrase requires terms to appear adjacent and in order.
	Phrase bool

	// Filter requires exact metadata matches.
	Filter map[string]any
}

var (
	// ErrDimensionMismatch reports a vector whose width does not match
	// its index.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrNotFound reports a missing item.
	ErrNotFound = errors.New("not found")

	// ErrIndexNotFound reports a missing index.
	ErrIndexNotFound = errors.New("index not found")

	// ErrNotHybrid reports a full-text search against a backend without
	// a text index.
	ErrNotHybrid = errors.New("backend does not support full-text search")
)

// Store persists and searches vectors. Implementations must be safe for
// concurrent use.
type Store interface {
	// CreateIndex creates an index. Creating an existing index with the
	// same dimensions is a no-op; differing dimensions is an error.
	CreateIndex(ctx context.Context, id string, index Index) error

	// DeleteIndex removes an index and everything in it.
	DeleteIndex(ctx context.Context, id string) error

	// IndexExists reports whether the index exists.
	IndexExists(ctx context.Context, id string) (bool, error)

	// IndexStats reports the index's item count and configuration.
	IndexStats(ctx context.Context, id string) (*IndexStats, error)

	// Store upserts one item by (index, id).
	Store(ctx context.Context, indexID, id string, vec []float32, metadata map[string]any) error

	// StoreBatch upserts a batch atomically: either every item lands or
	// none do.
	StoreBatch(ctx context.Context, indexID string, items []Item) error

	// Search returns up to k results ordered by descending score.
	Search(ctx context.Context, indexID string, vec []float32, k int, opts SearchOptions) ([]Result, error)

	// Delete removes one item.
	Delete(ctx context.Context, indexID, id string) error

	// Name returns the backend name ("memory", "qdrant", ...).
	Name() string

	// Close releases resources.
	Close() error
}

// HybridCapable is implemented by backends with a full-text index,
// enabling hybrid retrieval.
type HybridCapable interface {
	FulltextSearch(ctx context.Context, indexID, query string, k int, opts FulltextOptions) ([]Result, error)
}

// NormalizeScore converts a backend's native score to the convention
// that higher means more similar.
func NormalizeScore(metric Metric, score float32) float32 {
	if metric == MetricEuclidean {
		return 1 - score
	}
	return score
}

// CosineSimilarity computes the cosine similarity of two vectors of
// equal width.
func CosineSimilarity(a, b []float32) float32 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// EuclideanDistance computes the L2 distance of two vectors of equal
// width.
func EuclideanDistance(a, b []float32) float32 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return float32(math.Sqrt(sum))
}

// DotProduct computes the inner product of two vectors of equal width.
func DotProduct(a, b []float32) float32 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return float32(dot)
}
