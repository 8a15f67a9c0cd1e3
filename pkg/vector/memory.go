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

package vector

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an exact-search, in-process backend for tests and
// development. Writes are append-only: upserts append a new version and
// deletes add a tombstone, so deleted items can be restored.
//
// All access is serialized through one mutex, which gives the
// single-writer discipline the append-only layout assumes.
type MemoryStore struct {
	mu      sync.RWMutex
	indexes map[string]*memoryIndex
}

type memoryIndex struct {
	config  Index
	entries []memoryEntry
	live    map[string]int
	deleted map[string]struct{}
}

type memoryEntry struct {
	id       string
	vector   []float32
	metadata map[string]any
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{indexes: make(map[string]*memoryIndex)}
}

func (s *MemoryStore) CreateIndex(ctx context.Context, id string, index Index) error {
	index.SetDefaults()
	if err := index.Validate(); err != nil {
		return fmt.Errorf("invalid index config: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.indexes[id]; ok {
		if existing.config.Dimensions != index.Dimensions {
			return fmt.Errorf("%w: index %q has %d dimensions, requested %d",
				ErrDimensionMismatch, id, existing.config.Dimensions, index.Dimensions)
		}
		return nil
	}

	s.indexes[id] = &memoryIndex{
		config:  index,
		live:    make(map[string]int),
		deleted: make(map[string]struct{}),
	}
	return nil
}

func (s *MemoryStore) DeleteIndex(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.indexes[id]; !ok {
		return fmt.Errorf("%w: %s", ErrIndexNotFound, id)
	}
	delete(s.indexes, id)
	return nil
}

func (s *MemoryStore) IndexExists(ctx context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.indexes[id]
	return ok, nil
}

func (s *MemoryStore) IndexStats(ctx context.Context, id string) (*IndexStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	index, ok := s.indexes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, id)
	}

	count := 0
	for itemID := range index.live {
		if _, gone := index.deleted[itemID]; !gone {
			count++
		}
	}

	return &IndexStats{
		Count:      count,
		Dimensions: index.config.Dimensions,
		Metric:     index.config.Metric,
	}, nil
}

func (s *MemoryStore) Store(ctx context.Context, indexID, id string, vec []float32, metadata map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.storeLocked(indexID, id, vec, metadata)
}

func (s *MemoryStore) StoreBatch(ctx context.Context, indexID string, items []Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate the whole batch up front so a mid-batch failure cannot
	// leave a partial write.
	index, ok := s.indexes[indexID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrIndexNotFound, indexID)
	}
	for _, item := range items {
		if len(item.Vector) != index.config.Dimensions {
			return fmt.Errorf("%w: item %q has %d dimensions, index %q expects %d",
				ErrDimensionMismatch, item.ID, len(item.Vector), indexID, index.config.Dimensions)
		}
	}

	for _, item := range items {
		if err := s.storeLocked(indexID, item.ID, item.Vector, item.Metadata); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemoryStore) storeLocked(indexID, id string, vec []float32, metadata map[string]any) error {
	index, ok := s.indexes[indexID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrIndexNotFound, indexID)
	}
	if len(vec) != index.config.Dimensions {
		return fmt.Errorf("%w: got %d dimensions, index %q expects %d",
			ErrDimensionMismatch, len(vec), indexID, index.config.Dimensions)
	}

	vector := make([]float32, len(vec))
	copy(vector, vec)

	index.entries = append(index.entries, memoryEntry{id: id, vector: vector, metadata: metadata})
	index.live[id] = len(index.entries) - 1
	delete(index.deleted, id)
	return nil
}

func (s *MemoryStore) Search(ctx context.Context, indexID string, vec []float32, k int, opts SearchOptions) ([]Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	index, ok := s.indexes[indexID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, indexID)
	}

	mode := opts.Mode
	if mode == "" {
		mode = ModeVector
	}
	if mode != ModeVector {
		// Text modes carry the query as text, not a vector; callers use
		// FulltextSearch for those.
		return nil, fmt.Errorf("memory backend: search mode %q requires FulltextSearch", mode)
	}
	if len(vec) != index.config.Dimensions {
		return nil, fmt.Errorf("%w: query has %d dimensions, index %q expects %d",
			ErrDimensionMismatch, len(vec), indexID, index.config.Dimensions)
	}

	metric := index.config.Metric
	if opts.Metric != "" {
		metric = opts.Metric
	}

	results := make([]Result, 0, len(index.live))
	for id, position := range index.live {
		if _, gone := index.deleted[id]; gone {
			continue
		}
		entry := index.entries[position]
		if !matchesFilter(entry.metadata, opts.Filter) {
			continue
		}

		score := similarity(metric, vec, entry.vector)
		if score < opts.MinScore {
			continue
		}

		results = append(results, newResult(entry, score, opts.IncludeVector))
	}

	sortResults(results)
	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (s *MemoryStore) FulltextSearch(ctx context.Context, indexID, query string, k int, opts FulltextOptions) ([]Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	index, ok := s.indexes[indexID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, indexID)
	}

	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return nil, nil
	}

	results := make([]Result, 0)
	for id, position := range index.live {
		if _, gone := index.deleted[id]; gone {
			continue
		}
		entry := index.entries[position]
		if !matchesFilter(entry.metadata, opts.Filter) {
			continue
		}

		content := strings.ToLower(entryContent(entry))
		if opts.Phrase {
			if !strings.Contains(content, strings.Join(terms, " ")) {
				continue
			}
		} else {
			matched := true
			for _, term := range terms {
				if !strings.Contains(content, term) {
					matched = false
					break
				}
			}
			if !matched {
				continue
			}
		}

		// Rank by term frequency.
		var hits int
		for _, term := range terms {
			hits += strings.Count(content, term)
		}
		score := float32(hits) / float32(len(terms))

		results = append(results, newResult(entry, score, false))
	}

	sortResults(results)
	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (s *MemoryStore) Delete(ctx context.Context, indexID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	index, ok := s.indexes[indexID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrIndexNotFound, indexID)
	}
	if _, ok := index.live[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	index.deleted[id] = struct{}{}
	return nil
}

// Restore removes an item's tombstone, making its latest stored version
// visible again.
func (s *MemoryStore) Restore(ctx context.Context, indexID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	index, ok := s.indexes[indexID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrIndexNotFound, indexID)
	}
	if _, gone := index.deleted[id]; !gone {
		return fmt.Errorf("%w: %s is not deleted", ErrNotFound, id)
	}

	delete(index.deleted, id)
	return nil
}

func (s *MemoryStore) Name() string { return "memory" }
func (s *MemoryStore) Close() error { return nil }

func similarity(metric Metric, query, stored []float32) float32 {
	switch metric {
	case MetricEuclidean:
		return NormalizeScore(metric, EuclideanDistance(query, stored))
	case MetricDot:
		return DotProduct(query, stored)
	default:
		return CosineSimilarity(query, stored)
	}
}

func matchesFilter(metadata, filter map[string]any) bool {
	for key, want := range filter {
		got, ok := metadata[key]
		if !ok || fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

func entryContent(entry memoryEntry) string {
	if content, ok := entry.metadata["content"].(string); ok {
		return content
	}
	return ""
}

func newResult(entry memoryEntry, score float32, includeVector bool) Result {
	result := Result{
		ID:       entry.id,
		Score:    score,
		Content:  entryContent(entry),
		Metadata: entry.metadata,
	}
	if includeVector {
		result.Vector = entry.vector
	}
	return result
}

func sortResults(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}

var (
	_ Store         = (*MemoryStore)(nil)
	_ HybridCapable = (*MemoryStore)(nil)
)
