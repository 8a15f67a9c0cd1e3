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
	"log/slog"
	"os"
	"runtime"
	"sync"

	chromem "github.com/philippgille/chromem-go"
)

// ChromemStore implements Store using chromem-go for embedded vector
// storage. It requires no external services and optionally persists to
// a gob file, which makes it the default for single-process
// deployments.
//
// Chromem only ranks by cosine similarity; euclidean and dot metrics
// are rejected at index creation.
type ChromemStore struct {
	db          *chromem.DB
	persistPath string
	compress    bool

	mu          sync.RWMutex
	collections map[string]*chromem.Collection
	configs     map[string]Index
}

// ChromemConfig configures the chromem backend.
type ChromemConfig struct {
	// PersistPath enables file persistence when set.
	PersistPath string `yaml:"persist_path,omitempty"`

	// Compress enables gzip compression for persistence.
	Compress bool `yaml:"compress,omitempty"`
}

// NewChromemStore creates a chromem-backed store.
func NewChromemStore(cfg ChromemConfig) (*ChromemStore, error) {
	var db *chromem.DB

	if cfg.PersistPath != "" {
		if err := os.MkdirAll(cfg.PersistPath, 0755); err != nil {
			return nil, fmt.Errorf("failed to create persist directory: %w", err)
		}

		dbPath := chromemDBPath(cfg.PersistPath, cfg.Compress)
		if _, statErr := os.Stat(dbPath); statErr == nil {
			loaded, err := chromem.NewPersistentDB(dbPath, cfg.Compress)
			if err != nil {
				slog.Warn("Failed to load existing vector database, creating new",
					"path", dbPath,
					"error", err)
				db = chromem.NewDB()
			} else {
				db = loaded
			}
		} else {
			db = chromem.NewDB()
		}
	} else {
		db = chromem.NewDB()
	}

	return &ChromemStore{
		db:          db,
		persistPath: cfg.PersistPath,
		compress:    cfg.Compress,
		collections: make(map[string]*chromem.Collection),
		configs:     make(map[string]Index),
	}, nil
}

// identityEmbed rejects calls: vectors are always pre-computed by the
// embedder package.
func identityEmbed(ctx context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("embedding function called but vectors should be pre-computed")
}

func (s *ChromemStore) CreateIndex(ctx context.Context, id string, index Index) error {
	index.SetDefaults()
	if err := index.Validate(); err != nil {
		return fmt.Errorf("invalid index config: %w", err)
	}
	if index.Metric != MetricCosine {
		return fmt.Errorf("chromem backend supports only cosine, got %q", index.Metric)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.configs[id]; ok {
		if existing.Dimensions != index.Dimensions {
			return fmt.Errorf("%w: index %q has %d dimensions, requested %d",
				ErrDimensionMismatch, id, existing.Dimensions, index.Dimensions)
		}
		return nil
	}

	col, err := s.db.GetOrCreateCollection(id, nil, identityEmbed)
	if err != nil {
		return fmt.Errorf("failed to create collection %q: %w", id, err)
	}

	s.collections[id] = col
	s.configs[id] = index
	return nil
}

func (s *ChromemStore) DeleteIndex(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.configs[id]; !ok {
		return fmt.Errorf("%w: %s", ErrIndexNotFound, id)
	}
	if err := s.db.DeleteCollection(id); err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}

	delete(s.collections, id)
	delete(s.configs, id)

	if err := s.persist(); err != nil {
		slog.Warn("Failed to persist after index delete", "error", err)
	}
	return nil
}

func (s *ChromemStore) IndexExists(ctx context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.configs[id]
	return ok, nil
}

func (s *ChromemStore) IndexStats(ctx context.Context, id string) (*IndexStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	col, config, err := s.collectionLocked(id)
	if err != nil {
		return nil, err
	}

	return &IndexStats{
		Count:      col.Count(),
		Dimensions: config.Dimensions,
		Metric:     config.Metric,
	}, nil
}

func (s *ChromemStore) Store(ctx context.Context, indexID, id string, vec []float32, metadata map[string]any) error {
	return s.StoreBatch(ctx, indexID, []Item{{ID: id, Vector: vec, Metadata: metadata}})
}

func (s *ChromemStore) StoreBatch(ctx context.Context, indexID string, items []Item) error {
	s.mu.RLock()
	col, config, err := s.collectionLocked(indexID)
	s.mu.RUnlock()
	if err != nil {
		return err
	}

	docs := make([]chromem.Document, 0, len(items))
	for _, item := range items {
		if len(item.Vector) != config.Dimensions {
			return fmt.Errorf("%w: item %q has %d dimensions, index %q expects %d",
				ErrDimensionMismatch, item.ID, len(item.Vector), indexID, config.Dimensions)
		}

		strMetadata := make(map[string]string, len(item.Metadata))
		for k, v := range item.Metadata {
			strMetadata[k] = fmt.Sprint(v)
		}

		content := ""
		if c, ok := item.Metadata["content"].(string); ok {
			content = c
		}

		docs = append(docs, chromem.Document{
			ID:        item.ID,
			Content:   content,
			Metadata:  strMetadata,
			Embedding: item.Vector,
		})
	}

	if err := col.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to upsert documents: %w", err)
	}

	if err := s.persist(); err != nil {
		slog.Warn("Failed to persist after upsert", "error", err)
	}
	return nil
}

func (s *ChromemStore) Search(ctx context.Context, indexID string, vec []float32, k int, opts SearchOptions) ([]Result, error) {
	if opts.Mode != "" && opts.Mode != ModeVector {
		return nil, fmt.Errorf("chromem backend: search mode %q not supported", opts.Mode)
	}

	s.mu.RLock()
	col, config, err := s.collectionLocked(indexID)
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	if len(vec) != config.Dimensions {
		return nil, fmt.Errorf("%w: query has %d dimensions, index %q expects %d",
			ErrDimensionMismatch, len(vec), indexID, config.Dimensions)
	}

	// Chromem rejects queries asking for more results than documents.
	count := col.Count()
	if count == 0 {
		return nil, nil
	}
	if k <= 0 || k > count {
		k = count
	}

	var whereFilter map[string]string
	if len(opts.Filter) > 0 {
		whereFilter = make(map[string]string, len(opts.Filter))
		for key, value := range opts.Filter {
			whereFilter[key] = fmt.Sprint(value)
		}
	}

	hits, err := col.QueryEmbedding(ctx, vec, k, whereFilter, nil)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	results := make([]Result, 0, len(hits))
	for _, hit := range hits {
		if hit.Similarity < opts.MinScore {
			continue
		}

		metadata := make(map[string]any, len(hit.Metadata))
		for key, value := range hit.Metadata {
			metadata[key] = value
		}

		result := Result{
			ID:       hit.ID,
			Score:    hit.Similarity,
			Content:  hit.Content,
			Metadata: metadata,
		}
		if opts.IncludeVector {
			result.Vector = hit.Embedding
		}
		results = append(results, result)
	}
	return results, nil
}

func (s *ChromemStore) Delete(ctx context.Context, indexID, id string) error {
	s.mu.RLock()
	col, _, err := s.collectionLocked(indexID)
	s.mu.RUnlock()
	if err != nil {
		return err
	}

	if err := col.Delete(ctx, nil, nil, id); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	if err := s.persist(); err != nil {
		slog.Warn("Failed to persist after delete", "error", err)
	}
	return nil
}

func (s *ChromemStore) Name() string { return "chromem" }

func (s *ChromemStore) Close() error {
	return s.persist()
}

func (s *ChromemStore) collectionLocked(id string) (*chromem.Collection, Index, error) {
	col, ok := s.collections[id]
	if !ok {
		return nil, Index{}, fmt.Errorf("%w: %s", ErrIndexNotFound, id)
	}
	return col, s.configs[id], nil
}

func (s *ChromemStore) persist() error {
	if s.persistPath == "" {
		return nil
	}

	dbPath := chromemDBPath(s.persistPath, s.compress)
	//nolint:staticcheck // Using deprecated function for compatibility
	if err := s.db.Export(dbPath, s.compress, ""); err != nil {
		return fmt.Errorf("failed to persist database: %w", err)
	}
	return nil
}

func chromemDBPath(dir string, compress bool) string {
	path := dir + "/vectors.gob"
	if compress {
		path += ".gz"
	}
	return path
}

var _ Store = (*ChromemStore)(nil)
