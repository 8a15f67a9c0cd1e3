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

package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryRepository is an in-process Repository for tests and
// development.
type MemoryRepository struct {
	mu          sync.RWMutex
	collections map[string]*Collection
	documents   map[string]*Document
	chunks      map[string]*Chunk
	testCases   map[string]*TestCase
	runs        map[string]*EvaluationRun
}

// NewMemoryRepository creates an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		collections: make(map[string]*Collection),
		documents:   make(map[string]*Document),
		chunks:      make(map[string]*Chunk),
		testCases:   make(map[string]*TestCase),
		runs:        make(map[string]*EvaluationRun),
	}
}

func (r *MemoryRepository) CreateCollection(ctx context.Context, name string, metadata map[string]any) (*Collection, error) {
	if name == "" {
		return nil, fmt.Errorf("collection name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range r.collections {
		if c.Name == name {
			return nil, fmt.Errorf("%w: collection %q", ErrDuplicate, name)
		}
	}

	collection := &Collection{
		ID:        NewID(),
		Name:      name,
		Metadata:  metadata,
		CreatedAt: time.Now(),
	}
	r.collections[collection.ID] = collection

	out := *collection
	return &out, nil
}

func (r *MemoryRepository) GetCollection(ctx context.Context, name string) (*Collection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, c := range r.collections {
		if c.Name == name {
			out := *c
			out.DocumentCount = r.documentCountLocked(c.ID)
			return &out, nil
		}
	}
	return nil, fmt.Errorf("%w: collection %q", ErrNotFound, name)
}

func (r *MemoryRepository) ListCollections(ctx context.Context) ([]Collection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Collection, 0, len(r.collections))
	for _, c := range r.collections {
		item := *c
		item.DocumentCount = r.documentCountLocked(c.ID)
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemoryRepository) DeleteCollection(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.collections[id]; !ok {
		return fmt.Errorf("%w: collection %s", ErrNotFound, id)
	}
	delete(r.collections, id)

	for docID, doc := range r.documents {
		if doc.CollectionID == id {
			r.deleteDocumentLocked(docID)
		}
	}
	return nil
}

func (r *MemoryRepository) CreateDocument(ctx context.Context, doc *Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if doc.ID == "" {
		doc.ID = NewID()
	}
	if doc.Status == "" {
		doc.Status = StatusPending
	}
	doc.CreatedAt = time.Now()
	doc.UpdatedAt = doc.CreatedAt

	stored := *doc
	r.documents[doc.ID] = &stored
	return nil
}

func (r *MemoryRepository) GetDocument(ctx context.Context, id string) (*Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	doc, ok := r.documents[id]
	if !ok {
		return nil, fmt.Errorf("%w: document %s", ErrNotFound, id)
	}
	out := *doc
	return &out, nil
}

func (r *MemoryRepository) FindDocumentByHash(ctx context.Context, collectionID, hash string) (*Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, doc := range r.documents {
		if doc.CollectionID == collectionID && doc.ContentHash == hash && doc.Status != StatusDeleted {
			out := *doc
			return &out, nil
		}
	}
	return nil, fmt.Errorf("%w: document with hash %s", ErrNotFound, hash)
}

func (r *MemoryRepository) ListDocuments(ctx context.Context, filter DocumentFilter) ([]Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Document
	for _, doc := range r.documents {
		if filter.CollectionID != "" && doc.CollectionID != filter.CollectionID {
			continue
		}
		if filter.Status != "" && doc.Status != filter.Status {
			continue
		}
		out = append(out, *doc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return paginate(out, filter.Offset, filter.Limit), nil
}

func (r *MemoryRepository) UpdateDocumentStatus(ctx context.Context, id string, status DocumentStatus, errorMessage string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, ok := r.documents[id]
	if !ok {
		return fmt.Errorf("%w: document %s", ErrNotFound, id)
	}
	doc.Status = status
	doc.ErrorMessage = errorMessage
	doc.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryRepository) SetDocumentChunkCount(ctx context.Context, id string, count int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, ok := r.documents[id]
	if !ok {
		return fmt.Errorf("%w: document %s", ErrNotFound, id)
	}
	doc.ChunkCount = count
	doc.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryRepository) CreateChunks(ctx context.Context, documentID string, chunks []Chunk) error {
	if err := validateChunkIndexes(chunks); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.documents[documentID]; !ok {
		return fmt.Errorf("%w: document %s", ErrNotFound, documentID)
	}

	for i := range chunks {
		if chunks[i].ID == "" {
			chunks[i].ID = NewID()
		}
		chunks[i].DocumentID = documentID
		chunks[i].CreatedAt = time.Now()

		stored := chunks[i]
		r.chunks[stored.ID] = &stored
	}
	return nil
}

func (r *MemoryRepository) ListChunks(ctx context.Context, filter ChunkFilter) ([]Chunk, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Chunk
	for _, chunk := range r.chunks {
		if filter.DocumentID != "" && chunk.DocumentID != filter.DocumentID {
			continue
		}
		if filter.CollectionID != "" {
			doc, ok := r.documents[chunk.DocumentID]
			if !ok || doc.CollectionID != filter.CollectionID {
				continue
			}
		}
		if filter.WithoutEmbedding && chunk.Embedding != nil {
			continue
		}
		out = append(out, *chunk)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DocumentID != out[j].DocumentID {
			return out[i].DocumentID < out[j].DocumentID
		}
		return out[i].ChunkIndex < out[j].ChunkIndex
	})
	return paginate(out, filter.Offset, filter.Limit), nil
}

func (r *MemoryRepository) UpdateChunkEmbedding(ctx context.Context, chunkID string, embedding []float32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	chunk, ok := r.chunks[chunkID]
	if !ok {
		return fmt.Errorf("%w: chunk %s", ErrNotFound, chunkID)
	}
	chunk.Embedding = embedding
	return nil
}

func (r *MemoryRepository) Diagnostics(ctx context.Context) (*Diagnostics, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d := &Diagnostics{
		Collections: len(r.collections),
		Documents:   len(r.documents),
		Chunks:      len(r.chunks),
	}
	for _, chunk := range r.chunks {
		if chunk.Embedding == nil {
			d.ChunksWithoutEmbedding++
		}
		d.StorageBytes += int64(len(chunk.Content) + 4*len(chunk.Embedding))
	}
	for _, doc := range r.documents {
		if doc.Status == StatusFailed {
			d.FailedDocuments++
		}
	}
	return d, nil
}

func (r *MemoryRepository) EmbeddingWidths(ctx context.Context) (map[int]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	widths := make(map[int]int)
	for _, chunk := range r.chunks {
		if chunk.Embedding != nil {
			widths[len(chunk.Embedding)]++
		}
	}
	return widths, nil
}

func (r *MemoryRepository) ResetFailedDocuments(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, doc := range r.documents {
		if doc.Status == StatusFailed {
			doc.Status = StatusPending
			doc.ErrorMessage = ""
			doc.UpdatedAt = time.Now()
			count++
		}
	}
	return count, nil
}

func (r *MemoryRepository) PurgeDeletedDocuments(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for id, doc := range r.documents {
		if doc.Status == StatusDeleted {
			r.deleteDocumentLocked(id)
			count++
		}
	}
	return count, nil
}

func (r *MemoryRepository) CreateTestCase(ctx context.Context, tc *TestCase) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if tc.ID == "" {
		tc.ID = NewID()
	}
	tc.CreatedAt = time.Now()

	stored := *tc
	r.testCases[tc.ID] = &stored
	return nil
}

func (r *MemoryRepository) ListTestCases(ctx context.Context, collectionID string) ([]TestCase, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []TestCase
	for _, tc := range r.testCases {
		if collectionID != "" && tc.CollectionID != collectionID {
			continue
		}
		out = append(out, *tc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepository) CreateEvaluationRun(ctx context.Context, run *EvaluationRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if run.ID == "" {
		run.ID = NewID()
	}
	if run.Status == "" {
		run.Status = RunRunning
	}
	run.StartedAt = time.Now()

	stored := *run
	r.runs[run.ID] = &stored
	return nil
}

func (r *MemoryRepository) UpdateEvaluationRun(ctx context.Context, run *EvaluationRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.runs[run.ID]; !ok {
		return fmt.Errorf("%w: evaluation run %s", ErrNotFound, run.ID)
	}
	stored := *run
	r.runs[run.ID] = &stored
	return nil
}

func (r *MemoryRepository) Close() error { return nil }

func (r *MemoryRepository) documentCountLocked(collectionID string) int {
	count := 0
	for _, doc := range r.documents {
		if doc.CollectionID == collectionID && doc.Status != StatusDeleted {
			count++
		}
	}
	return count
}

func (r *MemoryRepository) deleteDocumentLocked(documentID string) {
	delete(r.documents, documentID)
	for chunkID, chunk := range r.chunks {
		if chunk.DocumentID == documentID {
			delete(r.chunks, chunkID)
		}
	}
}

func validateChunkIndexes(chunks []Chunk) error {
	seen := make(map[int]bool, len(chunks))
	for _, chunk := range chunks {
		if chunk.ChunkIndex < 0 || chunk.ChunkIndex >= len(chunks) || seen[chunk.ChunkIndex] {
			return fmt.Errorf("chunk indexes must be unique and dense from 0, got %d", chunk.ChunkIndex)
		}
		seen[chunk.ChunkIndex] = true
	}
	return nil
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

var _ Repository = (*MemoryRepository)(nil)
