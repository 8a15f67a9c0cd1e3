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
	"errors"
)

var (
	// ErrNotFound reports a missing record.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate reports a uniqueness violation.
	ErrDuplicate = errors.New("record already exists")
)

// DocumentFilter narrows document listings.
type DocumentFilter struct {
	CollectionID string
	Status       DocumentStatus
	Limit        int
	Offset       int
}

// ChunkFilter narrows chunk listings.
type ChunkFilter struct {
	CollectionID     string
	DocumentID       string
	WithoutEmbedding bool
	Limit            int
	Offset           int
}

// Diagnostics summarizes repository health counts.
type Diagnostics struct {
	Collections            int
	Documents              int
	Chunks                 int
	ChunksWithoutEmbedding int
	FailedDocuments        int
	StorageBytes           int64
}

// Repository persists the engine's relational records. Implementations
// must be safe for concurrent use.
type Repository interface {
	// Collections.
	CreateCollection(ctx context.Context, name string, metadata map[string]any) (*Collection, error)
	GetCollection(ctx context.Context, name string) (*Collection, error)
	ListCollections(ctx context.Context) ([]Collection, error)
	DeleteCollection(ctx context.Context, id string) error

	// Documents. Deleting a document cascades to its chunks.
	CreateDocument(ctx context.Context, doc *Document) error
	GetDocument(ctx context.Context, id string) (*Document, error)
	FindDocumentByHash(ctx context.Context, collectionID, hash string) (*Document, error)
	ListDocuments(ctx context.Context, filter DocumentFilter) ([]Document, error)
	UpdateDocumentStatus(ctx context.Context, id string, status DocumentStatus, errorMessage string) error
	SetDocumentChunkCount(ctx context.Context, id string, count int) error

	// Chunks. CreateChunks enforces dense chunk indexes from zero.
	CreateChunks(ctx context.Context, documentID string, chunks []Chunk) error
	ListChunks(ctx context.Context, filter ChunkFilter) ([]Chunk, error)
	UpdateChunkEmbedding(ctx context.Context, chunkID string, embedding []float32) error

	// Maintenance.
	Diagnostics(ctx context.Context) (*Diagnostics, error)
	EmbeddingWidths(ctx context.Context) (map[int]int, error)
	ResetFailedDocuments(ctx context.Context) (int, error)
	PurgeDeletedDocuments(ctx context.Context) (int, error)

	// Evaluation.
	CreateTestCase(ctx context.Context, tc *TestCase) error
	ListTestCases(ctx context.Context, collectionID string) ([]TestCase, error)
	CreateEvaluationRun(ctx context.Context, run *EvaluationRun) error
	UpdateEvaluationRun(ctx context.Context, run *EvaluationRun) error

	Close() error
}
