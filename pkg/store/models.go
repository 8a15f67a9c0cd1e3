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

// Package store persists collections, documents, chunks, and evaluation
// records in a relational database.
package store

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// DocumentStatus is a document's lifecycle state.
type DocumentStatus string

const (
	StatusPending    DocumentStatus = "pending"
	StatusProcessing DocumentStatus = "processing"
	StatusCompleted  DocumentStatus = "completed"
	StatusFailed     DocumentStatus = "failed"
	StatusDeleted    DocumentStatus = "deleted"
)

// Collection is a named group of documents.
type Collection struct {
	ID       string
	Name     string
	Metadata map[string]any

	// DocumentCount is computed on read, not stored.
	DocumentCount int

	CreatedAt time.Time
}

// Document is one ingested text source.
type Document struct {
	ID           string
	CollectionID string
	Source       string
	Title        string
	Status       DocumentStatus

	// ContentHash is the SHA-256 of the document content, used for
	// ingest dedup.
	ContentHash string

	ChunkCount   int
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Chunk is one ordered span of a document. Within a document,
// chunk_index values are unique and dense from zero.
type Chunk struct {
	ID         string
	DocumentID string
	Content    string
	ChunkIndex int
	StartChar  int
	EndChar    int
	TokenCount int

	// Embedding is nil until the embedding processor fills it.
	Embedding []float32

	Metadata  map[string]any
	CreatedAt time.Time
}

// TestCase is one retrieval quality probe: a query and the chunk ids a
// good retriever should return for it.
type TestCase struct {
	ID           string
	CollectionID string
	Query        string
	ExpectedIDs  []string
	Metadata     map[string]any
	CreatedAt    time.Time
}

// RunStatus is an evaluation run's lifecycle state.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// EvaluationRun records one offline evaluation pass.
type EvaluationRun struct {
	ID               string
	CollectionID     string
	Status           RunStatus
	Config           map[string]any
	AggregateMetrics map[string]float64
	PerCaseResults   []map[string]any
	StartedAt        time.Time
	CompletedAt      *time.Time
	ErrorMessage     string
}

// NewID returns a fresh 128-bit identifier.
func NewID() string {
	return uuid.NewString()
}

// HashContent returns the hex SHA-256 of document content.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
