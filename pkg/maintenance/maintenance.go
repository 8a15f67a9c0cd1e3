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

// Package maintenance provides offline repository upkeep: re-embedding
// chunks, verifying embedding consistency, retrying failed documents,
// and purging soft-deleted ones.
package maintenance

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kadirpekel/portfolio/pkg/embedder"
	"github.com/kadirpekel/portfolio/pkg/logger"
	"github.com/kadirpekel/portfolio/pkg/store"
)

const defaultReembedBatchSize = 50

// Maintainer runs maintenance operations against a repository.
type Maintainer struct {
	repo     store.Repository
	embedder embedder.Embedder
	log      *slog.Logger
}

// New creates a maintainer. The embedder may be nil when only
// non-embedding operations are used.
func New(repo store.Repository, emb embedder.Embedder) (*Maintainer, error) {
	if repo == nil {
		return nil, fmt.Errorf("repository is required")
	}
	return &Maintainer{repo: repo, embedder: emb, log: logger.GetLogger()}, nil
}

// ReembedOptions filters and tunes a re-embedding pass.
type ReembedOptions struct {
	// Collection restricts the pass to one collection by id.
	Collection string

	// WithoutEmbedding restricts the pass to chunks missing a vector.
	WithoutEmbedding bool

	// BatchSize is how many chunks embed per provider call. Default: 50.
	BatchSize int

	// Progress receives updates. Nil means silent.
	Progress ProgressReporter
}

// ChunkError records one chunk that failed to re-embed.
type ChunkError struct {
	ChunkID string
	Error   string
}

// ReembedResult summarizes one re-embedding pass.
type ReembedResult struct {
	Total     int
	Processed int
	Failed    int
	Errors    []ChunkError
}

// Reembed recomputes embeddings for every chunk matching the filter.
// Per-chunk failures are collected, not fatal.
func (m *Maintainer) Reembed(ctx context.Context, opts ReembedOptions) (*ReembedResult, error) {
	if m.embedder == nil {
		return nil, fmt.Errorf("embedder is required for reembed")
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultReembedBatchSize
	}
	progress := opts.Progress
	if progress == nil {
		progress = SilentReporter{}
	}

	chunks, err := m.collectChunks(ctx, opts)
	if err != nil {
		return nil, err
	}

	result := &ReembedResult{Total: len(chunks)}
	for start := 0; start < len(chunks); start += opts.BatchSize {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		end := start + opts.BatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, chunk := range batch {
			texts[i] = chunk.Content
		}

		embeddings, err := m.embedder.EmbedBatch(ctx, texts, embedder.Options{})
		if err != nil {
			for _, chunk := range batch {
				result.Failed++
				result.Errors = append(result.Errors, ChunkError{ChunkID: chunk.ID, Error: err.Error()})
			}
			m.log.Warn("failed to embed batch", "size", len(batch), "error", err)
		} else {
			for i, chunk := range batch {
				if err := m.repo.UpdateChunkEmbedding(ctx, chunk.ID, embeddings.Embeddings[i].Vector); err != nil {
					result.Failed++
					result.Errors = append(result.Errors, ChunkError{ChunkID: chunk.ID, Error: err.Error()})
					continue
				}
				result.Processed++
			}
		}

		progress.Report(ctx, NewProgressEvent("reembed", result.Processed+result.Failed, result.Total, ""))
	}

	return result, nil
}

// collectChunks pages through the repository gathering every chunk the
// options match, before any embedding mutates the filter's result set.
func (m *Maintainer) collectChunks(ctx context.Context, opts ReembedOptions) ([]store.Chunk, error) {
	const page = 500

	var chunks []store.Chunk
	for offset := 0; ; offset += page {
		batch, err := m.repo.ListChunks(ctx, store.ChunkFilter{
			CollectionID:     opts.Collection,
			WithoutEmbedding: opts.WithoutEmbedding,
			Limit:            page,
			Offset:           offset,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list chunks: %w", err)
		}
		chunks = append(chunks, batch...)
		if len(batch) < page {
			return chunks, nil
		}
	}
}

// Diagnostics reports repository health counts.
func (m *Maintainer) Diagnostics(ctx context.Context) (*store.Diagnostics, error) {
	return m.repo.Diagnostics(ctx)
}

// VerifyResult is the outcome of an embedding width check.
type VerifyResult struct {
	TotalChunks int
	Consistent  bool

	// Widths maps vector width to chunk count. Chunks without an
	// embedding are not counted.
	Widths map[int]int
}

// VerifyEmbeddings checks that all embedded chunks share one vector
// width.
func (m *Maintainer) VerifyEmbeddings(ctx context.Context) (*VerifyResult, error) {
	widths, err := m.repo.EmbeddingWidths(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read embedding widths: %w", err)
	}

	result := &VerifyResult{Consistent: len(widths) <= 1, Widths: widths}
	for _, count := range widths {
		result.TotalChunks += count
	}
	return result, nil
}

// RetryFailed flips failed documents back to pending and clears their
// error message. Returns how many documents were reset.
func (m *Maintainer) RetryFailed(ctx context.Context) (int, error) {
	count, err := m.repo.ResetFailedDocuments(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to reset documents: %w", err)
	}
	if count > 0 {
		m.log.Info("reset failed documents", "count", count)
	}
	return count, nil
}

// CleanupDeleted hard-deletes soft-deleted documents and their chunks.
// Returns how many documents were purged.
func (m *Maintainer) CleanupDeleted(ctx context.Context) (int, error) {
	count, err := m.repo.PurgeDeletedDocuments(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to purge documents: %w", err)
	}
	if count > 0 {
		m.log.Info("purged deleted documents", "count", count)
	}
	return count, nil
}
