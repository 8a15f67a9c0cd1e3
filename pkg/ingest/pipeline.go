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

package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kadirpekel/portfolio/pkg/chunker"
	"github.com/kadirpekel/portfolio/pkg/embedder"
	"github.com/kadirpekel/portfolio/pkg/logger"
	"github.com/kadirpekel/portfolio/pkg/ratelimit"
	"github.com/kadirpekel/portfolio/pkg/store"
	"github.com/kadirpekel/portfolio/pkg/telemetry"
	"github.com/kadirpekel/portfolio/pkg/vector"
)

// Pipeline runs files through extraction, chunking, embedding, and
// batched vector storage.
type Pipeline struct {
	cfg        Config
	extractors *ExtractorRegistry
	chunker    chunker.Chunker
	embedder   embedder.Embedder
	limiter    *ratelimit.Limiter
	store      vector.Store
	log        *slog.Logger

	repo         store.Repository
	collectionID string
}

// NewPipeline creates an ingestion pipeline. A nil limiter falls back
// to the process-wide one.
func NewPipeline(emb embedder.Embedder, store vector.Store, limiter *ratelimit.Limiter, cfg Config) (*Pipeline, error) {
	if emb == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if store == nil {
		return nil, fmt.Errorf("vector store is required")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid ingest config: %w", err)
	}
	if limiter == nil {
		limiter = ratelimit.Default()
	}

	return &Pipeline{
		cfg:        cfg,
		extractors: NewExtractorRegistry(),
		chunker:    chunker.New(),
		embedder:   emb,
		limiter:    limiter,
		store:      store,
		log:        logger.GetLogger(),
	}, nil
}

// WithRepository records documents and chunks in the relational store
// as they pass through the pipeline. Files whose content hash already
// exists in the collection are skipped, and chunk embeddings are
// written back as they complete.
func (p *Pipeline) WithRepository(repo store.Repository, collectionID string) *Pipeline {
	p.repo = repo
	p.collectionID = collectionID
	return p
}

// Run ingests a fixed set of files into the index and reports what
// happened. Per-file and per-chunk failures are logged and counted; the
// run only fails on cancellation.
func (p *Pipeline) Run(ctx context.Context, indexID string, files []FileItem) (*Stats, error) {
	in := make(chan FileItem, len(files))
	for _, f := range files {
		in <- f
	}
	close(in)
	return p.RunStream(ctx, indexID, in)
}

// RunStream ingests files as they arrive on the channel, returning once
// the channel closes and every stage drains.
func (p *Pipeline) RunStream(ctx context.Context, indexID string, files <-chan FileItem) (*Stats, error) {
	stats := &Stats{}
	var mu sync.Mutex

	embedQ := newQueue[ChunkItem]()
	batches := make(chan vector.Item, p.cfg.BatchSize)

	var chunkers sync.WaitGroup
	for i := 0; i < p.cfg.Workers; i++ {
		chunkers.Add(1)
		go func() {
			defer chunkers.Done()
			p.chunkWorker(ctx, files, embedQ, stats, &mu)
		}()
	}

	var embedders sync.WaitGroup
	for i := 0; i < p.cfg.Workers; i++ {
		embedders.Add(1)
		go func() {
			defer embedders.Done()
			p.embedWorker(ctx, embedQ, batches, stats, &mu)
		}()
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		p.batchWriter(ctx, indexID, batches, stats, &mu)
	}()

	chunkers.Wait()
	embedQ.Close()
	embedders.Wait()
	close(batches)
	<-writerDone

	return stats, ctx.Err()
}

// chunkWorker extracts and chunks whole files, so chunks of one file
// enter the embed queue in order.
func (p *Pipeline) chunkWorker(ctx context.Context, files <-chan FileItem, out *queue[ChunkItem], stats *Stats, mu *sync.Mutex) {
	for {
		select {
		case <-ctx.Done():
			return
		case file, ok := <-files:
			if !ok {
				return
			}

			items, skipped, err := p.chunkFile(ctx, file)

			mu.Lock()
			stats.Files++
			switch {
			case err != nil:
				stats.FailedFiles++
			case skipped:
				stats.SkippedFiles++
			default:
				stats.Chunks += len(items)
			}
			mu.Unlock()

			if err != nil {
				p.log.Warn("failed to ingest file", "path", file.Path, "error", err)
				continue
			}
			if skipped {
				p.log.Debug("skipping unchanged file", "path", file.Path)
				continue
			}

			telemetry.Count(ctx, telemetry.EventIngestFile, map[string]any{
				"path":   file.Path,
				"type":   file.Type,
				"chunks": len(items),
			})
			for _, item := range items {
				out.Push(item)
			}
		}
	}
}

func (p *Pipeline) chunkFile(ctx context.Context, file FileItem) ([]ChunkItem, bool, error) {
	content, err := p.extractors.Extract(ctx, file.Path)
	if err != nil {
		return nil, false, err
	}
	if int64(len(content)) > p.cfg.MaxFileSize {
		return nil, false, fmt.Errorf("file exceeds max size (%d > %d bytes)", len(content), p.cfg.MaxFileSize)
	}
	chunks, err := p.chunker.Chunk(content, p.cfg.Chunker)
	if err != nil {
		return nil, false, err
	}

	items := make([]ChunkItem, len(chunks))
	for i, chunk := range chunks {
		items[i] = ChunkItem{Source: file.Path, Chunk: chunk}
	}
	if p.repo == nil {
		return items, false, nil
	}

	ids, skipped, err := p.recordDocument(ctx, file.Path, content, chunks)
	if err != nil || skipped {
		return nil, skipped, err
	}
	for i := range items {
		items[i].ChunkID = ids[i]
	}
	return items, false, nil
}

// recordDocument persists the document and chunk rows for a file,
// deduplicating by content hash. It returns the created chunk ids in
// chunk order.
func (p *Pipeline) recordDocument(ctx context.Context, path, content string, chunks []chunker.Chunk) ([]string, bool, error) {
	hash := store.HashContent(content)
	if _, err := p.repo.FindDocumentByHash(ctx, p.collectionID, hash); err == nil {
		return nil, true, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, false, err
	}

	doc := &store.Document{
		CollectionID: p.collectionID,
		Source:       path,
		Status:       store.StatusProcessing,
		ContentHash:  hash,
	}
	if err := p.repo.CreateDocument(ctx, doc); err != nil {
		return nil, false, err
	}

	records := make([]store.Chunk, len(chunks))
	for i, chunk := range chunks {
		records[i] = store.Chunk{
			Content:    chunk.Content,
			ChunkIndex: chunk.Index,
			StartChar:  chunk.StartChar,
			EndChar:    chunk.EndChar,
			TokenCount: chunk.TokenCount,
			Metadata:   chunk.Metadata,
		}
	}
	if err := p.repo.CreateChunks(ctx, doc.ID, records); err != nil {
		_ = p.repo.UpdateDocumentStatus(ctx, doc.ID, store.StatusFailed, err.Error())
		return nil, false, err
	}
	if err := p.repo.SetDocumentChunkCount(ctx, doc.ID, len(records)); err != nil {
		return nil, false, err
	}
	if err := p.repo.UpdateDocumentStatus(ctx, doc.ID, store.StatusCompleted, ""); err != nil {
		return nil, false, err
	}

	ids := make([]string, len(records))
	for i := range records {
		ids[i] = records[i].ID
	}
	return ids, false, nil
}

// embedWorker embeds chunks, consulting the rate limiter first. A
// denied chunk goes back to the tail of the queue.
func (p *Pipeline) embedWorker(ctx context.Context, in *queue[ChunkItem], out chan<- vector.Item, stats *Stats, mu *sync.Mutex) {
	provider := p.embedder.Provider()

	for {
		item, ok := in.Pop()
		if !ok {
			return
		}
		if ctx.Err() != nil {
			in.Done()
			return
		}

		if decision := p.limiter.Allow(provider, ratelimit.OpEmbedding); !decision.OK {
			in.Push(item)
			in.Done()

			mu.Lock()
			stats.RateLimited++
			mu.Unlock()

			telemetry.Count(ctx, telemetry.EventIngestRateLimited, map[string]any{
				"provider": provider,
				"backoff":  decision.Backoff.String(),
			})
			// Without this pause a drained queue of denied chunks
			// would spin the workers.
			time.Sleep(decision.Backoff)
			continue
		}

		emb, err := p.embedder.Embed(ctx, item.Chunk.Content, embedder.Options{})
		if err != nil {
			p.log.Warn("failed to embed chunk",
				"source", item.Source, "index", item.Chunk.Index, "error", err)
			mu.Lock()
			stats.FailedChunks++
			mu.Unlock()
			in.Done()
			continue
		}

		if p.repo != nil && item.ChunkID != "" {
			if err := p.repo.UpdateChunkEmbedding(ctx, item.ChunkID, emb.Vector); err != nil {
				p.log.Warn("failed to record chunk embedding",
					"chunk", item.ChunkID, "error", err)
			}
		}

		metadata := map[string]any{
			"content":     item.Chunk.Content,
			"source":      item.Source,
			"chunk_index": item.Chunk.Index,
			"token_count": item.Chunk.TokenCount,
		}
		for k, v := range item.Chunk.Metadata {
			metadata[k] = v
		}

		select {
		case out <- vector.Item{
			ID:       ItemID(item.Source, item.Chunk.Index, item.Chunk.Content),
			Vector:   emb.Vector,
			Metadata: metadata,
		}:
			mu.Lock()
			stats.Embedded++
			mu.Unlock()
		case <-ctx.Done():
		}
		in.Done()
	}
}

// batchWriter accumulates embedded chunks and flushes them to the
// vector store when the batch fills or the timeout elapses.
func (p *Pipeline) batchWriter(ctx context.Context, indexID string, in <-chan vector.Item, stats *Stats, mu *sync.Mutex) {
	batch := make([]vector.Item, 0, p.cfg.BatchSize)
	timer := time.NewTimer(p.cfg.BatchTimeout)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		err := p.store.StoreBatch(ctx, indexID, batch)

		mu.Lock()
		if err != nil {
			stats.FailedBatches++
		} else {
			stats.Stored += len(batch)
		}
		mu.Unlock()

		if err != nil {
			p.log.Error("failed to store batch",
				"index", indexID, "size", len(batch), "error", err)
		} else {
			telemetry.Count(ctx, telemetry.EventIngestFlush, map[string]any{
				"index": indexID,
				"size":  len(batch),
			})
		}
		batch = batch[:0]
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(p.cfg.BatchTimeout)
	}

	for {
		select {
		case item, ok := <-in:
			if !ok {
				flush()
				return
			}
			batch = append(batch, item)
			if len(batch) >= p.cfg.BatchSize {
				flush()
			}
		case <-timer.C:
			flush()
		case <-ctx.Done():
			return
		}
	}
}
