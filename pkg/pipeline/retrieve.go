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

package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/kadirpekel/portfolio/pkg/embedder"
	"github.com/kadirpekel/portfolio/pkg/telemetry"
	"github.com/kadirpekel/portfolio/pkg/vector"
)

// Retriever returns up to k candidates for a query, ordered by
// descending score.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]Result, error)
}

// VectorRetriever searches a vector index by query embedding.
type VectorRetriever struct {
	embedder embedder.Embedder
	store    vector.Store
	indexID  string
	opts     vector.SearchOptions
}

// NewVectorRetriever creates a dense vector retriever.
func NewVectorRetriever(emb embedder.Embedder, store vector.Store, indexID string, opts vector.SearchOptions) (*VectorRetriever, error) {
	if emb == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if store == nil {
		return nil, fmt.Errorf("vector store is required")
	}
	if indexID == "" {
		return nil, fmt.Errorf("index id is required")
	}
	return &VectorRetriever{embedder: emb, store: store, indexID: indexID, opts: opts}, nil
}

func (r *VectorRetriever) Retrieve(ctx context.Context, query string, k int) ([]Result, error) {
	var out []Result
	metadata := map[string]any{"mode": "semantic", "k": k}
	err := telemetry.Span(ctx, telemetry.EventRAGSearch, metadata, func(ctx context.Context) error {
		emb, err := r.embedder.Embed(ctx, query, embedder.Options{})
		if err != nil {
			return err
		}
		hits, err := r.store.Search(ctx, r.indexID, emb.Vector, k, r.opts)
		if err != nil {
			return err
		}
		out = convertResults(hits, SourceVector)
		metadata["result_count"] = len(out)
		return nil
	})
	return out, err
}

// FulltextRetriever searches a hybrid-capable store's text index.
type FulltextRetriever struct {
	store   vector.HybridCapable
	indexID string
	opts    vector.FulltextOptions
}

// NewFulltextRetriever creates a full-text retriever. The store must
// implement vector.HybridCapable.
func NewFulltextRetriever(store vector.Store, indexID string, opts vector.FulltextOptions) (*FulltextRetriever, error) {
	hybrid, ok := store.(vector.HybridCapable)
	if !ok {
		return nil, vector.ErrNotHybrid
	}
	if indexID == "" {
		return nil, fmt.Errorf("index id is required")
	}
	return &FulltextRetriever{store: hybrid, indexID: indexID, opts: opts}, nil
}

func (r *FulltextRetriever) Retrieve(ctx context.Context, query string, k int) ([]Result, error) {
	var out []Result
	metadata := map[string]any{"mode": "fulltext", "k": k}
	err := telemetry.Span(ctx, telemetry.EventRAGSearch, metadata, func(ctx context.Context) error {
		hits, err := r.store.FulltextSearch(ctx, r.indexID, query, k, r.opts)
		if err != nil {
			return err
		}
		out = convertResults(hits, SourceFulltext)
		metadata["result_count"] = len(out)
		return nil
	})
	return out, err
}

// HybridRetriever blends vector and full-text scores.
type HybridRetriever struct {
	vector   Retriever
	fulltext Retriever
	alpha    float32
}

// NewHybridRetriever creates a hybrid retriever. Alpha weights the
// vector score; zero means the default 0.5.
func NewHybridRetriever(vectorRetriever, fulltextRetriever Retriever, alpha float32) (*HybridRetriever, error) {
	if vectorRetriever == nil || fulltextRetriever == nil {
		return nil, fmt.Errorf("both vector and fulltext retrievers are required")
	}
	if alpha < 0 || alpha > 1 {
		return nil, fmt.Errorf("alpha must be in [0, 1], got %g", alpha)
	}
	if alpha == 0 {
		alpha = 0.5
	}
	return &HybridRetriever{vector: vectorRetriever, fulltext: fulltextRetriever, alpha: alpha}, nil
}

func (r *HybridRetriever) Retrieve(ctx context.Context, query string, k int) ([]Result, error) {
	var vectorHits, fulltextHits []Result

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hits, err := r.vector.Retrieve(gctx, query, k)
		vectorHits = hits
		return err
	})
	g.Go(func() error {
		hits, err := r.fulltext.Retrieve(gctx, query, k)
		fulltextHits = hits
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	blended := make(map[string]Result, len(vectorHits)+len(fulltextHits))
	for _, hit := range vectorHits {
		hit.Score = r.alpha * hit.Score
		hit.Source = SourceHybrid
		blended[hit.ID] = hit
	}
	for _, hit := range fulltextHits {
		score := (1 - r.alpha) * hit.Score
		if existing, ok := blended[hit.ID]; ok {
			existing.Score += score
			blended[hit.ID] = existing
			continue
		}
		hit.Score = score
		hit.Source = SourceHybrid
		blended[hit.ID] = hit
	}

	out := make([]Result, 0, len(blended))
	for _, hit := range blended {
		out = append(out, hit)
	}
	sortByScore(out)
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

// Composer fans a query out to several retrievers and merges their
// results.
type Composer struct {
	retrievers []Retriever

	// DedupeByContent additionally collapses results sharing a
	// metadata content_hash.
	DedupeByContent bool
}

// NewComposer creates a retriever composer.
func NewComposer(retrievers ...Retriever) (*Composer, error) {
	if len(retrievers) == 0 {
		return nil, fmt.Errorf("at least one retriever is required")
	}
	return &Composer{retrievers: retrievers}, nil
}

// Retrieve runs every retriever concurrently and merges the outputs,
// deduplicating by id and keeping the maximum score.
func (c *Composer) Retrieve(ctx context.Context, query string, k int) ([]Result, error) {
	groups := make([][]Result, len(c.retrievers))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for i, retriever := range c.retrievers {
		g.Go(func() error {
			hits, err := retriever.Retrieve(gctx, query, k)
			if err != nil {
				return err
			}
			mu.Lock()
			groups[i] = hits
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := Merge(groups, c.DedupeByContent)
	if len(merged) > k {
		merged = merged[:k]
	}
	return merged, nil
}

// Stage returns a required pipeline stage storing merged results on
// the Context. A retrieval error halts.
func (c *Composer) Stage(k int) Stage {
	return func(ctx context.Context, pc Context) Context {
		results, err := c.Retrieve(ctx, pc.EffectiveQuery(), k)
		if err != nil {
			return pc.Halt(err)
		}
		pc.Results = results
		return pc
	}
}

// Merge concatenates result groups, deduplicating by id and keeping
// the highest-scoring duplicate. With byContent set, results sharing a
// metadata content_hash also collapse.
func Merge(groups [][]Result, byContent bool) []Result {
	byID := make(map[string]Result)
	var order []string
	for _, group := range groups {
		for _, hit := range group {
			existing, ok := byID[hit.ID]
			if !ok {
				byID[hit.ID] = hit
				order = append(order, hit.ID)
				continue
			}
			if hit.Score > existing.Score {
				byID[hit.ID] = hit
			}
		}
	}

	out := make([]Result, 0, len(byID))
	seenContent := make(map[string]bool)
	for _, id := range order {
		hit := byID[id]
		if byContent {
			if hash, ok := hit.Metadata["content_hash"].(string); ok && hash != "" {
				if seenContent[hash] {
					continue
				}
				seenContent[hash] = true
			}
		}
		out = append(out, hit)
	}
	sortByScore(out)
	return out
}

func convertResults(hits []vector.Result, source string) []Result {
	out := make([]Result, 0, len(hits))
	for _, hit := range hits {
		content := hit.Content
		if content == "" {
			if c, ok := hit.Metadata["content"].(string); ok {
				content = c
			}
		}
		out = append(out, Result{
			ID:       hit.ID,
			Content:  content,
			Score:    hit.Score,
			Metadata: hit.Metadata,
			Source:   source,
		})
	}
	return out
}

func sortByScore(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}
