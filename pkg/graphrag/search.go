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

package graphrag

import (
	"context"
	"fmt"
	"sort"

	"github.com/kadirpekel/portfolio/pkg/embedder"
	"github.com/kadirpekel/portfolio/pkg/vector"
)

// SearchMode selects a graph search strategy.
type SearchMode string

const (
	// SearchLocal finds entities near the query embedding and walks
	// outward from them.
	SearchLocal SearchMode = "local"

	// SearchGlobal matches community summaries, answering questions
	// about the corpus at large.
	SearchGlobal SearchMode = "global"

	// SearchHybrid unions local and global, keeping the higher score
	// per id.
	SearchHybrid SearchMode = "hybrid"
)

// SearcherConfig tunes graph search.
type SearcherConfig struct {
	// Depth bounds the local BFS. Default: 2.
	Depth int `yaml:"depth,omitempty"`

	// Seeds is how many entity matches start the local walk.
	// Default: 3.
	Seeds int `yaml:"seeds,omitempty"`
}

// SetDefaults applies default values.
func (c *SearcherConfig) SetDefaults() {
	if c.Depth <= 0 {
		c.Depth = 2
	}
	if c.Seeds <= 0 {
		c.Seeds = 3
	}
}

// Searcher retrieves graph context for a query.
type Searcher struct {
	store    FullStore
	embedder embedder.Embedder
	cfg      SearcherConfig
}

// NewSearcher creates a graph searcher.
func NewSearcher(store FullStore, emb embedder.Embedder, cfg SearcherConfig) (*Searcher, error) {
	if store == nil {
		return nil, fmt.Errorf("graph store is required")
	}
	if emb == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	cfg.SetDefaults()
	return &Searcher{store: store, embedder: emb, cfg: cfg}, nil
}

// Search runs one graph search in the given mode.
func (s *Searcher) Search(ctx context.Context, graphID, query string, k int, mode SearchMode) ([]Hit, error) {
	emb, err := s.embedder.Embed(ctx, query, embedder.Options{})
	if err != nil {
		return nil, err
	}

	switch mode {
	case SearchLocal, "":
		return s.local(ctx, graphID, emb.Vector, k)
	case SearchGlobal:
		return s.store.SearchCommunitiesByVector(ctx, graphID, emb.Vector, k)
	case SearchHybrid:
		return s.hybrid(ctx, graphID, emb.Vector, k)
	default:
		return nil, fmt.Errorf("unknown graph search mode %q", mode)
	}
}

// local finds seed entities by vector, walks outward, and ranks the
// reached nodes by BFS depth then similarity.
func (s *Searcher) local(ctx context.Context, graphID string, vec []float32, k int) ([]Hit, error) {
	seeds, err := s.store.SearchByVector(ctx, graphID, vec, s.cfg.Seeds)
	if err != nil {
		return nil, err
	}

	type reached struct {
		entity Entity
		depth  int
	}
	best := make(map[string]reached)

	for _, seed := range seeds {
		traversal, err := s.store.BFS(ctx, graphID, seed.ID, s.cfg.Depth)
		if err != nil {
			return nil, err
		}
		for _, hop := range traversal {
			if existing, ok := best[hop.Entity.Name]; !ok || hop.Depth < existing.depth {
				best[hop.Entity.Name] = reached{entity: hop.Entity, depth: hop.Depth}
			}
		}
	}

	hits := make([]Hit, 0, len(best))
	for _, r := range best {
		score := float32(0)
		if r.entity.Embedding != nil {
			score = vector.CosineSimilarity(vec, r.entity.Embedding)
		}
		hits = append(hits, Hit{
			ID:      r.entity.Name,
			Content: nodeContent(r.entity),
			Score:   score,
			Kind:    HitEntity,
			Depth:   r.depth,
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Depth != hits[j].Depth {
			return hits[i].Depth < hits[j].Depth
		}
		return hits[i].Score > hits[j].Score
	})
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// hybrid unions local and global hits, keeping the higher score per
// id.
func (s *Searcher) hybrid(ctx context.Context, graphID string, vec []float32, k int) ([]Hit, error) {
	local, err := s.local(ctx, graphID, vec, k)
	if err != nil {
		return nil, err
	}
	global, err := s.store.SearchCommunitiesByVector(ctx, graphID, vec, k)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]Hit, len(local)+len(global))
	for _, hit := range append(local, global...) {
		if existing, ok := byID[hit.ID]; !ok || hit.Score > existing.Score {
			byID[hit.ID] = hit
		}
	}

	hits := make([]Hit, 0, len(byID))
	for _, hit := range byID {
		hits = append(hits, hit)
	}
	return topHits(hits, k), nil
}
