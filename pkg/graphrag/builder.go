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

	"github.com/kadirpekel/portfolio/pkg/embedder"
	"github.com/kadirpekel/portfolio/pkg/logger"
)

// BuilderConfig tunes graph construction.
type BuilderConfig struct {
	// ResolveThreshold is the entity merge similarity. Default: 0.85.
	ResolveThreshold float64 `yaml:"resolve_threshold,omitempty"`

	// HierarchyLevels adds merged community levels above the base
	// partition. Zero keeps only level 0.
	HierarchyLevels int `yaml:"hierarchy_levels,omitempty"`

	Detect DetectOptions `yaml:"-"`
}

// SetDefaults applies default values.
func (c *BuilderConfig) SetDefaults() {
	if c.ResolveThreshold <= 0 {
		c.ResolveThreshold = DefaultResolveThreshold
	}
}

// BuildResult reports what one build pass produced.
type BuildResult struct {
	Entities      int
	Relationships int
	Communities   int
	FailedChunks  int
}

// Builder turns text chunks into a populated knowledge graph with
// detected communities.
type Builder struct {
	extractor *Extractor
	embedder  embedder.Embedder
	store     FullStore
	cfg       BuilderConfig
}

// NewBuilder creates a graph builder.
func NewBuilder(extractor *Extractor, emb embedder.Embedder, store FullStore, cfg BuilderConfig) (*Builder, error) {
	if extractor == nil {
		return nil, fmt.Errorf("extractor is required")
	}
	if emb == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if store == nil {
		return nil, fmt.Errorf("graph store is required")
	}
	if cfg.ResolveThreshold <= 0 {
		cfg.ResolveThreshold = DefaultResolveThreshold
	}
	return &Builder{extractor: extractor, embedder: emb, store: store, cfg: cfg}, nil
}

// Build extracts entities from the chunks, resolves duplicates,
// populates the graph, embeds entity descriptions, and regenerates
// communities. Communities are rebuilt from scratch on every pass.
func (b *Builder) Build(ctx context.Context, graphID string, chunks []string) (*BuildResult, error) {
	extraction, err := b.extractor.ExtractBatch(ctx, chunks)
	if err != nil {
		return nil, err
	}

	entities, relationships := Resolve(extraction.Entities, extraction.Relationships, b.cfg.ResolveThreshold)

	if err := b.store.CreateGraph(ctx, graphID); err != nil {
		return nil, err
	}
	for _, entity := range entities {
		if err := b.store.CreateNode(ctx, graphID, entity); err != nil {
			return nil, err
		}
	}

	stored := 0
	for _, rel := range relationships {
		if err := b.store.CreateEdge(ctx, graphID, rel); err != nil {
			// Relationships naming unextracted entities are dropped.
			logger.GetLogger().Debug("skipping dangling relationship",
				"source", rel.Source, "target", rel.Target, "error", err)
			continue
		}
		stored++
	}

	if err := b.embedEntities(ctx, graphID, entities); err != nil {
		return nil, err
	}

	communities, err := b.rebuildCommunities(ctx, graphID, entities, relationships)
	if err != nil {
		return nil, err
	}

	return &BuildResult{
		Entities:      len(entities),
		Relationships: stored,
		Communities:   communities,
		FailedChunks:  extraction.Failed,
	}, nil
}

func (b *Builder) embedEntities(ctx context.Context, graphID string, entities []Entity) error {
	if len(entities) == 0 {
		return nil
	}

	texts := make([]string, len(entities))
	for i, entity := range entities {
		texts[i] = nodeContent(entity)
	}

	batch, err := b.embedder.EmbedBatch(ctx, texts, embedder.Options{})
	if err != nil {
		return err
	}

	if err := b.store.EnsureVectorIndex(ctx, graphID, batch.Embeddings[0].Dimensions); err != nil {
		return err
	}
	for i, entity := range entities {
		if err := b.store.SetNodeEmbedding(ctx, graphID, entity.Name, batch.Embeddings[i].Vector); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) rebuildCommunities(ctx context.Context, graphID string, entities []Entity, relationships []Relationship) (int, error) {
	var communities []Community
	var err error
	if b.cfg.HierarchyLevels > 0 {
		communities, err = DetectHierarchy(ctx, entities, relationships, b.cfg.HierarchyLevels, b.cfg.Detect)
	} else {
		communities, err = DetectCommunities(ctx, entities, relationships, b.cfg.Detect)
	}
	if err != nil {
		return 0, err
	}

	if err := b.store.DeleteCommunities(ctx, graphID); err != nil {
		return 0, err
	}
	for _, community := range communities {
		if err := b.store.CreateCommunity(ctx, graphID, community); err != nil {
			return 0, err
		}
	}
	return len(communities), nil
}
