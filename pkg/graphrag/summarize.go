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
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kadirpekel/portfolio/pkg/embedder"
	"github.com/kadirpekel/portfolio/pkg/llm"
	"github.com/kadirpekel/portfolio/pkg/logger"
	"github.com/kadirpekel/portfolio/pkg/telemetry"
)

const summarizePrompt = `Summarize what connects the entities below into a short prose
paragraph. Mention the most important entities by name.`

// Summarizer generates and embeds community summaries.
type Summarizer struct {
	llm      llm.Provider
	embedder embedder.Embedder
	cfg      ExtractorConfig
}

// NewSummarizer creates a community summarizer. Batch pacing reuses
// the extraction config.
func NewSummarizer(provider llm.Provider, emb embedder.Embedder, cfg ExtractorConfig) (*Summarizer, error) {
	if provider == nil {
		return nil, fmt.Errorf("LLM provider is required")
	}
	if emb == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	cfg.SetDefaults()
	return &Summarizer{llm: provider, embedder: emb, cfg: cfg}, nil
}

// Summarize generates a summary for one community, embeds it, and
// persists both on the community.
func (s *Summarizer) Summarize(ctx context.Context, store FullStore, graphID string, community Community) error {
	metadata := map[string]any{"community": community.ID, "members": len(community.Members)}
	return telemetry.Span(ctx, telemetry.EventGraphSummarize, metadata, func(ctx context.Context) error {
		members, edges, err := store.GetSubgraph(ctx, graphID, community.Members)
		if err != nil {
			return err
		}

		completion, err := s.llm.Complete(ctx, []llm.Message{
			llm.System(summarizePrompt),
			llm.User(summaryInput(members, edges)),
		}, llm.Options{})
		if err != nil {
			return err
		}
		summary := strings.TrimSpace(completion.Content)

		emb, err := s.embedder.Embed(ctx, summary, embedder.Options{})
		if err != nil {
			return err
		}
		return store.UpdateCommunitySummary(ctx, graphID, community.ID, summary, emb.Vector)
	})
}

// SummarizeAll summarizes every community of a level with bounded
// concurrency, returning how many summaries were written. Individual
// failures are logged and skipped.
func (s *Summarizer) SummarizeAll(ctx context.Context, store FullStore, graphID string, level int) (int, error) {
	communities, err := store.ListCommunities(ctx, graphID, level)
	if err != nil {
		return 0, err
	}

	var (
		mu         sync.Mutex
		summarized int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.MaxConcurrency)

	for i, community := range communities {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := s.Summarize(gctx, store, graphID, community); err != nil {
				logger.GetLogger().Warn("community summarization failed, skipping",
					"community", community.ID, "error", err)
				return nil
			}
			mu.Lock()
			summarized++
			mu.Unlock()
			return nil
		})
		if i < len(communities)-1 {
			time.Sleep(s.cfg.RateLimit)
		}
	}
	if err := g.Wait(); err != nil {
		return summarized, err
	}
	return summarized, ctx.Err()
}

func summaryInput(members []Entity, edges []Relationship) string {
	var b strings.Builder
	b.WriteString("Entities:\n")
	for _, member := range members {
		fmt.Fprintf(&b, "- %s (%s)", member.Name, member.Type)
		if member.Description != "" {
			fmt.Fprintf(&b, ": %s", member.Description)
		}
		b.WriteString("\n")
	}
	if len(edges) > 0 {
		b.WriteString("\nRelationships:\n")
		for _, edge := range edges {
			fmt.Fprintf(&b, "- %s %s %s\n", edge.Source, edge.Type, edge.Target)
		}
	}
	return b.String()
}
