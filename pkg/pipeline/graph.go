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

	"github.com/kadirpekel/portfolio/pkg/graphrag"
	"github.com/kadirpekel/portfolio/pkg/telemetry"
)

// GraphRetriever retrieves results from the knowledge graph.
type GraphRetriever struct {
	searcher *graphrag.Searcher
	graphID  string
	mode     graphrag.SearchMode
}

// NewGraphRetriever creates a graph retriever in the given mode.
func NewGraphRetriever(searcher *graphrag.Searcher, graphID string, mode graphrag.SearchMode) (*GraphRetriever, error) {
	if searcher == nil {
		return nil, fmt.Errorf("graph searcher is required")
	}
	if graphID == "" {
		return nil, fmt.Errorf("graph id is required")
	}
	switch mode {
	case graphrag.SearchLocal, graphrag.SearchGlobal, graphrag.SearchHybrid, "":
	default:
		return nil, fmt.Errorf("unknown graph search mode %q", mode)
	}
	return &GraphRetriever{searcher: searcher, graphID: graphID, mode: mode}, nil
}

func (r *GraphRetriever) Retrieve(ctx context.Context, query string, k int) ([]Result, error) {
	var out []Result
	metadata := map[string]any{"mode": "graph_" + string(r.mode), "k": k}
	err := telemetry.Span(ctx, telemetry.EventRAGSearch, metadata, func(ctx context.Context) error {
		hits, err := r.searcher.Search(ctx, r.graphID, query, k, r.mode)
		if err != nil {
			return err
		}
		out = make([]Result, 0, len(hits))
		for _, hit := range hits {
			out = append(out, Result{
				ID:      hit.ID,
				Content: hit.Content,
				Score:   hit.Score,
				Source:  graphSource(hit),
			})
		}
		metadata["result_count"] = len(out)
		return nil
	})
	return out, err
}

func graphSource(hit graphrag.Hit) string {
	if hit.Kind == graphrag.HitCommunity {
		return SourceGraphGlobal
	}
	return SourceGraphLocal
}

var _ Retriever = (*GraphRetriever)(nil)
