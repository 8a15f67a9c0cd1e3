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

package vector

import (
	"context"

	"github.com/kadirpekel/portfolio/pkg/telemetry"
)

// Instrumented wraps a store with telemetry spans on the write and
// search paths. Index management calls pass through untouched.
type Instrumented struct {
	inner Store
}

// Instrument wraps a store.
func Instrument(inner Store) *Instrumented {
	return &Instrumented{inner: inner}
}

func (s *Instrumented) CreateIndex(ctx context.Context, id string, index Index) error {
	return s.inner.CreateIndex(ctx, id, index)
}

func (s *Instrumented) DeleteIndex(ctx context.Context, id string) error {
	return s.inner.DeleteIndex(ctx, id)
}

func (s *Instrumented) IndexExists(ctx context.Context, id string) (bool, error) {
	return s.inner.IndexExists(ctx, id)
}

func (s *Instrumented) IndexStats(ctx context.Context, id string) (*IndexStats, error) {
	return s.inner.IndexStats(ctx, id)
}

func (s *Instrumented) Store(ctx context.Context, indexID, id string, vec []float32, itemMetadata map[string]any) error {
	metadata := map[string]any{
		"backend": s.inner.Name(),
		"index":   indexID,
	}
	return telemetry.Span(ctx, telemetry.EventVectorInsert, metadata, func(ctx context.Context) error {
		return s.inner.Store(ctx, indexID, id, vec, itemMetadata)
	})
}

func (s *Instrumented) StoreBatch(ctx context.Context, indexID string, items []Item) error {
	metadata := map[string]any{
		"backend": s.inner.Name(),
		"index":   indexID,
		"count":   len(items),
	}
	return telemetry.Span(ctx, telemetry.EventVectorInsertBatch, metadata, func(ctx context.Context) error {
		return s.inner.StoreBatch(ctx, indexID, items)
	})
}

func (s *Instrumented) Search(ctx context.Context, indexID string, vec []float32, k int, opts SearchOptions) ([]Result, error) {
	mode := opts.Mode
	if mode == "" {
		mode = ModeVector
	}

	metadata := map[string]any{
		"backend": s.inner.Name(),
		"index":   indexID,
		"mode":    string(mode),
		"limit":   k,
	}

	var results []Result
	err := telemetry.Span(ctx, telemetry.EventVectorSearch, metadata, func(ctx context.Context) error {
		var err error
		results, err = s.inner.Search(ctx, indexID, vec, k, opts)
		if err != nil {
			return err
		}
		metadata["result_count"] = len(results)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// FulltextSearch delegates when the wrapped backend is hybrid-capable.
func (s *Instrumented) FulltextSearch(ctx context.Context, indexID, query string, k int, opts FulltextOptions) ([]Result, error) {
	hybrid, ok := s.inner.(HybridCapable)
	if !ok {
		return nil, ErrNotHybrid
	}

	metadata := map[string]any{
		"backend": s.inner.Name(),
		"index":   indexID,
		"mode":    string(ModeFulltext),
		"limit":   k,
	}

	var results []Result
	err := telemetry.Span(ctx, telemetry.EventVectorSearch, metadata, func(ctx context.Context) error {
		var err error
		results, err = hybrid.FulltextSearch(ctx, indexID, query, k, opts)
		if err != nil {
			return err
		}
		metadata["result_count"] = len(results)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Instrumented) Delete(ctx context.Context, indexID, id string) error {
	return s.inner.Delete(ctx, indexID, id)
}

func (s *Instrumented) Name() string { return s.inner.Name() }
func (s *Instrumented) Close() error { return s.inner.Close() }

var (
	_ Store         = (*Instrumented)(nil)
	_ HybridCapable = (*Instrumented)(nil)
)
