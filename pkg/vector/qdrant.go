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
	"fmt"
	"strings"
	"sync"

	"github.com/qdrant/go-client/qdrant"
)

// QdrantConfig configures the Qdrant backend.
type QdrantConfig struct {
	// Host is the Qdrant server hostname. Default: localhost.
	Host string `yaml:"host"`

	// Port is the Qdrant gRPC port. Default: 6334.
	Port int `yaml:"port"`

	// APIKey for authenticated access (optional).
	APIKey string `yaml:"api_key,omitempty"`

	// UseTLS enables TLS connections.
	UseTLS bool `yaml:"use_tls,omitempty"`
}

// QdrantStore implements Store against a Qdrant server over gRPC.
type QdrantStore struct {
	client *qdrant.Client
	config QdrantConfig

	mu      sync.RWMutex
	configs map[string]Index
}

// NewQdrantStore creates a Qdrant-backed store.
func NewQdrantStore(cfg QdrantConfig) (*QdrantStore, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Qdrant client for %s:%d: %w",
			cfg.Host, cfg.Port, err)
	}

	return &QdrantStore{
		client:  client,
		config:  cfg,
		configs: make(map[string]Index),
	}, nil
}

func qdrantDistance(metric Metric) (qdrant.Distance, error) {
	switch metric {
	case MetricCosine:
		return qdrant.Distance_Cosine, nil
	case MetricEuclidean:
		return qdrant.Distance_Euclid, nil
	case MetricDot:
		return qdrant.Distance_Dot, nil
	default:
		return qdrant.Distance_UnknownDistance, fmt.Errorf("unknown metric %q", metric)
	}
}

func (s *QdrantStore) CreateIndex(ctx context.Context, id string, index Index) error {
	index.SetDefaults()
	if err := index.Validate(); err != nil {
		return fmt.Errorf("invalid index config: %w", err)
	}

	distance, err := qdrantDistance(index.Metric)
	if err != nil {
		return err
	}

	exists, err := s.client.CollectionExists(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}

	if !exists {
		err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: id,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(index.Dimensions),
				Distance: distance,
			}),
		})
		if err != nil && !strings.Contains(err.Error(), "already exists") {
			return fmt.Errorf("failed to create collection: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.configs[id]; ok && existing.Dimensions != index.Dimensions {
		return fmt.Errorf("%w: index %q has %d dimensions, requested %d",
			ErrDimensionMismatch, id, existing.Dimensions, index.Dimensions)
	}
	s.configs[id] = index
	return nil
}

func (s *QdrantStore) DeleteIndex(ctx context.Context, id string) error {
	if err := s.client.DeleteCollection(ctx, id); err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}

	s.mu.Lock()
	delete(s.configs, id)
	s.mu.Unlock()
	return nil
}

func (s *QdrantStore) IndexExists(ctx context.Context, id string) (bool, error) {
	exists, err := s.client.CollectionExists(ctx, id)
	if err != nil {
		return false, fmt.Errorf("failed to check collection: %w", err)
	}
	return exists, nil
}

func (s *QdrantStore) IndexStats(ctx context.Context, id string) (*IndexStats, error) {
	count, err := s.client.Count(ctx, &qdrant.CountPoints{CollectionName: id})
	if err != nil {
		return nil, fmt.Errorf("failed to count points: %w", err)
	}

	stats := &IndexStats{Count: int(count)}

	s.mu.RLock()
	if config, ok := s.configs[id]; ok {
		stats.Dimensions = config.Dimensions
		stats.Metric = config.Metric
	}
	s.mu.RUnlock()
	return stats, nil
}

func (s *QdrantStore) Store(ctx context.Context, indexID, id string, vec []float32, metadata map[string]any) error {
	return s.StoreBatch(ctx, indexID, []Item{{ID: id, Vector: vec, Metadata: metadata}})
}

func (s *QdrantStore) StoreBatch(ctx context.Context, indexID string, items []Item) error {
	points := make([]*qdrant.PointStruct, 0, len(items))
	for _, item := range items {
		if err := s.checkDimensions(indexID, len(item.Vector)); err != nil {
			return err
		}

		payload := make(map[string]*qdrant.Value, len(item.Metadata))
		for key, value := range item.Metadata {
			val, err := qdrant.NewValue(value)
			if err != nil {
				return fmt.Errorf("failed to convert metadata value for key %s: %w", key, err)
			}
			payload[key] = val
		}

		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewID(item.ID),
			Vectors: qdrant.NewVectors(item.Vector...),
			Payload: payload,
		})
	}

	// One upsert call so the batch lands together.
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: indexID,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert points: %w", err)
	}
	return nil
}

func (s *QdrantStore) Search(ctx context.Context, indexID string, vec []float32, k int, opts SearchOptions) ([]Result, error) {
	if opts.Mode != "" && opts.Mode != ModeVector {
		return nil, fmt.Errorf("qdrant backend: search mode %q not supported", opts.Mode)
	}
	if err := s.checkDimensions(indexID, len(vec)); err != nil {
		return nil, err
	}

	searchRequest := &qdrant.SearchPoints{
		CollectionName: indexID,
		Vector:         vec,
		Limit:          uint64(k),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(opts.IncludeVector),
	}
	if len(opts.Filter) > 0 {
		searchRequest.Filter = buildQdrantFilter(opts.Filter)
	}

	pointsClient := s.client.GetPointsClient()
	searchResult, err := pointsClient.Search(ctx, searchRequest)
	if err != nil {
		return nil, fmt.Errorf("failed to search points: %w", err)
	}

	metric := s.metric(indexID)
	if opts.Metric != "" {
		metric = opts.Metric
	}

	results := make([]Result, 0, len(searchResult.Result))
	for _, point := range searchResult.Result {
		result := convertQdrantPoint(point)
		result.Score = NormalizeScore(metric, result.Score)
		if result.Score < opts.MinScore {
			continue
		}
		results = append(results, result)
	}
	return results, nil
}

func (s *QdrantStore) Delete(ctx context.Context, indexID, id string) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: indexID,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Points{
				Points: &qdrant.PointsIdsList{
					Ids: []*qdrant.PointId{
						{PointIdOptions: &qdrant.PointId_Uuid{Uuid: id}},
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete point %s: %w", id, err)
	}
	return nil
}

func (s *QdrantStore) Name() string { return "qdrant" }

func (s *QdrantStore) Close() error {
	return s.client.Close()
}

func (s *QdrantStore) checkDimensions(indexID string, got int) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	config, ok := s.configs[indexID]
	if !ok {
		// Collection created outside this process; Qdrant enforces
		// dimensions server-side.
		return nil
	}
	if got != config.Dimensions {
		return fmt.Errorf("%w: got %d dimensions, index %q expects %d",
			ErrDimensionMismatch, got, indexID, config.Dimensions)
	}
	return nil
}

func (s *QdrantStore) metric(indexID string) Metric {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if config, ok := s.configs[indexID]; ok {
		return config.Metric
	}
	return MetricCosine
}

// buildQdrantFilter converts a filter map to a Qdrant must-match filter.
func buildQdrantFilter(filter map[string]any) *qdrant.Filter {
	conditions := make([]*qdrant.Condition, 0, len(filter))
	for key, value := range filter {
		val, err := qdrant.NewValue(value)
		if err != nil {
			continue
		}

		conditions = append(conditions, &qdrant.Condition{
			ConditionOneOf: &qdrant.Condition_Field{
				Field: &qdrant.FieldCondition{
					Key: key,
					Match: &qdrant.Match{
						MatchValue: &qdrant.Match_Keyword{
							Keyword: val.GetStringValue(),
						},
					},
				},
			},
		})
	}
	return &qdrant.Filter{Must: conditions}
}

func convertQdrantPoint(point *qdrant.ScoredPoint) Result {
	var id string
	if point.Id != nil && point.Id.PointIdOptions != nil {
		switch idType := point.Id.PointIdOptions.(type) {
		case *qdrant.PointId_Uuid:
			id = idType.Uuid
		case *qdrant.PointId_Num:
			id = fmt.Sprintf("%d", idType.Num)
		}
	}

	var vector []float32
	if point.Vectors != nil {
		if vectorData := point.Vectors.GetVector(); vectorData != nil {
			switch v := vectorData.Vector.(type) {
			case *qdrant.VectorOutput_Dense:
				if v.Dense != nil {
					vector = v.Dense.Data
				}
			}
		}
	}

	metadata := make(map[string]any, len(point.Payload))
	for key, value := range point.Payload {
		metadata[key] = qdrantValue(value)
	}

	content := ""
	if c, ok := metadata["content"].(string); ok {
		content = c
	}

	return Result{
		ID:       id,
		Score:    point.Score,
		Content:  content,
		Metadata: metadata,
		Vector:   vector,
	}
}

func qdrantValue(value *qdrant.Value) any {
	switch v := value.Kind.(type) {
	case *qdrant.Value_StringValue:
		return v.StringValue
	case *qdrant.Value_IntegerValue:
		return v.IntegerValue
	case *qdrant.Value_DoubleValue:
		return v.DoubleValue
	case *qdrant.Value_BoolValue:
		return v.BoolValue
	case *qdrant.Value_ListValue:
		if v.ListValue == nil {
			return nil
		}
		list := make([]any, len(v.ListValue.Values))
		for i, item := range v.ListValue.Values {
			list[i] = qdrantValue(item)
		}
		return list
	default:
		return value
	}
}

var _ Store = (*QdrantStore)(nil)
