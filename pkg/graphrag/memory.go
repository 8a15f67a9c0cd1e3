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
	"sync"

	"github.com/kadirpekel/portfolio/pkg/vector"
)

type memoryGraph struct {
	nodes       map[string]*Entity
	edges       []Relationship
	adjacency   map[string]map[string]bool
	communities map[string]*Community
}

func newMemoryGraph() *memoryGraph {
	return &memoryGraph{
		nodes:       make(map[string]*Entity),
		adjacency:   make(map[string]map[string]bool),
		communities: make(map[string]*Community),
	}
}

// MemoryGraphStore is an in-process GraphStore with community, entity
// search, and traversal capabilities.
type MemoryGraphStore struct {
	mu     sync.RWMutex
	graphs map[string]*memoryGraph
}

// NewMemoryGraphStore creates an empty store.
func NewMemoryGraphStore() *MemoryGraphStore {
	return &MemoryGraphStore{graphs: make(map[string]*memoryGraph)}
}

func (s *MemoryGraphStore) CreateGraph(ctx context.Context, graphID string) error {
	if graphID == "" {
		return fmt.Errorf("graph id cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.graphs[graphID]; !ok {
		s.graphs[graphID] = newMemoryGraph()
	}
	return nil
}

func (s *MemoryGraphStore) DeleteGraph(ctx context.Context, graphID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.graphs[graphID]; !ok {
		return fmt.Errorf("%w: %s", ErrGraphNotFound, graphID)
	}
	delete(s.graphs, graphID)
	return nil
}

func (s *MemoryGraphStore) CreateNode(ctx context.Context, graphID string, entity Entity) error {
	if entity.Name == "" {
		return fmt.Errorf("entity name cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	graph, err := s.graphLocked(graphID)
	if err != nil {
		return err
	}

	stored := entity
	graph.nodes[entity.Name] = &stored
	if graph.adjacency[entity.Name] == nil {
		graph.adjacency[entity.Name] = make(map[string]bool)
	}
	return nil
}

func (s *MemoryGraphStore) CreateEdge(ctx context.Context, graphID string, rel Relationship) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	graph, err := s.graphLocked(graphID)
	if err != nil {
		return err
	}
	if _, ok := graph.nodes[rel.Source]; !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, rel.Source)
	}
	if _, ok := graph.nodes[rel.Target]; !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, rel.Target)
	}

	graph.edges = append(graph.edges, rel)
	graph.adjacency[rel.Source][rel.Target] = true
	graph.adjacency[rel.Target][rel.Source] = true
	return nil
}

func (s *MemoryGraphStore) GetNode(ctx context.Context, graphID, name string) (*Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	graph, err := s.graphLocked(graphID)
	if err != nil {
		return nil, err
	}
	node, ok := graph.nodes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, name)
	}
	out := *node
	return &out, nil
}

func (s *MemoryGraphStore) ListNodes(ctx context.Context, graphID string) ([]Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	graph, err := s.graphLocked(graphID)
	if err != nil {
		return nil, err
	}

	out := make([]Entity, 0, len(graph.nodes))
	for _, node := range graph.nodes {
		out = append(out, *node)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryGraphStore) ListEdges(ctx context.Context, graphID string) ([]Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	graph, err := s.graphLocked(graphID)
	if err != nil {
		return nil, err
	}

	out := make([]Relationship, len(graph.edges))
	copy(out, graph.edges)
	return out, nil
}

func (s *MemoryGraphStore) GetNeighbors(ctx context.Context, graphID, name string) ([]Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	graph, err := s.graphLocked(graphID)
	if err != nil {
		return nil, err
	}
	if _, ok := graph.nodes[name]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, name)
	}

	var out []Entity
	for neighbor := range graph.adjacency[name] {
		if node, ok := graph.nodes[neighbor]; ok {
			out = append(out, *node)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryGraphStore) Close() error { return nil }

// Community capability.

func (s *MemoryGraphStore) CreateCommunity(ctx context.Context, graphID string, community Community) error {
	if community.ID == "" {
		return fmt.Errorf("community id cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	graph, err := s.graphLocked(graphID)
	if err != nil {
		return err
	}
	stored := community
	graph.communities[community.ID] = &stored
	return nil
}

func (s *MemoryGraphStore) ListCommunities(ctx context.Context, graphID string, level int) ([]Community, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	graph, err := s.graphLocked(graphID)
	if err != nil {
		return nil, err
	}

	var out []Community
	for _, community := range graph.communities {
		if level >= 0 && community.Level != level {
			continue
		}
		out = append(out, *community)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryGraphStore) GetCommunityMembers(ctx context.Context, graphID, communityID string) ([]Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	graph, err := s.graphLocked(graphID)
	if err != nil {
		return nil, err
	}
	community, ok := graph.communities[communityID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCommunityNotFound, communityID)
	}

	var out []Entity
	for _, member := range community.Members {
		if node, ok := graph.nodes[member]; ok {
			out = append(out, *node)
		}
	}
	return out, nil
}

func (s *MemoryGraphStore) DeleteCommunities(ctx context.Context, graphID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	graph, err := s.graphLocked(graphID)
	if err != nil {
		return err
	}
	graph.communities = make(map[string]*Community)
	return nil
}

func (s *MemoryGraphStore) UpdateCommunitySummary(ctx context.Context, graphID, communityID, summary string, embedding []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	graph, err := s.graphLocked(graphID)
	if err != nil {
		return err
	}
	community, ok := graph.communities[communityID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrCommunityNotFound, communityID)
	}
	community.Summary = summary
	community.Embedding = embedding
	return nil
}

func (s *MemoryGraphStore) SearchCommunitiesByVector(ctx context.Context, graphID string, vec []float32, k int) ([]Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	graph, err := s.graphLocked(graphID)
	if err != nil {
		return nil, err
	}

	var hits []Hit
	for _, community := range graph.communities {
		if community.Embedding == nil {
			continue
		}
		hits = append(hits, Hit{
			ID:      community.ID,
			Content: community.Summary,
			Score:   vector.CosineSimilarity(vec, community.Embedding),
			Kind:    HitCommunity,
		})
	}
	return topHits(hits, k), nil
}

// Entity search capability.

func (s *MemoryGraphStore) EnsureVectorIndex(ctx context.Context, graphID string, dimensions int) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Exact in-memory search needs no index structure; this only
	// validates the graph exists.
	_, err := s.graphLocked(graphID)
	return err
}

func (s *MemoryGraphStore) SetNodeEmbedding(ctx context.Context, graphID, name string, embedding []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	graph, err := s.graphLocked(graphID)
	if err != nil {
		return err
	}
	node, ok := graph.nodes[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, name)
	}
	node.Embedding = embedding
	return nil
}

func (s *MemoryGraphStore) SearchByVector(ctx context.Context, graphID string, vec []float32, k int) ([]Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	graph, err := s.graphLocked(graphID)
	if err != nil {
		return nil, err
	}

	var hits []Hit
	for _, node := range graph.nodes {
		if node.Embedding == nil {
			continue
		}
		hits = append(hits, Hit{
			ID:      node.Name,
			Content: nodeContent(*node),
			Score:   vector.CosineSimilarity(vec, node.Embedding),
			Kind:    HitEntity,
		})
	}
	return topHits(hits, k), nil
}

// Traversal capability.

func (s *MemoryGraphStore) BFS(ctx context.Context, graphID, start string, maxDepth int) ([]TraversalHop, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	graph, err := s.graphLocked(graphID)
	if err != nil {
		return nil, err
	}
	if _, ok := graph.nodes[start]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, start)
	}

	visited := map[string]bool{start: true}
	frontier := []string{start}
	var out []TraversalHop

	for depth := 0; depth <= maxDepth && len(frontier) > 0; depth++ {
		sort.Strings(frontier)
		var next []string
		for _, name := range frontier {
			out = append(out, TraversalHop{Entity: *graph.nodes[name], Depth: depth})
			for neighbor := range graph.adjacency[name] {
				if !visited[neighbor] {
					visited[neighbor] = true
					next = append(next, neighbor)
				}
			}
		}
		frontier = next
	}
	return out, nil
}

func (s *MemoryGraphStore) GetSubgraph(ctx context.Context, graphID string, names []string) ([]Entity, []Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	graph, err := s.graphLocked(graphID)
	if err != nil {
		return nil, nil, err
	}

	wanted := make(map[string]bool, len(names))
	var nodes []Entity
	for _, name := range names {
		node, ok := graph.nodes[name]
		if !ok {
			continue
		}
		wanted[name] = true
		nodes = append(nodes, *node)
	}

	var edges []Relationship
	for _, edge := range graph.edges {
		if wanted[edge.Source] && wanted[edge.Target] {
			edges = append(edges, edge)
		}
	}
	return nodes, edges, nil
}

func (s *MemoryGraphStore) ShortestPath(ctx context.Context, graphID, from, to string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	graph, err := s.graphLocked(graphID)
	if err != nil {
		return nil, err
	}
	if _, ok := graph.nodes[from]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, from)
	}
	if _, ok := graph.nodes[to]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, to)
	}

	parent := map[string]string{from: from}
	frontier := []string{from}
	for len(frontier) > 0 {
		var next []string
		for _, name := range frontier {
			if name == to {
				return tracePath(parent, from, to), nil
			}
			for neighbor := range graph.adjacency[name] {
				if _, seen := parent[neighbor]; !seen {
					parent[neighbor] = name
					next = append(next, neighbor)
				}
			}
		}
		frontier = next
	}
	return nil, fmt.Errorf("%w: no path from %s to %s", ErrNodeNotFound, from, to)
}

func (s *MemoryGraphStore) NHopNeighbors(ctx context.Context, graphID, start string, hops int) ([]Entity, error) {
	traversal, err := s.BFS(ctx, graphID, start, hops)
	if err != nil {
		return nil, err
	}

	var out []Entity
	for _, hop := range traversal {
		if hop.Depth == hops {
			out = append(out, hop.Entity)
		}
	}
	return out, nil
}

func (s *MemoryGraphStore) graphLocked(graphID string) (*memoryGraph, error) {
	graph, ok := s.graphs[graphID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrGraphNotFound, graphID)
	}
	return graph, nil
}

func tracePath(parent map[string]string, from, to string) []string {
	var path []string
	for at := to; ; at = parent[at] {
		path = append([]string{at}, path...)
		if at == from {
			return path
		}
	}
}

func nodeContent(entity Entity) string {
	if entity.Description != "" {
		return entity.Description
	}
	return entity.Name
}

func topHits(hits []Hit, k int) []Hit {
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

var (
	_ GraphStore          = (*MemoryGraphStore)(nil)
	_ CommunityCapable    = (*MemoryGraphStore)(nil)
	_ EntitySearchCapable = (*MemoryGraphStore)(nil)
	_ TraversalCapable    = (*MemoryGraphStore)(nil)
)
