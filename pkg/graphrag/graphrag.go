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

// Package graphrag builds and queries a knowledge graph extracted from
// text: LLM entity extraction, entity resolution, label-propagation
// community detection, community summarization, and graph-aware
// retrieval.
package graphrag

import (
	"context"
	"errors"
)

// Entity types the extractor is allowed to emit.
const (
	EntityModule       = "Module"
	EntityClass        = "Class"
	EntityFunction     = "Function"
	EntityVariable     = "Variable"
	EntityConcept      = "Concept"
	EntityPerson       = "Person"
	EntityOrganization = "Organization"
	EntityOther        = "Other"
)

// Relationship types the extractor is allowed to emit.
const (
	RelCalls     = "CALLS"
	RelUses      = "USES"
	RelExtends   = "EXTENDS"
	RelImplement = "IMPLEMENTS"
	RelContains  = "CONTAINS"
	RelDependsOn = "DEPENDS_ON"
	RelRelatedTo = "RELATED_TO"
	RelCreatedBy = "CREATED_BY"
)

// Entity is one extracted graph node, identified by name.
type Entity struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`

	// Embedding is the entity description vector, set when the vector
	// index is built.
	Embedding []float32 `json:"-"`
}

// Relationship is one directed edge between entities, by name.
type Relationship struct {
	Source      string `json:"source"`
	Target      string `json:"target"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// Community is a group of related entities. Level 0 is the base
// partition; higher levels merge smaller communities.
type Community struct {
	ID      string
	Level   int
	Members []string
	Summary string

	// Embedding is the summary vector, set by the summarizer.
	Embedding []float32
}

// Hit kinds.
const (
	HitEntity    = "entity"
	HitCommunity = "community"
)

// Hit is one scored graph search result.
type Hit struct {
	ID      string
	Content string
	Score   float32

	// Kind is HitEntity or HitCommunity.
	Kind string

	// Depth is the BFS distance for local search hits, zero otherwise.
	Depth int
}

var (
	// ErrGraphNotFound reports a missing graph.
	ErrGraphNotFound = errors.New("graph not found")

	// ErrNodeNotFound reports a missing node.
	ErrNodeNotFound = errors.New("node not found")

	// ErrCommunityNotFound reports a missing community.
	ErrCommunityNotFound = errors.New("community not found")
)

// GraphStore persists graphs, nodes, and edges. Implementations must
// be safe for concurrent use.
type GraphStore interface {
	// CreateGraph creates a graph. Creating an existing graph is a
	// no-op.
	CreateGraph(ctx context.Context, graphID string) error

	// DeleteGraph removes a graph and everything in it.
	DeleteGraph(ctx context.Context, graphID string) error

	// CreateNode upserts one entity by name.
	CreateNode(ctx context.Context, graphID string, entity Entity) error

	// CreateEdge adds one relationship. Both endpoints must exist.
	CreateEdge(ctx context.Context, graphID string, rel Relationship) error

	// GetNode returns one entity by name.
	GetNode(ctx context.Context, graphID, name string) (*Entity, error)

	// ListNodes returns every entity in the graph.
	ListNodes(ctx context.Context, graphID string) ([]Entity, error)

	// ListEdges returns every relationship in the graph.
	ListEdges(ctx context.Context, graphID string) ([]Relationship, error)

	// GetNeighbors returns the entities adjacent to a node, in either
	// direction.
	GetNeighbors(ctx context.Context, graphID, name string) ([]Entity, error)

	// Close releases resources.
	Close() error
}

// CommunityCapable stores are able to persist and search communities.
type CommunityCapable interface {
	CreateCommunity(ctx context.Context, graphID string, community Community) error
	ListCommunities(ctx context.Context, graphID string, level int) ([]Community, error)
	GetCommunityMembers(ctx context.Context, graphID, communityID string) ([]Entity, error)
	DeleteCommunities(ctx context.Context, graphID string) error
	UpdateCommunitySummary(ctx context.Context, graphID, communityID, summary string, embedding []float32) error

	// SearchCommunitiesByVector ranks community summaries by cosine
	// similarity to the query vector.
	SearchCommunitiesByVector(ctx context.Context, graphID string, vec []float32, k int) ([]Hit, error)
}

// EntitySearchCapable stores support vector search over entities.
type EntitySearchCapable interface {
	// EnsureVectorIndex prepares entity vector search for the graph.
	EnsureVectorIndex(ctx context.Context, graphID string, dimensions int) error

	// SetNodeEmbedding attaches a description vector to an entity.
	SetNodeEmbedding(ctx context.Context, graphID, name string, embedding []float32) error

	// SearchByVector ranks entities by cosine similarity to the query
	// vector.
	SearchByVector(ctx context.Context, graphID string, vec []float32, k int) ([]Hit, error)
}

// TraversalHop is one node reached during a traversal.
type TraversalHop struct {
	Entity Entity
	Depth  int
}

// FullStore combines every capability the extraction, summarization,
// and search operations rely on.
type FullStore interface {
	GraphStore
	CommunityCapable
	EntitySearchCapable
	TraversalCapable
}

// TraversalCapable stores support graph walks.
type TraversalCapable interface {
	// BFS walks outward from a start node up to maxDepth, returning
	// nodes in breadth-first order with their distance.
	BFS(ctx context.Context, graphID, start string, maxDepth int) ([]TraversalHop, error)

	// GetSubgraph returns the named nodes and the edges among them.
	GetSubgraph(ctx context.Context, graphID string, names []string) ([]Entity, []Relationship, error)

	// ShortestPath returns the node names on a shortest path between
	// two nodes, inclusive, or ErrNodeNotFound when disconnected.
	ShortestPath(ctx context.Context, graphID, from, to string) ([]string, error)

	// NHopNeighbors returns the nodes exactly n hops away.
	NHopNeighbors(ctx context.Context, graphID, start string, hops int) ([]Entity, error)
}
