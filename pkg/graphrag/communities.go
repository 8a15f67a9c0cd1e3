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
	"math/rand"
	"sort"
	"time"

	"github.com/kadirpekel/portfolio/pkg/telemetry"
)

// DetectOptions tunes community detection.
type DetectOptions struct {
	// MaxIterations bounds the label propagation rounds. Default: 100.
	MaxIterations int

	// ConvergenceThreshold stops propagation when the fraction of
	// nodes changing label in a round falls below it. Default: 0.01.
	ConvergenceThreshold float64

	// Seed makes the shuffle order deterministic. Zero seeds from the
	// clock.
	Seed int64
}

func (o *DetectOptions) setDefaults() {
	if o.MaxIterations <= 0 {
		o.MaxIterations = 100
	}
	if o.ConvergenceThreshold <= 0 {
		o.ConvergenceThreshold = 0.01
	}
	if o.Seed == 0 {
		o.Seed = time.Now().UnixNano()
	}
}

// DetectCommunities partitions entities with synchronous label
// propagation. An empty entity set yields no communities and no error.
func DetectCommunities(ctx context.Context, entities []Entity, relationships []Relationship, opts DetectOptions) ([]Community, error) {
	opts.setDefaults()

	var out []Community
	metadata := map[string]any{"entities": len(entities), "edges": len(relationships)}
	err := telemetry.Span(ctx, telemetry.EventGraphDetect, metadata, func(ctx context.Context) error {
		labels := propagateLabels(ctx, entities, relationships, opts)
		out = groupByLabel(labels, func(i int) string {
			return fmt.Sprintf("community_%d", i)
		}, 0)
		metadata["communities"] = len(out)
		return ctx.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DetectHierarchy runs base detection, then at each level merges
// communities smaller than 2^level into the sibling they share the
// most edges with.
func DetectHierarchy(ctx context.Context, entities []Entity, relationships []Relationship, levels int, opts DetectOptions) ([]Community, error) {
	base, err := DetectCommunities(ctx, entities, relationships, opts)
	if err != nil {
		return nil, err
	}

	out := base
	current := make([][]string, 0, len(base))
	for _, community := range base {
		current = append(current, community.Members)
	}

	for level := 1; level <= levels; level++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		current = mergeSmall(current, relationships, 1<<level)
		for i, members := range current {
			sorted := append([]string(nil), members...)
			sort.Strings(sorted)
			out = append(out, Community{
				ID:      fmt.Sprintf("community_l%d_%d", level, i),
				Level:   level,
				Members: sorted,
			})
		}
	}
	return out, nil
}

// propagateLabels runs shuffled synchronous rounds until fewer than
// the threshold fraction of nodes change label.
func propagateLabels(ctx context.Context, entities []Entity, relationships []Relationship, opts DetectOptions) map[string]int {
	labels := make(map[string]int, len(entities))
	names := make([]string, 0, len(entities))
	for i, entity := range entities {
		labels[entity.Name] = i
		names = append(names, entity.Name)
	}

	adjacency := make(map[string][]string, len(entities))
	for _, rel := range relationships {
		if _, ok := labels[rel.Source]; !ok {
			continue
		}
		if _, ok := labels[rel.Target]; !ok {
			continue
		}
		adjacency[rel.Source] = append(adjacency[rel.Source], rel.Target)
		adjacency[rel.Target] = append(adjacency[rel.Target], rel.Source)
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	for iteration := 0; iteration < opts.MaxIterations; iteration++ {
		if ctx.Err() != nil {
			return labels
		}

		rng.Shuffle(len(names), func(i, j int) {
			names[i], names[j] = names[j], names[i]
		})

		changed := 0
		for _, name := range names {
			neighbors := adjacency[name]
			if len(neighbors) == 0 {
				continue
			}

			counts := make(map[int]int, len(neighbors))
			best := labels[name]
			bestCount := 0
			for _, neighbor := range neighbors {
				label := labels[neighbor]
				counts[label]++
				// Ties keep the current label, otherwise first wins.
				if counts[label] > bestCount {
					bestCount = counts[label]
					best = label
				} else if counts[label] == bestCount && label == labels[name] {
					best = label
				}
			}

			if best != labels[name] {
				labels[name] = best
				changed++
			}
		}

		if len(names) == 0 || float64(changed)/float64(len(names)) < opts.ConvergenceThreshold {
			break
		}
	}
	return labels
}

func groupByLabel(labels map[string]int, id func(int) string, level int) []Community {
	byLabel := make(map[int][]string)
	for name, label := range labels {
		byLabel[label] = append(byLabel[label], name)
	}

	order := make([]int, 0, len(byLabel))
	for label := range byLabel {
		order = append(order, label)
	}
	sort.Ints(order)

	out := make([]Community, 0, len(byLabel))
	for i, label := range order {
		members := byLabel[label]
		sort.Strings(members)
		out = append(out, Community{
			ID:      id(i),
			Level:   level,
			Members: members,
		})
	}
	return out
}

// mergeSmall folds every community smaller than minSize into the
// sibling it shares the most edges with, repeating until all
// communities meet the size or only one remains.
func mergeSmall(communities [][]string, relationships []Relationship, minSize int) [][]string {
	groups := make([][]string, len(communities))
	copy(groups, communities)

	for {
		if len(groups) <= 1 {
			break
		}

		smallest := -1
		for i, members := range groups {
			if len(members) >= minSize {
				continue
			}
			if smallest < 0 || len(members) < len(groups[smallest]) {
				smallest = i
			}
		}
		if smallest < 0 {
			break
		}

		target := mergeTarget(groups, relationships, smallest)
		groups[target] = append(groups[target], groups[smallest]...)
		groups = append(groups[:smallest], groups[smallest+1:]...)
	}
	return groups
}

// mergeTarget picks the community sharing the most edges with the
// candidate, falling back to the largest sibling.
func mergeTarget(groups [][]string, relationships []Relationship, candidate int) int {
	membership := make(map[string]int)
	for i, members := range groups {
		for _, name := range members {
			membership[name] = i
		}
	}

	crossEdges := make(map[int]int)
	for _, rel := range relationships {
		a, okA := membership[rel.Source]
		b, okB := membership[rel.Target]
		if !okA || !okB || a == b {
			continue
		}
		if a == candidate {
			crossEdges[b]++
		}
		if b == candidate {
			crossEdges[a]++
		}
	}

	best := -1
	for i := range groups {
		if i == candidate {
			continue
		}
		switch {
		case best < 0:
			best = i
		case crossEdges[i] > crossEdges[best]:
			best = i
		case crossEdges[i] == crossEdges[best] && len(groups[i]) > len(groups[best]):
			best = i
		}
	}
	return best
}
