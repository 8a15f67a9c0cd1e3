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

import "strings"

// DefaultResolveThreshold is the Jaccard similarity above which two
// entity names are considered the same entity.
const DefaultResolveThreshold = 0.85

// Resolve merges near-duplicate entities and rewrites relationships to
// the surviving names. Similarity is Jaccard over the character sets
// of the lowercased names. A merge keeps the existing name and type
// and the longer description.
func Resolve(entities []Entity, relationships []Relationship, threshold float64) ([]Entity, []Relationship) {
	if threshold <= 0 {
		threshold = DefaultResolveThreshold
	}

	var resolved []Entity
	canonical := make(map[string]string, len(entities))

	for _, entity := range entities {
		if name, ok := canonical[entity.Name]; ok {
			mergeInto(resolved, name, entity)
			continue
		}

		merged := false
		for i := range resolved {
			if jaccard(entity.Name, resolved[i].Name) >= threshold {
				canonical[entity.Name] = resolved[i].Name
				if len(entity.Description) > len(resolved[i].Description) {
					resolved[i].Description = entity.Description
				}
				merged = true
				break
			}
		}
		if !merged {
			canonical[entity.Name] = entity.Name
			resolved = append(resolved, entity)
		}
	}

	out := make([]Relationship, 0, len(relationships))
	for _, rel := range relationships {
		if name, ok := canonical[rel.Source]; ok {
			rel.Source = name
		}
		if name, ok := canonical[rel.Target]; ok {
			rel.Target = name
		}
		if rel.Source == rel.Target {
			continue
		}
		out = append(out, rel)
	}
	return resolved, out
}

func mergeInto(resolved []Entity, name string, entity Entity) {
	for i := range resolved {
		if resolved[i].Name == name {
			if len(entity.Description) > len(resolved[i].Description) {
				resolved[i].Description = entity.Description
			}
			return
		}
	}
}

// jaccard computes set similarity over the bytes of the lowercased
// names.
func jaccard(a, b string) float64 {
	setA := charSet(a)
	setB := charSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 1
	}

	intersection := 0
	for c := range setA {
		if setB[c] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func charSet(s string) map[byte]bool {
	s = strings.ToLower(s)
	set := make(map[byte]bool, len(s))
	for i := 0; i < len(s); i++ {
		set[s[i]] = true
	}
	return set
}
