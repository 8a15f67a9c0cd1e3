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

package registry

import (
	"errors"
	"fmt"
	"sync"
)

// Capability names one pluggable concern of the engine.
type Capability string

const (
	CapEmbedder      Capability = "embedder"
	CapLLM           Capability = "llm"
	CapVectorStore   Capability = "vector_store"
	CapGraphStore    Capability = "graph_store"
	CapReranker      Capability = "reranker"
	CapChunker       Capability = "chunker"
	CapDocumentStore Capability = "document_store"
)

// ErrNoAdapter reports a capability with no registered implementation.
var ErrNoAdapter = errors.New("no adapter registered")

// NoAdapterError creates an error for an unresolved capability, matching
// ErrNoAdapter under errors.Is.
func NoAdapterError(capability Capability) error {
	return fmt.Errorf("%w: %s", ErrNoAdapter, capability)
}

// AdapterSet maps capabilities to implementations. Sets are layered:
// per-call overrides sit above caller options, which sit above the
// process default, which sits above compile-time defaults.
type AdapterSet struct {
	mu       sync.RWMutex
	adapters map[Capability]any
}

// NewAdapterSet creates an empty set.
func NewAdapterSet() *AdapterSet {
	return &AdapterSet{adapters: make(map[Capability]any)}
}

// With returns a copy of the set with one capability bound, leaving the
// receiver untouched. A nil receiver acts as an empty set.
func (s *AdapterSet) With(capability Capability, impl any) *AdapterSet {
	out := NewAdapterSet()
	if s != nil {
		s.mu.RLock()
		for capability, adapter := range s.adapters {
			out.adapters[capability] = adapter
		}
		s.mu.RUnlock()
	}
	out.adapters[capability] = impl
	return out
}

// Register binds a capability in place, replacing any previous binding.
func (s *AdapterSet) Register(capability Capability, impl any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adapters[capability] = impl
}

// Lookup returns the raw binding for a capability.
func (s *AdapterSet) Lookup(capability Capability) (any, bool) {
	if s == nil {
		return nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	impl, ok := s.adapters[capability]
	return impl, ok
}

var (
	processDefaults   *AdapterSet
	processDefaultsMu sync.RWMutex
)

// SetProcessDefaults installs the process-wide adapter set, normally
// built from configuration at startup.
func SetProcessDefaults(s *AdapterSet) {
	processDefaultsMu.Lock()
	defer processDefaultsMu.Unlock()
	processDefaults = s
}

// ProcessDefaults returns the process-wide adapter set, which may be nil.
func ProcessDefaults() *AdapterSet {
	processDefaultsMu.RLock()
	defer processDefaultsMu.RUnlock()
	return processDefaults
}

// Resolve finds the implementation of a capability, trying each layer
// in order: the per-call override, the caller's options, the process
// default, and finally the compile-time default. Nil layers are
// skipped. The first binding of the right type wins; a binding of the
// wrong type is an error rather than a fall-through.
func Resolve[T any](capability Capability, layers ...*AdapterSet) (T, error) {
	var zero T

	all := make([]*AdapterSet, 0, len(layers)+2)
	all = append(all, layers...)
	all = append(all, ProcessDefaults(), compileTimeDefaults)

	for _, layer := range all {
		impl, ok := layer.Lookup(capability)
		if !ok {
			continue
		}
		typed, ok := impl.(T)
		if !ok {
			return zero, fmt.Errorf("adapter for %s has type %T, want %T", capability, impl, zero)
		}
		return typed, nil
	}
	return zero, NoAdapterError(capability)
}

// compileTimeDefaults is the lowest-priority layer. Packages providing
// a sensible zero-config implementation register themselves here from
// an init function.
var compileTimeDefaults = NewAdapterSet()

// RegisterCompileTimeDefault binds a capability's fallback implementation.
func RegisterCompileTimeDefault(capability Capability, impl any) {
	compileTimeDefaults.Register(capability, impl)
}
