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

package llm

import (
	"context"
	"sync"
)

// Mock is a scripted provider for tests. Responses are returned in
// order; the last one repeats once the script is exhausted. A
// RespondFunc takes precedence over the script when set.
type Mock struct {
	mu        sync.Mutex
	responses []string
	index     int

	// RespondFunc computes a response from the conversation.
	RespondFunc func(messages []Message) (string, error)

	// Err, when set, is returned by every call.
	Err error

	// Calls records every conversation passed to Complete.
	Calls [][]Message
}

// NewMock creates a mock provider with a response script.
func NewMock(responses ...string) *Mock {
	return &Mock{responses: responses}
}

func (m *Mock) Complete(ctx context.Context, messages []Message, opts Options) (*Completion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, messages)

	if m.Err != nil {
		return nil, m.Err
	}

	if m.RespondFunc != nil {
		content, err := m.RespondFunc(messages)
		if err != nil {
			return nil, err
		}
		return &Completion{Content: content, Model: "mock"}, nil
	}

	if len(m.responses) == 0 {
		return &Completion{Content: "", Model: "mock"}, nil
	}

	content := m.responses[m.index]
	if m.index < len(m.responses)-1 {
		m.index++
	}

	return &Completion{Content: content, Model: "mock"}, nil
}

func (m *Mock) Stream(ctx context.Context, messages []Message, opts Options) (<-chan StreamChunk, error) {
	completion, err := m.Complete(ctx, messages, opts)
	if err != nil {
		return nil, err
	}

	out := make(chan StreamChunk, 2)
	out <- StreamChunk{Content: completion.Content}
	out <- StreamChunk{Done: true}
	close(out)
	return out, nil
}

// CallCount returns how many times Complete was invoked.
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

func (m *Mock) Model() string    { return "mock" }
func (m *Mock) Provider() string { return "mock" }
func (m *Mock) Close() error     { return nil }

var _ Provider = (*Mock)(nil)
