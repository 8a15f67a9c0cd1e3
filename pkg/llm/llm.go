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

// Package llm defines the completion provider contract and its
// implementations (OpenAI, Ollama, mock).
package llm

import (
	"context"
	"errors"
	"fmt"
)

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single turn of a conversation.
type Message struct {
	Role    Role
	Content string
}

// System returns a system message.
func System(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// User returns a user message.
func User(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// Options tunes one completion call.
type Options struct {
	// Temperature controls sampling randomness. Zero means deterministic.
	Temperature float32

	// MaxTokens caps the response length. Zero uses the provider default.
	MaxTokens int

	// JSONMode requests a JSON object response where supported.
	JSONMode bool
}

// Usage reports token consumption for one call.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Completion is the result of one call.
type Completion struct {
	Content string
	Model   string
	Usage   Usage
}

// StreamChunk is one increment of a streamed completion.
type StreamChunk struct {
	Content string
	Done    bool
}

// Provider generates completions. Implementations must be safe for
// concurrent use.
type Provider interface {
	// Complete generates a response to the conversation.
	Complete(ctx context.Context, messages []Message, opts Options) (*Completion, error)

	// Stream generates a response incrementally, sending chunks on the
	// returned channel until done or the context is cancelled.
	Stream(ctx context.Context, messages []Message, opts Options) (<-chan StreamChunk, error)

	// Model returns the model name in use.
	Model() string

	// Provider returns the provider name ("openai", "ollama", ...).
	Provider() string

	// Close releases resources.
	Close() error
}

// ErrProvider wraps upstream provider failures.
var ErrProvider = errors.New("llm provider error")

// ProviderError creates an error carrying provider detail, matching
// ErrProvider under errors.Is.
func ProviderError(provider string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrProvider, provider, err)
}

// PromptLength sums the content length of all messages in characters.
func PromptLength(messages []Message) int {
	total := 0
	for _, m := range messages {
		total += len(m.Content)
	}
	return total
}
