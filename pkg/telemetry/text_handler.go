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

package telemetry

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// TextHandler writes one human-readable line per stop/exception event:
//
//	[Portfolio] llm.complete completed in 1.23s [gpt-4o-mini] ok (532 chars) prompt=1840chars
//
// Start events are suppressed; they only matter to structured backends.
type TextHandler struct {
	mu  sync.Mutex
	out io.Writer
}

// NewTextHandler creates a text handler writing to out.
func NewTextHandler(out io.Writer) *TextHandler {
	return &TextHandler{out: out}
}

func (h *TextHandler) Handle(ctx context.Context, event Event) {
	if event.Phase == PhaseStart {
		return
	}

	line := fmt.Sprintf("[Portfolio] %s %s in %s", event.Name, verb(event.Phase), formatDuration(event.Duration))

	if model, ok := event.Metadata["model"].(string); ok && model != "" {
		line += fmt.Sprintf(" [%s]", model)
	}

	if event.Phase == PhaseException {
		line += fmt.Sprintf(" error: %v", event.Err)
	} else {
		line += " ok"
		if n, ok := intMeta(event.Metadata, "response_length"); ok {
			line += fmt.Sprintf(" (%d chars)", n)
		} else if n, ok := intMeta(event.Metadata, "result_count"); ok {
			line += fmt.Sprintf(" (%d results)", n)
		}
		if n, ok := intMeta(event.Metadata, "prompt_length"); ok {
			line += fmt.Sprintf(" prompt=%dchars", n)
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	fmt.Fprintln(h.out, line)
}

func verb(phase Phase) string {
	if phase == PhaseException {
		return "failed"
	}
	return "completed"
}

// formatDuration renders sub-second durations in ms and the rest in
// seconds with two decimals.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.2fs", d.Seconds())
}

func intMeta(metadata map[string]any, key string) (int64, bool) {
	switch v := metadata[key].(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		return int64(v), true
	default:
		return 0, false
	}
}
