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
	"encoding/json"
	"io"
	"sync"
	"time"
)

// JSONHandler writes one JSON object per event, suitable for log shippers.
type JSONHandler struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONHandler creates a JSON handler writing to out.
func NewJSONHandler(out io.Writer) *JSONHandler {
	return &JSONHandler{enc: json.NewEncoder(out)}
}

type jsonEvent struct {
	Event       string         `json:"event"`
	Phase       string         `json:"phase"`
	DurationMS  float64        `json:"duration_ms,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Error       string         `json:"error,omitempty"`
	Time        time.Time      `json:"time"`
	ServiceName string         `json:"service"`
}

func (h *JSONHandler) Handle(ctx context.Context, event Event) {
	out := jsonEvent{
		Event:       Namespace + "." + event.Name,
		Phase:       string(event.Phase),
		Metadata:    event.Metadata,
		Time:        event.Time,
		ServiceName: Namespace,
	}
	if event.Phase != PhaseStart {
		out.DurationMS = float64(event.Duration) / float64(time.Millisecond)
	}
	if event.Err != nil {
		out.Error = event.Err.Error()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_ = h.enc.Encode(out)
}
