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

package maintenance

import (
	"context"
	"fmt"
	"io"

	"github.com/kadirpekel/portfolio/pkg/telemetry"
)

// ProgressEvent is one progress update during a maintenance operation.
type ProgressEvent struct {
	Operation  string
	Current    int
	Total      int
	Percentage float64
	Message    string
}

// ProgressReporter receives progress updates.
type ProgressReporter interface {
	Report(ctx context.Context, event ProgressEvent)
}

// NewProgressEvent builds an event with the percentage derived from
// current and total.
func NewProgressEvent(operation string, current, total int, message string) ProgressEvent {
	event := ProgressEvent{
		Operation: operation,
		Current:   current,
		Total:     total,
		Message:   message,
	}
	if total > 0 {
		event.Percentage = float64(current) / float64(total) * 100
	}
	return event
}

// SilentReporter discards progress.
type SilentReporter struct{}

func (SilentReporter) Report(context.Context, ProgressEvent) {}

// TextReporter writes one line per update.
type TextReporter struct {
	W io.Writer
}

func (r TextReporter) Report(_ context.Context, event ProgressEvent) {
	if event.Message != "" {
		fmt.Fprintf(r.W, "%s: %d/%d (%.1f%%) %s\n",
			event.Operation, event.Current, event.Total, event.Percentage, event.Message)
		return
	}
	fmt.Fprintf(r.W, "%s: %d/%d (%.1f%%)\n",
		event.Operation, event.Current, event.Total, event.Percentage)
}

// TelemetryReporter emits each update as a telemetry count.
type TelemetryReporter struct{}

func (TelemetryReporter) Report(ctx context.Context, event ProgressEvent) {
	metadata := map[string]any{
		"operation":  event.Operation,
		"current":    event.Current,
		"total":      event.Total,
		"percentage": event.Percentage,
	}
	if event.Message != "" {
		metadata["message"] = event.Message
	}
	telemetry.Count(ctx, telemetry.EventMaintenance, metadata)
}

var (
	_ ProgressReporter = SilentReporter{}
	_ ProgressReporter = TextReporter{}
	_ ProgressReporter = TelemetryReporter{}
)
