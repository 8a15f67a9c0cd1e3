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

	"github.com/prometheus/client_golang/prometheus"
)

// PromHandler exports event counts and durations as Prometheus metrics.
type PromHandler struct {
	events    *prometheus.CounterVec
	durations *prometheus.HistogramVec
}

// NewPromHandler creates a handler and registers its collectors with reg.
// Passing nil registers with the default registerer.
func NewPromHandler(reg prometheus.Registerer) (*PromHandler, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	h := &PromHandler{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "events_total",
			Help:      "Telemetry events by operation and phase.",
		}, []string{"event", "phase"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "operation_duration_seconds",
			Help:      "Operation durations by event name.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 16),
		}, []string{"event"}),
	}

	if err := reg.Register(h.events); err != nil {
		return nil, err
	}
	if err := reg.Register(h.durations); err != nil {
		return nil, err
	}

	return h, nil
}

func (h *PromHandler) Handle(ctx context.Context, event Event) {
	h.events.WithLabelValues(event.Name, string(event.Phase)).Inc()
	if event.Phase != PhaseStart && event.Duration > 0 {
		h.durations.WithLabelValues(event.Name).Observe(event.Duration.Seconds())
	}
}
