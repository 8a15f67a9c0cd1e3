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

// Package evaluation measures retrieval quality against stored test
// cases and records the outcome as evaluation runs.
package evaluation

// Options tunes metric computation.
type Options struct {
	// K is the cutoff for recall, precision, and hit rate. Default: 5.
	K int
}

// SetDefaults applies default values.
func (o *Options) SetDefaults() {
	if o.K <= 0 {
		o.K = 5
	}
}

// Metrics is one test case's retrieval quality scores.
type Metrics struct {
	K         int     `json:"k"`
	RecallAtK float64 `json:"recall_at_k"`
	Precision float64 `json:"precision_at_k"`
	MRR       float64 `json:"mrr"`
	HitRate   float64 `json:"hit_rate_at_k"`
}

// Compute scores one retrieval against its expected ids.
//
// Recall@K and Precision@K look at the top K retrieved ids; MRR uses
// the full retrieved list. Empty expectations score zero everywhere.
func Compute(expectedIDs, retrievedIDs []string, opts Options) Metrics {
	opts.SetDefaults()
	metrics := Metrics{K: opts.K}
	if len(expectedIDs) == 0 {
		return metrics
	}

	expected := make(map[string]bool, len(expectedIDs))
	for _, id := range expectedIDs {
		expected[id] = true
	}

	topK := retrievedIDs
	if len(topK) > opts.K {
		topK = topK[:opts.K]
	}

	relevantInTopK := 0
	for _, id := range topK {
		if expected[id] {
			relevantInTopK++
		}
	}

	metrics.RecallAtK = float64(relevantInTopK) / float64(len(expected))
	metrics.Precision = float64(relevantInTopK) / float64(opts.K)
	if relevantInTopK > 0 {
		metrics.HitRate = 1
	}

	for rank, id := range retrievedIDs {
		if expected[id] {
			metrics.MRR = 1 / float64(rank+1)
			break
		}
	}

	return metrics
}

// Aggregate averages per-case metrics. The K of the first entry is
// reported; mixing cutoffs is the caller's mistake.
func Aggregate(results []Metrics) Metrics {
	if len(results) == 0 {
		return Metrics{}
	}

	out := Metrics{K: results[0].K}
	for _, m := range results {
		out.RecallAtK += m.RecallAtK
		out.Precision += m.Precision
		out.MRR += m.MRR
		out.HitRate += m.HitRate
	}

	n := float64(len(results))
	out.RecallAtK /= n
	out.Precision /= n
	out.MRR /= n
	out.HitRate /= n
	return out
}

// asMap flattens metrics for persistence.
func (m Metrics) asMap() map[string]float64 {
	return map[string]float64{
		"k":              float64(m.K),
		"recall_at_k":    m.RecallAtK,
		"precision_at_k": m.Precision,
		"mrr":            m.MRR,
		"hit_rate_at_k":  m.HitRate,
	}
}
