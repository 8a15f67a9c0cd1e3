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

package embedder

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// Sizer estimates the token count of a text. It is used wherever sizes
// are measured in tokens rather than characters (chunking, usage
// accounting) without requiring a provider round trip.
type Sizer interface {
	Estimate(text string) int
}

// HeuristicSizer approximates token counts as one token per four
// characters. The empty string is zero tokens; anything else is at
// least one.
type HeuristicSizer struct{}

func (HeuristicSizer) Estimate(text string) int {
	if len(text) == 0 {
		return 0
	}
	count := len(text) / 4
	if count < 1 {
		count = 1
	}
	return count
}

// TiktokenSizer counts tokens exactly with a tiktoken encoding.
type TiktokenSizer struct {
	encoding *tiktoken.Tiktoken
}

// NewTiktokenSizer creates a sizer for a model's encoding, falling back
// to cl100k_base for unknown models.
func NewTiktokenSizer(model string) (*TiktokenSizer, error) {
	encoding, err := tiktoken.EncodingForModel(model)
	if err != nil {
		encoding, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("failed to load tiktoken encoding: %w", err)
		}
	}
	return &TiktokenSizer{encoding: encoding}, nil
}

func (s *TiktokenSizer) Estimate(text string) int {
	if len(text) == 0 {
		return 0
	}
	return len(s.encoding.Encode(text, nil, nil))
}

var (
	_ Sizer = HeuristicSizer{}
	_ Sizer = (*TiktokenSizer)(nil)
)

// Estimate approximates the token count of a text using the heuristic
// sizer.
func Estimate(text string) int {
	return HeuristicSizer{}.Estimate(text)
}
