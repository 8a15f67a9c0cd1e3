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

package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"
)

// extractJSON unmarshals the first balanced JSON object or array found
// in text, tolerating surrounding prose. Whichever delimiter appears
// first in the text is tried first, with the other kind as fallback:
// a top-level array of objects must decode as the array, not as its
// first element.
func extractJSON(text string, out any) error {
	object := jsonRegion(text, '{', '}')
	array := jsonRegion(text, '[', ']')

	regions := []string{object, array}
	objStart := strings.IndexByte(text, '{')
	arrStart := strings.IndexByte(text, '[')
	if arrStart >= 0 && (objStart < 0 || arrStart < objStart) {
		regions = []string{array, object}
	}

	var lastErr error
	for _, region := range regions {
		if region == "" {
			continue
		}
		if err := json.Unmarshal([]byte(region), out); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	if lastErr != nil {
		return fmt.Errorf("failed to parse JSON response: %w", lastErr)
	}
	return fmt.Errorf("no JSON found in response")
}

// jsonRegion returns the first balanced opener..closer region,
// ignoring delimiters inside string literals.
func jsonRegion(text string, opener, closer byte) string {
	start := strings.IndexByte(text, opener)
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == opener:
			depth++
		case c == closer:
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}
