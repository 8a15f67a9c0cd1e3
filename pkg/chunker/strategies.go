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

package chunker

import (
	"strings"
	"unicode/utf8"
)

// span is a half-open byte range into the source text.
type span struct {
	start int
	end   int
}

// splitRunes emits one span per rune.
func splitRunes(text string) []span {
	spans := make([]span, 0, len(text))
	for i := 0; i < len(text); {
		_, width := utf8.DecodeRuneInString(text[i:])
		spans = append(spans, span{start: i, end: i + width})
		i += width
	}
	return spans
}

// splitSentences splits after sentence-ending punctuation followed by
// whitespace. Trailing text without punctuation is one sentence.
func splitSentences(text string) []span {
	var spans []span
	start := 0
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c != '.' && c != '!' && c != '?' {
			continue
		}
		// Consume the run of closing punctuation.
		end := i + 1
		for end < len(text) && (text[end] == '.' || text[end] == '!' || text[end] == '?' || text[end] == '"' || text[end] == ')') {
			end++
		}
		if end < len(text) && text[end] != ' ' && text[end] != '\n' && text[end] != '\t' {
			continue
		}
		// Include the following whitespace in the span so offsets tile.
		for end < len(text) && (text[end] == ' ' || text[end] == '\n' || text[end] == '\t') {
			end++
		}
		spans = append(spans, span{start: start, end: end})
		start = end
		i = end - 1
	}
	if start < len(text) {
		spans = append(spans, span{start: start, end: len(text)})
	}
	return spans
}

// splitParagraphs splits on blank lines, keeping the delimiter attached
// to the preceding paragraph so spans tile the input.
func splitParagraphs(text string) []span {
	var spans []span
	start := 0
	for start < len(text) {
		idx := strings.Index(text[start:], "\n\n")
		if idx < 0 {
			spans = append(spans, span{start: start, end: len(text)})
			break
		}
		end := start + idx
		for end < len(text) && text[end] == '\n' {
			end++
		}
		spans = append(spans, span{start: start, end: end})
		start = end
	}
	return spans
}

// splitMarkdown splits before heading lines, falling back to paragraphs
// inside each section.
func splitMarkdown(text string) []span {
	var sections []span
	start := 0
	offset := 0
	for offset < len(text) {
		lineEnd := strings.IndexByte(text[offset:], '\n')
		if lineEnd < 0 {
			lineEnd = len(text) - offset
		}
		line := text[offset : offset+lineEnd]
		if offset > start && isMarkdownHeading(line) {
			sections = append(sections, span{start: start, end: offset})
			start = offset
		}
		offset += lineEnd + 1
	}
	if start < len(text) {
		sections = append(sections, span{start: start, end: len(text)})
	}

	// Break each section into paragraphs so accumulation has finer
	// pieces to pack.
	var spans []span
	for _, section := range sections {
		for _, p := range splitParagraphs(text[section.start:section.end]) {
			spans = append(spans, span{start: section.start + p.start, end: section.start + p.end})
		}
	}
	return spans
}

func isMarkdownHeading(line string) bool {
	trimmed := strings.TrimLeft(line, "#")
	return len(trimmed) < len(line) && strings.HasPrefix(trimmed, " ")
}

// splitRecursive splits by the separator ladder: pieces still larger
// than the chunk size are re-split with the next separator, and runes
// are the last resort.
func splitRecursive(text string, base int, separators []string, chunkSize int, size Sizer) []span {
	if size(text) <= chunkSize {
		if text == "" {
			return nil
		}
		return []span{{start: base, end: base + len(text)}}
	}

	if len(separators) == 0 {
		spans := splitRunes(text)
		for i := range spans {
			spans[i].start += base
			spans[i].end += base
		}
		return spans
	}

	separator := separators[0]
	rest := separators[1:]

	var spans []span
	start := 0
	emit := func(end int) {
		if end <= start {
			return
		}
		piece := text[start:end]
		if size(piece) > chunkSize {
			spans = append(spans, splitRecursive(piece, base+start, rest, chunkSize, size)...)
		} else {
			spans = append(spans, span{start: base + start, end: base + end})
		}
		start = end
	}

	for {
		idx := strings.Index(text[start:], separator)
		if idx < 0 {
			emit(len(text))
			break
		}
		emit(start + idx + len(separator))
	}
	return spans
}

// splitSemantic prefers paragraph boundaries and falls back to
// sentences inside paragraphs that exceed the chunk size on their own.
func splitSemantic(text string, chunkSize int, size Sizer) []span {
	var spans []span
	for _, p := range splitParagraphs(text) {
		paragraph := text[p.start:p.end]
		if size(paragraph) <= chunkSize {
			spans = append(spans, p)
			continue
		}
		for _, s := range splitSentences(paragraph) {
			spans = append(spans, span{start: p.start + s.start, end: p.start + s.end})
		}
	}
	return spans
}
