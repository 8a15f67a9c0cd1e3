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

package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
)

// Extractor turns one file into plain text.
type Extractor interface {
	// CanExtract reports whether this extractor handles the path.
	CanExtract(path string) bool

	// Extract reads the file and returns its text content.
	Extract(ctx context.Context, path string) (string, error)
}

// ExtractorRegistry dispatches to the first extractor claiming a path.
type ExtractorRegistry struct {
	extractors []Extractor
}

// NewExtractorRegistry creates a registry with the built-in PDF, DOCX,
// and plain-text extractors. The text extractor is last and claims
// everything, so unknown formats are read verbatim.
func NewExtractorRegistry() *ExtractorRegistry {
	return &ExtractorRegistry{
		extractors: []Extractor{
			&PDFExtractor{},
			&DOCXExtractor{},
			&TextExtractor{},
		},
	}
}

// Register prepends a custom extractor, giving it priority over the
// built-ins.
func (r *ExtractorRegistry) Register(e Extractor) {
	r.extractors = append([]Extractor{e}, r.extractors...)
}

// Extract dispatches to the first matching extractor.
func (r *ExtractorRegistry) Extract(ctx context.Context, path string) (string, error) {
	for _, e := range r.extractors {
		if e.CanExtract(path) {
			return e.Extract(ctx, path)
		}
	}
	return "", fmt.Errorf("no extractor for %s", path)
}

// TextExtractor reads any file as UTF-8 text.
type TextExtractor struct{}

func (e *TextExtractor) CanExtract(string) bool { return true }

func (e *TextExtractor) Extract(_ context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}

// PDFExtractor extracts page text from PDF files.
type PDFExtractor struct{}

func (e *PDFExtractor) CanExtract(path string) bool {
	return strings.ToLower(filepath.Ext(path)) == ".pdf"
}

func (e *PDFExtractor) Extract(ctx context.Context, path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("failed to stat %s: %w", path, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	reader, err := pdf.NewReader(f, info.Size())
	if err != nil {
		return "", fmt.Errorf("failed to parse pdf %s: %w", path, err)
	}

	var parts []string
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// A single unreadable page does not fail the document.
			continue
		}
		if strings.TrimSpace(text) != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

// DOCXExtractor extracts body text from Word documents.
type DOCXExtractor struct{}

func (e *DOCXExtractor) CanExtract(path string) bool {
	return strings.ToLower(filepath.Ext(path)) == ".docx"
}

func (e *DOCXExtractor) Extract(_ context.Context, path string) (string, error) {
	doc, err := docx.ReadDocxFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to parse docx %s: %w", path, err)
	}
	defer doc.Close()

	return doc.Editable().GetContent(), nil
}

var (
	_ Extractor = (*TextExtractor)(nil)
	_ Extractor = (*PDFExtractor)(nil)
	_ Extractor = (*DOCXExtractor)(nil)
)
