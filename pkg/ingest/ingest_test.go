package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestItemID(t *testing.T) {
	id := ItemID("docs/readme.md", 3, "hello world")

	parts := strings.Split(id, ":")
	if len(parts) != 3 {
		t.Fatalf("expected 3 segments, got %d (%q)", len(parts), id)
	}
	if len(parts[0]) != 8 || len(parts[2]) != 8 {
		t.Errorf("hash segments must be 8 hex chars: %q", id)
	}
	if parts[1] != "3" {
		t.Errorf("middle segment must be the chunk index, got %q", parts[1])
	}

	if again := ItemID("docs/readme.md", 3, "hello world"); again != id {
		t.Errorf("id must be deterministic: %q vs %q", id, again)
	}
	if other := ItemID("docs/readme.md", 3, "different content"); other == id {
		t.Error("different content must yield a different id")
	}
}

func TestDetectType(t *testing.T) {
	cases := map[string]string{
		"notes.txt":   TypeText,
		"README.md":   TypeMarkdown,
		"main.go":     TypeCode,
		"config.yaml": TypeConfig,
		"paper.PDF":   TypePDF,
		"report.docx": TypeDOCX,
		"image.png":   TypeUnknown,
	}
	for path, want := range cases {
		if got := DetectType(path); got != want {
			t.Errorf("DetectType(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestQueueOrderAndReEnqueue(t *testing.T) {
	q := newQueue[int]()
	q.Push(1)
	q.Push(2)

	first, ok := q.Pop()
	if !ok || first != 1 {
		t.Fatalf("expected 1, got %d (ok=%v)", first, ok)
	}

	// Re-enqueue goes to the tail.
	q.Push(first)
	q.Done()

	second, _ := q.Pop()
	third, _ := q.Pop()
	if second != 2 || third != 1 {
		t.Errorf("expected order [2, 1], got [%d, %d]", second, third)
	}
	q.Done()
	q.Done()
}

func TestQueueCloseDrains(t *testing.T) {
	q := newQueue[string]()
	q.Push("a")
	q.Close()

	if item, ok := q.Pop(); !ok || item != "a" {
		t.Fatalf("backlog must survive close, got %q (ok=%v)", item, ok)
	}
	q.Done()

	if _, ok := q.Pop(); ok {
		t.Error("drained closed queue must report done")
	}
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.txt", "a.txt", "notes.md"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	items, err := Discover([]string{
		filepath.Join(dir, "*.txt"),
		filepath.Join(dir, "*.txt"), // duplicate pattern must not duplicate items
		filepath.Join(dir, "*.md"),
	})
	if err != nil {
		t.Fatalf("discover failed: %v", err)
	}

	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	if filepath.Base(items[0].Path) != "a.txt" {
		t.Errorf("items must be sorted by path, got %q first", items[0].Path)
	}
	for _, item := range items {
		want := TypeText
		if filepath.Ext(item.Path) == ".md" {
			want = TypeMarkdown
		}
		if item.Type != want {
			t.Errorf("%s: type %q, want %q", item.Path, item.Type, want)
		}
	}
}

func TestExtractorRegistryFallsBackToText(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plain.xyz")
	if err := os.WriteFile(path, []byte("raw bytes as text"), 0o644); err != nil {
		t.Fatal(err)
	}

	registry := NewExtractorRegistry()
	content, err := registry.Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if content != "raw bytes as text" {
		t.Errorf("unexpected content: %q", content)
	}
}

func TestExtractorDispatch(t *testing.T) {
	pdfExtractor := &PDFExtractor{}
	if !pdfExtractor.CanExtract("doc.PDF") {
		t.Error("pdf extractor must claim .PDF files")
	}
	if pdfExtractor.CanExtract("doc.txt") {
		t.Error("pdf extractor must not claim .txt files")
	}

	docxExtractor := &DOCXExtractor{}
	if !docxExtractor.CanExtract("report.docx") {
		t.Error("docx extractor must claim .docx files")
	}
}
