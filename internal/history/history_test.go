package history

import (
	"os"
	"path/filepath"
	"testing"

	"blockforge/api/internal/store"
)

func TestRevisionLifecycle(t *testing.T) {
	tempDir := t.TempDir()
	svc := New(tempDir, nil)

	doc := store.Document{
		ID:    "doc_1",
		Title: "Plan",
		Blocks: []store.Block{
			{ID: "block_1", Name: "Paragraph", Content: "<p>v1</p>"},
		},
	}

	svc.Record(doc)
	if _, err := os.Stat(filepath.Join(tempDir, "doc_1")); err != nil {
		t.Fatalf("repo directory missing: %v", err)
	}

	doc.Blocks[0].Content = "<p>v2</p>"
	svc.Record(doc)

	revisions, err := svc.History("doc_1", 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(revisions) != 2 {
		t.Fatalf("expected two revisions, got %d", len(revisions))
	}
	if revisions[0].Hash == "" || len(revisions[0].Hash) != 7 {
		t.Fatalf("expected short hash, got %q", revisions[0].Hash)
	}

	// Newest first; the older revision still reads back the old content.
	content, err := svc.ContentAt("doc_1", revisions[1].Hash)
	if err != nil {
		t.Fatalf("ContentAt() error = %v", err)
	}
	if content.Blocks[0].Content != "<p>v1</p>" {
		t.Fatalf("expected first revision content, got %q", content.Blocks[0].Content)
	}
}

func TestRecordSkipsUnchangedContent(t *testing.T) {
	svc := New(t.TempDir(), nil)

	doc := store.Document{
		ID:     "doc_1",
		Title:  "Plan",
		Blocks: []store.Block{{ID: "block_1", Content: "<p>same</p>"}},
	}
	svc.Record(doc)
	svc.Record(doc)

	revisions, err := svc.History("doc_1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(revisions) != 1 {
		t.Fatalf("expected a single revision for unchanged content, got %d", len(revisions))
	}
}

func TestRemoveDropsRepository(t *testing.T) {
	tempDir := t.TempDir()
	svc := New(tempDir, nil)

	svc.Record(store.Document{ID: "doc_1", Title: "Plan", Blocks: []store.Block{{ID: "b", Content: "<p>x</p>"}}})
	svc.Remove("doc_1")

	if _, err := os.Stat(filepath.Join(tempDir, "doc_1")); !os.IsNotExist(err) {
		t.Fatal("expected repository removed")
	}
	if _, err := svc.History("doc_1", 10); err == nil {
		t.Fatal("expected history of removed document to fail")
	}
}
