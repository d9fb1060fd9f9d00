//go:build cgo

package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// ---------------------------------------------------------------------------
// Schema / construction
// ---------------------------------------------------------------------------

func TestNew(t *testing.T) {
	s := newTestStore(t)
	if s.DB() == nil {
		t.Fatal("expected non-nil *sql.DB")
	}

	var version int
	if err := s.DB().QueryRow("SELECT MAX(version) FROM schema_version").Scan(&version); err != nil {
		t.Fatalf("reading schema version: %v", err)
	}
	if version != len(migrations) {
		t.Errorf("schema version = %d, want %d", version, len(migrations))
	}
}

func TestNewCreatesParentDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "sub", "dir")
	dbPath := filepath.Join(dir, "test.db")
	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("creating store in nested dir: %v", err)
	}
	s.Close()
}

func TestReopenKeepsData(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	if _, err := s.UpsertDocument(ctx, sampleDoc("/tmp/a.pdf")); err != nil {
		t.Fatalf("upserting: %v", err)
	}
	s.Close()

	s, err = New(dbPath)
	if err != nil {
		t.Fatalf("reopening store: %v", err)
	}
	defer s.Close()
	docs, err := s.ListDocuments(ctx)
	if err != nil {
		t.Fatalf("listing: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 document after reopen, got %d", len(docs))
	}
}

// ---------------------------------------------------------------------------
// Document CRUD
// ---------------------------------------------------------------------------

func sampleDoc(path string) Document {
	return Document{
		Path:        path,
		Filename:    filepath.Base(path),
		Format:      "pdf",
		ContentHash: "abc123",
		Method:      "layout",
		Status:      StatusReady,
		Title:       "Quarterly Report",
		Language:    "en",
		PageCount:   3,
		Markdown:    "# Quarterly Report\n\n| a | b |\n| --- | --- |\n| 1 | 2 |",
		Metadata:    `{"source":"upload"}`,
	}
}

func TestUpsertAndGetDocument(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc := sampleDoc("/tmp/test.pdf")
	id, err := s.UpsertDocument(ctx, doc)
	if err != nil {
		t.Fatalf("upserting document: %v", err)
	}
	if id == 0 {
		t.Fatal("expected non-zero document id")
	}

	got, err := s.GetDocument(ctx, id)
	if err != nil {
		t.Fatalf("getting document by id: %v", err)
	}
	if got.Path != doc.Path || got.Format != doc.Format || got.Method != doc.Method {
		t.Errorf("got %+v", got)
	}
	if got.Markdown != doc.Markdown {
		t.Errorf("Markdown = %q, want %q", got.Markdown, doc.Markdown)
	}
	if got.Title != "Quarterly Report" || got.Language != "en" || got.PageCount != 3 {
		t.Errorf("title/language/pages = %q/%q/%d", got.Title, got.Language, got.PageCount)
	}
	if got.Metadata != doc.Metadata {
		t.Errorf("Metadata = %q, want %q", got.Metadata, doc.Metadata)
	}
	if got.CreatedAt == "" || got.UpdatedAt == "" {
		t.Error("expected timestamps to be set")
	}
}

func TestUpsertDefaultsStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc := sampleDoc("/tmp/pending.pdf")
	doc.Status = ""
	doc.Metadata = ""
	id, err := s.UpsertDocument(ctx, doc)
	if err != nil {
		t.Fatalf("upserting: %v", err)
	}
	got, err := s.GetDocument(ctx, id)
	if err != nil {
		t.Fatalf("getting: %v", err)
	}
	if got.Status != StatusPending {
		t.Errorf("Status = %q, want %q", got.Status, StatusPending)
	}
	if got.Metadata != "" {
		t.Errorf("Metadata = %q, want empty", got.Metadata)
	}
}

func TestGetDocumentByPath(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.UpsertDocument(ctx, sampleDoc("/docs/report.pdf"))
	if err != nil {
		t.Fatalf("upserting: %v", err)
	}
	got, err := s.GetDocumentByPath(ctx, "/docs/report.pdf")
	if err != nil {
		t.Fatalf("getting by path: %v", err)
	}
	if got.ID != id {
		t.Errorf("ID = %d, want %d", got.ID, id)
	}
}

func TestGetDocumentByPathNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetDocumentByPath(context.Background(), "/nope.pdf")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestUpsertDocumentUpdate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc := sampleDoc("/tmp/update.pdf")
	id1, err := s.UpsertDocument(ctx, doc)
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	doc.ContentHash = "def456"
	doc.Markdown = "changed"
	id2, err := s.UpsertDocument(ctx, doc)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if id1 != id2 {
		t.Errorf("expected same id on update, got %d and %d", id1, id2)
	}

	got, err := s.GetDocument(ctx, id1)
	if err != nil {
		t.Fatalf("getting: %v", err)
	}
	if got.ContentHash != "def456" || got.Markdown != "changed" {
		t.Errorf("update not applied: hash=%q markdown=%q", got.ContentHash, got.Markdown)
	}
}

func TestListDocuments(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, p := range []string{"/a.pdf", "/b.pdf", "/c.pdf"} {
		if _, err := s.UpsertDocument(ctx, sampleDoc(p)); err != nil {
			t.Fatalf("upserting %s: %v", p, err)
		}
	}

	docs, err := s.ListDocuments(ctx)
	if err != nil {
		t.Fatalf("listing: %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("expected 3 documents, got %d", len(docs))
	}
	// Same-second inserts fall back to id order, newest first.
	if docs[0].Path != "/c.pdf" {
		t.Errorf("docs[0].Path = %q, want /c.pdf", docs[0].Path)
	}
	for _, d := range docs {
		if d.Markdown != "" {
			t.Errorf("listing should not load markdown, got %q for %s", d.Markdown, d.Path)
		}
		if d.Title == "" {
			t.Errorf("listing lost title for %s", d.Path)
		}
	}
}

func TestUpdateDocumentStatusAndLanguage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.UpsertDocument(ctx, sampleDoc("/tmp/status.pdf"))
	if err != nil {
		t.Fatalf("upserting: %v", err)
	}
	if err := s.UpdateDocumentStatus(ctx, id, StatusError); err != nil {
		t.Fatalf("updating status: %v", err)
	}
	if err := s.UpdateDocumentLanguage(ctx, id, "de"); err != nil {
		t.Fatalf("updating language: %v", err)
	}

	got, err := s.GetDocument(ctx, id)
	if err != nil {
		t.Fatalf("getting: %v", err)
	}
	if got.Status != StatusError {
		t.Errorf("Status = %q, want %q", got.Status, StatusError)
	}
	if got.Language != "de" {
		t.Errorf("Language = %q, want de", got.Language)
	}
}

// ---------------------------------------------------------------------------
// DeleteDocument
// ---------------------------------------------------------------------------

func TestDeleteDocument(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.UpsertDocument(ctx, sampleDoc("/tmp/delete.pdf"))
	if err != nil {
		t.Fatalf("upserting: %v", err)
	}
	if err := s.DeleteDocument(ctx, id); err != nil {
		t.Fatalf("deleting: %v", err)
	}
	if _, err := s.GetDocument(ctx, id); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows after delete, got %v", err)
	}
	if err := s.DeleteDocument(ctx, id); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("second delete: expected sql.ErrNoRows, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Stats
// ---------------------------------------------------------------------------

func TestStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := sampleDoc("/a.pdf")
	a.Markdown = "héllo" // 6 bytes
	b := sampleDoc("/b.docx")
	b.Format = "docx"
	b.Markdown = "abc"
	c := sampleDoc("/c.pdf")
	c.Status = StatusError
	c.Markdown = ""
	for _, d := range []Document{a, b, c} {
		if _, err := s.UpsertDocument(ctx, d); err != nil {
			t.Fatalf("upserting %s: %v", d.Path, err)
		}
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Documents != 3 || stats.Ready != 2 || stats.Failed != 1 {
		t.Errorf("counts = %d/%d/%d, want 3/2/1", stats.Documents, stats.Ready, stats.Failed)
	}
	if stats.MarkdownBytes != 9 {
		t.Errorf("MarkdownBytes = %d, want 9", stats.MarkdownBytes)
	}
	if stats.ByFormat["pdf"] != 2 || stats.ByFormat["docx"] != 1 {
		t.Errorf("ByFormat = %v", stats.ByFormat)
	}
}

// ---------------------------------------------------------------------------
// Closed store
// ---------------------------------------------------------------------------

func TestClosedStore(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "closed.db"))
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("closing: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}

	ctx := context.Background()
	if _, err := s.UpsertDocument(ctx, sampleDoc("/x.pdf")); !errors.Is(err, ErrClosed) {
		t.Errorf("UpsertDocument: expected ErrClosed, got %v", err)
	}
	if _, err := s.GetDocument(ctx, 1); !errors.Is(err, ErrClosed) {
		t.Errorf("GetDocument: expected ErrClosed, got %v", err)
	}
	if _, err := s.ListDocuments(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("ListDocuments: expected ErrClosed, got %v", err)
	}
	if err := s.DeleteDocument(ctx, 1); !errors.Is(err, ErrClosed) {
		t.Errorf("DeleteDocument: expected ErrClosed, got %v", err)
	}
}
