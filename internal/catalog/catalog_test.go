package catalog

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestCatalog_Roots(t *testing.T) {
	c := openTestCatalog(t)
	ctx := context.Background()

	root, err := c.AddRoot(ctx, "/data/docs")
	if err != nil {
		t.Fatal(err)
	}
	if root.AddedAt.IsZero() {
		t.Error("AddedAt should be set")
	}

	if _, err := c.AddRoot(ctx, "/data/docs"); !errors.Is(err, ErrRootExists) {
		t.Errorf("expected ErrRootExists, got %v", err)
	}

	if _, err := c.AddRoot(ctx, "/data/archive"); err != nil {
		t.Fatal(err)
	}
	roots, err := c.ListRoots(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(roots) != 2 {
		t.Fatalf("expected 2 roots, got %d", len(roots))
	}
	if roots[0].Path != "/data/archive" {
		t.Errorf("roots should be ordered by path, got %s first", roots[0].Path)
	}

	if err := c.RemoveRoot(ctx, "/data/docs"); err != nil {
		t.Fatal(err)
	}
	if err := c.RemoveRoot(ctx, "/data/docs"); !errors.Is(err, ErrRootNotFound) {
		t.Errorf("expected ErrRootNotFound, got %v", err)
	}
}

func TestCatalog_FileFingerprints(t *testing.T) {
	c := openTestCatalog(t)
	ctx := context.Background()

	fp, err := c.Fingerprint(ctx, "/data/docs/a.txt")
	if err != nil {
		t.Fatal(err)
	}
	if fp != "" {
		t.Errorf("unknown file should have empty fingerprint, got %q", fp)
	}

	records := []*FileRecord{
		{Path: "/data/docs/a.txt", Fingerprint: "ms:1:10", Size: 10, ModifiedAt: time.Now(), MIMEType: "text/plain"},
		{Path: "/data/docs/b.txt", Fingerprint: "ms:2:20", Size: 20, ModifiedAt: time.Now(), MIMEType: "text/plain"},
	}
	if err := c.UpsertFiles(ctx, records); err != nil {
		t.Fatal(err)
	}
	if records[0].IndexedAt.IsZero() {
		t.Error("IndexedAt should be set")
	}

	fp, _ = c.Fingerprint(ctx, "/data/docs/a.txt")
	if fp != "ms:1:10" {
		t.Errorf("expected ms:1:10, got %q", fp)
	}

	// Upsert with a new fingerprint replaces the old record.
	records[0].Fingerprint = "ms:3:12"
	if err := c.UpsertFiles(ctx, records[:1]); err != nil {
		t.Fatal(err)
	}
	fp, _ = c.Fingerprint(ctx, "/data/docs/a.txt")
	if fp != "ms:3:12" {
		t.Errorf("expected updated fingerprint, got %q", fp)
	}

	count, bytes, err := c.CountFiles(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 || bytes != 30 {
		t.Errorf("expected 2 files / 30 bytes, got %d / %d", count, bytes)
	}

	if err := c.DeleteFiles(ctx, []string{"/data/docs/b.txt"}); err != nil {
		t.Fatal(err)
	}
	count, _, _ = c.CountFiles(ctx)
	if count != 1 {
		t.Errorf("expected 1 file after delete, got %d", count)
	}
}

func TestCatalog_DeleteFilesUnder(t *testing.T) {
	c := openTestCatalog(t)
	ctx := context.Background()

	now := time.Now()
	records := []*FileRecord{
		{Path: "/data/docs/a.txt", Fingerprint: "f1", Size: 1, ModifiedAt: now},
		{Path: "/data/docs/sub/b.txt", Fingerprint: "f2", Size: 1, ModifiedAt: now},
		{Path: "/data/docs-other/c.txt", Fingerprint: "f3", Size: 1, ModifiedAt: now},
	}
	if err := c.UpsertFiles(ctx, records); err != nil {
		t.Fatal(err)
	}

	paths, err := c.ListFilesUnder(ctx, "/data/docs")
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 2 {
		t.Fatalf("expected 2 files under /data/docs, got %d: %v", len(paths), paths)
	}

	removed, err := c.DeleteFilesUnder(ctx, "/data/docs")
	if err != nil {
		t.Fatal(err)
	}
	if removed != 2 {
		t.Errorf("expected 2 removed, got %d", removed)
	}

	// A sibling directory sharing the prefix string must survive.
	fp, _ := c.Fingerprint(ctx, "/data/docs-other/c.txt")
	if fp != "f3" {
		t.Errorf("sibling directory record was removed")
	}
}

func TestCatalog_Sessions(t *testing.T) {
	c := openTestCatalog(t)
	ctx := context.Background()

	if err := c.CreateSession(ctx, "s1", "scanning"); err != nil {
		t.Fatal(err)
	}

	finished := time.Now()
	session := &Session{
		ID:             "s1",
		State:          "complete",
		FinishedAt:     &finished,
		Discovered:     10,
		Processed:      9,
		Errored:        1,
		BytesProcessed: 4096,
	}
	if err := c.UpdateSession(ctx, session); err != nil {
		t.Fatal(err)
	}

	if err := c.UpdateSession(ctx, &Session{ID: "missing", State: "complete"}); err == nil {
		t.Error("expected error for unknown session")
	}

	sessions, err := c.ListSessions(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions))
	}
	got := sessions[0]
	if got.State != "complete" || got.Processed != 9 || got.FinishedAt == nil {
		t.Errorf("got %+v", got)
	}
}

func TestCatalog_FileErrors(t *testing.T) {
	c := openTestCatalog(t)
	ctx := context.Background()

	if err := c.CreateSession(ctx, "s1", "running"); err != nil {
		t.Fatal(err)
	}

	fe := &FileError{
		SessionID: "s1",
		Path:      "/data/docs/broken.pdf",
		Stage:     "extract",
		Message:   "extraction timed out",
	}
	if err := c.RecordFileError(ctx, fe); err != nil {
		t.Fatal(err)
	}
	if fe.At.IsZero() {
		t.Error("At should be stamped")
	}

	errs, err := c.ListFileErrors(ctx, "s1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %d", len(errs))
	}
	if errs[0].Stage != "extract" || errs[0].Path != "/data/docs/broken.pdf" {
		t.Errorf("got %+v", errs[0])
	}

	errs, _ = c.ListFileErrors(ctx, "unknown", 10)
	if len(errs) != 0 {
		t.Errorf("expected no errors for unknown session, got %d", len(errs))
	}
}
