package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/tansa-search/tansa/internal/models"
)

func collect(t *testing.T, ch <-chan models.FileEntry) map[string]models.FileEntry {
	t.Helper()
	got := make(map[string]models.FileEntry)
	for e := range ch {
		got[e.Path] = e
	}
	return got
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestScanEmitsRegularFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "hello world")
	writeFile(t, filepath.Join(dir, "sub", "b.txt"), "goodbye world")
	writeFile(t, filepath.Join(dir, "sub", "deep", "c.md"), "notes")

	policy, err := NewPolicy(nil)
	if err != nil {
		t.Fatal(err)
	}
	s := New(policy, WithWorkers(2), WithQueueSize(8))
	ch, stats := s.Scan(context.Background(), []string{dir})
	got := collect(t, ch)

	if len(got) != 3 {
		t.Fatalf("got %d entries, want 3: %v", len(got), got)
	}
	if stats.Discovered() != 3 {
		t.Errorf("Discovered = %d, want 3", stats.Discovered())
	}
	// TempDir may itself be a symlinked path on some systems; compare by base name.
	names := map[string]bool{}
	for p := range got {
		names[filepath.Base(p)] = true
	}
	for _, want := range []string{"a.txt", "b.txt", "c.md"} {
		if !names[want] {
			t.Errorf("missing %s in scan output", want)
		}
	}
}

func TestScanSkipsHiddenAndExcluded(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "keep.txt"), "x")
	writeFile(t, filepath.Join(dir, ".hidden", "secret.txt"), "x")
	writeFile(t, filepath.Join(dir, ".dotfile"), "x")
	writeFile(t, filepath.Join(dir, "node_modules", "pkg", "index.js"), "x")

	policy, err := NewPolicy([]string{"**/node_modules/**"})
	if err != nil {
		t.Fatal(err)
	}
	s := New(policy)
	ch, _ := s.Scan(context.Background(), []string{dir})
	got := collect(t, ch)

	if len(got) != 1 {
		t.Fatalf("got %d entries, want 1: %v", len(got), got)
	}
	for p := range got {
		if filepath.Base(p) != "keep.txt" {
			t.Errorf("unexpected entry %s", p)
		}
	}
}

func TestScanSymlinkCycleIsNotFatal(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	writeFile(t, filepath.Join(sub, "f.txt"), "x")
	// Cycle: sub/loop -> dir
	if err := os.Symlink(dir, filepath.Join(sub, "loop")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	policy, _ := NewPolicy(nil)
	s := New(policy, WithWorkers(1))
	ch, _ := s.Scan(context.Background(), []string{dir})
	got := collect(t, ch)

	// The walk must terminate and emit f.txt exactly once.
	count := 0
	for p := range got {
		if filepath.Base(p) == "f.txt" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("f.txt emitted %d times, want 1", count)
	}
}

func TestScanSymlinkEscapingRootIsNotFollowed(t *testing.T) {
	outside := t.TempDir()
	writeFile(t, filepath.Join(outside, "secret.txt"), "x")
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "ok.txt"), "x")
	if err := os.Symlink(outside, filepath.Join(dir, "escape")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	policy, _ := NewPolicy(nil)
	s := New(policy)
	ch, _ := s.Scan(context.Background(), []string{dir})
	got := collect(t, ch)

	for p := range got {
		if filepath.Base(p) == "secret.txt" {
			t.Errorf("escaped whitelist via symlink: %s", p)
		}
	}
}

func TestScanCancellation(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 50; i++ {
		writeFile(t, filepath.Join(dir, "d", "f"+string(rune('a'+i%26))+".txt"), "x")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	policy, _ := NewPolicy(nil)
	s := New(policy, WithQueueSize(1))
	ch, _ := s.Scan(ctx, []string{dir})
	// Drain; must terminate promptly despite the tiny queue.
	for range ch {
	}
}

func TestPolicyDeniedSystemDirs(t *testing.T) {
	p, _ := NewPolicy(nil)
	for _, d := range []string{"/proc", "/sys/kernel", "/dev"} {
		if !p.SkipDir(d) {
			t.Errorf("SkipDir(%q) = false, want true", d)
		}
	}
	if !p.SkipDir("/mnt/backup/$Recycle.Bin") {
		t.Error("recycle bin should be denied")
	}
	if p.SkipDir("/home/user/docs") {
		t.Error("ordinary directory should not be denied")
	}
}

func TestPolicyInvalidPattern(t *testing.T) {
	if _, err := NewPolicy([]string{"[unclosed"}); err == nil {
		t.Error("expected error for malformed glob")
	}
}
