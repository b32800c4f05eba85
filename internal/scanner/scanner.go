package scanner

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/tansa-search/tansa/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Stats counts traversal outcomes. Safe for concurrent use.
type Stats struct {
	discovered atomic.Int64
	skipped    atomic.Int64
	errors     atomic.Int64
}

// Discovered returns the number of file entries emitted so far.
func (s *Stats) Discovered() int64 { return s.discovered.Load() }

// Skipped returns the number of entries excluded by policy.
func (s *Stats) Skipped() int64 { return s.skipped.Load() }

// Errors returns the number of entries skipped due to I/O or permission errors.
func (s *Stats) Errors() int64 { return s.errors.Load() }

// Scanner walks directory roots in parallel and emits candidate files.
type Scanner struct {
	policy  *Policy
	workers int
	queue   int
	logger  *zap.Logger
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithLogger sets a logger for debug output (cycles, permission errors, etc.).
func WithLogger(l *zap.Logger) Option {
	return func(s *Scanner) { s.logger = l }
}

// WithWorkers caps the number of concurrent subtree walkers.
func WithWorkers(n int) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithQueueSize bounds the output channel. Producers block when consumers lag.
func WithQueueSize(n int) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.queue = n
		}
	}
}

// New creates a Scanner with the given exclusion policy.
func New(policy *Policy, opts ...Option) *Scanner {
	s := &Scanner{
		policy:  policy,
		workers: runtime.GOMAXPROCS(0),
		queue:   1024,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan enumerates all regular files under roots and sends them on the
// returned channel. The channel is closed when the walk finishes or ctx is
// cancelled. Each call starts a fresh walk; a walk is not restartable.
// Permission-denied entries and symlink cycles are counted in stats and
// skipped, never fatal.
func (s *Scanner) Scan(ctx context.Context, roots []string) (<-chan models.FileEntry, *Stats) {
	out := make(chan models.FileEntry, s.queue)
	stats := &Stats{}

	walk := &walker{
		scanner: s,
		stats:   stats,
		out:     out,
		seen:    &sync.Map{},
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	go func() {
		defer close(out)
		for _, root := range roots {
			canonical, err := filepath.EvalSymlinks(root)
			if err != nil {
				stats.errors.Add(1)
				if s.logger != nil {
					s.logger.Warn("scan root unresolvable", zap.String("root", root), zap.Error(err))
				}
				continue
			}
			walk.allowed = append(walk.allowed, canonical)
		}
		for _, root := range walk.allowed {
			root := root
			g.Go(func() error {
				walk.walkDir(gctx, root, g)
				return nil
			})
		}
		_ = g.Wait()
	}()

	return out, stats
}

type walker struct {
	scanner *Scanner
	stats   *Stats
	out     chan<- models.FileEntry
	seen    *sync.Map // canonical dir path -> struct{}, symlink cycle guard
	allowed []string  // canonical whitelisted roots
}

// underAllowed reports whether a canonical path stays inside some scanned
// root. Symlinks pointing outside every root are never followed.
func (w *walker) underAllowed(canonical string) bool {
	for _, root := range w.allowed {
		if canonical == root {
			return true
		}
		rel, err := filepath.Rel(root, canonical)
		if err == nil && rel != ".." && !filepath.IsAbs(rel) && !hasDotDotPrefix(rel) {
			return true
		}
	}
	return false
}

func hasDotDotPrefix(rel string) bool {
	return rel == ".." || len(rel) > 2 && rel[:3] == ".."+string(filepath.Separator)
}

// walkDir enumerates one directory, emitting files and scheduling
// subdirectory walks on the shared group when a worker slot is free.
func (w *walker) walkDir(ctx context.Context, dir string, g *errgroup.Group) {
	if _, loaded := w.seen.LoadOrStore(dir, struct{}{}); loaded {
		// Already visited through another link: cycle or duplicate subtree.
		if w.scanner.logger != nil {
			w.scanner.logger.Debug("scanner skipping already-visited directory", zap.String("path", dir))
		}
		return
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		w.stats.errors.Add(1)
		if w.scanner.logger != nil {
			w.scanner.logger.Debug("scanner cannot read directory", zap.String("path", dir), zap.Error(err))
		}
		return
	}

	for _, entry := range entries {
		select {
		case <-ctx.Done():
			return
		default:
		}

		path := filepath.Join(dir, entry.Name())

		if entry.Type()&os.ModeSymlink != 0 {
			w.walkSymlink(ctx, path, g)
			continue
		}

		if entry.IsDir() {
			if w.scanner.policy.SkipDir(path) {
				w.stats.skipped.Add(1)
				continue
			}
			sub := path
			if !g.TryGo(func() error {
				w.walkDir(ctx, sub, g)
				return nil
			}) {
				w.walkDir(ctx, sub, g)
			}
			continue
		}

		if !entry.Type().IsRegular() {
			continue
		}
		if w.scanner.policy.SkipFile(path) {
			w.stats.skipped.Add(1)
			continue
		}
		info, err := entry.Info()
		if err != nil {
			w.stats.errors.Add(1)
			continue
		}
		fe := models.FileEntry{
			Path:       path,
			Name:       entry.Name(),
			Size:       info.Size(),
			ModifiedAt: info.ModTime(),
		}
		if created, ok := createdTime(info); ok {
			fe.CreatedAt = created
		}
		select {
		case w.out <- fe:
			w.stats.discovered.Add(1)
		case <-ctx.Done():
			return
		}
	}
}

// walkSymlink resolves a symlink once and, if it lands on a directory still
// inside a whitelisted root, descends by canonical path so cycles are caught
// by the seen map.
func (w *walker) walkSymlink(ctx context.Context, path string, g *errgroup.Group) {
	canonical, err := filepath.EvalSymlinks(path)
	if err != nil {
		w.stats.errors.Add(1)
		return
	}
	if !w.underAllowed(canonical) {
		// Escapes every whitelisted root: never followed, even from inside one.
		w.stats.skipped.Add(1)
		if w.scanner.logger != nil {
			w.scanner.logger.Debug("scanner symlink escapes whitelist", zap.String("path", path), zap.String("target", canonical))
		}
		return
	}
	info, err := os.Stat(canonical)
	if err != nil {
		w.stats.errors.Add(1)
		return
	}
	if info.IsDir() {
		if w.scanner.policy.SkipDir(canonical) {
			w.stats.skipped.Add(1)
			return
		}
		w.walkDir(ctx, canonical, g)
		return
	}
	if !info.Mode().IsRegular() || w.scanner.policy.SkipFile(canonical) {
		w.stats.skipped.Add(1)
		return
	}
	fe := models.FileEntry{
		Path:       canonical,
		Name:       filepath.Base(canonical),
		Size:       info.Size(),
		ModifiedAt: info.ModTime(),
	}
	if created, ok := createdTime(info); ok {
		fe.CreatedAt = created
	}
	select {
	case w.out <- fe:
		w.stats.discovered.Add(1)
	case <-ctx.Done():
	}
}
