// Package watcher turns fsnotify events on the authorized roots into
// debounced change events for the indexing pipeline.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/tansa-search/tansa/internal/models"
	"github.com/tansa-search/tansa/internal/scanner"
)

const defaultDebounce = 400 * time.Millisecond

// Watcher watches the authorized roots recursively and emits change events.
// Write bursts on the same path are coalesced into one event per debounce
// window; removals are emitted immediately and cancel any pending write.
type Watcher struct {
	policy   *scanner.Policy
	debounce time.Duration
	events   chan models.ChangeEvent

	mu          sync.Mutex
	roots       []string
	watcher     *fsnotify.Watcher
	debounceMap map[string]*time.Timer
	pendingOps  map[string]models.ChangeOp
	rootPaths   map[string][]string // root -> watched subdirectories
	started     bool

	emitMu sync.RWMutex
	closed bool

	done     chan struct{}
	stopOnce sync.Once
	logger   *zap.Logger
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce overrides the debounce window for write bursts.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// New creates a watcher over the given roots. The policy filters events the
// same way the scanner filters traversal, so the watcher never emits a path
// the scanner would have skipped.
func New(roots []string, policy *scanner.Policy, opts ...Option) *Watcher {
	w := &Watcher{
		policy:      policy,
		debounce:    defaultDebounce,
		events:      make(chan models.ChangeEvent, 256),
		roots:       append([]string(nil), roots...),
		debounceMap: make(map[string]*time.Timer),
		pendingOps:  make(map[string]models.ChangeOp),
		rootPaths:   make(map[string][]string),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Events returns the stream of debounced change events. The channel closes
// when the watcher stops.
func (w *Watcher) Events() <-chan models.ChangeEvent {
	return w.events
}

// Start begins watching. It runs until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	w.watcher = watcher
	w.started = true
	if w.logger != nil {
		w.logger.Debug("watcher starting", zap.Strings("roots", w.roots))
	}
	for _, root := range w.roots {
		if err := w.addRootLocked(root); err != nil {
			_ = w.watcher.Close()
			w.watcher = nil
			w.started = false
			w.mu.Unlock()
			return err
		}
	}
	w.mu.Unlock()
	go w.run(ctx)
	return nil
}

func (w *Watcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if err != nil && w.logger != nil {
				w.logger.Debug("watcher error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)
	if !w.underRoot(path) {
		return
	}
	if w.logger != nil {
		w.logger.Debug("watcher event", zap.String("op", ev.Op.String()), zap.String("path", path))
	}
	switch {
	case ev.Op.Has(fsnotify.Create):
		info, err := os.Stat(path)
		if err == nil && info.IsDir() {
			w.handleNewDirectory(path)
			return
		}
		if !w.policy.SkipFile(path) {
			w.debounceChange(path, models.OpCreated)
		}
	case ev.Op.Has(fsnotify.Write):
		if !w.policy.SkipFile(path) {
			w.debounceChange(path, models.OpModified)
		}
	case ev.Op.Has(fsnotify.Remove):
		w.cancelDebounce(path)
		if !w.policy.SkipFile(path) {
			w.emit(models.ChangeEvent{Op: models.OpRemoved, Path: path, At: time.Now()})
		}
	case ev.Op.Has(fsnotify.Rename):
		// fsnotify reports only the old path of a rename; the new location
		// arrives as a separate Create event.
		w.cancelDebounce(path)
		if !w.policy.SkipFile(path) {
			w.emit(models.ChangeEvent{Op: models.OpRenamed, Path: path, OldPath: path, At: time.Now()})
		}
	}
}

// handleNewDirectory starts watching a directory that appeared under a root
// and emits Created events for files already inside it, since those files
// produced no events of their own.
func (w *Watcher) handleNewDirectory(dirPath string) {
	if w.policy.SkipDir(dirPath) {
		return
	}
	w.mu.Lock()
	watcher := w.watcher
	w.mu.Unlock()
	if watcher == nil {
		return
	}

	filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if w.policy.SkipDir(path) {
				return filepath.SkipDir
			}
			if addErr := watcher.Add(path); addErr != nil && w.logger != nil {
				w.logger.Debug("watcher failed to add directory", zap.String("path", path), zap.Error(addErr))
			}
			return nil
		}
		if !w.policy.SkipFile(path) {
			w.debounceChange(path, models.OpCreated)
		}
		return nil
	})
}

func (w *Watcher) underRoot(path string) bool {
	w.mu.Lock()
	roots := append([]string(nil), w.roots...)
	w.mu.Unlock()
	for _, root := range roots {
		rootClean := filepath.Clean(root)
		if rootClean == path || inDir(rootClean, path) {
			return true
		}
	}
	return false
}

func inDir(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// debounceChange schedules an event for path, restarting the window when the
// path is already pending. The first op of a burst wins, so a create
// followed by writes still reports as Created.
func (w *Watcher) debounceChange(path string, op models.ChangeOp) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.debounceMap[path]; ok {
		t.Stop()
	} else {
		w.pendingOps[path] = op
	}
	t := time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		pendingOp, ok := w.pendingOps[path]
		delete(w.debounceMap, path)
		delete(w.pendingOps, path)
		logger := w.logger
		w.mu.Unlock()
		if !ok {
			return
		}
		if logger != nil {
			logger.Debug("watcher emitting change", zap.Stringer("op", pendingOp), zap.String("path", path))
		}
		w.emit(models.ChangeEvent{Op: pendingOp, Path: path, At: time.Now()})
	})
	w.debounceMap[path] = t
}

func (w *Watcher) cancelDebounce(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.debounceMap[path]; ok {
		t.Stop()
		delete(w.debounceMap, path)
		delete(w.pendingOps, path)
	}
}

// emit delivers an event without blocking the fsnotify loop. Events are
// dropped when the consumer falls more than a full buffer behind; a missed
// change is recovered by the next scan.
func (w *Watcher) emit(ev models.ChangeEvent) {
	w.emitMu.RLock()
	defer w.emitMu.RUnlock()
	if w.closed {
		return
	}
	select {
	case w.events <- ev:
	default:
		if w.logger != nil {
			w.logger.Debug("watcher dropping event, consumer behind", zap.String("path", ev.Path))
		}
	}
}

// AddRoot starts watching an additional root.
func (w *Watcher) AddRoot(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watcher == nil {
		w.roots = append(w.roots, abs)
		return nil
	}
	for _, r := range w.roots {
		if filepath.Clean(r) == filepath.Clean(abs) {
			return nil
		}
	}
	if err := w.addRootLocked(abs); err != nil {
		return err
	}
	w.roots = append(w.roots, abs)
	if w.logger != nil {
		w.logger.Debug("watcher root added", zap.String("path", abs))
	}
	return nil
}

func (w *Watcher) addRootLocked(root string) error {
	root = filepath.Clean(root)
	if _, err := os.Stat(root); err != nil {
		return err
	}
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.policy.SkipDir(path) {
			return filepath.SkipDir
		}
		if addErr := w.watcher.Add(path); addErr != nil {
			return addErr
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return err
	}
	w.rootPaths[root] = paths
	return nil
}

// RemoveRoot stops watching a root. It does not emit removal events; the
// caller purges indexed documents separately.
func (w *Watcher) RemoveRoot(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	abs = filepath.Clean(abs)
	w.mu.Lock()
	defer w.mu.Unlock()
	idx := -1
	for i, r := range w.roots {
		if filepath.Clean(r) == abs {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	if w.watcher != nil {
		for _, p := range w.rootPaths[abs] {
			_ = w.watcher.Remove(p)
		}
	}
	delete(w.rootPaths, abs)
	w.roots = append(w.roots[:idx], w.roots[idx+1:]...)
	if w.logger != nil {
		w.logger.Debug("watcher root removed", zap.String("path", abs))
	}
	return nil
}

// Roots returns a copy of the currently watched roots.
func (w *Watcher) Roots() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.roots...)
}

// Stop stops the watcher, drops pending debounces, and closes the event
// stream.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started || w.watcher == nil {
		w.mu.Unlock()
		return
	}
	for path, t := range w.debounceMap {
		t.Stop()
		delete(w.debounceMap, path)
		delete(w.pendingOps, path)
	}
	_ = w.watcher.Close()
	w.watcher = nil
	w.started = false
	w.mu.Unlock()
	w.stopOnce.Do(func() {
		close(w.done)
		w.emitMu.Lock()
		w.closed = true
		close(w.events)
		w.emitMu.Unlock()
	})
}
