// Package controller orchestrates the indexing pipeline: it owns the
// lifecycle state machine, runs scan/extract/write sessions, applies watcher
// deltas, and manages the authorized roots.
package controller

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tansa-search/tansa/internal/catalog"
	"github.com/tansa-search/tansa/internal/config"
	"github.com/tansa-search/tansa/internal/extract"
	"github.com/tansa-search/tansa/internal/fingerprint"
	"github.com/tansa-search/tansa/internal/index"
	"github.com/tansa-search/tansa/internal/models"
	"github.com/tansa-search/tansa/internal/scanner"
	"github.com/tansa-search/tansa/internal/watcher"
	"github.com/tansa-search/tansa/pkg/utils"
)

// ErrSessionActive rejects a start request while a session is in progress.
var ErrSessionActive = errors.New("session already active")

// ErrNoSession reports pause/resume/cancel with no session to act on.
var ErrNoSession = errors.New("no active session")

// progressInterval bounds how often coalesced progress snapshots are
// published while a session runs.
const progressInterval = 500 * time.Millisecond

// Controller drives indexing sessions over the authorized roots. One
// session is active at a time; a single writer goroutine serializes all
// index commits.
type Controller struct {
	scanner   *scanner.Scanner
	extractor *extract.Extractor
	store     *index.Store
	cat       *catalog.Catalog
	watch     *watcher.Watcher
	policy    *scanner.Policy
	fp        fingerprint.Policy

	workers       int
	queueSize     int
	flushDocs     int
	flushInterval time.Duration

	logger *zap.Logger

	mu         sync.Mutex
	state      State
	pausedFrom State
	gate       chan struct{} // closed = workers may pull; open = paused
	sess       *session
	cancelSess context.CancelFunc
	sessDone   chan struct{}
	// removedRoots records de-authorized prefixes so a running pipeline
	// never re-commits documents under them after the purge.
	removedRoots map[string]struct{}

	subMu   sync.Mutex
	subs    map[int]chan models.Progress
	nextSub int

	// writeMu serializes commits between the session writer and watcher
	// delta application, preserving the single-writer invariant.
	writeMu sync.Mutex
}

// session tracks one indexing run. Counters live behind one mutex so
// concurrent worker completions never lose updates.
type session struct {
	id        string
	startedAt time.Time
	stats     *scanner.Stats

	mu        sync.Mutex
	processed int64
	errored   int64
	bytes     int64
	current   string
	lastErr   string
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets a logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// New wires a controller from configuration and the shared stores. The
// watcher is created only when watching is enabled in config.
func New(cfg *config.Config, store *index.Store, cat *catalog.Catalog, opts ...Option) (*Controller, error) {
	policy, err := scanner.NewPolicy(cfg.Scan.Exclude)
	if err != nil {
		return nil, err
	}
	fp, err := fingerprint.ForName(cfg.Scan.Fingerprint)
	if err != nil {
		return nil, err
	}

	c := &Controller{
		store:         store,
		cat:           cat,
		policy:        policy,
		fp:            fp,
		workers:       cfg.Scan.Workers,
		queueSize:     cfg.Scan.QueueSize,
		flushDocs:     cfg.Scan.FlushDocs,
		flushInterval: cfg.Scan.FlushInterval(),
		state:         StateIdle,
		gate:          closedGate(),
		removedRoots:  make(map[string]struct{}),
		subs:          make(map[int]chan models.Progress),
	}
	for _, opt := range opts {
		opt(c)
	}

	scanOpts := []scanner.Option{}
	extractOpts := []extract.Option{}
	watchOpts := []watcher.Option{watcher.WithDebounce(cfg.Watch.Debounce())}
	if c.logger != nil {
		scanOpts = append(scanOpts, scanner.WithLogger(c.logger))
		extractOpts = append(extractOpts, extract.WithLogger(c.logger))
		watchOpts = append(watchOpts, watcher.WithLogger(c.logger))
	}
	if cfg.Scan.Workers > 0 {
		scanOpts = append(scanOpts, scanner.WithWorkers(cfg.Scan.Workers))
	}
	if cfg.Scan.QueueSize > 0 {
		scanOpts = append(scanOpts, scanner.WithQueueSize(cfg.Scan.QueueSize))
	}
	c.scanner = scanner.New(policy, scanOpts...)
	c.extractor = extract.New(cfg.Extract.MaxFileSize, cfg.Extract.MaxTextBytes, cfg.Extract.Timeout(), extractOpts...)
	if cfg.Watch.EnabledOrDefault() {
		c.watch = watcher.New(nil, policy, watchOpts...)
	}
	return c, nil
}

func closedGate() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start begins a new indexing session over the persisted roots and returns
// its ID. Rejected with ErrSessionActive while a session is scanning,
// running, or paused.
func (c *Controller) Start(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.state.active() {
		c.mu.Unlock()
		return "", ErrSessionActive
	}
	// A cancelled session keeps draining after Cancel returns; wait for its
	// finalizer so two pipelines never run at once.
	if done := c.sessDone; done != nil {
		c.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return "", ctx.Err()
		}
		c.mu.Lock()
		if c.state.active() {
			c.mu.Unlock()
			return "", ErrSessionActive
		}
	}

	roots, err := c.cat.ListRoots(ctx)
	if err != nil {
		c.mu.Unlock()
		return "", fmt.Errorf("failed to list roots: %w", err)
	}
	if len(roots) == 0 {
		c.mu.Unlock()
		return "", errors.New("no roots configured")
	}
	paths := make([]string, len(roots))
	for i, r := range roots {
		paths[i] = r.Path
	}

	sess := &session{
		id:        uuid.New().String(),
		startedAt: time.Now(),
	}
	sessCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.sess = sess
	c.cancelSess = cancel
	c.sessDone = done
	c.gate = closedGate()
	c.state = StateScanning
	c.mu.Unlock()

	if err := c.cat.CreateSession(ctx, sess.id, StateScanning.String()); err != nil && c.logger != nil {
		c.logger.Warn("failed to record session", zap.Error(err))
	}
	c.publish(c.Progress())
	if c.logger != nil {
		c.logger.Info("indexing session started",
			zap.String("session_id", sess.id),
			zap.Strings("roots", paths))
	}

	go c.runSession(sessCtx, sess, paths, done)
	return sess.id, nil
}

// Pause parks the pipeline between work items. In-flight extraction and
// writes finish cleanly. No-op when already paused; ErrNoSession otherwise.
func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case StatePaused:
		return nil
	case StateScanning, StateRunning:
		c.pausedFrom = c.state
		c.state = StatePaused
		c.gate = make(chan struct{})
		go func() { c.publish(c.Progress()) }()
		return nil
	default:
		return ErrNoSession
	}
}

// Resume reopens the gate and returns the session to the state it was
// paused from.
func (c *Controller) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StatePaused {
		return ErrNoSession
	}
	c.state = c.pausedFrom
	close(c.gate)
	go func() { c.publish(c.Progress()) }()
	return nil
}

// Cancel ends the session cooperatively: workers drain in-flight items and
// the writer issues a final commit, so committed documents are retained.
func (c *Controller) Cancel() error {
	c.mu.Lock()
	if !c.state.active() {
		c.mu.Unlock()
		return ErrNoSession
	}
	if c.state == StatePaused {
		close(c.gate) // unpark workers so they can observe cancellation
	}
	c.state = StateCancelled
	cancel := c.cancelSess
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.publish(c.Progress())
	return nil
}

// runSession executes one scan-extract-write pipeline to a terminal state.
func (c *Controller) runSession(ctx context.Context, sess *session, roots []string, done chan struct{}) {
	defer close(done)

	var fatal error
	for _, root := range roots {
		if _, err := os.Stat(root); err != nil {
			fatal = fmt.Errorf("root inaccessible: %s: %w", root, err)
			break
		}
	}

	if fatal == nil {
		fatal = c.runPipeline(ctx, sess, roots)
	}

	finished := time.Now()
	final := StateComplete
	switch {
	case fatal != nil && ctx.Err() == nil:
		final = StateError
		sess.mu.Lock()
		sess.lastErr = fatal.Error()
		sess.mu.Unlock()
	case ctx.Err() != nil:
		final = StateCancelled
	}
	c.mu.Lock()
	// Touch controller state only while this session is still the current
	// one; a successor must never have its state clobbered.
	if c.sess == sess {
		if c.state == StateCancelled {
			final = StateCancelled
		}
		c.state = final
		c.cancelSess = nil
	}
	c.mu.Unlock()

	if fatal != nil && c.logger != nil {
		c.logger.Error("indexing session failed", zap.String("session_id", sess.id), zap.Error(fatal))
	}

	sess.mu.Lock()
	record := &catalog.Session{
		ID:             sess.id,
		State:          final.String(),
		FinishedAt:     &finished,
		Processed:      sess.processed,
		Errored:        sess.errored,
		BytesProcessed: sess.bytes,
	}
	sess.mu.Unlock()
	if sess.stats != nil {
		record.Discovered = sess.stats.Discovered()
	}
	if err := c.cat.UpdateSession(context.Background(), record); err != nil && c.logger != nil {
		c.logger.Warn("failed to finalize session record", zap.Error(err))
	}

	c.publish(c.Progress())
	if c.logger != nil {
		c.logger.Info("indexing session finished",
			zap.String("session_id", sess.id),
			zap.Stringer("state", final),
			zap.Int64("processed", record.Processed),
			zap.Int64("errored", record.Errored))
	}
}

type writeItem struct {
	doc *models.Document
	rec *catalog.FileRecord
}

func (c *Controller) runPipeline(ctx context.Context, sess *session, roots []string) error {
	entries, stats := c.scanner.Scan(ctx, roots)
	sess.stats = stats

	queueSize := c.queueSize
	if queueSize <= 0 {
		queueSize = 1024
	}
	workQueue := make(chan models.FileEntry, queueSize)

	// Pump discovery into the bounded work queue; when discovery finishes
	// the session leaves Scanning.
	go func() {
		defer close(workQueue)
		for fe := range entries {
			select {
			case workQueue <- fe:
			case <-ctx.Done():
				// Drain the scanner so its walkers can exit.
				for range entries {
				}
				return
			}
		}
		c.finishScanning()
	}()

	writeCh := make(chan writeItem, 64)
	writerErr := make(chan error, 1)
	go func() {
		writerErr <- c.runWriter(sess, writeCh)
	}()

	// Coalesced progress ticker for the lifetime of the pipeline.
	progressDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(progressInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.publish(c.Progress())
			case <-progressDone:
				return
			}
		}
	}()
	defer close(progressDone)

	workers := c.workers
	if workers <= 0 {
		workers = defaultWorkers()
	}
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.runWorker(ctx, sess, workQueue, writeCh)
		}()
	}
	wg.Wait()
	close(writeCh)
	return <-writerErr
}

// runWorker pulls candidates from the queue, skips unchanged files by
// fingerprint, extracts the rest, and hands documents to the writer.
// Cancellation is checked between items, never mid-file.
func (c *Controller) runWorker(ctx context.Context, sess *session, workQueue <-chan models.FileEntry, writeCh chan<- writeItem) {
	for fe := range workQueue {
		if !c.waitGate(ctx) {
			return
		}

		fp, err := c.fp.Fingerprint(fe)
		if err != nil {
			c.recordFileError(sess, fe.Path, "scan", err)
			continue
		}
		prev, err := c.cat.Fingerprint(ctx, fe.Path)
		if err == nil && prev == fp {
			sess.mu.Lock()
			sess.processed++
			sess.mu.Unlock()
			continue
		}

		sess.mu.Lock()
		sess.current = fe.Path
		sess.mu.Unlock()

		res, err := c.extractor.Extract(ctx, fe)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.recordFileError(sess, fe.Path, "extract", err)
			continue
		}

		doc := &models.Document{
			Path:         fe.Path,
			Name:         fe.Name,
			Size:         fe.Size,
			CreatedAt:    fe.CreatedAt,
			ModifiedAt:   fe.ModifiedAt,
			MIMEType:     res.MIMEType,
			Content:      res.Text,
			Fingerprint:  fp,
			MetadataOnly: res.MetadataOnly,
		}
		rec := &catalog.FileRecord{
			Path:        fe.Path,
			Fingerprint: fp,
			Size:        fe.Size,
			ModifiedAt:  fe.ModifiedAt,
			MIMEType:    res.MIMEType,
		}
		select {
		case writeCh <- writeItem{doc: doc, rec: rec}:
		case <-ctx.Done():
			return
		}
	}
}

// runWriter is the single writer: it batches documents and commits every
// flushDocs documents or flushInterval, whichever comes first, then issues a
// final commit when the channel closes. Commits use a background context so
// a cancelled session still lands its drained in-flight work. Items are
// staged into the index batch only inside the commit critical section, where
// paths under a root removed mid-session are dropped; a de-authorized root
// never resurfaces behind its own purge.
func (c *Controller) runWriter(sess *session, writeCh <-chan writeItem) error {
	var pending []writeItem

	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		c.writeMu.Lock()
		defer c.writeMu.Unlock()
		batch := c.store.NewBatch()
		var recs []*catalog.FileRecord
		for _, item := range pending {
			if c.underRemovedRoot(item.doc.Path) {
				continue
			}
			if err := batch.Upsert(item.doc); err != nil {
				c.recordFileError(sess, item.doc.Path, "index", err)
				continue
			}
			recs = append(recs, item.rec)
		}
		pending = nil
		if err := c.store.Commit(context.Background(), batch); err != nil {
			return err
		}
		if err := c.cat.UpsertFiles(context.Background(), recs); err != nil {
			return err
		}
		sess.mu.Lock()
		for _, r := range recs {
			sess.processed++
			sess.bytes += r.Size
		}
		sess.mu.Unlock()
		return nil
	}

	interval := c.flushInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	flushDocs := c.flushDocs
	if flushDocs <= 0 {
		flushDocs = 500
	}

	for {
		select {
		case item, ok := <-writeCh:
			if !ok {
				return flush()
			}
			pending = append(pending, item)
			if len(pending) >= flushDocs {
				if err := flush(); err != nil {
					return err
				}
			}
		case <-ticker.C:
			if err := flush(); err != nil {
				return err
			}
		}
	}
}

// underRemovedRoot reports whether path sits under a root de-authorized
// since the controller started. AddRoot clears the mark on re-authorization.
func (c *Controller) underRemovedRoot(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for root := range c.removedRoots {
		if strings.HasPrefix(path, root+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// waitGate blocks while the session is paused. Returns false on
// cancellation.
func (c *Controller) waitGate(ctx context.Context) bool {
	c.mu.Lock()
	gate := c.gate
	c.mu.Unlock()
	select {
	case <-gate:
		return ctx.Err() == nil
	case <-ctx.Done():
		return false
	}
}

// finishScanning moves Scanning to Running once discovery completes. A
// session paused during discovery resumes straight into Running.
func (c *Controller) finishScanning() {
	c.mu.Lock()
	switch {
	case c.state == StateScanning:
		c.state = StateRunning
	case c.state == StatePaused && c.pausedFrom == StateScanning:
		c.pausedFrom = StateRunning
	default:
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	c.publish(c.Progress())
}

func (c *Controller) recordFileError(sess *session, path, stage string, err error) {
	sess.mu.Lock()
	sess.errored++
	sess.mu.Unlock()
	if c.logger != nil {
		c.logger.Debug("file skipped",
			zap.String("path", path),
			zap.String("stage", stage),
			zap.Error(err))
	}
	dbErr := c.cat.RecordFileError(context.Background(), &catalog.FileError{
		SessionID: sess.id,
		Path:      path,
		Stage:     stage,
		Message:   err.Error(),
	})
	if dbErr != nil && c.logger != nil {
		c.logger.Warn("failed to record file error", zap.Error(dbErr))
	}
}

// Progress returns a snapshot of the current (or most recent) session's
// counters.
func (c *Controller) Progress() models.Progress {
	c.mu.Lock()
	state := c.state
	sess := c.sess
	c.mu.Unlock()

	p := models.Progress{State: state.String()}
	if sess == nil {
		return p
	}
	sess.mu.Lock()
	p.SessionID = sess.id
	p.Processed = sess.processed
	p.Errored = sess.errored
	p.BytesProcessed = sess.bytes
	p.CurrentFile = sess.current
	sess.mu.Unlock()
	if sess.stats != nil {
		p.Discovered = sess.stats.Discovered()
	}
	p.Elapsed = time.Since(sess.startedAt)
	if secs := p.Elapsed.Seconds(); secs > 0 {
		p.FilesPerSec = float64(p.Processed) / secs
	}
	return p
}

// Subscribe registers a progress listener. The returned function
// unsubscribes. Slow listeners miss snapshots rather than blocking the
// pipeline.
func (c *Controller) Subscribe() (<-chan models.Progress, func()) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	id := c.nextSub
	c.nextSub++
	ch := make(chan models.Progress, 16)
	c.subs[id] = ch
	return ch, func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		if sub, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(sub)
		}
	}
}

func (c *Controller) publish(p models.Progress) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, ch := range c.subs {
		select {
		case ch <- p:
		default:
		}
	}
}

// WaitIdle blocks until the running session reaches a terminal state.
// Returns immediately when no session was started.
func (c *Controller) WaitIdle() {
	c.mu.Lock()
	done := c.sessDone
	c.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Watch starts the change watcher over the persisted roots and applies its
// events until ctx is cancelled.
func (c *Controller) Watch(ctx context.Context) error {
	if c.watch == nil {
		return nil
	}
	roots, err := c.cat.ListRoots(ctx)
	if err != nil {
		return fmt.Errorf("failed to list roots: %w", err)
	}
	for _, r := range roots {
		if err := c.watch.AddRoot(r.Path); err != nil && c.logger != nil {
			c.logger.Warn("failed to watch root", zap.String("root", r.Path), zap.Error(err))
		}
	}
	if err := c.watch.Start(ctx); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	go func() {
		for ev := range c.watch.Events() {
			c.applyChange(ctx, ev)
		}
	}()
	return nil
}

// applyChange synchronizes the index with one debounced change event.
// Watcher deltas commit immediately, without the scan batching cadence.
// Failures are per-file: logged and dropped, never fatal.
func (c *Controller) applyChange(ctx context.Context, ev models.ChangeEvent) {
	switch ev.Op {
	case models.OpRemoved, models.OpRenamed:
		path := ev.Path
		if ev.Op == models.OpRenamed && ev.OldPath != "" {
			path = ev.OldPath
		}
		c.deleteDocument(ctx, path)
	case models.OpCreated, models.OpModified:
		c.reindexFile(ctx, ev.Path)
	}
}

func (c *Controller) deleteDocument(ctx context.Context, path string) {
	batch := c.store.NewBatch()
	batch.Delete(path)
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.store.Commit(ctx, batch); err != nil {
		if c.logger != nil {
			c.logger.Warn("failed to remove document", zap.String("path", path), zap.Error(err))
		}
		return
	}
	if err := c.cat.DeleteFiles(ctx, []string{path}); err != nil && c.logger != nil {
		c.logger.Warn("failed to remove file record", zap.String("path", path), zap.Error(err))
	}
	if c.logger != nil {
		c.logger.Debug("document removed", zap.String("path", path))
	}
}

func (c *Controller) reindexFile(ctx context.Context, path string) {
	// Debounced events may still land after the watcher detached from a
	// removed root.
	if c.underRemovedRoot(path) {
		return
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}
	fe := models.FileEntry{
		Path:       path,
		Name:       filepath.Base(path),
		Size:       info.Size(),
		ModifiedAt: info.ModTime(),
	}

	fp, err := c.fp.Fingerprint(fe)
	if err != nil {
		return
	}
	prev, err := c.cat.Fingerprint(ctx, path)
	if err == nil && prev == fp {
		return
	}

	res, err := c.extractor.Extract(ctx, fe)
	if err != nil {
		if c.logger != nil {
			c.logger.Debug("change extraction failed", zap.String("path", path), zap.Error(err))
		}
		return
	}

	doc := &models.Document{
		Path:         fe.Path,
		Name:         fe.Name,
		Size:         fe.Size,
		ModifiedAt:   fe.ModifiedAt,
		MIMEType:     res.MIMEType,
		Content:      res.Text,
		Fingerprint:  fp,
		MetadataOnly: res.MetadataOnly,
	}
	batch := c.store.NewBatch()
	if err := batch.Upsert(doc); err != nil {
		return
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.store.Commit(ctx, batch); err != nil {
		if c.logger != nil {
			c.logger.Warn("failed to commit change", zap.String("path", path), zap.Error(err))
		}
		return
	}
	rec := &catalog.FileRecord{
		Path:        fe.Path,
		Fingerprint: fp,
		Size:        fe.Size,
		ModifiedAt:  fe.ModifiedAt,
		MIMEType:    res.MIMEType,
	}
	if err := c.cat.UpsertFiles(ctx, []*catalog.FileRecord{rec}); err != nil && c.logger != nil {
		c.logger.Warn("failed to record file", zap.String("path", path), zap.Error(err))
	}
	if c.logger != nil {
		c.logger.Debug("document synchronized", zap.String("path", path))
	}
}

// AddRoot authorizes a new directory for indexing: validated, persisted,
// and attached to the watcher. Indexing it requires a new session or
// watcher events.
func (c *Controller) AddRoot(ctx context.Context, path string) (*catalog.Root, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("invalid root path: %w", err)
	}
	abs = filepath.Clean(abs)
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("root not accessible: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root is not a directory: %s", abs)
	}
	if c.policy.SkipDir(abs) {
		return nil, fmt.Errorf("root is excluded by policy: %s", abs)
	}

	root, err := c.cat.AddRoot(ctx, abs)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	delete(c.removedRoots, abs)
	c.mu.Unlock()
	if c.watch != nil {
		if err := c.watch.AddRoot(abs); err != nil && c.logger != nil {
			c.logger.Warn("failed to watch new root", zap.String("root", abs), zap.Error(err))
		}
	}
	if c.logger != nil {
		c.logger.Info("root added", zap.String("root", abs))
	}
	return root, nil
}

// RemoveRoot de-authorizes a directory: watcher detach, then purge of every
// indexed document and catalog record under it. Documents under other roots
// are untouched.
func (c *Controller) RemoveRoot(ctx context.Context, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("invalid root path: %w", err)
	}
	abs = filepath.Clean(abs)

	if err := c.cat.RemoveRoot(ctx, abs); err != nil {
		return err
	}
	// Mark before purging so an active session's writer drops anything it
	// still has queued under this root.
	c.mu.Lock()
	c.removedRoots[abs] = struct{}{}
	c.mu.Unlock()
	if c.watch != nil {
		if err := c.watch.RemoveRoot(abs); err != nil && c.logger != nil {
			c.logger.Warn("failed to detach watcher", zap.String("root", abs), zap.Error(err))
		}
	}

	c.writeMu.Lock()
	removed, err := c.store.DeleteByPathPrefix(ctx, abs+string(filepath.Separator))
	c.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to purge index for %s: %w", abs, err)
	}
	if _, err := c.cat.DeleteFilesUnder(ctx, abs); err != nil {
		return fmt.Errorf("failed to purge catalog for %s: %w", abs, err)
	}
	if c.logger != nil {
		c.logger.Info("root removed", zap.String("root", abs), zap.Int("documents_purged", removed))
	}
	return nil
}

// Roots returns the authorized roots.
func (c *Controller) Roots(ctx context.Context) ([]*catalog.Root, error) {
	return c.cat.ListRoots(ctx)
}

// Sessions returns recent session history, newest first.
func (c *Controller) Sessions(ctx context.Context, limit int) ([]*catalog.Session, error) {
	if limit <= 0 {
		limit = 20
	}
	return c.cat.ListSessions(ctx, limit)
}

// FileErrors returns the per-file failures recorded for a session.
func (c *Controller) FileErrors(ctx context.Context, sessionID string, limit int) ([]*catalog.FileError, error) {
	if limit <= 0 {
		limit = 100
	}
	return c.cat.ListFileErrors(ctx, sessionID, limit)
}

// Stats summarizes the committed index.
func (c *Controller) Stats(ctx context.Context) (*models.IndexStats, error) {
	docs, err := c.store.DocCount()
	if err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}
	_, bytes, err := c.cat.CountFiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog stats: %w", err)
	}
	disk, err := utils.DiskUsageBytes(c.store.Path(), c.cat.Path())
	if err != nil && c.logger != nil {
		c.logger.Warn("failed to measure disk usage", zap.Error(err))
	}
	return &models.IndexStats{
		TotalDocuments: int64(docs),
		TotalBytes:     bytes,
		DiskUsageBytes: disk,
		LastCommitAt:   c.store.LastCommitAt(),
	}, nil
}

// Close cancels any running session and stops the watcher.
func (c *Controller) Close() {
	_ = c.Cancel()
	c.WaitIdle()
	if c.watch != nil {
		c.watch.Stop()
	}
}

func defaultWorkers() int {
	return runtime.GOMAXPROCS(0)
}
