// Package catalog provides SQLite-backed bookkeeping for the index: the
// authorized roots, per-file fingerprints for incremental scans, indexing
// session history, and per-file error attribution.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ErrRootExists is returned when adding a root that is already registered.
var ErrRootExists = fmt.Errorf("root already registered")

// ErrRootNotFound is returned when removing an unknown root.
var ErrRootNotFound = fmt.Errorf("root not found")

// Root is one authorized top-level directory of the indexed subset.
type Root struct {
	Path    string    `json:"path"`
	AddedAt time.Time `json:"added_at"`
}

// Session records one indexing run from start to its terminal state.
type Session struct {
	ID             string     `json:"id"`
	State          string     `json:"state"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
	Discovered     int64      `json:"discovered"`
	Processed      int64      `json:"processed"`
	Errored        int64      `json:"errored"`
	BytesProcessed int64      `json:"bytes_processed"`
}

// FileError attributes one per-file failure to the session it occurred in.
// Stage is where the file failed: scan, extract, or index.
type FileError struct {
	SessionID string    `json:"session_id"`
	Path      string    `json:"path"`
	Stage     string    `json:"stage"`
	Message   string    `json:"message"`
	At        time.Time `json:"at"`
}

// FileRecord is the catalog's view of one indexed file, keyed by path.
type FileRecord struct {
	Path        string
	Fingerprint string
	Size        int64
	ModifiedAt  time.Time
	MIMEType    string
	IndexedAt   time.Time
}

// Catalog implements the bookkeeping store on SQLite.
type Catalog struct {
	db   *sql.DB
	path string
}

// Open opens or creates the catalog database at dbPath and initializes the
// schema. Parent directories are created if they do not exist.
func Open(dbPath string) (*Catalog, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create catalog directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Catalog{db: db, path: dbPath}, nil
}

// Path returns the database file path the catalog was opened with.
func (c *Catalog) Path() string {
	return c.path
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS roots (
		path TEXT PRIMARY KEY,
		added_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS files (
		path TEXT PRIMARY KEY,
		fingerprint TEXT NOT NULL,
		size INTEGER NOT NULL,
		modified_at TIMESTAMP NOT NULL,
		mime_type TEXT,
		indexed_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_files_indexed_at ON files(indexed_at);

	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		state TEXT NOT NULL,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP,
		discovered INTEGER NOT NULL DEFAULT 0,
		processed INTEGER NOT NULL DEFAULT 0,
		errored INTEGER NOT NULL DEFAULT 0,
		bytes_processed INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON sessions(started_at);

	CREATE TABLE IF NOT EXISTS file_errors (
		session_id TEXT NOT NULL,
		path TEXT NOT NULL,
		stage TEXT NOT NULL,
		message TEXT NOT NULL,
		at TIMESTAMP NOT NULL,
		FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_file_errors_session ON file_errors(session_id);
	`
	_, err := db.Exec(schema)
	return err
}

// AddRoot registers a new authorized root. The path must already be
// canonical and absolute.
func (c *Catalog) AddRoot(ctx context.Context, path string) (*Root, error) {
	root := &Root{Path: path, AddedAt: time.Now()}
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO roots (path, added_at) VALUES (?, ?)`,
		root.Path, root.AddedAt,
	)
	if err != nil {
		var exists int
		row := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM roots WHERE path = ?`, path)
		if scanErr := row.Scan(&exists); scanErr == nil && exists > 0 {
			return nil, fmt.Errorf("%w: %s", ErrRootExists, path)
		}
		return nil, fmt.Errorf("failed to add root: %w", err)
	}
	return root, nil
}

// RemoveRoot de-authorizes a root.
func (c *Catalog) RemoveRoot(ctx context.Context, path string) error {
	result, err := c.db.ExecContext(ctx, `DELETE FROM roots WHERE path = ?`, path)
	if err != nil {
		return fmt.Errorf("failed to remove root: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRootNotFound, path)
	}
	return nil
}

// ListRoots returns the registered roots ordered by path.
func (c *Catalog) ListRoots(ctx context.Context) ([]*Root, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT path, added_at FROM roots ORDER BY path`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roots []*Root
	for rows.Next() {
		var r Root
		if err := rows.Scan(&r.Path, &r.AddedAt); err != nil {
			return nil, err
		}
		roots = append(roots, &r)
	}
	return roots, rows.Err()
}

// Fingerprint returns the stored fingerprint for path, or "" when the file
// has never been indexed.
func (c *Catalog) Fingerprint(ctx context.Context, path string) (string, error) {
	var fp string
	err := c.db.QueryRowContext(ctx,
		`SELECT fingerprint FROM files WHERE path = ?`, path,
	).Scan(&fp)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return fp, nil
}

// UpsertFiles records file fingerprints in one transaction, mirroring an
// index commit.
func (c *Catalog) UpsertFiles(ctx context.Context, records []*FileRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO files (path, fingerprint, size, modified_at, mime_type, indexed_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET
			fingerprint = excluded.fingerprint,
			size = excluded.size,
			modified_at = excluded.modified_at,
			mime_type = excluded.mime_type,
			indexed_at = excluded.indexed_at`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, r := range records {
		r.IndexedAt = now
		if _, err := stmt.ExecContext(ctx, r.Path, r.Fingerprint, r.Size, r.ModifiedAt, r.MIMEType, r.IndexedAt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// DeleteFiles removes file records by path in one transaction.
func (c *Catalog) DeleteFiles(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `DELETE FROM files WHERE path = ?`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range paths {
		if _, err := stmt.ExecContext(ctx, p); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// DeleteFilesUnder removes every file record whose path is under prefix and
// returns the number removed. Used when a root is de-authorized.
func (c *Catalog) DeleteFilesUnder(ctx context.Context, prefix string) (int64, error) {
	result, err := c.db.ExecContext(ctx,
		`DELETE FROM files WHERE path = ? OR path LIKE ? ESCAPE '\'`,
		prefix, escapeLike(prefix)+string(filepath.Separator)+"%",
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete files under %s: %w", prefix, err)
	}
	return result.RowsAffected()
}

// ListFilesUnder returns the paths of all recorded files under prefix.
func (c *Catalog) ListFilesUnder(ctx context.Context, prefix string) ([]string, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT path FROM files WHERE path = ? OR path LIKE ? ESCAPE '\' ORDER BY path`,
		prefix, escapeLike(prefix)+string(filepath.Separator)+"%",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// CountFiles returns the number of recorded files and their total size.
func (c *Catalog) CountFiles(ctx context.Context) (count int64, bytes int64, err error) {
	err = c.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(size), 0) FROM files`,
	).Scan(&count, &bytes)
	return count, bytes, err
}

// CreateSession records the start of an indexing run.
func (c *Catalog) CreateSession(ctx context.Context, id, state string) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO sessions (id, state, started_at) VALUES (?, ?, ?)`,
		id, state, time.Now(),
	)
	return err
}

// UpdateSession writes the current state and counters of a session. A
// terminal state also stamps finished_at.
func (c *Catalog) UpdateSession(ctx context.Context, s *Session) error {
	result, err := c.db.ExecContext(ctx,
		`UPDATE sessions SET state = ?, finished_at = ?, discovered = ?, processed = ?, errored = ?, bytes_processed = ?
		 WHERE id = ?`,
		s.State, s.FinishedAt, s.Discovered, s.Processed, s.Errored, s.BytesProcessed, s.ID,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("session not found: %s", s.ID)
	}
	return nil
}

// ListSessions returns the most recent sessions, newest first.
func (c *Catalog) ListSessions(ctx context.Context, limit int) ([]*Session, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, state, started_at, finished_at, discovered, processed, errored, bytes_processed
		 FROM sessions ORDER BY started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.ID, &s.State, &s.StartedAt, &s.FinishedAt,
			&s.Discovered, &s.Processed, &s.Errored, &s.BytesProcessed); err != nil {
			return nil, err
		}
		sessions = append(sessions, &s)
	}
	return sessions, rows.Err()
}

// RecordFileError attributes one per-file failure to a session.
func (c *Catalog) RecordFileError(ctx context.Context, fe *FileError) error {
	if fe.At.IsZero() {
		fe.At = time.Now()
	}
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO file_errors (session_id, path, stage, message, at)
		 VALUES (?, ?, ?, ?, ?)`,
		fe.SessionID, fe.Path, fe.Stage, fe.Message, fe.At,
	)
	return err
}

// ListFileErrors returns the errors recorded for a session, oldest first.
func (c *Catalog) ListFileErrors(ctx context.Context, sessionID string, limit int) ([]*FileError, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT session_id, path, stage, message, at
		 FROM file_errors WHERE session_id = ? ORDER BY at LIMIT ?`,
		sessionID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var errs []*FileError
	for rows.Next() {
		var fe FileError
		if err := rows.Scan(&fe.SessionID, &fe.Path, &fe.Stage, &fe.Message, &fe.At); err != nil {
			return nil, err
		}
		errs = append(errs, &fe)
	}
	return errs, rows.Err()
}

// Close closes the database connection.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// escapeLike escapes LIKE metacharacters in a literal prefix.
func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
