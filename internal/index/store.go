// Package index owns the inverted index: schema, batched writes, commits,
// and read-only snapshot queries, built on Bleve.
package index

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/tansa-search/tansa/internal/fingerprint"
	"github.com/tansa-search/tansa/internal/models"
)

// ErrCorrupt marks an index directory that exists but cannot be opened.
// The store never repairs in place; the caller rebuilds from scratch.
var ErrCorrupt = errors.New("index corrupt")

// Store wraps a Bleve index over file documents. A single writer applies
// batches through Commit; readers query committed snapshots and never
// observe a half-applied batch.
type Store struct {
	path string

	mu           sync.RWMutex
	index        bleve.Index
	lastCommitAt time.Time
}

// buildMapping defines the document schema. Path, mime_type and fingerprint
// are keyword fields (single term, exact and prefix matching). Name and
// content use the standard analyzer (lowercase + tokenize, no stemming) so a
// query like "bayes" matches the exact word. Size is numeric, timestamps are
// datetimes. Fields are stored, so results render without re-reading files.
func buildMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()

	keywordFieldMapping := bleve.NewKeywordFieldMapping()
	docMapping.AddFieldMappingsAt("path", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("mime_type", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("fingerprint", keywordFieldMapping)

	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("name", textFieldMapping)
	docMapping.AddFieldMappingsAt("content", textFieldMapping)

	docMapping.AddFieldMappingsAt("size", bleve.NewNumericFieldMapping())
	docMapping.AddFieldMappingsAt("modified_at", bleve.NewDateTimeFieldMapping())
	docMapping.AddFieldMappingsAt("created_at", bleve.NewDateTimeFieldMapping())

	im.AddDocumentMapping("document", docMapping)
	im.DefaultType = "document"
	im.DefaultMapping = docMapping
	im.DefaultAnalyzer = standard.Name
	return im
}

// Open opens the index at path, creating it when the path does not exist.
// An existing directory that fails to open is reported as ErrCorrupt and
// left untouched.
func Open(path string) (*Store, error) {
	if _, err := os.Stat(path); err == nil {
		idx, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, openErr)
		}
		return &Store{path: path, index: idx}, nil
	}
	idx, err := bleve.New(path, buildMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create index: %w", err)
	}
	return &Store{path: path, index: idx}, nil
}

// Rebuild removes the on-disk index entirely and creates a fresh empty one.
// Used after Open reports ErrCorrupt; indexing never resumes over a decayed
// structure.
func Rebuild(path string) (*Store, error) {
	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("failed to remove corrupt index: %w", err)
	}
	return Open(path)
}

// Batch accumulates upserts and deletes that commit as one atomic unit.
type Batch struct {
	batch *bleve.Batch
	ops   int
}

// NewBatch returns an empty batch bound to this store.
func (s *Store) NewBatch() *Batch {
	return &Batch{batch: s.index.NewBatch()}
}

// Upsert schedules a document write. A document already indexed under the
// same path is replaced wholesale when the batch commits.
func (b *Batch) Upsert(doc *models.Document) error {
	if err := b.batch.Index(fingerprint.DocID(doc.Path), doc); err != nil {
		return fmt.Errorf("failed to stage document %s: %w", doc.Path, err)
	}
	b.ops++
	return nil
}

// Delete schedules removal of the document indexed under path.
func (b *Batch) Delete(path string) {
	b.batch.Delete(fingerprint.DocID(path))
	b.ops++
}

// Len reports the number of staged operations.
func (b *Batch) Len() int { return b.ops }

// Commit applies the batch atomically and publishes a new queryable
// snapshot. Concurrent readers keep seeing the previous snapshot until the
// commit completes. An empty or nil batch is a no-op.
func (s *Store) Commit(ctx context.Context, b *Batch) error {
	if b == nil || b.ops == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.index.Batch(b.batch); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	s.mu.Lock()
	s.lastCommitAt = time.Now()
	s.mu.Unlock()
	return nil
}

// DeleteByPathPrefix removes every document whose path starts with prefix,
// in atomic batches. Returns the number of documents removed. Used to purge
// an index root when it is de-authorized.
func (s *Store) DeleteByPathPrefix(ctx context.Context, prefix string) (int, error) {
	const pageSize = 500
	removed := 0
	for {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		q := bleve.NewPrefixQuery(prefix)
		q.SetField("path")
		req := bleve.NewSearchRequest(q)
		req.Size = pageSize
		res, err := s.index.Search(req)
		if err != nil {
			return removed, fmt.Errorf("failed to find documents under %s: %w", prefix, err)
		}
		if len(res.Hits) == 0 {
			return removed, nil
		}
		batch := s.index.NewBatch()
		for _, hit := range res.Hits {
			batch.Delete(hit.ID)
		}
		if err := s.index.Batch(batch); err != nil {
			return removed, fmt.Errorf("failed to delete documents under %s: %w", prefix, err)
		}
		removed += len(res.Hits)
		s.mu.Lock()
		s.lastCommitAt = time.Now()
		s.mu.Unlock()
	}
}

// Search runs req against the current committed snapshot.
func (s *Store) Search(ctx context.Context, req *bleve.SearchRequest) (*bleve.SearchResult, error) {
	res, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("index search failed: %w", err)
	}
	return res, nil
}

// DocCount returns the number of committed documents.
func (s *Store) DocCount() (uint64, error) {
	return s.index.DocCount()
}

// LastCommitAt returns the time of the most recent commit in this process,
// or the zero time if nothing has committed yet.
func (s *Store) LastCommitAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastCommitAt
}

// Path returns the on-disk location of the index.
func (s *Store) Path() string { return s.path }

// Close releases the underlying index.
func (s *Store) Close() error {
	return s.index.Close()
}
