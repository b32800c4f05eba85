// Package extract classifies files and produces indexable text from their
// content, bounded by size and time limits.
package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/tansa-search/tansa/internal/models"
	"go.uber.org/zap"
)

// Result is the outcome of one extraction. MetadataOnly is set for binaries
// with no known text-bearing structure and for oversized files; such files
// are still indexed by their metadata.
type Result struct {
	Text         string
	MIMEType     string
	MetadataOnly bool
	Truncated    bool
}

// Extractor turns candidate file entries into indexable text.
type Extractor struct {
	maxFileSize  int64
	maxTextBytes int
	timeout      time.Duration
	logger       *zap.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(e *Extractor) { e.logger = l }
}

// New creates an Extractor. maxFileSize caps which files are read at all,
// maxTextBytes truncates extracted text, timeout bounds one extraction.
func New(maxFileSize int64, maxTextBytes int, timeout time.Duration, opts ...Option) *Extractor {
	e := &Extractor{
		maxFileSize:  maxFileSize,
		maxTextBytes: maxTextBytes,
		timeout:      timeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract reads the entry's file and returns its indexable text. Oversized
// and unknown-binary files yield a metadata-only result, not an error. A
// stuck extraction is cut off after the configured timeout and reported as
// an error so the caller can record a skipped file.
func (e *Extractor) Extract(ctx context.Context, entry models.FileEntry) (Result, error) {
	if e.maxFileSize > 0 && entry.Size > e.maxFileSize {
		return Result{MIMEType: detectByExtension(entry.Path), MetadataOnly: true}, nil
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	type outcome struct {
		res Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := e.extract(entry)
		done <- outcome{res, err}
	}()

	select {
	case out := <-done:
		return out.res, out.err
	case <-ctx.Done():
		return Result{}, fmt.Errorf("extraction timed out: %w", ctx.Err())
	}
}

func (e *Extractor) extract(entry models.FileEntry) (Result, error) {
	content, err := os.ReadFile(entry.Path)
	if err != nil {
		return Result{}, fmt.Errorf("read file: %w", err)
	}

	mime := mimetype.Detect(content)
	res := Result{MIMEType: mime.String()}

	ext := strings.ToLower(filepath.Ext(entry.Path))
	var text string
	switch ext {
	case ".pdf":
		text, err = extractPDF(content)
	case ".docx":
		text, err = extractOOXML(content, wordKind)
	case ".pptx":
		text, err = extractOOXML(content, slideKind)
	case ".xlsx":
		text, err = extractExcel(content)
	case ".odt", ".odp", ".ods":
		text, err = extractODF(content)
	default:
		if isTextLike(mime, ext) {
			text, err = extractPlain(content)
		} else {
			res.MetadataOnly = true
			return res, nil
		}
	}
	if err != nil {
		return Result{}, err
	}
	if e.maxTextBytes > 0 && len(text) > e.maxTextBytes {
		// Back the cut up to a rune boundary so truncation never indexes a
		// split multi-byte sequence.
		cut := e.maxTextBytes
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
		res.Truncated = true
		if e.logger != nil {
			e.logger.Debug("extracted text truncated",
				zap.String("path", entry.Path), zap.Int("limit", e.maxTextBytes))
		}
	}
	res.Text = text
	return res, nil
}

// textLikeExts are extensions treated as plain text even when content
// sniffing is inconclusive (e.g. empty or very short files).
var textLikeExts = map[string]bool{
	".txt": true, ".md": true, ".rst": true, ".csv": true, ".log": true,
	".json": true, ".yaml": true, ".yml": true, ".toml": true, ".xml": true,
	".html": true, ".htm": true, ".rtf": true,
	".go": true, ".py": true, ".js": true, ".ts": true, ".rs": true,
	".c": true, ".h": true, ".cpp": true, ".java": true, ".rb": true,
	".sh": true, ".sql": true,
}

func isTextLike(mime *mimetype.MIME, ext string) bool {
	if strings.HasPrefix(mime.String(), "text/") {
		return true
	}
	return textLikeExts[ext]
}

// detectByExtension gives a best-effort MIME string without reading content,
// used for oversized files.
func detectByExtension(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return "application/pdf"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".txt", ".md", ".rst", ".log":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}
