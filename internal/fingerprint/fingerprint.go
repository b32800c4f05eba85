// Package fingerprint provides change-detection signals for indexed files and
// a stable document ID derived from the canonical path.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/tansa-search/tansa/internal/models"
)

const idPrefix = "file:"

// DocID returns a stable document ID for the given absolute path.
// Same path always yields the same ID. Used for index/update/delete by path.
func DocID(absolutePath string) string {
	normalized := filepath.Clean(absolutePath)
	hash := sha256.Sum256([]byte(normalized))
	return idPrefix + hex.EncodeToString(hash[:])
}

// Policy computes a cheap change signal for a file. Two fingerprints are
// equal exactly when the policy considers the file unchanged, so swapping the
// policy never touches the pipeline.
type Policy interface {
	// Fingerprint derives the signal from the entry's metadata and, for
	// content-based policies, the file on disk.
	Fingerprint(entry models.FileEntry) (string, error)
	// Name identifies the policy in config and logs.
	Name() string
}

// MtimeSize fingerprints by modification time and size. Cheap (no read), but
// blind to touch-without-edit and content changes that preserve both fields.
type MtimeSize struct{}

func (MtimeSize) Name() string { return "mtime_size" }

func (MtimeSize) Fingerprint(entry models.FileEntry) (string, error) {
	return fmt.Sprintf("ms:%d:%d", entry.ModifiedAt.UnixNano(), entry.Size), nil
}

// ContentHash fingerprints by SHA-256 of the file content. Correct under
// clock skew, at the cost of a full read per check.
type ContentHash struct{}

func (ContentHash) Name() string { return "content_hash" }

func (ContentHash) Fingerprint(entry models.FileEntry) (string, error) {
	f, err := os.Open(entry.Path)
	if err != nil {
		return "", fmt.Errorf("open for hashing: %w", err)
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash content: %w", err)
	}
	return "sha256:" + hex.EncodeToString(h.Sum(nil)), nil
}

// ForName returns the policy registered under name, defaulting to MtimeSize
// for the empty string. Unknown names are an error so config typos surface
// at startup rather than as silent full re-indexes.
func ForName(name string) (Policy, error) {
	switch name {
	case "", "mtime_size":
		return MtimeSize{}, nil
	case "content_hash":
		return ContentHash{}, nil
	default:
		return nil, fmt.Errorf("unknown fingerprint policy %q", name)
	}
}
