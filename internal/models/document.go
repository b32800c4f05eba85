// Package models defines core data structures for documents, file entries,
// change events, queries, and progress reporting.
package models

import "time"

// Document is the indexed representation of one file: stored metadata plus
// extracted text. Identity key is the canonical absolute path.
type Document struct {
	Path         string    `json:"path"`
	Name         string    `json:"name"`
	Size         int64     `json:"size"`
	CreatedAt    time.Time `json:"created_at"`
	ModifiedAt   time.Time `json:"modified_at"`
	MIMEType     string    `json:"mime_type"`
	Content      string    `json:"content,omitempty"`
	Fingerprint  string    `json:"fingerprint"`
	MetadataOnly bool      `json:"metadata_only"`
}

// FileEntry is one candidate produced by the traversal scanner: path and
// stat metadata, no content.
type FileEntry struct {
	Path       string
	Name       string
	Size       int64
	ModifiedAt time.Time
	CreatedAt  time.Time
}

// IndexStats summarizes the committed index. TotalBytes counts source file
// sizes; DiskUsageBytes counts what the index and catalog occupy on disk.
type IndexStats struct {
	TotalDocuments int64     `json:"total_documents"`
	TotalBytes     int64     `json:"total_bytes"`
	DiskUsageBytes int64     `json:"disk_usage_bytes"`
	LastCommitAt   time.Time `json:"last_commit_at"`
}
