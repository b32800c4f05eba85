package benchmark

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tansa-search/tansa/internal/config"
	"github.com/tansa-search/tansa/internal/fingerprint"
	"github.com/tansa-search/tansa/internal/index"
	"github.com/tansa-search/tansa/internal/models"
	"github.com/tansa-search/tansa/internal/query"
)

func seedIndex(b *testing.B, n int) *index.Store {
	b.Helper()
	store, err := index.Open(filepath.Join(b.TempDir(), "index.bleve"))
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { store.Close() })

	batch := store.NewBatch()
	now := time.Now()
	for i := 0; i < n; i++ {
		doc := &models.Document{
			Path:       fmt.Sprintf("/bench/docs/file-%04d.txt", i),
			Name:       fmt.Sprintf("file-%04d.txt", i),
			Size:       int64(100 + i),
			ModifiedAt: now.Add(-time.Duration(i) * time.Minute),
			MIMEType:   "text/plain",
			Content:    fmt.Sprintf("benchmark document %d covering topic%d and shared corpus terms", i, i%50),
		}
		if err := batch.Upsert(doc); err != nil {
			b.Fatal(err)
		}
	}
	if err := store.Commit(context.Background(), batch); err != nil {
		b.Fatal(err)
	}
	return store
}

func benchConfig() config.SearchConfig {
	return config.SearchConfig{DefaultPerPage: 20, MaxPerPage: 100, SnippetsPerDoc: 3, SnippetMaxBytes: 160}
}

func BenchmarkSearchTerm(b *testing.B) {
	engine := query.New(seedIndex(b, 1000), benchConfig())
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.Search(ctx, &models.SearchRequest{Query: "benchmark topic7"}); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkSearchRegex(b *testing.B) {
	engine := query.New(seedIndex(b, 1000), benchConfig())
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.Search(ctx, &models.SearchRequest{Query: "/topic[0-9]+/"}); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkBatchCommit(b *testing.B) {
	store, err := index.Open(filepath.Join(b.TempDir(), "index.bleve"))
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { store.Close() })
	ctx := context.Background()
	now := time.Now()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		batch := store.NewBatch()
		for j := 0; j < 100; j++ {
			doc := &models.Document{
				Path:       fmt.Sprintf("/bench/commit/file-%d-%d.txt", i, j),
				Name:       fmt.Sprintf("file-%d-%d.txt", i, j),
				Size:       256,
				ModifiedAt: now,
				MIMEType:   "text/plain",
				Content:    "commit benchmark body text",
			}
			if err := batch.Upsert(doc); err != nil {
				b.Fatal(err)
			}
		}
		if err := store.Commit(ctx, batch); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkFingerprintContentHash(b *testing.B) {
	path := filepath.Join(b.TempDir(), "f.txt")
	if err := os.WriteFile(path, []byte("fingerprint benchmark body"), 0644); err != nil {
		b.Fatal(err)
	}
	info, err := os.Stat(path)
	if err != nil {
		b.Fatal(err)
	}
	entry := models.FileEntry{Path: path, Name: "f.txt", Size: info.Size(), ModifiedAt: info.ModTime()}
	policy := fingerprint.ContentHash{}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := policy.Fingerprint(entry); err != nil {
			b.Fatal(err)
		}
	}
}
