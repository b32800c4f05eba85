package query

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/tansa-search/tansa/internal/config"
	"github.com/tansa-search/tansa/internal/index"
	"github.com/tansa-search/tansa/internal/models"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input   string
		terms   int
		regexes int
		wantErr bool
	}{
		{"plain words here", 3, 0, false},
		{"/foo.*bar/", 0, 1, false},
		{"report /v[0-9]+/ final", 2, 1, false},
		{"/a/ /b/", 0, 2, false},
		{"/unterminated", 0, 0, true},
		{"//", 0, 0, true},
		{"/([invalid/", 0, 0, true},
		{"", 0, 0, false},
	}
	for _, tt := range tests {
		got, err := Parse(tt.input)
		if tt.wantErr {
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Errorf("Parse(%q): expected *ParseError, got %v", tt.input, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("Parse(%q): %v", tt.input, err)
			continue
		}
		if len(got.Terms) != tt.terms || len(got.Regexes) != tt.regexes {
			t.Errorf("Parse(%q) = %d terms / %d regexes, want %d / %d",
				tt.input, len(got.Terms), len(got.Regexes), tt.terms, tt.regexes)
		}
	}
}

func seedStore(t *testing.T) *index.Store {
	t.Helper()
	s, err := index.Open(filepath.Join(t.TempDir(), "index.bleve"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })

	now := time.Now()
	docs := []*models.Document{
		{
			Path: "/data/report.txt", Name: "report.txt", Size: 100,
			ModifiedAt: now, MIMEType: "text/plain",
			Content: "quarterly revenue report\nversion v42 final",
		},
		{
			Path: "/data/notes.md", Name: "notes.md", Size: 5000,
			ModifiedAt: now.Add(-48 * time.Hour), MIMEType: "text/markdown",
			Content: "meeting notes about revenue projections",
		},
		{
			Path: "/data/image.png", Name: "image.png", Size: 900000,
			ModifiedAt: now.Add(-240 * time.Hour), MIMEType: "image/png",
		},
	}
	b := s.NewBatch()
	for _, d := range docs {
		if err := b.Upsert(d); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Commit(context.Background(), b); err != nil {
		t.Fatal(err)
	}
	return s
}

func newEngine(t *testing.T) *Engine {
	t.Helper()
	return New(seedStore(t), config.SearchConfig{SnippetMaxBytes: 40})
}

func TestSearchFreeText(t *testing.T) {
	e := newEngine(t)

	resp, err := e.Search(context.Background(), &models.SearchRequest{Query: "revenue"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Total != 2 {
		t.Fatalf("expected 2 hits, got %d", resp.Total)
	}
	for _, r := range resp.Results {
		if r.Path == "" || r.SizeFormatted == "" {
			t.Errorf("result missing metadata: %+v", r)
		}
	}

	// Multi-term queries require every term.
	resp, err = e.Search(context.Background(), &models.SearchRequest{Query: "revenue quarterly"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Total != 1 {
		t.Errorf("expected 1 hit for conjunction, got %d", resp.Total)
	}
}

func TestSearchRegex(t *testing.T) {
	e := newEngine(t)

	resp, err := e.Search(context.Background(), &models.SearchRequest{Query: "/v[0-9]+/"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Total != 1 {
		t.Fatalf("expected 1 regex hit, got %d", resp.Total)
	}
	if resp.Results[0].Path != "/data/report.txt" {
		t.Errorf("wrong document: %s", resp.Results[0].Path)
	}
}

func TestSearchMalformedRegexIsParseError(t *testing.T) {
	e := newEngine(t)

	_, err := e.Search(context.Background(), &models.SearchRequest{Query: "/([bad/"})
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ParseError, got %v", err)
	}
}

func TestSearchFilters(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	// MIME filter with free text.
	resp, err := e.Search(ctx, &models.SearchRequest{
		Query:   "revenue",
		Filters: models.Filters{MIMEType: "text/markdown"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Total != 1 || resp.Results[0].Path != "/data/notes.md" {
		t.Errorf("mime filter: %+v", resp.Results)
	}

	// Filters alone, no query text.
	resp, err = e.Search(ctx, &models.SearchRequest{
		Filters: models.Filters{MinSize: 100000},
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Total != 1 || resp.Results[0].Path != "/data/image.png" {
		t.Errorf("size filter: %+v", resp.Results)
	}

	// Date range.
	resp, err = e.Search(ctx, &models.SearchRequest{
		Query:   "revenue",
		Filters: models.Filters{ModifiedAfter: time.Now().Add(-time.Hour)},
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Total != 1 || resp.Results[0].Path != "/data/report.txt" {
		t.Errorf("date filter: %+v", resp.Results)
	}

	// Inverted size range is a request error.
	_, err = e.Search(ctx, &models.SearchRequest{
		Query:   "revenue",
		Filters: models.Filters{MinSize: 10, MaxSize: 5},
	})
	if err == nil {
		t.Error("expected error for inverted size range")
	}
}

func TestSearchEmptyQueryRejected(t *testing.T) {
	e := newEngine(t)
	_, err := e.Search(context.Background(), &models.SearchRequest{})
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ParseError for empty query, got %v", err)
	}
}

func TestSearchPaginationAndDeterminism(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	page1, err := e.Search(ctx, &models.SearchRequest{Query: "revenue", PerPage: 1, Page: 1})
	if err != nil {
		t.Fatal(err)
	}
	page2, err := e.Search(ctx, &models.SearchRequest{Query: "revenue", PerPage: 1, Page: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(page1.Results) != 1 || len(page2.Results) != 1 {
		t.Fatalf("pagination sizes: %d, %d", len(page1.Results), len(page2.Results))
	}
	if page1.Results[0].Path == page2.Results[0].Path {
		t.Error("pages overlap")
	}
	if page1.Total != 2 || page2.Total != 2 {
		t.Errorf("total should count all matches: %d, %d", page1.Total, page2.Total)
	}

	// Same query, same snapshot, same order.
	again, err := e.Search(ctx, &models.SearchRequest{Query: "revenue", PerPage: 1, Page: 1})
	if err != nil {
		t.Fatal(err)
	}
	if again.Results[0].Path != page1.Results[0].Path {
		t.Error("repeated query returned different order")
	}
}

func TestSnippetsCarryLineAndOffset(t *testing.T) {
	e := newEngine(t)

	resp, err := e.Search(context.Background(), &models.SearchRequest{Query: "v42"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Total != 1 || len(resp.Results[0].Snippets) == 0 {
		t.Fatalf("expected snippets, got %+v", resp.Results)
	}
	sn := resp.Results[0].Snippets[0]
	if sn.Line != 2 {
		t.Errorf("expected line 2, got %d", sn.Line)
	}
	if sn.Offset != 8 {
		t.Errorf("expected offset 8 in line, got %d", sn.Offset)
	}
	if sn.Fragment == "" {
		t.Error("empty fragment")
	}
}

func TestSnippetTruncationCentersMatch(t *testing.T) {
	e := New(seedStore(t), config.SearchConfig{SnippetMaxBytes: 20, SnippetsPerDoc: 1})
	long := "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaa needle bbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	parsed, err := Parse("needle")
	if err != nil {
		t.Fatal(err)
	}
	sns := e.snippets(long, parsed)
	if len(sns) != 1 {
		t.Fatalf("expected 1 snippet, got %d", len(sns))
	}
	if len(sns[0].Fragment) > 20 {
		t.Errorf("fragment exceeds budget: %q", sns[0].Fragment)
	}
	if sns[0].Line != 1 {
		t.Errorf("line = %d", sns[0].Line)
	}
}
