package query

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/blevesearch/bleve/v2"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
	"go.uber.org/zap"

	"github.com/tansa-search/tansa/internal/config"
	"github.com/tansa-search/tansa/internal/index"
	"github.com/tansa-search/tansa/internal/models"
	"github.com/tansa-search/tansa/pkg/utils"
)

// Engine executes parsed queries against the committed index snapshot.
type Engine struct {
	store           *index.Store
	defaultPerPage  int
	maxPerPage      int
	snippetsPerDoc  int
	snippetMaxBytes int
	logger          *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets a logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates a query engine over the store.
func New(store *index.Store, cfg config.SearchConfig, opts ...Option) *Engine {
	e := &Engine{
		store:           store,
		defaultPerPage:  cfg.DefaultPerPage,
		maxPerPage:      cfg.MaxPerPage,
		snippetsPerDoc:  cfg.SnippetsPerDoc,
		snippetMaxBytes: cfg.SnippetMaxBytes,
	}
	if e.defaultPerPage <= 0 {
		e.defaultPerPage = 20
	}
	if e.maxPerPage <= 0 {
		e.maxPerPage = 100
	}
	if e.snippetsPerDoc <= 0 {
		e.snippetsPerDoc = 3
	}
	if e.snippetMaxBytes <= 0 {
		e.snippetMaxBytes = 160
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Search validates, parses, and runs one search request against the current
// snapshot. Results are ranked by relevance with recency as tie-break and
// path as the final deterministic order, so identical queries against an
// unchanged snapshot return identical pages.
func (e *Engine) Search(ctx context.Context, req *models.SearchRequest) (*models.SearchResponse, error) {
	began := time.Now()

	if req.PerPage <= 0 {
		req.PerPage = e.defaultPerPage
	}
	if err := req.Validate(); err != nil {
		return nil, &ParseError{Input: req.Query, Reason: err.Error()}
	}
	if req.PerPage > e.maxPerPage {
		req.PerPage = e.maxPerPage
	}

	parsed, err := Parse(req.Query)
	if err != nil {
		return nil, err
	}
	bq, err := buildQuery(parsed, req.Filters)
	if err != nil {
		return nil, err
	}

	from := (req.Page - 1) * req.PerPage
	search := bleve.NewSearchRequestOptions(bq, req.PerPage, from, false)
	search.Fields = []string{"path", "name", "size", "mime_type", "modified_at", "content"}
	search.SortBy([]string{"-_score", "-modified_at", "path"})

	res, err := e.store.Search(ctx, search)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	resp := &models.SearchResponse{
		Results:     make([]models.SearchResult, 0, len(res.Hits)),
		Total:       res.Total,
		Page:        req.Page,
		PerPage:     req.PerPage,
		Query:       req.Query,
		QueryTimeMS: time.Since(began).Milliseconds(),
	}
	for _, hit := range res.Hits {
		r := models.SearchResult{Score: hit.Score}
		if v, ok := hit.Fields["path"].(string); ok {
			r.Path = v
		}
		if v, ok := hit.Fields["name"].(string); ok {
			r.Name = v
		}
		if v, ok := hit.Fields["size"].(float64); ok {
			r.Size = int64(v)
		}
		if v, ok := hit.Fields["mime_type"].(string); ok {
			r.MIMEType = v
		}
		if v, ok := hit.Fields["modified_at"].(string); ok {
			r.ModifiedAt = v
		}
		r.SizeFormatted = utils.FormatSize(r.Size)
		if content, ok := hit.Fields["content"].(string); ok && content != "" {
			r.Snippets = e.snippets(content, parsed)
		}
		resp.Results = append(resp.Results, r)
	}

	if e.logger != nil {
		e.logger.Debug("search executed",
			zap.String("query", req.Query),
			zap.Uint64("total", resp.Total),
			zap.Int64("took_ms", resp.QueryTimeMS))
	}
	return resp, nil
}

// buildQuery assembles the bleve conjunction: every term must match name or
// content, every regex must match content, and every filter narrows the
// candidate set. A query with filters only matches everything the filters
// allow.
func buildQuery(parsed *Parsed, filters models.Filters) (blevequery.Query, error) {
	var parts []blevequery.Query

	for _, term := range parsed.Terms {
		content := bleve.NewMatchQuery(term)
		content.SetField("content")
		name := bleve.NewMatchQuery(term)
		name.SetField("name")
		parts = append(parts, bleve.NewDisjunctionQuery(content, name))
	}

	for _, re := range parsed.Regexes {
		// The standard analyzer lowercases indexed terms, so the pattern
		// must be lowercased to hit them.
		rq := bleve.NewRegexpQuery(strings.ToLower(re.String()))
		rq.SetField("content")
		parts = append(parts, rq)
	}

	if filters.MIMEType != "" {
		tq := bleve.NewTermQuery(filters.MIMEType)
		tq.SetField("mime_type")
		parts = append(parts, tq)
	}
	if filters.MinSize > 0 || filters.MaxSize > 0 {
		var min, max *float64
		if filters.MinSize > 0 {
			v := float64(filters.MinSize)
			min = &v
		}
		if filters.MaxSize > 0 {
			v := float64(filters.MaxSize)
			max = &v
		}
		nq := bleve.NewNumericRangeQuery(min, max)
		nq.SetField("size")
		parts = append(parts, nq)
	}
	if !filters.ModifiedAfter.IsZero() || !filters.ModifiedBefore.IsZero() {
		start := filters.ModifiedAfter
		end := filters.ModifiedBefore
		dq := bleve.NewDateRangeQuery(start, end)
		dq.SetField("modified_at")
		parts = append(parts, dq)
	}

	if len(parts) == 0 {
		return bleve.NewMatchAllQuery(), nil
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	return bleve.NewConjunctionQuery(parts...), nil
}
