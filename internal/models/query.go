package models

import (
	"fmt"
	"time"
)

// Filters narrows a search to documents matching structured criteria.
// Zero values mean "no constraint".
type Filters struct {
	MIMEType       string    `json:"mime_type,omitempty"`
	MinSize        int64     `json:"min_size,omitempty"`
	MaxSize        int64     `json:"max_size,omitempty"`
	ModifiedAfter  time.Time `json:"modified_after,omitempty"`
	ModifiedBefore time.Time `json:"modified_before,omitempty"`
}

// SearchRequest is a search invocation: a query string combining free-text
// terms and /regex/ sub-queries, structured filters, and a page selector.
type SearchRequest struct {
	Query   string  `json:"query"`
	Filters Filters `json:"filters,omitempty"`
	Page    int     `json:"page,omitempty"`
	PerPage int     `json:"per_page,omitempty"`
}

// Validate normalizes paging and rejects empty queries when no filter is set.
func (r *SearchRequest) Validate() error {
	if r.Query == "" && r.Filters == (Filters{}) {
		return fmt.Errorf("query cannot be empty")
	}
	if r.Page < 1 {
		r.Page = 1
	}
	if r.PerPage <= 0 {
		r.PerPage = 20
	}
	if r.PerPage > 100 {
		r.PerPage = 100
	}
	if r.Filters.MinSize > 0 && r.Filters.MaxSize > 0 && r.Filters.MinSize > r.Filters.MaxSize {
		return fmt.Errorf("min_size %d exceeds max_size %d", r.Filters.MinSize, r.Filters.MaxSize)
	}
	return nil
}
