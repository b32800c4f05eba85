package models

// Snippet is one highlighted fragment of a matching document, with the line
// number and byte offset of the match inside the stored content.
type Snippet struct {
	Line     int    `json:"line"`
	Offset   int    `json:"offset"`
	Fragment string `json:"fragment"`
}

// SearchResult is a single ranked hit.
type SearchResult struct {
	Path          string    `json:"path"`
	Name          string    `json:"name"`
	Size          int64     `json:"size"`
	SizeFormatted string    `json:"size_formatted"`
	MIMEType      string    `json:"mime_type"`
	ModifiedAt    string    `json:"modified_at"`
	Score         float64   `json:"score"`
	Snippets      []Snippet `json:"snippets,omitempty"`
}

// SearchResponse is one page of ranked results. Total counts all matches,
// not just the returned page.
type SearchResponse struct {
	Results     []SearchResult `json:"results"`
	Total       uint64         `json:"total"`
	Page        int            `json:"page"`
	PerPage     int            `json:"per_page"`
	QueryTimeMS int64          `json:"query_time_ms"`
	Query       string         `json:"query"`
}
