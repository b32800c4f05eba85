// Package cli provides output formatting for the tansa command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/tansa-search/tansa/internal/models"
	"github.com/tansa-search/tansa/pkg/utils"
)

// OutputFormat selects how command results are rendered.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
	// OutputCompact is one result per line, for piping into other tools.
	OutputCompact OutputFormat = "compact"
)

// ParseOutputFormat validates a -output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch s {
	case "text", "":
		return OutputText, nil
	case "json":
		return OutputJSON, nil
	case "compact":
		return OutputCompact, nil
	}
	return "", fmt.Errorf("unknown output format %q; use text, compact, or json", s)
}

// WriteSearchResults writes one page of search results to w in the given format.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(response)
	case OutputCompact:
		for _, r := range response.Results {
			fmt.Fprintf(w, "%s\t%.4f\t%s\n", r.Path, r.Score, r.SizeFormatted)
		}
		return nil
	default:
		writeSearchResultsText(w, response)
		return nil
	}
}

func writeSearchResultsText(w io.Writer, response *models.SearchResponse) {
	fmt.Fprintf(w, "\nFound %d results in %dms (page %d, %d per page)\n\n",
		response.Total, response.QueryTimeMS, response.Page, response.PerPage)
	for i, r := range response.Results {
		rank := (response.Page-1)*response.PerPage + i + 1
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "Rank: %d | Score: %.4f\n", rank, r.Score)
		fmt.Fprintf(w, "%s (%s, %s, modified %s)\n", r.Path, r.MIMEType, r.SizeFormatted, r.ModifiedAt)
		for _, s := range r.Snippets {
			fmt.Fprintf(w, "  %d:%d  %s\n", s.Line, s.Offset, utils.Truncate(s.Fragment, 200))
		}
		fmt.Fprintln(w)
	}
}

// WriteProgress renders a progress snapshot.
func WriteProgress(w io.Writer, p *models.Progress, format OutputFormat) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	}
	fmt.Fprintf(w, "state:       %s\n", p.State)
	if p.SessionID != "" {
		fmt.Fprintf(w, "session:     %s\n", p.SessionID)
	}
	fmt.Fprintf(w, "discovered:  %d\n", p.Discovered)
	fmt.Fprintf(w, "processed:   %d\n", p.Processed)
	fmt.Fprintf(w, "errored:     %d\n", p.Errored)
	fmt.Fprintf(w, "bytes:       %s\n", utils.FormatSize(p.BytesProcessed))
	if p.FilesPerSec > 0 {
		fmt.Fprintf(w, "files/sec:   %.1f\n", p.FilesPerSec)
	}
	if p.CurrentFile != "" {
		fmt.Fprintf(w, "current:     %s\n", p.CurrentFile)
	}
	return nil
}

// WriteStats renders index statistics.
func WriteStats(w io.Writer, s *models.IndexStats, format OutputFormat) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	}
	fmt.Fprintf(w, "documents:    %d\n", s.TotalDocuments)
	fmt.Fprintf(w, "total_bytes:  %s\n", utils.FormatSize(s.TotalBytes))
	fmt.Fprintf(w, "disk_usage:   %s\n", utils.FormatSize(s.DiskUsageBytes))
	if !s.LastCommitAt.IsZero() {
		fmt.Fprintf(w, "last_commit:  %s\n", s.LastCommitAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

// BuildQuery joins positional args with spaces so multi-word queries work the
// same with or without shell quoting.
func BuildQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// ReorderArgs moves flags (and their values) that appear after positional
// arguments to the front so flag.Parse() sees them. The flag package stops at
// the first non-flag argument, so "tansa search query -page 2" would
// otherwise leave -page unparsed.
func ReorderArgs(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}
