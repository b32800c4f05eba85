// Package query parses search input into a structured query, executes it
// against the index store, and shapes ranked, paginated results with
// snippets.
package query

import (
	"fmt"
	"regexp"
	"strings"
)

// ParseError reports malformed query syntax. It is a distinct type so
// callers can tell a bad query apart from an empty result set.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid query %q: %s", e.Input, e.Reason)
}

// Parsed is the structured form of a query string: free-text terms plus
// compiled /regex/ sub-queries.
type Parsed struct {
	Terms   []string
	Regexes []*regexp.Regexp
}

// Empty reports whether the query carries no text constraint at all.
func (p *Parsed) Empty() bool {
	return len(p.Terms) == 0 && len(p.Regexes) == 0
}

// Parse splits a query string into free-text terms and /regex/ sub-queries.
// A regex runs from an opening '/' to the next unescaped '/'; everything
// else is whitespace-separated terms. A malformed or unterminated regex is
// a *ParseError, never silently degraded to plain text.
func Parse(input string) (*Parsed, error) {
	p := &Parsed{}
	rest := input
	for {
		start := strings.IndexByte(rest, '/')
		if start < 0 {
			p.Terms = append(p.Terms, strings.Fields(rest)...)
			break
		}
		p.Terms = append(p.Terms, strings.Fields(rest[:start])...)

		end := -1
		for i := start + 1; i < len(rest); i++ {
			if rest[i] == '/' && rest[i-1] != '\\' {
				end = i
				break
			}
		}
		if end < 0 {
			return nil, &ParseError{Input: input, Reason: "unterminated regex"}
		}
		pattern := rest[start+1 : end]
		if pattern == "" {
			return nil, &ParseError{Input: input, Reason: "empty regex"}
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, &ParseError{Input: input, Reason: err.Error()}
		}
		p.Regexes = append(p.Regexes, re)
		rest = rest[end+1:]
	}
	return p, nil
}
