package query

import (
	"strings"
	"unicode/utf8"

	"github.com/tansa-search/tansa/internal/models"
)

// snippets locates up to snippetsPerDoc matches of the parsed query inside
// the stored content and returns one fragment per match with its line
// number and byte offset within that line.
func (e *Engine) snippets(content string, parsed *Parsed) []models.Snippet {
	var spans [][2]int

	lower := strings.ToLower(content)
	for _, term := range parsed.Terms {
		t := strings.ToLower(term)
		from := 0
		for len(spans) < e.snippetsPerDoc {
			i := strings.Index(lower[from:], t)
			if i < 0 {
				break
			}
			start := from + i
			spans = append(spans, [2]int{start, start + len(t)})
			from = start + len(t)
		}
	}
	for _, re := range parsed.Regexes {
		if len(spans) >= e.snippetsPerDoc {
			break
		}
		for _, m := range re.FindAllStringIndex(content, e.snippetsPerDoc-len(spans)) {
			spans = append(spans, [2]int{m[0], m[1]})
		}
	}
	if len(spans) > e.snippetsPerDoc {
		spans = spans[:e.snippetsPerDoc]
	}

	out := make([]models.Snippet, 0, len(spans))
	for _, span := range spans {
		out = append(out, e.snippetAt(content, span[0], span[1]))
	}
	return out
}

// snippetAt builds one snippet for the match at [start,end): the fragment is
// the containing line, truncated around the match when the line exceeds the
// configured byte budget.
func (e *Engine) snippetAt(content string, start, end int) models.Snippet {
	line := 1 + strings.Count(content[:start], "\n")
	lineStart := strings.LastIndexByte(content[:start], '\n') + 1
	lineEnd := len(content)
	if i := strings.IndexByte(content[start:], '\n'); i >= 0 {
		lineEnd = start + i
	}

	fragStart, fragEnd := lineStart, lineEnd
	if fragEnd-fragStart > e.snippetMaxBytes {
		// Center the window on the match.
		half := (e.snippetMaxBytes - (end - start)) / 2
		if half < 0 {
			half = 0
		}
		fragStart = start - half
		if fragStart < lineStart {
			fragStart = lineStart
		}
		fragEnd = fragStart + e.snippetMaxBytes
		if fragEnd > lineEnd {
			fragEnd = lineEnd
			fragStart = fragEnd - e.snippetMaxBytes
			if fragStart < lineStart {
				fragStart = lineStart
			}
		}
		fragStart = alignRuneStart(content, fragStart)
		fragEnd = alignRuneStart(content, fragEnd)
	}

	return models.Snippet{
		Line:     line,
		Offset:   start - lineStart,
		Fragment: strings.TrimSpace(content[fragStart:fragEnd]),
	}
}

// alignRuneStart moves i backward to the nearest UTF-8 rune boundary.
func alignRuneStart(s string, i int) int {
	for i > 0 && i < len(s) && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}
