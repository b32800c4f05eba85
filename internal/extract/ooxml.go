package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// ooxmlKind selects which Office Open XML package layout to scrape.
type ooxmlKind int

const (
	wordKind  ooxmlKind = iota // .docx: word/document.xml, <w:t> nodes
	slideKind                  // .pptx: ppt/slides/slideN.xml, <a:t> nodes
)

var (
	// wtTag matches <w:t>text</w:t> with any attributes (e.g. xml:space).
	wtTag = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)
	// atTag matches <a:t>text</a:t> with any attributes.
	atTag = regexp.MustCompile(`<a:t[^>]*>([^<]*)</a:t>`)
)

// extractOOXML extracts text from a .docx or .pptx package. Both are ZIPs of
// XML parts; we scrape the text nodes directly so content is searchable
// regardless of paragraph/run attributes.
func extractOOXML(content []byte, kind ooxmlKind) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("extract OOXML: not a zip: %w", err)
	}

	var b strings.Builder
	appendMatches := func(parts [][]string) {
		for _, p := range parts {
			t := strings.TrimSpace(p[1])
			if t == "" {
				continue
			}
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(t)
		}
	}

	for _, f := range zr.File {
		var tag *regexp.Regexp
		switch kind {
		case wordKind:
			if f.Name != "word/document.xml" {
				continue
			}
			tag = wtTag
		case slideKind:
			if !strings.HasPrefix(f.Name, "ppt/slides/slide") || !strings.HasSuffix(f.Name, ".xml") {
				continue
			}
			tag = atTag
		}
		data, err := readZipFile(f)
		if err != nil {
			return "", fmt.Errorf("extract OOXML: %s: %w", f.Name, err)
		}
		appendMatches(tag.FindAllStringSubmatch(string(data), -1))
	}
	return strings.TrimSpace(b.String()), nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
