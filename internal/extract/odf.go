package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"regexp"
	"strings"
)

// OpenDocument text elements with optional attributes. One set covers
// .odt (text documents), .odp (presentations), and .ods (spreadsheets):
// all three store body content as text:p/text:span/text:h in content.xml.
var odfTags = []*regexp.Regexp{
	regexp.MustCompile(`<text:p[^>]*>([^<]*)</text:p>`),
	regexp.MustCompile(`<text:span[^>]*>([^<]*)</text:span>`),
	regexp.MustCompile(`<text:h[^>]*>([^<]*)</text:h>`),
}

// extractODF extracts text from an OpenDocument package (.odt, .odp, .ods):
// a ZIP whose main body lives in content.xml.
func extractODF(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("extract ODF: not a zip: %w", err)
	}
	var contentXML []byte
	for _, f := range zr.File {
		if f.Name != "content.xml" {
			continue
		}
		contentXML, err = readZipFile(f)
		if err != nil {
			return "", fmt.Errorf("extract ODF: %s: %w", f.Name, err)
		}
		break
	}
	if contentXML == nil {
		return "", fmt.Errorf("extract ODF: content.xml not found")
	}
	s := string(contentXML)
	var b strings.Builder
	for _, tag := range odfTags {
		for _, p := range tag.FindAllStringSubmatch(s, -1) {
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
	return strings.TrimSpace(b.String()), nil
}
