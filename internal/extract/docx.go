package extract

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/nguyenthenguyen/docx"
)

// wtTag matches <w:t>text</w:t> or <w:t xml:space="preserve">text</w:t> (and any other attributes).
var wtTag = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)

// extractDOCX returns the document body as one section. Paragraphs (<w:p>) are separated
// by blank lines so the chunker can break on them; runs inside a paragraph are concatenated.
func extractDOCX(path string) ([]Section, error) {
	r, err := docx.ReadDocxFile(path)
	if err != nil {
		return nil, fmt.Errorf("extract DOCX: %w", err)
	}
	defer r.Close()

	body := r.Editable().GetContent()
	var paragraphs []string
	for _, p := range strings.Split(body, "</w:p>") {
		runs := wtTag.FindAllStringSubmatch(p, -1)
		if len(runs) == 0 {
			continue
		}
		var b strings.Builder
		for _, run := range runs {
			b.WriteString(html.UnescapeString(run[1]))
		}
		if text := strings.TrimSpace(b.String()); text != "" {
			paragraphs = append(paragraphs, text)
		}
	}
	if len(paragraphs) == 0 {
		return nil, nil
	}
	return []Section{{Index: 1, Text: strings.Join(paragraphs, "\n\n")}}, nil
}
