package extract

import (
	"strings"
	"unicode/utf8"
)

// extractPlain returns content as a single section, validating it is UTF-8.
// Invalid UTF-8 sequences are replaced with the replacement character.
func extractPlain(content []byte) ([]Section, error) {
	if !utf8.Valid(content) {
		content = []byte(strings.ToValidUTF8(string(content), "\ufffd"))
	}
	return []Section{{Index: 1, Text: string(content)}}, nil
}
