// Package extract provides per-page and per-section text extraction from guideline documents.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Section is one page or logical section of a document, in original order.
type Section struct {
	// Index is 1-based (PDF page number, sheet position, or 1 for single-section files).
	Index int
	Text  string
}

// SupportedExtensions are the file extensions the extractor recognizes.
var SupportedExtensions = []string{".pdf", ".txt", ".md", ".docx", ".xlsx"}

// Supported reports whether path has a recognized extension.
func Supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range SupportedExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

// Extractor extracts text sections from document files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract reads the file at path and returns its sections.
// Returns an error if the file cannot be read or the format is unsupported.
func (e *Extractor) Extract(path string) ([]Section, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".docx" {
		// the docx reader opens the archive itself
		return extractDOCX(path)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return e.ExtractBytes(content, ext)
}

// ExtractBytes extracts sections from content based on the given extension.
// ext should include the leading dot (e.g. ".pdf").
func (e *Extractor) ExtractBytes(content []byte, ext string) ([]Section, error) {
	switch ext {
	case ".pdf":
		return extractPDF(content)
	case ".xlsx":
		return extractExcel(content)
	case ".txt", ".md":
		return extractPlain(content)
	default:
		return nil, fmt.Errorf("unsupported format %q", ext)
	}
}
