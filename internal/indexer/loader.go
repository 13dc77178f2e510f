package indexer

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/hyperjump/nutriguide/internal/category"
	"github.com/hyperjump/nutriguide/internal/extract"
	"github.com/hyperjump/nutriguide/internal/models"
)

// ErrNoText is returned for files that contain no extractable text (e.g. scanned PDFs).
var ErrNoText = errors.New("no extractable text")

// Loader reads guideline files from a flat directory into document units.
type Loader struct {
	extractor *extract.Extractor
}

// NewLoader returns a loader using extractor; nil uses a default extractor.
func NewLoader(extractor *extract.Extractor) *Loader {
	if extractor == nil {
		extractor = extract.NewExtractor()
	}
	return &Loader{extractor: extractor}
}

// Files lists files with a recognized extension directly inside dir, sorted by name.
// A missing directory yields no files and no error.
func (l *Loader) Files(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read guideline directory: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !extract.Supported(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// LoadFile extracts the units of one file in page order, each stamped with the file name
// and its category. Blank pages are dropped.
func (l *Loader) LoadFile(path string) ([]models.DocumentUnit, error) {
	sections, err := l.extractor.Extract(path)
	if err != nil {
		return nil, err
	}
	name := filepath.Base(path)
	cat := category.Categorize(name)
	units := make([]models.DocumentUnit, 0, len(sections))
	for _, s := range sections {
		text := Preprocess(s.Text)
		if text == "" {
			continue
		}
		units = append(units, models.DocumentUnit{Text: text, Source: name, Category: cat, Page: s.Index})
	}
	if len(units) == 0 {
		return nil, ErrNoText
	}
	return units, nil
}

// Load reads every recognized file in dir. Files that fail are reported in the returned
// FileError list and skipped.
func (l *Loader) Load(dir string) ([]models.DocumentUnit, []models.FileError, error) {
	files, err := l.Files(dir)
	if err != nil {
		return nil, nil, err
	}
	var (
		units    []models.DocumentUnit
		failures []models.FileError
	)
	for _, f := range files {
		u, err := l.LoadFile(f)
		if err != nil {
			failures = append(failures, models.FileError{Source: filepath.Base(f), Err: err.Error()})
			continue
		}
		units = append(units, u...)
	}
	return units, failures, nil
}
