package extract

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestExtractBytes_plain(t *testing.T) {
	e := NewExtractor()
	got, err := e.ExtractBytes([]byte("Hello world\nLine 2"), ".txt")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if len(got) != 1 || got[0].Index != 1 || got[0].Text != "Hello world\nLine 2" {
		t.Errorf("got %+v", got)
	}
}

func TestExtractBytes_plainInvalidUTF8(t *testing.T) {
	e := NewExtractor()
	got, err := e.ExtractBytes([]byte("hello\x80world"), ".md")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if got[0].Text != "hello�world" {
		t.Errorf("got %q", got[0].Text)
	}
}

func TestExtractBytes_excelSheetPerSection(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	f.SetCellValue("Sheet1", "A1", "Food")
	f.SetCellValue("Sheet1", "B1", "GI")
	f.SetCellValue("Sheet1", "A2", "Ragi")
	f.SetCellValue("Sheet1", "B2", "54")
	if _, err := f.NewSheet("Empty"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.NewSheet("Sodium"); err != nil {
		t.Fatal(err)
	}
	f.SetCellValue("Sodium", "A1", "Pickle: high")
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	got, err := NewExtractor().ExtractBytes(buf.Bytes(), ".xlsx")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("sections = %d, want 2 (empty sheet skipped): %+v", len(got), got)
	}
	if got[0].Text != "Food\tGI\nRagi\t54" || got[0].Index != 1 {
		t.Errorf("first section = %+v", got[0])
	}
	if got[1].Text != "Pickle: high" || got[1].Index != 3 {
		t.Errorf("second section = %+v", got[1])
	}
}

func TestExtractBytes_unsupported(t *testing.T) {
	if _, err := NewExtractor().ExtractBytes([]byte("x"), ".pptx"); err == nil {
		t.Error("expected error for unsupported extension")
	}
}

func TestExtractBytes_invalidPDF(t *testing.T) {
	if _, err := NewExtractor().ExtractBytes([]byte("not a pdf"), ".pdf"); err == nil {
		t.Error("expected error for corrupt PDF")
	}
}

func TestExtract_plainFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "general_diet.txt")
	if err := os.WriteFile(path, []byte("Eat more millets."), 0600); err != nil {
		t.Fatal(err)
	}
	got, err := NewExtractor().Extract(path)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(got) != 1 || got[0].Text != "Eat more millets." {
		t.Errorf("got %+v", got)
	}
}

func TestExtract_nonexistent(t *testing.T) {
	if _, err := NewExtractor().Extract("/nonexistent/path/file.txt"); err == nil {
		t.Error("expected error for nonexistent file")
	}
}

// writeDocx writes a minimal .docx at path with one <w:p> per paragraph.
func writeDocx(t *testing.T, path string, paragraphs ...string) {
	t.Helper()
	var body string
	for _, p := range paragraphs {
		body += `<w:p w:rsidR="00A1"><w:r><w:t xml:space="preserve">` + p + `</w:t></w:r></w:p>`
	}
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, _ := w.Create("word/document.xml")
	_, _ = fw.Write([]byte(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` + body + `</w:body></w:document>`))
	rels, _ := w.Create("word/_rels/document.xml.rels")
	_, _ = rels.Write([]byte(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?><Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`))
	_ = w.Close()
	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		t.Fatal(err)
	}
}

func TestExtract_docxParagraphs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pcos_diet.docx")
	writeDocx(t, path, "Prefer low GI grains.", "Limit sugar &amp; refined flour.")
	got, err := NewExtractor().Extract(path)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	want := "Prefer low GI grains.\n\nLimit sugar & refined flour."
	if len(got) != 1 || got[0].Text != want {
		t.Errorf("got %+v, want %q", got, want)
	}
}

func TestSupported(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"a.pdf", true},
		{"A.PDF", true},
		{"notes.md", true},
		{"x.docx", true},
		{"sheet.xlsx", true},
		{"image.png", false},
		{"noext", false},
	}
	for _, tt := range tests {
		if got := Supported(tt.path); got != tt.want {
			t.Errorf("Supported(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
