package e2e

import (
	"archive/zip"
	"bytes"
	"html"
	"strings"

	"github.com/xuri/excelize/v2"
)

// SupportedFileExtensions are the formats guideline files are written in. PDF is covered
// by the extract package tests; a minimal PDF with extractable text is not generated here.
var SupportedFileExtensions = []string{".txt", ".md", ".docx", ".xlsx"}

// EncodeGuideline returns the bytes of a file of the given extension holding paragraphs.
func EncodeGuideline(ext string, paragraphs []string) ([]byte, error) {
	switch ext {
	case ".docx":
		return minimalDocx(paragraphs), nil
	case ".xlsx":
		return minimalXlsx(paragraphs)
	default:
		return []byte(strings.Join(paragraphs, "\n\n")), nil
	}
}

func minimalDocx(paragraphs []string) []byte {
	var body strings.Builder
	for _, p := range paragraphs {
		body.WriteString(`<w:p><w:r><w:t xml:space="preserve">` + html.EscapeString(p) + `</w:t></w:r></w:p>`)
	}
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, _ := w.Create("word/document.xml")
	_, _ = fw.Write([]byte(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` + body.String() + `</w:body></w:document>`))
	rels, _ := w.Create("word/_rels/document.xml.rels")
	_, _ = rels.Write([]byte(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?><Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`))
	_ = w.Close()
	return buf.Bytes()
}

// minimalXlsx writes one paragraph per row of the first sheet.
func minimalXlsx(paragraphs []string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	for i, p := range paragraphs {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue("Sheet1", cell, p); err != nil {
			return nil, err
		}
	}
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
