package services

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"docsearch-platform/internal/config"

	"github.com/xuri/excelize/v2"
)

const sampleDocumentXML = `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p>
      <w:pPr><w:pStyle w:val="Heading1"/></w:pPr>
      <w:r><w:t>Introduction</w:t></w:r>
    </w:p>
    <w:p>
      <w:r><w:t>First part</w:t></w:r>
      <w:r><w:t xml:space="preserve"> and second part.</w:t></w:r>
    </w:p>
    <w:p>
      <w:r><w:t></w:t></w:r>
    </w:p>
  </w:body>
</w:document>`

func TestParseWordParagraphs(t *testing.T) {
	paragraphs := parseWordParagraphs([]byte(sampleDocumentXML))
	if len(paragraphs) != 2 {
		t.Fatalf("paragraphs = %d, want 2", len(paragraphs))
	}
	if paragraphs[0].text != "Introduction" || paragraphs[0].headingLevel != 1 {
		t.Errorf("first = %+v", paragraphs[0])
	}
	if paragraphs[1].text != "First part and second part." {
		t.Errorf("runs not joined: %q", paragraphs[1].text)
	}
	if paragraphs[1].headingLevel != 0 {
		t.Errorf("body paragraph has heading level %d", paragraphs[1].headingLevel)
	}
}

func TestHeadingLevelFromStyle(t *testing.T) {
	cases := []struct {
		style string
		want  int
	}{
		{"Heading1", 1},
		{"heading3", 3},
		{"Heading9", 9},
		{"Normal", 0},
		{"Heading10", 0},
		{"Title", 0},
	}
	for _, tc := range cases {
		if got := headingLevelFromStyle(tc.style); got != tc.want {
			t.Errorf("headingLevelFromStyle(%q) = %d, want %d", tc.style, got, tc.want)
		}
	}
}

func TestExtractSlideText(t *testing.T) {
	slide := `<?xml version="1.0"?>
<p:sld xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main"
       xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main">
  <p:cSld><p:spTree>
    <p:sp><p:txBody>
      <a:p><a:r><a:t>Slide Title</a:t></a:r></a:p>
      <a:p><a:r><a:t>Bullet one</a:t></a:r></a:p>
    </p:txBody></p:sp>
  </p:spTree></p:cSld>
</p:sld>`

	text := extractSlideText([]byte(slide))
	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %v", lines)
	}
	if lines[0] != "Slide Title" || lines[1] != "Bullet one" {
		t.Errorf("lines = %v", lines)
	}
}

func writeDOCX(t *testing.T, documentXML string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sample.docx")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte(documentXML)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExtractDOCX(t *testing.T) {
	path := writeDOCX(t, sampleDocumentXML)
	extractor := NewLocalExtractor(&config.Config{})

	payload, err := extractor.Extract(context.Background(), path,
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document")
	if err != nil {
		t.Fatal(err)
	}
	if payload.Provider != "local-docx" {
		t.Errorf("provider = %q", payload.Provider)
	}
	if len(payload.Elements) != 2 {
		t.Fatalf("elements = %d, want 2", len(payload.Elements))
	}
	if payload.Elements[0].Category != "heading" {
		t.Errorf("styled heading category = %q", payload.Elements[0].Category)
	}
	if payload.Elements[1].Category != "paragraph" {
		t.Errorf("body category = %q", payload.Elements[1].Category)
	}

	// Element payloads pick the role-signal normalizer
	if NewNormalizer(payload).Name() != "elements" {
		t.Error("docx payload should normalize through the element path")
	}
}

func TestExtractXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.xlsx")
	f := excelize.NewFile()
	if err := f.SetSheetRow("Sheet1", "A1", &[]interface{}{"metric", "value"}); err != nil {
		t.Fatal(err)
	}
	if err := f.SetSheetRow("Sheet1", "A2", &[]interface{}{"recall", "0.91"}); err != nil {
		t.Fatal(err)
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}
	f.Close()

	extractor := NewLocalExtractor(&config.Config{})
	payload, err := extractor.Extract(context.Background(), path,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err != nil {
		t.Fatal(err)
	}
	if len(payload.Tables) != 1 {
		t.Fatalf("tables = %d, want 1", len(payload.Tables))
	}
	table := payload.Tables[0]
	if table.Caption != "Sheet1" {
		t.Errorf("caption = %q", table.Caption)
	}
	if len(table.Cells) != 2 || table.Cells[1][0] != "recall" {
		t.Errorf("cells = %v", table.Cells)
	}
}

func TestExtractUnsupportedType(t *testing.T) {
	extractor := NewLocalExtractor(&config.Config{})
	if _, err := extractor.Extract(context.Background(), "file.bin", "application/octet-stream"); err == nil {
		t.Error("unsupported content type must fail")
	}
}
