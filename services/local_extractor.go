package services

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"docsearch-platform/internal/config"
	"docsearch-platform/internal/logger"

	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"
)

// LocalExtractor produces a provider-shaped payload without any external
// service: poppler or the pure-Go reader for PDF, OOXML parsing for DOCX
// and PPTX, excelize for XLSX. Quality is below a real document-AI
// provider, but ingestion still works when none is configured.
type LocalExtractor struct {
	popplerEnabled bool
}

func NewLocalExtractor(cfg *config.Config) *LocalExtractor {
	return &LocalExtractor{popplerEnabled: cfg.PopplerEnabled}
}

// Extract dispatches on content type, falling back to extension sniffing.
func (e *LocalExtractor) Extract(ctx context.Context, filePath, contentType string) (*RawPayload, error) {
	lower := strings.ToLower(filePath)
	switch {
	case strings.Contains(contentType, "pdf") || strings.HasSuffix(lower, ".pdf"):
		return e.extractPDF(ctx, filePath)
	case strings.Contains(contentType, "wordprocessingml") || strings.HasSuffix(lower, ".docx"):
		return e.extractDOCX(filePath)
	case strings.Contains(contentType, "presentationml") || strings.HasSuffix(lower, ".pptx"):
		return e.extractPPTX(filePath)
	case strings.Contains(contentType, "spreadsheetml") || strings.HasSuffix(lower, ".xlsx"):
		return e.extractXLSX(filePath)
	}
	return nil, fmt.Errorf("unsupported content type for local extraction: %s", contentType)
}

// extractPDF tries pdftotext first, then the pure-Go reader. Both paths
// return page-tagged plain text, so normalization runs its heading
// heuristics with no role signal.
func (e *LocalExtractor) extractPDF(ctx context.Context, filePath string) (*RawPayload, error) {
	if e.popplerEnabled && hasBinaryInPath("pdftotext") {
		payload, err := e.extractPDFWithPoppler(ctx, filePath)
		if err == nil {
			return payload, nil
		}
		logger.Warn("pdftotext extraction failed, trying pure-Go reader", "error", err)
	}
	return e.extractPDFWithGoPDF(filePath)
}

func (e *LocalExtractor) extractPDFWithPoppler(ctx context.Context, filePath string) (*RawPayload, error) {
	execCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	cmd := exec.CommandContext(execCtx, "pdftotext", "-layout", filePath, "-")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("pdftotext: %v: %s", err, stderr.String())
	}

	text := stdout.String()
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("pdftotext produced no text")
	}

	// pdftotext separates pages with form feeds
	payload := &RawPayload{Provider: "local-poppler"}
	for i, pageText := range strings.Split(text, "\f") {
		if strings.TrimSpace(pageText) == "" {
			continue
		}
		payload.Pages = append(payload.Pages, RawPage{PageNumber: i + 1, Text: pageText})
	}
	return payload, nil
}

func (e *LocalExtractor) extractPDFWithGoPDF(filePath string) (*RawPayload, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	payload := &RawPayload{Provider: "local-gopdf"}
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		fonts := make(map[string]*pdf.Font)
		text, err := page.GetPlainText(fonts)
		if err != nil {
			logger.Warn("pdf page text extraction failed", "page", i, "error", err)
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		payload.Pages = append(payload.Pages, RawPage{PageNumber: i, Text: text})
	}

	if len(payload.Pages) == 0 {
		return nil, fmt.Errorf("no text extracted from pdf")
	}
	return payload, nil
}

// extractXLSX turns every sheet into one table detection with the sheet's
// cell grid.
func (e *LocalExtractor) extractXLSX(filePath string) (*RawPayload, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	payload := &RawPayload{Provider: "local-excelize"}
	for i, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			logger.Warn("xlsx sheet read failed", "sheet", sheet, "error", err)
			continue
		}
		if len(rows) == 0 {
			continue
		}
		payload.Tables = append(payload.Tables, RawTable{
			Page:    i + 1,
			Cells:   rows,
			Caption: sheet,
		})
	}

	if len(payload.Tables) == 0 {
		return nil, fmt.Errorf("no sheets with content in xlsx")
	}
	return payload, nil
}

const wordprocessingMLNamespace = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

// extractDOCX parses word/document.xml. Word heading styles carry real
// structural signal, so the payload uses category-tagged elements.
func (e *LocalExtractor) extractDOCX(filePath string) (*RawPayload, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read docx: %w", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open docx archive: %w", err)
	}

	docXML, err := readArchiveFile(zr, "word/document.xml")
	if err != nil {
		return nil, err
	}

	payload := &RawPayload{Provider: "local-docx"}
	id := 0
	for _, p := range parseWordParagraphs(docXML) {
		if p.text == "" {
			continue
		}
		category := "paragraph"
		if p.headingLevel > 0 {
			category = "heading"
		}
		payload.Elements = append(payload.Elements, RawElement{
			ID:       id,
			Category: category,
			Text:     p.text,
		})
		id++
	}

	if len(payload.Elements) == 0 {
		return nil, fmt.Errorf("no text in docx body")
	}
	return payload, nil
}

// extractPPTX reads each slide's text runs into one page of plain text.
func (e *LocalExtractor) extractPPTX(filePath string) (*RawPayload, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read pptx: %w", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open pptx archive: %w", err)
	}

	var slides []string
	for _, f := range zr.File {
		if strings.HasPrefix(f.Name, "ppt/slides/slide") && strings.HasSuffix(f.Name, ".xml") {
			slides = append(slides, f.Name)
		}
	}
	sort.Strings(slides)

	payload := &RawPayload{Provider: "local-pptx"}
	for i, name := range slides {
		data, err := readArchiveFile(zr, name)
		if err != nil {
			continue
		}
		text := extractSlideText(data)
		if strings.TrimSpace(text) == "" {
			continue
		}
		payload.Pages = append(payload.Pages, RawPage{PageNumber: i + 1, Text: text})
	}

	if len(payload.Pages) == 0 {
		return nil, fmt.Errorf("no text in pptx slides")
	}
	return payload, nil
}

func readArchiveFile(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name == name {
			rc, err := f.Open()
			if err != nil {
				return nil, fmt.Errorf("open %s: %w", name, err)
			}
			defer rc.Close()
			return io.ReadAll(rc)
		}
	}
	return nil, fmt.Errorf("%s not found in archive", name)
}

type wordParagraph struct {
	text         string
	headingLevel int
}

// parseWordParagraphs walks document.xml tokens, collecting run text per
// paragraph and the heading level from pStyle when present.
func parseWordParagraphs(data []byte) []wordParagraph {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	var paragraphs []wordParagraph

	var inParagraph, inRun bool
	var current strings.Builder
	var level int

	for {
		tok, err := decoder.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				if t.Name.Space == wordprocessingMLNamespace || t.Name.Space == "" {
					inParagraph = true
					current.Reset()
					level = 0
				}
			case "r":
				if inParagraph {
					inRun = true
				}
			case "pStyle":
				if inParagraph {
					for _, attr := range t.Attr {
						if attr.Name.Local == "val" {
							level = headingLevelFromStyle(attr.Value)
						}
					}
				}
			case "tab":
				if inRun {
					current.WriteString("\t")
				}
			case "br":
				if inRun {
					current.WriteString("\n")
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "p":
				if inParagraph {
					text := strings.TrimSpace(current.String())
					if text != "" {
						paragraphs = append(paragraphs, wordParagraph{text: text, headingLevel: level})
					}
					inParagraph = false
				}
			case "r":
				inRun = false
			}
		case xml.CharData:
			if inRun {
				current.Write(t)
			}
		}
	}
	return paragraphs
}

// headingLevelFromStyle maps "Heading1".."Heading9" to 1..9, 0 otherwise.
func headingLevelFromStyle(styleVal string) int {
	lower := strings.ToLower(styleVal)
	if !strings.HasPrefix(lower, "heading") {
		return 0
	}
	rest := strings.TrimSpace(strings.TrimPrefix(lower, "heading"))
	if len(rest) == 1 && rest[0] >= '1' && rest[0] <= '9' {
		return int(rest[0] - '0')
	}
	return 0
}

// extractSlideText pulls DrawingML a:t run contents, one line per run.
func extractSlideText(data []byte) string {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	var sb strings.Builder
	inText := false

	for {
		tok, err := decoder.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			if t.Name.Local == "t" {
				inText = false
				sb.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
	return sb.String()
}
