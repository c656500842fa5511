package services

import (
	"regexp"
	"strings"
	"unicode"

	"docsearch-platform/models"
)

// textNormalizer is the last-resort path: plain extracted text with no
// structural metadata. Headings are inferred line by line; everything
// else accumulates into paragraph buffers.
type textNormalizer struct{}

func (n *textNormalizer) Name() string { return "text" }

// Numbered ("2.", "3.1", "IV.") heading prefixes.
var headingPrefixRegex = regexp.MustCompile(`^(\d+(\.\d+)*\.?|[IVXLC]+\.)\s+\S`)

const (
	maxHeadingRunes = 80
	maxCapsRunes    = 60
)

func (n *textNormalizer) Normalize(payload *RawPayload) (*NormalizeResult, error) {
	result := &NormalizeResult{
		Provider:   payload.Provider,
		RoleSignal: false,
	}

	// Page-tagged text blocks when present, one untagged block otherwise
	type block struct {
		text string
		page int
	}
	var blocks []block
	maxPage := 0
	for _, page := range payload.Pages {
		if strings.TrimSpace(page.Text) != "" {
			blocks = append(blocks, block{text: page.Text, page: page.PageNumber})
			if page.PageNumber > maxPage {
				maxPage = page.PageNumber
			}
		}
	}
	if len(blocks) == 0 && strings.TrimSpace(payload.Text) != "" {
		blocks = append(blocks, block{text: payload.Text, page: 0})
	}

	for _, b := range blocks {
		n.normalizeBlock(result, b.text, b.page)
	}

	appendDetachedObjects(result, payload)

	if len(result.Elements) == 0 && len(result.Objects) == 0 {
		return nil, ErrEmptyExtraction
	}

	if len(payload.Pages) > maxPage {
		maxPage = len(payload.Pages)
	}
	result.PageCount = maxPage
	return result, nil
}

// normalizeBlock scans a text block line by line. A heading line flushes
// the current paragraph buffer; the buffer also flushes at end of block.
func (n *textNormalizer) normalizeBlock(result *NormalizeResult, text string, page int) {
	var paragraph []string
	seq := nextSequence(result, page)

	flush := func() {
		if len(paragraph) == 0 {
			return
		}
		body := strings.TrimSpace(strings.Join(paragraph, " "))
		paragraph = paragraph[:0]
		if body == "" {
			return
		}
		obj := newObject(models.ObjectTextBlock, page, seq, body)
		seq++
		result.Objects = append(result.Objects, obj)
		result.Elements = append(result.Elements, Element{
			ID: obj.ID, Category: CategoryParagraph, Text: body, Page: page, ObjectID: obj.ID,
		})
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			flush()
			continue
		}
		if isHeadingLine(line) {
			flush()
			obj := newObject(models.ObjectTextBlock, page, seq, line)
			seq++
			result.Objects = append(result.Objects, obj)
			result.Elements = append(result.Elements, Element{
				ID: obj.ID, Category: CategoryHeading, Text: line, Page: page, ObjectID: obj.ID,
			})
			continue
		}
		paragraph = append(paragraph, line)
	}
	flush()
}

// isHeadingLine applies the line-level heading heuristics: a numbered or
// roman-numeral prefix, a short line ending with a colon, or a short
// all-caps line.
func isHeadingLine(line string) bool {
	runes := []rune(line)

	if headingPrefixRegex.MatchString(line) && len(runes) <= maxHeadingRunes {
		return true
	}

	if strings.HasSuffix(line, ":") && len(runes) <= maxHeadingRunes {
		return true
	}

	if len(runes) <= maxCapsRunes && isAllCaps(line) {
		return true
	}

	return false
}

// isAllCaps reports whether a line contains letters and none lowercase.
func isAllCaps(line string) bool {
	hasLetter := false
	for _, r := range line {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsLetter(r) {
			hasLetter = true
		}
	}
	return hasLetter
}

func nextSequence(result *NormalizeResult, page int) int {
	next := 0
	for _, obj := range result.Objects {
		if obj.PageOrZero() == page && obj.Sequence >= next {
			next = obj.Sequence + 1
		}
	}
	return next
}
