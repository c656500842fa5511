package services

import (
	"strings"

	"docsearch-platform/models"
)

// roleNormalizer consumes providers that return per-page paragraphs tagged
// with layout roles, plus detached table/figure detections. Roles carry
// less structure than a native element stream but still mark titles and
// headings reliably.
type roleNormalizer struct{}

func (n *roleNormalizer) Name() string { return "roles" }

func (n *roleNormalizer) Normalize(payload *RawPayload) (*NormalizeResult, error) {
	result := &NormalizeResult{
		Provider:   payload.Provider,
		RoleSignal: true,
	}

	maxPage := len(payload.Pages)

	for _, page := range payload.Pages {
		if page.PageNumber > maxPage {
			maxPage = page.PageNumber
		}
		seq := 0
		for _, para := range page.Paragraphs {
			text := strings.TrimSpace(para.Content)
			if text == "" {
				continue
			}

			obj := newObject(models.ObjectTextBlock, page.PageNumber, seq, text)
			obj.Bounds = boundsFromCoords(para.BoundingBox)
			seq++

			result.Objects = append(result.Objects, obj)
			result.Elements = append(result.Elements, Element{
				ID:       obj.ID,
				Category: roleToCategory(para.Role),
				Text:     text,
				Page:     page.PageNumber,
				ObjectID: obj.ID,
			})
		}
	}

	appendDetachedObjects(result, payload)

	if len(result.Elements) == 0 && len(result.Objects) == 0 {
		return nil, ErrEmptyExtraction
	}

	result.PageCount = maxPage
	return result, nil
}

// roleToCategory maps layout roles onto element categories. Unrecognized
// roles are body text.
func roleToCategory(role string) string {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "title":
		return CategoryTitle
	case "sectionheading", "section_heading", "heading":
		return CategoryHeading
	case "pageheader", "page_header":
		return CategoryHeader
	case "pagefooter", "page_footer", "footnote", "pagenumber", "page_number":
		return CategoryFooter
	default:
		return CategoryParagraph
	}
}

// appendDetachedObjects folds the payload's standalone table and figure
// detections into the result, after the text stream of their pages.
func appendDetachedObjects(result *NormalizeResult, payload *RawPayload) {
	seqByPage := map[int]int{}
	for _, obj := range result.Objects {
		page := obj.PageOrZero()
		if obj.Sequence >= seqByPage[page] {
			seqByPage[page] = obj.Sequence + 1
		}
	}

	for _, table := range payload.Tables {
		seq := seqByPage[table.Page]
		seqByPage[table.Page] = seq + 1

		obj := newObject(models.ObjectTable, table.Page, seq, table.Caption)
		obj.Bounds = boundsFromCoords(table.BoundingBox)
		obj.Payload = models.ObjectPayload{CellGrid: table.Cells, Caption: table.Caption}
		result.Objects = append(result.Objects, obj)
		result.Elements = append(result.Elements, Element{
			ID: obj.ID, Category: CategoryTable, Text: table.Caption, Page: table.Page, ObjectID: obj.ID,
		})
	}

	for _, figure := range payload.Figures {
		seq := seqByPage[figure.Page]
		seqByPage[figure.Page] = seq + 1

		objType := models.ObjectFigure
		category := CategoryFigure
		if strings.EqualFold(figure.Kind, "image") {
			objType = models.ObjectImage
			category = CategoryImage
		}
		obj := newObject(objType, figure.Page, seq, figure.Caption)
		obj.Bounds = boundsFromCoords(figure.BoundingBox)
		obj.Payload = models.ObjectPayload{Base64: figure.Base64, Caption: figure.Caption}
		result.Objects = append(result.Objects, obj)
		result.Elements = append(result.Elements, Element{
			ID: obj.ID, Category: category, Text: figure.Caption, Page: figure.Page, ObjectID: obj.ID,
		})
	}
}
