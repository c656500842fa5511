package services

import (
	"strings"

	"docsearch-platform/models"
)

// elementNormalizer consumes providers that emit a flat element stream
// with a category per element. This is the richest input shape: every
// structural decision was already made by the provider's layout model.
type elementNormalizer struct{}

func (n *elementNormalizer) Name() string { return "elements" }

func (n *elementNormalizer) Normalize(payload *RawPayload) (*NormalizeResult, error) {
	result := &NormalizeResult{
		Provider:   payload.Provider,
		RoleSignal: true,
	}

	seqByPage := map[int]int{}
	maxPage := 0

	for _, raw := range payload.Elements {
		text := strings.TrimSpace(raw.Text)
		category := normalizeCategory(raw.Category)
		if text == "" && category != CategoryFigure && category != CategoryImage && category != CategoryTable {
			continue
		}
		if raw.Page > maxPage {
			maxPage = raw.Page
		}

		seq := seqByPage[raw.Page]
		seqByPage[raw.Page] = seq + 1

		switch category {
		case CategoryTable:
			obj := newObject(models.ObjectTable, raw.Page, seq, text)
			obj.Bounds = boundsFromCoords(raw.Coordinates)
			obj.Payload = models.ObjectPayload{CellGrid: raw.Cells, Caption: raw.Caption}
			result.Objects = append(result.Objects, obj)
			result.Elements = append(result.Elements, Element{
				ID: obj.ID, Category: CategoryTable, Text: text, Page: raw.Page, ObjectID: obj.ID,
			})

		case CategoryFigure, CategoryImage:
			objType := models.ObjectFigure
			if category == CategoryImage {
				objType = models.ObjectImage
			}
			obj := newObject(objType, raw.Page, seq, text)
			obj.Bounds = boundsFromCoords(raw.Coordinates)
			obj.Payload = models.ObjectPayload{Base64: raw.Base64, Caption: raw.Caption}
			result.Objects = append(result.Objects, obj)
			result.Elements = append(result.Elements, Element{
				ID: obj.ID, Category: category, Text: text, Page: raw.Page, ObjectID: obj.ID,
			})

		default:
			obj := newObject(models.ObjectTextBlock, raw.Page, seq, text)
			obj.Bounds = boundsFromCoords(raw.Coordinates)
			result.Objects = append(result.Objects, obj)
			result.Elements = append(result.Elements, Element{
				ID: obj.ID, Category: category, Text: text, Page: raw.Page, ObjectID: obj.ID,
			})
		}
	}

	if len(result.Elements) == 0 {
		return nil, ErrEmptyExtraction
	}

	result.PageCount = maxPage
	if len(payload.Pages) > result.PageCount {
		result.PageCount = len(payload.Pages)
	}
	return result, nil
}

// normalizeCategory folds provider category vocabularies onto ours.
func normalizeCategory(category string) string {
	switch strings.ToLower(strings.TrimSpace(category)) {
	case "title":
		return CategoryTitle
	case "heading", "heading1", "heading2", "heading3", "section_header", "sectionheading", "subheading":
		return CategoryHeading
	case "list", "list_item", "bullet":
		return CategoryList
	case "header", "page_header", "pageheader":
		return CategoryHeader
	case "footer", "page_footer", "pagefooter", "footnote":
		return CategoryFooter
	case "table":
		return CategoryTable
	case "figure", "chart", "equation":
		return CategoryFigure
	case "image", "photo", "picture":
		return CategoryImage
	default:
		return CategoryParagraph
	}
}
