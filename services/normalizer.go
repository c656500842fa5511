package services

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"docsearch-platform/models"
	"docsearch-platform/utils"
)

// RawPayload is the decoded output of an external document-AI provider, in
// whichever of the three shapes providers produce: a flat element list with
// categories, per-page paragraphs with layout roles, or plain extracted
// text. Which fields are populated decides the normalizer implementation.
type RawPayload struct {
	Provider string       `json:"provider,omitempty"`
	Elements []RawElement `json:"elements,omitempty"`
	Pages    []RawPage    `json:"pages,omitempty"`
	Tables   []RawTable   `json:"tables,omitempty"`
	Figures  []RawFigure  `json:"figures,omitempty"`
	Text     string       `json:"text,omitempty"`
}

// RawElement is one entry of a category-tagged element stream.
type RawElement struct {
	ID          int        `json:"id"`
	Category    string     `json:"category"`
	Text        string     `json:"text"`
	Page        int        `json:"page"`
	Coordinates []float64  `json:"coordinates,omitempty"` // x0,y0,x1,y1
	Base64      string     `json:"base64_encoding,omitempty"`
	Caption     string     `json:"caption,omitempty"`
	Cells       [][]string `json:"cells,omitempty"`
}

// RawPage carries per-page paragraphs tagged with layout roles, and
// optionally a base64 raster of the rendered page.
type RawPage struct {
	PageNumber int            `json:"page_number"`
	Width      float64        `json:"width,omitempty"`
	Height     float64        `json:"height,omitempty"`
	Text       string         `json:"text,omitempty"`
	Paragraphs []RawParagraph `json:"paragraphs,omitempty"`
}

// RawParagraph is one role-tagged span of page text.
type RawParagraph struct {
	Role        string    `json:"role,omitempty"`
	Content     string    `json:"content"`
	BoundingBox []float64 `json:"bounding_box,omitempty"` // x0,y0,x1,y1
}

// RawTable is a detached table detection with an optional cell grid.
type RawTable struct {
	Page        int        `json:"page"`
	Cells       [][]string `json:"cells,omitempty"`
	BoundingBox []float64  `json:"bounding_box,omitempty"`
	Caption     string     `json:"caption,omitempty"`
}

// RawFigure is a detached figure/image detection.
type RawFigure struct {
	Page        int       `json:"page"`
	BoundingBox []float64 `json:"bounding_box,omitempty"`
	Caption     string    `json:"caption,omitempty"`
	Base64      string    `json:"base64_encoding,omitempty"`
	Kind        string    `json:"kind,omitempty"` // "image" or "figure"
}

// Normalizer turns one provider payload shape into the uniform element
// stream and object list.
type Normalizer interface {
	Name() string
	Normalize(payload *RawPayload) (*NormalizeResult, error)
}

// ErrEmptyExtraction is the pipeline-fatal condition: the provider
// returned nothing usable and no text block is synthesized in its place.
var ErrEmptyExtraction = fmt.Errorf("extraction failed: provider output is empty")

// NewNormalizer selects the richest signal available in the payload:
// native category-tagged elements first, then role-tagged paragraphs,
// then plain-text heading heuristics.
func NewNormalizer(payload *RawPayload) Normalizer {
	if len(payload.Elements) > 0 {
		return &elementNormalizer{}
	}
	for _, page := range payload.Pages {
		for _, p := range page.Paragraphs {
			if p.Role != "" {
				return &roleNormalizer{}
			}
		}
	}
	return &textNormalizer{}
}

// ParsePayload decodes raw provider JSON; non-JSON input is treated as
// plain extracted text.
func ParsePayload(data []byte) *RawPayload {
	var payload RawPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return &RawPayload{Text: string(data)}
	}
	if len(payload.Elements) == 0 && len(payload.Pages) == 0 &&
		len(payload.Tables) == 0 && len(payload.Figures) == 0 && payload.Text == "" {
		// JSON, but not a shape we know; keep raw text if it was non-empty
		trimmed := strings.TrimSpace(string(data))
		if trimmed != "" && trimmed != "{}" && trimmed != "null" {
			return &RawPayload{Text: string(data)}
		}
	}
	return &payload
}

func boundsFromCoords(coords []float64) *models.BoundingBox {
	if len(coords) < 4 {
		return nil
	}
	return &models.BoundingBox{X0: coords[0], Y0: coords[1], X1: coords[2], Y1: coords[3]}
}

func newObject(objectType string, page int, seq int, text string) models.ExtractedObject {
	p := page
	obj := models.ExtractedObject{
		ID:          uuid.NewString(),
		ObjectType:  objectType,
		Sequence:    seq,
		Text:        text,
		ContentHash: utils.HashContent(text),
	}
	if page > 0 {
		obj.Page = &p
	}
	return obj
}

// categoryForObjectType maps visual object types onto element categories.
func categoryForObjectType(objectType string) string {
	switch objectType {
	case models.ObjectTable:
		return CategoryTable
	case models.ObjectFigure:
		return CategoryFigure
	case models.ObjectImage:
		return CategoryImage
	}
	return CategoryParagraph
}
