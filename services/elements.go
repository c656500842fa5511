package services

import "docsearch-platform/models"

// Element categories produced by normalization. Whatever the provider
// called its structural units, downstream stages only see these.
const (
	CategoryTitle     = "title"
	CategoryHeading   = "heading"
	CategoryParagraph = "paragraph"
	CategoryList      = "list"
	CategoryHeader    = "header"
	CategoryFooter    = "footer"
	CategoryTable     = "table"
	CategoryFigure    = "figure"
	CategoryImage     = "image"
)

// Element is one typed unit of the normalized document stream, in reading
// order. ObjectID links text-bearing elements back to the ExtractedObject
// they came from.
type Element struct {
	ID       string
	Category string
	Text     string
	Page     int
	ObjectID string
}

// IsHeadingLike reports whether the element starts a new logical division.
func (e Element) IsHeadingLike() bool {
	return e.Category == CategoryTitle || e.Category == CategoryHeading
}

// ElementSpan maps an element to its character range in the assembled
// combined text, carrying the source page for page inference.
type ElementSpan struct {
	ElementID string
	ObjectID  string
	Category  string
	Page      int
	Start     int
	End       int
}

// AssembledText is the combined text of all text-bearing elements plus the
// per-element spans into it. Sections are located by offsets into Text.
type AssembledText struct {
	Text  string
	Spans []ElementSpan
}

// PagesInRange returns the pages of spans overlapping the half-open
// character range [start, end).
func (a AssembledText) PagesInRange(start, end int) []int {
	seen := map[int]bool{}
	pages := []int{}
	for _, sp := range a.Spans {
		if sp.Start < end && sp.End > start && sp.Page > 0 && !seen[sp.Page] {
			seen[sp.Page] = true
			pages = append(pages, sp.Page)
		}
	}
	return pages
}

// NormalizeResult is the Structural Normalizer's output: the ordered
// element stream plus the ExtractedObject records backing it. RoleSignal
// is true when the provider supplied per-element structural categories;
// heuristic fallbacks leave it false so later stages can relax.
type NormalizeResult struct {
	Provider   string
	Elements   []Element
	Objects    []models.ExtractedObject
	PageCount  int
	RoleSignal bool
}
