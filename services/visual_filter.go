package services

import (
	"math"

	"docsearch-platform/internal/config"
	"docsearch-platform/models"
)

// FilterReport records what the visual filter decided for one document.
type FilterReport struct {
	AllowedPages  []int          `json:"allowed_pages"`
	RemovedCounts map[string]int `json:"removed_counts"`
	Widened       bool           `json:"widened"`
}

// VisualObjectFilter drops decorative visual objects from trailing pages.
// Figures in the references or appendix tail of a paper are citations
// thumbnails and logos far more often than content, so only visuals on
// core pages survive. Text blocks always pass untouched.
type VisualObjectFilter struct {
	fallbackRatio float64
	minCorePages  int
}

func NewVisualObjectFilter(cfg *config.Config) *VisualObjectFilter {
	return &VisualObjectFilter{
		fallbackRatio: cfg.ReferenceFallbackRatio,
		minCorePages:  cfg.MinCorePages,
	}
}

// boundaryPage returns the first page considered non-core, or 0 when no
// boundary can be established. A detected references section anchors the
// boundary; without one, documents longer than two pages fall back to a
// fixed ratio of the page count.
func (f *VisualObjectFilter) boundaryPage(summary models.SectionSummary, assembled AssembledText, pageCount int) int {
	if ref := summary.References(); ref != nil {
		if ref.StartPage > 0 {
			return ref.StartPage
		}
		minPage := 0
		for _, p := range assembled.PagesInRange(ref.StartOffset, ref.EndOffset) {
			if minPage == 0 || p < minPage {
				minPage = p
			}
		}
		if minPage > 0 {
			return minPage
		}
	}
	if pageCount > 2 {
		return int(math.Ceil(float64(pageCount)*f.fallbackRatio)) + 1
	}
	return 0
}

// Filter returns the objects that survive, plus a report. Filtering is
// idempotent: running the output back through produces the same set.
func (f *VisualObjectFilter) Filter(objects []models.ExtractedObject, summary models.SectionSummary, assembled AssembledText, pageCount int) ([]models.ExtractedObject, FilterReport) {
	report := FilterReport{RemovedCounts: map[string]int{}}

	boundary := f.boundaryPage(summary, assembled, pageCount)
	if boundary <= 0 {
		// Nothing to anchor on: keep everything
		for p := 1; p <= pageCount; p++ {
			report.AllowedPages = append(report.AllowedPages, p)
		}
		return objects, report
	}

	allowed := map[int]bool{}
	for p := 1; p < boundary && p <= pageCount; p++ {
		allowed[p] = true
	}

	// A near-empty core with no provider role signal means the boundary is
	// probably a misread heading. Widen to everything but the cover and
	// last page rather than dropping most of the document's visuals.
	if len(allowed) < f.minCorePages && !summary.RoleSignal && pageCount > 2 {
		report.Widened = true
		allowed = map[int]bool{}
		for p := 2; p < pageCount; p++ {
			allowed[p] = true
		}
	}

	for p := 1; p <= pageCount; p++ {
		if allowed[p] {
			report.AllowedPages = append(report.AllowedPages, p)
		}
	}

	kept := make([]models.ExtractedObject, 0, len(objects))
	for _, obj := range objects {
		if !obj.IsVisual() || obj.PageOrZero() == 0 || allowed[obj.PageOrZero()] {
			kept = append(kept, obj)
			continue
		}
		report.RemovedCounts[obj.ObjectType]++
	}
	return kept, report
}
