package services

import (
	"strings"

	"docsearch-platform/models"
)

// SectionDetector classifies headings of the normalized element stream
// into an ordered list of logical sections with character and page spans.
type SectionDetector struct{}

func NewSectionDetector() *SectionDetector {
	return &SectionDetector{}
}

// sectionVocabulary holds loose, case-insensitive substrings per section
// type. Matching is substring-based so "1. Introduction" and "서론" both
// land on introduction. Order matters: the first matching type wins, and
// references is checked before results so "References and Results" style
// oddities stay deterministic.
var sectionVocabulary = []struct {
	sectionType string
	keywords    []string
}{
	{models.SectionReferences, []string{"references", "bibliography", "works cited", "참고문헌", "참고 문헌", "literatur"}},
	{models.SectionAppendix, []string{"appendix", "annex", "supplementary", "부록"}},
	{models.SectionRelatedWork, []string{"related work", "related research", "prior work", "background", "관련 연구", "선행 연구"}},
	{models.SectionIntroduction, []string{"introduction", "overview", "서론", "개요", "들어가며"}},
	{models.SectionMethods, []string{"method", "methodology", "approach", "materials", "experimental setup", "방법", "연구 방법", "제안 기법"}},
	{models.SectionResults, []string{"result", "evaluation", "experiment", "findings", "결과", "실험"}},
	{models.SectionDiscussion, []string{"discussion", "analysis", "limitations", "논의", "고찰"}},
	{models.SectionConclusion, []string{"conclusion", "concluding remarks", "summary", "future work", "결론", "맺음말"}},
}

// ClassifyHeading maps a heading title onto the canonical section
// vocabulary; unmatched headings are "other".
func ClassifyHeading(title string) string {
	lower := strings.ToLower(title)
	for _, entry := range sectionVocabulary {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				return entry.sectionType
			}
		}
	}
	return models.SectionOther
}

// AssembleText builds the combined text over all text-bearing elements,
// recording each element's character span and page. Visual elements
// contribute their caption text so their position is locatable.
func AssembleText(elements []Element) AssembledText {
	var sb strings.Builder
	spans := make([]ElementSpan, 0, len(elements))

	for _, el := range elements {
		if el.Category == CategoryHeader || el.Category == CategoryFooter {
			continue
		}
		text := strings.TrimSpace(el.Text)
		if text == "" {
			continue
		}
		start := sb.Len()
		sb.WriteString(text)
		sb.WriteString("\n")
		spans = append(spans, ElementSpan{
			ElementID: el.ID,
			ObjectID:  el.ObjectID,
			Category:  el.Category,
			Page:      el.Page,
			Start:     start,
			End:       sb.Len(),
		})
	}

	return AssembledText{Text: sb.String(), Spans: spans}
}

// Detect walks heading elements in order and produces the ordered section
// list. The first title-category element is the document title, not a
// section heading. Consecutive headings of the same type stay separate;
// consumers order by Index, not type.
func (d *SectionDetector) Detect(elements []Element, assembled AssembledText, roleSignal bool) models.SectionSummary {
	summary := models.SectionSummary{RoleSignal: roleSignal}

	spanByElement := map[string]ElementSpan{}
	for _, sp := range assembled.Spans {
		spanByElement[sp.ElementID] = sp
	}

	titleSeen := false
	for _, el := range elements {
		if !el.IsHeadingLike() {
			continue
		}
		if el.Category == CategoryTitle && !titleSeen {
			titleSeen = true
			continue
		}
		sp, ok := spanByElement[el.ID]
		if !ok {
			continue
		}
		summary.Sections = append(summary.Sections, models.SectionInfo{
			Type:        ClassifyHeading(el.Text),
			Title:       strings.TrimSpace(el.Text),
			Index:       len(summary.Sections),
			StartOffset: sp.Start,
			StartPage:   el.Page,
		})
	}

	// A section ends where the next one starts; the last runs to end of text
	for i := range summary.Sections {
		if i+1 < len(summary.Sections) {
			summary.Sections[i].EndOffset = summary.Sections[i+1].StartOffset
		} else {
			summary.Sections[i].EndOffset = len(assembled.Text)
		}
	}

	// Infer missing start pages from the spans inside each section's range
	for i := range summary.Sections {
		if summary.Sections[i].StartPage > 0 {
			continue
		}
		pages := assembled.PagesInRange(summary.Sections[i].StartOffset, summary.Sections[i].EndOffset)
		minPage := 0
		for _, p := range pages {
			if minPage == 0 || p < minPage {
				minPage = p
			}
		}
		summary.Sections[i].StartPage = minPage
	}

	return summary
}
