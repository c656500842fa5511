package services

import (
	"strings"
	"testing"

	"docsearch-platform/models"
)

func TestClassifyHeading(t *testing.T) {
	cases := []struct {
		title string
		want  string
	}{
		{"1. Introduction", models.SectionIntroduction},
		{"2 Related Work", models.SectionRelatedWork},
		{"3. Methods", models.SectionMethods},
		{"4. Experimental Results", models.SectionResults},
		{"5. Discussion", models.SectionDiscussion},
		{"6. Conclusion", models.SectionConclusion},
		{"References", models.SectionReferences},
		{"Appendix A", models.SectionAppendix},
		{"참고문헌", models.SectionReferences},
		{"서론", models.SectionIntroduction},
		{"결론", models.SectionConclusion},
		{"Acknowledgements", models.SectionOther},
	}
	for _, tc := range cases {
		if got := ClassifyHeading(tc.title); got != tc.want {
			t.Errorf("ClassifyHeading(%q) = %q, want %q", tc.title, got, tc.want)
		}
	}
}

func TestClassifyHeadingReferencesWins(t *testing.T) {
	// References is checked before results, so a title that mentions both
	// classifies deterministically
	if got := ClassifyHeading("References and Experiment Notes"); got != models.SectionReferences {
		t.Errorf("got %q, want references", got)
	}
}

func sampleElements() []Element {
	return []Element{
		{ID: "e0", Category: CategoryTitle, Text: "Deep Document Indexing", Page: 1},
		{ID: "e1", Category: CategoryHeader, Text: "Proceedings of X", Page: 1},
		{ID: "e2", Category: CategoryHeading, Text: "1. Introduction", Page: 1},
		{ID: "e3", Category: CategoryParagraph, Text: "We study ingestion pipelines.", Page: 1},
		{ID: "e4", Category: CategoryHeading, Text: "2. Methods", Page: 3},
		{ID: "e5", Category: CategoryParagraph, Text: "Our method chunks documents.", Page: 3},
		{ID: "e6", Category: CategoryHeading, Text: "References", Page: 9},
		{ID: "e7", Category: CategoryParagraph, Text: "[1] Prior work.", Page: 9},
		{ID: "e8", Category: CategoryFooter, Text: "page 9", Page: 9},
	}
}

func TestAssembleText(t *testing.T) {
	assembled := AssembleText(sampleElements())

	if strings.Contains(assembled.Text, "Proceedings of X") {
		t.Error("header text leaked into assembled text")
	}
	if strings.Contains(assembled.Text, "page 9") {
		t.Error("footer text leaked into assembled text")
	}
	if len(assembled.Spans) != 7 {
		t.Fatalf("spans = %d, want 7", len(assembled.Spans))
	}

	// Spans are contiguous slices of the text
	for _, sp := range assembled.Spans {
		got := strings.TrimSpace(assembled.Text[sp.Start:sp.End])
		if got == "" {
			t.Errorf("span %s is empty", sp.ElementID)
		}
	}

	pages := assembled.PagesInRange(0, len(assembled.Text))
	if len(pages) != 3 {
		t.Errorf("pages in full range = %v", pages)
	}
}

func TestDetectSections(t *testing.T) {
	elements := sampleElements()
	assembled := AssembleText(elements)

	summary := NewSectionDetector().Detect(elements, assembled, true)
	if !summary.RoleSignal {
		t.Error("role signal not carried through")
	}
	if len(summary.Sections) != 3 {
		t.Fatalf("sections = %d, want 3", len(summary.Sections))
	}

	types := []string{models.SectionIntroduction, models.SectionMethods, models.SectionReferences}
	for i, sec := range summary.Sections {
		if sec.Type != types[i] {
			t.Errorf("section %d type = %q, want %q", i, sec.Type, types[i])
		}
		if sec.Index != i {
			t.Errorf("section %d index = %d", i, sec.Index)
		}
	}

	// Each section ends where the next begins; the last runs to end of text
	for i := 0; i+1 < len(summary.Sections); i++ {
		if summary.Sections[i].EndOffset != summary.Sections[i+1].StartOffset {
			t.Errorf("section %d end %d != next start %d", i, summary.Sections[i].EndOffset, summary.Sections[i+1].StartOffset)
		}
	}
	last := summary.Sections[len(summary.Sections)-1]
	if last.EndOffset != len(assembled.Text) {
		t.Errorf("last section end = %d, want %d", last.EndOffset, len(assembled.Text))
	}

	if summary.Sections[1].StartPage != 3 {
		t.Errorf("methods start page = %d, want 3", summary.Sections[1].StartPage)
	}
	if ref := summary.References(); ref == nil || ref.StartPage != 9 {
		t.Errorf("references = %+v", ref)
	}

	// Section content is addressable through the offsets
	intro := summary.Sections[0]
	slice := assembled.Text[intro.StartOffset:intro.EndOffset]
	if !strings.Contains(slice, "ingestion pipelines") {
		t.Errorf("introduction slice = %q", slice)
	}
}

func TestDetectSkipsDocumentTitle(t *testing.T) {
	elements := sampleElements()
	assembled := AssembleText(elements)
	summary := NewSectionDetector().Detect(elements, assembled, true)

	for _, sec := range summary.Sections {
		if sec.Title == "Deep Document Indexing" {
			t.Error("document title emitted as a section")
		}
	}
}

func TestDetectNoHeadings(t *testing.T) {
	elements := []Element{
		{ID: "p", Category: CategoryParagraph, Text: "only body text", Page: 1},
	}
	assembled := AssembleText(elements)
	summary := NewSectionDetector().Detect(elements, assembled, false)
	if len(summary.Sections) != 0 {
		t.Errorf("sections = %v, want none", summary.Sections)
	}
}
