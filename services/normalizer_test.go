package services

import (
	"strings"
	"testing"

	"docsearch-platform/models"
)

func TestParsePayloadPlainText(t *testing.T) {
	payload := ParsePayload([]byte("Just some extracted text.\nSecond line."))
	if payload.Text == "" {
		t.Fatal("expected non-JSON input to become a text payload")
	}
	if !strings.Contains(payload.Text, "Second line") {
		t.Errorf("text payload lost content: %q", payload.Text)
	}
}

func TestParsePayloadElements(t *testing.T) {
	raw := `{"provider":"upstage","elements":[{"id":0,"category":"heading1","text":"1. Introduction","page":1}]}`
	payload := ParsePayload([]byte(raw))
	if len(payload.Elements) != 1 {
		t.Fatalf("expected 1 element, got %d", len(payload.Elements))
	}
	if payload.Provider != "upstage" {
		t.Errorf("provider = %q", payload.Provider)
	}
}

func TestNewNormalizerSelection(t *testing.T) {
	cases := []struct {
		name    string
		payload *RawPayload
		want    string
	}{
		{
			name:    "elements win",
			payload: &RawPayload{Elements: []RawElement{{Category: "paragraph", Text: "x", Page: 1}}},
			want:    "elements",
		},
		{
			name: "roles when any paragraph tagged",
			payload: &RawPayload{Pages: []RawPage{
				{PageNumber: 1, Paragraphs: []RawParagraph{{Role: "title", Content: "Paper"}}},
			}},
			want: "roles",
		},
		{
			name:    "text fallback",
			payload: &RawPayload{Text: "plain"},
			want:    "text",
		},
		{
			name: "untagged paragraphs fall back to text",
			payload: &RawPayload{Pages: []RawPage{
				{PageNumber: 1, Paragraphs: []RawParagraph{{Content: "untagged"}}},
			}},
			want: "text",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NewNormalizer(tc.payload).Name(); got != tc.want {
				t.Errorf("NewNormalizer picked %q, want %q", got, tc.want)
			}
		})
	}
}

func TestElementNormalizer(t *testing.T) {
	payload := &RawPayload{
		Provider: "upstage",
		Elements: []RawElement{
			{ID: 0, Category: "title", Text: "A Study of Things", Page: 1},
			{ID: 1, Category: "heading1", Text: "1. Introduction", Page: 1},
			{ID: 2, Category: "paragraph", Text: "Opening paragraph.", Page: 1},
			{ID: 3, Category: "table", Text: "Table 1", Page: 2, Cells: [][]string{{"a", "b"}, {"1", "2"}}},
			{ID: 4, Category: "figure", Text: "Figure 1. Architecture", Page: 3, Base64: "aGk=", Coordinates: []float64{0.1, 0.1, 0.9, 0.5}},
			{ID: 5, Category: "footnote", Text: "ignored downstream but still normalized", Page: 3},
		},
	}

	result, err := (&elementNormalizer{}).Normalize(payload)
	if err != nil {
		t.Fatal(err)
	}
	if !result.RoleSignal {
		t.Error("element payloads carry role signal")
	}
	if result.PageCount != 3 {
		t.Errorf("page count = %d, want 3", result.PageCount)
	}
	if len(result.Elements) != 6 || len(result.Objects) != 6 {
		t.Fatalf("got %d elements / %d objects, want 6 / 6", len(result.Elements), len(result.Objects))
	}

	if result.Elements[0].Category != CategoryTitle {
		t.Errorf("first element category = %q", result.Elements[0].Category)
	}
	if result.Elements[1].Category != CategoryHeading {
		t.Errorf("heading1 normalized to %q", result.Elements[1].Category)
	}
	if result.Elements[5].Category != CategoryFooter {
		t.Errorf("footnote normalized to %q", result.Elements[5].Category)
	}

	table := result.Objects[3]
	if table.ObjectType != models.ObjectTable {
		t.Errorf("table object type = %q", table.ObjectType)
	}
	if len(table.Payload.CellGrid) != 2 {
		t.Errorf("table cell grid lost: %v", table.Payload.CellGrid)
	}

	figure := result.Objects[4]
	if figure.ObjectType != models.ObjectFigure {
		t.Errorf("figure object type = %q", figure.ObjectType)
	}
	if figure.Payload.Base64 != "aGk=" {
		t.Error("figure base64 payload lost")
	}
	if figure.Bounds == nil || figure.Bounds.X1 != 0.9 {
		t.Errorf("figure bounds = %+v", figure.Bounds)
	}

	// Elements link back to their objects
	for i, el := range result.Elements {
		if el.ObjectID != result.Objects[i].ID {
			t.Errorf("element %d not linked to its object", i)
		}
	}
}

func TestElementNormalizerEmpty(t *testing.T) {
	_, err := (&elementNormalizer{}).Normalize(&RawPayload{
		Elements: []RawElement{{Category: "paragraph", Text: "   ", Page: 1}},
	})
	if err == nil {
		t.Fatal("expected empty extraction error")
	}
}

func TestTextNormalizerHeadings(t *testing.T) {
	text := "1. Introduction\n" +
		"This paper studies document pipelines. It spans\n" +
		"two physical lines of one paragraph.\n" +
		"\n" +
		"RELATED WORK\n" +
		"Earlier systems exist.\n"

	result, err := (&textNormalizer{}).Normalize(&RawPayload{
		Pages: []RawPage{{PageNumber: 1, Text: text}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.RoleSignal {
		t.Error("plain text must not claim role signal")
	}

	var headings, paragraphs []string
	for _, el := range result.Elements {
		switch el.Category {
		case CategoryHeading:
			headings = append(headings, el.Text)
		case CategoryParagraph:
			paragraphs = append(paragraphs, el.Text)
		}
	}

	if len(headings) != 2 {
		t.Fatalf("headings = %v, want 2", headings)
	}
	if headings[0] != "1. Introduction" || headings[1] != "RELATED WORK" {
		t.Errorf("headings = %v", headings)
	}
	if len(paragraphs) != 2 {
		t.Fatalf("paragraphs = %v, want 2", paragraphs)
	}
	if !strings.Contains(paragraphs[0], "two physical lines") {
		t.Errorf("wrapped lines not merged: %q", paragraphs[0])
	}
}

func TestTextNormalizerPageTagging(t *testing.T) {
	result, err := (&textNormalizer{}).Normalize(&RawPayload{
		Pages: []RawPage{
			{PageNumber: 1, Text: "First page body."},
			{PageNumber: 2, Text: "Second page body."},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.PageCount != 2 {
		t.Errorf("page count = %d", result.PageCount)
	}
	if result.Elements[0].Page != 1 || result.Elements[1].Page != 2 {
		t.Errorf("pages = %d, %d", result.Elements[0].Page, result.Elements[1].Page)
	}
}

func TestIsHeadingLine(t *testing.T) {
	cases := []struct {
		line string
		want bool
	}{
		{"2.1 Evaluation Setup", true},
		{"IV. Results", true},
		{"Materials used:", true},
		{"CONCLUSION", true},
		{"A regular sentence that keeps going for a while and is clearly body text.", false},
		{"3,000 participants took part", false},
	}
	for _, tc := range cases {
		if got := isHeadingLine(tc.line); got != tc.want {
			t.Errorf("isHeadingLine(%q) = %v, want %v", tc.line, got, tc.want)
		}
	}
}
