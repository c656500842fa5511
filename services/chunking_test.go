package services

import (
	"fmt"
	"strings"
	"testing"

	"docsearch-platform/internal/config"
	"docsearch-platform/models"
	"docsearch-platform/utils"
)

func testChunkConfig() *config.Config {
	return &config.Config{
		MinChunkTokens:     80,
		TargetChunkTokens:  280,
		MaxChunkTokens:     420,
		ChunkOverlapTokens: 40,
	}
}

func wordRun(n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(words, " ")
}

func TestFixedWindowChunks(t *testing.T) {
	// 1000 tokens through a 420-token window with 40 overlap: windows
	// start at 0, 380, 760, so exactly three chunks
	page := 1
	objects := []models.ExtractedObject{
		{ID: "o1", ObjectType: models.ObjectTextBlock, Page: &page, Text: wordRun(1000)},
	}

	chunker := NewChunker(testChunkConfig())
	strategy, chunks := chunker.Chunk(ChunkInput{Objects: objects})

	if strategy != models.StrategyFixedWindow {
		t.Errorf("strategy = %q", strategy)
	}
	if len(chunks) != 3 {
		t.Fatalf("chunks = %d, want 3", len(chunks))
	}
	if chunks[0].TokenCount != 420 || chunks[1].TokenCount != 420 || chunks[2].TokenCount != 240 {
		t.Errorf("token counts = %d, %d, %d", chunks[0].TokenCount, chunks[1].TokenCount, chunks[2].TokenCount)
	}

	// Consecutive chunks overlap by exactly 40 tokens
	for i := 0; i+1 < len(chunks); i++ {
		a := utils.Tokenize(chunks[i].Text)
		b := utils.Tokenize(chunks[i+1].Text)
		tail := a[len(a)-40:]
		head := b[:40]
		for j := range tail {
			if tail[j] != head[j] {
				t.Fatalf("chunk %d/%d overlap mismatch at token %d: %s != %s", i, i+1, j, tail[j], head[j])
			}
		}
	}

	for i, c := range chunks {
		if c.ChunkIndex != i {
			t.Errorf("chunk %d has index %d", i, c.ChunkIndex)
		}
		if c.ID == "" {
			t.Errorf("chunk %d has no id", i)
		}
		if c.PageStart != 1 || c.PageEnd != 2 {
			t.Errorf("chunk %d pages = [%d, %d)", i, c.PageStart, c.PageEnd)
		}
	}
}

func TestStructureChunks(t *testing.T) {
	elements := []Element{
		{ID: "h1", Category: CategoryHeading, Text: "2. Methods", Page: 2},
		{ID: "p1", Category: CategoryParagraph, Text: wordRun(100), Page: 2},
		{ID: "h2", Category: CategoryHeading, Text: "2.1 Setup", Page: 3},
		{ID: "p2", Category: CategoryParagraph, Text: wordRun(120), Page: 3},
	}
	chunker := NewChunker(testChunkConfig())
	strategy, chunks := chunker.Chunk(ChunkInput{
		Elements: elements,
		Sections: models.SectionSummary{RoleSignal: true},
	})

	if strategy != models.StrategyStructure {
		t.Fatalf("strategy = %q", strategy)
	}
	if len(chunks) != 2 {
		t.Fatalf("chunks = %d, want 2", len(chunks))
	}
	if chunks[0].SectionPath != "2" {
		t.Errorf("first path = %q", chunks[0].SectionPath)
	}
	if chunks[1].SectionPath != "2 > 2.1" {
		t.Errorf("second path = %q", chunks[1].SectionPath)
	}
	if chunks[1].PageStart != 3 || chunks[1].PageEnd != 4 {
		t.Errorf("second chunk pages = [%d, %d)", chunks[1].PageStart, chunks[1].PageEnd)
	}
}

func TestStructureChunksMergeForward(t *testing.T) {
	// The first group is below min_tokens, so it merges into the next
	elements := []Element{
		{ID: "h1", Category: CategoryHeading, Text: "1. Introduction", Page: 1},
		{ID: "p1", Category: CategoryParagraph, Text: wordRun(10), Page: 1},
		{ID: "h2", Category: CategoryHeading, Text: "2. Methods", Page: 2},
		{ID: "p2", Category: CategoryParagraph, Text: wordRun(200), Page: 2},
	}
	chunker := NewChunker(testChunkConfig())
	_, chunks := chunker.Chunk(ChunkInput{
		Elements: elements,
		Sections: models.SectionSummary{RoleSignal: true},
	})

	if len(chunks) != 1 {
		t.Fatalf("chunks = %d, want 1 merged chunk", len(chunks))
	}
	if !strings.Contains(chunks[0].Text, "Introduction") || !strings.Contains(chunks[0].Text, "Methods") {
		t.Error("merged chunk lost one of its groups")
	}
	if chunks[0].PageStart != 1 || chunks[0].PageEnd != 3 {
		t.Errorf("merged pages = [%d, %d)", chunks[0].PageStart, chunks[0].PageEnd)
	}
}

func TestSectionChunks(t *testing.T) {
	intro := wordRun(100)
	methods := wordRun(150)
	text := intro + "\n" + methods + "\n"

	assembled := AssembledText{
		Text: text,
		Spans: []ElementSpan{
			{ElementID: "e1", ObjectID: "o1", Page: 1, Start: 0, End: len(intro) + 1},
			{ElementID: "e2", ObjectID: "o2", Page: 2, Start: len(intro) + 1, End: len(text)},
		},
	}
	summary := models.SectionSummary{
		Sections: []models.SectionInfo{
			{Type: models.SectionIntroduction, Index: 0, StartOffset: 0, EndOffset: len(intro) + 1},
			{Type: models.SectionMethods, Index: 1, StartOffset: len(intro) + 1, EndOffset: len(text)},
		},
	}

	chunker := NewChunker(testChunkConfig())
	strategy, chunks := chunker.Chunk(ChunkInput{Assembled: assembled, Sections: summary})

	if strategy != models.StrategySection {
		t.Fatalf("strategy = %q", strategy)
	}
	if len(chunks) != 2 {
		t.Fatalf("chunks = %d, want 2", len(chunks))
	}
	if chunks[0].SectionPath != "introduction#0" {
		t.Errorf("first path = %q", chunks[0].SectionPath)
	}
	if chunks[0].ObjectIDs[0] != "o1" || chunks[1].ObjectIDs[0] != "o2" {
		t.Errorf("object ids = %v / %v", chunks[0].ObjectIDs, chunks[1].ObjectIDs)
	}
	if chunks[1].PageStart != 2 {
		t.Errorf("methods page start = %d", chunks[1].PageStart)
	}
}

func TestImageChunksGatedByVerification(t *testing.T) {
	page3, page5 := 3, 5
	objects := []models.ExtractedObject{
		{ID: "img-ok", ObjectType: models.ObjectFigure, Page: &page3, Payload: models.ObjectPayload{Caption: "Figure 1. Pipeline"}},
		{ID: "img-missing", ObjectType: models.ObjectImage, Page: &page5, Payload: models.ObjectPayload{Caption: "Figure 2"}},
	}
	verified := VerifiedBinarySet{"img-ok": "doc/img-ok/3.png"}

	chunker := NewChunker(testChunkConfig())
	_, chunks := chunker.Chunk(ChunkInput{Objects: objects, Verified: verified})

	var images []models.Chunk
	for _, c := range chunks {
		if c.Modality == models.ModalityImage {
			images = append(images, c)
		}
	}
	if len(images) != 1 {
		t.Fatalf("image chunks = %d, want 1", len(images))
	}
	img := images[0]
	if img.ObjectIDs[0] != "img-ok" {
		t.Errorf("object id = %v", img.ObjectIDs)
	}
	if img.BlobKey != "doc/img-ok/3.png" {
		t.Errorf("blob key = %q", img.BlobKey)
	}
	if img.Text != "Figure 1. Pipeline" {
		t.Errorf("caption = %q", img.Text)
	}
	if img.TokenCount != 0 {
		t.Errorf("image chunks carry zero tokens, got %d", img.TokenCount)
	}
	if img.PageStart != 3 || img.PageEnd != 4 {
		t.Errorf("pages = [%d, %d)", img.PageStart, img.PageEnd)
	}
}

func TestTableChunks(t *testing.T) {
	page := 4
	objects := []models.ExtractedObject{
		{ID: "tab1", ObjectType: models.ObjectTable, Page: &page, Sequence: 2,
			Payload: models.ObjectPayload{CellGrid: [][]string{{"metric", "value"}, {"recall", "0.91"}}}},
		{ID: "tab2", ObjectType: models.ObjectTable, Page: &page, Sequence: 3},
	}

	chunker := NewChunker(testChunkConfig())
	_, chunks := chunker.Chunk(ChunkInput{Objects: objects})

	var tables []models.Chunk
	for _, c := range chunks {
		if c.Modality == models.ModalityTable {
			tables = append(tables, c)
		}
	}
	if len(tables) != 2 {
		t.Fatalf("table chunks = %d, want 2", len(tables))
	}
	if !strings.Contains(tables[0].Text, "| metric | value |") {
		t.Errorf("markdown = %q", tables[0].Text)
	}
	if !strings.Contains(tables[0].Text, "| --- | --- |") {
		t.Errorf("markdown missing separator: %q", tables[0].Text)
	}
	if tables[0].TokenCount == 0 {
		t.Error("rendered tables carry a token count")
	}
	if tables[1].Text != "[table page 4 #3]" {
		t.Errorf("placeholder = %q", tables[1].Text)
	}
}

func TestChunkIndexOrdering(t *testing.T) {
	// Text chunks first, then images, then tables, contiguous from zero
	page := 1
	objects := []models.ExtractedObject{
		{ID: "tab", ObjectType: models.ObjectTable, Page: &page, Payload: models.ObjectPayload{CellGrid: [][]string{{"a"}}}},
		{ID: "txt", ObjectType: models.ObjectTextBlock, Page: &page, Text: wordRun(50)},
		{ID: "img", ObjectType: models.ObjectImage, Page: &page, Payload: models.ObjectPayload{Caption: "cap"}},
	}
	verified := VerifiedBinarySet{"img": "d/img/1.png"}

	chunker := NewChunker(testChunkConfig())
	_, chunks := chunker.Chunk(ChunkInput{Objects: objects, Verified: verified})

	want := []string{models.ModalityText, models.ModalityImage, models.ModalityTable}
	if len(chunks) != len(want) {
		t.Fatalf("chunks = %d, want %d", len(chunks), len(want))
	}
	for i, c := range chunks {
		if c.Modality != want[i] {
			t.Errorf("chunk %d modality = %q, want %q", i, c.Modality, want[i])
		}
		if c.ChunkIndex != i {
			t.Errorf("chunk %d index = %d", i, c.ChunkIndex)
		}
	}
}

func TestSectionPathFromTitle(t *testing.T) {
	cases := []struct {
		title string
		want  string
	}{
		{"2. Methods", "2"},
		{"2.1 Setup", "2 > 2.1"},
		{"3.2.1 Details", "3 > 3.2 > 3.2.1"},
		{"Introduction", ""},
	}
	for _, tc := range cases {
		if got := sectionPathFromTitle(tc.title); got != tc.want {
			t.Errorf("sectionPathFromTitle(%q) = %q, want %q", tc.title, got, tc.want)
		}
	}
}

func TestSplitTokens(t *testing.T) {
	tokens := utils.Tokenize(wordRun(100))

	windows := splitTokens(tokens, 40, 10)
	if len(windows) != 4 {
		t.Fatalf("windows = %d, want 4", len(windows))
	}
	if len(windows[0]) != 40 || len(windows[3]) != 10 {
		t.Errorf("window sizes = %d, %d", len(windows[0]), len(windows[3]))
	}

	if got := splitTokens(nil, 40, 10); got != nil {
		t.Errorf("empty input = %v", got)
	}
	if got := splitTokens(tokens, 0, 0); len(got) != 1 || len(got[0]) != 100 {
		t.Error("zero window should return one window of everything")
	}
}

func TestRenderTableMarkdownRaggedRows(t *testing.T) {
	md := RenderTableMarkdown([][]string{{"a", "b", "c"}, {"1"}})
	lines := strings.Split(md, "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %d: %q", len(lines), md)
	}
	if lines[2] != "| 1 |  |  |" {
		t.Errorf("short row padded wrong: %q", lines[2])
	}
	if RenderTableMarkdown(nil) != "" {
		t.Error("empty grid renders empty")
	}
}
