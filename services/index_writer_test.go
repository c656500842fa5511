package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"docsearch-platform/models"
)

func TestExtractKeywords(t *testing.T) {
	text := "Retrieval pipelines chunk documents. Retrieval quality depends on chunk " +
		"boundaries, and the chunk size matters for retrieval."
	keywords := ExtractKeywords(text, 20)

	if len(keywords) == 0 {
		t.Fatal("no keywords extracted")
	}
	// "retrieval" appears 3 times, "chunk" 3; both must rank ahead of
	// everything that appears twice or less
	if keywords[0] != "chunk" && keywords[0] != "retrieval" {
		t.Errorf("top keyword = %q", keywords[0])
	}

	for _, kw := range keywords {
		switch kw {
		case "the", "and", "for", "on":
			t.Errorf("stopword %q leaked into keywords", kw)
		}
	}
}

func TestExtractKeywordsSingletonsDropped(t *testing.T) {
	keywords := ExtractKeywords("every single word here appears exactly once", 20)
	if len(keywords) != 0 {
		t.Errorf("words seen once are not keywords, got %v", keywords)
	}
}

func TestExtractKeywordsStripsPunctuation(t *testing.T) {
	keywords := ExtractKeywords("latency, latency; latency!", 20)
	if len(keywords) != 1 || keywords[0] != "latency" {
		t.Errorf("keywords = %v", keywords)
	}
}

func TestExtractKeywordsLimit(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 30; i++ {
		word := strings.Repeat(string(rune('a'+i%26)), 4+i/26)
		sb.WriteString(word + " " + word + " ")
	}
	keywords := ExtractKeywords(sb.String(), 5)
	if len(keywords) != 5 {
		t.Errorf("limit not applied, got %d keywords", len(keywords))
	}
}

func TestExtractKeywordsDeterministicOrder(t *testing.T) {
	text := "zebra zebra apple apple"
	a := ExtractKeywords(text, 10)
	b := ExtractKeywords(text, 10)
	if strings.Join(a, ",") != strings.Join(b, ",") {
		t.Errorf("unstable order: %v vs %v", a, b)
	}
	// Equal counts break ties alphabetically
	if a[0] != "apple" || a[1] != "zebra" {
		t.Errorf("tie break order = %v", a)
	}
}

type fakeIndexStore struct {
	records []*models.SearchIndexRecord
	err     error
}

func (f *fakeIndexStore) Upsert(_ context.Context, record *models.SearchIndexRecord) error {
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, record)
	return nil
}

func TestIndexWriterWrite(t *testing.T) {
	store := &fakeIndexStore{}
	writer := NewIndexWriter(store)

	bounds := &models.BoundingBox{X0: 0.1, Y0: 0.2, X1: 0.5, Y1: 0.6}
	objects := []models.ExtractedObject{
		{ID: "fig1", ObjectType: "figure", Bounds: bounds},
	}
	chunks := []models.Chunk{
		{ChunkIndex: 0, Modality: models.ModalityText, Text: "first passage"},
		{ChunkIndex: 1, Modality: models.ModalityText, Text: "second passage"},
		{ChunkIndex: 2, Modality: models.ModalityImage, Text: "Figure 1: latency curve",
			ObjectIDs: []string{"fig1"}, PageStart: 3, BlobKey: "doc1/fig1/3.png"},
		{ChunkIndex: 3, Modality: models.ModalityImage, ObjectIDs: []string{"fig2"}},
		{ChunkIndex: 4, Modality: models.ModalityTable, Text: "| metric | value |"},
	}

	record, err := writer.Write(context.Background(), "doc1", "cs1", chunks, objects)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(store.records) != 1 || store.records[0] != record {
		t.Fatal("record not upserted")
	}

	if record.DocumentID != "doc1" || record.ChunkSessionID != "cs1" {
		t.Errorf("record identity = %q/%q", record.DocumentID, record.ChunkSessionID)
	}
	if record.ChunkCount != len(chunks) {
		t.Errorf("ChunkCount = %d, want %d", record.ChunkCount, len(chunks))
	}

	// Aggregation follows chunk_index order; the uncaptioned image chunk
	// contributes no text
	want := "first passage\nsecond passage\nFigure 1: latency curve\n| metric | value |\n"
	if record.AggregatedText != want {
		t.Errorf("AggregatedText = %q, want %q", record.AggregatedText, want)
	}

	if len(record.Images) != 1 {
		t.Fatalf("Images = %d, want 1 (uncaptioned image excluded)", len(record.Images))
	}
	img := record.Images[0]
	if img.ObjectID != "fig1" || img.Page != 3 || img.BlobKey != "doc1/fig1/3.png" {
		t.Errorf("indexed image = %+v", img)
	}
	if img.Caption != "Figure 1: latency curve" {
		t.Errorf("Caption = %q", img.Caption)
	}
	if img.Bounds != bounds {
		t.Error("object bounds not attached to indexed image")
	}
}

func TestIndexWriterWriteUpsertError(t *testing.T) {
	store := &fakeIndexStore{err: errors.New("replica set unavailable")}
	writer := NewIndexWriter(store)

	chunks := []models.Chunk{{ChunkIndex: 0, Modality: models.ModalityText, Text: "body"}}
	_, err := writer.Write(context.Background(), "doc1", "cs1", chunks, nil)

	var iwe *IndexWriteError
	if !errors.As(err, &iwe) {
		t.Fatalf("error = %v, want *IndexWriteError", err)
	}
	if iwe.DocumentID != "doc1" {
		t.Errorf("DocumentID = %q", iwe.DocumentID)
	}
}

func TestTruncateToRune(t *testing.T) {
	// "aé" is three bytes; cutting at byte 2 would split the é
	if got := truncateToRune("aé", 2); got != "a" {
		t.Errorf("truncateToRune(aé, 2) = %q", got)
	}
	if got := truncateToRune("abc", 2); got != "ab" {
		t.Errorf("truncateToRune(abc, 2) = %q", got)
	}
	if got := truncateToRune("abc", 10); got != "abc" {
		t.Errorf("truncateToRune(abc, 10) = %q", got)
	}
}

func TestExtractKeywordsPrefixCutKeepsValidUTF8(t *testing.T) {
	// Pad so the prefix boundary lands inside a multi-byte rune
	text := "ab " + strings.Repeat("검색엔진 ", 2000)
	for _, kw := range ExtractKeywords(text, 20) {
		if !utf8.ValidString(kw) {
			t.Fatalf("keyword %q is not valid UTF-8", kw)
		}
	}
}
