package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"docsearch-platform/models"
)

const (
	keywordPrefixBytes = 8000
	maxKeywords        = 20
	maxTopics          = 5
)

// IndexWriteError marks a failed search-index upsert. Unlike warnings it
// is fatal: a document without a search record is invisible to retrieval.
type IndexWriteError struct {
	DocumentID string
	Err        error
}

func (e *IndexWriteError) Error() string {
	return fmt.Sprintf("write search index for document %s: %v", e.DocumentID, e.Err)
}

func (e *IndexWriteError) Unwrap() error { return e.Err }

// SearchIndexUpserter is the persistence seam for the index writer.
// *IndexStore satisfies it.
type SearchIndexUpserter interface {
	Upsert(ctx context.Context, record *models.SearchIndexRecord) error
}

// IndexWriter aggregates a chunk session into the per-document search
// record and upserts it, replacing any record from a prior ingestion.
type IndexWriter struct {
	store SearchIndexUpserter
}

func NewIndexWriter(store SearchIndexUpserter) *IndexWriter {
	return &IndexWriter{store: store}
}

// Write builds and upserts the record. chunks must already be in
// chunk_index order; objects supplies bounding boxes for indexed images.
func (w *IndexWriter) Write(ctx context.Context, documentID, chunkSessionID string, chunks []models.Chunk, objects []models.ExtractedObject) (*models.SearchIndexRecord, error) {
	boundsByObject := map[string]*models.BoundingBox{}
	for i := range objects {
		if objects[i].Bounds != nil {
			boundsByObject[objects[i].ID] = objects[i].Bounds
		}
	}

	var sb strings.Builder
	var images []models.IndexedImage

	for _, chunk := range chunks {
		if chunk.Text != "" {
			sb.WriteString(chunk.Text)
			sb.WriteString("\n")
		}
		if chunk.Modality != models.ModalityImage || chunk.Text == "" {
			continue
		}
		objectID := ""
		if len(chunk.ObjectIDs) > 0 {
			objectID = chunk.ObjectIDs[0]
		}
		images = append(images, models.IndexedImage{
			ObjectID: objectID,
			Page:     chunk.PageStart,
			Caption:  chunk.Text,
			Bounds:   boundsByObject[objectID],
			BlobKey:  chunk.BlobKey,
		})
	}

	aggregated := sb.String()
	keywords := ExtractKeywords(aggregated, maxKeywords)
	topics := keywords
	if len(topics) > maxTopics {
		topics = topics[:maxTopics]
	}

	record := &models.SearchIndexRecord{
		DocumentID:     documentID,
		ChunkSessionID: chunkSessionID,
		AggregatedText: aggregated,
		Keywords:       keywords,
		Topics:         topics,
		Images:         images,
		ChunkCount:     len(chunks),
		UpdatedAt:      time.Now(),
	}

	if err := w.store.Upsert(ctx, record); err != nil {
		return nil, &IndexWriteError{DocumentID: documentID, Err: err}
	}
	return record, nil
}

// ExtractKeywords pulls frequent non-stopword terms from a prefix of the
// text. Cheap by intent: real relevance comes from the text index, the
// keywords only seed faceting and topic hints.
func ExtractKeywords(text string, limit int) []string {
	text = truncateToRune(text, keywordPrefixBytes)
	words := strings.Fields(strings.ToLower(text))

	stopWords := map[string]bool{
		"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
		"in": true, "on": true, "at": true, "to": true, "for": true, "of": true,
		"with": true, "is": true, "are": true, "was": true, "were": true,
		"this": true, "that": true, "these": true, "from": true,
		"as": true, "by": true, "be": true, "we": true, "it": true,
	}

	wordFreq := make(map[string]int)
	for _, word := range words {
		word = strings.Trim(word, ".,;:!?()[]{}\"'")
		if len(word) > 2 && !stopWords[word] {
			wordFreq[word]++
		}
	}

	type freq struct {
		word  string
		count int
	}
	ranked := make([]freq, 0, len(wordFreq))
	for word, count := range wordFreq {
		if count >= 2 {
			ranked = append(ranked, freq{word, count})
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].word < ranked[j].word
	})

	keywords := make([]string, 0, limit)
	for _, f := range ranked {
		if len(keywords) >= limit {
			break
		}
		keywords = append(keywords, f.word)
	}
	return keywords
}

// truncateToRune cuts s to at most n bytes without splitting a rune.
func truncateToRune(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
