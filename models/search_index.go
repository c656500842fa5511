package models

import "time"

// IndexedImage is the visual-object metadata attached to a search record so
// multimodal retrieval can surface figures alongside text hits.
type IndexedImage struct {
	ObjectID string       `bson:"object_id" json:"object_id"`
	Page     int          `bson:"page" json:"page"`
	Caption  string       `bson:"caption" json:"caption"`
	Bounds   *BoundingBox `bson:"bounds,omitempty" json:"bounds,omitempty"`
	BlobKey  string       `bson:"blob_key" json:"blob_key"`
}

// SearchIndexRecord is the one-per-document record behind full-text search.
// It is rebuilt from the chunks of the most recent successful ChunkSession
// and replaced wholesale on every successful reingestion.
type SearchIndexRecord struct {
	DocumentID     string         `bson:"_id" json:"document_id"`
	ChunkSessionID string         `bson:"chunk_session_id" json:"chunk_session_id"`
	AggregatedText string         `bson:"aggregated_text" json:"aggregated_text"`
	Keywords       []string       `bson:"keywords,omitempty" json:"keywords,omitempty"`
	Topics         []string       `bson:"topics,omitempty" json:"topics,omitempty"`
	Images         []IndexedImage `bson:"images,omitempty" json:"images,omitempty"`
	ChunkCount     int            `bson:"chunk_count" json:"chunk_count"`
	UpdatedAt      time.Time      `bson:"updated_at" json:"updated_at"`
}
