package models

import "time"

// Chunk modalities
const (
	ModalityText  = "text"
	ModalityImage = "image"
	ModalityTable = "table"
)

// Chunking strategy names
const (
	StrategyStructure   = "structure"
	StrategySection     = "section"
	StrategyFixedWindow = "fixed_window"
)

// ChunkParams bounds chunk sizes in tokens.
type ChunkParams struct {
	MinTokens     int `bson:"min_tokens" json:"min_tokens"`
	TargetTokens  int `bson:"target_tokens" json:"target_tokens"`
	MaxTokens     int `bson:"max_tokens" json:"max_tokens"`
	OverlapTokens int `bson:"overlap_tokens" json:"overlap_tokens"`
}

// ChunkSession records one chunking attempt over a single ExtractionSession.
type ChunkSession struct {
	ID         string      `bson:"_id" json:"id"`
	SessionID  string      `bson:"session_id" json:"session_id"`
	DocumentID string      `bson:"document_id" json:"document_id"`
	Strategy   string      `bson:"strategy" json:"strategy"`
	Params     ChunkParams `bson:"params" json:"params"`
	Status     string      `bson:"status" json:"status"`
	ChunkCount int         `bson:"chunk_count" json:"chunk_count"`
	CreatedAt  time.Time   `bson:"created_at" json:"created_at"`
}

// Chunk is the atomic retrievable unit. ChunkIndex is unique within a chunk
// session and defines retrieval order. Text chunks always have TokenCount > 0;
// image and table chunks may carry zero tokens. PageStart/PageEnd form a
// half-open interval [start, end).
type Chunk struct {
	ID          string   `bson:"_id" json:"id"`
	ChunkSessionID string `bson:"chunk_session_id" json:"chunk_session_id"`
	DocumentID  string   `bson:"document_id" json:"document_id"`
	ChunkIndex  int      `bson:"chunk_index" json:"chunk_index"`
	ObjectIDs   []string `bson:"object_ids,omitempty" json:"object_ids,omitempty"`
	Text        string   `bson:"text" json:"text"`
	TokenCount  int      `bson:"token_count" json:"token_count"`
	Modality    string   `bson:"modality" json:"modality"`
	SectionPath string   `bson:"section_path,omitempty" json:"section_path,omitempty"`
	PageStart   int      `bson:"page_start" json:"page_start"`
	PageEnd     int      `bson:"page_end" json:"page_end"`
	BlobKey     string   `bson:"blob_key,omitempty" json:"blob_key,omitempty"`
}

// Embedding is one vector for one chunk. A chunk holds at most one text and
// at most one visual embedding; a missing row only degrades vector search.
type Embedding struct {
	ID       string    `bson:"_id" json:"id"`
	ChunkID  string    `bson:"chunk_id" json:"chunk_id"`
	Provider string    `bson:"provider" json:"provider"`
	Model    string    `bson:"model" json:"model"`
	Modality string    `bson:"modality" json:"modality"`
	Dimension int      `bson:"dimension" json:"dimension"`
	Vector   []float32 `bson:"vector" json:"-"`
}
