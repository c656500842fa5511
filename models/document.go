package models

import "time"

// Document is the source document being ingested: the uploaded file plus the
// raw output of the external document-AI provider, when one was invoked.
type Document struct {
	ID             string     `bson:"_id" json:"id"`
	Filename       string     `bson:"filename" json:"filename"`
	OriginalName   string     `bson:"original_name" json:"original_name"`
	FilePath       string     `bson:"file_path" json:"file_path"`
	FileHash       string     `bson:"file_hash" json:"file_hash"`
	ContentType    string     `bson:"content_type" json:"content_type"`
	Provider       string     `bson:"provider,omitempty" json:"provider,omitempty"`
	PayloadBlobKey string     `bson:"payload_blob_key,omitempty" json:"payload_blob_key,omitempty"`
	Status         string     `bson:"status" json:"status"`
	ErrorMessage   string     `bson:"error_message,omitempty" json:"error_message,omitempty"`
	UploadedAt     time.Time  `bson:"uploaded_at" json:"uploaded_at"`
	IngestedAt     *time.Time `bson:"ingested_at,omitempty" json:"ingested_at,omitempty"`
}

// Document ingestion statuses
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// IngestResult is the pipeline's report to callers. Success with a non-empty
// warning list means degraded coverage, not failure: keyword search still
// works for every chunk even when some embeddings are missing.
type IngestResult struct {
	Success         bool      `json:"success"`
	SessionID       string    `json:"session_id"`
	ChunkSessionID  string    `json:"chunk_session_id,omitempty"`
	Strategy        string    `json:"strategy,omitempty"`
	ObjectsCount    int       `json:"objects_count"`
	ChunksCount     int       `json:"chunks_count"`
	EmbeddingsCount int       `json:"embeddings_count"`
	Warnings        []Warning `json:"warnings,omitempty"`
	FailedStage     string    `json:"failed_stage,omitempty"`
	Error           string    `json:"error,omitempty"`
}

// Warning is a non-fatal, per-item failure accumulated by the pipeline.
type Warning struct {
	Stage   string `json:"stage"`
	Ref     string `json:"ref,omitempty"`
	Message string `json:"message"`
}

// Warning stages
const (
	WarnMaterialize = "materialize"
	WarnEmbedding   = "embedding"
	WarnStorage     = "storage"
	WarnPersist     = "persist"
)
