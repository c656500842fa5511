package models

import "time"

// ExtractionSession records one ingestion attempt for a document.
// A session is immutable once it reaches a terminal status; reingestion
// creates a fresh session instead of mutating an old one.
type ExtractionSession struct {
	ID           string     `bson:"_id" json:"id"`
	DocumentID   string     `bson:"document_id" json:"document_id"`
	Provider     string     `bson:"provider" json:"provider"`
	PipelineType string     `bson:"pipeline_type" json:"pipeline_type"`
	Status       string     `bson:"status" json:"status"`
	PageCount    int        `bson:"page_count" json:"page_count"`
	ErrorMessage string     `bson:"error_message,omitempty" json:"error_message,omitempty"`
	StartedAt    time.Time  `bson:"started_at" json:"started_at"`
	FinishedAt   *time.Time `bson:"finished_at,omitempty" json:"finished_at,omitempty"`
}

// Extraction session statuses
const (
	SessionRunning = "running"
	SessionSuccess = "success"
	SessionFailed  = "failed"
	SessionPartial = "partial"
)

// Extracted object types
const (
	ObjectTextBlock = "TEXT_BLOCK"
	ObjectTable     = "TABLE"
	ObjectImage     = "IMAGE"
	ObjectFigure    = "FIGURE"
)

// BoundingBox is an axis-aligned box in page coordinates.
type BoundingBox struct {
	X0 float64 `bson:"x0" json:"x0"`
	Y0 float64 `bson:"y0" json:"y0"`
	X1 float64 `bson:"x1" json:"x1"`
	Y1 float64 `bson:"y1" json:"y1"`
}

// ImageFeatures holds lightweight visual features backfilled after binary
// extraction. PerceptualHash is a hex-encoded average hash.
type ImageFeatures struct {
	Width          int    `bson:"width" json:"width"`
	Height         int    `bson:"height" json:"height"`
	PerceptualHash string `bson:"perceptual_hash,omitempty" json:"perceptual_hash,omitempty"`
}

// ExtractedObject is one structural unit detected on a page: a block of
// text, a table, an image or a figure. Objects are inserted in bulk during
// normalization and never deleted; a reingestion supersedes them by creating
// a new ExtractionSession.
type ExtractedObject struct {
	ID         string         `bson:"_id" json:"id"`
	SessionID  string         `bson:"session_id" json:"session_id"`
	DocumentID string         `bson:"document_id" json:"document_id"`
	Page       *int           `bson:"page,omitempty" json:"page,omitempty"`
	ObjectType string         `bson:"object_type" json:"object_type"`
	Sequence   int            `bson:"sequence" json:"sequence"`
	Bounds     *BoundingBox   `bson:"bounds,omitempty" json:"bounds,omitempty"`
	Text       string         `bson:"text,omitempty" json:"text,omitempty"`
	Payload    ObjectPayload  `bson:"payload,omitempty" json:"payload,omitempty"`
	ContentHash string        `bson:"content_hash" json:"content_hash"`
	Features   *ImageFeatures `bson:"features,omitempty" json:"features,omitempty"`
}

// ObjectPayload carries provider-specific structured content, e.g. a table
// cell grid or an embedded base64 image.
type ObjectPayload struct {
	CellGrid [][]string `bson:"cell_grid,omitempty" json:"cell_grid,omitempty"`
	Base64   string     `bson:"base64,omitempty" json:"base64,omitempty"`
	Raw      []byte     `bson:"raw,omitempty" json:"-"`
	Caption  string     `bson:"caption,omitempty" json:"caption,omitempty"`
}

// PageOrZero returns the object's page number, or 0 when unknown.
func (o *ExtractedObject) PageOrZero() int {
	if o.Page == nil {
		return 0
	}
	return *o.Page
}

// IsVisual reports whether the object is subject to page filtering.
func (o *ExtractedObject) IsVisual() bool {
	switch o.ObjectType {
	case ObjectTable, ObjectImage, ObjectFigure:
		return true
	}
	return false
}
