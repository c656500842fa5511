package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"docsearch-platform/internal/logger"
	"docsearch-platform/internal/telemetry"
	"docsearch-platform/models"
	"docsearch-platform/services"
)

const TaskIngestDocument = "ingest:document"

// IngestPayload identifies the document a worker should run through the
// pipeline.
type IngestPayload struct {
	DocumentID string `json:"document_id"`
}

// NewIngestTask builds the queued ingestion task. Ingestion is the
// platform's whole job, so it runs on the critical queue with a generous
// timeout for large documents.
func NewIngestTask(documentID string) (*asynq.Task, error) {
	payload, err := json.Marshal(IngestPayload{DocumentID: documentID})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskIngestDocument,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(15*time.Minute),
		asynq.Queue("critical"),
	), nil
}

// TaskProcessor executes queued tasks against the ingestion pipeline.
type TaskProcessor struct {
	pipeline *services.Pipeline
	status   *services.StatusCache
	metrics  *telemetry.Metrics
}

func NewTaskProcessor(pipeline *services.Pipeline, status *services.StatusCache, metrics *telemetry.Metrics) *TaskProcessor {
	return &TaskProcessor{
		pipeline: pipeline,
		status:   status,
		metrics:  metrics,
	}
}

// ProcessIngest runs one document through the pipeline and mirrors the
// outcome into the status cache. Pipeline-fatal errors are returned so
// asynq retries; a whole reingestion is safe because sessions are
// versioned.
func (p *TaskProcessor) ProcessIngest(ctx context.Context, t *asynq.Task) error {
	var payload IngestPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	logger.Info("ingestion task started", "document_id", payload.DocumentID)
	p.cacheStatus(ctx, payload.DocumentID, models.StatusProcessing, nil)

	started := time.Now()
	result, err := p.pipeline.Ingest(ctx, payload.DocumentID)
	p.recordIngest(time.Since(started), result, err == nil)
	if err != nil {
		p.cacheStatus(ctx, payload.DocumentID, models.StatusFailed, result)
		return err
	}

	p.cacheStatus(ctx, payload.DocumentID, models.StatusCompleted, result)
	return nil
}

func (p *TaskProcessor) recordIngest(elapsed time.Duration, result *models.IngestResult, success bool) {
	strategy := ""
	chunks := 0
	if result != nil {
		strategy = result.Strategy
		chunks = result.ChunksCount
	}
	p.metrics.RecordIngest(elapsed.Seconds(), strategy, chunks, success)
}

func (p *TaskProcessor) cacheStatus(ctx context.Context, documentID, status string, result *models.IngestResult) {
	if p.status == nil {
		return
	}
	if err := p.status.Set(ctx, documentID, status, result); err != nil {
		logger.Warn("status cache update failed", "document_id", documentID, "error", err)
	}
}
