package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"docsearch-platform/internal/blob"
	"docsearch-platform/internal/config"
	"docsearch-platform/internal/logger"
	"docsearch-platform/internal/telemetry"
	"docsearch-platform/models"
	"docsearch-platform/utils"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// Pipeline stages, used in failure reports.
const (
	StagePayload   = "payload"
	StageNormalize = "normalize"
	StageChunk     = "chunk"
	StageIndex     = "index"
)

// FatalExtractionError aborts the pipeline and marks the extraction
// session failed. Only stage 4.1 failures are fatal; everything after
// normalization degrades per item instead.
type FatalExtractionError struct {
	Stage string
	Err   error
}

func (e *FatalExtractionError) Error() string {
	return fmt.Sprintf("extraction failed at %s: %v", e.Stage, e.Err)
}

func (e *FatalExtractionError) Unwrap() error { return e.Err }

// Pipeline runs one document through the full ingestion flow: payload
// acquisition, normalization, section detection, visual filtering, binary
// materialization, chunking, embedding, index write. One invocation per
// document; concurrent invocations share nothing but the stores.
type Pipeline struct {
	cfg *config.Config

	documents  *DocumentStore
	extraction *ExtractionStore
	chunkStore *ChunkStore

	blobs     blob.Store
	docai     *DocAIClient
	local     *LocalExtractor
	detector  *SectionDetector
	filter    *VisualObjectFilter
	chunker   *Chunker
	mat       *Materializer
	embedding *EmbeddingService
	indexer   *IndexWriter
}

func NewPipeline(
	cfg *config.Config,
	documents *DocumentStore,
	extraction *ExtractionStore,
	chunkStore *ChunkStore,
	indexStore *IndexStore,
	blobs blob.Store,
	embedder Embedder,
	metrics *telemetry.Metrics,
) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		documents:  documents,
		extraction: extraction,
		chunkStore: chunkStore,
		blobs:      blobs,
		docai:      NewDocAIClient(cfg, metrics),
		local:      NewLocalExtractor(cfg),
		detector:   NewSectionDetector(),
		filter:     NewVisualObjectFilter(cfg),
		chunker:    NewChunker(cfg),
		mat:        NewMaterializer(cfg, blobs),
		embedding:  NewEmbeddingService(cfg, embedder, blobs),
		indexer:    NewIndexWriter(indexStore),
	}
}

// Ingest runs the pipeline for one stored document. The returned result
// is always non-nil; Success false comes with a FailedStage and Error.
func (p *Pipeline) Ingest(ctx context.Context, documentID string) (*models.IngestResult, error) {
	tracer := otel.Tracer("ingest-pipeline")
	ctx, span := tracer.Start(ctx, "pipeline.ingest")
	defer span.End()
	span.SetAttributes(attribute.String("document.id", documentID))

	doc, err := p.documents.Get(ctx, documentID)
	if err != nil {
		return &models.IngestResult{Success: false, FailedStage: StagePayload, Error: err.Error()}, err
	}

	if err := p.documents.UpdateStatus(ctx, documentID, models.StatusProcessing, ""); err != nil {
		logger.Warn("document status update failed", "document_id", documentID, "error", err)
	}

	session := &models.ExtractionSession{
		ID:           uuid.NewString(),
		DocumentID:   documentID,
		Provider:     p.providerName(doc),
		PipelineType: "ingest",
		Status:       models.SessionRunning,
		StartedAt:    time.Now(),
	}
	if err := p.extraction.CreateSession(ctx, session); err != nil {
		return p.fail(ctx, doc, session, StagePayload, err)
	}

	result := &models.IngestResult{SessionID: session.ID}

	// 4.1: acquire payload and normalize. A failure here is fatal.
	normalized, warnings, err := p.extractAndNormalize(ctx, doc)
	result.Warnings = append(result.Warnings, warnings...)
	if err != nil {
		var fatal *FatalExtractionError
		if fe, ok := err.(*FatalExtractionError); ok {
			fatal = fe
		} else {
			fatal = &FatalExtractionError{Stage: StageNormalize, Err: err}
		}
		res, _ := p.fail(ctx, doc, session, fatal.Stage, fatal)
		res.SessionID = session.ID
		res.Warnings = result.Warnings
		return res, fatal
	}
	span.SetAttributes(
		attribute.Int("pipeline.objects", len(normalized.Objects)),
		attribute.Int("pipeline.pages", normalized.PageCount),
		attribute.Bool("pipeline.role_signal", normalized.RoleSignal),
	)

	for i := range normalized.Objects {
		normalized.Objects[i].SessionID = session.ID
		normalized.Objects[i].DocumentID = documentID
	}
	if err := p.extraction.InsertObjects(ctx, normalized.Objects); err != nil {
		// In-memory objects still drive the rest of the pipeline
		result.Warnings = append(result.Warnings, models.Warning{
			Stage: models.WarnPersist, Message: fmt.Sprintf("object insert: %v", err),
		})
	}
	result.ObjectsCount = len(normalized.Objects)

	// 4.2 + 4.3: sections, then page-filter the visual objects
	assembled := AssembleText(normalized.Elements)
	sections := p.detector.Detect(normalized.Elements, assembled, normalized.RoleSignal)
	filtered, report := p.filter.Filter(normalized.Objects, sections, assembled, normalized.PageCount)
	logger.Info("visual filter applied",
		"document_id", documentID,
		"sections", len(sections.Sections),
		"removed", report.RemovedCounts,
		"widened", report.Widened)

	// 4.5 before 4.4: binary availability gates image chunks, and indices
	// must be final before any embedding work starts
	pdfPath := ""
	if strings.Contains(strings.ToLower(doc.ContentType), "pdf") ||
		strings.HasSuffix(strings.ToLower(doc.FilePath), ".pdf") {
		pdfPath = doc.FilePath
	}
	verified, matWarnings := p.mat.Resolve(ctx, documentID, pdfPath, filtered)
	result.Warnings = append(result.Warnings, matWarnings...)
	for i := range filtered {
		if filtered[i].Features == nil {
			continue
		}
		if err := p.extraction.UpdateObjectFeatures(ctx, filtered[i].ID, filtered[i].Features); err != nil {
			result.Warnings = append(result.Warnings, models.Warning{
				Stage: models.WarnPersist, Ref: filtered[i].ID,
				Message: fmt.Sprintf("feature backfill: %v", err),
			})
		}
	}

	// 4.4: chunk and persist
	strategy, chunks := p.chunker.Chunk(ChunkInput{
		Elements:  normalized.Elements,
		Objects:   filtered,
		Assembled: assembled,
		Sections:  sections,
		Verified:  verified,
	})
	chunkSession := &models.ChunkSession{
		ID:         uuid.NewString(),
		SessionID:  session.ID,
		DocumentID: documentID,
		Strategy:   strategy,
		Params:     p.chunker.Params(),
		Status:     models.SessionRunning,
		CreatedAt:  time.Now(),
	}
	for i := range chunks {
		chunks[i].ChunkSessionID = chunkSession.ID
		chunks[i].DocumentID = documentID
	}
	if err := p.chunkStore.CreateSession(ctx, chunkSession); err != nil {
		res, _ := p.fail(ctx, doc, session, StageChunk, err)
		res.Warnings = result.Warnings
		return res, err
	}
	if err := p.chunkStore.InsertChunks(ctx, chunks); err != nil {
		res, _ := p.fail(ctx, doc, session, StageChunk, err)
		res.Warnings = result.Warnings
		return res, err
	}
	if err := p.chunkStore.CompleteSession(ctx, chunkSession.ID, len(chunks)); err != nil {
		logger.Warn("chunk session completion update failed", "chunk_session_id", chunkSession.ID, "error", err)
	}
	result.ChunkSessionID = chunkSession.ID
	result.Strategy = strategy
	result.ChunksCount = len(chunks)
	span.SetAttributes(
		attribute.String("pipeline.strategy", strategy),
		attribute.Int("pipeline.chunks", len(chunks)),
	)

	// 4.6: embeddings, best-effort per item
	rows, embedWarnings := p.embedding.Embed(ctx, chunks)
	result.Warnings = append(result.Warnings, embedWarnings...)
	if err := p.chunkStore.InsertEmbeddings(ctx, rows); err != nil {
		result.Warnings = append(result.Warnings, models.Warning{
			Stage: models.WarnPersist, Message: fmt.Sprintf("embedding insert: %v", err),
		})
	}
	result.EmbeddingsCount = len(rows)

	// 4.7: the document is not searchable without its index record
	if _, err := p.indexer.Write(ctx, documentID, chunkSession.ID, chunks, filtered); err != nil {
		res, _ := p.fail(ctx, doc, session, StageIndex, err)
		res.ChunkSessionID = chunkSession.ID
		res.Strategy = strategy
		res.ChunksCount = len(chunks)
		res.EmbeddingsCount = len(rows)
		res.Warnings = result.Warnings
		return res, err
	}

	sessionStatus := models.SessionSuccess
	if len(result.Warnings) > 0 {
		sessionStatus = models.SessionPartial
	}
	if err := p.extraction.FinishSession(ctx, session.ID, sessionStatus, "", normalized.PageCount); err != nil {
		logger.Warn("session finish update failed", "session_id", session.ID, "error", err)
	}
	if err := p.documents.UpdateStatus(ctx, documentID, models.StatusCompleted, ""); err != nil {
		logger.Warn("document status update failed", "document_id", documentID, "error", err)
	}

	result.Success = true
	logger.Info("ingestion complete",
		"document_id", documentID,
		"strategy", strategy,
		"objects", result.ObjectsCount,
		"chunks", result.ChunksCount,
		"embeddings", result.EmbeddingsCount,
		"warnings", len(result.Warnings))
	return result, nil
}

// extractAndNormalize acquires the provider payload (stored, remote, or
// local) and runs the matching normalizer.
func (p *Pipeline) extractAndNormalize(ctx context.Context, doc *models.Document) (*NormalizeResult, []models.Warning, error) {
	tracer := otel.Tracer("ingest-pipeline")
	ctx, span := tracer.Start(ctx, "pipeline.extract_normalize")
	defer span.End()

	var warnings []models.Warning
	payload, warn, err := p.acquirePayload(ctx, doc)
	if warn != nil {
		warnings = append(warnings, *warn)
	}
	if err != nil {
		return nil, warnings, &FatalExtractionError{Stage: StagePayload, Err: err}
	}

	normalizer := NewNormalizer(payload)
	span.SetAttributes(attribute.String("pipeline.normalizer", normalizer.Name()))

	normalized, err := normalizer.Normalize(payload)
	if err != nil {
		return nil, warnings, &FatalExtractionError{Stage: StageNormalize, Err: err}
	}
	return normalized, warnings, nil
}

func (p *Pipeline) acquirePayload(ctx context.Context, doc *models.Document) (*RawPayload, *models.Warning, error) {
	// A stored payload from a previous run makes reingestion cheap and
	// reproducible
	if doc.PayloadBlobKey != "" {
		data, err := p.blobs.Download(ctx, doc.PayloadBlobKey, blob.PurposePayloads)
		if err == nil {
			if plain, derr := utils.DecompressPayload(data, utils.IsGzip(data)); derr == nil {
				data = plain
			}
			payload := ParsePayload(data)
			if payload.Provider == "" {
				payload.Provider = doc.Provider
			}
			return payload, nil, nil
		}
		warn := &models.Warning{
			Stage: models.WarnStorage, Ref: doc.PayloadBlobKey,
			Message: fmt.Sprintf("stored payload unavailable, re-extracting: %v", err),
		}
		payload, _, perr := p.freshPayload(ctx, doc)
		return payload, warn, perr
	}

	payload, warn, err := p.freshPayload(ctx, doc)
	return payload, warn, err
}

func (p *Pipeline) freshPayload(ctx context.Context, doc *models.Document) (*RawPayload, *models.Warning, error) {
	if p.docai.Enabled() {
		raw, payload, err := p.docai.Analyze(ctx, doc.FilePath, doc.OriginalName, doc.ContentType)
		if err != nil {
			return nil, nil, fmt.Errorf("provider analysis: %w", err)
		}

		key := doc.ID + "/payload.json"
		stored, _, cerr := utils.CompressPayload(raw)
		if cerr != nil {
			stored = raw
		}
		if serr := p.blobs.Upload(ctx, key, blob.PurposePayloads, stored); serr != nil {
			warn := &models.Warning{
				Stage: models.WarnStorage, Ref: key,
				Message: fmt.Sprintf("payload archive: %v", serr),
			}
			return payload, warn, nil
		}
		if serr := p.documents.SetPayloadBlobKey(ctx, doc.ID, key, p.docai.Provider()); serr != nil {
			logger.Warn("payload key update failed", "document_id", doc.ID, "error", serr)
		}
		return payload, nil, nil
	}

	payload, err := p.local.Extract(ctx, doc.FilePath, doc.ContentType)
	if err != nil {
		return nil, nil, fmt.Errorf("local extraction: %w", err)
	}
	return payload, nil, nil
}

func (p *Pipeline) providerName(doc *models.Document) string {
	if p.docai.Enabled() {
		return p.docai.Provider()
	}
	if doc.Provider != "" {
		return doc.Provider
	}
	return "local"
}

// fail finishes the session and document as failed and builds the report.
// sessionOutcome maps a failed stage to the stored session status. An
// index failure happens after extraction succeeded and the chunk session
// committed, so the session is recorded partial; the retrievable chunks
// stay valid for the retry.
func sessionOutcome(stage string) string {
	if stage == StageIndex {
		return models.SessionPartial
	}
	return models.SessionFailed
}

func (p *Pipeline) fail(ctx context.Context, doc *models.Document, session *models.ExtractionSession, stage string, cause error) (*models.IngestResult, error) {
	logger.Error("ingestion failed",
		"document_id", doc.ID, "session_id", session.ID, "stage", stage, "error", cause)

	if err := p.extraction.FinishSession(ctx, session.ID, sessionOutcome(stage), cause.Error(), 0); err != nil {
		logger.Warn("session failure update failed", "session_id", session.ID, "error", err)
	}
	if err := p.documents.UpdateStatus(ctx, doc.ID, models.StatusFailed, cause.Error()); err != nil {
		logger.Warn("document status update failed", "document_id", doc.ID, "error", err)
	}

	return &models.IngestResult{
		Success:     false,
		SessionID:   session.ID,
		FailedStage: stage,
		Error:       cause.Error(),
	}, cause
}
