package services

import (
	"context"
	"fmt"
	"sync"

	"docsearch-platform/internal/ai"
	"docsearch-platform/internal/blob"
	"docsearch-platform/internal/config"
	"docsearch-platform/internal/logger"
	"docsearch-platform/models"

	"github.com/google/uuid"
)

// Embedder is the vector provider behind the embedding generator.
// *ai.GeminiClient satisfies it.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	EmbedText(ctx context.Context, text string) ([]float32, error)
	EmbedImage(ctx context.Context, data []byte, format string) ([]float32, error)
	TextModel() string
	ImageModel() string
	Dimensions() int
}

// EmbeddingService produces embedding rows for a chunk list. Text chunks
// and captioned image chunks go through the batch text API; image chunks
// with verified binaries additionally get a visual embedding from their
// stored bytes. Per-item failure is a warning, never fatal.
type EmbeddingService struct {
	embedder         Embedder
	blobs            blob.Store
	provider         string
	batchSize        int
	imageConcurrency int
}

func NewEmbeddingService(cfg *config.Config, embedder Embedder, blobs blob.Store) *EmbeddingService {
	return &EmbeddingService{
		embedder:         embedder,
		blobs:            blobs,
		provider:         "gemini",
		batchSize:        cfg.EmbeddingBatchSize,
		imageConcurrency: cfg.ImageEmbedConcurrency,
	}
}

// Embed returns one row per successful embedding plus warnings for the
// failures. Text rows come first, visual rows after; row order within a
// modality follows chunk order.
func (s *EmbeddingService) Embed(ctx context.Context, chunks []models.Chunk) ([]models.Embedding, []models.Warning) {
	rows, warnings := s.embedTexts(ctx, chunks)

	visualRows, visualWarnings := s.embedImages(ctx, chunks)
	rows = append(rows, visualRows...)
	warnings = append(warnings, visualWarnings...)

	return rows, warnings
}

// textTargets selects the chunks that get a text embedding: text chunks
// always, image chunks only when their caption is non-empty. Table chunks
// are searchable via the index's full text instead.
func textTargets(chunks []models.Chunk) []int {
	var idx []int
	for i, c := range chunks {
		switch c.Modality {
		case models.ModalityText:
			if c.Text != "" {
				idx = append(idx, i)
			}
		case models.ModalityImage:
			if c.Text != "" {
				idx = append(idx, i)
			}
		}
	}
	return idx
}

func (s *EmbeddingService) embedTexts(ctx context.Context, chunks []models.Chunk) ([]models.Embedding, []models.Warning) {
	targets := textTargets(chunks)
	var rows []models.Embedding
	var warnings []models.Warning

	for start := 0; start < len(targets); start += s.batchSize {
		end := start + s.batchSize
		if end > len(targets) {
			end = len(targets)
		}
		batch := targets[start:end]

		texts := make([]string, len(batch))
		for i, ci := range batch {
			texts[i] = chunks[ci].Text
		}

		vectors, err := s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			logger.Warn("batch embedding failed, falling back to per-item calls",
				"batch_size", len(batch), "error", err)
			vectors = make([][]float32, len(batch))
		}

		for i, ci := range batch {
			var vec []float32
			if i < len(vectors) {
				vec = vectors[i]
			}
			// A missing position should not happen; embed it individually
			if len(vec) == 0 {
				vec, err = s.embedder.EmbedText(ctx, chunks[ci].Text)
				if err != nil {
					warnings = append(warnings, models.Warning{
						Stage:   models.WarnEmbedding,
						Ref:     chunks[ci].ID,
						Message: fmt.Sprintf("text embedding: %v", err),
					})
					continue
				}
			}
			rows = append(rows, s.row(chunks[ci].ID, models.ModalityText, s.embedder.TextModel(), vec))
		}
	}

	return rows, warnings
}

func (s *EmbeddingService) embedImages(ctx context.Context, chunks []models.Chunk) ([]models.Embedding, []models.Warning) {
	var targets []int
	for i, c := range chunks {
		if c.Modality == models.ModalityImage && c.BlobKey != "" {
			targets = append(targets, i)
		}
	}
	if len(targets) == 0 {
		return nil, nil
	}

	rows := make([]models.Embedding, len(targets))
	ok := make([]bool, len(targets))
	var warnings []models.Warning

	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, s.imageConcurrency)

	for ti, ci := range targets {
		wg.Add(1)
		sem <- struct{}{}
		go func(ti, ci int) {
			defer wg.Done()
			defer func() { <-sem }()

			chunk := chunks[ci]
			data, err := s.blobs.Download(ctx, chunk.BlobKey, blob.PurposeDerived)
			if err == nil {
				var vec []float32
				vec, err = s.embedder.EmbedImage(ctx, data, "png")
				if err == nil {
					rows[ti] = s.row(chunk.ID, models.ModalityImage, s.embedder.ImageModel(), vec)
					ok[ti] = true
					return
				}
			}
			mu.Lock()
			warnings = append(warnings, models.Warning{
				Stage:   models.WarnEmbedding,
				Ref:     chunk.ID,
				Message: fmt.Sprintf("image embedding: %v", err),
			})
			mu.Unlock()
		}(ti, ci)
	}
	wg.Wait()

	out := make([]models.Embedding, 0, len(targets))
	for i := range rows {
		if ok[i] {
			out = append(out, rows[i])
		}
	}
	return out, warnings
}

func (s *EmbeddingService) row(chunkID, modality, model string, vec []float32) models.Embedding {
	dim := s.embedder.Dimensions()
	return models.Embedding{
		ID:        uuid.NewString(),
		ChunkID:   chunkID,
		Provider:  s.provider,
		Model:     model,
		Modality:  modality,
		Dimension: dim,
		Vector:    ai.FitDimension(vec, dim),
	}
}
