package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	genai "github.com/google/generative-ai-go/genai"
)

// ErrRateLimited is returned before an API call when local token accounting
// says the call would exceed the tier's quota.
var ErrRateLimited = errors.New("rate limit exceeded: wait before retry")

// EmbedBatch embeds up to one API call's worth of texts in order. The batch
// API preserves input order, so callers may map results back positionally.
// A length mismatch is treated as an error.
func (gc *GeminiClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	tracer := otel.Tracer("gemini-embeddings")
	ctx, span := tracer.Start(ctx, "gemini.embed_batch")
	defer span.End()

	span.SetAttributes(
		attribute.Int("gemini.batch_size", len(texts)),
		attribute.String("gemini.model", gc.textModel),
	)

	if len(texts) == 0 {
		return nil, nil
	}

	estimated := estimateTokens(texts)
	if !gc.tokenCounter.CanConsume(estimated, 1) {
		span.SetAttributes(attribute.Bool("gemini.rate_limited", true))
		return nil, ErrRateLimited
	}

	if err := gc.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	result, err := gc.breaker.Execute(func() (interface{}, error) {
		model := gc.client.EmbeddingModel(gc.textModel)
		batch := model.NewBatch()
		for _, text := range texts {
			batch.AddContent(genai.Text(text))
		}

		resp, err := model.BatchEmbedContents(ctx, batch)
		if err != nil {
			return nil, err
		}
		gc.tokenCounter.RecordUsage(estimated, 1)
		gc.metrics.RecordTokensUsed(int64(estimated), gc.textModel)
		return resp, nil
	})
	if err != nil {
		if err == gobreaker.ErrOpenState {
			span.SetAttributes(attribute.Bool("gemini.circuit_breaker_open", true))
		}
		span.SetAttributes(attribute.Bool("gemini.error", true))
		return nil, err
	}

	resp := result.(*genai.BatchEmbedContentsResponse)
	vectors := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		if emb != nil {
			vectors[i] = emb.Values
		}
	}

	span.SetAttributes(attribute.Int("gemini.vectors_returned", len(vectors)))
	return vectors, nil
}

// EmbedText embeds a single text. Used as the per-item fallback when a
// batch response is missing a position.
func (gc *GeminiClient) EmbedText(ctx context.Context, text string) ([]float32, error) {
	tracer := otel.Tracer("gemini-embeddings")
	ctx, span := tracer.Start(ctx, "gemini.embed_text")
	defer span.End()

	estimated := estimateTokens([]string{text})
	if !gc.tokenCounter.CanConsume(estimated, 1) {
		span.SetAttributes(attribute.Bool("gemini.rate_limited", true))
		return nil, ErrRateLimited
	}

	if err := gc.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	result, err := gc.breaker.Execute(func() (interface{}, error) {
		model := gc.client.EmbeddingModel(gc.textModel)
		resp, err := model.EmbedContent(ctx, genai.Text(text))
		if err != nil {
			return nil, err
		}
		if resp.Embedding == nil {
			return nil, fmt.Errorf("no embedding returned")
		}
		gc.tokenCounter.RecordUsage(estimated, 1)
		gc.metrics.RecordTokensUsed(int64(estimated), gc.textModel)
		return resp.Embedding.Values, nil
	})
	if err != nil {
		span.SetAttributes(attribute.Bool("gemini.error", true))
		return nil, err
	}

	return result.([]float32), nil
}

// EmbedImage embeds raw image bytes with the multimodal embedding model.
// The visual vector space is keyed to the stored artifact's bytes, not its
// caption, so later image-similarity queries stay consistent.
func (gc *GeminiClient) EmbedImage(ctx context.Context, data []byte, format string) ([]float32, error) {
	tracer := otel.Tracer("gemini-embeddings")
	ctx, span := tracer.Start(ctx, "gemini.embed_image")
	defer span.End()

	span.SetAttributes(
		attribute.Int("gemini.image_bytes", len(data)),
		attribute.String("gemini.model", gc.imageModel),
	)

	if len(data) == 0 {
		return nil, fmt.Errorf("empty image payload")
	}
	if format == "" {
		format = "png"
	}

	// Image calls count as one request; token cost is nominal
	if !gc.tokenCounter.CanConsume(1, 1) {
		span.SetAttributes(attribute.Bool("gemini.rate_limited", true))
		return nil, ErrRateLimited
	}

	if err := gc.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	result, err := gc.breaker.Execute(func() (interface{}, error) {
		model := gc.client.EmbeddingModel(gc.imageModel)
		resp, err := model.EmbedContent(ctx, genai.ImageData(format, data))
		if err != nil {
			return nil, err
		}
		if resp.Embedding == nil {
			return nil, fmt.Errorf("no embedding returned")
		}
		gc.tokenCounter.RecordUsage(1, 1)
		gc.metrics.RecordTokensUsed(1, gc.imageModel)
		return resp.Embedding.Values, nil
	})
	if err != nil {
		span.SetAttributes(attribute.Bool("gemini.error", true))
		return nil, err
	}

	return result.([]float32), nil
}

// FitDimension zero-pads or truncates a vector to the provider's fixed
// dimension so stored vectors are always comparable.
func FitDimension(vec []float32, dim int) []float32 {
	if dim <= 0 || len(vec) == dim {
		return vec
	}
	if len(vec) > dim {
		return vec[:dim]
	}
	out := make([]float32, dim)
	copy(out, vec)
	return out
}
