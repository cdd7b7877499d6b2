package reembed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/masterdb/ai"
	"github.com/poiesic/masterdb/core"
	"github.com/poiesic/masterdb/storage"
)

// BatchProcessor embeds one batch of questions and stores the vectors.
type BatchProcessor struct {
	embeddings storage.EmbeddingRepository
	embedder   ai.Embedder
	model      string
	retry      RetryPolicy
	logger     *slog.Logger
}

// NewBatchProcessor creates a batch processor. model is recorded with every vector.
func NewBatchProcessor(embeddings storage.EmbeddingRepository, embedder ai.Embedder, model string, retry RetryPolicy, logger *slog.Logger) *BatchProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchProcessor{
		embeddings: embeddings,
		embedder:   embedder,
		model:      model,
		retry:      retry,
		logger:     logger,
	}
}

// Process embeds the questions and replaces their stored vectors.
// Vectors are stored as returned by the embedder; they are normalized when loaded.
func (bp *BatchProcessor) Process(ctx context.Context, questions []*core.Question) error {
	if len(questions) == 0 {
		return nil
	}

	texts := make([]string, len(questions))
	for i, q := range questions {
		texts[i] = q.Text
	}

	var vectors [][]float32
	err := RetryWithBackoff(ctx, bp.retry, bp.logger, func() error {
		var err error
		vectors, err = bp.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return err
		}
		if len(vectors) != len(questions) {
			return fmt.Errorf("%w: expected %d embeddings, got %d", ErrResultMismatch, len(questions), len(vectors))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to generate embeddings: %w", err)
	}

	embeddings := make([]*core.Embedding, len(questions))
	for i, q := range questions {
		if _, ok := core.NormalizeVector(vectors[i]); !ok {
			bp.logger.Warn("embedder returned a zero vector", "question_id", q.ID)
		}
		embeddings[i] = &core.Embedding{QuestionID: q.ID, Vector: vectors[i], Model: bp.model}
	}

	if err := bp.embeddings.PutEmbeddings(ctx, embeddings...); err != nil {
		return fmt.Errorf("failed to store embeddings: %w", err)
	}

	return nil
}
