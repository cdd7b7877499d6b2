package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/poiesic/masterdb/ai"
	"github.com/poiesic/masterdb/core"
	"github.com/poiesic/masterdb/storage"
)

// embeddingProcessor generates and stores vectors for questions.
type embeddingProcessor struct {
	questions  storage.QuestionRepository
	embeddings storage.EmbeddingRepository
	embedder   ai.Embedder
	model      string
	onStored   func()
	logger     *slog.Logger
}

var _ processor = (*embeddingProcessor)(nil)

// newEmbeddingProcessor creates a new embedding processor.
// onStored, if set, runs after vectors were written.
func newEmbeddingProcessor(
	questions storage.QuestionRepository,
	embeddings storage.EmbeddingRepository,
	embedder ai.Embedder,
	model string,
	onStored func(),
	logger *slog.Logger,
) (processor, error) {
	if questions == nil {
		return nil, ErrQuestionRepositoryRequired
	}
	if embeddings == nil {
		return nil, ErrEmbeddingRepositoryRequired
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &embeddingProcessor{
		questions:  questions,
		embeddings: embeddings,
		embedder:   embedder,
		model:      model,
		onStored:   onStored,
		logger:     logger.With("processor", "embeddings"),
	}, nil
}

// process generates embeddings for the specified questions.
func (ep *embeddingProcessor) process(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	ep.logger.Info("processing questions for embeddings", "questions", len(ids))

	slices.Sort(ids)
	questions, err := ep.questions.GetQuestions(ctx, ids...)
	if err != nil {
		ep.logger.Error("error retrieving questions", "err", err)
		return err
	}

	texts := make([]string, len(questions))
	for i, q := range questions {
		texts[i] = q.Text
	}

	ep.logger.Debug("generating embeddings for questions", "questions", len(texts))
	vectors, err := ep.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		ep.logger.Error("error generating embeddings", "err", err)
		return err
	}
	if len(vectors) != len(questions) {
		return fmt.Errorf("%w: expected %d embeddings, received %d", ErrResultMismatch, len(questions), len(vectors))
	}

	embeddings := make([]*core.Embedding, len(questions))
	for i, q := range questions {
		embeddings[i] = &core.Embedding{QuestionID: q.ID, Vector: vectors[i], Model: ep.model}
	}
	if err := ep.embeddings.PutEmbeddings(ctx, embeddings...); err != nil {
		return err
	}

	if ep.onStored != nil {
		ep.onStored()
	}
	return nil
}
