package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/poiesic/masterdb/ai"
	"github.com/poiesic/masterdb/storage"
)

// classificationProcessor assigns legacy categories to questions imported without them.
type classificationProcessor struct {
	questions  storage.QuestionRepository
	classifier ai.Classifier
	logger     *slog.Logger
}

var _ processor = (*classificationProcessor)(nil)

// newClassificationProcessor creates a new classification processor.
func newClassificationProcessor(questions storage.QuestionRepository, classifier ai.Classifier, logger *slog.Logger) (processor, error) {
	if questions == nil {
		return nil, ErrQuestionRepositoryRequired
	}
	if classifier == nil {
		return nil, fmt.Errorf("classifier required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &classificationProcessor{
		questions:  questions,
		classifier: classifier,
		logger:     logger.With("processor", "classification"),
	}, nil
}

// process classifies the specified questions. Questions that already carry a
// legacy mid category, and labels the classifier could not place, are left alone.
// A failing update does not stop the remaining questions.
func (cp *classificationProcessor) process(ctx context.Context, ids ...string) error {
	slices.Sort(ids)
	questions, err := cp.questions.GetQuestions(ctx, ids...)
	if err != nil {
		return err
	}

	var (
		pending []string
		texts   []string
	)
	for _, q := range questions {
		if q.HasLegacyCategory() {
			continue
		}
		pending = append(pending, q.ID)
		texts = append(texts, q.Text)
	}
	if len(pending) == 0 {
		return nil
	}

	cp.logger.Info("classifying questions", "questions", len(pending))
	labels, err := cp.classifier.ClassifyTexts(ctx, texts)
	if err != nil {
		cp.logger.Error("classification failed", "err", err)
		return err
	}
	if len(labels) != len(pending) {
		return fmt.Errorf("%w: expected %d labels, received %d", ErrResultMismatch, len(pending), len(labels))
	}

	var errs []error
	for i, id := range pending {
		label := ai.Canonical(labels[i])
		if !label.IsClassified() {
			cp.logger.Debug("question left unclassified", "question_id", id)
			continue
		}
		if err := cp.questions.UpdateLegacyCategories(ctx, id, label.Mid, label.Sub); err != nil {
			errs = append(errs, fmt.Errorf("question %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}
