package reembed

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/poiesic/masterdb/ai"
	"github.com/poiesic/masterdb/core"
	"github.com/poiesic/masterdb/storage"
)

// ClassifyResult summarizes a reclassification run.
type ClassifyResult struct {
	Processed  int
	Classified int
	// Unplaced counts questions the classifier could not place.
	Unplaced int
}

// Reclassifier assigns legacy mid/sub categories to questions that have none.
type Reclassifier struct {
	questions  storage.QuestionRepository
	classifier ai.Classifier
	config     *Config
	progress   io.Writer
	dryRun     bool
	logger     *slog.Logger
}

// ReclassifierOption configures a Reclassifier.
type ReclassifierOption func(*Reclassifier)

// WithClassifyConfig replaces the batch configuration.
func WithClassifyConfig(config *Config) ReclassifierOption {
	return func(r *Reclassifier) {
		if config != nil {
			r.config = config
		}
	}
}

// WithClassifyProgress writes progress lines to w.
func WithClassifyProgress(w io.Writer) ReclassifierOption {
	return func(r *Reclassifier) {
		r.progress = w
	}
}

// WithDryRun classifies without storing the labels.
func WithDryRun(dryRun bool) ReclassifierOption {
	return func(r *Reclassifier) {
		r.dryRun = dryRun
	}
}

// WithClassifyLogger sets a custom logger.
// Default is slog.Default().
func WithClassifyLogger(logger *slog.Logger) ReclassifierOption {
	return func(r *Reclassifier) {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger.With("component", "reclassify")
	}
}

// NewReclassifier creates a Reclassifier.
func NewReclassifier(questions storage.QuestionRepository, classifier ai.Classifier, opts ...ReclassifierOption) (*Reclassifier, error) {
	if questions == nil {
		return nil, ErrRepositoryRequired
	}
	if classifier == nil {
		return nil, ErrClassifierRequired
	}
	r := &Reclassifier{
		questions:  questions,
		classifier: classifier,
		config:     DefaultConfig(),
		progress:   io.Discard,
		logger:     slog.Default().With("component", "reclassify"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run classifies up to limit unclassified questions; limit <= 0 means all.
// Labels outside the legacy scheme are treated as unplaced and left unstored.
func (r *Reclassifier) Run(ctx context.Context, limit int) (*ClassifyResult, error) {
	questions, err := r.questions.UnclassifiedQuestions(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query questions: %w", err)
	}

	result := &ClassifyResult{}
	if len(questions) == 0 {
		fmt.Fprintf(r.progress, "No unclassified questions\n")
		return result, nil
	}

	tracker := NewProgressTracker(r.progress, "Classifying", len(questions), r.config.ReportInterval)
	tracker.Start()

	batchSize := r.config.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	for start := 0; start < len(questions); start += batchSize {
		batch := questions[start:min(start+batchSize, len(questions))]
		if err := r.classifyBatch(ctx, batch, result); err != nil {
			return result, err
		}
		tracker.Increment(len(batch))
	}
	tracker.Finish()

	r.logger.Info("classification complete",
		"processed", result.Processed,
		"classified", result.Classified,
		"unplaced", result.Unplaced,
		"dry_run", r.dryRun)
	return result, nil
}

func (r *Reclassifier) classifyBatch(ctx context.Context, batch []*core.Question, result *ClassifyResult) error {
	texts := make([]string, len(batch))
	for i, q := range batch {
		texts[i] = q.Text
	}

	var labels []ai.Classification
	err := RetryWithBackoff(ctx, r.config.Retry, r.logger, func() error {
		var err error
		labels, err = r.classifier.ClassifyTexts(ctx, texts)
		if err != nil {
			return err
		}
		if len(labels) != len(batch) {
			return fmt.Errorf("%w: expected %d labels, got %d", ErrResultMismatch, len(batch), len(labels))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to classify batch: %w", err)
	}

	for i, q := range batch {
		result.Processed++
		label := ai.Canonical(labels[i])
		if !label.IsClassified() {
			result.Unplaced++
			continue
		}
		result.Classified++
		if r.dryRun {
			r.logger.Debug("would classify", "question_id", q.ID, "mid", label.Mid, "sub", label.Sub)
			continue
		}
		if err := r.questions.UpdateLegacyCategories(ctx, q.ID, label.Mid, label.Sub); err != nil {
			return fmt.Errorf("question %s: %w", q.ID, err)
		}
	}
	return nil
}
