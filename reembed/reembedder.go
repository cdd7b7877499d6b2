// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package reembed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/poiesic/masterdb/ai"
	"github.com/poiesic/masterdb/core"
	"github.com/poiesic/masterdb/storage"
)

// Mode selects which questions a Reembedder processes.
type Mode int

const (
	// ModeMissing embeds only questions without a stored vector.
	ModeMissing Mode = iota
	// ModeAll replaces the vector of every question.
	ModeAll
)

// Config holds configuration for batch jobs.
type Config struct {
	// BatchSize is the number of questions to process in each batch
	BatchSize int

	// ReportInterval is how often to report progress (number of questions)
	ReportInterval int

	// Retry governs retries of failed service calls
	Retry RetryPolicy
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      DefaultBatchSize,
		ReportInterval: 100,
		Retry:          DefaultRetryPolicy(),
	}
}

// Invalidator is notified when stored vectors change.
type Invalidator interface {
	Invalidate()
}

// Result summarizes a re-embedding run.
type Result struct {
	Embedded int
	// Categories lists the categories with changed vectors. Their clusters
	// must be recomputed.
	Categories []core.Category
	Elapsed    time.Duration
}

// Reembedder fills in or replaces the embeddings of stored questions.
type Reembedder struct {
	questions   storage.QuestionRepository
	embeddings  storage.EmbeddingRepository
	embedder    ai.Embedder
	config      *Config
	model       string
	progress    io.Writer
	invalidator Invalidator
	logger      *slog.Logger
}

// Option configures a Reembedder.
type Option func(*Reembedder) error

// WithConfig replaces the batch configuration.
func WithConfig(config *Config) Option {
	return func(r *Reembedder) error {
		if config != nil {
			r.config = config
		}
		return nil
	}
}

// WithProgress writes progress lines to w.
func WithProgress(w io.Writer) Option {
	return func(r *Reembedder) error {
		r.progress = w
		return nil
	}
}

// WithModel records the model name stored with each vector.
func WithModel(model string) Option {
	return func(r *Reembedder) error {
		r.model = model
		return nil
	}
}

// WithInvalidator registers a cache to invalidate once vectors changed.
func WithInvalidator(inv Invalidator) Option {
	return func(r *Reembedder) error {
		r.invalidator = inv
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reembedder) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger.With("component", "reembed")
		return nil
	}
}

// NewReembedder creates a Reembedder.
func NewReembedder(
	questions storage.QuestionRepository,
	embeddings storage.EmbeddingRepository,
	embedder ai.Embedder,
	opts ...Option,
) (*Reembedder, error) {
	if questions == nil || embeddings == nil {
		return nil, ErrRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	r := &Reembedder{
		questions:  questions,
		embeddings: embeddings,
		embedder:   embedder,
		config:     DefaultConfig(),
		progress:   io.Discard,
		logger:     slog.Default().With("component", "reembed"),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Run embeds the questions selected by mode in batches.
// When some batches were stored before a failure, the partial result is
// returned with the error and the cache is still invalidated.
func (r *Reembedder) Run(ctx context.Context, mode Mode) (*Result, error) {
	ids, categoryOf, err := r.selectQuestions(ctx, mode)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	if len(ids) == 0 {
		fmt.Fprintf(r.progress, "No questions to embed\n")
		return result, nil
	}

	fmt.Fprintf(r.progress, "Starting embedding of %d questions (batch size: %d)\n",
		len(ids), r.config.BatchSize)

	tracker := NewProgressTracker(r.progress, "Embedding", len(ids), r.config.ReportInterval)
	tracker.Start()

	processor := NewBatchProcessor(r.embeddings, r.embedder, r.model, r.config.Retry, r.logger)
	iterator := NewQuestionIterator(r.questions, r.config.BatchSize)
	changed := make(map[core.Category]bool)

	err = iterator.ForEach(ctx, ids, func(batch []*core.Question) error {
		if err := processor.Process(ctx, batch); err != nil {
			return fmt.Errorf("failed to process batch: %w", err)
		}
		for _, q := range batch {
			changed[categoryOf[q.ID]] = true
		}
		result.Embedded += len(batch)
		tracker.Increment(len(batch))
		return nil
	})

	for c := range changed {
		result.Categories = append(result.Categories, c)
	}
	slices.Sort(result.Categories)
	result.Elapsed = tracker.Elapsed()

	if result.Embedded > 0 && r.invalidator != nil {
		r.invalidator.Invalidate()
	}
	if err != nil {
		r.logger.Error("embedding stopped", "embedded", result.Embedded, "err", err)
		return result, err
	}

	tracker.Finish()
	fmt.Fprintf(r.progress, "Embedding complete. Processed %d questions in %v (%.1f questions/sec)\n",
		result.Embedded, result.Elapsed.Round(time.Second), float64(result.Embedded)/result.Elapsed.Seconds())
	r.logger.Info("embedding complete", "embedded", result.Embedded, "categories", result.Categories)

	return result, nil
}

// selectQuestions returns the IDs to embed in category then ID order, and the
// category of each.
func (r *Reembedder) selectQuestions(ctx context.Context, mode Mode) ([]string, map[string]core.Category, error) {
	var have map[string]bool
	if mode == ModeMissing {
		existing, err := r.embeddings.EmbeddingIDs(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to list embeddings: %w", err)
		}
		have = make(map[string]bool, len(existing))
		for _, id := range existing {
			have[id] = true
		}
	}

	var ids []string
	categoryOf := make(map[string]core.Category)
	for _, c := range core.Categories {
		members, err := r.questions.QuestionIDsByCategory(ctx, c)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to query questions: %w", err)
		}
		for _, id := range members {
			if have[id] {
				continue
			}
			ids = append(ids, id)
			categoryOf[id] = c
		}
	}
	return ids, categoryOf, nil
}
