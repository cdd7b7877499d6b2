package ingestion

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/masterdb/ai"
	"github.com/poiesic/masterdb/core"
	"github.com/poiesic/masterdb/storage"
)

// DefaultBatchSize is the number of questions handed to one processor job.
const DefaultBatchSize = 64

// Invalidator is notified when stored vectors change.
type Invalidator interface {
	Invalidate()
}

// Pipeline orchestrates the ingestion and processing of questions.
// It manages concurrent processing of embeddings and classification.
type Pipeline struct {
	questions     storage.QuestionRepository
	embeddings    storage.EmbeddingRepository
	embeddingPool *ants.Pool
	classifyPool  *ants.Pool
	embeddingProc processor
	classifyProc  processor
	model         string
	batchSize     int
	classify      bool
	invalidator   Invalidator
	logger        *slog.Logger

	wg   sync.WaitGroup
	mu   sync.Mutex
	errs []error
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for concurrent processing.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}

		// Release old pools
		if p.embeddingPool != nil {
			p.embeddingPool.Release()
		}
		if p.classifyPool != nil {
			p.classifyPool.Release()
		}

		embeddingPool, err := ants.NewPool(size)
		if err != nil {
			return err
		}

		classifyPool, err := ants.NewPool(size)
		if err != nil {
			embeddingPool.Release()
			return err
		}

		p.embeddingPool = embeddingPool
		p.classifyPool = classifyPool
		return nil
	}
}

// WithBatchSize sets the number of questions per processor job.
// Default is DefaultBatchSize.
func WithBatchSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		p.batchSize = size
		return nil
	}
}

// WithEmbeddingModel records the model name stored with each vector.
func WithEmbeddingModel(model string) Option {
	return func(p *Pipeline) error {
		p.model = model
		return nil
	}
}

// WithClassification enables or disables classification of questions
// imported without a legacy mid category. Default is enabled.
func WithClassification(enabled bool) Option {
	return func(p *Pipeline) error {
		p.classify = enabled
		return nil
	}
}

// WithInvalidator registers a cache to invalidate after vectors are stored.
func WithInvalidator(inv Invalidator) Option {
	return func(p *Pipeline) error {
		p.invalidator = inv
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(
	questions storage.QuestionRepository,
	embeddings storage.EmbeddingRepository,
	provider ai.AIProvider,
	opts ...Option,
) (*Pipeline, error) {
	if questions == nil {
		return nil, ErrQuestionRepositoryRequired
	}
	if embeddings == nil {
		return nil, ErrEmbeddingRepositoryRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}

	embeddingPool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	classifyPool, err := ants.NewPool(poolSize)
	if err != nil {
		embeddingPool.Release()
		return nil, err
	}

	p := &Pipeline{
		questions:     questions,
		embeddings:    embeddings,
		embeddingPool: embeddingPool,
		classifyPool:  classifyPool,
		batchSize:     DefaultBatchSize,
		classify:      true,
		logger:        slog.Default(),
	}

	// Apply options (may override defaults)
	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}

	// Create processors after options are applied (so they get final config)
	var onStored func()
	if p.invalidator != nil {
		onStored = p.invalidator.Invalidate
	}
	embeddingProc, err := newEmbeddingProcessor(questions, embeddings, provider.Embedder(), p.model, onStored, p.logger)
	if err != nil {
		p.Release()
		return nil, err
	}
	p.embeddingProc = embeddingProc

	if p.classify && provider.Classifier() != nil {
		classifyProc, err := newClassificationProcessor(questions, provider.Classifier(), p.logger)
		if err != nil {
			p.Release()
			return nil, err
		}
		p.classifyProc = classifyProc
	}

	return p, nil
}

// Ingest adds questions to storage and processes them asynchronously.
// Questions already present have their text, category and legacy categories
// updated and are re-embedded. Processing errors are collected by Wait.
func (p *Pipeline) Ingest(ctx context.Context, questions ...*core.Question) ([]*core.Question, error) {
	added, err := p.questions.AddQuestions(ctx, questions...)
	if err != nil {
		return nil, err
	}
	if len(added) == 0 {
		return added, nil
	}

	ids := make([]string, len(added))
	for i, q := range added {
		ids[i] = q.ID
	}

	// Jobs outlive the caller's request, so they run on a detached context.
	jobCtx := context.WithoutCancel(ctx)
	for start := 0; start < len(ids); start += p.batchSize {
		batch := ids[start:min(start+p.batchSize, len(ids))]
		p.submit(p.embeddingPool, "embeddings", func() error {
			return p.embeddingProc.process(jobCtx, batch...)
		})
		if p.classifyProc != nil {
			p.submit(p.classifyPool, "classification", func() error {
				return p.classifyProc.process(jobCtx, batch...)
			})
		}
	}

	return added, nil
}

func (p *Pipeline) submit(pool *ants.Pool, name string, job func() error) {
	p.wg.Add(1)
	err := pool.Submit(func() {
		defer p.wg.Done()
		if err := job(); err != nil {
			p.logger.Error("error processing "+name, "err", err)
			p.record(err)
		}
	})
	if err != nil {
		p.wg.Done()
		p.logger.Error("error submitting "+name+" job", "err", err)
		p.record(err)
	}
}

func (p *Pipeline) record(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errs = append(p.errs, err)
}

// Wait blocks until every submitted job has finished and returns the
// processing errors collected since the previous Wait.
func (p *Pipeline) Wait() error {
	p.wg.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	err := errors.Join(p.errs...)
	p.errs = nil
	return err
}

// Release releases resources including worker pools.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.embeddingPool != nil {
		p.embeddingPool.Release()
	}
	if p.classifyPool != nil {
		p.classifyPool.Release()
	}
}
