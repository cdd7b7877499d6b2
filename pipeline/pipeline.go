package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/masterdb/cluster"
	"github.com/poiesic/masterdb/consolidate"
	"github.com/poiesic/masterdb/core"
	"github.com/poiesic/masterdb/storage"
	"github.com/poiesic/masterdb/vectors"
)

// CategoryReport describes the run of one category.
type CategoryReport struct {
	Category  core.Category
	Questions int
	Clusters  int
	// Singletons counts clusters with one member.
	Singletons int
	Excluded   []cluster.Exclusion
	RunID      string
	// Fingerprint identifies the question -> master mapping of the run.
	Fingerprint string
	// Unchanged is true when the fingerprint matches the previous run.
	Unchanged bool
	Duration  time.Duration
	Err       error
}

// Reduction returns the share of questions folded into another master.
func (r *CategoryReport) Reduction() float64 {
	clustered := r.Questions - len(r.Excluded)
	if clustered == 0 {
		return 0
	}
	return 1 - float64(r.Clusters)/float64(clustered)
}

// Report collects the category reports of a run in category order.
type Report struct {
	Categories []*CategoryReport
}

// Failed returns the reports of categories that did not complete.
func (r *Report) Failed() []*CategoryReport {
	var out []*CategoryReport
	for _, c := range r.Categories {
		if c.Err != nil {
			out = append(out, c)
		}
	}
	return out
}

// Pipeline runs cluster and consolidation jobs per category.
type Pipeline struct {
	vectors      *vectors.Store
	questions    storage.QuestionRepository
	masters      storage.MasterRepository
	engine       *cluster.Engine
	consolidator *consolidate.Consolidator
	pool         *ants.Pool
	logger       *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithWorkers sets the number of categories processed concurrently.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithWorkers(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if p.pool != nil {
			p.pool.Release()
		}
		p.pool = pool
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
		p.logger = logger.With("component", "pipeline")
		return nil
	}
}

// WithRunHistory lets the pipeline compare each run with the category's
// previous run and flag unchanged results.
func WithRunHistory(masters storage.MasterRepository) Option {
	return func(p *Pipeline) error {
		p.masters = masters
		return nil
	}
}

// NewPipeline creates a consolidation pipeline.
func NewPipeline(
	store *vectors.Store,
	questions storage.QuestionRepository,
	engine *cluster.Engine,
	consolidator *consolidate.Consolidator,
	opts ...Option,
) (*Pipeline, error) {
	if store == nil {
		return nil, ErrVectorStoreRequired
	}
	if questions == nil {
		return nil, ErrQuestionRepositoryRequired
	}
	if engine == nil {
		return nil, ErrEngineRequired
	}
	if consolidator == nil {
		return nil, ErrConsolidatorRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		vectors:      store,
		questions:    questions,
		engine:       engine,
		consolidator: consolidator,
		pool:         pool,
		logger:       slog.Default().With("component", "pipeline"),
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			p.Release()
			return nil, err
		}
	}

	return p, nil
}

// Run recomputes the given categories, or every category when none is given.
// The returned error joins the failures of individual categories; the report
// always covers every requested category.
func (p *Pipeline) Run(ctx context.Context, categories ...core.Category) (*Report, error) {
	if len(categories) == 0 {
		categories = core.Categories
	}
	categories = slices.Clone(categories)
	slices.Sort(categories)
	categories = slices.Compact(categories)
	for _, c := range categories {
		if err := core.ValidateCategory(c); err != nil {
			return nil, err
		}
	}

	if err := p.vectors.Load(ctx); err != nil {
		return nil, err
	}

	// Question IDs are read up front; the jobs then only touch the cache
	// until they persist.
	members := make(map[core.Category][]string, len(categories))
	for _, c := range categories {
		ids, err := p.questions.QuestionIDsByCategory(ctx, c)
		if err != nil {
			return nil, fmt.Errorf("category %s: %w", c, err)
		}
		members[c] = ids
	}

	report := &Report{Categories: make([]*CategoryReport, len(categories))}
	var wg sync.WaitGroup
	for i, c := range categories {
		cr := &CategoryReport{Category: c, Questions: len(members[c])}
		report.Categories[i] = cr

		wg.Add(1)
		err := p.pool.Submit(func() {
			defer wg.Done()
			start := time.Now()
			cr.Err = p.runCategory(ctx, cr, members[c])
			cr.Duration = time.Since(start)
		})
		if err != nil {
			wg.Done()
			cr.Err = fmt.Errorf("submit: %w", err)
		}
	}
	wg.Wait()

	var errs []error
	for _, cr := range report.Categories {
		if cr.Err != nil {
			p.logger.Error("category failed", "category", cr.Category, "err", cr.Err)
			errs = append(errs, fmt.Errorf("category %s: %w", cr.Category, cr.Err))
		}
	}
	return report, errors.Join(errs...)
}

func (p *Pipeline) runCategory(ctx context.Context, cr *CategoryReport, ids []string) error {
	found, missing := p.vectors.Points(ids)
	points := make([]cluster.Point, 0, len(ids))
	for _, e := range found {
		points = append(points, cluster.Point{QuestionID: e.QuestionID, Vector: e.Vector})
	}
	for _, id := range missing {
		points = append(points, cluster.Point{QuestionID: id})
	}

	result, err := p.engine.Cluster(ctx, cr.Category, points)
	if err != nil {
		return err
	}
	cr.Excluded = result.Excluded
	cr.Clusters = len(result.Clusters)
	for _, size := range result.Sizes() {
		if size == 1 {
			cr.Singletons++
		}
	}

	var previous string
	if p.masters != nil {
		last, err := p.masters.LastRun(ctx, cr.Category)
		switch {
		case err == nil:
			previous = last.Fingerprint
		case !errors.Is(err, storage.ErrNotFound):
			return err
		}
	}

	plan, err := p.consolidator.Run(ctx, cr.Category, result.Assignments, p.vectors)
	if err != nil {
		return err
	}
	cr.RunID = plan.RunID
	cr.Fingerprint = plan.Fingerprint
	cr.Unchanged = previous != "" && previous == plan.Fingerprint

	p.logger.Info("category recomputed",
		"category", cr.Category,
		"questions", cr.Questions,
		"clusters", cr.Clusters,
		"excluded", len(cr.Excluded),
		"unchanged", cr.Unchanged)
	return nil
}

// Release releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}
