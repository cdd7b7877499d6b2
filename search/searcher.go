package search

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/poiesic/masterdb/ai"
	"github.com/poiesic/masterdb/core"
	"github.com/poiesic/masterdb/storage"
	"github.com/poiesic/masterdb/vectors"
)

// Filter narrows the candidate pool of a vector search.
type Filter struct {
	// Exclude lists question IDs that must not appear in results.
	Exclude []string
	// Category restricts candidates to one category. Empty means all.
	Category core.Category
}

// MasterView is a master question with its representative and the other members of its cluster.
type MasterView struct {
	Master         *core.MasterQuestion
	Representative *core.Question
	Variants       []*core.Question
}

// Searcher answers similarity, keyword and term queries over survey questions.
type Searcher struct {
	vectors   *vectors.Store
	questions storage.QuestionRepository
	masters   storage.MasterRepository
	tags      storage.TagRepository
	taxonomy  storage.TaxonomyRepository
	embedder  ai.Embedder
	logger    *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger.With("component", "searcher")
		return nil
	}
}

// WithEmbedder enables SearchQuery.
func WithEmbedder(embedder ai.Embedder) Option {
	return func(s *Searcher) error {
		s.embedder = embedder
		return nil
	}
}

// WithTags enables SearchByTerm.
func WithTags(tags storage.TagRepository, taxonomy storage.TaxonomyRepository) Option {
	return func(s *Searcher) error {
		s.tags = tags
		s.taxonomy = taxonomy
		return nil
	}
}

// NewSearcher creates a new searcher over the vector cache and the relational store.
func NewSearcher(
	store *vectors.Store,
	questions storage.QuestionRepository,
	masters storage.MasterRepository,
	opts ...Option,
) (*Searcher, error) {
	if store == nil {
		return nil, ErrVectorStoreRequired
	}
	if questions == nil || masters == nil {
		return nil, ErrQuestionRepositoryRequired
	}

	s := &Searcher{
		vectors:   store,
		questions: questions,
		masters:   masters,
		logger:    slog.Default().With("component", "searcher"),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Search returns up to k questions most similar to query.
func (s *Searcher) Search(ctx context.Context, query []float32, k int, filter Filter) ([]core.ScoredQuestion, error) {
	return s.SearchWithMonitor(ctx, query, k, filter, nil)
}

// SearchWithMonitor is Search with a monitor receiving callbacks at each stage.
//
// Candidates are every cached non-zero vector not excluded by filter. Results
// are ordered by descending cosine similarity, then ascending question ID.
func (s *Searcher) SearchWithMonitor(ctx context.Context, query []float32, k int, filter Filter, monitor SearchMonitor) ([]core.ScoredQuestion, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	monitor.Start(k, filter)

	if k <= 0 {
		monitor.Finish(nil)
		return []core.ScoredQuestion{}, nil
	}

	if err := s.vectors.Load(ctx); err != nil {
		return nil, err
	}
	snap := s.vectors.Snapshot()
	if snap.Len() == 0 {
		s.logger.Debug("vector cache is empty")
		monitor.Finish(nil)
		return []core.ScoredQuestion{}, nil
	}

	if len(query) != snap.Dimension() {
		return nil, fmt.Errorf("%w: query has %d dimensions, cache has %d",
			storage.ErrDimensionMismatch, len(query), snap.Dimension())
	}
	unit, ok := core.NormalizeVector(query)
	if !ok {
		return nil, ErrZeroQuery
	}

	// Positions of the candidate pool in the snapshot
	var positions []int
	if filter.Category != "" {
		if err := core.ValidateCategory(filter.Category); err != nil {
			return nil, err
		}
		ids, err := s.questions.QuestionIDsByCategory(ctx, filter.Category)
		if err != nil {
			s.logger.Error("error resolving category members", "category", filter.Category, "err", err)
			return nil, err
		}
		positions = make([]int, 0, len(ids))
		for _, id := range ids {
			if i, ok := snap.Index(id); ok {
				positions = append(positions, i)
			}
		}
		monitor.AfterCategoryFilter(filter.Category, len(ids))
	} else {
		positions = make([]int, snap.Len())
		for i := range positions {
			positions[i] = i
		}
	}

	excluded := make(map[string]struct{}, len(filter.Exclude))
	for _, id := range filter.Exclude {
		excluded[id] = struct{}{}
	}

	results := make([]core.ScoredQuestion, 0, len(positions))
	skipped := 0
	for _, i := range positions {
		id := snap.ID(i)
		if _, ok := excluded[id]; ok {
			continue
		}
		if snap.IsZero(i) || len(snap.Vector(i)) != len(unit) {
			skipped++
			continue
		}
		results = append(results, core.ScoredQuestion{
			QuestionID: id,
			Score:      core.Dot(unit, snap.Vector(i)),
		})
	}
	monitor.AfterScoring(len(results), skipped)

	sortScored(results)
	if len(results) > k {
		results = results[:k]
	}

	monitor.Finish(results)
	return results, nil
}

// SearchByQuestion returns up to k neighbours of a stored question, never
// including the question itself. With sameCategory the pool is restricted to
// the question's own category.
func (s *Searcher) SearchByQuestion(ctx context.Context, questionID string, k int, sameCategory bool) ([]core.ScoredQuestion, error) {
	if err := s.vectors.Load(ctx); err != nil {
		return nil, err
	}

	query, err := s.questionVector(ctx, questionID)
	if err != nil {
		return nil, err
	}

	filter := Filter{Exclude: []string{questionID}}
	if sameCategory {
		q, err := s.questions.GetQuestion(ctx, questionID)
		if err != nil {
			return nil, fmt.Errorf("question %s: %w", questionID, err)
		}
		filter.Category = q.Category
	}

	return s.Search(ctx, query, k, filter)
}

// questionVector returns the cached unit vector of a question, falling back
// to a direct repository read for questions added after the cache was loaded.
func (s *Searcher) questionVector(ctx context.Context, questionID string) ([]float32, error) {
	if v, ok := s.vectors.Lookup(questionID); ok {
		return v, nil
	}
	if _, cached := s.vectors.Snapshot().Index(questionID); cached {
		return nil, fmt.Errorf("%w: %s has a zero vector", ErrNoVector, questionID)
	}

	raw, err := s.vectors.Get(ctx, questionID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return nil, fmt.Errorf("%w: %s", ErrNoVector, questionID)
	case errors.Is(err, storage.ErrCorruptVector), errors.Is(err, storage.ErrDimensionMismatch):
		return nil, fmt.Errorf("%w: %s: %w", ErrNoVector, questionID, err)
	case err != nil:
		return nil, err
	}
	if dim := s.vectors.Snapshot().Dimension(); dim > 0 && len(raw) != dim {
		return nil, fmt.Errorf("%w: %s: %w: %d dimensions, cache has %d",
			ErrNoVector, questionID, storage.ErrDimensionMismatch, len(raw), dim)
	}
	unit, ok := core.NormalizeVector(raw)
	if !ok {
		return nil, fmt.Errorf("%w: %s has a zero vector", ErrNoVector, questionID)
	}
	return unit, nil
}

// SearchQuery embeds text and searches with the resulting vector.
func (s *Searcher) SearchQuery(ctx context.Context, text string, k int, filter Filter) ([]core.ScoredQuestion, error) {
	if s.embedder == nil {
		return nil, ErrEmbedderRequired
	}
	query, err := s.embedder.EmbedText(ctx, text)
	if err != nil {
		s.logger.Error("error generating embedding for query", "query", text, "err", err)
		return nil, err
	}
	return s.Search(ctx, query, k, filter)
}

// FindClusterMembers returns every question sharing masterID, representative first.
// Returns storage.ErrNotFound if the master does not exist.
func (s *Searcher) FindClusterMembers(ctx context.Context, masterID string) ([]*core.Question, error) {
	if _, err := s.masters.GetMaster(ctx, masterID); err != nil {
		return nil, fmt.Errorf("master %s: %w", masterID, err)
	}
	return s.questions.QuestionsByMaster(ctx, masterID)
}

// MasterWithVariants returns a master with its representative question and the remaining members.
func (s *Searcher) MasterWithVariants(ctx context.Context, masterID string) (*MasterView, error) {
	master, err := s.masters.GetMaster(ctx, masterID)
	if err != nil {
		return nil, fmt.Errorf("master %s: %w", masterID, err)
	}
	members, err := s.questions.QuestionsByMaster(ctx, masterID)
	if err != nil {
		return nil, err
	}

	view := &MasterView{Master: master, Variants: make([]*core.Question, 0, len(members))}
	for _, q := range members {
		if q.ID == master.RepresentativeQuestionID {
			view.Representative = q
			continue
		}
		view.Variants = append(view.Variants, q)
	}
	return view, nil
}

// SearchText returns questions containing every significant word of query,
// in ascending question ID order. limit <= 0 returns all matches.
func (s *Searcher) SearchText(ctx context.Context, query string, category core.Category, limit int) ([]*core.Question, error) {
	terms := queryTerms(query)
	if len(terms) == 0 {
		return nil, fmt.Errorf("%w: no searchable words in %q", storage.ErrInvalidQuery, query)
	}

	// The longest term is the most selective prefilter
	anchor := slices.MaxFunc(terms, func(a, b string) int { return cmp.Compare(len(a), len(b)) })
	candidates, err := s.questions.SearchText(ctx, anchor, category, 0)
	if err != nil {
		return nil, err
	}

	out := make([]*core.Question, 0, len(candidates))
	for _, q := range candidates {
		if !containsAllTerms(q.Text, terms) {
			continue
		}
		out = append(out, q)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	s.logger.Debug("text search", "query", query, "candidates", len(candidates), "matches", len(out))
	return out, nil
}

// SearchByTerm returns questions tagged with the taxonomy term text.
// An empty tagType matches tags of any type. limit <= 0 returns all.
func (s *Searcher) SearchByTerm(ctx context.Context, term string, tagType core.TagType, limit int) ([]*core.Question, error) {
	if s.tags == nil || s.taxonomy == nil {
		return nil, ErrTagsRequired
	}
	t, err := s.taxonomy.FindTerm(ctx, term)
	if err != nil {
		return nil, fmt.Errorf("term %q: %w", term, err)
	}
	ids, err := s.tags.QuestionIDsByTerm(ctx, t.ID, tagType, limit)
	if err != nil {
		return nil, err
	}
	return s.questions.GetQuestions(ctx, ids...)
}

// Statistics reports store counts, with the embedding count taken from the vector cache.
func (s *Searcher) Statistics(ctx context.Context) (*core.Statistics, error) {
	stats, err := s.questions.Statistics(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.vectors.Load(ctx); err != nil {
		return nil, err
	}
	stats.Embeddings = s.vectors.Len()
	return stats, nil
}

// Questions resolves scored hits to their question records, preserving order.
func (s *Searcher) Questions(ctx context.Context, hits []core.ScoredQuestion) ([]*core.Question, error) {
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.QuestionID
	}
	found, err := s.questions.GetQuestions(ctx, ids...)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*core.Question, len(found))
	for _, q := range found {
		byID[q.ID] = q
	}
	out := make([]*core.Question, 0, len(hits))
	for _, h := range hits {
		if q, ok := byID[h.QuestionID]; ok {
			out = append(out, q)
		}
	}
	return out, nil
}

// sortScored orders hits by descending score, then ascending question ID.
func sortScored(hits []core.ScoredQuestion) {
	slices.SortFunc(hits, func(a, b core.ScoredQuestion) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.QuestionID, b.QuestionID)
	})
}
