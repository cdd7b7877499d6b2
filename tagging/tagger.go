package tagging

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/poiesic/masterdb/core"
	"github.com/poiesic/masterdb/search"
	"github.com/poiesic/masterdb/storage"
)

const (
	// DefaultTopK is the number of neighbours consulted for similarity voting.
	DefaultTopK = 5
	// DefaultMinSimilarity is the lowest neighbour similarity that may vote.
	DefaultMinSimilarity = 0.7
	// DefaultClusterConfidence is the confidence of inherited cluster tags.
	DefaultClusterConfidence = 0.9
	// DefaultMaxSuggestions caps similarity suggestions per tag type.
	DefaultMaxSuggestions = 5
)

// SimilarFinder finds the nearest neighbours of a stored question.
// *search.Searcher satisfies it.
type SimilarFinder interface {
	SearchByQuestion(ctx context.Context, questionID string, k int, sameCategory bool) ([]core.ScoredQuestion, error)
}

var _ SimilarFinder = (*search.Searcher)(nil)

// Suggestions holds ranked tag suggestions per tag type.
type Suggestions map[core.TagType][]core.TagSuggestion

// Top returns the first suggestion of a tag type.
func (s Suggestions) Top(tagType core.TagType) (core.TagSuggestion, bool) {
	list := s[tagType]
	if len(list) == 0 {
		return core.TagSuggestion{}, false
	}
	return list[0], true
}

// Len returns the total number of suggestions.
func (s Suggestions) Len() int {
	n := 0
	for _, list := range s {
		n += len(list)
	}
	return n
}

func newSuggestions() Suggestions {
	s := make(Suggestions, len(core.TagTypes))
	for _, t := range core.TagTypes {
		s[t] = []core.TagSuggestion{}
	}
	return s
}

// AutoTagger suggests and applies taxonomy tags.
type AutoTagger struct {
	questions storage.QuestionRepository
	masters   storage.MasterRepository
	tags      storage.TagRepository
	finder    SimilarFinder

	topK              int
	minSimilarity     float64
	clusterConfidence float64
	maxSuggestions    int
	logger            *slog.Logger
}

// Option configures an AutoTagger.
type Option func(*AutoTagger) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(a *AutoTagger) error {
		if logger == nil {
			logger = slog.Default()
		}
		a.logger = logger.With("component", "auto-tagger")
		return nil
	}
}

// WithTopK sets the number of neighbours consulted for similarity voting.
// Vote sums are divided by k to form confidences.
func WithTopK(k int) Option {
	return func(a *AutoTagger) error {
		if k < 1 {
			return fmt.Errorf("%w: top k must be positive, got %d", ErrInvalidOption, k)
		}
		a.topK = k
		return nil
	}
}

// WithMinSimilarity sets the lowest similarity a neighbour needs to vote.
func WithMinSimilarity(min float64) Option {
	return func(a *AutoTagger) error {
		if min < -1 || min > 1 {
			return fmt.Errorf("%w: min similarity must be within [-1, 1], got %v", ErrInvalidOption, min)
		}
		a.minSimilarity = min
		return nil
	}
}

// WithClusterConfidence sets the confidence given to inherited cluster tags.
func WithClusterConfidence(c float64) Option {
	return func(a *AutoTagger) error {
		if err := core.ValidateConfidence(c); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidOption, err)
		}
		a.clusterConfidence = c
		return nil
	}
}

// WithMaxSuggestions caps the similarity suggestions kept per tag type.
func WithMaxSuggestions(n int) Option {
	return func(a *AutoTagger) error {
		if n < 1 {
			return fmt.Errorf("%w: max suggestions must be positive, got %d", ErrInvalidOption, n)
		}
		a.maxSuggestions = n
		return nil
	}
}

// NewAutoTagger creates a tagger over the relational store and a similarity finder.
func NewAutoTagger(
	questions storage.QuestionRepository,
	masters storage.MasterRepository,
	tags storage.TagRepository,
	finder SimilarFinder,
	opts ...Option,
) (*AutoTagger, error) {
	if questions == nil || masters == nil || tags == nil {
		return nil, ErrRepositoryRequired
	}
	if finder == nil {
		return nil, ErrFinderRequired
	}

	a := &AutoTagger{
		questions:         questions,
		masters:           masters,
		tags:              tags,
		finder:            finder,
		topK:              DefaultTopK,
		minSimilarity:     DefaultMinSimilarity,
		clusterConfidence: DefaultClusterConfidence,
		maxSuggestions:    DefaultMaxSuggestions,
		logger:            slog.Default().With("component", "auto-tagger"),
	}

	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}

	return a, nil
}

// tagsByType groups a question's tags by tag type.
func (a *AutoTagger) tagsByType(ctx context.Context, questionID string) (map[core.TagType][]*core.QuestionTag, error) {
	tags, err := a.tags.TagsForQuestion(ctx, questionID)
	if err != nil {
		return nil, err
	}
	out := make(map[core.TagType][]*core.QuestionTag, len(core.TagTypes))
	for _, t := range tags {
		out[t.TagType] = append(out[t.TagType], t)
	}
	return out, nil
}

// SuggestFromCluster proposes the tags of the question's master representative.
// Representatives and questions without a master get no suggestions, and a
// tag type the question already carries is not inherited.
func (a *AutoTagger) SuggestFromCluster(ctx context.Context, questionID string) (Suggestions, error) {
	out := newSuggestions()

	q, err := a.questions.GetQuestion(ctx, questionID)
	if err != nil {
		return nil, fmt.Errorf("question %s: %w", questionID, err)
	}
	if q.MasterID == nil || q.IsRepresentative {
		return out, nil
	}

	master, err := a.masters.GetMaster(ctx, *q.MasterID)
	if errors.Is(err, storage.ErrNotFound) {
		a.logger.Warn("question references unknown master", "question_id", questionID, "master_id", *q.MasterID)
		return out, nil
	}
	if err != nil {
		return nil, err
	}
	if master.RepresentativeQuestionID == questionID {
		return out, nil
	}

	own, err := a.tagsByType(ctx, questionID)
	if err != nil {
		return nil, err
	}
	inherited, err := a.tagsByType(ctx, master.RepresentativeQuestionID)
	if err != nil {
		return nil, err
	}

	for _, tagType := range core.TagTypes {
		if len(own[tagType]) > 0 {
			continue
		}
		for _, t := range inherited[tagType] {
			out[tagType] = append(out[tagType], core.TagSuggestion{
				TermID:     t.TermID,
				Term:       t.Term,
				Confidence: a.clusterConfidence,
				Source:     core.ProvenanceCluster,
			})
		}
	}
	return out, nil
}

// vote accumulates the similarity votes for one term.
type vote struct {
	termID       int64
	term         string
	sum          float64
	similarities []float64
}

// SuggestFromSimilar pools the tags of the question's nearest same-category
// neighbours. Each neighbour with similarity at least the minimum adds its
// similarity to every term it is tagged with. Confidence is min(sum/k, 1).
func (a *AutoTagger) SuggestFromSimilar(ctx context.Context, questionID string) (Suggestions, error) {
	out := newSuggestions()

	neighbours, err := a.finder.SearchByQuestion(ctx, questionID, a.topK, true)
	if err != nil {
		return nil, err
	}

	votes := make(map[core.TagType]map[int64]*vote, len(core.TagTypes))
	for _, n := range neighbours {
		if n.Score < a.minSimilarity {
			continue
		}
		tags, err := a.tags.TagsForQuestion(ctx, n.QuestionID)
		if err != nil {
			return nil, err
		}
		for _, t := range tags {
			byTerm := votes[t.TagType]
			if byTerm == nil {
				byTerm = make(map[int64]*vote)
				votes[t.TagType] = byTerm
			}
			v := byTerm[t.TermID]
			if v == nil {
				v = &vote{termID: t.TermID, term: t.Term}
				byTerm[t.TermID] = v
			}
			v.sum += n.Score
			v.similarities = append(v.similarities, n.Score)
		}
	}

	for _, tagType := range core.TagTypes {
		ranked := make([]*vote, 0, len(votes[tagType]))
		for _, v := range votes[tagType] {
			ranked = append(ranked, v)
		}
		slices.SortFunc(ranked, func(x, y *vote) int {
			if c := cmp.Compare(y.sum, x.sum); c != 0 {
				return c
			}
			return cmp.Compare(x.termID, y.termID)
		})
		if len(ranked) > a.maxSuggestions {
			ranked = ranked[:a.maxSuggestions]
		}

		for _, v := range ranked {
			out[tagType] = append(out[tagType], core.TagSuggestion{
				TermID:        v.termID,
				Term:          v.term,
				Confidence:    min(v.sum/float64(a.topK), 1.0),
				Source:        core.ProvenanceSimilar,
				AvgSimilarity: v.sum / float64(len(v.similarities)),
				VoteCount:     len(v.similarities),
			})
		}
	}
	return out, nil
}

// SuggestTags merges cluster and similarity suggestions. Cluster suggestions
// come first; a term already tagged on the question or already proposed is
// skipped, so similarity never overrides a cluster suggestion.
// A question without a usable vector gets cluster suggestions only.
func (a *AutoTagger) SuggestTags(ctx context.Context, questionID string) (Suggestions, error) {
	existing, err := a.tags.TagsForQuestion(ctx, questionID)
	if err != nil {
		return nil, err
	}
	seen := make(map[int64]struct{}, len(existing))
	for _, t := range existing {
		seen[t.TermID] = struct{}{}
	}

	fromCluster, err := a.SuggestFromCluster(ctx, questionID)
	if err != nil {
		return nil, err
	}

	fromSimilar, err := a.SuggestFromSimilar(ctx, questionID)
	if unusableVector(err) {
		a.logger.Warn("no usable vector for similarity voting", "question_id", questionID, "err", err)
		fromSimilar, err = newSuggestions(), nil
	}
	if err != nil {
		return nil, err
	}

	out := newSuggestions()
	for _, source := range []Suggestions{fromCluster, fromSimilar} {
		for _, tagType := range core.TagTypes {
			for _, s := range source[tagType] {
				if _, ok := seen[s.TermID]; ok {
					continue
				}
				seen[s.TermID] = struct{}{}
				out[tagType] = append(out[tagType], s)
			}
		}
	}
	return out, nil
}

// unusableVector reports whether err means the question cannot take part in
// similarity voting, leaving cluster inheritance as its only source.
func unusableVector(err error) bool {
	return errors.Is(err, search.ErrNoVector) ||
		errors.Is(err, storage.ErrCorruptVector) ||
		errors.Is(err, storage.ErrDimensionMismatch)
}

// ApplyTag upserts a tag, replacing any row with the same question, term and
// tag type. The term's usage count is recomputed from the live tag rows.
func (a *AutoTagger) ApplyTag(ctx context.Context, questionID string, termID int64, tagType core.TagType, confidence float64, isAuto bool) error {
	if err := core.ValidateTagType(tagType); err != nil {
		return err
	}
	if err := core.ValidateConfidence(confidence); err != nil {
		return err
	}
	err := a.tags.UpsertTag(ctx, &core.QuestionTag{
		QuestionID: questionID,
		TermID:     termID,
		TagType:    tagType,
		Confidence: confidence,
		IsAuto:     isAuto,
	})
	if err != nil {
		return err
	}
	a.logger.Debug("tag applied", "question_id", questionID, "term_id", termID, "tag_type", tagType,
		"confidence", confidence, "auto", isAuto)
	return nil
}

// RemoveTag deletes a tag and recomputes the term's usage count.
func (a *AutoTagger) RemoveTag(ctx context.Context, questionID string, termID int64, tagType core.TagType) error {
	if err := core.ValidateTagType(tagType); err != nil {
		return err
	}
	return a.tags.RemoveTag(ctx, questionID, termID, tagType)
}

// AutoTagUntagged applies the top suggestion of tagType to each question that
// has no tag of that type, when its confidence reaches minConfidence.
// limit <= 0 processes every untagged question. Returns the number tagged.
func (a *AutoTagger) AutoTagUntagged(ctx context.Context, tagType core.TagType, minConfidence float64, limit int) (int, error) {
	if err := core.ValidateTagType(tagType); err != nil {
		return 0, err
	}

	ids, err := a.tags.UntaggedQuestionIDs(ctx, tagType, limit)
	if err != nil {
		return 0, err
	}

	tagged := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return tagged, err
		}

		suggestions, err := a.SuggestTags(ctx, id)
		if err != nil {
			return tagged, fmt.Errorf("suggest tags for %s: %w", id, err)
		}
		best, ok := suggestions.Top(tagType)
		if !ok || best.Confidence < minConfidence {
			continue
		}
		if err := a.ApplyTag(ctx, id, best.TermID, tagType, best.Confidence, true); err != nil {
			return tagged, err
		}
		tagged++
	}

	a.logger.Info("auto tagging finished", "tag_type", tagType, "candidates", len(ids), "tagged", tagged)
	return tagged, nil
}
