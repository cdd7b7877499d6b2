package cluster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/poiesic/masterdb/core"
	"github.com/poiesic/masterdb/storage"
)

// DefaultThreshold is the default maximum average-linkage cosine distance
// at which two clusters still merge.
const DefaultThreshold = 0.15

// Exclusion reasons.
const (
	ReasonMissingVector = "missing vector"
	ReasonZeroVector    = "zero vector"
)

// Point is one question to cluster. A nil Vector marks a question whose
// vector is missing or malformed.
type Point struct {
	QuestionID string
	Vector     []float32
}

// Exclusion reports a question that received no cluster.
type Exclusion struct {
	QuestionID string
	Reason     string
}

// Merge is one applied merge, named by the smallest question ID of each side.
type Merge struct {
	Left     string
	Right    string
	Distance float64
}

// Result is the clustering of one category.
type Result struct {
	Category core.Category
	// Assignments maps each clustered question to its cluster ID.
	Assignments map[string]int
	// Clusters lists member question IDs per cluster ID, ascending.
	Clusters [][]string
	// Excluded lists questions left out, ascending by question ID.
	Excluded []Exclusion
	// Merges lists the merges applied, by ascending distance.
	Merges []Merge
	// Threshold is the cut used.
	Threshold float64
}

// Sizes returns the member count of every cluster, indexed by cluster ID.
func (r *Result) Sizes() []int {
	out := make([]int, len(r.Clusters))
	for i, c := range r.Clusters {
		out[i] = len(c)
	}
	return out
}

// Engine clusters categories of question vectors.
type Engine struct {
	threshold float64
	maxPoints int
	logger    *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine) error

// WithThreshold sets the maximum merge distance.
// Default is DefaultThreshold.
func WithThreshold(threshold float64) Option {
	return func(e *Engine) error {
		if threshold < 0 || threshold > 2 {
			return fmt.Errorf("%w: got %v", ErrInvalidThreshold, threshold)
		}
		e.threshold = threshold
		return nil
	}
}

// WithMaxPoints caps the number of points clustered per category, bounding
// the memory of the quadratic distance matrix. Zero means no cap.
func WithMaxPoints(n int) Option {
	return func(e *Engine) error {
		e.maxPoints = n
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger.With("component", "cluster")
		return nil
	}
}

// NewEngine creates a clustering engine.
func NewEngine(opts ...Option) (*Engine, error) {
	e := &Engine{
		threshold: DefaultThreshold,
		logger:    slog.Default().With("component", "cluster"),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Threshold returns the configured merge threshold.
func (e *Engine) Threshold() float64 {
	return e.threshold
}

// Cluster partitions the points of one category.
//
// Points without a vector or with a zero vector are excluded and reported,
// never fatal. Vectors of differing lengths fail the whole category with
// storage.ErrDimensionMismatch. An empty input yields zero clusters.
func (e *Engine) Cluster(ctx context.Context, category core.Category, points []Point) (*Result, error) {
	sorted := slices.Clone(points)
	slices.SortFunc(sorted, func(a, b Point) int { return strings.Compare(a.QuestionID, b.QuestionID) })

	result := &Result{
		Category:    category,
		Assignments: make(map[string]int),
		Threshold:   e.threshold,
	}

	var (
		ids  []string
		vecs [][]float32
		dim  int
	)
	for i, p := range sorted {
		if i > 0 && sorted[i-1].QuestionID == p.QuestionID {
			return nil, fmt.Errorf("%w: %s in %s", ErrDuplicatePoint, p.QuestionID, category)
		}
		if len(p.Vector) == 0 {
			result.Excluded = append(result.Excluded, Exclusion{QuestionID: p.QuestionID, Reason: ReasonMissingVector})
			e.logger.Warn("question has no vector", "category", category, "question_id", p.QuestionID)
			continue
		}
		if dim == 0 {
			dim = len(p.Vector)
		} else if len(p.Vector) != dim {
			return nil, fmt.Errorf("%w: %s has %d components, expected %d in %s",
				storage.ErrDimensionMismatch, p.QuestionID, len(p.Vector), dim, category)
		}
		unit, ok := core.NormalizeVector(p.Vector)
		if !ok {
			result.Excluded = append(result.Excluded, Exclusion{QuestionID: p.QuestionID, Reason: ReasonZeroVector})
			e.logger.Warn("question has a zero vector", "category", category, "question_id", p.QuestionID)
			continue
		}
		ids = append(ids, p.QuestionID)
		vecs = append(vecs, unit)
	}

	if e.maxPoints > 0 && len(ids) > e.maxPoints {
		return nil, fmt.Errorf("%w: %d in %s, limit %d", ErrTooManyPoints, len(ids), category, e.maxPoints)
	}
	if len(ids) == 0 {
		return result, nil
	}

	steps, err := averageLinkage(ctx, vecs)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(steps, func(a, b step) int {
		switch {
		case a.distance < b.distance:
			return -1
		case a.distance > b.distance:
			return 1
		}
		return 0
	})

	uf := newUnionFind(len(ids))
	for _, s := range steps {
		if s.distance > e.threshold {
			break
		}
		left, right := uf.find(s.a), uf.find(s.b)
		uf.union(s.a, s.b)
		if left > right {
			left, right = right, left
		}
		result.Merges = append(result.Merges, Merge{Left: ids[left], Right: ids[right], Distance: s.distance})
	}

	// Roots are the smallest member index, so first-seen order is smallest-ID order.
	clusterOf := make(map[int]int)
	for i, id := range ids {
		root := uf.find(i)
		cid, ok := clusterOf[root]
		if !ok {
			cid = len(result.Clusters)
			clusterOf[root] = cid
			result.Clusters = append(result.Clusters, nil)
		}
		result.Assignments[id] = cid
		result.Clusters[cid] = append(result.Clusters[cid], id)
	}

	e.logger.Debug("category clustered",
		"category", category,
		"points", len(ids),
		"clusters", len(result.Clusters),
		"excluded", len(result.Excluded),
		"threshold", e.threshold)

	return result, nil
}

// ClusterAll clusters every category independently. A failing category is
// reported in the joined error and left out of the results; the others
// are still clustered.
func (e *Engine) ClusterAll(ctx context.Context, points map[core.Category][]Point) (map[core.Category]*Result, error) {
	categories := make([]core.Category, 0, len(points))
	for c := range points {
		categories = append(categories, c)
	}
	slices.Sort(categories)

	results := make(map[core.Category]*Result, len(points))
	var errs []error
	for _, c := range categories {
		r, err := e.Cluster(ctx, c, points[c])
		if err != nil {
			if ctx.Err() != nil {
				return results, errors.Join(append(errs, err)...)
			}
			errs = append(errs, fmt.Errorf("category %s: %w", c, err))
			continue
		}
		results[c] = r
	}
	return results, errors.Join(errs...)
}
