package cluster

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"slices"
	"sort"
	"strings"
	"testing"

	"github.com/poiesic/masterdb/core"
	"github.com/poiesic/masterdb/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	e, err := NewEngine(opts...)
	require.NoError(t, err)
	return e
}

// scenarioPoints returns three unit vectors with pairwise cosine distances
// (A,B)=0.05, (A,C)=0.05, (B,C)=0.09.
func scenarioPoints() []Point {
	sinB := math.Sqrt(1 - 0.95*0.95)
	y := (0.91 - 0.95*0.95) / sinB
	z := math.Sqrt(1 - 0.95*0.95 - y*y)
	return []Point{
		{QuestionID: "A", Vector: []float32{1, 0, 0}},
		{QuestionID: "B", Vector: []float32{0.95, float32(sinB), 0}},
		{QuestionID: "C", Vector: []float32{0.95, float32(y), float32(z)}},
	}
}

func TestScenarioDistances(t *testing.T) {
	p := scenarioPoints()
	d := func(i, j int) float64 {
		s, ok := core.CosineSimilarity(p[i].Vector, p[j].Vector)
		require.True(t, ok)
		return 1 - s
	}
	assert.InDelta(t, 0.05, d(0, 1), 1e-6)
	assert.InDelta(t, 0.05, d(0, 2), 1e-6)
	assert.InDelta(t, 0.09, d(1, 2), 1e-6)
}

func TestCluster_ThreeWayMerge(t *testing.T) {
	e := newTestEngine(t)
	r, err := e.Cluster(context.Background(), core.CategoryOrganizational, scenarioPoints())
	require.NoError(t, err)

	require.Len(t, r.Clusters, 1)
	assert.Equal(t, []string{"A", "B", "C"}, r.Clusters[0])
	assert.Equal(t, map[string]int{"A": 0, "B": 0, "C": 0}, r.Assignments)
	assert.Len(t, r.Merges, 2)
	assert.Empty(t, r.Excluded)
}

func TestCluster_DegenerateInputs(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	t.Run("empty category", func(t *testing.T) {
		r, err := e.Cluster(ctx, core.CategoryLeadership, nil)
		require.NoError(t, err)
		assert.Empty(t, r.Clusters)
		assert.Empty(t, r.Assignments)
	})

	t.Run("single question", func(t *testing.T) {
		r, err := e.Cluster(ctx, core.CategoryLeadership, []Point{{QuestionID: "Q1", Vector: []float32{0.3, 0.4}}})
		require.NoError(t, err)
		require.Len(t, r.Clusters, 1)
		assert.Equal(t, 0, r.Assignments["Q1"])
	})

	t.Run("identical vectors merge at zero threshold", func(t *testing.T) {
		strict := newTestEngine(t, WithThreshold(0))
		r, err := strict.Cluster(ctx, core.CategoryLeadership, []Point{
			{QuestionID: "Q1", Vector: []float32{1, 2, 3}},
			{QuestionID: "Q2", Vector: []float32{2, 4, 6}},
			{QuestionID: "Q3", Vector: []float32{0, 0, 1}},
		})
		require.NoError(t, err)
		require.Len(t, r.Clusters, 2)
		assert.Equal(t, []string{"Q1", "Q2"}, r.Clusters[0])
		assert.Equal(t, []string{"Q3"}, r.Clusters[1])
	})
}

func TestCluster_Exclusions(t *testing.T) {
	e := newTestEngine(t)
	r, err := e.Cluster(context.Background(), core.CategoryMultiRater, []Point{
		{QuestionID: "Q3", Vector: []float32{1, 0}},
		{QuestionID: "Q1", Vector: nil},
		{QuestionID: "Q2", Vector: []float32{0, 0}},
		{QuestionID: "Q4", Vector: []float32{1, 0.01}},
	})
	require.NoError(t, err)

	assert.Equal(t, []Exclusion{
		{QuestionID: "Q1", Reason: ReasonMissingVector},
		{QuestionID: "Q2", Reason: ReasonZeroVector},
	}, r.Excluded)
	require.Len(t, r.Clusters, 1)
	assert.Equal(t, []string{"Q3", "Q4"}, r.Clusters[0])
	_, ok := r.Assignments["Q1"]
	assert.False(t, ok)
}

func TestCluster_Errors(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.Cluster(ctx, core.CategoryDirector, []Point{
		{QuestionID: "Q1", Vector: []float32{1, 0, 0}},
		{QuestionID: "Q2", Vector: []float32{1, 0}},
	})
	assert.ErrorIs(t, err, storage.ErrDimensionMismatch)

	_, err = e.Cluster(ctx, core.CategoryDirector, []Point{
		{QuestionID: "Q1", Vector: []float32{1, 0}},
		{QuestionID: "Q1", Vector: []float32{0, 1}},
	})
	assert.ErrorIs(t, err, ErrDuplicatePoint)

	limited := newTestEngine(t, WithMaxPoints(1))
	_, err = limited.Cluster(ctx, core.CategoryDirector, []Point{
		{QuestionID: "Q1", Vector: []float32{1, 0}},
		{QuestionID: "Q2", Vector: []float32{0, 1}},
	})
	assert.ErrorIs(t, err, ErrTooManyPoints)

	_, err = NewEngine(WithThreshold(-0.1))
	assert.ErrorIs(t, err, ErrInvalidThreshold)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = e.Cluster(cancelled, core.CategoryDirector, []Point{
		{QuestionID: "Q1", Vector: []float32{1, 0}},
		{QuestionID: "Q2", Vector: []float32{0, 1}},
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCluster_AverageNotSingleLinkage(t *testing.T) {
	// Neighbours along an arc are 0.1 apart but the ends are 0.38 apart.
	// Single linkage would chain all three; average linkage stops at two.
	a := math.Acos(0.9)
	points := []Point{
		{QuestionID: "P0", Vector: []float32{1, 0}},
		{QuestionID: "P1", Vector: []float32{float32(math.Cos(a)), float32(math.Sin(a))}},
		{QuestionID: "P2", Vector: []float32{float32(math.Cos(2 * a)), float32(math.Sin(2 * a))}},
	}

	r, err := newTestEngine(t).Cluster(context.Background(), core.CategoryOrganizational, points)
	require.NoError(t, err)
	require.Len(t, r.Clusters, 2)

	sizes := r.Sizes()
	sort.Ints(sizes)
	assert.Equal(t, []int{1, 2}, sizes)
	assert.Equal(t, 0, r.Assignments["P0"])
}

func TestCluster_ClusterIDsFollowSmallestMember(t *testing.T) {
	points := []Point{
		{QuestionID: "Q9", Vector: []float32{0, 1}},
		{QuestionID: "Q2", Vector: []float32{1, 0}},
		{QuestionID: "Q1", Vector: []float32{0, 1}},
		{QuestionID: "Q5", Vector: []float32{1, 0.01}},
	}
	r, err := newTestEngine(t).Cluster(context.Background(), core.CategoryOrganizational, points)
	require.NoError(t, err)

	assert.Equal(t, [][]string{{"Q1", "Q9"}, {"Q2", "Q5"}}, r.Clusters)
}

func TestCluster_Deterministic(t *testing.T) {
	points := randomPoints(rand.New(rand.NewSource(7)), 60, 5)
	e := newTestEngine(t)

	first, err := e.Cluster(context.Background(), core.CategoryOrganizational, points)
	require.NoError(t, err)

	shuffled := slices.Clone(points)
	rand.New(rand.NewSource(99)).Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	second, err := e.Cluster(context.Background(), core.CategoryOrganizational, shuffled)
	require.NoError(t, err)

	assert.Equal(t, first.Assignments, second.Assignments)
	assert.Equal(t, first.Clusters, second.Clusters)
}

func TestCluster_MatchesGreedyReference(t *testing.T) {
	for seed := int64(1); seed <= 5; seed++ {
		t.Run(fmt.Sprintf("seed %d", seed), func(t *testing.T) {
			points := randomPoints(rand.New(rand.NewSource(seed)), 40, 6)

			r, err := newTestEngine(t).Cluster(context.Background(), core.CategoryOrganizational, points)
			require.NoError(t, err)

			assert.Equal(t, greedyReference(points, DefaultThreshold), canonical(r.Clusters))

			for i := 1; i < len(r.Merges); i++ {
				assert.LessOrEqual(t, r.Merges[i-1].Distance, r.Merges[i].Distance)
			}
			for _, m := range r.Merges {
				assert.LessOrEqual(t, m.Distance, DefaultThreshold)
			}
		})
	}
}

func TestClusterAll(t *testing.T) {
	e := newTestEngine(t)
	results, err := e.ClusterAll(context.Background(), map[core.Category][]Point{
		core.CategoryOrganizational: scenarioPoints(),
		core.CategoryLeadership: {
			{QuestionID: "L1", Vector: []float32{1, 0}},
			{QuestionID: "L2", Vector: []float32{1, 0, 0}},
		},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrDimensionMismatch)
	assert.Contains(t, err.Error(), "category LD")

	require.Contains(t, results, core.CategoryOrganizational)
	assert.NotContains(t, results, core.CategoryLeadership)
	assert.Len(t, results[core.CategoryOrganizational].Clusters, 1)
}

// randomPoints scatters n points around k random centres.
func randomPoints(rng *rand.Rand, n, k int) []Point {
	const dim = 8
	centres := make([][]float64, k)
	for i := range centres {
		centres[i] = make([]float64, dim)
		for j := range centres[i] {
			centres[i][j] = rng.NormFloat64()
		}
	}
	points := make([]Point, n)
	for i := range points {
		c := centres[rng.Intn(k)]
		v := make([]float32, dim)
		for j := range v {
			v[j] = float32(c[j] + 0.25*rng.NormFloat64())
		}
		points[i] = Point{QuestionID: fmt.Sprintf("Q_%05d", i), Vector: v}
	}
	return points
}

// greedyReference merges the closest pair by average linkage until the
// smallest distance exceeds threshold, in O(n^3).
func greedyReference(points []Point, threshold float64) [][]string {
	n := len(points)
	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
		for j := range dist[i] {
			s, _ := core.CosineSimilarity(points[i].Vector, points[j].Vector)
			dist[i][j] = 1 - s
		}
	}

	clusters := make([][]int, n)
	for i := range clusters {
		clusters[i] = []int{i}
	}
	avg := func(a, b []int) float64 {
		var sum float64
		for _, i := range a {
			for _, j := range b {
				sum += dist[i][j]
			}
		}
		return sum / float64(len(a)*len(b))
	}

	for len(clusters) > 1 {
		bi, bj, best := -1, -1, math.Inf(1)
		for i := range clusters {
			for j := i + 1; j < len(clusters); j++ {
				if d := avg(clusters[i], clusters[j]); d < best {
					bi, bj, best = i, j, d
				}
			}
		}
		if best > threshold {
			break
		}
		clusters[bi] = append(clusters[bi], clusters[bj]...)
		clusters = append(clusters[:bj], clusters[bj+1:]...)
	}

	out := make([][]string, len(clusters))
	for i, c := range clusters {
		for _, idx := range c {
			out[i] = append(out[i], points[idx].QuestionID)
		}
	}
	return canonical(out)
}

// canonical sorts members and then clusters for comparison.
func canonical(clusters [][]string) [][]string {
	out := make([][]string, len(clusters))
	for i, c := range clusters {
		out[i] = slices.Clone(c)
		slices.Sort(out[i])
	}
	slices.SortFunc(out, func(a, b []string) int { return strings.Compare(a[0], b[0]) })
	return out
}
