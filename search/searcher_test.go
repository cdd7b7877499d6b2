package search

import (
	"context"
	"log/slog"
	"testing"

	"github.com/poiesic/masterdb/ai/mock"
	"github.com/poiesic/masterdb/core"
	"github.com/poiesic/masterdb/storage"
	"github.com/poiesic/masterdb/storage/sqlite"
	"github.com/poiesic/masterdb/vectors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store    *sqlite.Store
	vectors  *vectors.Store
	searcher *Searcher
}

// newFixture seeds two categories:
//
//	OD: Q1 [1,0,0], Q2 [0.9,0.1,0], Q3 [0,1,0], Q4 zero, Q7 no vector
//	LD: Q5 [1,0,0], Q6 [0,0,1]
func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	ctx := context.Background()

	store, err := sqlite.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	questions := []*core.Question{
		{ID: "Q1", Text: "My leader shares a clear vision", Category: core.CategoryOrganizational},
		{ID: "Q2", Text: "The leader explains the vision of the team", Category: core.CategoryOrganizational},
		{ID: "Q3", Text: "I am paid fairly", Category: core.CategoryOrganizational},
		{ID: "Q4", Text: "Zero vector question", Category: core.CategoryOrganizational},
		{ID: "Q5", Text: "Leaders share the company vision", Category: core.CategoryLeadership},
		{ID: "Q6", Text: "Safety comes first", Category: core.CategoryLeadership},
		{ID: "Q7", Text: "Not yet embedded", Category: core.CategoryOrganizational},
	}
	_, err = store.Questions.AddQuestions(ctx, questions...)
	require.NoError(t, err)

	err = store.Embeddings.PutEmbeddings(ctx,
		&core.Embedding{QuestionID: "Q1", Vector: []float32{1, 0, 0}},
		&core.Embedding{QuestionID: "Q2", Vector: []float32{0.9, 0.1, 0}},
		&core.Embedding{QuestionID: "Q3", Vector: []float32{0, 1, 0}},
		&core.Embedding{QuestionID: "Q4", Vector: []float32{0, 0, 0}},
		&core.Embedding{QuestionID: "Q5", Vector: []float32{1, 0, 0}},
		&core.Embedding{QuestionID: "Q6", Vector: []float32{0, 0, 1}},
	)
	require.NoError(t, err)

	vs, err := vectors.NewStore(store.Embeddings)
	require.NoError(t, err)

	opts = append([]Option{WithTags(store.Tags, store.Taxonomy)}, opts...)
	searcher, err := NewSearcher(vs, store.Questions, store.Masters, opts...)
	require.NoError(t, err)

	return &fixture{store: store, vectors: vs, searcher: searcher}
}

func ids(hits []core.ScoredQuestion) []string {
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.QuestionID
	}
	return out
}

func TestNewSearcher(t *testing.T) {
	store, err := sqlite.NewMemoryStore()
	require.NoError(t, err)
	defer store.Close()

	vs, err := vectors.NewStore(store.Embeddings)
	require.NoError(t, err)

	t.Run("valid configuration", func(t *testing.T) {
		searcher, err := NewSearcher(vs, store.Questions, store.Masters)
		require.NoError(t, err)
		assert.NotNil(t, searcher)
	})

	t.Run("with nil logger falls back to default", func(t *testing.T) {
		searcher, err := NewSearcher(vs, store.Questions, store.Masters, WithLogger(nil))
		require.NoError(t, err)
		assert.NotNil(t, searcher)
	})

	t.Run("with custom logger", func(t *testing.T) {
		_, err := NewSearcher(vs, store.Questions, store.Masters, WithLogger(slog.Default()))
		require.NoError(t, err)
	})

	t.Run("nil vector store", func(t *testing.T) {
		_, err := NewSearcher(nil, store.Questions, store.Masters)
		assert.Equal(t, ErrVectorStoreRequired, err)
	})

	t.Run("nil repositories", func(t *testing.T) {
		_, err := NewSearcher(vs, nil, store.Masters)
		assert.Equal(t, ErrQuestionRepositoryRequired, err)
		_, err = NewSearcher(vs, store.Questions, nil)
		assert.Equal(t, ErrQuestionRepositoryRequired, err)
	})
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	t.Run("ranks by similarity with id tie break", func(t *testing.T) {
		hits, err := f.searcher.Search(ctx, []float32{1, 0, 0}, 3, Filter{})
		require.NoError(t, err)
		assert.Equal(t, []string{"Q1", "Q5", "Q2"}, ids(hits))
		assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
		assert.InDelta(t, 1.0, hits[1].Score, 1e-6)
		assert.Greater(t, hits[1].Score, hits[2].Score)
	})

	t.Run("query is normalized", func(t *testing.T) {
		hits, err := f.searcher.Search(ctx, []float32{5, 0, 0}, 1, Filter{})
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
	})

	t.Run("zero vectors are never candidates", func(t *testing.T) {
		hits, err := f.searcher.Search(ctx, []float32{0, 1, 0}, 100, Filter{})
		require.NoError(t, err)
		assert.Len(t, hits, 5)
		assert.NotContains(t, ids(hits), "Q4")
		assert.NotContains(t, ids(hits), "Q7")
	})

	t.Run("category filter from relational store", func(t *testing.T) {
		hits, err := f.searcher.Search(ctx, []float32{1, 0, 0}, 10, Filter{Category: core.CategoryLeadership})
		require.NoError(t, err)
		assert.Equal(t, []string{"Q5", "Q6"}, ids(hits))
		assert.InDelta(t, 0.0, hits[1].Score, 1e-6)
	})

	t.Run("exclusions", func(t *testing.T) {
		hits, err := f.searcher.Search(ctx, []float32{1, 0, 0}, 2, Filter{Exclude: []string{"Q1", "Q5"}})
		require.NoError(t, err)
		assert.Equal(t, []string{"Q2", "Q3"}, ids(hits))
	})

	t.Run("k <= 0 returns nothing", func(t *testing.T) {
		hits, err := f.searcher.Search(ctx, []float32{1, 0, 0}, 0, Filter{})
		require.NoError(t, err)
		assert.Empty(t, hits)
	})

	t.Run("zero query", func(t *testing.T) {
		_, err := f.searcher.Search(ctx, []float32{0, 0, 0}, 3, Filter{})
		assert.ErrorIs(t, err, ErrZeroQuery)
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		_, err := f.searcher.Search(ctx, []float32{1, 0}, 3, Filter{})
		assert.ErrorIs(t, err, storage.ErrDimensionMismatch)
	})

	t.Run("unknown category", func(t *testing.T) {
		_, err := f.searcher.Search(ctx, []float32{1, 0, 0}, 3, Filter{Category: "XX"})
		assert.ErrorIs(t, err, core.ErrUnknownCategory)
	})

	t.Run("deterministic", func(t *testing.T) {
		first, err := f.searcher.Search(ctx, []float32{0.3, 0.3, 0.3}, 10, Filter{})
		require.NoError(t, err)
		for range 5 {
			again, err := f.searcher.Search(ctx, []float32{0.3, 0.3, 0.3}, 10, Filter{})
			require.NoError(t, err)
			assert.Equal(t, first, again)
		}
	})
}

func TestSearch_EmptyCache(t *testing.T) {
	store, err := sqlite.NewMemoryStore()
	require.NoError(t, err)
	defer store.Close()

	vs, err := vectors.NewStore(store.Embeddings)
	require.NoError(t, err)
	searcher, err := NewSearcher(vs, store.Questions, store.Masters)
	require.NoError(t, err)

	hits, err := searcher.Search(context.Background(), []float32{1, 2}, 5, Filter{})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearch_MixedLengthCache(t *testing.T) {
	ctx := context.Background()
	store, err := sqlite.NewMemoryStore()
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Questions.AddQuestions(ctx,
		&core.Question{ID: "Q1", Text: "My leader shares a clear vision", Category: core.CategoryOrganizational},
		&core.Question{ID: "Q2", Text: "I am paid fairly", Category: core.CategoryOrganizational},
	)
	require.NoError(t, err)
	err = store.Embeddings.PutEmbeddings(ctx,
		&core.Embedding{QuestionID: "Q1", Vector: []float32{1, 0, 0}},
		&core.Embedding{QuestionID: "Q2", Vector: []float32{1, 0}},
	)
	require.NoError(t, err)

	vs, err := vectors.NewStore(store.Embeddings)
	require.NoError(t, err)
	searcher, err := NewSearcher(vs, store.Questions, store.Masters)
	require.NoError(t, err)

	var hits []core.ScoredQuestion
	require.NotPanics(t, func() {
		hits, err = searcher.Search(ctx, []float32{1, 0, 0}, 5, Filter{})
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Q1"}, ids(hits))
	require.Len(t, vs.Skipped(), 1)
	assert.ErrorIs(t, vs.Skipped()[0].Err, storage.ErrDimensionMismatch)

	t.Run("mismatched question has no vector", func(t *testing.T) {
		_, err := searcher.SearchByQuestion(ctx, "Q2", 5, false)
		assert.ErrorIs(t, err, ErrNoVector)
		assert.ErrorIs(t, err, storage.ErrDimensionMismatch)
	})
}

type recordingMonitor struct {
	noopMonitor
	started   bool
	members   int
	scored    int
	skipped   int
	finalHits int
}

func (m *recordingMonitor) Start(_ int, _ Filter) { m.started = true }
func (m *recordingMonitor) AfterCategoryFilter(_ core.Category, members int) {
	m.members = members
}
func (m *recordingMonitor) AfterScoring(candidates, skipped int) {
	m.scored, m.skipped = candidates, skipped
}
func (m *recordingMonitor) Finish(results []core.ScoredQuestion) { m.finalHits = len(results) }

func TestSearchWithMonitor(t *testing.T) {
	f := newFixture(t)
	monitor := &recordingMonitor{}

	hits, err := f.searcher.SearchWithMonitor(context.Background(), []float32{1, 0, 0}, 2,
		Filter{Category: core.CategoryOrganizational}, monitor)
	require.NoError(t, err)

	assert.True(t, monitor.started)
	assert.Equal(t, 5, monitor.members)
	assert.Equal(t, 3, monitor.scored)
	assert.Equal(t, 1, monitor.skipped)
	assert.Equal(t, len(hits), monitor.finalHits)
}

func TestSearchByQuestion(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	t.Run("excludes itself", func(t *testing.T) {
		hits, err := f.searcher.SearchByQuestion(ctx, "Q1", 10, false)
		require.NoError(t, err)
		assert.Equal(t, []string{"Q5", "Q2", "Q3", "Q6"}, ids(hits))
	})

	t.Run("same category only", func(t *testing.T) {
		hits, err := f.searcher.SearchByQuestion(ctx, "Q1", 10, true)
		require.NoError(t, err)
		assert.Equal(t, []string{"Q2", "Q3"}, ids(hits))
	})

	t.Run("at most k", func(t *testing.T) {
		hits, err := f.searcher.SearchByQuestion(ctx, "Q1", 1, false)
		require.NoError(t, err)
		assert.Equal(t, []string{"Q5"}, ids(hits))
	})

	t.Run("zero vector", func(t *testing.T) {
		_, err := f.searcher.SearchByQuestion(ctx, "Q4", 3, false)
		assert.ErrorIs(t, err, ErrNoVector)
	})

	t.Run("no vector", func(t *testing.T) {
		_, err := f.searcher.SearchByQuestion(ctx, "missing", 3, false)
		assert.ErrorIs(t, err, ErrNoVector)
	})

	t.Run("vector stored after load", func(t *testing.T) {
		require.True(t, f.vectors.Loaded())
		err := f.store.Embeddings.PutEmbeddings(ctx, &core.Embedding{QuestionID: "Q7", Vector: []float32{0, 2, 0}})
		require.NoError(t, err)

		hits, err := f.searcher.SearchByQuestion(ctx, "Q7", 1, true)
		require.NoError(t, err)
		assert.Equal(t, []string{"Q3"}, ids(hits))
	})
}

func TestSearchQuery(t *testing.T) {
	ctx := context.Background()

	t.Run("requires embedder", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.searcher.SearchQuery(ctx, "vision", 3, Filter{})
		assert.ErrorIs(t, err, ErrEmbedderRequired)
	})

	t.Run("embeds and searches", func(t *testing.T) {
		embedder := mock.NewMockEmbedder()
		embedder.Vectors["safety"] = []float32{0, 0, 1}
		f := newFixture(t, WithEmbedder(embedder))

		hits, err := f.searcher.SearchQuery(ctx, "safety", 1, Filter{})
		require.NoError(t, err)
		assert.Equal(t, []string{"Q6"}, ids(hits))
		assert.Equal(t, 1, embedder.CallCount())
	})
}

func TestFindClusterMembers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	err := f.store.Masters.ReplaceCategory(ctx, &core.Consolidation{
		Category: core.CategoryOrganizational,
		Masters: []core.MasterQuestion{
			{ID: "OD_0001", RepresentativeQuestionID: "Q2", Category: core.CategoryOrganizational, ClusterID: 0, ClusterSize: 2},
		},
		Assignments: []core.Assignment{
			{QuestionID: "Q1", ClusterID: 0, MasterID: "OD_0001"},
			{QuestionID: "Q2", ClusterID: 0, MasterID: "OD_0001", IsRepresentative: true},
		},
	})
	require.NoError(t, err)

	t.Run("representative first", func(t *testing.T) {
		members, err := f.searcher.FindClusterMembers(ctx, "OD_0001")
		require.NoError(t, err)
		require.Len(t, members, 2)
		assert.Equal(t, "Q2", members[0].ID)
		assert.Equal(t, "Q1", members[1].ID)
	})

	t.Run("unknown master", func(t *testing.T) {
		_, err := f.searcher.FindClusterMembers(ctx, "OD_9999")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("master with variants", func(t *testing.T) {
		view, err := f.searcher.MasterWithVariants(ctx, "OD_0001")
		require.NoError(t, err)
		assert.Equal(t, "Q2", view.Representative.ID)
		require.Len(t, view.Variants, 1)
		assert.Equal(t, "Q1", view.Variants[0].ID)
		assert.Equal(t, 2, view.Master.ClusterSize)
	})
}

func TestSearchText(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	t.Run("all words in any order", func(t *testing.T) {
		qs, err := f.searcher.SearchText(ctx, "vision leader", "", 0)
		require.NoError(t, err)
		require.Len(t, qs, 3)
		assert.Equal(t, "Q1", qs[0].ID)
		assert.Equal(t, "Q2", qs[1].ID)
		assert.Equal(t, "Q5", qs[2].ID)
	})

	t.Run("category and limit", func(t *testing.T) {
		qs, err := f.searcher.SearchText(ctx, "the vision", core.CategoryOrganizational, 1)
		require.NoError(t, err)
		require.Len(t, qs, 1)
		assert.Equal(t, "Q1", qs[0].ID)
	})

	t.Run("only stop words", func(t *testing.T) {
		_, err := f.searcher.SearchText(ctx, "the of a", "", 0)
		assert.ErrorIs(t, err, storage.ErrInvalidQuery)
	})
}

func TestSearchByTerm(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	terms, err := f.store.Taxonomy.AddTerms(ctx, &core.TaxonomyTerm{Term: "Vision", Type: core.TermTypeConcept})
	require.NoError(t, err)
	for _, id := range []string{"Q5", "Q1"} {
		require.NoError(t, f.store.Tags.UpsertTag(ctx, &core.QuestionTag{
			QuestionID: id, TermID: terms[0].ID, TagType: core.TagTypeConcepts, Confidence: 1,
		}))
	}

	qs, err := f.searcher.SearchByTerm(ctx, "Vision", "", 0)
	require.NoError(t, err)
	require.Len(t, qs, 2)
	assert.Equal(t, "Q1", qs[0].ID)
	assert.Equal(t, "Q5", qs[1].ID)

	_, err = f.searcher.SearchByTerm(ctx, "Unknown", "", 0)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStatistics(t *testing.T) {
	f := newFixture(t)

	stats, err := f.searcher.Statistics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, stats.Questions)
	assert.Equal(t, 6, stats.Embeddings)
	assert.Equal(t, 5, stats.QuestionsByCategory[core.CategoryOrganizational])
}

func TestQuestions(t *testing.T) {
	f := newFixture(t)
	hits := []core.ScoredQuestion{{QuestionID: "Q5"}, {QuestionID: "nope"}, {QuestionID: "Q1"}}

	qs, err := f.searcher.Questions(context.Background(), hits)
	require.NoError(t, err)
	require.Len(t, qs, 2)
	assert.Equal(t, "Q5", qs[0].ID)
	assert.Equal(t, "Q1", qs[1].ID)
}

func TestQueryTerms(t *testing.T) {
	assert.Equal(t, []string{"leader", "vision"}, queryTerms("The Leader, of vision!"))
	assert.Empty(t, queryTerms("the a an"))
	assert.True(t, containsAllTerms("Leaders share the company vision", []string{"leader", "vision"}))
	assert.False(t, containsAllTerms("Safety comes first", []string{"safety", "vision"}))
	assert.False(t, containsAllTerms("anything", nil))
}
