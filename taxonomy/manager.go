package taxonomy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/masterdb/core"
	"github.com/poiesic/masterdb/storage"
)

// Node is a term with its HAS_COMPONENT children.
type Node struct {
	Term     *core.TaxonomyTerm
	Children []*Node
}

// SeedReport summarizes a Seed run.
type SeedReport struct {
	TermsAdded    int
	TermsExisting int
	Relations     int
}

// Manager maintains the THEME -> CONCEPT -> ASPECT vocabulary.
type Manager struct {
	taxonomy  storage.TaxonomyRepository
	questions storage.QuestionRepository
	tags      storage.TagRepository
	logger    *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) error {
		if logger == nil {
			logger = slog.Default()
		}
		m.logger = logger.With("component", "taxonomy")
		return nil
	}
}

// WithLegacyTagging enables TagLegacy.
func WithLegacyTagging(questions storage.QuestionRepository, tags storage.TagRepository) Option {
	return func(m *Manager) error {
		m.questions = questions
		m.tags = tags
		return nil
	}
}

// NewManager creates a taxonomy manager.
func NewManager(taxonomy storage.TaxonomyRepository, opts ...Option) (*Manager, error) {
	if taxonomy == nil {
		return nil, ErrRepositoryRequired
	}
	m := &Manager{
		taxonomy: taxonomy,
		logger:   slog.Default().With("component", "taxonomy"),
	}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// allowedChild is the only level a term of each level may contain.
var allowedChild = map[core.TermType]core.TermType{
	core.TermTypeTheme:   core.TermTypeConcept,
	core.TermTypeConcept: core.TermTypeAspect,
}

// Link records parent HAS_COMPONENT child after checking the levels.
func (m *Manager) Link(ctx context.Context, parentID, childID int64) error {
	parent, err := m.taxonomy.GetTerm(ctx, parentID)
	if err != nil {
		return fmt.Errorf("parent term %d: %w", parentID, err)
	}
	child, err := m.taxonomy.GetTerm(ctx, childID)
	if err != nil {
		return fmt.Errorf("child term %d: %w", childID, err)
	}
	if want, ok := allowedChild[parent.Type]; !ok || child.Type != want {
		return fmt.Errorf("%w: %s %q cannot contain %s %q",
			ErrInvalidHierarchy, parent.Type, parent.Term, child.Type, child.Term)
	}
	return m.taxonomy.AddRelation(ctx, core.TermRelation{
		FromTermID:   parentID,
		ToTermID:     childID,
		RelationType: core.RelationHasComponent,
		Strength:     1.0,
	})
}

// Seed adds the seed's terms and relations in one transaction. Terms that
// already exist with the same level are reused, so seeding is repeatable.
func (m *Manager) Seed(ctx context.Context, seed *Seed) (*SeedReport, error) {
	if err := seed.Validate(); err != nil {
		return nil, err
	}

	report := &SeedReport{}
	err := m.taxonomy.WithTransaction(ctx, func(ctx context.Context) error {
		ids := make(map[string]int64)
		ensure := func(term string, t core.TermType, description string) error {
			id, added, err := m.ensureTerm(ctx, term, t, description)
			if err != nil {
				return err
			}
			ids[term] = id
			if added {
				report.TermsAdded++
			} else {
				report.TermsExisting++
			}
			return nil
		}

		for _, th := range seed.Themes {
			if err := ensure(th.Term, core.TermTypeTheme, th.Description); err != nil {
				return err
			}
		}
		for _, c := range seed.Concepts {
			if err := ensure(c.Term, core.TermTypeConcept, c.Description); err != nil {
				return err
			}
		}
		for _, a := range seed.Aspects {
			if err := ensure(a.Term, core.TermTypeAspect, a.Description); err != nil {
				return err
			}
		}

		concepts, _ := seed.conceptIndex()
		aspects, _ := seed.aspectIndex()
		link := func(parent, child string) error {
			if err := m.Link(ctx, ids[parent], ids[child]); err != nil {
				return err
			}
			report.Relations++
			return nil
		}
		for _, th := range seed.Themes {
			for _, ref := range th.Concepts {
				if err := link(th.Term, concepts[ref]); err != nil {
					return err
				}
			}
		}
		for _, c := range seed.Concepts {
			for _, ref := range c.Aspects {
				if err := link(c.Term, aspects[ref]); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.logger.Info("taxonomy seeded", "added", report.TermsAdded, "existing", report.TermsExisting,
		"relations", report.Relations)
	return report, nil
}

// ensureTerm returns the ID of term, adding it when missing.
func (m *Manager) ensureTerm(ctx context.Context, term string, t core.TermType, description string) (int64, bool, error) {
	existing, err := m.taxonomy.FindTerm(ctx, term)
	if err == nil {
		if existing.Type != t {
			return 0, false, fmt.Errorf("%w: %q exists as %s, seed declares %s", ErrInvalidHierarchy, term, existing.Type, t)
		}
		return existing.ID, false, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return 0, false, err
	}

	added, err := m.taxonomy.AddTerms(ctx, &core.TaxonomyTerm{Term: term, Type: t, Description: description})
	if err != nil {
		return 0, false, err
	}
	return added[0].ID, true, nil
}

// Tree returns every theme with its concepts and their aspects.
// Children are ordered by usage count descending, then ID.
func (m *Manager) Tree(ctx context.Context) ([]*Node, error) {
	themes, err := m.taxonomy.TermsByType(ctx, core.TermTypeTheme)
	if err != nil {
		return nil, err
	}
	roots := make([]*Node, 0, len(themes))
	for _, th := range themes {
		node, err := m.subtree(ctx, th)
		if err != nil {
			return nil, err
		}
		roots = append(roots, node)
	}
	return roots, nil
}

func (m *Manager) subtree(ctx context.Context, term *core.TaxonomyTerm) (*Node, error) {
	node := &Node{Term: term}
	want, ok := allowedChild[term.Type]
	if !ok {
		return node, nil
	}
	children, err := m.taxonomy.Children(ctx, term.ID, core.RelationHasComponent)
	if err != nil {
		return nil, err
	}
	for _, c := range children {
		if c.Type != want {
			m.logger.Warn("skipping out-of-level child", "parent", term.Term, "child", c.Term, "type", c.Type)
			continue
		}
		child, err := m.subtree(ctx, c)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, child)
	}
	return node, nil
}

// Orphans returns concepts without a theme parent and aspects without a concept parent.
func (m *Manager) Orphans(ctx context.Context) ([]*core.TaxonomyTerm, error) {
	var orphans []*core.TaxonomyTerm
	for _, t := range []core.TermType{core.TermTypeConcept, core.TermTypeAspect} {
		terms, err := m.taxonomy.TermsByType(ctx, t)
		if err != nil {
			return nil, err
		}
		for _, term := range terms {
			parents, err := m.taxonomy.Parents(ctx, term.ID, core.RelationHasComponent)
			if err != nil {
				return nil, err
			}
			if len(parents) == 0 {
				orphans = append(orphans, term)
			}
		}
	}
	return orphans, nil
}

// TagLegacy tags every question with the theme of its category and with the
// concept and aspect matching its legacy mid and sub categories. Existing tags
// are left untouched. Returns the number of tags created.
func (m *Manager) TagLegacy(ctx context.Context, seed *Seed) (int, error) {
	if m.questions == nil || m.tags == nil {
		return 0, ErrTaggingDisabled
	}
	concepts, err := seed.conceptIndex()
	if err != nil {
		return 0, err
	}
	aspects, err := seed.aspectIndex()
	if err != nil {
		return 0, err
	}

	termIDs := make(map[string]int64)
	resolve := func(term string) (int64, bool) {
		if id, ok := termIDs[term]; ok {
			return id, id != 0
		}
		t, err := m.taxonomy.FindTerm(ctx, term)
		if err != nil {
			termIDs[term] = 0
			return 0, false
		}
		termIDs[term] = t.ID
		return t.ID, true
	}

	created := 0
	for _, category := range core.Categories {
		ids, err := m.questions.QuestionIDsByCategory(ctx, category)
		if err != nil {
			return created, err
		}
		if len(ids) == 0 {
			continue
		}
		questions, err := m.questions.GetQuestions(ctx, ids...)
		if err != nil {
			return created, err
		}
		theme, hasTheme := seed.ThemeFor(category)

		for _, q := range questions {
			wanted := make(map[core.TagType]string, 3)
			if hasTheme {
				wanted[core.TagTypeThemes] = theme
			}
			if term, ok := concepts[q.LegacyMid]; ok {
				wanted[core.TagTypeConcepts] = term
			}
			if term, ok := aspects[q.LegacySub]; ok {
				wanted[core.TagTypeAspects] = term
			}

			n, err := m.tagQuestion(ctx, q.ID, wanted, resolve)
			if err != nil {
				return created, err
			}
			created += n
		}
	}

	m.logger.Info("legacy tags created", "count", created)
	return created, nil
}

func (m *Manager) tagQuestion(ctx context.Context, questionID string, wanted map[core.TagType]string, resolve func(string) (int64, bool)) (int, error) {
	existing, err := m.tags.TagsForQuestion(ctx, questionID)
	if err != nil {
		return 0, err
	}
	has := make(map[int64]bool, len(existing))
	for _, t := range existing {
		has[t.TermID] = true
	}

	created := 0
	for _, tagType := range core.TagTypes {
		term, ok := wanted[tagType]
		if !ok {
			continue
		}
		id, ok := resolve(term)
		if !ok {
			m.logger.Warn("legacy term not in taxonomy", "question_id", questionID, "term", term)
			continue
		}
		if has[id] {
			continue
		}
		err := m.tags.UpsertTag(ctx, &core.QuestionTag{
			QuestionID: questionID,
			TermID:     id,
			TagType:    tagType,
			Confidence: 1.0,
		})
		if err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}
