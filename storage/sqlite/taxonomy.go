package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/poiesic/masterdb/core"
	"github.com/poiesic/masterdb/storage"
)

// TaxonomyRepository implements storage.TaxonomyRepository for SQLite.
type TaxonomyRepository struct {
	repository
}

var _ storage.TaxonomyRepository = (*TaxonomyRepository)(nil)

// NewTaxonomyRepository creates a new TaxonomyRepository.
func NewTaxonomyRepository(backend *Backend) *TaxonomyRepository {
	return &TaxonomyRepository{repository{backend: backend}}
}

const termColumns = `term_id, term, term_type, description, usage_count, created_at`

// AddTerms inserts new terms and populates their IDs.
func (r *TaxonomyRepository) AddTerms(ctx context.Context, terms ...*core.TaxonomyTerm) ([]*core.TaxonomyTerm, error) {
	for _, t := range terms {
		if err := core.ValidateTerm(t); err != nil {
			return nil, err
		}
	}

	err := r.backend.WithTransaction(ctx, func(ctx context.Context) error {
		conn, err := r.backend.conn(ctx)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		for _, t := range terms {
			t.CreatedAt = now
			t.UsageCount = 0
			res, err := conn.ExecContext(ctx, `
				INSERT INTO taxonomy (term, term_type, description, usage_count, created_at)
				VALUES (?, ?, ?, 0, ?)
			`, t.Term, string(t.Type), t.Description, formatTime(now))
			if err != nil {
				if isUniqueViolation(err) {
					return fmt.Errorf("%w: term %q", storage.ErrDuplicateKey, t.Term)
				}
				return fmt.Errorf("insert term %q: %w", t.Term, err)
			}
			if t.ID, err = res.LastInsertId(); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return terms, nil
}

// GetTerm retrieves a term by ID.
func (r *TaxonomyRepository) GetTerm(ctx context.Context, id int64) (*core.TaxonomyTerm, error) {
	conn, err := r.backend.conn(ctx)
	if err != nil {
		return nil, err
	}
	t, err := scanTerm(conn.QueryRowContext(ctx, `SELECT `+termColumns+` FROM taxonomy WHERE term_id = ?`, id))
	if err != nil {
		return nil, notFound(err, "term %d", id)
	}
	return t, nil
}

// FindTerm retrieves a term by its exact text.
func (r *TaxonomyRepository) FindTerm(ctx context.Context, term string) (*core.TaxonomyTerm, error) {
	conn, err := r.backend.conn(ctx)
	if err != nil {
		return nil, err
	}
	t, err := scanTerm(conn.QueryRowContext(ctx, `SELECT `+termColumns+` FROM taxonomy WHERE term = ?`, term))
	if err != nil {
		return nil, notFound(err, "term %q", term)
	}
	return t, nil
}

// TermsByType returns the terms of one level, most used first.
func (r *TaxonomyRepository) TermsByType(ctx context.Context, termType core.TermType) ([]*core.TaxonomyTerm, error) {
	return r.queryTerms(ctx, `SELECT `+termColumns+` FROM taxonomy
		WHERE term_type = ? ORDER BY usage_count DESC, term_id`, string(termType))
}

// AddRelation records a directed relation; duplicates are ignored.
func (r *TaxonomyRepository) AddRelation(ctx context.Context, rel core.TermRelation) error {
	conn, err := r.backend.conn(ctx)
	if err != nil {
		return err
	}
	strength := rel.Strength
	if strength == 0 {
		strength = 1
	}
	_, err = conn.ExecContext(ctx, `
		INSERT INTO taxonomy_relations (from_term_id, to_term_id, relation_type, strength)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(from_term_id, to_term_id, relation_type) DO NOTHING
	`, rel.FromTermID, rel.ToTermID, rel.RelationType, strength)
	if err != nil {
		return fmt.Errorf("insert relation %d -> %d: %w", rel.FromTermID, rel.ToTermID, err)
	}
	return nil
}

// Children returns the targets of relationType edges leaving parentID.
func (r *TaxonomyRepository) Children(ctx context.Context, parentID int64, relationType string) ([]*core.TaxonomyTerm, error) {
	return r.queryTerms(ctx, `
		SELECT t.term_id, t.term, t.term_type, t.description, t.usage_count, t.created_at
		FROM taxonomy t
		JOIN taxonomy_relations rel ON t.term_id = rel.to_term_id
		WHERE rel.from_term_id = ? AND rel.relation_type = ?
		ORDER BY t.usage_count DESC, t.term_id
	`, parentID, relationType)
}

// Parents returns the sources of relationType edges entering childID.
func (r *TaxonomyRepository) Parents(ctx context.Context, childID int64, relationType string) ([]*core.TaxonomyTerm, error) {
	return r.queryTerms(ctx, `
		SELECT t.term_id, t.term, t.term_type, t.description, t.usage_count, t.created_at
		FROM taxonomy t
		JOIN taxonomy_relations rel ON t.term_id = rel.from_term_id
		WHERE rel.to_term_id = ? AND rel.relation_type = ?
		ORDER BY t.term_id
	`, childID, relationType)
}

func (r *TaxonomyRepository) queryTerms(ctx context.Context, query string, args ...any) ([]*core.TaxonomyTerm, error) {
	conn, err := r.backend.conn(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query terms: %w", err)
	}
	defer rows.Close()

	var out []*core.TaxonomyTerm
	for rows.Next() {
		t, err := scanTerm(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTerm(s rowScanner) (*core.TaxonomyTerm, error) {
	var (
		t         core.TaxonomyTerm
		termType  string
		createdAt string
	)
	if err := s.Scan(&t.ID, &t.Term, &termType, &t.Description, &t.UsageCount, &createdAt); err != nil {
		return nil, err
	}
	t.Type = core.TermType(termType)
	t.CreatedAt = parseTime(createdAt)
	return &t, nil
}
