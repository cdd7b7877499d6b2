package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/poiesic/masterdb/core"
	"github.com/poiesic/masterdb/storage"
)

// MasterRepository implements storage.MasterRepository for SQLite.
type MasterRepository struct {
	repository
}

var _ storage.MasterRepository = (*MasterRepository)(nil)

// NewMasterRepository creates a new MasterRepository.
func NewMasterRepository(backend *Backend) *MasterRepository {
	return &MasterRepository{repository{backend: backend}}
}

// ReplaceCategory supersedes the category's cluster and master state in one transaction.
func (r *MasterRepository) ReplaceCategory(ctx context.Context, c *core.Consolidation) error {
	if err := core.ValidateCategory(c.Category); err != nil {
		return err
	}

	return r.backend.WithTransaction(ctx, func(ctx context.Context) error {
		conn, err := r.backend.conn(ctx)
		if err != nil {
			return err
		}
		category := string(c.Category)
		now := time.Now().UTC()
		if !c.CreatedAt.IsZero() {
			now = c.CreatedAt
		}

		if _, err := conn.ExecContext(ctx, `
			UPDATE questions SET cluster_id = NULL, master_id = NULL, is_representative = 0
			WHERE category = ?`, category); err != nil {
			return fmt.Errorf("clear cluster state: %w", err)
		}
		if _, err := conn.ExecContext(ctx, `DELETE FROM master_questions WHERE category = ?`, category); err != nil {
			return fmt.Errorf("clear masters: %w", err)
		}

		for i := range c.Masters {
			m := &c.Masters[i]
			if m.Category != c.Category {
				return fmt.Errorf("%w: master %s belongs to %s, not %s", storage.ErrInvalidQuery, m.ID, m.Category, c.Category)
			}
			m.CreatedAt = now
			_, err := conn.ExecContext(ctx, `
				INSERT INTO master_questions (master_id, representative_question_id, category, cluster_id,
					cluster_size, centroid_distance, coherence_score, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			`, m.ID, m.RepresentativeQuestionID, category, m.ClusterID, m.ClusterSize,
				nullFloat(m.CentroidDistance), nullFloat(m.CoherenceScore), formatTime(now))
			if err != nil {
				if isUniqueViolation(err) {
					return fmt.Errorf("%w: master %s: %w", storage.ErrDuplicateKey, m.ID, err)
				}
				return fmt.Errorf("insert master %s: %w", m.ID, err)
			}
		}

		for _, a := range c.Assignments {
			res, err := conn.ExecContext(ctx, `
				UPDATE questions SET cluster_id = ?, master_id = ?, is_representative = ?, updated_at = ?
				WHERE question_id = ? AND category = ?
			`, a.ClusterID, a.MasterID, boolToInt(a.IsRepresentative), formatTime(now), a.QuestionID, category)
			if err != nil {
				return fmt.Errorf("assign question %s: %w", a.QuestionID, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if n == 0 {
				return fmt.Errorf("%w: question %s in %s", storage.ErrNotFound, a.QuestionID, category)
			}
		}

		if c.RunID != "" {
			_, err := conn.ExecContext(ctx, `
				INSERT INTO consolidation_runs (run_id, category, policy, threshold, fingerprint,
					cluster_count, question_count, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			`, c.RunID, category, c.Policy, c.Threshold, c.Fingerprint,
				len(c.Masters), len(c.Assignments), formatTime(now))
			if err != nil {
				return fmt.Errorf("record run %s: %w", c.RunID, err)
			}
		}
		return nil
	})
}

const masterColumns = `master_id, representative_question_id, category, cluster_id, cluster_size,
	centroid_distance, coherence_score, created_at`

// GetMaster retrieves a master question by ID.
func (r *MasterRepository) GetMaster(ctx context.Context, masterID string) (*core.MasterQuestion, error) {
	conn, err := r.backend.conn(ctx)
	if err != nil {
		return nil, err
	}
	row := conn.QueryRowContext(ctx, `SELECT `+masterColumns+` FROM master_questions WHERE master_id = ?`, masterID)
	m, err := scanMaster(row)
	if err != nil {
		return nil, notFound(err, "master %s", masterID)
	}
	return m, nil
}

// MastersByCategory returns the masters of a category ordered by master ID.
func (r *MasterRepository) MastersByCategory(ctx context.Context, category core.Category) ([]*core.MasterQuestion, error) {
	conn, err := r.backend.conn(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := conn.QueryContext(ctx, `SELECT `+masterColumns+` FROM master_questions
		WHERE category = ? ORDER BY master_id`, string(category))
	if err != nil {
		return nil, fmt.Errorf("query masters: %w", err)
	}
	defer rows.Close()

	var out []*core.MasterQuestion
	for rows.Next() {
		m, err := scanMaster(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// LastRun returns the most recent consolidation run of a category.
func (r *MasterRepository) LastRun(ctx context.Context, category core.Category) (*core.Consolidation, error) {
	conn, err := r.backend.conn(ctx)
	if err != nil {
		return nil, err
	}
	var (
		c         core.Consolidation
		cat       string
		createdAt string
	)
	err = conn.QueryRowContext(ctx, `
		SELECT run_id, category, policy, threshold, fingerprint, created_at
		FROM consolidation_runs WHERE category = ?
		ORDER BY created_at DESC, rowid DESC LIMIT 1
	`, string(category)).Scan(&c.RunID, &cat, &c.Policy, &c.Threshold, &c.Fingerprint, &createdAt)
	if err != nil {
		return nil, notFound(err, "consolidation run for %s", category)
	}
	c.Category = core.Category(cat)
	c.CreatedAt = parseTime(createdAt)
	return &c, nil
}

func scanMaster(s rowScanner) (*core.MasterQuestion, error) {
	var (
		m         core.MasterQuestion
		category  string
		centroid  sql.NullFloat64
		coherence sql.NullFloat64
		createdAt string
	)
	err := s.Scan(&m.ID, &m.RepresentativeQuestionID, &category, &m.ClusterID, &m.ClusterSize,
		&centroid, &coherence, &createdAt)
	if err != nil {
		return nil, err
	}
	m.Category = core.Category(category)
	if centroid.Valid {
		v := centroid.Float64
		m.CentroidDistance = &v
	}
	if coherence.Valid {
		v := coherence.Float64
		m.CoherenceScore = &v
	}
	m.CreatedAt = parseTime(createdAt)
	return &m, nil
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
