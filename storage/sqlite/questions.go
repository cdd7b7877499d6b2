package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/poiesic/masterdb/core"
	"github.com/poiesic/masterdb/storage"
)

// QuestionRepository implements storage.QuestionRepository for SQLite.
type QuestionRepository struct {
	repository
}

var _ storage.QuestionRepository = (*QuestionRepository)(nil)

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(backend *Backend) *QuestionRepository {
	return &QuestionRepository{repository{backend: backend}}
}

const questionColumns = `question_id, question_text, category, legacy_mid, legacy_sub,
	cluster_id, master_id, is_representative, created_at, updated_at`

// AddQuestions inserts or updates questions. Cluster state is never touched here.
func (r *QuestionRepository) AddQuestions(ctx context.Context, questions ...*core.Question) ([]*core.Question, error) {
	for _, q := range questions {
		if err := core.ValidateQuestion(q); err != nil {
			return nil, err
		}
	}

	err := r.backend.WithTransaction(ctx, func(ctx context.Context) error {
		conn, err := r.backend.conn(ctx)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		for _, q := range questions {
			if q.CreatedAt.IsZero() {
				q.CreatedAt = now
			}
			q.UpdatedAt = now
			_, err := conn.ExecContext(ctx, `
				INSERT INTO questions (question_id, question_text, category, legacy_mid, legacy_sub, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(question_id) DO UPDATE SET
					question_text = excluded.question_text,
					category = excluded.category,
					legacy_mid = excluded.legacy_mid,
					legacy_sub = excluded.legacy_sub,
					updated_at = excluded.updated_at
			`, q.ID, q.Text, string(q.Category), q.LegacyMid, q.LegacySub,
				formatTime(q.CreatedAt), formatTime(q.UpdatedAt))
			if err != nil {
				return fmt.Errorf("insert question %s: %w", q.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return questions, nil
}

// GetQuestion retrieves a single question by ID.
func (r *QuestionRepository) GetQuestion(ctx context.Context, id string) (*core.Question, error) {
	conn, err := r.backend.conn(ctx)
	if err != nil {
		return nil, err
	}
	row := conn.QueryRowContext(ctx, `SELECT `+questionColumns+` FROM questions WHERE question_id = ?`, id)
	q, err := scanQuestion(row)
	if err != nil {
		return nil, notFound(err, "question %s", id)
	}
	return q, nil
}

// GetQuestions retrieves the questions that exist among ids, ordered by ID.
func (r *QuestionRepository) GetQuestions(ctx context.Context, ids ...string) ([]*core.Question, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return r.queryQuestions(ctx, `SELECT `+questionColumns+` FROM questions
		WHERE question_id IN (`+placeholders(len(ids))+`) ORDER BY question_id`, args...)
}

// QuestionIDsByCategory returns every question ID of a category in ascending order.
func (r *QuestionRepository) QuestionIDsByCategory(ctx context.Context, category core.Category) ([]string, error) {
	conn, err := r.backend.conn(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := conn.QueryContext(ctx, `SELECT question_id FROM questions WHERE category = ? ORDER BY question_id`, string(category))
	if err != nil {
		return nil, fmt.Errorf("query category %s: %w", category, err)
	}
	return scanStrings(rows)
}

// QuestionsByMaster returns the members of a master, representative first.
func (r *QuestionRepository) QuestionsByMaster(ctx context.Context, masterID string) ([]*core.Question, error) {
	return r.queryQuestions(ctx, `SELECT `+questionColumns+` FROM questions
		WHERE master_id = ? ORDER BY is_representative DESC, question_id`, masterID)
}

// SearchText returns questions whose text contains keyword.
func (r *QuestionRepository) SearchText(ctx context.Context, keyword string, category core.Category, limit int) ([]*core.Question, error) {
	if strings.TrimSpace(keyword) == "" {
		return nil, fmt.Errorf("%w: empty keyword", storage.ErrInvalidQuery)
	}
	query := `SELECT ` + questionColumns + ` FROM questions WHERE question_text LIKE ? ESCAPE '\'`
	args := []any{"%" + escapeLike(keyword) + "%"}
	if category != "" {
		query += ` AND category = ?`
		args = append(args, string(category))
	}
	query += ` ORDER BY question_id`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return r.queryQuestions(ctx, query, args...)
}

// UnclassifiedQuestions returns questions whose legacy mid category is empty
// or core.LegacyUnclassified.
func (r *QuestionRepository) UnclassifiedQuestions(ctx context.Context, limit int) ([]*core.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM questions WHERE legacy_mid IN ('', ?) ORDER BY question_id`
	args := []any{core.LegacyUnclassified}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return r.queryQuestions(ctx, query, args...)
}

// UpdateLegacyCategories sets the advisory legacy categories of a question.
func (r *QuestionRepository) UpdateLegacyCategories(ctx context.Context, id, mid, sub string) error {
	conn, err := r.backend.conn(ctx)
	if err != nil {
		return err
	}
	res, err := conn.ExecContext(ctx, `UPDATE questions SET legacy_mid = ?, legacy_sub = ?, updated_at = ? WHERE question_id = ?`,
		mid, sub, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("update question %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: question %s", storage.ErrNotFound, id)
	}
	return nil
}

// Statistics reports row counts across the store.
func (r *QuestionRepository) Statistics(ctx context.Context) (*core.Statistics, error) {
	conn, err := r.backend.conn(ctx)
	if err != nil {
		return nil, err
	}

	stats := &core.Statistics{
		QuestionsByCategory: make(map[core.Category]int),
		MastersByCategory:   make(map[core.Category]int),
		TermsByType:         make(map[core.TermType]int),
		TagsByType:          make(map[core.TagType]int),
	}

	counts := []struct {
		table string
		dst   *int
	}{
		{"questions", &stats.Questions},
		{"embeddings", &stats.Embeddings},
		{"master_questions", &stats.Masters},
		{"taxonomy", &stats.Terms},
		{"question_tags", &stats.Tags},
	}
	for _, c := range counts {
		if err := conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+c.table).Scan(c.dst); err != nil {
			return nil, fmt.Errorf("count %s: %w", c.table, err)
		}
	}

	groups := []struct {
		query string
		put   func(key string, n int)
	}{
		{`SELECT category, COUNT(*) FROM questions GROUP BY category`,
			func(k string, n int) { stats.QuestionsByCategory[core.Category(k)] = n }},
		{`SELECT category, COUNT(*) FROM master_questions GROUP BY category`,
			func(k string, n int) { stats.MastersByCategory[core.Category(k)] = n }},
		{`SELECT term_type, COUNT(*) FROM taxonomy GROUP BY term_type`,
			func(k string, n int) { stats.TermsByType[core.TermType(k)] = n }},
		{`SELECT tag_type, COUNT(*) FROM question_tags GROUP BY tag_type`,
			func(k string, n int) { stats.TagsByType[core.TagType(k)] = n }},
	}
	for _, g := range groups {
		if err := scanGroups(ctx, conn, g.query, g.put); err != nil {
			return nil, err
		}
	}

	return stats, nil
}

func (r *QuestionRepository) queryQuestions(ctx context.Context, query string, args ...any) ([]*core.Question, error) {
	conn, err := r.backend.conn(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer rows.Close()

	var out []*core.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuestion(s rowScanner) (*core.Question, error) {
	var (
		q                    core.Question
		category             string
		clusterID            sql.NullInt64
		masterID             sql.NullString
		representative       int
		createdAt, updatedAt string
	)
	err := s.Scan(&q.ID, &q.Text, &category, &q.LegacyMid, &q.LegacySub,
		&clusterID, &masterID, &representative, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	q.Category = core.Category(category)
	if clusterID.Valid {
		id := int(clusterID.Int64)
		q.ClusterID = &id
	}
	if masterID.Valid {
		id := masterID.String
		q.MasterID = &id
	}
	q.IsRepresentative = representative != 0
	q.CreatedAt = parseTime(createdAt)
	q.UpdatedAt = parseTime(updatedAt)
	return &q, nil
}

func scanStrings(rows *sql.Rows) ([]string, error) {
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanGroups(ctx context.Context, conn querier, query string, put func(string, int)) error {
	rows, err := conn.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			key string
			n   int
		)
		if err := rows.Scan(&key, &n); err != nil {
			return err
		}
		put(key, n)
	}
	return rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
