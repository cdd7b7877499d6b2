package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/poiesic/masterdb/core"
	"github.com/poiesic/masterdb/storage"
)

// TagRepository implements storage.TagRepository for SQLite.
type TagRepository struct {
	repository
}

var _ storage.TagRepository = (*TagRepository)(nil)

// NewTagRepository creates a new TagRepository.
func NewTagRepository(backend *Backend) *TagRepository {
	return &TagRepository{repository{backend: backend}}
}

// UpsertTag replaces the (question, term, tag type) row and recomputes the
// term's usage count from the live tag rows, in one transaction.
func (r *TagRepository) UpsertTag(ctx context.Context, tag *core.QuestionTag) error {
	if err := core.ValidateTag(tag); err != nil {
		return err
	}

	return r.backend.WithTransaction(ctx, func(ctx context.Context) error {
		conn, err := r.backend.conn(ctx)
		if err != nil {
			return err
		}
		if err := r.requireRefs(ctx, conn, tag.QuestionID, tag.TermID); err != nil {
			return err
		}

		if tag.CreatedAt.IsZero() {
			tag.CreatedAt = time.Now().UTC()
		}
		_, err = conn.ExecContext(ctx, `
			INSERT INTO question_tags (question_id, term_id, tag_type, confidence, is_auto_tagged, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(question_id, term_id, tag_type) DO UPDATE SET
				confidence = excluded.confidence,
				is_auto_tagged = excluded.is_auto_tagged,
				created_at = excluded.created_at
		`, tag.QuestionID, tag.TermID, string(tag.TagType), tag.Confidence,
			boolToInt(tag.IsAuto), formatTime(tag.CreatedAt))
		if err != nil {
			return fmt.Errorf("upsert tag %s/%d: %w", tag.QuestionID, tag.TermID, err)
		}

		return recomputeUsage(ctx, conn, tag.TermID)
	})
}

// RemoveTag deletes one tag row and recomputes the term's usage count.
func (r *TagRepository) RemoveTag(ctx context.Context, questionID string, termID int64, tagType core.TagType) error {
	return r.backend.WithTransaction(ctx, func(ctx context.Context) error {
		conn, err := r.backend.conn(ctx)
		if err != nil {
			return err
		}
		res, err := conn.ExecContext(ctx, `
			DELETE FROM question_tags WHERE question_id = ? AND term_id = ? AND tag_type = ?
		`, questionID, termID, string(tagType))
		if err != nil {
			return fmt.Errorf("delete tag %s/%d: %w", questionID, termID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: tag %s/%d/%s", storage.ErrNotFound, questionID, termID, tagType)
		}
		return recomputeUsage(ctx, conn, termID)
	})
}

// TagsForQuestion returns a question's tags with term text populated.
func (r *TagRepository) TagsForQuestion(ctx context.Context, questionID string) ([]*core.QuestionTag, error) {
	conn, err := r.backend.conn(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := conn.QueryContext(ctx, `
		SELECT qt.question_id, qt.term_id, t.term, qt.tag_type, qt.confidence, qt.is_auto_tagged, qt.created_at
		FROM question_tags qt
		JOIN taxonomy t ON t.term_id = qt.term_id
		WHERE qt.question_id = ?
		ORDER BY CASE qt.tag_type WHEN 'themes' THEN 0 WHEN 'concepts' THEN 1 ELSE 2 END, qt.term_id
	`, questionID)
	if err != nil {
		return nil, fmt.Errorf("query tags for %s: %w", questionID, err)
	}
	defer rows.Close()

	var out []*core.QuestionTag
	for rows.Next() {
		var (
			tag       core.QuestionTag
			tagType   string
			isAuto    int
			createdAt string
		)
		if err := rows.Scan(&tag.QuestionID, &tag.TermID, &tag.Term, &tagType, &tag.Confidence, &isAuto, &createdAt); err != nil {
			return nil, err
		}
		tag.TagType = core.TagType(tagType)
		tag.IsAuto = isAuto != 0
		tag.CreatedAt = parseTime(createdAt)
		out = append(out, &tag)
	}
	return out, rows.Err()
}

// UntaggedQuestionIDs returns IDs of questions with no tag of tagType.
func (r *TagRepository) UntaggedQuestionIDs(ctx context.Context, tagType core.TagType, limit int) ([]string, error) {
	conn, err := r.backend.conn(ctx)
	if err != nil {
		return nil, err
	}
	query := `
		SELECT q.question_id FROM questions q
		WHERE NOT EXISTS (
			SELECT 1 FROM question_tags qt
			WHERE qt.question_id = q.question_id AND qt.tag_type = ?
		)
		ORDER BY q.question_id`
	args := []any{string(tagType)}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query untagged: %w", err)
	}
	return scanStrings(rows)
}

// QuestionIDsByTerm returns IDs of questions tagged with a term.
func (r *TagRepository) QuestionIDsByTerm(ctx context.Context, termID int64, tagType core.TagType, limit int) ([]string, error) {
	conn, err := r.backend.conn(ctx)
	if err != nil {
		return nil, err
	}
	query := `SELECT DISTINCT question_id FROM question_tags WHERE term_id = ?`
	args := []any{termID}
	if tagType != "" {
		query += ` AND tag_type = ?`
		args = append(args, string(tagType))
	}
	query += ` ORDER BY question_id`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query term %d: %w", termID, err)
	}
	return scanStrings(rows)
}

func (r *TagRepository) requireRefs(ctx context.Context, conn querier, questionID string, termID int64) error {
	var n int
	if err := conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM questions WHERE question_id = ?`, questionID).Scan(&n); err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: question %s", storage.ErrNotFound, questionID)
	}
	if err := conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM taxonomy WHERE term_id = ?`, termID).Scan(&n); err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: term %d", storage.ErrNotFound, termID)
	}
	return nil
}

// recomputeUsage sets usage_count to the live number of tag rows for the term.
func recomputeUsage(ctx context.Context, conn querier, termID int64) error {
	_, err := conn.ExecContext(ctx, `
		UPDATE taxonomy
		SET usage_count = (SELECT COUNT(*) FROM question_tags WHERE term_id = ?)
		WHERE term_id = ?
	`, termID, termID)
	if err != nil {
		return fmt.Errorf("recompute usage of term %d: %w", termID, err)
	}
	return nil
}
