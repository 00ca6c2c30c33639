package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/mkamil/qalam/internal/errs"
	"github.com/mkamil/qalam/internal/model"
)

// LessonRepo implements LessonRepository using PostgreSQL.
type LessonRepo struct{ db *DB }

// NewLessonRepo constructs a lesson repository.
func NewLessonRepo(db *DB) *LessonRepo { return &LessonRepo{db: db} }

// Get returns a lesson scoped to its owner.
func (r *LessonRepo) Get(ctx context.Context, userID, lessonID uuid.UUID) (*model.Lesson, error) {
	const q = `
SELECT id, user_id, container_id, unit_id, title, title_ar, lesson_type, subtype, status, difficulty, source, lesson_json, created_at, updated_at
FROM lessons WHERE id=$1 AND user_id=$2`
	row := r.db.Pool.QueryRow(ctx, q, lessonID, userID)
	var l model.Lesson
	var raw []byte
	err := row.Scan(
		&l.ID, &l.UserID, &l.ContainerID, &l.UnitID, &l.Title, &l.TitleAr,
		&l.LessonType, &l.Subtype, &l.Status, &l.Difficulty, &l.Source, &raw,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	l.LessonJSON = json.RawMessage(raw)
	return &l, nil
}

// DependentCounts returns per-domain row counts for a lesson.
func (r *LessonRepo) DependentCounts(ctx context.Context, lessonID uuid.UUID) (map[string]int64, error) {
	const q = `
SELECT
  (SELECT COUNT(*) FROM lesson_sentences WHERE lesson_id=$1),
  (SELECT COUNT(*) FROM lesson_vocabulary WHERE lesson_id=$1),
  (SELECT COUNT(*) FROM lesson_comprehension WHERE lesson_id=$1),
  (SELECT COUNT(*) FROM lesson_unit_links WHERE lesson_id=$1),
  (SELECT COUNT(*) FROM lesson_notes WHERE lesson_id=$1)`
	var sentences, vocabulary, comprehension, unitLinks, notes int64
	if err := r.db.Pool.QueryRow(ctx, q, lessonID).Scan(&sentences, &vocabulary, &comprehension, &unitLinks, &notes); err != nil {
		return nil, err
	}
	return map[string]int64{
		"sentences":           sentences,
		"vocabulary":          vocabulary,
		"comprehension_items": comprehension,
		"unit_links":          unitLinks,
		"notes":               notes,
	}, nil
}
