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

// DraftRepo implements DraftRepository using PostgreSQL.
type DraftRepo struct{ db *DB }

// NewDraftRepo constructs a draft repository.
func NewDraftRepo(db *DB) *DraftRepo { return &DraftRepo{db: db} }

// Create persists a new draft row at version 1.
func (r *DraftRepo) Create(ctx context.Context, d *model.Draft) error {
	const q = `
INSERT INTO lesson_drafts (draft_id, user_id, lesson_type, subtype, source, status, active_step, draft_version, draft_json)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	_, err := r.db.Pool.Exec(ctx, q,
		d.DraftID, d.UserID, d.LessonType, d.Subtype, d.Source,
		d.Status, d.ActiveStep, d.DraftVersion, []byte(d.DraftJSON),
	)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

// Get returns a draft scoped to its owner. A draft belonging to another user
// is indistinguishable from an absent one.
func (r *DraftRepo) Get(ctx context.Context, userID, draftID uuid.UUID) (*model.Draft, error) {
	const q = `
SELECT draft_id, lesson_id, user_id, lesson_type, subtype, source, status, active_step, draft_version, draft_json, created_at, updated_at
FROM lesson_drafts WHERE draft_id=$1 AND user_id=$2`
	row := r.db.Pool.QueryRow(ctx, q, draftID, userID)
	var d model.Draft
	var raw []byte
	err := row.Scan(
		&d.DraftID, &d.LessonID, &d.UserID, &d.LessonType, &d.Subtype, &d.Source,
		&d.Status, &d.ActiveStep, &d.DraftVersion, &raw, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	d.DraftJSON = json.RawMessage(raw)
	return &d, nil
}

// Update replaces the document wholesale and bumps draft_version by one.
// active_step is only moved when a non-nil value is supplied.
func (r *DraftRepo) Update(ctx context.Context, userID, draftID uuid.UUID, draftJSON json.RawMessage, activeStep *string) (int64, error) {
	const q = `
UPDATE lesson_drafts
SET draft_json=$3,
    active_step=COALESCE($4, active_step),
    draft_version=draft_version+1,
    updated_at=now()
WHERE draft_id=$1 AND user_id=$2
RETURNING draft_version`
	var newVer int64
	err := r.db.Pool.QueryRow(ctx, q, draftID, userID, []byte(draftJSON), activeStep).Scan(&newVer)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, errs.ErrNotFound
		}
		return 0, err
	}
	return newVer, nil
}
