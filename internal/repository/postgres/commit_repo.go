package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/mkamil/qalam/internal/draft"
	"github.com/mkamil/qalam/internal/errs"
	"github.com/mkamil/qalam/internal/model"
)

// CommitRepo implements Committer using PostgreSQL. Each step commit is one
// transaction: the draft row is locked, the expected version compared, the
// step's dependent rows replaced, and the attempt recorded in the commit
// ledger. Replays of an already-recorded (step, version) pair return the
// ledger result without touching dependent rows.
type CommitRepo struct{ db *DB }

// NewCommitRepo constructs a commit repository.
func NewCommitRepo(db *DB) *CommitRepo { return &CommitRepo{db: db} }

// lockedDraft is the slice of the draft row the committer works from.
type lockedDraft struct {
	lessonID   *uuid.UUID
	lessonType string
	version    int64
	raw        []byte
}

// CommitStep validates and materializes one named step of a draft.
func (r *CommitRepo) CommitStep(
	ctx context.Context, userID, draftID uuid.UUID, step draft.Step, expectedVersion int64,
) (res model.CommitResult, err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return model.CommitResult{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			r.recordFailure(ctx, draftID, userID, step, expectedVersion, err)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()

	d, err := lockDraft(ctx, tx, userID, draftID)
	if err != nil {
		return model.CommitResult{}, err
	}
	if d.version != expectedVersion {
		return model.CommitResult{}, &errs.VersionConflictError{Current: d.version}
	}

	if prior, ok, perr := priorCommit(ctx, tx, draftID, step, expectedVersion); perr != nil {
		return model.CommitResult{}, perr
	} else if ok {
		return prior, nil
	}

	doc, err := draft.Parse(d.raw)
	if err != nil {
		return model.CommitResult{}, err
	}
	if err = doc.ValidateStep(step, d.lessonType); err != nil {
		return model.CommitResult{}, err
	}

	counts := map[string]int64{}
	switch step {
	case draft.StepMeta:
		err = r.commitMeta(ctx, tx, userID, draftID, d, doc, counts)
	case draft.StepUnits:
		err = r.commitUnits(ctx, tx, d, doc, counts)
	case draft.StepText:
		err = r.commitText(ctx, tx, d, doc, counts)
	case draft.StepVocabulary:
		err = r.commitVocabulary(ctx, tx, d, doc, counts)
	case draft.StepComprehension:
		err = r.commitComprehension(ctx, tx, d, doc, counts)
	case draft.StepNotes:
		err = r.commitNotes(ctx, tx, d, doc, counts)
	default:
		err = errs.Validation("unknown step")
	}
	if err != nil {
		return model.CommitResult{}, err
	}
	if d.lessonID == nil {
		return model.CommitResult{}, fmt.Errorf("lesson id missing after %s commit", step)
	}

	resultJSON, err := json.Marshal(counts)
	if err != nil {
		return model.CommitResult{}, err
	}
	const ledger = `
INSERT INTO lesson_commits (draft_id, lesson_id, user_id, step, draft_version, result_json)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (draft_id, step, draft_version)
DO UPDATE SET lesson_id=EXCLUDED.lesson_id, result_json=EXCLUDED.result_json, error=NULL, created_at=now()`
	if _, err = tx.Exec(ctx, ledger, draftID, *d.lessonID, userID, string(step), expectedVersion, resultJSON); err != nil {
		return model.CommitResult{}, err
	}

	const mark = `UPDATE lesson_drafts SET status=$2, updated_at=now() WHERE draft_id=$1 AND status=$3`
	if _, err = tx.Exec(ctx, mark, draftID, model.DraftStatusCommitted, model.DraftStatusDraft); err != nil {
		return model.CommitResult{}, err
	}

	return model.CommitResult{LessonID: *d.lessonID, Step: string(step), Counts: counts}, nil
}

// MarkPublished flips lesson and draft to published under the version guard.
func (r *CommitRepo) MarkPublished(
	ctx context.Context, userID, draftID, lessonID uuid.UUID, expectedVersion int64, lessonJSON json.RawMessage,
) (err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()

	d, err := lockDraft(ctx, tx, userID, draftID)
	if err != nil {
		return err
	}
	if d.version != expectedVersion {
		return &errs.VersionConflictError{Current: d.version}
	}

	// The draft row is locked above; the lesson row is not, so it may have been
	// removed out of band. A zero-row update must not report publish success.
	const updLesson = `UPDATE lessons SET status=$3, lesson_json=$4, updated_at=now() WHERE id=$1 AND user_id=$2`
	ct, err := tx.Exec(ctx, updLesson, lessonID, userID, model.LessonStatusPublished, []byte(lessonJSON))
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	const updDraft = `UPDATE lesson_drafts SET status=$2, updated_at=now() WHERE draft_id=$1`
	if _, err = tx.Exec(ctx, updDraft, draftID, model.DraftStatusPublished); err != nil {
		return err
	}
	return nil
}

func lockDraft(ctx context.Context, tx pgx.Tx, userID, draftID uuid.UUID) (*lockedDraft, error) {
	const sel = `
SELECT lesson_id, lesson_type, draft_version, draft_json
FROM lesson_drafts WHERE draft_id=$1 AND user_id=$2 FOR UPDATE`
	var d lockedDraft
	err := tx.QueryRow(ctx, sel, draftID, userID).Scan(&d.lessonID, &d.lessonType, &d.version, &d.raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

// priorCommit checks the ledger for a successful commit of the same step at
// the same draft version and replays its recorded result.
func priorCommit(ctx context.Context, tx pgx.Tx, draftID uuid.UUID, step draft.Step, version int64) (model.CommitResult, bool, error) {
	const sel = `
SELECT lesson_id, result_json FROM lesson_commits
WHERE draft_id=$1 AND step=$2 AND draft_version=$3 AND error IS NULL`
	var lessonID *uuid.UUID
	var resultJSON []byte
	err := tx.QueryRow(ctx, sel, draftID, string(step), version).Scan(&lessonID, &resultJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.CommitResult{}, false, nil
	}
	if err != nil {
		return model.CommitResult{}, false, err
	}
	if lessonID == nil {
		return model.CommitResult{}, false, errs.ErrMetaNotCommitted
	}
	counts := map[string]int64{}
	if len(resultJSON) > 0 {
		if err := json.Unmarshal(resultJSON, &counts); err != nil {
			return model.CommitResult{}, false, err
		}
	}
	return model.CommitResult{
		LessonID:         *lessonID,
		Step:             string(step),
		Counts:           counts,
		AlreadyCommitted: true,
	}, true, nil
}

// recordFailure writes an error entry to the commit ledger after a rollback.
// Best effort: business failures and ledger write errors are ignored.
func (r *CommitRepo) recordFailure(ctx context.Context, draftID, userID uuid.UUID, step draft.Step, version int64, cause error) {
	if errors.Is(cause, errs.ErrNotFound) ||
		errors.Is(cause, errs.ErrVersionConflict) ||
		errors.Is(cause, errs.ErrMetaNotCommitted) ||
		errs.IsValidation(cause) {
		return
	}
	const q = `
INSERT INTO lesson_commits (draft_id, lesson_id, user_id, step, draft_version, error)
VALUES ($1,NULL,$2,$3,$4,$5)
ON CONFLICT (draft_id, step, draft_version)
DO UPDATE SET error=EXCLUDED.error, created_at=now()`
	_, _ = r.db.Pool.Exec(ctx, q, draftID, userID, string(step), version, cause.Error())
}

func (r *CommitRepo) commitMeta(
	ctx context.Context, tx pgx.Tx, userID, draftID uuid.UUID, d *lockedDraft, doc *draft.Document, counts map[string]int64,
) error {
	meta := doc.NormalizedMeta(d.lessonType)
	ref := doc.NormalizedReference()
	snapshot, err := draft.Snapshot(doc, d.lessonType, draft.SnapshotInclude{}, nil)
	if err != nil {
		return err
	}

	if d.lessonID == nil {
		newID, err := uuid.NewV4()
		if err != nil {
			return err
		}
		const ins = `
INSERT INTO lessons (id, user_id, container_id, unit_id, title, title_ar, lesson_type, subtype, status, difficulty, source, lesson_json)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`
		if _, err := tx.Exec(ctx, ins,
			newID, userID, ref.ContainerID, ref.UnitID, meta.Title, meta.TitleAr,
			meta.LessonType, meta.Subtype, model.LessonStatusDraft, meta.Difficulty, meta.Source, []byte(snapshot),
		); err != nil {
			return err
		}
		const backfill = `UPDATE lesson_drafts SET lesson_id=$2, updated_at=now() WHERE draft_id=$1`
		if _, err := tx.Exec(ctx, backfill, draftID, newID); err != nil {
			return err
		}
		d.lessonID = &newID
	} else {
		const upd = `
UPDATE lessons
SET container_id=$2, unit_id=$3, title=$4, title_ar=$5, lesson_type=$6, subtype=$7, difficulty=$8, source=$9, lesson_json=$10, updated_at=now()
WHERE id=$1`
		if _, err := tx.Exec(ctx, upd,
			*d.lessonID, ref.ContainerID, ref.UnitID, meta.Title, meta.TitleAr,
			meta.LessonType, meta.Subtype, meta.Difficulty, meta.Source, []byte(snapshot),
		); err != nil {
			return err
		}
	}

	counts["lessons"] = 1
	return nil
}

func (r *CommitRepo) commitUnits(ctx context.Context, tx pgx.Tx, d *lockedDraft, doc *draft.Document, counts map[string]int64) error {
	if d.lessonID == nil {
		return errs.ErrMetaNotCommitted
	}
	units := doc.NormalizedUnits()
	ref := doc.NormalizedReference()
	containerID := ref.ContainerID

	const updLesson = `UPDATE lessons SET container_id=$2, unit_id=$3, updated_at=now() WHERE id=$1`
	if _, err := tx.Exec(ctx, updLesson, *d.lessonID, containerID, ref.UnitID); err != nil {
		return err
	}

	const del = `DELETE FROM lesson_unit_links WHERE lesson_id=$1`
	if _, err := tx.Exec(ctx, del, *d.lessonID); err != nil {
		return err
	}

	const insContainer = `
INSERT INTO lesson_unit_links (lesson_id, container_id, unit_id, order_index, link_scope, role, note)
VALUES ($1,$2,'',0,'container',NULL,NULL)`
	if _, err := tx.Exec(ctx, insContainer, *d.lessonID, *containerID); err != nil {
		return err
	}

	const insUnit = `
INSERT INTO lesson_unit_links (lesson_id, container_id, unit_id, order_index, link_scope, role, note)
VALUES ($1,$2,$3,$4,'unit',$5,$6)`
	for _, u := range units {
		if _, err := tx.Exec(ctx, insUnit, *d.lessonID, *containerID, u.UnitID, *u.OrderIndex, u.Role, u.Note); err != nil {
			return err
		}
	}

	counts["container_links"] = 1
	counts["unit_links"] = int64(len(units))
	return nil
}

func (r *CommitRepo) commitText(ctx context.Context, tx pgx.Tx, d *lockedDraft, doc *draft.Document, counts map[string]int64) error {
	if d.lessonID == nil {
		return errs.ErrMetaNotCommitted
	}
	sentences := doc.NormalizedSentences()

	const del = `DELETE FROM lesson_sentences WHERE lesson_id=$1`
	if _, err := tx.Exec(ctx, del, *d.lessonID); err != nil {
		return err
	}
	const ins = `
INSERT INTO lesson_sentences (lesson_id, unit_id, sentence_order, text_ar, translation, notes)
VALUES ($1,$2,$3,$4,$5,$6)`
	for _, s := range sentences {
		if _, err := tx.Exec(ctx, ins, *d.lessonID, s.UnitID, *s.SentenceOrder, s.TextAr, s.Translation, s.Notes); err != nil {
			return err
		}
	}

	counts["sentences"] = int64(len(sentences))
	return nil
}

func (r *CommitRepo) commitVocabulary(ctx context.Context, tx pgx.Tx, d *lockedDraft, doc *draft.Document, counts map[string]int64) error {
	if d.lessonID == nil {
		return errs.ErrMetaNotCommitted
	}
	vocab := doc.NormalizedVocabulary()

	const del = `DELETE FROM lesson_vocabulary WHERE lesson_id=$1`
	if _, err := tx.Exec(ctx, del, *d.lessonID); err != nil {
		return err
	}
	const ins = `
INSERT INTO lesson_vocabulary (lesson_id, position, word_ar, transliteration, meaning, root, pos, note)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	for i, v := range vocab {
		if _, err := tx.Exec(ctx, ins, *d.lessonID, int64(i), v.Word, v.Transliteration, v.Meaning, v.Root, v.Pos, v.Note); err != nil {
			return err
		}
	}

	counts["vocabulary"] = int64(len(vocab))
	return nil
}

func (r *CommitRepo) commitComprehension(ctx context.Context, tx pgx.Tx, d *lockedDraft, doc *draft.Document, counts map[string]int64) error {
	if d.lessonID == nil {
		return errs.ErrMetaNotCommitted
	}

	const del = `DELETE FROM lesson_comprehension WHERE lesson_id=$1`
	if _, err := tx.Exec(ctx, del, *d.lessonID); err != nil {
		return err
	}

	const ins = `
INSERT INTO lesson_comprehension (lesson_id, kind, position, item_json)
VALUES ($1,$2,$3,$4)`
	var total int64
	for i, q := range doc.Comprehension.MCQs {
		item, err := json.Marshal(q)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, ins, *d.lessonID, "mcq", int64(i), item); err != nil {
			return err
		}
		total++
	}
	for i, item := range doc.Comprehension.Reflective {
		if _, err := tx.Exec(ctx, ins, *d.lessonID, "reflective", int64(i), []byte(item)); err != nil {
			return err
		}
		total++
	}
	for i, item := range doc.Comprehension.Analytical {
		if _, err := tx.Exec(ctx, ins, *d.lessonID, "analytical", int64(i), []byte(item)); err != nil {
			return err
		}
		total++
	}

	// The lesson snapshot carries the committed comprehension alongside meta.
	snapshot, err := draft.Snapshot(doc, d.lessonType, draft.SnapshotInclude{Comprehension: true}, nil)
	if err != nil {
		return err
	}
	const upd = `UPDATE lessons SET lesson_json=$2, updated_at=now() WHERE id=$1`
	if _, err := tx.Exec(ctx, upd, *d.lessonID, []byte(snapshot)); err != nil {
		return err
	}

	counts["comprehension_items"] = total
	return nil
}

func (r *CommitRepo) commitNotes(ctx context.Context, tx pgx.Tx, d *lockedDraft, doc *draft.Document, counts map[string]int64) error {
	if d.lessonID == nil {
		return errs.ErrMetaNotCommitted
	}
	notes := doc.NormalizedNotes()

	const del = `DELETE FROM lesson_notes WHERE lesson_id=$1`
	if _, err := tx.Exec(ctx, del, *d.lessonID); err != nil {
		return err
	}
	const ins = `
INSERT INTO lesson_notes (lesson_id, position, note_type, title, excerpt, commentary, target_type, target_id, relation)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	for i, n := range notes {
		targetID := "lesson:" + d.lessonID.String()
		if n.TargetID != nil {
			targetID = *n.TargetID
		}
		if _, err := tx.Exec(ctx, ins,
			*d.lessonID, int64(i), *n.NoteType, n.Title, n.Excerpt, n.Commentary,
			*n.TargetType, targetID, *n.Relation,
		); err != nil {
			return err
		}
	}

	counts["notes"] = int64(len(notes))
	return nil
}
