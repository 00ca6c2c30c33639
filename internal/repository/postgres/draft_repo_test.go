package postgres

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/mkamil/qalam/internal/errs"
	"github.com/mkamil/qalam/internal/model"
)

func newDB(t *testing.T) (*DB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return &DB{Pool: mock}, mock
}

func TestDraftRepo_Create_OK(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewDraftRepo(db)

	d := &model.Draft{
		DraftID:      uuid.Must(uuid.NewV4()),
		UserID:       uuid.Must(uuid.NewV4()),
		LessonType:   "quran",
		Status:       model.DraftStatusDraft,
		DraftVersion: 1,
		DraftJSON:    json.RawMessage(`{"schema_version":1}`),
	}

	mock.ExpectExec(`INSERT INTO lesson_drafts`).
		WithArgs(d.DraftID, d.UserID, d.LessonType, d.Subtype, d.Source, d.Status, d.ActiveStep, d.DraftVersion, []byte(d.DraftJSON)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, r.Create(context.Background(), d))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDraftRepo_Create_Duplicate(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewDraftRepo(db)

	mock.ExpectExec(`INSERT INTO lesson_drafts`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := r.Create(context.Background(), &model.Draft{DraftID: uuid.Must(uuid.NewV4())})
	require.ErrorIs(t, err, errs.ErrAlreadyExists)
}

func TestDraftRepo_Get_OK(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewDraftRepo(db)

	draftID := uuid.Must(uuid.NewV4())
	userID := uuid.Must(uuid.NewV4())
	now := time.Now()

	mock.ExpectQuery(`FROM lesson_drafts WHERE draft_id=\$1 AND user_id=\$2`).
		WithArgs(draftID, userID).
		WillReturnRows(pgxmock.NewRows([]string{
			"draft_id", "lesson_id", "user_id", "lesson_type", "subtype", "source",
			"status", "active_step", "draft_version", "draft_json", "created_at", "updated_at",
		}).AddRow(
			draftID, nil, userID, "quran", nil, nil,
			"draft", nil, int64(3), []byte(`{"schema_version":1}`), now, now,
		))

	d, err := r.Get(context.Background(), userID, draftID)
	require.NoError(t, err)
	require.Equal(t, draftID, d.DraftID)
	require.Nil(t, d.LessonID)
	require.Equal(t, int64(3), d.DraftVersion)
}

func TestDraftRepo_Get_NotFound(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewDraftRepo(db)

	mock.ExpectQuery(`FROM lesson_drafts`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(pgx.ErrNoRows)

	_, err := r.Get(context.Background(), uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4()))
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestDraftRepo_Update_BumpsVersion(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewDraftRepo(db)

	draftID := uuid.Must(uuid.NewV4())
	userID := uuid.Must(uuid.NewV4())
	payload := json.RawMessage(`{"meta":{"title":"x"}}`)

	mock.ExpectQuery(`UPDATE lesson_drafts`).
		WithArgs(draftID, userID, []byte(payload), (*string)(nil)).
		WillReturnRows(pgxmock.NewRows([]string{"draft_version"}).AddRow(int64(4)))

	v, err := r.Update(context.Background(), userID, draftID, payload, nil)
	require.NoError(t, err)
	require.Equal(t, int64(4), v)
}

func TestDraftRepo_Update_NotFound(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewDraftRepo(db)

	mock.ExpectQuery(`UPDATE lesson_drafts`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(pgx.ErrNoRows)

	_, err := r.Update(context.Background(), uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4()), json.RawMessage(`{}`), nil)
	require.ErrorIs(t, err, errs.ErrNotFound)
}
