// Package repository declares storage interfaces implemented by the postgres
// subpackage and faked in service tests.
package repository

import (
	"context"
	"encoding/json"

	"github.com/gofrs/uuid/v5"

	"github.com/mkamil/qalam/internal/draft"
	"github.com/mkamil/qalam/internal/model"
)

// DraftRepository provides owner-scoped access to versioned lesson drafts.
type DraftRepository interface {
	// Create persists a new draft at version 1.
	Create(ctx context.Context, d *model.Draft) error

	// Get returns the draft only if it belongs to userID; otherwise ErrNotFound.
	Get(ctx context.Context, userID, draftID uuid.UUID) (*model.Draft, error)

	// Update replaces draft_json wholesale, optionally moves active_step, and
	// increments draft_version by exactly one. Returns the new version.
	Update(ctx context.Context, userID, draftID uuid.UUID, draftJSON json.RawMessage, activeStep *string) (int64, error)
}

// Committer materializes draft steps into normalized lesson rows. Each call is
// a single transactional unit guarded by the draft's version.
type Committer interface {
	// CommitStep validates the step's slice of the draft and rewrites its
	// dependent rows. The expected version is compared against the stored
	// version under lock; on mismatch nothing is written.
	CommitStep(ctx context.Context, userID, draftID uuid.UUID, step draft.Step, expectedVersion int64) (model.CommitResult, error)

	// MarkPublished stamps the lesson snapshot and flips lesson and draft to
	// published, re-checking the draft version under lock.
	MarkPublished(ctx context.Context, userID, draftID, lessonID uuid.UUID, expectedVersion int64, lessonJSON json.RawMessage) error
}

// LessonRepository reads materialized lessons.
type LessonRepository interface {
	// Get returns the lesson only if it belongs to userID; otherwise ErrNotFound.
	Get(ctx context.Context, userID, lessonID uuid.UUID) (*model.Lesson, error)

	// DependentCounts returns row counts per dependent domain for a lesson.
	DependentCounts(ctx context.Context, lessonID uuid.UUID) (map[string]int64, error)
}

// UserRepository stores accounts.
type UserRepository interface {
	// Create inserts a new user; ErrAlreadyExists on duplicate username.
	Create(ctx context.Context, u *model.User) error

	// GetByUsername selects a user by username; ErrNotFound when absent.
	GetByUsername(ctx context.Context, username string) (*model.User, error)
}
