// Package model defines domain entities used by services and repositories.
package model

import (
	"encoding/json"
	"time"

	"github.com/gofrs/uuid/v5"
)

// Draft statuses.
const (
	DraftStatusDraft     = "draft"
	DraftStatusCommitted = "committed"
	DraftStatusPublished = "published"
)

// Lesson statuses.
const (
	LessonStatusDraft     = "draft"
	LessonStatusPublished = "published"
)

// Tokens collects issued access tokens.
type Tokens struct {
	AccessToken string
	ExpiresAt   time.Time // access token expiry (for diagnostics)
}

// Draft is a versioned, owner-scoped working document prior to materialization.
// DraftJSON is opaque at this layer; the draft package gives it step-scoped shape.
type Draft struct {
	DraftID      uuid.UUID       // PK, generated at creation
	LessonID     *uuid.UUID      // set by the first successful meta commit, immutable after
	UserID       uuid.UUID       // owner; every read/write is scoped to this value
	LessonType   string          // classification, fixed at creation
	Subtype      *string
	Source       *string
	Status       string          // draft | committed | published
	ActiveStep   *string         // advisory cursor into the authoring workflow
	DraftVersion int64           // optimistic concurrency token, starts at 1
	DraftJSON    json.RawMessage
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Lesson is the materialized header row a draft commits into.
type Lesson struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	ContainerID *string
	UnitID      *string
	Title       string
	TitleAr     *string
	LessonType  string
	Subtype     *string
	Status      string
	Difficulty  *int64
	Source      *string
	LessonJSON  json.RawMessage
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CommitResult reports the outcome of one committed step.
type CommitResult struct {
	LessonID         uuid.UUID
	Step             string
	Counts           map[string]int64
	AlreadyCommitted bool // replay of a ledger-recorded commit, no rows were rewritten
}

// PublishResult reports the outcome of publishing a draft.
type PublishResult struct {
	LessonID uuid.UUID
	Status   string
}

// User represents an account stored on the server.
type User struct {
	ID        uuid.UUID
	Username  string // unique
	PwdHash   []byte // Argon2id(password, SaltAuth)
	SaltAuth  []byte // per-user auth salt
	CreatedAt time.Time
}
