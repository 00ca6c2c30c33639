package service

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/mkamil/qalam/internal/draft"
	"github.com/mkamil/qalam/internal/errs"
	"github.com/mkamil/qalam/internal/model"
	"github.com/mkamil/qalam/internal/repository"
)

// CreateDraftInput carries the creation parameters for a new draft.
type CreateDraftInput struct {
	LessonType string
	Subtype    *string
	Source     *string
	Reference  *draft.Reference
	ActiveStep *string
}

// DraftService defines the authoring workflow over lesson drafts.
type DraftService interface {
	// Create initializes a draft at version 1 with the canonical skeleton.
	Create(ctx context.Context, userID uuid.UUID, in CreateDraftInput) (*model.Draft, error)

	// Get returns the caller's draft; non-owned drafts are ErrNotFound.
	Get(ctx context.Context, userID, draftID uuid.UUID) (*model.Draft, error)

	// Update replaces the draft document wholesale and bumps the version.
	Update(ctx context.Context, userID, draftID uuid.UUID, draftJSON json.RawMessage, activeStep *string) (int64, error)

	// CommitStep materializes one named step at the expected version.
	CommitStep(ctx context.Context, userID, draftID uuid.UUID, stepName string, expectedVersion int64) (model.CommitResult, error)

	// Publish commits every populated step and stamps the final snapshot.
	Publish(ctx context.Context, userID, draftID uuid.UUID, expectedVersion int64) (model.PublishResult, error)
}

type DraftServiceImpl struct {
	drafts    repository.DraftRepository
	committer repository.Committer
	log       *zap.Logger
	now       func() time.Time
}

// NewDraftService constructs DraftService with required dependencies.
func NewDraftService(drafts repository.DraftRepository, committer repository.Committer, log *zap.Logger) *DraftServiceImpl {
	return &DraftServiceImpl{drafts: drafts, committer: committer, log: log, now: time.Now}
}

// Create builds the initial document and persists the draft at version 1.
func (s *DraftServiceImpl) Create(ctx context.Context, userID uuid.UUID, in CreateDraftInput) (*model.Draft, error) {
	if in.LessonType == "" {
		return nil, errs.Validation("lesson_type is required")
	}
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	doc := draft.BuildInitial(in.LessonType, in.Subtype, in.Source, in.Reference)
	raw, err := draft.Encode(doc)
	if err != nil {
		return nil, err
	}
	d := &model.Draft{
		DraftID:      id,
		UserID:       userID,
		LessonType:   in.LessonType,
		Subtype:      in.Subtype,
		Source:       in.Source,
		Status:       model.DraftStatusDraft,
		ActiveStep:   in.ActiveStep,
		DraftVersion: 1,
		DraftJSON:    raw,
	}
	if err := s.drafts.Create(ctx, d); err != nil {
		return nil, err
	}
	s.log.Info("draft created",
		zap.String("draft_id", id.String()),
		zap.String("lesson_type", in.LessonType))
	return d, nil
}

func (s *DraftServiceImpl) Get(ctx context.Context, userID, draftID uuid.UUID) (*model.Draft, error) {
	return s.drafts.Get(ctx, userID, draftID)
}

// Update stores the new document after checking it is a JSON object. The
// replacement is full, so an absent document is a bad request, not a wipe.
// The version guard lives in the repository; this layer only shapes the payload.
func (s *DraftServiceImpl) Update(ctx context.Context, userID, draftID uuid.UUID, draftJSON json.RawMessage, activeStep *string) (int64, error) {
	if len(bytes.TrimSpace(draftJSON)) == 0 {
		return 0, errs.Validation("draft_json is required")
	}
	if _, err := draft.Parse(draftJSON); err != nil {
		return 0, err
	}
	return s.drafts.Update(ctx, userID, draftID, draftJSON, activeStep)
}

func (s *DraftServiceImpl) CommitStep(ctx context.Context, userID, draftID uuid.UUID, stepName string, expectedVersion int64) (model.CommitResult, error) {
	step, ok := draft.ParseStep(stepName)
	if !ok {
		return model.CommitResult{}, errs.Validation("unknown step")
	}
	if expectedVersion < 1 {
		return model.CommitResult{}, errs.Validation("expected_version must be at least 1")
	}
	res, err := s.committer.CommitStep(ctx, userID, draftID, step, expectedVersion)
	if err != nil {
		return model.CommitResult{}, err
	}
	s.log.Info("step committed",
		zap.String("draft_id", draftID.String()),
		zap.String("step", string(step)),
		zap.Bool("replayed", res.AlreadyCommitted))
	return res, nil
}

// Publish walks every populated step in order, committing each at the same
// expected version, then writes the full snapshot and flips statuses. Steps
// already committed at this version replay from the ledger without rewriting.
func (s *DraftServiceImpl) Publish(ctx context.Context, userID, draftID uuid.UUID, expectedVersion int64) (model.PublishResult, error) {
	if expectedVersion < 1 {
		return model.PublishResult{}, errs.Validation("expected_version must be at least 1")
	}
	d, err := s.drafts.Get(ctx, userID, draftID)
	if err != nil {
		return model.PublishResult{}, err
	}
	if d.DraftVersion != expectedVersion {
		return model.PublishResult{}, &errs.VersionConflictError{Current: d.DraftVersion}
	}
	doc, err := draft.Parse(d.DraftJSON)
	if err != nil {
		return model.PublishResult{}, err
	}

	var lessonID uuid.UUID
	include := draft.SnapshotInclude{}
	for _, step := range draft.Steps() {
		if !doc.Populated(step) {
			continue
		}
		res, err := s.committer.CommitStep(ctx, userID, draftID, step, expectedVersion)
		if err != nil {
			return model.PublishResult{}, err
		}
		lessonID = res.LessonID
		switch step {
		case draft.StepUnits:
			include.Units = true
		case draft.StepText:
			include.Text = true
		case draft.StepVocabulary:
			include.Vocabulary = true
		case draft.StepComprehension:
			include.Comprehension = true
		case draft.StepNotes:
			include.Notes = true
		}
	}
	if lessonID.IsNil() {
		return model.PublishResult{}, errs.ErrMetaNotCommitted
	}

	publishedAt := s.now()
	lessonJSON, err := draft.Snapshot(doc, d.LessonType, include, &publishedAt)
	if err != nil {
		return model.PublishResult{}, err
	}
	if err := s.committer.MarkPublished(ctx, userID, draftID, lessonID, expectedVersion, lessonJSON); err != nil {
		return model.PublishResult{}, err
	}
	s.log.Info("draft published",
		zap.String("draft_id", draftID.String()),
		zap.String("lesson_id", lessonID.String()))
	return model.PublishResult{LessonID: lessonID, Status: model.LessonStatusPublished}, nil
}

// LessonView is a materialized lesson together with its dependent row counts.
type LessonView struct {
	Lesson *model.Lesson
	Counts map[string]int64
}

// LessonService reads materialized lessons.
type LessonService interface {
	Get(ctx context.Context, userID, lessonID uuid.UUID) (LessonView, error)
}

type LessonServiceImpl struct {
	lessons repository.LessonRepository
}

func NewLessonService(lessons repository.LessonRepository) *LessonServiceImpl {
	return &LessonServiceImpl{lessons: lessons}
}

func (s *LessonServiceImpl) Get(ctx context.Context, userID, lessonID uuid.UUID) (LessonView, error) {
	l, err := s.lessons.Get(ctx, userID, lessonID)
	if err != nil {
		return LessonView{}, err
	}
	counts, err := s.lessons.DependentCounts(ctx, lessonID)
	if err != nil {
		return LessonView{}, err
	}
	return LessonView{Lesson: l, Counts: counts}, nil
}
