package httpserver

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid/v5"

	"github.com/mkamil/qalam/internal/draft"
	"github.com/mkamil/qalam/internal/errs"
	"github.com/mkamil/qalam/internal/model"
	"github.com/mkamil/qalam/internal/service"
)

// Handlers bundles the HTTP endpoints over the application services.
type Handlers struct {
	auth    service.AuthService
	drafts  service.DraftService
	lessons service.LessonService
}

func NewHandlers(auth service.AuthService, drafts service.DraftService, lessons service.LessonService) *Handlers {
	return &Handlers{auth: auth, drafts: drafts, lessons: lessons}
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handlers) Register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, http.StatusBadRequest, "bad_json", err)
		return
	}
	id, err := h.auth.Register(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondDomainErr(c, err)
		return
	}
	respondOK(c, http.StatusCreated, gin.H{"user_id": id})
}

func (h *Handlers) Login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, http.StatusBadRequest, "bad_json", err)
		return
	}
	tokens, err := h.auth.LoginWithIP(c.Request.Context(), req.Username, req.Password, c.ClientIP())
	if err != nil {
		respondDomainErr(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{
		"access_token": tokens.AccessToken,
		"expires_at":   tokens.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

type createDraftRequest struct {
	LessonType string           `json:"lesson_type"`
	Subtype    *string          `json:"subtype"`
	Source     *string          `json:"source"`
	Reference  *draft.Reference `json:"reference"`
	ActiveStep *string          `json:"active_step"`
}

func draftPayload(d *model.Draft) gin.H {
	var lessonID *string
	if d.LessonID != nil {
		s := d.LessonID.String()
		lessonID = &s
	}
	return gin.H{
		"draft_id":      d.DraftID.String(),
		"lesson_id":     lessonID,
		"lesson_type":   d.LessonType,
		"subtype":       d.Subtype,
		"source":        d.Source,
		"status":        d.Status,
		"active_step":   d.ActiveStep,
		"draft_version": d.DraftVersion,
		"draft_json":    json.RawMessage(d.DraftJSON),
		"created_at":    d.CreatedAt.UTC().Format(time.RFC3339),
		"updated_at":    d.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *Handlers) CreateDraft(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		respondDomainErr(c, errs.ErrUnauthorized)
		return
	}
	var req createDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, http.StatusBadRequest, "bad_json", err)
		return
	}
	d, err := h.drafts.Create(c.Request.Context(), uid, service.CreateDraftInput{
		LessonType: req.LessonType,
		Subtype:    req.Subtype,
		Source:     req.Source,
		Reference:  req.Reference,
		ActiveStep: req.ActiveStep,
	})
	if err != nil {
		respondDomainErr(c, err)
		return
	}
	respondOK(c, http.StatusCreated, draftPayload(d))
}

func (h *Handlers) GetDraft(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		respondDomainErr(c, errs.ErrUnauthorized)
		return
	}
	draftID, err := uuid.FromString(c.Param("id"))
	if err != nil {
		respondErr(c, http.StatusBadRequest, "bad_id", err)
		return
	}
	d, err := h.drafts.Get(c.Request.Context(), uid, draftID)
	if err != nil {
		respondDomainErr(c, err)
		return
	}
	respondOK(c, http.StatusOK, draftPayload(d))
}

type updateDraftRequest struct {
	DraftJSON  json.RawMessage `json:"draft_json"`
	ActiveStep *string         `json:"active_step"`
}

func (h *Handlers) UpdateDraft(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		respondDomainErr(c, errs.ErrUnauthorized)
		return
	}
	draftID, err := uuid.FromString(c.Param("id"))
	if err != nil {
		respondErr(c, http.StatusBadRequest, "bad_id", err)
		return
	}
	var req updateDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, http.StatusBadRequest, "bad_json", err)
		return
	}
	version, err := h.drafts.Update(c.Request.Context(), uid, draftID, req.DraftJSON, req.ActiveStep)
	if err != nil {
		respondDomainErr(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"draft_version": version})
}

type commitRequest struct {
	Step            string `json:"step"`
	ExpectedVersion int64  `json:"draft_version"`
}

func (h *Handlers) CommitDraft(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		respondDomainErr(c, errs.ErrUnauthorized)
		return
	}
	draftID, err := uuid.FromString(c.Param("id"))
	if err != nil {
		respondErr(c, http.StatusBadRequest, "bad_id", err)
		return
	}
	var req commitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, http.StatusBadRequest, "bad_json", err)
		return
	}
	res, err := h.drafts.CommitStep(c.Request.Context(), uid, draftID, req.Step, req.ExpectedVersion)
	if err != nil {
		respondDomainErr(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{
		"lesson_id":         res.LessonID.String(),
		"committed_step":    res.Step,
		"result_counts":     res.Counts,
		"already_committed": res.AlreadyCommitted,
	})
}

type publishRequest struct {
	ExpectedVersion int64 `json:"draft_version"`
}

func (h *Handlers) PublishDraft(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		respondDomainErr(c, errs.ErrUnauthorized)
		return
	}
	draftID, err := uuid.FromString(c.Param("id"))
	if err != nil {
		respondErr(c, http.StatusBadRequest, "bad_id", err)
		return
	}
	var req publishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, http.StatusBadRequest, "bad_json", err)
		return
	}
	res, err := h.drafts.Publish(c.Request.Context(), uid, draftID, req.ExpectedVersion)
	if err != nil {
		respondDomainErr(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{
		"lesson_id": res.LessonID.String(),
		"status":    res.Status,
	})
}

func (h *Handlers) GetLesson(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		respondDomainErr(c, errs.ErrUnauthorized)
		return
	}
	lessonID, err := uuid.FromString(c.Param("id"))
	if err != nil {
		respondErr(c, http.StatusBadRequest, "bad_id", err)
		return
	}
	view, err := h.lessons.Get(c.Request.Context(), uid, lessonID)
	if err != nil {
		respondDomainErr(c, err)
		return
	}
	l := view.Lesson
	respondOK(c, http.StatusOK, gin.H{
		"lesson": gin.H{
			"id":           l.ID.String(),
			"container_id": l.ContainerID,
			"unit_id":      l.UnitID,
			"title":        l.Title,
			"title_ar":     l.TitleAr,
			"lesson_type":  l.LessonType,
			"subtype":      l.Subtype,
			"status":       l.Status,
			"difficulty":   l.Difficulty,
			"source":       l.Source,
			"lesson_json":  json.RawMessage(l.LessonJSON),
			"created_at":   l.CreatedAt.UTC().Format(time.RFC3339),
			"updated_at":   l.UpdatedAt.UTC().Format(time.RFC3339),
		},
		"counts": view.Counts,
	})
}

func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "status": "up"})
}
