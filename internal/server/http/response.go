// Package httpserver exposes the authoring API over HTTP JSON.
package httpserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mkamil/qalam/internal/errs"
)

type apiError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type errorEnvelope struct {
	OK    bool     `json:"ok"`
	Error apiError `json:"error"`
}

func respondOK(c *gin.Context, status int, payload gin.H) {
	payload["ok"] = true
	c.JSON(status, payload)
}

func respondErr(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, errorEnvelope{Error: apiError{Message: msg, Code: code}})
}

// respondDomainErr maps sentinel and typed errors onto HTTP statuses. Anything
// unrecognized is an internal error with a generic message.
func respondDomainErr(c *gin.Context, err error) {
	var vc *errs.VersionConflictError
	switch {
	case errors.As(err, &vc):
		c.JSON(http.StatusConflict, gin.H{
			"ok":              false,
			"error":           apiError{Message: vc.Error(), Code: "version_conflict"},
			"current_version": vc.Current,
		})
	case errors.Is(err, errs.ErrVersionConflict):
		respondErr(c, http.StatusConflict, "version_conflict", err)
	case errors.Is(err, errs.ErrMetaNotCommitted):
		respondErr(c, http.StatusConflict, "meta_not_committed", err)
	case errors.Is(err, errs.ErrNotFound):
		respondErr(c, http.StatusNotFound, "not_found", err)
	case errors.Is(err, errs.ErrUnauthorized):
		respondErr(c, http.StatusUnauthorized, "unauthorized", err)
	case errors.Is(err, errs.ErrRateLimited):
		respondErr(c, http.StatusTooManyRequests, "rate_limited", err)
	case errors.Is(err, errs.ErrAlreadyExists):
		respondErr(c, http.StatusConflict, "already_exists", err)
	case errs.IsValidation(err):
		respondErr(c, http.StatusBadRequest, "validation", err)
	default:
		respondErr(c, http.StatusInternalServerError, "internal", errors.New("internal error"))
	}
}
