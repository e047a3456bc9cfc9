package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-gateway/internal/middleware"
	"github.com/stemsi/exstem-gateway/internal/response"
	"github.com/stemsi/exstem-gateway/internal/service"
	"github.com/stemsi/exstem-gateway/internal/session"
	"github.com/stemsi/exstem-gateway/internal/validator"
)

// RetryHandler exposes wrong-question retries of graded attempts.
type RetryHandler struct {
	sessions *service.SessionManager
	log      zerolog.Logger
}

// NewRetryHandler creates a new RetryHandler.
func NewRetryHandler(sessions *service.SessionManager, log zerolog.Logger) *RetryHandler {
	return &RetryHandler{
		sessions: sessions,
		log:      log.With().Str("component", "retry_handler").Logger(),
	}
}

// GetSession godoc
// GET /api/v1/student/attempts/:attempt_id/retry
// Correctly answered questions come back locked with their original answer.
func (h *RetryHandler) GetSession(c *gin.Context) {
	s, ok := h.mount(c)
	if !ok {
		return
	}
	response.Success(c, http.StatusOK, s.Snapshot())
}

// SetAnswer godoc
// PUT /api/v1/student/attempts/:attempt_id/retry/answers/:question_id
func (h *RetryHandler) SetAnswer(c *gin.Context) {
	var req answerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	h.act(c, func(s *session.RetrySession) error {
		return s.SetAnswer(c.Request.Context(), c.Param("question_id"), req.Answer)
	})
}

// ToggleOption godoc
// POST /api/v1/student/attempts/:attempt_id/retry/answers/:question_id/toggle
func (h *RetryHandler) ToggleOption(c *gin.Context) {
	var req toggleRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	h.act(c, func(s *session.RetrySession) error {
		return s.ToggleOption(c.Request.Context(), c.Param("question_id"), req.Option, req.Included)
	})
}

// Submit godoc
// POST /api/v1/student/attempts/:attempt_id/retry/submit
func (h *RetryHandler) Submit(c *gin.Context) {
	var req submitRequest
	if c.Request.ContentLength != 0 {
		if fields := validator.Bind(c, &req); fields != nil {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
			return
		}
	}
	h.act(c, func(s *session.RetrySession) error {
		_, err := s.Submit(c.Request.Context(), req.Confirmed)
		return err
	})
}

// CancelSubmit godoc
// POST /api/v1/student/attempts/:attempt_id/retry/cancel-submit
func (h *RetryHandler) CancelSubmit(c *gin.Context) {
	h.act(c, func(s *session.RetrySession) error { return s.CancelSubmit() })
}

// Teardown godoc
// DELETE /api/v1/student/attempts/:attempt_id/retry
func (h *RetryHandler) Teardown(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if err := h.sessions.Teardown(c.Request.Context(), claims.UserID, service.KindRetry, c.Param("attempt_id")); err != nil {
		failSession(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"released": true})
}

func (h *RetryHandler) mount(c *gin.Context) (*session.RetrySession, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return nil, false
	}
	s, err := h.sessions.Retry(c.Request.Context(), claims.UserID, middleware.GetToken(c), c.Param("attempt_id"))
	if err != nil {
		failSession(c, h.log, err)
		return nil, false
	}
	return s, true
}

func (h *RetryHandler) act(c *gin.Context, fn func(*session.RetrySession) error) {
	s, ok := h.mount(c)
	if !ok {
		return
	}
	if err := fn(s); err != nil {
		failSession(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, s.Snapshot())
}
