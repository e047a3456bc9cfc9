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

// PracticeHandler exposes a student's untimed practice session.
type PracticeHandler struct {
	sessions *service.SessionManager
	log      zerolog.Logger
}

// NewPracticeHandler creates a new PracticeHandler.
func NewPracticeHandler(sessions *service.SessionManager, log zerolog.Logger) *PracticeHandler {
	return &PracticeHandler{
		sessions: sessions,
		log:      log.With().Str("component", "practice_handler").Logger(),
	}
}

// GetSession godoc
// GET /api/v1/student/exercises/:exercise_id/practice
func (h *PracticeHandler) GetSession(c *gin.Context) {
	s, ok := h.mount(c)
	if !ok {
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"session":  s.Snapshot(),
		"exercise": s.Definition(),
	})
}

// SetAnswer godoc
// PUT /api/v1/student/exercises/:exercise_id/practice/answers/:question_id
func (h *PracticeHandler) SetAnswer(c *gin.Context) {
	var req answerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	h.act(c, func(s *session.PracticeSession) error {
		return s.SetAnswer(c.Request.Context(), c.Param("question_id"), req.Answer)
	})
}

// ToggleOption godoc
// POST /api/v1/student/exercises/:exercise_id/practice/answers/:question_id/toggle
func (h *PracticeHandler) ToggleOption(c *gin.Context) {
	var req toggleRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	h.act(c, func(s *session.PracticeSession) error {
		return s.ToggleOption(c.Request.Context(), c.Param("question_id"), req.Option, req.Included)
	})
}

// Navigate godoc
// POST /api/v1/student/exercises/:exercise_id/practice/navigate
func (h *PracticeHandler) Navigate(c *gin.Context) {
	var req navigateRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	h.act(c, func(s *session.PracticeSession) error {
		return s.Navigate(c.Request.Context(), *req.Index)
	})
}

// Submit godoc
// POST /api/v1/student/exercises/:exercise_id/practice/submit
// Without "confirmed", unanswered questions yield 409 CONFIRMATION_REQUIRED
// with the unanswered count in data.
func (h *PracticeHandler) Submit(c *gin.Context) {
	var req submitRequest
	if c.Request.ContentLength != 0 {
		if fields := validator.Bind(c, &req); fields != nil {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
			return
		}
	}
	h.act(c, func(s *session.PracticeSession) error {
		_, err := s.Submit(c.Request.Context(), req.Confirmed)
		return err
	})
}

// CancelSubmit godoc
// POST /api/v1/student/exercises/:exercise_id/practice/cancel-submit
func (h *PracticeHandler) CancelSubmit(c *gin.Context) {
	h.act(c, func(s *session.PracticeSession) error { return s.CancelSubmit() })
}

// Retry godoc
// POST /api/v1/student/exercises/:exercise_id/practice/retry
// Starts the exercise over with every answer cleared.
func (h *PracticeHandler) Retry(c *gin.Context) {
	h.act(c, func(s *session.PracticeSession) error { return s.Retry(c.Request.Context()) })
}

// Teardown godoc
// DELETE /api/v1/student/exercises/:exercise_id/practice
func (h *PracticeHandler) Teardown(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if err := h.sessions.Teardown(c.Request.Context(), claims.UserID, service.KindPractice, c.Param("exercise_id")); err != nil {
		failSession(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"released": true})
}

func (h *PracticeHandler) mount(c *gin.Context) (*session.PracticeSession, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return nil, false
	}
	s, err := h.sessions.Practice(c.Request.Context(), claims.UserID, middleware.GetToken(c), c.Param("exercise_id"))
	if err != nil {
		failSession(c, h.log, err)
		return nil, false
	}
	return s, true
}

func (h *PracticeHandler) act(c *gin.Context, fn func(*session.PracticeSession) error) {
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
