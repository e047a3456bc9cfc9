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

type answerRequest struct {
	Answer string `json:"answer" binding:"max=10000"`
}

type toggleRequest struct {
	Option   string `json:"option" binding:"required,option_key"`
	Included bool   `json:"included"`
}

type navigateRequest struct {
	Index *int `json:"index" binding:"required"`
}

type submitRequest struct {
	Confirmed bool `json:"confirmed"`
}

// ExamHandler exposes a student's timed exam session.
type ExamHandler struct {
	sessions *service.SessionManager
	log      zerolog.Logger
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(sessions *service.SessionManager, log zerolog.Logger) *ExamHandler {
	return &ExamHandler{
		sessions: sessions,
		log:      log.With().Str("component", "exam_handler").Logger(),
	}
}

// GetSession godoc
// GET /api/v1/student/exams/:exam_id/session
// Mounts the session on first access and returns its snapshot together with
// the redacted exam the page renders.
func (h *ExamHandler) GetSession(c *gin.Context) {
	s, ok := h.mount(c)
	if !ok {
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"session": s.Snapshot(),
		"exam":    s.Definition(),
	})
}

// Start godoc
// POST /api/v1/student/exams/:exam_id/session/start
func (h *ExamHandler) Start(c *gin.Context) {
	h.act(c, func(s *session.ExamSession) error { return s.Start(c.Request.Context()) })
}

// Pause godoc
// POST /api/v1/student/exams/:exam_id/session/pause
func (h *ExamHandler) Pause(c *gin.Context) {
	h.act(c, func(s *session.ExamSession) error { return s.Pause(c.Request.Context()) })
}

// Resume godoc
// POST /api/v1/student/exams/:exam_id/session/resume
func (h *ExamHandler) Resume(c *gin.Context) {
	h.act(c, func(s *session.ExamSession) error { return s.Resume(c.Request.Context()) })
}

// Sync godoc
// POST /api/v1/student/exams/:exam_id/session/sync
// Recomputes the remaining time from the server's attempt.
func (h *ExamHandler) Sync(c *gin.Context) {
	h.act(c, func(s *session.ExamSession) error { return s.Sync(c.Request.Context()) })
}

// Suspend godoc
// POST /api/v1/student/exams/:exam_id/session/suspend
// Called by the page on unload or when it is hidden.
func (h *ExamHandler) Suspend(c *gin.Context) {
	h.act(c, func(s *session.ExamSession) error { return s.Suspend(c.Request.Context()) })
}

// Submit godoc
// POST /api/v1/student/exams/:exam_id/session/submit
func (h *ExamHandler) Submit(c *gin.Context) {
	h.act(c, func(s *session.ExamSession) error {
		_, err := s.Submit(c.Request.Context())
		return err
	})
}

// SetAnswer godoc
// PUT /api/v1/student/exams/:exam_id/session/answers/:question_id
func (h *ExamHandler) SetAnswer(c *gin.Context) {
	var req answerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	h.act(c, func(s *session.ExamSession) error {
		return s.SetAnswer(c.Request.Context(), c.Param("question_id"), req.Answer)
	})
}

// ToggleOption godoc
// POST /api/v1/student/exams/:exam_id/session/answers/:question_id/toggle
func (h *ExamHandler) ToggleOption(c *gin.Context) {
	var req toggleRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	h.act(c, func(s *session.ExamSession) error {
		return s.ToggleOption(c.Request.Context(), c.Param("question_id"), req.Option, req.Included)
	})
}

// Navigate godoc
// POST /api/v1/student/exams/:exam_id/session/navigate
func (h *ExamHandler) Navigate(c *gin.Context) {
	var req navigateRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	h.act(c, func(s *session.ExamSession) error {
		return s.Navigate(c.Request.Context(), *req.Index)
	})
}

// GetResult godoc
// GET /api/v1/student/exams/:exam_id/session/result
func (h *ExamHandler) GetResult(c *gin.Context) {
	s, ok := h.mount(c)
	if !ok {
		return
	}
	res := s.Result()
	if res == nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}
	response.Success(c, http.StatusOK, res)
}

// Teardown godoc
// DELETE /api/v1/student/exams/:exam_id/session
// Releases the live session. A running exam is suspended first.
func (h *ExamHandler) Teardown(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if err := h.sessions.Teardown(c.Request.Context(), claims.UserID, service.KindExam, c.Param("exam_id")); err != nil {
		failSession(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"released": true})
}

func (h *ExamHandler) mount(c *gin.Context) (*session.ExamSession, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return nil, false
	}
	s, err := h.sessions.Exam(c.Request.Context(), claims.UserID, middleware.GetToken(c), c.Param("exam_id"))
	if err != nil {
		failSession(c, h.log, err)
		return nil, false
	}
	return s, true
}

// act runs fn against the mounted session and replies with the snapshot.
func (h *ExamHandler) act(c *gin.Context, fn func(*session.ExamSession) error) {
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
