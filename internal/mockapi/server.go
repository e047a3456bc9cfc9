// Package mockapi is an in-memory stand-in for the remote assessment API. It
// serves the same routes and envelope the gateway's upstream client expects,
// keeps the server-side attempt clock, and grades submissions.
package mockapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-gateway/internal/logger"
	"github.com/stemsi/exstem-gateway/internal/middleware"
	"github.com/stemsi/exstem-gateway/internal/model"
	"github.com/stemsi/exstem-gateway/internal/response"
	"github.com/stemsi/exstem-gateway/internal/service"
	"github.com/stemsi/exstem-gateway/internal/validator"
)

// definitionMaxAge is how long clients may reuse a redacted definition.
const definitionMaxAge = 300

// Server exposes a Store over HTTP.
type Server struct {
	store *Store
	auth  *service.AuthService
	log   zerolog.Logger
}

// NewServer creates a Server.
func NewServer(store *Store, auth *service.AuthService, log zerolog.Logger) *Server {
	return &Server{
		store: store,
		auth:  auth,
		log:   log.With().Str("component", "mock_upstream").Logger(),
	}
}

// Router builds the gin engine. Routes are mounted under /api.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(response.RequestIDMiddleware(), logger.RequestLogger(s.log))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	api.Use(middleware.RequireStudentJWT(s.auth))
	{
		api.GET("/exams/:id", middleware.CacheControl(definitionMaxAge), s.getExam)
		api.GET("/exams/:id/attempt", s.getAttempt)
		api.POST("/exams/:id/attempt/start", s.startAttempt)
		api.POST("/exams/:id/attempt/pause", s.pauseAttempt)
		api.POST("/exams/:id/attempt/resume", s.resumeAttempt)
		api.POST("/exams/:id/attempt/submit", s.submitAttempt)
		api.GET("/attempts/:id", s.getDetail)
		api.GET("/exercises/:id", middleware.CacheControl(definitionMaxAge), s.getExercise)
		api.POST("/exercises/:id/submit", s.submitExercise)
		api.GET("/me/attempts", s.listAttempts)
	}

	return r
}

func (s *Server) getExam(c *gin.Context) {
	claims := middleware.GetClaims(c)
	exam, err := s.store.Exam(claims.UserID, c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, exam)
}

func (s *Server) getExercise(c *gin.Context) {
	claims := middleware.GetClaims(c)
	ex, err := s.store.Exercise(claims.UserID, c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, ex)
}

func (s *Server) getAttempt(c *gin.Context) {
	claims := middleware.GetClaims(c)
	a, err := s.store.Attempt(claims.UserID, c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, a)
}

func (s *Server) startAttempt(c *gin.Context) {
	claims := middleware.GetClaims(c)
	a, err := s.store.StartAttempt(claims.UserID, c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	s.log.Info().Int("user_id", claims.UserID).Str("exam_id", a.AssessmentID).Str("attempt_id", a.ID).Msg("Attempt started")
	response.Success(c, http.StatusCreated, a)
}

func (s *Server) pauseAttempt(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if err := s.store.PauseAttempt(claims.UserID, c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"status": model.AttemptStatusPaused})
}

func (s *Server) resumeAttempt(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if err := s.store.ResumeAttempt(claims.UserID, c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"status": model.AttemptStatusInProgress})
}

func (s *Server) submitAttempt(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var req model.SubmitAttemptRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	receipt, err := s.store.SubmitAttempt(claims.UserID, c.Param("id"), req.Answers)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.log.Info().Int("user_id", claims.UserID).Str("attempt_id", receipt.AttemptID).Msg("Attempt graded")
	response.Success(c, http.StatusOK, receipt)
}

func (s *Server) submitExercise(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var req model.SubmitAttemptRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	receipt, err := s.store.SubmitExercise(claims.UserID, c.Param("id"), req.Answers)
	if err != nil {
		s.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, receipt)
}

func (s *Server) getDetail(c *gin.Context) {
	claims := middleware.GetClaims(c)
	d, err := s.store.Detail(claims.UserID, c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, d)
}

func (s *Server) listAttempts(c *gin.Context) {
	claims := middleware.GetClaims(c)
	kind := model.AssessmentKind(c.Query("type"))
	if kind != "" && kind != model.KindExam && kind != model.KindExercise {
		response.Fail(c, http.StatusBadRequest, response.ErrValidation)
		return
	}
	response.Success(c, http.StatusOK, s.store.Attempts(claims.UserID, kind))
}

func (s *Server) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, ErrAttemptExists):
		response.Fail(c, http.StatusConflict, response.ErrConflict)
	case errors.Is(err, ErrAttemptNotActive):
		response.Fail(c, http.StatusConflict, response.ErrInvalidTransition)
	default:
		s.log.Error().Err(err).Msg("Mock upstream error")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
