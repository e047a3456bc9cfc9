package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-gateway/internal/middleware"
	"github.com/stemsi/exstem-gateway/internal/response"
	"github.com/stemsi/exstem-gateway/internal/service"
)

// HistoryHandler serves the student's recorded results.
type HistoryHandler struct {
	sessions *service.SessionManager
	log      zerolog.Logger
}

// NewHistoryHandler creates a new HistoryHandler.
func NewHistoryHandler(sessions *service.SessionManager, log zerolog.Logger) *HistoryHandler {
	return &HistoryHandler{
		sessions: sessions,
		log:      log.With().Str("component", "history_handler").Logger(),
	}
}

// List godoc
// GET /api/v1/student/history?limit=50
func (h *HistoryHandler) List(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	rows, err := h.sessions.History(c.Request.Context(), claims.UserID, limit)
	if errors.Is(err, service.ErrFeatureUnavailable) {
		failSession(c, h.log, err)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Int("student_id", claims.UserID).Msg("Failed to list history")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"results": rows})
}
