package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-gateway/internal/response"
	"github.com/stemsi/exstem-gateway/internal/service"
	"github.com/stemsi/exstem-gateway/internal/session"
	"github.com/stemsi/exstem-gateway/internal/upstream"
)

// classify maps a session, manager or upstream error to an HTTP status and
// error code.
func classify(err error) (int, response.ErrCode) {
	switch {
	case errors.Is(err, session.ErrConfirmationRequired):
		return http.StatusConflict, response.ErrConfirmationRequired
	case errors.Is(err, session.ErrInvalidTransition):
		return http.StatusConflict, response.ErrInvalidTransition
	case errors.Is(err, session.ErrOperationPending):
		return http.StatusConflict, response.ErrOperationPending
	case errors.Is(err, session.ErrQuestionLocked):
		return http.StatusConflict, response.ErrQuestionLocked
	case errors.Is(err, session.ErrNothingToRetry):
		return http.StatusConflict, response.ErrNothingToRetry
	case errors.Is(err, session.ErrUnknownQuestion):
		return http.StatusNotFound, response.ErrUnknownQuestion
	case errors.Is(err, session.ErrIndexOutOfRange):
		return http.StatusBadRequest, response.ErrValidation
	case errors.Is(err, session.ErrAttemptNotFound):
		return http.StatusNotFound, response.ErrAttemptNotFound
	case errors.Is(err, session.ErrClosed), errors.Is(err, service.ErrSessionNotFound):
		return http.StatusNotFound, response.ErrSessionNotFound
	case errors.Is(err, service.ErrFeatureUnavailable):
		return http.StatusNotImplemented, response.ErrFeatureUnavailable
	}

	var apiErr *upstream.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Status {
		case http.StatusNotFound:
			return http.StatusNotFound, response.ErrNotFound
		case http.StatusUnauthorized:
			return http.StatusUnauthorized, response.ErrTokenInvalid
		case http.StatusForbidden:
			return http.StatusForbidden, response.ErrForbidden
		case http.StatusConflict:
			return http.StatusConflict, response.ErrConflict
		}
		return http.StatusBadGateway, response.ErrUpstream
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout, response.ErrUpstream
	}
	return http.StatusBadGateway, response.ErrUpstream
}

// failSession writes the error response for err.
func failSession(c *gin.Context, log zerolog.Logger, err error) {
	status, code := classify(err)

	var confirm *session.ConfirmationError
	if errors.As(err, &confirm) {
		response.FailWithData(c, status, code, gin.H{"unanswered": confirm.Unanswered})
		return
	}

	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("Session request failed")
	} else {
		log.Debug().Err(err).Str("path", c.FullPath()).Msg("Session request rejected")
	}
	response.Fail(c, status, code)
}
