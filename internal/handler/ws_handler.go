package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-gateway/internal/middleware"
	"github.com/stemsi/exstem-gateway/internal/response"
	"github.com/stemsi/exstem-gateway/internal/service"
	"github.com/stemsi/exstem-gateway/internal/session"
	ws "github.com/stemsi/exstem-gateway/internal/websocket"
)

const (
	wsActionTimeout  = 30 * time.Second
	wsSuspendTimeout = 5 * time.Second
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams a live exam session over a WebSocket.
type WSHandler struct {
	sessions *service.SessionManager
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessions *service.SessionManager, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessions: sessions,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// ExamStream godoc
// WS /ws/v1/student/exams/:exam_id/stream?token=...
// Pushes snapshot, tick, state, graded and error events and accepts session
// actions. A connection that drops while the exam runs suspends it.
func (h *WSHandler) ExamStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	examID := c.Param("exam_id")

	// Mount before upgrading so load failures still get a JSON error.
	s, err := h.sessions.Exam(c.Request.Context(), claims.UserID, middleware.GetToken(c), examID)
	if err != nil {
		failSession(c, h.log, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().
		Int("student_id", claims.UserID).
		Str("exam_id", examID).
		Logger()
	wsLog.Info().Msg("Student connected")

	w := ws.NewWriter(conn)
	events, unsubscribe := s.Subscribe()

	_ = w.WriteTyped(ws.SnapshotResponse{Event: ws.EventSnapshot, Snapshot: s.Snapshot()})

	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		for ev := range events {
			if err := w.WriteTyped(ws.SessionEventResponse{Event: ws.Event(ev.Type), Data: ev}); err != nil {
				return
			}
		}
		// Channel closed: either we unsubscribed or the session was torn down.
		_ = w.WriteClose(websocket.CloseNormalClosure, "session closed")
		conn.Close()
	}()

	for {
		raw, err := ws.ReadRaw(conn)
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				wsLog.Debug().Msg("Connection closed")
			} else {
				wsLog.Warn().Err(err).Msg("Connection dropped, suspending")
				h.suspend(s, wsLog)
			}
			break
		}
		h.dispatch(s, w, raw, wsLog)
	}

	unsubscribe()
	<-pumpDone
}

func (h *WSHandler) dispatch(s *session.ExamSession, w *ws.Writer, raw []byte, log zerolog.Logger) {
	var env ws.RequestEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		_ = w.WriteError("", string(response.ErrInvalidPayload), "invalid JSON")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), wsActionTimeout)
	defer cancel()

	var err error
	switch env.Action {
	case ws.ActionPing:
		_ = w.WriteTyped(ws.PongResponse{Event: ws.EventPong})
		return
	case ws.ActionAnswer:
		var req ws.AnswerRequest
		if err = json.Unmarshal(raw, &req); err == nil {
			err = s.SetAnswer(ctx, req.QuestionID, req.Answer)
		}
	case ws.ActionToggle:
		var req ws.ToggleRequest
		if err = json.Unmarshal(raw, &req); err == nil {
			err = s.ToggleOption(ctx, req.QuestionID, req.Option, req.Included)
		}
	case ws.ActionNavigate:
		var req ws.NavigateRequest
		if err = json.Unmarshal(raw, &req); err == nil {
			err = s.Navigate(ctx, req.Index)
		}
	case ws.ActionPause:
		err = s.Pause(ctx)
	case ws.ActionResume:
		err = s.Resume(ctx)
	case ws.ActionSync:
		err = s.Sync(ctx)
	case ws.ActionSubmit:
		_, err = s.Submit(ctx)
	default:
		log.Warn().Str("action", string(env.Action)).Msg("Unknown action")
		_ = w.WriteError(env.Action, string(response.ErrInvalidPayload), "unknown action: "+string(env.Action))
		return
	}

	if err != nil {
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
			_ = w.WriteError(env.Action, string(response.ErrInvalidPayload), err.Error())
			return
		}
		_, code := classify(err)
		_ = w.WriteError(env.Action, string(code), err.Error())
		return
	}
	_ = w.WriteTyped(ws.SnapshotResponse{Event: ws.EventSnapshot, Snapshot: s.Snapshot()})
}

func (h *WSHandler) suspend(s *session.ExamSession, log zerolog.Logger) {
	if s.State() != session.StateInProgress {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), wsSuspendTimeout)
	defer cancel()
	if err := s.Suspend(ctx); err != nil {
		log.Warn().Err(err).Msg("Suspend after disconnect failed")
	}
}
