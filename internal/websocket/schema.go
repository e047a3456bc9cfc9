package websocket

import "github.com/stemsi/exstem-gateway/internal/session"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswer   Action = "answer"
	ActionToggle   Action = "toggle"
	ActionNavigate Action = "navigate"
	ActionPause    Action = "pause"
	ActionResume   Action = "resume"
	ActionSubmit   Action = "submit"
	ActionSync     Action = "sync"
	ActionPing     Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// AnswerRequest replaces the answer of one question.
type AnswerRequest struct {
	Action     Action `json:"action"`
	QuestionID string `json:"question_id"`
	Answer     string `json:"answer"`
}

// ToggleRequest adds or removes one option of a multiple-choice answer.
type ToggleRequest struct {
	Action     Action `json:"action"`
	QuestionID string `json:"question_id"`
	Option     string `json:"option"`
	Included   bool   `json:"included"`
}

// NavigateRequest moves the current question pointer.
type NavigateRequest struct {
	Action Action `json:"action"`
	Index  int    `json:"index"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventSnapshot Event = "snapshot"
	EventTick     Event = "tick"
	EventState    Event = "state"
	EventGraded   Event = "graded"
	EventAck      Event = "ack"
	EventError    Event = "error"
	EventPong     Event = "pong"
)

// SnapshotResponse carries the full session view. Sent on connect and after
// every action that changes answers or position.
type SnapshotResponse struct {
	Event    Event                `json:"event"`
	Snapshot session.ExamSnapshot `json:"snapshot"`
}

// SessionEventResponse forwards a session event to the client.
type SessionEventResponse struct {
	Event Event         `json:"event"`
	Data  session.Event `json:"data"`
}

// AckResponse confirms an action that produced no other event.
type AckResponse struct {
	Event  Event  `json:"event"`
	Action Action `json:"action"`
}

type ErrorResponse struct {
	Event  Event  `json:"event"`
	Action Action `json:"action,omitempty"`
	Code   string `json:"code,omitempty"`
	Error  string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
