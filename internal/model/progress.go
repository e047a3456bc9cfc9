package model

import "time"

// ProgressStatus is the status recorded in a client draft.
type ProgressStatus string

const (
	ProgressInProgress ProgressStatus = "in_progress"
	ProgressPaused     ProgressStatus = "paused"
)

// LocalProgress is the persisted, not-yet-submitted state of a session.
// TimeRemaining is the value as of the last tick or resume; it is never
// recomputed from SavedAt.
type LocalProgress struct {
	Status               ProgressStatus `json:"status"`
	TimeRemaining        int            `json:"timeRemaining"`
	Answers              []UserAnswer   `json:"answers"`
	CurrentQuestionIndex int            `json:"currentQuestionIndex"`
	SavedAt              time.Time      `json:"savedAt"`
}
