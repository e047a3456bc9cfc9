package session

import (
	"math"
	"time"

	"github.com/stemsi/exstem-gateway/internal/model"
)

// RemainingSeconds reconciles the exam duration with the server's bookkeeping:
//
//	remaining = duration*60 - total_elapsed_seconds
//	if running: remaining -= floor((now - last_resume_time) / 1s)
//	remaining = max(remaining, 0)
//
// It is recomputed on every attempt fetch; the local ticker only smooths the
// display between fetches.
func RemainingSeconds(durationMinutes int, attempt *model.Attempt, now time.Time) int {
	remaining := durationMinutes * 60
	if attempt == nil {
		return max(remaining, 0)
	}

	remaining -= attempt.TotalElapsedSeconds
	if attempt.Status == model.AttemptStatusInProgress && attempt.LastResumeTime != nil {
		ms := now.Sub(*attempt.LastResumeTime).Milliseconds()
		remaining -= int(math.Floor(float64(ms) / 1000))
	}

	return max(remaining, 0)
}
