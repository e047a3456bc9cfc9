package session

import (
	"testing"
	"time"

	"github.com/stemsi/exstem-gateway/internal/model"
)

func TestRemainingSeconds(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	at := func(d time.Duration) *time.Time {
		ts := now.Add(-d)
		return &ts
	}

	tests := []struct {
		name     string
		duration int
		attempt  *model.Attempt
		want     int
	}{
		{
			name:     "running attempt",
			duration: 60,
			attempt: &model.Attempt{
				Status:              model.AttemptStatusInProgress,
				TotalElapsedSeconds: 600,
				LastResumeTime:      at(30 * time.Second),
			},
			want: 2970,
		},
		{
			name:     "partial seconds are floored",
			duration: 1,
			attempt: &model.Attempt{
				Status:         model.AttemptStatusInProgress,
				LastResumeTime: at(10*time.Second + 999*time.Millisecond),
			},
			want: 50,
		},
		{
			name:     "paused ignores last resume",
			duration: 60,
			attempt: &model.Attempt{
				Status:              model.AttemptStatusPaused,
				TotalElapsedSeconds: 600,
				LastResumeTime:      at(time.Hour),
			},
			want: 3000,
		},
		{
			name:     "elapsed past duration clamps",
			duration: 1,
			attempt: &model.Attempt{
				Status:              model.AttemptStatusInProgress,
				TotalElapsedSeconds: 50,
				LastResumeTime:      at(20 * time.Second),
			},
			want: 0,
		},
		{
			name:     "running without resume time",
			duration: 10,
			attempt:  &model.Attempt{Status: model.AttemptStatusInProgress, TotalElapsedSeconds: 100},
			want:     500,
		},
		{
			name:     "no attempt",
			duration: 5,
			want:     300,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RemainingSeconds(tt.duration, tt.attempt, now); got != tt.want {
				t.Errorf("RemainingSeconds() = %d, want %d", got, tt.want)
			}
		})
	}
}
