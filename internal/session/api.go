// Package session implements the assessment-attempt state machines: the timed
// exam session, the untimed practice session, and the wrong-question retry
// session, together with the answer set they share and the result renderer.
package session

import (
	"context"

	"github.com/stemsi/exstem-gateway/internal/model"
)

// API is the remote collaborator that owns attempts, grading, and definitions.
type API interface {
	StartAttempt(ctx context.Context, examID string) error
	// GetAttempt returns ErrAttemptNotFound when the student has no attempt.
	GetAttempt(ctx context.Context, examID string) (*model.Attempt, error)
	PauseAttempt(ctx context.Context, examID string) error
	ResumeAttempt(ctx context.Context, examID string) error
	SubmitAttempt(ctx context.Context, examID string, answers []model.UserAnswer) (*model.SubmitReceipt, error)
	GetAttemptDetail(ctx context.Context, attemptID string) (*model.AttemptDetail, error)
	GetExamDefinition(ctx context.Context, examID string) (*model.ExamDefinition, error)
	GetExerciseDefinition(ctx context.Context, exerciseID string) (*model.ExerciseDefinition, error)
	SubmitExercise(ctx context.Context, exerciseID string, answers []model.UserAnswer) (*model.SubmitReceipt, error)
	ListMyAttempts(ctx context.Context, kind model.AssessmentKind) ([]model.Attempt, error)
}

// Drafts persists LocalProgress per attempt key. Implemented by progress.Store.
type Drafts interface {
	Save(ctx context.Context, key string, p model.LocalProgress) error
	SaveAnswers(ctx context.Context, key string, answers []model.UserAnswer) error
	Load(ctx context.Context, key string) (*model.LocalProgress, error)
	Clear(ctx context.Context, key string) error
}
