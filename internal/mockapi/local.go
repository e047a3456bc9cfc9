package mockapi

import (
	"context"
	"errors"

	"github.com/stemsi/exstem-gateway/internal/model"
	"github.com/stemsi/exstem-gateway/internal/session"
)

// LocalCaller serves the session API straight from a Store, skipping HTTP.
// The gateway uses it when run with an in-process upstream.
type LocalCaller struct {
	store  *Store
	userID int
}

// For returns an in-process caller acting as userID.
func (s *Store) For(userID int) *LocalCaller {
	return &LocalCaller{store: s, userID: userID}
}

// SetToken is a no-op; the caller is bound to a user already.
func (c *LocalCaller) SetToken(string) {}

func (c *LocalCaller) StartAttempt(ctx context.Context, examID string) error {
	_, err := c.store.StartAttempt(c.userID, examID)
	return err
}

func (c *LocalCaller) GetAttempt(ctx context.Context, examID string) (*model.Attempt, error) {
	a, err := c.store.Attempt(c.userID, examID)
	if errors.Is(err, ErrNotFound) {
		return nil, session.ErrAttemptNotFound
	}
	return a, err
}

func (c *LocalCaller) PauseAttempt(ctx context.Context, examID string) error {
	return c.store.PauseAttempt(c.userID, examID)
}

func (c *LocalCaller) ResumeAttempt(ctx context.Context, examID string) error {
	return c.store.ResumeAttempt(c.userID, examID)
}

func (c *LocalCaller) SubmitAttempt(ctx context.Context, examID string, answers []model.UserAnswer) (*model.SubmitReceipt, error) {
	return c.store.SubmitAttempt(c.userID, examID, answers)
}

func (c *LocalCaller) GetAttemptDetail(ctx context.Context, attemptID string) (*model.AttemptDetail, error) {
	return c.store.Detail(c.userID, attemptID)
}

func (c *LocalCaller) GetExamDefinition(ctx context.Context, examID string) (*model.ExamDefinition, error) {
	return c.store.Exam(c.userID, examID)
}

func (c *LocalCaller) GetExerciseDefinition(ctx context.Context, exerciseID string) (*model.ExerciseDefinition, error) {
	return c.store.Exercise(c.userID, exerciseID)
}

func (c *LocalCaller) SubmitExercise(ctx context.Context, exerciseID string, answers []model.UserAnswer) (*model.SubmitReceipt, error) {
	return c.store.SubmitExercise(c.userID, exerciseID, answers)
}

func (c *LocalCaller) ListMyAttempts(ctx context.Context, kind model.AssessmentKind) ([]model.Attempt, error) {
	return c.store.Attempts(c.userID, kind), nil
}
