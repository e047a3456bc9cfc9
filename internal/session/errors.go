package session

import (
	"errors"
	"fmt"
)

// Session errors.
var (
	ErrAttemptNotFound      = errors.New("attempt not found")
	ErrInvalidTransition    = errors.New("action not allowed in current state")
	ErrOperationPending     = errors.New("another action is still in flight")
	ErrUnknownQuestion      = errors.New("question is not part of this attempt")
	ErrQuestionLocked       = errors.New("question was answered correctly and is locked")
	ErrNothingToRetry       = errors.New("attempt has no wrong questions to retry")
	ErrConfirmationRequired = errors.New("unanswered questions require confirmation")
	ErrClosed               = errors.New("session is closed")
	ErrIndexOutOfRange      = errors.New("question index out of range")
)

// ConfirmationError reports how many questions are still unanswered when a
// submission needs explicit confirmation.
type ConfirmationError struct {
	Unanswered int
}

func (e *ConfirmationError) Error() string {
	return fmt.Sprintf("%d unanswered question(s), confirmation required", e.Unanswered)
}

// Is lets errors.Is match ErrConfirmationRequired.
func (e *ConfirmationError) Is(target error) bool {
	return target == ErrConfirmationRequired
}
