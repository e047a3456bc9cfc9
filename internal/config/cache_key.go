package config

import (
	"fmt"

	"github.com/stemsi/exstem-gateway/internal/model"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// DraftKey returns the key of a student's draft for one assessment.
func (r *CacheKeyStruct) DraftKey(studentID int, kind model.AssessmentKind, assessmentID string) string {
	return fmt.Sprintf("draft:student:%d:%s:%s", studentID, kind, assessmentID)
}

// RetryDraftKey returns the key of a student's draft for a retry of a graded attempt.
func (r *CacheKeyStruct) RetryDraftKey(studentID int, attemptID string) string {
	return fmt.Sprintf("draft:student:%d:retry:%s", studentID, attemptID)
}

// SessionKey returns the registry key of a live session.
func (r *CacheKeyStruct) SessionKey(studentID int, kind string, id string) string {
	return fmt.Sprintf("student:%d:%s:%s", studentID, kind, id)
}

// RateLimitKey returns the rate limiter bucket of a student.
func (r *CacheKeyStruct) RateLimitKey(studentID int) string {
	return fmt.Sprintf("student:%d", studentID)
}

var CacheKey = NewCacheKeyStruct()
