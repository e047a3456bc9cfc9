package model

import "time"

// AttemptStatus enumerates server-side attempt states.
type AttemptStatus string

const (
	AttemptStatusNotStarted AttemptStatus = "not_started"
	AttemptStatusInProgress AttemptStatus = "in_progress"
	AttemptStatusPaused     AttemptStatus = "paused"
	AttemptStatusSubmitted  AttemptStatus = "submitted"
	AttemptStatusExpired    AttemptStatus = "expired"
	AttemptStatusGraded     AttemptStatus = "graded"
)

// Finished reports whether the attempt can no longer be answered.
func (s AttemptStatus) Finished() bool {
	return s == AttemptStatusSubmitted || s == AttemptStatusExpired || s == AttemptStatusGraded
}

// AssessmentKind distinguishes timed exams from untimed exercises.
type AssessmentKind string

const (
	KindExam     AssessmentKind = "exam"
	KindExercise AssessmentKind = "exercise"
)

// Attempt is the server's snapshot of one student's attempt at an assessment.
type Attempt struct {
	ID           string         `json:"id"`
	AssessmentID string         `json:"assessment_id"`
	Kind         AssessmentKind `json:"kind"`
	Status       AttemptStatus  `json:"status"`
	StartTime    *time.Time     `json:"start_time,omitempty"`
	// LastResumeTime is set while the attempt is running.
	LastResumeTime *time.Time `json:"last_resume_time,omitempty"`
	// TotalElapsedSeconds excludes the currently open running interval.
	TotalElapsedSeconds int        `json:"total_elapsed_seconds"`
	Score               *float64   `json:"score,omitempty"`
	SubmitTime          *time.Time `json:"submit_time,omitempty"`
}

// AnswerRecord is the graded outcome of one question.
type AnswerRecord struct {
	QuestionID    string            `json:"question_id"`
	Content       string            `json:"content"`
	Type          QuestionType      `json:"type"`
	Options       map[string]string `json:"options,omitempty"`
	StudentAnswer string            `json:"student_answer"`
	CorrectAnswer string            `json:"correct_answer"`
	IsCorrect     bool              `json:"is_correct"`
	ScoreAwarded  float64           `json:"score_awarded"`
	Analysis      string            `json:"analysis,omitempty"`
}

// AttemptDetail is the graded breakdown of a submitted attempt.
type AttemptDetail struct {
	AttemptID     string         `json:"attempt_id"`
	AssessmentID  string         `json:"assessment_id"`
	Kind          AssessmentKind `json:"kind"`
	Title         string         `json:"title"`
	Score         float64        `json:"score"`
	TotalScore    float64        `json:"total_score"`
	PassingScore  float64        `json:"passing_score"`
	AnswerRecords []AnswerRecord `json:"answer_records"`
	StartTime     *time.Time     `json:"start_time,omitempty"`
	SubmitTime    *time.Time     `json:"submit_time,omitempty"`
}

// SubmitReceipt is returned by the upstream once an attempt is accepted for grading.
type SubmitReceipt struct {
	AttemptID string `json:"attempt_id"`
}

// SubmitAttemptRequest is the payload for submitting a full answer set.
type SubmitAttemptRequest struct {
	Answers []UserAnswer `json:"answers" binding:"dive"`
}
