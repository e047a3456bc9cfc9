package model

import "time"

// ResultItem is the per-question line of a rendered result.
type ResultItem struct {
	QuestionID   string  `json:"question_id"`
	IsCorrect    bool    `json:"is_correct"`
	ScoreAwarded float64 `json:"score_awarded"`
}

// Mistake pairs a wrong answer with the expected one.
type Mistake struct {
	QuestionID    string            `json:"question_id"`
	Content       string            `json:"content"`
	Options       map[string]string `json:"options,omitempty"`
	StudentAnswer string            `json:"student_answer"`
	CorrectAnswer string            `json:"correct_answer"`
	Analysis      string            `json:"analysis,omitempty"`
}

// Result is the scored summary of a graded attempt.
type Result struct {
	AttemptID      string         `json:"attempt_id"`
	AssessmentID   string         `json:"assessment_id"`
	Kind           AssessmentKind `json:"kind"`
	Title          string         `json:"title"`
	Score          float64        `json:"score"`
	TotalScore     float64        `json:"total_score"`
	PassingScore   float64        `json:"passing_score"`
	Passed         bool           `json:"passed"`
	Total          int            `json:"total"`
	CorrectCount   int            `json:"correct_count"`
	IncorrectCount int            `json:"incorrect_count"`
	Accuracy       int            `json:"accuracy"`
	Items          []ResultItem   `json:"items"`
	Mistakes       []Mistake      `json:"mistakes"`
	StartTime      *time.Time     `json:"start_time,omitempty"`
	SubmitTime     *time.Time     `json:"submit_time,omitempty"`
}

// ResultHistory is one recorded result in a student's history.
type ResultHistory struct {
	ID           int64          `json:"id"`
	StudentID    int            `json:"student_id"`
	AttemptID    string         `json:"attempt_id"`
	AssessmentID string         `json:"assessment_id"`
	Kind         AssessmentKind `json:"kind"`
	Title        string         `json:"title"`
	Score        float64        `json:"score"`
	Passed       bool           `json:"passed"`
	Accuracy     int            `json:"accuracy"`
	RecordedAt   time.Time      `json:"recorded_at"`
}
