package mockapi

import (
	"errors"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stemsi/exstem-gateway/internal/model"
)

// Store errors.
var (
	ErrNotFound         = errors.New("not found")
	ErrAttemptExists    = errors.New("attempt already started")
	ErrAttemptNotActive = errors.New("attempt is not in a state that allows this action")
)

type attemptRecord struct {
	model.Attempt
	userID  int
	answers []model.UserAnswer
	detail  *model.AttemptDetail
}

type userAssessment struct {
	userID int
	id     string
}

// Store is the in-memory state of the mock upstream: definitions, attempts,
// and the server-side timing bookkeeping of each attempt.
type Store struct {
	clock clockwork.Clock

	mu        sync.Mutex
	exams     map[string]model.ExamDefinition
	exercises map[string]model.ExerciseDefinition
	attempts  map[string]*attemptRecord
	// current is the latest exam attempt per user and exam.
	current map[userAssessment]string
}

// NewStore creates a Store serving f.
func NewStore(f *Fixtures, clock clockwork.Clock) *Store {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	s := &Store{
		clock:     clock,
		exams:     make(map[string]model.ExamDefinition),
		exercises: make(map[string]model.ExerciseDefinition),
		attempts:  make(map[string]*attemptRecord),
		current:   make(map[userAssessment]string),
	}
	for _, e := range f.Exams {
		s.exams[e.ID] = e
	}
	for _, e := range f.Exercises {
		s.exercises[e.ID] = e
	}
	return s
}

// Exam returns the exam as a student sees it: no keys or analyses.
func (s *Store) Exam(userID int, examID string) (*model.ExamDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.exams[examID]
	if !ok {
		return nil, ErrNotFound
	}
	out := e
	out.Questions = make([]model.ExamQuestion, len(e.Questions))
	for i, q := range e.Questions {
		q.Question = redact(q.Question)
		out.Questions[i] = q
	}
	out.IsParticipated = s.participatedLocked(userID, examID, model.KindExam)
	return &out, nil
}

// Exercise returns the exercise as a student sees it.
func (s *Store) Exercise(userID int, exerciseID string) (*model.ExerciseDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.exercises[exerciseID]
	if !ok {
		return nil, ErrNotFound
	}
	out := e
	out.Questions = make([]model.Question, len(e.Questions))
	for i, q := range e.Questions {
		out.Questions[i] = redact(q)
	}
	out.IsParticipated = s.participatedLocked(userID, exerciseID, model.KindExercise)
	return &out, nil
}

// StartAttempt opens a running attempt. Starting twice is rejected.
func (s *Store) StartAttempt(userID int, examID string) (*model.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.exams[examID]; !ok {
		return nil, ErrNotFound
	}
	key := userAssessment{userID, examID}
	if id, ok := s.current[key]; ok && !s.attempts[id].Status.Finished() {
		return nil, ErrAttemptExists
	}

	now := s.clock.Now()
	rec := &attemptRecord{
		Attempt: model.Attempt{
			ID:             uuid.New().String(),
			AssessmentID:   examID,
			Kind:           model.KindExam,
			Status:         model.AttemptStatusInProgress,
			StartTime:      &now,
			LastResumeTime: &now,
		},
		userID: userID,
	}
	s.attempts[rec.ID] = rec
	s.current[key] = rec.ID

	a := rec.Attempt
	return &a, nil
}

// Attempt returns the user's latest attempt at examID.
func (s *Store) Attempt(userID int, examID string) (*model.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.currentLocked(userID, examID)
	if err != nil {
		return nil, err
	}
	a := rec.Attempt
	return &a, nil
}

// PauseAttempt closes the running interval into total_elapsed_seconds.
func (s *Store) PauseAttempt(userID int, examID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.currentLocked(userID, examID)
	if err != nil {
		return err
	}
	if rec.Status != model.AttemptStatusInProgress {
		return ErrAttemptNotActive
	}
	s.closeIntervalLocked(rec)
	rec.Status = model.AttemptStatusPaused
	return nil
}

// ResumeAttempt opens a new running interval.
func (s *Store) ResumeAttempt(userID int, examID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.currentLocked(userID, examID)
	if err != nil {
		return err
	}
	if rec.Status != model.AttemptStatusPaused {
		return ErrAttemptNotActive
	}
	now := s.clock.Now()
	rec.Status = model.AttemptStatusInProgress
	rec.LastResumeTime = &now
	return nil
}

// SubmitAttempt grades the answers against the exam. Submitting against a
// finished attempt records a new graded attempt (a retry).
func (s *Store) SubmitAttempt(userID int, examID string, answers []model.UserAnswer) (*model.SubmitReceipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	exam, ok := s.exams[examID]
	if !ok {
		return nil, ErrNotFound
	}

	key := userAssessment{userID, examID}
	rec, err := s.currentLocked(userID, examID)
	switch {
	case errors.Is(err, ErrNotFound):
		return nil, ErrAttemptNotActive
	case rec.Status.Finished():
		now := s.clock.Now()
		rec = &attemptRecord{
			Attempt: model.Attempt{
				ID:           uuid.New().String(),
				AssessmentID: examID,
				Kind:         model.KindExam,
				StartTime:    &now,
			},
			userID: userID,
		}
		s.attempts[rec.ID] = rec
		s.current[key] = rec.ID
	case rec.Status == model.AttemptStatusInProgress:
		s.closeIntervalLocked(rec)
	}

	questions := make([]gradedQuestion, 0, len(exam.Questions))
	for _, q := range exam.Questions {
		questions = append(questions, gradedQuestion{Question: q.Question, Score: q.Score})
	}
	s.gradeLocked(rec, exam.Title, exam.TotalScore, exam.PassingScore, questions, answers)

	return &model.SubmitReceipt{AttemptID: rec.ID}, nil
}

// SubmitExercise grades an exercise. Every submission is a new attempt.
func (s *Store) SubmitExercise(userID int, exerciseID string, answers []model.UserAnswer) (*model.SubmitReceipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ex, ok := s.exercises[exerciseID]
	if !ok {
		return nil, ErrNotFound
	}

	now := s.clock.Now()
	rec := &attemptRecord{
		Attempt: model.Attempt{
			ID:           uuid.New().String(),
			AssessmentID: exerciseID,
			Kind:         model.KindExercise,
			StartTime:    &now,
		},
		userID: userID,
	}
	s.attempts[rec.ID] = rec

	per := 0.0
	if n := len(ex.Questions); n > 0 {
		per = ex.TotalScore / float64(n)
	}
	questions := make([]gradedQuestion, 0, len(ex.Questions))
	for _, q := range ex.Questions {
		questions = append(questions, gradedQuestion{Question: q, Score: per})
	}
	s.gradeLocked(rec, ex.Title, ex.TotalScore, ex.PassingScore, questions, answers)

	return &model.SubmitReceipt{AttemptID: rec.ID}, nil
}

// Detail returns the graded breakdown of one of the user's attempts.
func (s *Store) Detail(userID int, attemptID string) (*model.AttemptDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.attempts[attemptID]
	if !ok || rec.userID != userID || rec.detail == nil {
		return nil, ErrNotFound
	}
	d := *rec.detail
	d.AnswerRecords = append([]model.AnswerRecord(nil), rec.detail.AnswerRecords...)
	return &d, nil
}

// Attempts lists the user's attempts of one kind, newest first.
func (s *Store) Attempts(userID int, kind model.AssessmentKind) []model.Attempt {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []model.Attempt{}
	for _, rec := range s.attempts {
		if rec.userID == userID && (kind == "" || rec.Kind == kind) {
			out = append(out, rec.Attempt)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartTime.After(*out[j].StartTime)
	})
	return out
}

type gradedQuestion struct {
	Question model.Question
	Score    float64
}

func (s *Store) gradeLocked(rec *attemptRecord, title string, total, passing float64, questions []gradedQuestion, answers []model.UserAnswer) {
	byID := make(map[string]string, len(answers))
	for _, a := range answers {
		byID[a.QuestionID] = a.Answer
	}

	detail := &model.AttemptDetail{
		AttemptID:     rec.ID,
		AssessmentID:  rec.AssessmentID,
		Kind:          rec.Kind,
		Title:         title,
		TotalScore:    total,
		PassingScore:  passing,
		AnswerRecords: make([]model.AnswerRecord, 0, len(questions)),
		StartTime:     rec.StartTime,
	}

	for _, gq := range questions {
		q := gq.Question
		answer := byID[q.ID]
		correct := IsCorrect(q, answer)
		awarded := 0.0
		if correct {
			awarded = gq.Score
		}
		detail.Score += awarded
		detail.AnswerRecords = append(detail.AnswerRecords, model.AnswerRecord{
			QuestionID:    q.ID,
			Content:       q.Content,
			Type:          q.Type,
			Options:       q.Options,
			StudentAnswer: answer,
			CorrectAnswer: q.CorrectAnswer,
			IsCorrect:     correct,
			ScoreAwarded:  awarded,
			Analysis:      q.Analysis,
		})
	}
	detail.Score = math.Round(detail.Score*100) / 100

	now := s.clock.Now()
	score := detail.Score
	detail.SubmitTime = &now
	rec.Status = model.AttemptStatusGraded
	rec.LastResumeTime = nil
	rec.SubmitTime = &now
	rec.Score = &score
	rec.answers = answers
	rec.detail = detail
}

func (s *Store) closeIntervalLocked(rec *attemptRecord) {
	if rec.LastResumeTime != nil {
		elapsed := s.clock.Now().Sub(*rec.LastResumeTime)
		rec.TotalElapsedSeconds += int(elapsed / time.Second)
	}
	rec.LastResumeTime = nil
}

func (s *Store) currentLocked(userID int, examID string) (*attemptRecord, error) {
	id, ok := s.current[userAssessment{userID, examID}]
	if !ok {
		return nil, ErrNotFound
	}
	return s.attempts[id], nil
}

func (s *Store) participatedLocked(userID int, id string, kind model.AssessmentKind) bool {
	for _, rec := range s.attempts {
		if rec.userID == userID && rec.AssessmentID == id && rec.Kind == kind && rec.Status.Finished() {
			return true
		}
	}
	return false
}

func redact(q model.Question) model.Question {
	q.CorrectAnswer = ""
	q.Analysis = ""
	return q
}
