package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-gateway/internal/model"
	"golang.org/x/sync/singleflight"
)

// PracticeConfig wires a PracticeSession to its collaborators.
type PracticeConfig struct {
	ExerciseID string
	DraftKey   string
	API        API
	Drafts     Drafts
	Log        zerolog.Logger
	OnGraded   func(*model.Result)
}

// PracticeSnapshot is a point-in-time view of a practice session.
type PracticeSnapshot struct {
	ExerciseID           string             `json:"exercise_id"`
	AttemptID            string             `json:"attempt_id,omitempty"`
	State                State              `json:"state"`
	CurrentQuestionIndex int                `json:"current_question_index"`
	Answered             int                `json:"answered"`
	Unanswered           int                `json:"unanswered"`
	Total                int                `json:"total"`
	Answers              []model.UserAnswer `json:"answers"`
	Pending              string             `json:"pending,omitempty"`
	Result               *model.Result      `json:"result,omitempty"`
}

// PracticeSession is the untimed exercise flow:
//
//	in_progress --Submit(unconfirmed, gaps)--> awaiting_confirmation
//	awaiting_confirmation --CancelSubmit--> in_progress
//	in_progress|awaiting_confirmation --Submit(confirmed)--> submitted
//	submitted --Retry--> in_progress (answers cleared)
type PracticeSession struct {
	exerciseID string
	draftKey   string
	api        API
	drafts     Drafts
	log        zerolog.Logger
	onGraded   func(*model.Result)

	mu        sync.Mutex
	def       *model.ExerciseDefinition
	state     State
	answers   *AnswerSet
	current   int
	attemptID string
	result    *model.Result
	pending   string
	closed    bool

	flight singleflight.Group
}

// NewPracticeSession creates an unloaded practice session.
func NewPracticeSession(cfg PracticeConfig) *PracticeSession {
	return &PracticeSession{
		exerciseID: cfg.ExerciseID,
		draftKey:   cfg.DraftKey,
		api:        cfg.API,
		drafts:     cfg.Drafts,
		log:        cfg.Log.With().Str("component", "practice_session").Str("exercise_id", cfg.ExerciseID).Logger(),
		onGraded:   cfg.OnGraded,
		state:      StateNotStarted,
	}
}

// Load fetches the exercise and restores any saved draft.
func (s *PracticeSession) Load(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.def != nil {
		s.mu.Unlock()
		return nil
	}
	if s.pending != "" {
		s.mu.Unlock()
		return ErrOperationPending
	}
	s.pending = opLoad
	s.mu.Unlock()

	def, err := s.api.GetExerciseDefinition(ctx, s.exerciseID)
	if err != nil {
		s.mu.Lock()
		s.pending = ""
		s.mu.Unlock()
		return fmt.Errorf("get exercise definition: %w", err)
	}

	var draft *model.LocalProgress
	if s.drafts != nil {
		draft, err = s.drafts.Load(ctx, s.draftKey)
		if err != nil {
			s.log.Warn().Err(err).Msg("Draft load failed, ignoring draft")
			draft = nil
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = ""
	s.def = def
	s.answers = NewAnswerSet(def.QuestionIDs())
	if draft != nil {
		s.answers.Merge(draft.Answers)
		s.current = clampIndex(draft.CurrentQuestionIndex, s.answers.Len())
	}
	s.state = StateInProgress

	s.log.Debug().Int("questions", s.answers.Len()).Bool("draft_restored", draft != nil).Msg("Practice session loaded")
	return nil
}

// SetAnswer records an answer. An edit while awaiting confirmation returns
// the session to in_progress.
func (s *PracticeSession) SetAnswer(ctx context.Context, questionID, answer string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editableLocked(); err != nil {
		return err
	}
	q, ok := s.def.Question(questionID)
	if !ok {
		return ErrUnknownQuestion
	}
	if q.Type == model.QuestionTypeMultipleChoice {
		answer = NormalizeChoice(answer)
	}
	if err := s.answers.Set(questionID, answer); err != nil {
		return err
	}
	s.state = StateInProgress
	s.saveAnswersLocked(ctx)
	return nil
}

// ToggleOption adds or removes a multiple-choice option key.
func (s *PracticeSession) ToggleOption(ctx context.Context, questionID, option string, included bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editableLocked(); err != nil {
		return err
	}
	if err := s.answers.ToggleOption(questionID, option, included); err != nil {
		return err
	}
	s.state = StateInProgress
	s.saveAnswersLocked(ctx)
	return nil
}

// Navigate moves to the question at index.
func (s *PracticeSession) Navigate(ctx context.Context, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editableLocked(); err != nil {
		return err
	}
	if index < 0 || index >= s.answers.Len() {
		return ErrIndexOutOfRange
	}
	s.current = index
	s.saveDraftLocked(ctx)
	return nil
}

// Submit grades the exercise. With unanswered questions and confirmed=false
// it stops at awaiting_confirmation and returns a *ConfirmationError.
func (s *PracticeSession) Submit(ctx context.Context, confirmed bool) (*model.Result, error) {
	v, err, _ := s.flight.Do(opSubmit, func() (interface{}, error) {
		return s.submit(ctx, confirmed)
	})
	if err != nil {
		return nil, err
	}
	res, _ := v.(*model.Result)
	return res, nil
}

func (s *PracticeSession) submit(ctx context.Context, confirmed bool) (*model.Result, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if s.state == StateSubmitted {
		res, attemptID := s.result, s.attemptID
		s.mu.Unlock()
		if res != nil {
			return res, nil
		}
		return s.fetchResult(ctx, attemptID)
	}
	if s.state != StateInProgress && s.state != StateAwaitingConfirmation {
		s.mu.Unlock()
		return nil, ErrInvalidTransition
	}
	if s.pending != "" {
		s.mu.Unlock()
		return nil, ErrOperationPending
	}
	if n := len(s.answers.Unanswered()); n > 0 && !confirmed {
		s.state = StateAwaitingConfirmation
		s.mu.Unlock()
		return nil, &ConfirmationError{Unanswered: n}
	}
	s.pending = opSubmit
	answers := s.answers.Answers()
	s.mu.Unlock()

	receipt, err := s.api.SubmitExercise(ctx, s.exerciseID, answers)
	if err != nil {
		s.mu.Lock()
		s.pending = ""
		s.state = StateInProgress
		s.mu.Unlock()
		s.log.Error().Err(err).Msg("Practice submit failed, answers kept")
		return nil, fmt.Errorf("submit exercise: %w", err)
	}

	s.mu.Lock()
	s.pending = ""
	s.state = StateSubmitted
	s.result = nil
	if receipt != nil {
		s.attemptID = receipt.AttemptID
	}
	attemptID := s.attemptID
	if s.drafts != nil {
		if err := s.drafts.Clear(ctx, s.draftKey); err != nil {
			s.log.Warn().Err(err).Msg("Draft clear failed")
		}
	}
	s.mu.Unlock()

	return s.fetchResult(ctx, attemptID)
}

func (s *PracticeSession) fetchResult(ctx context.Context, attemptID string) (*model.Result, error) {
	detail, err := s.api.GetAttemptDetail(ctx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("get attempt detail: %w", err)
	}
	res := Render(detail)
	if res == nil {
		return nil, fmt.Errorf("get attempt detail: empty detail for %s", attemptID)
	}

	s.mu.Lock()
	s.result = res
	s.mu.Unlock()

	s.log.Info().Str("attempt_id", attemptID).Float64("score", res.Score).Int("accuracy", res.Accuracy).Msg("Practice graded")
	if s.onGraded != nil {
		s.onGraded(res)
	}
	return res, nil
}

// CancelSubmit leaves the confirmation step without changing any answer.
func (s *PracticeSession) CancelSubmit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.state != StateAwaitingConfirmation {
		return ErrInvalidTransition
	}
	s.state = StateInProgress
	return nil
}

// Retry starts the exercise over with every answer cleared.
func (s *PracticeSession) Retry(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.state != StateSubmitted || s.pending != "" {
		return ErrInvalidTransition
	}
	s.answers.Reset()
	s.current = 0
	s.result = nil
	s.attemptID = ""
	s.state = StateInProgress
	s.saveDraftLocked(ctx)
	return nil
}

// Snapshot returns the current view of the session.
func (s *PracticeSession) Snapshot() PracticeSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := PracticeSnapshot{
		ExerciseID:           s.exerciseID,
		AttemptID:            s.attemptID,
		State:                s.state,
		CurrentQuestionIndex: s.current,
		Pending:              s.pending,
		Result:               s.result,
		Answers:              []model.UserAnswer{},
	}
	if s.answers != nil {
		snap.Answers = s.answers.Answers()
		snap.Answered = s.answers.CountAnswered()
		snap.Unanswered = len(s.answers.Unanswered())
		snap.Total = s.answers.Len()
	}
	return snap
}

// Definition returns the loaded exercise, or nil before Load.
func (s *PracticeSession) Definition() *model.ExerciseDefinition {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.def
}

// State returns the current state.
func (s *PracticeSession) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Result returns the rendered result once submitted and graded.
func (s *PracticeSession) Result() *model.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Close marks the session unusable.
func (s *PracticeSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *PracticeSession) editableLocked() error {
	if s.closed {
		return ErrClosed
	}
	if s.def == nil {
		return ErrInvalidTransition
	}
	if s.state != StateInProgress && s.state != StateAwaitingConfirmation {
		return ErrInvalidTransition
	}
	if s.pending == opSubmit {
		return ErrOperationPending
	}
	return nil
}

func (s *PracticeSession) saveDraftLocked(ctx context.Context) {
	if s.drafts == nil {
		return
	}
	p := model.LocalProgress{
		Status:               model.ProgressInProgress,
		Answers:              s.answers.Answers(),
		CurrentQuestionIndex: s.current,
	}
	if err := s.drafts.Save(ctx, s.draftKey, p); err != nil {
		s.log.Warn().Err(err).Msg("Draft save failed")
	}
}

func (s *PracticeSession) saveAnswersLocked(ctx context.Context) {
	if s.drafts == nil {
		return
	}
	if err := s.drafts.SaveAnswers(ctx, s.draftKey, s.answers.Answers()); err != nil {
		s.log.Warn().Err(err).Msg("Draft answers save failed")
	}
}
