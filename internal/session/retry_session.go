package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-gateway/internal/model"
	"golang.org/x/sync/singleflight"
)

// RetryConfig wires a RetrySession to its collaborators.
type RetryConfig struct {
	DraftKey string
	API      API
	Drafts   Drafts
	Log      zerolog.Logger
	OnGraded func(*model.Result)
}

// RetryItem is one question of a retry session as shown to the student.
type RetryItem struct {
	QuestionID string             `json:"question_id"`
	Content    string             `json:"content"`
	Type       model.QuestionType `json:"type"`
	Options    map[string]string  `json:"options,omitempty"`
	Answer     string             `json:"answer"`
	Locked     bool               `json:"locked"`
}

// RetrySnapshot is a point-in-time view of a retry session.
type RetrySnapshot struct {
	SourceAttemptID string        `json:"source_attempt_id"`
	AssessmentID    string        `json:"assessment_id"`
	Kind            string        `json:"kind"`
	State           State         `json:"state"`
	Items           []RetryItem   `json:"items"`
	Retryable       int           `json:"retryable"`
	Unanswered      int           `json:"unanswered"`
	Pending         string        `json:"pending,omitempty"`
	Result          *model.Result `json:"result,omitempty"`
}

// RetrySession re-opens the wrong questions of a graded attempt. Every
// question stays visible; correctly answered ones keep their original answer
// and cannot be edited. Submission always carries the full question set.
type RetrySession struct {
	source   *model.AttemptDetail
	draftKey string
	api      API
	drafts   Drafts
	log      zerolog.Logger
	onGraded func(*model.Result)

	mu        sync.Mutex
	state     State
	answers   *AnswerSet
	locked    map[string]bool
	retryable int
	attemptID string
	result    *model.Result
	pending   string
	closed    bool

	flight singleflight.Group
}

// NewRetrySession partitions the prior attempt's records. When every record
// was correct the session starts in nothing_to_retry.
func NewRetrySession(cfg RetryConfig, source *model.AttemptDetail) *RetrySession {
	s := &RetrySession{
		source:   source,
		draftKey: cfg.DraftKey,
		api:      cfg.API,
		drafts:   cfg.Drafts,
		log: cfg.Log.With().
			Str("component", "retry_session").
			Str("source_attempt_id", source.AttemptID).
			Logger(),
		onGraded: cfg.OnGraded,
		locked:   make(map[string]bool, len(source.AnswerRecords)),
	}

	ids := make([]string, 0, len(source.AnswerRecords))
	for _, rec := range source.AnswerRecords {
		ids = append(ids, rec.QuestionID)
	}
	s.answers = NewAnswerSet(ids)

	for _, rec := range source.AnswerRecords {
		if rec.IsCorrect {
			s.locked[rec.QuestionID] = true
			_ = s.answers.Set(rec.QuestionID, rec.StudentAnswer)
			continue
		}
		s.retryable++
	}

	if s.retryable == 0 {
		s.state = StateNothingToRetry
	} else {
		s.state = StateInProgress
	}
	return s
}

// RestoreDraft merges a saved draft into the editable questions.
func (s *RetrySession) RestoreDraft(ctx context.Context) {
	if s.drafts == nil {
		return
	}
	p, err := s.drafts.Load(ctx, s.draftKey)
	if err != nil {
		s.log.Warn().Err(err).Msg("Draft load failed, ignoring draft")
		return
	}
	if p == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateInProgress {
		return
	}
	for _, a := range p.Answers {
		if !s.locked[a.QuestionID] {
			_ = s.answers.Set(a.QuestionID, a.Answer)
		}
	}
}

// SetAnswer records an answer for a question that was previously wrong.
func (s *RetrySession) SetAnswer(ctx context.Context, questionID, answer string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editableLocked(questionID); err != nil {
		return err
	}
	if rec := s.record(questionID); rec != nil && rec.Type == model.QuestionTypeMultipleChoice {
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
func (s *RetrySession) ToggleOption(ctx context.Context, questionID, option string, included bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editableLocked(questionID); err != nil {
		return err
	}
	if err := s.answers.ToggleOption(questionID, option, included); err != nil {
		return err
	}
	s.state = StateInProgress
	s.saveAnswersLocked(ctx)
	return nil
}

// Submit resubmits the full question set. Only the editable questions take
// part in the confirmation gate.
func (s *RetrySession) Submit(ctx context.Context, confirmed bool) (*model.Result, error) {
	v, err, _ := s.flight.Do(opSubmit, func() (interface{}, error) {
		return s.submit(ctx, confirmed)
	})
	if err != nil {
		return nil, err
	}
	res, _ := v.(*model.Result)
	return res, nil
}

func (s *RetrySession) submit(ctx context.Context, confirmed bool) (*model.Result, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	switch s.state {
	case StateNothingToRetry:
		s.mu.Unlock()
		return nil, ErrNothingToRetry
	case StateSubmitted:
		res, attemptID := s.result, s.attemptID
		s.mu.Unlock()
		if res != nil {
			return res, nil
		}
		return s.fetchResult(ctx, attemptID)
	case StateInProgress, StateAwaitingConfirmation:
	default:
		s.mu.Unlock()
		return nil, ErrInvalidTransition
	}
	if s.pending != "" {
		s.mu.Unlock()
		return nil, ErrOperationPending
	}
	if n := s.unansweredLocked(); n > 0 && !confirmed {
		s.state = StateAwaitingConfirmation
		s.mu.Unlock()
		return nil, &ConfirmationError{Unanswered: n}
	}
	s.pending = opSubmit
	payload := s.payloadLocked()
	s.mu.Unlock()

	var (
		receipt *model.SubmitReceipt
		err     error
	)
	if s.source.Kind == model.KindExercise {
		receipt, err = s.api.SubmitExercise(ctx, s.source.AssessmentID, payload)
	} else {
		receipt, err = s.api.SubmitAttempt(ctx, s.source.AssessmentID, payload)
	}
	if err != nil {
		s.mu.Lock()
		s.pending = ""
		s.state = StateInProgress
		s.mu.Unlock()
		s.log.Error().Err(err).Msg("Retry submit failed, answers kept")
		return nil, fmt.Errorf("submit retry: %w", err)
	}

	s.mu.Lock()
	s.pending = ""
	s.state = StateSubmitted
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

func (s *RetrySession) fetchResult(ctx context.Context, attemptID string) (*model.Result, error) {
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

	s.log.Info().Str("attempt_id", attemptID).Int("correct", res.CorrectCount).Int("total", res.Total).Msg("Retry graded")
	if s.onGraded != nil {
		s.onGraded(res)
	}
	return res, nil
}

// CancelSubmit leaves the confirmation step.
func (s *RetrySession) CancelSubmit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateAwaitingConfirmation {
		return ErrInvalidTransition
	}
	s.state = StateInProgress
	return nil
}

// Items returns every question in record order with its current answer.
func (s *RetrySession) Items() []RetryItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.itemsLocked()
}

// Snapshot returns the current view of the session.
func (s *RetrySession) Snapshot() RetrySnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return RetrySnapshot{
		SourceAttemptID: s.source.AttemptID,
		AssessmentID:    s.source.AssessmentID,
		Kind:            string(s.source.Kind),
		State:           s.state,
		Items:           s.itemsLocked(),
		Retryable:       s.retryable,
		Unanswered:      s.unansweredLocked(),
		Pending:         s.pending,
		Result:          s.result,
	}
}

// State returns the current state.
func (s *RetrySession) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Result returns the rendered result once graded.
func (s *RetrySession) Result() *model.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Close marks the session unusable.
func (s *RetrySession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *RetrySession) editableLocked(questionID string) error {
	if s.closed {
		return ErrClosed
	}
	if s.state == StateNothingToRetry {
		return ErrNothingToRetry
	}
	if s.state != StateInProgress && s.state != StateAwaitingConfirmation {
		return ErrInvalidTransition
	}
	if s.pending == opSubmit {
		return ErrOperationPending
	}
	if !s.answers.Has(questionID) {
		return ErrUnknownQuestion
	}
	if s.locked[questionID] {
		return ErrQuestionLocked
	}
	return nil
}

func (s *RetrySession) unansweredLocked() int {
	n := 0
	for _, id := range s.answers.Unanswered() {
		if !s.locked[id] {
			n++
		}
	}
	return n
}

// payloadLocked builds the full submission: locked questions carry the
// original answer verbatim, the rest carry the fresh edits.
func (s *RetrySession) payloadLocked() []model.UserAnswer {
	out := make([]model.UserAnswer, 0, len(s.source.AnswerRecords))
	for _, rec := range s.source.AnswerRecords {
		answer := s.answers.Get(rec.QuestionID)
		if s.locked[rec.QuestionID] {
			answer = rec.StudentAnswer
		}
		out = append(out, model.UserAnswer{QuestionID: rec.QuestionID, Answer: answer})
	}
	return out
}

func (s *RetrySession) itemsLocked() []RetryItem {
	items := make([]RetryItem, 0, len(s.source.AnswerRecords))
	for _, rec := range s.source.AnswerRecords {
		items = append(items, RetryItem{
			QuestionID: rec.QuestionID,
			Content:    rec.Content,
			Type:       rec.Type,
			Options:    rec.Options,
			Answer:     s.answers.Get(rec.QuestionID),
			Locked:     s.locked[rec.QuestionID],
		})
	}
	return items
}

func (s *RetrySession) record(id string) *model.AnswerRecord {
	for i := range s.source.AnswerRecords {
		if s.source.AnswerRecords[i].QuestionID == id {
			return &s.source.AnswerRecords[i]
		}
	}
	return nil
}

func (s *RetrySession) saveAnswersLocked(ctx context.Context) {
	if s.drafts == nil {
		return
	}
	editable := make([]model.UserAnswer, 0, s.retryable)
	for _, a := range s.answers.Answers() {
		if !s.locked[a.QuestionID] {
			editable = append(editable, a)
		}
	}
	if err := s.drafts.SaveAnswers(ctx, s.draftKey, editable); err != nil {
		s.log.Warn().Err(err).Msg("Draft answers save failed")
	}
}
