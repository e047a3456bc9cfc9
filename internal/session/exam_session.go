package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-gateway/internal/model"
	"golang.org/x/sync/singleflight"
)

const (
	opLoad   = "load"
	opStart  = "start"
	opPause  = "pause"
	opResume = "resume"
	opSync   = "sync"
	opSubmit = "submit"

	defaultSubmitTimeout = 30 * time.Second
	draftWriteTimeout    = 3 * time.Second
)

// ExamConfig wires an ExamSession to its collaborators.
type ExamConfig struct {
	ExamID   string
	DraftKey string
	API      API
	Drafts   Drafts
	Clock    clockwork.Clock
	Log      zerolog.Logger
	// SubmitTimeout bounds the automatic submission on expiry.
	SubmitTimeout time.Duration
	// OnGraded is called once, outside the session lock, when a result is rendered.
	OnGraded func(*model.Result)
}

// ExamSnapshot is a point-in-time view of an exam session.
type ExamSnapshot struct {
	ExamID               string             `json:"exam_id"`
	AttemptID            string             `json:"attempt_id,omitempty"`
	State                State              `json:"state"`
	TimeRemaining        int                `json:"time_remaining"`
	DurationMinutes      int                `json:"duration_minutes"`
	CurrentQuestionIndex int                `json:"current_question_index"`
	Answered             int                `json:"answered"`
	Total                int                `json:"total"`
	Answers              []model.UserAnswer `json:"answers"`
	Pending              string             `json:"pending,omitempty"`
	Result               *model.Result      `json:"result,omitempty"`
}

// ExamSession is the state machine for one timed exam attempt.
//
//	not_started --Start--> in_progress <--Pause/Resume--> paused
//	in_progress --tick to 0--> expired --Submit--> graded
//	in_progress|paused --Submit--> submitted --detail--> graded
//
// Network calls run outside the lock; an in-flight guard keeps actions
// sequential. The countdown is a 1 Hz ticker that is cancelled on pause,
// submit, and Close.
type ExamSession struct {
	examID        string
	draftKey      string
	api           API
	drafts        Drafts
	clock         clockwork.Clock
	log           zerolog.Logger
	submitTimeout time.Duration
	onGraded      func(*model.Result)

	mu        sync.Mutex
	def       *model.ExamDefinition
	state     State
	remaining int
	answers   *AnswerSet
	current   int
	attemptID string
	result    *model.Result
	pending   string
	syncGen   uint64
	closed    bool

	timerCancel context.CancelFunc
	timerGen    uint64

	flight singleflight.Group
	events broadcaster
}

// NewExamSession creates an unloaded session. Call Load before anything else.
func NewExamSession(cfg ExamConfig) *ExamSession {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	timeout := cfg.SubmitTimeout
	if timeout <= 0 {
		timeout = defaultSubmitTimeout
	}
	return &ExamSession{
		examID:        cfg.ExamID,
		draftKey:      cfg.DraftKey,
		api:           cfg.API,
		drafts:        cfg.Drafts,
		clock:         clock,
		log:           cfg.Log.With().Str("component", "exam_session").Str("exam_id", cfg.ExamID).Logger(),
		submitTimeout: timeout,
		onGraded:      cfg.OnGraded,
		state:         StateNotStarted,
	}
}

// Load fetches the definition, restores the local draft, and reconciles with
// the server's attempt. A paused attempt is resumed once automatically.
func (s *ExamSession) Load(ctx context.Context) error {
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

	def, err := s.api.GetExamDefinition(ctx, s.examID)
	if err != nil {
		return s.failLoad(fmt.Errorf("get exam definition: %w", err))
	}

	draft := s.loadDraft(ctx)

	// Provisional view from the draft until the attempt round-trip lands.
	s.mu.Lock()
	s.def = def
	s.answers = NewAnswerSet(def.QuestionIDs())
	s.remaining = def.DurationMinutes * 60
	if draft != nil {
		s.answers.Merge(draft.Answers)
		s.current = clampIndex(draft.CurrentQuestionIndex, s.answers.Len())
		s.remaining = max(draft.TimeRemaining, 0)
	}
	s.mu.Unlock()

	attempt, err := s.api.GetAttempt(ctx, s.examID)
	if errors.Is(err, ErrAttemptNotFound) {
		attempt = nil
	} else if err != nil {
		return s.failLoad(fmt.Errorf("get attempt: %w", err))
	}

	if attempt == nil && def.IsParticipated {
		attempt = s.findFinishedAttempt(ctx)
	}

	var detail *model.AttemptDetail
	if attempt != nil && attempt.Status.Finished() {
		detail, err = s.api.GetAttemptDetail(ctx, attempt.ID)
		if err != nil {
			return s.failLoad(fmt.Errorf("get attempt detail: %w", err))
		}
	}

	s.mu.Lock()
	s.pending = ""
	needResume, expired := false, false

	switch {
	case attempt == nil || attempt.Status == model.AttemptStatusNotStarted:
		s.state = StateNotStarted
		s.remaining = def.DurationMinutes * 60

	case attempt.Status.Finished():
		s.attemptID = attempt.ID
		s.state = StateGraded
		s.remaining = 0
		s.result = Render(detail)
		s.clearDraftLocked(ctx)

	case attempt.Status == model.AttemptStatusInProgress:
		s.attemptID = attempt.ID
		s.remaining = RemainingSeconds(def.DurationMinutes, attempt, s.clock.Now())
		expired = s.runOrExpireLocked(ctx)

	case attempt.Status == model.AttemptStatusPaused:
		s.attemptID = attempt.ID
		s.remaining = RemainingSeconds(def.DurationMinutes, attempt, s.clock.Now())
		s.state = StatePaused
		needResume = true
	}

	s.log.Info().
		Str("state", string(s.state)).
		Int("time_remaining", s.remaining).
		Bool("draft_restored", draft != nil).
		Msg("Exam session loaded")
	s.publishLocked(EventSnapshot, nil)
	s.mu.Unlock()

	if needResume {
		if err := s.Resume(ctx); err != nil {
			s.log.Warn().Err(err).Msg("Auto-resume of paused attempt failed")
		}
	}
	if expired {
		if _, err := s.Submit(ctx); err != nil {
			s.log.Error().Err(err).Msg("Submit of expired attempt failed")
		}
	}

	return nil
}

// Start begins the attempt on the server and starts the countdown.
func (s *ExamSession) Start(ctx context.Context) error {
	if err := s.begin(opStart, StateNotStarted); err != nil {
		return err
	}

	if err := s.api.StartAttempt(ctx, s.examID); err != nil {
		s.end(err)
		return fmt.Errorf("start attempt: %w", err)
	}

	attempt, fetchErr := s.api.GetAttempt(ctx, s.examID)

	s.mu.Lock()
	s.pending = ""
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if fetchErr != nil {
		s.log.Warn().Err(fetchErr).Msg("Attempt fetch after start failed, using full duration")
		s.remaining = s.def.DurationMinutes * 60
	} else {
		s.attemptID = attempt.ID
		s.remaining = RemainingSeconds(s.def.DurationMinutes, attempt, s.clock.Now())
	}
	expired := s.runOrExpireLocked(ctx)
	s.log.Info().Int("time_remaining", s.remaining).Msg("Exam started")
	s.mu.Unlock()

	if expired {
		_, err := s.Submit(ctx)
		return err
	}
	return nil
}

// Pause stops the countdown immediately, then asks the server to pause.
// The local stop stands even when the server call fails.
func (s *ExamSession) Pause(ctx context.Context) error {
	s.mu.Lock()
	if err := s.checkLocked(StateInProgress); err != nil {
		s.mu.Unlock()
		return err
	}
	s.pending = opPause
	s.stopTimerLocked()
	s.mu.Unlock()

	err := s.api.PauseAttempt(ctx, s.examID)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = ""
	if err != nil {
		s.publishLocked(EventError, err)
		return fmt.Errorf("pause attempt: %w", err)
	}
	if s.closed {
		return nil
	}
	s.state = StatePaused
	s.saveDraftLocked(ctx)
	s.publishLocked(EventState, nil)
	return nil
}

// Resume restarts the countdown from the currently held remaining time.
func (s *ExamSession) Resume(ctx context.Context) error {
	if err := s.begin(opResume, StatePaused); err != nil {
		return err
	}

	if err := s.api.ResumeAttempt(ctx, s.examID); err != nil {
		s.end(err)
		return fmt.Errorf("resume attempt: %w", err)
	}

	s.mu.Lock()
	s.pending = ""
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	expired := s.runOrExpireLocked(ctx)
	s.mu.Unlock()

	if expired {
		_, err := s.Submit(ctx)
		return err
	}
	return nil
}

// Sync re-fetches the attempt and recomputes the remaining time from the
// server's bookkeeping. An expiry submit or a suspend arriving while the fetch
// is outstanding takes over, and the fetched attempt is then discarded.
func (s *ExamSession) Sync(ctx context.Context) error {
	if err := s.begin(opSync, StateInProgress, StatePaused); err != nil {
		return err
	}
	s.mu.Lock()
	s.syncGen++
	gen := s.syncGen
	s.mu.Unlock()

	attempt, err := s.api.GetAttempt(ctx, s.examID)

	s.mu.Lock()
	superseded := s.pending != opSync || s.syncGen != gen
	if !superseded {
		s.pending = ""
	}
	if err != nil {
		s.publishLocked(EventError, err)
		s.mu.Unlock()
		return fmt.Errorf("get attempt: %w", err)
	}
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	// Superseded, or the countdown hit zero and the expiry submit owns the session.
	if superseded || s.state == StateExpired {
		s.mu.Unlock()
		return nil
	}
	s.attemptID = attempt.ID
	s.remaining = RemainingSeconds(s.def.DurationMinutes, attempt, s.clock.Now())

	expired, finished := false, false
	switch attempt.Status {
	case model.AttemptStatusInProgress:
		expired = s.runOrExpireLocked(ctx)
	case model.AttemptStatusPaused:
		s.stopTimerLocked()
		s.state = StatePaused
		s.saveDraftLocked(ctx)
		s.publishLocked(EventState, nil)
	default:
		if attempt.Status.Finished() {
			s.stopTimerLocked()
			s.state = StateSubmitted
			s.clearDraftLocked(ctx)
			finished = true
		}
	}
	attemptID := s.attemptID
	s.mu.Unlock()

	switch {
	case expired:
		_, err = s.Submit(ctx)
	case finished:
		_, err = s.fetchResult(ctx, attemptID)
	}
	return err
}

// Suspend reacts to the environment going away (page unload, dropped stream,
// idle eviction, shutdown). A running attempt is saved as paused locally and
// a server pause is requested on a best-effort basis. An outstanding Sync is
// superseded; any other outstanding action yields ErrOperationPending.
func (s *ExamSession) Suspend(ctx context.Context) error {
	s.mu.Lock()
	if s.closed || s.state != StateInProgress || s.remaining <= 0 {
		s.mu.Unlock()
		return nil
	}
	if s.pending != "" && s.pending != opSync {
		s.mu.Unlock()
		return ErrOperationPending
	}
	s.pending = opPause
	s.stopTimerLocked()
	s.writeDraftLocked(ctx, model.ProgressPaused)
	s.mu.Unlock()

	err := s.api.PauseAttempt(ctx, s.examID)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = ""
	if err != nil {
		s.log.Warn().Err(err).Msg("Pause on suspend failed")
		return fmt.Errorf("pause attempt: %w", err)
	}
	if !s.closed {
		s.state = StatePaused
		s.publishLocked(EventState, nil)
	}
	s.log.Info().Int("time_remaining", s.remaining).Msg("Exam suspended")
	return nil
}

// Submit sends the full answer set for grading. It is idempotent: concurrent
// callers share one submission and later callers get the graded result.
func (s *ExamSession) Submit(ctx context.Context) (*model.Result, error) {
	v, err, _ := s.flight.Do(opSubmit, func() (interface{}, error) {
		return s.submit(ctx)
	})
	if err != nil {
		return nil, err
	}
	res, _ := v.(*model.Result)
	return res, nil
}

func (s *ExamSession) submit(ctx context.Context) (*model.Result, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	switch s.state {
	case StateGraded:
		res := s.result
		s.mu.Unlock()
		return res, nil
	case StateSubmitted:
		attemptID := s.attemptID
		s.mu.Unlock()
		return s.fetchResult(ctx, attemptID)
	case StateInProgress, StatePaused, StateExpired:
	default:
		s.mu.Unlock()
		return nil, ErrInvalidTransition
	}
	// Expiry outranks an outstanding Sync.
	if s.pending != "" && !(s.state == StateExpired && s.pending == opSync) {
		s.mu.Unlock()
		return nil, ErrOperationPending
	}
	s.pending = opSubmit
	prev := s.state
	s.stopTimerLocked()
	answers := s.answers.Answers()
	s.mu.Unlock()

	receipt, err := s.api.SubmitAttempt(ctx, s.examID, answers)
	if err != nil {
		s.mu.Lock()
		s.pending = ""
		if prev == StateInProgress && !s.closed && s.remaining > 0 {
			s.startTimerLocked()
		}
		s.publishLocked(EventError, err)
		s.mu.Unlock()
		s.log.Error().Err(err).Str("state", string(prev)).Msg("Submit failed, answers kept")
		return nil, fmt.Errorf("submit attempt: %w", err)
	}

	s.mu.Lock()
	s.pending = ""
	s.state = StateSubmitted
	if receipt != nil && receipt.AttemptID != "" {
		s.attemptID = receipt.AttemptID
	}
	attemptID := s.attemptID
	s.clearDraftLocked(ctx)
	s.publishLocked(EventState, nil)
	s.mu.Unlock()

	s.log.Info().Str("attempt_id", attemptID).Int("answered", countAnswered(answers)).Msg("Exam submitted")

	return s.fetchResult(ctx, attemptID)
}

func (s *ExamSession) fetchResult(ctx context.Context, attemptID string) (*model.Result, error) {
	detail, err := s.api.GetAttemptDetail(ctx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("get attempt detail: %w", err)
	}
	res := Render(detail)

	s.mu.Lock()
	// A concurrent Sync and Submit may both fetch the detail; only the first
	// one to land grades the session.
	if s.result != nil {
		res = s.result
		s.mu.Unlock()
		return res, nil
	}
	s.state = StateGraded
	s.result = res
	s.publishLocked(EventGraded, nil)
	s.mu.Unlock()

	if s.onGraded != nil {
		s.onGraded(res)
	}
	return res, nil
}

// SetAnswer records an answer and writes it through to the draft.
func (s *ExamSession) SetAnswer(ctx context.Context, questionID, answer string) error {
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
	s.saveAnswersLocked(ctx)
	return nil
}

// ToggleOption adds or removes a multiple-choice option key.
func (s *ExamSession) ToggleOption(ctx context.Context, questionID, option string, included bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editableLocked(); err != nil {
		return err
	}
	if err := s.answers.ToggleOption(questionID, option, included); err != nil {
		return err
	}
	s.saveAnswersLocked(ctx)
	return nil
}

// Navigate moves to the question at index.
func (s *ExamSession) Navigate(ctx context.Context, index int) error {
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

// Snapshot returns the current view of the session.
func (s *ExamSession) Snapshot() ExamSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := ExamSnapshot{
		ExamID:               s.examID,
		AttemptID:            s.attemptID,
		State:                s.state,
		TimeRemaining:        s.remaining,
		CurrentQuestionIndex: s.current,
		Pending:              s.pending,
		Result:               s.result,
		Answers:              []model.UserAnswer{},
	}
	if s.def != nil {
		snap.DurationMinutes = s.def.DurationMinutes
	}
	if s.answers != nil {
		snap.Answers = s.answers.Answers()
		snap.Answered = s.answers.CountAnswered()
		snap.Total = s.answers.Len()
	}
	return snap
}

// Definition returns the loaded exam definition, or nil before Load.
func (s *ExamSession) Definition() *model.ExamDefinition {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.def
}

// State returns the current state.
func (s *ExamSession) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Result returns the rendered result once graded.
func (s *ExamSession) Result() *model.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Subscribe registers for session events. The returned func unsubscribes.
func (s *ExamSession) Subscribe() (<-chan Event, func()) {
	return s.events.subscribe()
}

// Subscribers returns the number of live subscriptions.
func (s *ExamSession) Subscribers() int {
	return s.events.count()
}

// Close tears the session down: the ticker is cancelled and subscriptions
// are closed. No server calls are made.
func (s *ExamSession) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.stopTimerLocked()
	s.mu.Unlock()

	s.events.close()
}

// ─── Countdown ──────────────────────────────────────────────────────────────

func (s *ExamSession) startTimerLocked() {
	if s.timerCancel != nil || s.closed {
		return
	}
	s.timerGen++
	gen := s.timerGen

	ctx, cancel := context.WithCancel(context.Background())
	s.timerCancel = cancel
	ticker := s.clock.NewTicker(time.Second)

	go s.runTimer(ctx, ticker, gen)
}

func (s *ExamSession) stopTimerLocked() {
	if s.timerCancel == nil {
		return
	}
	s.timerCancel()
	s.timerCancel = nil
	s.timerGen++
}

func (s *ExamSession) runTimer(ctx context.Context, ticker clockwork.Ticker, gen uint64) {
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			expired, stop := s.tick(gen)
			if expired {
				s.autoSubmit()
			}
			if stop {
				return
			}
		}
	}
}

// tick reports whether the countdown reached zero and whether the loop should end.
func (s *ExamSession) tick(gen uint64) (expired, stop bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// A stale generation means the timer was cancelled after this tick fired.
	if gen != s.timerGen || s.closed || s.state != StateInProgress {
		return false, true
	}

	if s.remaining > 0 {
		s.remaining--
	}

	ctx, cancel := context.WithTimeout(context.Background(), draftWriteTimeout)
	defer cancel()

	if s.remaining > 0 {
		s.saveDraftLocked(ctx)
		s.publishLocked(EventTick, nil)
		return false, false
	}

	s.stopTimerLocked()
	s.state = StateExpired
	s.saveDraftLocked(ctx)
	s.publishLocked(EventState, nil)
	s.log.Info().Msg("Time is up, submitting")
	return true, true
}

func (s *ExamSession) autoSubmit() {
	ctx, cancel := context.WithTimeout(context.Background(), s.submitTimeout)
	defer cancel()

	if _, err := s.Submit(ctx); err != nil {
		s.log.Error().Err(err).Msg("Auto-submit on expiry failed")
	}
}

// runOrExpireLocked enters in_progress with a running ticker, or expired when
// no time is left. It reports whether the caller must submit.
func (s *ExamSession) runOrExpireLocked(ctx context.Context) bool {
	if s.remaining <= 0 {
		s.remaining = 0
		s.stopTimerLocked()
		s.state = StateExpired
		s.publishLocked(EventState, nil)
		return true
	}
	s.state = StateInProgress
	s.startTimerLocked()
	s.saveDraftLocked(ctx)
	s.publishLocked(EventState, nil)
	return false
}

// ─── Guards ─────────────────────────────────────────────────────────────────

func (s *ExamSession) checkLocked(allowed ...State) error {
	if s.closed {
		return ErrClosed
	}
	if s.def == nil {
		return ErrInvalidTransition
	}
	if s.pending != "" {
		return ErrOperationPending
	}
	for _, st := range allowed {
		if s.state == st {
			return nil
		}
	}
	return ErrInvalidTransition
}

func (s *ExamSession) begin(op string, allowed ...State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(allowed...); err != nil {
		return err
	}
	s.pending = op
	return nil
}

func (s *ExamSession) end(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = ""
	if err != nil {
		s.publishLocked(EventError, err)
	}
}

func (s *ExamSession) editableLocked() error {
	if s.closed {
		return ErrClosed
	}
	if s.def == nil || s.state != StateInProgress {
		return ErrInvalidTransition
	}
	if s.pending == opSubmit {
		return ErrOperationPending
	}
	return nil
}

func (s *ExamSession) failLoad(err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.def = nil
	s.answers = nil
	s.current = 0
	s.pending = ""
	s.log.Error().Err(err).Msg("Exam session load failed")
	return err
}

// findFinishedAttempt looks for an already finished attempt of this exam when
// the direct fetch found none.
func (s *ExamSession) findFinishedAttempt(ctx context.Context) *model.Attempt {
	attempts, err := s.api.ListMyAttempts(ctx, model.KindExam)
	if err != nil {
		s.log.Warn().Err(err).Msg("List attempts failed, treating exam as not started")
		return nil
	}
	var found *model.Attempt
	for i := range attempts {
		a := &attempts[i]
		if a.AssessmentID != s.examID || !a.Status.Finished() {
			continue
		}
		if found == nil || laterSubmit(a, found) {
			found = a
		}
	}
	return found
}

// ─── Draft persistence ──────────────────────────────────────────────────────

func (s *ExamSession) loadDraft(ctx context.Context) *model.LocalProgress {
	if s.drafts == nil {
		return nil
	}
	p, err := s.drafts.Load(ctx, s.draftKey)
	if err != nil {
		s.log.Warn().Err(err).Msg("Draft load failed, ignoring draft")
		return nil
	}
	return p
}

func (s *ExamSession) saveDraftLocked(ctx context.Context) {
	status := model.ProgressInProgress
	if s.state == StatePaused {
		status = model.ProgressPaused
	}
	s.writeDraftLocked(ctx, status)
}

func (s *ExamSession) writeDraftLocked(ctx context.Context, status model.ProgressStatus) {
	if s.drafts == nil || s.answers == nil {
		return
	}
	p := model.LocalProgress{
		Status:               status,
		TimeRemaining:        s.remaining,
		Answers:              s.answers.Answers(),
		CurrentQuestionIndex: s.current,
	}
	if err := s.drafts.Save(ctx, s.draftKey, p); err != nil {
		s.log.Warn().Err(err).Msg("Draft save failed")
	}
}

func (s *ExamSession) saveAnswersLocked(ctx context.Context) {
	if s.drafts == nil {
		return
	}
	if err := s.drafts.SaveAnswers(ctx, s.draftKey, s.answers.Answers()); err != nil {
		s.log.Warn().Err(err).Msg("Draft answers save failed")
	}
}

func (s *ExamSession) clearDraftLocked(ctx context.Context) {
	if s.drafts == nil {
		return
	}
	if err := s.drafts.Clear(ctx, s.draftKey); err != nil {
		s.log.Warn().Err(err).Msg("Draft clear failed")
	}
}

func (s *ExamSession) publishLocked(t EventType, err error) {
	e := Event{Type: t, State: s.state, TimeRemaining: s.remaining}
	if t == EventGraded || t == EventSnapshot {
		e.Result = s.result
	}
	if err != nil {
		e.Error = err.Error()
	}
	s.events.publish(e)
}

// ─── Helpers ────────────────────────────────────────────────────────────────

func clampIndex(i, n int) int {
	if n == 0 || i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

func countAnswered(answers []model.UserAnswer) int {
	set := &AnswerSet{answers: make(map[string]string, len(answers))}
	for _, a := range answers {
		set.answers[a.QuestionID] = a.Answer
	}
	return set.CountAnswered()
}

func laterSubmit(a, b *model.Attempt) bool {
	switch {
	case a.SubmitTime == nil:
		return false
	case b.SubmitTime == nil:
		return true
	default:
		return a.SubmitTime.After(*b.SubmitTime)
	}
}
