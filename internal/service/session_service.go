package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-gateway/internal/config"
	"github.com/stemsi/exstem-gateway/internal/model"
	"github.com/stemsi/exstem-gateway/internal/session"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Session kinds used in registry keys.
const (
	KindExam     = "exam"
	KindPractice = "practice"
	KindRetry    = "retry"
)

const (
	suspendTimeout      = 5 * time.Second
	recordTimeout       = 3 * time.Second
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// Manager errors.
var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrFeatureUnavailable = errors.New("feature is not configured")
)

// UpstreamCaller is a student-bound API client whose token can be refreshed.
type UpstreamCaller interface {
	session.API
	SetToken(token string)
}

// CallerFactory binds a new upstream caller to a student's token.
type CallerFactory func(token string) UpstreamCaller

// ResultWriter records a graded result in the student's history.
type ResultWriter interface {
	Insert(ctx context.Context, h *model.ResultHistory) error
}

// HistoryReader lists recorded results.
type HistoryReader interface {
	ListByStudent(ctx context.Context, studentID int, limit int) ([]model.ResultHistory, error)
}

// SessionManagerConfig wires a SessionManager.
type SessionManagerConfig struct {
	NewCaller     CallerFactory
	Drafts        session.Drafts
	Results       ResultWriter  // optional
	History       HistoryReader // optional
	Clock         clockwork.Clock
	Log           zerolog.Logger
	SubmitTimeout time.Duration
	IdleTimeout   time.Duration
}

type entry struct {
	key        string
	studentID  int
	caller     UpstreamCaller
	exam       *session.ExamSession
	practice   *session.PracticeSession
	retry      *session.RetrySession
	lastActive time.Time
}

func (e *entry) subscribers() int {
	if e.exam != nil {
		return e.exam.Subscribers()
	}
	return 0
}

func (e *entry) close() {
	switch {
	case e.exam != nil:
		e.exam.Close()
	case e.practice != nil:
		e.practice.Close()
	case e.retry != nil:
		e.retry.Close()
	}
}

// SessionManager owns the live sessions of every connected student. Sessions
// are mounted lazily on first access and evicted when idle.
type SessionManager struct {
	newCaller     CallerFactory
	drafts        session.Drafts
	results       ResultWriter
	history       HistoryReader
	clock         clockwork.Clock
	log           zerolog.Logger
	submitTimeout time.Duration
	idle          time.Duration

	mu       sync.Mutex
	sessions map[string]*entry
	mounts   singleflight.Group
	cron     *cron.Cron
}

// NewSessionManager creates a SessionManager.
func NewSessionManager(cfg SessionManagerConfig) *SessionManager {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &SessionManager{
		newCaller:     cfg.NewCaller,
		drafts:        cfg.Drafts,
		results:       cfg.Results,
		history:       cfg.History,
		clock:         clock,
		log:           cfg.Log.With().Str("component", "session_manager").Logger(),
		submitTimeout: cfg.SubmitTimeout,
		idle:          cfg.IdleTimeout,
		sessions:      make(map[string]*entry),
	}
}

// Exam returns the student's live exam session, mounting and loading it on
// first access.
func (m *SessionManager) Exam(ctx context.Context, studentID int, token, examID string) (*session.ExamSession, error) {
	key := config.CacheKey.SessionKey(studentID, KindExam, examID)
	e, err := m.mount(key, studentID, token, func(caller UpstreamCaller) (*entry, error) {
		s := session.NewExamSession(session.ExamConfig{
			ExamID:        examID,
			DraftKey:      config.CacheKey.DraftKey(studentID, model.KindExam, examID),
			API:           caller,
			Drafts:        m.drafts,
			Clock:         m.clock,
			Log:           m.log.With().Int("student_id", studentID).Logger(),
			SubmitTimeout: m.submitTimeout,
			OnGraded:      m.recorder(studentID),
		})
		if err := s.Load(ctx); err != nil {
			s.Close()
			return nil, err
		}
		return &entry{exam: s}, nil
	})
	if err != nil {
		return nil, err
	}
	return e.exam, nil
}

// Practice returns the student's live practice session.
func (m *SessionManager) Practice(ctx context.Context, studentID int, token, exerciseID string) (*session.PracticeSession, error) {
	key := config.CacheKey.SessionKey(studentID, KindPractice, exerciseID)
	e, err := m.mount(key, studentID, token, func(caller UpstreamCaller) (*entry, error) {
		s := session.NewPracticeSession(session.PracticeConfig{
			ExerciseID: exerciseID,
			DraftKey:   config.CacheKey.DraftKey(studentID, model.KindExercise, exerciseID),
			API:        caller,
			Drafts:     m.drafts,
			Log:        m.log.With().Int("student_id", studentID).Logger(),
			OnGraded:   m.recorder(studentID),
		})
		if err := s.Load(ctx); err != nil {
			s.Close()
			return nil, err
		}
		return &entry{practice: s}, nil
	})
	if err != nil {
		return nil, err
	}
	return e.practice, nil
}

// Retry returns the student's retry session over a graded attempt.
func (m *SessionManager) Retry(ctx context.Context, studentID int, token, attemptID string) (*session.RetrySession, error) {
	key := config.CacheKey.SessionKey(studentID, KindRetry, attemptID)
	e, err := m.mount(key, studentID, token, func(caller UpstreamCaller) (*entry, error) {
		detail, err := caller.GetAttemptDetail(ctx, attemptID)
		if err != nil {
			return nil, fmt.Errorf("get attempt detail: %w", err)
		}
		if detail == nil {
			return nil, session.ErrAttemptNotFound
		}
		s := session.NewRetrySession(session.RetryConfig{
			DraftKey: config.CacheKey.RetryDraftKey(studentID, attemptID),
			API:      caller,
			Drafts:   m.drafts,
			Log:      m.log.With().Int("student_id", studentID).Logger(),
			OnGraded: m.recorder(studentID),
		}, detail)
		s.RestoreDraft(ctx)
		return &entry{retry: s}, nil
	})
	if err != nil {
		return nil, err
	}
	return e.retry, nil
}

// Teardown removes a live session. A running exam is suspended first.
func (m *SessionManager) Teardown(ctx context.Context, studentID int, kind, id string) error {
	key := config.CacheKey.SessionKey(studentID, kind, id)

	m.mu.Lock()
	e, ok := m.sessions[key]
	if ok {
		delete(m.sessions, key)
	}
	m.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	m.evict(ctx, e)
	return nil
}

// Len returns the number of live sessions.
func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// History lists the student's recorded results, most recent first.
func (m *SessionManager) History(ctx context.Context, studentID, limit int) ([]model.ResultHistory, error) {
	if m.history == nil {
		return nil, ErrFeatureUnavailable
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	rows, err := m.history.ListByStudent(ctx, studentID, limit)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	if rows == nil {
		rows = []model.ResultHistory{}
	}
	return rows, nil
}

// StartSweeper schedules idle-session eviction.
func (m *SessionManager) StartSweeper(schedule string) error {
	c := cron.New()
	if _, err := c.AddFunc(schedule, m.Sweep); err != nil {
		return fmt.Errorf("schedule sweeper: %w", err)
	}
	m.mu.Lock()
	m.cron = c
	m.mu.Unlock()

	c.Start()
	m.log.Info().Str("schedule", schedule).Dur("idle", m.idle).Msg("Session sweeper started")
	return nil
}

// Sweep evicts sessions idle longer than the idle timeout that have no
// stream subscribers.
func (m *SessionManager) Sweep() {
	if m.idle <= 0 {
		return
	}
	now := m.clock.Now()

	m.mu.Lock()
	var stale []*entry
	for key, e := range m.sessions {
		if now.Sub(e.lastActive) < m.idle || e.subscribers() > 0 {
			continue
		}
		delete(m.sessions, key)
		stale = append(stale, e)
	}
	m.mu.Unlock()

	if len(stale) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), suspendTimeout)
	defer cancel()
	for _, e := range stale {
		m.evict(ctx, e)
	}
	m.log.Info().Int("evicted", len(stale)).Msg("Idle sessions swept")
}

// SuspendAll suspends every running exam concurrently and closes all
// sessions. Called on shutdown.
func (m *SessionManager) SuspendAll(ctx context.Context) error {
	m.mu.Lock()
	if m.cron != nil {
		m.cron.Stop()
		m.cron = nil
	}
	all := make([]*entry, 0, len(m.sessions))
	for key, e := range m.sessions {
		all = append(all, e)
		delete(m.sessions, key)
	}
	m.mu.Unlock()

	// One failed pause must not cancel the others.
	var g errgroup.Group
	for _, e := range all {
		if e.exam == nil || e.exam.State() != session.StateInProgress {
			continue
		}
		g.Go(func() error {
			if err := e.exam.Suspend(ctx); err != nil {
				return fmt.Errorf("suspend %s: %w", e.key, err)
			}
			return nil
		})
	}
	err := g.Wait()

	for _, e := range all {
		e.close()
	}
	m.log.Info().Int("sessions", len(all)).Msg("All sessions suspended")
	return err
}

// mount returns the live entry at key or builds one. Concurrent first
// accesses share a single build.
func (m *SessionManager) mount(key string, studentID int, token string, build func(UpstreamCaller) (*entry, error)) (*entry, error) {
	if e := m.lookup(key, token); e != nil {
		return e, nil
	}

	v, err, _ := m.mounts.Do(key, func() (interface{}, error) {
		if e := m.lookup(key, token); e != nil {
			return e, nil
		}
		caller := m.newCaller(token)
		e, err := build(caller)
		if err != nil {
			return nil, err
		}
		e.key = key
		e.studentID = studentID
		e.caller = caller
		e.lastActive = m.clock.Now()

		m.mu.Lock()
		m.sessions[key] = e
		m.mu.Unlock()

		m.log.Debug().Str("key", key).Msg("Session mounted")
		return e, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*entry), nil
}

func (m *SessionManager) lookup(key, token string) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[key]
	if !ok {
		return nil
	}
	e.lastActive = m.clock.Now()
	if token != "" {
		e.caller.SetToken(token)
	}
	return e
}

func (m *SessionManager) evict(ctx context.Context, e *entry) {
	if e.exam != nil && e.exam.State() == session.StateInProgress {
		if err := e.exam.Suspend(ctx); err != nil {
			m.log.Warn().Err(err).Str("key", e.key).Msg("Suspend before eviction failed")
		}
	}
	e.close()
}

// recorder returns the OnGraded hook writing a history row for studentID.
func (m *SessionManager) recorder(studentID int) func(*model.Result) {
	if m.results == nil {
		return nil
	}
	return func(r *model.Result) {
		if r == nil {
			return
		}
		h := &model.ResultHistory{
			StudentID:    studentID,
			AttemptID:    r.AttemptID,
			AssessmentID: r.AssessmentID,
			Kind:         r.Kind,
			Title:        r.Title,
			Score:        r.Score,
			Passed:       r.Passed,
			Accuracy:     r.Accuracy,
			RecordedAt:   m.clock.Now(),
		}
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		if err := m.results.Insert(ctx, h); err != nil {
			m.log.Error().Err(err).Int("student_id", studentID).Str("attempt_id", r.AttemptID).Msg("Failed to record result")
		}
	}
}
