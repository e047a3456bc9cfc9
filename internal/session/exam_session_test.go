package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-gateway/internal/model"
)

const testDraftKey = "draft:student:1:exam:exam-1"

// fakeClock is the part of clockwork's fake clock the tests drive.
type fakeClock interface {
	clockwork.Clock
	Advance(d time.Duration)
	BlockUntil(n int)
}

type examFixture struct {
	session *ExamSession
	api     *fakeAPI
	drafts  *memDrafts
	clock   fakeClock
	events  <-chan Event
	graded  *gradedRecorder
}

type gradedRecorder struct {
	mu      sync.Mutex
	results []*model.Result
}

func (g *gradedRecorder) record(r *model.Result) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.results = append(g.results, r)
}

func (g *gradedRecorder) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.results)
}

func newExamFixture(t *testing.T, durationMinutes int) *examFixture {
	t.Helper()
	fc := clockwork.NewFakeClockAt(time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC))
	api := newFakeAPI(fc)
	api.exam = sampleExam(durationMinutes)
	drafts := newMemDrafts()
	graded := &gradedRecorder{}

	s := NewExamSession(ExamConfig{
		ExamID:   "exam-1",
		DraftKey: testDraftKey,
		API:      api,
		Drafts:   drafts,
		Clock:    fc,
		Log:      zerolog.Nop(),
		OnGraded: graded.record,
	})
	events, unsubscribe := s.Subscribe()
	t.Cleanup(func() {
		unsubscribe()
		s.Close()
	})

	return &examFixture{session: s, api: api, drafts: drafts, clock: fc, events: events, graded: graded}
}

// advance moves the fake clock one second and waits for the resulting tick.
func (f *examFixture) advance(t *testing.T) Event {
	t.Helper()
	f.clock.BlockUntil(1)
	f.clock.Advance(time.Second)
	return waitEvent(t, f.events, func(e Event) bool {
		return e.Type == EventTick || e.State == StateExpired
	})
}

func TestExamStartRunsCountdown(t *testing.T) {
	f := newExamFixture(t, 1)
	ctx := context.Background()

	if err := f.session.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if st := f.session.State(); st != StateNotStarted {
		t.Fatalf("state after Load = %s, want not_started", st)
	}
	if err := f.session.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if snap := f.session.Snapshot(); snap.State != StateInProgress || snap.TimeRemaining != 60 {
		t.Fatalf("after Start: state=%s remaining=%d, want in_progress/60", snap.State, snap.TimeRemaining)
	}

	for want := 59; want >= 57; want-- {
		e := f.advance(t)
		if e.TimeRemaining != want {
			t.Fatalf("tick remaining = %d, want %d", e.TimeRemaining, want)
		}
	}

	draft, ok := f.drafts.get(testDraftKey)
	if !ok || draft.TimeRemaining != 57 || draft.Status != model.ProgressInProgress {
		t.Errorf("draft = %+v (present=%v), want in_progress with 57s", draft, ok)
	}
}

func TestExamStartTwiceRejected(t *testing.T) {
	f := newExamFixture(t, 1)
	ctx := context.Background()
	_ = f.session.Load(ctx)
	_ = f.session.Start(ctx)

	if err := f.session.Start(ctx); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("second Start err = %v, want ErrInvalidTransition", err)
	}
	if n := f.api.count("start"); n != 1 {
		t.Errorf("StartAttempt called %d times, want 1", n)
	}
}

func TestExamStartFailureStaysNotStarted(t *testing.T) {
	f := newExamFixture(t, 1)
	f.api.startErr = errUpstream
	ctx := context.Background()
	_ = f.session.Load(ctx)

	if err := f.session.Start(ctx); !errors.Is(err, errUpstream) {
		t.Fatalf("Start err = %v, want upstream error", err)
	}
	if st := f.session.State(); st != StateNotStarted {
		t.Errorf("state = %s, want not_started", st)
	}
}

func TestExamExpiryAutoSubmitsOnce(t *testing.T) {
	f := newExamFixture(t, 1)
	now := f.clock.Now()
	f.api.attempt = &model.Attempt{
		ID:                  "att-7",
		AssessmentID:        "exam-1",
		Status:              model.AttemptStatusInProgress,
		TotalElapsedSeconds: 57,
		LastResumeTime:      &now,
	}
	ctx := context.Background()

	if err := f.session.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := f.session.Snapshot().TimeRemaining; got != 3 {
		t.Fatalf("remaining after Load = %d, want 3", got)
	}

	f.advance(t)
	f.advance(t)
	e := f.advance(t)
	if e.State != StateExpired || e.TimeRemaining != 0 {
		t.Fatalf("final tick = %+v, want expired at 0", e)
	}

	waitEvent(t, f.events, func(e Event) bool { return e.Type == EventGraded })

	// A late manual press after the automatic submission is a no-op.
	res, err := f.session.Submit(ctx)
	if err != nil {
		t.Fatalf("late Submit: %v", err)
	}
	if res == nil || res.AttemptID != "att-7" {
		t.Fatalf("late Submit result = %+v", res)
	}
	if n := f.api.count("submit"); n != 1 {
		t.Errorf("SubmitAttempt called %d times, want 1", n)
	}
	if n := f.graded.count(); n != 1 {
		t.Errorf("OnGraded called %d times, want 1", n)
	}
	if _, ok := f.drafts.get(testDraftKey); ok {
		t.Error("draft should be cleared after submission")
	}
}

func TestExamConcurrentSubmitSharesOneFlight(t *testing.T) {
	f := newExamFixture(t, 30)
	ctx := context.Background()
	_ = f.session.Load(ctx)
	_ = f.session.Start(ctx)

	gate := make(chan struct{})
	f.api.mu.Lock()
	f.api.submitGate = gate
	f.api.mu.Unlock()

	var wg sync.WaitGroup
	results := make([]*model.Result, 3)
	errs := make([]error, 3)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.session.Submit(ctx)
		}(i)
	}

	eventually(t, func() bool { return f.api.count("submit") == 1 })
	close(gate)
	wg.Wait()

	for i := range results {
		if errs[i] != nil {
			t.Fatalf("Submit[%d]: %v", i, errs[i])
		}
		if results[i] == nil || results[i].AttemptID != results[0].AttemptID {
			t.Errorf("Submit[%d] result = %+v", i, results[i])
		}
	}
	if n := f.api.count("submit"); n != 1 {
		t.Errorf("SubmitAttempt called %d times, want 1", n)
	}
	if st := f.session.State(); st != StateGraded {
		t.Errorf("state = %s, want graded", st)
	}
}

func TestExamSubmitFailureRestoresState(t *testing.T) {
	f := newExamFixture(t, 1)
	ctx := context.Background()
	_ = f.session.Load(ctx)
	_ = f.session.Start(ctx)
	_ = f.session.SetAnswer(ctx, "q3", "hydrogen")

	f.api.submitErr = errUpstream
	if _, err := f.session.Submit(ctx); !errors.Is(err, errUpstream) {
		t.Fatalf("Submit err = %v, want upstream error", err)
	}

	snap := f.session.Snapshot()
	if snap.State != StateInProgress || snap.Answered != 1 {
		t.Fatalf("after failed submit: state=%s answered=%d, want in_progress/1", snap.State, snap.Answered)
	}
	draft, ok := f.drafts.get(testDraftKey)
	if !ok || len(draft.Answers) != 3 || draft.Answers[2].Answer != "hydrogen" {
		t.Errorf("draft not intact after failed submit: %+v", draft)
	}

	// The countdown resumes.
	if e := f.advance(t); e.TimeRemaining != 59 {
		t.Errorf("tick after failed submit = %d, want 59", e.TimeRemaining)
	}
}

func TestExamDetailFailureRetriesOnlyDetail(t *testing.T) {
	f := newExamFixture(t, 1)
	ctx := context.Background()
	_ = f.session.Load(ctx)
	_ = f.session.Start(ctx)

	f.api.mu.Lock()
	f.api.detailErr = errUpstream
	f.api.mu.Unlock()

	if _, err := f.session.Submit(ctx); err == nil {
		t.Fatal("Submit should surface the detail failure")
	}
	if st := f.session.State(); st != StateSubmitted {
		t.Fatalf("state = %s, want submitted", st)
	}

	f.api.mu.Lock()
	f.api.detailErr = nil
	f.api.mu.Unlock()

	res, err := f.session.Submit(ctx)
	if err != nil || res == nil {
		t.Fatalf("retry Submit: res=%v err=%v", res, err)
	}
	if n := f.api.count("submit"); n != 1 {
		t.Errorf("SubmitAttempt called %d times, want 1", n)
	}
	if n := f.api.count("detail"); n != 2 {
		t.Errorf("GetAttemptDetail called %d times, want 2", n)
	}
}

func TestExamPauseCancelsTicker(t *testing.T) {
	f := newExamFixture(t, 1)
	ctx := context.Background()
	_ = f.session.Load(ctx)
	_ = f.session.Start(ctx)
	f.advance(t)

	if err := f.session.Pause(ctx); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	f.clock.BlockUntil(0)
	f.clock.Advance(10 * time.Second)

	snap := f.session.Snapshot()
	if snap.State != StatePaused || snap.TimeRemaining != 59 {
		t.Fatalf("after Pause: state=%s remaining=%d, want paused/59", snap.State, snap.TimeRemaining)
	}
	draft, _ := f.drafts.get(testDraftKey)
	if draft.Status != model.ProgressPaused || draft.TimeRemaining != 59 {
		t.Errorf("draft = %+v, want paused with 59s", draft)
	}

	if err := f.session.SetAnswer(ctx, "q1", "A"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("SetAnswer while paused err = %v, want ErrInvalidTransition", err)
	}

	if err := f.session.Resume(ctx); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if e := f.advance(t); e.TimeRemaining != 58 {
		t.Errorf("tick after Resume = %d, want 58", e.TimeRemaining)
	}
}

func TestExamPauseFailureKeepsTickerStopped(t *testing.T) {
	f := newExamFixture(t, 1)
	ctx := context.Background()
	_ = f.session.Load(ctx)
	_ = f.session.Start(ctx)
	f.api.pauseErr = errUpstream

	if err := f.session.Pause(ctx); !errors.Is(err, errUpstream) {
		t.Fatalf("Pause err = %v, want upstream error", err)
	}
	f.clock.BlockUntil(0)
	f.clock.Advance(5 * time.Second)

	snap := f.session.Snapshot()
	if snap.State != StateInProgress || snap.TimeRemaining != 60 {
		t.Errorf("after failed Pause: state=%s remaining=%d, want in_progress/60", snap.State, snap.TimeRemaining)
	}
}

func TestExamLoadPausedResumesExactlyOnce(t *testing.T) {
	f := newExamFixture(t, 60)
	f.api.attempt = &model.Attempt{
		ID:                  "att-2",
		AssessmentID:        "exam-1",
		Status:              model.AttemptStatusPaused,
		TotalElapsedSeconds: 600,
	}
	ctx := context.Background()

	if err := f.session.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := f.session.Load(ctx); err != nil {
		t.Fatalf("second Load: %v", err)
	}

	if n := f.api.count("resume"); n != 1 {
		t.Errorf("ResumeAttempt called %d times, want 1", n)
	}
	snap := f.session.Snapshot()
	if snap.State != StateInProgress || snap.TimeRemaining != 3000 {
		t.Errorf("state=%s remaining=%d, want in_progress/3000", snap.State, snap.TimeRemaining)
	}
}

func TestExamLoadAutoResumeFailureStaysPaused(t *testing.T) {
	f := newExamFixture(t, 60)
	f.api.attempt = &model.Attempt{ID: "att-2", AssessmentID: "exam-1", Status: model.AttemptStatusPaused, TotalElapsedSeconds: 60}
	f.api.resumeErr = errUpstream

	if err := f.session.Load(context.Background()); err != nil {
		t.Fatalf("Load should succeed when auto-resume fails: %v", err)
	}
	if n := f.api.count("resume"); n != 1 {
		t.Errorf("ResumeAttempt called %d times, want 1", n)
	}
	if st := f.session.State(); st != StatePaused {
		t.Errorf("state = %s, want paused", st)
	}
}

func TestExamLoadRestoresDraft(t *testing.T) {
	f := newExamFixture(t, 60)
	now := f.clock.Now()
	f.api.attempt = &model.Attempt{
		ID:                  "att-3",
		AssessmentID:        "exam-1",
		Status:              model.AttemptStatusInProgress,
		TotalElapsedSeconds: 600,
		LastResumeTime:      &now,
	}
	_ = f.drafts.Save(context.Background(), testDraftKey, model.LocalProgress{
		Status:               model.ProgressInProgress,
		TimeRemaining:        1234,
		CurrentQuestionIndex: 2,
		Answers: []model.UserAnswer{
			{QuestionID: "q2", Answer: "A,C"},
			{QuestionID: "removed", Answer: "X"},
		},
	})

	if err := f.session.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	snap := f.session.Snapshot()
	if snap.TimeRemaining != 3000 {
		t.Errorf("remaining = %d, want 3000 from the server formula", snap.TimeRemaining)
	}
	if snap.CurrentQuestionIndex != 2 || snap.Answered != 1 || snap.Answers[1].Answer != "A,C" {
		t.Errorf("draft not restored: %+v", snap)
	}
}

func TestExamLoadFinishedAttemptRendersResult(t *testing.T) {
	f := newExamFixture(t, 60)
	f.api.attempt = &model.Attempt{ID: "att-4", AssessmentID: "exam-1", Status: model.AttemptStatusGraded}

	if err := f.session.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if st := f.session.State(); st != StateGraded {
		t.Fatalf("state = %s, want graded", st)
	}
	if res := f.session.Result(); res == nil || res.AttemptID != "att-4" {
		t.Errorf("result = %+v", res)
	}
	if f.session.Subscribers() != 1 {
		t.Errorf("subscribers = %d, want 1", f.session.Subscribers())
	}
}

func TestExamLoadParticipatedFallsBackToAttemptList(t *testing.T) {
	f := newExamFixture(t, 60)
	f.api.exam.IsParticipated = true
	older := f.clock.Now().Add(-48 * time.Hour)
	newer := f.clock.Now().Add(-24 * time.Hour)
	f.api.attempts = []model.Attempt{
		{ID: "other", AssessmentID: "exam-9", Status: model.AttemptStatusGraded, SubmitTime: &newer},
		{ID: "old", AssessmentID: "exam-1", Status: model.AttemptStatusGraded, SubmitTime: &older},
		{ID: "new", AssessmentID: "exam-1", Status: model.AttemptStatusSubmitted, SubmitTime: &newer},
	}

	if err := f.session.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res := f.session.Result(); res == nil || res.AttemptID != "new" {
		t.Fatalf("result = %+v, want attempt new", res)
	}
}

func TestExamLoadDefinitionFailureCanRetry(t *testing.T) {
	f := newExamFixture(t, 60)
	exam := f.api.exam
	f.api.exam = nil

	if err := f.session.Load(context.Background()); err == nil {
		t.Fatal("Load should fail without a definition")
	}
	f.api.exam = exam
	if err := f.session.Load(context.Background()); err != nil {
		t.Fatalf("retried Load: %v", err)
	}
	if f.session.Definition() == nil {
		t.Error("definition not loaded on retry")
	}
}

func TestExamAnswerEditsWriteThrough(t *testing.T) {
	f := newExamFixture(t, 60)
	ctx := context.Background()
	_ = f.session.Load(ctx)
	_ = f.session.Start(ctx)

	if err := f.session.SetAnswer(ctx, "q2", "C, A, C"); err != nil {
		t.Fatalf("SetAnswer: %v", err)
	}
	if err := f.session.ToggleOption(ctx, "q2", "B", true); err != nil {
		t.Fatalf("ToggleOption: %v", err)
	}
	if err := f.session.ToggleOption(ctx, "q2", "C", false); err != nil {
		t.Fatalf("ToggleOption: %v", err)
	}
	if err := f.session.Navigate(ctx, 1); err != nil {
		t.Fatalf("Navigate: %v", err)
	}

	draft, _ := f.drafts.get(testDraftKey)
	if draft.Answers[1].Answer != "A,B" || draft.CurrentQuestionIndex != 1 || draft.TimeRemaining != 3600 {
		t.Errorf("draft = %+v, want q2=A,B index=1 remaining=3600", draft)
	}

	if err := f.session.SetAnswer(ctx, "nope", "A"); !errors.Is(err, ErrUnknownQuestion) {
		t.Errorf("unknown question err = %v", err)
	}
	if err := f.session.Navigate(ctx, 3); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("out of range err = %v", err)
	}
}

func TestExamSuspendSavesPausedDraft(t *testing.T) {
	f := newExamFixture(t, 1)
	ctx := context.Background()
	_ = f.session.Load(ctx)
	_ = f.session.Start(ctx)
	f.advance(t)

	if err := f.session.Suspend(ctx); err != nil {
		t.Fatalf("Suspend: %v", err)
	}
	f.clock.BlockUntil(0)

	if n := f.api.count("pause"); n != 1 {
		t.Errorf("PauseAttempt called %d times, want 1", n)
	}
	draft, _ := f.drafts.get(testDraftKey)
	if draft.Status != model.ProgressPaused || draft.TimeRemaining != 59 {
		t.Errorf("draft = %+v, want paused with 59s", draft)
	}

	// Suspending a paused session does nothing.
	if err := f.session.Suspend(ctx); err != nil {
		t.Fatalf("second Suspend: %v", err)
	}
	if n := f.api.count("pause"); n != 1 {
		t.Errorf("PauseAttempt called %d times after second Suspend, want 1", n)
	}
}

func TestExamCloseStopsTickerAndSubscriptions(t *testing.T) {
	f := newExamFixture(t, 1)
	ctx := context.Background()
	_ = f.session.Load(ctx)
	_ = f.session.Start(ctx)
	f.clock.BlockUntil(1)

	f.session.Close()
	f.clock.BlockUntil(0)
	f.clock.Advance(5 * time.Second)

	if got := f.session.Snapshot().TimeRemaining; got != 60 {
		t.Errorf("remaining after Close = %d, want 60", got)
	}
	for range f.events {
	}
	if n := f.api.count("pause"); n != 0 {
		t.Errorf("Close made %d server calls", n)
	}
	if err := f.session.Start(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("Start after Close err = %v, want ErrClosed", err)
	}
}

func TestExamSyncRecomputesRemaining(t *testing.T) {
	f := newExamFixture(t, 60)
	ctx := context.Background()
	_ = f.session.Load(ctx)
	_ = f.session.Start(ctx)

	// Server says more time has elapsed than the local ticker saw.
	f.api.mu.Lock()
	f.api.attempt.TotalElapsedSeconds = 120
	f.api.mu.Unlock()

	if err := f.session.Sync(ctx); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if got := f.session.Snapshot().TimeRemaining; got != 3480 {
		t.Errorf("remaining after Sync = %d, want 3480", got)
	}
	if e := f.advance(t); e.TimeRemaining != 3479 {
		t.Errorf("tick after Sync = %d, want 3479", e.TimeRemaining)
	}
}

func TestExamExpiryDuringSyncStillSubmits(t *testing.T) {
	f := newExamFixture(t, 1)
	ctx := context.Background()
	_ = f.session.Load(ctx)
	if err := f.session.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for i := 0; i < 59; i++ {
		f.advance(t)
	}

	gate := make(chan struct{})
	f.api.setGate(&f.api.attemptGate, gate)
	f.api.mu.Lock()
	f.api.getAttemptErr = errUpstream
	f.api.mu.Unlock()
	fetches := f.api.count("get_attempt")

	syncErr := make(chan error, 1)
	go func() { syncErr <- f.session.Sync(ctx) }()
	eventually(t, func() bool { return f.api.count("get_attempt") == fetches+1 })

	if e := f.advance(t); e.State != StateExpired {
		t.Fatalf("last tick = %+v, want expired", e)
	}
	waitEvent(t, f.events, func(e Event) bool { return e.Type == EventGraded })

	close(gate)
	if err := <-syncErr; !errors.Is(err, errUpstream) {
		t.Errorf("Sync err = %v, want upstream error", err)
	}
	if st := f.session.State(); st != StateGraded {
		t.Errorf("state = %s, want graded", st)
	}
	if n := f.api.count("submit"); n != 1 {
		t.Errorf("SubmitAttempt called %d times, want 1", n)
	}
	if n := f.graded.count(); n != 1 {
		t.Errorf("OnGraded called %d times, want 1", n)
	}
}

func TestExamSuspendSupersedesSync(t *testing.T) {
	f := newExamFixture(t, 60)
	ctx := context.Background()
	_ = f.session.Load(ctx)
	_ = f.session.Start(ctx)

	gate := make(chan struct{})
	f.api.setGate(&f.api.attemptGate, gate)
	fetches := f.api.count("get_attempt")

	syncErr := make(chan error, 1)
	go func() { syncErr <- f.session.Sync(ctx) }()
	eventually(t, func() bool { return f.api.count("get_attempt") == fetches+1 })

	if err := f.session.Suspend(ctx); err != nil {
		t.Fatalf("Suspend: %v", err)
	}
	if n := f.api.count("pause"); n != 1 {
		t.Errorf("PauseAttempt called %d times, want 1", n)
	}
	if draft, _ := f.drafts.get(testDraftKey); draft.Status != model.ProgressPaused {
		t.Errorf("draft status = %s, want paused", draft.Status)
	}

	close(gate)
	if err := <-syncErr; err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if st := f.session.State(); st != StatePaused {
		t.Errorf("state after superseded Sync = %s, want paused", st)
	}
	f.clock.BlockUntil(0)
}

func TestExamSuspendDuringSubmitReportsPending(t *testing.T) {
	f := newExamFixture(t, 60)
	ctx := context.Background()
	_ = f.session.Load(ctx)
	_ = f.session.Start(ctx)

	gate := make(chan struct{})
	f.api.setGate(&f.api.submitGate, gate)

	done := make(chan error, 1)
	go func() {
		_, err := f.session.Submit(ctx)
		done <- err
	}()
	eventually(t, func() bool { return f.api.count("submit") == 1 })

	if err := f.session.Suspend(ctx); !errors.Is(err, ErrOperationPending) {
		t.Errorf("Suspend err = %v, want ErrOperationPending", err)
	}
	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if n := f.api.count("pause"); n != 0 {
		t.Errorf("PauseAttempt called %d times, want 0", n)
	}
}

func TestExamConcurrentResultFetchGradesOnce(t *testing.T) {
	f := newExamFixture(t, 60)
	ctx := context.Background()
	_ = f.session.Load(ctx)
	_ = f.session.Start(ctx)

	// The attempt was finished from another device.
	f.api.mu.Lock()
	f.api.attempt.Status = model.AttemptStatusGraded
	f.api.mu.Unlock()
	gate := make(chan struct{})
	f.api.setGate(&f.api.detailGate, gate)

	syncErr := make(chan error, 1)
	go func() { syncErr <- f.session.Sync(ctx) }()
	eventually(t, func() bool { return f.api.count("detail") == 1 })

	submitErr := make(chan error, 1)
	go func() {
		_, err := f.session.Submit(ctx)
		submitErr <- err
	}()
	eventually(t, func() bool { return f.api.count("detail") == 2 })

	close(gate)
	if err := <-syncErr; err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if err := <-submitErr; err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if n := f.graded.count(); n != 1 {
		t.Errorf("OnGraded called %d times, want 1", n)
	}
	if n := f.api.count("submit"); n != 0 {
		t.Errorf("SubmitAttempt called %d times, want 0", n)
	}
}
