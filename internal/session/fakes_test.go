package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stemsi/exstem-gateway/internal/model"
)

var errUpstream = errors.New("upstream unavailable")

// fakeAPI is a scriptable API. Zero-value fields mean "succeed".
type fakeAPI struct {
	mu sync.Mutex

	exam     *model.ExamDefinition
	exercise *model.ExerciseDefinition
	attempt  *model.Attempt
	detail   *model.AttemptDetail
	attempts []model.Attempt

	startErr, pauseErr, resumeErr, submitErr, detailErr, getAttemptErr error

	// submitGate, when set, blocks SubmitAttempt/SubmitExercise until closed.
	submitGate chan struct{}
	// attemptGate and detailGate block GetAttempt and GetAttemptDetail the same way.
	attemptGate chan struct{}
	detailGate  chan struct{}

	calls     map[string]int
	submitted [][]model.UserAnswer

	clock clockwork.Clock
}

func newFakeAPI(clock clockwork.Clock) *fakeAPI {
	return &fakeAPI{calls: make(map[string]int), clock: clock}
}

func (f *fakeAPI) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeAPI) hit(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
}

// wait blocks on the gate returned by pick, if any.
func (f *fakeAPI) wait(pick func() chan struct{}) {
	f.mu.Lock()
	gate := pick()
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
}

// setGate installs a gate under the lock; pass nil to remove it.
func (f *fakeAPI) setGate(gate *chan struct{}, ch chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	*gate = ch
}

func (f *fakeAPI) lastSubmitted() []model.UserAnswer {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.submitted) == 0 {
		return nil
	}
	return f.submitted[len(f.submitted)-1]
}

func (f *fakeAPI) StartAttempt(ctx context.Context, examID string) error {
	f.hit("start")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	now := f.clock.Now()
	if f.attempt == nil {
		f.attempt = &model.Attempt{ID: "att-1", AssessmentID: examID, Kind: model.KindExam}
	}
	f.attempt.Status = model.AttemptStatusInProgress
	f.attempt.StartTime = &now
	f.attempt.LastResumeTime = &now
	return nil
}

func (f *fakeAPI) GetAttempt(ctx context.Context, examID string) (*model.Attempt, error) {
	f.hit("get_attempt")
	f.wait(func() chan struct{} { return f.attemptGate })
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getAttemptErr != nil {
		return nil, f.getAttemptErr
	}
	if f.attempt == nil {
		return nil, ErrAttemptNotFound
	}
	a := *f.attempt
	return &a, nil
}

func (f *fakeAPI) PauseAttempt(ctx context.Context, examID string) error {
	f.hit("pause")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pauseErr != nil {
		return f.pauseErr
	}
	if f.attempt != nil {
		f.attempt.Status = model.AttemptStatusPaused
		f.attempt.LastResumeTime = nil
	}
	return nil
}

func (f *fakeAPI) ResumeAttempt(ctx context.Context, examID string) error {
	f.hit("resume")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.resumeErr != nil {
		return f.resumeErr
	}
	if f.attempt != nil {
		now := f.clock.Now()
		f.attempt.Status = model.AttemptStatusInProgress
		f.attempt.LastResumeTime = &now
	}
	return nil
}

func (f *fakeAPI) SubmitAttempt(ctx context.Context, examID string, answers []model.UserAnswer) (*model.SubmitReceipt, error) {
	return f.submit("submit", answers)
}

func (f *fakeAPI) SubmitExercise(ctx context.Context, exerciseID string, answers []model.UserAnswer) (*model.SubmitReceipt, error) {
	return f.submit("submit_exercise", answers)
}

func (f *fakeAPI) submit(name string, answers []model.UserAnswer) (*model.SubmitReceipt, error) {
	f.hit(name)
	f.wait(func() chan struct{} { return f.submitGate })

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	f.submitted = append(f.submitted, answers)
	id := "att-1"
	if f.attempt != nil {
		id = f.attempt.ID
		f.attempt.Status = model.AttemptStatusGraded
	}
	return &model.SubmitReceipt{AttemptID: id}, nil
}

func (f *fakeAPI) GetAttemptDetail(ctx context.Context, attemptID string) (*model.AttemptDetail, error) {
	f.hit("detail")
	f.wait(func() chan struct{} { return f.detailGate })
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.detailErr != nil {
		return nil, f.detailErr
	}
	if f.detail != nil {
		d := *f.detail
		d.AttemptID = attemptID
		return &d, nil
	}
	return &model.AttemptDetail{AttemptID: attemptID, Score: 80, TotalScore: 100, PassingScore: 60}, nil
}

func (f *fakeAPI) GetExamDefinition(ctx context.Context, examID string) (*model.ExamDefinition, error) {
	f.hit("exam")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.exam == nil {
		return nil, errUpstream
	}
	return f.exam, nil
}

func (f *fakeAPI) GetExerciseDefinition(ctx context.Context, exerciseID string) (*model.ExerciseDefinition, error) {
	f.hit("exercise")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.exercise == nil {
		return nil, errUpstream
	}
	return f.exercise, nil
}

func (f *fakeAPI) ListMyAttempts(ctx context.Context, kind model.AssessmentKind) ([]model.Attempt, error) {
	f.hit("list")
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts, nil
}

// memDrafts keeps drafts in a map with the same merge rule as progress.Store.
type memDrafts struct {
	mu     sync.Mutex
	data   map[string]model.LocalProgress
	saves  int
	clears int
}

func newMemDrafts() *memDrafts {
	return &memDrafts{data: make(map[string]model.LocalProgress)}
}

func (d *memDrafts) Save(ctx context.Context, key string, p model.LocalProgress) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.saves++
	d.data[key] = p
	return nil
}

func (d *memDrafts) SaveAnswers(ctx context.Context, key string, answers []model.UserAnswer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.saves++
	p, ok := d.data[key]
	if !ok {
		p = model.LocalProgress{Status: model.ProgressInProgress}
	}
	p.Answers = answers
	d.data[key] = p
	return nil
}

func (d *memDrafts) Load(ctx context.Context, key string) (*model.LocalProgress, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.data[key]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (d *memDrafts) Clear(ctx context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clears++
	delete(d.data, key)
	return nil
}

func (d *memDrafts) get(key string) (model.LocalProgress, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.data[key]
	return p, ok
}

func sampleExam(durationMinutes int) *model.ExamDefinition {
	return &model.ExamDefinition{
		ID:              "exam-1",
		Title:           "Kimia Dasar",
		DurationMinutes: durationMinutes,
		TotalScore:      100,
		PassingScore:    60,
		Questions: []model.ExamQuestion{
			{Position: 1, Score: 40, Question: model.Question{ID: "q1", Type: model.QuestionTypeSingleChoice, Options: map[string]string{"A": "H2O", "B": "CO2"}}},
			{Position: 2, Score: 40, Question: model.Question{ID: "q2", Type: model.QuestionTypeMultipleChoice, Options: map[string]string{"A": "a", "B": "b", "C": "c"}}},
			{Position: 3, Score: 20, Question: model.Question{ID: "q3", Type: model.QuestionTypeShortAnswer}},
		},
	}
}

// waitEvent reads events until one matches or the deadline passes.
func waitEvent(t *testing.T, ch <-chan Event, match func(Event) bool) Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case e, ok := <-ch:
			if !ok {
				t.Fatal("event channel closed")
			}
			if match(e) {
				return e
			}
		case <-deadline:
			t.Fatal("timed out waiting for event")
		}
	}
}

// eventually polls cond until it holds or the deadline passes.
func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
