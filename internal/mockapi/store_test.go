package mockapi

import (
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stemsi/exstem-gateway/internal/model"
)

type fakeClock interface {
	clockwork.Clock
	Advance(time.Duration)
}

func newTestStore() (*Store, fakeClock) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC))
	return NewStore(SampleFixtures(), clock), clock
}

func TestStoreRedactsDefinitions(t *testing.T) {
	s, _ := newTestStore()

	exam, err := s.Exam(1, "kimia-uts")
	if err != nil {
		t.Fatalf("Exam: %v", err)
	}
	for _, q := range exam.Questions {
		if q.Question.CorrectAnswer != "" || q.Question.Analysis != "" {
			t.Fatalf("question %s leaks its key", q.Question.ID)
		}
	}
	if _, err := s.Exercise(1, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Exercise err = %v, want ErrNotFound", err)
	}

	// The store's own copy keeps the key.
	if s.exams["kimia-uts"].Questions[0].Question.CorrectAnswer != "A" {
		t.Error("redaction mutated the fixture")
	}
}

func TestStoreTimingBookkeeping(t *testing.T) {
	s, clock := newTestStore()

	a, err := s.StartAttempt(1, "kimia-uts")
	if err != nil {
		t.Fatalf("StartAttempt: %v", err)
	}
	if _, err := s.StartAttempt(1, "kimia-uts"); !errors.Is(err, ErrAttemptExists) {
		t.Errorf("second StartAttempt err = %v", err)
	}

	clock.Advance(90 * time.Second)
	if err := s.PauseAttempt(1, "kimia-uts"); err != nil {
		t.Fatalf("PauseAttempt: %v", err)
	}
	if err := s.PauseAttempt(1, "kimia-uts"); !errors.Is(err, ErrAttemptNotActive) {
		t.Errorf("double pause err = %v", err)
	}

	clock.Advance(10 * time.Minute)
	if err := s.ResumeAttempt(1, "kimia-uts"); err != nil {
		t.Fatalf("ResumeAttempt: %v", err)
	}
	clock.Advance(30 * time.Second)

	got, err := s.Attempt(1, "kimia-uts")
	if err != nil {
		t.Fatalf("Attempt: %v", err)
	}
	if got.ID != a.ID || got.Status != model.AttemptStatusInProgress {
		t.Fatalf("attempt = %+v", got)
	}
	if got.TotalElapsedSeconds != 90 {
		t.Errorf("total_elapsed_seconds = %d, want 90 (paused time excluded)", got.TotalElapsedSeconds)
	}
	if got.LastResumeTime == nil || !got.LastResumeTime.Equal(clock.Now().Add(-30*time.Second)) {
		t.Errorf("last_resume_time = %v", got.LastResumeTime)
	}
}

func TestStoreGradesAttempt(t *testing.T) {
	s, _ := newTestStore()
	if _, err := s.StartAttempt(1, "kimia-uts"); err != nil {
		t.Fatalf("StartAttempt: %v", err)
	}

	receipt, err := s.SubmitAttempt(1, "kimia-uts", []model.UserAnswer{
		{QuestionID: "kim-01", Answer: "A"},
		{QuestionID: "kim-02", Answer: "C,A"},
		{QuestionID: "kim-03", Answer: "true"},
		{QuestionID: "kim-05", Answer: "ikatan ion melibatkan serah terima elektron"},
	})
	if err != nil {
		t.Fatalf("SubmitAttempt: %v", err)
	}

	d, err := s.Detail(1, receipt.AttemptID)
	if err != nil {
		t.Fatalf("Detail: %v", err)
	}
	if d.Score != 40 {
		t.Errorf("score = %v, want 40", d.Score)
	}
	if len(d.AnswerRecords) != 5 || d.AnswerRecords[3].StudentAnswer != "" {
		t.Errorf("records = %+v", d.AnswerRecords)
	}
	if d.AnswerRecords[0].CorrectAnswer != "A" {
		t.Error("detail should reveal the key")
	}
	if _, err := s.Detail(2, receipt.AttemptID); !errors.Is(err, ErrNotFound) {
		t.Error("another student must not see the detail")
	}

	exam, _ := s.Exam(1, "kimia-uts")
	if !exam.IsParticipated {
		t.Error("exam should be marked participated")
	}

	// Submitting again against the graded attempt records a retry.
	retry, err := s.SubmitAttempt(1, "kimia-uts", []model.UserAnswer{{QuestionID: "kim-04", Answer: "Na"}})
	if err != nil {
		t.Fatalf("retry SubmitAttempt: %v", err)
	}
	if retry.AttemptID == receipt.AttemptID {
		t.Error("retry should create a new attempt")
	}
	if n := len(s.Attempts(1, model.KindExam)); n != 2 {
		t.Errorf("attempts = %d, want 2", n)
	}
}

func TestStoreSubmitWithoutAttempt(t *testing.T) {
	s, _ := newTestStore()
	if _, err := s.SubmitAttempt(1, "kimia-uts", nil); !errors.Is(err, ErrAttemptNotActive) {
		t.Errorf("err = %v, want ErrAttemptNotActive", err)
	}
}
