package progress

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-gateway/internal/model"
)

func newTestStore(t *testing.T) (*Store, *MemoryKV, clockwork.Clock) {
	t.Helper()
	kv := NewMemoryKV()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC))
	return NewStore(kv, clock, zerolog.Nop()), kv, clock
}

func TestStoreRoundTrip(t *testing.T) {
	store, _, clock := newTestStore(t)
	ctx := context.Background()

	in := model.LocalProgress{
		Status:               model.ProgressPaused,
		TimeRemaining:        1500,
		CurrentQuestionIndex: 4,
		Answers:              []model.UserAnswer{{QuestionID: "q1", Answer: "A,C"}, {QuestionID: "q2"}},
	}
	if err := store.Save(ctx, "k", in); err != nil {
		t.Fatalf("Save: %v", err)
	}

	out, err := store.Load(ctx, "k")
	if err != nil || out == nil {
		t.Fatalf("Load: %v, %v", out, err)
	}
	if out.Status != in.Status || out.TimeRemaining != 1500 || out.CurrentQuestionIndex != 4 {
		t.Errorf("Load = %+v", out)
	}
	if len(out.Answers) != 2 || out.Answers[0] != in.Answers[0] || out.Answers[1] != in.Answers[1] {
		t.Errorf("answers = %+v", out.Answers)
	}
	if !out.SavedAt.Equal(clock.Now()) {
		t.Errorf("SavedAt = %v, want %v", out.SavedAt, clock.Now())
	}
}

func TestStoreSaveAnswersKeepsOtherFields(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	_ = store.Save(ctx, "k", model.LocalProgress{Status: model.ProgressPaused, TimeRemaining: 42, CurrentQuestionIndex: 3})
	if err := store.SaveAnswers(ctx, "k", []model.UserAnswer{{QuestionID: "q1", Answer: "B"}}); err != nil {
		t.Fatalf("SaveAnswers: %v", err)
	}

	out, _ := store.Load(ctx, "k")
	if out.Status != model.ProgressPaused || out.TimeRemaining != 42 || out.CurrentQuestionIndex != 3 {
		t.Errorf("SaveAnswers clobbered other fields: %+v", out)
	}
	if len(out.Answers) != 1 || out.Answers[0].Answer != "B" {
		t.Errorf("answers = %+v", out.Answers)
	}
}

func TestStoreSaveAnswersCreatesRecord(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.SaveAnswers(ctx, "fresh", []model.UserAnswer{{QuestionID: "q1", Answer: "x"}}); err != nil {
		t.Fatalf("SaveAnswers: %v", err)
	}
	out, _ := store.Load(ctx, "fresh")
	if out == nil || out.Status != model.ProgressInProgress || len(out.Answers) != 1 {
		t.Errorf("fresh record = %+v", out)
	}
}

func TestStoreLoadMissingAndMalformed(t *testing.T) {
	store, kv, _ := newTestStore(t)
	ctx := context.Background()

	if p, err := store.Load(ctx, "none"); p != nil || err != nil {
		t.Errorf("missing key: %v, %v", p, err)
	}

	_ = kv.Set(ctx, "bad", []byte("{not json"))
	if p, err := store.Load(ctx, "bad"); p != nil || err != nil {
		t.Errorf("malformed draft: %v, %v, want nil, nil", p, err)
	}
}

func TestStoreClear(t *testing.T) {
	store, kv, _ := newTestStore(t)
	ctx := context.Background()

	_ = store.Save(ctx, "k", model.LocalProgress{Status: model.ProgressInProgress})
	if err := store.Clear(ctx, "k"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if kv.Len() != 0 {
		t.Errorf("kv still has %d entries", kv.Len())
	}
	if err := store.Clear(ctx, "k"); err != nil {
		t.Errorf("clearing a missing key: %v", err)
	}
}
