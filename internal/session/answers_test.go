package session

import (
	"errors"
	"testing"

	"github.com/stemsi/exstem-gateway/internal/model"
)

func TestNewAnswerSetPrepopulates(t *testing.T) {
	s := NewAnswerSet([]string{"q1", "q2", "q1", "q3"})

	if s.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", s.Len())
	}
	for _, id := range []string{"q1", "q2", "q3"} {
		if !s.Has(id) || s.Get(id) != "" {
			t.Errorf("%s: Has=%v Get=%q, want present and empty", id, s.Has(id), s.Get(id))
		}
	}
	if s.Get("missing") != "" {
		t.Errorf("Get(missing) = %q, want empty", s.Get("missing"))
	}
}

func TestAnswerSetSetUnknown(t *testing.T) {
	s := NewAnswerSet([]string{"q1"})
	if err := s.Set("nope", "A"); !errors.Is(err, ErrUnknownQuestion) {
		t.Fatalf("Set(unknown) err = %v, want ErrUnknownQuestion", err)
	}
}

func TestAnswerSetToggleOption(t *testing.T) {
	tests := []struct {
		name     string
		initial  string
		key      string
		included bool
		want     string
	}{
		{"add to empty", "", "A", true, "A"},
		{"append keeps insertion order", "C,A", "B", true, "C,A,B"},
		{"add present is no-op", "A,B", "A", true, "A,B"},
		{"remove middle", "A,B,C", "B", false, "A,C"},
		{"remove last leaves empty", "A", "A", false, ""},
		{"remove absent is no-op", "A", "B", false, "A"},
		{"spaces are trimmed", " A , B ", "C", true, "A,B,C"},
		{"blank key ignored", "A", " ", true, "A"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewAnswerSet([]string{"q"})
			_ = s.Set("q", tt.initial)
			if err := s.ToggleOption("q", tt.key, tt.included); err != nil {
				t.Fatalf("ToggleOption: %v", err)
			}
			if got := s.Get("q"); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAnswerSetCounts(t *testing.T) {
	s := NewAnswerSet([]string{"q1", "q2", "q3", "q4"})
	_ = s.Set("q1", "A")
	_ = s.Set("q2", "   ")
	_ = s.Set("q4", "text")

	if got := s.CountAnswered(); got != 2 {
		t.Errorf("CountAnswered() = %d, want 2", got)
	}
	unanswered := s.Unanswered()
	if len(unanswered) != 2 || unanswered[0] != "q2" || unanswered[1] != "q3" {
		t.Errorf("Unanswered() = %v, want [q2 q3]", unanswered)
	}
}

func TestAnswerSetMergeAndReset(t *testing.T) {
	s := NewAnswerSet([]string{"q1", "q2", "q3"})
	s.Merge([]model.UserAnswer{
		{QuestionID: "q2", Answer: "B"},
		{QuestionID: "gone", Answer: "X"},
	})

	got := s.Answers()
	want := []model.UserAnswer{{QuestionID: "q1"}, {QuestionID: "q2", Answer: "B"}, {QuestionID: "q3"}}
	if len(got) != len(want) {
		t.Fatalf("Answers() len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Answers()[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
	if s.Has("gone") {
		t.Error("merge added an id that is not part of the set")
	}

	s.Reset()
	if s.CountAnswered() != 0 || s.Len() != 3 {
		t.Errorf("after Reset: answered=%d len=%d, want 0 and 3", s.CountAnswered(), s.Len())
	}
}

func TestNormalizeChoice(t *testing.T) {
	tests := map[string]string{
		"":          "",
		"A":         "A",
		"B, A":      "B,A",
		"A,A,B":     "A,B",
		" ,A,, C ,": "A,C",
	}
	for in, want := range tests {
		if got := NormalizeChoice(in); got != want {
			t.Errorf("NormalizeChoice(%q) = %q, want %q", in, got, want)
		}
	}
}
