package session

import (
	"strings"

	"github.com/stemsi/exstem-gateway/internal/model"
)

// AnswerSet maps question id to the current answer for one attempt. It is
// pre-populated for every question so lookups never miss. Not safe for
// concurrent use; the owning session guards it.
type AnswerSet struct {
	order   []string
	answers map[string]string
}

// NewAnswerSet creates an answer set with an empty answer for every id.
func NewAnswerSet(questionIDs []string) *AnswerSet {
	s := &AnswerSet{
		order:   make([]string, 0, len(questionIDs)),
		answers: make(map[string]string, len(questionIDs)),
	}
	for _, id := range questionIDs {
		if _, dup := s.answers[id]; dup {
			continue
		}
		s.order = append(s.order, id)
		s.answers[id] = ""
	}
	return s
}

// Len returns the number of questions in the set.
func (s *AnswerSet) Len() int { return len(s.order) }

// Has reports whether id belongs to the set.
func (s *AnswerSet) Has(id string) bool {
	_, ok := s.answers[id]
	return ok
}

// Get returns the answer for id, or "" when unanswered or unknown.
func (s *AnswerSet) Get(id string) string {
	return s.answers[id]
}

// Set replaces the answer for id.
func (s *AnswerSet) Set(id, answer string) error {
	if !s.Has(id) {
		return ErrUnknownQuestion
	}
	s.answers[id] = answer
	return nil
}

// ToggleOption adds or removes an option key from a multiple-choice answer.
// Keys keep the order in which they were toggled on.
func (s *AnswerSet) ToggleOption(id, key string, included bool) error {
	if !s.Has(id) {
		return ErrUnknownQuestion
	}
	key = strings.TrimSpace(key)
	keys := splitKeys(s.answers[id])

	pos := -1
	for i, k := range keys {
		if k == key {
			pos = i
			break
		}
	}

	switch {
	case included && pos < 0 && key != "":
		keys = append(keys, key)
	case !included && pos >= 0:
		keys = append(keys[:pos], keys[pos+1:]...)
	}

	s.answers[id] = strings.Join(keys, ",")
	return nil
}

// CountAnswered returns the number of non-blank answers.
func (s *AnswerSet) CountAnswered() int {
	n := 0
	for _, a := range s.answers {
		if strings.TrimSpace(a) != "" {
			n++
		}
	}
	return n
}

// Unanswered returns the ids whose answer is blank, in question order.
func (s *AnswerSet) Unanswered() []string {
	var ids []string
	for _, id := range s.order {
		if strings.TrimSpace(s.answers[id]) == "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// Answers returns every answer in question order.
func (s *AnswerSet) Answers() []model.UserAnswer {
	out := make([]model.UserAnswer, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, model.UserAnswer{QuestionID: id, Answer: s.answers[id]})
	}
	return out
}

// Merge restores answers by question id. Entries for questions that are no
// longer part of the set are dropped.
func (s *AnswerSet) Merge(draft []model.UserAnswer) {
	for _, a := range draft {
		if s.Has(a.QuestionID) {
			s.answers[a.QuestionID] = a.Answer
		}
	}
}

// Reset clears every answer.
func (s *AnswerSet) Reset() {
	for id := range s.answers {
		s.answers[id] = ""
	}
}

// NormalizeChoice trims and de-duplicates a comma-joined key list while
// keeping first-seen order.
func NormalizeChoice(raw string) string {
	keys := splitKeys(raw)
	seen := make(map[string]struct{}, len(keys))
	out := keys[:0]
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return strings.Join(out, ",")
}

func splitKeys(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	keys := make([]string, 0, len(parts))
	for _, p := range parts {
		if k := strings.TrimSpace(p); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}
