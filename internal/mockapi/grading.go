package mockapi

import (
	"sort"
	"strings"

	"github.com/stemsi/exstem-gateway/internal/model"
)

// IsCorrect grades one answer. Multiple-choice keys are compared as sets,
// other choice and text answers are compared trimmed and case-insensitively.
// Essays are never auto-correct.
func IsCorrect(q model.Question, answer string) bool {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return false
	}

	switch q.Type {
	case model.QuestionTypeEssay:
		return false
	case model.QuestionTypeMultipleChoice:
		return sameKeys(answer, q.CorrectAnswer)
	default:
		return strings.EqualFold(answer, strings.TrimSpace(q.CorrectAnswer))
	}
}

func sameKeys(a, b string) bool {
	ka, kb := keySet(a), keySet(b)
	if len(ka) != len(kb) {
		return false
	}
	for i := range ka {
		if ka[i] != kb[i] {
			return false
		}
	}
	return true
}

func keySet(raw string) []string {
	seen := make(map[string]struct{})
	var keys []string
	for _, p := range strings.Split(raw, ",") {
		k := strings.ToUpper(strings.TrimSpace(p))
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
