package model

// QuestionType enumerates the supported question formats.
type QuestionType string

const (
	QuestionTypeSingleChoice   QuestionType = "single_choice"
	QuestionTypeMultipleChoice QuestionType = "multiple_choice"
	QuestionTypeTrueFalse      QuestionType = "true_false"
	QuestionTypeShortAnswer    QuestionType = "short_answer"
	QuestionTypeEssay          QuestionType = "essay"
	QuestionTypeFillBlank      QuestionType = "fill_blank"
)

// Valid reports whether t is one of the known question types.
func (t QuestionType) Valid() bool {
	switch t {
	case QuestionTypeSingleChoice, QuestionTypeMultipleChoice, QuestionTypeTrueFalse,
		QuestionTypeShortAnswer, QuestionTypeEssay, QuestionTypeFillBlank:
		return true
	default:
		return false
	}
}

// IsChoice reports whether answers are option keys.
func (t QuestionType) IsChoice() bool {
	return t == QuestionTypeSingleChoice || t == QuestionTypeMultipleChoice || t == QuestionTypeTrueFalse
}

// Question is a single assessment question as served by the upstream API.
type Question struct {
	ID      string       `json:"id"`
	Content string       `json:"content"`
	Type    QuestionType `json:"type"`
	// Options maps option key to option text. Present only for choice types.
	Options map[string]string `json:"options,omitempty"`
	// CorrectAnswer is canonical; multiple_choice keys are comma-joined.
	CorrectAnswer   string   `json:"correct_answer,omitempty"`
	Analysis        string   `json:"analysis,omitempty"`
	KnowledgePoints []string `json:"knowledge_points,omitempty"`
}

// UserAnswer is a student's current answer to one question. An empty Answer
// means unanswered.
type UserAnswer struct {
	QuestionID string `json:"questionId"`
	Answer     string `json:"answer"`
}
