package model

// ExamQuestion places a question inside an exam with its score weight.
type ExamQuestion struct {
	Question Question `json:"question"`
	Score    float64  `json:"score"`
	Position int      `json:"position"`
}

// ExamDefinition is the read-only definition of a timed exam.
type ExamDefinition struct {
	ID              string         `json:"id"`
	Title           string         `json:"title"`
	CourseID        string         `json:"course_id,omitempty"`
	Questions       []ExamQuestion `json:"questions"`
	TotalScore      float64        `json:"total_score"`
	PassingScore    float64        `json:"passing_score"`
	DurationMinutes int            `json:"duration_minutes"`
	IsParticipated  bool           `json:"is_participated"`
}

// QuestionIDs returns the question ids in definition order.
func (d *ExamDefinition) QuestionIDs() []string {
	ids := make([]string, 0, len(d.Questions))
	for _, q := range d.Questions {
		ids = append(ids, q.Question.ID)
	}
	return ids
}

// Question looks up a question by id.
func (d *ExamDefinition) Question(id string) (*Question, bool) {
	for i := range d.Questions {
		if d.Questions[i].Question.ID == id {
			return &d.Questions[i].Question, true
		}
	}
	return nil, false
}

// ExerciseDefinition is the definition of an untimed practice exercise.
type ExerciseDefinition struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	CourseID       string     `json:"course_id,omitempty"`
	Questions      []Question `json:"questions"`
	TotalScore     float64    `json:"total_score"`
	PassingScore   float64    `json:"passing_score"`
	IsParticipated bool       `json:"is_participated"`
}

// QuestionIDs returns the question ids in definition order.
func (d *ExerciseDefinition) QuestionIDs() []string {
	ids := make([]string, 0, len(d.Questions))
	for _, q := range d.Questions {
		ids = append(ids, q.ID)
	}
	return ids
}

// Question looks up a question by id.
func (d *ExerciseDefinition) Question(id string) (*Question, bool) {
	for i := range d.Questions {
		if d.Questions[i].ID == id {
			return &d.Questions[i], true
		}
	}
	return nil, false
}
