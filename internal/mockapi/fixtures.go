package mockapi

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/stemsi/exstem-gateway/internal/model"
)

// Fixtures is the content served by the mock upstream.
type Fixtures struct {
	Exams     []model.ExamDefinition     `json:"exams"`
	Exercises []model.ExerciseDefinition `json:"exercises"`
}

// LoadFixtures reads fixtures from a JSON file.
func LoadFixtures(path string) (*Fixtures, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	var f Fixtures
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode fixtures: %w", err)
	}
	return &f, nil
}

// SampleFixtures returns a small built-in exam and exercise.
func SampleFixtures() *Fixtures {
	chem := []model.Question{
		{
			ID: "kim-01", Type: model.QuestionTypeSingleChoice,
			Content:       "Rumus kimia air adalah ...",
			Options:       map[string]string{"A": "H2O", "B": "CO2", "C": "NaCl", "D": "O2"},
			CorrectAnswer: "A",
			Analysis:      "Air tersusun atas dua atom hidrogen dan satu atom oksigen.",
		},
		{
			ID: "kim-02", Type: model.QuestionTypeMultipleChoice,
			Content:       "Manakah yang termasuk gas mulia?",
			Options:       map[string]string{"A": "Helium", "B": "Nitrogen", "C": "Neon", "D": "Klorin"},
			CorrectAnswer: "A,C",
			Analysis:      "Helium dan neon berada pada golongan VIIIA.",
		},
		{
			ID: "kim-03", Type: model.QuestionTypeTrueFalse,
			Content:       "Larutan dengan pH 3 bersifat basa.",
			Options:       map[string]string{"true": "Benar", "false": "Salah"},
			CorrectAnswer: "false",
			Analysis:      "pH di bawah 7 bersifat asam.",
		},
		{
			ID: "kim-04", Type: model.QuestionTypeFillBlank,
			Content:       "Lambang unsur natrium adalah ___.",
			CorrectAnswer: "Na",
		},
		{
			ID: "kim-05", Type: model.QuestionTypeEssay,
			Content: "Jelaskan perbedaan ikatan ion dan ikatan kovalen.",
		},
	}

	exam := model.ExamDefinition{
		ID:              "kimia-uts",
		Title:           "UTS Kimia Dasar",
		CourseID:        "kimia-x",
		DurationMinutes: 30,
		TotalScore:      100,
		PassingScore:    60,
	}
	for i, q := range chem {
		exam.Questions = append(exam.Questions, model.ExamQuestion{Question: q, Score: 20, Position: i + 1})
	}

	exercise := model.ExerciseDefinition{
		ID:           "kimia-latihan-1",
		Title:        "Latihan Kimia Dasar",
		CourseID:     "kimia-x",
		Questions:    chem[:4],
		TotalScore:   100,
		PassingScore: 75,
	}

	return &Fixtures{Exams: []model.ExamDefinition{exam}, Exercises: []model.ExerciseDefinition{exercise}}
}
