package session

import (
	"math"

	"github.com/stemsi/exstem-gateway/internal/model"
)

// Render turns a graded attempt into its scored summary. It has no side effects.
func Render(detail *model.AttemptDetail) *model.Result {
	if detail == nil {
		return nil
	}

	res := &model.Result{
		AttemptID:    detail.AttemptID,
		AssessmentID: detail.AssessmentID,
		Kind:         detail.Kind,
		Title:        detail.Title,
		Score:        detail.Score,
		TotalScore:   detail.TotalScore,
		PassingScore: detail.PassingScore,
		Passed:       detail.Score >= detail.PassingScore,
		Total:        len(detail.AnswerRecords),
		Items:        make([]model.ResultItem, 0, len(detail.AnswerRecords)),
		Mistakes:     []model.Mistake{},
		StartTime:    detail.StartTime,
		SubmitTime:   detail.SubmitTime,
	}

	for _, rec := range detail.AnswerRecords {
		res.Items = append(res.Items, model.ResultItem{
			QuestionID:   rec.QuestionID,
			IsCorrect:    rec.IsCorrect,
			ScoreAwarded: rec.ScoreAwarded,
		})
		if rec.IsCorrect {
			res.CorrectCount++
			continue
		}
		res.IncorrectCount++
		res.Mistakes = append(res.Mistakes, model.Mistake{
			QuestionID:    rec.QuestionID,
			Content:       rec.Content,
			Options:       rec.Options,
			StudentAnswer: rec.StudentAnswer,
			CorrectAnswer: rec.CorrectAnswer,
			Analysis:      rec.Analysis,
		})
	}

	if res.Total > 0 {
		res.Accuracy = int(math.Round(float64(res.CorrectCount) / float64(res.Total) * 100))
	}

	return res
}
