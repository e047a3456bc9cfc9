package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-gateway/internal/model"
)

// ResultRepository handles the student result history.
type ResultRepository struct {
	pool *pgxpool.Pool
}

// NewResultRepository creates a new ResultRepository.
func NewResultRepository(pool *pgxpool.Pool) *ResultRepository {
	return &ResultRepository{pool: pool}
}

// InsertBatch records many results at once. Rows already recorded for the
// same attempt are skipped.
func (r *ResultRepository) InsertBatch(ctx context.Context, rows []model.ResultHistory) error {
	if len(rows) == 0 {
		return nil
	}

	n := len(rows)
	students := make([]int, n)
	attempts := make([]string, n)
	assessments := make([]string, n)
	kinds := make([]string, n)
	titles := make([]string, n)
	scores := make([]float64, n)
	passed := make([]bool, n)
	accuracies := make([]int, n)
	recordedAts := make([]time.Time, n)

	for i, h := range rows {
		students[i] = h.StudentID
		attempts[i] = h.AttemptID
		assessments[i] = h.AssessmentID
		kinds[i] = string(h.Kind)
		titles[i] = h.Title
		scores[i] = h.Score
		passed[i] = h.Passed
		accuracies[i] = h.Accuracy
		recordedAts[i] = h.RecordedAt
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO attempt_results
		   (student_id, attempt_id, assessment_id, kind, title, score, passed, accuracy, recorded_at)
		 SELECT * FROM UNNEST(
		   $1::int[], $2::text[], $3::text[], $4::text[], $5::text[],
		   $6::float8[], $7::bool[], $8::int[], $9::timestamptz[]
		 )
		 ON CONFLICT (student_id, attempt_id) DO NOTHING`,
		students, attempts, assessments, kinds, titles, scores, passed, accuracies, recordedAts,
	)
	return err
}

// Insert records a single result.
func (r *ResultRepository) Insert(ctx context.Context, h *model.ResultHistory) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO attempt_results
		   (student_id, attempt_id, assessment_id, kind, title, score, passed, accuracy, recorded_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (student_id, attempt_id) DO NOTHING`,
		h.StudentID, h.AttemptID, h.AssessmentID, h.Kind, h.Title, h.Score, h.Passed, h.Accuracy, h.RecordedAt,
	)
	return err
}

// ListByStudent returns a student's results, most recent first.
func (r *ResultRepository) ListByStudent(ctx context.Context, studentID int, limit int) ([]model.ResultHistory, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, student_id, attempt_id, assessment_id, kind, title, score, passed, accuracy, recorded_at
		 FROM attempt_results
		 WHERE student_id = $1
		 ORDER BY recorded_at DESC
		 LIMIT $2`, studentID, limit,
	)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.ResultHistory, error) {
		var h model.ResultHistory
		var kind string
		err := row.Scan(&h.ID, &h.StudentID, &h.AttemptID, &h.AssessmentID, &kind, &h.Title,
			&h.Score, &h.Passed, &h.Accuracy, &h.RecordedAt)
		h.Kind = model.AssessmentKind(kind)
		return h, err
	})
}
