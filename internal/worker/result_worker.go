package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-gateway/internal/config"
	"github.com/stemsi/exstem-gateway/internal/model"
)

const (
	ResultBatchSize    = 50
	ResultBatchTimeout = 2 * time.Second
	ResultPollTimeout  = 1 * time.Second
)

// ResultSink records graded results.
type ResultSink interface {
	InsertBatch(ctx context.Context, rows []model.ResultHistory) error
	Insert(ctx context.Context, h *model.ResultHistory) error
}

// ResultWorker consumes persist_results_queue and records graded results in
// PostgreSQL in batches.
type ResultWorker struct {
	sink ResultSink
	rdb  *redis.Client
	log  zerolog.Logger
}

func NewResultWorker(sink ResultSink, rdb *redis.Client, log zerolog.Logger) *ResultWorker {
	return &ResultWorker{
		sink: sink,
		rdb:  rdb,
		log:  log.With().Str("component", "result_worker").Logger(),
	}
}

// ----------------------------------------------------------------
// Worker loop with batching
// ----------------------------------------------------------------

func (w *ResultWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ResultWorker started")

	batch := make([]model.ResultHistory, 0, ResultBatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= ResultBatchSize || time.Since(lastFlush) >= ResultBatchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			item, err := w.rdb.BLPop(ctx, ResultPollTimeout, config.WorkerKey.PersistResultsQueue).Result()
			if err != nil {
				if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var h model.ResultHistory
			if err := json.Unmarshal([]byte(item[1]), &h); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}

			batch = append(batch, h)
		}
	}
}

// ----------------------------------------------------------------
// Batch insert with single-row fallback
// ----------------------------------------------------------------

// flushSafe returns the number of rows that had to be requeued.
func (w *ResultWorker) flushSafe(ctx context.Context, batch []model.ResultHistory) int {
	if len(batch) == 0 {
		return 0
	}

	err := w.sink.InsertBatch(ctx, batch)
	if err == nil {
		return 0
	}
	w.log.Warn().Err(err).Int("size", len(batch)).Msg("bulk result insert failed, using fallback")

	requeued := 0
	for i := range batch {
		h := &batch[i]
		if err := w.sink.Insert(ctx, h); err != nil {
			w.log.Error().Err(err).
				Int("student_id", h.StudentID).
				Str("attempt_id", h.AttemptID).
				Msg("single insert failed, requeueing")
			raw, _ := json.Marshal(h)
			w.rdb.RPush(ctx, config.WorkerKey.PersistResultsQueue, raw)
			requeued++
		}
	}
	return requeued
}
