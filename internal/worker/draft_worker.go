package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-gateway/internal/config"
	"github.com/stemsi/exstem-gateway/internal/progress"
)

const (
	DraftBatchSize    = 100
	DraftBatchTimeout = time.Second
	DraftPollTimeout  = time.Second
	DraftRetryDelay   = 5 * time.Second
	DraftPurgeEvery   = 10 * time.Minute
)

// DraftSink is the durable store the draft mirror is replayed into.
type DraftSink interface {
	Upsert(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeleteExpired(ctx context.Context) (int64, error)
}

// DraftWorker consumes persist_drafts_queue and replays draft writes into
// PostgreSQL so drafts outlive a Redis flush.
type DraftWorker struct {
	sink DraftSink
	rdb  *redis.Client
	log  zerolog.Logger
}

// NewDraftWorker creates a new DraftWorker.
func NewDraftWorker(sink DraftSink, rdb *redis.Client, log zerolog.Logger) *DraftWorker {
	return &DraftWorker{
		sink: sink,
		rdb:  rdb,
		log:  log.With().Str("component", "draft_worker").Logger(),
	}
}

// Start begins the worker loop. Call in a goroutine.
func (w *DraftWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	batch := make([]string, 0, DraftBatchSize)
	lastFlush := time.Now()
	lastPurge := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= DraftBatchSize || time.Since(lastFlush) >= DraftBatchTimeout) {
			if !w.flush(ctx, batch) {
				time.Sleep(DraftRetryDelay)
			}
			batch = batch[:0]
			lastFlush = time.Now()
		}

		if time.Since(lastPurge) >= DraftPurgeEvery {
			w.purge(ctx)
			lastPurge = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			w.flush(context.Background(), batch)
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return
		default:
			item, err := w.rdb.BLPop(ctx, DraftPollTimeout, config.WorkerKey.PersistDraftsQueue).Result()
			if err != nil {
				if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}
			if len(item) < 2 {
				continue
			}
			batch = append(batch, item[1])
		}
	}
}

// flush applies a batch of raw mirror ops. Ops are coalesced per key so
// only the last write for each key reaches the database. Ops that fail are
// pushed back onto the queue and flush reports false.
func (w *DraftWorker) flush(ctx context.Context, batch []string) bool {
	if len(batch) == 0 {
		return true
	}

	latest := make(map[string]int, len(batch))
	ops := make([]progress.MirrorOp, 0, len(batch))
	raws := make([]string, 0, len(batch))
	for _, raw := range batch {
		var op progress.MirrorOp
		if err := json.Unmarshal([]byte(raw), &op); err != nil {
			w.log.Error().Err(err).Msg("Invalid JSON payload")
			continue
		}
		if i, ok := latest[op.Key]; ok {
			ops[i], raws[i] = op, raw
			continue
		}
		latest[op.Key] = len(ops)
		ops = append(ops, op)
		raws = append(raws, raw)
	}

	ok := true
	for i := range ops {
		if err := w.apply(ctx, &ops[i]); err != nil {
			w.log.Error().Err(err).Str("key", ops[i].Key).Msg("Persist error, requeueing")
			w.rdb.RPush(ctx, config.WorkerKey.PersistDraftsQueue, raws[i])
			ok = false
		}
	}
	return ok
}

func (w *DraftWorker) apply(ctx context.Context, op *progress.MirrorOp) error {
	switch op.Op {
	case progress.MirrorSet:
		return w.sink.Upsert(ctx, op.Key, op.Data, time.Duration(op.TTLSeconds)*time.Second)
	case progress.MirrorDelete:
		return w.sink.Delete(ctx, op.Key)
	default:
		w.log.Warn().Str("op", op.Op).Msg("Unknown mirror op, dropping")
		return nil
	}
}

func (w *DraftWorker) purge(ctx context.Context) {
	n, err := w.sink.DeleteExpired(ctx)
	if err != nil {
		w.log.Warn().Err(err).Msg("Purge expired drafts failed")
		return
	}
	if n > 0 {
		w.log.Info().Int64("count", n).Msg("Purged expired drafts")
	}
}

// drain processes all remaining items in the queue before shutdown.
func (w *DraftWorker) drain(ctx context.Context) {
	drained := 0
	for {
		raw, err := w.rdb.LPop(ctx, config.WorkerKey.PersistDraftsQueue).Result()
		if err != nil {
			break
		}
		if !w.flush(ctx, []string{raw}) {
			break
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining items")
	}
}
