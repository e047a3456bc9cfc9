package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-gateway/internal/config"
	"github.com/stemsi/exstem-gateway/internal/model"
)

// ResultQueue hands graded results to the result worker through Redis, which
// persists them to Postgres in batches.
type ResultQueue struct {
	rdb *redis.Client
}

// NewResultQueue creates a ResultQueue.
func NewResultQueue(rdb *redis.Client) *ResultQueue {
	return &ResultQueue{rdb: rdb}
}

// Insert enqueues h on the results queue.
func (q *ResultQueue) Insert(ctx context.Context, h *model.ResultHistory) error {
	raw, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if err := q.rdb.RPush(ctx, config.WorkerKey.PersistResultsQueue, raw).Err(); err != nil {
		return fmt.Errorf("enqueue result: %w", err)
	}
	return nil
}
