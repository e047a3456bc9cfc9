package progress

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-gateway/internal/config"
)

// Mirror operations carried on the drafts queue.
const (
	MirrorSet    = "set"
	MirrorDelete = "delete"
)

// MirrorOp is one draft write replayed into Postgres by the draft worker.
type MirrorOp struct {
	Op         string          `json:"op"`
	Key        string          `json:"key"`
	Data       json.RawMessage `json:"data,omitempty"`
	TTLSeconds int64           `json:"ttl_seconds,omitempty"`
}

// RedisKV stores drafts in Redis with a TTL. When a durable fallback is set,
// writes are mirrored onto the drafts queue and misses are served from the
// fallback, re-populating Redis.
type RedisKV struct {
	rdb      *redis.Client
	ttl      time.Duration
	mirror   bool
	fallback KV
	log      zerolog.Logger
}

// RedisOption configures a RedisKV.
type RedisOption func(*RedisKV)

// WithMirror enables queueing every write for the draft worker.
func WithMirror() RedisOption {
	return func(r *RedisKV) { r.mirror = true }
}

// WithFallback serves Redis misses from kv.
func WithFallback(kv KV) RedisOption {
	return func(r *RedisKV) { r.fallback = kv }
}

// NewRedisKV creates a RedisKV. A zero ttl keeps drafts until deleted.
func NewRedisKV(rdb *redis.Client, ttl time.Duration, log zerolog.Logger, opts ...RedisOption) *RedisKV {
	r := &RedisKV{
		rdb: rdb,
		ttl: ttl,
		log: log.With().Str("component", "redis_drafts").Logger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RedisKV) Get(ctx context.Context, key string) ([]byte, error) {
	raw, err := r.rdb.Get(ctx, key).Bytes()
	if err == nil {
		return raw, nil
	}
	if !errors.Is(err, redis.Nil) {
		return nil, err
	}
	if r.fallback == nil {
		return nil, ErrNotFound
	}

	// Redis miss → durable mirror.
	raw, err = r.fallback.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	// Self-heal: re-populate Redis.
	if err := r.rdb.Set(ctx, key, raw, r.ttl).Err(); err != nil {
		r.log.Warn().Err(err).Str("key", key).Msg("Draft self-heal failed")
	}
	return raw, nil
}

func (r *RedisKV) Set(ctx context.Context, key string, value []byte) error {
	if err := r.rdb.Set(ctx, key, value, r.ttl).Err(); err != nil {
		return err
	}
	r.enqueue(ctx, MirrorOp{Op: MirrorSet, Key: key, Data: value, TTLSeconds: int64(r.ttl / time.Second)})
	return nil
}

func (r *RedisKV) Delete(ctx context.Context, key string) error {
	if err := r.rdb.Del(ctx, key).Err(); err != nil {
		return err
	}
	r.enqueue(ctx, MirrorOp{Op: MirrorDelete, Key: key})
	return nil
}

func (r *RedisKV) enqueue(ctx context.Context, op MirrorOp) {
	if !r.mirror {
		return
	}
	raw, err := json.Marshal(op)
	if err != nil {
		r.log.Error().Err(err).Msg("Mirror encode failed")
		return
	}
	if err := r.rdb.RPush(ctx, config.WorkerKey.PersistDraftsQueue, raw).Err(); err != nil {
		r.log.Warn().Err(err).Str("key", op.Key).Msg("Mirror enqueue failed")
	}
}
