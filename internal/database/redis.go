package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-gateway/internal/config"
)

// NewRedisClient connects the client used for hot drafts, the shared rate
// limit and the persistence queues, retrying while Redis comes up.
func NewRedisClient(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*redis.Client, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	// Workers hold a connection in BLPOP; leave headroom for requests.
	if opt.PoolSize == 0 {
		opt.PoolSize = 20
	}

	rdb := redis.NewClient(opt)

	err = withRetry(ctx, log, "redis", cfg.ConnectAttempts, 500*time.Millisecond, func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})
	if err != nil {
		rdb.Close()
		return nil, err
	}

	log.Info().
		Str("addr", opt.Addr).
		Int("db", opt.DB).
		Int("pool_size", opt.PoolSize).
		Msg("Redis connected")

	return rdb, nil
}
