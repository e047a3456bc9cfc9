package progress

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-gateway/internal/config"
)

// redisForTest connects to TEST_REDIS_URL or skips.
func redisForTest(t *testing.T) *redis.Client {
	t.Helper()
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" || testing.Short() {
		t.Skip("TEST_REDIS_URL not set")
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	t.Cleanup(func() { rdb.Close() })
	return rdb
}

func TestRedisKVFallbackSelfHeals(t *testing.T) {
	rdb := redisForTest(t)
	ctx := context.Background()
	key := "test:draft:selfheal"
	rdb.Del(ctx, key, config.WorkerKey.PersistDraftsQueue)

	durable := NewMemoryKV()
	_ = durable.Set(ctx, key, []byte(`{"status":"paused"}`))

	kv := NewRedisKV(rdb, time.Hour, zerolog.Nop(), WithFallback(durable), WithMirror())

	got, err := kv.Get(ctx, key)
	if err != nil || string(got) != `{"status":"paused"}` {
		t.Fatalf("Get = %q, %v", got, err)
	}
	if v, err := rdb.Get(ctx, key).Result(); err != nil || v != `{"status":"paused"}` {
		t.Errorf("redis not re-populated: %q, %v", v, err)
	}

	if err := kv.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	raw, err := rdb.LPop(ctx, config.WorkerKey.PersistDraftsQueue).Result()
	if err != nil {
		t.Fatalf("mirror queue empty: %v", err)
	}
	var op MirrorOp
	if err := json.Unmarshal([]byte(raw), &op); err != nil || op.Op != MirrorDelete || op.Key != key {
		t.Errorf("mirror op = %+v, %v", op, err)
	}
}
