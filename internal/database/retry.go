package database

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

const maxRetryDelay = 10 * time.Second

// connectBackOff doubles from initial up to maxRetryDelay and allows
// attempts-1 retries. It stops early once ctx ends.
func connectBackOff(ctx context.Context, attempts int, initial time.Duration) backoff.BackOffContext {
	if attempts < 1 {
		attempts = 1
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.Multiplier = 2
	b.MaxInterval = maxRetryDelay
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx)
}

// withRetry calls connect until it succeeds, attempts run out or ctx ends.
func withRetry(ctx context.Context, log zerolog.Logger, what string, attempts int, initial time.Duration, connect func(context.Context) error) error {
	tries := 0
	err := backoff.RetryNotify(
		func() error {
			tries++
			return connect(ctx)
		},
		connectBackOff(ctx, attempts, initial),
		func(err error, next time.Duration) {
			log.Warn().Err(err).
				Str("target", what).
				Int("attempt", tries).
				Dur("retry_in", next).
				Msg("Connect failed, retrying")
		},
	)
	if err != nil {
		return fmt.Errorf("connect %s after %d attempts: %w", what, tries, err)
	}
	return nil
}
