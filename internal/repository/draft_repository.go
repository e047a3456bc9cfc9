package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrDraftNotFound is returned when no live draft exists for a key.
var ErrDraftNotFound = errors.New("draft not found")

// DraftRepository stores serialized drafts keyed by draft key.
type DraftRepository struct {
	pool *pgxpool.Pool
}

// NewDraftRepository creates a new DraftRepository.
func NewDraftRepository(pool *pgxpool.Pool) *DraftRepository {
	return &DraftRepository{pool: pool}
}

// Get returns the raw draft for key. Expired rows are treated as missing.
func (r *DraftRepository) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := r.pool.QueryRow(ctx,
		`SELECT data FROM session_drafts
		 WHERE draft_key = $1 AND (expires_at IS NULL OR expires_at > NOW())`, key,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrDraftNotFound
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Upsert creates or replaces the draft for key. A zero ttl never expires.
func (r *DraftRepository) Upsert(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	var expiresAt *time.Time
	if ttl > 0 {
		t := time.Now().Add(ttl)
		expiresAt = &t
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO session_drafts (draft_key, data, expires_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (draft_key) DO UPDATE
		 SET data = EXCLUDED.data, expires_at = EXCLUDED.expires_at, updated_at = NOW()`,
		key, data, expiresAt,
	)
	return err
}

// Delete removes the draft for key. Deleting a missing key is not an error.
func (r *DraftRepository) Delete(ctx context.Context, key string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM session_drafts WHERE draft_key = $1`, key)
	return err
}

// DeleteExpired purges drafts past their expiry and returns how many were removed.
func (r *DraftRepository) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM session_drafts WHERE expires_at IS NOT NULL AND expires_at <= NOW()`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
