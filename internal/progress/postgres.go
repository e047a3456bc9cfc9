package progress

import (
	"context"
	"errors"
	"time"

	"github.com/stemsi/exstem-gateway/internal/repository"
)

// DraftRepository is the durable draft table. Implemented by repository.DraftRepository.
type DraftRepository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Upsert(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// PostgresKV stores drafts in the session_drafts table.
type PostgresKV struct {
	repo DraftRepository
	ttl  time.Duration
}

// NewPostgresKV creates a PostgresKV. A zero ttl keeps drafts until deleted.
func NewPostgresKV(repo DraftRepository, ttl time.Duration) *PostgresKV {
	return &PostgresKV{repo: repo, ttl: ttl}
}

func (p *PostgresKV) Get(ctx context.Context, key string) ([]byte, error) {
	raw, err := p.repo.Get(ctx, key)
	if errors.Is(err, repository.ErrDraftNotFound) {
		return nil, ErrNotFound
	}
	return raw, err
}

func (p *PostgresKV) Set(ctx context.Context, key string, value []byte) error {
	return p.repo.Upsert(ctx, key, value, p.ttl)
}

func (p *PostgresKV) Delete(ctx context.Context, key string) error {
	return p.repo.Delete(ctx, key)
}
