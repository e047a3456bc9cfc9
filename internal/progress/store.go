package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-gateway/internal/model"
)

// Store reads and writes LocalProgress records on top of a KV. Writes are
// last-write-wins on the whole object.
type Store struct {
	kv    KV
	clock clockwork.Clock
	log   zerolog.Logger
}

// NewStore creates a Store over kv.
func NewStore(kv KV, clock clockwork.Clock, log zerolog.Logger) *Store {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Store{
		kv:    kv,
		clock: clock,
		log:   log.With().Str("component", "progress_store").Logger(),
	}
}

// Save overwrites the draft for key.
func (s *Store) Save(ctx context.Context, key string, p model.LocalProgress) error {
	p.SavedAt = s.clock.Now()
	if p.Answers == nil {
		p.Answers = []model.UserAnswer{}
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	if err := s.kv.Set(ctx, key, raw); err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	return nil
}

// SaveAnswers replaces only the answers of the stored draft. Status, time
// remaining and position are kept. Without a stored draft a fresh
// in_progress record is written.
func (s *Store) SaveAnswers(ctx context.Context, key string, answers []model.UserAnswer) error {
	p, err := s.Load(ctx, key)
	if err != nil {
		return err
	}
	if p == nil {
		p = &model.LocalProgress{Status: model.ProgressInProgress}
	}
	p.Answers = answers
	return s.Save(ctx, key, *p)
}

// Load returns the draft for key, or nil when none is stored. A draft that
// cannot be decoded is logged and treated as missing.
func (s *Store) Load(ctx context.Context, key string) (*model.LocalProgress, error) {
	raw, err := s.kv.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load draft: %w", err)
	}

	var p model.LocalProgress
	if err := json.Unmarshal(raw, &p); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Malformed draft ignored")
		return nil, nil
	}
	return &p, nil
}

// Clear removes the draft for key.
func (s *Store) Clear(ctx context.Context, key string) error {
	if err := s.kv.Delete(ctx, key); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("clear draft: %w", err)
	}
	return nil
}
