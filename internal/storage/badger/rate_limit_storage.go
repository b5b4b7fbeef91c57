package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/davidR-jmd/fb-leads/internal/interfaces"
	"github.com/davidR-jmd/fb-leads/internal/models"
	"github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"
)

// RateLimitStorage implements interfaces.RateLimitStorage for Badger
type RateLimitStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
	now    func() time.Time
}

// NewRateLimitStorage creates a new RateLimitStorage instance
func NewRateLimitStorage(db *BadgerDB, logger arbor.ILogger) interfaces.RateLimitStorage {
	return &RateLimitStorage{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

// defaultState starts the hour window now and the day window at UTC midnight
func (s *RateLimitStorage) defaultState() *models.RateLimitState {
	now := s.now().UTC()
	return &models.RateLimitState{
		ID:            models.RateLimitStateKey,
		HourStartedAt: now,
		DayStartedAt:  time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC),
		UpdatedAt:     now,
	}
}

// Get returns the stored state, or a fresh default one that is not yet persisted
func (s *RateLimitStorage) Get(ctx context.Context) (*models.RateLimitState, error) {
	var state models.RateLimitState
	err := s.db.Store().Get(models.RateLimitStateKey, &state)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return s.defaultState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rate limit state: %w", err)
	}
	state.NormalizeUTC()
	return &state, nil
}

// Update loads the state, applies fn and writes it back in one transaction.
// Concurrent updates conflict and are retried, so fn may run more than once.
// When fn returns an error nothing is written.
func (s *RateLimitStorage) Update(ctx context.Context, fn func(state *models.RateLimitState) error) (*models.RateLimitState, error) {
	var result *models.RateLimitState
	err := s.db.update(func(tx *badger.Txn) error {
		state := &models.RateLimitState{}
		err := s.db.Store().TxGet(tx, models.RateLimitStateKey, state)
		switch {
		case errors.Is(err, badgerhold.ErrNotFound):
			state = s.defaultState()
		case err != nil:
			return err
		default:
			state.NormalizeUTC()
		}

		if err := fn(state); err != nil {
			return err
		}
		state.ID = models.RateLimitStateKey
		state.UpdatedAt = s.now().UTC()

		if err := s.db.Store().TxUpsert(tx, models.RateLimitStateKey, state); err != nil {
			return err
		}
		result = state
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update rate limit state: %w", err)
	}
	return result, nil
}
