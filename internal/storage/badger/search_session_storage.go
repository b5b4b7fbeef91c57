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

// SearchSessionStorage implements interfaces.SearchSessionStorage for Badger
type SearchSessionStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
	now    func() time.Time
}

// NewSearchSessionStorage creates a new SearchSessionStorage instance
func NewSearchSessionStorage(db *BadgerDB, logger arbor.ILogger) interfaces.SearchSessionStorage {
	return &SearchSessionStorage{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

func (s *SearchSessionStorage) CreateSession(ctx context.Context, session *models.SearchSession) error {
	if session.ID == "" {
		return fmt.Errorf("session ID is required")
	}
	now := s.now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now
	if session.Status == "" {
		session.Status = models.SessionStatusInProgress
	}
	if session.Results == nil {
		session.Results = []models.ContactRecord{}
	}

	if err := s.db.Store().Insert(session.ID, session); err != nil {
		return fmt.Errorf("failed to create search session: %w", err)
	}

	s.logger.Debug().
		Str("session_id", session.ID).
		Int("total_searches", session.TotalSearches).
		Msg("Search session created")

	return nil
}

func (s *SearchSessionStorage) GetSession(ctx context.Context, id string) (*models.SearchSession, error) {
	var session models.SearchSession
	err := s.db.Store().Get(id, &session)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, models.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get search session: %w", err)
	}
	return &session, nil
}

func (s *SearchSessionStorage) AppendResults(ctx context.Context, id string, results []models.ContactRecord, searched int) (*models.SearchSession, error) {
	var saved *models.SearchSession
	err := s.db.update(func(tx *badger.Txn) error {
		var session models.SearchSession
		if err := s.db.Store().TxGet(tx, id, &session); err != nil {
			return err
		}
		saved = &session
		if session.Status.IsTerminal() {
			return nil
		}

		session.Results = append(session.Results, results...)
		session.EntitiesSearched += searched
		if session.EntitiesSearched > session.TotalSearches {
			session.EntitiesSearched = session.TotalSearches
		}
		session.UpdatedAt = s.now().UTC()

		return s.db.Store().TxUpdate(tx, id, &session)
	})
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, models.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to append session results: %w", err)
	}
	return saved, nil
}

func (s *SearchSessionStorage) CompleteSession(ctx context.Context, id string, status models.SessionStatus, errorMessage string) error {
	err := s.db.update(func(tx *badger.Txn) error {
		var session models.SearchSession
		if err := s.db.Store().TxGet(tx, id, &session); err != nil {
			return err
		}
		if session.Status.IsTerminal() {
			return nil
		}

		now := s.now().UTC()
		session.Status = status
		session.ErrorMessage = errorMessage
		session.UpdatedAt = now
		session.CompletedAt = &now

		return s.db.Store().TxUpdate(tx, id, &session)
	})
	if errors.Is(err, badgerhold.ErrNotFound) {
		return models.ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to complete search session: %w", err)
	}

	s.logger.Debug().Str("session_id", id).Str("status", string(status)).Msg("Search session finished")
	return nil
}

func (s *SearchSessionStorage) FindCompletedSince(ctx context.Context, ownerID string, since time.Time) ([]*models.SearchSession, error) {
	var sessions []models.SearchSession
	query := badgerhold.Where("OwnerID").Eq(ownerID).Index("OwnerID").
		And("Status").Eq(models.SessionStatusCompleted).
		And("CreatedAt").Ge(since).
		SortBy("CreatedAt").Reverse()

	if err := s.db.Store().Find(&sessions, query); err != nil {
		return nil, fmt.Errorf("failed to find completed sessions: %w", err)
	}
	return toSessionPtrs(sessions), nil
}

func (s *SearchSessionStorage) ListByOwner(ctx context.Context, ownerID string, offset, limit int) ([]*models.SearchSession, int, error) {
	countQuery := badgerhold.Where("OwnerID").Eq(ownerID).Index("OwnerID")
	total, err := s.db.Store().Count(&models.SearchSession{}, countQuery)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count sessions: %w", err)
	}

	query := badgerhold.Where("OwnerID").Eq(ownerID).Index("OwnerID").SortBy("CreatedAt").Reverse()
	if offset > 0 {
		query = query.Skip(offset)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var sessions []models.SearchSession
	if err := s.db.Store().Find(&sessions, query); err != nil {
		return nil, 0, fmt.Errorf("failed to list sessions: %w", err)
	}
	return toSessionPtrs(sessions), int(total), nil
}

func (s *SearchSessionStorage) ListByStatus(ctx context.Context, status models.SessionStatus) ([]*models.SearchSession, error) {
	var sessions []models.SearchSession
	if err := s.db.Store().Find(&sessions, badgerhold.Where("Status").Eq(status).SortBy("CreatedAt")); err != nil {
		return nil, fmt.Errorf("failed to list sessions by status: %w", err)
	}
	return toSessionPtrs(sessions), nil
}

// DeleteOlderThan removes finished sessions created before cutoff. Running
// sessions are kept regardless of age.
func (s *SearchSessionStorage) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	var sessions []models.SearchSession
	if err := s.db.Store().Find(&sessions, badgerhold.Where("CreatedAt").Lt(cutoff)); err != nil {
		return 0, fmt.Errorf("failed to find old sessions: %w", err)
	}

	deleted := 0
	for _, session := range sessions {
		if !session.Status.IsTerminal() {
			continue
		}
		if err := s.db.Store().Delete(session.ID, &models.SearchSession{}); err != nil && !errors.Is(err, badgerhold.ErrNotFound) {
			s.logger.Warn().Err(err).Str("session_id", session.ID).Msg("Failed to delete old session")
			continue
		}
		deleted++
	}
	return deleted, nil
}

func toSessionPtrs(sessions []models.SearchSession) []*models.SearchSession {
	out := make([]*models.SearchSession, len(sessions))
	for i := range sessions {
		out[i] = &sessions[i]
	}
	return out
}
