package search

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/davidR-jmd/fb-leads/internal/interfaces"
	"github.com/davidR-jmd/fb-leads/internal/models"
	"github.com/stretchr/testify/mock"
)

// MockDirectClient is a mock implementation of DirectClient
type MockDirectClient struct {
	mock.Mock
}

func (m *MockDirectClient) SetSessionToken(token string) {
	m.Called(token)
}

func (m *MockDirectClient) HasSessionToken() bool {
	return m.Called().Bool(0)
}

func (m *MockDirectClient) ValidateSession(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func (m *MockDirectClient) SearchPeople(ctx context.Context, query string, opts interfaces.PeopleSearchOptions) ([]models.ContactRecord, error) {
	args := m.Called(ctx, query, opts)
	if contacts, ok := args.Get(0).([]models.ContactRecord); ok {
		return contacts, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDirectClient) Close() {
	m.Called()
}

// MockRateLimiter is a mock implementation of RateLimiter
type MockRateLimiter struct {
	mock.Mock
}

func (m *MockRateLimiter) CanProceed(ctx context.Context) (bool, string, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.String(1), args.Error(2)
}

func (m *MockRateLimiter) RecordUsage(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockRateLimiter) EndSession(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockRateLimiter) GetStatus(ctx context.Context) (*models.RateLimitStatus, error) {
	args := m.Called(ctx)
	if status, ok := args.Get(0).(*models.RateLimitStatus); ok {
		return status, args.Error(1)
	}
	return nil, args.Error(1)
}

// MockSessionProvider is a mock implementation of DirectSessionProvider
type MockSessionProvider struct {
	mock.Mock
}

func (m *MockSessionProvider) EnsureDirectSession(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// recordingPublisher collects finished sessions
type recordingPublisher struct {
	mu       sync.Mutex
	finished []*models.SearchSession
}

func (p *recordingPublisher) PublishSessionFinished(ctx context.Context, session *models.SearchSession) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finished = append(p.finished, session)
	return nil
}

func (p *recordingPublisher) Close() error {
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.finished)
}

// memorySessionStorage mirrors the Badger session store in memory
type memorySessionStorage struct {
	mu       sync.Mutex
	sessions map[string]*models.SearchSession
}

func newMemorySessionStorage() *memorySessionStorage {
	return &memorySessionStorage{sessions: make(map[string]*models.SearchSession)}
}

func clone(s *models.SearchSession) *models.SearchSession {
	c := *s
	c.TargetEntities = append([]string(nil), s.TargetEntities...)
	c.Keywords = append([]string(nil), s.Keywords...)
	c.Results = append([]models.ContactRecord(nil), s.Results...)
	return &c
}

func (s *memorySessionStorage) put(session *models.SearchSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = clone(session)
}

func (s *memorySessionStorage) CreateSession(ctx context.Context, session *models.SearchSession) error {
	s.put(session)
	return nil
}

func (s *memorySessionStorage) GetSession(ctx context.Context, id string) (*models.SearchSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, models.ErrSessionNotFound
	}
	return clone(session), nil
}

func (s *memorySessionStorage) AppendResults(ctx context.Context, id string, results []models.ContactRecord, searched int) (*models.SearchSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, models.ErrSessionNotFound
	}
	if !session.Status.IsTerminal() {
		session.Results = append(session.Results, results...)
		session.EntitiesSearched += searched
		if session.EntitiesSearched > session.TotalSearches {
			session.EntitiesSearched = session.TotalSearches
		}
	}
	return clone(session), nil
}

func (s *memorySessionStorage) CompleteSession(ctx context.Context, id string, status models.SessionStatus, errorMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return models.ErrSessionNotFound
	}
	now := time.Now().UTC()
	session.Status = status
	session.ErrorMessage = errorMessage
	session.CompletedAt = &now
	return nil
}

func (s *memorySessionStorage) FindCompletedSince(ctx context.Context, ownerID string, since time.Time) ([]*models.SearchSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.SearchSession
	for _, session := range s.sessions {
		if session.OwnerID == ownerID && session.Status == models.SessionStatusCompleted && !session.CreatedAt.Before(since) {
			out = append(out, clone(session))
		}
	}
	return out, nil
}

func (s *memorySessionStorage) ListByOwner(ctx context.Context, ownerID string, offset, limit int) ([]*models.SearchSession, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var owned []*models.SearchSession
	for _, session := range s.sessions {
		if session.OwnerID == ownerID {
			owned = append(owned, clone(session))
		}
	}
	sort.Slice(owned, func(i, j int) bool {
		return owned[i].CreatedAt.After(owned[j].CreatedAt)
	})
	total := len(owned)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return owned[offset:end], total, nil
}

func (s *memorySessionStorage) ListByStatus(ctx context.Context, status models.SessionStatus) ([]*models.SearchSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.SearchSession
	for _, session := range s.sessions {
		if session.Status == status {
			out = append(out, clone(session))
		}
	}
	return out, nil
}

func (s *memorySessionStorage) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for id, session := range s.sessions {
		if session.Status.IsTerminal() && session.CreatedAt.Before(cutoff) {
			delete(s.sessions, id)
			deleted++
		}
	}
	return deleted, nil
}
