package handlers

import (
	"context"
	"time"

	"github.com/davidR-jmd/fb-leads/internal/models"
	"github.com/stretchr/testify/mock"
)

// MockConnectionService is a mock implementation of ConnectionService
type MockConnectionService struct {
	mock.Mock
}

func (m *MockConnectionService) EnsureDirectSession(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockConnectionService) Initialize(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockConnectionService) GetStatus(ctx context.Context) (*models.ConnectionSnapshot, error) {
	args := m.Called(ctx)
	if s, ok := args.Get(0).(*models.ConnectionSnapshot); ok {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockConnectionService) result(args mock.Arguments) (*models.ConnectResult, error) {
	if r, ok := args.Get(0).(*models.ConnectResult); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockConnectionService) Connect(ctx context.Context, email, password string) (*models.ConnectResult, error) {
	return m.result(m.Called(ctx, email, password))
}

func (m *MockConnectionService) ConnectWithCookie(ctx context.Context, cookie string) (*models.ConnectResult, error) {
	return m.result(m.Called(ctx, cookie))
}

func (m *MockConnectionService) OpenBrowserForManualLogin(ctx context.Context) (*models.ConnectResult, error) {
	return m.result(m.Called(ctx))
}

func (m *MockConnectionService) VerifyCode(ctx context.Context, code string) (*models.ConnectResult, error) {
	return m.result(m.Called(ctx, code))
}

func (m *MockConnectionService) ValidateSession(ctx context.Context) (*models.ConnectResult, error) {
	return m.result(m.Called(ctx))
}

func (m *MockConnectionService) Search(ctx context.Context, query string, limit int) ([]models.ContactRecord, error) {
	args := m.Called(ctx, query, limit)
	if c, ok := args.Get(0).([]models.ContactRecord); ok {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockConnectionService) Disconnect(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockConnectionService) CloseBrowser(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// MockSessionService is a mock implementation of SearchSessionService
type MockSessionService struct {
	mock.Mock
}

func (m *MockSessionService) StartSession(ctx context.Context, ownerID string, entities, keywords []string, perEntityLimit int) (string, bool, error) {
	args := m.Called(ctx, ownerID, entities, keywords, perEntityLimit)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockSessionService) GetSessionStatus(ctx context.Context, ownerID, sessionID string) (*models.SessionStatusView, error) {
	args := m.Called(ctx, ownerID, sessionID)
	if v, ok := args.Get(0).(*models.SessionStatusView); ok {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockSessionService) GetSessionResults(ctx context.Context, ownerID, sessionID string, page, pageSize int) (*models.ResultsPage, error) {
	args := m.Called(ctx, ownerID, sessionID, page, pageSize)
	if p, ok := args.Get(0).(*models.ResultsPage); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockSessionService) ListSessions(ctx context.Context, ownerID string, page, pageSize int) (*models.SessionHistoryPage, error) {
	args := m.Called(ctx, ownerID, page, pageSize)
	if p, ok := args.Get(0).(*models.SessionHistoryPage); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockSessionService) ResumeInterrupted(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockSessionService) PruneOlderThan(ctx context.Context, retentionDays int) (int, error) {
	args := m.Called(ctx, retentionDays)
	return args.Int(0), args.Error(1)
}

// MockRateLimiter is a mock implementation of RateLimiter and CooldownReporter
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
	if s, ok := args.Get(0).(*models.RateLimitStatus); ok {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRateLimiter) CooldownRemaining(ctx context.Context) (time.Duration, error) {
	args := m.Called(ctx)
	return args.Get(0).(time.Duration), args.Error(1)
}
