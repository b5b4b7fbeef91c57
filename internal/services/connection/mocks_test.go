package connection

import (
	"context"
	"sync"
	"time"

	"github.com/davidR-jmd/fb-leads/internal/interfaces"
	"github.com/davidR-jmd/fb-leads/internal/models"
	"github.com/stretchr/testify/mock"
)

// MockBrowserDriver is a mock implementation of BrowserDriver
type MockBrowserDriver struct {
	mock.Mock
}

func (m *MockBrowserDriver) Launch(ctx context.Context, visible bool) error {
	args := m.Called(ctx, visible)
	return args.Error(0)
}

func (m *MockBrowserDriver) Close() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockBrowserDriver) Login(ctx context.Context, email, password string) (models.ConnectionStatus, error) {
	args := m.Called(ctx, email, password)
	return args.Get(0).(models.ConnectionStatus), args.Error(1)
}

func (m *MockBrowserDriver) InjectSessionToken(ctx context.Context, token string) (bool, error) {
	args := m.Called(ctx, token)
	return args.Bool(0), args.Error(1)
}

func (m *MockBrowserDriver) NavigateToManualLogin(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockBrowserDriver) SubmitVerificationCode(ctx context.Context, code string) (models.ConnectionStatus, error) {
	args := m.Called(ctx, code)
	return args.Get(0).(models.ConnectionStatus), args.Error(1)
}

func (m *MockBrowserDriver) ValidateSession(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func (m *MockBrowserDriver) SearchPeople(ctx context.Context, query string, limit int) ([]models.ContactRecord, error) {
	args := m.Called(ctx, query, limit)
	if contacts, ok := args.Get(0).([]models.ContactRecord); ok {
		return contacts, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBrowserDriver) IsRunning() bool {
	return m.Called().Bool(0)
}

func (m *MockBrowserDriver) IsBusy() bool {
	return m.Called().Bool(0)
}

func (m *MockBrowserDriver) TryAcquire() bool {
	return m.Called().Bool(0)
}

func (m *MockBrowserDriver) Release() {
	m.Called()
}

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

// memoryConnectionStorage keeps the connection record in memory with the
// same replace/modify rules as the Badger store
type memoryConnectionStorage struct {
	mu     sync.Mutex
	config *models.ConnectionConfig
}

func (s *memoryConnectionStorage) snapshot() *models.ConnectionConfig {
	if s.config == nil {
		return nil
	}
	c := *s.config
	return &c
}

func (s *memoryConnectionStorage) GetConfig(ctx context.Context) (*models.ConnectionConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot(), nil
}

func (s *memoryConnectionStorage) replace(fill func(c *models.ConnectionConfig)) *models.ConnectionConfig {
	now := time.Now().UTC()
	next := &models.ConnectionConfig{ID: models.ConnectionConfigKey, CreatedAt: now, UpdatedAt: now}
	if s.config != nil {
		next.CreatedAt = s.config.CreatedAt
		next.LastConnectedAt = s.config.LastConnectedAt
	}
	fill(next)
	s.config = next
	return s.snapshot()
}

func (s *memoryConnectionStorage) SaveCredentialsConfig(ctx context.Context, email, encryptedPassword string, status models.ConnectionStatus) (*models.ConnectionConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replace(func(c *models.ConnectionConfig) {
		c.AuthMethod = models.AuthMethodCredentials
		c.Email = email
		c.EncryptedPassword = encryptedPassword
		c.Status = status
	}), nil
}

func (s *memoryConnectionStorage) SaveCookieConfig(ctx context.Context, encryptedCookie string, status models.ConnectionStatus) (*models.ConnectionConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replace(func(c *models.ConnectionConfig) {
		c.AuthMethod = models.AuthMethodCookie
		c.EncryptedCookie = encryptedCookie
		c.Status = status
	}), nil
}

func (s *memoryConnectionStorage) SaveManualConfig(ctx context.Context, status models.ConnectionStatus) (*models.ConnectionConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replace(func(c *models.ConnectionConfig) {
		c.AuthMethod = models.AuthMethodManual
		c.Status = status
	}), nil
}

func (s *memoryConnectionStorage) UpdateStatus(ctx context.Context, status models.ConnectionStatus, errorMessage string) (*models.ConnectionConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.config == nil {
		return nil, nil
	}
	s.config.Status = status
	if errorMessage != "" {
		s.config.ErrorMessage = errorMessage
	} else if status != models.ConnectionStatusError {
		s.config.ErrorMessage = ""
	}
	return s.snapshot(), nil
}

func (s *memoryConnectionStorage) UpdateLastConnected(ctx context.Context) (*models.ConnectionConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.config == nil {
		return nil, nil
	}
	now := time.Now().UTC()
	s.config.LastConnectedAt = &now
	return s.snapshot(), nil
}

func (s *memoryConnectionStorage) DeleteConfig(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existed := s.config != nil
	s.config = nil
	return existed, nil
}
