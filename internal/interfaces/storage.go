package interfaces

import (
	"context"
	"time"

	"github.com/davidR-jmd/fb-leads/internal/models"
)

// ConnectionStorage persists the singleton LinkedIn connection record
type ConnectionStorage interface {
	// GetConfig returns nil, nil when no connection has ever been configured
	GetConfig(ctx context.Context) (*models.ConnectionConfig, error)

	SaveCredentialsConfig(ctx context.Context, email, encryptedPassword string, status models.ConnectionStatus) (*models.ConnectionConfig, error)
	SaveCookieConfig(ctx context.Context, encryptedCookie string, status models.ConnectionStatus) (*models.ConnectionConfig, error)
	SaveManualConfig(ctx context.Context, status models.ConnectionStatus) (*models.ConnectionConfig, error)

	// UpdateStatus clears the error message unless status is error
	UpdateStatus(ctx context.Context, status models.ConnectionStatus, errorMessage string) (*models.ConnectionConfig, error)
	UpdateLastConnected(ctx context.Context) (*models.ConnectionConfig, error)
	DeleteConfig(ctx context.Context) (bool, error)
}

// RateLimitStorage persists the singleton rate limit state. Update runs fn
// inside a single transaction and retries on write conflicts.
type RateLimitStorage interface {
	Get(ctx context.Context) (*models.RateLimitState, error)
	Update(ctx context.Context, fn func(state *models.RateLimitState) error) (*models.RateLimitState, error)
}

// SearchSessionStorage persists background search sessions
type SearchSessionStorage interface {
	CreateSession(ctx context.Context, session *models.SearchSession) error
	GetSession(ctx context.Context, id string) (*models.SearchSession, error)

	// AppendResults appends records and increments EntitiesSearched by searched
	// in one transaction. Sessions already in a terminal status are left untouched.
	AppendResults(ctx context.Context, id string, results []models.ContactRecord, searched int) (*models.SearchSession, error)
	CompleteSession(ctx context.Context, id string, status models.SessionStatus, errorMessage string) error

	FindCompletedSince(ctx context.Context, ownerID string, since time.Time) ([]*models.SearchSession, error)
	ListByOwner(ctx context.Context, ownerID string, offset, limit int) ([]*models.SearchSession, int, error)
	ListByStatus(ctx context.Context, status models.SessionStatus) ([]*models.SearchSession, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// StorageManager exposes every storage of the service
type StorageManager interface {
	ConnectionStorage() ConnectionStorage
	RateLimitStorage() RateLimitStorage
	SearchSessionStorage() SearchSessionStorage
	KeyValueStorage() KeyValueStorage
	DB() interface{}
	Close() error
}
