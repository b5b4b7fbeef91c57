package interfaces

import (
	"context"

	"github.com/davidR-jmd/fb-leads/internal/models"
)

// CredentialVault encrypts secrets before they reach storage
type CredentialVault interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// RateLimiter gates every remote search
type RateLimiter interface {
	// CanProceed returns false with a human readable reason when a search must not run
	CanProceed(ctx context.Context) (bool, string, error)
	RecordUsage(ctx context.Context) error
	EndSession(ctx context.Context) error
	GetStatus(ctx context.Context) (*models.RateLimitStatus, error)
}

// BrowserDriver drives the single shared automated browser. Interactive
// operations hold the busy flag for their whole duration and fail fast with
// models.ErrBrowserBusy when it is already held.
type BrowserDriver interface {
	Launch(ctx context.Context, visible bool) error
	Close() error
	Login(ctx context.Context, email, password string) (models.ConnectionStatus, error)
	InjectSessionToken(ctx context.Context, token string) (bool, error)
	NavigateToManualLogin(ctx context.Context) error
	SubmitVerificationCode(ctx context.Context, code string) (models.ConnectionStatus, error)
	ValidateSession(ctx context.Context) (bool, error)
	SearchPeople(ctx context.Context, query string, limit int) ([]models.ContactRecord, error)
	IsRunning() bool
	IsBusy() bool
	// TryAcquire takes the busy flag, reporting false when it is already held.
	// Interactive methods take it themselves unless ctx is marked with
	// WithBrowserHeld.
	TryAcquire() bool
	Release()
}

type browserHeldKey struct{}

// WithBrowserHeld marks ctx as coming from a caller that holds the browser
// busy flag, so driver calls made with it do not try to take it again
func WithBrowserHeld(ctx context.Context) context.Context {
	return context.WithValue(ctx, browserHeldKey{}, true)
}

// BrowserHeld reports whether ctx was marked by WithBrowserHeld
func BrowserHeld(ctx context.Context) bool {
	held, _ := ctx.Value(browserHeldKey{}).(bool)
	return held
}

// PeopleSearchOptions narrows a direct people search
type PeopleSearchOptions struct {
	Limit         int
	CompanyFilter string
	KeywordFilter string
}

// DirectClient searches LinkedIn over plain HTTP with a captured session token
type DirectClient interface {
	SetSessionToken(token string)
	HasSessionToken() bool
	ValidateSession(ctx context.Context) (bool, error)
	SearchPeople(ctx context.Context, query string, opts PeopleSearchOptions) ([]models.ContactRecord, error)
	Close()
}

// DirectSessionProvider makes sure the direct client carries the stored session token
type DirectSessionProvider interface {
	EnsureDirectSession(ctx context.Context) error
}

// ConnectionService is the authoritative owner of the LinkedIn connection
type ConnectionService interface {
	DirectSessionProvider
	Initialize(ctx context.Context) error
	GetStatus(ctx context.Context) (*models.ConnectionSnapshot, error)
	Connect(ctx context.Context, email, password string) (*models.ConnectResult, error)
	ConnectWithCookie(ctx context.Context, cookie string) (*models.ConnectResult, error)
	OpenBrowserForManualLogin(ctx context.Context) (*models.ConnectResult, error)
	VerifyCode(ctx context.Context, code string) (*models.ConnectResult, error)
	ValidateSession(ctx context.Context) (*models.ConnectResult, error)
	Search(ctx context.Context, query string, limit int) ([]models.ContactRecord, error)
	Disconnect(ctx context.Context) error
	CloseBrowser(ctx context.Context) error
}

// SearchSessionService runs and serves background company x keyword searches
type SearchSessionService interface {
	StartSession(ctx context.Context, ownerID string, entities, keywords []string, perEntityLimit int) (string, bool, error)
	GetSessionStatus(ctx context.Context, ownerID, sessionID string) (*models.SessionStatusView, error)
	GetSessionResults(ctx context.Context, ownerID, sessionID string, page, pageSize int) (*models.ResultsPage, error)
	ListSessions(ctx context.Context, ownerID string, page, pageSize int) (*models.SessionHistoryPage, error)
	ResumeInterrupted(ctx context.Context) (int, error)
	PruneOlderThan(ctx context.Context, retentionDays int) (int, error)
}

// EventPublisher announces session lifecycle events to other services
type EventPublisher interface {
	PublishSessionFinished(ctx context.Context, session *models.SearchSession) error
	Close() error
}
