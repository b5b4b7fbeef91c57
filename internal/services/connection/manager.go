// Package connection owns the LinkedIn connection state machine: credential
// and cookie connects, verification codes, manual login and revalidation.
package connection

import (
	"context"
	"errors"
	"fmt"

	"github.com/davidR-jmd/fb-leads/internal/interfaces"
	"github.com/davidR-jmd/fb-leads/internal/models"
	"github.com/ternarybob/arbor"
)

const (
	msgConnected          = "Successfully connected to LinkedIn"
	msgNeedEmailCode      = "Please enter the verification code sent to your email"
	msgNeedManualLogin    = "Manual login required (captcha or phone verification)"
	msgBadCredentials     = "Failed to connect - please check your credentials"
	msgCookieInvalid      = "Cookie is invalid or expired - please get a fresh cookie from your browser"
	msgCookieStatusError  = "Cookie is invalid or expired"
	msgBrowserOpened      = "Browser opened - please log in manually, then click 'Validate Session'"
	msgVerified           = "Verification successful"
	msgInvalidCode        = "Invalid verification code"
	msgSessionValidated   = "Session validated - LinkedIn is connected"
	msgSessionInvalid     = "Session not valid - please log in"
	defaultMinCookieLen   = 100
	defaultMaxSearchLimit = 100
	defaultSearchLimit    = 10
)

// Config tunes the manager
type Config struct {
	MinCookieLength    int
	DefaultSearchLimit int
	MaxSearchLimit     int
}

// Manager implements interfaces.ConnectionService
type Manager struct {
	storage interfaces.ConnectionStorage
	vault   interfaces.CredentialVault
	driver  interfaces.BrowserDriver
	direct  interfaces.DirectClient
	limiter interfaces.RateLimiter
	config  Config
	logger  arbor.ILogger
}

var _ interfaces.ConnectionService = (*Manager)(nil)

// NewManager creates the connection manager
func NewManager(
	storage interfaces.ConnectionStorage,
	vault interfaces.CredentialVault,
	driver interfaces.BrowserDriver,
	direct interfaces.DirectClient,
	limiter interfaces.RateLimiter,
	config Config,
	logger arbor.ILogger,
) *Manager {
	if config.MinCookieLength <= 0 {
		config.MinCookieLength = defaultMinCookieLen
	}
	if config.MaxSearchLimit <= 0 {
		config.MaxSearchLimit = defaultMaxSearchLimit
	}
	if config.DefaultSearchLimit <= 0 {
		config.DefaultSearchLimit = defaultSearchLimit
	}
	return &Manager{
		storage: storage,
		vault:   vault,
		driver:  driver,
		direct:  direct,
		limiter: limiter,
		config:  config,
		logger:  logger,
	}
}

func result(status models.ConnectionStatus, message string) *models.ConnectResult {
	return &models.ConnectResult{Status: status, Message: message}
}

// markConnected records a successful connection
func (m *Manager) markConnected(ctx context.Context) error {
	if _, err := m.storage.UpdateStatus(ctx, models.ConnectionStatusConnected, ""); err != nil {
		return err
	}
	_, err := m.storage.UpdateLastConnected(ctx)
	return err
}

// fail moves the connection to Error with the failure message and returns err
func (m *Manager) fail(ctx context.Context, operation string, err error) error {
	m.logger.Error().Err(err).Str("operation", operation).Msg("LinkedIn connection operation failed")
	if _, updateErr := m.storage.UpdateStatus(ctx, models.ConnectionStatusError, err.Error()); updateErr != nil {
		m.logger.Warn().Err(updateErr).Msg("Failed to record connection error")
	}
	return err
}

// Initialize silently revalidates a persisted Connected status. Any failure
// demotes the connection to Disconnected.
func (m *Manager) Initialize(ctx context.Context) error {
	config, err := m.storage.GetConfig(ctx)
	if err != nil {
		return fmt.Errorf("failed to load connection config: %w", err)
	}
	if config == nil {
		m.logger.Info().Msg("No LinkedIn config found, skipping initialization")
		return nil
	}
	if config.Status != models.ConnectionStatusConnected {
		m.logger.Info().Str("status", string(config.Status)).Msg("LinkedIn not connected, skipping initialization")
		return nil
	}

	m.logger.Info().Str("auth_method", string(config.AuthMethod)).Msg("Attempting to restore LinkedIn session")

	valid, err := m.revalidate(ctx, config)
	if err != nil {
		m.logger.Warn().Err(err).Msg("Failed to restore LinkedIn session")
	}
	if valid {
		m.logger.Info().Msg("LinkedIn session restored")
		return nil
	}

	m.logger.Warn().Msg("LinkedIn session expired, marking as disconnected")
	if _, err := m.storage.UpdateStatus(ctx, models.ConnectionStatusDisconnected, ""); err != nil {
		return fmt.Errorf("failed to demote connection: %w", err)
	}
	if config.AuthMethod != models.AuthMethodCookie {
		_ = m.driver.Close()
	}
	return nil
}

// revalidate probes whichever channel the config authenticates
func (m *Manager) revalidate(ctx context.Context, config *models.ConnectionConfig) (bool, error) {
	if config != nil && config.AuthMethod == models.AuthMethodCookie {
		if err := m.restoreCookie(config); err != nil {
			return false, err
		}
		return m.direct.ValidateSession(ctx)
	}

	if !m.driver.IsRunning() {
		if err := m.driver.Launch(ctx, false); err != nil {
			return false, err
		}
	}
	return m.driver.ValidateSession(ctx)
}

// GetStatus returns the caller-facing connection snapshot
func (m *Manager) GetStatus(ctx context.Context) (*models.ConnectionSnapshot, error) {
	config, err := m.storage.GetConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load connection config: %w", err)
	}

	snapshot := &models.ConnectionSnapshot{
		Status:         models.ConnectionStatusDisconnected,
		BrowserRunning: m.driver.IsRunning(),
		BrowserBusy:    m.driver.IsBusy(),
	}
	if config != nil {
		snapshot.Status = config.Status
		snapshot.AuthMethod = config.AuthMethod
		snapshot.Email = config.Email
		snapshot.ErrorMessage = config.ErrorMessage
		snapshot.LastConnectedAt = config.LastConnectedAt
	}
	return snapshot, nil
}

// Connect logs in with credentials through the browser
func (m *Manager) Connect(ctx context.Context, email, password string) (*models.ConnectResult, error) {
	// Hold the flag across the save and the login so a concurrent caller
	// cannot overwrite the stored config and then lose the browser
	if !m.driver.TryAcquire() {
		return nil, models.ErrBrowserBusy
	}
	defer m.driver.Release()
	ctx = interfaces.WithBrowserHeld(ctx)

	encrypted, err := m.vault.Encrypt(password)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt password: %w", err)
	}
	if _, err := m.storage.SaveCredentialsConfig(ctx, email, encrypted, models.ConnectionStatusConnecting); err != nil {
		return nil, fmt.Errorf("failed to save credentials: %w", err)
	}

	status, err := m.driver.Login(ctx, email, password)
	if err != nil {
		return nil, m.fail(ctx, "connect", err)
	}

	m.logger.Info().Str("email", email).Str("status", string(status)).Msg("LinkedIn credential login finished")

	switch status {
	case models.ConnectionStatusConnected:
		if err := m.markConnected(ctx); err != nil {
			return nil, err
		}
		return result(status, msgConnected), nil

	case models.ConnectionStatusNeedEmailCode:
		if _, err := m.storage.UpdateStatus(ctx, status, ""); err != nil {
			return nil, err
		}
		return result(status, msgNeedEmailCode), nil

	case models.ConnectionStatusNeedManualLogin:
		if _, err := m.storage.UpdateStatus(ctx, status, ""); err != nil {
			return nil, err
		}
		return result(status, msgNeedManualLogin), nil
	}

	if _, err := m.storage.UpdateStatus(ctx, models.ConnectionStatusError, msgBadCredentials); err != nil {
		return nil, err
	}
	return result(models.ConnectionStatusError, msgBadCredentials), nil
}

// ConnectWithCookie validates an li_at token over plain HTTP and stores it
// encrypted. The browser is never involved.
func (m *Manager) ConnectWithCookie(ctx context.Context, cookie string) (*models.ConnectResult, error) {
	cookie = trimCookie(cookie)
	if len(cookie) < m.config.MinCookieLength {
		return result(models.ConnectionStatusError,
			fmt.Sprintf("Cookie too short (%d chars). A valid li_at cookie is 300+ characters.", len(cookie))), nil
	}

	m.direct.SetSessionToken(cookie)

	m.logger.Info().Int("cookie_length", len(cookie)).Msg("Validating cookie via direct client")
	valid, err := m.direct.ValidateSession(ctx)
	if err != nil {
		m.logger.Warn().Err(err).Msg("Cookie validation request failed")
	}

	if !valid {
		m.direct.SetSessionToken("")
		if err := m.purgeCookie(ctx); err != nil {
			return nil, err
		}
		if _, err := m.storage.UpdateStatus(ctx, models.ConnectionStatusError, msgCookieStatusError); err != nil {
			return nil, err
		}
		return result(models.ConnectionStatusError, msgCookieInvalid), nil
	}

	encrypted, err := m.vault.Encrypt(cookie)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt cookie: %w", err)
	}
	if _, err := m.storage.SaveCookieConfig(ctx, encrypted, models.ConnectionStatusConnected); err != nil {
		return nil, fmt.Errorf("failed to save cookie: %w", err)
	}
	if _, err := m.storage.UpdateLastConnected(ctx); err != nil {
		return nil, err
	}

	m.logger.Info().Msg("Connected to LinkedIn via cookie")
	return result(models.ConnectionStatusConnected, msgConnected), nil
}

// OpenBrowserForManualLogin opens a visible login page for the operator
func (m *Manager) OpenBrowserForManualLogin(ctx context.Context) (*models.ConnectResult, error) {
	if !m.driver.TryAcquire() {
		return nil, models.ErrBrowserBusy
	}
	defer m.driver.Release()
	ctx = interfaces.WithBrowserHeld(ctx)

	if _, err := m.storage.SaveManualConfig(ctx, models.ConnectionStatusAwaitingManualLogin); err != nil {
		return nil, fmt.Errorf("failed to save manual config: %w", err)
	}

	if err := m.driver.NavigateToManualLogin(ctx); err != nil {
		return nil, m.fail(ctx, "open_browser", err)
	}

	m.logger.Info().Msg("Browser opened for manual login")
	return result(models.ConnectionStatusAwaitingManualLogin, msgBrowserOpened), nil
}

// VerifyCode submits the emailed verification code
func (m *Manager) VerifyCode(ctx context.Context, code string) (*models.ConnectResult, error) {
	if !m.driver.IsRunning() {
		return nil, models.ErrBrowserNotRunning
	}
	if m.driver.IsBusy() {
		return nil, models.ErrBrowserBusy
	}

	status, err := m.driver.SubmitVerificationCode(ctx, code)
	if errors.Is(err, models.ErrBrowserBusy) || errors.Is(err, models.ErrBrowserNotRunning) {
		return nil, err
	}
	if err != nil {
		m.logger.Warn().Err(err).Msg("Verification code submission failed")
	}

	if err == nil && status == models.ConnectionStatusConnected {
		if err := m.markConnected(ctx); err != nil {
			return nil, err
		}
		return result(status, msgVerified), nil
	}

	if _, err := m.storage.UpdateStatus(ctx, models.ConnectionStatusError, msgInvalidCode); err != nil {
		return nil, err
	}
	return result(models.ConnectionStatusError, msgInvalidCode), nil
}

// ValidateSession revalidates the active channel and syncs the stored status
func (m *Manager) ValidateSession(ctx context.Context) (*models.ConnectResult, error) {
	config, err := m.storage.GetConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load connection config: %w", err)
	}

	valid, err := m.revalidate(ctx, config)
	if errors.Is(err, models.ErrBrowserBusy) {
		return nil, err
	}
	if err != nil {
		m.logger.Warn().Err(err).Msg("Session validation failed")
	}

	if valid {
		if config == nil {
			if _, err := m.storage.SaveManualConfig(ctx, models.ConnectionStatusConnected); err != nil {
				return nil, err
			}
		}
		if err := m.markConnected(ctx); err != nil {
			return nil, err
		}
		m.logger.Info().Msg("Session validated and marked as connected")
		return result(models.ConnectionStatusConnected, msgSessionValidated), nil
	}

	if _, err := m.storage.UpdateStatus(ctx, models.ConnectionStatusDisconnected, ""); err != nil {
		return nil, err
	}
	m.logger.Warn().Msg("Session validation failed - not logged in")
	return result(models.ConnectionStatusDisconnected, msgSessionInvalid), nil
}

// Search runs a single rate-limited people search on the active channel
func (m *Manager) Search(ctx context.Context, query string, limit int) ([]models.ContactRecord, error) {
	if limit <= 0 {
		limit = m.config.DefaultSearchLimit
	}
	if limit > m.config.MaxSearchLimit {
		limit = m.config.MaxSearchLimit
	}

	config, err := m.storage.GetConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load connection config: %w", err)
	}
	if config == nil || config.Status != models.ConnectionStatusConnected {
		return nil, models.ErrNotConfigured
	}

	allowed, reason, err := m.limiter.CanProceed(ctx)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, fmt.Errorf("%w: %s", models.ErrRateLimitExceeded, reason)
	}

	var contacts []models.ContactRecord
	if config.AuthMethod == models.AuthMethodCookie {
		if err := m.EnsureDirectSession(ctx); err != nil {
			return nil, err
		}
		contacts, err = m.direct.SearchPeople(ctx, query, interfaces.PeopleSearchOptions{Limit: limit})
	} else {
		if !m.driver.IsRunning() {
			if err := m.autoReconnect(ctx, config); err != nil {
				return nil, err
			}
		}
		if m.driver.IsBusy() {
			return nil, models.ErrBrowserBusy
		}
		contacts, err = m.driver.SearchPeople(ctx, query, limit)
	}

	if errors.Is(err, models.ErrBrowserBusy) {
		return nil, err
	}
	if usageErr := m.limiter.RecordUsage(ctx); usageErr != nil {
		m.logger.Warn().Err(usageErr).Msg("Failed to record search usage")
	}
	if err != nil {
		return nil, err
	}

	m.logger.Info().Str("query", query).Int("contacts", len(contacts)).Msg("LinkedIn search completed")
	return contacts, nil
}

// autoReconnect logs the browser back in with the stored credentials
func (m *Manager) autoReconnect(ctx context.Context, config *models.ConnectionConfig) error {
	if config.Email == "" || config.EncryptedPassword == "" {
		return fmt.Errorf("%w: no stored credentials to reconnect", models.ErrNotConfigured)
	}

	password, err := m.vault.Decrypt(config.EncryptedPassword)
	if err != nil {
		return fmt.Errorf("failed to decrypt password: %w", err)
	}

	m.logger.Info().Str("email", config.Email).Msg("Browser not running, reconnecting with stored credentials")
	status, err := m.driver.Login(ctx, config.Email, password)
	if err != nil {
		return err
	}
	if status != models.ConnectionStatusConnected {
		if _, err := m.storage.UpdateStatus(ctx, models.ConnectionStatusDisconnected, ""); err != nil {
			return err
		}
		return fmt.Errorf("%w: reconnect ended in %s", models.ErrNotConfigured, status)
	}

	return m.markConnected(ctx)
}

// purgeCookie drops a previously stored cookie after a rejected replacement
func (m *Manager) purgeCookie(ctx context.Context) error {
	config, err := m.storage.GetConfig(ctx)
	if err != nil {
		return fmt.Errorf("failed to load connection config: %w", err)
	}
	if config == nil || config.EncryptedCookie == "" {
		return nil
	}
	if _, err := m.storage.SaveCookieConfig(ctx, "", models.ConnectionStatusError); err != nil {
		return fmt.Errorf("failed to purge stored cookie: %w", err)
	}
	return nil
}

// EnsureDirectSession makes the direct client usable for background work.
// Only a connected cookie session qualifies; a demoted or browser-based
// connection yields ErrNotConfigured.
func (m *Manager) EnsureDirectSession(ctx context.Context) error {
	config, err := m.storage.GetConfig(ctx)
	if err != nil {
		return fmt.Errorf("failed to load connection config: %w", err)
	}
	if config == nil || config.AuthMethod != models.AuthMethodCookie {
		return fmt.Errorf("%w: no cookie session configured", models.ErrNotConfigured)
	}
	if config.Status != models.ConnectionStatusConnected {
		return fmt.Errorf("%w: cookie session is %s", models.ErrNotConfigured, config.Status)
	}
	return m.restoreCookie(config)
}

// restoreCookie installs the stored cookie unless the client already has one
func (m *Manager) restoreCookie(config *models.ConnectionConfig) error {
	if m.direct.HasSessionToken() {
		return nil
	}
	if config.EncryptedCookie == "" {
		return fmt.Errorf("%w: no session cookie stored", models.ErrNotConfigured)
	}

	cookie, err := m.vault.Decrypt(config.EncryptedCookie)
	if err != nil {
		return fmt.Errorf("failed to decrypt cookie: %w", err)
	}
	m.direct.SetSessionToken(cookie)
	return nil
}

// Disconnect closes the browser and purges the stored secret
func (m *Manager) Disconnect(ctx context.Context) error {
	if err := m.driver.Close(); err != nil {
		m.logger.Warn().Err(err).Msg("Failed to close browser on disconnect")
	}
	m.direct.SetSessionToken("")

	if _, err := m.storage.DeleteConfig(ctx); err != nil {
		return fmt.Errorf("failed to delete connection config: %w", err)
	}

	m.logger.Info().Msg("LinkedIn disconnected and credentials cleared")
	return nil
}

// CloseBrowser tears down a stuck browser
func (m *Manager) CloseBrowser(ctx context.Context) error {
	if err := m.driver.Close(); err != nil {
		return err
	}
	m.logger.Info().Msg("Browser closed manually")
	return nil
}
