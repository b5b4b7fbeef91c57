package models

import "time"

// ConnectionConfigKey is the fixed storage key of the singleton connection record
const ConnectionConfigKey = "linkedin_connection"

// ConnectionStatus is the authentication state of the LinkedIn integration
type ConnectionStatus string

const (
	ConnectionStatusDisconnected        ConnectionStatus = "disconnected"
	ConnectionStatusConnecting          ConnectionStatus = "connecting"
	ConnectionStatusNeedEmailCode       ConnectionStatus = "need_email_code"
	ConnectionStatusNeedManualLogin     ConnectionStatus = "need_manual_login"
	ConnectionStatusAwaitingManualLogin ConnectionStatus = "awaiting_manual_login"
	ConnectionStatusConnected           ConnectionStatus = "connected"
	ConnectionStatusBusy                ConnectionStatus = "busy"
	ConnectionStatusError               ConnectionStatus = "error"
)

// AuthMethod identifies which channel authenticated the integration
type AuthMethod string

const (
	AuthMethodCookie      AuthMethod = "cookie"
	AuthMethodCredentials AuthMethod = "credentials"
	AuthMethodManual      AuthMethod = "manual"
)

// ConnectionConfig is the single persisted record describing how the service
// is authenticated to LinkedIn. Only the secret matching AuthMethod is set.
type ConnectionConfig struct {
	ID                string           `json:"id" badgerhold:"key"`
	Status            ConnectionStatus `json:"status"`
	AuthMethod        AuthMethod       `json:"auth_method,omitempty"`
	Email             string           `json:"email,omitempty"`
	EncryptedPassword string           `json:"-"`
	EncryptedCookie   string           `json:"-"`
	ErrorMessage      string           `json:"error_message,omitempty"`
	LastConnectedAt   *time.Time       `json:"last_connected_at,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// HasSecret reports whether a usable secret is stored for the auth method
func (c *ConnectionConfig) HasSecret() bool {
	if c == nil {
		return false
	}
	switch c.AuthMethod {
	case AuthMethodCookie:
		return c.EncryptedCookie != ""
	case AuthMethodCredentials:
		return c.Email != "" && c.EncryptedPassword != ""
	}
	return false
}

// ConnectionSnapshot is the caller-facing view of ConnectionConfig
type ConnectionSnapshot struct {
	Status          ConnectionStatus `json:"status"`
	AuthMethod      AuthMethod       `json:"auth_method,omitempty"`
	Email           string           `json:"email,omitempty"`
	ErrorMessage    string           `json:"error_message,omitempty"`
	LastConnectedAt *time.Time       `json:"last_connected_at,omitempty"`
	BrowserRunning  bool             `json:"browser_running"`
	BrowserBusy     bool             `json:"browser_busy"`
}

// ConnectResult is returned by every connect/verify/validate operation
type ConnectResult struct {
	Status  ConnectionStatus `json:"status"`
	Message string           `json:"message"`
}
