package models

import "errors"

// Error kinds raised by the LinkedIn integration. Callers match with errors.Is.
var (
	ErrNotConfigured           = errors.New("linkedin not configured")
	ErrConnection              = errors.New("linkedin connection error")
	ErrAuthentication          = errors.New("linkedin authentication failed")
	ErrVerificationRequired    = errors.New("linkedin verification required")
	ErrBrowserBusy             = errors.New("browser is busy with another operation")
	ErrBrowserNotRunning       = errors.New("browser is not running")
	ErrInvalidVerificationCode = errors.New("invalid verification code")
	ErrRateLimitExceeded       = errors.New("linkedin rate limit exceeded")
	ErrSessionNotFound         = errors.New("search session not found")
)
