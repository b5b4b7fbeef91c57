package browser

import (
	"strings"

	"github.com/davidR-jmd/fb-leads/internal/models"
)

var loggedInPaths = []string{"/feed", "/mynetwork", "/jobs", "/messaging", "/notifications", "/in/"}

// IsFeedURL reports whether url is the authenticated home feed
func IsFeedURL(url string) bool {
	return strings.Contains(strings.ToLower(url), "/feed")
}

// IsLoginURL reports whether url is a login form
func IsLoginURL(url string) bool {
	lower := strings.ToLower(url)
	return strings.Contains(lower, "/login") || strings.Contains(lower, "/uas/login")
}

// IsChallengeURL reports whether url is a security checkpoint
func IsChallengeURL(url string) bool {
	return strings.Contains(strings.ToLower(url), "/checkpoint")
}

// IsLoggedInURL reports whether url is only reachable with a session
func IsLoggedInURL(url string) bool {
	lower := strings.ToLower(url)
	for _, path := range loggedInPaths {
		if strings.Contains(lower, path) {
			return true
		}
	}
	return false
}

// ClassifyLoginOutcome maps the page reached after submitting credentials to a
// connection status. hasCodeInput tells whether a checkpoint page carries a
// verification code field.
func ClassifyLoginOutcome(url string, hasCodeInput bool) models.ConnectionStatus {
	switch {
	case IsFeedURL(url):
		return models.ConnectionStatusConnected
	case IsChallengeURL(url):
		if hasCodeInput {
			return models.ConnectionStatusNeedEmailCode
		}
		return models.ConnectionStatusNeedManualLogin
	default:
		// still on the login form means rejected credentials
		return models.ConnectionStatusError
	}
}

// ClassifyVerificationOutcome maps the page reached after submitting a code.
// hasError is set when the page shows a form error, hasPinInput when the
// checkpoint still asks for a code.
func ClassifyVerificationOutcome(url string, hasError, hasPinInput bool) models.ConnectionStatus {
	switch {
	case IsFeedURL(url) || IsLoggedInURL(url):
		return models.ConnectionStatusConnected
	case hasError:
		return models.ConnectionStatusNeedEmailCode
	case IsChallengeURL(url):
		if hasPinInput {
			return models.ConnectionStatusNeedEmailCode
		}
		return models.ConnectionStatusNeedManualLogin
	default:
		return models.ConnectionStatusError
	}
}
