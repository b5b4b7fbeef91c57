package handlers

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/davidR-jmd/fb-leads/internal/models"
	"github.com/davidR-jmd/fb-leads/internal/services/search"
	"github.com/ternarybob/arbor"
)

// CooldownReporter reports how long searches stay blocked
type CooldownReporter interface {
	CooldownRemaining(ctx context.Context) (time.Duration, error)
}

// clientErrors are expected conditions reported to the caller as 400
var clientErrors = []error{
	models.ErrNotConfigured,
	models.ErrAuthentication,
	models.ErrVerificationRequired,
	models.ErrBrowserNotRunning,
	models.ErrInvalidVerificationCode,
	search.ErrInvalidRequest,
}

// StatusForError maps a service error to an HTTP status code
func StatusForError(err error) int {
	switch {
	case errors.Is(err, models.ErrBrowserBusy):
		return http.StatusConflict
	case errors.Is(err, models.ErrRateLimitExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, models.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrConnection):
		return http.StatusBadGateway
	}
	for _, kind := range clientErrors {
		if errors.Is(err, kind) {
			return http.StatusBadRequest
		}
	}
	return http.StatusInternalServerError
}

// writeServiceError writes the mapped status. Unexpected errors are logged
// and hidden from the caller. Rate limit responses carry Retry-After while a
// cooldown is active.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, cooldown CooldownReporter, logger arbor.ILogger) {
	status := StatusForError(err)

	if status == http.StatusInternalServerError {
		logger.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
		WriteError(w, status, "Internal server error")
		return
	}

	if status == http.StatusTooManyRequests && cooldown != nil {
		if remaining, cerr := cooldown.CooldownRemaining(r.Context()); cerr == nil && remaining > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(remaining.Seconds()))))
		}
	}

	WriteError(w, status, clientMessage(err))
}

// clientMessage drops the error kind prefix when a detail follows it
func clientMessage(err error) string {
	msg := err.Error()
	if idx := strings.Index(msg, ": "); idx >= 0 && idx+2 < len(msg) {
		for _, kind := range append(clientErrors, models.ErrRateLimitExceeded, models.ErrBrowserBusy) {
			if strings.HasPrefix(msg, kind.Error()+": ") {
				return msg[idx+2:]
			}
		}
	}
	return msg
}
