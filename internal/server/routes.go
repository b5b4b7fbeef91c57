package server

import (
	"net/http"

	"github.com/davidR-jmd/fb-leads/internal/handlers"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	li := s.app.LinkedInHandler
	sessions := s.app.SessionHandler

	// Liveness
	mux.HandleFunc("GET /api/health", handlers.HealthHandler)
	mux.HandleFunc("GET /api/version", handlers.VersionHandler)

	// Connection lifecycle
	mux.HandleFunc("GET /api/linkedin/status", s.requireUser(li.StatusHandler))
	mux.HandleFunc("POST /api/linkedin/connect", s.requireAdmin(li.ConnectHandler))
	mux.HandleFunc("POST /api/linkedin/connect-cookie", s.requireAdmin(li.ConnectCookieHandler))
	mux.HandleFunc("POST /api/linkedin/open-browser", s.requireAdmin(li.OpenBrowserHandler))
	mux.HandleFunc("POST /api/linkedin/verify-code", s.requireAdmin(li.VerifyCodeHandler))
	mux.HandleFunc("POST /api/linkedin/validate-session", s.requireAdmin(li.ValidateSessionHandler))
	mux.HandleFunc("POST /api/linkedin/disconnect", s.requireAdmin(li.DisconnectHandler))
	mux.HandleFunc("POST /api/linkedin/close-browser", s.requireAdmin(li.CloseBrowserHandler))

	// Searching
	mux.HandleFunc("POST /api/linkedin/search", s.requireUser(li.SearchHandler))
	mux.HandleFunc("GET /api/linkedin/rate-limit", s.requireUser(li.RateLimitHandler))

	// Background search sessions
	mux.HandleFunc("POST /api/linkedin/search-sessions", s.requireUser(sessions.StartSessionHandler))
	mux.HandleFunc("GET /api/linkedin/search-sessions", s.requireUser(sessions.ListSessionsHandler))
	mux.HandleFunc("GET /api/linkedin/search-sessions/{id}", s.requireUser(sessions.SessionStatusHandler))
	mux.HandleFunc("GET /api/linkedin/search-sessions/{id}/results", s.requireUser(sessions.SessionResultsHandler))

	return mux
}
