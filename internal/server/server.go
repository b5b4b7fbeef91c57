package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/davidR-jmd/fb-leads/internal/app"
)

// Server manages the HTTP server and routes
type Server struct {
	app      *app.App
	verifier *TokenVerifier
	router   *http.ServeMux
	server   *http.Server
}

// New creates a new HTTP server with the given app
func New(application *app.App) (*Server, error) {
	verifier, err := NewTokenVerifier(application.Config.Auth)
	if err != nil {
		return nil, err
	}

	s := &Server{
		app:      application,
		verifier: verifier,
	}
	s.router = s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", application.Config.Server.Host, application.Config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.withMiddleware(s.router),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      3 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	return s, nil
}

// Handler exposes the full middleware chain
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.app.Logger.Info().
		Str("address", s.server.Addr).
		Msg("HTTP server starting")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.app.Logger.Info().Msg("Shutting down HTTP server...")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.app.Logger.Info().Msg("HTTP server stopped")
	return nil
}
