package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/davidR-jmd/fb-leads/internal/common"
	"github.com/davidR-jmd/fb-leads/internal/handlers"
	"github.com/golang-jwt/jwt/v5"
)

var errMissingToken = errors.New("missing bearer token")

// TokenVerifier resolves HS256 bearer tokens into caller identities
type TokenVerifier struct {
	secret     []byte
	adminClaim string
	issuer     string
}

// NewTokenVerifier builds a verifier from the auth configuration
func NewTokenVerifier(config common.AuthConfig) (*TokenVerifier, error) {
	if config.JWTSecret == "" {
		return nil, fmt.Errorf("auth.jwt_secret is required")
	}
	adminClaim := config.AdminClaim
	if adminClaim == "" {
		adminClaim = "admin"
	}
	return &TokenVerifier{
		secret:     []byte(config.JWTSecret),
		adminClaim: adminClaim,
		issuer:     config.Issuer,
	}, nil
}

// Verify checks the signature, expiry and issuer, and requires a subject
func (v *TokenVerifier) Verify(raw string) (handlers.Identity, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return handlers.Identity{}, err
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return handlers.Identity{}, fmt.Errorf("token has no subject")
	}

	admin, _ := claims[v.adminClaim].(bool)
	return handlers.Identity{Subject: subject, Admin: admin}, nil
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", errMissingToken
	}
	return strings.TrimSpace(token), nil
}

// requireUser rejects requests without a valid token
func (s *Server) requireUser(next http.HandlerFunc) http.HandlerFunc {
	return s.authenticate(next, false)
}

// requireAdmin additionally demands the admin claim
func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return s.authenticate(next, true)
}

func (s *Server) authenticate(next http.HandlerFunc, admin bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, err := bearerToken(r)
		if err != nil {
			w.Header().Set("WWW-Authenticate", "Bearer")
			handlers.WriteError(w, http.StatusUnauthorized, "Not authenticated")
			return
		}

		identity, err := s.verifier.Verify(raw)
		if err != nil {
			s.app.Logger.Debug().Err(err).Str("path", r.URL.Path).Msg("Rejected bearer token")
			w.Header().Set("WWW-Authenticate", "Bearer")
			handlers.WriteError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		if admin && !identity.Admin {
			handlers.WriteError(w, http.StatusForbidden, "Admin role required")
			return
		}

		next(w, r.WithContext(handlers.WithIdentity(r.Context(), identity)))
	}
}
