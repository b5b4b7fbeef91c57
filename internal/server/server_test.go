package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/davidR-jmd/fb-leads/internal/app"
	"github.com/davidR-jmd/fb-leads/internal/common"
	"github.com/davidR-jmd/fb-leads/internal/handlers"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

const testSecret = "test-secret-with-enough-entropy"

func sign(t *testing.T, secret string, method jwt.SigningMethod, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := common.NewDefaultConfig()
	cfg.Auth.JWTSecret = testSecret

	application := &app.App{Config: cfg, Logger: arbor.NewLogger()}
	s, err := New(application)
	require.NoError(t, err)
	return s
}

func TestNewTokenVerifier_RequiresSecret(t *testing.T) {
	_, err := NewTokenVerifier(common.AuthConfig{})
	assert.Error(t, err)
}

func TestTokenVerifier_Verify(t *testing.T) {
	v, err := NewTokenVerifier(common.AuthConfig{JWTSecret: testSecret, AdminClaim: "is_admin", Issuer: "fb-leads"})
	require.NoError(t, err)

	future := time.Now().Add(time.Hour).Unix()
	tests := []struct {
		name      string
		token     string
		wantErr   bool
		wantAdmin bool
	}{
		{
			name:  "user",
			token: sign(t, testSecret, jwt.SigningMethodHS256, jwt.MapClaims{"sub": "user-1", "iss": "fb-leads", "exp": future}),
		},
		{
			name:      "admin",
			token:     sign(t, testSecret, jwt.SigningMethodHS256, jwt.MapClaims{"sub": "root", "iss": "fb-leads", "exp": future, "is_admin": true}),
			wantAdmin: true,
		},
		{
			name:  "admin claim must be boolean",
			token: sign(t, testSecret, jwt.SigningMethodHS256, jwt.MapClaims{"sub": "root", "iss": "fb-leads", "is_admin": "yes"}),
		},
		{
			name:    "expired",
			token:   sign(t, testSecret, jwt.SigningMethodHS256, jwt.MapClaims{"sub": "user-1", "iss": "fb-leads", "exp": time.Now().Add(-time.Hour).Unix()}),
			wantErr: true,
		},
		{
			name:    "wrong secret",
			token:   sign(t, "other-secret", jwt.SigningMethodHS256, jwt.MapClaims{"sub": "user-1", "iss": "fb-leads"}),
			wantErr: true,
		},
		{
			name:    "wrong algorithm",
			token:   sign(t, testSecret, jwt.SigningMethodHS512, jwt.MapClaims{"sub": "user-1", "iss": "fb-leads"}),
			wantErr: true,
		},
		{
			name:    "wrong issuer",
			token:   sign(t, testSecret, jwt.SigningMethodHS256, jwt.MapClaims{"sub": "user-1", "iss": "someone-else"}),
			wantErr: true,
		},
		{
			name:    "no subject",
			token:   sign(t, testSecret, jwt.SigningMethodHS256, jwt.MapClaims{"iss": "fb-leads"}),
			wantErr: true,
		},
		{name: "garbage", token: "not.a.jwt", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			identity, err := v.Verify(tt.token)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, identity.Subject)
			assert.Equal(t, tt.wantAdmin, identity.Admin)
		})
	}
}

func TestAuthenticate(t *testing.T) {
	s := newTestServer(t)

	var seen handlers.Identity
	next := func(w http.ResponseWriter, r *http.Request) {
		seen, _ = handlers.IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}

	userToken := sign(t, testSecret, jwt.SigningMethodHS256, jwt.MapClaims{"sub": "user-1"})
	adminToken := sign(t, testSecret, jwt.SigningMethodHS256, jwt.MapClaims{"sub": "root", "admin": true})

	tests := []struct {
		name     string
		header   string
		admin    bool
		wantCode int
	}{
		{name: "missing header", wantCode: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic " + userToken, wantCode: http.StatusUnauthorized},
		{name: "bad token", header: "Bearer nope", wantCode: http.StatusUnauthorized},
		{name: "user on user route", header: "Bearer " + userToken, wantCode: http.StatusNoContent},
		{name: "user on admin route", header: "Bearer " + userToken, admin: true, wantCode: http.StatusForbidden},
		{name: "admin on admin route", header: "Bearer " + adminToken, admin: true, wantCode: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/linkedin/status", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			s.authenticate(next, tt.admin)(rec, req)
			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}

	assert.Equal(t, "root", seen.Subject)
}

func TestRoutes(t *testing.T) {
	s := newTestServer(t)
	handler := s.Handler()

	serve := func(method, target string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
		return rec
	}

	assert.Equal(t, http.StatusOK, serve(http.MethodGet, "/api/health").Code)
	assert.Equal(t, http.StatusOK, serve(http.MethodGet, "/api/version").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(http.MethodGet, "/api/linkedin/status").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(http.MethodPost, "/api/linkedin/connect").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(http.MethodGet, "/api/linkedin/search-sessions/ss_1/results").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, serve(http.MethodDelete, "/api/linkedin/status").Code)
	assert.Equal(t, http.StatusNotFound, serve(http.MethodGet, "/api/unknown").Code)

	preflight := serve(http.MethodOptions, "/api/linkedin/search")
	assert.Equal(t, http.StatusNoContent, preflight.Code)
	assert.Equal(t, "*", preflight.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecoveryMiddleware(t *testing.T) {
	s := newTestServer(t)
	h := s.recoveryMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
