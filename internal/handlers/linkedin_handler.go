package handlers

import (
	"net/http"
	"time"

	"github.com/davidR-jmd/fb-leads/internal/interfaces"
	"github.com/davidR-jmd/fb-leads/internal/models"
	"github.com/ternarybob/arbor"
)

type connectRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type cookieRequest struct {
	Cookie string `json:"cookie" validate:"required"`
}

type verifyCodeRequest struct {
	Code string `json:"code" validate:"required,min=4,max=12"`
}

type searchRequest struct {
	Query string `json:"query" validate:"required,max=500"`
	Limit int    `json:"limit" validate:"gte=0,lte=100"`
}

type statusResponse struct {
	Status         models.ConnectionStatus `json:"status"`
	Email          string                  `json:"email,omitempty"`
	LastConnected  *time.Time              `json:"last_connected,omitempty"`
	ErrorMessage   string                  `json:"error_message,omitempty"`
	AuthMethod     models.AuthMethod       `json:"auth_method,omitempty"`
	BrowserRunning bool                    `json:"browser_running"`
	BrowserBusy    bool                    `json:"browser_busy"`
}

type searchResponse struct {
	Contacts   []models.ContactRecord `json:"contacts"`
	Query      string                 `json:"query"`
	TotalFound int                    `json:"total_found"`
}

// LinkedInHandler serves the connection lifecycle and single searches
type LinkedInHandler struct {
	connection interfaces.ConnectionService
	limiter    interfaces.RateLimiter
	cooldown   CooldownReporter
	logger     arbor.ILogger
}

// NewLinkedInHandler creates the LinkedIn connection handler
func NewLinkedInHandler(connection interfaces.ConnectionService, limiter interfaces.RateLimiter, cooldown CooldownReporter, logger arbor.ILogger) *LinkedInHandler {
	return &LinkedInHandler{
		connection: connection,
		limiter:    limiter,
		cooldown:   cooldown,
		logger:     logger,
	}
}

func (h *LinkedInHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	writeServiceError(w, r, err, h.cooldown, h.logger)
}

// StatusHandler handles GET /api/linkedin/status
func (h *LinkedInHandler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.connection.GetStatus(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, statusResponse{
		Status:         snapshot.Status,
		Email:          snapshot.Email,
		LastConnected:  snapshot.LastConnectedAt,
		ErrorMessage:   snapshot.ErrorMessage,
		AuthMethod:     snapshot.AuthMethod,
		BrowserRunning: snapshot.BrowserRunning,
		BrowserBusy:    snapshot.BrowserBusy,
	})
}

// ConnectHandler handles POST /api/linkedin/connect
func (h *LinkedInHandler) ConnectHandler(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if !DecodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.connection.Connect(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

// ConnectCookieHandler handles POST /api/linkedin/connect-cookie
func (h *LinkedInHandler) ConnectCookieHandler(w http.ResponseWriter, r *http.Request) {
	var req cookieRequest
	if !DecodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.connection.ConnectWithCookie(r.Context(), req.Cookie)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

// OpenBrowserHandler handles POST /api/linkedin/open-browser
func (h *LinkedInHandler) OpenBrowserHandler(w http.ResponseWriter, r *http.Request) {
	result, err := h.connection.OpenBrowserForManualLogin(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

// VerifyCodeHandler handles POST /api/linkedin/verify-code
func (h *LinkedInHandler) VerifyCodeHandler(w http.ResponseWriter, r *http.Request) {
	var req verifyCodeRequest
	if !DecodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.connection.VerifyCode(r.Context(), req.Code)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

// ValidateSessionHandler handles POST /api/linkedin/validate-session
func (h *LinkedInHandler) ValidateSessionHandler(w http.ResponseWriter, r *http.Request) {
	result, err := h.connection.ValidateSession(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

// DisconnectHandler handles POST /api/linkedin/disconnect
func (h *LinkedInHandler) DisconnectHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.connection.Disconnect(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	WriteMessage(w, "LinkedIn disconnected successfully")
}

// CloseBrowserHandler handles POST /api/linkedin/close-browser
func (h *LinkedInHandler) CloseBrowserHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.connection.CloseBrowser(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	WriteMessage(w, "Browser closed successfully")
}

// SearchHandler handles POST /api/linkedin/search
func (h *LinkedInHandler) SearchHandler(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !DecodeAndValidate(w, r, &req) {
		return
	}

	contacts, err := h.connection.Search(r.Context(), req.Query, req.Limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if contacts == nil {
		contacts = []models.ContactRecord{}
	}

	WriteJSON(w, http.StatusOK, searchResponse{
		Contacts:   contacts,
		Query:      req.Query,
		TotalFound: len(contacts),
	})
}

// RateLimitHandler handles GET /api/linkedin/rate-limit
func (h *LinkedInHandler) RateLimitHandler(w http.ResponseWriter, r *http.Request) {
	status, err := h.limiter.GetStatus(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, status)
}
