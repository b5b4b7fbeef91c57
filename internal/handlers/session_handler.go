package handlers

import (
	"net/http"
	"time"

	"github.com/davidR-jmd/fb-leads/internal/interfaces"
	"github.com/davidR-jmd/fb-leads/internal/models"
	"github.com/ternarybob/arbor"
)

type startSessionRequest struct {
	Companies       []string `json:"companies" validate:"required,min=1,dive,max=200"`
	Keywords        []string `json:"keywords" validate:"omitempty,dive,max=200"`
	LimitPerCompany int      `json:"limit_per_company" validate:"gte=0"`
}

type startSessionResponse struct {
	SessionID     string               `json:"session_id"`
	Status        models.SessionStatus `json:"status"`
	TotalSearches int                  `json:"total_companies"`
	Cached        bool                 `json:"cached"`
	Message       string               `json:"message"`
}

// SessionHandler serves background company x keyword search sessions
type SessionHandler struct {
	sessions interfaces.SearchSessionService
	cooldown CooldownReporter
	logger   arbor.ILogger
}

// NewSessionHandler creates the search session handler
func NewSessionHandler(sessions interfaces.SearchSessionService, cooldown CooldownReporter, logger arbor.ILogger) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		cooldown: cooldown,
		logger:   logger,
	}
}

func (h *SessionHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	writeServiceError(w, r, err, h.cooldown, h.logger)
}

// owner returns the caller's subject. The auth middleware guarantees one.
func owner(r *http.Request) string {
	id, _ := IdentityFromContext(r.Context())
	return id.Subject
}

// StartSessionHandler handles POST /api/linkedin/search-sessions
func (h *SessionHandler) StartSessionHandler(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if !DecodeAndValidate(w, r, &req) {
		return
	}

	id, cached, err := h.sessions.StartSession(r.Context(), owner(r), req.Companies, req.Keywords, req.LimitPerCompany)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	view, err := h.sessions.GetSessionStatus(r.Context(), owner(r), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	message := "Search started in background"
	status := http.StatusAccepted
	if cached {
		message = "Returning results of a recent identical search"
		status = http.StatusOK
	}

	WriteJSON(w, status, startSessionResponse{
		SessionID:     id,
		Status:        view.Status,
		TotalSearches: view.TotalSearches,
		Cached:        cached,
		Message:       message,
	})
}

// ListSessionsHandler handles GET /api/linkedin/search-sessions
func (h *SessionHandler) ListSessionsHandler(w http.ResponseWriter, r *http.Request) {
	page, pageSize, ok := h.paging(w, r)
	if !ok {
		return
	}

	history, err := h.sessions.ListSessions(r.Context(), owner(r), page, pageSize)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, history)
}

// SessionStatusHandler handles GET /api/linkedin/search-sessions/{id}
func (h *SessionHandler) SessionStatusHandler(w http.ResponseWriter, r *http.Request) {
	view, err := h.sessions.GetSessionStatus(r.Context(), owner(r), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, sessionStatusBody(view))
}

// SessionResultsHandler handles GET /api/linkedin/search-sessions/{id}/results
func (h *SessionHandler) SessionResultsHandler(w http.ResponseWriter, r *http.Request) {
	page, pageSize, ok := h.paging(w, r)
	if !ok {
		return
	}

	results, err := h.sessions.GetSessionResults(r.Context(), owner(r), r.PathValue("id"), page, pageSize)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, results)
}

// paging reads page and page_size. Zero values defer to the service defaults.
func (h *SessionHandler) paging(w http.ResponseWriter, r *http.Request) (int, int, bool) {
	page, err := QueryInt(r, "page", 0)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return 0, 0, false
	}
	pageSize, err := QueryInt(r, "page_size", 0)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return 0, 0, false
	}
	return page, pageSize, true
}

// sessionStatusBody renders created_at as RFC 3339 in UTC
func sessionStatusBody(view *models.SessionStatusView) map[string]interface{} {
	body := map[string]interface{}{
		"session_id":         view.SessionID,
		"status":             view.Status,
		"companies_searched": view.EntitiesSearched,
		"total_companies":    view.TotalSearches,
		"total_results":      view.TotalResults,
		"keywords":           view.Keywords,
		"created_at":         view.CreatedAt.UTC().Format(time.RFC3339),
	}
	if view.ErrorMessage != "" {
		body["error_message"] = view.ErrorMessage
	}
	return body
}
