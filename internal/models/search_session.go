package models

import (
	"strings"
	"time"
)

// SessionStatus is the lifecycle state of a background search session
type SessionStatus string

const (
	SessionStatusInProgress  SessionStatus = "in_progress"
	SessionStatusCompleted   SessionStatus = "completed"
	SessionStatusFailed      SessionStatus = "failed"
	SessionStatusRateLimited SessionStatus = "rate_limited"
)

// IsTerminal reports whether the session can no longer change
func (s SessionStatus) IsTerminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusFailed || s == SessionStatusRateLimited
}

// ContactRecord is a single person extracted from a search, tagged with the
// entity and keyword that produced it.
type ContactRecord struct {
	Name            string `json:"name,omitempty"`
	Title           string `json:"title,omitempty"`
	Company         string `json:"company,omitempty"`
	Location        string `json:"location,omitempty"`
	ProfileURL      string `json:"profile_url,omitempty"`
	ImageURL        string `json:"image_url,omitempty"`
	SearchedEntity  string `json:"searched_company,omitempty"`
	SearchedKeyword string `json:"searched_keywords,omitempty"`
}

// DedupKey returns the identity used to collapse duplicate contacts
func (c ContactRecord) DedupKey() string {
	if c.ProfileURL != "" {
		return "url:" + c.ProfileURL
	}
	if c.Name != "" {
		return "name:" + strings.ToLower(strings.TrimSpace(c.Name))
	}
	return ""
}

// SearchSession is one company x keyword background search job
type SearchSession struct {
	ID               string          `json:"id" badgerhold:"key"`
	OwnerID          string          `json:"user_id" badgerhold:"index"`
	TargetEntities   []string        `json:"companies"`
	Keywords         []string        `json:"keywords"`
	PerEntityLimit   int             `json:"per_company_limit"`
	Status           SessionStatus   `json:"status"`
	Results          []ContactRecord `json:"results"`
	EntitiesSearched int             `json:"companies_searched"`
	TotalSearches    int             `json:"total_companies"`
	ErrorMessage     string          `json:"error_message,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty"`
}

// KeywordLabel joins the keywords for display
func (s *SearchSession) KeywordLabel() string {
	return strings.Join(s.Keywords, ", ")
}

// SessionStatusView is the polling view of a session without its results
type SessionStatusView struct {
	SessionID        string        `json:"session_id"`
	Status           SessionStatus `json:"status"`
	EntitiesSearched int           `json:"companies_searched"`
	TotalSearches    int           `json:"total_companies"`
	TotalResults     int           `json:"total_results"`
	Keywords         string        `json:"keywords"`
	ErrorMessage     string        `json:"error_message,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
}

// ResultsPage is one page of a session's append-only result array
type ResultsPage struct {
	Results          []ContactRecord `json:"results"`
	Total            int             `json:"total"`
	Page             int             `json:"page"`
	PageSize         int             `json:"page_size"`
	TotalPages       int             `json:"total_pages"`
	EntitiesSearched int             `json:"companies_searched"`
	TotalSearches    int             `json:"total_companies"`
	Status           SessionStatus   `json:"status"`
}

// SessionHistoryPage lists an owner's sessions, newest first
type SessionHistoryPage struct {
	Sessions   []SessionStatusView `json:"sessions"`
	Total      int                 `json:"total"`
	Page       int                 `json:"page"`
	PageSize   int                 `json:"page_size"`
	TotalPages int                 `json:"total_pages"`
}
