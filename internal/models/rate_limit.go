package models

import "time"

// RateLimitStateKey is the fixed storage key of the singleton rate limit record
const RateLimitStateKey = "linkedin_rate_limit"

// RateLimitState holds the persisted counters and windows gating remote searches.
// All timestamps are stored in UTC.
type RateLimitState struct {
	ID               string     `json:"id" badgerhold:"key"`
	SearchesThisHour int        `json:"searches_this_hour"`
	SearchesToday    int        `json:"searches_today"`
	HourStartedAt    time.Time  `json:"hour_started_at"`
	DayStartedAt     time.Time  `json:"day_started_at"`
	SessionStartedAt *time.Time `json:"session_started_at,omitempty"`
	CooldownUntil    *time.Time `json:"cooldown_until,omitempty"`
	LastSearchAt     *time.Time `json:"last_search_at,omitempty"`
	TotalSearches    int64      `json:"total_searches"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// NormalizeUTC converts every timestamp of the state to UTC in place
func (s *RateLimitState) NormalizeUTC() {
	s.HourStartedAt = s.HourStartedAt.UTC()
	s.DayStartedAt = s.DayStartedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()
	s.SessionStartedAt = utcPtr(s.SessionStartedAt)
	s.CooldownUntil = utcPtr(s.CooldownUntil)
	s.LastSearchAt = utcPtr(s.LastSearchAt)
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}

// RateLimitStatus is a read-only snapshot of the limiter for callers
type RateLimitStatus struct {
	SearchesThisHour  int   `json:"searches_this_hour"`
	SearchesToday     int   `json:"searches_today"`
	RemainingThisHour int   `json:"remaining_this_hour"`
	RemainingToday    int   `json:"remaining_today"`
	SessionMinutes    int   `json:"session_minutes"`
	InCooldown        bool  `json:"in_cooldown"`
	CooldownMinutes   int   `json:"cooldown_remaining_minutes"`
	TotalSearches     int64 `json:"total_searches"`
	MaxPerHour        int   `json:"max_per_hour"`
	MaxPerDay         int   `json:"max_per_day"`
	MaxSessionMinutes int   `json:"max_session_minutes"`
	CooldownLength    int   `json:"cooldown_minutes"`
}
