// Package ratelimit gates remote LinkedIn searches with hourly, daily and
// session-duration caps persisted in storage.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/davidR-jmd/fb-leads/internal/common"
	"github.com/davidR-jmd/fb-leads/internal/interfaces"
	"github.com/davidR-jmd/fb-leads/internal/models"
	"github.com/ternarybob/arbor"
)

// Limiter implements interfaces.RateLimiter. Every check and every recorded
// search is a single read-modify-write against RateLimitStorage.
type Limiter struct {
	storage interfaces.RateLimitStorage
	config  common.RateLimitConfig
	logger  arbor.ILogger
	now     func() time.Time
}

var _ interfaces.RateLimiter = (*Limiter)(nil)

// NewLimiter creates a limiter enforcing the configured caps
func NewLimiter(storage interfaces.RateLimitStorage, config common.RateLimitConfig, logger arbor.ILogger) *Limiter {
	return &Limiter{
		storage: storage,
		config:  config,
		logger:  logger,
		now:     time.Now,
	}
}

func (l *Limiter) cooldown() time.Duration {
	return time.Duration(l.config.CooldownMinutes) * time.Minute
}

func (l *Limiter) maxSession() time.Duration {
	return time.Duration(l.config.MaxSessionMinutes) * time.Minute
}

// rollover resets stale windows in place and reports whether anything changed
func (l *Limiter) rollover(state *models.RateLimitState, now time.Time) bool {
	changed := false

	if !sameDay(state.DayStartedAt, now) {
		state.SearchesToday = 0
		state.DayStartedAt = midnight(now)
		changed = true
	}

	if now.Sub(state.HourStartedAt) >= time.Hour {
		state.SearchesThisHour = 0
		state.HourStartedAt = now
		changed = true
	}

	if state.CooldownUntil != nil && !now.Before(*state.CooldownUntil) {
		state.CooldownUntil = nil
		changed = true
	}

	return changed
}

// CanProceed reports whether a search may run now. Checks run in order:
// cooldown, daily cap, hourly cap, session duration. Hitting the session cap
// starts a cooldown.
func (l *Limiter) CanProceed(ctx context.Context) (bool, string, error) {
	allowed := false
	reason := ""

	_, err := l.storage.Update(ctx, func(state *models.RateLimitState) error {
		now := l.now().UTC()
		l.rollover(state, now)
		allowed, reason = l.check(state, now)
		return nil
	})
	if err != nil {
		return false, "", fmt.Errorf("failed to check rate limit: %w", err)
	}

	if !allowed {
		l.logger.Info().Str("reason", reason).Msg("LinkedIn search blocked by rate limiter")
	}
	return allowed, reason, nil
}

func (l *Limiter) check(state *models.RateLimitState, now time.Time) (bool, string) {
	if state.CooldownUntil != nil && now.Before(*state.CooldownUntil) {
		return false, fmt.Sprintf("In cooldown period. Please wait %d minutes.", minutesUntil(now, *state.CooldownUntil))
	}

	if state.SearchesToday >= l.config.MaxSearchesPerDay {
		return false, fmt.Sprintf("Daily limit reached (%d searches). Try again tomorrow.", l.config.MaxSearchesPerDay)
	}

	if state.SearchesThisHour >= l.config.MaxSearchesPerHour {
		return false, fmt.Sprintf("Hourly limit reached (%d searches). Please wait.", l.config.MaxSearchesPerHour)
	}

	if state.SessionStartedAt != nil && now.Sub(*state.SessionStartedAt) >= l.maxSession() {
		until := now.Add(l.cooldown())
		state.CooldownUntil = &until
		state.SessionStartedAt = nil
		return false, fmt.Sprintf("Session limit reached (%d min). Taking a %d min break.", l.config.MaxSessionMinutes, l.config.CooldownMinutes)
	}

	return true, ""
}

// RecordUsage counts one search against every window and opens a session
// if none is running
func (l *Limiter) RecordUsage(ctx context.Context) error {
	state, err := l.storage.Update(ctx, func(state *models.RateLimitState) error {
		now := l.now().UTC()
		l.rollover(state, now)

		state.SearchesThisHour++
		state.SearchesToday++
		state.TotalSearches++
		state.LastSearchAt = &now
		if state.SessionStartedAt == nil {
			state.SessionStartedAt = &now
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to record search: %w", err)
	}

	l.logger.Info().
		Int("today", state.SearchesToday).
		Int("max_per_day", l.config.MaxSearchesPerDay).
		Int("this_hour", state.SearchesThisHour).
		Int("max_per_hour", l.config.MaxSearchesPerHour).
		Msg("LinkedIn search recorded")

	return nil
}

// EndSession closes the running session and starts a cooldown
func (l *Limiter) EndSession(ctx context.Context) error {
	state, err := l.storage.Update(ctx, func(state *models.RateLimitState) error {
		until := l.now().UTC().Add(l.cooldown())
		state.SessionStartedAt = nil
		state.CooldownUntil = &until
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}

	l.logger.Info().Str("cooldown_until", state.CooldownUntil.Format(time.RFC3339)).Msg("LinkedIn session ended")
	return nil
}

// GetStatus returns a read-only snapshot. Stale windows are rolled over in
// the snapshot only.
func (l *Limiter) GetStatus(ctx context.Context) (*models.RateLimitStatus, error) {
	state, err := l.storage.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get rate limit status: %w", err)
	}

	now := l.now().UTC()
	l.rollover(state, now)

	status := &models.RateLimitStatus{
		SearchesThisHour:  state.SearchesThisHour,
		SearchesToday:     state.SearchesToday,
		RemainingThisHour: max(0, l.config.MaxSearchesPerHour-state.SearchesThisHour),
		RemainingToday:    max(0, l.config.MaxSearchesPerDay-state.SearchesToday),
		TotalSearches:     state.TotalSearches,
		MaxPerHour:        l.config.MaxSearchesPerHour,
		MaxPerDay:         l.config.MaxSearchesPerDay,
		MaxSessionMinutes: l.config.MaxSessionMinutes,
		CooldownLength:    l.config.CooldownMinutes,
	}

	if state.SessionStartedAt != nil {
		status.SessionMinutes = int(now.Sub(*state.SessionStartedAt).Minutes())
	}
	if state.CooldownUntil != nil && now.Before(*state.CooldownUntil) {
		status.InCooldown = true
		status.CooldownMinutes = minutesUntil(now, *state.CooldownUntil)
	}

	return status, nil
}

// CooldownRemaining returns how long the active cooldown still lasts, zero when none
func (l *Limiter) CooldownRemaining(ctx context.Context) (time.Duration, error) {
	state, err := l.storage.Get(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get rate limit state: %w", err)
	}
	now := l.now().UTC()
	if state.CooldownUntil == nil || !now.Before(*state.CooldownUntil) {
		return 0, nil
	}
	return state.CooldownUntil.Sub(now), nil
}

func sameDay(a, b time.Time) bool {
	a, b = a.UTC(), b.UTC()
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

func midnight(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// minutesUntil rounds up so a pending cooldown never reads as zero minutes
func minutesUntil(now, until time.Time) int {
	return int(math.Ceil(until.Sub(now).Minutes()))
}
