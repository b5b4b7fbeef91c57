package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/davidR-jmd/fb-leads/internal/common"
	"github.com/davidR-jmd/fb-leads/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

// memoryStorage is an in-memory RateLimitStorage
type memoryStorage struct {
	mu    sync.Mutex
	state *models.RateLimitState
	now   func() time.Time
}

func (m *memoryStorage) fresh() *models.RateLimitState {
	now := m.now().UTC()
	return &models.RateLimitState{
		ID:            models.RateLimitStateKey,
		HourStartedAt: now,
		DayStartedAt:  midnight(now),
	}
}

func (m *memoryStorage) Get(ctx context.Context) (*models.RateLimitState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return m.fresh(), nil
	}
	copied := *m.state
	return &copied, nil
}

func (m *memoryStorage) Update(ctx context.Context, fn func(state *models.RateLimitState) error) (*models.RateLimitState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	working := m.fresh()
	if m.state != nil {
		copied := *m.state
		working = &copied
	}
	if err := fn(working); err != nil {
		return nil, err
	}
	working.NormalizeUTC()
	m.state = working
	copied := *working
	return &copied, nil
}

type clock struct {
	t time.Time
}

func (c *clock) now() time.Time         { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(t *testing.T, cfg common.RateLimitConfig) (*Limiter, *memoryStorage, *clock) {
	t.Helper()
	clk := &clock{t: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
	storage := &memoryStorage{now: clk.now}
	limiter := NewLimiter(storage, cfg, arbor.NewLogger())
	limiter.now = clk.now
	return limiter, storage, clk
}

func defaultCaps() common.RateLimitConfig {
	return common.NewDefaultConfig().RateLimit
}

func TestCanProceed_CooldownWinsOverCounters(t *testing.T) {
	limiter, storage, clk := newTestLimiter(t, defaultCaps())
	ctx := context.Background()

	until := clk.now().Add(10 * time.Minute)
	storage.state = &models.RateLimitState{
		HourStartedAt: clk.now(),
		DayStartedAt:  midnight(clk.now()),
		CooldownUntil: &until,
	}

	allowed, reason, err := limiter.CanProceed(ctx)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, "In cooldown period. Please wait 10 minutes.", reason)

	clk.advance(10 * time.Minute)
	allowed, _, err = limiter.CanProceed(ctx)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Nil(t, storage.state.CooldownUntil)
}

func TestCanProceed_CapsNeverExceeded(t *testing.T) {
	caps := common.RateLimitConfig{MaxSearchesPerHour: 3, MaxSearchesPerDay: 5, MaxSessionMinutes: 600, CooldownMinutes: 1}
	limiter, storage, clk := newTestLimiter(t, caps)
	ctx := context.Background()

	performed := 0
	for i := 0; i < 40; i++ {
		allowed, _, err := limiter.CanProceed(ctx)
		require.NoError(t, err)
		if allowed {
			require.NoError(t, limiter.RecordUsage(ctx))
			performed++
		}
		assert.LessOrEqual(t, storage.state.SearchesThisHour, caps.MaxSearchesPerHour)
		assert.LessOrEqual(t, storage.state.SearchesToday, caps.MaxSearchesPerDay)
		clk.advance(20 * time.Second)
		if i%10 == 9 {
			clk.advance(time.Hour)
		}
	}
	assert.Equal(t, 5, performed)

	allowed, reason, err := limiter.CanProceed(ctx)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, "Daily limit reached (5 searches). Try again tomorrow.", reason)
}

func TestCanProceed_HourlyCapMessage(t *testing.T) {
	limiter, storage, clk := newTestLimiter(t, defaultCaps())
	storage.state = &models.RateLimitState{
		SearchesThisHour: 25,
		SearchesToday:    25,
		HourStartedAt:    clk.now().Add(-30 * time.Minute),
		DayStartedAt:     midnight(clk.now()),
	}

	allowed, reason, err := limiter.CanProceed(context.Background())
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, "Hourly limit reached (25 searches). Please wait.", reason)

	clk.advance(30 * time.Minute)
	allowed, _, err = limiter.CanProceed(context.Background())
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 0, storage.state.SearchesThisHour)
	assert.Equal(t, 25, storage.state.SearchesToday)
}

func TestCanProceed_SessionCapForcesCooldown(t *testing.T) {
	limiter, storage, clk := newTestLimiter(t, defaultCaps())
	ctx := context.Background()

	started := clk.now().Add(-45 * time.Minute)
	last := clk.now().Add(-time.Minute)
	storage.state = &models.RateLimitState{
		SearchesThisHour: 1,
		SearchesToday:    1,
		HourStartedAt:    clk.now().Add(-10 * time.Minute),
		DayStartedAt:     midnight(clk.now()),
		SessionStartedAt: &started,
		LastSearchAt:     &last,
	}

	allowed, reason, err := limiter.CanProceed(ctx)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, "Session limit reached (45 min). Taking a 15 min break.", reason)
	require.NotNil(t, storage.state.CooldownUntil)
	assert.True(t, storage.state.CooldownUntil.After(clk.now()))
	assert.Nil(t, storage.state.SessionStartedAt)

	allowed, reason, err = limiter.CanProceed(ctx)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Contains(t, reason, "In cooldown period")
}

func TestCanProceed_SessionCapSurvivesIdleGaps(t *testing.T) {
	limiter, storage, clk := newTestLimiter(t, defaultCaps())
	ctx := context.Background()

	started := clk.now().Add(-50 * time.Minute)
	last := clk.now().Add(-20 * time.Minute)
	storage.state = &models.RateLimitState{
		SearchesThisHour: 2,
		SearchesToday:    2,
		HourStartedAt:    clk.now().Add(-30 * time.Minute),
		DayStartedAt:     midnight(clk.now()),
		SessionStartedAt: &started,
		LastSearchAt:     &last,
	}

	allowed, reason, err := limiter.CanProceed(ctx)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Contains(t, reason, "Session limit reached")
	require.NotNil(t, storage.state.CooldownUntil)

	t.Run("searches spaced past the cooldown still hit the cap", func(t *testing.T) {
		limiter, _, clk := newTestLimiter(t, defaultCaps())
		denied := 0
		for i := 0; i < 12; i++ {
			allowed, _, err := limiter.CanProceed(ctx)
			require.NoError(t, err)
			if allowed {
				require.NoError(t, limiter.RecordUsage(ctx))
			} else {
				denied++
			}
			clk.advance(16 * time.Minute)
		}
		assert.Greater(t, denied, 0)
	})
}

func TestCanProceed_DayRolloverUsesUTCDate(t *testing.T) {
	limiter, storage, clk := newTestLimiter(t, defaultCaps())
	paris, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)

	// 23:30 UTC the previous day is already "today" in Paris, still yesterday in UTC
	yesterday := time.Date(2026, 3, 9, 23, 30, 0, 0, time.UTC).In(paris)
	storage.state = &models.RateLimitState{
		SearchesToday: 80,
		HourStartedAt: yesterday,
		DayStartedAt:  yesterday,
	}

	allowed, _, err := limiter.CanProceed(context.Background())
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 0, storage.state.SearchesToday)
	assert.Equal(t, midnight(clk.now()), storage.state.DayStartedAt)
	assert.Equal(t, time.UTC, storage.state.DayStartedAt.Location())
}

func TestRecordUsageAndStatus(t *testing.T) {
	limiter, _, clk := newTestLimiter(t, defaultCaps())
	ctx := context.Background()

	require.NoError(t, limiter.RecordUsage(ctx))
	clk.advance(5 * time.Minute)
	require.NoError(t, limiter.RecordUsage(ctx))
	clk.advance(5 * time.Minute)

	status, err := limiter.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, status.SearchesThisHour)
	assert.Equal(t, 2, status.SearchesToday)
	assert.Equal(t, 23, status.RemainingThisHour)
	assert.Equal(t, 78, status.RemainingToday)
	assert.Equal(t, 10, status.SessionMinutes)
	assert.Equal(t, int64(2), status.TotalSearches)
	assert.False(t, status.InCooldown)

	require.NoError(t, limiter.EndSession(ctx))
	status, err = limiter.GetStatus(ctx)
	require.NoError(t, err)
	assert.True(t, status.InCooldown)
	assert.Equal(t, 15, status.CooldownMinutes)
	assert.Equal(t, 0, status.SessionMinutes)

	remaining, err := limiter.CooldownRemaining(ctx)
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, remaining)
}
