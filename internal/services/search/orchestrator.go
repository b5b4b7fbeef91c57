package search

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/davidR-jmd/fb-leads/internal/common"
	"github.com/davidR-jmd/fb-leads/internal/interfaces"
	"github.com/davidR-jmd/fb-leads/internal/models"
	"github.com/ternarybob/arbor"
)

// ErrInvalidRequest is returned for empty inputs and out-of-range pages
var ErrInvalidRequest = errors.New("invalid search request")

// Orchestrator implements interfaces.SearchSessionService. Sessions run in
// background goroutines, one at a time.
type Orchestrator struct {
	storage  interfaces.SearchSessionStorage
	limiter  interfaces.RateLimiter
	direct   interfaces.DirectClient
	sessions interfaces.DirectSessionProvider
	events   interfaces.EventPublisher
	config   common.SearchConfig
	logger   arbor.ILogger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	rndMu sync.Mutex
	rnd   *rand.Rand

	// loopMu serializes session loops
	loopMu sync.Mutex
	wg     sync.WaitGroup
}

var _ interfaces.SearchSessionService = (*Orchestrator)(nil)

// Option configures the Orchestrator
type Option func(*Orchestrator)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// WithSleeper replaces the pacing sleep
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(o *Orchestrator) {
		o.sleep = sleep
	}
}

// WithRandSource makes pacing deterministic
func WithRandSource(src rand.Source) Option {
	return func(o *Orchestrator) {
		o.rnd = rand.New(src)
	}
}

// NewOrchestrator creates the search session orchestrator
func NewOrchestrator(
	storage interfaces.SearchSessionStorage,
	limiter interfaces.RateLimiter,
	direct interfaces.DirectClient,
	sessions interfaces.DirectSessionProvider,
	events interfaces.EventPublisher,
	config common.SearchConfig,
	logger arbor.ILogger,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		storage:  storage,
		limiter:  limiter,
		direct:   direct,
		sessions: sessions,
		events:   events,
		config:   config,
		logger:   logger,
		now:      time.Now,
		sleep:    sleepContext,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// normalize trims and deduplicates values, keeping first occurrences
func normalize(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func sortedKey(values []string) string {
	sorted := append([]string(nil), values...)
	sort.Strings(sorted)
	return strings.Join(sorted, "\x00")
}

// StartSession creates a background session, or returns the id of an
// identical session the owner completed within the cache window
func (o *Orchestrator) StartSession(ctx context.Context, ownerID string, entities, keywords []string, perEntityLimit int) (string, bool, error) {
	entities = normalize(entities)
	if len(entities) == 0 {
		return "", false, fmt.Errorf("%w: at least one company is required", ErrInvalidRequest)
	}
	if o.config.MaxEntities > 0 && len(entities) > o.config.MaxEntities {
		return "", false, fmt.Errorf("%w: at most %d companies per session", ErrInvalidRequest, o.config.MaxEntities)
	}

	keywords = normalize(keywords)
	if o.config.MaxKeywords > 0 && len(keywords) > o.config.MaxKeywords {
		return "", false, fmt.Errorf("%w: at most %d keywords per session", ErrInvalidRequest, o.config.MaxKeywords)
	}
	if len(keywords) == 0 {
		// search the company name alone
		keywords = []string{""}
	}

	if perEntityLimit <= 0 {
		perEntityLimit = o.config.DefaultLimit
	}
	if o.config.MaxLimit > 0 && perEntityLimit > o.config.MaxLimit {
		perEntityLimit = o.config.MaxLimit
	}

	if id, ok := o.findCached(ctx, ownerID, entities, keywords); ok {
		o.logger.Info().Str("session_id", id).Str("owner", ownerID).Msg("Returning cached search session")
		return id, true, nil
	}

	now := o.now().UTC()
	session := &models.SearchSession{
		ID:             common.NewSessionID(),
		OwnerID:        ownerID,
		TargetEntities: entities,
		Keywords:       keywords,
		PerEntityLimit: perEntityLimit,
		Status:         models.SessionStatusInProgress,
		Results:        []models.ContactRecord{},
		TotalSearches:  len(entities) * len(keywords),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := o.storage.CreateSession(ctx, session); err != nil {
		return "", false, err
	}

	o.logger.Info().
		Str("session_id", session.ID).
		Str("owner", ownerID).
		Int("companies", len(entities)).
		Int("keywords", len(keywords)).
		Int("total_searches", session.TotalSearches).
		Msg("Search session started")

	o.launch(session)
	return session.ID, false, nil
}

func (o *Orchestrator) findCached(ctx context.Context, ownerID string, entities, keywords []string) (string, bool) {
	if o.config.CacheWindow.Duration <= 0 {
		return "", false
	}

	since := o.now().UTC().Add(-o.config.CacheWindow.Duration)
	sessions, err := o.storage.FindCompletedSince(ctx, ownerID, since)
	if err != nil {
		o.logger.Warn().Err(err).Msg("Cache lookup failed, starting a new session")
		return "", false
	}

	entityKey, keywordKey := sortedKey(entities), sortedKey(keywords)
	for _, s := range sessions {
		if sortedKey(s.TargetEntities) == entityKey && sortedKey(s.Keywords) == keywordKey {
			return s.ID, true
		}
	}
	return "", false
}

// launch runs the session detached from the caller's request
func (o *Orchestrator) launch(session *models.SearchSession) {
	o.wg.Add(1)
	common.SafeGo(o.logger, "search-session-"+session.ID, func() {
		defer o.wg.Done()
		o.run(context.Background(), session)
	})
}

// Wait blocks until every launched session loop has returned
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// ResumeInterrupted relaunches sessions a previous process left in progress.
// They continue from their searched-pair cursor.
func (o *Orchestrator) ResumeInterrupted(ctx context.Context) (int, error) {
	sessions, err := o.storage.ListByStatus(ctx, models.SessionStatusInProgress)
	if err != nil {
		return 0, err
	}
	for _, session := range sessions {
		o.logger.Info().
			Str("session_id", session.ID).
			Int("searched", session.EntitiesSearched).
			Int("total_searches", session.TotalSearches).
			Msg("Resuming interrupted search session")
		o.launch(session)
	}
	return len(sessions), nil
}

// PruneOlderThan deletes finished sessions created more than retentionDays ago
func (o *Orchestrator) PruneOlderThan(ctx context.Context, retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	cutoff := o.now().UTC().Add(-time.Duration(retentionDays) * 24 * time.Hour)
	deleted, err := o.storage.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		o.logger.Info().Int("deleted", deleted).Str("cutoff", cutoff.Format(time.RFC3339)).Msg("Pruned old search sessions")
	}
	return deleted, nil
}
