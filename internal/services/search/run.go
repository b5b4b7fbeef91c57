package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/davidR-jmd/fb-leads/internal/interfaces"
	"github.com/davidR-jmd/fb-leads/internal/models"
)

// pair is one company x keyword unit of work
type pair struct {
	entity  string
	keyword string
}

func (p pair) query() string {
	return strings.TrimSpace(p.entity + " " + p.keyword)
}

// buildPairs lists the cross product entity-major. The order is stable so
// EntitiesSearched doubles as a resume cursor.
func buildPairs(entities, keywords []string) []pair {
	pairs := make([]pair, 0, len(entities)*len(keywords))
	for _, entity := range entities {
		for _, keyword := range keywords {
			pairs = append(pairs, pair{entity: entity, keyword: keyword})
		}
	}
	return pairs
}

func (o *Orchestrator) between(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	o.rndMu.Lock()
	defer o.rndMu.Unlock()
	return min + time.Duration(o.rnd.Int63n(int64(max-min)+1))
}

// pause is the wait after the requestCount-th request
func (o *Orchestrator) pause(requestCount int) time.Duration {
	if o.config.LongPauseEvery > 0 && requestCount%o.config.LongPauseEvery == 0 {
		return o.between(o.config.LongPauseMin.Duration, o.config.LongPauseMax.Duration)
	}
	return o.between(o.config.MinDelay.Duration, o.config.MaxDelay.Duration)
}

// gate asks the limiter for a slot, waiting one backoff and asking again
// when denied. It returns the denial reason when both checks fail.
func (o *Orchestrator) gate(ctx context.Context, sessionID string) (bool, string, error) {
	allowed, reason, err := o.limiter.CanProceed(ctx)
	if err != nil || allowed {
		return allowed, reason, err
	}

	o.logger.Warn().
		Str("session_id", sessionID).
		Str("reason", reason).
		Dur("backoff", o.config.RateLimitBackoff.Duration).
		Msg("Rate limited, backing off before rechecking")

	if err := o.sleep(ctx, o.config.RateLimitBackoff.Duration); err != nil {
		return false, reason, err
	}
	return o.limiter.CanProceed(ctx)
}

// searchPair runs one search, converting a panic into a per-pair error
func (o *Orchestrator) searchPair(ctx context.Context, p pair, limit int) (contacts []models.ContactRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("search panicked: %v", r)
		}
	}()
	return o.direct.SearchPeople(ctx, p.query(), interfaces.PeopleSearchOptions{
		Limit:         limit,
		CompanyFilter: p.entity,
		KeywordFilter: p.keyword,
	})
}

// run drives a session to a terminal status
func (o *Orchestrator) run(ctx context.Context, session *models.SearchSession) {
	o.loopMu.Lock()
	defer o.loopMu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			o.finish(ctx, session.ID, models.SessionStatusFailed, fmt.Sprintf("search session crashed: %v", r))
		}
	}()

	if err := o.sessions.EnsureDirectSession(ctx); err != nil {
		o.finish(ctx, session.ID, models.SessionStatusFailed, err.Error())
		return
	}

	pairs := buildPairs(session.TargetEntities, session.Keywords)

	// results already stored by an interrupted run
	seen := make(map[string]struct{}, len(session.Results))
	matched := make(map[string]bool)
	for _, r := range session.Results {
		if key := r.DedupKey(); key != "" {
			seen[key] = struct{}{}
		}
		matched[r.SearchedEntity] = true
	}

	requestCount := 0
	for i := session.EntitiesSearched; i < len(pairs); i++ {
		p := pairs[i]

		if o.config.StopOnFirstMatch && matched[p.entity] {
			if _, err := o.storage.AppendResults(ctx, session.ID, nil, 1); err != nil {
				o.finish(ctx, session.ID, models.SessionStatusFailed, err.Error())
				return
			}
			continue
		}

		if requestCount > 0 {
			if err := o.sleep(ctx, o.pause(requestCount)); err != nil {
				o.finish(ctx, session.ID, models.SessionStatusFailed, err.Error())
				return
			}
		}

		allowed, reason, err := o.gate(ctx, session.ID)
		if err != nil {
			o.finish(ctx, session.ID, models.SessionStatusFailed, err.Error())
			return
		}
		if !allowed {
			o.finish(ctx, session.ID, models.SessionStatusRateLimited, reason)
			return
		}

		contacts, err := o.searchPair(ctx, p, session.PerEntityLimit)
		requestCount++
		if usageErr := o.limiter.RecordUsage(ctx); usageErr != nil {
			o.logger.Warn().Err(usageErr).Msg("Failed to record search usage")
		}
		if err != nil {
			o.logger.Warn().
				Err(err).
				Str("session_id", session.ID).
				Str("company", p.entity).
				Str("keyword", p.keyword).
				Msg("Search failed, skipping")
			contacts = nil
		}

		fresh := make([]models.ContactRecord, 0, len(contacts))
		for _, c := range contacts {
			if session.PerEntityLimit > 0 && len(fresh) >= session.PerEntityLimit {
				break
			}
			c.SearchedEntity = p.entity
			c.SearchedKeyword = p.keyword
			if key := c.DedupKey(); key != "" {
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
			}
			fresh = append(fresh, c)
		}
		if len(contacts) > 0 {
			matched[p.entity] = true
		}

		if _, err := o.storage.AppendResults(ctx, session.ID, fresh, 1); err != nil {
			o.finish(ctx, session.ID, models.SessionStatusFailed, err.Error())
			return
		}

		o.logger.Debug().
			Str("session_id", session.ID).
			Str("company", p.entity).
			Str("keyword", p.keyword).
			Int("found", len(contacts)).
			Int("added", len(fresh)).
			Int("searched", i+1).
			Int("total_searches", len(pairs)).
			Msg("Search pair done")
	}

	o.finish(ctx, session.ID, models.SessionStatusCompleted, "")
}

// finish records the terminal status and announces it
func (o *Orchestrator) finish(ctx context.Context, sessionID string, status models.SessionStatus, message string) {
	if err := o.storage.CompleteSession(ctx, sessionID, status, message); err != nil {
		o.logger.Error().Err(err).Str("session_id", sessionID).Msg("Failed to finish search session")
		return
	}

	session, err := o.storage.GetSession(ctx, sessionID)
	if err != nil {
		o.logger.Warn().Err(err).Str("session_id", sessionID).Msg("Failed to reload finished session")
		return
	}

	event := o.logger.Info()
	if status != models.SessionStatusCompleted {
		event = o.logger.Warn().Str("error", message)
	}
	event.
		Str("session_id", sessionID).
		Str("status", string(session.Status)).
		Int("searched", session.EntitiesSearched).
		Int("results", len(session.Results)).
		Msg("Search session finished")

	if o.events != nil {
		if err := o.events.PublishSessionFinished(ctx, session); err != nil {
			o.logger.Warn().Err(err).Str("session_id", sessionID).Msg("Failed to publish session event")
		}
	}
}
