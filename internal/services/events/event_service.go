package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/davidR-jmd/fb-leads/internal/common"
	"github.com/davidR-jmd/fb-leads/internal/interfaces"
	"github.com/davidR-jmd/fb-leads/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/ternarybob/arbor"
)

// DefaultChannel is the redis channel used when none is configured
const DefaultChannel = "fb-leads:events"

// SessionFinishedPayload is published when a search session reaches a terminal status
type SessionFinishedPayload struct {
	SessionID        string               `json:"session_id"`
	OwnerID          string               `json:"user_id"`
	Status           models.SessionStatus `json:"status"`
	EntitiesSearched int                  `json:"companies_searched"`
	TotalSearches    int                  `json:"total_companies"`
	TotalResults     int                  `json:"total_results"`
	ErrorMessage     string               `json:"error_message,omitempty"`
	CompletedAt      time.Time            `json:"completed_at"`
}

// envelope is the JSON document written to the redis channel
type envelope struct {
	Type    interfaces.EventType `json:"type"`
	Payload interface{}          `json:"payload"`
}

// Service implements EventService with in-process subscribers and an
// optional redis channel
type Service struct {
	subscribers map[interfaces.EventType][]interfaces.EventHandler
	mu          sync.RWMutex
	redis       *redis.Client
	channel     string
	logger      arbor.ILogger
}

var _ interfaces.EventService = (*Service)(nil)

// NewService creates an event service without an external channel
func NewService(logger arbor.ILogger) *Service {
	return &Service{
		subscribers: make(map[interfaces.EventType][]interfaces.EventHandler),
		logger:      logger,
	}
}

// NewServiceFromConfig connects the redis channel when a URL is configured.
// An empty URL yields an in-process only service.
func NewServiceFromConfig(ctx context.Context, config common.EventsConfig, logger arbor.ILogger) (*Service, error) {
	s := NewService(logger)
	if config.RedisURL == "" {
		logger.Debug().Msg("Redis events disabled")
		return s, nil
	}

	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid events redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	s.redis = client
	s.channel = config.Channel
	if s.channel == "" {
		s.channel = DefaultChannel
	}

	logger.Info().Str("channel", s.channel).Str("addr", opts.Addr).Msg("Redis events enabled")
	return s, nil
}

// Subscribe registers a handler for an event type
func (s *Service) Subscribe(eventType interfaces.EventType, handler interfaces.EventHandler) error {
	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.subscribers[eventType] = append(s.subscribers[eventType], handler)

	s.logger.Debug().
		Str("event_type", string(eventType)).
		Int("subscriber_count", len(s.subscribers[eventType])).
		Msg("Event handler subscribed")

	return nil
}

// Publish runs every subscriber in turn, then mirrors the event to redis.
// Handler failures are logged and do not stop the others.
func (s *Service) Publish(ctx context.Context, event interfaces.Event) error {
	s.mu.RLock()
	handlers := append([]interfaces.EventHandler(nil), s.subscribers[event.Type]...)
	client, channel := s.redis, s.channel
	s.mu.RUnlock()

	for _, h := range handlers {
		if err := h(ctx, event); err != nil {
			s.logger.Error().
				Err(err).
				Str("event_type", string(event.Type)).
				Msg("Event handler failed")
		}
	}

	if client == nil {
		return nil
	}

	body, err := json.Marshal(envelope{Type: event.Type, Payload: event.Payload})
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	if err := client.Publish(ctx, channel, body).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// PublishSessionFinished announces a session in a terminal status
func (s *Service) PublishSessionFinished(ctx context.Context, session *models.SearchSession) error {
	return s.Publish(ctx, interfaces.Event{
		Type:    interfaces.EventSessionFinished,
		Payload: NewSessionFinishedPayload(session),
	})
}

// NewSessionFinishedPayload summarises a session without its results
func NewSessionFinishedPayload(session *models.SearchSession) SessionFinishedPayload {
	payload := SessionFinishedPayload{
		SessionID:        session.ID,
		OwnerID:          session.OwnerID,
		Status:           session.Status,
		EntitiesSearched: session.EntitiesSearched,
		TotalSearches:    session.TotalSearches,
		TotalResults:     len(session.Results),
		ErrorMessage:     session.ErrorMessage,
		CompletedAt:      session.UpdatedAt,
	}
	if session.CompletedAt != nil {
		payload.CompletedAt = *session.CompletedAt
	}
	return payload
}

// Close drops subscribers and closes the redis client
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.subscribers = make(map[interfaces.EventType][]interfaces.EventHandler)
	if s.redis != nil {
		err := s.redis.Close()
		s.redis = nil
		if err != nil {
			return err
		}
	}
	s.logger.Info().Msg("Event service closed")
	return nil
}
