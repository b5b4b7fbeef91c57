package events

import (
	"context"

	"github.com/davidR-jmd/fb-leads/internal/interfaces"
	"github.com/ternarybob/arbor"
)

// NewLoggerSubscriber creates an event handler that logs session events
func NewLoggerSubscriber(logger arbor.ILogger) interfaces.EventHandler {
	return func(ctx context.Context, event interfaces.Event) error {
		logEvent := logger.Debug().Str("event_type", string(event.Type))

		if payload, ok := event.Payload.(SessionFinishedPayload); ok {
			logEvent = logEvent.
				Str("session_id", payload.SessionID).
				Str("status", string(payload.Status)).
				Int("results", payload.TotalResults)
		}

		logEvent.Msg("Event published")
		return nil
	}
}

// SubscribeLogger attaches the logger subscriber to every session event
func SubscribeLogger(service interfaces.EventService, logger arbor.ILogger) error {
	return service.Subscribe(interfaces.EventSessionFinished, NewLoggerSubscriber(logger))
}
