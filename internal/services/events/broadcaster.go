package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jwebster45206/novel-engine/pkg/state"
	"github.com/redis/go-redis/v9"
)

// EventType represents the type of event being broadcast
type EventType string

const (
	EventTypeSessionViewUpdated EventType = "session.view_updated"
	EventTypeSessionClosed      EventType = "session.closed"
)

// Event represents a generic event structure
type Event struct {
	Type      EventType       `json:"type"`
	SessionID string          `json:"session_id"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Channel is the pub/sub channel carrying a session's events.
func Channel(sessionID uuid.UUID) string {
	return fmt.Sprintf("session-events:%s", sessionID.String())
}

// Broadcaster publishes events to Redis Pub/Sub for SSE distribution
type Broadcaster struct {
	redisClient *redis.Client
	logger      *slog.Logger
}

// NewBroadcaster creates a new event broadcaster
func NewBroadcaster(redisClient *redis.Client, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		redisClient: redisClient,
		logger:      logger,
	}
}

// PublishViewUpdated publishes a session.view_updated event carrying the view
func (b *Broadcaster) PublishViewUpdated(ctx context.Context, sessionID uuid.UUID, view state.View) error {
	data, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("failed to marshal view: %w", err)
	}
	return b.publish(ctx, sessionID, Event{
		Type:      EventTypeSessionViewUpdated,
		SessionID: sessionID.String(),
		Data:      data,
	})
}

// PublishSessionClosed publishes a session.closed event
func (b *Broadcaster) PublishSessionClosed(ctx context.Context, sessionID uuid.UUID) error {
	return b.publish(ctx, sessionID, Event{
		Type:      EventTypeSessionClosed,
		SessionID: sessionID.String(),
	})
}

// Observer adapts the broadcaster to state.Registry.Observe. Publish errors
// are logged; a missing subscriber is not an error.
func (b *Broadcaster) Observer() func(*state.Session, state.View) {
	return func(s *state.Session, v state.View) {
		if err := b.PublishViewUpdated(context.Background(), s.ID, v); err != nil {
			b.logger.Warn("Failed to broadcast view", "session_id", s.ID.String(), "error", err)
		}
	}
}

func (b *Broadcaster) publish(ctx context.Context, sessionID uuid.UUID, event Event) error {
	channel := Channel(sessionID)

	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("Failed to marshal event", "error", err, "event_type", event.Type)
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.redisClient.Publish(ctx, channel, data).Err(); err != nil {
		b.logger.Error("Failed to publish event", "error", err, "channel", channel)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.logger.Debug("Event published",
		"channel", channel,
		"event_type", event.Type,
	)

	return nil
}
