// Package broadcast mirrors in-process session events out to Redis Pub/Sub
// so SSE gateways and other observers can follow a session without holding
// the engine's bus.
package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/inferno-games/quantum-salvation/pkg/events"
)

// Event is the wire envelope published to the session channel.
type Event struct {
	Type      string         `json:"type"`
	Key       string         `json:"key,omitempty"`
	SessionID string         `json:"session_id"`
	Data      map[string]any `json:"data,omitempty"`
}

// Broadcaster publishes session events to Redis Pub/Sub for SSE distribution
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

// Attach mirrors a session bus onto the session's Redis channel and returns
// a detach func. Ticks and per-second timer updates stay in-process; they
// would dominate the channel without telling observers anything durable.
func (b *Broadcaster) Attach(sessionID uuid.UUID, bus *events.Bus) func() {
	return bus.SubscribeAll(func(ev events.Event) {
		if ev.Type == events.TypeTick || ev.Type == events.TypeMissionTimer {
			return
		}
		if err := b.publish(context.Background(), sessionID, ev); err != nil {
			b.logger.Warn("Failed to broadcast event", "error", err, "event_type", ev.Type)
		}
	})
}

// publish sends one event to the session-specific channel
func (b *Broadcaster) publish(ctx context.Context, sessionID uuid.UUID, ev events.Event) error {
	channel := fmt.Sprintf("session-events:%s", sessionID.String())

	data, err := json.Marshal(Event{
		Type:      string(ev.Type),
		Key:       ev.Key,
		SessionID: sessionID.String(),
		Data:      ev.Data,
	})
	if err != nil {
		b.logger.Error("Failed to marshal event", "error", err, "event_type", ev.Type)
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.redisClient.Publish(ctx, channel, data).Err(); err != nil {
		b.logger.Error("Failed to publish event", "error", err, "channel", channel)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.logger.Debug("Event published",
		"channel", channel,
		"event_type", ev.Type,
		"key", ev.Key,
	)

	return nil
}
