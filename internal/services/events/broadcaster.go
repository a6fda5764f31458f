package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/AshramC/YXZX-ARG/pkg/infiltration"
)

// EventType represents the type of event being broadcast
type EventType string

const (
	EventTypeRequestQueued  EventType = "request.queued"
	EventTypeRequestFailed  EventType = "request.failed"
	EventTypeGameEvent      EventType = "game.event"
	EventTypeFrame          EventType = "game.frame"
	EventTypeMiniGameResult EventType = "game.minigame_result"
	EventTypeSessionEnded   EventType = "session.ended"
)

// Event is the envelope published for one session
type Event struct {
	Type      EventType       `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	SessionID string          `json:"session_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Publisher receives everything an infiltration session reports
type Publisher interface {
	Publish(ctx context.Context, sessionID uuid.UUID, event Event) error
}

// NewEvent builds an event carrying data as JSON
func NewEvent(typ EventType, sessionID uuid.UUID, data any) (Event, error) {
	ev := Event{Type: typ, SessionID: sessionID.String()}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return Event{}, fmt.Errorf("failed to marshal event data: %w", err)
		}
		ev.Data = raw
	}
	return ev, nil
}

// GameEvent wraps an engine event
func GameEvent(sessionID uuid.UUID, ev infiltration.Event) (Event, error) {
	return NewEvent(EventTypeGameEvent, sessionID, ev)
}

// Frame wraps a render snapshot
func Frame(sessionID uuid.UUID, f infiltration.Frame) (Event, error) {
	return NewEvent(EventTypeFrame, sessionID, f)
}

// Channel names the pub/sub channel of a session
func Channel(sessionID uuid.UUID) string {
	return fmt.Sprintf("game-events:%s", sessionID.String())
}

// Broadcaster publishes session events to Redis Pub/Sub so any server
// instance can relay them
type Broadcaster struct {
	redisClient *redis.Client
	logger      *slog.Logger
}

// Ensure Broadcaster implements Publisher
var _ Publisher = (*Broadcaster)(nil)

// NewBroadcaster creates a new event broadcaster
func NewBroadcaster(redisClient *redis.Client, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		redisClient: redisClient,
		logger:      logger,
	}
}

// PublishRequestQueued publishes a request.queued event
func (b *Broadcaster) PublishRequestQueued(ctx context.Context, sessionID uuid.UUID, requestID string, requestType string) error {
	ev, err := NewEvent(EventTypeRequestQueued, sessionID, map[string]string{"status": "queued", "type": requestType})
	if err != nil {
		return err
	}
	ev.RequestID = requestID
	return b.Publish(ctx, sessionID, ev)
}

// PublishRequestFailed publishes a request.failed event
func (b *Broadcaster) PublishRequestFailed(ctx context.Context, sessionID uuid.UUID, requestID string, errorMsg string) error {
	ev, err := NewEvent(EventTypeRequestFailed, sessionID, map[string]string{"status": "failed", "error": errorMsg})
	if err != nil {
		return err
	}
	ev.RequestID = requestID
	return b.Publish(ctx, sessionID, ev)
}

// Publish sends event to the session channel
func (b *Broadcaster) Publish(ctx context.Context, sessionID uuid.UUID, event Event) error {
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
		"request_id", event.RequestID,
	)
	return nil
}

// Subscribe relays the session channel to out until ctx is done. Messages
// that fail to decode are logged and skipped.
func (b *Broadcaster) Subscribe(ctx context.Context, sessionID uuid.UUID, out chan<- Event) error {
	sub := b.redisClient.Subscribe(ctx, Channel(sessionID))
	defer sub.Close()

	// Wait for the subscription to be confirmed before relaying
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				b.logger.Warn("Dropping malformed event", "channel", msg.Channel, "error", err)
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

// Fanout publishes to several publishers; the first error is returned after
// all have been tried
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, sessionID uuid.UUID, event Event) error {
	var first error
	for _, p := range f {
		if err := p.Publish(ctx, sessionID, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}
