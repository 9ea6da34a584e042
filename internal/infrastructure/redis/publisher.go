package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/mohbadar/pay-connector/internal/events"
)

// DefaultStream is the stream downstream consumers read payment events from.
const DefaultStream = "payment-events"

// StreamPublisher implements events.Publisher on a Redis stream. Delivery is
// at-least-once; the emitter requeues on failure.
type StreamPublisher struct {
	client *redis.Client
	stream string
}

func NewStreamPublisher(client *redis.Client, stream string) *StreamPublisher {
	if stream == "" {
		stream = DefaultStream
	}
	return &StreamPublisher{client: client, stream: stream}
}

// Emit appends one event to the stream.
func (p *StreamPublisher) Emit(ctx context.Context, e events.Event) error {
	details, err := json.Marshal(e.Details)
	if err != nil {
		return fmt.Errorf("failed to marshal event details: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{
			"resource_type":        e.ResourceType,
			"resource_external_id": e.ResourceExternalID,
			"event_type":           e.EventType,
			"timestamp":            e.Timestamp.Unix(),
			"details":              string(details),
		},
	}

	if _, err := p.client.XAdd(ctx, args).Result(); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", e.EventType, err)
	}
	return nil
}
