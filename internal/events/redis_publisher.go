package events

import (
	"context"
	"encoding/json"
	"fmt"
)

// Broker is the pub/sub transport events are forwarded to.
type Broker interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// RedisPublisher forwards events as JSON to a pub/sub channel.
type RedisPublisher struct {
	broker  Broker
	channel string
}

// NewRedisPublisher creates a publisher writing to channel.
func NewRedisPublisher(broker Broker, channel string) *RedisPublisher {
	return &RedisPublisher{broker: broker, channel: channel}
}

// Forward is an EventHandler that publishes the event.
func (p *RedisPublisher) Forward(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", event.ID, err)
	}
	if err := p.broker.Publish(ctx, p.channel, body); err != nil {
		return fmt.Errorf("publish event %s: %w", event.ID, err)
	}
	return nil
}
