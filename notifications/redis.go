package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/Dosada05/badminton-platform/models"
)

const DefaultChannel = "match-events"

// RedisPublisher publishes events on a pub/sub channel so every instance's
// Relay can hand them to its local hub.
type RedisPublisher struct {
	client  redis.UniversalClient
	channel string
}

func NewRedisPublisher(client redis.UniversalClient, channel string) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) Notify(ctx context.Context, events []models.MatchEvent) error {
	pipe := p.client.Pipeline()
	for _, event := range events {
		payload, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("failed to encode %s event for %s: %w", event.Type, event.AccountID, err)
		}
		pipe.Publish(ctx, p.channel, payload)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to publish match events: %w", err)
	}
	return nil
}

// Relay forwards events from the redis channel to the local hub.
type Relay struct {
	client  redis.UniversalClient
	channel string
	hub     *Hub
	logger  *slog.Logger
}

func NewRelay(client redis.UniversalClient, channel string, hub *Hub, logger *slog.Logger) *Relay {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Relay{client: client, channel: channel, hub: hub, logger: logger}
}

// Run subscribes and relays until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to subscribe to %s: %w", r.channel, err)
	}
	r.logger.Info("redis relay subscribed", slog.String("channel", r.channel))

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			r.deliver(msg.Payload)
		}
	}
}

func (r *Relay) deliver(payload string) {
	var event models.MatchEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		r.logger.Warn("dropping malformed match event", slog.Any("error", err))
		return
	}
	if event.AccountID == "" {
		r.logger.Warn("dropping match event without account", slog.String("match_id", event.MatchID))
		return
	}
	r.hub.broadcastRaw(RoomForAccount(event.AccountID), []byte(payload))
}
