package redis

import (
	"context"
	"fmt"
	"strings"

	"bidding-engine/internal/notify"
	"bidding-engine/utils"

	"github.com/redis/go-redis/v9"
)

// Publisher fans updates out over Redis Pub/Sub so that every engine
// instance can push them to its own real-time clients.
type Publisher struct {
	rdb    *redis.Client
	prefix string
}

// NewPublisher creates a Publisher. Every topic is published on prefix+topic.
func NewPublisher(c *Client, prefix string) *Publisher {
	return &Publisher{rdb: c.rdb, prefix: prefix}
}

// Name implements notify.Sink
func (p *Publisher) Name() string { return "redis" }

// Deliver implements notify.Sink
func (p *Publisher) Deliver(ctx context.Context, topic string, data []byte) error {
	channel := p.channel(topic)
	if err := p.rdb.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", channel, err)
	}
	return nil
}

func (p *Publisher) channel(topic string) string {
	return p.prefix + topic
}

func (p *Publisher) topic(channel string) (string, bool) {
	if !strings.HasPrefix(channel, p.prefix) {
		return "", false
	}
	return strings.TrimPrefix(channel, p.prefix), true
}

// Relay subscribes to every channel under the prefix and hands each message
// to sink until ctx is cancelled.
func (p *Publisher) Relay(ctx context.Context, sink notify.Sink) error {
	pubsub := p.rdb.PSubscribe(ctx, p.prefix+"*")
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("redis: subscribe %s*: %w", p.prefix, err)
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			topic, ok := p.topic(msg.Channel)
			if !ok {
				continue
			}
			if err := sink.Deliver(ctx, topic, []byte(msg.Payload)); err != nil {
				utils.Warn("redis: relay delivery failed", map[string]any{
					"sink":  sink.Name(),
					"topic": topic,
					"error": err.Error(),
				})
			}
		}
	}
}
