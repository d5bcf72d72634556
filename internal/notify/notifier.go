// Package notify carries post-commit updates from the engine to the real-time
// transports. Delivery is best-effort and at-most-once: Publish never blocks
// the caller and a full queue drops the update.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"

	"bidding-engine/utils"
)

// DefaultQueueSize is the outbound queue length used when none is configured
const DefaultQueueSize = 1024

// Notifier accepts an update for a topic. Implementations must return promptly.
type Notifier interface {
	Publish(ctx context.Context, topic string, payload any)
}

// Sink is one transport that updates are fanned out to
type Sink interface {
	Deliver(ctx context.Context, topic string, data []byte) error
	Name() string
}

type message struct {
	topic string
	data  []byte
}

// Dispatcher queues updates and fans them out to every sink from Run
type Dispatcher struct {
	queue   chan message
	sinks   []Sink
	dropped atomic.Int64
}

// NewDispatcher creates a Dispatcher with a bounded queue
func NewDispatcher(queueSize int, sinks ...Sink) *Dispatcher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Dispatcher{
		queue: make(chan message, queueSize),
		sinks: sinks,
	}
}

// Publish encodes payload as JSON and enqueues it without blocking
func (d *Dispatcher) Publish(_ context.Context, topic string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		utils.Error("notify: failed to encode payload", map[string]any{"topic": topic, "error": err.Error()})
		return
	}

	select {
	case d.queue <- message{topic: topic, data: data}:
	default:
		d.dropped.Add(1)
		utils.Warn("notify: queue full, dropping update", map[string]any{"topic": topic})
	}
}

// Dropped returns how many updates were discarded because the queue was full
func (d *Dispatcher) Dropped() int64 {
	return d.dropped.Load()
}

// Run delivers queued updates until ctx is cancelled.
// A failing sink is logged and never holds up the others.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-d.queue:
			d.deliver(ctx, msg)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, msg message) {
	for _, s := range d.sinks {
		if err := s.Deliver(ctx, msg.topic, msg.data); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			utils.Warn("notify: sink delivery failed", map[string]any{
				"sink":  s.Name(),
				"topic": msg.topic,
				"error": err.Error(),
			})
			continue
		}
		utils.Debug("notify: update delivered", map[string]any{"sink": s.Name(), "topic": msg.topic})
	}
}

// Discard is a Notifier that drops every update
type Discard struct{}

// Publish implements Notifier
func (Discard) Publish(context.Context, string, any) {}
