package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type delivery struct {
	topic string
	data  []byte
}

type fakeSink struct {
	name string
	err  error

	mu   sync.Mutex
	got  []delivery
	seen chan struct{}
}

func newFakeSink(name string, err error) *fakeSink {
	return &fakeSink{name: name, err: err, seen: make(chan struct{}, 64)}
}

func (s *fakeSink) Deliver(_ context.Context, topic string, data []byte) error {
	s.mu.Lock()
	s.got = append(s.got, delivery{topic: topic, data: data})
	s.mu.Unlock()
	s.seen <- struct{}{}
	return s.err
}

func (s *fakeSink) Name() string { return s.name }

func (s *fakeSink) deliveries() []delivery {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]delivery{}, s.got...)
}

func waitFor(t *testing.T, ch <-chan struct{}, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-ch:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for delivery %d of %d", i+1, n)
		}
	}
}

func TestDispatcher_FansOutToAllSinks(t *testing.T) {
	t.Parallel()

	failing := newFakeSink("failing", errors.New("down"))
	healthy := newFakeSink("healthy", nil)
	d := NewDispatcher(8, failing, healthy)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	d.Publish(ctx, "auction1", map[string]string{"status": "ACTIVE"})
	d.Publish(ctx, "transaction:t1", map[string]string{"status": "IN_ESCROW"})

	waitFor(t, failing.seen, 2)
	waitFor(t, healthy.seen, 2)

	got := healthy.deliveries()
	require.Len(t, got, 2)
	require.Equal(t, "auction1", got[0].topic)
	require.Equal(t, "transaction:t1", got[1].topic)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(got[1].data, &payload))
	require.Equal(t, "IN_ESCROW", payload["status"])

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestDispatcher_DropsWhenQueueFull(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(2)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 5; i++ {
		d.Publish(ctx, "auction1", i)
	}
	require.Less(t, time.Since(start), time.Second, "publish must not block")
	require.Equal(t, int64(3), d.Dropped())
}

func TestDispatcher_UnencodablePayloadIsSkipped(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(1)
	d.Publish(context.Background(), "auction1", make(chan int))
	require.Len(t, d.queue, 0)
	require.Equal(t, int64(0), d.Dropped())
}

func TestNewDispatcher_DefaultQueueSize(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(0)
	require.Equal(t, DefaultQueueSize, cap(d.queue))
}
