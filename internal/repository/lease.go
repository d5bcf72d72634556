package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"bidding-engine/internal/biddingerrors"
)

// Leases hands out exclusive, per-key leases with a bounded wait.
// Different keys never block each other.
type Leases struct {
	mu    sync.Mutex
	slots map[string]*leaseSlot
}

type leaseSlot struct {
	ch   chan struct{}
	refs int
}

// NewLeases creates an empty lease table
func NewLeases() *Leases {
	return &Leases{slots: make(map[string]*leaseSlot)}
}

// Acquire blocks until the lease on key is free, wait elapses or ctx is done.
// The returned release func is safe to call more than once.
func (l *Leases) Acquire(ctx context.Context, key string, wait time.Duration) (func(), error) {
	l.mu.Lock()
	s, ok := l.slots[key]
	if !ok {
		s = &leaseSlot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	l.mu.Unlock()

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		l.drop(key, s)
		return nil, fmt.Errorf("lease %s: %w: %w", key, biddingerrors.ErrContention, ctx.Err())
	case <-timer.C:
		l.drop(key, s)
		return nil, fmt.Errorf("lease %s after %s: %w", key, wait, biddingerrors.ErrLockTimeout)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			l.drop(key, s)
		})
	}, nil
}

func (l *Leases) drop(key string, s *leaseSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

// Len returns the number of keys currently held or waited on
func (l *Leases) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}
