package redis

import (
	"context"
	"fmt"
	"time"

	"bidding-engine/internal/biddingerrors"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// unlockLua deletes a lease key only if it still holds the caller's token, so
// a holder whose TTL ran out cannot release its successor's lease.
const unlockLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

// LeaseManager hands out cluster-wide leases with SET NX and a TTL. The
// closing sweep uses it so only one instance sweeps at a time.
type LeaseManager struct {
	rdb      *redis.Client
	unlockSc *redis.Script
}

// NewLeaseManager creates a LeaseManager backed by the given Client.
func NewLeaseManager(c *Client) *LeaseManager {
	return &LeaseManager{
		rdb:      c.rdb,
		unlockSc: redis.NewScript(unlockLua),
	}
}

func leaseKey(key string) string {
	return "lease:" + key
}

// Acquire takes the lease for key for at most ttl. On success it returns a
// release func that is safe to call more than once.
//
// It returns biddingerrors.ErrLeaseHeld if another holder has the lease.
func (lm *LeaseManager) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.New().String()
	lk := leaseKey(key)

	ok, err := lm.rdb.SetNX(ctx, lk, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire lease %s: %w", key, err)
	}
	if !ok {
		return nil, fmt.Errorf("redis: acquire lease %s: %w", key, biddingerrors.ErrLeaseHeld)
	}

	released := false
	release := func() {
		if released {
			return
		}
		released = true

		// the caller's context may already be cancelled at shutdown
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = lm.unlockSc.Run(releaseCtx, lm.rdb, []string{lk}, token).Err()
	}

	return release, nil
}
