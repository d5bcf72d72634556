package bidding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bidding-engine/internal/biddingerrors"
	"bidding-engine/internal/escrow"
	"bidding-engine/internal/models"
	"bidding-engine/internal/notify"
	"bidding-engine/internal/repository"
	"bidding-engine/utils"

	"code.cloudfoundry.org/clock"
)

const (
	// DefaultSweepInterval is how often expired auctions are looked for
	DefaultSweepInterval = 5 * time.Second
	// DefaultSweepBatch caps the auctions closed per sweep
	DefaultSweepBatch = 100

	closerLeaseKey = "auction-closer"
)

// Locker grants a lease shared between processes. Acquire returns
// biddingerrors.ErrLeaseHeld when another holder has it.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// Closer ends ACTIVE auctions whose end time has passed and opens the escrow
// transaction for those with a winner
type Closer struct {
	repo     repository.AuctionDB
	notifier notify.Notifier
	clock    clock.Clock
	interval time.Duration
	batch    int
	locker   Locker
}

// NewCloser creates a Closer. locker may be nil when only one process sweeps.
func NewCloser(repo repository.AuctionDB, notifier notify.Notifier, clk clock.Clock, interval time.Duration, batch int, locker Locker) *Closer {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if batch <= 0 {
		batch = DefaultSweepBatch
	}
	return &Closer{
		repo:     repo,
		notifier: notifier,
		clock:    clk,
		interval: interval,
		batch:    batch,
		locker:   locker,
	}
}

// Run sweeps once per interval until ctx is cancelled
func (c *Closer) Run(ctx context.Context) error {
	ticker := c.clock.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C():
			if _, err := c.Sweep(ctx); err != nil && !errors.Is(err, context.Canceled) {
				utils.Error("closer: sweep failed", map[string]any{"error": err.Error()})
			}
		}
	}
}

// Sweep closes every auction that has expired by now, up to one batch.
// It returns the number of auctions it closed.
func (c *Closer) Sweep(ctx context.Context) (int, error) {
	if c.locker != nil {
		release, err := c.locker.Acquire(ctx, closerLeaseKey, c.interval)
		if errors.Is(err, biddingerrors.ErrLeaseHeld) {
			utils.Debug("closer: another process is sweeping", nil)
			return 0, nil
		}
		if err != nil {
			return 0, fmt.Errorf("closer: failed to acquire sweep lease: %w", err)
		}
		defer release()
	}

	expired, err := c.repo.ListExpiredAuctions(ctx, c.clock.Now().UTC(), c.batch)
	if err != nil {
		return 0, fmt.Errorf("closer: failed to list expired auctions: %w", err)
	}

	closed := 0
	for _, a := range expired {
		ok, err := c.CloseAuction(ctx, a.AuctionID)
		if err != nil {
			utils.Error("closer: failed to close auction", map[string]any{
				"auction_id": a.AuctionID,
				"error":      err.Error(),
			})
			continue
		}
		if ok {
			closed++
		}
	}
	return closed, nil
}

// CloseAuction ends one auction if it is still ACTIVE and past its end time on
// the locked snapshot. It reports whether the auction was closed.
func (c *Closer) CloseAuction(ctx context.Context, auctionID string) (bool, error) {
	var (
		ended models.Auction
		txn   *models.Transaction
		done  bool
	)
	err := c.repo.RunInTx(ctx, func(tx repository.AuctionTx) error {
		a, err := tx.LockAuction(ctx, auctionID)
		if err != nil {
			return err
		}
		now := c.clock.Now().UTC()
		// a late bid may have extended it since it was listed
		if a.Status != models.AuctionActive || a.EndTime.After(now) {
			return nil
		}

		a.Status = models.AuctionEnded
		a.UpdatedAt = now
		if err := tx.UpdateAuction(ctx, a); err != nil {
			return err
		}
		if a.HasLeader() {
			item, err := tx.GetItem(ctx, a.ItemID)
			if err != nil {
				return err
			}
			opened, err := escrow.Open(ctx, tx, a, item.OwnerID, now)
			if err != nil {
				return err
			}
			txn = &opened
		}
		ended, done = a, true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("closer: failed to close auction %s: %w", auctionID, err)
	}
	if !done {
		return false, nil
	}

	fields := map[string]any{
		"auction_id":    auctionID,
		"current_price": ended.CurrentPrice.StringFixed(models.MoneyPlaces),
	}
	if txn != nil {
		fields["transaction_id"] = txn.TransactionID
		fields["buyer_id"] = txn.BuyerID
	}
	if !ended.ReserveMet() {
		fields["reserve_price"] = ended.ReservePrice.StringFixed(models.MoneyPlaces)
		utils.Warn("closer: auction ended below reserve price", fields)
	} else {
		utils.Info("closer: auction ended", fields)
	}

	c.notifier.Publish(ctx, models.AuctionTopic(auctionID), models.NewAuctionUpdate(ended))
	return true, nil
}
