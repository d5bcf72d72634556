package bidding

import (
	"context"
	"sync"
	"testing"
	"time"

	"bidding-engine/internal/models"
	"bidding-engine/internal/repository"

	"code.cloudfoundry.org/clock/fakeclock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type published struct {
	topic   string
	payload any
}

// recordingNotifier keeps every update for assertions
type recordingNotifier struct {
	mu   sync.Mutex
	msgs []published
}

func (n *recordingNotifier) Publish(_ context.Context, topic string, payload any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, published{topic: topic, payload: payload})
}

func (n *recordingNotifier) all() []published {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]published{}, n.msgs...)
}

// auctionUpdates returns the auction updates published on topic
func (n *recordingNotifier) auctionUpdates(topic string) []models.AuctionUpdate {
	var out []models.AuctionUpdate
	for _, m := range n.all() {
		if u, ok := m.payload.(models.AuctionUpdate); ok && m.topic == topic {
			out = append(out, u)
		}
	}
	return out
}

// fixture wires the services over a fresh memory store and a fake clock
type fixture struct {
	repo     *repository.MemoryRepo
	clock    *fakeclock.FakeClock
	notifier *recordingNotifier
	bidding  *BiddingService
	auctions *AuctionService
	closer   *Closer
}

func newFixture(t *testing.T, lockTimeout time.Duration) *fixture {
	t.Helper()

	repo := repository.NewMemoryRepo(lockTimeout)
	clk := fakeclock.NewFakeClock(resolverNow)
	notifier := &recordingNotifier{}

	return &fixture{
		repo:     repo,
		clock:    clk,
		notifier: notifier,
		bidding:  NewBiddingService(repo, NewResolver(DefaultIncrementRate, DefaultSnipeWindow), notifier, clk),
		auctions: NewAuctionService(repo, notifier, clk),
		closer:   NewCloser(repo, notifier, clk, time.Second, 10, nil),
	}
}

// openAuction creates and publishes an auction owned by "seller" that ends after d
func (f *fixture) openAuction(t *testing.T, startPrice string, buyNow *decimal.Decimal, d time.Duration) models.Auction {
	t.Helper()
	ctx := context.Background()

	item, err := f.auctions.CreateItem(ctx, "seller", "lamp", "brass desk lamp")
	require.NoError(t, err)

	now := f.clock.Now()
	a, err := f.auctions.CreateAuction(ctx, "seller", NewAuction{
		ItemID:      item.ItemID,
		StartTime:   now,
		EndTime:     now.Add(d),
		StartPrice:  dec(startPrice),
		BuyNowPrice: buyNow,
	})
	require.NoError(t, err)

	a, err = f.auctions.PublishAuction(ctx, "seller", a.AuctionID)
	require.NoError(t, err)
	return a
}
