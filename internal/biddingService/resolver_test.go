package bidding

import (
	"testing"
	"time"

	"bidding-engine/internal/biddingerrors"
	"bidding-engine/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

var resolverNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

// activeAuction returns an ACTIVE auction starting at 100 that ends in an hour
func activeAuction() models.Auction {
	return models.Auction{
		AuctionID:    "auction1",
		ItemID:       "item1",
		Status:       models.AuctionActive,
		StartTime:    resolverNow.Add(-time.Hour),
		EndTime:      resolverNow.Add(time.Hour),
		StartPrice:   dec("100"),
		CurrentPrice: dec("100"),
	}
}

func withLeader(a models.Auction, bidderID, price string) models.Auction {
	a.HighestBidderID = bidderID
	a.CurrentPrice = dec(price)
	return a
}

func TestResolver_Resolve(t *testing.T) {
	t.Parallel()

	r := NewResolver(DefaultIncrementRate, DefaultSnipeWindow)

	tests := []struct {
		name       string
		auction    models.Auction
		leader     *Leader
		bidderID   string
		maxAmount  string
		wantPrice  string
		wantLeader string
	}{
		{
			name:       "first_bid_takes_start_price",
			auction:    activeAuction(),
			bidderID:   "x",
			maxAmount:  "150",
			wantPrice:  "100",
			wantLeader: "x",
		},
		{
			name:       "challenger_below_leader_max",
			auction:    withLeader(activeAuction(), "x", "100"),
			leader:     &Leader{BidderID: "x", MaxAmount: dec("150")},
			bidderID:   "y",
			maxAmount:  "140",
			wantPrice:  "147",
			wantLeader: "x",
		},
		{
			name:       "challenger_capped_by_leader_max",
			auction:    withLeader(activeAuction(), "x", "100"),
			leader:     &Leader{BidderID: "x", MaxAmount: dec("150")},
			bidderID:   "y",
			maxAmount:  "145",
			wantPrice:  "150",
			wantLeader: "x",
		},
		{
			name:       "tie_stays_with_incumbent",
			auction:    withLeader(activeAuction(), "x", "100"),
			leader:     &Leader{BidderID: "x", MaxAmount: dec("150")},
			bidderID:   "y",
			maxAmount:  "150",
			wantPrice:  "150",
			wantLeader: "x",
		},
		{
			name:       "overtake_rises_one_increment_above_old_max",
			auction:    withLeader(activeAuction(), "x", "100"),
			leader:     &Leader{BidderID: "x", MaxAmount: dec("150")},
			bidderID:   "y",
			maxAmount:  "200",
			wantPrice:  "157.5",
			wantLeader: "y",
		},
		{
			name:       "overtake_capped_by_new_max",
			auction:    withLeader(activeAuction(), "x", "100"),
			leader:     &Leader{BidderID: "x", MaxAmount: dec("150")},
			bidderID:   "y",
			maxAmount:  "155",
			wantPrice:  "155",
			wantLeader: "y",
		},
		{
			name:       "leader_raises_own_max",
			auction:    withLeader(activeAuction(), "x", "120"),
			leader:     &Leader{BidderID: "x", MaxAmount: dec("150")},
			bidderID:   "x",
			maxAmount:  "300",
			wantPrice:  "120",
			wantLeader: "x",
		},
		{
			name:       "leader_repeats_own_max",
			auction:    withLeader(activeAuction(), "x", "120"),
			leader:     &Leader{BidderID: "x", MaxAmount: dec("150")},
			bidderID:   "x",
			maxAmount:  "150",
			wantPrice:  "120",
			wantLeader: "x",
		},
		{
			name:       "leader_lowers_own_max",
			auction:    withLeader(activeAuction(), "x", "100"),
			leader:     &Leader{BidderID: "x", MaxAmount: dec("200")},
			bidderID:   "x",
			maxAmount:  "150",
			wantPrice:  "157.5",
			wantLeader: "x",
		},
		{
			name:       "increment_floored_to_cents",
			auction:    withLeader(activeAuction(), "x", "100"),
			leader:     &Leader{BidderID: "x", MaxAmount: dec("300")},
			bidderID:   "y",
			maxAmount:  "100.01",
			wantPrice:  "105.01",
			wantLeader: "x",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			out, err := r.Resolve(Input{
				Auction:   tc.auction,
				OwnerID:   "seller",
				Leader:    tc.leader,
				BidderID:  tc.bidderID,
				MaxAmount: dec(tc.maxAmount),
				Now:       resolverNow,
			})
			require.NoError(t, err)
			require.True(t, dec(tc.wantPrice).Equal(out.CurrentPrice), "price: want %s got %s", tc.wantPrice, out.CurrentPrice)
			require.Equal(t, tc.wantLeader, out.HighestBidderID)
			require.Equal(t, models.AuctionActive, out.Status)
			require.Equal(t, tc.auction.EndTime, out.EndTime)
			require.False(t, out.BuyNowTriggered)
		})
	}
}

func TestResolver_Validate(t *testing.T) {
	t.Parallel()

	r := NewResolver(DefaultIncrementRate, DefaultSnipeWindow)

	draft := activeAuction()
	draft.Status = models.AuctionDraft
	sold := activeAuction()
	sold.Status = models.AuctionSold
	expired := activeAuction()
	expired.EndTime = resolverNow

	tests := []struct {
		name      string
		auction   models.Auction
		bidderID  string
		maxAmount string
		wantErr   error
		wantKind  biddingerrors.Kind
	}{
		{name: "owner_bids", auction: activeAuction(), bidderID: "seller", maxAmount: "200", wantErr: biddingerrors.ErrSelfBid, wantKind: biddingerrors.KindForbidden},
		{name: "owner_checked_before_status", auction: draft, bidderID: "seller", maxAmount: "200", wantErr: biddingerrors.ErrSelfBid, wantKind: biddingerrors.KindForbidden},
		{name: "draft", auction: draft, bidderID: "x", maxAmount: "200", wantErr: biddingerrors.ErrNotActive, wantKind: biddingerrors.KindInvalidState},
		{name: "sold", auction: sold, bidderID: "x", maxAmount: "200", wantErr: biddingerrors.ErrNotActive, wantKind: biddingerrors.KindInvalidState},
		{name: "past_end_time", auction: expired, bidderID: "x", maxAmount: "200", wantErr: biddingerrors.ErrAuctionClosed, wantKind: biddingerrors.KindInvalidState},
		{name: "equal_to_current_price", auction: activeAuction(), bidderID: "x", maxAmount: "100", wantErr: biddingerrors.ErrBidTooLow, wantKind: biddingerrors.KindValidationFailed},
		{name: "below_current_price", auction: activeAuction(), bidderID: "x", maxAmount: "50", wantErr: biddingerrors.ErrBidTooLow, wantKind: biddingerrors.KindValidationFailed},
		{name: "sub_cent_amount", auction: activeAuction(), bidderID: "x", maxAmount: "150.001", wantErr: biddingerrors.ErrInvalidBid, wantKind: biddingerrors.KindValidationFailed},
		{name: "missing_bidder", auction: activeAuction(), bidderID: "", maxAmount: "150", wantErr: biddingerrors.ErrInvalidBid, wantKind: biddingerrors.KindValidationFailed},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := r.Resolve(Input{
				Auction:   tc.auction,
				OwnerID:   "seller",
				BidderID:  tc.bidderID,
				MaxAmount: dec(tc.maxAmount),
				Now:       resolverNow,
			})
			require.ErrorIs(t, err, tc.wantErr)
			require.Equal(t, tc.wantKind, biddingerrors.KindOf(err))
		})
	}
}

func TestResolver_BuyNow(t *testing.T) {
	t.Parallel()

	r := NewResolver(DefaultIncrementRate, DefaultSnipeWindow)

	t.Run("first_bid_reaching_buy_now_sells", func(t *testing.T) {
		t.Parallel()
		a := activeAuction()
		a.BuyNowPrice = decPtr("500")

		out, err := r.Resolve(Input{Auction: a, OwnerID: "seller", BidderID: "x", MaxAmount: dec("600"), Now: resolverNow})
		require.NoError(t, err)
		require.True(t, out.BuyNowTriggered)
		require.Equal(t, models.AuctionSold, out.Status)
		require.True(t, dec("500").Equal(out.CurrentPrice))
		require.Equal(t, "x", out.HighestBidderID)
		require.Equal(t, resolverNow, out.EndTime)
		require.Nil(t, out.BuyNowPrice)
	})

	t.Run("first_bid_below_buy_now_clears_it", func(t *testing.T) {
		t.Parallel()
		a := activeAuction()
		a.BuyNowPrice = decPtr("500")

		out, err := r.Resolve(Input{Auction: a, OwnerID: "seller", BidderID: "x", MaxAmount: dec("499.99"), Now: resolverNow})
		require.NoError(t, err)
		require.False(t, out.BuyNowTriggered)
		require.Equal(t, models.AuctionActive, out.Status)
		require.True(t, dec("100").Equal(out.CurrentPrice))
		require.Nil(t, out.BuyNowPrice)
	})

	t.Run("resolved_price_reaching_buy_now_sells_to_bidder", func(t *testing.T) {
		t.Parallel()
		a := withLeader(activeAuction(), "x", "100")
		a.BuyNowPrice = decPtr("150")

		out, err := r.Resolve(Input{
			Auction:   a,
			OwnerID:   "seller",
			Leader:    &Leader{BidderID: "x", MaxAmount: dec("300")},
			BidderID:  "y",
			MaxAmount: dec("200"),
			Now:       resolverNow,
		})
		require.NoError(t, err)
		require.True(t, out.BuyNowTriggered)
		require.Equal(t, "y", out.HighestBidderID)
		require.True(t, dec("150").Equal(out.CurrentPrice))
	})

	t.Run("buy_now_skips_anti_sniping", func(t *testing.T) {
		t.Parallel()
		a := activeAuction()
		a.EndTime = resolverNow.Add(30 * time.Second)
		a.BuyNowPrice = decPtr("200")

		out, err := r.Resolve(Input{Auction: a, OwnerID: "seller", BidderID: "x", MaxAmount: dec("200"), Now: resolverNow})
		require.NoError(t, err)
		require.False(t, out.Extended)
		require.Equal(t, resolverNow, out.EndTime)
	})
}

func TestResolver_AntiSniping(t *testing.T) {
	t.Parallel()

	r := NewResolver(DefaultIncrementRate, DefaultSnipeWindow)

	tests := []struct {
		name         string
		remaining    time.Duration
		wantExtended bool
	}{
		{name: "one_minute_left", remaining: time.Minute, wantExtended: true},
		{name: "one_second_left", remaining: time.Second, wantExtended: true},
		{name: "exactly_window_left", remaining: 3 * time.Minute, wantExtended: false},
		{name: "ten_minutes_left", remaining: 10 * time.Minute, wantExtended: false},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			a := activeAuction()
			a.EndTime = resolverNow.Add(tc.remaining)

			out, err := r.Resolve(Input{Auction: a, OwnerID: "seller", BidderID: "x", MaxAmount: dec("150"), Now: resolverNow})
			require.NoError(t, err)
			require.Equal(t, tc.wantExtended, out.Extended)
			if tc.wantExtended {
				require.Equal(t, resolverNow.Add(3*time.Minute), out.EndTime)
			} else {
				require.Equal(t, a.EndTime, out.EndTime)
			}
			require.False(t, out.EndTime.Before(a.EndTime))
		})
	}
}

func TestOutcome_Apply(t *testing.T) {
	t.Parallel()

	a := activeAuction()
	a.BuyNowPrice = decPtr("500")
	out := Outcome{
		CurrentPrice:    dec("120"),
		HighestBidderID: "x",
		Status:          models.AuctionActive,
		EndTime:         a.EndTime.Add(time.Minute),
	}

	got := out.Apply(a)
	require.Equal(t, a.AuctionID, got.AuctionID)
	require.True(t, dec("120").Equal(got.CurrentPrice))
	require.Equal(t, "x", got.HighestBidderID)
	require.Nil(t, got.BuyNowPrice)
	require.NotNil(t, a.BuyNowPrice)
}

// Any sequence of bids keeps the visible price non-decreasing and at or below the leader's ceiling
func TestProperty_PriceMonotoneAndBoundedByLeader(t *testing.T) {
	r := NewResolver(DefaultIncrementRate, DefaultSnipeWindow)

	rapid.Check(t, func(t *rapid.T) {
		a := activeAuction()
		a.EndTime = resolverNow.Add(24 * time.Hour)
		var leader *Leader
		bidders := []string{"a", "b", "c"}

		steps := rapid.IntRange(1, 40).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			bidder := rapid.SampledFrom(bidders).Draw(t, "bidder")
			cents := rapid.Int64Range(1, 100_000_00).Draw(t, "cents")
			maxAmount := decimal.New(cents, -2)

			out, err := r.Resolve(Input{Auction: a, OwnerID: "seller", Leader: leader, BidderID: bidder, MaxAmount: maxAmount, Now: resolverNow})
			if err != nil {
				if !maxAmount.GreaterThan(a.CurrentPrice) {
					continue
				}
				t.Fatalf("unexpected rejection of %s at price %s: %v", maxAmount, a.CurrentPrice, err)
			}

			if out.CurrentPrice.LessThan(a.CurrentPrice) {
				t.Fatalf("price fell from %s to %s", a.CurrentPrice, out.CurrentPrice)
			}
			if !out.CurrentPrice.Equal(models.FloorCents(out.CurrentPrice)) {
				t.Fatalf("price %s has sub-cent precision", out.CurrentPrice)
			}

			if leader == nil || maxAmount.GreaterThan(leader.MaxAmount) {
				leader = &Leader{BidderID: bidder, MaxAmount: maxAmount}
			}
			if out.HighestBidderID != leader.BidderID {
				t.Fatalf("leader %s, highest ceiling belongs to %s", out.HighestBidderID, leader.BidderID)
			}
			if out.CurrentPrice.GreaterThan(leader.MaxAmount) {
				t.Fatalf("price %s exceeds leader ceiling %s", out.CurrentPrice, leader.MaxAmount)
			}
			a = out.Apply(a)
		}
	})
}
