package bidding

import (
	"fmt"
	"time"

	"bidding-engine/internal/biddingerrors"
	"bidding-engine/internal/models"

	"github.com/shopspring/decimal"
)

// Defaults for the proxy increment and the anti-sniping window
var (
	DefaultIncrementRate = decimal.NewFromFloat(0.05)
	DefaultSnipeWindow   = 3 * time.Minute
)

// Resolver decides the outcome of a single bid. It holds no state and never
// touches storage, so it is safe for concurrent use.
type Resolver struct {
	rate   decimal.Decimal
	window time.Duration
}

// NewResolver creates a Resolver. Non-positive arguments fall back to the defaults.
func NewResolver(rate decimal.Decimal, window time.Duration) Resolver {
	if !rate.IsPositive() {
		rate = DefaultIncrementRate
	}
	if window <= 0 {
		window = DefaultSnipeWindow
	}
	return Resolver{rate: rate, window: window}
}

// Leader is the bid currently holding the auction
type Leader struct {
	BidderID  string
	MaxAmount decimal.Decimal
}

// Input is everything the resolver needs to judge one bid.
// Leader is nil when the auction has no bids yet.
type Input struct {
	Auction   models.Auction
	OwnerID   string
	Leader    *Leader
	BidderID  string
	MaxAmount decimal.Decimal
	Now       time.Time
}

// Outcome is the new visible state of the auction after a bid
type Outcome struct {
	CurrentPrice    decimal.Decimal
	HighestBidderID string
	Status          models.AuctionStatus
	EndTime         time.Time
	BuyNowPrice     *decimal.Decimal

	BuyNowTriggered bool
	Extended        bool
}

// Apply returns a copy of a with the outcome written over it
func (o Outcome) Apply(a models.Auction) models.Auction {
	a.CurrentPrice = o.CurrentPrice
	a.HighestBidderID = o.HighestBidderID
	a.Status = o.Status
	a.EndTime = o.EndTime
	a.BuyNowPrice = o.BuyNowPrice
	return a
}

// Validate checks the bid preconditions in order. It must be called with a
// snapshot read under the auction's lease.
func (r Resolver) Validate(in Input) error {
	a := in.Auction
	if in.BidderID == "" {
		return fmt.Errorf("resolver: %w - missing bidder", biddingerrors.ErrInvalidBid)
	}
	if in.BidderID == in.OwnerID {
		return fmt.Errorf("resolver: %w - auction %s", biddingerrors.ErrSelfBid, a.AuctionID)
	}
	if a.Status != models.AuctionActive {
		return fmt.Errorf("resolver: %w - auction %s is %s", biddingerrors.ErrNotActive, a.AuctionID, a.Status)
	}
	if !in.Now.Before(a.EndTime) {
		return fmt.Errorf("resolver: %w - auction %s ended at %s", biddingerrors.ErrAuctionClosed, a.AuctionID, a.EndTime.Format(time.RFC3339))
	}
	if !in.MaxAmount.GreaterThan(a.CurrentPrice) {
		return fmt.Errorf("resolver: %w - current price is %s", biddingerrors.ErrBidTooLow, a.CurrentPrice.StringFixed(models.MoneyPlaces))
	}
	if err := models.ValidateAmount(in.MaxAmount); err != nil {
		return fmt.Errorf("resolver: %w - %v", biddingerrors.ErrInvalidBid, err)
	}
	return nil
}

// Resolve validates the bid and computes the new auction state
func (r Resolver) Resolve(in Input) (Outcome, error) {
	if err := r.Validate(in); err != nil {
		return Outcome{}, err
	}

	a := in.Auction
	out := Outcome{
		CurrentPrice:    a.CurrentPrice,
		HighestBidderID: a.HighestBidderID,
		Status:          a.Status,
		EndTime:         a.EndTime,
		BuyNowPrice:     a.BuyNowPrice,
	}

	switch {
	case in.Leader == nil:
		out.HighestBidderID = in.BidderID
		out.CurrentPrice = a.StartPrice

	case in.Leader.BidderID == in.BidderID:
		out.HighestBidderID = in.BidderID
		if in.MaxAmount.LessThan(in.Leader.MaxAmount) {
			out.CurrentPrice = models.MinAmount(in.Leader.MaxAmount, r.raise(in.MaxAmount))
		}

	case in.MaxAmount.GreaterThan(in.Leader.MaxAmount):
		out.HighestBidderID = in.BidderID
		out.CurrentPrice = models.MinAmount(in.MaxAmount, r.raise(in.Leader.MaxAmount))

	default:
		// ties stay with the incumbent
		out.CurrentPrice = models.MinAmount(in.Leader.MaxAmount, r.raise(in.MaxAmount))
	}

	if a.BuyNowPrice != nil && r.buyNowReached(in, out.CurrentPrice) {
		out.CurrentPrice = *a.BuyNowPrice
		out.HighestBidderID = in.BidderID
		out.Status = models.AuctionSold
		out.EndTime = in.Now
		out.BuyNowPrice = nil
		out.BuyNowTriggered = true
		return out, nil
	}

	if in.Leader == nil {
		out.BuyNowPrice = nil
	}

	if out.EndTime.Sub(in.Now) < r.window {
		out.EndTime = in.Now.Add(r.window)
		out.Extended = true
	}
	return out, nil
}

// buyNowReached reports whether the bid should close the auction at the buy-now price.
// The first bid only sets the visible price to the start price, so its ceiling is what counts.
func (r Resolver) buyNowReached(in Input, price decimal.Decimal) bool {
	buyNow := *in.Auction.BuyNowPrice
	if price.GreaterThanOrEqual(buyNow) {
		return true
	}
	return in.Leader == nil && in.MaxAmount.GreaterThanOrEqual(buyNow)
}

// raise returns amount plus one increment, floored to cents
func (r Resolver) raise(amount decimal.Decimal) decimal.Decimal {
	return models.FloorCents(amount.Add(amount.Mul(r.rate)))
}
