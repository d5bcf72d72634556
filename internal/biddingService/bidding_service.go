package bidding

import (
	"context"
	"errors"
	"fmt"

	"bidding-engine/internal/biddingerrors"
	"bidding-engine/internal/escrow"
	"bidding-engine/internal/models"
	"bidding-engine/internal/notify"
	"bidding-engine/internal/repository"
	"bidding-engine/utils"

	"code.cloudfoundry.org/clock"
	"github.com/shopspring/decimal"
)

// BiddingService serializes bids per auction and applies the resolver's decision
type BiddingService struct {
	repo     repository.AuctionDB
	resolver Resolver
	notifier notify.Notifier
	clock    clock.Clock
}

// NewBiddingService creates a new BiddingService instance
func NewBiddingService(repo repository.AuctionDB, resolver Resolver, notifier notify.Notifier, clk clock.Clock) *BiddingService {
	return &BiddingService{
		repo:     repo,
		resolver: resolver,
		notifier: notifier,
		clock:    clk,
	}
}

// PlaceBid records a bidder's ceiling on an auction and returns the bid with the
// auction as it stands afterwards. The auction is locked for the whole unit of
// work, so concurrent bids on it are applied one at a time.
func (s *BiddingService) PlaceBid(ctx context.Context, bidderID, auctionID string, maxAmount decimal.Decimal) (models.Bid, models.Auction, error) {
	if auctionID == "" || bidderID == "" {
		return models.Bid{}, models.Auction{}, fmt.Errorf("service: %w - missing auctionID or bidderID", biddingerrors.ErrInvalidBid)
	}

	var (
		bid     models.Bid
		updated models.Auction
		outcome Outcome
		txn     *models.Transaction
	)
	err := s.repo.RunInTx(ctx, func(tx repository.AuctionTx) error {
		a, err := tx.LockAuction(ctx, auctionID)
		if err != nil {
			return err
		}
		item, err := tx.GetItem(ctx, a.ItemID)
		if err != nil {
			return err
		}

		now := s.clock.Now().UTC()
		in := Input{
			Auction:   a,
			OwnerID:   item.OwnerID,
			BidderID:  bidderID,
			MaxAmount: maxAmount,
			Now:       now,
		}
		highest, err := tx.GetHighestBid(ctx, auctionID)
		switch {
		case err == nil:
			in.Leader = &Leader{BidderID: highest.BidderID, MaxAmount: highest.MaxAmount}
		case !errors.Is(err, biddingerrors.ErrNoBids):
			return err
		}

		outcome, err = s.resolver.Resolve(in)
		if err != nil {
			return err
		}

		bid = models.Bid{
			BidID:     utils.GenerateID(),
			AuctionID: auctionID,
			BidderID:  bidderID,
			MaxAmount: maxAmount,
			CreatedAt: now,
		}
		updated = outcome.Apply(a)
		updated.UpdatedAt = now

		if err := tx.InsertBid(ctx, bid); err != nil {
			return err
		}
		if err := tx.UpdateAuction(ctx, updated); err != nil {
			return err
		}

		if updated.Status == models.AuctionSold {
			opened, err := escrow.Open(ctx, tx, updated, item.OwnerID, now)
			if err != nil {
				return err
			}
			txn = &opened
		}
		return nil
	})
	if err != nil {
		return models.Bid{}, models.Auction{}, fmt.Errorf("service: failed to place bid on auction %s by user %s: %w", auctionID, bidderID, err)
	}

	fields := map[string]any{
		"auction_id":        auctionID,
		"bid_id":            bid.BidID,
		"current_price":     updated.CurrentPrice.StringFixed(models.MoneyPlaces),
		"highest_bidder_id": updated.HighestBidderID,
		"status":            string(updated.Status),
	}
	if outcome.Extended {
		fields["end_time"] = updated.EndTime
		utils.Info("service: auction extended by late bid", fields)
	}
	if txn != nil {
		utils.Info("service: auction sold at buy-now price", map[string]any{
			"auction_id":     auctionID,
			"transaction_id": txn.TransactionID,
			"amount":         txn.Amount.StringFixed(models.MoneyPlaces),
		})
	}
	utils.Debug("service: bid accepted", fields)

	s.notifier.Publish(ctx, models.AuctionTopic(auctionID), models.NewAuctionUpdate(updated))
	return bid, updated, nil
}

// GetMyMaxBid returns the caller's own highest ceiling on an auction
func (s *BiddingService) GetMyMaxBid(ctx context.Context, userID, auctionID string) (models.Bid, error) {
	if auctionID == "" || userID == "" {
		return models.Bid{}, fmt.Errorf("service: %w - missing auctionID or userID", biddingerrors.ErrInvalidBid)
	}
	if _, err := s.repo.GetAuction(ctx, auctionID); err != nil {
		return models.Bid{}, fmt.Errorf("service: failed to get auction %s: %w", auctionID, err)
	}

	bid, err := s.repo.GetUserMaxBid(ctx, auctionID, userID)
	if err != nil {
		return models.Bid{}, fmt.Errorf("service: failed to get max bid of user %s on auction %s: %w", userID, auctionID, err)
	}
	return bid, nil
}

// GetBidHistory returns the bids placed on an auction, oldest first, without ceilings
func (s *BiddingService) GetBidHistory(ctx context.Context, auctionID string) ([]models.PublicBid, error) {
	if auctionID == "" {
		return nil, fmt.Errorf("service: %w - empty auction ID", biddingerrors.ErrInvalidBid)
	}

	bids, err := s.repo.GetBidsByAuction(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get bids for auction %s: %w", auctionID, err)
	}

	history := make([]models.PublicBid, 0, len(bids))
	for _, b := range bids {
		history = append(history, models.NewPublicBid(b))
	}
	return history, nil
}

// GetAuctionsByBidder returns all auctions a user has placed bids on
func (s *BiddingService) GetAuctionsByBidder(ctx context.Context, userID string) ([]models.Auction, error) {
	if userID == "" {
		return nil, fmt.Errorf("service: %w - empty user ID", biddingerrors.ErrInvalidBid)
	}

	auctions, err := s.repo.GetAuctionsByBidder(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get auctions for user %s: %w", userID, err)
	}
	return auctions, nil
}

// GetWonAuctions returns the auctions a user won, each with the escrow
// transaction the buyer pays through
func (s *BiddingService) GetWonAuctions(ctx context.Context, userID string) ([]models.WonAuction, error) {
	if userID == "" {
		return nil, fmt.Errorf("service: %w - empty user ID", biddingerrors.ErrInvalidBid)
	}

	won, err := s.repo.GetWonAuctions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get auctions won by user %s: %w", userID, err)
	}
	return won, nil
}
