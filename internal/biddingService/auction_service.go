package bidding

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bidding-engine/internal/biddingerrors"
	"bidding-engine/internal/models"
	"bidding-engine/internal/notify"
	"bidding-engine/internal/repository"
	"bidding-engine/utils"

	"code.cloudfoundry.org/clock"
	"github.com/shopspring/decimal"
)

// NewAuction holds the seller's terms for a new auction.
// ReservePrice and BuyNowPrice are optional.
type NewAuction struct {
	ItemID       string
	StartTime    time.Time
	EndTime      time.Time
	StartPrice   decimal.Decimal
	ReservePrice *decimal.Decimal
	BuyNowPrice  *decimal.Decimal
}

// AuctionService handles items and the DRAFT-only auction transitions
type AuctionService struct {
	repo     repository.AuctionDB
	notifier notify.Notifier
	clock    clock.Clock
}

// NewAuctionService creates a new AuctionService instance
func NewAuctionService(repo repository.AuctionDB, notifier notify.Notifier, clk clock.Clock) *AuctionService {
	return &AuctionService{repo: repo, notifier: notifier, clock: clk}
}

// CreateItem registers an item owned by ownerID
func (s *AuctionService) CreateItem(ctx context.Context, ownerID, title, description string) (models.Item, error) {
	title = strings.TrimSpace(title)
	if ownerID == "" || title == "" {
		return models.Item{}, fmt.Errorf("service: %w - missing ownerID or title", biddingerrors.ErrValidationFailed)
	}

	item := models.Item{
		ItemID:      utils.GenerateID(),
		OwnerID:     ownerID,
		Title:       title,
		Description: description,
		CreatedAt:   s.clock.Now().UTC(),
	}
	if err := s.repo.CreateItem(ctx, item); err != nil {
		return models.Item{}, fmt.Errorf("service: failed to create item for user %s: %w", ownerID, err)
	}
	return item, nil
}

// GetItem returns an item by ID
func (s *AuctionService) GetItem(ctx context.Context, itemID string) (models.Item, error) {
	if itemID == "" {
		return models.Item{}, fmt.Errorf("service: %w - empty item ID", biddingerrors.ErrValidationFailed)
	}
	item, err := s.repo.GetItem(ctx, itemID)
	if err != nil {
		return models.Item{}, fmt.Errorf("service: failed to get item %s: %w", itemID, err)
	}
	return item, nil
}

// GetItemsByOwner lists a seller's items with their latest auction and, once
// sold, its escrow transaction
func (s *AuctionService) GetItemsByOwner(ctx context.Context, ownerID string) ([]models.OwnedItem, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("service: %w - empty owner ID", biddingerrors.ErrValidationFailed)
	}
	owned, err := s.repo.GetItemsByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get items of user %s: %w", ownerID, err)
	}
	return owned, nil
}

// CreateAuction creates a DRAFT auction for an item the caller owns.
// An item may have only one DRAFT or ACTIVE auction at a time.
func (s *AuctionService) CreateAuction(ctx context.Context, ownerID string, req NewAuction) (models.Auction, error) {
	if err := validateNewAuction(ownerID, req); err != nil {
		return models.Auction{}, err
	}

	var created models.Auction
	err := s.repo.RunInTx(ctx, func(tx repository.AuctionTx) error {
		item, err := tx.LockItem(ctx, req.ItemID)
		if err != nil {
			return err
		}
		if item.OwnerID != ownerID {
			return fmt.Errorf("%w - item %s", biddingerrors.ErrNotOwner, req.ItemID)
		}
		open, err := tx.HasOpenAuction(ctx, req.ItemID)
		if err != nil {
			return err
		}
		if open {
			return fmt.Errorf("%w - item %s", biddingerrors.ErrDuplicateAuction, req.ItemID)
		}

		now := s.clock.Now().UTC()
		created = models.Auction{
			AuctionID:    utils.GenerateID(),
			ItemID:       req.ItemID,
			Status:       models.AuctionDraft,
			StartTime:    req.StartTime.UTC(),
			EndTime:      req.EndTime.UTC(),
			StartPrice:   req.StartPrice,
			CurrentPrice: req.StartPrice,
			ReservePrice: req.ReservePrice,
			BuyNowPrice:  req.BuyNowPrice,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		return tx.InsertAuction(ctx, created)
	})
	if err != nil {
		return models.Auction{}, fmt.Errorf("service: failed to create auction for item %s: %w", req.ItemID, err)
	}

	utils.Info("service: auction created", map[string]any{
		"auction_id": created.AuctionID,
		"item_id":    created.ItemID,
		"owner_id":   ownerID,
	})
	return created, nil
}

func validateNewAuction(ownerID string, req NewAuction) error {
	if ownerID == "" || req.ItemID == "" {
		return fmt.Errorf("service: %w - missing ownerID or itemID", biddingerrors.ErrInvalidAuction)
	}
	if err := models.ValidateAmount(req.StartPrice); err != nil {
		return fmt.Errorf("service: %w - start price: %v", biddingerrors.ErrInvalidAuction, err)
	}
	if !req.EndTime.After(req.StartTime) {
		return fmt.Errorf("service: %w - end time must be after start time", biddingerrors.ErrInvalidAuction)
	}
	if req.ReservePrice != nil {
		if err := models.ValidateAmount(*req.ReservePrice); err != nil {
			return fmt.Errorf("service: %w - reserve price: %v", biddingerrors.ErrInvalidAuction, err)
		}
	}
	if req.BuyNowPrice != nil {
		if err := models.ValidateAmount(*req.BuyNowPrice); err != nil {
			return fmt.Errorf("service: %w - buy-now price: %v", biddingerrors.ErrInvalidAuction, err)
		}
		if !req.BuyNowPrice.GreaterThan(req.StartPrice) {
			return fmt.Errorf("service: %w - buy-now price must exceed start price", biddingerrors.ErrInvalidAuction)
		}
	}
	return nil
}

// PublishAuction opens a DRAFT auction for bidding
func (s *AuctionService) PublishAuction(ctx context.Context, ownerID, auctionID string) (models.Auction, error) {
	return s.fromDraft(ctx, ownerID, auctionID, models.AuctionActive)
}

// CancelAuction withdraws a DRAFT auction
func (s *AuctionService) CancelAuction(ctx context.Context, ownerID, auctionID string) (models.Auction, error) {
	return s.fromDraft(ctx, ownerID, auctionID, models.AuctionCancelled)
}

func (s *AuctionService) fromDraft(ctx context.Context, ownerID, auctionID string, to models.AuctionStatus) (models.Auction, error) {
	if auctionID == "" || ownerID == "" {
		return models.Auction{}, fmt.Errorf("service: %w - missing auctionID or ownerID", biddingerrors.ErrInvalidAuction)
	}

	var updated models.Auction
	err := s.repo.RunInTx(ctx, func(tx repository.AuctionTx) error {
		a, err := tx.LockAuction(ctx, auctionID)
		if err != nil {
			return err
		}
		item, err := tx.GetItem(ctx, a.ItemID)
		if err != nil {
			return err
		}
		if item.OwnerID != ownerID {
			return fmt.Errorf("%w - auction %s", biddingerrors.ErrNotOwner, auctionID)
		}
		if a.Status != models.AuctionDraft {
			return fmt.Errorf("%w - auction %s is %s", biddingerrors.ErrNotDraft, auctionID, a.Status)
		}

		now := s.clock.Now().UTC()
		if to == models.AuctionActive && !a.EndTime.After(now) {
			return fmt.Errorf("%w - end time %s has already passed", biddingerrors.ErrInvalidAuction, a.EndTime.Format(time.RFC3339))
		}

		a.Status = to
		a.UpdatedAt = now
		updated = a
		return tx.UpdateAuction(ctx, a)
	})
	if err != nil {
		return models.Auction{}, fmt.Errorf("service: failed to move auction %s to %s: %w", auctionID, to, err)
	}

	utils.Info("service: auction status changed", map[string]any{
		"auction_id": auctionID,
		"status":     string(to),
	})
	s.notifier.Publish(ctx, models.AuctionTopic(auctionID), models.NewAuctionUpdate(updated))
	return updated, nil
}

// GetAuction returns the committed state of an auction
func (s *AuctionService) GetAuction(ctx context.Context, auctionID string) (models.Auction, error) {
	if auctionID == "" {
		return models.Auction{}, fmt.Errorf("service: %w - empty auction ID", biddingerrors.ErrInvalidAuction)
	}
	a, err := s.repo.GetAuction(ctx, auctionID)
	if err != nil {
		return models.Auction{}, fmt.Errorf("service: failed to get auction %s: %w", auctionID, err)
	}
	return a, nil
}
