// Package escrow drives the post-sale handshake between buyer and seller.
//
// A transaction moves strictly forward through
//
//	PENDING_PAYMENT -> IN_ESCROW -> SHIPPED -> COMPLETED
//
// and each step may only be taken by one party: the buyer pays, the seller
// ships, the buyer confirms receipt.
package escrow

import (
	"context"
	"fmt"
	"time"

	"bidding-engine/internal/biddingerrors"
	"bidding-engine/internal/models"
	"bidding-engine/internal/notify"
	"bidding-engine/internal/repository"
	"bidding-engine/utils"

	"code.cloudfoundry.org/clock"
)

// Role is the party allowed to take a step
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
)

// Action is a step of the handshake
type Action string

const (
	ActionPay            Action = "pay"
	ActionShip           Action = "ship"
	ActionConfirmReceipt Action = "confirm_receipt"
)

type rule struct {
	from models.TransactionStatus
	to   models.TransactionStatus
	role Role
}

var transitions = map[Action]rule{
	ActionPay:            {from: models.TransactionPendingPayment, to: models.TransactionInEscrow, role: RoleBuyer},
	ActionShip:           {from: models.TransactionInEscrow, to: models.TransactionShipped, role: RoleSeller},
	ActionConfirmReceipt: {from: models.TransactionShipped, to: models.TransactionCompleted, role: RoleBuyer},
}

// Open creates the PENDING_PAYMENT transaction for an auction that closed with
// a winner. It must run inside the unit of work that closes the auction.
func Open(ctx context.Context, tx repository.AuctionTx, a models.Auction, sellerID string, now time.Time) (models.Transaction, error) {
	if a.Status != models.AuctionSold && a.Status != models.AuctionEnded {
		return models.Transaction{}, fmt.Errorf("escrow: %w - auction %s is %s", biddingerrors.ErrInvalidState, a.AuctionID, a.Status)
	}
	if !a.HasLeader() {
		return models.Transaction{}, fmt.Errorf("escrow: %w - auction %s has no winner", biddingerrors.ErrInvalidState, a.AuctionID)
	}

	txn := models.Transaction{
		TransactionID: utils.GenerateID(),
		AuctionID:     a.AuctionID,
		BuyerID:       a.HighestBidderID,
		SellerID:      sellerID,
		Amount:        a.CurrentPrice,
		Status:        models.TransactionPendingPayment,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := tx.InsertTransaction(ctx, txn); err != nil {
		return models.Transaction{}, fmt.Errorf("escrow: failed to open transaction for auction %s: %w", a.AuctionID, err)
	}
	return txn, nil
}

// Service applies handshake steps under the transaction's lease
type Service struct {
	repo     repository.AuctionDB
	notifier notify.Notifier
	clock    clock.Clock
}

// NewService creates a new escrow Service
func NewService(repo repository.AuctionDB, notifier notify.Notifier, clk clock.Clock) *Service {
	return &Service{repo: repo, notifier: notifier, clock: clk}
}

// Pay moves a transaction from PENDING_PAYMENT to IN_ESCROW. Buyer only.
func (s *Service) Pay(ctx context.Context, transactionID, userID string) (models.Transaction, error) {
	return s.transition(ctx, transactionID, userID, ActionPay)
}

// Ship moves a transaction from IN_ESCROW to SHIPPED. Seller only.
func (s *Service) Ship(ctx context.Context, transactionID, userID string) (models.Transaction, error) {
	return s.transition(ctx, transactionID, userID, ActionShip)
}

// ConfirmReceipt moves a transaction from SHIPPED to COMPLETED. Buyer only.
func (s *Service) ConfirmReceipt(ctx context.Context, transactionID, userID string) (models.Transaction, error) {
	return s.transition(ctx, transactionID, userID, ActionConfirmReceipt)
}

// GetTransaction returns a transaction to one of its two parties
func (s *Service) GetTransaction(ctx context.Context, transactionID, userID string) (models.Transaction, error) {
	if transactionID == "" || userID == "" {
		return models.Transaction{}, fmt.Errorf("escrow: %w - missing transactionID or userID", biddingerrors.ErrValidationFailed)
	}
	txn, err := s.repo.GetTransaction(ctx, transactionID)
	if err != nil {
		return models.Transaction{}, fmt.Errorf("escrow: failed to get transaction %s: %w", transactionID, err)
	}
	if _, ok := roleOf(txn, userID); !ok {
		return models.Transaction{}, fmt.Errorf("escrow: %w - transaction %s", biddingerrors.ErrNotParty, transactionID)
	}
	return txn, nil
}

// GetTransactionByAuction returns the transaction an auction opened to one of
// its two parties
func (s *Service) GetTransactionByAuction(ctx context.Context, auctionID, userID string) (models.Transaction, error) {
	if auctionID == "" || userID == "" {
		return models.Transaction{}, fmt.Errorf("escrow: %w - missing auctionID or userID", biddingerrors.ErrValidationFailed)
	}
	txn, err := s.repo.GetTransactionByAuction(ctx, auctionID)
	if err != nil {
		return models.Transaction{}, fmt.Errorf("escrow: failed to get transaction for auction %s: %w", auctionID, err)
	}
	if _, ok := roleOf(txn, userID); !ok {
		return models.Transaction{}, fmt.Errorf("escrow: %w - auction %s", biddingerrors.ErrNotParty, auctionID)
	}
	return txn, nil
}

func (s *Service) transition(ctx context.Context, transactionID, userID string, action Action) (models.Transaction, error) {
	r, ok := transitions[action]
	if !ok {
		return models.Transaction{}, fmt.Errorf("escrow: unknown action %q", action)
	}
	if transactionID == "" || userID == "" {
		return models.Transaction{}, fmt.Errorf("escrow: %w - missing transactionID or userID", biddingerrors.ErrValidationFailed)
	}

	var updated models.Transaction
	err := s.repo.RunInTx(ctx, func(tx repository.AuctionTx) error {
		txn, err := tx.LockTransaction(ctx, transactionID)
		if err != nil {
			return err
		}
		if err := check(txn, userID, r); err != nil {
			return err
		}

		txn.Status = r.to
		txn.UpdatedAt = s.clock.Now().UTC()
		if err := tx.UpdateTransaction(ctx, txn); err != nil {
			return err
		}
		updated = txn
		return nil
	})
	if err != nil {
		return models.Transaction{}, fmt.Errorf("escrow: %s transaction %s: %w", action, transactionID, err)
	}

	utils.Info("escrow: transaction advanced", map[string]any{
		"transaction_id": updated.TransactionID,
		"auction_id":     updated.AuctionID,
		"action":         string(action),
		"status":         string(updated.Status),
	})
	s.notifier.Publish(ctx, models.TransactionTopic(updated.TransactionID), models.TransactionUpdate{
		TransactionID: updated.TransactionID,
		Status:        updated.Status,
	})
	return updated, nil
}

// check enforces the role first, then the predecessor state
func check(txn models.Transaction, userID string, r rule) error {
	role, ok := roleOf(txn, userID)
	if !ok {
		return fmt.Errorf("%w - transaction %s", biddingerrors.ErrNotParty, txn.TransactionID)
	}
	if role != r.role {
		return fmt.Errorf("%w - only the %s may move %s to %s", biddingerrors.ErrWrongRole, r.role, r.from, r.to)
	}
	if txn.Status != r.from {
		return fmt.Errorf("%w - transaction %s is %s, expected %s", biddingerrors.ErrBadTransition, txn.TransactionID, txn.Status, r.from)
	}
	return nil
}

func roleOf(txn models.Transaction, userID string) (Role, bool) {
	switch userID {
	case txn.BuyerID:
		return RoleBuyer, true
	case txn.SellerID:
		return RoleSeller, true
	}
	return "", false
}
