package repository

import (
	"context"
	"time"

	model "bidding-engine/internal/models"
)

//go:generate mockgen -source=repository.go -destination=mock_repository.go -package=repository

// AuctionDB defines the storage interface for the auction system.
// It is the only component allowed to persist state changes.
type AuctionDB interface {
	// RunInTx executes fn as one atomic unit of work. Writes made through tx
	// become visible together when fn returns nil and are discarded otherwise.
	// Every lease taken through tx is released before RunInTx returns.
	RunInTx(ctx context.Context, fn func(tx AuctionTx) error) error

	CreateItem(ctx context.Context, item model.Item) error
	GetItem(ctx context.Context, itemID string) (model.Item, error)
	GetAuction(ctx context.Context, auctionID string) (model.Auction, error)
	GetBidsByAuction(ctx context.Context, auctionID string) ([]model.Bid, error)
	GetUserMaxBid(ctx context.Context, auctionID, userID string) (model.Bid, error)
	GetAuctionsByBidder(ctx context.Context, userID string) ([]model.Auction, error)
	// GetItemsByOwner returns the owner's items oldest first, each with its
	// latest auction by start time
	GetItemsByOwner(ctx context.Context, ownerID string) ([]model.OwnedItem, error)
	// GetWonAuctions returns the auctions that opened a transaction for buyerID
	GetWonAuctions(ctx context.Context, buyerID string) ([]model.WonAuction, error)
	ListExpiredAuctions(ctx context.Context, now time.Time, limit int) ([]model.Auction, error)
	GetTransaction(ctx context.Context, transactionID string) (model.Transaction, error)
	GetTransactionByAuction(ctx context.Context, auctionID string) (model.Transaction, error)
}

// AuctionTx is the view of the store inside one unit of work. Lock* methods
// take an exclusive lease on the entity that lasts until the unit of work ends
// and return a snapshot that no other unit of work can change meanwhile.
type AuctionTx interface {
	GetItem(ctx context.Context, itemID string) (model.Item, error)
	LockItem(ctx context.Context, itemID string) (model.Item, error)
	LockAuction(ctx context.Context, auctionID string) (model.Auction, error)
	LockTransaction(ctx context.Context, transactionID string) (model.Transaction, error)

	// GetHighestBid returns the bid with the largest MaxAmount, earliest first on ties.
	// The caller must hold the auction's lease.
	GetHighestBid(ctx context.Context, auctionID string) (model.Bid, error)
	HasOpenAuction(ctx context.Context, itemID string) (bool, error)

	InsertAuction(ctx context.Context, auction model.Auction) error
	UpdateAuction(ctx context.Context, auction model.Auction) error
	InsertBid(ctx context.Context, bid model.Bid) error
	InsertTransaction(ctx context.Context, txn model.Transaction) error
	UpdateTransaction(ctx context.Context, txn model.Transaction) error
}

// Lease keys
func itemKey(id string) string        { return "item:" + id }
func auctionKey(id string) string     { return "auction:" + id }
func transactionKey(id string) string { return "transaction:" + id }
