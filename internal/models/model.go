package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AuctionStatus is the lifecycle state of an auction
type AuctionStatus string

const (
	AuctionDraft     AuctionStatus = "DRAFT"
	AuctionActive    AuctionStatus = "ACTIVE"
	AuctionEnded     AuctionStatus = "ENDED"
	AuctionSold      AuctionStatus = "SOLD"
	AuctionCancelled AuctionStatus = "CANCELLED"
)

// Open reports whether the auction still blocks a new auction for the same item
func (s AuctionStatus) Open() bool {
	return s == AuctionDraft || s == AuctionActive
}

// Terminal reports whether no further auction transition is possible
func (s AuctionStatus) Terminal() bool {
	return s == AuctionEnded || s == AuctionSold || s == AuctionCancelled
}

// TransactionStatus is the escrow state of a sale
type TransactionStatus string

const (
	TransactionPendingPayment TransactionStatus = "PENDING_PAYMENT"
	TransactionInEscrow       TransactionStatus = "IN_ESCROW"
	TransactionShipped        TransactionStatus = "SHIPPED"
	TransactionCompleted      TransactionStatus = "COMPLETED"
)

// Item represents something a seller can put up for auction
type Item struct {
	ItemID      string    `json:"item_id"`
	OwnerID     string    `json:"owner_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// Auction represents one ascending-price sale of an item.
// ReservePrice and BuyNowPrice are nil when unset.
type Auction struct {
	AuctionID       string           `json:"auction_id"`
	ItemID          string           `json:"item_id"`
	Status          AuctionStatus    `json:"status"`
	StartTime       time.Time        `json:"start_time"`
	EndTime         time.Time        `json:"end_time"`
	StartPrice      decimal.Decimal  `json:"start_price"`
	CurrentPrice    decimal.Decimal  `json:"current_price"`
	HighestBidderID string           `json:"highest_bidder_id,omitempty"`
	ReservePrice    *decimal.Decimal `json:"reserve_price,omitempty"`
	BuyNowPrice     *decimal.Decimal `json:"buy_now_price,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// HasLeader reports whether any bid has been accepted
func (a Auction) HasLeader() bool {
	return a.HighestBidderID != ""
}

// ReserveMet reports whether the current price reaches the advisory reserve
func (a Auction) ReserveMet() bool {
	return a.ReservePrice == nil || a.CurrentPrice.GreaterThanOrEqual(*a.ReservePrice)
}

// Bid is a bidder's private ceiling on an auction. Bids are never updated.
type Bid struct {
	BidID     string          `json:"bid_id"`
	AuctionID string          `json:"auction_id"`
	BidderID  string          `json:"bidder_id"`
	MaxAmount decimal.Decimal `json:"max_amount"`
	CreatedAt time.Time       `json:"created_at"`
}

// PublicBid is a bid as shown to other users. The ceiling is never included.
type PublicBid struct {
	BidID     string    `json:"bid_id"`
	AuctionID string    `json:"auction_id"`
	BidderID  string    `json:"bidder_id"`
	CreatedAt time.Time `json:"created_at"`
}

// NewPublicBid strips the ceiling from a bid
func NewPublicBid(b Bid) PublicBid {
	return PublicBid{BidID: b.BidID, AuctionID: b.AuctionID, BidderID: b.BidderID, CreatedAt: b.CreatedAt}
}

// Transaction is the escrow record created when an auction closes with a winner
type Transaction struct {
	TransactionID string            `json:"transaction_id"`
	AuctionID     string            `json:"auction_id"`
	BuyerID       string            `json:"buyer_id"`
	SellerID      string            `json:"seller_id"`
	Amount        decimal.Decimal   `json:"amount"`
	Status        TransactionStatus `json:"status"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// OwnedItem is an item with its most recent auction and, once that auction
// has a winner, the escrow transaction it opened
type OwnedItem struct {
	Item        Item
	Auction     *Auction
	Transaction *Transaction
}

// WonAuction is an auction a user won together with its escrow transaction
type WonAuction struct {
	Auction     Auction
	Transaction Transaction
}

// AuctionUpdate is the payload published to an auction's subscribers.
// It never carries a bidder's ceiling.
type AuctionUpdate struct {
	AuctionID       string          `json:"auction_id"`
	CurrentPrice    decimal.Decimal `json:"current_price"`
	HighestBidderID string          `json:"highest_bidder_id,omitempty"`
	EndTime         time.Time       `json:"end_time"`
	Status          AuctionStatus   `json:"status"`
}

// NewAuctionUpdate builds the public update for an auction snapshot
func NewAuctionUpdate(a Auction) AuctionUpdate {
	return AuctionUpdate{
		AuctionID:       a.AuctionID,
		CurrentPrice:    a.CurrentPrice,
		HighestBidderID: a.HighestBidderID,
		EndTime:         a.EndTime,
		Status:          a.Status,
	}
}

// TransactionUpdate is the payload published to a transaction's subscribers
type TransactionUpdate struct {
	TransactionID string            `json:"transaction_id"`
	Status        TransactionStatus `json:"status"`
}

// AuctionTopic is the notification topic for an auction
func AuctionTopic(auctionID string) string {
	return auctionID
}

// TransactionTopic is the notification topic for a transaction
func TransactionTopic(transactionID string) string {
	return "transaction:" + transactionID
}
