package helpers

import (
	"time"

	model "bidding-engine/internal/models"

	"github.com/shopspring/decimal"
)

// Money travels as a decimal string so no precision is lost in JSON.

// Request DTOs
type CreateItemRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
}

type CreateAuctionRequest struct {
	ItemID       string    `json:"item_id" binding:"required"`
	StartTime    time.Time `json:"start_time" binding:"required"`
	EndTime      time.Time `json:"end_time" binding:"required"`
	StartPrice   string    `json:"start_price" binding:"required"`
	ReservePrice *string   `json:"reserve_price"`
	BuyNowPrice  *string   `json:"buy_now_price"`
}

type PlaceBidRequest struct {
	AuctionID string `json:"auction_id" binding:"required"`
	MaxAmount string `json:"max_amount" binding:"required"`
}

// Response DTOs
type ItemResponse struct {
	ItemID      string `json:"item_id"`
	OwnerID     string `json:"owner_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	CreatedAt   string `json:"created_at"`
}

type AuctionResponse struct {
	AuctionID       string  `json:"auction_id"`
	ItemID          string  `json:"item_id"`
	Status          string  `json:"status"`
	StartTime       string  `json:"start_time"`
	EndTime         string  `json:"end_time"`
	StartPrice      string  `json:"start_price"`
	CurrentPrice    string  `json:"current_price"`
	HighestBidderID string  `json:"highest_bidder_id,omitempty"`
	ReservePrice    *string `json:"reserve_price,omitempty"`
	ReserveMet      bool    `json:"reserve_met"`
	BuyNowPrice     *string `json:"buy_now_price,omitempty"`
}

// BidResponse is shown only to the bidder who placed the bid
type BidResponse struct {
	BidID     string `json:"bid_id"`
	AuctionID string `json:"auction_id"`
	BidderID  string `json:"bidder_id"`
	MaxAmount string `json:"max_amount"`
	CreatedAt string `json:"created_at"`
}

type PublicBidResponse struct {
	BidID     string `json:"bid_id"`
	AuctionID string `json:"auction_id"`
	BidderID  string `json:"bidder_id"`
	CreatedAt string `json:"created_at"`
}

type PlaceBidResponse struct {
	Bid     BidResponse     `json:"bid"`
	Auction AuctionResponse `json:"auction"`
}

type TransactionResponse struct {
	TransactionID string `json:"transaction_id"`
	AuctionID     string `json:"auction_id"`
	BuyerID       string `json:"buyer_id"`
	SellerID      string `json:"seller_id"`
	Amount        string `json:"amount"`
	Status        string `json:"status"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatMoney(d decimal.Decimal) string {
	return d.StringFixed(model.MoneyPlaces)
}

func formatOptionalMoney(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := formatMoney(*d)
	return &s
}

func NewItemResponse(item model.Item) ItemResponse {
	return ItemResponse{
		ItemID:      item.ItemID,
		OwnerID:     item.OwnerID,
		Title:       item.Title,
		Description: item.Description,
		CreatedAt:   formatTime(item.CreatedAt),
	}
}

func NewAuctionResponse(a model.Auction) AuctionResponse {
	return AuctionResponse{
		AuctionID:       a.AuctionID,
		ItemID:          a.ItemID,
		Status:          string(a.Status),
		StartTime:       formatTime(a.StartTime),
		EndTime:         formatTime(a.EndTime),
		StartPrice:      formatMoney(a.StartPrice),
		CurrentPrice:    formatMoney(a.CurrentPrice),
		HighestBidderID: a.HighestBidderID,
		ReservePrice:    formatOptionalMoney(a.ReservePrice),
		ReserveMet:      a.ReserveMet(),
		BuyNowPrice:     formatOptionalMoney(a.BuyNowPrice),
	}
}

func NewAuctionResponses(auctions []model.Auction) []AuctionResponse {
	out := make([]AuctionResponse, 0, len(auctions))
	for _, a := range auctions {
		out = append(out, NewAuctionResponse(a))
	}
	return out
}

func NewBidResponse(b model.Bid) BidResponse {
	return BidResponse{
		BidID:     b.BidID,
		AuctionID: b.AuctionID,
		BidderID:  b.BidderID,
		MaxAmount: formatMoney(b.MaxAmount),
		CreatedAt: formatTime(b.CreatedAt),
	}
}

func NewPublicBidResponses(bids []model.PublicBid) []PublicBidResponse {
	out := make([]PublicBidResponse, 0, len(bids))
	for _, b := range bids {
		out = append(out, PublicBidResponse{
			BidID:     b.BidID,
			AuctionID: b.AuctionID,
			BidderID:  b.BidderID,
			CreatedAt: formatTime(b.CreatedAt),
		})
	}
	return out
}

func NewTransactionResponse(t model.Transaction) TransactionResponse {
	return TransactionResponse{
		TransactionID: t.TransactionID,
		AuctionID:     t.AuctionID,
		BuyerID:       t.BuyerID,
		SellerID:      t.SellerID,
		Amount:        formatMoney(t.Amount),
		Status:        string(t.Status),
		CreatedAt:     formatTime(t.CreatedAt),
		UpdatedAt:     formatTime(t.UpdatedAt),
	}
}

type OwnedItemResponse struct {
	Item        ItemResponse         `json:"item"`
	Auction     *AuctionResponse     `json:"auction"`
	Transaction *TransactionResponse `json:"transaction"`
}

// NewOwnedItemResponses keeps null auction and transaction for items never listed or not yet sold
func NewOwnedItemResponses(items []model.OwnedItem) []OwnedItemResponse {
	out := make([]OwnedItemResponse, 0, len(items))
	for _, oi := range items {
		r := OwnedItemResponse{Item: NewItemResponse(oi.Item)}
		if oi.Auction != nil {
			a := NewAuctionResponse(*oi.Auction)
			r.Auction = &a
		}
		if oi.Transaction != nil {
			t := NewTransactionResponse(*oi.Transaction)
			r.Transaction = &t
		}
		out = append(out, r)
	}
	return out
}

type WonAuctionResponse struct {
	Auction     AuctionResponse     `json:"auction"`
	Transaction TransactionResponse `json:"transaction"`
}

func NewWonAuctionResponses(won []model.WonAuction) []WonAuctionResponse {
	out := make([]WonAuctionResponse, 0, len(won))
	for _, w := range won {
		out = append(out, WonAuctionResponse{
			Auction:     NewAuctionResponse(w.Auction),
			Transaction: NewTransactionResponse(w.Transaction),
		})
	}
	return out
}
