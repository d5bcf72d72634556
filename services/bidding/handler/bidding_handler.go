package handler

import (
	"context"
	"net/http"

	model "bidding-engine/internal/models"
	"bidding-engine/services/bidding/helpers"
	"bidding-engine/utils"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

//go:generate mockgen -source=bidding_handler.go -destination=mock_bidding_service.go -package=handler

type BiddingServiceInterface interface {
	PlaceBid(ctx context.Context, bidderID, auctionID string, maxAmount decimal.Decimal) (model.Bid, model.Auction, error)
	GetMyMaxBid(ctx context.Context, userID, auctionID string) (model.Bid, error)
	GetBidHistory(ctx context.Context, auctionID string) ([]model.PublicBid, error)
	GetAuctionsByBidder(ctx context.Context, userID string) ([]model.Auction, error)
	GetWonAuctions(ctx context.Context, userID string) ([]model.WonAuction, error)
}

type BiddingHandler struct {
	service BiddingServiceInterface
}

func NewBiddingHandler(service BiddingServiceInterface) *BiddingHandler {
	return &BiddingHandler{service: service}
}

// PlaceBidHandler handles POST /bids
func (h *BiddingHandler) PlaceBidHandler(c *gin.Context) {
	var req helpers.PlaceBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "PlaceBidHandler", err)
		return
	}
	bidderID := helpers.UserID(c)

	maxAmount, err := helpers.ParseMoney("max_amount", req.MaxAmount)
	if err != nil {
		helpers.RespondError(c, "PlaceBidHandler", "invalid amount", err, map[string]any{"auction_id": req.AuctionID})
		return
	}

	bid, auction, err := h.service.PlaceBid(c.Request.Context(), bidderID, req.AuctionID, maxAmount)
	if err != nil {
		helpers.RespondError(c, "PlaceBidHandler", "failed to place bid", err, map[string]any{
			"auction_id": req.AuctionID,
			"user_id":    bidderID,
		})
		return
	}

	resp := helpers.PlaceBidResponse{
		Bid:     helpers.NewBidResponse(bid),
		Auction: helpers.NewAuctionResponse(auction),
	}
	utils.JSONResponse(c, http.StatusCreated, resp, "bid placed successfully")
	helpers.LogSuccess("PlaceBidHandler", "bid placed successfully", map[string]any{
		"bid_id":        bid.BidID,
		"auction_id":    auction.AuctionID,
		"user_id":       bidderID,
		"current_price": auction.CurrentPrice.String(),
		"status":        auction.Status,
	})
}

// GetMyMaxBidHandler handles GET /bids/my-bid/:auction_id
func (h *BiddingHandler) GetMyMaxBidHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	userID := helpers.UserID(c)

	bid, err := h.service.GetMyMaxBid(c.Request.Context(), userID, auctionID)
	if err != nil {
		helpers.RespondError(c, "GetMyMaxBidHandler", "error retrieving max bid", err, map[string]any{
			"auction_id": auctionID,
			"user_id":    userID,
		})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.NewBidResponse(bid), "max bid retrieved successfully")
	helpers.LogSuccess("GetMyMaxBidHandler", "max bid retrieved successfully", map[string]any{
		"auction_id": auctionID,
		"user_id":    userID,
	})
}

// GetBidHistoryHandler handles GET /auctions/:auction_id/bids
func (h *BiddingHandler) GetBidHistoryHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	bids, err := h.service.GetBidHistory(c.Request.Context(), auctionID)
	if err != nil {
		helpers.RespondError(c, "GetBidHistoryHandler", "error retrieving bids", err, map[string]any{"auction_id": auctionID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.NewPublicBidResponses(bids), "bids retrieved successfully")
	helpers.LogSuccess("GetBidHistoryHandler", "bids retrieved successfully", map[string]any{
		"auction_id": auctionID,
		"count":      len(bids),
	})
}

// GetAuctionsByBidderHandler handles GET /users/me/auctions
func (h *BiddingHandler) GetAuctionsByBidderHandler(c *gin.Context) {
	userID := helpers.UserID(c)
	auctions, err := h.service.GetAuctionsByBidder(c.Request.Context(), userID)
	if err != nil {
		helpers.RespondError(c, "GetAuctionsByBidderHandler", "error retrieving auctions", err, map[string]any{"user_id": userID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.NewAuctionResponses(auctions), "auctions retrieved successfully")
	helpers.LogSuccess("GetAuctionsByBidderHandler", "auctions retrieved successfully", map[string]any{
		"user_id":        userID,
		"auctions_count": len(auctions),
	})
}

// GetWonAuctionsHandler handles GET /users/me/won-auctions
func (h *BiddingHandler) GetWonAuctionsHandler(c *gin.Context) {
	userID := helpers.UserID(c)
	won, err := h.service.GetWonAuctions(c.Request.Context(), userID)
	if err != nil {
		helpers.RespondError(c, "GetWonAuctionsHandler", "error retrieving won auctions", err, map[string]any{"user_id": userID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.NewWonAuctionResponses(won), "won auctions retrieved successfully")
	helpers.LogSuccess("GetWonAuctionsHandler", "won auctions retrieved successfully", map[string]any{
		"user_id":   userID,
		"won_count": len(won),
	})
}
