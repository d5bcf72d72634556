package handler

import (
	"context"
	"net/http"

	bidding "bidding-engine/internal/biddingService"
	model "bidding-engine/internal/models"
	"bidding-engine/services/bidding/helpers"
	"bidding-engine/utils"

	"github.com/gin-gonic/gin"
)

//go:generate mockgen -source=auction_handler.go -destination=mock_auction_service.go -package=handler

type AuctionServiceInterface interface {
	CreateItem(ctx context.Context, ownerID, title, description string) (model.Item, error)
	GetItem(ctx context.Context, itemID string) (model.Item, error)
	GetItemsByOwner(ctx context.Context, ownerID string) ([]model.OwnedItem, error)
	CreateAuction(ctx context.Context, ownerID string, req bidding.NewAuction) (model.Auction, error)
	PublishAuction(ctx context.Context, ownerID, auctionID string) (model.Auction, error)
	CancelAuction(ctx context.Context, ownerID, auctionID string) (model.Auction, error)
	GetAuction(ctx context.Context, auctionID string) (model.Auction, error)
}

type AuctionHandler struct {
	service AuctionServiceInterface
}

func NewAuctionHandler(service AuctionServiceInterface) *AuctionHandler {
	return &AuctionHandler{service: service}
}

// CreateItemHandler handles POST /items
func (h *AuctionHandler) CreateItemHandler(c *gin.Context) {
	var req helpers.CreateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "CreateItemHandler", err)
		return
	}
	ownerID := helpers.UserID(c)

	item, err := h.service.CreateItem(c.Request.Context(), ownerID, req.Title, req.Description)
	if err != nil {
		helpers.RespondError(c, "CreateItemHandler", "failed to create item", err, map[string]any{"user_id": ownerID})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, helpers.NewItemResponse(item), "item created successfully")
	helpers.LogSuccess("CreateItemHandler", "item created successfully", map[string]any{
		"item_id": item.ItemID,
		"user_id": ownerID,
	})
}

// GetItemHandler handles GET /items/:item_id
func (h *AuctionHandler) GetItemHandler(c *gin.Context) {
	itemID := c.Param("item_id")
	item, err := h.service.GetItem(c.Request.Context(), itemID)
	if err != nil {
		helpers.RespondError(c, "GetItemHandler", "error retrieving item", err, map[string]any{"item_id": itemID})
		return
	}
	utils.JSONResponse(c, http.StatusOK, helpers.NewItemResponse(item), "item retrieved successfully")
}

// GetMyItemsHandler handles GET /users/me/items
func (h *AuctionHandler) GetMyItemsHandler(c *gin.Context) {
	ownerID := helpers.UserID(c)
	items, err := h.service.GetItemsByOwner(c.Request.Context(), ownerID)
	if err != nil {
		helpers.RespondError(c, "GetMyItemsHandler", "error retrieving items", err, map[string]any{"owner_id": ownerID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.NewOwnedItemResponses(items), "items retrieved successfully")
	helpers.LogSuccess("GetMyItemsHandler", "items retrieved successfully", map[string]any{
		"owner_id":    ownerID,
		"items_count": len(items),
	})
}

// CreateAuctionHandler handles POST /auctions
func (h *AuctionHandler) CreateAuctionHandler(c *gin.Context) {
	var req helpers.CreateAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "CreateAuctionHandler", err)
		return
	}
	ownerID := helpers.UserID(c)

	terms, err := toNewAuction(req)
	if err != nil {
		helpers.RespondError(c, "CreateAuctionHandler", "invalid amount", err, map[string]any{"item_id": req.ItemID})
		return
	}

	auction, err := h.service.CreateAuction(c.Request.Context(), ownerID, terms)
	if err != nil {
		helpers.RespondError(c, "CreateAuctionHandler", "failed to create auction", err, map[string]any{
			"item_id": req.ItemID,
			"user_id": ownerID,
		})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, helpers.NewAuctionResponse(auction), "auction created successfully")
	helpers.LogSuccess("CreateAuctionHandler", "auction created successfully", map[string]any{
		"auction_id": auction.AuctionID,
		"item_id":    auction.ItemID,
		"user_id":    ownerID,
	})
}

func toNewAuction(req helpers.CreateAuctionRequest) (bidding.NewAuction, error) {
	start, err := helpers.ParseMoney("start_price", req.StartPrice)
	if err != nil {
		return bidding.NewAuction{}, err
	}
	reserve, err := helpers.ParseOptionalMoney("reserve_price", req.ReservePrice)
	if err != nil {
		return bidding.NewAuction{}, err
	}
	buyNow, err := helpers.ParseOptionalMoney("buy_now_price", req.BuyNowPrice)
	if err != nil {
		return bidding.NewAuction{}, err
	}
	return bidding.NewAuction{
		ItemID:       req.ItemID,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		StartPrice:   start,
		ReservePrice: reserve,
		BuyNowPrice:  buyNow,
	}, nil
}

// GetAuctionHandler handles GET /auctions/:auction_id
func (h *AuctionHandler) GetAuctionHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	auction, err := h.service.GetAuction(c.Request.Context(), auctionID)
	if err != nil {
		helpers.RespondError(c, "GetAuctionHandler", "error retrieving auction", err, map[string]any{"auction_id": auctionID})
		return
	}
	utils.JSONResponse(c, http.StatusOK, helpers.NewAuctionResponse(auction), "auction retrieved successfully")
}

// PublishAuctionHandler handles PATCH /auctions/:auction_id/publish
func (h *AuctionHandler) PublishAuctionHandler(c *gin.Context) {
	h.draftTransition(c, "PublishAuctionHandler", "auction published successfully", h.service.PublishAuction)
}

// CancelAuctionHandler handles PATCH /auctions/:auction_id/cancel
func (h *AuctionHandler) CancelAuctionHandler(c *gin.Context) {
	h.draftTransition(c, "CancelAuctionHandler", "auction cancelled successfully", h.service.CancelAuction)
}

func (h *AuctionHandler) draftTransition(
	c *gin.Context,
	handlerName, message string,
	do func(ctx context.Context, ownerID, auctionID string) (model.Auction, error),
) {
	auctionID := c.Param("auction_id")
	ownerID := helpers.UserID(c)

	auction, err := do(c.Request.Context(), ownerID, auctionID)
	if err != nil {
		helpers.RespondError(c, handlerName, "transition failed", err, map[string]any{
			"auction_id": auctionID,
			"user_id":    ownerID,
		})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.NewAuctionResponse(auction), message)
	helpers.LogSuccess(handlerName, message, map[string]any{
		"auction_id": auctionID,
		"user_id":    ownerID,
		"status":     auction.Status,
	})
}
