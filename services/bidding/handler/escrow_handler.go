package handler

import (
	"context"
	"net/http"

	model "bidding-engine/internal/models"
	"bidding-engine/services/bidding/helpers"
	"bidding-engine/utils"

	"github.com/gin-gonic/gin"
)

//go:generate mockgen -source=escrow_handler.go -destination=mock_escrow_service.go -package=handler

type EscrowServiceInterface interface {
	Pay(ctx context.Context, transactionID, userID string) (model.Transaction, error)
	Ship(ctx context.Context, transactionID, userID string) (model.Transaction, error)
	ConfirmReceipt(ctx context.Context, transactionID, userID string) (model.Transaction, error)
	GetTransaction(ctx context.Context, transactionID, userID string) (model.Transaction, error)
	GetTransactionByAuction(ctx context.Context, auctionID, userID string) (model.Transaction, error)
}

type EscrowHandler struct {
	service EscrowServiceInterface
}

func NewEscrowHandler(service EscrowServiceInterface) *EscrowHandler {
	return &EscrowHandler{service: service}
}

// GetTransactionHandler handles GET /transactions/:transaction_id
func (h *EscrowHandler) GetTransactionHandler(c *gin.Context) {
	transactionID := c.Param("transaction_id")
	userID := helpers.UserID(c)

	txn, err := h.service.GetTransaction(c.Request.Context(), transactionID, userID)
	if err != nil {
		helpers.RespondError(c, "GetTransactionHandler", "error retrieving transaction", err, map[string]any{
			"transaction_id": transactionID,
			"user_id":        userID,
		})
		return
	}
	utils.JSONResponse(c, http.StatusOK, helpers.NewTransactionResponse(txn), "transaction retrieved successfully")
}

// GetAuctionTransactionHandler handles GET /auctions/:auction_id/transaction
func (h *EscrowHandler) GetAuctionTransactionHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	userID := helpers.UserID(c)

	txn, err := h.service.GetTransactionByAuction(c.Request.Context(), auctionID, userID)
	if err != nil {
		helpers.RespondError(c, "GetAuctionTransactionHandler", "error retrieving transaction", err, map[string]any{
			"auction_id": auctionID,
			"user_id":    userID,
		})
		return
	}
	utils.JSONResponse(c, http.StatusOK, helpers.NewTransactionResponse(txn), "transaction retrieved successfully")
}

// PayHandler handles PATCH /transactions/:transaction_id/pay
func (h *EscrowHandler) PayHandler(c *gin.Context) {
	h.transition(c, "PayHandler", "payment recorded", h.service.Pay)
}

// ShipHandler handles PATCH /transactions/:transaction_id/ship
func (h *EscrowHandler) ShipHandler(c *gin.Context) {
	h.transition(c, "ShipHandler", "shipment recorded", h.service.Ship)
}

// CompleteHandler handles PATCH /transactions/:transaction_id/complete
func (h *EscrowHandler) CompleteHandler(c *gin.Context) {
	h.transition(c, "CompleteHandler", "receipt confirmed", h.service.ConfirmReceipt)
}

func (h *EscrowHandler) transition(
	c *gin.Context,
	handlerName, message string,
	do func(ctx context.Context, transactionID, userID string) (model.Transaction, error),
) {
	transactionID := c.Param("transaction_id")
	userID := helpers.UserID(c)

	txn, err := do(c.Request.Context(), transactionID, userID)
	if err != nil {
		helpers.RespondError(c, handlerName, "transition failed", err, map[string]any{
			"transaction_id": transactionID,
			"user_id":        userID,
		})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.NewTransactionResponse(txn), message)
	helpers.LogSuccess(handlerName, message, map[string]any{
		"transaction_id": transactionID,
		"user_id":        userID,
		"status":         txn.Status,
	})
}
