package server

import (
	"net/http"

	"bidding-engine/services/bidding/handler"

	"github.com/gin-gonic/gin"
)

// Services groups what the HTTP surface calls into
type Services struct {
	Bidding  handler.BiddingServiceInterface
	Auctions handler.AuctionServiceInterface
	Escrow   handler.EscrowServiceInterface
	// WebSocket serves GET /ws when set
	WebSocket http.HandlerFunc
}

// SetupRouter configures all Gin routes for the application
func SetupRouter(svc Services) *gin.Engine {
	router := gin.New() // New router without default middleware for full control over middleware and logging

	router.Use(gin.Recovery())          // recover from panics
	router.Use(RequestLoggerMiddleware) // custom request logging

	biddingHandler := handler.NewBiddingHandler(svc.Bidding)
	auctionHandler := handler.NewAuctionHandler(svc.Auctions)
	escrowHandler := handler.NewEscrowHandler(svc.Escrow)

	router.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	items := router.Group("/items")
	{
		items.POST("", RequireUser, auctionHandler.CreateItemHandler)
		items.GET("/:item_id", auctionHandler.GetItemHandler)
	}

	auctions := router.Group("/auctions")
	{
		auctions.POST("", RequireUser, auctionHandler.CreateAuctionHandler)
		auctions.GET("/:auction_id", auctionHandler.GetAuctionHandler)
		auctions.PATCH("/:auction_id/publish", RequireUser, auctionHandler.PublishAuctionHandler)
		auctions.PATCH("/:auction_id/cancel", RequireUser, auctionHandler.CancelAuctionHandler)
		auctions.GET("/:auction_id/bids", biddingHandler.GetBidHistoryHandler)
		auctions.GET("/:auction_id/transaction", RequireUser, escrowHandler.GetAuctionTransactionHandler)
	}

	bids := router.Group("/bids", RequireUser)
	{
		bids.POST("", biddingHandler.PlaceBidHandler)
		bids.GET("/my-bid/:auction_id", biddingHandler.GetMyMaxBidHandler)
	}

	me := router.Group("/users/me", RequireUser)
	{
		me.GET("/auctions", biddingHandler.GetAuctionsByBidderHandler)
		me.GET("/items", auctionHandler.GetMyItemsHandler)
		me.GET("/won-auctions", biddingHandler.GetWonAuctionsHandler)
	}

	transactions := router.Group("/transactions", RequireUser)
	{
		transactions.GET("/:transaction_id", escrowHandler.GetTransactionHandler)
		transactions.PATCH("/:transaction_id/pay", escrowHandler.PayHandler)
		transactions.PATCH("/:transaction_id/ship", escrowHandler.ShipHandler)
		transactions.PATCH("/:transaction_id/complete", escrowHandler.CompleteHandler)
	}

	if svc.WebSocket != nil {
		router.GET("/ws", gin.WrapF(svc.WebSocket))
	}

	return router
}
