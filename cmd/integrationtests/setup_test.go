package integrationtests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	bidding "bidding-engine/internal/biddingService"
	"bidding-engine/internal/escrow"
	"bidding-engine/internal/notify"
	"bidding-engine/internal/repository"
	"bidding-engine/internal/server"
	"bidding-engine/services/bidding/helpers"

	"code.cloudfoundry.org/clock/fakeclock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// testApp is the whole engine wired over an in-memory store and a fake clock
type testApp struct {
	router *gin.Engine
	repo   *repository.MemoryRepo
	clock  *fakeclock.FakeClock
	closer *bidding.Closer
}

// SetupTestApp initializes the router with in-memory repository for integration testing.
func SetupTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := repository.NewMemoryRepo(time.Second)
	clk := fakeclock.NewFakeClock(epoch)
	resolver := bidding.NewResolver(bidding.DefaultIncrementRate, bidding.DefaultSnipeWindow)
	discard := notify.Discard{}

	router := server.SetupRouter(server.Services{
		Bidding:  bidding.NewBiddingService(repo, resolver, discard, clk),
		Auctions: bidding.NewAuctionService(repo, discard, clk),
		Escrow:   escrow.NewService(repo, discard, clk),
	})
	return &testApp{
		router: router,
		repo:   repo,
		clock:  clk,
		closer: bidding.NewCloser(repo, discard, clk, time.Second, 10, nil),
	}
}

// Do executes an HTTP request as userID (empty for anonymous) and parses the response
func (a *testApp) Do(t *testing.T, method, url, userID string, body any) (map[string]any, *httptest.ResponseRecorder) {
	t.Helper()

	var reqBody []byte
	switch v := body.(type) {
	case nil:
	case []byte:
		reqBody = v
	default:
		var err error
		reqBody, err = json.Marshal(v)
		require.NoError(t, err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, url, bytes.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set(helpers.UserIDHeader, userID)
	}
	a.router.ServeHTTP(w, req)

	var resp map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	}
	return resp, w
}

// Data returns the "data" object of a successful response
func Data(t *testing.T, resp map[string]any) map[string]any {
	t.Helper()
	data, ok := resp["data"].(map[string]any)
	require.True(t, ok, "response has no data object: %v", resp)
	return data
}

// OpenAuction creates an item and an ACTIVE auction for seller and returns the auction id
func (a *testApp) OpenAuction(t *testing.T, seller string, req helpers.CreateAuctionRequest) string {
	t.Helper()

	resp, w := a.Do(t, "POST", "/items", seller, helpers.CreateItemRequest{Title: "Camera", Description: "35mm film camera"})
	require.Equal(t, 201, w.Code, w.Body.String())
	req.ItemID = Data(t, resp)["item_id"].(string)

	if req.StartTime.IsZero() {
		req.StartTime = epoch
	}
	if req.EndTime.IsZero() {
		req.EndTime = epoch.Add(time.Hour)
	}
	if req.StartPrice == "" {
		req.StartPrice = "100.00"
	}

	resp, w = a.Do(t, "POST", "/auctions", seller, req)
	require.Equal(t, 201, w.Code, w.Body.String())
	auctionID := Data(t, resp)["auction_id"].(string)

	_, w = a.Do(t, "PATCH", "/auctions/"+auctionID+"/publish", seller, nil)
	require.Equal(t, 200, w.Code, w.Body.String())
	return auctionID
}

// Bid places a proxy bid and returns the response
func (a *testApp) Bid(t *testing.T, bidder, auctionID, maxAmount string) (map[string]any, *httptest.ResponseRecorder) {
	t.Helper()
	return a.Do(t, "POST", "/bids", bidder, helpers.PlaceBidRequest{AuctionID: auctionID, MaxAmount: maxAmount})
}

// TransactionID looks up the auction's transaction as userID and returns its id
func (a *testApp) TransactionID(t *testing.T, auctionID, userID string) string {
	t.Helper()
	resp, w := a.Do(t, "GET", "/auctions/"+auctionID+"/transaction", userID, nil)
	require.Equal(t, 200, w.Code, w.Body.String())
	return Data(t, resp)["transaction_id"].(string)
}

// EndAuction moves the clock past the auction's end and runs one closing sweep
func (a *testApp) EndAuction(t *testing.T, auctionID string) {
	t.Helper()
	auction, err := a.repo.GetAuction(context.Background(), auctionID)
	require.NoError(t, err)
	a.clock.Increment(auction.EndTime.Sub(a.clock.Now()) + time.Second)

	n, err := a.closer.Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)
}
