package helpers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"bidding-engine/internal/biddingerrors"
	model "bidding-engine/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestMapErrorToHTTP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err     error
		status  int
		message string
	}{
		{biddingerrors.ErrAuctionNotFound, http.StatusNotFound, "auction not found"},
		{fmt.Errorf("service: failed: %w", biddingerrors.ErrItemNotFound), http.StatusNotFound, "item not found"},
		{biddingerrors.ErrNoBids, http.StatusNotFound, "no bids found"},
		{biddingerrors.ErrSelfBid, http.StatusForbidden, "cannot bid on your own auction"},
		{biddingerrors.ErrForbidden, http.StatusForbidden, "forbidden"},
		{biddingerrors.ErrNotActive, http.StatusConflict, "auction is not active"},
		{biddingerrors.ErrDuplicateTxn, http.StatusConflict, "conflict"},
		{biddingerrors.ErrDuplicateAuction, http.StatusConflict, "item already has an open auction"},
		{biddingerrors.ErrBidTooLow, http.StatusBadRequest, "bid amount too low"},
		{biddingerrors.ErrValidationFailed, http.StatusBadRequest, "validation failed"},
		{biddingerrors.ErrLockTimeout, http.StatusServiceUnavailable, "resource busy, retry later"},
		{biddingerrors.ErrLeaseHeld, http.StatusServiceUnavailable, "resource busy, retry later"},
		{fmt.Errorf("lock auction a1: %w", context.Canceled), http.StatusServiceUnavailable, "request cancelled, retry later"},
		{fmt.Errorf("postgres: get auction a1: %w", context.DeadlineExceeded), http.StatusServiceUnavailable, "request cancelled, retry later"},
		{fmt.Errorf("lease auction:a1: %w: %w", biddingerrors.ErrContention, context.Canceled), http.StatusServiceUnavailable, "resource busy, retry later"},
		{errors.New("boom"), http.StatusInternalServerError, "internal server error"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.err.Error(), func(t *testing.T) {
			t.Parallel()
			status, message := MapErrorToHTTP(tc.err)
			require.Equal(t, tc.status, status)
			require.Equal(t, tc.message, message)
		})
	}
}

func TestParseMoney(t *testing.T) {
	t.Parallel()

	d, err := ParseMoney("max_amount", " 150.50 ")
	require.NoError(t, err)
	require.True(t, decimal.RequireFromString("150.5").Equal(d))

	_, err = ParseMoney("max_amount", "1e")
	require.ErrorIs(t, err, biddingerrors.ErrValidationFailed)
	require.Contains(t, err.Error(), "max_amount")

	opt, err := ParseOptionalMoney("reserve_price", nil)
	require.NoError(t, err)
	require.Nil(t, opt)

	raw := "abc"
	_, err = ParseOptionalMoney("reserve_price", &raw)
	require.ErrorIs(t, err, biddingerrors.ErrValidationFailed)
}

func TestNewAuctionResponse(t *testing.T) {
	t.Parallel()

	reserve := decimal.RequireFromString("120")
	a := model.Auction{
		AuctionID:    "auction1",
		Status:       model.AuctionActive,
		StartTime:    time.Date(2026, 3, 1, 13, 0, 0, 0, time.FixedZone("CET", 3600)),
		StartPrice:   decimal.RequireFromString("100"),
		CurrentPrice: decimal.RequireFromString("126"),
		ReservePrice: &reserve,
	}

	resp := NewAuctionResponse(a)
	require.Equal(t, "2026-03-01T12:00:00Z", resp.StartTime)
	require.Equal(t, "126.00", resp.CurrentPrice)
	require.Equal(t, "120.00", *resp.ReservePrice)
	require.True(t, resp.ReserveMet)
	require.Nil(t, resp.BuyNowPrice)
}
