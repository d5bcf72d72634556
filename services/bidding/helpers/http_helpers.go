package helpers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"bidding-engine/internal/biddingerrors"
	"bidding-engine/utils"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// UserIDKey is the gin context key holding the authenticated caller
const UserIDKey = "user_id"

// UserIDHeader carries the caller's identity from the upstream auth layer
const UserIDHeader = "X-User-ID"

// RetryAfterSeconds is sent with 503 responses caused by lock contention
const RetryAfterSeconds = "1"

// HandleBindError sends a standardized JSON error for binding failures
func HandleBindError(c *gin.Context, handlerName string, err error) {
	wrappedErr := fmt.Errorf("invalid request payload: %w", err)
	utils.JSONError(c, http.StatusBadRequest, wrappedErr, "invalid request payload")
	utils.Warn(handlerName+": binding error", map[string]any{"error": err.Error()})
}

// UserID returns the caller set by the RequireUser middleware
func UserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}

// ParseMoney parses a decimal amount from a request field.
// The error wraps biddingerrors.ErrValidationFailed.
func ParseMoney(field, raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %s is not a decimal amount", biddingerrors.ErrValidationFailed, field)
	}
	return d, nil
}

// ParseOptionalMoney is ParseMoney for optional fields
func ParseOptionalMoney(field string, raw *string) (*decimal.Decimal, error) {
	if raw == nil {
		return nil, nil
	}
	d, err := ParseMoney(field, *raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// messages for errors the caller can act on; other errors use their kind's message
var messages = []struct {
	err     error
	message string
}{
	{biddingerrors.ErrItemNotFound, "item not found"},
	{biddingerrors.ErrAuctionNotFound, "auction not found"},
	{biddingerrors.ErrTransactionNotFound, "transaction not found"},
	{biddingerrors.ErrNoBids, "no bids found"},
	{biddingerrors.ErrSelfBid, "cannot bid on your own auction"},
	{biddingerrors.ErrNotOwner, "not the item owner"},
	{biddingerrors.ErrNotParty, "not a party to this transaction"},
	{biddingerrors.ErrWrongRole, "role may not perform this action"},
	{biddingerrors.ErrAuctionClosed, "auction has already ended"},
	{biddingerrors.ErrNotActive, "auction is not active"},
	{biddingerrors.ErrNotDraft, "auction is not a draft"},
	{biddingerrors.ErrBadTransition, "transaction is not in the expected state"},
	{biddingerrors.ErrDuplicateAuction, "item already has an open auction"},
	{biddingerrors.ErrBidTooLow, "bid amount too low"},
	{biddingerrors.ErrInvalidBid, "invalid bid details"},
	{biddingerrors.ErrInvalidAuction, "invalid auction details"},
}

// MapErrorToHTTP maps domain/service errors to HTTP status code and message
func MapErrorToHTTP(err error) (int, string) {
	status, message := http.StatusInternalServerError, "internal server error"
	switch biddingerrors.KindOf(err) {
	case biddingerrors.KindNotFound:
		status, message = http.StatusNotFound, "resource not found"
	case biddingerrors.KindForbidden:
		status, message = http.StatusForbidden, "forbidden"
	case biddingerrors.KindInvalidState:
		status, message = http.StatusConflict, "invalid state"
	case biddingerrors.KindConflict:
		status, message = http.StatusConflict, "conflict"
	case biddingerrors.KindValidationFailed:
		status, message = http.StatusBadRequest, "validation failed"
	case biddingerrors.KindContention:
		status, message = http.StatusServiceUnavailable, "resource busy, retry later"
	case biddingerrors.KindInternal:
		// cancelled or expired request context
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			status, message = http.StatusServiceUnavailable, "request cancelled, retry later"
		}
	}

	for _, m := range messages {
		if errors.Is(err, m.err) {
			return status, m.message
		}
	}
	return status, message
}

// RespondError writes the mapped error response and logs it. Server-side
// failures are logged at error level, caller mistakes at warn level.
func RespondError(c *gin.Context, handlerName, logMessage string, err error, fields map[string]any) {
	status, message := MapErrorToHTTP(err)
	if status == http.StatusServiceUnavailable {
		c.Header("Retry-After", RetryAfterSeconds)
	}
	utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)

	if fields == nil {
		fields = map[string]any{}
	}
	fields["handler"] = handlerName
	fields["status"] = status
	fields["error"] = err.Error()
	if status >= http.StatusInternalServerError {
		utils.Error(handlerName+": "+logMessage, fields)
		return
	}
	utils.Warn(handlerName+": "+logMessage, fields)
}

// LogSuccess is a small helper to standardize logging of successful operations
func LogSuccess(handlerName, message string, ctx map[string]any) {
	utils.Info(handlerName+": "+message, ctx)
}
