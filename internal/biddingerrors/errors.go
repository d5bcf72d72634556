package biddingerrors

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the engine wraps exactly one of these.
var (
	ErrNotFound         = errors.New("not found")
	ErrForbidden        = errors.New("forbidden")
	ErrInvalidState     = errors.New("invalid state")
	ErrConflict         = errors.New("conflict")
	ErrValidationFailed = errors.New("validation failed")
	ErrContention       = errors.New("contention")
)

// Repository-level errors
var (
	ErrItemNotFound        = fmt.Errorf("item %w", ErrNotFound)
	ErrAuctionNotFound     = fmt.Errorf("auction %w", ErrNotFound)
	ErrTransactionNotFound = fmt.Errorf("transaction %w", ErrNotFound)
	ErrNoBids              = fmt.Errorf("bids %w", ErrNotFound)
	ErrLockTimeout         = fmt.Errorf("%w: lock wait exceeded", ErrContention)
	ErrLeaseHeld           = fmt.Errorf("%w: lease held by another process", ErrContention)
	ErrDuplicateAuction    = fmt.Errorf("%w: item already has an open auction", ErrConflict)
	ErrDuplicateTxn        = fmt.Errorf("%w: auction already has a transaction", ErrConflict)
)

// business logic errors
var (
	ErrSelfBid        = fmt.Errorf("%w: cannot bid on your own auction", ErrForbidden)
	ErrNotOwner       = fmt.Errorf("%w: not the item owner", ErrForbidden)
	ErrWrongRole      = fmt.Errorf("%w: role may not perform this transition", ErrForbidden)
	ErrNotParty       = fmt.Errorf("%w: not a party to this transaction", ErrForbidden)
	ErrAuctionClosed  = fmt.Errorf("%w: auction has already ended", ErrInvalidState)
	ErrNotActive      = fmt.Errorf("%w: auction is not active", ErrInvalidState)
	ErrNotDraft       = fmt.Errorf("%w: auction is not a draft", ErrInvalidState)
	ErrBadTransition  = fmt.Errorf("%w: transaction is not in the expected state", ErrInvalidState)
	ErrBidTooLow      = fmt.Errorf("%w: bid amount too low", ErrValidationFailed)
	ErrInvalidBid     = fmt.Errorf("%w: invalid bid", ErrValidationFailed)
	ErrInvalidAuction = fmt.Errorf("%w: invalid auction", ErrValidationFailed)
)

// Kind names an error class that callers switch on
type Kind string

const (
	KindNotFound         Kind = "NotFound"
	KindForbidden        Kind = "Forbidden"
	KindInvalidState     Kind = "InvalidState"
	KindConflict         Kind = "Conflict"
	KindValidationFailed Kind = "ValidationFailed"
	KindContention       Kind = "Contention"
	KindInternal         Kind = "Internal"
)

var kinds = []struct {
	sentinel error
	kind     Kind
}{
	{ErrNotFound, KindNotFound},
	{ErrForbidden, KindForbidden},
	{ErrInvalidState, KindInvalidState},
	{ErrConflict, KindConflict},
	{ErrValidationFailed, KindValidationFailed},
	{ErrContention, KindContention},
}

// KindOf classifies err. Unclassified errors are KindInternal.
func KindOf(err error) Kind {
	for _, k := range kinds {
		if errors.Is(err, k.sentinel) {
			return k.kind
		}
	}
	return KindInternal
}

// IsRetryable reports whether retrying the same request may succeed
func IsRetryable(err error) bool {
	return errors.Is(err, ErrContention)
}
