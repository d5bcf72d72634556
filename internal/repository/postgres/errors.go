package postgres

import (
	"errors"
	"fmt"

	"bidding-engine/internal/biddingerrors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes the store translates
const (
	codeUniqueViolation  = "23505"
	codeLockNotAvailable = "55P03"
)

// constraint names from the migrations
const (
	constraintOneOpenPerItem = "auctions_one_open_per_item"
	constraintTxnPerAuction  = "transactions_auction_id_key"
)

// mapError translates driver errors into engine errors. notFound is used for
// pgx.ErrNoRows and may be nil when no row is not an error for the caller.
func mapError(op string, err error, notFound error) error {
	if err == nil {
		return nil
	}
	if notFound != nil && errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("postgres: %s: %w", op, notFound)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeLockNotAvailable:
			return fmt.Errorf("postgres: %s: %w", op, biddingerrors.ErrLockTimeout)
		case codeUniqueViolation:
			switch pgErr.ConstraintName {
			case constraintOneOpenPerItem:
				return fmt.Errorf("postgres: %s: %w", op, biddingerrors.ErrDuplicateAuction)
			case constraintTxnPerAuction:
				return fmt.Errorf("postgres: %s: %w", op, biddingerrors.ErrDuplicateTxn)
			default:
				return fmt.Errorf("postgres: %s: %w - %s", op, biddingerrors.ErrConflict, pgErr.ConstraintName)
			}
		}
	}
	return fmt.Errorf("postgres: %s: %w", op, err)
}
