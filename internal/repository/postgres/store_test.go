package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"bidding-engine/internal/biddingerrors"
	model "bidding-engine/internal/models"
	"bidding-engine/internal/repository"
	"bidding-engine/utils"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestDSN(t *testing.T) {
	t.Parallel()

	require.Equal(t, "postgres://u:p@db:5432/bidding?sslmode=disable",
		DSN(ClientConfig{Host: "db", Database: "bidding", User: "u", Password: "p"}))
	require.Equal(t, "postgres://u:p@db:6543/bidding?sslmode=require",
		DSN(ClientConfig{Host: "db", Port: 6543, Database: "bidding", User: "u", Password: "p", SSLMode: "require"}))
	require.Equal(t, "postgres://explicit", DSN(ClientConfig{DSN: "postgres://explicit", Host: "ignored"}))
}

func TestMapError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		notFound error
		want     error
		wantKind biddingerrors.Kind
	}{
		{name: "no_rows", err: pgx.ErrNoRows, notFound: biddingerrors.ErrAuctionNotFound, want: biddingerrors.ErrAuctionNotFound, wantKind: biddingerrors.KindNotFound},
		{name: "lock_not_available", err: &pgconn.PgError{Code: "55P03"}, want: biddingerrors.ErrLockTimeout, wantKind: biddingerrors.KindContention},
		{name: "open_auction_exists", err: &pgconn.PgError{Code: "23505", ConstraintName: "auctions_one_open_per_item"}, want: biddingerrors.ErrDuplicateAuction, wantKind: biddingerrors.KindConflict},
		{name: "transaction_exists", err: &pgconn.PgError{Code: "23505", ConstraintName: "transactions_auction_id_key"}, want: biddingerrors.ErrDuplicateTxn, wantKind: biddingerrors.KindConflict},
		{name: "duplicate_primary_key", err: &pgconn.PgError{Code: "23505", ConstraintName: "items_pkey"}, want: biddingerrors.ErrConflict, wantKind: biddingerrors.KindConflict},
		{name: "other_driver_error", err: errors.New("connection reset"), wantKind: biddingerrors.KindInternal},
		{name: "no_rows_without_sentinel", err: pgx.ErrNoRows, want: pgx.ErrNoRows, wantKind: biddingerrors.KindInternal},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := mapError("op", tc.err, tc.notFound)
			require.Error(t, got)
			if tc.want != nil {
				require.ErrorIs(t, got, tc.want)
			}
			require.Equal(t, tc.wantKind, biddingerrors.KindOf(got))
		})
	}

	require.NoError(t, mapError("op", nil, biddingerrors.ErrNoBids))
}

func TestLockTimeoutSetting(t *testing.T) {
	t.Parallel()

	require.Equal(t, "250ms", lockTimeoutSetting(250*time.Millisecond))
	require.Equal(t, "10000ms", lockTimeoutSetting(10*time.Second))
	require.Equal(t, "1ms", lockTimeoutSetting(time.Microsecond))
}

func TestMoneyHelpers(t *testing.T) {
	t.Parallel()

	got, err := parseMoney(nil)
	require.NoError(t, err)
	require.Nil(t, got)

	s := "147.00"
	got, err = parseMoney(&s)
	require.NoError(t, err)
	require.True(t, decimal.RequireFromString("147").Equal(*got))

	bad := "abc"
	_, err = parseMoney(&bad)
	require.Error(t, err)

	require.Nil(t, moneyArg(nil))
	d := decimal.RequireFromString("12.5")
	require.Equal(t, "12.5", moneyArg(&d))
}

func TestMigrationFiles(t *testing.T) {
	t.Parallel()

	names, err := migrationFiles()
	require.NoError(t, err)
	require.NotEmpty(t, names)
	require.Equal(t, "001_init.sql", names[0])
	require.Contains(t, names, "002_user_views.sql")

	data, err := migrationsFS.ReadFile("migrations/" + names[0])
	require.NoError(t, err)
	require.Contains(t, string(data), constraintOneOpenPerItem)
}

// newTestStore connects to the database named by BIDDING_TEST_POSTGRES_DSN
// and skips the test when it is not set.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("BIDDING_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("BIDDING_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	client, err := New(ctx, ClientConfig{DSN: dsn, MaxConns: 4})
	require.NoError(t, err)
	t.Cleanup(client.Close)
	require.NoError(t, client.RunMigrations(ctx))
	return NewStore(client.Pool(), 200*time.Millisecond)
}

func seedAuction(t *testing.T, s *Store, now time.Time) model.Auction {
	t.Helper()
	ctx := context.Background()
	item := model.Item{ItemID: utils.GenerateID(), OwnerID: "seller", Title: "lamp", CreatedAt: now}
	require.NoError(t, s.CreateItem(ctx, item))

	buyNow := decimal.RequireFromString("500")
	a := model.Auction{
		AuctionID:    utils.GenerateID(),
		ItemID:       item.ItemID,
		Status:       model.AuctionActive,
		StartTime:    now,
		EndTime:      now.Add(time.Minute),
		StartPrice:   decimal.RequireFromString("100"),
		CurrentPrice: decimal.RequireFromString("100"),
		BuyNowPrice:  &buyNow,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, s.RunInTx(ctx, func(tx repository.AuctionTx) error {
		if _, err := tx.LockItem(ctx, item.ItemID); err != nil {
			return err
		}
		return tx.InsertAuction(ctx, a)
	}))
	return a
}

func TestStore_AuctionRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	a := seedAuction(t, s, now)

	got, err := s.GetAuction(ctx, a.AuctionID)
	require.NoError(t, err)
	require.Equal(t, a.AuctionID, got.AuctionID)
	require.True(t, a.StartPrice.Equal(got.StartPrice))
	require.Nil(t, got.ReservePrice)
	require.True(t, a.BuyNowPrice.Equal(*got.BuyNowPrice))
	require.True(t, a.EndTime.Equal(got.EndTime))

	err = s.RunInTx(ctx, func(tx repository.AuctionTx) error {
		open, err := tx.HasOpenAuction(ctx, a.ItemID)
		require.NoError(t, err)
		require.True(t, open)
		_, err = tx.LockItem(ctx, a.ItemID)
		require.NoError(t, err)
		dup := a
		dup.AuctionID = utils.GenerateID()
		return tx.InsertAuction(ctx, dup)
	})
	require.ErrorIs(t, err, biddingerrors.ErrDuplicateAuction)

	_, err = s.GetAuction(ctx, "missing")
	require.ErrorIs(t, err, biddingerrors.ErrAuctionNotFound)
}

func TestStore_BidsAndTransactions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	a := seedAuction(t, s, now)

	ceilings := []struct {
		bidder string
		amount string
	}{{"x", "150"}, {"y", "150"}, {"x", "120"}}
	for i, c := range ceilings {
		b := model.Bid{
			BidID:     fmt.Sprintf("%s-%d", a.AuctionID, i),
			AuctionID: a.AuctionID,
			BidderID:  c.bidder,
			MaxAmount: decimal.RequireFromString(c.amount),
			CreatedAt: now,
		}
		require.NoError(t, s.RunInTx(ctx, func(tx repository.AuctionTx) error {
			if _, err := tx.LockAuction(ctx, a.AuctionID); err != nil {
				return err
			}
			return tx.InsertBid(ctx, b)
		}))
	}

	err := s.RunInTx(ctx, func(tx repository.AuctionTx) error {
		best, err := tx.GetHighestBid(ctx, a.AuctionID)
		require.NoError(t, err)
		// the earlier of two equal ceilings wins
		require.Equal(t, "x", best.BidderID)
		return nil
	})
	require.NoError(t, err)

	bids, err := s.GetBidsByAuction(ctx, a.AuctionID)
	require.NoError(t, err)
	require.Len(t, bids, 3)

	mine, err := s.GetUserMaxBid(ctx, a.AuctionID, "x")
	require.NoError(t, err)
	require.True(t, decimal.RequireFromString("150").Equal(mine.MaxAmount))
	_, err = s.GetUserMaxBid(ctx, a.AuctionID, "z")
	require.ErrorIs(t, err, biddingerrors.ErrNoBids)

	auctions, err := s.GetAuctionsByBidder(ctx, "y")
	require.NoError(t, err)
	require.NotEmpty(t, auctions)

	expired, err := s.ListExpiredAuctions(ctx, now.Add(time.Minute), 0)
	require.NoError(t, err)
	found := false
	for _, e := range expired {
		found = found || e.AuctionID == a.AuctionID
	}
	require.True(t, found)

	txn := model.Transaction{
		TransactionID: utils.GenerateID(),
		AuctionID:     a.AuctionID,
		BuyerID:       "x",
		SellerID:      "seller",
		Amount:        decimal.RequireFromString("150"),
		Status:        model.TransactionPendingPayment,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	insert := func(txn model.Transaction) error {
		return s.RunInTx(ctx, func(tx repository.AuctionTx) error { return tx.InsertTransaction(ctx, txn) })
	}
	require.NoError(t, insert(txn))
	dup := txn
	dup.TransactionID = utils.GenerateID()
	require.ErrorIs(t, insert(dup), biddingerrors.ErrDuplicateTxn)

	got, err := s.GetTransactionByAuction(ctx, a.AuctionID)
	require.NoError(t, err)
	require.Equal(t, txn.TransactionID, got.TransactionID)
}

func TestStore_LockTimeout(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := seedAuction(t, s, time.Now().UTC())

	held := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- s.RunInTx(ctx, func(tx repository.AuctionTx) error {
			if _, err := tx.LockAuction(ctx, a.AuctionID); err != nil {
				return err
			}
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	err := s.RunInTx(ctx, func(tx repository.AuctionTx) error {
		_, err := tx.LockAuction(ctx, a.AuctionID)
		return err
	})
	require.ErrorIs(t, err, biddingerrors.ErrLockTimeout)
	require.True(t, biddingerrors.IsRetryable(err))

	close(release)
	require.NoError(t, <-done)
}

func TestStore_UserViews(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	owner, buyer := "owner-"+utils.GenerateID(), "buyer-"+utils.GenerateID()

	sold := model.Item{ItemID: utils.GenerateID(), OwnerID: owner, Title: "sold", CreatedAt: now}
	unlisted := model.Item{ItemID: utils.GenerateID(), OwnerID: owner, Title: "unlisted", CreatedAt: now.Add(time.Second)}
	require.NoError(t, s.CreateItem(ctx, sold))
	require.NoError(t, s.CreateItem(ctx, unlisted))

	auction := func(start time.Time, status model.AuctionStatus) model.Auction {
		return model.Auction{
			AuctionID:       utils.GenerateID(),
			ItemID:          sold.ItemID,
			Status:          status,
			StartTime:       start,
			EndTime:         start.Add(time.Minute),
			StartPrice:      decimal.RequireFromString("10"),
			CurrentPrice:    decimal.RequireFromString("12"),
			HighestBidderID: buyer,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
	}
	older := auction(now.Add(-time.Hour), model.AuctionCancelled)
	latest := auction(now, model.AuctionEnded)
	txn := model.Transaction{
		TransactionID: utils.GenerateID(),
		AuctionID:     latest.AuctionID,
		BuyerID:       buyer,
		SellerID:      owner,
		Amount:        latest.CurrentPrice,
		Status:        model.TransactionPendingPayment,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, s.RunInTx(ctx, func(tx repository.AuctionTx) error {
		if _, err := tx.LockItem(ctx, sold.ItemID); err != nil {
			return err
		}
		if err := tx.InsertAuction(ctx, older); err != nil {
			return err
		}
		if err := tx.InsertAuction(ctx, latest); err != nil {
			return err
		}
		return tx.InsertTransaction(ctx, txn)
	}))

	owned, err := s.GetItemsByOwner(ctx, owner)
	require.NoError(t, err)
	require.Len(t, owned, 2)
	require.Equal(t, sold.ItemID, owned[0].Item.ItemID)
	require.NotNil(t, owned[0].Auction)
	require.Equal(t, latest.AuctionID, owned[0].Auction.AuctionID)
	require.NotNil(t, owned[0].Transaction)
	require.Equal(t, txn.TransactionID, owned[0].Transaction.TransactionID)
	require.Equal(t, unlisted.ItemID, owned[1].Item.ItemID)
	require.Nil(t, owned[1].Auction)
	require.Nil(t, owned[1].Transaction)

	won, err := s.GetWonAuctions(ctx, buyer)
	require.NoError(t, err)
	require.Len(t, won, 1)
	require.Equal(t, latest.AuctionID, won[0].Auction.AuctionID)
	require.Equal(t, txn.TransactionID, won[0].Transaction.TransactionID)

	none, err := s.GetWonAuctions(ctx, owner)
	require.NoError(t, err)
	require.Empty(t, none)
}
