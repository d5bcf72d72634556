package postgres

import (
	"context"
	"fmt"
	"time"

	"bidding-engine/internal/biddingerrors"
	model "bidding-engine/internal/models"
	"bidding-engine/internal/repository"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// querier is the subset of pgx shared by the pool and a transaction
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements repository.AuctionDB on PostgreSQL. Leases are row locks
// taken with SELECT ... FOR UPDATE and bounded by lock_timeout.
type Store struct {
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

var _ repository.AuctionDB = (*Store)(nil)

// NewStore creates a Store on an open pool
func NewStore(pool *pgxpool.Pool, lockTimeout time.Duration) *Store {
	if lockTimeout <= 0 {
		lockTimeout = repository.DefaultLockTimeout
	}
	return &Store{pool: pool, lockTimeout: lockTimeout}
}

// RunInTx runs fn inside one database transaction
func (s *Store) RunInTx(ctx context.Context, fn func(tx repository.AuctionTx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, "SELECT set_config('lock_timeout', $1, true)", lockTimeoutSetting(s.lockTimeout)); err != nil {
		return fmt.Errorf("postgres: set lock_timeout: %w", err)
	}

	if err := fn(&pgTx{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return mapError("commit", err, nil)
	}
	return nil
}

func lockTimeoutSetting(d time.Duration) string {
	ms := d.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	return fmt.Sprintf("%dms", ms)
}

// CreateItem stores a new item
func (s *Store) CreateItem(ctx context.Context, item model.Item) error {
	if item.ItemID == "" {
		return fmt.Errorf("postgres: create item: %w - empty item ID", biddingerrors.ErrValidationFailed)
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO items (item_id, owner_id, title, description, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		item.ItemID, item.OwnerID, item.Title, item.Description, item.CreatedAt,
	)
	return mapError("create item "+item.ItemID, err, nil)
}

// GetItem returns an item by ID
func (s *Store) GetItem(ctx context.Context, itemID string) (model.Item, error) {
	return getItem(ctx, s.pool, itemID, "")
}

// GetAuction returns the committed state of an auction
func (s *Store) GetAuction(ctx context.Context, auctionID string) (model.Auction, error) {
	return getAuction(ctx, s.pool, auctionID, "")
}

// GetBidsByAuction returns all bids for an auction in the order they were placed
func (s *Store) GetBidsByAuction(ctx context.Context, auctionID string) ([]model.Bid, error) {
	if _, err := s.GetAuction(ctx, auctionID); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+bidColumns+`
		FROM bids WHERE auction_id = $1
		ORDER BY seq`,
		auctionID,
	)
	if err != nil {
		return nil, mapError("get bids for auction "+auctionID, err, nil)
	}
	return collectBids(rows)
}

// GetUserMaxBid returns the user's own bid with the highest ceiling
func (s *Store) GetUserMaxBid(ctx context.Context, auctionID, userID string) (model.Bid, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+bidColumns+`
		FROM bids WHERE auction_id = $1 AND bidder_id = $2
		ORDER BY max_amount DESC, seq
		LIMIT 1`,
		auctionID, userID,
	)
	b, err := scanBid(row)
	if err != nil {
		return model.Bid{}, mapError(fmt.Sprintf("get max bid of user %s on auction %s", userID, auctionID), err, biddingerrors.ErrNoBids)
	}
	return b, nil
}

// GetAuctionsByBidder returns every auction a user has bid on, in order of their first bid
func (s *Store) GetAuctionsByBidder(ctx context.Context, userID string) ([]model.Auction, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+auctionColumnsOf("a")+`
		FROM auctions a
		JOIN (
			SELECT auction_id, MIN(seq) AS first_seq
			FROM bids WHERE bidder_id = $1
			GROUP BY auction_id
		) b ON b.auction_id = a.auction_id
		ORDER BY b.first_seq`,
		userID,
	)
	if err != nil {
		return nil, mapError("get auctions of bidder "+userID, err, nil)
	}
	return collectAuctions(rows)
}

// GetItemsByOwner returns the owner's items oldest first, each with its latest
// auction by start time and that auction's transaction
func (s *Store) GetItemsByOwner(ctx context.Context, ownerID string) ([]model.OwnedItem, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+itemColumns+`
		FROM items WHERE owner_id = $1
		ORDER BY created_at, item_id`,
		ownerID,
	)
	if err != nil {
		return nil, mapError("get items of owner "+ownerID, err, nil)
	}
	items, err := collectItems(rows)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return []model.OwnedItem{}, nil
	}

	itemIDs := make([]string, 0, len(items))
	for _, item := range items {
		itemIDs = append(itemIDs, item.ItemID)
	}
	rows, err = s.pool.Query(ctx, `
		SELECT DISTINCT ON (auctions.item_id) `+auctionColumns+`
		FROM auctions WHERE auctions.item_id = ANY($1)
		ORDER BY auctions.item_id, auctions.start_time DESC, auctions.created_at DESC`,
		itemIDs,
	)
	if err != nil {
		return nil, mapError("get latest auctions of owner "+ownerID, err, nil)
	}
	latest, err := collectAuctions(rows)
	if err != nil {
		return nil, err
	}

	auctionIDs := make([]string, 0, len(latest))
	byItem := make(map[string]model.Auction, len(latest))
	for _, a := range latest {
		auctionIDs = append(auctionIDs, a.AuctionID)
		byItem[a.ItemID] = a
	}
	txns, err := s.transactionsByAuction(ctx, auctionIDs)
	if err != nil {
		return nil, err
	}

	owned := make([]model.OwnedItem, 0, len(items))
	for _, item := range items {
		entry := model.OwnedItem{Item: item}
		if a, ok := byItem[item.ItemID]; ok {
			entry.Auction = &a
			if txn, ok := txns[a.AuctionID]; ok {
				entry.Transaction = &txn
			}
		}
		owned = append(owned, entry)
	}
	return owned, nil
}

// GetWonAuctions returns the auctions that opened a transaction for buyerID, in the order they closed
func (s *Store) GetWonAuctions(ctx context.Context, buyerID string) ([]model.WonAuction, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions WHERE buyer_id = $1
		ORDER BY created_at, transaction_id`,
		buyerID,
	)
	if err != nil {
		return nil, mapError("get transactions of buyer "+buyerID, err, nil)
	}
	txns, err := collectTransactions(rows)
	if err != nil {
		return nil, err
	}
	if len(txns) == 0 {
		return []model.WonAuction{}, nil
	}

	auctionIDs := make([]string, 0, len(txns))
	for _, txn := range txns {
		auctionIDs = append(auctionIDs, txn.AuctionID)
	}
	rows, err = s.pool.Query(ctx, `
		SELECT `+auctionColumns+`
		FROM auctions WHERE auction_id = ANY($1)`,
		auctionIDs,
	)
	if err != nil {
		return nil, mapError("get auctions won by "+buyerID, err, nil)
	}
	auctions, err := collectAuctions(rows)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]model.Auction, len(auctions))
	for _, a := range auctions {
		byID[a.AuctionID] = a
	}

	won := make([]model.WonAuction, 0, len(txns))
	for _, txn := range txns {
		won = append(won, model.WonAuction{Auction: byID[txn.AuctionID], Transaction: txn})
	}
	return won, nil
}

func (s *Store) transactionsByAuction(ctx context.Context, auctionIDs []string) (map[string]model.Transaction, error) {
	out := make(map[string]model.Transaction, len(auctionIDs))
	if len(auctionIDs) == 0 {
		return out, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions WHERE auction_id = ANY($1)`,
		auctionIDs,
	)
	if err != nil {
		return nil, mapError("get transactions by auction", err, nil)
	}
	txns, err := collectTransactions(rows)
	if err != nil {
		return nil, err
	}
	for _, txn := range txns {
		out[txn.AuctionID] = txn
	}
	return out, nil
}

// ListExpiredAuctions returns up to limit ACTIVE auctions whose end time is not after now
func (s *Store) ListExpiredAuctions(ctx context.Context, now time.Time, limit int) ([]model.Auction, error) {
	var lim any
	if limit > 0 {
		lim = limit
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+auctionColumns+`
		FROM auctions
		WHERE status = 'ACTIVE' AND end_time <= $1
		ORDER BY end_time, auction_id
		LIMIT $2`,
		now, lim,
	)
	if err != nil {
		return nil, mapError("list expired auctions", err, nil)
	}
	return collectAuctions(rows)
}

// GetTransaction returns a transaction by ID
func (s *Store) GetTransaction(ctx context.Context, transactionID string) (model.Transaction, error) {
	return getTransaction(ctx, s.pool, "transaction_id", transactionID, "")
}

// GetTransactionByAuction returns the transaction created for an auction
func (s *Store) GetTransactionByAuction(ctx context.Context, auctionID string) (model.Transaction, error) {
	return getTransaction(ctx, s.pool, "auction_id", auctionID, "")
}

// pgTx is the AuctionTx view of one database transaction
type pgTx struct {
	q querier
}

var _ repository.AuctionTx = (*pgTx)(nil)

func (t *pgTx) GetItem(ctx context.Context, itemID string) (model.Item, error) {
	return getItem(ctx, t.q, itemID, "")
}

func (t *pgTx) LockItem(ctx context.Context, itemID string) (model.Item, error) {
	return getItem(ctx, t.q, itemID, "FOR UPDATE")
}

func (t *pgTx) LockAuction(ctx context.Context, auctionID string) (model.Auction, error) {
	return getAuction(ctx, t.q, auctionID, "FOR UPDATE")
}

func (t *pgTx) LockTransaction(ctx context.Context, transactionID string) (model.Transaction, error) {
	return getTransaction(ctx, t.q, "transaction_id", transactionID, "FOR UPDATE")
}

func (t *pgTx) GetHighestBid(ctx context.Context, auctionID string) (model.Bid, error) {
	row := t.q.QueryRow(ctx, `
		SELECT `+bidColumns+`
		FROM bids WHERE auction_id = $1
		ORDER BY max_amount DESC, seq
		LIMIT 1`,
		auctionID,
	)
	b, err := scanBid(row)
	if err != nil {
		return model.Bid{}, mapError("get highest bid for auction "+auctionID, err, biddingerrors.ErrNoBids)
	}
	return b, nil
}

func (t *pgTx) HasOpenAuction(ctx context.Context, itemID string) (bool, error) {
	var open bool
	err := t.q.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM auctions
			WHERE item_id = $1 AND status IN ('DRAFT', 'ACTIVE')
		)`,
		itemID,
	).Scan(&open)
	if err != nil {
		return false, mapError("check open auction for item "+itemID, err, nil)
	}
	return open, nil
}

func (t *pgTx) InsertAuction(ctx context.Context, a model.Auction) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO auctions (auction_id, item_id, status, start_time, end_time,
			start_price, current_price, highest_bidder_id, reserve_price, buy_now_price,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7::numeric, $8, $9::numeric, $10::numeric, $11, $12)`,
		a.AuctionID, a.ItemID, string(a.Status), a.StartTime, a.EndTime,
		a.StartPrice.String(), a.CurrentPrice.String(), a.HighestBidderID,
		moneyArg(a.ReservePrice), moneyArg(a.BuyNowPrice),
		a.CreatedAt, a.UpdatedAt,
	)
	return mapError("insert auction "+a.AuctionID, err, nil)
}

func (t *pgTx) UpdateAuction(ctx context.Context, a model.Auction) error {
	tag, err := t.q.Exec(ctx, `
		UPDATE auctions SET
			status = $2, end_time = $3, current_price = $4::numeric,
			highest_bidder_id = $5, buy_now_price = $6::numeric, updated_at = $7
		WHERE auction_id = $1`,
		a.AuctionID, string(a.Status), a.EndTime, a.CurrentPrice.String(),
		a.HighestBidderID, moneyArg(a.BuyNowPrice), a.UpdatedAt,
	)
	if err != nil {
		return mapError("update auction "+a.AuctionID, err, nil)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: update auction %s: %w", a.AuctionID, biddingerrors.ErrAuctionNotFound)
	}
	return nil
}

func (t *pgTx) InsertBid(ctx context.Context, b model.Bid) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO bids (bid_id, auction_id, bidder_id, max_amount, created_at)
		VALUES ($1, $2, $3, $4::numeric, $5)`,
		b.BidID, b.AuctionID, b.BidderID, b.MaxAmount.String(), b.CreatedAt,
	)
	return mapError("insert bid "+b.BidID, err, nil)
}

func (t *pgTx) InsertTransaction(ctx context.Context, txn model.Transaction) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO transactions (transaction_id, auction_id, buyer_id, seller_id,
			amount, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8)`,
		txn.TransactionID, txn.AuctionID, txn.BuyerID, txn.SellerID,
		txn.Amount.String(), string(txn.Status), txn.CreatedAt, txn.UpdatedAt,
	)
	return mapError("insert transaction for auction "+txn.AuctionID, err, nil)
}

func (t *pgTx) UpdateTransaction(ctx context.Context, txn model.Transaction) error {
	tag, err := t.q.Exec(ctx, `
		UPDATE transactions SET status = $2, updated_at = $3
		WHERE transaction_id = $1`,
		txn.TransactionID, string(txn.Status), txn.UpdatedAt,
	)
	if err != nil {
		return mapError("update transaction "+txn.TransactionID, err, nil)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: update transaction %s: %w", txn.TransactionID, biddingerrors.ErrTransactionNotFound)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Row helpers. Money columns travel as text so no precision is lost between
// NUMERIC and decimal.Decimal.
// ---------------------------------------------------------------------------

const itemColumns = `item_id, owner_id, title, description, created_at`

const bidColumns = `bid_id, auction_id, bidder_id, max_amount::text, created_at`

const transactionColumns = `transaction_id, auction_id, buyer_id, seller_id, amount::text, status, created_at, updated_at`

var auctionColumns = auctionColumnsOf("auctions")

func auctionColumnsOf(alias string) string {
	return fmt.Sprintf(`%[1]s.auction_id, %[1]s.item_id, %[1]s.status, %[1]s.start_time, %[1]s.end_time,
		%[1]s.start_price::text, %[1]s.current_price::text, %[1]s.highest_bidder_id,
		%[1]s.reserve_price::text, %[1]s.buy_now_price::text, %[1]s.created_at, %[1]s.updated_at`, alias)
}

func getItem(ctx context.Context, q querier, itemID, lock string) (model.Item, error) {
	item, err := scanItem(q.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE item_id = $1 `+lock, itemID))
	if err != nil {
		return model.Item{}, mapError("get item "+itemID, err, biddingerrors.ErrItemNotFound)
	}
	return item, nil
}

func scanItem(row pgx.Row) (model.Item, error) {
	var item model.Item
	if err := row.Scan(&item.ItemID, &item.OwnerID, &item.Title, &item.Description, &item.CreatedAt); err != nil {
		return model.Item{}, err
	}
	item.CreatedAt = item.CreatedAt.UTC()
	return item, nil
}

func getAuction(ctx context.Context, q querier, auctionID, lock string) (model.Auction, error) {
	row := q.QueryRow(ctx, `SELECT `+auctionColumns+` FROM auctions WHERE auction_id = $1 `+lock, auctionID)
	a, err := scanAuction(row)
	if err != nil {
		return model.Auction{}, mapError("get auction "+auctionID, err, biddingerrors.ErrAuctionNotFound)
	}
	return a, nil
}

func getTransaction(ctx context.Context, q querier, column, id, lock string) (model.Transaction, error) {
	row := q.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE `+column+` = $1 `+lock, id)
	txn, err := scanTransaction(row)
	if err != nil {
		return model.Transaction{}, mapError("get transaction "+id, err, biddingerrors.ErrTransactionNotFound)
	}
	return txn, nil
}

func scanAuction(row pgx.Row) (model.Auction, error) {
	var (
		a               model.Auction
		status          string
		start, current  string
		reserve, buyNow *string
	)
	err := row.Scan(&a.AuctionID, &a.ItemID, &status, &a.StartTime, &a.EndTime,
		&start, &current, &a.HighestBidderID, &reserve, &buyNow, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return model.Auction{}, err
	}
	a.Status = model.AuctionStatus(status)
	if a.StartPrice, err = decimal.NewFromString(start); err != nil {
		return model.Auction{}, fmt.Errorf("start_price: %w", err)
	}
	if a.CurrentPrice, err = decimal.NewFromString(current); err != nil {
		return model.Auction{}, fmt.Errorf("current_price: %w", err)
	}
	if a.ReservePrice, err = parseMoney(reserve); err != nil {
		return model.Auction{}, fmt.Errorf("reserve_price: %w", err)
	}
	if a.BuyNowPrice, err = parseMoney(buyNow); err != nil {
		return model.Auction{}, fmt.Errorf("buy_now_price: %w", err)
	}
	a.StartTime, a.EndTime = a.StartTime.UTC(), a.EndTime.UTC()
	a.CreatedAt, a.UpdatedAt = a.CreatedAt.UTC(), a.UpdatedAt.UTC()
	return a, nil
}

func scanBid(row pgx.Row) (model.Bid, error) {
	var (
		b       model.Bid
		ceiling string
	)
	if err := row.Scan(&b.BidID, &b.AuctionID, &b.BidderID, &ceiling, &b.CreatedAt); err != nil {
		return model.Bid{}, err
	}
	amount, err := decimal.NewFromString(ceiling)
	if err != nil {
		return model.Bid{}, fmt.Errorf("max_amount: %w", err)
	}
	b.MaxAmount = amount
	b.CreatedAt = b.CreatedAt.UTC()
	return b, nil
}

func scanTransaction(row pgx.Row) (model.Transaction, error) {
	var (
		txn    model.Transaction
		amount string
		status string
	)
	err := row.Scan(&txn.TransactionID, &txn.AuctionID, &txn.BuyerID, &txn.SellerID,
		&amount, &status, &txn.CreatedAt, &txn.UpdatedAt)
	if err != nil {
		return model.Transaction{}, err
	}
	if txn.Amount, err = decimal.NewFromString(amount); err != nil {
		return model.Transaction{}, fmt.Errorf("amount: %w", err)
	}
	txn.Status = model.TransactionStatus(status)
	txn.CreatedAt, txn.UpdatedAt = txn.CreatedAt.UTC(), txn.UpdatedAt.UTC()
	return txn, nil
}

func collectAuctions(rows pgx.Rows) ([]model.Auction, error) {
	defer rows.Close()
	auctions := []model.Auction{}
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, mapError("scan auction", err, nil)
		}
		auctions = append(auctions, a)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("iterate auctions", err, nil)
	}
	return auctions, nil
}

func collectItems(rows pgx.Rows) ([]model.Item, error) {
	defer rows.Close()
	items := []model.Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, mapError("scan item", err, nil)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("iterate items", err, nil)
	}
	return items, nil
}

func collectTransactions(rows pgx.Rows) ([]model.Transaction, error) {
	defer rows.Close()
	txns := []model.Transaction{}
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, mapError("scan transaction", err, nil)
		}
		txns = append(txns, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("iterate transactions", err, nil)
	}
	return txns, nil
}

func collectBids(rows pgx.Rows) ([]model.Bid, error) {
	defer rows.Close()
	bids := []model.Bid{}
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, mapError("scan bid", err, nil)
		}
		bids = append(bids, b)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("iterate bids", err, nil)
	}
	return bids, nil
}

func parseMoney(s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func moneyArg(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}
