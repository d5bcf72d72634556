package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"bidding-engine/internal/biddingerrors"
	model "bidding-engine/internal/models"

	"github.com/google/btree"
)

// DefaultLockTimeout bounds how long a unit of work waits for a lease
const DefaultLockTimeout = 10 * time.Second

// closingEntry orders ACTIVE auctions by end time for the closing sweep
type closingEntry struct {
	endTime   time.Time
	auctionID string
}

func closingLess(a, b closingEntry) bool {
	if !a.endTime.Equal(b.endTime) {
		return a.endTime.Before(b.endTime)
	}
	return a.auctionID < b.auctionID
}

// MemoryRepo is a concurrency-safe in-memory implementation of AuctionDB.
// Units of work serialize on per-entity leases and stage their writes; the
// staged writes are applied under mu in one step on commit.
type MemoryRepo struct {
	mu             sync.RWMutex
	items          map[string]model.Item
	auctions       map[string]model.Auction
	bids           map[string][]model.Bid // key: auctionID -> bids in insertion order
	bidderAuctions map[string][]string    // key: userID -> auctionIDs the user has bid on
	ownerItems     map[string][]string    // key: ownerID -> itemIDs in creation order
	itemAuctions   map[string][]string    // key: itemID -> auctionIDs in creation order
	txns           map[string]model.Transaction
	txnByAuction   map[string]string
	buyerTxns      map[string][]string // key: buyerID -> transactionIDs in creation order
	closing        *btree.BTreeG[closingEntry]

	leases      *Leases
	lockTimeout time.Duration
}

// NewMemoryRepo creates a new in-memory repository instance
func NewMemoryRepo(lockTimeout time.Duration) *MemoryRepo {
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	return &MemoryRepo{
		items:          make(map[string]model.Item),
		auctions:       make(map[string]model.Auction),
		bids:           make(map[string][]model.Bid),
		bidderAuctions: make(map[string][]string),
		ownerItems:     make(map[string][]string),
		itemAuctions:   make(map[string][]string),
		txns:           make(map[string]model.Transaction),
		txnByAuction:   make(map[string]string),
		buyerTxns:      make(map[string][]string),
		closing:        btree.NewG[closingEntry](16, closingLess),
		leases:         NewLeases(),
		lockTimeout:    lockTimeout,
	}
}

// RunInTx runs fn in a unit of work and commits its staged writes if fn succeeds
func (r *MemoryRepo) RunInTx(ctx context.Context, fn func(tx AuctionTx) error) error {
	tx := &memTx{
		repo:     r,
		held:     make(map[string]func()),
		auctions: make(map[string]model.Auction),
		txns:     make(map[string]model.Transaction),
	}
	defer tx.releaseAll()

	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

// CreateItem stores a new item
func (r *MemoryRepo) CreateItem(_ context.Context, item model.Item) error {
	if item.ItemID == "" {
		return fmt.Errorf("create item: %w - empty item ID", biddingerrors.ErrValidationFailed)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[item.ItemID]; ok {
		return fmt.Errorf("create item %s: %w - item exists", item.ItemID, biddingerrors.ErrConflict)
	}
	r.items[item.ItemID] = item
	r.ownerItems[item.OwnerID] = append(r.ownerItems[item.OwnerID], item.ItemID)
	return nil
}

// GetItem returns an item by ID
func (r *MemoryRepo) GetItem(_ context.Context, itemID string) (model.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	item, ok := r.items[itemID]
	if !ok {
		return model.Item{}, fmt.Errorf("get item %s: %w", itemID, biddingerrors.ErrItemNotFound)
	}
	return item, nil
}

// GetAuction returns the committed state of an auction
func (r *MemoryRepo) GetAuction(_ context.Context, auctionID string) (model.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.auctions[auctionID]
	if !ok {
		return model.Auction{}, fmt.Errorf("get auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}
	return a, nil
}

// GetBidsByAuction returns all bids for an auction in the order they were placed
func (r *MemoryRepo) GetBidsByAuction(_ context.Context, auctionID string) ([]model.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.auctions[auctionID]; !ok {
		return nil, fmt.Errorf("get bids for auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}
	return append([]model.Bid{}, r.bids[auctionID]...), nil
}

// GetUserMaxBid returns the user's own bid with the highest ceiling
func (r *MemoryRepo) GetUserMaxBid(_ context.Context, auctionID, userID string) (model.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var best model.Bid
	found := false
	for _, b := range r.bids[auctionID] {
		if b.BidderID != userID {
			continue
		}
		if !found || b.MaxAmount.GreaterThan(best.MaxAmount) {
			best, found = b, true
		}
	}
	if !found {
		return model.Bid{}, fmt.Errorf("get max bid of user %s on auction %s: %w", userID, auctionID, biddingerrors.ErrNoBids)
	}
	return best, nil
}

// GetAuctionsByBidder returns every auction a user has bid on
func (r *MemoryRepo) GetAuctionsByBidder(_ context.Context, userID string) ([]model.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.bidderAuctions[userID]
	auctions := make([]model.Auction, 0, len(ids))
	for _, id := range ids {
		if a, ok := r.auctions[id]; ok {
			auctions = append(auctions, a)
		}
	}
	return auctions, nil
}

// GetItemsByOwner returns the owner's items in creation order, each with its
// latest auction by start time and that auction's transaction
func (r *MemoryRepo) GetItemsByOwner(_ context.Context, ownerID string) ([]model.OwnedItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.ownerItems[ownerID]
	owned := make([]model.OwnedItem, 0, len(ids))
	for _, id := range ids {
		entry := model.OwnedItem{Item: r.items[id]}
		for _, auctionID := range r.itemAuctions[id] {
			a := r.auctions[auctionID]
			// later creation wins equal start times
			if entry.Auction == nil || !a.StartTime.Before(entry.Auction.StartTime) {
				latest := a
				entry.Auction = &latest
			}
		}
		if entry.Auction != nil {
			if txnID, ok := r.txnByAuction[entry.Auction.AuctionID]; ok {
				txn := r.txns[txnID]
				entry.Transaction = &txn
			}
		}
		owned = append(owned, entry)
	}
	return owned, nil
}

// GetWonAuctions returns the auctions buyerID won, in the order they closed
func (r *MemoryRepo) GetWonAuctions(_ context.Context, buyerID string) ([]model.WonAuction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.buyerTxns[buyerID]
	won := make([]model.WonAuction, 0, len(ids))
	for _, id := range ids {
		txn := r.txns[id]
		won = append(won, model.WonAuction{Auction: r.auctions[txn.AuctionID], Transaction: txn})
	}
	return won, nil
}

// ListExpiredAuctions returns up to limit ACTIVE auctions whose end time is not after now
func (r *MemoryRepo) ListExpiredAuctions(_ context.Context, now time.Time, limit int) ([]model.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []model.Auction
	r.closing.Ascend(func(e closingEntry) bool {
		if e.endTime.After(now) || (limit > 0 && len(out) >= limit) {
			return false
		}
		out = append(out, r.auctions[e.auctionID])
		return true
	})
	return out, nil
}

// GetTransaction returns a transaction by ID
func (r *MemoryRepo) GetTransaction(_ context.Context, transactionID string) (model.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.txns[transactionID]
	if !ok {
		return model.Transaction{}, fmt.Errorf("get transaction %s: %w", transactionID, biddingerrors.ErrTransactionNotFound)
	}
	return t, nil
}

// GetTransactionByAuction returns the transaction created for an auction
func (r *MemoryRepo) GetTransactionByAuction(_ context.Context, auctionID string) (model.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.txnByAuction[auctionID]
	if !ok {
		return model.Transaction{}, fmt.Errorf("get transaction for auction %s: %w", auctionID, biddingerrors.ErrTransactionNotFound)
	}
	return r.txns[id], nil
}

// memTx stages writes of one unit of work
type memTx struct {
	repo     *MemoryRepo
	held     map[string]func()
	auctions map[string]model.Auction
	bids     []model.Bid
	txns     map[string]model.Transaction
}

func (t *memTx) lease(ctx context.Context, key string) error {
	if _, ok := t.held[key]; ok {
		return nil
	}
	release, err := t.repo.leases.Acquire(ctx, key, t.repo.lockTimeout)
	if err != nil {
		return err
	}
	t.held[key] = release
	return nil
}

func (t *memTx) holds(key string) bool {
	_, ok := t.held[key]
	return ok
}

func (t *memTx) releaseAll() {
	for _, release := range t.held {
		release()
	}
}

func (t *memTx) GetItem(ctx context.Context, itemID string) (model.Item, error) {
	return t.repo.GetItem(ctx, itemID)
}

func (t *memTx) LockItem(ctx context.Context, itemID string) (model.Item, error) {
	if err := t.lease(ctx, itemKey(itemID)); err != nil {
		return model.Item{}, fmt.Errorf("lock item %s: %w", itemID, err)
	}
	return t.repo.GetItem(ctx, itemID)
}

func (t *memTx) LockAuction(ctx context.Context, auctionID string) (model.Auction, error) {
	if err := t.lease(ctx, auctionKey(auctionID)); err != nil {
		return model.Auction{}, fmt.Errorf("lock auction %s: %w", auctionID, err)
	}
	if a, ok := t.auctions[auctionID]; ok {
		return a, nil
	}
	return t.repo.GetAuction(ctx, auctionID)
}

func (t *memTx) LockTransaction(ctx context.Context, transactionID string) (model.Transaction, error) {
	if err := t.lease(ctx, transactionKey(transactionID)); err != nil {
		return model.Transaction{}, fmt.Errorf("lock transaction %s: %w", transactionID, err)
	}
	if txn, ok := t.txns[transactionID]; ok {
		return txn, nil
	}
	return t.repo.GetTransaction(ctx, transactionID)
}

func (t *memTx) GetHighestBid(_ context.Context, auctionID string) (model.Bid, error) {
	t.repo.mu.RLock()
	committed := t.repo.bids[auctionID]
	t.repo.mu.RUnlock()

	var best model.Bid
	found := false
	consider := func(b model.Bid) {
		if b.AuctionID != auctionID {
			return
		}
		// strict comparison keeps the earliest bid on ties
		if !found || b.MaxAmount.GreaterThan(best.MaxAmount) {
			best, found = b, true
		}
	}
	for _, b := range committed {
		consider(b)
	}
	for _, b := range t.bids {
		consider(b)
	}
	if !found {
		return model.Bid{}, fmt.Errorf("get highest bid for auction %s: %w", auctionID, biddingerrors.ErrNoBids)
	}
	return best, nil
}

func (t *memTx) HasOpenAuction(_ context.Context, itemID string) (bool, error) {
	for _, a := range t.auctions {
		if a.ItemID == itemID && a.Status.Open() {
			return true, nil
		}
	}
	t.repo.mu.RLock()
	defer t.repo.mu.RUnlock()
	for id, a := range t.repo.auctions {
		if _, staged := t.auctions[id]; staged {
			continue
		}
		if a.ItemID == itemID && a.Status.Open() {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) InsertAuction(ctx context.Context, a model.Auction) error {
	if _, ok := t.auctions[a.AuctionID]; ok {
		return fmt.Errorf("insert auction %s: %w - duplicate ID", a.AuctionID, biddingerrors.ErrConflict)
	}
	if _, err := t.repo.GetAuction(ctx, a.AuctionID); err == nil {
		return fmt.Errorf("insert auction %s: %w - duplicate ID", a.AuctionID, biddingerrors.ErrConflict)
	}
	if !t.holds(itemKey(a.ItemID)) {
		return fmt.Errorf("insert auction %s: item %s is not leased", a.AuctionID, a.ItemID)
	}
	t.auctions[a.AuctionID] = a
	return nil
}

func (t *memTx) UpdateAuction(_ context.Context, a model.Auction) error {
	if !t.holds(auctionKey(a.AuctionID)) {
		return fmt.Errorf("update auction %s: auction is not leased", a.AuctionID)
	}
	t.auctions[a.AuctionID] = a
	return nil
}

func (t *memTx) InsertBid(_ context.Context, b model.Bid) error {
	if !t.holds(auctionKey(b.AuctionID)) {
		return fmt.Errorf("insert bid %s: auction %s is not leased", b.BidID, b.AuctionID)
	}
	t.bids = append(t.bids, b)
	return nil
}

func (t *memTx) InsertTransaction(_ context.Context, txn model.Transaction) error {
	for _, staged := range t.txns {
		if staged.AuctionID == txn.AuctionID {
			return fmt.Errorf("insert transaction for auction %s: %w", txn.AuctionID, biddingerrors.ErrDuplicateTxn)
		}
	}
	t.repo.mu.RLock()
	_, exists := t.repo.txnByAuction[txn.AuctionID]
	t.repo.mu.RUnlock()
	if exists {
		return fmt.Errorf("insert transaction for auction %s: %w", txn.AuctionID, biddingerrors.ErrDuplicateTxn)
	}
	t.txns[txn.TransactionID] = txn
	return nil
}

func (t *memTx) UpdateTransaction(_ context.Context, txn model.Transaction) error {
	if !t.holds(transactionKey(txn.TransactionID)) {
		return fmt.Errorf("update transaction %s: transaction is not leased", txn.TransactionID)
	}
	t.txns[txn.TransactionID] = txn
	return nil
}

// commit applies every staged write at once
func (t *memTx) commit() {
	r := t.repo
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, a := range t.auctions {
		old, existed := r.auctions[id]
		if !existed {
			r.itemAuctions[a.ItemID] = append(r.itemAuctions[a.ItemID], id)
		}
		if existed && old.Status == model.AuctionActive {
			r.closing.Delete(closingEntry{endTime: old.EndTime, auctionID: id})
		}
		r.auctions[id] = a
		if a.Status == model.AuctionActive {
			r.closing.ReplaceOrInsert(closingEntry{endTime: a.EndTime, auctionID: id})
		}
	}

	for _, b := range t.bids {
		if !containsString(r.bidderAuctions[b.BidderID], b.AuctionID) {
			r.bidderAuctions[b.BidderID] = append(r.bidderAuctions[b.BidderID], b.AuctionID)
		}
		r.bids[b.AuctionID] = append(r.bids[b.AuctionID], b)
	}

	for id, txn := range t.txns {
		if _, existed := r.txns[id]; !existed {
			r.buyerTxns[txn.BuyerID] = append(r.buyerTxns[txn.BuyerID], id)
		}
		r.txns[id] = txn
		r.txnByAuction[txn.AuctionID] = id
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
