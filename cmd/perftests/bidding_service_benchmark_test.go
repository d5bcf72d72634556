package perftests

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	bidding "bidding-engine/internal/biddingService"
	"bidding-engine/internal/models"

	"github.com/shopspring/decimal"
)

// Benchmark 1: PlaceBid - Isolated Auctions (Low Contention - Micro Benchmark)
func Benchmark_PlaceBid_Isolated(b *testing.B) {
	e := newEngine()
	auctionIDs := e.openAuctions(b, b.N, 50)
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		userID := fmt.Sprintf("user_%d", i)
		ceiling := decimal.NewFromInt(int64(51 + rand.Intn(100)))
		if _, _, err := e.bidding.PlaceBid(ctx, userID, auctionIDs[i], ceiling); err != nil {
			b.Fatalf("failed to place bid: %v", err)
		}
	}
}

// Benchmark 2: PlaceBid - Shared Auction (High Contention - Concurrency Benchmark)
func Benchmark_PlaceBid_ConcurrentSharedAuction(b *testing.B) {
	e := newEngine()
	auctionID := e.openAuctions(b, 1, 50)[0]
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()

	var lastCeiling int64 = 50

	b.RunParallel(func(pb *testing.PB) {
		rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
		for pb.Next() {
			userID := fmt.Sprintf("user_parallel_%d", rnd.Int())
			next := atomic.AddInt64(&lastCeiling, int64(rnd.Intn(5)+1))
			_, _, _ = e.bidding.PlaceBid(ctx, userID, auctionID, decimal.NewFromInt(next))
		}
	})
}

// Benchmark 3: GetBidHistory - Single-Threaded (Low Contention)
func Benchmark_GetBidHistory_SingleThreaded(b *testing.B) {
	e := newEngine()
	auctionIDs := e.openAuctions(b, b.N, 50)
	ctx := context.Background()

	for i, id := range auctionIDs {
		for j := 0; j < 10; j++ {
			userID := fmt.Sprintf("user_%d_%d", i, j)
			_, _, _ = e.bidding.PlaceBid(ctx, userID, id, decimal.NewFromInt(int64(60+j*10)))
		}
	}

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := e.bidding.GetBidHistory(ctx, auctionIDs[i]); err != nil {
			b.Fatalf("failed to get bid history: %v", err)
		}
	}
}

// Benchmark 4: GetAuction - Concurrent (High Contention)
func Benchmark_GetAuction_ConcurrentSharedAuction(b *testing.B) {
	e := newEngine()
	auctionID := e.openAuctions(b, 1, 50)[0]
	ctx := context.Background()

	for j := 0; j < 100; j++ {
		userID := fmt.Sprintf("user_%d", j)
		_, _, _ = e.bidding.PlaceBid(ctx, userID, auctionID, decimal.NewFromInt(int64(60+j)))
	}

	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := e.auctions.GetAuction(ctx, auctionID); err != nil {
				b.Errorf("failed to get auction: %v", err)
				return
			}
		}
	})
}

// Benchmark 5: Mixed Workload (Readers + Writers concurrently)
func Benchmark_MixedWorkload_SharedAuction(b *testing.B) {
	e := newEngine()
	auctionID := e.openAuctions(b, 1, 50)[0]
	ctx := context.Background()

	for j := 0; j < 50; j++ {
		userID := fmt.Sprintf("user_seed_%d", j)
		_, _, _ = e.bidding.PlaceBid(ctx, userID, auctionID, decimal.NewFromInt(int64(60+j*2)))
	}

	b.ReportAllocs()
	b.ResetTimer()

	var lastCeiling int64 = 200

	// Ratio: 70% readers, 30% writers
	b.RunParallel(func(pb *testing.PB) {
		rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
		for pb.Next() {
			if rnd.Intn(10) < 3 {
				userID := fmt.Sprintf("user_writer_%d", rnd.Int())
				next := atomic.AddInt64(&lastCeiling, int64(rnd.Intn(5)+1))
				_, _, _ = e.bidding.PlaceBid(ctx, userID, auctionID, decimal.NewFromInt(next))
				continue
			}
			_, _ = e.auctions.GetAuction(ctx, auctionID)
		}
	})
}

// Benchmark 6: Resolver alone, no store
func Benchmark_Resolver_Resolve(b *testing.B) {
	resolver := bidding.NewResolver(bidding.DefaultIncrementRate, bidding.DefaultSnipeWindow)
	now := time.Now()
	a := models.Auction{
		AuctionID:       "auction1",
		Status:          models.AuctionActive,
		EndTime:         now.Add(time.Hour),
		StartPrice:      decimal.NewFromInt(100),
		CurrentPrice:    decimal.NewFromInt(126),
		HighestBidderID: "x",
	}
	in := bidding.Input{
		Auction:   a,
		OwnerID:   sellerID,
		Leader:    &bidding.Leader{BidderID: "x", MaxAmount: decimal.NewFromInt(150)},
		BidderID:  "y",
		MaxAmount: decimal.NewFromInt(200),
		Now:       now,
	}

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := resolver.Resolve(in); err != nil {
			b.Fatalf("resolve failed: %v", err)
		}
	}
}
