package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	bidding "bidding-engine/internal/biddingService"
	"bidding-engine/internal/cache/redis"
	"bidding-engine/internal/config"
	"bidding-engine/internal/escrow"
	"bidding-engine/internal/notify"
	"bidding-engine/internal/repository"
	"bidding-engine/internal/repository/postgres"
	"bidding-engine/internal/server"
	"bidding-engine/internal/server/ws"
	"bidding-engine/utils"

	"code.cloudfoundry.org/clock"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "", "path to TOML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		utils.Fatal("failed to load config", map[string]any{"path": *configPath, "error": err.Error()})
	}
	if err := cfg.Validate(); err != nil {
		utils.Fatal("invalid configuration", map[string]any{"error": err.Error()})
	}
	if err := utils.SetLevel(cfg.LogLevel); err != nil {
		utils.Fatal("invalid log level", map[string]any{"error": err.Error()})
	}
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		utils.Error("server exited with error", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
	utils.Info("server stopped", nil)
}

// run wires the engine and blocks until ctx is cancelled or a component fails
func run(ctx context.Context, cfg *config.Config) error {
	repo, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	hub := ws.NewHub()
	var (
		publisher *redis.Publisher
		locker    bidding.Locker
	)
	sinks := []notify.Sink{hub}

	if cfg.Redis.Enabled {
		rc, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			return err
		}
		defer rc.Close()

		// every instance hears every update through the relay, including its own
		publisher = redis.NewPublisher(rc, cfg.Redis.ChannelPrefix)
		sinks = []notify.Sink{publisher}
		locker = redis.NewLeaseManager(rc)
		utils.Info("redis connected", map[string]any{"addr": cfg.Redis.Addr})
	}

	dispatcher := notify.NewDispatcher(cfg.Notify.QueueSize, sinks...)
	clk := clock.NewClock()
	resolver := bidding.NewResolver(cfg.Bidding.Rate(), cfg.Bidding.SnipeWindow.Duration)

	svc := server.Services{
		Bidding:  bidding.NewBiddingService(repo, resolver, dispatcher, clk),
		Auctions: bidding.NewAuctionService(repo, dispatcher, clk),
		Escrow:   escrow.NewService(repo, dispatcher, clk),
	}
	if cfg.Server.WebSocket {
		svc.WebSocket = hub.HandleWS
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: server.SetupRouter(svc),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return hub.Run(gctx) })
	g.Go(func() error { return dispatcher.Run(gctx) })
	if publisher != nil {
		g.Go(func() error { return publisher.Relay(gctx, hub) })
	}
	if cfg.Closer.Enabled {
		closer := bidding.NewCloser(repo, dispatcher, clk, cfg.Closer.Interval.Duration, cfg.Closer.BatchSize, locker)
		g.Go(func() error { return closer.Run(gctx) })
	}
	g.Go(func() error {
		utils.Info("starting auction server", map[string]any{
			"addr":      srv.Addr,
			"store":     cfg.Store.Driver,
			"redis":     cfg.Redis.Enabled,
			"websocket": cfg.Server.WebSocket,
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return gctx.Err()
	})

	err = g.Wait()
	if dropped := dispatcher.Dropped(); dropped > 0 {
		utils.Warn("updates dropped while running", map[string]any{"dropped": dropped})
	}
	return err
}

// openStore returns the configured auction store and a function releasing it
func openStore(ctx context.Context, cfg *config.Config) (repository.AuctionDB, func(), error) {
	lockTimeout := cfg.Store.LockTimeout.Duration

	if cfg.Store.Driver != config.DriverPostgres {
		utils.Info("using in-memory store", nil)
		return repository.NewMemoryRepo(lockTimeout), func() {}, nil
	}

	pg, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.MaxConns,
		MinConns: cfg.Postgres.MinConns,
	})
	if err != nil {
		return nil, nil, err
	}
	if cfg.Postgres.RunMigrations {
		if err := pg.RunMigrations(ctx); err != nil {
			pg.Close()
			return nil, nil, err
		}
	}
	utils.Info("using postgres store", map[string]any{"database": cfg.Postgres.Database})
	return postgres.NewStore(pg.Pool(), lockTimeout), pg.Close, nil
}
