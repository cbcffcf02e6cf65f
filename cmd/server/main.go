package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/atmx/vault-engine/internal/api"
	"github.com/atmx/vault-engine/internal/config"
	"github.com/atmx/vault-engine/internal/feepolicy"
	"github.com/atmx/vault-engine/internal/metrics"
	"github.com/atmx/vault-engine/internal/model"
	"github.com/atmx/vault-engine/internal/processor"
	"github.com/atmx/vault-engine/internal/store"
	"github.com/atmx/vault-engine/internal/token"
)

// putter is implemented by every store backend for out-of-band seeding.
type putter interface {
	Put(ctx context.Context, r store.Record) error
}

func main() {
	configPath := flag.String("config", "vault.toml", "path to configuration file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "path", *configPath, "err", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Initialize store ---
	var st store.Store
	var locker store.Locker = &store.LocalLocker{}
	var cleanup []func()

	var rdb *redis.Client
	if cfg.Redis.URL != "" {
		opt, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			slog.Error("invalid redis url", "err", err)
			os.Exit(1)
		}
		rdb = redis.NewClient(opt)
		cleanup = append(cleanup, func() { rdb.Close() })
		locker = store.NewRedisLocker(rdb, cfg.Redis.LockKey, cfg.Redis.LockTTL.Duration)
		slog.Info("Redis execution lock enabled", "key", cfg.Redis.LockKey)
	}

	if cfg.Postgres.DSN != "" {
		pool, err := pgxpool.New(ctx, cfg.Postgres.DSN)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		pg := store.NewPostgresStore(pool)
		if cfg.Postgres.RunMigrations {
			if err := pg.Migrate(ctx); err != nil {
				slog.Error("migration failed", "err", err)
				os.Exit(1)
			}
		}
		st = pg
		slog.Info("connected to PostgreSQL")

		if rdb != nil {
			st = store.NewCachedStore(st, rdb, cfg.Redis.CacheTTL.Duration)
			slog.Info("Redis cache enabled", "ttl", cfg.Redis.CacheTTL.String())
		}
	} else {
		slog.Warn("postgres dsn not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Processor ---
	program := cfg.ProgramID()
	hub := api.NewHub()
	ledger := token.NewLedger()
	proc := processor.New(st, ledger, program,
		processor.WithLocker(locker),
		processor.WithObserver(hub.Publish),
	)

	// The development ledger starts with an empty pool holding owned by the
	// vault authority.
	poolHolding := model.Derive(program, []byte("vault_holding"))
	ledger.Open(poolHolding, proc.Authority(), 0)

	if err := seedFeePolicy(ctx, st, ledger, cfg.Vault.FeePolicy); err != nil {
		slog.Error("fee policy seed failed", "err", err)
		os.Exit(1)
	}

	slog.Info("vault ready",
		"program", program.String(),
		"authority", proc.Authority().String(),
		"pool_holding", poolHolding.String(),
	)

	// --- HTTP router ---
	svc := api.NewService(proc)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(metrics.Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"vault-engine"}`))
	})

	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		svc.Routes(r, hub)
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout.Duration,
		WriteTimeout: cfg.Server.WriteTimeout.Duration,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return hub.Run(gctx)
	})
	g.Go(func() error {
		slog.Info("vault-engine listening", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration)
		defer cancel()
		slog.Info("shutting down vault-engine...")
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}
	fmt.Println("vault-engine stopped")
}

// seedFeePolicy writes a fee policy record when configured and absent,
// and opens its fee destination in the development ledger.
func seedFeePolicy(ctx context.Context, st store.Store, ledger *token.Ledger, fp config.FeePolicyConfig) error {
	if !fp.Seed {
		return nil
	}
	addr, err := model.ParseIdentity(fp.Address)
	if err != nil {
		return err
	}
	dest, err := model.ParseIdentity(fp.Destination)
	if err != nil {
		return err
	}
	ledger.Open(dest, dest, 0)

	if _, err := st.GetRecord(ctx, addr); err == nil {
		slog.Info("fee policy present, not seeding", "address", addr.String())
		return nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}
	p, ok := st.(putter)
	if !ok {
		return fmt.Errorf("store %T cannot be seeded", st)
	}
	err = p.Put(ctx, store.Record{
		Address: addr,
		Kind:    model.KindFeePolicy,
		Data: feepolicy.Build(feepolicy.Params{
			Destination:   dest,
			MintingBps:    uint16(fp.MintingBps),
			RedemptionBps: uint16(fp.RedemptionBps),
			TakerBps:      uint16(fp.TakerBps),
			MakerBps:      uint16(fp.MakerBps),
			SettlementBps: uint16(fp.SettlementBps),
		}),
	})
	if err != nil {
		return err
	}
	slog.Info("fee policy seeded", "address", addr.String(), "destination", dest.String())
	return nil
}
