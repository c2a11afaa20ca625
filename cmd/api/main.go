package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/rs/cors"

	"github.com/inaiurai/settlement/internal/auth"
	"github.com/inaiurai/settlement/internal/authz"
	"github.com/inaiurai/settlement/internal/bootstrap"
	"github.com/inaiurai/settlement/internal/config"
	"github.com/inaiurai/settlement/internal/dashboard"
	"github.com/inaiurai/settlement/internal/escrow"
	"github.com/inaiurai/settlement/internal/ledger"
	"github.com/inaiurai/settlement/internal/middleware"
	"github.com/inaiurai/settlement/internal/notify"
	"github.com/inaiurai/settlement/internal/observability"
	"github.com/inaiurai/settlement/internal/reputation"
	"github.com/inaiurai/settlement/internal/router"
	"github.com/inaiurai/settlement/internal/stake"
	"github.com/inaiurai/settlement/internal/store/pg"
	"github.com/inaiurai/settlement/internal/validate"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)
	if cfg.UsesDefaultSecret() {
		slog.Warn("JWT_SECRET not set, signing tokens with the development secret")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(cfg.Tracing)
	if err != nil {
		slog.Error("Tracing init failed", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()
	observability.Init()

	owner, _ := cfg.OwnerAddress()
	sys, err := bootstrap.New(bootstrap.Options{Owner: owner, Log: logger})
	if err != nil {
		slog.Error("Core init failed", "error", err)
		os.Exit(1)
	}
	sys.InstallMetrics()

	var (
		authRepo    auth.Repository
		health      func(context.Context) error
		riverClient *river.Client[pgx.Tx]
	)
	switch cfg.Store {
	case config.StorePostgres:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("Unable to create database pool", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		if err := pool.Ping(ctx); err != nil {
			slog.Error("Cannot reach PostgreSQL. Ensure Postgres is running and DATABASE_URL is correct", "error", err)
			os.Exit(1)
		}
		slog.Info("Connected to PostgreSQL database successfully!")

		// River migrations
		migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
		if err != nil {
			slog.Error("Failed to create River migrator", "error", err)
			os.Exit(1)
		}
		if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
			slog.Error("River migrate up failed", "error", err)
			os.Exit(1)
		}
		if err := pg.Migrate(ctx, pool); err != nil {
			slog.Error("Schema migration failed", "error", err)
			os.Exit(1)
		}
		slog.Info("Migrations applied")

		store := pg.New(pool, sys, logger.With("component", "store"))
		snap, err := store.Load(ctx)
		if err != nil {
			slog.Error("Failed to load persisted state", "error", err)
			os.Exit(1)
		}
		if err := sys.Restore(snap); err != nil {
			slog.Error("Failed to restore persisted state", "error", err)
			os.Exit(1)
		}
		slog.Info("State restored", "seq", snap.Seq, "identities", len(snap.Identities), "jobs", len(snap.Escrow.Jobs))

		// Event delivery worker
		workers := river.NewWorkers()
		river.AddWorker(workers, notify.NewDeliverEventWorker(logger.With("component", "notify")))
		riverClient, err = river.NewClient(riverpgxv5.New(pool), &river.Config{
			Queues: map[string]river.QueueConfig{
				river.QueueDefault: {MaxWorkers: cfg.Workers},
			},
			Workers: workers,
		})
		if err != nil {
			slog.Error("Failed to create River client", "error", err)
			os.Exit(1)
		}
		store.SetEnqueuer(riverClient)
		sys.Host.SetCommitter(store)

		db := stdlib.OpenDBFromPool(pool)
		defer db.Close()
		authRepo = auth.NewSQLRepository(db)
		health = store.Ping
	default:
		slog.Warn("Using the memory store: state is lost on restart")
		authRepo = auth.NewMemoryRepository()
	}

	if err := sys.Deploy(ctx); err != nil {
		slog.Error("Deployment grants failed", "error", err)
		os.Exit(1)
	}

	authSvc := auth.NewService(authRepo, cfg.JWTSecret)
	if cfg.OwnerPassword != "" {
		if err := authSvc.Seed(ctx, owner, cfg.OwnerPassword); err != nil {
			slog.Error("Failed to seed owner credentials", "error", err)
			os.Exit(1)
		}
	}

	validator, err := validate.NewValidator()
	if err != nil {
		slog.Error("Schema validator init failed", "error", err)
		os.Exit(1)
	}

	handler := router.New(router.Handlers{
		Auth:       auth.NewHandler(authSvc, validator, logger),
		Stake:      stake.NewHandler(sys.Stake, validator, logger),
		Reputation: reputation.NewHandler(sys.Reputation, logger),
		Escrow:     escrow.NewHandler(sys.Escrow, validator, logger),
		Ledger:     ledger.NewHandler(sys.Funds, validator, logger),
		Authz:      authz.NewHandler(validator, logger, sys.StakeAuthz, sys.ReputationAuthz),
		Dashboard:  dashboard.NewHandler(sys.Stake, sys.Funds, sys.Reputation, sys.Escrow, logger),
	}, router.Options{
		Tokens:  authSvc,
		Limiter: newLimiter(cfg.RateLimit),
		Health:  health,
	})

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader, "Retry-After"},
		AllowCredentials: true,
	}).Handler(handler)

	// Start River client (delivers events)
	if riverClient != nil {
		go func() {
			if err := riverClient.Start(ctx); err != nil && ctx.Err() == nil {
				slog.Error("River client stopped", "error", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           corsHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP shutdown failed", "error", err)
		}
		if riverClient != nil {
			if err := riverClient.Stop(shutdownCtx); err != nil {
				slog.Error("River stop failed", "error", err)
			}
		}
	}()

	slog.Info("Starting HTTP server", "addr", srv.Addr, "store", cfg.Store, "owner", owner)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("HTTP server failed", "error", err)
		os.Exit(1)
	}
	<-stopped
	slog.Info("Server stopped")
}

func newLimiter(rl config.RateLimit) *middleware.RateLimiter {
	if rl.PerSecond <= 0 {
		return nil
	}
	return middleware.NewRateLimiter(rl.PerSecond, rl.Burst)
}
