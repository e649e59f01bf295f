package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/stockcount/internal/config"
	"github.com/JonMunkholm/stockcount/internal/core"
	"github.com/JonMunkholm/stockcount/internal/logging"
	"github.com/JonMunkholm/stockcount/internal/metrics"
	"github.com/JonMunkholm/stockcount/internal/session"
	"github.com/JonMunkholm/stockcount/internal/store/memory"
	"github.com/JonMunkholm/stockcount/internal/store/postgres"
	"github.com/JonMunkholm/stockcount/internal/store/rediscache"
	"github.com/JonMunkholm/stockcount/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("configuration loaded", "config", cfg.String())

	ctx := context.Background()

	pool, err := postgres.Connect(ctx, postgres.PoolConfig{
		URL:             cfg.Database.URL,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
	})
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if u, err := url.Parse(cfg.Database.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	}

	db := postgres.New(pool)
	if cfg.Database.Migrate {
		if err := db.Migrate(ctx); err != nil {
			slog.Error("failed to apply schema", "error", err)
			os.Exit(1)
		}
	}

	checks := map[string]web.HealthCheck{"postgres": pool.Ping}

	// Local checkpoints live in Redis when configured, so that any instance
	// can resume a session; otherwise in process memory.
	var (
		local  session.Store
		locker core.SessionLocker
	)
	if cfg.Redis.Addr != "" {
		rdb, err := rediscache.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			slog.Error("failed to connect to redis", "addr", cfg.Redis.Addr, "error", err)
			os.Exit(1)
		}
		defer rdb.Close()

		cache := rediscache.New(rdb, cfg.Session.CacheTTL)
		local, locker = cache, cache
		checks["redis"] = cache.Ping
		slog.Info("session cache: redis", "addr", cfg.Redis.Addr)
	} else {
		local = memory.New(cfg.Session.CacheTTL)
		slog.Info("session cache: memory")
	}

	m := metrics.New()
	sessions := session.NewCoordinator(local, db, session.Options{
		QuietPeriod:  cfg.Session.QuietPeriod,
		WriteTimeout: cfg.Session.WriteTimeout,
		OnFailure:    m.PersistenceFailure,
	})

	service, err := core.NewService(core.Deps{
		Sessions: sessions,
		Reports:  db,
		Journal:  db,
		Branches: db,
		Locker:   locker,
		Metrics:  m,
	}, core.Options{
		MaxConcurrentSetups: cfg.Upload.MaxConcurrent,
		SetupWait:           cfg.Upload.MaxWaitTime,
		SetupTimeout:        cfg.Upload.Timeout,
		LockTTL:             cfg.Redis.LockTTL,
		SearchLimit:         cfg.Session.SearchLimit,
	})
	if err != nil {
		slog.Error("failed to create service", "error", err)
		os.Exit(1)
	}

	server := web.NewServer(cfg, web.Deps{Service: service, Metrics: m, Checks: checks})

	jobCtx, cancelJobs := context.WithCancel(context.Background())
	go service.StartAutosave(jobCtx, cfg.Session.AutosaveInterval)

	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
		// Flush checkpoints after the last request has been served.
		if err := service.Shutdown(shutdownCtx); err != nil {
			slog.Warn("session flush incomplete", "error", err)
		}
	}()

	if err := server.Start(cfg.Server.Addr()); err != nil {
		slog.Error("server stopped", "error", err)
		cancelJobs()
		os.Exit(1)
	}
	<-done
	slog.Info("server stopped")
}
