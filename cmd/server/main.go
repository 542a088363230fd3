package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/JonMunkholm/workbench/internal/analysis"
	"github.com/JonMunkholm/workbench/internal/config"
	"github.com/JonMunkholm/workbench/internal/core"
	"github.com/JonMunkholm/workbench/internal/logging"
	"github.com/JonMunkholm/workbench/internal/session"
	"github.com/JonMunkholm/workbench/internal/web"
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

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"session_backend", cfg.Session.Backend,
		"upload_max_concurrent", cfg.Upload.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	ctx := context.Background()

	store, closeStore, err := openSessionStore(ctx, cfg.Session)
	if err != nil {
		slog.Error("failed to open session store", "backend", cfg.Session.Backend, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	opts := []core.Option{core.WithAuditStore(core.NewMemoryAuditStore(cfg.Audit.MemoryCapacity))}
	if cfg.Audit.DatabaseURL != "" {
		pool, err := openAuditPool(ctx, cfg.Audit)
		if err != nil {
			slog.Error("failed to connect to audit database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		audit := core.NewPostgresAuditStore(pool)
		if err := audit.EnsureSchema(ctx); err != nil {
			slog.Error("failed to prepare audit schema", "error", err)
			os.Exit(1)
		}
		opts = append(opts, core.WithAuditStore(audit))
	}

	service := core.NewService(store, core.Config{
		MaxFileSize:        cfg.Upload.MaxFileSize,
		MaxConcurrentLoads: cfg.Upload.MaxConcurrent,
		LoadWaitTime:       cfg.Upload.MaxWaitTime,
		Analysis: analysis.Options{
			SampleCap: cfg.Analysis.SampleCap,
			Seed:      cfg.Analysis.Seed,
			TopK:      cfg.Analysis.TopK,
		},
	}, opts...)

	slog.Info("modules registered", "count", len(core.Modules()))

	server := web.NewServer(service, cfg)

	jobCtx, cancelJobs := context.WithCancel(context.Background())
	go service.StartMaintenance(jobCtx, core.MaintenanceConfig{
		Interval:       cfg.Maintenance.Interval,
		AuditRetention: cfg.Audit.Retention,
	})

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if status := service.UploadStatus(); status.Active > 0 {
			slog.Info("waiting for uploads to complete", "active", status.Active)
			if err := service.Drain(shutdownCtx); err != nil {
				slog.Warn("uploads did not complete in time", "error", err)
			} else {
				slog.Info("all uploads completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(); err != nil {
		slog.Info("server stopped", "error", err)
	}
}

// openSessionStore builds the configured session backend. The returned
// func releases it.
func openSessionStore(ctx context.Context, cfg config.SessionConfig) (session.Store, func(), error) {
	if cfg.Backend != config.BackendRedis {
		return session.NewMemoryStore(session.WithIdleTTL(cfg.IdleTTL)), func() {}, nil
	}

	store := session.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB,
		session.WithTTL(cfg.IdleTTL),
		session.WithPrefix(cfg.RedisPrefix),
	)
	if err := store.Ping(ctx); err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	slog.Info("connected to redis", "addr", cfg.RedisAddr, "db", cfg.RedisDB)
	return store, func() { _ = store.Close() }, nil
}

func openAuditPool(ctx context.Context, cfg config.AuditConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	if u, err := url.Parse(cfg.DatabaseURL); err == nil {
		slog.Info("connected to audit database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to audit database")
	}
	return pool, nil
}
