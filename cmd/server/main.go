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

	"github.com/JonMunkholm/activity-import/internal/analysis"
	"github.com/JonMunkholm/activity-import/internal/audit"
	"github.com/JonMunkholm/activity-import/internal/cache"
	"github.com/JonMunkholm/activity-import/internal/config"
	"github.com/JonMunkholm/activity-import/internal/core"
	"github.com/JonMunkholm/activity-import/internal/logging"
	"github.com/JonMunkholm/activity-import/internal/web"
	"github.com/joho/godotenv"
)

// janitorInterval is how often idle sessions and rate-limit clients are swept.
const janitorInterval = time.Minute

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"backend", cfg.Backend.URL,
		"import_max_concurrent", cfg.Import.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
		"audit_enabled", cfg.Database.Enabled(),
	)
	slog.Debug("effective configuration", "config", cfg.String())

	backend, err := analysis.New(cfg.Backend.URL, cfg.Backend.Timeout,
		analysis.WithToken(cfg.Backend.Token),
		analysis.WithUserAgent(cfg.Backend.UserAgent),
	)
	if err != nil {
		slog.Error("failed to create analysis client", "error", err)
		os.Exit(1)
	}

	deps := web.Deps{
		Backend: backend,
		Cache:   cache.New(cfg.Cache.TTL),
		Gate:    core.NewRequestGate(cfg.Import.MaxConcurrent, cfg.Import.MaxWaitTime),
	}

	// Create cancellable context for background jobs
	jobCtx, cancelJobs := context.WithCancel(context.Background())

	// Audit trail is optional
	if cfg.Database.Enabled() {
		store, pool, err := audit.Open(context.Background(), cfg.Database)
		if err != nil {
			slog.Error("failed to open audit database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		deps.Audit = store
		deps.AuditLog = store

		if cfg.Database.AuditRetention > 0 {
			go store.StartRetentionScheduler(jobCtx, cfg.Database.AuditRetention, cfg.Database.AuditPurgeInterval)
		}
	} else {
		slog.Warn("DATABASE_URL not set, audit trail disabled")
	}

	// Create server with config
	server := web.NewServer(cfg, deps)
	go server.RunJanitor(jobCtx, janitorInterval)

	// Graceful shutdown
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		// Stop background jobs
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Waits for in-flight previews and commits as well
		if status := deps.Gate.Status(); status.Active > 0 {
			slog.Info("waiting for backend requests to complete", "active", status.Active)
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	// Start server (uses addr from config internally)
	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
	<-stopped
	slog.Info("server stopped")
}
