package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/JonMunkholm/activity-import/internal/analysis"
	"github.com/JonMunkholm/activity-import/internal/application"
	"github.com/JonMunkholm/activity-import/internal/audit"
	"github.com/JonMunkholm/activity-import/internal/config"
	"github.com/JonMunkholm/activity-import/internal/core"
	"github.com/JonMunkholm/activity-import/internal/handler"
	"github.com/JonMunkholm/activity-import/internal/logging"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "importer:", err)
		os.Exit(1)
	}
}

func run() error {
	// Load .env file if it exists (Overload overwrites existing env vars)
	_ = godotenv.Overload()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	// The terminal belongs to the UI, so logs go to a file
	logFile, err := os.OpenFile(cfg.Terminal.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()
	slog.SetDefault(logging.New(logFile, cfg.Logging.Level, cfg.Logging.Format))

	backend, err := analysis.New(cfg.Backend.URL, cfg.Backend.Timeout,
		analysis.WithToken(cfg.Backend.Token),
		analysis.WithUserAgent(cfg.Backend.UserAgent),
	)
	if err != nil {
		return fmt.Errorf("create analysis client: %w", err)
	}

	mode, err := core.ParseImportMode(cfg.Import.DefaultMode)
	if err != nil {
		return err
	}

	shared := core.NewStaticState(cfg.Terminal.PeriodID)
	opts := core.Options{
		Backend:     backend,
		Shared:      shared,
		Gate:        core.NewRequestGate(cfg.Import.MaxConcurrent, cfg.Import.MaxWaitTime),
		MaxFileSize: cfg.Import.MaxFileSize,
		Mode:        mode,
	}

	// Audit trail is optional
	if cfg.Database.Enabled() {
		store, pool, err := audit.Open(context.Background(), cfg.Database)
		if err != nil {
			return fmt.Errorf("open audit database: %w", err)
		}
		defer pool.Close()
		opts.Audit = store
	}

	wf, err := core.NewWorkflow(opts)
	if err != nil {
		return fmt.Errorf("create workflow: %w", err)
	}
	if site := cfg.Terminal.SiteID; site != "" {
		shared.SetSites([]core.Site{{ID: site, Name: site}})
		if err := wf.SetSite(site); err != nil {
			return err
		}
	}

	importer := handler.NewImporter(wf, shared, cfg.Terminal.ExportDir, cfg.Import.MaxFileSize, cfg.Import.BatchListLimit)
	model := application.New(importer, application.NewConfirmer())

	slog.Info("importer started", "backend", cfg.Backend.URL, "mode", mode, "period", shared.Period())

	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("run terminal UI: %w", err)
	}
	return nil
}
