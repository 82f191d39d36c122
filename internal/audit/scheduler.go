package audit

import (
	"context"
	"log/slog"
	"time"
)

// StartRetentionScheduler purges entries older than retention immediately
// and then every interval, until ctx is cancelled. Failures are logged and
// retried on the next tick.
func (s *Store) StartRetentionScheduler(ctx context.Context, retention, interval time.Duration) {
	slog.Info("audit retention scheduler started",
		"retention", retention,
		"interval", interval,
	)

	// Run immediately on startup
	s.runPurge(ctx, retention)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("audit retention scheduler stopped")
			return
		case <-ticker.C:
			s.runPurge(ctx, retention)
		}
	}
}

func (s *Store) runPurge(ctx context.Context, retention time.Duration) {
	start := time.Now()

	purged, err := s.Purge(ctx, retention)
	if err != nil {
		slog.Error("audit purge failed", "error", err)
		return
	}
	slog.Info("purged old audit entries",
		"entries_purged", purged,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
