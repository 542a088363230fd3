package core

// scheduler.go runs the periodic maintenance job:
//  1. Drop sessions idle for longer than the store TTL
//  2. Purge audit entries older than the retention period
//
// The job is long-running and stops with its context. A failing step is
// logged and does not stop later runs.

import (
	"context"
	"log/slog"
	"time"
)

// MaintenanceConfig configures the maintenance job.
type MaintenanceConfig struct {
	// Interval between runs (default: 10m).
	Interval time.Duration

	// AuditRetention is how long audit entries are kept; zero keeps them.
	AuditRetention time.Duration
}

// DefaultMaintenanceInterval is used when Interval is not set.
const DefaultMaintenanceInterval = 10 * time.Minute

// StartMaintenance runs the job immediately, then every Interval, until
// ctx is cancelled.
func (s *Service) StartMaintenance(ctx context.Context, cfg MaintenanceConfig) {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultMaintenanceInterval
	}
	slog.Info("maintenance scheduler started",
		"interval", cfg.Interval.String(),
		"audit_retention", cfg.AuditRetention.String(),
	)

	s.RunMaintenance(ctx, cfg)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("maintenance scheduler stopped")
			return
		case <-ticker.C:
			s.RunMaintenance(ctx, cfg)
		}
	}
}

// RunMaintenance performs one sweep and purge cycle.
func (s *Service) RunMaintenance(ctx context.Context, cfg MaintenanceConfig) {
	slog.Debug("maintenance job started")
	start := time.Now()

	swept, err := s.Sweep(ctx)
	if err != nil {
		slog.Error("session sweep failed", "error", err)
	} else if swept > 0 {
		slog.Info("swept idle sessions", "sessions_removed", swept)
	}

	if cfg.AuditRetention > 0 && s.audit != nil {
		purged, err := s.audit.Purge(ctx, s.now().Add(-cfg.AuditRetention))
		if err != nil {
			slog.Error("audit purge failed", "error", err)
		} else if purged > 0 {
			slog.Info("purged old audit entries", "entries_purged", purged)
		}
	}

	slog.Debug("maintenance job completed", "duration_ms", time.Since(start).Milliseconds())
}
