// Package retention runs the scheduled age-based purge of the audit log.
package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/projekportal/notifier/internal/audit"
)

// Purger is the slice of the notifier service the job needs.
type Purger interface {
	PurgeLogs(ctx context.Context, olderThanDays int) (audit.PurgeResult, error)
}

// Job periodically purges audit entries older than the retention window.
type Job struct {
	cron     gocron.Scheduler
	purger   Purger
	days     int
	interval time.Duration
	logger   *slog.Logger
}

// New creates a retention Job. days <= 0 disables it; Start becomes a no-op.
func New(purger Purger, days int, interval time.Duration, logger *slog.Logger) (*Job, error) {
	cron, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("creating gocron scheduler: %w", err)
	}
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &Job{
		cron:     cron,
		purger:   purger,
		days:     days,
		interval: interval,
		logger:   logger,
	}, nil
}

// Start schedules the purge and starts the scheduler.
func (j *Job) Start() error {
	if j.days <= 0 {
		j.logger.Info("audit retention disabled")
		return nil
	}

	_, err := j.cron.NewJob(
		gocron.DurationJob(j.interval),
		gocron.NewTask(j.run),
	)
	if err != nil {
		return fmt.Errorf("scheduling retention job: %w", err)
	}

	j.cron.Start()
	j.logger.Info("audit retention scheduled",
		"retention_days", j.days, "interval", j.interval.String())
	return nil
}

// Stop shuts down the scheduler.
func (j *Job) Stop() error {
	return j.cron.Shutdown()
}

func (j *Job) run() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	result, err := j.purger.PurgeLogs(ctx, j.days)
	if err != nil {
		j.logger.Error("scheduled purge failed", "error", err)
		return
	}
	j.logger.Info("scheduled purge completed",
		"deleted", result.Deleted,
		"remaining", result.Remaining,
		"cutoff", result.CutoffDate.Format(time.RFC3339))
}
