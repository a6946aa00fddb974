// Package jobs contains the scheduled jobs.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// LeaderboardRebuilder copies store totals into the leaderboard cache.
// service.LeaderboardService implements it.
type LeaderboardRebuilder interface {
	Rebuild(ctx context.Context, limit int) (int, error)
}

// RebuildLeaderboardConfig configures RebuildLeaderboardJob.
type RebuildLeaderboardConfig struct {
	// Limit is the number of top users copied. Default 1000.
	Limit int

	// Timeout bounds one run. Default 1m.
	Timeout time.Duration
}

// RebuildLeaderboardJob resyncs the Redis leaderboard with the progress
// store. Cache writes are best effort, so the cache drifts after a Redis
// outage or flush; this job repairs it.
type RebuildLeaderboardJob struct {
	rebuilder LeaderboardRebuilder
	config    RebuildLeaderboardConfig
	logger    *slog.Logger
}

// NewRebuildLeaderboardJob creates the job.
func NewRebuildLeaderboardJob(rebuilder LeaderboardRebuilder, config RebuildLeaderboardConfig, logger *slog.Logger) *RebuildLeaderboardJob {
	if config.Limit <= 0 {
		config.Limit = 1000
	}
	if config.Timeout <= 0 {
		config.Timeout = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RebuildLeaderboardJob{
		rebuilder: rebuilder,
		config:    config,
		logger:    logger.With("job", "rebuild_leaderboard"),
	}
}

// Name implements scheduler.Job.
func (j *RebuildLeaderboardJob) Name() string { return "rebuild_leaderboard" }

// Description implements scheduler.Job.
func (j *RebuildLeaderboardJob) Description() string {
	return fmt.Sprintf("Copy the top %d point totals from the store into the leaderboard cache", j.config.Limit)
}

// Run implements scheduler.Job.
func (j *RebuildLeaderboardJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	n, err := j.rebuilder.Rebuild(ctx, j.config.Limit)
	if err != nil {
		return fmt.Errorf("rebuild leaderboard: %w", err)
	}
	j.logger.Info("leaderboard rebuilt", "entries", n)
	return nil
}
