package jobs

import (
	"context"

	"github.com/gdtech/hackathon/pkg/logger"
)

// Sweeper drops expired entries from an in-process cache
type Sweeper interface {
	CleanExpired() int
}

// CacheSweepJob evicts expired entries from the in-process cache.
// Redis expires its own keys, so this job is only registered without redis.
type CacheSweepJob struct {
	cache  Sweeper
	logger *logger.Logger
}

// NewCacheSweepJob creates a new cache sweep job
func NewCacheSweepJob(c Sweeper, log *logger.Logger) *CacheSweepJob {
	return &CacheSweepJob{
		cache:  c,
		logger: log,
	}
}

// Name returns the job name
func (j *CacheSweepJob) Name() string {
	return "cache_sweep"
}

// Schedule returns the cron schedule (every 5 minutes)
func (j *CacheSweepJob) Schedule() string {
	return "0 */5 * * * *"
}

// Run executes the cache sweep
func (j *CacheSweepJob) Run(ctx context.Context) error {
	count := j.cache.CleanExpired()

	if count > 0 {
		j.logger.WithField("removed", count).Info("Cache sweep completed")
	}

	return nil
}
