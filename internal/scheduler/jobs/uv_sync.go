package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/gdtech/hackathon/internal/scheduler"
	"github.com/gdtech/hackathon/internal/uvsync"
	"github.com/gdtech/hackathon/pkg/logger"
)

// VisitorSyncer runs one visitor count sync
type VisitorSyncer interface {
	Run(ctx context.Context) (uvsync.Report, error)
}

// UVSyncJob pulls cumulative visitor counts on a fixed interval
// ⭐ SSOT: 累计UV 同步频率只在这里决定
type UVSyncJob struct {
	syncer   VisitorSyncer
	interval time.Duration
	logger   *logger.Logger
}

// NewUVSyncJob creates a new visitor sync job
func NewUVSyncJob(syncer VisitorSyncer, interval time.Duration, log *logger.Logger) *UVSyncJob {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &UVSyncJob{
		syncer:   syncer,
		interval: interval,
		logger:   log,
	}
}

// Name returns the job name
func (j *UVSyncJob) Name() string {
	return "uv_sync"
}

// Schedule returns the cron schedule
func (j *UVSyncJob) Schedule() string {
	return "@every " + j.interval.String()
}

// Run executes the visitor sync. Per-project failures are logged by the
// syncer; only a failed project read fails the job. After the event ends
// the run is a skip.
func (j *UVSyncJob) Run(ctx context.Context) error {
	report, err := j.syncer.Run(ctx)
	if err != nil {
		return fmt.Errorf("uv sync: %w", err)
	}
	if report.Skipped {
		return fmt.Errorf("%w: competition stage is %s", scheduler.ErrSkip, report.Stage.Code())
	}

	if report.Failed > 0 {
		j.logger.WithFields(map[string]interface{}{
			"success": report.Success,
			"failed":  report.Failed,
		}).Warn("Visitor sync finished with failures")
	}

	return nil
}
