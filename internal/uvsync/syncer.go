// Package uvsync copies cumulative visitor counts from the analytics
// provider into the projects collection.
package uvsync

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gdtech/hackathon/internal/contracts"
	"github.com/gdtech/hackathon/internal/realtime"
	"github.com/gdtech/hackathon/pkg/logger"
)

// Analytics is an analytics provider that knows its configured accounts
type Analytics interface {
	contracts.AnalyticsProvider
	HasAccount(account string) bool
}

// StageSource resolves the current stage
type StageSource interface {
	Stage(ctx context.Context) contracts.Stage
}

// Invalidator drops cached project reads
type Invalidator interface {
	InvalidateAllProjects(ctx context.Context)
}

// Report summarizes one sync run
type Report struct {
	Stage    contracts.Stage `json:"stage"`
	Skipped  bool            `json:"skipped"` // the whole run was skipped
	Success  int             `json:"success"`
	Failed   int             `json:"failed"`
	Ignored  int             `json:"ignored"` // disabled or not linked to analytics
	Duration time.Duration   `json:"duration"`
}

// Syncer writes analytics visitor counts into 累计UV
// ⭐ SSOT: 累计UV is only written here
type Syncer struct {
	store        contracts.RecordStore
	analytics    Analytics
	stages       StageSource
	invalidator  Invalidator
	publisher    realtime.Publisher
	lookbackDays int
	loc          *time.Location
	workers      int
	now          func() time.Time
	logger       *logger.Logger
}

// New creates a syncer. Counts cover the last lookbackDays days in loc.
func New(store contracts.RecordStore, analytics Analytics, stages StageSource, invalidator Invalidator, lookbackDays int, loc *time.Location, log *logger.Logger) *Syncer {
	if lookbackDays < 1 {
		lookbackDays = 1
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Syncer{
		store:        store,
		analytics:    analytics,
		stages:       stages,
		invalidator:  invalidator,
		publisher:    realtime.NopPublisher{},
		lookbackDays: lookbackDays,
		loc:          loc,
		workers:      4,
		now:          time.Now,
		logger:       log.Component("uvsync"),
	}
}

// WithPublisher sets where completed runs are announced
func (s *Syncer) WithPublisher(p realtime.Publisher) *Syncer {
	s.publisher = p
	return s
}

// WithWorkers bounds concurrent analytics calls
func (s *Syncer) WithWorkers(n int) *Syncer {
	if n > 0 {
		s.workers = n
	}
	return s
}

// WithClock replaces the clock, for tests
func (s *Syncer) WithClock(now func() time.Time) *Syncer {
	s.now = now
	return s
}

// Run syncs every enabled project linked to a configured analytics account.
// Per-project failures are counted, not returned; only a failed project
// list read fails the run.
func (s *Syncer) Run(ctx context.Context) (Report, error) {
	start := time.Now()
	report := Report{Stage: s.stages.Stage(ctx)}

	if report.Stage == contracts.StageEnded {
		report.Skipped = true
		s.logger.Info("Competition ended, skipping visitor sync")
		return report, nil
	}

	rows, err := s.store.ListRecords(ctx, contracts.CollectionProjects)
	if err != nil {
		return report, fmt.Errorf("%w: projects: %v", contracts.ErrExternalRead, err)
	}

	today := s.now().In(s.loc)
	from := today.AddDate(0, 0, -(s.lookbackDays - 1))

	var success, failed, ignored atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for _, r := range rows {
		p := contracts.ProjectFromRecord(r)
		if !p.Enabled || !p.HasAnalytics() {
			ignored.Add(1)
			continue
		}
		if !s.analytics.HasAccount(p.AnalyticsAccount) {
			s.logger.WithFields(map[string]interface{}{
				"project": p.ID,
				"account": p.AnalyticsAccount,
			}).Warn("Analytics account not configured, skipping project")
			ignored.Add(1)
			continue
		}

		g.Go(func() error {
			if err := s.syncProject(gctx, p, from, today); err != nil {
				failed.Add(1)
				s.logger.WithError(err).WithField("project", p.ID).Error("Visitor sync failed")
			} else {
				success.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	report.Success = int(success.Load())
	report.Failed = int(failed.Load())
	report.Ignored = int(ignored.Load())
	report.Duration = time.Since(start)

	s.invalidator.InvalidateAllProjects(ctx)
	s.publisher.Publish(realtime.Event{
		Type: realtime.EventUVSynced,
		Data: realtime.SyncResult{Success: report.Success, Failed: report.Failed, Skipped: report.Ignored},
	})

	s.logger.WithFields(map[string]interface{}{
		"stage":    report.Stage.Code(),
		"success":  report.Success,
		"failed":   report.Failed,
		"ignored":  report.Ignored,
		"duration": report.Duration,
	}).Info("Visitor sync completed")

	return report, nil
}

func (s *Syncer) syncProject(ctx context.Context, p *contracts.Project, from, to time.Time) error {
	uv, err := s.analytics.CumulativeVisitorCount(ctx, p.AnalyticsAccount, p.AnalyticsSiteID, from, to)
	if err != nil {
		return err
	}
	if uv < 0 {
		uv = 0
	}

	err = s.store.UpdateRecord(ctx, contracts.CollectionProjects, p.RecordID, map[string]any{
		contracts.FieldUV: uv,
	})
	if err != nil {
		return fmt.Errorf("write uv: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"project": p.ID,
		"account": p.AnalyticsAccount,
		"uv":      uv,
	}).Debug("Visitor count updated")
	return nil
}
