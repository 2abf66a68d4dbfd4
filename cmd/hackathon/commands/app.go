package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/gdtech/hackathon/internal/aggregation"
	"github.com/gdtech/hackathon/internal/api/handlers"
	"github.com/gdtech/hackathon/internal/cache"
	"github.com/gdtech/hackathon/internal/contracts"
	"github.com/gdtech/hackathon/internal/external/baidu"
	"github.com/gdtech/hackathon/internal/external/feishu"
	"github.com/gdtech/hackathon/internal/investors"
	"github.com/gdtech/hackathon/internal/ledger"
	"github.com/gdtech/hackathon/internal/qualification"
	"github.com/gdtech/hackathon/internal/ranking"
	"github.com/gdtech/hackathon/internal/realtime"
	"github.com/gdtech/hackathon/internal/scheduler"
	"github.com/gdtech/hackathon/internal/scheduler/jobs"
	"github.com/gdtech/hackathon/internal/stage"
	"github.com/gdtech/hackathon/internal/store/memory"
	"github.com/gdtech/hackathon/internal/store/postgres"
	"github.com/gdtech/hackathon/internal/uvsync"
	"github.com/gdtech/hackathon/pkg/config"
	"github.com/gdtech/hackathon/pkg/database"
	"github.com/gdtech/hackathon/pkg/httputil"
	"github.com/gdtech/hackathon/pkg/logger"
	"github.com/gdtech/hackathon/pkg/redis"
)

// ledgerLockTTL bounds how long a crashed replica can hold an investor lock
const ledgerLockTTL = 10 * time.Second

// app is every component a command may need, wired once
type app struct {
	cfg *config.Config
	log *logger.Logger

	redis *redis.Client
	db    *database.DB // nil unless the postgres store is selected

	store     contracts.RecordStore
	cache     cache.Cache
	resolver  *stage.Resolver
	registry  *qualification.Registry
	agg       *aggregation.Aggregator
	hub       *realtime.Hub
	ledger    *ledger.Ledger
	investors *investors.Service
	analytics *baidu.Client
	syncer    *uvsync.Syncer
}

// newApp loads config and wires the record store, caches, ranking, ledger and sync
func newApp(ctx context.Context) (*app, error) {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	// 2. Initialize logger
	log := logger.New(cfg)
	a := &app{cfg: cfg, log: log}

	// 3. Connect to redis (no-op client when disabled)
	a.redis, err = redis.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	limiter := redis.NewRateLimiter(a.redis, cfg.Redis.Prefix)

	// 4. Record store
	if err := a.openStore(ctx, limiter); err != nil {
		a.Close()
		return nil, err
	}

	// 5. Read path: stage, qualification, ranking, aggregation
	loc := cfg.Location()
	a.cache = cache.New(cfg, a.redis, log)
	a.resolver = stage.NewResolver(a.store, cfg.Hackathon.Stages, loc, log)
	a.registry = qualification.NewRegistry(a.store, log)

	calc, err := ranking.NewCalculator(ranking.ConfigFrom(cfg.Hackathon), a.registry, log)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("ranking config: %w", err)
	}
	a.agg = aggregation.New(a.store, a.resolver, calc, a.cache, cfg.Cache, log)

	// 6. Write path: ledger with realtime push
	a.hub = realtime.NewHub(log)
	a.ledger = ledger.New(a.store, a.agg, log).WithPublisher(a.hub)
	if a.redis.Enabled() {
		a.ledger = a.ledger.WithLocker(redis.NewLocker(a.redis, cfg.Redis.Prefix, ledgerLockTTL))
	}
	a.investors = investors.New(a.store, a.cache, cfg.Cache.InvestorTTL, loc, log)

	// 7. Visitor sync from Baidu Tongji
	baiduHTTP := httputil.New(log).WithRateLimiter(limiter, redis.BaiduRateLimit)
	a.analytics = baidu.NewClient(cfg.Baidu, baiduHTTP, log)
	a.syncer = uvsync.New(a.store, a.analytics, a.agg, a.agg, cfg.Baidu.LookbackDays, loc, log).
		WithPublisher(a.hub)

	log.WithFields(map[string]interface{}{
		"store":    cfg.StoreBackend,
		"redis":    a.redis.Enabled(),
		"accounts": len(cfg.Baidu.Accounts),
		"quota":    cfg.Hackathon.QualifiedCount,
	}).Info("Application wired")

	return a, nil
}

func (a *app) openStore(ctx context.Context, limiter *redis.RateLimiter) error {
	switch a.cfg.StoreBackend {
	case config.StoreFeishu:
		httpClient := httputil.New(a.log).WithRateLimiter(limiter, redis.FeishuRateLimit)
		a.store = feishu.NewClient(a.cfg.Feishu, httpClient, a.log)

	case config.StorePostgres:
		db, err := database.New(ctx, a.cfg)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		a.db = db
		pg := postgres.NewStore(db.Pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
		a.store = pg

	case config.StoreMemory:
		a.log.Warn("Using the in-memory record store; data is lost on exit")
		a.store = memory.New()

	default:
		return fmt.Errorf("unknown store backend %q", a.cfg.StoreBackend)
	}
	return nil
}

// newScheduler registers the periodic jobs
func (a *app) newScheduler() (*scheduler.Scheduler, error) {
	sched := scheduler.New(a.log, a.cfg.Location())

	jobList := []scheduler.Job{
		jobs.NewUVSyncJob(a.syncer, a.cfg.Baidu.SyncInterval, a.log),
		jobs.NewBudgetReconcileJob(a.ledger, a.log),
	}
	if ttl, ok := a.cache.(*cache.TTLCache); ok {
		jobList = append(jobList, jobs.NewCacheSweepJob(ttl, a.log))
	}

	for _, job := range jobList {
		if err := sched.AddJob(job); err != nil {
			return nil, err
		}
	}
	return sched, nil
}

// healthChecks pings redis and postgres when they are in use
func (a *app) healthChecks() map[string]handlers.Check {
	checks := map[string]handlers.Check{}
	if a.redis.Enabled() {
		checks["redis"] = a.redis.Ping
	}
	if a.db != nil {
		checks["database"] = a.db.Ping
	}
	return checks
}

// Close releases connections
func (a *app) Close() {
	if a.hub != nil {
		a.hub.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
}
