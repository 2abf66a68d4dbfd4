package aggregation

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/gdtech/hackathon/internal/cache"
	"github.com/gdtech/hackathon/internal/contracts"
	"github.com/gdtech/hackathon/internal/ranking"
	"github.com/gdtech/hackathon/internal/stage"
	"github.com/gdtech/hackathon/pkg/config"
	"github.com/gdtech/hackathon/pkg/logger"
	"github.com/gdtech/hackathon/pkg/redis"
)

// fetchWorkers bounds the concurrent collection reads
const fetchWorkers = 4

// generationKey holds the generation stamp of the cached ranked list
const generationKey = "projects:generation"

// Snapshot is one consistent read of every collection
type Snapshot struct {
	Projects    []contracts.Record
	Investments []contracts.Record
	Investors   []contracts.Record
	Config      []contracts.Record
}

// Ranking is a ranked list with the stage it was ranked for
type Ranking struct {
	Generation string               `json:"generation"`
	Stage      contracts.Stage      `json:"stage"`
	Projects   []*contracts.Project `json:"projects"`
	RankedAt   time.Time            `json:"rankedAt"`
}

type cachedProject struct {
	Generation string             `json:"generation"`
	Project    *contracts.Project `json:"project"`
}

// Aggregator joins the record store collections into ranked projects
// ⭐ SSOT: ranked project reads and their cache live here
type Aggregator struct {
	store    contracts.RecordStore
	resolver *stage.Resolver
	calc     *ranking.Calculator
	cache    cache.Cache
	ttl      config.CacheConfig
	logger   *logger.Logger

	group singleflight.Group
	// epoch advances on every list invalidation; a computation that started
	// under an older epoch is returned to its callers but never cached
	epoch atomic.Uint64
}

// New creates an aggregator
func New(store contracts.RecordStore, resolver *stage.Resolver, calc *ranking.Calculator, c cache.Cache, ttl config.CacheConfig, log *logger.Logger) *Aggregator {
	return &Aggregator{
		store:    store,
		resolver: resolver,
		calc:     calc,
		cache:    c,
		ttl:      ttl,
		logger:   log.Component("aggregation"),
	}
}

// Fetch reads the given collections concurrently. Any failure fails the
// whole call with contracts.ErrExternalRead.
func Fetch(ctx context.Context, store contracts.RecordStore, collections ...contracts.Collection) (map[contracts.Collection][]contracts.Record, error) {
	results := make([][]contracts.Record, len(collections))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchWorkers)
	for i, col := range collections {
		i, col := i, col
		g.Go(func() error {
			rows, err := store.ListRecords(gctx, col)
			if err != nil {
				return fmt.Errorf("%w: %s: %v", contracts.ErrExternalRead, col, err)
			}
			results[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[contracts.Collection][]contracts.Record, len(collections))
	for i, col := range collections {
		out[col] = results[i]
	}
	return out, nil
}

// Snapshot reads all four collections concurrently
func (a *Aggregator) Snapshot(ctx context.Context) (*Snapshot, error) {
	rows, err := Fetch(ctx, a.store, contracts.Collections...)
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		Projects:    rows[contracts.CollectionProjects],
		Investments: rows[contracts.CollectionInvestments],
		Investors:   rows[contracts.CollectionInvestors],
		Config:      rows[contracts.CollectionConfig],
	}, nil
}

// GetAllProjects returns every enabled project, ranked for the current stage
func (a *Aggregator) GetAllProjects(ctx context.Context) ([]*contracts.Project, error) {
	r, err := a.Ranking(ctx)
	if err != nil {
		return nil, err
	}
	return r.Projects, nil
}

// Ranking returns the cached ranking or computes a fresh one
func (a *Aggregator) Ranking(ctx context.Context) (*Ranking, error) {
	var cached Ranking
	found, err := a.cache.Get(ctx, redis.ProjectsKey(), &cached)
	if err != nil {
		a.logger.WithError(err).Warn("Ranked list cache read failed, recomputing")
	}
	if found && err == nil {
		return &cached, nil
	}

	epoch := a.epoch.Load()
	v, err, _ := a.group.Do(fmt.Sprintf("ranking:%d", epoch), func() (interface{}, error) {
		return a.compute(ctx, epoch)
	})
	if err != nil {
		return nil, err
	}

	r := v.(*Ranking)
	return &Ranking{
		Generation: r.Generation,
		Stage:      r.Stage,
		Projects:   contracts.CloneProjects(r.Projects),
		RankedAt:   r.RankedAt,
	}, nil
}

// GetProjectByID returns one project exactly as the full ranked list has it
func (a *Aggregator) GetProjectByID(ctx context.Context, id int64) (*contracts.Project, error) {
	var generation string
	genFound, genErr := a.cache.Get(ctx, generationKey, &generation)

	if genFound && genErr == nil {
		var entry cachedProject
		found, err := a.cache.Get(ctx, redis.ProjectKey(id), &entry)
		if err == nil && found && entry.Generation == generation && entry.Project != nil {
			return entry.Project, nil
		}
	}

	r, err := a.Ranking(ctx)
	if err != nil {
		return nil, err
	}

	for _, p := range r.Projects {
		if p.ID != id {
			continue
		}
		entry := cachedProject{Generation: r.Generation, Project: p}
		if err := a.cache.Set(ctx, redis.ProjectKey(id), entry, a.ttl.ProjectTTL); err != nil {
			a.logger.WithError(err).Warn("Project cache write failed")
		}
		return p, nil
	}

	return nil, fmt.Errorf("project %d: %w", id, contracts.ErrProjectNotFound)
}

func (a *Aggregator) compute(ctx context.Context, epoch uint64) (*Ranking, error) {
	start := time.Now()

	snap, err := a.Snapshot(ctx)
	if err != nil {
		a.logger.WithError(err).Error("Failed to read competition records")
		return nil, err
	}

	projects := Join(snap)
	current := a.resolver.ResolveFromRows(snap.Config)
	ranked := a.calc.Rank(ctx, projects, current, snap.Config)

	r := &Ranking{
		Generation: uuid.NewString(),
		Stage:      current,
		Projects:   ranked,
		RankedAt:   time.Now(),
	}

	// Generation is written after the list so a reader never sees a stamp
	// without its list
	if a.epoch.Load() != epoch {
		a.logger.Debug("Ranked list invalidated during computation, not caching")
	} else if err := a.cache.Set(ctx, redis.ProjectsKey(), r, a.ttl.ProjectsTTL); err != nil {
		a.logger.WithError(err).Warn("Ranked list cache write failed")
	} else if err := a.cache.Set(ctx, generationKey, r.Generation, a.ttl.ProjectsTTL); err != nil {
		a.logger.WithError(err).Warn("Generation cache write failed")
	}

	a.logger.WithFields(map[string]interface{}{
		"stage":       current.Code(),
		"projects":    len(ranked),
		"investments": len(snap.Investments),
		"duration":    time.Since(start),
	}).Debug("Ranked projects computed")

	return r, nil
}

// QualifiedIDs returns the qualified set exactly as ranking applies it. It
// reads a fresh snapshot so a cached list never hides an unlocked set; when
// this call locks the set, every cached ranking is dropped.
func (a *Aggregator) QualifiedIDs(ctx context.Context) ([]int64, error) {
	snap, err := a.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	wasLocked := !contracts.QualifiedSetFromConfig(snap.Config).Empty()
	ids := a.calc.Qualified(ctx, Join(snap), snap.Config)
	if !wasLocked && len(ids) > 0 {
		a.logger.WithField("ids", contracts.FormatQualifiedIDs(ids)).Info("Qualified set locked on investment, dropping cached rankings")
		a.InvalidateAllProjects(ctx)
	}
	return ids, nil
}

// InvalidateProjects drops the ranked list; per-project entries become stale with it
func (a *Aggregator) InvalidateProjects(ctx context.Context) {
	a.epoch.Add(1)
	a.delete(ctx, generationKey, redis.ProjectsKey())
}

// InvalidateProject drops one project entry
func (a *Aggregator) InvalidateProject(ctx context.Context, id int64) {
	a.delete(ctx, redis.ProjectKey(id))
}

// InvalidateAllProjects drops the ranked list and every project entry
func (a *Aggregator) InvalidateAllProjects(ctx context.Context) {
	a.InvalidateProjects(ctx)
	if _, err := a.cache.DeletePrefix(ctx, "project:"); err != nil {
		a.logger.WithError(err).Warn("Project cache eviction failed")
	}
}

// InvalidateInvestor drops one investor profile
func (a *Aggregator) InvalidateInvestor(ctx context.Context, username string) {
	a.delete(ctx, redis.InvestorKey(username))
}

// Flush clears every cache entry
func (a *Aggregator) Flush(ctx context.Context) (int, error) {
	a.epoch.Add(1)
	n, err := a.cache.Flush(ctx)
	if err != nil {
		return n, fmt.Errorf("flush cache: %w", err)
	}
	a.logger.WithField("count", n).Info("Cache flushed")
	return n, nil
}

// Stage resolves the current stage
func (a *Aggregator) Stage(ctx context.Context) contracts.Stage {
	return a.resolver.Resolve(ctx)
}

func (a *Aggregator) delete(ctx context.Context, keys ...string) {
	if err := a.cache.Delete(ctx, keys...); err != nil {
		a.logger.WithError(err).WithField("keys", keys).Warn("Cache eviction failed")
	}
}

// IsReadFailure reports whether err came from an external read
func IsReadFailure(err error) bool {
	return errors.Is(err, contracts.ErrExternalRead)
}
