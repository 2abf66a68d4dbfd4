package ranking

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/gdtech/hackathon/internal/contracts"
	"github.com/gdtech/hackathon/pkg/config"
	"github.com/gdtech/hackathon/pkg/logger"
)

// Config holds the competition ranking rules
type Config struct {
	Quota            int     // number of qualifiers (default 15)
	VisitorWeight    float64 // W_v (default 0.2)
	InvestmentWeight float64 // W_i (default 0.8)
	ScoreScope       string  // qualified | field
}

// DefaultConfig returns the rules used for the event
func DefaultConfig() Config {
	return Config{
		Quota:            15,
		VisitorWeight:    0.2,
		InvestmentWeight: 0.8,
		ScoreScope:       config.ScoreScopeQualified,
	}
}

// ConfigFrom maps application config onto ranking rules
func ConfigFrom(h config.HackathonConfig) Config {
	return Config{
		Quota:            h.QualifiedCount,
		VisitorWeight:    h.VisitorWeight,
		InvestmentWeight: h.InvestmentWeight,
		ScoreScope:       h.ScoreScope,
	}
}

// Validate checks quota, weight sum and score scope
func (c Config) Validate() error {
	if c.Quota <= 0 {
		return fmt.Errorf("quota must be positive, got %d", c.Quota)
	}
	if c.VisitorWeight < 0 || c.InvestmentWeight < 0 {
		return fmt.Errorf("weights must be non-negative")
	}
	// Allow small floating point error
	if sum := c.VisitorWeight + c.InvestmentWeight; math.Abs(sum-1) > 0.01 {
		return fmt.Errorf("weights must sum to 1, got %.3f", sum)
	}
	if c.ScoreScope != config.ScoreScopeQualified && c.ScoreScope != config.ScoreScopeField {
		return fmt.Errorf("unknown score scope %q", c.ScoreScope)
	}
	return nil
}

// Registry is the qualification lock the calculator consults
type Registry interface {
	Resolve(ctx context.Context, projects []*contracts.Project, quota int, configRows []contracts.Record) []int64
	Clear(ctx context.Context, configRows []contracts.Record) error
}

// Calculator ranks projects for the current stage
// ⭐ SSOT: rank, qualified and weighted score are only assigned here
type Calculator struct {
	cfg      Config
	registry Registry
	logger   *logger.Logger
}

// NewCalculator validates cfg and builds a calculator
func NewCalculator(cfg Config, registry Registry, log *logger.Logger) (*Calculator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid ranking config: %w", err)
	}
	return &Calculator{
		cfg:      cfg,
		registry: registry,
		logger:   log.Component("ranking"),
	}, nil
}

// Config returns the active rules
func (c *Calculator) Config() Config {
	return c.cfg
}

// Rank orders projects for stage and fills their derived fields. The
// returned slice is the new order; the input slice is reordered too.
func (c *Calculator) Rank(ctx context.Context, projects []*contracts.Project, stage contracts.Stage, configRows []contracts.Record) []*contracts.Project {
	if stage == contracts.StageSelection {
		if err := c.registry.Clear(ctx, configRows); err != nil {
			c.logger.WithError(err).Warn("Failed to clear stale qualified set")
		}
		return RankSelection(projects, c.cfg)
	}

	qualified := c.Qualified(ctx, projects, configRows)
	if len(qualified) == 0 {
		c.logger.WithField("stage", stage.Code()).Warn("Qualified set is empty, falling back to selection ranking")
		return RankSelection(projects, c.cfg)
	}

	var ranked []*contracts.Project
	switch stage {
	case contracts.StageLock:
		ranked = RankLock(projects, qualified, c.cfg)
	default:
		ranked = RankInvestment(projects, qualified, c.cfg)
	}

	c.logger.WithFields(map[string]interface{}{
		"stage":     stage.Code(),
		"projects":  len(ranked),
		"qualified": len(qualified),
	}).Debug("Ranking completed")

	return ranked
}

// Qualified returns the locked qualified ids cut to the quota, locking the
// set from projects when none is stored
func (c *Calculator) Qualified(ctx context.Context, projects []*contracts.Project, configRows []contracts.Record) []int64 {
	return c.registry.Resolve(ctx, projects, c.cfg.Quota, configRows)
}

// RankSelection ranks every project by visitors; the first Quota qualify
func RankSelection(projects []*contracts.Project, cfg Config) []*contracts.Project {
	resetDerived(projects)
	sortBy(projects, byVisitors)
	assignRanks(projects)
	for i, p := range projects {
		p.Qualified = i < cfg.Quota
	}
	return projects
}

// RankLock ranks the qualified block and the rest independently by visitors
func RankLock(projects []*contracts.Project, qualified []int64, cfg Config) []*contracts.Project {
	if len(qualified) == 0 {
		return RankSelection(projects, cfg)
	}

	resetDerived(projects)
	in, out := partition(projects, qualified)

	sortBy(in, byVisitors)
	assignRanks(in)
	for _, p := range in {
		p.Qualified = true
	}

	sortBy(out, byVisitors)
	assignRanks(out)

	return rewrite(projects, in, out)
}

// RankInvestment scores the qualified block by weighted visitor and
// investment rank scores; the rest are ranked by visitors only.
func RankInvestment(projects []*contracts.Project, qualified []int64, cfg Config) []*contracts.Project {
	if len(qualified) == 0 {
		return RankSelection(projects, cfg)
	}

	resetDerived(projects)
	in, out := partition(projects, qualified)

	population := in
	if cfg.ScoreScope == config.ScoreScopeField {
		population = projects
	}
	visitorScores := rankScores(population, byVisitors)
	investmentScores := rankScores(population, byInvestment)

	for _, p := range in {
		w := visitorScores[p.ID]*cfg.VisitorWeight + investmentScores[p.ID]*cfg.InvestmentWeight
		p.WeightedScore = &w
		p.Qualified = true
	}

	sort.SliceStable(in, func(i, j int) bool {
		wi, wj := *in[i].WeightedScore, *in[j].WeightedScore
		if wi != wj {
			return wi > wj
		}
		if in[i].Investment != in[j].Investment {
			return in[i].Investment > in[j].Investment
		}
		return tieBreak(in[i], in[j])
	})
	assignRanks(in)

	sortBy(out, byVisitors)
	assignRanks(out)

	return rewrite(projects, in, out)
}

// rewrite stores in followed by out back into projects
func rewrite(projects, in, out []*contracts.Project) []*contracts.Project {
	n := copy(projects, in)
	copy(projects[n:], out)
	return projects
}
