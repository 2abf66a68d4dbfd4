package ranking

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gdtech/hackathon/internal/contracts"
	"github.com/gdtech/hackathon/pkg/config"
	"github.com/gdtech/hackathon/pkg/logger"
)

type fakeRegistry struct {
	ids      []int64
	resolves int
	clears   int
}

func (f *fakeRegistry) Resolve(_ context.Context, _ []*contracts.Project, quota int, _ []contracts.Record) []int64 {
	f.resolves++
	if len(f.ids) > quota {
		return f.ids[:quota]
	}
	return f.ids
}

func (f *fakeRegistry) Clear(context.Context, []contracts.Record) error {
	f.clears++
	return nil
}

func project(id int64, uv int64, team string) *contracts.Project {
	return &contracts.Project{ID: id, UV: uv, TeamNumber: team, Enabled: true}
}

func ids(ps []*contracts.Project) []int64 {
	out := make([]int64, len(ps))
	for i, p := range ps {
		out[i] = p.ID
	}
	return out
}

func ranks(ps []*contracts.Project) []int {
	out := make([]int, len(ps))
	for i, p := range ps {
		out[i] = p.Rank
	}
	return out
}

func qualifiedFlags(ps []*contracts.Project) []bool {
	out := make([]bool, len(ps))
	for i, p := range ps {
		out[i] = p.Qualified
	}
	return out
}

func cfgWithQuota(q int) Config {
	c := DefaultConfig()
	c.Quota = q
	return c
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	bad := []Config{
		{Quota: 0, VisitorWeight: 0.2, InvestmentWeight: 0.8, ScoreScope: config.ScoreScopeQualified},
		{Quota: 15, VisitorWeight: 0.5, InvestmentWeight: 0.8, ScoreScope: config.ScoreScopeQualified},
		{Quota: 15, VisitorWeight: -0.2, InvestmentWeight: 1.2, ScoreScope: config.ScoreScopeQualified},
		{Quota: 15, VisitorWeight: 0.2, InvestmentWeight: 0.8, ScoreScope: "global"},
	}
	for _, c := range bad {
		assert.Error(t, c.Validate(), "%+v", c)
	}

	_, err := NewCalculator(bad[1], &fakeRegistry{}, logger.Nop())
	assert.Error(t, err)
}

func TestSelectionTieBreakScenario(t *testing.T) {
	// {100, 50, 50} with team numbers {"01","02","03"}, quota 2
	ps := []*contracts.Project{
		project(3, 50, "03"),
		project(1, 100, "01"),
		project(2, 50, "02"),
	}

	ranked := RankSelection(ps, cfgWithQuota(2))

	assert.Equal(t, []int64{1, 2, 3}, ids(ranked))
	assert.Equal(t, []int{1, 2, 3}, ranks(ranked))
	assert.Equal(t, []bool{true, true, false}, qualifiedFlags(ranked))
	for _, p := range ranked {
		assert.Nil(t, p.WeightedScore)
	}
}

func TestSelectionMissingTeamNumberSortsLast(t *testing.T) {
	ps := []*contracts.Project{
		project(1, 10, ""),
		project(2, 10, "998"),
		project(3, 10, "999"),
	}
	ranked := RankSelection(ps, cfgWithQuota(15))
	// "" is treated as "999" and ties with id 3, broken by id
	assert.Equal(t, []int64{2, 1, 3}, ids(ranked))
}

func TestSelectionRanksArePermutation(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for trial := 0; trial < 50; trial++ {
		n := rng.Intn(40)
		quota := 1 + rng.Intn(20)
		ps := make([]*contracts.Project, n)
		for i := range ps {
			ps[i] = project(int64(i+1), int64(rng.Intn(5)), string(rune('0'+rng.Intn(3))))
		}

		ranked := RankSelection(ps, cfgWithQuota(quota))

		seen := make(map[int]bool)
		qualified := 0
		for _, p := range ranked {
			require.GreaterOrEqual(t, p.Rank, 1)
			require.LessOrEqual(t, p.Rank, n)
			require.False(t, seen[p.Rank], "duplicate rank %d", p.Rank)
			seen[p.Rank] = true
			if p.Qualified {
				qualified++
			}
		}
		assert.Len(t, seen, n)
		assert.Equal(t, min(quota, n), qualified)
	}
}

func TestLockBlocks(t *testing.T) {
	ps := []*contracts.Project{
		project(1, 10, "01"),
		project(2, 500, "02"),
		project(3, 30, "03"),
		project(4, 20, "04"),
	}

	ranked := RankLock(ps, []int64{1, 3}, cfgWithQuota(2))

	assert.Equal(t, []int64{3, 1, 2, 4}, ids(ranked))
	assert.Equal(t, []int{1, 2, 1, 2}, ranks(ranked))
	assert.Equal(t, []bool{true, true, false, false}, qualifiedFlags(ranked))
}

func TestLockWithEmptySetFallsBackToSelection(t *testing.T) {
	ps := []*contracts.Project{project(1, 10, "01"), project(2, 20, "02")}
	ranked := RankLock(ps, nil, cfgWithQuota(1))
	assert.Equal(t, []int64{2, 1}, ids(ranked))
	assert.Equal(t, []bool{true, false}, qualifiedFlags(ranked))
}

func TestInvestmentScoring(t *testing.T) {
	ps := []*contracts.Project{
		{ID: 1, UV: 300, Investment: 0, TeamNumber: "01"},
		{ID: 2, UV: 200, Investment: 100, TeamNumber: "02"},
		{ID: 3, UV: 0, Investment: 50, TeamNumber: "03"},
		{ID: 4, UV: 900, Investment: 0, TeamNumber: "04"}, // not qualified
	}

	ranked := RankInvestment(ps, []int64{1, 2, 3}, DefaultConfig())

	// N = 3 qualified.
	// visitor ranks: 1 (r1) 1.0, 2 (r2) 2/3, 3 zero -> 0
	// investment ranks: 2 (r1) 1.0, 3 (r2) 2/3, 1 zero -> 0
	w1 := 1.0 * 0.2
	w2 := 2.0/3.0*0.2 + 1.0*0.8
	w3 := 0*0.2 + 2.0/3.0*0.8

	assert.Equal(t, []int64{2, 3, 1, 4}, ids(ranked))
	assert.Equal(t, []int{1, 2, 3, 1}, ranks(ranked))
	assert.InDelta(t, w2, *ranked[0].WeightedScore, 1e-12)
	assert.InDelta(t, w3, *ranked[1].WeightedScore, 1e-12)
	assert.InDelta(t, w1, *ranked[2].WeightedScore, 1e-12)
	assert.Nil(t, ranked[3].WeightedScore)
	assert.False(t, ranked[3].Qualified)
}

func TestZeroVisitorWeightedScoreIsExact(t *testing.T) {
	ps := []*contracts.Project{
		{ID: 1, UV: 0, Investment: 80, TeamNumber: "01"},
		{ID: 2, UV: 0, Investment: 40, TeamNumber: "02"},
	}
	cfg := DefaultConfig()

	ranked := RankInvestment(ps, []int64{1, 2}, cfg)

	// both have zero visitors: visitor score is exactly 0, not (N+1-r)/N
	assert.Equal(t, 1.0*cfg.InvestmentWeight, *ranked[0].WeightedScore)
	assert.Equal(t, 0.5*cfg.InvestmentWeight, *ranked[1].WeightedScore)
}

func TestInvestmentTieBreaks(t *testing.T) {
	// Identical weighted scores: higher investment first, then team number
	ps := []*contracts.Project{
		{ID: 1, UV: 0, Investment: 0, TeamNumber: "02"},
		{ID: 2, UV: 0, Investment: 0, TeamNumber: "01"},
	}
	ranked := RankInvestment(ps, []int64{1, 2}, DefaultConfig())
	assert.Equal(t, []int64{2, 1}, ids(ranked))
	assert.Equal(t, 0.0, *ranked[0].WeightedScore)
}

func TestInvestmentFieldScope(t *testing.T) {
	ps := []*contracts.Project{
		{ID: 1, UV: 100, Investment: 10, TeamNumber: "01"},
		{ID: 2, UV: 900, Investment: 0, TeamNumber: "02"}, // not qualified, still in the field
	}
	cfg := DefaultConfig()
	cfg.ScoreScope = config.ScoreScopeField
	cfg.VisitorWeight, cfg.InvestmentWeight = 0.4, 0.6

	ranked := RankInvestment(ps, []int64{1}, cfg)

	// field N = 2: project 1 is visitor rank 2 -> 0.5, investment rank 1 -> 1.0
	require.Equal(t, int64(1), ranked[0].ID)
	assert.InDelta(t, 0.5*0.4+1.0*0.6, *ranked[0].WeightedScore, 1e-12)
	assert.Nil(t, ranked[1].WeightedScore)

	// qualified scope for comparison: N = 1, both scores are 1.0
	qualifiedScope := RankInvestment(ps, []int64{1}, DefaultConfig())
	assert.InDelta(t, 1.0, *qualifiedScope[0].WeightedScore, 1e-12)
}

func TestCalculatorDispatch(t *testing.T) {
	reg := &fakeRegistry{ids: []int64{2}}
	calc, err := NewCalculator(cfgWithQuota(1), reg, logger.Nop())
	require.NoError(t, err)
	ctx := context.Background()

	mk := func() []*contracts.Project {
		return []*contracts.Project{project(1, 100, "01"), project(2, 10, "02")}
	}

	sel := calc.Rank(ctx, mk(), contracts.StageSelection, nil)
	assert.Equal(t, []int64{1, 2}, ids(sel))
	assert.Equal(t, 1, reg.clears)
	assert.Equal(t, 0, reg.resolves)

	lock := calc.Rank(ctx, mk(), contracts.StageLock, nil)
	assert.Equal(t, []int64{2, 1}, ids(lock))
	assert.Equal(t, []int{1, 1}, ranks(lock))

	ended := calc.Rank(ctx, mk(), contracts.StageEnded, nil)
	assert.Equal(t, []int64{2, 1}, ids(ended))
	assert.NotNil(t, ended[0].WeightedScore)
	assert.Equal(t, 2, reg.resolves)

	reg.ids = nil
	fallback := calc.Rank(ctx, mk(), contracts.StageInvestment, nil)
	assert.Equal(t, []int64{1, 2}, ids(fallback))
	assert.Equal(t, []bool{true, false}, qualifiedFlags(fallback))
}

func TestRerankResetsDerivedFields(t *testing.T) {
	ps := []*contracts.Project{project(1, 100, "01"), project(2, 10, "02")}
	RankInvestment(ps, []int64{1, 2}, DefaultConfig())
	require.NotNil(t, ps[0].WeightedScore)

	RankSelection(ps, cfgWithQuota(1))
	for _, p := range ps {
		assert.Nil(t, p.WeightedScore)
	}
}

func TestTopQualified(t *testing.T) {
	ps := []*contracts.Project{project(1, 5, "01"), project(2, 50, "02"), project(3, 50, "01")}
	assert.Equal(t, []int64{3, 2}, TopQualified(ps, 2))
	assert.Equal(t, []int64{3, 2, 1}, TopQualified(ps, 10))
	// input order is untouched
	assert.Equal(t, []int64{1, 2, 3}, ids(ps))
}
