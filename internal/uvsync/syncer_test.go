package uvsync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gdtech/hackathon/internal/contracts"
	"github.com/gdtech/hackathon/internal/realtime"
	"github.com/gdtech/hackathon/internal/store/memory"
	"github.com/gdtech/hackathon/pkg/logger"
)

type fakeAnalytics struct {
	mu       sync.Mutex
	accounts map[string]bool
	counts   map[string]int64 // by site id
	fail     map[string]bool
	from, to time.Time
}

func (f *fakeAnalytics) HasAccount(account string) bool { return f.accounts[account] }

func (f *fakeAnalytics) CumulativeVisitorCount(_ context.Context, _, siteID string, from, to time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.from, f.to = from, to
	if f.fail[siteID] {
		return 0, errors.New("tongji 500")
	}
	return f.counts[siteID], nil
}

type fixedStage contracts.Stage

func (s fixedStage) Stage(context.Context) contracts.Stage { return contracts.Stage(s) }

type invalidations struct{ n int }

func (i *invalidations) InvalidateAllProjects(context.Context) { i.n++ }

type events struct {
	mu  sync.Mutex
	got []realtime.Event
}

func (e *events) Publish(evt realtime.Event) {
	e.mu.Lock()
	e.got = append(e.got, evt)
	e.mu.Unlock()
}

func seedProject(s *memory.Store, id int64, account, site string, enabled bool) string {
	return s.Seed(contracts.CollectionProjects, "", map[string]any{
		contracts.FieldProjectID:        float64(id),
		contracts.FieldAnalyticsAccount: account,
		contracts.FieldAnalyticsSiteID:  site,
		contracts.FieldUV:               1.0,
		contracts.FieldEnabled:          enabled,
	})
}

func uvOf(t *testing.T, s *memory.Store, id int64) int64 {
	t.Helper()
	rows, err := s.ListRecords(context.Background(), contracts.CollectionProjects)
	require.NoError(t, err)
	for _, r := range rows {
		if contracts.FieldInt64(r.Fields, contracts.FieldProjectID) == id {
			return contracts.FieldInt64(r.Fields, contracts.FieldUV)
		}
	}
	t.Fatalf("project %d not seeded", id)
	return 0
}

func TestRunSyncsLinkedProjects(t *testing.T) {
	s := memory.New()
	seedProject(s, 1, "main", "site1", true)
	seedProject(s, 2, "main", "site2", true)
	seedProject(s, 3, "", "", true)             // not linked
	seedProject(s, 4, "main", "site4", false)   // disabled
	seedProject(s, 5, "unknown", "site5", true) // account missing
	seedProject(s, 6, "main", "site6", true)    // provider error

	analytics := &fakeAnalytics{
		accounts: map[string]bool{"main": true},
		counts:   map[string]int64{"site1": 120, "site2": 80},
		fail:     map[string]bool{"site6": true},
	}
	inv := &invalidations{}
	evts := &events{}
	shanghai := time.FixedZone("CST", 8*3600)
	now := time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC) // already the 15th in Shanghai

	syncer := New(s, analytics, fixedStage(contracts.StageSelection), inv, 30, shanghai, logger.Nop()).
		WithPublisher(evts).
		WithClock(func() time.Time { return now })

	report, err := syncer.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.Success)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 3, report.Ignored)
	assert.False(t, report.Skipped)

	assert.Equal(t, int64(120), uvOf(t, s, 1))
	assert.Equal(t, int64(80), uvOf(t, s, 2))
	assert.Equal(t, int64(1), uvOf(t, s, 4), "disabled projects keep their count")
	assert.Equal(t, int64(1), uvOf(t, s, 6), "failed fetch leaves the count")

	assert.Equal(t, "20260315", analytics.to.Format("20060102"))
	assert.Equal(t, "20260214", analytics.from.Format("20060102"))

	assert.Equal(t, 1, inv.n)
	require.Len(t, evts.got, 1)
	assert.Equal(t, realtime.EventUVSynced, evts.got[0].Type)
}

func TestRunSkipsWhenEnded(t *testing.T) {
	s := memory.New()
	seedProject(s, 1, "main", "site1", true)
	inv := &invalidations{}

	syncer := New(s, &fakeAnalytics{accounts: map[string]bool{"main": true}}, fixedStage(contracts.StageEnded), inv, 30, nil, logger.Nop())
	report, err := syncer.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, report.Skipped)
	assert.Zero(t, s.ListCalls(contracts.CollectionProjects))
	assert.Zero(t, inv.n)
}

func TestRunProjectReadFailure(t *testing.T) {
	s := memory.New()
	s.FailList(contracts.CollectionProjects, errors.New("bitable 500"))

	syncer := New(s, &fakeAnalytics{}, fixedStage(contracts.StageInvestment), &invalidations{}, 30, nil, logger.Nop())
	_, err := syncer.Run(context.Background())
	assert.ErrorIs(t, err, contracts.ErrExternalRead)
}

func TestRunWriteFailureCounts(t *testing.T) {
	s := memory.New()
	seedProject(s, 1, "main", "site1", true)
	s.FailUpdate(contracts.CollectionProjects, errors.New("bitable 500"))

	analytics := &fakeAnalytics{accounts: map[string]bool{"main": true}, counts: map[string]int64{"site1": 5}}
	report, err := New(s, analytics, fixedStage(contracts.StageLock), &invalidations{}, 30, nil, logger.Nop()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	assert.Zero(t, report.Success)
}
