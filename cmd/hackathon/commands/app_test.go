package commands

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gdtech/hackathon/internal/contracts"
)

func memoryEnv(t *testing.T) {
	t.Helper()
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("REDIS_ENABLED", "false")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("HACKATHON_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
}

func TestNewAppWiresMemoryStore(t *testing.T) {
	memoryEnv(t)

	a, err := newApp(context.Background())
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.db)
	assert.False(t, a.redis.Enabled())
	assert.Empty(t, a.healthChecks())
	assert.Equal(t, contracts.StageSelection, a.agg.Stage(context.Background()))

	projects, err := a.agg.GetAllProjects(context.Background())
	require.NoError(t, err)
	assert.Empty(t, projects)
}

func TestNewSchedulerRegistersJobs(t *testing.T) {
	memoryEnv(t)

	a, err := newApp(context.Background())
	require.NoError(t, err)
	defer a.Close()

	sched, err := a.newScheduler()
	require.NoError(t, err)
	assert.Equal(t, []string{"budget_reconcile", "cache_sweep", "uv_sync"}, sched.GetAllJobs())

	result, err := sched.RunJobSync(context.Background(), "budget_reconcile")
	require.NoError(t, err)
	assert.True(t, result.Succeeded())
}

func TestNewAppRejectsBadConfig(t *testing.T) {
	memoryEnv(t)
	t.Setenv("HACKATHON_VISITOR_WEIGHT", "0.9")

	_, err := newApp(context.Background())
	assert.Error(t, err)
}

func TestMaskURL(t *testing.T) {
	assert.Equal(t, "postgres://app:xxxxx@db:5432/hackathon", maskURL("postgres://app:secret@db:5432/hackathon"))
	assert.Equal(t, "postgres://db/hackathon", maskURL("postgres://db/hackathon"))
}
