package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gdtech/hackathon/internal/contracts"
)

func TestCreateListUpdate(t *testing.T) {
	s := New()
	ctx := context.Background()

	id, err := s.CreateRecord(ctx, contracts.CollectionConfig, map[string]any{contracts.FieldConfigKey: "k", contracts.FieldConfigValue: "v1"})
	require.NoError(t, err)

	require.NoError(t, s.UpdateRecord(ctx, contracts.CollectionConfig, id, map[string]any{contracts.FieldConfigValue: "v2"}))

	rows, err := s.ListRecords(ctx, contracts.CollectionConfig)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "k", rows[0].Fields[contracts.FieldConfigKey])
	assert.Equal(t, "v2", rows[0].Fields[contracts.FieldConfigValue])

	// listed rows are copies
	rows[0].Fields[contracts.FieldConfigValue] = "mutated"
	again, _ := s.ListRecords(ctx, contracts.CollectionConfig)
	assert.Equal(t, "v2", again[0].Fields[contracts.FieldConfigValue])
	assert.Equal(t, 2, s.ListCalls(contracts.CollectionConfig))
}

func TestUpdateMissing(t *testing.T) {
	err := New().UpdateRecord(context.Background(), contracts.CollectionInvestors, "nope", map[string]any{})
	assert.Error(t, err)
}

func TestFailureHooks(t *testing.T) {
	s := New()
	ctx := context.Background()
	boom := errors.New("boom")

	s.FailList(contracts.CollectionProjects, boom)
	_, err := s.ListRecords(ctx, contracts.CollectionProjects)
	assert.ErrorIs(t, err, boom)

	s.FailCreate(contracts.CollectionInvestments, boom)
	_, err = s.CreateRecord(ctx, contracts.CollectionInvestments, nil)
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, s.Count(contracts.CollectionInvestments))

	s.Reset()
	_, err = s.ListRecords(ctx, contracts.CollectionProjects)
	assert.NoError(t, err)
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New().ListRecords(ctx, contracts.CollectionProjects)
	assert.ErrorIs(t, err, context.Canceled)
}
