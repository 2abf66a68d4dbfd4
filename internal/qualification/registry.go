package qualification

import (
	"context"
	"fmt"
	"sync"

	"github.com/gdtech/hackathon/internal/contracts"
	"github.com/gdtech/hackathon/internal/ranking"
	"github.com/gdtech/hackathon/pkg/logger"
)

// Registry computes, persists and reads back the locked qualified set
// ⭐ SSOT: the qualified_project_ids config row is only written here
type Registry struct {
	store  contracts.RecordStore
	logger *logger.Logger

	// mu serializes lock-on-first-read so concurrent first reads agree
	mu sync.Mutex
}

// NewRegistry creates a registry over the config collection of store
func NewRegistry(store contracts.RecordStore, log *logger.Logger) *Registry {
	return &Registry{
		store:  store,
		logger: log.Component("qualification"),
	}
}

var _ ranking.Registry = (*Registry)(nil)

// Load reads the stored qualified set
func (r *Registry) Load(ctx context.Context) (contracts.QualifiedSet, error) {
	rows, err := r.store.ListRecords(ctx, contracts.CollectionConfig)
	if err != nil {
		return contracts.QualifiedSet{}, fmt.Errorf("%w: config: %v", contracts.ErrExternalRead, err)
	}
	return contracts.QualifiedSetFromConfig(rows), nil
}

// Resolve returns the locked qualified ids. A stored non-empty set is truth;
// otherwise the top quota by selection order is computed, persisted and returned.
func (r *Registry) Resolve(ctx context.Context, projects []*contracts.Project, quota int, configRows []contracts.Record) []int64 {
	if set := contracts.QualifiedSetFromConfig(configRows); !set.Empty() {
		return r.truncate(set.IDs, quota)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Another request may have locked the set since configRows was read
	current := contracts.QualifiedSetFromConfig(configRows)
	if fresh, err := r.Load(ctx); err != nil {
		r.logger.WithError(err).Warn("Fresh qualified set read failed, using request snapshot")
	} else {
		current = fresh
	}
	if !current.Empty() {
		return r.truncate(current.IDs, quota)
	}

	computed := ranking.TopQualified(projects, quota)
	if len(computed) == 0 {
		return nil
	}

	if err := r.persist(ctx, current.RecordID, computed); err != nil {
		r.logger.WithError(err).Error("Failed to persist qualified set")
	} else {
		r.logger.WithFields(map[string]interface{}{
			"ids":   contracts.FormatQualifiedIDs(computed),
			"quota": quota,
		}).Info("Qualified set locked")
	}
	return computed
}

// Clear empties a non-empty stored set so the next lock stage computes a
// fresh one. No-op when the row is absent or already empty.
func (r *Registry) Clear(ctx context.Context, configRows []contracts.Record) error {
	set := contracts.QualifiedSetFromConfig(configRows)
	if set.Empty() || set.RecordID == "" {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.store.UpdateRecord(ctx, contracts.CollectionConfig, set.RecordID, map[string]any{
		contracts.FieldConfigValue: "",
	})
	if err != nil {
		return fmt.Errorf("clear qualified set: %w", err)
	}

	r.logger.WithField("previous", contracts.FormatQualifiedIDs(set.IDs)).Info("Qualified set cleared")
	return nil
}

func (r *Registry) persist(ctx context.Context, recordID string, ids []int64) error {
	value := contracts.FormatQualifiedIDs(ids)

	if recordID != "" {
		return r.store.UpdateRecord(ctx, contracts.CollectionConfig, recordID, map[string]any{
			contracts.FieldConfigValue: value,
		})
	}

	_, err := r.store.CreateRecord(ctx, contracts.CollectionConfig, map[string]any{
		contracts.FieldConfigKey:   contracts.ConfigKeyQualifiedProjects,
		contracts.FieldConfigValue: value,
	})
	return err
}

func (r *Registry) truncate(ids []int64, quota int) []int64 {
	if len(ids) <= quota {
		return ids
	}
	r.logger.WithFields(map[string]interface{}{
		"stored": len(ids),
		"quota":  quota,
	}).Warn("Stored qualified set exceeds quota, truncating")
	return ids[:quota]
}
