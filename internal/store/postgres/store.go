// Package postgres is a record store over a single JSONB table, for
// deployments that keep competition data in PostgreSQL instead of Feishu.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gdtech/hackathon/internal/contracts"
)

// ErrRecordNotFound is returned by UpdateRecord for an unknown record id
var ErrRecordNotFound = errors.New("record not found")

const schemaSQL = `
	CREATE SCHEMA IF NOT EXISTS hackathon;

	CREATE TABLE IF NOT EXISTS hackathon.records (
		id          BIGSERIAL PRIMARY KEY,
		collection  TEXT        NOT NULL,
		record_id   TEXT        NOT NULL UNIQUE,
		fields      JSONB       NOT NULL DEFAULT '{}'::jsonb,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE INDEX IF NOT EXISTS records_collection_idx
		ON hackathon.records (collection, id);
`

// Store persists records in hackathon.records
// ⭐ SSOT: hackathon.records is only read and written here
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a store over pool
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

var _ contracts.RecordStore = (*Store)(nil)

// EnsureSchema creates the schema, table and index when missing
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to ensure records schema: %w", err)
	}
	return nil
}

// ListRecords returns the rows of collection in insertion order
func (s *Store) ListRecords(ctx context.Context, collection contracts.Collection) ([]contracts.Record, error) {
	query := `
		SELECT record_id, fields
		FROM hackathon.records
		WHERE collection = $1
		ORDER BY id
	`

	rows, err := s.pool.Query(ctx, query, string(collection))
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", collection, err)
	}
	defer rows.Close()

	var records []contracts.Record
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", collection, err)
		}

		fields := map[string]any{}
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("failed to decode %s record %s: %w", collection, id, err)
		}
		records = append(records, contracts.Record{ID: id, Fields: fields})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s: %w", collection, err)
	}

	return records, nil
}

// CreateRecord inserts a row and returns its generated record id
func (s *Store) CreateRecord(ctx context.Context, collection contracts.Collection, fields map[string]any) (string, error) {
	raw, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("failed to marshal fields: %w", err)
	}

	id := "rec" + uuid.NewString()
	query := `
		INSERT INTO hackathon.records (collection, record_id, fields)
		VALUES ($1, $2, $3)
	`
	if _, err := s.pool.Exec(ctx, query, string(collection), id, raw); err != nil {
		return "", fmt.Errorf("failed to insert %s record: %w", collection, err)
	}
	return id, nil
}

// UpdateRecord merges fields into an existing row
func (s *Store) UpdateRecord(ctx context.Context, collection contracts.Collection, recordID string, fields map[string]any) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to marshal fields: %w", err)
	}

	query := `
		UPDATE hackathon.records
		SET fields = fields || $3::jsonb, updated_at = now()
		WHERE collection = $1 AND record_id = $2
	`
	tag, err := s.pool.Exec(ctx, query, string(collection), recordID, raw)
	if err != nil {
		return fmt.Errorf("failed to update %s record: %w", collection, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s/%s", ErrRecordNotFound, collection, recordID)
	}
	return nil
}

// Truncate deletes every row of collection
func (s *Store) Truncate(ctx context.Context, collection contracts.Collection) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM hackathon.records WHERE collection = $1`, string(collection)); err != nil {
		return fmt.Errorf("failed to truncate %s: %w", collection, err)
	}
	return nil
}
