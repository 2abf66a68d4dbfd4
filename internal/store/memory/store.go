// Package memory is an in-process record store used for STORE_BACKEND=memory
// and as the fake behind the engine tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/gdtech/hackathon/internal/contracts"
)

// Store keeps rows per collection in insertion order
type Store struct {
	mu   sync.RWMutex
	rows map[contracts.Collection][]contracts.Record

	failList   map[contracts.Collection]error
	failCreate map[contracts.Collection]error
	failUpdate map[contracts.Collection]error
	lists      map[contracts.Collection]int
}

// New creates an empty store
func New() *Store {
	return &Store{
		rows:       make(map[contracts.Collection][]contracts.Record),
		failList:   make(map[contracts.Collection]error),
		failCreate: make(map[contracts.Collection]error),
		failUpdate: make(map[contracts.Collection]error),
		lists:      make(map[contracts.Collection]int),
	}
}

var _ contracts.RecordStore = (*Store)(nil)

// ListRecords returns copies of every row of collection
func (s *Store) ListRecords(ctx context.Context, collection contracts.Collection) ([]contracts.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.lists[collection]++
	err := s.failList[collection]
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]contracts.Record, len(s.rows[collection]))
	for i, r := range s.rows[collection] {
		out[i] = contracts.Record{ID: r.ID, Fields: copyFields(r.Fields)}
	}
	return out, nil
}

// CreateRecord appends a row and returns its id
func (s *Store) CreateRecord(ctx context.Context, collection contracts.Collection, fields map[string]any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failCreate[collection]; err != nil {
		return "", err
	}

	id := "rec" + uuid.NewString()[:8]
	s.rows[collection] = append(s.rows[collection], contracts.Record{ID: id, Fields: copyFields(fields)})
	return id, nil
}

// UpdateRecord merges fields into an existing row
func (s *Store) UpdateRecord(ctx context.Context, collection contracts.Collection, recordID string, fields map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failUpdate[collection]; err != nil {
		return err
	}

	rows := s.rows[collection]
	for i := range rows {
		if rows[i].ID == recordID {
			for k, v := range fields {
				rows[i].Fields[k] = v
			}
			return nil
		}
	}
	return fmt.Errorf("record %s not found in %s", recordID, collection)
}

// Seed appends a row with a fixed id, returning the id. An empty id gets a fresh one.
func (s *Store) Seed(collection contracts.Collection, id string, fields map[string]any) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == "" {
		id = "rec" + uuid.NewString()[:8]
	}
	s.rows[collection] = append(s.rows[collection], contracts.Record{ID: id, Fields: copyFields(fields)})
	return id
}

// FailList makes ListRecords on collection return err (nil clears it)
func (s *Store) FailList(collection contracts.Collection, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failList[collection] = err
}

// FailCreate makes CreateRecord on collection return err (nil clears it)
func (s *Store) FailCreate(collection contracts.Collection, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failCreate[collection] = err
}

// FailUpdate makes UpdateRecord on collection return err (nil clears it)
func (s *Store) FailUpdate(collection contracts.Collection, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failUpdate[collection] = err
}

// ListCalls returns how many times collection was listed
func (s *Store) ListCalls(collection contracts.Collection) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lists[collection]
}

// Count returns the number of rows in collection
func (s *Store) Count(collection contracts.Collection) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows[collection])
}

// Reset drops every row and failure hook
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.rows)
	clear(s.failList)
	clear(s.failCreate)
	clear(s.failUpdate)
	clear(s.lists)
}

func copyFields(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
