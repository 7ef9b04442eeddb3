// Package history records submission outcomes and status transitions as a
// client-side audit trail. It is never consulted as a source of truth; job
// state is always re-derived from the backend.
package history

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

var ErrNotFound = errors.New("resource not found")

type Event string

const (
	EventSubmitted        Event = "submitted"
	EventSubmissionFailed Event = "submission_failed"
	EventStatusChanged    Event = "status_changed"
)

// Record is one audit entry.
type Record struct {
	ID           string
	JobID        int64
	DocumentCode string
	ConfigHash   string
	Event        Event
	Detail       string
	CreatedAt    time.Time
}

// Repository abstracts audit persistence.
type Repository interface {
	Append(ctx context.Context, record Record) error
	ListByDocument(ctx context.Context, documentCode string) ([]Record, error)
}

// MemoryRepository is the default when no database is configured.
type MemoryRepository struct {
	mu      sync.RWMutex
	records []Record
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) Append(_ context.Context, record Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record)
	return nil
}

func (r *MemoryRepository) ListByDocument(_ context.Context, documentCode string) ([]Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	records := make([]Record, 0)
	for _, record := range r.records {
		if record.DocumentCode == documentCode {
			records = append(records, record)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	return records, nil
}
