// Package cache keeps preview URLs and processed-document detail per job so
// the reconciler does not refetch what the backend already reported. It is
// a convenience layer only; the backend stays the source of truth.
package cache

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fadehq/redact-client/internal/domain"
)

// Entry is one job's cached preview state.
type Entry struct {
	DocumentCode string           `json:"document_code"`
	Preview      domain.Preview   `json:"preview"`
	Detail       domain.JobDetail `json:"detail"`
	CreatedAt    time.Time        `json:"created_at"`
	ExpiresAt    time.Time        `json:"expires_at"`
}

// Store is the cache contract shared by the in-memory and Redis backends.
type Store interface {
	Get(ctx context.Context, jobID int64) (Entry, bool)
	Set(ctx context.Context, jobID int64, entry Entry)
	Delete(ctx context.Context, jobID int64)
}

type Config struct {
	TTL        time.Duration
	MaxEntries int
}

// MemoryStore is the default backend when Redis is not configured.
type MemoryStore struct {
	mu         sync.RWMutex
	entries    map[int64]Entry
	ttl        time.Duration
	maxEntries int
}

func NewMemoryStore(config Config) *MemoryStore {
	if config.TTL <= 0 {
		config.TTL = 15 * time.Minute
	}
	if config.MaxEntries <= 0 {
		config.MaxEntries = 500
	}
	return &MemoryStore{
		entries:    make(map[int64]Entry),
		ttl:        config.TTL,
		maxEntries: config.MaxEntries,
	}
}

func (s *MemoryStore) Get(_ context.Context, jobID int64) (Entry, bool) {
	s.mu.RLock()
	entry, exists := s.entries[jobID]
	s.mu.RUnlock()

	if !exists {
		return Entry{}, false
	}
	if time.Now().UTC().After(entry.ExpiresAt) {
		s.mu.Lock()
		delete(s.entries, jobID)
		s.mu.Unlock()
		return Entry{}, false
	}
	return entry, true
}

func (s *MemoryStore) Set(_ context.Context, jobID int64, entry Entry) {
	now := time.Now().UTC()
	entry.CreatedAt = now
	entry.ExpiresAt = now.Add(s.ttl)

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.entries) >= s.maxEntries {
		s.evictOldest()
	}
	s.entries[jobID] = entry
}

func (s *MemoryStore) Delete(_ context.Context, jobID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, jobID)
}

// DeleteByDocument drops every entry for a document, mirroring the
// server-side delete cascade.
func (s *MemoryStore) DeleteByDocument(_ context.Context, documentCode string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for jobID, entry := range s.entries {
		if entry.DocumentCode == documentCode {
			delete(s.entries, jobID)
		}
	}
}

func (s *MemoryStore) evictOldest() {
	if len(s.entries) == 0 {
		return
	}
	type pair struct {
		jobID int64
		entry Entry
	}
	pairs := make([]pair, 0, len(s.entries))
	for jobID, entry := range s.entries {
		pairs = append(pairs, pair{jobID: jobID, entry: entry})
	}
	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].entry.CreatedAt.Before(pairs[j].entry.CreatedAt)
	})
	delete(s.entries, pairs[0].jobID)
}
