// Package cache keeps the last known good value per source with explicit
// staleness tracking. It is the pipeline's only shared mutable structure:
// one writer per source (the scheduler's tick), arbitrarily many readers,
// and reads never wait on an in-flight fetch.
package cache

import (
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/misua/quake-monitor-web/internal/domain"
)

// Entry is the read-side snapshot for one source. Records hold the last
// successfully parsed value; a failed fetch never empties them.
type Entry struct {
	SourceID       string          `json:"source_id"`
	Kind           domain.Kind     `json:"kind"`
	Records        []domain.Record `json:"records"`
	LastFetchedAt  time.Time       `json:"last_fetched_at"` // last successful fetch
	LastError      string          `json:"last_error,omitempty"`
	FailedAttempts int             `json:"failed_attempts"`
	Stale          bool            `json:"stale"`
}

type entryState struct {
	kind           domain.Kind
	interval       time.Duration
	records        []domain.Record
	lastFetchedAt  time.Time
	lastError      string
	failedAttempts int
}

// Store holds one process-lifetime entry per registered source.
type Store struct {
	mu          sync.RWMutex
	clock       clockwork.Clock
	staleFactor float64
	entries     map[string]*entryState
}

// New creates a Store. staleFactor scales each source's interval into its
// staleness horizon; values below 1 are clamped to 1.
func New(clock clockwork.Clock, staleFactor float64) *Store {
	if staleFactor < 1 {
		staleFactor = 1
	}
	return &Store{
		clock:       clock,
		staleFactor: staleFactor,
		entries:     make(map[string]*entryState),
	}
}

// Register creates the entry for a source before its first fetch, so readers
// see a known-but-never-fetched source instead of a missing one.
func (s *Store) Register(sourceID string, kind domain.Kind, interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[sourceID]; !ok {
		s.entries[sourceID] = &entryState{kind: kind, interval: interval}
	}
}

// RecordSuccess stores freshly parsed records and clears the failure state.
// A nil records slice (a legitimate "no current alerts" fetch) refreshes the
// timestamp but keeps the previous value.
func (s *Store) RecordSuccess(sourceID string, records []domain.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[sourceID]
	if !ok {
		return
	}
	if len(records) > 0 {
		e.records = records
	}
	e.lastFetchedAt = s.clock.Now()
	e.lastError = ""
	e.failedAttempts = 0
}

// RecordFailure notes a failed attempt. The last known good value and its
// timestamp are left untouched.
func (s *Store) RecordFailure(sourceID string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[sourceID]
	if !ok {
		return
	}
	if err != nil {
		e.lastError = err.Error()
	}
	e.failedAttempts++
}

// Get returns the entry snapshot for a source. Non-blocking and O(1); the
// returned records slice is a copy.
func (s *Store) Get(sourceID string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[sourceID]
	if !ok {
		return Entry{}, false
	}
	return s.snapshot(sourceID, e), true
}

// Snapshot returns all entries ordered by source id.
func (s *Store) Snapshot() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, 0, len(s.entries))
	for id, e := range s.entries {
		out = append(out, s.snapshot(id, e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceID < out[j].SourceID })
	return out
}

// snapshot computes staleness at read time: a source is stale when its last
// success is older than interval×staleFactor or its last attempt failed.
func (s *Store) snapshot(sourceID string, e *entryState) Entry {
	horizon := time.Duration(float64(e.interval) * s.staleFactor)
	stale := e.failedAttempts > 0 ||
		e.lastFetchedAt.IsZero() ||
		s.clock.Now().Sub(e.lastFetchedAt) > horizon

	records := make([]domain.Record, len(e.records))
	copy(records, e.records)

	return Entry{
		SourceID:       sourceID,
		Kind:           e.kind,
		Records:        records,
		LastFetchedAt:  e.lastFetchedAt,
		LastError:      e.lastError,
		FailedAttempts: e.failedAttempts,
		Stale:          stale,
	}
}
