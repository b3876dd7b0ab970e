// Package memory provides an in-memory Store implementation for unit
// testing.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/openrev/rqcbridge"
	"github.com/openrev/rqcbridge/id"
	"github.com/openrev/rqcbridge/internal/entity"
	"github.com/openrev/rqcbridge/opting"
	"github.com/openrev/rqcbridge/queue"
	bridgestore "github.com/openrev/rqcbridge/store"
)

// compile-time interface check.
var _ bridgestore.Store = (*Store)(nil)

// Store is an in-memory implementation of store.Store for testing.
type Store struct {
	mu sync.RWMutex

	calls    map[string]*queue.DelayedCall // keyed by ID string
	optings  map[string]*opting.Record     // keyed by context/reviewer/year
	settings map[string]string             // keyed by context/key

	closed bool
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		calls:    make(map[string]*queue.DelayedCall),
		optings:  make(map[string]*opting.Record),
		settings: make(map[string]string),
	}
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

// Migrate is a no-op for the in-memory store.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping reports whether the store is open.
func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return rqcbridge.ErrStoreClosed
	}
	return nil
}

// Close marks the store as closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// ──────────────────────────────────────────────────
// queue.Store
// ──────────────────────────────────────────────────

// Enqueue creates a fresh entry for the submission, replacing any existing
// live entry under the same lock so two live entries can never coexist.
func (s *Store) Enqueue(_ context.Context, submissionID, contextID int64) (id.ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, dc := range s.calls {
		if dc.SubmissionID == submissionID {
			delete(s.calls, key)
		}
	}

	dc := &queue.DelayedCall{
		Entity:            entity.New(),
		ID:                id.NewDelayedCallID(),
		SubmissionID:      submissionID,
		ContextID:         contextID,
		OriginalAttemptAt: time.Now().UTC(),
		RemainingRetries:  queue.DefaultRetryBudget,
	}
	s.calls[dc.ID.String()] = dc
	return dc.ID, nil
}

// DueEntries returns entries due at or before the horizon cutoff, FIFO by
// LastAttemptAt with never-attempted entries first.
func (s *Store) DueEntries(_ context.Context, before time.Time) ([]*queue.DelayedCall, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var due []*queue.DelayedCall
	for _, dc := range s.calls {
		if dc.LastAttemptAt == nil || !dc.LastAttemptAt.After(before) {
			due = append(due, dc)
		}
	}

	sort.SliceStable(due, func(i, j int) bool {
		a, b := due[i].LastAttemptAt, due[j].LastAttemptAt
		switch {
		case a == nil && b == nil:
			return due[i].OriginalAttemptAt.Before(due[j].OriginalAttemptAt)
		case a == nil:
			return true
		case b == nil:
			return false
		default:
			return a.Before(*b)
		}
	})
	return due, nil
}

// RecordFailure decrements the retry budget, deleting the entry when the
// budget is exhausted.
func (s *Store) RecordFailure(_ context.Context, dc *queue.DelayedCall) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.calls[dc.ID.String()]
	if !ok {
		return rqcbridge.ErrDelayedCallNotFound
	}

	stored.RemainingRetries--
	dc.RemainingRetries = stored.RemainingRetries
	if stored.RemainingRetries <= 0 {
		delete(s.calls, dc.ID.String())
		return nil
	}

	now := time.Now().UTC()
	stored.LastAttemptAt = &now
	stored.Touch()
	dc.LastAttemptAt = &now
	return nil
}

// RecordSuccess deletes the entry.
func (s *Store) RecordSuccess(_ context.Context, dc *queue.DelayedCall) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.calls[dc.ID.String()]; !ok {
		return rqcbridge.ErrDelayedCallNotFound
	}
	delete(s.calls, dc.ID.String())
	return nil
}

// GetDelayedCall returns an entry by ID.
func (s *Store) GetDelayedCall(_ context.Context, dcID id.ID) (*queue.DelayedCall, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dc, ok := s.calls[dcID.String()]
	if !ok {
		return nil, rqcbridge.ErrDelayedCallNotFound
	}
	return dc, nil
}

// ListDelayedCalls returns entries ordered by OriginalAttemptAt ascending.
func (s *Store) ListDelayedCalls(_ context.Context, opts queue.ListOpts) ([]*queue.DelayedCall, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*queue.DelayedCall, 0, len(s.calls))
	for _, dc := range s.calls {
		if opts.ContextID != 0 && dc.ContextID != opts.ContextID {
			continue
		}
		result = append(result, dc)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].OriginalAttemptAt.Before(result[j].OriginalAttemptAt)
	})

	return applyPagination(result, opts.Offset, opts.Limit), nil
}

// CountDelayedCalls returns the number of live entries.
func (s *Store) CountDelayedCalls(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.calls)), nil
}

// DeleteDelayedCall removes an entry by ID.
func (s *Store) DeleteDelayedCall(_ context.Context, dcID id.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.calls[dcID.String()]; !ok {
		return rqcbridge.ErrDelayedCallNotFound
	}
	delete(s.calls, dcID.String())
	return nil
}

// ──────────────────────────────────────────────────
// opting.Store
// ──────────────────────────────────────────────────

func optingKey(contextID, reviewerID int64, year int) string {
	return fmt.Sprintf("%d/%d/%d", contextID, reviewerID, year)
}

// GetOpting returns the record for (context, reviewer, year), or nil when
// none exists.
func (s *Store) GetOpting(_ context.Context, contextID, reviewerID int64, year int) (*opting.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.optings[optingKey(contextID, reviewerID, year)], nil
}

// PutOpting creates or replaces the record for its (context, reviewer, year)
// key.
func (s *Store) PutOpting(_ context.Context, rec *opting.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID.IsNil() {
		rec.ID = id.NewOptingID()
		rec.Entity = entity.New()
	} else {
		rec.Touch()
	}
	s.optings[optingKey(rec.ContextID, rec.ReviewerID, rec.Year)] = rec
	return nil
}

// ──────────────────────────────────────────────────
// host.SettingsStore
// ──────────────────────────────────────────────────

func settingKey(contextID int64, key string) string {
	return fmt.Sprintf("%d/%s", contextID, key)
}

// GetSetting returns the value for (contextID, key), or "" when unset.
func (s *Store) GetSetting(_ context.Context, contextID int64, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings[settingKey(contextID, key)], nil
}

// PutSetting creates or replaces the value for (contextID, key).
func (s *Store) PutSetting(_ context.Context, contextID int64, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[settingKey(contextID, key)] = value
	return nil
}

// applyPagination slices a result set by offset and limit (0 = no limit).
func applyPagination[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
