package queue

import (
	"context"
	"time"

	"github.com/openrev/rqcbridge/id"
)

// Store defines the persistence contract for delayed calls.
type Store interface {
	// Enqueue creates a fresh entry for the submission with a full retry
	// budget, replacing any existing live entry. The delete-then-insert
	// must be atomic so that at most one live entry per submission ever
	// exists, even when an immediate delivery races a drain cycle.
	Enqueue(ctx context.Context, submissionID, contextID int64) (id.ID, error)

	// DueEntries returns the entries whose LastAttemptAt is nil or at most
	// `before`, ordered by LastAttemptAt ascending with nils first, so the
	// queue drains first-in-first-out.
	DueEntries(ctx context.Context, before time.Time) ([]*DelayedCall, error)

	// RecordFailure decrements the entry's retry budget and refreshes
	// LastAttemptAt. When the budget reaches zero the entry is deleted
	// instead of persisted. The mutation must be atomic against concurrent
	// operator actions.
	RecordFailure(ctx context.Context, dc *DelayedCall) error

	// RecordSuccess deletes the entry.
	RecordSuccess(ctx context.Context, dc *DelayedCall) error

	// GetDelayedCall returns an entry by ID.
	GetDelayedCall(ctx context.Context, dcID id.ID) (*DelayedCall, error)

	// ListDelayedCalls returns entries for operator inspection, ordered by
	// OriginalAttemptAt ascending.
	ListDelayedCalls(ctx context.Context, opts ListOpts) ([]*DelayedCall, error)

	// CountDelayedCalls returns the number of live entries.
	CountDelayedCalls(ctx context.Context) (int64, error)

	// DeleteDelayedCall removes an entry by ID (operator abandon).
	DeleteDelayedCall(ctx context.Context, dcID id.ID) error
}
