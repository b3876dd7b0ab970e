// Package queue implements the durable retry queue for failed deliveries and
// the scheduled drainer that redelivers them.
package queue

import (
	"time"

	"github.com/openrev/rqcbridge/id"
	"github.com/openrev/rqcbridge/internal/entity"
)

// DefaultRetryBudget is the number of redelivery attempts a fresh queue
// entry is allowed before being abandoned.
const DefaultRetryBudget = 10

// DefaultHorizon is the age a queue entry must reach before it becomes due
// again. Deliberately offset from a round 24 hours so that a fixed-period
// drain schedule does not phase-lock every entry to the same clock tick.
const DefaultHorizon = 23*time.Hour + 48*time.Minute

// DelayedCall is one pending redelivery. At most one live entry exists per
// submission at any time; enqueueing while one exists replaces it.
type DelayedCall struct {
	entity.Entity

	// ID is the unique TypeID for this entry.
	ID id.ID `json:"id"`

	// SubmissionID is the host submission awaiting redelivery.
	SubmissionID int64 `json:"submission_id"`

	// ContextID is the host journal the submission belongs to.
	ContextID int64 `json:"context_id"`

	// OriginalAttemptAt is when the delivery first failed. Immutable.
	OriginalAttemptAt time.Time `json:"original_attempt_at"`

	// LastAttemptAt is when redelivery was last attempted, nil before the
	// first redelivery.
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`

	// RemainingRetries counts down from DefaultRetryBudget; the entry is
	// deleted when it reaches zero.
	RemainingRetries int `json:"remaining_retries"`
}

// ListOpts configures filtering and pagination for queue listing.
type ListOpts struct {
	Offset    int
	Limit     int
	ContextID int64 // 0 means all journals
}
