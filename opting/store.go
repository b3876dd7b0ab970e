package opting

import (
	"context"
)

// Store defines the persistence contract for opting records.
type Store interface {
	// GetOpting returns the record for (context, reviewer, year), or nil
	// when no record exists.
	GetOpting(ctx context.Context, contextID, reviewerID int64, year int) (*Record, error)

	// PutOpting creates or replaces the record for its
	// (context, reviewer, year) key.
	PutOpting(ctx context.Context, rec *Record) error
}
