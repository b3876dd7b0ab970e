package rqcbridge

import "errors"

// Sentinel errors returned by rqcbridge operations.
var (
	// ErrNoStore is returned when a Bridge is created without a store.
	ErrNoStore = errors.New("rqcbridge: store is required")

	// ErrNoHostStores is returned when a Bridge is created without the
	// host's submission, review, and decision stores.
	ErrNoHostStores = errors.New("rqcbridge: host stores are required")

	// ErrNotConfigured is returned when a delivery is requested for a
	// journal whose grading-service credentials are not set.
	ErrNotConfigured = errors.New("rqcbridge: journal credentials not configured")

	// ErrDelayedCallNotFound is returned when a queue entry cannot be found.
	ErrDelayedCallNotFound = errors.New("rqcbridge: delayed call not found")

	// ErrStoreClosed is returned when a store operation is attempted after
	// the store is closed.
	ErrStoreClosed = errors.New("rqcbridge: store is closed")

	// ErrMigrationFailed is returned when a schema migration fails.
	ErrMigrationFailed = errors.New("rqcbridge: migration failed")
)
