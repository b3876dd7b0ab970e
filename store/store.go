// Package store defines the composite Store interface for all rqcbridge
// persistence.
//
// Each subsystem defines its own store interface and the aggregate Store
// composes them. Backends live in subdirectories: memory (testing), redis,
// mongo, and gormstore (MySQL via GORM).
package store

import (
	"context"

	"github.com/openrev/rqcbridge/host"
	"github.com/openrev/rqcbridge/opting"
	"github.com/openrev/rqcbridge/queue"
)

// Store is the aggregate persistence interface.
type Store interface {
	queue.Store
	opting.Store
	host.SettingsStore

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
