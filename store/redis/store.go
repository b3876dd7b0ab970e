// Package redis provides a Redis-backed Store implementation.
package redis

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	bridgestore "github.com/openrev/rqcbridge/store"
)

// compile-time interface check.
var _ bridgestore.Store = (*Store)(nil)

// Store implements store.Store on Redis. Delayed calls live as JSON values
// indexed by two sorted sets; replace semantics are enforced by a Lua script
// so that delete-then-insert is a single atomic step.
type Store struct {
	client goredis.UniversalClient
}

// New creates a Redis-backed store.
func New(client goredis.UniversalClient) *Store {
	return &Store{client: client}
}

// Migrate is a no-op: Redis needs no schema.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("rqcbridge/redis: ping: %w", err)
	}
	return nil
}

// Close closes the client connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// ──────────────────────────────────────────────────
// host.SettingsStore
// ──────────────────────────────────────────────────

func settingKey(contextID int64, key string) string {
	return fmt.Sprintf("%s%d:%s", prefixSetting, contextID, key)
}

// GetSetting returns the value for (contextID, key), or "" when unset.
func (s *Store) GetSetting(ctx context.Context, contextID int64, key string) (string, error) {
	val, err := s.client.Get(ctx, settingKey(contextID, key)).Result()
	if err == goredis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("rqcbridge/redis: get setting: %w", err)
	}
	return val, nil
}

// PutSetting creates or replaces the value for (contextID, key).
func (s *Store) PutSetting(ctx context.Context, contextID int64, key, value string) error {
	if err := s.client.Set(ctx, settingKey(contextID, key), value, 0).Err(); err != nil {
		return fmt.Errorf("rqcbridge/redis: put setting: %w", err)
	}
	return nil
}
