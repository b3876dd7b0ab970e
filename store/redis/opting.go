package redis

import (
	"context"
	"encoding/json"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/openrev/rqcbridge/id"
	"github.com/openrev/rqcbridge/internal/entity"
	"github.com/openrev/rqcbridge/opting"
)

func optingKey(contextID, reviewerID int64, year int) string {
	return fmt.Sprintf("%s%d:%d:%d", prefixOpting, contextID, reviewerID, year)
}

// GetOpting returns the record for (context, reviewer, year), or nil when
// none exists.
func (s *Store) GetOpting(ctx context.Context, contextID, reviewerID int64, year int) (*opting.Record, error) {
	raw, err := s.client.Get(ctx, optingKey(contextID, reviewerID, year)).Bytes()
	if err == goredis.Nil {
		return nil, nil //nolint:nilnil // absence of a record is not an error
	}
	if err != nil {
		return nil, fmt.Errorf("rqcbridge/redis: get opting: %w", err)
	}

	var rec opting.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("rqcbridge/redis: unmarshal opting: %w", err)
	}
	return &rec, nil
}

// PutOpting creates or replaces the record for its (context, reviewer, year)
// key.
func (s *Store) PutOpting(ctx context.Context, rec *opting.Record) error {
	if rec.ID.IsNil() {
		rec.ID = id.NewOptingID()
		rec.Entity = entity.New()
	} else {
		rec.Touch()
	}

	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("rqcbridge/redis: marshal opting: %w", err)
	}

	key := optingKey(rec.ContextID, rec.ReviewerID, rec.Year)
	if err := s.client.Set(ctx, key, raw, 0).Err(); err != nil {
		return fmt.Errorf("rqcbridge/redis: put opting: %w", err)
	}
	return nil
}
