package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/openrev/rqcbridge"
	"github.com/openrev/rqcbridge/id"
	"github.com/openrev/rqcbridge/internal/entity"
	"github.com/openrev/rqcbridge/queue"
)

// delayedCallModel is the JSON representation stored in Redis.
type delayedCallModel struct {
	ID                string     `json:"id"`
	SubmissionID      int64      `json:"submission_id"`
	ContextID         int64      `json:"context_id"`
	OriginalAttemptAt time.Time  `json:"original_attempt_at"`
	LastAttemptAt     *time.Time `json:"last_attempt_at,omitempty"`
	RemainingRetries  int        `json:"remaining_retries"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func toDelayedCallModel(dc *queue.DelayedCall) *delayedCallModel {
	return &delayedCallModel{
		ID:                dc.ID.String(),
		SubmissionID:      dc.SubmissionID,
		ContextID:         dc.ContextID,
		OriginalAttemptAt: dc.OriginalAttemptAt,
		LastAttemptAt:     dc.LastAttemptAt,
		RemainingRetries:  dc.RemainingRetries,
		CreatedAt:         dc.CreatedAt,
		UpdatedAt:         dc.UpdatedAt,
	}
}

func fromDelayedCallModel(m *delayedCallModel) (*queue.DelayedCall, error) {
	dcID, err := id.ParseDelayedCallID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("rqcbridge/redis: parse delayed call ID %q: %w", m.ID, err)
	}
	return &queue.DelayedCall{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:                dcID,
		SubmissionID:      m.SubmissionID,
		ContextID:         m.ContextID,
		OriginalAttemptAt: m.OriginalAttemptAt,
		LastAttemptAt:     m.LastAttemptAt,
		RemainingRetries:  m.RemainingRetries,
	}, nil
}

// enqueueScript atomically replaces any live entry for the submission with
// the fresh one.
//
// KEYS[1] = unique submission index key
// KEYS[2] = zCallLastAttempt
// KEYS[3] = zCallOriginal
// KEYS[4] = new entity key
// ARGV[1] = new entity id
// ARGV[2] = entity JSON
// ARGV[3] = original attempt unix (score for KEYS[3])
// ARGV[4] = entity key prefix
var enqueueScript = goredis.NewScript(`
local old = redis.call("GET", KEYS[1])
if old then
  redis.call("DEL", ARGV[4] .. old)
  redis.call("ZREM", KEYS[2], old)
  redis.call("ZREM", KEYS[3], old)
end
redis.call("SET", KEYS[4], ARGV[2])
redis.call("ZADD", KEYS[2], 0, ARGV[1])
redis.call("ZADD", KEYS[3], ARGV[3], ARGV[1])
redis.call("SET", KEYS[1], ARGV[1])
return ARGV[1]
`)

// Enqueue creates a fresh entry for the submission, atomically replacing any
// existing live entry.
func (s *Store) Enqueue(ctx context.Context, submissionID, contextID int64) (id.ID, error) {
	dc := &queue.DelayedCall{
		Entity:            entity.New(),
		ID:                id.NewDelayedCallID(),
		SubmissionID:      submissionID,
		ContextID:         contextID,
		OriginalAttemptAt: time.Now().UTC(),
		RemainingRetries:  queue.DefaultRetryBudget,
	}

	raw, err := json.Marshal(toDelayedCallModel(dc))
	if err != nil {
		return id.Nil, fmt.Errorf("rqcbridge/redis: marshal delayed call: %w", err)
	}

	keys := []string{
		uniqueCallSubmission + fmt.Sprintf("%d", submissionID),
		zCallLastAttempt,
		zCallOriginal,
		entityKey(prefixDelayedCall, dc.ID.String()),
	}
	argv := []any{
		dc.ID.String(),
		raw,
		dc.OriginalAttemptAt.Unix(),
		prefixDelayedCall,
	}

	if err := enqueueScript.Run(ctx, s.client, keys, argv...).Err(); err != nil {
		return id.Nil, fmt.Errorf("rqcbridge/redis: enqueue: %w", err)
	}
	return dc.ID, nil
}

// DueEntries returns entries whose last attempt is at or before the cutoff,
// FIFO (never-attempted first, score 0).
func (s *Store) DueEntries(ctx context.Context, before time.Time) ([]*queue.DelayedCall, error) {
	ids, err := s.client.ZRangeByScore(ctx, zCallLastAttempt, &goredis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%d", before.Unix()),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("rqcbridge/redis: due range: %w", err)
	}
	return s.loadCalls(ctx, ids)
}

// RecordFailure decrements the retry budget under an optimistic transaction,
// deleting the entry when the budget is exhausted.
func (s *Store) RecordFailure(ctx context.Context, dc *queue.DelayedCall) error {
	key := entityKey(prefixDelayedCall, dc.ID.String())

	err := s.client.Watch(ctx, func(tx *goredis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err == goredis.Nil {
			return rqcbridge.ErrDelayedCallNotFound
		}
		if err != nil {
			return err
		}

		var m delayedCallModel
		if err := json.Unmarshal(raw, &m); err != nil {
			return err
		}

		m.RemainingRetries--
		dc.RemainingRetries = m.RemainingRetries

		if m.RemainingRetries <= 0 {
			_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
				s.removeCall(ctx, pipe, m.ID, m.SubmissionID)
				return nil
			})
			return err
		}

		now := time.Now().UTC()
		m.LastAttemptAt = &now
		m.UpdatedAt = now
		dc.LastAttemptAt = &now

		updated, err := json.Marshal(&m)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, key, updated, 0)
			pipe.ZAdd(ctx, zCallLastAttempt, goredis.Z{Score: float64(now.Unix()), Member: m.ID})
			return nil
		})
		return err
	}, key)
	if err != nil {
		return fmt.Errorf("rqcbridge/redis: record failure: %w", err)
	}
	return nil
}

// RecordSuccess deletes the entry.
func (s *Store) RecordSuccess(ctx context.Context, dc *queue.DelayedCall) error {
	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		s.removeCall(ctx, pipe, dc.ID.String(), dc.SubmissionID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("rqcbridge/redis: record success: %w", err)
	}
	return nil
}

// GetDelayedCall returns an entry by ID.
func (s *Store) GetDelayedCall(ctx context.Context, dcID id.ID) (*queue.DelayedCall, error) {
	raw, err := s.client.Get(ctx, entityKey(prefixDelayedCall, dcID.String())).Bytes()
	if err == goredis.Nil {
		return nil, rqcbridge.ErrDelayedCallNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("rqcbridge/redis: get delayed call: %w", err)
	}

	var m delayedCallModel
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("rqcbridge/redis: unmarshal delayed call: %w", err)
	}
	return fromDelayedCallModel(&m)
}

// ListDelayedCalls returns entries ordered by original attempt time.
func (s *Store) ListDelayedCalls(ctx context.Context, opts queue.ListOpts) ([]*queue.DelayedCall, error) {
	ids, err := s.client.ZRange(ctx, zCallOriginal, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("rqcbridge/redis: list range: %w", err)
	}

	calls, err := s.loadCalls(ctx, ids)
	if err != nil {
		return nil, err
	}

	if opts.ContextID != 0 {
		filtered := calls[:0]
		for _, dc := range calls {
			if dc.ContextID == opts.ContextID {
				filtered = append(filtered, dc)
			}
		}
		calls = filtered
	}

	if opts.Offset >= len(calls) {
		return []*queue.DelayedCall{}, nil
	}
	calls = calls[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(calls) {
		calls = calls[:opts.Limit]
	}
	return calls, nil
}

// CountDelayedCalls returns the number of live entries.
func (s *Store) CountDelayedCalls(ctx context.Context) (int64, error) {
	n, err := s.client.ZCard(ctx, zCallOriginal).Result()
	if err != nil {
		return 0, fmt.Errorf("rqcbridge/redis: count: %w", err)
	}
	return n, nil
}

// DeleteDelayedCall removes an entry by ID.
func (s *Store) DeleteDelayedCall(ctx context.Context, dcID id.ID) error {
	dc, err := s.GetDelayedCall(ctx, dcID)
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		s.removeCall(ctx, pipe, dc.ID.String(), dc.SubmissionID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("rqcbridge/redis: delete delayed call: %w", err)
	}
	return nil
}

// removeCall queues the deletion of an entry and all its index members.
func (s *Store) removeCall(ctx context.Context, pipe goredis.Pipeliner, dcID string, submissionID int64) {
	pipe.Del(ctx, entityKey(prefixDelayedCall, dcID))
	pipe.ZRem(ctx, zCallLastAttempt, dcID)
	pipe.ZRem(ctx, zCallOriginal, dcID)
	pipe.Del(ctx, uniqueCallSubmission+fmt.Sprintf("%d", submissionID))
}

// loadCalls fetches entries by id, skipping ids whose value vanished between
// the index scan and the fetch.
func (s *Store) loadCalls(ctx context.Context, ids []string) ([]*queue.DelayedCall, error) {
	if len(ids) == 0 {
		return []*queue.DelayedCall{}, nil
	}

	keys := make([]string, len(ids))
	for i, dcID := range ids {
		keys[i] = entityKey(prefixDelayedCall, dcID)
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("rqcbridge/redis: mget: %w", err)
	}

	calls := make([]*queue.DelayedCall, 0, len(values))
	for _, v := range values {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var m delayedCallModel
		if err := json.Unmarshal([]byte(str), &m); err != nil {
			return nil, fmt.Errorf("rqcbridge/redis: unmarshal delayed call: %w", err)
		}
		dc, err := fromDelayedCallModel(&m)
		if err != nil {
			return nil, err
		}
		calls = append(calls, dc)
	}
	return calls, nil
}
