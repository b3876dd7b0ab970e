package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/openrev/rqcbridge"
	"github.com/openrev/rqcbridge/id"
	"github.com/openrev/rqcbridge/internal/entity"
	"github.com/openrev/rqcbridge/queue"
)

// delayedCallModel is one queued redelivery row.
type delayedCallModel struct {
	ID                string     `gorm:"column:id;primaryKey;size:40"`
	SubmissionID      int64      `gorm:"column:submission_id;uniqueIndex"`
	ContextID         int64      `gorm:"column:context_id;index"`
	OriginalAttemptAt time.Time  `gorm:"column:original_attempt_at;index"`
	LastAttemptAt     *time.Time `gorm:"column:last_attempt_at;index"`
	RemainingRetries  int        `gorm:"column:remaining_retries"`
	CreatedAt         time.Time  `gorm:"column:created_at"`
	UpdatedAt         time.Time  `gorm:"column:updated_at"`
}

func (delayedCallModel) TableName() string { return "rqc_delayed_calls" }

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
		return nil, fmt.Errorf("rqcbridge/gormstore: parse delayed call ID %q: %w", m.ID, err)
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

// Enqueue creates a fresh entry for the submission, replacing any existing
// live entry. Delete and insert run in one transaction.
func (s *Store) Enqueue(ctx context.Context, submissionID, contextID int64) (id.ID, error) {
	dc := &queue.DelayedCall{
		Entity:            entity.New(),
		ID:                id.NewDelayedCallID(),
		SubmissionID:      submissionID,
		ContextID:         contextID,
		OriginalAttemptAt: time.Now().UTC(),
		RemainingRetries:  queue.DefaultRetryBudget,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("submission_id = ?", submissionID).
			Delete(&delayedCallModel{}).Error; err != nil {
			return err
		}
		return tx.Create(toDelayedCallModel(dc)).Error
	})
	if err != nil {
		return id.Nil, fmt.Errorf("rqcbridge/gormstore: enqueue: %w", err)
	}
	return dc.ID, nil
}

// DueEntries returns entries whose last attempt is at or before the cutoff or
// that were never attempted, never-attempted first, oldest first.
func (s *Store) DueEntries(ctx context.Context, before time.Time) ([]*queue.DelayedCall, error) {
	var models []*delayedCallModel
	err := s.db.WithContext(ctx).
		Where("last_attempt_at IS NULL OR last_attempt_at <= ?", before).
		Order("last_attempt_at IS NOT NULL, last_attempt_at ASC, original_attempt_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("rqcbridge/gormstore: due range: %w", err)
	}
	return convertCalls(models)
}

// RecordFailure decrements the retry budget inside a transaction, deleting
// the row when the budget is exhausted.
func (s *Store) RecordFailure(ctx context.Context, dc *queue.DelayedCall) error {
	ts := time.Now().UTC()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&delayedCallModel{}).
			Where("id = ?", dc.ID.String()).
			Updates(map[string]any{
				"remaining_retries": gorm.Expr("remaining_retries - 1"),
				"last_attempt_at":   ts,
				"updated_at":        ts,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return rqcbridge.ErrDelayedCallNotFound
		}

		var m delayedCallModel
		if err := tx.Where("id = ?", dc.ID.String()).First(&m).Error; err != nil {
			return err
		}

		dc.RemainingRetries = m.RemainingRetries
		dc.LastAttemptAt = m.LastAttemptAt
		dc.UpdatedAt = m.UpdatedAt

		if m.RemainingRetries <= 0 {
			return tx.Where("id = ?", m.ID).Delete(&delayedCallModel{}).Error
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, rqcbridge.ErrDelayedCallNotFound) {
			return rqcbridge.ErrDelayedCallNotFound
		}
		return fmt.Errorf("rqcbridge/gormstore: record failure: %w", err)
	}
	return nil
}

// RecordSuccess deletes the entry after a successful redelivery.
func (s *Store) RecordSuccess(ctx context.Context, dc *queue.DelayedCall) error {
	return s.deleteCall(ctx, dc.ID)
}

// GetDelayedCall returns a single entry by ID.
func (s *Store) GetDelayedCall(ctx context.Context, dcID id.ID) (*queue.DelayedCall, error) {
	var m delayedCallModel
	err := s.db.WithContext(ctx).
		Where("id = ?", dcID.String()).
		First(&m).Error
	if err == gorm.ErrRecordNotFound {
		return nil, rqcbridge.ErrDelayedCallNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("rqcbridge/gormstore: get delayed call: %w", err)
	}
	return fromDelayedCallModel(&m)
}

// ListDelayedCalls pages through entries ordered by enqueue time.
func (s *Store) ListDelayedCalls(ctx context.Context, opts queue.ListOpts) ([]*queue.DelayedCall, error) {
	q := s.db.WithContext(ctx).Order("original_attempt_at ASC")
	if opts.ContextID != 0 {
		q = q.Where("context_id = ?", opts.ContextID)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}

	var models []*delayedCallModel
	if err := q.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("rqcbridge/gormstore: list delayed calls: %w", err)
	}
	return convertCalls(models)
}

// CountDelayedCalls returns the number of live entries.
func (s *Store) CountDelayedCalls(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&delayedCallModel{}).Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("rqcbridge/gormstore: count delayed calls: %w", err)
	}
	return n, nil
}

// DeleteDelayedCall removes an entry by ID.
func (s *Store) DeleteDelayedCall(ctx context.Context, dcID id.ID) error {
	return s.deleteCall(ctx, dcID)
}

func (s *Store) deleteCall(ctx context.Context, dcID id.ID) error {
	res := s.db.WithContext(ctx).
		Where("id = ?", dcID.String()).
		Delete(&delayedCallModel{})
	if res.Error != nil {
		return fmt.Errorf("rqcbridge/gormstore: delete delayed call: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return rqcbridge.ErrDelayedCallNotFound
	}
	return nil
}

func convertCalls(models []*delayedCallModel) ([]*queue.DelayedCall, error) {
	out := make([]*queue.DelayedCall, 0, len(models))
	for _, m := range models {
		dc, err := fromDelayedCallModel(m)
		if err != nil {
			return nil, err
		}
		out = append(out, dc)
	}
	return out, nil
}
