package gormstore

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/openrev/rqcbridge/id"
	"github.com/openrev/rqcbridge/internal/entity"
	"github.com/openrev/rqcbridge/opting"
)

// optingModel is one reviewer consent row.
type optingModel struct {
	ID          string    `gorm:"column:id;primaryKey;size:40"`
	ContextID   int64     `gorm:"column:context_id;uniqueIndex:ux_opting_key"`
	ReviewerID  int64     `gorm:"column:reviewer_id;uniqueIndex:ux_opting_key"`
	Year        int       `gorm:"column:year;uniqueIndex:ux_opting_key"`
	Status      string    `gorm:"column:status;size:16"`
	Preliminary bool      `gorm:"column:preliminary"`
	CreatedAt   time.Time `gorm:"column:created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
}

func (optingModel) TableName() string { return "rqc_opting" }

func fromOptingModel(m *optingModel) (*opting.Record, error) {
	recID, err := id.ParseOptingID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("rqcbridge/gormstore: parse opting ID %q: %w", m.ID, err)
	}
	return &opting.Record{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:          recID,
		ContextID:   m.ContextID,
		ReviewerID:  m.ReviewerID,
		Year:        m.Year,
		Status:      opting.Status(m.Status),
		Preliminary: m.Preliminary,
	}, nil
}

// GetOpting returns the record for (context, reviewer, year), or nil when
// none exists.
func (s *Store) GetOpting(ctx context.Context, contextID, reviewerID int64, year int) (*opting.Record, error) {
	var m optingModel
	err := s.db.WithContext(ctx).
		Where("context_id = ? AND reviewer_id = ? AND year = ?", contextID, reviewerID, year).
		First(&m).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil //nolint:nilnil // absence of a record is not an error
	}
	if err != nil {
		return nil, fmt.Errorf("rqcbridge/gormstore: get opting: %w", err)
	}
	return fromOptingModel(&m)
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

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("context_id = ? AND reviewer_id = ? AND year = ?",
			rec.ContextID, rec.ReviewerID, rec.Year).
			Delete(&optingModel{}).Error; err != nil {
			return err
		}
		return tx.Create(&optingModel{
			ID:          rec.ID.String(),
			ContextID:   rec.ContextID,
			ReviewerID:  rec.ReviewerID,
			Year:        rec.Year,
			Status:      string(rec.Status),
			Preliminary: rec.Preliminary,
			CreatedAt:   rec.CreatedAt,
			UpdatedAt:   rec.UpdatedAt,
		}).Error
	})
	if err != nil {
		return fmt.Errorf("rqcbridge/gormstore: put opting: %w", err)
	}
	return nil
}
