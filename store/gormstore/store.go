// Package gormstore provides a SQL-backed Store implementation on GORM,
// targeting MySQL.
package gormstore

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	bridgestore "github.com/openrev/rqcbridge/store"
)

// compile-time interface check.
var _ bridgestore.Store = (*Store)(nil)

// Store implements store.Store on a relational database through GORM.
// Replace and decrement semantics run inside transactions so concurrent
// deliveries and operator actions never observe partial queue state.
type Store struct {
	db *gorm.DB
}

// New wraps an existing GORM handle.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Open connects to MySQL with the given DSN and returns a ready store.
// SQL statement logging stays off unless the caller configures its own
// logger through New.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("rqcbridge/gormstore: open: %w", err)
	}
	return &Store{db: db}, nil
}

// Migrate creates or updates the rqcbridge tables.
func (s *Store) Migrate(ctx context.Context) error {
	err := s.db.WithContext(ctx).AutoMigrate(
		&delayedCallModel{},
		&optingModel{},
		&settingModel{},
	)
	if err != nil {
		return fmt.Errorf("rqcbridge/gormstore: migrate: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("rqcbridge/gormstore: ping: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("rqcbridge/gormstore: close: %w", err)
	}
	return sqlDB.Close()
}

// ──────────────────────────────────────────────────
// host.SettingsStore
// ──────────────────────────────────────────────────

// settingModel is one per-journal setting row.
type settingModel struct {
	ContextID int64     `gorm:"column:context_id;uniqueIndex:ux_setting_key"`
	Key       string    `gorm:"column:setting_key;size:64;uniqueIndex:ux_setting_key"`
	Value     string    `gorm:"column:setting_value;type:text"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (settingModel) TableName() string { return "rqc_settings" }

// GetSetting returns the value for (contextID, key), or "" when unset.
func (s *Store) GetSetting(ctx context.Context, contextID int64, key string) (string, error) {
	var m settingModel
	err := s.db.WithContext(ctx).
		Where("context_id = ? AND setting_key = ?", contextID, key).
		First(&m).Error
	if err == gorm.ErrRecordNotFound {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("rqcbridge/gormstore: get setting: %w", err)
	}
	return m.Value, nil
}

// PutSetting creates or replaces the value for (contextID, key).
func (s *Store) PutSetting(ctx context.Context, contextID int64, key, value string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&settingModel{}).
			Where("context_id = ? AND setting_key = ?", contextID, key).
			Updates(map[string]any{"setting_value": value, "updated_at": time.Now().UTC()})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}
		return tx.Create(&settingModel{
			ContextID: contextID,
			Key:       key,
			Value:     value,
			UpdatedAt: time.Now().UTC(),
		}).Error
	})
	if err != nil {
		return fmt.Errorf("rqcbridge/gormstore: put setting: %w", err)
	}
	return nil
}
