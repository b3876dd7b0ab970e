// Package mongo provides a MongoDB-backed Store implementation.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	bridgestore "github.com/openrev/rqcbridge/store"
)

// Collection name constants.
const (
	colDelayedCalls = "rqc_delayed_calls"
	colOpting       = "rqc_opting"
	colSettings     = "rqc_settings"
)

// compile-time interface check.
var _ bridgestore.Store = (*Store)(nil)

// Store implements store.Store on MongoDB. Replace semantics for the retry
// queue rely on a unique submission_id index plus single-document upserts,
// which MongoDB executes atomically.
type Store struct {
	client *mongod.Client
	db     *mongod.Database
}

// New creates a MongoDB-backed store on the given database.
func New(client *mongod.Client, database string) *Store {
	return &Store{
		client: client,
		db:     client.Database(database),
	}
}

// Migrate creates the indexes for all rqcbridge collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := map[string][]mongod.IndexModel{
		colDelayedCalls: {
			{
				Keys:    bson.D{{Key: "id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{
				Keys:    bson.D{{Key: "submission_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "last_attempt_at", Value: 1}}},
			{Keys: bson.D{{Key: "original_attempt_at", Value: 1}}},
			{Keys: bson.D{{Key: "context_id", Value: 1}}},
		},
		colOpting: {
			{
				Keys: bson.D{
					{Key: "context_id", Value: 1},
					{Key: "reviewer_id", Value: 1},
					{Key: "year", Value: 1},
				},
				Options: options.Index().SetUnique(true),
			},
		},
		colSettings: {
			{
				Keys: bson.D{
					{Key: "context_id", Value: 1},
					{Key: "key", Value: 1},
				},
				Options: options.Index().SetUnique(true),
			},
		},
	}

	for col, models := range indexes {
		if _, err := s.db.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("rqcbridge/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// ──────────────────────────────────────────────────
// host.SettingsStore
// ──────────────────────────────────────────────────

// settingDoc is the BSON shape of one per-journal setting.
type settingDoc struct {
	ContextID int64     `bson:"context_id"`
	Key       string    `bson:"key"`
	Value     string    `bson:"value"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// GetSetting returns the value for (contextID, key), or "" when unset.
func (s *Store) GetSetting(ctx context.Context, contextID int64, key string) (string, error) {
	res := s.db.Collection(colSettings).FindOne(ctx, bson.D{
		{Key: "context_id", Value: contextID},
		{Key: "key", Value: key},
	})

	var doc settingDoc
	if err := res.Decode(&doc); err != nil {
		if errors.Is(err, mongod.ErrNoDocuments) {
			return "", nil
		}
		return "", fmt.Errorf("rqcbridge/mongo: get setting: %w", err)
	}
	return doc.Value, nil
}

// PutSetting creates or replaces the value for (contextID, key).
func (s *Store) PutSetting(ctx context.Context, contextID int64, key, value string) error {
	_, err := s.db.Collection(colSettings).ReplaceOne(ctx,
		bson.D{
			{Key: "context_id", Value: contextID},
			{Key: "key", Value: key},
		},
		&settingDoc{
			ContextID: contextID,
			Key:       key,
			Value:     value,
			UpdatedAt: time.Now().UTC(),
		},
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("rqcbridge/mongo: put setting: %w", err)
	}
	return nil
}
