package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/openrev/rqcbridge/id"
	"github.com/openrev/rqcbridge/internal/entity"
	"github.com/openrev/rqcbridge/opting"
)

// optingDoc is the BSON shape of one reviewer consent record.
type optingDoc struct {
	ID          string        `bson:"id"`
	ContextID   int64         `bson:"context_id"`
	ReviewerID  int64         `bson:"reviewer_id"`
	Year        int           `bson:"year"`
	Status      opting.Status `bson:"status"`
	Preliminary bool          `bson:"preliminary"`
	CreatedAt   time.Time     `bson:"created_at"`
	UpdatedAt   time.Time     `bson:"updated_at"`
}

func fromOptingDoc(doc *optingDoc) (*opting.Record, error) {
	recID, err := id.ParseOptingID(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("rqcbridge/mongo: parse opting ID %q: %w", doc.ID, err)
	}
	return &opting.Record{
		Entity: entity.Entity{
			CreatedAt: doc.CreatedAt,
			UpdatedAt: doc.UpdatedAt,
		},
		ID:          recID,
		ContextID:   doc.ContextID,
		ReviewerID:  doc.ReviewerID,
		Year:        doc.Year,
		Status:      doc.Status,
		Preliminary: doc.Preliminary,
	}, nil
}

// GetOpting returns the record for (context, reviewer, year), or nil when
// none exists.
func (s *Store) GetOpting(ctx context.Context, contextID, reviewerID int64, year int) (*opting.Record, error) {
	res := s.db.Collection(colOpting).FindOne(ctx, bson.D{
		{Key: "context_id", Value: contextID},
		{Key: "reviewer_id", Value: reviewerID},
		{Key: "year", Value: year},
	})

	var doc optingDoc
	if err := res.Decode(&doc); err != nil {
		if errors.Is(err, mongod.ErrNoDocuments) {
			return nil, nil //nolint:nilnil // absence of a record is not an error
		}
		return nil, fmt.Errorf("rqcbridge/mongo: get opting: %w", err)
	}
	return fromOptingDoc(&doc)
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

	_, err := s.db.Collection(colOpting).ReplaceOne(ctx,
		bson.D{
			{Key: "context_id", Value: rec.ContextID},
			{Key: "reviewer_id", Value: rec.ReviewerID},
			{Key: "year", Value: rec.Year},
		},
		&optingDoc{
			ID:          rec.ID.String(),
			ContextID:   rec.ContextID,
			ReviewerID:  rec.ReviewerID,
			Year:        rec.Year,
			Status:      rec.Status,
			Preliminary: rec.Preliminary,
			CreatedAt:   rec.CreatedAt,
			UpdatedAt:   rec.UpdatedAt,
		},
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("rqcbridge/mongo: put opting: %w", err)
	}
	return nil
}
