package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/openrev/rqcbridge"
	"github.com/openrev/rqcbridge/id"
	"github.com/openrev/rqcbridge/internal/entity"
	"github.com/openrev/rqcbridge/queue"
)

// delayedCallDoc is the BSON shape of a queued delivery retry.
type delayedCallDoc struct {
	ID                string     `bson:"id"`
	SubmissionID      int64      `bson:"submission_id"`
	ContextID         int64      `bson:"context_id"`
	OriginalAttemptAt time.Time  `bson:"original_attempt_at"`
	LastAttemptAt     *time.Time `bson:"last_attempt_at"`
	RemainingRetries  int        `bson:"remaining_retries"`
	CreatedAt         time.Time  `bson:"created_at"`
	UpdatedAt         time.Time  `bson:"updated_at"`
}

func toDelayedCallDoc(dc *queue.DelayedCall) *delayedCallDoc {
	return &delayedCallDoc{
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

func fromDelayedCallDoc(doc *delayedCallDoc) (*queue.DelayedCall, error) {
	dcID, err := id.ParseDelayedCallID(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("rqcbridge/mongo: parse delayed call ID %q: %w", doc.ID, err)
	}
	return &queue.DelayedCall{
		Entity: entity.Entity{
			CreatedAt: doc.CreatedAt,
			UpdatedAt: doc.UpdatedAt,
		},
		ID:                dcID,
		SubmissionID:      doc.SubmissionID,
		ContextID:         doc.ContextID,
		OriginalAttemptAt: doc.OriginalAttemptAt,
		LastAttemptAt:     doc.LastAttemptAt,
		RemainingRetries:  doc.RemainingRetries,
	}, nil
}

// Enqueue creates a fresh entry for the submission, atomically replacing any
// existing live entry. The unique submission_id index plus a single-document
// ReplaceOne upsert make the replace atomic server-side.
func (s *Store) Enqueue(ctx context.Context, submissionID, contextID int64) (id.ID, error) {
	dc := &queue.DelayedCall{
		Entity:            entity.New(),
		ID:                id.NewDelayedCallID(),
		SubmissionID:      submissionID,
		ContextID:         contextID,
		OriginalAttemptAt: time.Now().UTC(),
		RemainingRetries:  queue.DefaultRetryBudget,
	}

	_, err := s.db.Collection(colDelayedCalls).ReplaceOne(ctx,
		bson.D{{Key: "submission_id", Value: submissionID}},
		toDelayedCallDoc(dc),
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return id.Nil, fmt.Errorf("rqcbridge/mongo: enqueue: %w", err)
	}
	return dc.ID, nil
}

// DueEntries returns entries whose last attempt is at or before the cutoff or
// that were never attempted. BSON null sorts before dates, so one ascending
// sort on last_attempt_at yields never-attempted-first FIFO order.
func (s *Store) DueEntries(ctx context.Context, before time.Time) ([]*queue.DelayedCall, error) {
	filter := bson.D{{Key: "$or", Value: bson.A{
		bson.D{{Key: "last_attempt_at", Value: nil}},
		bson.D{{Key: "last_attempt_at", Value: bson.D{{Key: "$lte", Value: before}}}},
	}}}
	opts := options.Find().SetSort(bson.D{
		{Key: "last_attempt_at", Value: 1},
		{Key: "original_attempt_at", Value: 1},
	})

	cursor, err := s.db.Collection(colDelayedCalls).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("rqcbridge/mongo: due range: %w", err)
	}
	defer cursor.Close(ctx)

	return decodeCalls(ctx, cursor)
}

// RecordFailure decrements the retry budget with an atomic $inc, deleting the
// entry once the budget is exhausted.
func (s *Store) RecordFailure(ctx context.Context, dc *queue.DelayedCall) error {
	ts := time.Now().UTC()
	res := s.db.Collection(colDelayedCalls).FindOneAndUpdate(ctx,
		bson.D{{Key: "id", Value: dc.ID.String()}},
		bson.D{
			{Key: "$inc", Value: bson.D{{Key: "remaining_retries", Value: -1}}},
			{Key: "$set", Value: bson.D{
				{Key: "last_attempt_at", Value: ts},
				{Key: "updated_at", Value: ts},
			}},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)

	var doc delayedCallDoc
	if err := res.Decode(&doc); err != nil {
		if errors.Is(err, mongod.ErrNoDocuments) {
			return rqcbridge.ErrDelayedCallNotFound
		}
		return fmt.Errorf("rqcbridge/mongo: record failure: %w", err)
	}

	dc.RemainingRetries = doc.RemainingRetries
	dc.LastAttemptAt = doc.LastAttemptAt
	dc.UpdatedAt = doc.UpdatedAt

	if doc.RemainingRetries <= 0 {
		if _, err := s.db.Collection(colDelayedCalls).DeleteOne(ctx,
			bson.D{{Key: "id", Value: doc.ID}}); err != nil {
			return fmt.Errorf("rqcbridge/mongo: delete exhausted entry: %w", err)
		}
	}
	return nil
}

// RecordSuccess deletes the entry after a successful redelivery.
func (s *Store) RecordSuccess(ctx context.Context, dc *queue.DelayedCall) error {
	return s.deleteCall(ctx, dc.ID)
}

// GetDelayedCall returns a single entry by ID.
func (s *Store) GetDelayedCall(ctx context.Context, dcID id.ID) (*queue.DelayedCall, error) {
	res := s.db.Collection(colDelayedCalls).FindOne(ctx,
		bson.D{{Key: "id", Value: dcID.String()}})

	var doc delayedCallDoc
	if err := res.Decode(&doc); err != nil {
		if errors.Is(err, mongod.ErrNoDocuments) {
			return nil, rqcbridge.ErrDelayedCallNotFound
		}
		return nil, fmt.Errorf("rqcbridge/mongo: get delayed call: %w", err)
	}
	return fromDelayedCallDoc(&doc)
}

// ListDelayedCalls pages through entries ordered by enqueue time.
func (s *Store) ListDelayedCalls(ctx context.Context, listOpts queue.ListOpts) ([]*queue.DelayedCall, error) {
	filter := bson.D{}
	if listOpts.ContextID != 0 {
		filter = bson.D{{Key: "context_id", Value: listOpts.ContextID}}
	}
	opts := options.Find().SetSort(bson.D{{Key: "original_attempt_at", Value: 1}})
	if listOpts.Offset > 0 {
		opts.SetSkip(int64(listOpts.Offset))
	}
	if listOpts.Limit > 0 {
		opts.SetLimit(int64(listOpts.Limit))
	}

	cursor, err := s.db.Collection(colDelayedCalls).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("rqcbridge/mongo: list delayed calls: %w", err)
	}
	defer cursor.Close(ctx)

	return decodeCalls(ctx, cursor)
}

// CountDelayedCalls returns the number of live entries.
func (s *Store) CountDelayedCalls(ctx context.Context) (int64, error) {
	n, err := s.db.Collection(colDelayedCalls).CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("rqcbridge/mongo: count delayed calls: %w", err)
	}
	return n, nil
}

// DeleteDelayedCall removes an entry by ID.
func (s *Store) DeleteDelayedCall(ctx context.Context, dcID id.ID) error {
	return s.deleteCall(ctx, dcID)
}

func (s *Store) deleteCall(ctx context.Context, dcID id.ID) error {
	res, err := s.db.Collection(colDelayedCalls).DeleteOne(ctx,
		bson.D{{Key: "id", Value: dcID.String()}})
	if err != nil {
		return fmt.Errorf("rqcbridge/mongo: delete delayed call: %w", err)
	}
	if res.DeletedCount == 0 {
		return rqcbridge.ErrDelayedCallNotFound
	}
	return nil
}

func decodeCalls(ctx context.Context, cursor *mongod.Cursor) ([]*queue.DelayedCall, error) {
	var out []*queue.DelayedCall
	for cursor.Next(ctx) {
		var doc delayedCallDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("rqcbridge/mongo: decode delayed call: %w", err)
		}
		dc, err := fromDelayedCallDoc(&doc)
		if err != nil {
			return nil, err
		}
		out = append(out, dc)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("rqcbridge/mongo: cursor: %w", err)
	}
	return out, nil
}
