package opting

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Service resolves effective opting statuses and records new decisions.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates an opting service.
func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

// IsOptedOut resolves whether the reviewer has a current-year, non-preliminary
// OUT decision on file for the journal. Absence of any record means the
// reviewer is not opted out.
func (svc *Service) IsOptedOut(ctx context.Context, contextID, reviewerID int64) (bool, error) {
	rec, err := svc.store.GetOpting(ctx, contextID, reviewerID, time.Now().UTC().Year())
	if err != nil {
		return false, fmt.Errorf("opting: get record: %w", err)
	}
	if rec == nil || !rec.EffectiveAt(time.Now().UTC()) {
		return false, nil
	}
	return rec.Status == StatusOut, nil
}

// Status returns the reviewer's current-year record, or a synthesized
// StatusUnknown record when none exists.
func (svc *Service) Status(ctx context.Context, contextID, reviewerID int64) (*Record, error) {
	year := time.Now().UTC().Year()
	rec, err := svc.store.GetOpting(ctx, contextID, reviewerID, year)
	if err != nil {
		return nil, fmt.Errorf("opting: get record: %w", err)
	}
	if rec == nil {
		return &Record{
			ContextID:  contextID,
			ReviewerID: reviewerID,
			Year:       year,
			Status:     StatusUnknown,
		}, nil
	}
	return rec, nil
}

// Record stores a reviewer's decision for the current year, replacing any
// earlier record for the same (context, reviewer, year).
func (svc *Service) Record(ctx context.Context, rec *Record) error {
	if rec.Year == 0 {
		rec.Year = time.Now().UTC().Year()
	}
	if err := svc.store.PutOpting(ctx, rec); err != nil {
		return fmt.Errorf("opting: put record: %w", err)
	}

	svc.logger.DebugContext(ctx, "opting recorded",
		"context_id", rec.ContextID,
		"reviewer_id", rec.ReviewerID,
		"year", rec.Year,
		"status", rec.Status,
		"preliminary", rec.Preliminary,
	)
	return nil
}
