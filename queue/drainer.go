package queue

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/openrev/rqcbridge/observability"
	"github.com/openrev/rqcbridge/transport"
)

// ErrDrainOverlap is returned when a drain cycle is requested while a prior
// one is still running.
var ErrDrainOverlap = errors.New("queue: drain cycle already in progress")

// Credentials is a journal's grading-service configuration as the drainer
// needs it.
type Credentials struct {
	// JournalID is the journal's identifier on the grading service.
	JournalID string

	// APIKey authenticates calls for this journal.
	APIKey string

	// DepthOnly suppresses outbound calls for this journal (operator
	// dry-run); queued entries are left untouched.
	DepthOnly bool
}

// Configured reports whether the credentials are complete enough to attempt
// a delivery.
func (c Credentials) Configured() bool {
	return c.JournalID != "" && c.APIKey != ""
}

// CredentialsSource resolves a journal's credentials.
type CredentialsSource interface {
	Credentials(ctx context.Context, contextID int64) (Credentials, error)
}

// Redeliverer performs one redelivery attempt for a queued entry: rebuild
// the payload from current host data and POST it.
type Redeliverer interface {
	Redeliver(ctx context.Context, dc *DelayedCall, creds Credentials) transport.Result
}

// DrainerConfig holds drainer tuning.
type DrainerConfig struct {
	// Horizon is the age a queue entry must reach to become due.
	Horizon time.Duration

	// InterCallDelay is the courtesy pause before each outbound call.
	InterCallDelay time.Duration

	// BreakerThreshold is the number of consecutive failures that aborts
	// the remainder of a cycle.
	BreakerThreshold int

	Metrics *observability.Metrics
	Tracer  *observability.Tracer
}

// Report summarizes one drain cycle.
type Report struct {
	Fetched        int
	Attempted      int
	Delivered      int
	Failed         int
	Skipped        int
	BreakerTripped bool
}

// Drainer walks the retry queue once per invocation and redelivers due
// entries sequentially.
type Drainer struct {
	store  Store
	creds  CredentialsSource
	sender Redeliverer
	config DrainerConfig
	logger *slog.Logger

	mu sync.Mutex // enforces non-overlapping cycles
}

// NewDrainer creates a queue drainer.
func NewDrainer(store Store, creds CredentialsSource, sender Redeliverer, cfg DrainerConfig, logger *slog.Logger) *Drainer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Horizon <= 0 {
		cfg.Horizon = DefaultHorizon
	}
	if cfg.BreakerThreshold <= 0 {
		cfg.BreakerThreshold = 3
	}
	return &Drainer{
		store:  store,
		creds:  creds,
		sender: sender,
		config: cfg,
		logger: logger,
	}
}

// DrainOnce runs a single drain cycle: fetch all due entries and attempt
// redelivery for each, strictly in order. Returns ErrDrainOverlap when a
// prior cycle is still running.
//
// Per entry: journals without configured credentials are skipped untouched
// (they become due again once credentials are fixed). Success deletes the
// entry; any failure, retryable or permanent, runs the budget down, so a
// persistently misconfigured submission eventually stops being retried.
// After BreakerThreshold consecutive failures the remainder of the cycle is
// abandoned on the assumption of a systemic outage; untouched entries stay
// due for the next cycle.
func (d *Drainer) DrainOnce(ctx context.Context) (Report, error) {
	if !d.mu.TryLock() {
		return Report{}, ErrDrainOverlap
	}
	defer d.mu.Unlock()

	var span trace.Span
	if d.config.Tracer != nil {
		ctx, span = d.config.Tracer.StartDrainSpan(ctx)
	}

	var report Report
	defer func() {
		if span != nil {
			d.config.Tracer.EndDrainSpan(span, report.Attempted, report.Delivered, report.Failed, report.BreakerTripped)
		}
		if d.config.Metrics != nil {
			d.config.Metrics.RecordDrainCycle()
			if n, err := d.store.CountDelayedCalls(ctx); err == nil {
				d.config.Metrics.QueueDepth.Set(float64(n))
			}
		}
	}()

	due, err := d.store.DueEntries(ctx, time.Now().UTC().Add(-d.config.Horizon))
	if err != nil {
		return report, err
	}
	report.Fetched = len(due)

	consecutiveFailures := 0
	for _, dc := range due {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}

		creds, err := d.creds.Credentials(ctx, dc.ContextID)
		if err != nil || !creds.Configured() || creds.DepthOnly {
			report.Skipped++
			d.logger.DebugContext(ctx, "skipping queued delivery",
				"submission_id", dc.SubmissionID,
				"context_id", dc.ContextID,
				"configured", err == nil && creds.Configured(),
				"depth_only", creds.DepthOnly,
			)
			continue
		}

		// Courtesy pause toward the external service.
		if d.config.InterCallDelay > 0 {
			select {
			case <-ctx.Done():
				return report, ctx.Err()
			case <-time.After(d.config.InterCallDelay):
			}
		}

		report.Attempted++
		res := d.sender.Redeliver(ctx, dc, creds)
		outcome := res.Outcome()

		if d.config.Metrics != nil {
			d.config.Metrics.RecordDelivery(outcome.String(), float64(res.LatencyMs)/1000.0)
		}

		switch outcome {
		case transport.Success:
			if err := d.store.RecordSuccess(ctx, dc); err != nil {
				d.logger.ErrorContext(ctx, "record success failed",
					"submission_id", dc.SubmissionID, "error", err)
			}
			consecutiveFailures = 0
			report.Delivered++
			d.logger.InfoContext(ctx, "queued delivery succeeded",
				"submission_id", dc.SubmissionID,
				"context_id", dc.ContextID,
				"status", res.StatusCode,
			)

		default:
			if err := d.store.RecordFailure(ctx, dc); err != nil {
				d.logger.ErrorContext(ctx, "record failure failed",
					"submission_id", dc.SubmissionID, "error", err)
			}
			consecutiveFailures++
			report.Failed++
			d.logger.WarnContext(ctx, "queued delivery failed",
				"submission_id", dc.SubmissionID,
				"context_id", dc.ContextID,
				"status", res.StatusCode,
				"outcome", outcome.String(),
				"remaining_retries", dc.RemainingRetries,
				"error", res.Error,
				"body", res.RawBody,
			)
		}

		if consecutiveFailures >= d.config.BreakerThreshold {
			report.BreakerTripped = true
			if d.config.Metrics != nil {
				d.config.Metrics.RecordBreakerTrip()
			}
			d.logger.WarnContext(ctx, "circuit breaker tripped, aborting drain cycle",
				"consecutive_failures", consecutiveFailures,
				"remaining_entries", report.Fetched-report.Attempted-report.Skipped,
			)
			break
		}
	}

	return report, nil
}
