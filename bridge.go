package rqcbridge

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/openrev/rqcbridge/host"
	"github.com/openrev/rqcbridge/opting"
	"github.com/openrev/rqcbridge/payload"
	"github.com/openrev/rqcbridge/queue"
	"github.com/openrev/rqcbridge/store"
	"github.com/openrev/rqcbridge/transport"
)

// wireServices initializes the internal services after options have been
// applied.
func (b *Bridge) wireServices() {
	b.client = transport.NewClient(b.config.RequestTimeout, b.config.StrictTLS)
	b.optingSvc = opting.NewService(b.store, b.logger)
	b.builder = payload.NewBuilder(b.submissions, b.reviews, b.decisions, b.store, b.optingSvc, b.logger)
	b.drainer = queue.NewDrainer(b.store, b, b, queue.DrainerConfig{
		Horizon:          b.config.Horizon,
		InterCallDelay:   b.config.InterCallDelay,
		BreakerThreshold: b.config.BreakerThreshold,
		Metrics:          b.metrics,
		Tracer:           b.tracer,
	}, b.logger)
}

// DeliveryOutcome is the result of an immediate delivery, shaped for display
// to the triggering user.
type DeliveryOutcome struct {
	// Outcome is the classified result of the call.
	Outcome transport.Outcome

	// StatusCode is the HTTP status the service answered with, 0 when no
	// response was received.
	StatusCode int

	// RedirectTarget is set on a 303 response; interactive callers should
	// send the user there.
	RedirectTarget string

	// Queued is true when the delivery was enqueued for background retry.
	Queued bool

	// DepthOnly is true when the journal is in dry-run mode and no call
	// was made.
	DepthOnly bool

	// Diagnostics are the payload-construction notes (truncations etc.)
	// plus any response-parsing complaints.
	Diagnostics []string

	// ResponseBody is the raw response body, retained for the diagnostic
	// dump on permanent failures.
	ResponseBody string
}

// DeliverSubmission is the "deliver now" entry point, invoked on an
// editorial decision or a manual trigger. interactiveUser is the triggering
// user's email, or empty for non-interactive invocation.
//
// A retryable failure enqueues the submission for background redelivery
// (replacing any existing entry); a permanent failure is logged and NOT
// enqueued. Unexpected panics from host collaborators are converted into an
// error rather than crashing the host process.
func (b *Bridge) DeliverSubmission(ctx context.Context, submissionID int64, interactiveUser string) (out *DeliveryOutcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("rqcbridge: delivery panicked: %v", r)
			b.logger.ErrorContext(ctx, "delivery panicked",
				"submission_id", submissionID, "panic", r)
		}
	}()

	sub, err := b.submissions.Get(ctx, submissionID)
	if err != nil {
		return nil, fmt.Errorf("rqcbridge: get submission %d: %w", submissionID, err)
	}

	creds, err := b.Credentials(ctx, sub.ContextID)
	if err != nil {
		return nil, err
	}
	if !creds.Configured() {
		return nil, ErrNotConfigured
	}

	p, diags, err := b.builder.BuildFrom(ctx, sub, interactiveUser)
	if err != nil {
		return nil, err
	}

	if creds.DepthOnly {
		b.logger.InfoContext(ctx, "depth-only mode, delivery suppressed",
			"submission_id", submissionID, "context_id", sub.ContextID)
		return &DeliveryOutcome{DepthOnly: true, Diagnostics: diags}, nil
	}

	var span trace.Span
	if b.tracer != nil {
		ctx, span = b.tracer.StartDeliverySpan(ctx, sub.ID, sub.ContextID, deliveryMode(interactiveUser))
	}

	res := b.client.PostSubmission(ctx, b.config.ServerURL, creds.JournalID, sub.ID, creds.APIKey, p)

	if span != nil {
		b.tracer.EndDeliverySpan(span, res.StatusCode, res.LatencyMs, res.Error)
	}

	outcome := res.Outcome()
	if b.metrics != nil {
		b.metrics.RecordDelivery(outcome.String(), float64(res.LatencyMs)/1000.0)
	}
	if res.Error != "" {
		diags = append(diags, res.Error)
	}

	out = &DeliveryOutcome{
		Outcome:      outcome,
		StatusCode:   res.StatusCode,
		Diagnostics:  diags,
		ResponseBody: res.RawBody,
	}

	switch outcome {
	case transport.Success:
		out.RedirectTarget = res.RedirectTarget()
		b.logger.InfoContext(ctx, "delivery accepted",
			"submission_id", sub.ID,
			"context_id", sub.ContextID,
			"status", res.StatusCode,
		)

	case transport.RetryableFailure:
		if _, qErr := b.store.Enqueue(ctx, sub.ID, sub.ContextID); qErr != nil {
			return nil, fmt.Errorf("rqcbridge: enqueue submission %d: %w", sub.ID, qErr)
		}
		out.Queued = true
		b.logger.WarnContext(ctx, "delivery failed, queued for retry",
			"submission_id", sub.ID,
			"context_id", sub.ContextID,
			"status", res.StatusCode,
			"error", res.Error,
		)

	case transport.PermanentFailure:
		b.logger.ErrorContext(ctx, "delivery failed permanently",
			"submission_id", sub.ID,
			"context_id", sub.ContextID,
			"status", res.StatusCode,
			"error", res.Error,
			"body", res.RawBody,
		)
	}

	return out, nil
}

// DrainOnce is the scheduled-task entry point: one drain cycle over all due
// queue entries. Safe to call from a host cron; overlapping invocations
// return queue.ErrDrainOverlap. Panics are converted into an error.
func (b *Bridge) DrainOnce(ctx context.Context) (report queue.Report, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("rqcbridge: drain cycle panicked: %v", r)
			b.logger.ErrorContext(ctx, "drain cycle panicked", "panic", r)
		}
	}()
	return b.drainer.DrainOnce(ctx)
}

// Start begins the internal drain scheduler for hosts without their own
// cron facility.
func (b *Bridge) Start(ctx context.Context) {
	ctx, b.cancel = context.WithCancel(ctx)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()

		ticker := time.NewTicker(b.config.DrainInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := b.DrainOnce(ctx); err != nil && err != queue.ErrDrainOverlap {
					b.logger.ErrorContext(ctx, "drain cycle failed", "error", err)
				}
			}
		}
	}()
}

// Stop cancels the internal scheduler and waits for an in-flight cycle.
func (b *Bridge) Stop(_ context.Context) {
	if b.cancel != nil {
		b.cancel()
	}
	b.wg.Wait()
}

// CredentialCheck is the result of verifying a journal's grading-service
// credentials.
type CredentialCheck struct {
	Configured bool
	Valid      bool
	StatusCode int
	Detail     string
}

// CheckCredentials verifies a journal's credentials against the service.
// 200 means valid; 400/404 a bad journal id; 403 a bad key; 5xx or no
// response a service problem (credentials undetermined).
func (b *Bridge) CheckCredentials(ctx context.Context, contextID int64) (CredentialCheck, error) {
	creds, err := b.Credentials(ctx, contextID)
	if err != nil {
		return CredentialCheck{}, err
	}
	if !creds.Configured() {
		return CredentialCheck{Detail: "journal id or API key not set"}, nil
	}

	res := b.client.CheckAPIKey(ctx, b.config.ServerURL, creds.JournalID, creds.APIKey)

	check := CredentialCheck{
		Configured: true,
		StatusCode: res.StatusCode,
	}
	switch {
	case res.StatusCode == 200:
		check.Valid = true
	case res.StatusCode == 400 || res.StatusCode == 404:
		check.Detail = "journal id not known to the grading service"
	case res.StatusCode == 403:
		check.Detail = "API key rejected"
	case res.StatusCode == 0:
		check.Detail = "service unreachable: " + res.Error
	default:
		check.Detail = fmt.Sprintf("unexpected status %d", res.StatusCode)
	}
	return check, nil
}

// Credentials resolves a journal's grading-service settings. Implements
// queue.CredentialsSource for the drainer.
func (b *Bridge) Credentials(ctx context.Context, contextID int64) (queue.Credentials, error) {
	journalID, err := b.store.GetSetting(ctx, contextID, host.SettingJournalID)
	if err != nil {
		return queue.Credentials{}, fmt.Errorf("rqcbridge: read journal id: %w", err)
	}
	apiKey, err := b.store.GetSetting(ctx, contextID, host.SettingAPIKey)
	if err != nil {
		return queue.Credentials{}, fmt.Errorf("rqcbridge: read API key: %w", err)
	}
	depthOnly, err := b.store.GetSetting(ctx, contextID, host.SettingDepthOnly)
	if err != nil {
		return queue.Credentials{}, fmt.Errorf("rqcbridge: read depth-only flag: %w", err)
	}
	return queue.Credentials{
		JournalID: journalID,
		APIKey:    apiKey,
		DepthOnly: depthOnly == "1",
	}, nil
}

// Redeliver rebuilds a queued submission's payload from current host data
// and POSTs it. Implements queue.Redeliverer for the drainer.
func (b *Bridge) Redeliver(ctx context.Context, dc *queue.DelayedCall, creds queue.Credentials) transport.Result {
	// Background redelivery is never interactive.
	p, diags, err := b.builder.Build(ctx, dc.SubmissionID, "")
	if err != nil {
		// The submission may have been deleted since it was queued; report
		// it as a permanent condition so the budget runs out.
		return transport.Result{StatusCode: 404, Error: err.Error()}
	}
	for _, d := range diags {
		b.logger.DebugContext(ctx, "payload diagnostic",
			"submission_id", dc.SubmissionID, "note", d)
	}

	var span trace.Span
	if b.tracer != nil {
		ctx, span = b.tracer.StartDeliverySpan(ctx, dc.SubmissionID, dc.ContextID, "delayed")
	}
	res := b.client.PostSubmission(ctx, b.config.ServerURL, creds.JournalID, dc.SubmissionID, creds.APIKey, p)
	if span != nil {
		b.tracer.EndDeliverySpan(span, res.StatusCode, res.LatencyMs, res.Error)
	}
	return res
}

// BuildPayload constructs a submission's payload without delivering it, for
// operator preview.
func (b *Bridge) BuildPayload(ctx context.Context, submissionID int64) (*payload.DeliveryPayload, []string, error) {
	return b.builder.Build(ctx, submissionID, "")
}

// Opting returns the reviewer consent service.
func (b *Bridge) Opting() *opting.Service {
	return b.optingSvc
}

// Store returns the underlying aggregate store.
func (b *Bridge) Store() store.Store {
	return b.store
}

// deliveryMode names the delivery path for tracing.
func deliveryMode(interactiveUser string) string {
	if interactiveUser == "" {
		return "implicit"
	}
	return "explicit"
}
