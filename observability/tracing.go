package observability

import (
	"context"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/openrev/rqcbridge"

// Tracer provides OpenTelemetry tracing for rqcbridge.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates an rqcbridge tracer.
func NewTracer() *Tracer {
	return &Tracer{
		tracer: otel.Tracer(tracerName),
	}
}

// StartDeliverySpan starts a span for one delivery attempt.
func (t *Tracer) StartDeliverySpan(ctx context.Context, submissionID, contextID int64, mode string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "rqcbridge.delivery",
		trace.WithAttributes(
			attribute.String("rqcbridge.submission_id", strconv.FormatInt(submissionID, 10)),
			attribute.String("rqcbridge.context_id", strconv.FormatInt(contextID, 10)),
			attribute.String("rqcbridge.mode", mode),
		),
	)
}

// EndDeliverySpan ends a delivery span with result attributes.
func (t *Tracer) EndDeliverySpan(span trace.Span, statusCode, latencyMs int, err string) {
	span.SetAttributes(
		attribute.Int("http.status_code", statusCode),
		attribute.Int("rqcbridge.latency_ms", latencyMs),
	)
	if err != "" {
		span.SetAttributes(attribute.String("rqcbridge.error", err))
	}
	span.End()
}

// StartDrainSpan starts a span covering one drain cycle.
func (t *Tracer) StartDrainSpan(ctx context.Context) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "rqcbridge.drain_cycle")
}

// EndDrainSpan ends a drain-cycle span with cycle counters.
func (t *Tracer) EndDrainSpan(span trace.Span, attempted, delivered, failed int, breakerTripped bool) {
	span.SetAttributes(
		attribute.Int("rqcbridge.attempted", attempted),
		attribute.Int("rqcbridge.delivered", delivered),
		attribute.Int("rqcbridge.failed", failed),
		attribute.Bool("rqcbridge.breaker_tripped", breakerTripped),
	)
	span.End()
}
