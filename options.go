package rqcbridge

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/openrev/rqcbridge/host"
	"github.com/openrev/rqcbridge/observability"
	"github.com/openrev/rqcbridge/opting"
	"github.com/openrev/rqcbridge/payload"
	"github.com/openrev/rqcbridge/queue"
	"github.com/openrev/rqcbridge/store"
	"github.com/openrev/rqcbridge/transport"
)

// Bridge is the root delivery engine connecting a journal host to the RQC
// grading service.
type Bridge struct {
	config      Config
	store       store.Store
	submissions host.SubmissionStore
	reviews     host.ReviewStore
	decisions   host.DecisionStore

	client    *transport.Client
	builder   *payload.Builder
	optingSvc *opting.Service
	drainer   *queue.Drainer

	logger  *slog.Logger
	metrics *observability.Metrics
	tracer  *observability.Tracer

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Bridge instance.
type Option func(*Bridge) error

// New creates a new Bridge with the given options. A store and the three
// host read stores are required.
func New(opts ...Option) (*Bridge, error) {
	b := &Bridge{
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, err
		}
	}
	if b.store == nil {
		return nil, ErrNoStore
	}
	if b.submissions == nil || b.reviews == nil || b.decisions == nil {
		return nil, ErrNoHostStores
	}
	b.wireServices()
	return b, nil
}

// WithStore sets the persistence backend for queue, opting, and settings.
func WithStore(s store.Store) Option {
	return func(b *Bridge) error {
		b.store = s
		return nil
	}
}

// WithHostStores sets the host application's read interfaces.
func WithHostStores(submissions host.SubmissionStore, reviews host.ReviewStore, decisions host.DecisionStore) Option {
	return func(b *Bridge) error {
		b.submissions = submissions
		b.reviews = reviews
		b.decisions = decisions
		return nil
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bridge) error {
		b.logger = logger
		return nil
	}
}

// WithServerURL sets the grading service base URL.
func WithServerURL(url string) Option {
	return func(b *Bridge) error {
		b.config.ServerURL = url
		return nil
	}
}

// WithStrictTLS toggles TLS peer verification. Disable only against a
// developer or test server.
func WithStrictTLS(strict bool) Option {
	return func(b *Bridge) error {
		b.config.StrictTLS = strict
		return nil
	}
}

// WithRequestTimeout sets the HTTP timeout per call.
func WithRequestTimeout(d time.Duration) Option {
	return func(b *Bridge) error {
		b.config.RequestTimeout = d
		return nil
	}
}

// WithDrainInterval sets how often the internal scheduler runs a drain cycle.
func WithDrainInterval(d time.Duration) Option {
	return func(b *Bridge) error {
		b.config.DrainInterval = d
		return nil
	}
}

// WithHorizon sets the age a queued entry must reach to become due again.
func WithHorizon(d time.Duration) Option {
	return func(b *Bridge) error {
		b.config.Horizon = d
		return nil
	}
}

// WithInterCallDelay sets the courtesy pause before each drained call.
func WithInterCallDelay(d time.Duration) Option {
	return func(b *Bridge) error {
		b.config.InterCallDelay = d
		return nil
	}
}

// WithBreakerThreshold sets the consecutive-failure count that aborts a
// drain cycle.
func WithBreakerThreshold(n int) Option {
	return func(b *Bridge) error {
		b.config.BreakerThreshold = n
		return nil
	}
}

// WithMetrics sets the metric instruments.
func WithMetrics(m *observability.Metrics) Option {
	return func(b *Bridge) error {
		b.metrics = m
		return nil
	}
}

// WithTracer sets the OpenTelemetry tracer.
func WithTracer(t *observability.Tracer) Option {
	return func(b *Bridge) error {
		b.tracer = t
		return nil
	}
}
