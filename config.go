package rqcbridge

import "time"

// DefaultServerURL is the production grading service.
const DefaultServerURL = "https://reviewqualitycollector.org"

// Config holds the configuration for a Bridge instance.
type Config struct {
	// ServerURL is the base URL of the grading service.
	ServerURL string

	// StrictTLS enforces peer and hostname verification. Disable only
	// against a developer or test server.
	StrictTLS bool

	// RequestTimeout is the HTTP timeout per call.
	RequestTimeout time.Duration

	// DrainInterval is how often the internal scheduler (if started) runs
	// a drain cycle. Hosts with their own cron call DrainOnce instead.
	DrainInterval time.Duration

	// Horizon is the age a queued entry must reach to become due again.
	Horizon time.Duration

	// InterCallDelay is the courtesy pause before each drained call.
	InterCallDelay time.Duration

	// BreakerThreshold is the consecutive-failure count that aborts a
	// drain cycle.
	BreakerThreshold int
}

// DefaultConfig returns a Config with production defaults.
func DefaultConfig() Config {
	return Config{
		ServerURL:        DefaultServerURL,
		StrictTLS:        true,
		RequestTimeout:   30 * time.Second,
		DrainInterval:    1 * time.Minute,
		Horizon:          23*time.Hour + 48*time.Minute,
		InterCallDelay:   1 * time.Second,
		BreakerThreshold: 3,
	}
}
