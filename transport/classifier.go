package transport

// Outcome is the classification of a delivery attempt's HTTP status.
type Outcome int

const (
	// Success means the service accepted the delivery (200, or 303 with a
	// redirect target for interactive calls).
	Success Outcome = iota

	// RetryableFailure means the attempt looked transient and the delivery
	// should be queued for redelivery.
	RetryableFailure

	// PermanentFailure means the attempt indicates a client-side or
	// configuration defect and must not be retried automatically.
	PermanentFailure
)

// String returns the outcome name for logging.
func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case RetryableFailure:
		return "retryable"
	case PermanentFailure:
		return "permanent"
	default:
		return "unknown"
	}
}

// Classify maps an HTTP status code to a delivery outcome. It is a pure
// function and the single source of truth for both the immediate delivery
// path and the queue drainer.
//
// Classification matrix:
//   - 200, 303 → Success
//   - 0 (no response), 408, 429, 500–599 → RetryableFailure
//   - everything else (400, 403, 404, ...) → PermanentFailure
func Classify(statusCode int) Outcome {
	switch {
	case statusCode == 200 || statusCode == 303:
		return Success
	case statusCode == 0 || statusCode == 408 || statusCode == 429:
		return RetryableFailure
	case statusCode >= 500 && statusCode < 600:
		return RetryableFailure
	default:
		return PermanentFailure
	}
}
