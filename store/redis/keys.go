package redis

// Key prefixes for primary entity storage.
const (
	prefixDelayedCall = "rqc:dcall:"
	prefixOpting      = "rqc:opt:"
	prefixSetting     = "rqc:set:"
)

// Key prefixes for unique indexes.
const (
	// uniqueCallSubmission maps a submission id to its single live
	// delayed-call id.
	uniqueCallSubmission = "rqc:u:dcall:sub:"
)

// Sorted set indexes.
const (
	// zCallLastAttempt scores delayed calls by last attempt time, 0 for
	// never-attempted, so a range scan yields due entries FIFO.
	zCallLastAttempt = "rqc:z:dcall:last"

	// zCallOriginal scores delayed calls by original attempt time for
	// operator listing.
	zCallOriginal = "rqc:z:dcall:orig"
)

// entityKey returns the primary key for an entity.
func entityKey(prefix, id string) string {
	return prefix + id
}
