// Package rqcbridge is the reliable-delivery core of a journal-management
// plugin for the Review Quality Collector (RQC) grading service.
//
// rqcbridge is a library, not a service. The host journal application feeds
// it submission, review, and decision records through narrow read
// interfaces; rqcbridge assembles the review-quality payload (applying size
// limits and reviewer-privacy rules), delivers it over HTTPS, and retries
// transient failures through a durable, budget-bounded queue.
//
// Key behaviors:
//   - Deterministic payload construction with truncation diagnostics
//   - Pseudonymous reviewer identities for opted-out reviewers
//   - Pure status-code classification: success / retryable / permanent
//   - At most one live retry entry per submission (atomic replace)
//   - Sequential drain cycles with a consecutive-failure circuit breaker
//   - Composable store pattern with multiple backends (Memory, Redis,
//     MongoDB, MySQL via GORM)
//
// Quick start:
//
//	b, err := rqcbridge.New(
//	    rqcbridge.WithStore(memoryStore),
//	    rqcbridge.WithHostStores(submissions, reviews, decisions),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// On an editorial decision:
//	out, err := b.DeliverSubmission(ctx, submissionID, editorEmail)
//
//	// From the host's scheduler, once a minute:
//	report, err := b.DrainOnce(ctx)
package rqcbridge
