package api

import (
	"github.com/openrev/rqcbridge/payload"
)

// ---------------------------------------------------------------------------
// Delivery requests
// ---------------------------------------------------------------------------

// JournalForgeRequest binds the path for journal-scoped routes.
type JournalForgeRequest struct {
	ContextID int64 `description:"Journal identifier" path:"contextId"`
}

// SubmissionForgeRequest binds the path for submission-scoped routes.
type SubmissionForgeRequest struct {
	SubmissionID int64 `description:"Submission identifier" path:"submissionId"`
}

// DeliverSubmissionForgeRequest binds path + body for POST /submissions/:submissionId/deliver.
type DeliverSubmissionForgeRequest struct {
	SubmissionID int64  `description:"Submission identifier"                  path:"submissionId"`
	User         string `description:"Triggering user's email, empty for implicit" json:"user,omitempty"`
}

// CredentialCheckForgeResponse is the response for GET /journals/:contextId/credentials/check.
type CredentialCheckForgeResponse struct {
	Configured bool   `json:"configured"`
	Valid      bool   `json:"valid"`
	StatusCode int    `json:"status_code"`
	Detail     string `json:"detail,omitempty"`
}

// DeliveryForgeResponse is the response for POST /submissions/:submissionId/deliver.
type DeliveryForgeResponse struct {
	Outcome        string   `json:"outcome"`
	StatusCode     int      `json:"status_code"`
	RedirectTarget string   `json:"redirect_target,omitempty"`
	Queued         bool     `json:"queued"`
	DepthOnly      bool     `json:"depth_only"`
	Diagnostics    []string `json:"diagnostics,omitempty"`
}

// PayloadPreviewForgeResponse is the response for GET /submissions/:submissionId/payload.
type PayloadPreviewForgeResponse struct {
	Payload     *payload.DeliveryPayload `json:"payload"`
	Diagnostics []string                 `json:"diagnostics,omitempty"`
}

// ---------------------------------------------------------------------------
// Queue requests
// ---------------------------------------------------------------------------

// ListQueueForgeRequest binds query parameters for GET /queue.
type ListQueueForgeRequest struct {
	ContextID int64 `description:"Filter by journal (0 = all)" query:"context_id"`
	Offset    int   `description:"Pagination offset"           query:"offset"`
	Limit     int   `description:"Page size (default 50)"      query:"limit"`
}

// QueueEntryForgeRequest binds the path for queue entry routes.
type QueueEntryForgeRequest struct {
	CallID string `description:"Queue entry identifier" path:"callId"`
}

// QueueStatsForgeRequest is empty, GET /queue/stats has no parameters.
type QueueStatsForgeRequest struct{}

// QueueStatsForgeResponse is the response for GET /queue/stats.
type QueueStatsForgeResponse struct {
	PendingDeliveries int64 `json:"pending_deliveries"`
}

// DrainForgeRequest is empty, POST /queue/drain has no parameters.
type DrainForgeRequest struct{}

// DrainForgeResponse is the response for POST /queue/drain.
type DrainForgeResponse struct {
	Fetched        int  `json:"fetched"`
	Attempted      int  `json:"attempted"`
	Delivered      int  `json:"delivered"`
	Failed         int  `json:"failed"`
	Skipped        int  `json:"skipped"`
	BreakerTripped bool `json:"breaker_tripped"`
}

// ---------------------------------------------------------------------------
// Opting requests
// ---------------------------------------------------------------------------

// GetOptingForgeRequest binds the path for GET /journals/:contextId/reviewers/:reviewerId/opting.
type GetOptingForgeRequest struct {
	ContextID  int64 `description:"Journal identifier"  path:"contextId"`
	ReviewerID int64 `description:"Reviewer identifier" path:"reviewerId"`
}

// PutOptingForgeRequest binds path + body for PUT /journals/:contextId/reviewers/:reviewerId/opting.
type PutOptingForgeRequest struct {
	ContextID   int64  `description:"Journal identifier"                 path:"contextId"`
	ReviewerID  int64  `description:"Reviewer identifier"                path:"reviewerId"`
	Status      string `description:"Consent decision: unknown, in, out" json:"status"`
	Preliminary bool   `description:"Saved-for-later, not yet final"     json:"preliminary,omitempty"`
}
