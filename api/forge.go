// Package api exposes the rqcbridge operator API as Forge HTTP routes:
// credential checks, queue inspection, drain triggering, payload preview and
// reviewer opting management. It is an ops surface, not an end-user UI.
package api

import (
	"net/http"
	"time"

	"github.com/xraph/forge"

	"github.com/openrev/rqcbridge"
	"github.com/openrev/rqcbridge/id"
	"github.com/openrev/rqcbridge/opting"
	"github.com/openrev/rqcbridge/queue"
)

// ForgeAPI wires the operator HTTP handlers together.
type ForgeAPI struct {
	bridge *rqcbridge.Bridge
	log    forge.Logger
}

// NewForgeAPI creates a ForgeAPI around a configured Bridge.
func NewForgeAPI(bridge *rqcbridge.Bridge, log forge.Logger) *ForgeAPI {
	return &ForgeAPI{bridge: bridge, log: log}
}

// RegisterRoutes registers all operator API routes into the given Forge
// router with full OpenAPI metadata.
func (a *ForgeAPI) RegisterRoutes(router forge.Router) {
	a.registerDeliveryRoutes(router)
	a.registerQueueRoutes(router)
	a.registerOptingRoutes(router)
}

// ---------------------------------------------------------------------------
// Delivery routes
// ---------------------------------------------------------------------------

func (a *ForgeAPI) registerDeliveryRoutes(router forge.Router) {
	g := router.Group("", forge.WithGroupTags("delivery"))

	if err := g.GET("/journals/:contextId/credentials/check", a.checkCredentials,
		forge.WithSummary("Check credentials"),
		forge.WithDescription("Verifies the journal's grading-service credentials with a live API call."),
		forge.WithOperationID("checkCredentials"),
		forge.WithResponseSchema(http.StatusOK, "Check result", CredentialCheckForgeResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register checkCredentials route", forge.Error(err))
	}

	if err := g.POST("/submissions/:submissionId/deliver", a.deliverSubmission,
		forge.WithSummary("Deliver submission"),
		forge.WithDescription("Builds and delivers the submission's review data immediately."),
		forge.WithOperationID("deliverSubmission"),
		forge.WithResponseSchema(http.StatusOK, "Delivery outcome", DeliveryForgeResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register deliverSubmission route", forge.Error(err))
	}

	if err := g.GET("/submissions/:submissionId/payload", a.previewPayload,
		forge.WithSummary("Preview payload"),
		forge.WithDescription("Builds the submission's delivery payload without sending it."),
		forge.WithOperationID("previewPayload"),
		forge.WithResponseSchema(http.StatusOK, "Payload preview", PayloadPreviewForgeResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register previewPayload route", forge.Error(err))
	}
}

func (a *ForgeAPI) checkCredentials(ctx forge.Context, req *JournalForgeRequest) (*CredentialCheckForgeResponse, error) {
	check, err := a.bridge.CheckCredentials(ctx.Context(), req.ContextID)
	if err != nil {
		return nil, mapError(err)
	}

	return &CredentialCheckForgeResponse{
		Configured: check.Configured,
		Valid:      check.Valid,
		StatusCode: check.StatusCode,
		Detail:     check.Detail,
	}, nil
}

func (a *ForgeAPI) deliverSubmission(ctx forge.Context, req *DeliverSubmissionForgeRequest) (*DeliveryForgeResponse, error) {
	out, err := a.bridge.DeliverSubmission(ctx.Context(), req.SubmissionID, req.User)
	if err != nil {
		return nil, mapError(err)
	}

	return &DeliveryForgeResponse{
		Outcome:        out.Outcome.String(),
		StatusCode:     out.StatusCode,
		RedirectTarget: out.RedirectTarget,
		Queued:         out.Queued,
		DepthOnly:      out.DepthOnly,
		Diagnostics:    out.Diagnostics,
	}, nil
}

func (a *ForgeAPI) previewPayload(ctx forge.Context, req *SubmissionForgeRequest) (*PayloadPreviewForgeResponse, error) {
	p, diags, err := a.bridge.BuildPayload(ctx.Context(), req.SubmissionID)
	if err != nil {
		return nil, mapError(err)
	}

	return &PayloadPreviewForgeResponse{
		Payload:     p,
		Diagnostics: diags,
	}, nil
}

// ---------------------------------------------------------------------------
// Queue routes
// ---------------------------------------------------------------------------

func (a *ForgeAPI) registerQueueRoutes(router forge.Router) {
	g := router.Group("", forge.WithGroupTags("queue"))

	if err := g.GET("/queue", a.listQueue,
		forge.WithSummary("List queue entries"),
		forge.WithDescription("Returns a paginated list of pending redeliveries."),
		forge.WithOperationID("listQueue"),
		forge.WithRequestSchema(ListQueueForgeRequest{}),
		forge.WithListResponse(queue.DelayedCall{}, http.StatusOK),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register listQueue route", forge.Error(err))
	}

	if err := g.GET("/queue/stats", a.queueStats,
		forge.WithSummary("Queue stats"),
		forge.WithDescription("Returns the number of pending redeliveries."),
		forge.WithOperationID("queueStats"),
		forge.WithResponseSchema(http.StatusOK, "Queue statistics", QueueStatsForgeResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register queueStats route", forge.Error(err))
	}

	if err := g.GET("/queue/:callId", a.getQueueEntry,
		forge.WithSummary("Get queue entry"),
		forge.WithDescription("Returns details of a pending redelivery."),
		forge.WithOperationID("getQueueEntry"),
		forge.WithResponseSchema(http.StatusOK, "Queue entry details", queue.DelayedCall{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register getQueueEntry route", forge.Error(err))
	}

	if err := g.DELETE("/queue/:callId", a.deleteQueueEntry,
		forge.WithSummary("Abandon queue entry"),
		forge.WithDescription("Removes a pending redelivery without attempting it again."),
		forge.WithOperationID("deleteQueueEntry"),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register deleteQueueEntry route", forge.Error(err))
	}

	if err := g.POST("/queue/drain", a.drainQueue,
		forge.WithSummary("Drain queue"),
		forge.WithDescription("Runs one drain cycle over all due queue entries."),
		forge.WithOperationID("drainQueue"),
		forge.WithResponseSchema(http.StatusOK, "Drain report", DrainForgeResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register drainQueue route", forge.Error(err))
	}
}

func (a *ForgeAPI) listQueue(ctx forge.Context, req *ListQueueForgeRequest) ([]*queue.DelayedCall, error) {
	limit := req.Limit
	if limit == 0 {
		limit = 50
	}

	calls, err := a.bridge.Store().ListDelayedCalls(ctx.Context(), queue.ListOpts{
		Offset:    req.Offset,
		Limit:     limit,
		ContextID: req.ContextID,
	})
	if err != nil {
		return nil, mapError(err)
	}

	return calls, nil
}

func (a *ForgeAPI) queueStats(ctx forge.Context, _ *QueueStatsForgeRequest) (*QueueStatsForgeResponse, error) {
	depth, err := a.bridge.Store().CountDelayedCalls(ctx.Context())
	if err != nil {
		return nil, mapError(err)
	}

	return &QueueStatsForgeResponse{PendingDeliveries: depth}, nil
}

func (a *ForgeAPI) getQueueEntry(ctx forge.Context, req *QueueEntryForgeRequest) (*queue.DelayedCall, error) {
	callID, err := id.ParseDelayedCallID(req.CallID)
	if err != nil {
		return nil, forge.BadRequest("invalid queue entry id")
	}

	dc, err := a.bridge.Store().GetDelayedCall(ctx.Context(), callID)
	if err != nil {
		return nil, mapError(err)
	}

	return dc, nil
}

func (a *ForgeAPI) deleteQueueEntry(ctx forge.Context, req *QueueEntryForgeRequest) (*queue.DelayedCall, error) {
	callID, err := id.ParseDelayedCallID(req.CallID)
	if err != nil {
		return nil, forge.BadRequest("invalid queue entry id")
	}

	if err := a.bridge.Store().DeleteDelayedCall(ctx.Context(), callID); err != nil {
		return nil, mapError(err)
	}

	err = ctx.NoContent(http.StatusNoContent)
	if err != nil {
		return nil, mapError(err)
	}

	//nolint:nilnil // response already written via ctx.NoContent.
	return nil, nil
}

func (a *ForgeAPI) drainQueue(ctx forge.Context, _ *DrainForgeRequest) (*DrainForgeResponse, error) {
	report, err := a.bridge.DrainOnce(ctx.Context())
	if err != nil {
		return nil, mapError(err)
	}

	return &DrainForgeResponse{
		Fetched:        report.Fetched,
		Attempted:      report.Attempted,
		Delivered:      report.Delivered,
		Failed:         report.Failed,
		Skipped:        report.Skipped,
		BreakerTripped: report.BreakerTripped,
	}, nil
}

// ---------------------------------------------------------------------------
// Opting routes
// ---------------------------------------------------------------------------

func (a *ForgeAPI) registerOptingRoutes(router forge.Router) {
	g := router.Group("", forge.WithGroupTags("opting"))

	if err := g.GET("/journals/:contextId/reviewers/:reviewerId/opting", a.getOpting,
		forge.WithSummary("Get opting status"),
		forge.WithDescription("Returns the reviewer's consent status for the current year."),
		forge.WithOperationID("getOpting"),
		forge.WithResponseSchema(http.StatusOK, "Opting record", opting.Record{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register getOpting route", forge.Error(err))
	}

	if err := g.PUT("/journals/:contextId/reviewers/:reviewerId/opting", a.putOpting,
		forge.WithSummary("Set opting status"),
		forge.WithDescription("Records the reviewer's consent decision for the current year."),
		forge.WithOperationID("putOpting"),
		forge.WithRequestSchema(PutOptingForgeRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Recorded opting", opting.Record{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register putOpting route", forge.Error(err))
	}
}

func (a *ForgeAPI) getOpting(ctx forge.Context, req *GetOptingForgeRequest) (*opting.Record, error) {
	rec, err := a.bridge.Opting().Status(ctx.Context(), req.ContextID, req.ReviewerID)
	if err != nil {
		return nil, mapError(err)
	}

	return rec, nil
}

func (a *ForgeAPI) putOpting(ctx forge.Context, req *PutOptingForgeRequest) (*opting.Record, error) {
	status := opting.Status(req.Status)
	switch status {
	case opting.StatusIn, opting.StatusOut, opting.StatusUnknown:
	default:
		return nil, forge.BadRequest("status must be one of: unknown, in, out")
	}

	rec := &opting.Record{
		ContextID:   req.ContextID,
		ReviewerID:  req.ReviewerID,
		Year:        time.Now().UTC().Year(),
		Status:      status,
		Preliminary: req.Preliminary,
	}
	if err := a.bridge.Opting().Record(ctx.Context(), rec); err != nil {
		return nil, mapError(err)
	}

	return rec, nil
}
