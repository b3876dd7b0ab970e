package api

import (
	"errors"
	"net/http"

	"github.com/xraph/forge"

	"github.com/openrev/rqcbridge"
	"github.com/openrev/rqcbridge/queue"
)

// mapError converts rqcbridge sentinel errors to Forge HTTP errors.
func mapError(err error) error {
	switch {
	case errors.Is(err, rqcbridge.ErrDelayedCallNotFound):
		return forge.NotFound(err.Error())
	case errors.Is(err, rqcbridge.ErrNotConfigured):
		return forge.BadRequest(err.Error())
	case errors.Is(err, queue.ErrDrainOverlap):
		return forge.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, rqcbridge.ErrNoStore):
		return forge.InternalError(err)
	case errors.Is(err, rqcbridge.ErrStoreClosed):
		return forge.InternalError(err)
	case errors.Is(err, rqcbridge.ErrMigrationFailed):
		return forge.InternalError(err)
	default:
		return forge.InternalError(err)
	}
}
