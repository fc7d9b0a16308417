package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog/hlog"

	respond "github.com/recollect/recollect/internal/api/respond"
	"github.com/recollect/recollect/internal/bisect"
	"github.com/recollect/recollect/internal/model"
)

// writeError maps domain errors onto HTTP status codes.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, model.ErrValidation):
		respond.WriteBadRequest(w, err.Error())
	case errors.Is(err, model.ErrNotFound):
		respond.WriteNotFound(w, err.Error())
	case errors.Is(err, model.ErrForbidden):
		respond.WriteForbidden(w, err.Error())
	case errors.Is(err, model.ErrConflict):
		respond.WriteConflict(w, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		hlog.FromRequest(r).Warn().Err(err).Msg("catalog lookup timed out")
		respond.WriteUnavailable(w, "catalog lookup timed out")
	case bisect.IsCatalogInvariant(err):
		hlog.FromRequest(r).Error().Stack().Err(err).Msg("catalog invariant violated")
		respond.WriteInternalError(w, err.Error())
	default:
		hlog.FromRequest(r).Error().Stack().Err(err).Msg("request failed")
		respond.WriteInternalError(w, err.Error())
	}
}
