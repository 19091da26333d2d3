package api

import (
	"errors"
	"net/http"

	"github.com/clipstudio/clipper-agent/internal/metadata"
	"github.com/clipstudio/clipper-agent/internal/studio"
)

// writeDomainError maps the studio error taxonomy onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, studio.ErrValidation):
		WriteError(w, http.StatusBadRequest, err.Error(), "VALIDATION")
	case errors.Is(err, studio.ErrBusy):
		WriteError(w, http.StatusConflict, err.Error(), "BUSY")
	case errors.Is(err, studio.ErrPrecondition):
		WriteError(w, http.StatusConflict, err.Error(), "PRECONDITION")
	case errors.Is(err, studio.ErrNotFound):
		WriteError(w, http.StatusNotFound, err.Error(), "NOT_FOUND")
	case errors.Is(err, studio.ErrMalformedBackup):
		WriteError(w, http.StatusUnprocessableEntity, err.Error(), "MALFORMED_BACKUP")
	default:
		var apiErr *metadata.APIError
		if errors.As(err, &apiErr) {
			WriteError(w, http.StatusBadGateway, apiErr.Error(), "UPSTREAM")
			return
		}
		WriteError(w, http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
	}
}
