package httptransport

import (
	"errors"
	"net/http"

	"scoreboard/internal/app/history"
	appsession "scoreboard/internal/app/session"
	"scoreboard/internal/storage"

	"github.com/rs/zerolog/log"
)

var errTrailingData = errors.New("trailing data after request body")

// writeServiceError maps engine and archive errors onto the wire codes.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case storage.IsUnavailable(err):
		metricStorageUnavailable.Add(1)
		log.Error().Err(err).Msg("storage unavailable")
		WriteHTTPError(w, http.StatusServiceUnavailable, "storage_unavailable")
	case errors.Is(err, appsession.ErrNoSession):
		WriteHTTPError(w, http.StatusConflict, "no_session")
	case errors.Is(err, history.ErrInvalidKey):
		WriteHTTPError(w, http.StatusBadRequest, "invalid_key")
	case errors.Is(err, history.ErrEntryNotFound):
		WriteHTTPError(w, http.StatusNotFound, "entry_not_found")
	default:
		log.Error().Err(err).Msg("unhandled service error")
		WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
	}
}
