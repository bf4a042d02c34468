package handlers

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"bkmrks/internal/utils"
)

// writeError maps service errors to HTTP responses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	if ve, ok := utils.AsValidationError(err); ok {
		utils.SendValidationError(w, ve)
		return
	}

	switch {
	case errors.Is(err, utils.ErrNotFound):
		utils.SendJSONError(w, "Not found.", http.StatusNotFound)
	case errors.Is(err, utils.ErrForbidden):
		utils.SendJSONError(w, utils.ErrForbidden.Error(), http.StatusForbidden)
	case errors.Is(err, utils.ErrInvalidCredentials):
		utils.SendValidationError(w, utils.NewValidationError("non_field_errors", "Unable to log in with provided credentials."))
	case errors.Is(err, utils.ErrConflict):
		utils.SendJSONError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, utils.ErrUnavailable):
		utils.SendJSONError(w, "Service temporarily unavailable, try again later.", http.StatusServiceUnavailable)
	default:
		log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("Request failed")
		utils.SendJSONError(w, "Internal server error", http.StatusInternalServerError)
	}
}
