package utils

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

func RespondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Int("status", code).Msg("Failed to encode JSON response")
	}
}

func SendJSONError(w http.ResponseWriter, message string, code int) {
	RespondWithJSON(w, code, map[string]string{"error": message})
}

// SendValidationError writes the field keyed body, e.g. {"url": ["Enter a valid URL."]}.
func SendValidationError(w http.ResponseWriter, ve *ValidationError) {
	RespondWithJSON(w, http.StatusBadRequest, ve.Fields)
}
