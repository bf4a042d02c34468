package handlers

import (
	"net/http"

	"bkmrks/internal/database"
	"bkmrks/internal/utils"
)

type CommonHandler struct {
	db database.Service
}

func NewCommonHandler(db database.Service) *CommonHandler {
	return &CommonHandler{db: db}
}

func (h *CommonHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	health := h.db.Health()
	code := http.StatusOK
	if _, down := health["error"]; down {
		code = http.StatusServiceUnavailable
	}
	utils.RespondWithJSON(w, code, health)
}
