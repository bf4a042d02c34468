package handlers

import (
	"net/http"

	"bkmrks/internal/models"
	"bkmrks/internal/services"
	"bkmrks/internal/utils"
)

type DownloadHandler struct {
	service services.DownloadService
}

func NewDownloadHandler(service services.DownloadService) *DownloadHandler {
	return &DownloadHandler{service: service}
}

// StartDownload answers 201 with the download record, which is usually still Pending.
func (h *DownloadHandler) StartDownload(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(w, r)
	if err != nil {
		return
	}

	var req models.StartDownloadRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		return
	}

	d, err := h.service.StartDownload(r.Context(), userID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, d)
}

func (h *DownloadHandler) GetDownload(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(w, r)
	if err != nil {
		return
	}
	downloadID, err := utils.GetObjectIDFromVars(w, r, "id")
	if err != nil {
		return
	}

	d, err := h.service.GetDownload(r.Context(), userID, downloadID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, d)
}
