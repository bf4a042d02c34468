package handlers

import (
	"net/http"

	"bkmrks/internal/models"
	"bkmrks/internal/services"
	"bkmrks/internal/utils"
)

type FolderHandler struct {
	service services.FolderService
}

func NewFolderHandler(service services.FolderService) *FolderHandler {
	return &FolderHandler{service: service}
}

func (h *FolderHandler) GetFolders(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(w, r)
	if err != nil {
		return
	}

	folders, err := h.service.ListFolders(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, folders)
}

func (h *FolderHandler) AddFolder(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(w, r)
	if err != nil {
		return
	}

	var req models.CreateFolderRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		return
	}

	folder, err := h.service.CreateFolder(r.Context(), userID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, folder)
}

func (h *FolderHandler) UpdateFolder(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(w, r)
	if err != nil {
		return
	}
	folderID, err := utils.GetObjectIDFromVars(w, r, "id")
	if err != nil {
		return
	}

	var req models.UpdateFolderRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		return
	}

	folder, err := h.service.UpdateFolder(r.Context(), userID, folderID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, folder)
}

func (h *FolderHandler) DeleteFolder(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(w, r)
	if err != nil {
		return
	}
	folderID, err := utils.GetObjectIDFromVars(w, r, "id")
	if err != nil {
		return
	}

	if err := h.service.DeleteFolder(r.Context(), userID, folderID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
