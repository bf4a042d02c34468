package handlers

import (
	"net/http"

	"bkmrks/internal/models"
	"bkmrks/internal/services"
	"bkmrks/internal/utils"
)

type TagHandler struct {
	service services.TagService
}

func NewTagHandler(service services.TagService) *TagHandler {
	return &TagHandler{service: service}
}

func (h *TagHandler) GetTags(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(w, r)
	if err != nil {
		return
	}

	tags, err := h.service.ListTags(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, tags)
}

func (h *TagHandler) AddTag(w http.ResponseWriter, r *http.Request) {
	var req models.CreateTagRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		return
	}

	tag, err := h.service.CreateTag(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, tag)
}
