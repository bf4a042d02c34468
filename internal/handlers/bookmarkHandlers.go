package handlers

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"bkmrks/internal/models"
	"bkmrks/internal/services"
	"bkmrks/internal/utils"
)

type BookmarkHandler struct {
	service services.BookmarkService
	summary services.SummaryService
}

func NewBookmarksHandler(service services.BookmarkService, summary services.SummaryService) *BookmarkHandler {
	return &BookmarkHandler{service: service, summary: summary}
}

func (h *BookmarkHandler) GetBookmarks(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(w, r)
	if err != nil {
		return
	}

	bookmarks, err := h.service.GetBookmarks(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, bookmarks)
}

func (h *BookmarkHandler) AddBookmark(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(w, r)
	if err != nil {
		return
	}

	var reqBody models.CreateBookmarkRequest
	if err := utils.DecodeJSON(w, r, &reqBody); err != nil {
		log.Warn().Err(err).Msg("Error decoding request body for AddBookmark")
		return
	}

	bm, err := h.service.AddBookmark(r.Context(), userID, reqBody)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, bm)
}

func (h *BookmarkHandler) AddBookmarkFromTelegram(w http.ResponseWriter, r *http.Request) {
	var reqBody models.TelegramBookmarkRequest
	if err := utils.DecodeJSON(w, r, &reqBody); err != nil {
		log.Warn().Err(err).Msg("Error decoding request body for AddBookmarkFromTelegram")
		return
	}

	resp, err := h.service.AddBookmarkFromTelegram(r.Context(), reqBody)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, resp)
}

func (h *BookmarkHandler) UpdateBookmark(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(w, r)
	if err != nil {
		return
	}
	bookmarkID, err := utils.GetObjectIDFromVars(w, r, "id")
	if err != nil {
		return
	}

	var updatePayload models.UpdateBookmarkRequestBody
	if err := utils.DecodeJSON(w, r, &updatePayload); err != nil {
		return
	}

	bm, err := h.service.UpdateBookmark(r.Context(), userID, bookmarkID, updatePayload)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, bm)
}

func (h *BookmarkHandler) DeleteBookmark(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(w, r)
	if err != nil {
		return
	}
	bookmarkID, err := utils.GetObjectIDFromVars(w, r, "id")
	if err != nil {
		return
	}

	if err := h.service.DeleteBookmark(r.Context(), userID, bookmarkID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *BookmarkHandler) SummarizeBookmark(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(w, r)
	if err != nil {
		return
	}
	bookmarkID, err := utils.GetObjectIDFromVars(w, r, "id")
	if err != nil {
		return
	}

	bm, err := h.summary.SummarizeBookmark(r.Context(), userID, bookmarkID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, bm)
}
