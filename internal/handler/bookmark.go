package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/soundscape/internal/auth"
	"github.com/sakif/soundscape/internal/model"
	"github.com/sakif/soundscape/internal/service"
)

// BookmarkHandler manages the signed-in user's saved events. Every route
// sits behind auth.RequireAuth.
type BookmarkHandler struct {
	bookmarks *service.BookmarkService
}

func NewBookmarkHandler(bookmarks *service.BookmarkService) *BookmarkHandler {
	return &BookmarkHandler{bookmarks: bookmarks}
}

type createBookmarkRequest struct {
	EventID string `json:"eventId"`
}

// BookmarkListResponse is the user's upcoming bookmarked events.
type BookmarkListResponse struct {
	Bookmarks []model.Event `json:"bookmarks"`
	Count     int           `json:"count"`
}

// BookmarkResponse wraps a created (or already existing) bookmark.
type BookmarkResponse struct {
	Bookmark *model.Bookmark `json:"bookmark"`
}

// HandleList returns upcoming bookmarked events, sorted by date.
//
// HTTP: GET /api/bookmarks
func (h *BookmarkHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	events, err := h.bookmarks.List(r.Context(), auth.SessionFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, BookmarkListResponse{Bookmarks: events, Count: len(events)})
}

// HandleCreate bookmarks an event. Repeating it is harmless.
//
// HTTP: POST /api/bookmarks
// REQUEST BODY: {"eventId": "..."}
func (h *BookmarkHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createBookmarkRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	bookmark, err := h.bookmarks.Create(r.Context(), auth.SessionFromContext(r.Context()), req.EventID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, BookmarkResponse{Bookmark: bookmark})
}

// HandleDelete removes a bookmark. Removing one that does not exist still
// succeeds.
//
// HTTP: DELETE /api/bookmarks/{eventID}
func (h *BookmarkHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")

	if err := h.bookmarks.Delete(r.Context(), auth.SessionFromContext(r.Context()), eventID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Bookmark removed"})
}
