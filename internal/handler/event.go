package handler

import (
	"net/http"
	"strconv"

	"github.com/sakif/soundscape/internal/service"
)

// EventHandler serves the concert catalog.
type EventHandler struct {
	events *service.EventService
}

func NewEventHandler(events *service.EventService) *EventHandler {
	return &EventHandler{events: events}
}

// GenresResponse lists the distinct genres in the catalog.
type GenresResponse struct {
	Genres []string `json:"genres"`
}

// SyncResponse reports a provider sync.
type SyncResponse struct {
	Message  string `json:"message"`
	Fetched  int    `json:"fetched"`
	Filtered int    `json:"filtered"`
	Upserted int    `json:"upserted"`
}

// HandleList searches the catalog.
//
// HTTP: GET /api/events?artist=wilco&genre=Rock&genre=Jazz&page=2&limit=10
//
// QUERY PARAMETERS:
//   - artist: substring of artist or venue, case-insensitive
//   - genre:  repeatable; an event matches any of them
//   - page:   1-based, defaults to 1
//   - limit:  page size, defaults to 5, capped at 100
//
// Non-numeric page or limit values fall back to the defaults.
func (h *EventHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page, err := h.events.Search(r.Context(), service.SearchInput{
		Artist: q.Get("artist"),
		Genres: q["genre"],
		Page:   queryInt(q.Get("page")),
		Limit:  queryInt(q.Get("limit")),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// HandleGenres lists the catalog's genres, sorted.
//
// HTTP: GET /api/events/genres
func (h *EventHandler) HandleGenres(w http.ResponseWriter, r *http.Request) {
	genres, err := h.events.ListGenres(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, GenresResponse{Genres: genres})
}

// HandleSync pulls upcoming events from Ticketmaster into the catalog.
//
// HTTP: GET /api/events/sync?artist=...&city=...
func (h *EventHandler) HandleSync(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	res, err := h.events.Sync(r.Context(), service.SyncInput{
		Artist: q.Get("artist"),
		City:   q.Get("city"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, SyncResponse{
		Message:  "Ticketmaster events synced to DB",
		Fetched:  res.Fetched,
		Filtered: res.Filtered,
		Upserted: res.Upserted,
	})
}

// queryInt parses a query value, returning 0 (meaning "use the default")
// when it is missing or not a number.
func queryInt(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
