package api

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/sojourner/internal/apperr"
	"github.com/starford/sojourner/internal/export"
	"github.com/starford/sojourner/internal/index"
	"github.com/starford/sojourner/internal/models"
	"github.com/starford/sojourner/internal/schedule"
)

const defaultSearchLimit = 20

// Handler holds API route handlers.
type Handler struct {
	sched  *schedule.Schedule
	search index.Searcher
	loc    *time.Location
}

// NewHandler creates a new Handler.
func NewHandler(sched *schedule.Schedule, search index.Searcher, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{sched: sched, search: search, loc: loc}
}

// urlParam returns a decoded chi path parameter. Room names may contain
// spaces or slashes sent percent-encoded.
func urlParam(r *http.Request, key string) string {
	raw := chi.URLParam(r, key)
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

func (h *Handler) dto(e *models.Event) EventDTO {
	return EventDTO{Event: e, Favourite: h.sched.IsFavourite(e.ID)}
}

func (h *Handler) list(events []*models.Event) EventListResponse {
	out := make([]EventDTO, len(events))
	for i, e := range events {
		out[i] = h.dto(e)
	}
	return EventListResponse{Events: out, Total: len(out)}
}

// ListEvents handles GET /api/schedule/events.
//
//	@Summary		List events in schedule order
//	@Tags			schedule
//	@Produce		json
//	@Param			room	query		string	false	"Room name"
//	@Param			track	query		string	false	"Track name"
//	@Param			day		query		string	false	"Weekday name or ISO date"
//	@Success		200		{object}	EventListResponse
//	@Security		BearerAuth
//	@Router			/schedule/events [get]
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	writeJSON(w, http.StatusOK, h.list(h.sched.Filter(q.Get("room"), q.Get("track"), q.Get("day"))))
}

// GetEvent handles GET /api/schedule/events/{id}.
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	e, ok := h.sched.Event(urlParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	writeJSON(w, http.StatusOK, h.dto(e))
}

// ListRooms handles GET /api/schedule/rooms.
func (h *Handler) ListRooms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, NameListResponse{Names: h.sched.Rooms()})
}

// RoomEvents handles GET /api/schedule/rooms/{name}. Events come in
// document order.
func (h *Handler) RoomEvents(w http.ResponseWriter, r *http.Request) {
	events, ok := h.sched.Room(urlParam(r, "name"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	writeJSON(w, http.StatusOK, h.list(events))
}

// ListTracks handles GET /api/schedule/tracks.
func (h *Handler) ListTracks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, NameListResponse{Names: h.sched.Tracks()})
}

// TrackEvents handles GET /api/schedule/tracks/{name}.
func (h *Handler) TrackEvents(w http.ResponseWriter, r *http.Request) {
	events, ok := h.sched.Track(urlParam(r, "name"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	writeJSON(w, http.StatusOK, h.list(events))
}

// ListFavourites handles GET /api/favourites.
//
//	@Summary		List favourite events ordered by day and start time
//	@Tags			favourites
//	@Produce		json
//	@Success		200	{object}	EventListResponse
//	@Security		BearerAuth
//	@Router			/favourites [get]
func (h *Handler) ListFavourites(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.list(h.sched.Favourites()))
}

// AddFavourite handles PUT /api/favourites/{id}. Adding an existing
// favourite is a no-op.
//
//	@Summary		Mark an event as favourite
//	@Tags			favourites
//	@Produce		json
//	@Param			id	path		string	true	"Event id"
//	@Success		200	{object}	EventDTO
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/favourites/{id} [put]
func (h *Handler) AddFavourite(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	e, err := h.sched.AddFavouriteID(id)
	if err != nil {
		h.mutationError(w, "add favourite", id, err)
		return
	}
	writeJSON(w, http.StatusOK, h.dto(e))
}

// RemoveFavourite handles DELETE /api/favourites/{id}.
//
//	@Summary		Remove an event from the favourites
//	@Tags			favourites
//	@Param			id	path	string	true	"Event id"
//	@Success		204	"Favourite removed"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/favourites/{id} [delete]
func (h *Handler) RemoveFavourite(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	if _, err := h.sched.RemoveFavouriteID(id); err != nil {
		h.mutationError(w, "remove favourite", id, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) mutationError(w http.ResponseWriter, op, id string, err error) {
	if errors.Is(err, apperr.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	slog.Error(op+" failed", slog.String("id", id), slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
}

// FavouritesICS handles GET /api/favourites.ics.
//
//	@Summary		Export favourites as iCalendar
//	@Tags			favourites
//	@Produce		text/calendar
//	@Success		200
//	@Security		BearerAuth
//	@Router			/favourites.ics [get]
func (h *Handler) FavouritesICS(w http.ResponseWriter, r *http.Request) {
	cal, err := export.Calendar("Favourites", h.sched.Favourites(), h.loc, time.Now())
	if err != nil {
		slog.Error("export favourites failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="favourites.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(cal.Serialize()))
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across events
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Failure		503		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	if h.search == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody(apperr.ErrSearchUnavailable.Error()))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	results, err := h.search.Search(q, limit)
	if err != nil {
		slog.Error("search failed", slog.String("query", q), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if results == nil {
		results = []SearchResult{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}
