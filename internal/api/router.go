package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/sojourner/internal/index"
	"github.com/starford/sojourner/internal/schedule"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// search may be nil, in which case /search answers 503.
// sseHandler, if non-nil, is mounted at GET /stream inside the auth group.
// loc is the conference timezone used for the iCalendar export.
func NewRouter(sched *schedule.Schedule, search index.Searcher, loc *time.Location, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(sched, search, loc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Schedule (read only).
	r.Get("/schedule/events", h.ListEvents)
	r.Get("/schedule/events/{id}", h.GetEvent)
	r.Get("/schedule/rooms", h.ListRooms)
	r.Get("/schedule/rooms/{name}", h.RoomEvents)
	r.Get("/schedule/tracks", h.ListTracks)
	r.Get("/schedule/tracks/{name}", h.TrackEvents)

	// Favourites.
	r.Get("/favourites", h.ListFavourites)
	r.Get("/favourites.ics", h.FavouritesICS)
	r.Put("/favourites/{id}", h.AddFavourite)
	r.Delete("/favourites/{id}", h.RemoveFavourite)

	// Search.
	r.Get("/search", h.Search)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/stream", sseHandler.ServeHTTP)
	}

	return r
}
