package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/sojourner/internal/index"
	"github.com/starford/sojourner/internal/schedule"
	"github.com/starford/sojourner/internal/testutil"
)

// testEnv loads the sample schedule into a fresh temp dir and builds a router
// with a synced search index. A non-empty authToken enables token mode.
func testEnv(t *testing.T, authToken string) (*schedule.Schedule, http.Handler) {
	t.Helper()
	return testEnvFull(t, authToken != "", authToken, nil)
}

func testEnvFull(t *testing.T, authEnabled bool, authToken string, sseHandler http.Handler) (*schedule.Schedule, http.Handler) {
	t.Helper()

	src := testutil.SampleSchedule(t)
	testutil.Touch(t, src, -time.Hour)
	sched, err := schedule.Open(src)
	require.NoError(t, err)

	db := testutil.TestDB(t)
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	_, err = index.Sync(db, sched.Snapshot(), "test", logger)
	require.NoError(t, err)

	router := NewRouter(sched, db, time.UTC, authEnabled, authToken, sseHandler)
	return sched, router
}

func do(t *testing.T, router http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeEvents(t *testing.T, w *httptest.ResponseRecorder) EventListResponse {
	t.Helper()
	var resp EventListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func ids(resp EventListResponse) []string {
	out := make([]string, len(resp.Events))
	for i, e := range resp.Events {
		out[i] = e.ID
	}
	return out
}

func TestListEvents(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/schedule/events")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeEvents(t, w)
	assert.Equal(t, 4, resp.Total)
	assert.Equal(t, []string{"101", "103", "102", "201"}, ids(resp))
}

func TestListEvents_Filters(t *testing.T) {
	_, router := testEnv(t, "")

	cases := map[string][]string{
		"/schedule/events?room=Janson":          {"101", "102", "201"},
		"/schedule/events?track=Go":             {"103", "201"},
		"/schedule/events?day=Sunday":           {"201"},
		"/schedule/events?day=2010-02-06":       {"101", "103", "102"},
		"/schedule/events?room=H.1301&track=Go": {"103"},
	}
	for target, want := range cases {
		w := do(t, router, http.MethodGet, target)
		assert.Equal(t, want, ids(decodeEvents(t, w)), target)
	}
}

func TestGetEvent(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/schedule/events/101")
	require.Equal(t, http.StatusOK, w.Code)

	var e EventDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &e))
	require.NotNil(t, e.Event)
	assert.Equal(t, "Welcome to FOSDEM", e.Title)
	assert.Equal(t, "Janson", e.Room)
	assert.Equal(t, "10:45", e.End)
	assert.False(t, e.Favourite, "not a favourite yet")
}

func TestGetEvent_NotFound(t *testing.T) {
	_, router := testEnv(t, "")
	assert.Equal(t, http.StatusNotFound, do(t, router, http.MethodGet, "/schedule/events/999").Code)
}

func TestRoomsAndTracks(t *testing.T) {
	_, router := testEnv(t, "")

	var names NameListResponse
	require.NoError(t, json.Unmarshal(do(t, router, http.MethodGet, "/schedule/rooms").Body.Bytes(), &names))
	assert.Equal(t, []string{"H.1301", "Janson"}, names.Names)
	require.NoError(t, json.Unmarshal(do(t, router, http.MethodGet, "/schedule/tracks").Body.Bytes(), &names))
	assert.Equal(t, []string{"Go", "Keynotes"}, names.Names)

	// Room listings keep document order.
	w := do(t, router, http.MethodGet, "/schedule/rooms/Janson")
	assert.Equal(t, []string{"101", "102", "201"}, ids(decodeEvents(t, w)))
	w = do(t, router, http.MethodGet, "/schedule/tracks/Go")
	assert.Equal(t, []string{"103", "201"}, ids(decodeEvents(t, w)))

	assert.Equal(t, http.StatusNotFound, do(t, router, http.MethodGet, "/schedule/rooms/Nowhere").Code)
	assert.Equal(t, http.StatusNotFound, do(t, router, http.MethodGet, "/schedule/tracks/Cobol").Code)
}

func TestFavouritesRoundTrip(t *testing.T) {
	sched, router := testEnv(t, "")

	for _, id := range []string{"201", "101"} {
		w := do(t, router, http.MethodPut, "/favourites/"+id)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var e EventDTO
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &e))
		assert.True(t, e.Favourite, "put %s response flagged as favourite", id)
	}

	w := do(t, router, http.MethodGet, "/favourites")
	assert.Equal(t, []string{"101", "201"}, ids(decodeEvents(t, w)))

	data, err := os.ReadFile(filepath.Join(filepath.Dir(sched.SourcePath()), "favourites"))
	require.NoError(t, err)
	assert.Equal(t, "101\n201\n", string(data))

	assert.Equal(t, http.StatusNoContent, do(t, router, http.MethodDelete, "/favourites/101").Code)
	w = do(t, router, http.MethodGet, "/favourites")
	assert.Equal(t, []string{"201"}, ids(decodeEvents(t, w)))
}

func TestFavourite_Idempotent(t *testing.T) {
	sched, router := testEnv(t, "")

	do(t, router, http.MethodPut, "/favourites/103")
	assert.Equal(t, http.StatusOK, do(t, router, http.MethodPut, "/favourites/103").Code)
	assert.Len(t, sched.Favourites(), 1)

	// Removing a non-favourite is a no-op.
	assert.Equal(t, http.StatusNoContent, do(t, router, http.MethodDelete, "/favourites/102").Code)
}

func TestFavourite_UnknownID(t *testing.T) {
	_, router := testEnv(t, "")
	assert.Equal(t, http.StatusNotFound, do(t, router, http.MethodPut, "/favourites/ghost").Code)
	assert.Equal(t, http.StatusNotFound, do(t, router, http.MethodDelete, "/favourites/ghost").Code)
}

func TestFavouritesICS(t *testing.T) {
	_, router := testEnv(t, "")
	do(t, router, http.MethodPut, "/favourites/103")

	w := do(t, router, http.MethodGet, "/favourites.ics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/calendar")

	body := w.Body.String()
	assert.Equal(t, 1, strings.Count(body, "BEGIN:VEVENT"))
	assert.Contains(t, body, "DTSTART:20100206T100000Z")
}

func TestSearchEndpoint(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/search?q=Goroutines")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp SearchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "103", resp.Results[0].ID)
}

func TestSearchMissingQuery(t *testing.T) {
	_, router := testEnv(t, "")
	assert.Equal(t, http.StatusBadRequest, do(t, router, http.MethodGet, "/search").Code)
}

func TestSearchUnavailable(t *testing.T) {
	src := testutil.SampleSchedule(t)
	sched, err := schedule.Open(src)
	require.NoError(t, err)

	router := NewRouter(sched, nil, nil, false, "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, router, http.MethodGet, "/search?q=go").Code)
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodPut, "/favourites/101", nil)
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, router := testEnv(t, "secret123")
	assert.Equal(t, http.StatusUnauthorized, do(t, router, http.MethodGet, "/schedule/events").Code)
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/schedule/events", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	_, router := testEnv(t, "")
	assert.Equal(t, http.StatusOK, do(t, router, http.MethodGet, "/schedule/events").Code)
}

// Minimal SSE handler stub that writes headers and blocks until the request ends.
var sseStub = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	<-r.Context().Done()
})

func TestSSEStream_AuthProtected(t *testing.T) {
	_, router := testEnvFull(t, true, "secret", sseStub)
	assert.Equal(t, http.StatusUnauthorized, do(t, router, http.MethodGet, "/stream").Code)
}

func TestSSEStream_ValidToken(t *testing.T) {
	_, router := testEnvFull(t, true, "tok", sseStub)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/stream", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.NotEqual(t, http.StatusUnauthorized, w.Code)
}
