package cache

import (
	"bytes"
	"encoding/gob"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/sojourner/internal/models"
	"github.com/starford/sojourner/internal/parser"
	"github.com/starford/sojourner/internal/testutil"
)

// freshSource writes the sample schedule with an mtime in the past so a
// cache written now is strictly newer.
func freshSource(t *testing.T) string {
	t.Helper()
	path := testutil.SampleSchedule(t)
	testutil.Touch(t, path, -time.Hour)
	return path
}

func TestLoad_MissThenHit(t *testing.T) {
	src := freshSource(t)
	m := New()

	first, res, err := m.Load(src)
	require.NoError(t, err)
	assert.Equal(t, OutcomeMissing, res.Outcome)
	assert.True(t, res.Written)
	assert.FileExists(t, Path(src))

	second, res, err := m.Load(src)
	require.NoError(t, err)
	assert.True(t, res.Hit())
	assert.False(t, res.Written)

	assert.Equal(t, first.Events, second.Events)
	assert.Equal(t, first.ByID, second.ByID)
	assert.Equal(t, first.ByRoom, second.ByRoom)
	assert.Equal(t, first.ByTrack, second.ByTrack)
}

func TestLoad_CachedMatchesDirectParse(t *testing.T) {
	src := freshSource(t)
	m := New()
	_, _, err := m.Load(src)
	require.NoError(t, err)

	cached, res, err := m.Load(src)
	require.NoError(t, err)
	require.True(t, res.Hit())

	direct, err := parser.ParseFile(src)
	require.NoError(t, err)

	require.Len(t, cached.Events, len(direct.Events))
	for i := range direct.Events {
		assert.Equal(t, *direct.Events[i], *cached.Events[i], "event %d", i)
	}
	assert.Equal(t, direct.Rooms(), cached.Rooms())
	assert.Equal(t, direct.Tracks(), cached.Tracks())
	for room, list := range direct.ByRoom {
		require.Len(t, cached.ByRoom[room], len(list))
		for i := range list {
			assert.Equal(t, list[i].ID, cached.ByRoom[room][i].ID)
		}
	}
}

func TestLoad_CachedIndicesShareEvents(t *testing.T) {
	src := freshSource(t)
	m := New()
	_, _, err := m.Load(src)
	require.NoError(t, err)

	snap, res, err := m.Load(src)
	require.NoError(t, err)
	require.True(t, res.Hit())

	for _, e := range snap.Events {
		assert.Same(t, e, snap.ByID[e.ID])
	}
	for _, list := range snap.ByTrack {
		for _, e := range list {
			assert.Same(t, snap.ByID[e.ID], e)
		}
	}
}

func TestLoad_TouchedSourceForcesReparse(t *testing.T) {
	src := freshSource(t)
	m := New()
	_, _, err := m.Load(src)
	require.NoError(t, err)

	updated := bytes.Replace([]byte(testutil.ScheduleXML), []byte("Welcome to FOSDEM"), []byte("Welcome back"), 1)
	require.NoError(t, os.WriteFile(src, updated, 0o644))
	testutil.Touch(t, src, time.Hour)

	snap, res, err := m.Load(src)
	require.NoError(t, err)
	assert.Equal(t, OutcomeStale, res.Outcome)
	assert.Equal(t, "Welcome back", snap.ByID["101"].Title)

	direct, err := parser.ParseFile(src)
	require.NoError(t, err)
	assert.Equal(t, direct.Events, snap.Events)
}

func TestLoad_SourceChangedDuringParse(t *testing.T) {
	src := freshSource(t)
	m := New()
	m.parseFile = func(path string) (*models.Snapshot, error) {
		snap, err := parser.ParseFile(path)
		updated := bytes.Replace([]byte(testutil.ScheduleXML), []byte("Welcome to FOSDEM"), []byte("Welcome back"), 1)
		require.NoError(t, os.WriteFile(path, updated, 0o644))
		testutil.Touch(t, path, -time.Minute)
		return snap, err
	}

	snap, res, err := m.Load(src)
	require.NoError(t, err)
	assert.False(t, res.Written)
	assert.Equal(t, "Welcome to FOSDEM", snap.ByID["101"].Title)
	assert.NoFileExists(t, Path(src))

	snap, res, err = New().Load(src)
	require.NoError(t, err)
	assert.Equal(t, OutcomeMissing, res.Outcome)
	assert.Equal(t, "Welcome back", snap.ByID["101"].Title)
}

func TestLoad_EqualMtimeIsStale(t *testing.T) {
	src := freshSource(t)
	m := New()
	_, _, err := m.Load(src)
	require.NoError(t, err)

	info, err := os.Stat(src)
	require.NoError(t, err)
	require.NoError(t, os.Chtimes(Path(src), info.ModTime(), info.ModTime()))

	_, res, err := m.Load(src)
	require.NoError(t, err)
	assert.Equal(t, OutcomeStale, res.Outcome)
}

func TestLoad_VersionBump(t *testing.T) {
	src := freshSource(t)

	_, _, err := New(WithVersion(SchemaVersion)).Load(src)
	require.NoError(t, err)

	bumped := New(WithVersion(SchemaVersion + 1))
	snap, res, err := bumped.Load(src)
	require.NoError(t, err)
	assert.Equal(t, OutcomeVersion, res.Outcome)
	assert.True(t, res.Written)
	assert.Len(t, snap.Events, 4)

	_, res, err = bumped.Load(src)
	require.NoError(t, err)
	assert.True(t, res.Hit(), "rewritten cache should carry the new version")

	data, err := os.ReadFile(Path(src))
	require.NoError(t, err)
	var v int
	require.NoError(t, gob.NewDecoder(bytes.NewReader(data)).Decode(&v))
	assert.Equal(t, SchemaVersion+1, v)
}

func TestLoad_CorruptCache(t *testing.T) {
	src := freshSource(t)
	require.NoError(t, os.WriteFile(Path(src), []byte("not a gob stream"), 0o644))

	snap, res, err := New().Load(src)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCorrupt, res.Outcome)
	assert.True(t, res.Written)
	assert.Len(t, snap.Events, 4)
}

func TestLoad_UnwritableCacheIsNotFatal(t *testing.T) {
	src := freshSource(t)
	// A non-empty directory where the cache file should be can neither be
	// read as a snapshot nor replaced by rename.
	require.NoError(t, os.MkdirAll(Path(src)+"/blocker", 0o755))

	snap, res, err := New().Load(src)
	require.NoError(t, err)
	assert.False(t, res.Written)
	assert.Len(t, snap.Events, 4)
}

func TestLoad_MalformedDocument(t *testing.T) {
	src := testutil.WriteSchedule(t, t.TempDir(), `<calendar/>`)

	_, _, err := New().Load(src)
	assert.True(t, errors.Is(err, parser.ErrMalformedSchedule))
	assert.NoFileExists(t, Path(src))
}

func TestLoad_MissingDocument(t *testing.T) {
	_, _, err := New().Load(t.TempDir() + "/schedule.xml")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_Disabled(t *testing.T) {
	src := freshSource(t)
	snap, res, err := New(Disabled()).Load(src)
	require.NoError(t, err)
	assert.Equal(t, OutcomeOff, res.Outcome)
	assert.Len(t, snap.Events, 4)
	assert.NoFileExists(t, Path(src))
}

func TestInvalidate(t *testing.T) {
	src := freshSource(t)
	m := New()
	_, _, err := m.Load(src)
	require.NoError(t, err)

	require.NoError(t, m.Invalidate(src))
	assert.NoFileExists(t, Path(src))
	require.NoError(t, m.Invalidate(src), "invalidating twice is fine")

	_, res, err := m.Load(src)
	require.NoError(t, err)
	assert.Equal(t, OutcomeMissing, res.Outcome)
}

func TestLoad_Idempotent(t *testing.T) {
	src := freshSource(t)
	m := New(WithVersion(SchemaVersion))

	a, _, err := m.Load(src)
	require.NoError(t, err)
	b, _, err := m.Load(src)
	require.NoError(t, err)
	c, _, err := m.Load(src)
	require.NoError(t, err)

	assert.Equal(t, a.Events, b.Events)
	assert.Equal(t, b.Events, c.Events)
	assert.Equal(t, b.ByRoom, c.ByRoom)
	assert.Equal(t, b.ByTrack, c.ByTrack)
}
