package favourites

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/sojourner/internal/models"
	"github.com/starford/sojourner/internal/storage"
)

func testIndex() map[string]*models.Event {
	events := []*models.Event{
		{ID: "late", Date: "Saturday", Start: "16:00"},
		{ID: "early", Date: "Saturday", Start: "10:00"},
		{ID: "sunday", Date: "Sunday", Start: "09:00"},
	}
	out := make(map[string]*models.Event, len(events))
	for _, e := range events {
		out[e.ID] = e
	}
	return out
}

func testStore(t *testing.T) *storage.FS {
	t.Helper()
	s, err := storage.NewFS(t.TempDir())
	require.NoError(t, err)
	return s
}

func ids(events []*models.Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.ID
	}
	return out
}

func TestLoad_MissingFileIsEmpty(t *testing.T) {
	st, err := Load(testStore(t), FileName, testIndex(), PolicyStrict, nil)
	require.NoError(t, err)
	assert.Empty(t, st.List())
}

func TestAdd_SortsAndPersists(t *testing.T) {
	fs := testStore(t)
	idx := testIndex()
	st, err := Load(fs, FileName, idx, PolicyStrict, nil)
	require.NoError(t, err)

	added, err := st.Add(idx["late"])
	require.NoError(t, err)
	assert.True(t, added)
	_, err = st.Add(idx["early"])
	require.NoError(t, err)

	assert.Equal(t, []string{"early", "late"}, ids(st.List()))

	data, err := fs.Read(FileName)
	require.NoError(t, err)
	assert.Equal(t, "early\nlate\n", string(data))
}

func TestAdd_Duplicate(t *testing.T) {
	idx := testIndex()
	st, err := Load(testStore(t), FileName, idx, PolicyStrict, nil)
	require.NoError(t, err)

	_, _ = st.Add(idx["early"])
	added, err := st.Add(idx["early"])
	require.NoError(t, err)
	assert.False(t, added)
	assert.Equal(t, 1, st.Len())
}

func TestRoundTrip_AddThenRemove(t *testing.T) {
	fs := testStore(t)
	idx := testIndex()

	st, err := Load(fs, FileName, idx, PolicyStrict, nil)
	require.NoError(t, err)
	_, err = st.Add(idx["sunday"])
	require.NoError(t, err)

	reloaded, err := Load(fs, FileName, idx, PolicyStrict, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"sunday"}, ids(reloaded.List()))
	assert.Same(t, idx["sunday"], reloaded.List()[0])

	removed, err := reloaded.Remove(idx["sunday"])
	require.NoError(t, err)
	assert.True(t, removed)

	again, err := Load(fs, FileName, idx, PolicyStrict, nil)
	require.NoError(t, err)
	assert.Empty(t, again.List())

	data, err := fs.Read(FileName)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestRemove_NotAFavourite(t *testing.T) {
	idx := testIndex()
	st, err := Load(testStore(t), FileName, idx, PolicyStrict, nil)
	require.NoError(t, err)
	removed, err := st.Remove(idx["late"])
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestLoad_StrictUnknownID(t *testing.T) {
	fs := testStore(t)
	require.NoError(t, fs.Write(FileName, []byte("early\nghost\n")))

	_, err := Load(fs, FileName, testIndex(), PolicyStrict, nil)
	var unknown *UnknownIDError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "ghost", unknown.ID)
	assert.Equal(t, 2, unknown.Line)
	assert.Contains(t, err.Error(), `"ghost"`)
}

func TestLoad_SkipUnknownID(t *testing.T) {
	fs := testStore(t)
	require.NoError(t, fs.Write(FileName, []byte("late\nghost\nearly\n")))
	idx := testIndex()

	st, err := Load(fs, FileName, idx, PolicySkip, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"early", "late"}, ids(st.List()))

	// The next write drops the unknown id.
	_, err = st.Remove(idx["late"])
	require.NoError(t, err)
	data, _ := fs.Read(FileName)
	assert.Equal(t, "early\n", string(data))
}

func TestLoad_OversizedLine(t *testing.T) {
	fs := testStore(t)
	junk := strings.Repeat("x", 70*1024)
	require.NoError(t, fs.Write(FileName, []byte(junk+"\nearly\n")))

	st, err := Load(fs, FileName, testIndex(), PolicySkip, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"early"}, ids(st.List()))

	_, err = Load(fs, FileName, testIndex(), PolicyStrict, nil)
	var unknown *UnknownIDError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, 1, unknown.Line)
}

func TestLoad_TrimsAndIgnoresBlankLines(t *testing.T) {
	fs := testStore(t)
	require.NoError(t, fs.Write(FileName, []byte("  sunday \r\n\n\nearly\nearly\n")))

	st, err := Load(fs, FileName, testIndex(), PolicyStrict, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"early", "sunday"}, ids(st.List()))
}

func TestAdd_WriteFailureKeepsState(t *testing.T) {
	dir := t.TempDir()
	fs, err := storage.NewFS(dir)
	require.NoError(t, err)
	idx := testIndex()

	st, err := Load(fs, FileName, idx, PolicyStrict, nil)
	require.NoError(t, err)

	// A non-empty directory at the target path makes the rename fail.
	require.NoError(t, os.MkdirAll(filepath.Join(dir, FileName, "x"), 0o755))
	_, err = st.Add(idx["early"])
	require.Error(t, err)
	assert.False(t, st.Contains("early"))
}

func TestPolicyValid(t *testing.T) {
	assert.True(t, PolicyStrict.Valid())
	assert.True(t, PolicySkip.Valid())
	assert.False(t, Policy("lenient").Valid())
}
