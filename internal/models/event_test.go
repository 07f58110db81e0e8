package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(events []*Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.ID
	}
	return out
}

func TestSortEvents_DateThenStartStable(t *testing.T) {
	a := &Event{ID: "a", Date: "Sunday", Start: "10:00"}
	b := &Event{ID: "b", Date: "Saturday", Start: "16:00"}
	c := &Event{ID: "c", Date: "Saturday", Start: "10:00"}
	d := &Event{ID: "d", Date: "Saturday", Start: "10:00"}

	events := []*Event{a, b, c, d}
	SortEvents(events)
	assert.Equal(t, []string{"c", "d", "b", "a"}, ids(events))
}

func TestSortEvents_WeekdayNameIsLexical(t *testing.T) {
	sun := &Event{ID: "sun", Date: "Sunday", Start: "09:00"}
	mon := &Event{ID: "mon", Date: "Monday", Start: "09:00"}
	fri := &Event{ID: "fri", Date: "Friday", Start: "18:00"}

	events := []*Event{sun, mon, fri}
	SortEvents(events)
	assert.Equal(t, []string{"fri", "mon", "sun"}, ids(events))
}

func TestNewSnapshot_IndicesShareEvents(t *testing.T) {
	e1 := &Event{ID: "1", Date: "Saturday", Start: "11:00", Room: "H.1301", Track: "Go"}
	e2 := &Event{ID: "2", Date: "Saturday", Start: "09:00", Room: "H.1301", Track: "Mozilla"}

	s := NewSnapshot([]*Event{e1, e2})
	require.Equal(t, []string{"2", "1"}, ids(s.Events), "events sorted by start")
	assert.Same(t, e1, s.ByID["1"])

	room := s.ByRoom["H.1301"]
	require.Len(t, room, 2)
	assert.Same(t, e1, room[0], "ByRoom keeps insertion order")
	assert.Same(t, e2, room[1])
	assert.Equal(t, []string{"Go", "Mozilla"}, s.Tracks())
}

func TestDetails_DropsRepeatedAbstract(t *testing.T) {
	e := &Event{
		Title:       "Talk",
		Person:      "Alice, Bob",
		Date:        "Saturday",
		Start:       "10:00",
		End:         "10:45",
		Room:        "Janson",
		Track:       "Keynotes",
		Abstract:    "Short.",
		Description: "Short. Longer text.",
	}
	want := "Talk\nAlice, Bob (Saturday, 10:00–10:45, Janson, Keynotes track)\n\nShort.\n\n Longer text."
	assert.Equal(t, want, e.Details())
}

func TestDetails_OnlyDescription(t *testing.T) {
	e := &Event{Title: "T", Description: "Body"}
	assert.Contains(t, e.Details(), "track)\n\nBody")
}
