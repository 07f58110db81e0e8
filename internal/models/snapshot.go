package models

import "slices"

// Snapshot is one fully loaded schedule: the ordered event sequence and the
// three lookup indices built alongside it. Index values point into Events.
type Snapshot struct {
	Events  []*Event
	ByID    map[string]*Event
	ByRoom  map[string][]*Event
	ByTrack map[string][]*Event
}

// NewSnapshot indexes events in their given order and then sorts the master
// sequence by (Date, Start). Room and track lists keep insertion order.
// A later event with a duplicate id replaces the earlier one in ByID only.
func NewSnapshot(events []*Event) *Snapshot {
	s := &Snapshot{
		Events:  make([]*Event, 0, len(events)),
		ByID:    make(map[string]*Event, len(events)),
		ByRoom:  make(map[string][]*Event),
		ByTrack: make(map[string][]*Event),
	}
	for _, e := range events {
		s.Events = append(s.Events, e)
		s.ByID[e.ID] = e
		s.ByRoom[e.Room] = append(s.ByRoom[e.Room], e)
		s.ByTrack[e.Track] = append(s.ByTrack[e.Track], e)
	}
	SortEvents(s.Events)
	return s
}

// Rooms returns the room names in lexical order.
func (s *Snapshot) Rooms() []string {
	return sortedKeys(s.ByRoom)
}

// Tracks returns the track names in lexical order.
func (s *Snapshot) Tracks() []string {
	return sortedKeys(s.ByTrack)
}

func sortedKeys(m map[string][]*Event) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
