// Package models defines the domain types for Sojourner.
package models

import (
	"cmp"
	"slices"
	"strings"
)

// Event is one scheduled talk or session. Events are built once per parse
// and never modified afterwards; every index holds pointers to the same value.
type Event struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Person      string `json:"person"`
	Date        string `json:"date"` // weekday name, e.g. "Saturday"
	Day         string `json:"day"`  // ISO date the weekday was derived from
	Room        string `json:"room"`
	Track       string `json:"track"`
	Start       string `json:"start"`
	Duration    string `json:"duration"`
	End         string `json:"end"`
	Abstract    string `json:"abstract"`
	Description string `json:"description"`
}

// SortKey orders events by day name, then start time.
type SortKey struct {
	Date  string
	Start string
}

// Key returns the event's sort key.
func (e *Event) Key() SortKey {
	return SortKey{Date: e.Date, Start: e.Start}
}

// Compare orders two keys field by field.
func (k SortKey) Compare(o SortKey) int {
	if c := cmp.Compare(k.Date, o.Date); c != 0 {
		return c
	}
	return cmp.Compare(k.Start, o.Start)
}

// SortEvents sorts events in place by (Date, Start). Equal keys keep their
// relative order.
func SortEvents(events []*Event) {
	slices.SortStableFunc(events, func(a, b *Event) int {
		return a.Key().Compare(b.Key())
	})
}

// Summary returns a one-paragraph plain text description:
//
//	Title
//	Person (Saturday, 10:00–10:45, Room, Track track)
func (e *Event) Summary() string {
	var b strings.Builder
	b.WriteString(e.Title)
	b.WriteString("\n")
	if e.Person != "" {
		b.WriteString(e.Person)
		b.WriteString(" ")
	}
	b.WriteString("(")
	b.WriteString(e.Date)
	b.WriteString(", ")
	b.WriteString(e.Start)
	b.WriteString("–")
	b.WriteString(e.End)
	b.WriteString(", ")
	b.WriteString(e.Room)
	b.WriteString(", ")
	b.WriteString(e.Track)
	b.WriteString(" track)")
	return b.String()
}

// Details returns the summary followed by the abstract and the description.
// Schedules often repeat the abstract at the start of the description, so
// that prefix is dropped.
func (e *Event) Details() string {
	desc := strings.TrimPrefix(e.Description, e.Abstract)

	parts := []string{e.Summary()}
	if e.Abstract != "" {
		parts = append(parts, e.Abstract)
	}
	if desc != "" {
		parts = append(parts, desc)
	}
	return strings.Join(parts, "\n\n")
}
