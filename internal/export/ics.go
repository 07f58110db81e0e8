// Package export renders schedule events as an iCalendar feed.
package export

import (
	"fmt"
	"io"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/starford/sojourner/internal/models"
)

const (
	prodID    = "-//sojourner//schedule export//EN"
	uidDomain = "sojourner"
)

// Times returns the absolute start and end of e in loc. An end clock earlier
// than the start clock belongs to the next day.
func Times(e *models.Event, loc *time.Location) (time.Time, time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	start, err := time.ParseInLocation("2006-01-02 15:04", e.Day+" "+e.Start, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("export: event %s start: %w", e.ID, err)
	}
	end, err := time.ParseInLocation("2006-01-02 15:04", e.Day+" "+e.End, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("export: event %s end: %w", e.ID, err)
	}
	if end.Before(start) {
		end = end.AddDate(0, 0, 1)
	}
	return start, end, nil
}

// Calendar builds a VCALENDAR with one VEVENT per event.
func Calendar(name string, events []*models.Event, loc *time.Location, stamp time.Time) (*ical.Calendar, error) {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(prodID)
	if name != "" {
		cal.SetXWRCalName(name)
	}

	for _, e := range events {
		start, end, err := Times(e, loc)
		if err != nil {
			return nil, err
		}
		ev := cal.AddEvent(e.ID + "@" + uidDomain)
		ev.SetDtStampTime(stamp)
		ev.SetStartAt(start)
		ev.SetEndAt(end)
		ev.SetSummary(e.Title)
		if e.Room != "" {
			ev.SetLocation(e.Room)
		}
		if desc := e.Details(); desc != "" {
			ev.SetDescription(desc)
		}
		if e.Track != "" {
			ev.SetProperty(ical.ComponentPropertyCategories, e.Track)
		}
	}
	return cal, nil
}

// WriteICS serialises events to w as an iCalendar document.
func WriteICS(w io.Writer, name string, events []*models.Event, loc *time.Location) error {
	cal, err := Calendar(name, events, loc, time.Now())
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, cal.Serialize()); err != nil {
		return fmt.Errorf("export: write: %w", err)
	}
	return nil
}
