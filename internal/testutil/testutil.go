// Package testutil provides shared test helpers for writing schedule
// documents and opening indexes.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/sojourner/internal/index"
)

// ScheduleXML is a small two-day schedule. Event 102 carries a stray <room>
// child that must be ignored; event 201 is on Sunday.
const ScheduleXML = `<?xml version="1.0" encoding="UTF-8"?>
<schedule>
  <conference><title>FOSDEM 2010</title></conference>
  <day date="2010-02-06" index="1">
    <room name="Janson">
      <event id="101">
        <start>10:00</start>
        <duration>00:45</duration>
        <room>Wrong room</room>
        <title>Welcome to FOSDEM</title>
        <track>Keynotes</track>
        <abstract>Opening words.</abstract>
        <description>Opening words.
Some wrapped
text.

Second paragraph.</description>
        <persons>
          <person id="1">Alice</person>
          <person id="2">Bob</person>
        </persons>
      </event>
      <event id="102">
        <start>16:00</start>
        <duration>01:00</duration>
        <room>Somewhere else</room>
        <title>Closing talk</title>
        <track>Keynotes</track>
        <abstract></abstract>
        <description></description>
        <persons><person id="3">Carol</person></persons>
      </event>
    </room>
    <room name="H.1301">
      <event id="103">
        <start>10:00</start>
        <duration>00:30</duration>
        <title>Go in production</title>
        <track>Go</track>
        <abstract>Goroutines everywhere.</abstract>
        <description>Channels too.</description>
        <persons><person id="4">Dave</person></persons>
      </event>
    </room>
  </day>
  <day date="2010-02-07" index="2">
    <room name="Janson">
      <event id="201">
        <start>23:30</start>
        <duration>01:00</duration>
        <title>Late night hacking</title>
        <track>Go</track>
        <abstract>Until after midnight.</abstract>
        <description>Bring coffee.</description>
        <persons></persons>
      </event>
    </room>
  </day>
</schedule>
`

// WriteSchedule writes content to <dir>/schedule.xml and returns the path.
func WriteSchedule(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "schedule.xml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write schedule: %v", err)
	}
	return path
}

// SampleSchedule writes ScheduleXML into a fresh temp dir.
func SampleSchedule(t *testing.T) string {
	t.Helper()
	return WriteSchedule(t, t.TempDir(), ScheduleXML)
}

// Touch sets path's mtime to now plus offset.
func Touch(t *testing.T, path string, offset time.Duration) {
	t.Helper()
	ts := time.Now().Add(offset)
	if err := os.Chtimes(path, ts, ts); err != nil {
		t.Fatalf("touch %s: %v", path, err)
	}
}

// TestDB creates a temporary SQLite index that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "sojourner-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
