package index

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/starford/sojourner/internal/models"
)

const checksumKey = "source_checksum"

// SearchResult represents one search hit.
type SearchResult struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// Checksum returns the source checksum recorded by the last Sync, or "".
func (db *DB) Checksum() (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT value FROM meta WHERE key = ?`, checksumKey).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: checksum: %w", err)
	}
	return cs, nil
}

// Sync replaces the indexed events with snap unless the index was already
// built from a document with the same checksum. It reports whether the
// index was rebuilt.
func Sync(db *DB, snap *models.Snapshot, checksum string, logger *slog.Logger) (bool, error) {
	current, err := db.Checksum()
	if err != nil {
		return false, err
	}
	if current != "" && current == checksum {
		logger.Debug("index: up to date", slog.String("checksum", checksum))
		return false, nil
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return false, fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if _, err := tx.Exec(`DELETE FROM events`); err != nil {
		return false, fmt.Errorf("index: clear events: %w", err)
	}
	if err := ftsClear(tx); err != nil {
		return false, err
	}

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO events (id, title, person, date, start, room, track, abstract, description)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return false, fmt.Errorf("index: prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range snap.Events {
		// Repeated ids index only the event the id resolves to.
		if snap.ByID[e.ID] != e {
			continue
		}
		if _, err := stmt.Exec(e.ID, e.Title, e.Person, e.Date, e.Start, e.Room, e.Track, e.Abstract, e.Description); err != nil {
			return false, fmt.Errorf("index: insert event %s: %w", e.ID, err)
		}
		if err := ftsInsert(tx, e); err != nil {
			return false, err
		}
	}

	if _, err := tx.Exec(`
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, checksumKey, checksum); err != nil {
		return false, fmt.Errorf("index: store checksum: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("index: commit: %w", err)
	}
	logger.Info("index: rebuilt", slog.Int("events", len(snap.Events)))
	return true, nil
}

// Count returns the number of indexed events.
func (db *DB) Count() (int, error) {
	var n int
	if err := db.conn.QueryRow(`SELECT count(*) FROM events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("index: count: %w", err)
	}
	return n, nil
}
