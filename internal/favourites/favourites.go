// Package favourites persists the user's chosen events as a plain text file
// holding one event id per line.
package favourites

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"slices"

	"github.com/starford/sojourner/internal/models"
	"github.com/starford/sojourner/internal/storage"
)

// FileName is the default favourites file name.
const FileName = "favourites"

// Policy decides what Load does with an id the schedule doesn't know.
type Policy string

const (
	// PolicyStrict aborts the load with an *UnknownIDError.
	PolicyStrict Policy = "strict"
	// PolicySkip logs the id and leaves it out of the list. The id is
	// dropped from the file on the next write.
	PolicySkip Policy = "skip"
)

// Valid reports whether p is a known policy.
func (p Policy) Valid() bool {
	return p == PolicyStrict || p == PolicySkip
}

// UnknownIDError is returned by a strict Load for an id missing from the
// schedule.
type UnknownIDError struct {
	ID   string
	Line int
}

func (e *UnknownIDError) Error() string {
	return fmt.Sprintf("favourites: line %d: unknown event id %q", e.Line, e.ID)
}

// Store is the ordered favourites list together with its backing file.
// It is not safe for concurrent use.
type Store struct {
	store  storage.Provider
	name   string
	events []*models.Event
}

// Load reads name from store and resolves each id through byID. A missing
// file yields an empty list. Blank lines are ignored and repeated ids are
// kept once.
func Load(store storage.Provider, name string, byID map[string]*models.Event, policy Policy, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{store: store, name: name}

	data, err := store.Read(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("favourites: load: %w", err)
	}

	seen := make(map[string]struct{})
	line := 0
	for raw := range bytes.Lines(data) {
		line++
		id := string(bytes.TrimSpace(raw))
		if id == "" {
			continue
		}
		e, ok := byID[id]
		if !ok {
			if policy == PolicySkip {
				logger.Warn("favourites: skipping unknown event id",
					slog.String("id", id),
					slog.Int("line", line))
				continue
			}
			return nil, &UnknownIDError{ID: id, Line: line}
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		s.events = append(s.events, e)
	}

	models.SortEvents(s.events)
	return s, nil
}

// List returns the favourites ordered by (date, start).
func (s *Store) List() []*models.Event {
	return slices.Clone(s.events)
}

// Len returns the number of favourites.
func (s *Store) Len() int { return len(s.events) }

// Contains reports whether the event with id is a favourite.
func (s *Store) Contains(id string) bool {
	return s.index(id) >= 0
}

// Add inserts e, keeps the list sorted and rewrites the file. Adding an
// existing favourite is a no-op that reports false.
func (s *Store) Add(e *models.Event) (bool, error) {
	if s.Contains(e.ID) {
		return false, nil
	}
	next := append(slices.Clone(s.events), e)
	models.SortEvents(next)
	if err := s.write(next); err != nil {
		return false, err
	}
	s.events = next
	return true, nil
}

// Remove deletes the favourite with e's id and rewrites the file. Removing
// an event that is not a favourite reports false.
func (s *Store) Remove(e *models.Event) (bool, error) {
	i := s.index(e.ID)
	if i < 0 {
		return false, nil
	}
	next := slices.Delete(slices.Clone(s.events), i, i+1)
	if err := s.write(next); err != nil {
		return false, err
	}
	s.events = next
	return true, nil
}

func (s *Store) index(id string) int {
	return slices.IndexFunc(s.events, func(e *models.Event) bool { return e.ID == id })
}

// write replaces the whole file with one id per line.
func (s *Store) write(events []*models.Event) error {
	var b bytes.Buffer
	for _, e := range events {
		b.WriteString(e.ID)
		b.WriteByte('\n')
	}
	if err := s.store.Write(s.name, b.Bytes()); err != nil {
		return fmt.Errorf("favourites: write: %w", err)
	}
	return nil
}
