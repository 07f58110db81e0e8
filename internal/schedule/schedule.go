// Package schedule is the entry point consumers hold: it loads the snapshot
// through the cache, loads the favourites against it and exposes the query
// and mutation surface.
package schedule

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/starford/sojourner/internal/apperr"
	"github.com/starford/sojourner/internal/cache"
	"github.com/starford/sojourner/internal/favourites"
	"github.com/starford/sojourner/internal/metrics"
	"github.com/starford/sojourner/internal/models"
	"github.com/starford/sojourner/internal/storage"
)

// Favourite change kinds passed to a ChangeFunc.
const (
	ChangeAdded   = "added"
	ChangeRemoved = "removed"
)

// ChangeFunc is called after a favourite was added or removed and persisted.
type ChangeFunc func(kind string, e *models.Event)

// Schedule combines one loaded snapshot with the user's favourites. The
// snapshot is never reloaded; restart to pick up a changed document.
type Schedule struct {
	path   string
	snap   *models.Snapshot
	loaded cache.Result

	logger   *slog.Logger
	metrics  *metrics.Metrics
	onChange ChangeFunc

	mu   sync.RWMutex // guards favs
	favs *favourites.Store
}

// Open loads the schedule document at path and its favourites.
func Open(path string, opts ...Option) (*Schedule, error) {
	o := options{policy: favourites.PolicyStrict}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	cacheOpts := append([]cache.Option{
		cache.WithLogger(o.logger),
		cache.WithMetrics(o.metrics),
	}, o.cacheOpts...)

	snap, res, err := cache.New(cacheOpts...).Load(path)
	if err != nil {
		return nil, fmt.Errorf("schedule: load %s: %w", path, err)
	}
	o.metrics.SetEvents(len(snap.Events))

	favPath := o.favouritesPath
	if favPath == "" {
		favPath = filepath.Join(filepath.Dir(path), favourites.FileName)
	}
	favStore, err := storage.EnsureFS(filepath.Dir(favPath))
	if err != nil {
		return nil, fmt.Errorf("schedule: favourites dir: %w", err)
	}
	favs, err := favourites.Load(favStore, filepath.Base(favPath), snap.ByID, o.policy, o.logger)
	if err != nil {
		return nil, fmt.Errorf("schedule: %w", err)
	}
	o.metrics.SetFavourites(favs.Len())

	o.logger.Info("schedule loaded",
		slog.String("path", path),
		slog.Int("events", len(snap.Events)),
		slog.Int("favourites", favs.Len()),
		slog.String("cache", string(res.Outcome)))

	return &Schedule{
		path:     path,
		snap:     snap,
		loaded:   res,
		logger:   o.logger,
		metrics:  o.metrics,
		onChange: o.onChange,
		favs:     favs,
	}, nil
}

// UserFavouritesPath returns the per-user favourites location,
// <user config dir>/sojourner/favourites.
func UserFavouritesPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("schedule: user config dir: %w", err)
	}
	return filepath.Join(dir, "sojourner", favourites.FileName), nil
}

// SourcePath returns the document path the schedule was loaded from.
func (s *Schedule) SourcePath() string { return s.path }

// CacheResult reports whether the snapshot came from the cache.
func (s *Schedule) CacheResult() cache.Result { return s.loaded }

// Snapshot returns the loaded snapshot. Callers must not modify it.
func (s *Schedule) Snapshot() *models.Snapshot { return s.snap }

// Events returns all events ordered by (date, start).
func (s *Schedule) Events() []*models.Event {
	return slices.Clone(s.snap.Events)
}

// EventsByID returns the id index. The map is shared and must not be modified.
func (s *Schedule) EventsByID() map[string]*models.Event { return s.snap.ByID }

// EventsByRoom returns the room index. The map is shared and must not be modified.
func (s *Schedule) EventsByRoom() map[string][]*models.Event { return s.snap.ByRoom }

// EventsByTrack returns the track index. The map is shared and must not be modified.
func (s *Schedule) EventsByTrack() map[string][]*models.Event { return s.snap.ByTrack }

// Event looks an event up by id.
func (s *Schedule) Event(id string) (*models.Event, bool) {
	e, ok := s.snap.ByID[id]
	return e, ok
}

// Room returns the events held in room, in document order.
func (s *Schedule) Room(name string) ([]*models.Event, bool) {
	list, ok := s.snap.ByRoom[name]
	return slices.Clone(list), ok
}

// Track returns the events in track, in document order.
func (s *Schedule) Track(name string) ([]*models.Event, bool) {
	list, ok := s.snap.ByTrack[name]
	return slices.Clone(list), ok
}

// Rooms returns room names in lexical order.
func (s *Schedule) Rooms() []string { return s.snap.Rooms() }

// Tracks returns track names in lexical order.
func (s *Schedule) Tracks() []string { return s.snap.Tracks() }

// Days returns the distinct day names in schedule order.
func (s *Schedule) Days() []string {
	var out []string
	for _, e := range s.snap.Events {
		if !slices.Contains(out, e.Date) {
			out = append(out, e.Date)
		}
	}
	return out
}

// Filter returns events matching every non-empty criterion, in schedule order.
func (s *Schedule) Filter(room, track, day string) []*models.Event {
	var out []*models.Event
	for _, e := range s.snap.Events {
		if room != "" && e.Room != room {
			continue
		}
		if track != "" && e.Track != track {
			continue
		}
		if day != "" && e.Date != day && e.Day != day {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Favourites returns the favourited events ordered by (date, start).
func (s *Schedule) Favourites() []*models.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.favs.List()
}

// IsFavourite reports whether the event with id is a favourite.
func (s *Schedule) IsFavourite(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.favs.Contains(id)
}

// AddFavourite marks e as a favourite and rewrites the favourites file
// before returning. e must belong to this schedule.
func (s *Schedule) AddFavourite(e *models.Event) error {
	_, err := s.AddFavouriteID(e.ID)
	return err
}

// RemoveFavourite unmarks e and rewrites the favourites file before
// returning.
func (s *Schedule) RemoveFavourite(e *models.Event) error {
	_, err := s.RemoveFavouriteID(e.ID)
	return err
}

// AddFavouriteID favourites the event with id. It returns apperr.ErrNotFound
// for ids outside the schedule.
func (s *Schedule) AddFavouriteID(id string) (*models.Event, error) {
	return s.mutate(id, ChangeAdded, (*favourites.Store).Add)
}

// RemoveFavouriteID unfavourites the event with id. It returns
// apperr.ErrNotFound for ids outside the schedule.
func (s *Schedule) RemoveFavouriteID(id string) (*models.Event, error) {
	return s.mutate(id, ChangeRemoved, (*favourites.Store).Remove)
}

func (s *Schedule) mutate(id, kind string, op func(*favourites.Store, *models.Event) (bool, error)) (*models.Event, error) {
	e, ok := s.snap.ByID[id]
	if !ok {
		return nil, fmt.Errorf("schedule: event %q: %w", id, apperr.ErrNotFound)
	}

	s.mu.Lock()
	changed, err := op(s.favs, e)
	n := s.favs.Len()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if !changed {
		return e, nil
	}

	s.metrics.SetFavourites(n)
	s.logger.Debug("favourite "+kind, slog.String("id", id))
	if s.onChange != nil {
		s.onChange(kind, e)
	}
	return e, nil
}
