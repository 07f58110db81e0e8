// Package cache keeps a serialized snapshot next to the schedule document
// so that restarts can skip parsing.
//
// A snapshot is trusted only when the cache file is strictly newer than the
// document and carries the manager's schema version. Any other state,
// including an unreadable or undecodable cache, falls back to a full parse
// followed by a best-effort rewrite of the cache.
package cache

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/starford/sojourner/internal/metrics"
	"github.com/starford/sojourner/internal/models"
	"github.com/starford/sojourner/internal/parser"
	"github.com/starford/sojourner/internal/storage"
)

// SchemaVersion must be incremented whenever models.Event, models.Snapshot
// or the blob layout below changes shape.
const SchemaVersion = 4

// Suffix is appended to the document path to name the cache file.
const Suffix = ".snapshot"

// Outcome says why a load did or did not use the cache.
type Outcome string

const (
	OutcomeHit     Outcome = "hit"
	OutcomeMissing Outcome = "missing"
	OutcomeStale   Outcome = "stale"
	OutcomeVersion Outcome = "version"
	OutcomeCorrupt Outcome = "corrupt"
	OutcomeOff     Outcome = "disabled"
)

// Result reports what Load did.
type Result struct {
	Outcome Outcome
	// Written is true when a fresh cache file was stored after a parse.
	Written bool
}

// Hit reports whether the snapshot came from the cache.
func (r Result) Hit() bool { return r.Outcome == OutcomeHit }

// blob is the on-disk payload that follows the version header. Indices are
// stored as positions in Events so shared references survive the trip.
type blob struct {
	Events  []*models.Event
	ByID    map[string]int
	ByRoom  map[string][]int
	ByTrack map[string][]int
}

// Manager loads snapshots through the cache.
type Manager struct {
	version   int
	disabled  bool
	logger    *slog.Logger
	metrics   *metrics.Metrics
	parseFile func(path string) (*models.Snapshot, error)
}

// Option configures a Manager.
type Option func(*Manager)

// WithVersion overrides the schema version written to and expected from
// cache files.
func WithVersion(v int) Option {
	return func(m *Manager) { m.version = v }
}

// WithLogger sets the logger used for cache diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithMetrics records load outcomes and parse timings.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// Disabled makes every load parse the document and never touch the cache.
func Disabled() Option {
	return func(m *Manager) { m.disabled = true }
}

// New creates a Manager using SchemaVersion unless overridden.
func New(opts ...Option) *Manager {
	m := &Manager{version: SchemaVersion, parseFile: parser.ParseFile}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	return m
}

// Path returns the cache file path for a schedule document.
func Path(sourcePath string) string {
	return sourcePath + Suffix
}

// Load returns the snapshot for sourcePath, from the cache when it is valid
// and by parsing the document otherwise. Only parse failures (including a
// missing document) are returned as errors.
func (m *Manager) Load(sourcePath string) (*models.Snapshot, Result, error) {
	if m.disabled {
		snap, err := m.parse(sourcePath)
		m.metrics.CacheLoad(string(OutcomeOff))
		return snap, Result{Outcome: OutcomeOff}, err
	}

	store, err := storage.NewFS(filepath.Dir(sourcePath))
	if err != nil {
		// No usable directory means no cache either; let the parser report it.
		snap, perr := m.parse(sourcePath)
		return snap, Result{Outcome: OutcomeMissing}, perr
	}
	srcName := filepath.Base(sourcePath)
	cacheName := srcName + Suffix

	snap, outcome, reason := m.read(store, srcName, cacheName)
	m.metrics.CacheLoad(string(outcome))
	if outcome == OutcomeHit {
		m.logger.Debug("schedule cache hit", slog.String("path", Path(sourcePath)))
		return snap, Result{Outcome: outcome}, nil
	}
	m.logger.Info("schedule cache not used",
		slog.String("path", Path(sourcePath)),
		slog.String("outcome", string(outcome)),
		slog.String("reason", reason))

	before, _ := store.Stat(srcName)
	snap, err = m.parse(sourcePath)
	if err != nil {
		return nil, Result{Outcome: outcome}, err
	}

	res := Result{Outcome: outcome}
	if err := m.write(store, cacheName, snap); err != nil {
		m.metrics.CacheWriteError()
		m.logger.Warn("couldn't write schedule cache",
			slog.String("path", Path(sourcePath)),
			slog.String("error", err.Error()))
		return snap, res, nil
	}

	// A document saved during the parse would be shadowed by this cache.
	after, _ := store.Stat(srcName)
	if !sameFile(before, after) {
		m.logger.Warn("schedule changed during parse, dropping cache",
			slog.String("path", Path(sourcePath)))
		if err := store.Delete(cacheName); err != nil && !errors.Is(err, fs.ErrNotExist) {
			m.logger.Warn("couldn't remove schedule cache",
				slog.String("path", Path(sourcePath)),
				slog.String("error", err.Error()))
		}
		return snap, res, nil
	}
	res.Written = true
	return snap, res, nil
}

func sameFile(a, b fs.FileInfo) bool {
	if a == nil || b == nil {
		return false
	}
	return a.ModTime().Equal(b.ModTime()) && a.Size() == b.Size()
}

// Invalidate removes the cache file for sourcePath if it exists.
func (m *Manager) Invalidate(sourcePath string) error {
	store, err := storage.NewFS(filepath.Dir(sourcePath))
	if err != nil {
		return err
	}
	err = store.Delete(filepath.Base(sourcePath) + Suffix)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("cache: invalidate: %w", err)
	}
	return nil
}

func (m *Manager) parse(sourcePath string) (*models.Snapshot, error) {
	start := time.Now()
	snap, err := m.parseFile(sourcePath)
	if err != nil {
		return nil, err
	}
	m.metrics.ObserveParse(time.Since(start))
	return snap, nil
}

// read validates and decodes the cache file. The string is a human-readable
// reason for any outcome other than a hit.
func (m *Manager) read(store storage.Provider, srcName, cacheName string) (*models.Snapshot, Outcome, string) {
	cacheInfo, err := store.Stat(cacheName)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, OutcomeMissing, "no cache file"
		}
		return nil, OutcomeCorrupt, err.Error()
	}
	srcInfo, err := store.Stat(srcName)
	if err != nil {
		return nil, OutcomeStale, err.Error()
	}
	if !cacheInfo.ModTime().After(srcInfo.ModTime()) {
		return nil, OutcomeStale, "cache is out of date"
	}

	data, err := store.Read(cacheName)
	if err != nil {
		return nil, OutcomeCorrupt, err.Error()
	}

	dec := gob.NewDecoder(bytes.NewReader(data))
	var version int
	if err := dec.Decode(&version); err != nil {
		return nil, OutcomeCorrupt, fmt.Sprintf("decode version: %v", err)
	}
	if version != m.version {
		return nil, OutcomeVersion, fmt.Sprintf("expected version %d, got version %d", m.version, version)
	}

	var b blob
	if err := dec.Decode(&b); err != nil {
		return nil, OutcomeCorrupt, fmt.Sprintf("decode snapshot: %v", err)
	}
	snap, err := b.snapshot()
	if err != nil {
		return nil, OutcomeCorrupt, err.Error()
	}
	return snap, OutcomeHit, ""
}

func (m *Manager) write(store storage.Provider, cacheName string, snap *models.Snapshot) error {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(m.version); err != nil {
		return fmt.Errorf("cache: encode version: %w", err)
	}
	if err := enc.Encode(newBlob(snap)); err != nil {
		return fmt.Errorf("cache: encode snapshot: %w", err)
	}
	return store.Write(cacheName, buf.Bytes())
}

func newBlob(s *models.Snapshot) blob {
	pos := make(map[*models.Event]int, len(s.Events))
	for i, e := range s.Events {
		pos[e] = i
	}
	positions := func(list []*models.Event) []int {
		out := make([]int, len(list))
		for i, e := range list {
			out[i] = pos[e]
		}
		return out
	}

	b := blob{
		Events:  s.Events,
		ByID:    make(map[string]int, len(s.ByID)),
		ByRoom:  make(map[string][]int, len(s.ByRoom)),
		ByTrack: make(map[string][]int, len(s.ByTrack)),
	}
	for id, e := range s.ByID {
		b.ByID[id] = pos[e]
	}
	for room, list := range s.ByRoom {
		b.ByRoom[room] = positions(list)
	}
	for track, list := range s.ByTrack {
		b.ByTrack[track] = positions(list)
	}
	return b
}

func (b blob) snapshot() (*models.Snapshot, error) {
	at := func(i int) (*models.Event, error) {
		if i < 0 || i >= len(b.Events) || b.Events[i] == nil {
			return nil, fmt.Errorf("cache: event position %d out of range", i)
		}
		return b.Events[i], nil
	}
	resolve := func(idx map[string][]int) (map[string][]*models.Event, error) {
		out := make(map[string][]*models.Event, len(idx))
		for key, positions := range idx {
			list := make([]*models.Event, len(positions))
			for i, p := range positions {
				e, err := at(p)
				if err != nil {
					return nil, err
				}
				list[i] = e
			}
			out[key] = list
		}
		return out, nil
	}

	s := &models.Snapshot{
		Events: b.Events,
		ByID:   make(map[string]*models.Event, len(b.ByID)),
	}
	if s.Events == nil {
		s.Events = []*models.Event{}
	}
	for id, p := range b.ByID {
		e, err := at(p)
		if err != nil {
			return nil, err
		}
		s.ByID[id] = e
	}
	var err error
	if s.ByRoom, err = resolve(b.ByRoom); err != nil {
		return nil, err
	}
	if s.ByTrack, err = resolve(b.ByTrack); err != nil {
		return nil, err
	}
	return s, nil
}
