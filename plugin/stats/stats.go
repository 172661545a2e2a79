// Package stats persists per-player mining statistics as YAML documents.
package stats

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"gopkg.in/yaml.v2"
)

type Counter uint8

const (
	BlocksMined Counter = iota
	RewardsFound
	TieredItemsFound
	KeysFound
)

// Player holds the counters of one player.
type Player struct {
	BlocksMined      int `yaml:"blocks-mined"`
	RewardsFound     int `yaml:"rewards-found"`
	TieredItemsFound int `yaml:"tiered-items-found"`
	KeysFound        int `yaml:"keys-found"`
}

type document struct {
	Name  string `yaml:"name,omitempty"`
	Stats Player `yaml:"stats"`
}

type entry struct {
	name  string
	stats Player
	dirty bool
}

// Store caches the statistics of online players and writes them to
// <dir>/<uuid>.yml.
type Store struct {
	log *slog.Logger
	dir string

	mu      sync.Mutex
	players map[uuid.UUID]*entry
}

func NewStore(log *slog.Logger, dir string) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		log:     log.With("component", "stats"),
		dir:     dir,
		players: make(map[uuid.UUID]*entry),
	}
}

func (s *Store) path(id uuid.UUID) string {
	return filepath.Join(s.dir, id.String()+".yml")
}

// Load reads the statistics of id into the cache. A missing file starts the
// player at zero.
func (s *Store) Load(id uuid.UUID, name string) error {
	e := &entry{name: name}
	data, err := os.ReadFile(s.path(id))
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return fmt.Errorf("read player stats: %w", err)
	default:
		var doc document
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("decode player stats: %w", err)
		}
		e.stats = doc.Stats
	}
	s.mu.Lock()
	s.players[id] = e
	s.mu.Unlock()
	return nil
}

// Increment bumps a counter. Players that were never loaded are created on
// the fly so no progress is lost.
func (s *Store) Increment(id uuid.UUID, c Counter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.players[id]
	if !ok {
		e = &entry{}
		s.players[id] = e
	}
	switch c {
	case BlocksMined:
		e.stats.BlocksMined++
	case RewardsFound:
		e.stats.RewardsFound++
	case TieredItemsFound:
		e.stats.TieredItemsFound++
	case KeysFound:
		e.stats.KeysFound++
	}
	e.dirty = true
}

func (s *Store) Get(id uuid.UUID) Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.players[id]; ok {
		return e.stats
	}
	return Player{}
}

// Save writes id to disk and evicts it from the cache.
func (s *Store) Save(id uuid.UUID) error {
	s.mu.Lock()
	e, ok := s.players[id]
	delete(s.players, id)
	s.mu.Unlock()
	if !ok || !e.dirty {
		return nil
	}
	return s.write(id, e)
}

// SaveAll writes every cached player. The cache is kept.
func (s *Store) SaveAll() error {
	s.mu.Lock()
	snapshot := make(map[uuid.UUID]entry, len(s.players))
	for id, e := range s.players {
		if e.dirty {
			snapshot[id] = *e
			e.dirty = false
		}
	}
	s.mu.Unlock()

	var errs []error
	for id, e := range snapshot {
		if err := s.write(id, &e); err != nil {
			errs = append(errs, err)
		}
	}
	if len(snapshot) > 0 {
		s.log.Info("saved player stats", "count", len(snapshot)-len(errs))
	}
	return errors.Join(errs...)
}

func (s *Store) write(id uuid.UUID, e *entry) error {
	data, err := yaml.Marshal(document{Name: e.name, Stats: e.stats})
	if err != nil {
		return fmt.Errorf("encode player stats: %w", err)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create stats dir: %w", err)
	}
	if err := os.WriteFile(s.path(id), data, 0o644); err != nil {
		return fmt.Errorf("write player stats: %w", err)
	}
	return nil
}
