package config

import (
	"log/slog"
	"sync/atomic"
)

// Store holds the active snapshot. Reload swaps it atomically, so a reader
// holding a snapshot never sees a mix of old and new values.
type Store struct {
	dir     string
	log     *slog.Logger
	current atomic.Pointer[Snapshot]
}

// NewStore loads dir once and returns a store serving that snapshot.
func NewStore(dir string, log *slog.Logger) (*Store, error) {
	s := &Store{dir: dir, log: log}
	if _, err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Dir() string { return s.dir }

// Load returns the current snapshot.
func (s *Store) Load() *Snapshot { return s.current.Load() }

// Reload reads the files again. On error the previous snapshot stays active.
func (s *Store) Reload() (*Snapshot, error) {
	snap, err := Load(s.dir, s.log)
	if err != nil {
		return nil, err
	}
	s.current.Store(snap)
	return snap, nil
}
