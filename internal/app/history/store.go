// Package history provides the undo/redo snapshot store.
package history

import (
	"sync"

	zlog "github.com/rs/zerolog/log"

	"github.com/LandoNikko/transit-designer/internal/domain/transit"
)

// maxEntries caps the snapshot buffer. Once full, the oldest entry is
// evicted and the cursor clamped so it never exceeds maxEntries-1.
const maxEntries = 100

// Store holds an append-bounded sequence of full-model snapshots and a
// cursor. Snapshots are deep copies and never alias live state; callers
// apply returned snapshots to the live model themselves.
type Store struct {
	mu        sync.RWMutex
	snapshots []transit.Model
	cursor    int
}

// New creates an empty store. The first usable state arrives via Seed.
func New() *Store {
	return &Store{cursor: -1}
}

// Seed replaces the buffer with a single snapshot at cursor 0. Preset
// loads go through here: they are not undoable steps, so the first
// undoable action is the first edit after the load.
func (s *Store) Seed(m transit.Model) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshots = []transit.Model{m.Clone()}
	s.cursor = 0
}

// Commit appends a deep copy of the model immediately after the cursor,
// discarding any redo branch, then advances the cursor. Commit is
// synchronous: when it returns, the mutation is durable in history.
func (s *Store) Commit(m transit.Model) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshots = append(s.snapshots[:s.cursor+1], m.Clone())
	s.cursor++

	if len(s.snapshots) > maxEntries {
		s.snapshots = s.snapshots[1:]
		s.cursor = len(s.snapshots) - 1
		zlog.Debug().Int("cursor", s.cursor).Msg("history: evicted oldest snapshot")
	}
}

// Undo moves the cursor back one step and returns a copy of the
// snapshot there. At cursor 0 it is a no-op.
func (s *Store) Undo() (transit.Model, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cursor <= 0 {
		return transit.Model{}, false
	}
	s.cursor--
	return s.snapshots[s.cursor].Clone(), true
}

// Redo moves the cursor forward one step and returns a copy of the
// snapshot there. At the newest entry it is a no-op.
func (s *Store) Redo() (transit.Model, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cursor < 0 || s.cursor >= len(s.snapshots)-1 {
		return transit.Model{}, false
	}
	s.cursor++
	return s.snapshots[s.cursor].Clone(), true
}

// CanUndo reports whether a step back is available.
func (s *Store) CanUndo() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cursor > 0
}

// CanRedo reports whether a step forward is available.
func (s *Store) CanRedo() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cursor >= 0 && s.cursor < len(s.snapshots)-1
}

// Len returns the number of stored snapshots.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.snapshots)
}

// Cursor returns the current cursor position.
func (s *Store) Cursor() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cursor
}
