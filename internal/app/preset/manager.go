// Package preset manages the built-in template catalog and the
// user-owned custom system collection, including copy-on-first-edit
// promotion.
package preset

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/LandoNikko/transit-designer/internal/domain/transit"
)

var ErrUnknownSystem = errors.New("unknown transit system")

// Manager owns the two system collections. Built-ins are read-only
// seeds; after any station/line/assignment edit against a built-in the
// active system is a custom copy, never the template.
type Manager struct {
	mu       sync.RWMutex
	builtins []transit.System
	customs  []transit.System
}

// NewManager creates a manager over the given built-in catalog and any
// previously persisted custom systems.
func NewManager(builtins, customs []transit.System) *Manager {
	return &Manager{builtins: builtins, customs: customs}
}

// Lookup resolves an id against both collections.
func (m *Manager) Lookup(id string) (transit.System, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, sys := range m.customs {
		if sys.ID == id {
			return sys.Clone(), true
		}
	}
	for _, sys := range m.builtins {
		if sys.ID == id {
			return sys.Clone(), true
		}
	}
	return transit.System{}, false
}

// Builtins returns the built-in catalog.
func (m *Manager) Builtins() []transit.System {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]transit.System, len(m.builtins))
	for i, sys := range m.builtins {
		out[i] = sys.Clone()
	}
	return out
}

// Customs returns a copy of the custom collection, newest first.
func (m *Manager) Customs() []transit.System {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]transit.System, len(m.customs))
	for i, sys := range m.customs {
		out[i] = sys.Clone()
	}
	return out
}

// IsCustom reports whether the id names a custom system.
func (m *Manager) IsCustom(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, sys := range m.customs {
		if sys.ID == id {
			return true
		}
	}
	return false
}

// AddCustom prepends a new custom system to the collection.
func (m *Manager) AddCustom(sys transit.System) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sys.IsCustom = true
	m.customs = append([]transit.System{sys.Clone()}, m.customs...)
}

// DeleteCustom removes a custom system by id.
func (m *Manager) DeleteCustom(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, sys := range m.customs {
		if sys.ID == id {
			m.customs = append(m.customs[:i], m.customs[i+1:]...)
			return true
		}
	}
	return false
}

// Result describes the outcome of a committed mutation.
type Result struct {
	ActiveID string         // Unchanged for in-place updates, new id on promotion
	Lines    []transit.Line // Live line list; carries the " (Copy)" suffix on promotion
	Promoted bool
}

// OnMutate is called for every committed edit to stations, lines or
// audio assignments. If the active system is custom, the proposed model
// is applied in place. If it is a built-in, a new custom copy is forked
// and becomes active; built-ins are never written.
func (m *Manager) OnMutate(activeID string, proposed transit.Model) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, sys := range m.customs {
		if sys.ID == activeID {
			m.customs[i].Model = proposed.Clone()
			return Result{ActiveID: activeID, Lines: proposed.Lines}, nil
		}
	}

	var template *transit.System
	for i := range m.builtins {
		if m.builtins[i].ID == activeID {
			template = &m.builtins[i]
			break
		}
	}
	if template == nil {
		return Result{}, errors.Wrapf(ErrUnknownSystem, "id %s", activeID)
	}

	copyID := "custom-" + uuid.New().String()
	forked := proposed.Clone()
	for i := range forked.Lines {
		forked.Lines[i].Name += " (Copy)"
	}

	m.customs = append([]transit.System{{
		ID:              copyID,
		Name:            template.Name,
		Description:     template.Description,
		FullDescription: template.FullDescription,
		IsCustom:        true,
		IsCopy:          true,
		Model:           forked,
	}}, m.customs...)

	zlog.Info().
		Str("template", activeID).
		Str("copy", copyID).
		Msg("preset: promoted built-in to custom system")

	return Result{ActiveID: copyID, Lines: forked.Lines, Promoted: true}, nil
}
