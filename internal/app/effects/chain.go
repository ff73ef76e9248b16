package effects

import (
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

var ErrUnknownPreset = errors.New("unknown effects preset")

// Chain holds the available presets and the one currently selected.
type Chain struct {
	mu      sync.RWMutex
	presets map[string]Preset
	current string
}

// NewChain creates a chain over the built-in presets plus any presets
// decoded from configuration settings; configured presets override
// built-ins of the same name.
func NewChain(configured map[string]map[string]any) (*Chain, error) {
	presets := BuiltinPresets()
	for name, settings := range configured {
		p, err := DecodePreset(name, settings)
		if err != nil {
			return nil, err
		}
		presets[name] = p
		zlog.Debug().Str("preset", name).Msg("effects: registered configured preset")
	}
	return &Chain{presets: presets, current: "standard"}, nil
}

// Select makes the named preset current.
func (c *Chain) Select(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.presets[name]; !ok {
		return errors.Wrapf(ErrUnknownPreset, "%s", name)
	}
	c.current = name
	return nil
}

// Current returns the selected preset.
func (c *Chain) Current() Preset {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.presets[c.current]
}

// Names lists the available preset names.
func (c *Chain) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.presets))
	for name := range c.presets {
		names = append(names, name)
	}
	return names
}
