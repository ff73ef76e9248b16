// Package media resolves slot assignments to playable resources and
// their durations.
package media

import (
	"context"
	"math"
	"sync"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/LandoNikko/transit-designer/internal/domain/announce"
	"github.com/LandoNikko/transit-designer/internal/domain/transit"
)

// DefaultFallbackDuration is assumed when a resource's metadata cannot
// be read, so queue totals stay numerically sane.
const DefaultFallbackDuration = 30 * time.Second

// Prober reads the duration of an audio resource.
type Prober interface {
	Probe(ctx context.Context, url string) (time.Duration, error)
}

// PresetCatalog maps preset catalog filenames to servable URLs.
type PresetCatalog interface {
	PresetPath(filename string) (string, bool)
}

// Resolver yields playable URLs for assignments and lazily resolves
// their durations. Duration resolution is fire-and-forget; callers must
// tolerate absent durations until a probe completes.
type Resolver struct {
	mu        sync.RWMutex
	durations map[transit.SlotKey]time.Duration

	catalog  PresetCatalog
	prober   Prober
	fallback time.Duration
	timeout  time.Duration
}

// NewResolver creates a resolver probing through the given prober. A
// nil prober resolves everything to the fallback duration.
func NewResolver(catalog PresetCatalog, prober Prober) *Resolver {
	return &Resolver{
		durations: make(map[transit.SlotKey]time.Duration),
		catalog:   catalog,
		prober:    prober,
		fallback:  DefaultFallbackDuration,
		timeout:   10 * time.Second,
	}
}

// SetFallback overrides the duration assumed when probing fails. Call
// it before the first probe is issued.
func (r *Resolver) SetFallback(d time.Duration) {
	if d > 0 {
		r.fallback = d
	}
}

// ResolveURL yields the playable URL for an assignment. Preset-path
// resources resolve by filename lookup against the catalog; uploaded
// and generated resources carry caller-owned URLs already.
func (r *Resolver) ResolveURL(a announce.Assignment) (string, bool) {
	if a.Kind == announce.KindPreset && a.URL == "" && a.Filename != "" && r.catalog != nil {
		return r.catalog.PresetPath(a.Filename)
	}
	return a.URL, a.URL != ""
}

// ResolveDuration probes the resource's metadata in the background and
// stores the ceiling of its duration in seconds keyed by slot. A failed
// probe stores the fallback.
func (r *Resolver) ResolveDuration(slot transit.SlotKey, url string) {
	if url == "" {
		return
	}
	go func() {
		d := r.fallback
		if r.prober != nil {
			ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
			defer cancel()

			probed, err := r.prober.Probe(ctx, url)
			if err != nil || probed <= 0 {
				zlog.Warn().Str("slot", slot.String()).Str("url", url).Err(err).
					Msg("media: duration probe failed, using fallback")
			} else {
				d = ceilSeconds(probed)
			}
		}

		r.mu.Lock()
		r.durations[slot] = d
		r.mu.Unlock()
	}()
}

// Duration returns the resolved duration for a slot, if any.
func (r *Resolver) Duration(slot transit.SlotKey) (time.Duration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.durations[slot]
	return d, ok
}

// Durations returns a copy of the duration map.
func (r *Resolver) Durations() map[transit.SlotKey]time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[transit.SlotKey]time.Duration, len(r.durations))
	for k, d := range r.durations {
		out[k] = d
	}
	return out
}

// Forget drops a slot's resolved duration, e.g. when its slot is
// removed or its assignment replaced.
func (r *Resolver) Forget(slot transit.SlotKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.durations, slot)
}

// Reset drops all resolved durations.
func (r *Resolver) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.durations = make(map[transit.SlotKey]time.Duration)
}

func ceilSeconds(d time.Duration) time.Duration {
	return time.Duration(math.Ceil(d.Seconds())) * time.Second
}
