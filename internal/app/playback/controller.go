package playback

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/LandoNikko/transit-designer/internal/app/effects"
	"github.com/LandoNikko/transit-designer/internal/domain/transit"
)

// Errors
var (
	ErrNoAudio    = errors.New("slot has no playable audio")
	ErrEmptyQueue = errors.New("announcement queue is empty")

	errStaleRun = errors.New("stale queue run")
)

// QueueFunc returns the current ordered announcement queue.
type QueueFunc func() []transit.SlotKey

// SourceFunc resolves a slot to a playable URL and its known duration.
// ok is false when the slot has no playable assignment.
type SourceFunc func(slot transit.SlotKey) (url string, duration time.Duration, ok bool)

// Config holds controller configuration.
type Config struct {
	PollInterval time.Duration // Progress poll period for remaining-time updates
	MinSpeed     float64
	MaxSpeed     float64
}

func (c *Config) applyDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = 250 * time.Millisecond
	}
	if c.MinSpeed <= 0 {
		c.MinSpeed = 0.5
	}
	if c.MaxSpeed <= 0 {
		c.MaxSpeed = 2.0
	}
}

// Controller manages announcement playback. It owns at most one live
// handle; the queue and slot sources are supplied as callbacks so the
// board's model stays authoritative.
//
// Lock ordering: queueFn and sourceFn read board state, so they are
// never invoked while holding c.mu.
type Controller struct {
	mu sync.RWMutex

	opener   Opener
	chain    *effects.Chain
	queueFn  QueueFunc
	sourceFn SourceFunc
	config   Config

	state      State
	current    transit.SlotKey
	hasCurrent bool
	queueIndex int

	handle Handle
	// gen is bumped whenever the active clip or queue run is replaced;
	// goroutines carry the gen they were started with and bail when it
	// no longer matches.
	gen       int
	runCancel context.CancelFunc

	tickerCancel func()

	speed  float64
	volume float64
	muted  bool

	// remaining holds per-slot remaining seconds for the active clip.
	remaining map[transit.SlotKey]int

	eventCh chan Event

	ctx    context.Context
	cancel context.CancelFunc
}

// NewController creates a playback controller.
func NewController(opener Opener, chain *effects.Chain, queueFn QueueFunc, sourceFn SourceFunc, config Config) *Controller {
	config.applyDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		opener:    opener,
		chain:     chain,
		queueFn:   queueFn,
		sourceFn:  sourceFn,
		config:    config,
		state:     StateIdle,
		speed:     1.0,
		volume:    1.0,
		remaining: make(map[transit.SlotKey]int),
		eventCh:   make(chan Event, 16),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Events returns the event channel.
func (c *Controller) Events() <-chan Event {
	return c.eventCh
}

// PlayOne plays a single slot outside queue mode. Invoking it on the
// slot that is already active toggles pause/resume; any other slot (or
// a running queue) is stopped first and the slot starts fresh.
func (c *Controller) PlayOne(slot transit.SlotKey) error {
	c.mu.Lock()
	if c.hasCurrent && c.current == slot {
		switch c.state {
		case StatePlayingOne:
			c.handle.Pause()
			c.stopTickerLocked()
			c.state = StatePausedOne
			c.sendEventLocked(Event{Type: EventStateChanged, Slot: slot, HasSlot: true, State: c.state})
			c.mu.Unlock()
			return nil
		case StatePausedOne:
			c.handle.Resume()
			c.state = StatePlayingOne
			c.startTickerLocked(slot, c.handle, c.gen)
			c.sendEventLocked(Event{Type: EventStateChanged, Slot: slot, HasSlot: true, State: c.state})
			c.mu.Unlock()
			return nil
		}
	}
	c.mu.Unlock()

	url, dur, ok := c.sourceFn(slot)
	if !ok {
		return errors.Wrapf(ErrNoAudio, "slot %s", slot)
	}
	q := c.queueFn()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.cancelRunLocked()
	c.releaseHandleLocked()
	if c.hasCurrent {
		delete(c.remaining, c.current)
	}

	h, err := c.opener.Open(url, dur)
	if err != nil {
		c.state = StateIdle
		c.hasCurrent = false
		return errors.Wrapf(err, "open audio for slot %s", slot)
	}

	gen := c.gen
	c.handle = h
	c.applyTuningLocked(h)
	c.state = StatePlayingOne
	c.current = slot
	c.hasCurrent = true
	if i := indexOf(q, slot); i >= 0 {
		c.queueIndex = i
	}

	if err := h.Play(); err != nil {
		h.Stop()
		c.handle = nil
		c.state = StateIdle
		c.hasCurrent = false
		return errors.Wrapf(err, "play slot %s", slot)
	}

	c.startTickerLocked(slot, h, gen)
	go c.watchOne(gen, slot, h)
	c.sendEventLocked(Event{Type: EventClipStarted, Slot: slot, HasSlot: true, QueueIndex: c.queueIndex, State: c.state})
	return nil
}

// PlayQueueFrom starts whole-queue playback at the given index. An out
// of range index starts from the head.
func (c *Controller) PlayQueueFrom(index int) error {
	q := c.queueFn()

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playQueueFromLocked(q, index)
}

// ToggleQueue is the master play/pause control. Playing pauses in
// place; paused resumes when the current slot is still in the queue,
// otherwise a fresh run starts.
func (c *Controller) ToggleQueue() error {
	q := c.queueFn()

	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StatePlayingQueue:
		if c.handle != nil {
			c.handle.Pause()
		}
		c.stopTickerLocked()
		c.state = StatePausedQueue
		c.sendEventLocked(Event{Type: EventStateChanged, Slot: c.current, HasSlot: c.hasCurrent, QueueIndex: c.queueIndex, State: c.state})
		return nil

	case StatePausedQueue:
		if c.handle != nil && c.hasCurrent && indexOf(q, c.current) >= 0 {
			c.handle.Resume()
			c.state = StatePlayingQueue
			c.startTickerLocked(c.current, c.handle, c.gen)
			c.sendEventLocked(Event{Type: EventStateChanged, Slot: c.current, HasSlot: true, QueueIndex: c.queueIndex, State: c.state})
			return nil
		}
		if c.queueIndex >= 0 && c.queueIndex < len(q) {
			return c.playQueueFromLocked(q, c.queueIndex)
		}
		return c.playQueueFromLocked(q, 0)

	default:
		return c.playQueueFromLocked(q, 0)
	}
}

// Skip moves the queue position by step (+1 next, -1 previous) with
// wrap-around. When queue playback is audible the new position starts
// immediately; otherwise only the position moves.
func (c *Controller) Skip(step int) error {
	q := c.queueFn()

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(q) == 0 {
		return errors.Wrap(ErrEmptyQueue, "skip")
	}

	next := ((c.queueIndex+step)%len(q) + len(q)) % len(q)
	c.sendEventLocked(Event{Type: EventClipSkipped, Slot: c.current, HasSlot: c.hasCurrent, QueueIndex: next, State: c.state})

	if c.state.QueueMode() && c.state.Audible() {
		if c.hasCurrent {
			delete(c.remaining, c.current)
		}
		return c.playQueueFromLocked(q, next)
	}

	wasPausedQueue := c.state == StatePausedQueue
	c.cancelRunLocked()
	c.releaseHandleLocked()
	if c.hasCurrent {
		delete(c.remaining, c.current)
	}
	c.queueIndex = next
	c.current = q[next]
	c.hasCurrent = true
	if wasPausedQueue {
		c.state = StatePausedQueue
	} else {
		c.state = StateIdle
	}
	return nil
}

// StopAll cancels any queue run, releases the live handle and returns
// to idle. Called when the board model underneath the queue changes.
func (c *Controller) StopAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cancelRunLocked()
	c.releaseHandleLocked()
	c.state = StateIdle
	c.hasCurrent = false
	c.queueIndex = 0
	c.remaining = make(map[transit.SlotKey]int)
	c.sendEventLocked(Event{Type: EventStateChanged, State: c.state})
}

// SetSpeed sets the playback rate, clamped to the configured range.
// A live clip picks the new rate up immediately.
func (c *Controller) SetSpeed(speed float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if speed < c.config.MinSpeed {
		speed = c.config.MinSpeed
	}
	if speed > c.config.MaxSpeed {
		speed = c.config.MaxSpeed
	}
	c.speed = speed
	if c.handle != nil {
		c.applyTuningLocked(c.handle)
	}
}

// SetVolume sets the playback volume in [0, 1].
func (c *Controller) SetVolume(volume float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if volume < 0 {
		volume = 0
	}
	if volume > 1 {
		volume = 1
	}
	c.volume = volume
	if c.handle != nil {
		c.applyTuningLocked(c.handle)
	}
}

// SetMuted mutes or unmutes output without losing the volume setting.
func (c *Controller) SetMuted(muted bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.muted = muted
	if c.handle != nil {
		c.applyTuningLocked(c.handle)
	}
}

// SetEffectsPreset selects the named effects preset and retunes the
// live clip.
func (c *Controller) SetEffectsPreset(name string) error {
	if err := c.chain.Select(name); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handle != nil {
		c.applyTuningLocked(c.handle)
	}
	c.sendEventLocked(Event{Type: EventStateChanged, Slot: c.current, HasSlot: c.hasCurrent, QueueIndex: c.queueIndex, State: c.state})
	return nil
}

// Status is a point-in-time snapshot of the controller.
type Status struct {
	State         State
	Slot          transit.SlotKey
	HasSlot       bool
	QueueIndex    int
	PositionSec   float64
	DurationSec   float64
	Speed         float64
	Volume        float64
	Muted         bool
	EffectsPreset string
}

// GetStatus returns the current playback status.
func (c *Controller) GetStatus() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Status{
		State:         c.state,
		Slot:          c.current,
		HasSlot:       c.hasCurrent,
		QueueIndex:    c.queueIndex,
		Speed:         c.speed,
		Volume:        c.volume,
		Muted:         c.muted,
		EffectsPreset: c.chain.Current().Name,
	}
	if c.handle != nil {
		s.PositionSec = c.handle.Position().Seconds()
		s.DurationSec = c.handle.Duration().Seconds()
	}
	return s
}

// GetState returns the current playback state.
func (c *Controller) GetState() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// RemainingFor returns the remaining seconds last observed for a slot.
func (c *Controller) RemainingFor(slot transit.SlotKey) (int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	sec, ok := c.remaining[slot]
	return sec, ok
}

// Remaining returns a copy of the per-slot remaining-seconds map.
func (c *Controller) Remaining() map[transit.SlotKey]int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[transit.SlotKey]int, len(c.remaining))
	for k, v := range c.remaining {
		out[k] = v
	}
	return out
}

// Close closes the controller and releases resources.
func (c *Controller) Close() {
	c.cancel()
	c.StopAll()
	close(c.eventCh)
}

// playQueueFromLocked replaces any active playback with a queue run
// over the snapshot q starting at index. Must be called with lock held.
func (c *Controller) playQueueFromLocked(q []transit.SlotKey, index int) error {
	if len(q) == 0 {
		return errors.Wrap(ErrEmptyQueue, "play queue")
	}
	if index < 0 || index >= len(q) {
		index = 0
	}

	c.cancelRunLocked()
	c.releaseHandleLocked()

	gen := c.gen
	runCtx, cancel := context.WithCancel(c.ctx)
	c.runCancel = cancel

	c.state = StatePlayingQueue
	c.queueIndex = index
	c.current = q[index]
	c.hasCurrent = true
	c.sendEventLocked(Event{Type: EventStateChanged, Slot: c.current, HasSlot: true, QueueIndex: index, State: c.state})

	go c.runQueue(runCtx, gen, q, index)
	return nil
}

// runQueue plays the queue snapshot sequentially. The snapshot is taken
// when the run starts; later model edits stop the run via StopAll
// rather than mutating it. Per-clip failures are logged and skipped.
func (c *Controller) runQueue(ctx context.Context, gen int, q []transit.SlotKey, start int) {
	for i := start; i < len(q); i++ {
		if ctx.Err() != nil {
			return
		}
		slot := q[i]

		url, dur, ok := c.sourceFn(slot)
		if !ok {
			continue
		}

		h, err := c.startClip(gen, slot, i, url, dur)
		if err != nil {
			if errors.Is(err, errStaleRun) {
				return
			}
			zlog.Warn().Err(err).Msgf("playback: queue clip failed, continuing: slot=%s", slot)
			continue
		}

		select {
		case <-ctx.Done():
			return
		case err := <-h.Done():
			c.clipEnded(gen, slot, err)
		}
	}
	c.finishRun(gen)
}

// startClip opens and starts the next clip of a queue run. When the
// run was paused between clips the handle is prepared but not started;
// ToggleQueue resume picks it up.
func (c *Controller) startClip(gen int, slot transit.SlotKey, index int, url string, dur time.Duration) (Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gen != gen || !c.state.QueueMode() {
		return nil, errStaleRun
	}

	c.releaseHandleLocked()

	h, err := c.opener.Open(url, dur)
	if err != nil {
		return nil, errors.Wrapf(err, "open audio for slot %s", slot)
	}

	c.handle = h
	c.applyTuningLocked(h)
	c.current = slot
	c.hasCurrent = true
	c.queueIndex = index

	if c.state == StatePausedQueue {
		// Parked between clips; leave the handle armed but silent.
		return h, nil
	}

	if err := h.Play(); err != nil {
		h.Stop()
		c.handle = nil
		return nil, errors.Wrapf(err, "play slot %s", slot)
	}

	c.startTickerLocked(slot, h, gen)
	c.sendEventLocked(Event{Type: EventClipStarted, Slot: slot, HasSlot: true, QueueIndex: index, State: c.state})
	return h, nil
}

// clipEnded records the natural end of a queue clip.
func (c *Controller) clipEnded(gen int, slot transit.SlotKey, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gen != gen {
		return
	}

	c.stopTickerLocked()
	c.handle = nil
	delete(c.remaining, slot)

	if err != nil {
		zlog.Warn().Err(err).Msgf("playback: clip ended with error: slot=%s", slot)
	}
	c.sendEventLocked(Event{Type: EventClipEnded, Slot: slot, HasSlot: true, QueueIndex: c.queueIndex, State: c.state})
}

// finishRun returns to idle after the last clip of a run.
func (c *Controller) finishRun(gen int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gen != gen {
		return
	}

	if c.runCancel != nil {
		c.runCancel()
		c.runCancel = nil
	}
	c.releaseHandleLocked()
	c.state = StateIdle
	c.hasCurrent = false
	c.queueIndex = 0
	c.sendEventLocked(Event{Type: EventQueueFinished, State: c.state})
}

// watchOne waits for a single-slot clip to finish.
func (c *Controller) watchOne(gen int, slot transit.SlotKey, h Handle) {
	select {
	case <-c.ctx.Done():
		return
	case err := <-h.Done():
		c.mu.Lock()
		defer c.mu.Unlock()

		if c.gen != gen {
			return
		}

		c.stopTickerLocked()
		c.handle = nil
		c.state = StateIdle
		c.hasCurrent = false
		delete(c.remaining, slot)

		if err != nil {
			zlog.Warn().Err(err).Msgf("playback: clip failed: slot=%s", slot)
		}
		c.sendEventLocked(Event{Type: EventClipEnded, Slot: slot, HasSlot: true, State: c.state})
	}
}

// cancelRunLocked cancels any queue runner and invalidates goroutines
// from the previous generation. Must be called with lock held.
func (c *Controller) cancelRunLocked() {
	if c.runCancel != nil {
		c.runCancel()
		c.runCancel = nil
	}
	c.gen++
}

// releaseHandleLocked stops the progress ticker and the live handle.
// Must be called with lock held.
func (c *Controller) releaseHandleLocked() {
	c.stopTickerLocked()
	if c.handle != nil {
		c.handle.Stop()
		c.handle = nil
	}
}

// applyTuningLocked pushes the effective rate and volume to a handle,
// combining the user settings with the selected effects preset.
func (c *Controller) applyTuningLocked(h Handle) {
	p := c.chain.Current()
	h.SetRate(c.speed * p.RateTrim)

	vol := c.volume * p.Gain
	if vol > 1 {
		vol = 1
	}
	if vol < 0 {
		vol = 0
	}
	if c.muted {
		vol = 0
	}
	h.SetVolume(vol)
}

// startTickerLocked polls the handle and publishes remaining seconds
// for the slot. Must be called with lock held.
func (c *Controller) startTickerLocked(slot transit.SlotKey, h Handle, gen int) {
	c.stopTickerLocked()

	ctx, cancel := context.WithCancel(c.ctx)
	c.tickerCancel = cancel
	interval := c.config.PollInterval

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rem := h.Duration() - h.Position()
				if rem < 0 {
					rem = 0
				}
				c.setRemaining(gen, slot, int(math.Ceil(rem.Seconds())))
			}
		}
	}()
}

func (c *Controller) stopTickerLocked() {
	if c.tickerCancel != nil {
		c.tickerCancel()
		c.tickerCancel = nil
	}
}

func (c *Controller) setRemaining(gen int, slot transit.SlotKey, sec int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// A tick already in flight when the clip ends must not resurrect
	// the entry its end just deleted.
	if c.gen != gen || c.handle == nil || !c.hasCurrent || c.current != slot {
		return
	}
	c.remaining[slot] = sec
}

// sendEventLocked sends an event without blocking.
// Must be called with lock held.
func (c *Controller) sendEventLocked(e Event) {
	select {
	case c.eventCh <- e:
		// Successfully sent
	case <-c.ctx.Done():
		// Context cancelled, don't send
	default:
		// Channel full, drop event
	}
}

func indexOf(q []transit.SlotKey, slot transit.SlotKey) int {
	for i, k := range q {
		if k == slot {
			return i
		}
	}
	return -1
}
