package playback

import (
	"context"
	"sync"
	"time"
)

// Handle is a single live audio clip. At most one handle exists at a
// time; the controller stops the old one before opening the next.
type Handle interface {
	// Play starts the clip. Completion is reported once on Done.
	Play() error
	Pause()
	Resume()
	// Stop releases the clip. Done never fires after Stop.
	Stop()
	SetRate(rate float64)
	SetVolume(volume float64)
	Position() time.Duration
	Duration() time.Duration
	Done() <-chan error
}

// Opener creates a playback handle for a resolved audio URL.
type Opener interface {
	Open(url string, duration time.Duration) (Handle, error)
}

// TimedOpener produces handles that simulate playback against the wall
// clock for a known clip duration. Position advances in real time scaled
// by the playback rate; no audio device is touched. The server drives
// announcement timing with these while clients render the actual sound.
type TimedOpener struct {
	// Fallback is used when the clip duration is unknown.
	Fallback time.Duration
}

// Open implements Opener.
func (o TimedOpener) Open(url string, duration time.Duration) (Handle, error) {
	if duration <= 0 {
		duration = o.Fallback
	}
	return &timedHandle{
		url:      url,
		duration: duration,
		rate:     1.0,
		volume:   1.0,
		done:     make(chan error, 1),
	}, nil
}

// timedHandle tracks elapsed playback time across pause/resume and rate
// changes. Elapsed time is folded into a scaled offset so a rate change
// mid-clip only affects the remainder.
type timedHandle struct {
	mu sync.Mutex

	url      string
	duration time.Duration
	rate     float64
	volume   float64

	elapsed   time.Duration // Accumulated clip time before the current segment
	startedAt time.Time     // Wall time the current segment began
	playing   bool
	stopped   bool

	timerCancel func()
	done        chan error
}

func (h *timedHandle) Play() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped || h.playing {
		return nil
	}
	h.startSegmentLocked()
	return nil
}

func (h *timedHandle) Pause() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.playing || h.stopped {
		return
	}
	h.foldSegmentLocked()
	if h.timerCancel != nil {
		h.timerCancel()
		h.timerCancel = nil
	}
	h.playing = false
}

func (h *timedHandle) Resume() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.playing || h.stopped {
		return
	}
	h.startSegmentLocked()
}

func (h *timedHandle) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		return
	}
	h.stopped = true
	h.playing = false
	if h.timerCancel != nil {
		h.timerCancel()
		h.timerCancel = nil
	}
}

func (h *timedHandle) SetRate(rate float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if rate <= 0 || rate == h.rate {
		return
	}
	if h.playing {
		// Fold the running segment at the old rate, restart at the new one.
		h.foldSegmentLocked()
		if h.timerCancel != nil {
			h.timerCancel()
			h.timerCancel = nil
		}
		h.rate = rate
		h.startSegmentLocked()
		return
	}
	h.rate = rate
}

func (h *timedHandle) SetVolume(volume float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.volume = volume
}

func (h *timedHandle) Position() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()

	pos := h.elapsed
	if h.playing {
		pos += scaleElapsed(toWallTime(time.Now()).Sub(h.startedAt), h.rate)
	}
	if pos > h.duration {
		return h.duration
	}
	return pos
}

func (h *timedHandle) Duration() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.duration
}

func (h *timedHandle) Done() <-chan error {
	return h.done
}

// startSegmentLocked arms the wall-clock end timer for the remaining
// clip time at the current rate.
func (h *timedHandle) startSegmentLocked() {
	h.startedAt = toWallTime(time.Now())
	h.playing = true

	remaining := h.duration - h.elapsed
	if remaining < 0 {
		remaining = 0
	}
	wait := time.Duration(float64(remaining) / h.rate)
	h.timerCancel = startWallClockTimer(wait, h.finish)
}

// foldSegmentLocked accumulates the running segment into elapsed.
func (h *timedHandle) foldSegmentLocked() {
	h.elapsed += scaleElapsed(toWallTime(time.Now()).Sub(h.startedAt), h.rate)
	if h.elapsed > h.duration {
		h.elapsed = h.duration
	}
}

func (h *timedHandle) finish() {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.stopped = true
	h.playing = false
	h.elapsed = h.duration
	h.mu.Unlock()

	h.done <- nil
}

func scaleElapsed(wall time.Duration, rate float64) time.Duration {
	return time.Duration(float64(wall) * rate)
}

// startWallClockTimer triggers callback after duration, measured on the
// wall clock. Returns a cancel function.
func startWallClockTimer(duration time.Duration, callback func()) func() {
	ctx, cancel := context.WithCancel(context.Background())

	// Use manual wall clock comparison to avoid monotonic clock drift issues
	go func() {
		endTime := toWallTime(time.Now()).Add(duration)
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !toWallTime(time.Now()).Before(endTime) {
					callback()
					return
				}
			}
		}
	}()

	return cancel
}

// toWallTime returns the time with monotonic clock stripped, so that
// differences are computed on real elapsed wall time.
func toWallTime(t time.Time) time.Time {
	return time.Unix(t.Unix(), int64(t.Nanosecond()))
}
