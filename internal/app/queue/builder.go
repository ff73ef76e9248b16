// Package queue derives the ordered playback sequence for a line.
//
// The queue is a pure function of current state and is recomputed on
// every read, so it can never go stale relative to the latest
// assignments.
package queue

import (
	"time"

	"github.com/LandoNikko/transit-designer/internal/domain/announce"
	"github.com/LandoNikko/transit-designer/internal/domain/transit"
)

// Build walks the line's station sequence once and emits, per station:
// the primary slot if it has a playable assignment, then each extra
// slot in creation order, then (if not the last station) the between
// slot followed by its extra segments in creation order. Unassigned
// slots are skipped entirely, which makes queue position and duration
// sums directly meaningful.
func Build(
	line transit.Line,
	stations []transit.Station,
	assignments map[transit.SlotKey]announce.Assignment,
	extraSlots map[string][]transit.SlotKey,
	extraSegments map[transit.SlotKey][]transit.SlotKey,
) []transit.SlotKey {
	seq := line.Sequence(stations)
	out := make([]transit.SlotKey, 0, len(seq)*2)

	playable := func(k transit.SlotKey) bool {
		a, ok := assignments[k]
		return ok && a.Playable()
	}

	for i, st := range seq {
		if k := transit.StationSlot(st.ID); playable(k) {
			out = append(out, k)
		}
		for _, k := range extraSlots[st.ID] {
			if playable(k) {
				out = append(out, k)
			}
		}

		if i == len(seq)-1 {
			continue
		}
		between := transit.BetweenSlot(st.ID, seq[i+1].ID)
		if playable(between) {
			out = append(out, between)
		}
		for _, k := range extraSegments[between] {
			if playable(k) {
				out = append(out, k)
			}
		}
	}
	return out
}

// IndexOf returns the slot's position in the queue, or -1.
func IndexOf(q []transit.SlotKey, slot transit.SlotKey) int {
	for i, k := range q {
		if k == slot {
			return i
		}
	}
	return -1
}

// TotalDuration sums the known durations of all queue entries. Entries
// whose duration has not resolved yet contribute nothing.
func TotalDuration(q []transit.SlotKey, durations map[transit.SlotKey]time.Duration) time.Duration {
	var total time.Duration
	for _, k := range q {
		total += durations[k]
	}
	return total
}

// Elapsed sums the durations of all entries before index, plus the
// position within the current clip.
func Elapsed(q []transit.SlotKey, durations map[transit.SlotKey]time.Duration, index int, inClip time.Duration) time.Duration {
	var elapsed time.Duration
	for i := 0; i < index && i < len(q); i++ {
		elapsed += durations[q[i]]
	}
	return elapsed + inClip
}

// Remaining is the total duration minus the elapsed time.
func Remaining(q []transit.SlotKey, durations map[transit.SlotKey]time.Duration, index int, inClip time.Duration) time.Duration {
	r := TotalDuration(q, durations) - Elapsed(q, durations, index, inClip)
	if r < 0 {
		return 0
	}
	return r
}
