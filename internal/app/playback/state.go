// Package playback drives single-slot and whole-queue announcement
// playback over at most one live audio handle.
package playback

// State represents the playback state. Collapsing the mode and pause
// flags into one enum makes invalid combinations unrepresentable.
type State int

const (
	StateIdle         State = iota // No clip active
	StatePlayingOne                // One slot playing outside queue mode
	StatePausedOne                 // One slot paused outside queue mode
	StatePlayingQueue              // Queue runner active, current clip audible
	StatePausedQueue               // Queue runner parked, current clip paused
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlayingOne:
		return "playing"
	case StatePausedOne:
		return "paused"
	case StatePlayingQueue:
		return "playing-queue"
	case StatePausedQueue:
		return "paused-queue"
	default:
		return "unknown"
	}
}

// QueueMode reports whether the state belongs to whole-queue playback.
func (s State) QueueMode() bool {
	return s == StatePlayingQueue || s == StatePausedQueue
}

// Audible reports whether a clip is currently producing sound.
func (s State) Audible() bool {
	return s == StatePlayingOne || s == StatePlayingQueue
}
