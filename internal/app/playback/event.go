package playback

import "github.com/LandoNikko/transit-designer/internal/domain/transit"

// EventType represents a playback event type.
type EventType int

const (
	EventClipStarted   EventType = iota // Clip started playing
	EventClipEnded                      // Clip finished playing
	EventClipSkipped                    // Queue position was skipped
	EventStateChanged                   // Playback state changed (pause/resume/stop)
	EventQueueFinished                  // Queue run completed or was cancelled
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventClipStarted:
		return "clip_started"
	case EventClipEnded:
		return "clip_ended"
	case EventClipSkipped:
		return "clip_skipped"
	case EventStateChanged:
		return "state_changed"
	case EventQueueFinished:
		return "queue_finished"
	default:
		return "unknown"
	}
}

// Event represents a playback event.
type Event struct {
	Type       EventType
	Slot       transit.SlotKey // Current slot (zero value for some events)
	HasSlot    bool
	QueueIndex int
	State      State // Current playback state
}
