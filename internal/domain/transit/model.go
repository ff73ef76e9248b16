package transit

import (
	"github.com/LandoNikko/transit-designer/internal/domain/announce"
)

// Model is the full editable state of a transit system: the tuple the
// history store snapshots and the promotion manager forks.
type Model struct {
	Stations         []Station                         `json:"stations"`
	Lines            []Line                            `json:"lines"`
	Assignments      map[SlotKey]announce.Assignment   `json:"assignments"`
	Categories       map[SlotKey]announce.Category     `json:"categories"`
	BetweenSegments  map[SlotKey][]SlotKey             `json:"between_segments"` // Parent between slot -> extra segments, creation order
	Uploads          []announce.UploadedAudio          `json:"uploads"`
	GeneratedHistory map[SlotKey][]announce.Clip       `json:"generated_history"`
}

// NewModel returns an empty model with all maps initialized.
func NewModel() Model {
	return Model{
		Assignments:      make(map[SlotKey]announce.Assignment),
		Categories:       make(map[SlotKey]announce.Category),
		BetweenSegments:  make(map[SlotKey][]SlotKey),
		GeneratedHistory: make(map[SlotKey][]announce.Clip),
	}
}

// Clone returns a deep copy that shares no memory with the receiver.
// History snapshots must never alias live state.
func (m Model) Clone() Model {
	out := Model{
		Stations:         append([]Station(nil), m.Stations...),
		Lines:            make([]Line, 0, len(m.Lines)),
		Assignments:      make(map[SlotKey]announce.Assignment, len(m.Assignments)),
		Categories:       make(map[SlotKey]announce.Category, len(m.Categories)),
		BetweenSegments:  make(map[SlotKey][]SlotKey, len(m.BetweenSegments)),
		Uploads:          append([]announce.UploadedAudio(nil), m.Uploads...),
		GeneratedHistory: make(map[SlotKey][]announce.Clip, len(m.GeneratedHistory)),
	}
	for _, l := range m.Lines {
		out.Lines = append(out.Lines, l.Clone())
	}
	for k, a := range m.Assignments {
		out.Assignments[k] = a.Clone()
	}
	for k, c := range m.Categories {
		out.Categories[k] = c
	}
	for k, segs := range m.BetweenSegments {
		out.BetweenSegments[k] = append([]SlotKey(nil), segs...)
	}
	for k, clips := range m.GeneratedHistory {
		out.GeneratedHistory[k] = append([]announce.Clip(nil), clips...)
	}
	return out
}

// Category returns the slot's category, falling back to the default for
// its kind when the user never picked one.
func (m Model) Category(k SlotKey) announce.Category {
	if c, ok := m.Categories[k]; ok {
		return c
	}
	return k.DefaultCategory()
}

// DropSlot removes every trace of a slot: assignment, category and
// generation history.
func (m *Model) DropSlot(k SlotKey) {
	delete(m.Assignments, k)
	delete(m.Categories, k)
	delete(m.GeneratedHistory, k)
}
