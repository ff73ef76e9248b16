// Package announce provides the announcement audio domain entities.
package announce

import "time"

// Kind identifies where an audio assignment's resource came from.
type Kind string

const (
	KindPreset      Kind = "preset"       // Shipped audio catalog entry
	KindUploaded    Kind = "uploaded"     // User-provided file
	KindGenerated   Kind = "generated"    // Remote text-to-speech result
	KindSoundEffect Kind = "sound-effect" // Remote sound-effect result
)

// Generation holds the parameters a generated clip was produced from.
type Generation struct {
	Text      string    `json:"text" yaml:"text"`
	VoiceID   string    `json:"voice_id,omitempty" yaml:"voice_id,omitempty"`
	VoiceName string    `json:"voice_name,omitempty" yaml:"voice_name,omitempty"`
	At        time.Time `json:"at" yaml:"at"`
}

// Assignment maps a slot to a playable audio resource.
// A slot with no assignment has no audio and never enters the queue.
type Assignment struct {
	Kind       Kind        `json:"kind" yaml:"kind"`
	URL        string      `json:"url" yaml:"url"`
	Filename   string      `json:"filename,omitempty" yaml:"filename,omitempty"` // Preset catalog filename, resolved to URL on load
	Name       string      `json:"name" yaml:"name"`
	Transcript string      `json:"transcript,omitempty" yaml:"transcript,omitempty"`
	Generation *Generation `json:"generation,omitempty" yaml:"generation,omitempty"`
}

// Playable reports whether the assignment resolves to something the
// queue can play.
func (a Assignment) Playable() bool {
	return a.URL != ""
}

// Clone returns a deep copy of the assignment.
func (a Assignment) Clone() Assignment {
	out := a
	if a.Generation != nil {
		g := *a.Generation
		out.Generation = &g
	}
	return out
}

// Clip is one generated candidate kept in a slot's generation history,
// independent of which candidate is currently assigned.
type Clip struct {
	Kind      Kind      `json:"kind" yaml:"kind"`
	URL       string    `json:"url" yaml:"url"`
	Name      string    `json:"name" yaml:"name"`
	Text      string    `json:"text" yaml:"text"`
	VoiceID   string    `json:"voice_id,omitempty" yaml:"voice_id,omitempty"`
	VoiceName string    `json:"voice_name,omitempty" yaml:"voice_name,omitempty"`
	At        time.Time `json:"at" yaml:"at"`
}

// Assignment converts the clip into an assignment for its slot.
func (c Clip) Assignment() Assignment {
	return Assignment{
		Kind:       c.Kind,
		URL:        c.URL,
		Name:       c.Name,
		Transcript: c.Text,
		Generation: &Generation{
			Text:      c.Text,
			VoiceID:   c.VoiceID,
			VoiceName: c.VoiceName,
			At:        c.At,
		},
	}
}

// UploadedAudio is a user-provided audio file registered with the board.
// The URL's lifetime is owned by the uploader and revoked on removal.
type UploadedAudio struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
	URL  string `json:"url" yaml:"url"`
}
