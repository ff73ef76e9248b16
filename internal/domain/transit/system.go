package transit

// System is the unit of persistence: a named transit network plus the
// full announcement state. Built-in systems are immutable templates;
// custom systems are user-owned and mutable in place.
type System struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Description     string `json:"description,omitempty"`
	FullDescription string `json:"full_description,omitempty"`
	IsCustom        bool   `json:"is_custom"`
	IsCopy          bool   `json:"is_copy,omitempty"` // Forked from a built-in template
	Model           Model  `json:"model"`
}

// Clone returns a deep copy of the system.
func (s System) Clone() System {
	out := s
	out.Model = s.Model.Clone()
	return out
}
