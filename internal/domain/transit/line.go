package transit

// Line is an ordered sequence of station ids. A loop line repeats the
// first id at the end.
type Line struct {
	ID       string   `json:"id" yaml:"id"`
	Name     string   `json:"name" yaml:"name"`
	Color    string   `json:"color" yaml:"color"`
	Stations []string `json:"stations" yaml:"stations"`
}

// IsLoop reports whether the line closes back on its first station.
func (l Line) IsLoop() bool {
	return len(l.Stations) > 1 && l.Stations[0] == l.Stations[len(l.Stations)-1]
}

// Sequence resolves the line's station ids against the station list,
// in order. Unknown ids are skipped and the repeated tail of a loop is
// dropped so each station appears once.
func (l Line) Sequence(stations []Station) []Station {
	out := make([]Station, 0, len(l.Stations))
	for _, id := range l.Stations {
		if s, ok := FindStation(stations, id); ok {
			out = append(out, s)
		}
	}
	if len(out) > 1 && out[0].ID == out[len(out)-1].ID {
		out = out[:len(out)-1]
	}
	return out
}

// Contains reports whether the line serves the given station.
func (l Line) Contains(stationID string) bool {
	for _, id := range l.Stations {
		if id == stationID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the line.
func (l Line) Clone() Line {
	out := l
	out.Stations = append([]string(nil), l.Stations...)
	return out
}

// FindLine returns the line with the given id.
func FindLine(lines []Line, id string) (Line, bool) {
	for _, l := range lines {
		if l.ID == id {
			return l, true
		}
	}
	return Line{}, false
}
