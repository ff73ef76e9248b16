// Package transit provides the transit network domain entities.
package transit

// GridSpacing is the pixel distance between adjacent grid indices.
const GridSpacing = 30

// Station is one stop on the diagram. Station ids are dash-free by
// construction so composite slot keys stay parseable.
type Station struct {
	ID     string  `json:"id" yaml:"id"`
	Name   string  `json:"name" yaml:"name"`
	GridX  int     `json:"grid_x" yaml:"grid_x"`
	GridY  int     `json:"grid_y" yaml:"grid_y"`
	X      float64 `json:"x" yaml:"x"` // Derived pixel position
	Y      float64 `json:"y" yaml:"y"`
	Color  string  `json:"color,omitempty" yaml:"color,omitempty"`
	LineID string  `json:"line_id,omitempty" yaml:"line_id,omitempty"`
	Index  int     `json:"index" yaml:"index"` // Sequence index within its line
}

// SnapToGrid recomputes the pixel position from the grid indices.
func (s *Station) SnapToGrid() {
	s.X = float64(s.GridX * GridSpacing)
	s.Y = float64(s.GridY * GridSpacing)
}

// FindStation returns the station with the given id.
func FindStation(stations []Station, id string) (Station, bool) {
	for _, s := range stations {
		if s.ID == id {
			return s, true
		}
	}
	return Station{}, false
}
