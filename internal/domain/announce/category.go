package announce

// Category tags a slot with the kind of announcement it carries.
type Category string

const (
	CategoryStation        Category = "station"
	CategoryCentralStation Category = "central-station"
	CategoryArrival        Category = "arrival"
	CategoryDeparture      Category = "departure"
	CategoryTransfer       Category = "transfer"
	CategoryInformation    Category = "information"
	CategoryLive           Category = "live"
	CategoryWarning        Category = "warning"
	CategoryChime          Category = "chime"
	CategoryMusic          Category = "music"
	CategoryAmbience       Category = "ambience"
	CategoryGeneral        Category = "general"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryStation, CategoryCentralStation, CategoryArrival,
		CategoryDeparture, CategoryTransfer, CategoryInformation,
		CategoryLive, CategoryWarning, CategoryChime, CategoryMusic,
		CategoryAmbience, CategoryGeneral:
		return true
	}
	return false
}

// Spoken reports whether the category carries spoken content. Chime,
// music and ambience slots have no transcript to generate from.
func (c Category) Spoken() bool {
	switch c {
	case CategoryChime, CategoryMusic, CategoryAmbience:
		return false
	}
	return true
}
