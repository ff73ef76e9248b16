package board

import (
	"strings"

	"github.com/LandoNikko/transit-designer/internal/domain/announce"
	"github.com/LandoNikko/transit-designer/internal/domain/transit"
)

// categoryTexts are the default spoken lines per category. {station}
// is replaced with the slot's station name.
var categoryTexts = map[announce.Category]string{
	announce.CategoryStation:        "The next station is {station}.",
	announce.CategoryCentralStation: "We will soon arrive at {station}, the central station. Please change here for all connecting services.",
	announce.CategoryArrival:        "We are now arriving at {station}. Please mind the gap between the train and the platform.",
	announce.CategoryDeparture:      "This train is now departing from {station}. Please stand clear of the closing doors.",
	announce.CategoryTransfer:       "Change here at {station} for connecting lines.",
	announce.CategoryInformation:    "Attention passengers. This is a service information announcement for {station}.",
	announce.CategoryLive:           "This is a live announcement for {station}.",
	announce.CategoryWarning:        "Attention please. For your safety, stand behind the yellow line at {station}.",
	announce.CategoryGeneral:        "{station}",
}

const betweenText = "We are now travelling from {from} towards {to}."

// DefaultTranscript builds the default announcement text for a slot,
// used both as the display transcript and as the generation prompt
// when the user has not written their own.
func DefaultTranscript(k transit.SlotKey, category announce.Category, stations []transit.Station) string {
	if k.Kind == transit.SlotBetween || k.Kind == transit.SlotExtraSegment {
		from := stationName(stations, k.FromID)
		to := stationName(stations, k.ToID)
		text := strings.ReplaceAll(betweenText, "{from}", from)
		return strings.ReplaceAll(text, "{to}", to)
	}

	name := stationName(stations, k.StationID)
	tpl, ok := categoryTexts[category]
	if !ok {
		tpl = categoryTexts[announce.CategoryGeneral]
	}
	return strings.ReplaceAll(tpl, "{station}", name)
}

func stationName(stations []transit.Station, id string) string {
	if st, ok := transit.FindStation(stations, id); ok {
		return st.Name
	}
	return id
}
