package transit

import (
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/LandoNikko/transit-designer/internal/domain/announce"
)

// SlotKind discriminates the slot key union.
type SlotKind int

const (
	SlotStation      SlotKind = iota // A station's primary slot
	SlotBetween                      // The segment between two adjacent stations
	SlotExtraStation                 // An additional slot attached to a station
	SlotExtraSegment                 // An additional slot attached to a between segment
)

// String returns the string representation of the slot kind.
func (k SlotKind) String() string {
	switch k {
	case SlotStation:
		return "station"
	case SlotBetween:
		return "between"
	case SlotExtraStation:
		return "extra-station"
	case SlotExtraSegment:
		return "extra-segment"
	default:
		return "unknown"
	}
}

// SlotKey names one position in a line's announcement timeline. It is a
// value object: slots exist only as keys in the assignment and category
// maps plus the extra-slot index lists. The zero value is not a valid
// key.
type SlotKey struct {
	Kind      SlotKind `json:"kind"`
	StationID string   `json:"station_id,omitempty"` // Station, ExtraStation
	FromID    string   `json:"from_id,omitempty"`    // Between, ExtraSegment
	ToID      string   `json:"to_id,omitempty"`
	Suffix    string   `json:"suffix,omitempty"` // ExtraStation, ExtraSegment uniquifier
}

// StationSlot returns the primary slot key for a station.
func StationSlot(stationID string) SlotKey {
	return SlotKey{Kind: SlotStation, StationID: stationID}
}

// BetweenSlot returns the slot key for the segment from one station to
// the next.
func BetweenSlot(fromID, toID string) SlotKey {
	return SlotKey{Kind: SlotBetween, FromID: fromID, ToID: toID}
}

// ExtraStationSlot returns an additional station slot key.
func ExtraStationSlot(stationID, suffix string) SlotKey {
	return SlotKey{Kind: SlotExtraStation, StationID: stationID, Suffix: suffix}
}

// ExtraSegmentSlot returns an additional between-segment slot key.
func ExtraSegmentSlot(fromID, toID, suffix string) SlotKey {
	return SlotKey{Kind: SlotExtraSegment, FromID: fromID, ToID: toID, Suffix: suffix}
}

// Parent returns the between slot an extra segment belongs to. For all
// other kinds it returns the key itself.
func (k SlotKey) Parent() SlotKey {
	if k.Kind == SlotExtraSegment {
		return BetweenSlot(k.FromID, k.ToID)
	}
	return k
}

// AtStation reports whether the slot is anchored at a station rather
// than a travel segment.
func (k SlotKey) AtStation() bool {
	return k.Kind == SlotStation || k.Kind == SlotExtraStation
}

// DefaultCategory returns the category a slot carries before the user
// picks one: station slots announce the station, between slots are
// general.
func (k SlotKey) DefaultCategory() announce.Category {
	if k.AtStation() {
		return announce.CategoryStation
	}
	return announce.CategoryGeneral
}

// String formats the key in its wire form: station-<id>,
// between-<from>-<to>, station-<id>-slot-<suffix>,
// between-<from>-<to>-segment-<suffix>.
func (k SlotKey) String() string {
	var b strings.Builder
	switch k.Kind {
	case SlotStation:
		b.WriteString("station-")
		b.WriteString(k.StationID)
	case SlotExtraStation:
		b.WriteString("station-")
		b.WriteString(k.StationID)
		b.WriteString("-slot-")
		b.WriteString(k.Suffix)
	case SlotBetween:
		b.WriteString("between-")
		b.WriteString(k.FromID)
		b.WriteString("-")
		b.WriteString(k.ToID)
	case SlotExtraSegment:
		b.WriteString("between-")
		b.WriteString(k.FromID)
		b.WriteString("-")
		b.WriteString(k.ToID)
		b.WriteString("-segment-")
		b.WriteString(k.Suffix)
	}
	return b.String()
}

// ParseSlotKey parses the wire form produced by String. Station ids and
// suffixes never contain dashes, which keeps the format unambiguous.
func ParseSlotKey(s string) (SlotKey, error) {
	parts := strings.Split(s, "-")
	switch {
	case len(parts) == 2 && parts[0] == "station":
		return StationSlot(parts[1]), nil
	case len(parts) == 4 && parts[0] == "station" && parts[2] == "slot":
		return ExtraStationSlot(parts[1], parts[3]), nil
	case len(parts) == 3 && parts[0] == "between":
		return BetweenSlot(parts[1], parts[2]), nil
	case len(parts) == 5 && parts[0] == "between" && parts[3] == "segment":
		return ExtraSegmentSlot(parts[1], parts[2], parts[4]), nil
	}
	return SlotKey{}, errors.Newf("invalid slot key: %q", s)
}

// MarshalText implements encoding.TextMarshaler so maps keyed by
// SlotKey serialize with readable keys.
func (k SlotKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *SlotKey) UnmarshalText(text []byte) error {
	parsed, err := ParseSlotKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
