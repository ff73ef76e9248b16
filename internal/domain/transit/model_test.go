package transit

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/LandoNikko/transit-designer/internal/domain/announce"
)

func testModel() Model {
	m := NewModel()
	m.Stations = []Station{
		{ID: "a", Name: "Alpha", GridX: 1, GridY: 1},
		{ID: "b", Name: "Beta", GridX: 2, GridY: 1},
	}
	m.Lines = []Line{{ID: "l1", Name: "Red", Color: "#ef4444", Stations: []string{"a", "b"}}}
	m.Assignments[StationSlot("a")] = announce.Assignment{Kind: announce.KindPreset, URL: "/audio/chime.mp3", Name: "Chime"}
	m.Categories[StationSlot("a")] = announce.CategoryArrival
	m.BetweenSegments[BetweenSlot("a", "b")] = []SlotKey{ExtraSegmentSlot("a", "b", "s1")}
	m.GeneratedHistory[StationSlot("a")] = []announce.Clip{{Kind: announce.KindGenerated, URL: "/audio/gen.mp3", Text: "Alpha"}}
	return m
}

func TestModel_CloneIsIndependent(t *testing.T) {
	m := testModel()
	c := m.Clone()

	// Mutate the original in every collection.
	m.Stations[0].Name = "changed"
	m.Lines[0].Stations[0] = "changed"
	m.Assignments[StationSlot("a")] = announce.Assignment{Kind: announce.KindUploaded, URL: "x"}
	m.Categories[StationSlot("a")] = announce.CategoryWarning
	m.BetweenSegments[BetweenSlot("a", "b")][0] = StationSlot("z")
	m.GeneratedHistory[StationSlot("a")][0].Text = "changed"

	assert.Equal(t, "Alpha", c.Stations[0].Name)
	assert.Equal(t, "a", c.Lines[0].Stations[0])
	assert.Equal(t, announce.KindPreset, c.Assignments[StationSlot("a")].Kind)
	assert.Equal(t, announce.CategoryArrival, c.Categories[StationSlot("a")])
	assert.Equal(t, ExtraSegmentSlot("a", "b", "s1"), c.BetweenSegments[BetweenSlot("a", "b")][0])
	assert.Equal(t, "Alpha", c.GeneratedHistory[StationSlot("a")][0].Text)
}

func TestModel_Category_Defaults(t *testing.T) {
	m := testModel()

	assert.Equal(t, announce.CategoryArrival, m.Category(StationSlot("a")))
	assert.Equal(t, announce.CategoryStation, m.Category(StationSlot("b")))
	assert.Equal(t, announce.CategoryGeneral, m.Category(BetweenSlot("a", "b")))
}

func TestModel_DropSlot(t *testing.T) {
	m := testModel()
	m.DropSlot(StationSlot("a"))

	_, hasAssignment := m.Assignments[StationSlot("a")]
	_, hasCategory := m.Categories[StationSlot("a")]
	_, hasHistory := m.GeneratedHistory[StationSlot("a")]
	assert.False(t, hasAssignment)
	assert.False(t, hasCategory)
	assert.False(t, hasHistory)
}

func TestLine_Sequence_DropsLoopTail(t *testing.T) {
	stations := []Station{{ID: "a"}, {ID: "b"}, {ID: "c"}}

	tests := []struct {
		name string
		line Line
		want []string
	}{
		{
			name: "plain line",
			line: Line{Stations: []string{"a", "b", "c"}},
			want: []string{"a", "b", "c"},
		},
		{
			name: "loop repeats first id",
			line: Line{Stations: []string{"a", "b", "c", "a"}},
			want: []string{"a", "b", "c"},
		},
		{
			name: "unknown ids skipped",
			line: Line{Stations: []string{"a", "ghost", "c"}},
			want: []string{"a", "c"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seq := tt.line.Sequence(stations)
			got := make([]string, len(seq))
			for i, s := range seq {
				got[i] = s.ID
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLine_IsLoop(t *testing.T) {
	assert.True(t, Line{Stations: []string{"a", "b", "a"}}.IsLoop())
	assert.False(t, Line{Stations: []string{"a", "b"}}.IsLoop())
	assert.False(t, Line{Stations: []string{"a"}}.IsLoop())
}
