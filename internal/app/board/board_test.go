package board

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LandoNikko/transit-designer/internal/app/effects"
	"github.com/LandoNikko/transit-designer/internal/app/history"
	"github.com/LandoNikko/transit-designer/internal/app/media"
	"github.com/LandoNikko/transit-designer/internal/app/playback"
	"github.com/LandoNikko/transit-designer/internal/app/preset"
	"github.com/LandoNikko/transit-designer/internal/domain/announce"
	"github.com/LandoNikko/transit-designer/internal/domain/transit"
)

type fakeStore struct {
	mu       sync.Mutex
	saves    int
	removed  []string
	failSave bool
}

func (s *fakeStore) SaveCustomSystems([]transit.System) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSave {
		return errors.New("disk full")
	}
	s.saves++
	return nil
}

func (s *fakeStore) SaveUpload(name string, _ []byte) (announce.UploadedAudio, error) {
	return announce.UploadedAudio{
		ID:   "upload" + name,
		Name: name,
		URL:  "/media/uploads/" + name,
	}, nil
}

func (s *fakeStore) RemoveUpload(url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removed = append(s.removed, url)
	return nil
}

type fakeGenerator struct {
	fail         bool
	speechCalls  int
	effectsCalls int
}

func (g *fakeGenerator) GenerateSpeech(_ context.Context, text, voiceID, voiceName string) ([]announce.Clip, error) {
	g.speechCalls++
	if g.fail {
		return nil, errors.New("synthesis unavailable")
	}
	return []announce.Clip{
		{Kind: announce.KindGenerated, URL: "mem://gen-1", Name: "Take 1", Text: text, VoiceID: voiceID, VoiceName: voiceName, At: time.Now()},
		{Kind: announce.KindGenerated, URL: "mem://gen-2", Name: "Take 2", Text: text, VoiceID: voiceID, VoiceName: voiceName, At: time.Now()},
	}, nil
}

func (g *fakeGenerator) GenerateSoundEffect(_ context.Context, prompt string) ([]announce.Clip, error) {
	g.effectsCalls++
	if g.fail {
		return nil, errors.New("synthesis unavailable")
	}
	clips := make([]announce.Clip, 4)
	for i := range clips {
		clips[i] = announce.Clip{Kind: announce.KindSoundEffect, URL: "mem://sfx", Name: "Effect", Text: prompt, At: time.Now()}
	}
	return clips, nil
}

type fakeDefaults struct {
	pool []announce.Assignment
}

func (d *fakeDefaults) DefaultStationAssignments() []announce.Assignment {
	return d.pool
}

func testSystem() transit.System {
	m := transit.NewModel()
	m.Stations = []transit.Station{
		{ID: "alpha", Name: "Alpha", LineID: "line1"},
		{ID: "beta", Name: "Beta", LineID: "line1"},
		{ID: "gamma", Name: "Gamma", LineID: "line1"},
	}
	m.Lines = []transit.Line{
		{ID: "line1", Name: "Main Line", Color: "#cc0000", Stations: []string{"alpha", "beta", "gamma"}},
	}
	return transit.System{ID: "metro", Name: "Metro", Description: "Test metro", Model: m}
}

func playableAudio(name string) announce.Assignment {
	return announce.Assignment{Kind: announce.KindUploaded, URL: "mem://" + name, Name: name}
}

func newTestBoard(t *testing.T, gen Generator, defs Defaults) (*Board, *fakeStore) {
	t.Helper()

	chain, err := effects.NewChain(nil)
	require.NoError(t, err)

	store := &fakeStore{}
	b, err := New(Options{
		Presets:         preset.NewManager([]transit.System{testSystem()}, nil),
		History:         history.New(),
		Resolver:        media.NewResolver(nil, nil),
		Store:           store,
		Generator:       gen,
		Defaults:        defs,
		Opener:          playback.TimedOpener{Fallback: time.Second},
		Chain:           chain,
		Playback:        playback.Config{},
		DefaultSystemID: "metro",
	})
	require.NoError(t, err)
	t.Cleanup(b.Close)
	return b, store
}

func TestBoard_FirstEditPromotesBuiltin(t *testing.T) {
	b, store := newTestBoard(t, nil, nil)

	require.Equal(t, "metro", b.ActiveSystemID())

	slot := transit.StationSlot("alpha")
	require.NoError(t, b.AssignAudio(slot, playableAudio("chime")))

	activeID := b.ActiveSystemID()
	assert.NotEqual(t, "metro", activeID)
	assert.True(t, strings.HasPrefix(activeID, "custom-"))

	builtins, customs := b.Systems()
	require.Len(t, customs, 1)
	assert.True(t, customs[0].IsCopy)
	assert.Equal(t, "Main Line (Copy)", customs[0].Model.Lines[0].Name)

	// The template built-in is untouched
	require.Len(t, builtins, 1)
	assert.Equal(t, "Main Line", builtins[0].Model.Lines[0].Name)
	assert.Empty(t, builtins[0].Model.Assignments)

	// The live model shows the renamed lines
	assert.Equal(t, "Main Line (Copy)", b.Model().Lines[0].Name)

	// A second edit stays in the same custom
	require.NoError(t, b.AssignAudio(transit.StationSlot("beta"), playableAudio("bell")))
	_, customs = b.Systems()
	assert.Len(t, customs, 1)
	assert.Equal(t, activeID, b.ActiveSystemID())

	store.mu.Lock()
	assert.GreaterOrEqual(t, store.saves, 2, "custom systems persisted after edits")
	store.mu.Unlock()
}

func TestBoard_UndoRedo(t *testing.T) {
	b, _ := newTestBoard(t, nil, nil)

	slot := transit.StationSlot("alpha")
	assert.False(t, b.CanUndo(), "seed snapshot is not undoable")

	require.NoError(t, b.AssignAudio(slot, playableAudio("chime")))
	require.True(t, b.CanUndo())

	require.True(t, b.Undo())
	assert.Empty(t, b.Model().Assignments)
	assert.True(t, b.CanRedo())

	require.True(t, b.Redo())
	got := b.Model().Assignments[slot]
	assert.Equal(t, "mem://chime", got.URL)

	assert.False(t, b.Undo() && b.Undo(), "cannot undo past the seed")
}

func TestBoard_CategoryEditDoesNotPromote(t *testing.T) {
	b, _ := newTestBoard(t, nil, nil)

	slot := transit.StationSlot("beta")
	require.NoError(t, b.SetCategory(slot, announce.CategoryArrival))

	assert.Equal(t, "metro", b.ActiveSystemID(), "category edits must not fork a copy")
	_, customs := b.Systems()
	assert.Empty(t, customs)

	assert.Equal(t, announce.CategoryArrival, b.Model().Category(slot))
	assert.True(t, b.CanUndo(), "category edits are still undoable")

	err := b.SetCategory(slot, announce.Category("bogus"))
	require.Error(t, err)
}

func TestBoard_BetweenSegments(t *testing.T) {
	b, _ := newTestBoard(t, nil, nil)

	between := transit.BetweenSlot("alpha", "beta")
	seg, err := b.AddBetweenSegment(between)
	require.NoError(t, err)
	assert.Equal(t, transit.SlotExtraSegment, seg.Kind)
	assert.Equal(t, between, seg.Parent())

	require.NoError(t, b.AssignAudio(seg, playableAudio("door-chime")))
	require.NoError(t, b.AssignAudio(between, playableAudio("travel")))

	q := b.Queue()
	assert.Equal(t, []transit.SlotKey{between, seg}, q)

	require.NoError(t, b.RemoveBetweenSegment(seg))
	m := b.Model()
	assert.Empty(t, m.BetweenSegments)
	_, ok := m.Assignments[seg]
	assert.False(t, ok, "segment removal drops its assignment")

	_, err = b.AddBetweenSegment(transit.StationSlot("alpha"))
	require.Error(t, err, "only between slots take extra segments")
}

func TestBoard_ExtraStationSlots(t *testing.T) {
	b, _ := newTestBoard(t, nil, nil)

	slot, err := b.AddExtraStationSlot("alpha")
	require.NoError(t, err)
	assert.Equal(t, transit.SlotExtraStation, slot.Kind)

	_, err = b.AddExtraStationSlot("nowhere")
	require.ErrorIs(t, err, ErrUnknownStation)

	require.NoError(t, b.AssignAudio(transit.StationSlot("alpha"), playableAudio("main")))
	require.NoError(t, b.AssignAudio(slot, playableAudio("extra")))

	q := b.Queue()
	require.Len(t, q, 2)
	assert.Equal(t, transit.StationSlot("alpha"), q[0])
	assert.Equal(t, slot, q[1], "extra slots follow their station")

	// A round-trip through the wire format preserves the key
	parsed, err := transit.ParseSlotKey(slot.String())
	require.NoError(t, err)
	assert.Equal(t, slot, parsed)

	require.NoError(t, b.RemoveExtraStationSlot(slot))
	assert.Empty(t, b.ExtraStationSlots())
	_, ok := b.Model().Assignments[slot]
	assert.False(t, ok)
}

func TestBoard_SelectLineSeedsDefaults(t *testing.T) {
	defs := &fakeDefaults{pool: []announce.Assignment{
		{Kind: announce.KindPreset, URL: "/media/presets/one.mp3", Name: "One"},
		{Kind: announce.KindPreset, URL: "/media/presets/two.mp3", Name: "Two"},
	}}
	b, _ := newTestBoard(t, nil, defs)

	require.NoError(t, b.SelectLine("line1"))

	// The walk covers station and between slots in queue order:
	// alpha, alpha-beta, beta, beta-gamma, gamma.
	m := b.Model()
	assert.Equal(t, "One", m.Assignments[transit.StationSlot("alpha")].Name)
	assert.Equal(t, "Two", m.Assignments[transit.BetweenSlot("alpha", "beta")].Name)
	assert.Equal(t, "One", m.Assignments[transit.StationSlot("beta")].Name, "pool wraps round-robin")
	assert.Equal(t, "Two", m.Assignments[transit.BetweenSlot("beta", "gamma")].Name)
	assert.Equal(t, "One", m.Assignments[transit.StationSlot("gamma")].Name)

	// Seeding bypasses history and promotion
	assert.False(t, b.CanUndo())
	assert.Equal(t, "metro", b.ActiveSystemID())

	require.ErrorIs(t, b.SelectLine("line99"), ErrUnknownLine)
}

func TestBoard_SelectLineDropsStaleSlots(t *testing.T) {
	b, _ := newTestBoard(t, nil, nil)

	require.NoError(t, b.UpdateLines([]transit.Line{
		{ID: "line1", Name: "Main Line", Color: "#cc0000", Stations: []string{"alpha", "beta", "gamma"}},
		{ID: "line2", Name: "Branch", Color: "#0000cc", Stations: []string{"beta", "gamma"}},
	}))

	staleStation := transit.StationSlot("alpha")
	staleBetween := transit.BetweenSlot("alpha", "beta")
	kept := transit.StationSlot("beta")
	require.NoError(t, b.AssignAudio(staleStation, playableAudio("a")))
	require.NoError(t, b.AssignAudio(staleBetween, playableAudio("ab")))
	require.NoError(t, b.AssignAudio(kept, playableAudio("b")))
	require.NoError(t, b.SetCategory(staleStation, announce.CategoryArrival))

	extra, err := b.AddExtraStationSlot("alpha")
	require.NoError(t, err)
	seg, err := b.AddBetweenSegment(staleBetween)
	require.NoError(t, err)
	require.NoError(t, b.AssignAudio(seg, playableAudio("seg")))

	require.NoError(t, b.SelectLine("line2"))

	m := b.Model()
	_, ok := m.Assignments[staleStation]
	assert.False(t, ok, "off-line station assignment is dropped")
	_, ok = m.Assignments[staleBetween]
	assert.False(t, ok, "off-line between assignment is dropped")
	_, ok = m.Assignments[seg]
	assert.False(t, ok, "segment under an off-line between is dropped")
	_, ok = m.Categories[staleStation]
	assert.False(t, ok, "off-line category is dropped")
	_, ok = m.BetweenSegments[staleBetween]
	assert.False(t, ok)
	assert.NotContains(t, b.ExtraStationSlots(), "alpha")
	assert.NotContains(t, b.Queue(), extra)

	got, ok := m.Assignments[kept]
	require.True(t, ok, "shared station keeps its audio")
	assert.Equal(t, "mem://b", got.URL)
}

func TestBoard_Generate(t *testing.T) {
	gen := &fakeGenerator{}
	b, _ := newTestBoard(t, gen, nil)

	slot := transit.StationSlot("alpha")
	clips, err := b.Generate(context.Background(), slot, "Next stop Alpha.", "voice1", "Aria")
	require.NoError(t, err)
	require.Len(t, clips, 2)
	assert.Equal(t, 1, gen.speechCalls)

	m := b.Model()
	assert.Len(t, m.GeneratedHistory[slot], 2, "all candidates land in the history")
	got := m.Assignments[slot]
	assert.Equal(t, "mem://gen-1", got.URL, "first candidate is assigned")
	require.NotNil(t, got.Generation)
	assert.Equal(t, "Aria", got.Generation.VoiceName)

	// Non-spoken categories route to sound effect synthesis
	require.NoError(t, b.SetCategory(slot, announce.CategoryChime))
	clips, err = b.Generate(context.Background(), slot, "soft chime", "", "")
	require.NoError(t, err)
	assert.Len(t, clips, 4)
	assert.Equal(t, 1, gen.effectsCalls)
}

func TestBoard_GenerateFailureChangesNothing(t *testing.T) {
	gen := &fakeGenerator{fail: true}
	b, _ := newTestBoard(t, gen, nil)

	slot := transit.StationSlot("alpha")
	_, err := b.Generate(context.Background(), slot, "text", "", "")
	require.Error(t, err)

	m := b.Model()
	assert.Empty(t, m.Assignments)
	assert.Empty(t, m.GeneratedHistory)
	assert.False(t, b.CanUndo())
	assert.Equal(t, "metro", b.ActiveSystemID())
}

func TestBoard_GenerateWithoutGenerator(t *testing.T) {
	b, _ := newTestBoard(t, nil, nil)

	_, err := b.Generate(context.Background(), transit.StationSlot("alpha"), "text", "", "")
	require.ErrorIs(t, err, ErrNoGenerator)
}

func TestBoard_Uploads(t *testing.T) {
	b, store := newTestBoard(t, nil, nil)

	ua, err := b.AddUpload("departure.mp3", []byte("data"))
	require.NoError(t, err)
	assert.Equal(t, "/media/uploads/departure.mp3", ua.URL)

	m := b.Model()
	require.Len(t, m.Uploads, 1)
	assert.Equal(t, ua.ID, m.Uploads[0].ID)

	require.NoError(t, b.RemoveUpload(ua.ID))
	assert.Empty(t, b.Model().Uploads)
	store.mu.Lock()
	assert.Contains(t, store.removed, ua.URL)
	store.mu.Unlock()

	require.Error(t, b.RemoveUpload("missing"))
}

func TestBoard_LoadSystemResets(t *testing.T) {
	b, _ := newTestBoard(t, nil, nil)

	require.NoError(t, b.AssignAudio(transit.StationSlot("alpha"), playableAudio("chime")))
	_, err := b.AddExtraStationSlot("beta")
	require.NoError(t, err)
	customID := b.ActiveSystemID()

	require.NoError(t, b.LoadSystem("metro"))
	assert.Equal(t, "metro", b.ActiveSystemID())
	assert.Empty(t, b.Model().Assignments)
	assert.Empty(t, b.ExtraStationSlots())
	assert.False(t, b.CanUndo())
	assert.Equal(t, "line1", b.ActiveLineID())

	// The custom copy survives and can be reloaded with its audio
	require.NoError(t, b.LoadSystem(customID))
	got := b.Model().Assignments[transit.StationSlot("alpha")]
	assert.Equal(t, "mem://chime", got.URL)
}

func TestBoard_DeleteActiveCustomFallsBack(t *testing.T) {
	b, _ := newTestBoard(t, nil, nil)

	require.NoError(t, b.AssignAudio(transit.StationSlot("alpha"), playableAudio("chime")))
	customID := b.ActiveSystemID()

	require.NoError(t, b.DeleteCustomSystem(customID))
	assert.Equal(t, "metro", b.ActiveSystemID())
	_, customs := b.Systems()
	assert.Empty(t, customs)

	require.ErrorIs(t, b.DeleteCustomSystem("custom-nope"), preset.ErrUnknownSystem)
}

func TestBoard_Transcription(t *testing.T) {
	b, _ := newTestBoard(t, nil, nil)

	slot := transit.StationSlot("alpha")
	assert.Equal(t, "The next station is Alpha.", b.Transcription(slot))

	require.NoError(t, b.SetCategory(slot, announce.CategoryArrival))
	assert.Contains(t, b.Transcription(slot), "arriving at Alpha")

	a := playableAudio("chime")
	a.Transcript = "Custom words."
	require.NoError(t, b.AssignAudio(slot, a))
	assert.Equal(t, "Custom words.", b.Transcription(slot))

	between := transit.BetweenSlot("alpha", "beta")
	assert.Equal(t, "We are now travelling from Alpha towards Beta.", b.Transcription(between))
}

func TestBoard_View(t *testing.T) {
	b, _ := newTestBoard(t, nil, nil)

	require.NoError(t, b.AssignAudio(transit.StationSlot("alpha"), playableAudio("chime")))
	require.NoError(t, b.AssignAudio(transit.BetweenSlot("alpha", "beta"), playableAudio("travel")))

	v := b.View()
	require.Len(t, v.Items, 2)
	assert.Equal(t, transit.StationSlot("alpha"), v.Items[0].Slot)
	assert.Equal(t, "mem://chime", v.Items[0].URL)
	assert.Equal(t, playback.StateIdle, v.State)
	assert.Equal(t, "idle", v.StateName)
	assert.Equal(t, 0, v.Index)
}

func TestBoard_CreateCustomLine(t *testing.T) {
	b, _ := newTestBoard(t, nil, nil)

	line, err := b.CreateCustomLine("Harbor Loop", "#00aa66", []StationSpec{
		{ID: "alpha"}, // existing station, linked as-is
		{ID: "harbor", Name: "Harbor"},
		{ID: "quay", GridX: 4, GridY: 2},
	}, true)
	require.NoError(t, err)
	assert.True(t, line.IsLoop())

	m := b.Model()
	harbor, ok := transit.FindStation(m.Stations, "harbor")
	require.True(t, ok)
	assert.Equal(t, "Harbor", harbor.Name)
	assert.NotZero(t, harbor.X, "row layout places unpositioned stations off origin")

	quay, ok := transit.FindStation(m.Stations, "quay")
	require.True(t, ok)
	assert.Equal(t, float64(4*transit.GridSpacing), quay.X)

	assert.True(t, strings.HasPrefix(b.ActiveSystemID(), "custom-"),
		"creating a line over a built-in forks it")

	_, err = b.CreateCustomLine("Bad", "#000000", []StationSpec{{ID: "has-dash"}}, false)
	require.ErrorIs(t, err, ErrUnknownStation)

	_, err = b.CreateCustomLine("Empty", "#000000", nil, false)
	require.ErrorIs(t, err, ErrUnknownStation)
}

type fakeCatalog struct {
	files map[string]string
}

func (c *fakeCatalog) PresetPath(filename string) (string, bool) {
	url, ok := c.files[filename]
	return url, ok
}

func TestBoard_AssignPresetByFilename(t *testing.T) {
	chain, err := effects.NewChain(nil)
	require.NoError(t, err)

	cat := &fakeCatalog{files: map[string]string{"chime.mp3": "/media/presets/chime.mp3"}}
	b, err := New(Options{
		Presets:         preset.NewManager([]transit.System{testSystem()}, nil),
		History:         history.New(),
		Resolver:        media.NewResolver(cat, nil),
		Store:           &fakeStore{},
		Opener:          playback.TimedOpener{Fallback: time.Second},
		Chain:           chain,
		Playback:        playback.Config{},
		DefaultSystemID: "metro",
	})
	require.NoError(t, err)
	t.Cleanup(b.Close)

	slot := transit.StationSlot("alpha")
	require.NoError(t, b.AssignAudio(slot, announce.Assignment{
		Kind: announce.KindPreset, Filename: "chime.mp3", Name: "Chime",
	}))

	got := b.Model().Assignments[slot]
	assert.Equal(t, "/media/presets/chime.mp3", got.URL, "catalog URL is resolved on assignment")
	assert.Contains(t, b.Queue(), slot)

	require.NoError(t, b.PlaySlot(slot))
	defer b.StopPlayback()
	assert.Equal(t, playback.StatePlayingOne, b.PlaybackStatus().State)
}

func TestBoard_UndoStopsQueueWhenSlotsChange(t *testing.T) {
	b, _ := newTestBoard(t, nil, nil)

	require.NoError(t, b.AssignAudio(transit.StationSlot("alpha"), playableAudio("a")))
	require.NoError(t, b.AssignAudio(transit.StationSlot("beta"), playableAudio("b")))

	require.NoError(t, b.PlayQueueFrom(0))
	defer b.StopPlayback()
	require.Eventually(t, func() bool {
		return b.PlaybackStatus().State == playback.StatePlayingQueue
	}, time.Second, 5*time.Millisecond)

	// Undoing the beta assignment shrinks the queue, so the run stops.
	require.True(t, b.Undo())
	assert.Equal(t, playback.StateIdle, b.PlaybackStatus().State)

	// An edit that leaves the queue sequence alone keeps the run alive.
	require.True(t, b.Redo())
	require.NoError(t, b.PlayQueueFrom(0))
	require.Eventually(t, func() bool {
		return b.PlaybackStatus().State == playback.StatePlayingQueue
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, b.SetCategory(transit.StationSlot("alpha"), announce.CategoryDeparture))
	require.True(t, b.Undo())
	assert.Equal(t, playback.StatePlayingQueue, b.PlaybackStatus().State)
}
