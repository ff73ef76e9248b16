// Package board is the announcement board orchestrator. It owns the
// live transit model, wires edits through promotion and history, and
// drives the playback controller.
package board

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/LandoNikko/transit-designer/internal/app/effects"
	"github.com/LandoNikko/transit-designer/internal/app/history"
	"github.com/LandoNikko/transit-designer/internal/app/media"
	"github.com/LandoNikko/transit-designer/internal/app/playback"
	"github.com/LandoNikko/transit-designer/internal/app/preset"
	"github.com/LandoNikko/transit-designer/internal/app/queue"
	"github.com/LandoNikko/transit-designer/internal/domain/announce"
	"github.com/LandoNikko/transit-designer/internal/domain/transit"
)

// Errors
var (
	ErrUnknownLine    = errors.New("line not in active system")
	ErrUnknownStation = errors.New("station not in active system")
	ErrUnknownSlot    = errors.New("slot not known to the board")
	ErrNoGenerator    = errors.New("audio generation is not configured")
)

// Persister stores custom systems and uploaded audio outside the
// process. Persistence failures are logged, never surfaced to edits.
type Persister interface {
	SaveCustomSystems(systems []transit.System) error
	SaveUpload(name string, data []byte) (announce.UploadedAudio, error)
	RemoveUpload(url string) error
}

// Generator produces announcement audio candidates. Spoken categories
// go through speech synthesis, the rest through sound effect synthesis.
type Generator interface {
	GenerateSpeech(ctx context.Context, text, voiceID, voiceName string) ([]announce.Clip, error)
	GenerateSoundEffect(ctx context.Context, prompt string) ([]announce.Clip, error)
}

// Defaults supplies the catalog assignments used to seed stations that
// have no audio when a line is selected.
type Defaults interface {
	DefaultStationAssignments() []announce.Assignment
}

// Options configures a Board.
type Options struct {
	Presets   *preset.Manager
	History   *history.Store
	Resolver  *media.Resolver
	Store     Persister
	Generator Generator // optional
	Defaults  Defaults  // optional
	Opener    playback.Opener
	Chain     *effects.Chain
	Playback  playback.Config

	DefaultSystemID string
}

// Board coordinates the model, history, presets and playback.
//
// Lock ordering: the playback controller calls back into Queue and the
// slot source, which take b.mu. Board methods therefore never invoke
// controller methods while holding b.mu.
type Board struct {
	mu sync.RWMutex

	presets    *preset.Manager
	history    *history.Store
	resolver   *media.Resolver
	store      Persister
	generator  Generator
	defaults   Defaults
	chain      *effects.Chain
	controller *playback.Controller
	hub        *Hub

	activeSystemID string
	activeLineID   string
	model          transit.Model

	// extraStationSlots are board-session state, keyed by station id in
	// creation order. They are not part of the undo history.
	extraStationSlots map[string][]transit.SlotKey
}

// New creates a board and loads the default system.
func New(opts Options) (*Board, error) {
	b := &Board{
		presets:           opts.Presets,
		history:           opts.History,
		resolver:          opts.Resolver,
		store:             opts.Store,
		generator:         opts.Generator,
		defaults:          opts.Defaults,
		chain:             opts.Chain,
		hub:               NewHub(),
		model:             transit.NewModel(),
		extraStationSlots: make(map[string][]transit.SlotKey),
	}
	b.controller = playback.NewController(opts.Opener, opts.Chain, b.Queue, b.slotSource, opts.Playback)

	if err := b.LoadSystem(opts.DefaultSystemID); err != nil {
		b.controller.Close()
		b.hub.Close()
		return nil, errors.Wrapf(err, "load default system %s", opts.DefaultSystemID)
	}

	go b.pumpPlaybackEvents()
	return b, nil
}

// Close stops playback and releases the event hub.
func (b *Board) Close() {
	b.controller.Close()
	b.hub.Close()
}

// Events returns the board's event hub.
func (b *Board) Events() *Hub {
	return b.hub
}

// --- Systems ---

// Systems returns the built-in and custom systems.
func (b *Board) Systems() (builtins, customs []transit.System) {
	return b.presets.Builtins(), b.presets.Customs()
}

// ActiveSystemID returns the id of the loaded system.
func (b *Board) ActiveSystemID() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.activeSystemID
}

// LoadSystem replaces the live model with the named system. Playback
// stops, the undo history is reseeded and resolved durations reset.
func (b *Board) LoadSystem(id string) error {
	sys, ok := b.presets.Lookup(id)
	if !ok {
		return errors.Wrapf(preset.ErrUnknownSystem, "id %s", id)
	}

	b.controller.StopAll()

	m := sys.Model.Clone()
	b.mu.Lock()
	b.activeSystemID = sys.ID
	b.model = m
	b.activeLineID = ""
	if len(m.Lines) > 0 {
		b.activeLineID = m.Lines[0].ID
	}
	b.extraStationSlots = make(map[string][]transit.SlotKey)
	b.mu.Unlock()

	b.history.Seed(m)
	b.resolver.Reset()

	zlog.Info().Str("system", sys.ID).Msg("board: system loaded")
	b.hub.Broadcast(TopicModel, map[string]any{"system": sys.ID})
	return nil
}

// ResetActive reloads the active system from its stored state,
// discarding session edits that were not promoted into it.
func (b *Board) ResetActive() error {
	return b.LoadSystem(b.ActiveSystemID())
}

// DeleteCustomSystem removes a custom system. Deleting the active one
// falls back to the first built-in.
func (b *Board) DeleteCustomSystem(id string) error {
	if !b.presets.DeleteCustom(id) {
		return errors.Wrapf(preset.ErrUnknownSystem, "custom id %s", id)
	}
	b.persistCustoms()
	b.hub.Broadcast(TopicPresets, map[string]any{"deleted": id})

	if b.ActiveSystemID() == id {
		builtins := b.presets.Builtins()
		if len(builtins) == 0 {
			return errors.New("no built-in system to fall back to")
		}
		return b.LoadSystem(builtins[0].ID)
	}
	return nil
}

// --- Model reads ---

// Model returns a deep copy of the live model.
func (b *Board) Model() transit.Model {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.model.Clone()
}

// ActiveLineID returns the selected line id.
func (b *Board) ActiveLineID() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.activeLineID
}

// ExtraStationSlots returns a copy of the per-station extra slots.
func (b *Board) ExtraStationSlots() map[string][]transit.SlotKey {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make(map[string][]transit.SlotKey, len(b.extraStationSlots))
	for id, slots := range b.extraStationSlots {
		out[id] = append([]transit.SlotKey(nil), slots...)
	}
	return out
}

// Transcription returns the text shown (and spoken) for a slot: the
// assignment's transcript when present, the category default otherwise.
func (b *Board) Transcription(slot transit.SlotKey) string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if a, ok := b.model.Assignments[slot]; ok && a.Transcript != "" {
		return a.Transcript
	}
	return DefaultTranscript(slot, b.model.Category(slot), b.model.Stations)
}

// --- Mutations ---

// mutate runs one atomic edit: clone, apply fn, promote when asked,
// commit to history, publish the result. Nothing is visible until the
// whole pipeline succeeds.
func (b *Board) mutate(promote bool, fn func(m *transit.Model) error) error {
	b.mu.Lock()

	proposed := b.model.Clone()
	if err := fn(&proposed); err != nil {
		b.mu.Unlock()
		return err
	}

	var promoted bool
	if promote {
		res, err := b.presets.OnMutate(b.activeSystemID, proposed)
		if err != nil {
			b.mu.Unlock()
			return err
		}
		if res.Promoted {
			b.activeSystemID = res.ActiveID
			proposed.Lines = cloneLines(res.Lines)
			promoted = true
		}
	}

	b.history.Commit(proposed)
	b.model = proposed
	activeID := b.activeSystemID
	b.mu.Unlock()

	if promote {
		b.persistCustoms()
	}
	b.hub.Broadcast(TopicModel, map[string]any{"system": activeID})
	if promoted {
		b.hub.Broadcast(TopicPresets, map[string]any{"promoted": activeID})
	}
	return nil
}

// UpdateStations replaces the station list.
func (b *Board) UpdateStations(stations []transit.Station) error {
	return b.mutate(true, func(m *transit.Model) error {
		m.Stations = append([]transit.Station(nil), stations...)
		return nil
	})
}

// UpdateLines replaces the line list.
func (b *Board) UpdateLines(lines []transit.Line) error {
	return b.mutate(true, func(m *transit.Model) error {
		m.Lines = cloneLines(lines)
		return nil
	})
}

// UpdateNetwork replaces stations and lines in one undoable step.
func (b *Board) UpdateNetwork(stations []transit.Station, lines []transit.Line) error {
	return b.mutate(true, func(m *transit.Model) error {
		m.Stations = append([]transit.Station(nil), stations...)
		m.Lines = cloneLines(lines)
		return nil
	})
}

// StationSpec describes one stop of a line under creation. An ID
// matching an existing station links it; otherwise a new station is
// created at the given grid position (or laid out in a row when both
// indices are zero).
type StationSpec struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	GridX int    `json:"grid_x"`
	GridY int    `json:"grid_y"`
}

// CreateCustomLine adds a new line, minting stations for unknown specs.
// A loop line repeats its first station id at the tail.
func (b *Board) CreateCustomLine(name, color string, specs []StationSpec, loop bool) (transit.Line, error) {
	if len(specs) == 0 {
		return transit.Line{}, errors.Wrap(ErrUnknownStation, "a line needs at least one station")
	}

	line := transit.Line{
		ID:    "line" + uuid.New().String(),
		Name:  name,
		Color: color,
	}
	err := b.mutate(true, func(m *transit.Model) error {
		for i, spec := range specs {
			if spec.ID == "" || strings.Contains(spec.ID, "-") {
				return errors.Wrapf(ErrUnknownStation, "invalid station id %q", spec.ID)
			}
			if _, ok := transit.FindStation(m.Stations, spec.ID); !ok {
				st := transit.Station{
					ID:     spec.ID,
					Name:   spec.Name,
					GridX:  spec.GridX,
					GridY:  spec.GridY,
					LineID: line.ID,
					Index:  i,
				}
				if st.Name == "" {
					st.Name = spec.ID
				}
				if st.GridX == 0 && st.GridY == 0 {
					st.GridX = i + 1
					st.GridY = 1
				}
				st.SnapToGrid()
				m.Stations = append(m.Stations, st)
			}
			line.Stations = append(line.Stations, spec.ID)
		}
		if loop {
			line.Stations = append(line.Stations, specs[0].ID)
		}
		m.Lines = append(m.Lines, line.Clone())
		return nil
	})
	if err != nil {
		return transit.Line{}, err
	}
	return line, nil
}

// AssignAudio assigns audio to a slot and kicks off duration probing.
// Preset assignments carrying only a catalog filename get their URL
// resolved here so they are playable like any other assignment.
func (b *Board) AssignAudio(slot transit.SlotKey, a announce.Assignment) error {
	if a.URL == "" {
		if url, ok := b.resolver.ResolveURL(a); ok {
			a.URL = url
		}
	}
	err := b.mutate(true, func(m *transit.Model) error {
		m.Assignments[slot] = a.Clone()
		return nil
	})
	if err != nil {
		return err
	}

	b.resolver.Forget(slot)
	if url, ok := b.resolver.ResolveURL(a); ok {
		b.resolver.ResolveDuration(slot, url)
	}
	return nil
}

// RemoveAudio clears a slot's assignment. The category and generation
// history stay so reassignment keeps its context.
func (b *Board) RemoveAudio(slot transit.SlotKey) error {
	err := b.mutate(true, func(m *transit.Model) error {
		if _, ok := m.Assignments[slot]; !ok {
			return errors.Wrapf(ErrUnknownSlot, "%s", slot)
		}
		delete(m.Assignments, slot)
		return nil
	})
	if err != nil {
		return err
	}
	b.resolver.Forget(slot)
	return nil
}

// SetCategory records the slot's announcement category. Category edits
// are undoable but do not promote a built-in to a custom copy.
func (b *Board) SetCategory(slot transit.SlotKey, c announce.Category) error {
	if !c.Valid() {
		return errors.Newf("invalid category %q", c)
	}
	return b.mutate(false, func(m *transit.Model) error {
		m.Categories[slot] = c
		return nil
	})
}

// AddBetweenSegment appends an extra segment under a between slot.
func (b *Board) AddBetweenSegment(between transit.SlotKey) (transit.SlotKey, error) {
	if between.Kind != transit.SlotBetween {
		return transit.SlotKey{}, errors.Newf("not a between slot: %s", between)
	}
	seg := transit.ExtraSegmentSlot(between.FromID, between.ToID, slotSuffix())
	err := b.mutate(false, func(m *transit.Model) error {
		m.BetweenSegments[between] = append(m.BetweenSegments[between], seg)
		return nil
	})
	if err != nil {
		return transit.SlotKey{}, err
	}
	return seg, nil
}

// RemoveBetweenSegment removes an extra segment and every trace of it.
func (b *Board) RemoveBetweenSegment(seg transit.SlotKey) error {
	if seg.Kind != transit.SlotExtraSegment {
		return errors.Newf("not an extra segment: %s", seg)
	}
	parent := seg.Parent()
	err := b.mutate(false, func(m *transit.Model) error {
		segs := m.BetweenSegments[parent]
		kept := segs[:0]
		found := false
		for _, k := range segs {
			if k == seg {
				found = true
				continue
			}
			kept = append(kept, k)
		}
		if !found {
			return errors.Wrapf(ErrUnknownSlot, "%s", seg)
		}
		if len(kept) == 0 {
			delete(m.BetweenSegments, parent)
		} else {
			m.BetweenSegments[parent] = kept
		}
		m.DropSlot(seg)
		return nil
	})
	if err != nil {
		return err
	}
	b.resolver.Forget(seg)
	return nil
}

// AddExtraStationSlot appends an extra announcement slot to a station.
// Extra slots are session state and not undoable; their assignments
// are.
func (b *Board) AddExtraStationSlot(stationID string) (transit.SlotKey, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := transit.FindStation(b.model.Stations, stationID); !ok {
		return transit.SlotKey{}, errors.Wrapf(ErrUnknownStation, "id %s", stationID)
	}
	slot := transit.ExtraStationSlot(stationID, slotSuffix())
	b.extraStationSlots[stationID] = append(b.extraStationSlots[stationID], slot)
	return slot, nil
}

// RemoveExtraStationSlot removes an extra slot; its assignment, if any,
// is dropped through the normal mutation pipeline.
func (b *Board) RemoveExtraStationSlot(slot transit.SlotKey) error {
	if slot.Kind != transit.SlotExtraStation {
		return errors.Newf("not an extra station slot: %s", slot)
	}

	b.mu.Lock()
	slots := b.extraStationSlots[slot.StationID]
	kept := slots[:0]
	found := false
	for _, k := range slots {
		if k == slot {
			found = true
			continue
		}
		kept = append(kept, k)
	}
	if !found {
		b.mu.Unlock()
		return errors.Wrapf(ErrUnknownSlot, "%s", slot)
	}
	if len(kept) == 0 {
		delete(b.extraStationSlots, slot.StationID)
	} else {
		b.extraStationSlots[slot.StationID] = kept
	}
	_, hadData := b.model.Assignments[slot]
	b.mu.Unlock()

	b.resolver.Forget(slot)
	if !hadData {
		return nil
	}
	return b.mutate(true, func(m *transit.Model) error {
		m.DropSlot(slot)
		return nil
	})
}

// AddUpload stores an uploaded audio file and registers it.
func (b *Board) AddUpload(name string, data []byte) (announce.UploadedAudio, error) {
	ua, err := b.store.SaveUpload(name, data)
	if err != nil {
		return announce.UploadedAudio{}, errors.Wrapf(err, "save upload %s", name)
	}
	err = b.mutate(true, func(m *transit.Model) error {
		m.Uploads = append(m.Uploads, ua)
		return nil
	})
	if err != nil {
		if rmErr := b.store.RemoveUpload(ua.URL); rmErr != nil {
			zlog.Warn().Err(rmErr).Str("url", ua.URL).Msg("board: orphaned upload cleanup failed")
		}
		return announce.UploadedAudio{}, err
	}
	return ua, nil
}

// RemoveUpload unregisters an uploaded file and deletes its resource.
// Slots still pointing at it keep their assignment but stop resolving.
func (b *Board) RemoveUpload(id string) error {
	var removed announce.UploadedAudio
	err := b.mutate(true, func(m *transit.Model) error {
		kept := m.Uploads[:0]
		found := false
		for _, u := range m.Uploads {
			if u.ID == id {
				removed = u
				found = true
				continue
			}
			kept = append(kept, u)
		}
		if !found {
			return errors.Wrapf(ErrUnknownSlot, "upload %s", id)
		}
		m.Uploads = kept
		return nil
	})
	if err != nil {
		return err
	}
	if err := b.store.RemoveUpload(removed.URL); err != nil {
		zlog.Warn().Err(err).Str("url", removed.URL).Msg("board: upload file removal failed")
	}
	return nil
}

// Generate synthesizes audio candidates for a slot and assigns the
// first. The generation either lands completely, with all candidates
// in the slot's history, or not at all.
func (b *Board) Generate(ctx context.Context, slot transit.SlotKey, text, voiceID, voiceName string) ([]announce.Clip, error) {
	if b.generator == nil {
		return nil, ErrNoGenerator
	}
	if text == "" {
		text = b.Transcription(slot)
	}

	b.mu.RLock()
	category := b.model.Category(slot)
	b.mu.RUnlock()

	var clips []announce.Clip
	var err error
	if category.Spoken() {
		clips, err = b.generator.GenerateSpeech(ctx, text, voiceID, voiceName)
	} else {
		clips, err = b.generator.GenerateSoundEffect(ctx, text)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "generate audio for slot %s", slot)
	}
	if len(clips) == 0 {
		return nil, errors.Newf("generation produced no candidates for slot %s", slot)
	}

	first := clips[0].Assignment()
	err = b.mutate(true, func(m *transit.Model) error {
		m.GeneratedHistory[slot] = append(m.GeneratedHistory[slot], clips...)
		m.Assignments[slot] = first
		return nil
	})
	if err != nil {
		return nil, err
	}

	b.resolver.Forget(slot)
	if url, ok := b.resolver.ResolveURL(first); ok {
		b.resolver.ResolveDuration(slot, url)
	}
	b.hub.Broadcast(TopicGeneration, map[string]any{
		"slot":       slot.String(),
		"candidates": len(clips),
	})
	return clips, nil
}

// --- History ---

// Undo steps the model back one edit. Single-slot playback keeps
// running; a queue run is stopped when the restored model changes the
// active line's slot sequence, since its positions no longer match.
func (b *Board) Undo() bool {
	return b.travel(b.history.Undo)
}

// Redo steps the model forward one edit.
func (b *Board) Redo() bool {
	return b.travel(b.history.Redo)
}

func (b *Board) travel(step func() (transit.Model, bool)) bool {
	before := b.Queue()

	m, ok := step()
	if !ok {
		return false
	}

	b.mu.Lock()
	b.model = m
	if _, ok := transit.FindLine(m.Lines, b.activeLineID); !ok {
		b.activeLineID = ""
		if len(m.Lines) > 0 {
			b.activeLineID = m.Lines[0].ID
		}
	}
	activeID := b.activeSystemID
	b.mu.Unlock()

	if !slices.Equal(before, b.Queue()) && b.controller.GetState().QueueMode() {
		b.controller.StopAll()
	}

	// Keep the stored custom in step so a reload lands on what the
	// user sees. Built-ins are never written.
	if b.presets.IsCustom(activeID) {
		if _, err := b.presets.OnMutate(activeID, m); err != nil {
			zlog.Warn().Err(err).Str("system", activeID).Msg("board: custom sync after history step failed")
		}
		b.persistCustoms()
	}

	b.hub.Broadcast(TopicHistory, map[string]any{
		"can_undo": b.history.CanUndo(),
		"can_redo": b.history.CanRedo(),
	})
	b.hub.Broadcast(TopicModel, map[string]any{"system": activeID})
	return true
}

// CanUndo reports whether an undo step exists.
func (b *Board) CanUndo() bool { return b.history.CanUndo() }

// CanRedo reports whether a redo step exists.
func (b *Board) CanRedo() bool { return b.history.CanRedo() }

// --- Line selection ---

// SelectLine switches the active line. Playback stops, assignments
// whose slot keys are not valid for the new line are dropped, and
// station and between slots with no audio yet are seeded from the
// default catalog round-robin. Both steps bypass history and promotion.
func (b *Board) SelectLine(lineID string) error {
	b.mu.RLock()
	line, ok := transit.FindLine(b.model.Lines, lineID)
	b.mu.RUnlock()
	if !ok {
		return errors.Wrapf(ErrUnknownLine, "id %s", lineID)
	}

	b.controller.StopAll()

	b.mu.Lock()
	b.activeLineID = lineID

	for id := range b.extraStationSlots {
		if !line.Contains(id) {
			delete(b.extraStationSlots, id)
		}
	}

	seq := line.Sequence(b.model.Stations)
	valid := b.validSlotsLocked(seq)
	for k := range b.model.Assignments {
		if !valid[k] {
			delete(b.model.Assignments, k)
		}
	}
	for k := range b.model.Categories {
		if !valid[k] {
			delete(b.model.Categories, k)
		}
	}
	for k := range b.model.GeneratedHistory {
		if !valid[k] {
			delete(b.model.GeneratedHistory, k)
		}
	}
	for k := range b.model.BetweenSegments {
		if !valid[k] {
			delete(b.model.BetweenSegments, k)
		}
	}

	if b.defaults != nil {
		pool := b.defaults.DefaultStationAssignments()
		if len(pool) > 0 {
			i := 0
			seed := func(k transit.SlotKey) {
				if _, ok := b.model.Assignments[k]; !ok {
					b.model.Assignments[k] = pool[i%len(pool)].Clone()
					i++
				}
			}
			for j, st := range seq {
				seed(transit.StationSlot(st.ID))
				if j+1 < len(seq) {
					seed(transit.BetweenSlot(st.ID, seq[j+1].ID))
				}
			}
		}
	}
	b.mu.Unlock()

	b.hub.Broadcast(TopicModel, map[string]any{"line": lineID})
	return nil
}

// validSlotsLocked returns every slot key that can exist on the given
// station sequence: primary and extra station slots, between slots for
// adjacent pairs, and their extra segments.
func (b *Board) validSlotsLocked(seq []transit.Station) map[transit.SlotKey]bool {
	valid := make(map[transit.SlotKey]bool)
	for i, st := range seq {
		valid[transit.StationSlot(st.ID)] = true
		for _, extra := range b.extraStationSlots[st.ID] {
			valid[extra] = true
		}
		if i+1 < len(seq) {
			between := transit.BetweenSlot(st.ID, seq[i+1].ID)
			valid[between] = true
			for _, seg := range b.model.BetweenSegments[between] {
				valid[seg] = true
			}
		}
	}
	return valid
}

// --- Queue & playback ---

// Queue builds the ordered announcement queue for the active line.
func (b *Board) Queue() []transit.SlotKey {
	b.mu.RLock()
	defer b.mu.RUnlock()

	line, ok := transit.FindLine(b.model.Lines, b.activeLineID)
	if !ok {
		return nil
	}
	return queue.Build(line, b.model.Stations, b.model.Assignments, b.extraStationSlots, b.model.BetweenSegments)
}

// QueueItem is one queue entry with its resolved presentation data.
type QueueItem struct {
	Slot        transit.SlotKey `json:"slot"`
	Name        string          `json:"name"`
	URL         string          `json:"url"`
	DurationSec float64         `json:"duration_sec"`
	Transcript  string          `json:"transcript"`
}

// QueueView is the queue plus current playback position and totals.
type QueueView struct {
	Items        []QueueItem    `json:"items"`
	Index        int            `json:"index"`
	State        playback.State `json:"-"`
	StateName    string         `json:"state"`
	TotalSec     float64        `json:"total_sec"`
	RemainingSec float64        `json:"remaining_sec"`
}

// View assembles the queue view the board UI renders.
func (b *Board) View() QueueView {
	q := b.Queue()
	durations := b.resolver.Durations()
	status := b.controller.GetStatus()

	b.mu.RLock()
	items := make([]QueueItem, 0, len(q))
	for _, k := range q {
		a := b.model.Assignments[k]
		url, _ := b.resolver.ResolveURL(a)
		item := QueueItem{
			Slot:       k,
			Name:       a.Name,
			URL:        url,
			Transcript: a.Transcript,
		}
		if d, ok := durations[k]; ok {
			item.DurationSec = d.Seconds()
		}
		items = append(items, item)
	}
	b.mu.RUnlock()

	index := status.QueueIndex
	if index >= len(q) {
		index = 0
	}
	inClip := time.Duration(status.PositionSec * float64(time.Second))

	return QueueView{
		Items:        items,
		Index:        index,
		State:        status.State,
		StateName:    status.State.String(),
		TotalSec:     queue.TotalDuration(q, durations).Seconds(),
		RemainingSec: queue.Remaining(q, durations, index, inClip).Seconds(),
	}
}

// slotSource resolves a slot for the playback controller.
func (b *Board) slotSource(slot transit.SlotKey) (string, time.Duration, bool) {
	b.mu.RLock()
	a, ok := b.model.Assignments[slot]
	b.mu.RUnlock()
	if !ok || !a.Playable() {
		return "", 0, false
	}

	url, ok := b.resolver.ResolveURL(a)
	if !ok {
		return "", 0, false
	}
	d, ok := b.resolver.Duration(slot)
	if !ok {
		b.resolver.ResolveDuration(slot, url)
		d = media.DefaultFallbackDuration
	}
	return url, d, true
}

// PlaySlot plays or pause-toggles a single slot.
func (b *Board) PlaySlot(slot transit.SlotKey) error { return b.controller.PlayOne(slot) }

// PlayQueueFrom starts queue playback at an index.
func (b *Board) PlayQueueFrom(index int) error { return b.controller.PlayQueueFrom(index) }

// ToggleQueue is the master play/pause control.
func (b *Board) ToggleQueue() error { return b.controller.ToggleQueue() }

// Skip moves the queue position with wrap-around.
func (b *Board) Skip(step int) error { return b.controller.Skip(step) }

// StopPlayback cancels all playback.
func (b *Board) StopPlayback() { b.controller.StopAll() }

// SetSpeed sets the playback rate.
func (b *Board) SetSpeed(speed float64) { b.controller.SetSpeed(speed) }

// SetVolume sets the playback volume.
func (b *Board) SetVolume(volume float64) { b.controller.SetVolume(volume) }

// SetMuted mutes or unmutes playback.
func (b *Board) SetMuted(muted bool) { b.controller.SetMuted(muted) }

// SetEffectsPreset selects the active effects preset.
func (b *Board) SetEffectsPreset(name string) error { return b.controller.SetEffectsPreset(name) }

// EffectNames lists the available effects presets.
func (b *Board) EffectNames() []string { return b.chain.Names() }

// PlaybackStatus returns the controller status snapshot.
func (b *Board) PlaybackStatus() playback.Status { return b.controller.GetStatus() }

// Remaining returns per-slot remaining seconds of the active clip.
func (b *Board) Remaining() map[transit.SlotKey]int { return b.controller.Remaining() }

// --- internals ---

func (b *Board) pumpPlaybackEvents() {
	for ev := range b.controller.Events() {
		data := map[string]any{
			"type":        ev.Type.String(),
			"state":       ev.State.String(),
			"queue_index": ev.QueueIndex,
		}
		if ev.HasSlot {
			data["slot"] = ev.Slot.String()
		}
		b.hub.Broadcast(TopicPlayback, data)
	}
}

func (b *Board) persistCustoms() {
	if b.store == nil {
		return
	}
	if err := b.store.SaveCustomSystems(b.presets.Customs()); err != nil {
		zlog.Warn().Err(err).Msg("board: persisting custom systems failed")
	}
}

// slotSuffix returns a fresh dash-free suffix; slot key text encoding
// splits on dashes, so suffixes must not contain them.
func slotSuffix() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

func cloneLines(lines []transit.Line) []transit.Line {
	out := make([]transit.Line, 0, len(lines))
	for _, l := range lines {
		out = append(out, l.Clone())
	}
	return out
}
