// Package rest exposes the announcement board over a JSON HTTP API,
// with a server-sent-events stream for board updates.
package rest

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	zlog "github.com/rs/zerolog/log"

	"github.com/LandoNikko/transit-designer/internal/app/board"
	"github.com/LandoNikko/transit-designer/internal/app/playback"
	"github.com/LandoNikko/transit-designer/internal/app/preset"
	"github.com/LandoNikko/transit-designer/internal/domain/transit"
	"github.com/LandoNikko/transit-designer/internal/infra/elevenlabs"
	"github.com/LandoNikko/transit-designer/internal/infra/mediastore"
)

// maxUploadBytes bounds a single audio upload.
const maxUploadBytes = 20 << 20

// VoiceLister lists the synthesis voices offered to the UI.
type VoiceLister interface {
	Voices(ctx context.Context) ([]elevenlabs.Voice, error)
}

// AudioCatalog lists and serves the shipped preset audio.
type AudioCatalog interface {
	AudioFiles() []string
	AudioDir() string
}

// MediaDirs locates the locally served audio directories.
type MediaDirs interface {
	UploadsDir() string
	GeneratedDir() string
}

// SettingsStore persists tuning preferences across restarts. Media
// stores that implement it get a save after each tuning change.
type SettingsStore interface {
	SaveSettings(mediastore.Settings) error
}

// Service is the HTTP surface over the board.
type Service struct {
	board   *board.Board
	catalog AudioCatalog
	media   MediaDirs
	voices  VoiceLister // nil when generation is disabled
}

// NewService creates the REST service.
func NewService(b *board.Board, catalog AudioCatalog, media MediaDirs, voices VoiceLister) *Service {
	return &Service{board: b, catalog: catalog, media: media, voices: voices}
}

// Routes builds the HTTP handler.
func (s *Service) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/systems", s.handleSystems)
		r.Post("/systems/select", s.handleSelectSystem)
		r.Post("/systems/reset", s.handleResetSystem)
		r.Delete("/systems/custom/{id}", s.handleDeleteCustom)

		r.Get("/model", s.handleModel)
		r.Post("/model/stations", s.handleUpdateStations)
		r.Post("/model/lines", s.handleUpdateLines)
		r.Post("/model/network", s.handleUpdateNetwork)

		r.Post("/lines", s.handleCreateLine)
		r.Post("/lines/select", s.handleSelectLine)

		r.Route("/slots/{key}", func(r chi.Router) {
			r.Post("/audio", s.handleAssignAudio)
			r.Delete("/audio", s.handleRemoveAudio)
			r.Post("/category", s.handleSetCategory)
			r.Post("/generate", s.handleGenerate)
			r.Post("/segments", s.handleAddSegment)
			r.Get("/transcript", s.handleTranscript)
		})
		r.Delete("/segments/{key}", s.handleRemoveSegment)
		r.Post("/stations/{id}/slots", s.handleAddExtraSlot)
		r.Delete("/extra-slots/{key}", s.handleRemoveExtraSlot)

		r.Post("/uploads", s.handleUpload)
		r.Delete("/uploads/{id}", s.handleRemoveUpload)

		r.Get("/history", s.handleHistory)
		r.Post("/history/undo", s.handleUndo)
		r.Post("/history/redo", s.handleRedo)

		r.Get("/queue", s.handleQueue)
		r.Route("/playback", func(r chi.Router) {
			r.Get("/", s.handlePlaybackStatus)
			r.Post("/play", s.handlePlaySlot)
			r.Post("/queue", s.handlePlayQueue)
			r.Post("/toggle", s.handleToggleQueue)
			r.Post("/skip", s.handleSkip)
			r.Post("/stop", s.handleStop)
			r.Post("/speed", s.handleSpeed)
			r.Post("/volume", s.handleVolume)
			r.Post("/muted", s.handleMuted)
			r.Post("/effects", s.handleEffects)
		})
		r.Get("/effects", s.handleEffectNames)
		r.Get("/voices", s.handleVoices)
		r.Get("/catalog/audio", s.handleCatalogAudio)

		r.Get("/events", s.handleEvents)
	})

	if s.catalog != nil {
		r.Handle("/media/presets/*", http.StripPrefix("/media/presets/",
			http.FileServer(http.Dir(s.catalog.AudioDir()))))
	}
	if s.media != nil {
		r.Handle("/media/uploads/generated/*", http.StripPrefix("/media/uploads/generated/",
			http.FileServer(http.Dir(s.media.GeneratedDir()))))
		r.Handle("/media/uploads/*", http.StripPrefix("/media/uploads/",
			http.FileServer(http.Dir(s.media.UploadsDir()))))
	}

	return r
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zlog.Warn().Err(err).Msg("rest: response encoding failed")
	}
}

func readJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20)).Decode(v); err != nil {
		return errors.Wrap(err, "invalid request body")
	}
	return nil
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, preset.ErrUnknownSystem),
		errors.Is(err, board.ErrUnknownLine),
		errors.Is(err, board.ErrUnknownStation),
		errors.Is(err, board.ErrUnknownSlot):
		status = http.StatusNotFound
	case errors.Is(err, playback.ErrNoAudio),
		errors.Is(err, playback.ErrEmptyQueue):
		status = http.StatusConflict
	case errors.Is(err, errBadRequest):
		status = http.StatusBadRequest
	case errors.Is(err, board.ErrNoGenerator):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		zlog.Error().Err(err).Msg("rest: request failed")
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

var errBadRequest = errors.New("bad request")

// statusPayload is the wire form of the playback status.
type statusPayload struct {
	State         string                  `json:"state"`
	Slot          string                  `json:"slot,omitempty"`
	QueueIndex    int                     `json:"queue_index"`
	PositionSec   float64                 `json:"position_sec"`
	DurationSec   float64                 `json:"duration_sec"`
	Speed         float64                 `json:"speed"`
	Volume        float64                 `json:"volume"`
	Muted         bool                    `json:"muted"`
	EffectsPreset string                  `json:"effects_preset"`
	Remaining     map[transit.SlotKey]int `json:"remaining"`
}

func (s *Service) statusResponse() statusPayload {
	st := s.board.PlaybackStatus()
	p := statusPayload{
		State:         st.State.String(),
		QueueIndex:    st.QueueIndex,
		PositionSec:   st.PositionSec,
		DurationSec:   st.DurationSec,
		Speed:         st.Speed,
		Volume:        st.Volume,
		Muted:         st.Muted,
		EffectsPreset: st.EffectsPreset,
		Remaining:     s.board.Remaining(),
	}
	if st.HasSlot {
		p.Slot = st.Slot.String()
	}
	return p
}

// saveTuning persists the current tuning when the media store supports
// it. Failures are logged, never surfaced; tuning stays applied.
func (s *Service) saveTuning() {
	ss, ok := s.media.(SettingsStore)
	if !ok {
		return
	}
	st := s.board.PlaybackStatus()
	err := ss.SaveSettings(mediastore.Settings{
		EffectsPreset: st.EffectsPreset,
		Speed:         st.Speed,
		Volume:        st.Volume,
		Muted:         st.Muted,
	})
	if err != nil {
		zlog.Warn().Err(err).Msg("rest: saving tuning settings failed")
	}
}

func badRequestf(format string, args ...any) error {
	return errors.Wrapf(errBadRequest, format, args...)
}

func slotParam(r *http.Request, name string) (transit.SlotKey, error) {
	key := chi.URLParam(r, name)
	slot, err := transit.ParseSlotKey(key)
	if err != nil {
		return transit.SlotKey{}, badRequestf("invalid slot key %q", key)
	}
	return slot, nil
}
