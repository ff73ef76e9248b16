package rest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/LandoNikko/transit-designer/internal/app/board"
	"github.com/LandoNikko/transit-designer/internal/domain/announce"
	"github.com/LandoNikko/transit-designer/internal/domain/transit"
	"github.com/LandoNikko/transit-designer/internal/infra/elevenlabs"
)

// --- systems ---

func (s *Service) handleSystems(w http.ResponseWriter, r *http.Request) {
	builtins, customs := s.board.Systems()
	writeJSON(w, http.StatusOK, map[string]any{
		"builtins": builtins,
		"customs":  customs,
		"active":   s.board.ActiveSystemID(),
	})
}

func (s *Service) handleSelectSystem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.board.LoadSystem(req.ID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.modelResponse())
}

func (s *Service) handleResetSystem(w http.ResponseWriter, r *http.Request) {
	if err := s.board.ResetActive(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.modelResponse())
}

func (s *Service) handleDeleteCustom(w http.ResponseWriter, r *http.Request) {
	if err := s.board.DeleteCustomSystem(chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	builtins, customs := s.board.Systems()
	writeJSON(w, http.StatusOK, map[string]any{
		"builtins": builtins,
		"customs":  customs,
		"active":   s.board.ActiveSystemID(),
	})
}

// --- model ---

func (s *Service) modelResponse() map[string]any {
	return map[string]any{
		"model":       s.board.Model(),
		"system":      s.board.ActiveSystemID(),
		"line":        s.board.ActiveLineID(),
		"extra_slots": s.board.ExtraStationSlots(),
		"can_undo":    s.board.CanUndo(),
		"can_redo":    s.board.CanRedo(),
	}
}

func (s *Service) handleModel(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.modelResponse())
}

func (s *Service) handleUpdateStations(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Stations []transit.Station `json:"stations"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.board.UpdateStations(req.Stations); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.modelResponse())
}

func (s *Service) handleUpdateLines(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Lines []transit.Line `json:"lines"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.board.UpdateLines(req.Lines); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.modelResponse())
}

func (s *Service) handleUpdateNetwork(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Stations []transit.Station `json:"stations"`
		Lines    []transit.Line    `json:"lines"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.board.UpdateNetwork(req.Stations, req.Lines); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.modelResponse())
}

// --- lines ---

func (s *Service) handleCreateLine(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string              `json:"name"`
		Color    string              `json:"color"`
		Loop     bool                `json:"loop"`
		Stations []board.StationSpec `json:"stations"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	line, err := s.board.CreateCustomLine(req.Name, req.Color, req.Stations, req.Loop)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"line":  line,
		"model": s.board.Model(),
	})
}

func (s *Service) handleSelectLine(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.board.SelectLine(req.ID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.modelResponse())
}

// --- slots ---

func (s *Service) handleAssignAudio(w http.ResponseWriter, r *http.Request) {
	slot, err := slotParam(r, "key")
	if err != nil {
		writeError(w, err)
		return
	}
	var req announce.Assignment
	if err := readJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.board.AssignAudio(slot, req); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.modelResponse())
}

func (s *Service) handleRemoveAudio(w http.ResponseWriter, r *http.Request) {
	slot, err := slotParam(r, "key")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.board.RemoveAudio(slot); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.modelResponse())
}

func (s *Service) handleSetCategory(w http.ResponseWriter, r *http.Request) {
	slot, err := slotParam(r, "key")
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		Category announce.Category `json:"category"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.board.SetCategory(slot, req.Category); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.modelResponse())
}

func (s *Service) handleTranscript(w http.ResponseWriter, r *http.Request) {
	slot, err := slotParam(r, "key")
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"text": s.board.Transcription(slot)})
}

func (s *Service) handleGenerate(w http.ResponseWriter, r *http.Request) {
	slot, err := slotParam(r, "key")
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		Text      string `json:"text"`
		VoiceID   string `json:"voice_id"`
		VoiceName string `json:"voice_name"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	clips, err := s.board.Generate(r.Context(), slot, req.Text, req.VoiceID, req.VoiceName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"clips": clips,
		"model": s.board.Model(),
	})
}

// --- between segments and extra slots ---

func (s *Service) handleAddSegment(w http.ResponseWriter, r *http.Request) {
	slot, err := slotParam(r, "key")
	if err != nil {
		writeError(w, err)
		return
	}
	seg, err := s.board.AddBetweenSegment(slot)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"slot":  seg.String(),
		"model": s.board.Model(),
	})
}

func (s *Service) handleRemoveSegment(w http.ResponseWriter, r *http.Request) {
	slot, err := slotParam(r, "key")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.board.RemoveBetweenSegment(slot); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.modelResponse())
}

func (s *Service) handleAddExtraSlot(w http.ResponseWriter, r *http.Request) {
	slot, err := s.board.AddExtraStationSlot(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"slot":        slot.String(),
		"extra_slots": s.board.ExtraStationSlots(),
	})
}

func (s *Service) handleRemoveExtraSlot(w http.ResponseWriter, r *http.Request) {
	slot, err := slotParam(r, "key")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.board.RemoveExtraStationSlot(slot); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.modelResponse())
}

// --- uploads ---

func (s *Service) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, badRequestf("missing file field: %v", err))
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, badRequestf("reading upload: %v", err))
		return
	}
	name := header.Filename
	if n := r.FormValue("name"); n != "" {
		name = n
	}
	up, err := s.board.AddUpload(name, data)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"upload": up,
		"model":  s.board.Model(),
	})
}

func (s *Service) handleRemoveUpload(w http.ResponseWriter, r *http.Request) {
	if err := s.board.RemoveUpload(chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.modelResponse())
}

// --- history ---

func (s *Service) handleHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{
		"can_undo": s.board.CanUndo(),
		"can_redo": s.board.CanRedo(),
	})
}

func (s *Service) handleUndo(w http.ResponseWriter, r *http.Request) {
	if !s.board.Undo() {
		writeError(w, badRequestf("nothing to undo"))
		return
	}
	writeJSON(w, http.StatusOK, s.modelResponse())
}

func (s *Service) handleRedo(w http.ResponseWriter, r *http.Request) {
	if !s.board.Redo() {
		writeError(w, badRequestf("nothing to redo"))
		return
	}
	writeJSON(w, http.StatusOK, s.modelResponse())
}

// --- queue and playback ---

func (s *Service) handleQueue(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.board.View())
}

func (s *Service) handlePlaybackStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.statusResponse())
}

func (s *Service) handlePlaySlot(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Slot string `json:"slot"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	slot, err := transit.ParseSlotKey(req.Slot)
	if err != nil {
		writeError(w, badRequestf("invalid slot key %q", req.Slot))
		return
	}
	if err := s.board.PlaySlot(slot); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.statusResponse())
}

func (s *Service) handlePlayQueue(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Index int `json:"index"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.board.PlayQueueFrom(req.Index); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.statusResponse())
}

func (s *Service) handleToggleQueue(w http.ResponseWriter, r *http.Request) {
	if err := s.board.ToggleQueue(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.statusResponse())
}

func (s *Service) handleSkip(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Step int `json:"step"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Step == 0 {
		req.Step = 1
	}
	if err := s.board.Skip(req.Step); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.statusResponse())
}

func (s *Service) handleStop(w http.ResponseWriter, r *http.Request) {
	s.board.StopPlayback()
	writeJSON(w, http.StatusOK, s.statusResponse())
}

func (s *Service) handleSpeed(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Speed float64 `json:"speed"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	s.board.SetSpeed(req.Speed)
	s.saveTuning()
	writeJSON(w, http.StatusOK, s.statusResponse())
}

func (s *Service) handleVolume(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Volume float64 `json:"volume"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	s.board.SetVolume(req.Volume)
	s.saveTuning()
	writeJSON(w, http.StatusOK, s.statusResponse())
}

func (s *Service) handleMuted(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Muted bool `json:"muted"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	s.board.SetMuted(req.Muted)
	s.saveTuning()
	writeJSON(w, http.StatusOK, s.statusResponse())
}

func (s *Service) handleEffects(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Preset string `json:"preset"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.board.SetEffectsPreset(req.Preset); err != nil {
		writeError(w, badRequestf("unknown effects preset %q", req.Preset))
		return
	}
	s.saveTuning()
	writeJSON(w, http.StatusOK, s.statusResponse())
}

func (s *Service) handleEffectNames(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"presets": s.board.EffectNames()})
}

// --- catalog and voices ---

func (s *Service) handleVoices(w http.ResponseWriter, r *http.Request) {
	if s.voices == nil {
		writeJSON(w, http.StatusOK, map[string]any{"voices": []elevenlabs.Voice{}})
		return
	}
	voices, err := s.voices.Voices(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"voices": voices})
}

func (s *Service) handleCatalogAudio(w http.ResponseWriter, r *http.Request) {
	files := []string{}
	if s.catalog != nil {
		files = s.catalog.AudioFiles()
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": files})
}

// --- events ---

func (s *Service) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, badRequestf("streaming unsupported"))
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	id, ch := s.board.Events().Subscribe()
	defer s.board.Events().Unsubscribe(id)

	for {
		select {
		case <-r.Context().Done():
			return
		case n, ok := <-ch:
			if !ok {
				return
			}
			payload, err := json.Marshal(n)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n",
				n.Seq, n.Topic, payload)
			flusher.Flush()
		}
	}
}
