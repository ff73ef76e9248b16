package rest

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LandoNikko/transit-designer/internal/app/board"
	"github.com/LandoNikko/transit-designer/internal/app/effects"
	"github.com/LandoNikko/transit-designer/internal/app/history"
	"github.com/LandoNikko/transit-designer/internal/app/media"
	"github.com/LandoNikko/transit-designer/internal/app/playback"
	"github.com/LandoNikko/transit-designer/internal/app/preset"
	"github.com/LandoNikko/transit-designer/internal/domain/announce"
	"github.com/LandoNikko/transit-designer/internal/domain/transit"
	"github.com/LandoNikko/transit-designer/internal/infra/elevenlabs"
	"github.com/LandoNikko/transit-designer/internal/infra/mediastore"
)

func testSystem() transit.System {
	m := transit.NewModel()
	m.Stations = []transit.Station{
		{ID: "alpha", Name: "Alpha", LineID: "line1"},
		{ID: "beta", Name: "Beta", LineID: "line1"},
	}
	m.Lines = []transit.Line{
		{ID: "line1", Name: "Main Line", Color: "#0044cc", Stations: []string{"alpha", "beta"}},
	}
	return transit.System{ID: "metro", Name: "Metro", Model: m}
}

func newTestServer(t *testing.T) (*httptest.Server, *board.Board) {
	t.Helper()

	chain, err := effects.NewChain(nil)
	require.NoError(t, err)

	store, err := mediastore.New(t.TempDir(), "/media/uploads")
	require.NoError(t, err)

	b, err := board.New(board.Options{
		Presets:         preset.NewManager([]transit.System{testSystem()}, nil),
		History:         history.New(),
		Resolver:        media.NewResolver(nil, nil),
		Store:           store,
		Opener:          playback.TimedOpener{Fallback: 200 * time.Millisecond},
		Chain:           chain,
		Playback:        playback.Config{},
		DefaultSystemID: "metro",
	})
	require.NoError(t, err)
	t.Cleanup(b.Close)

	svc := NewService(b, nil, store, nil)
	srv := httptest.NewServer(svc.Routes())
	t.Cleanup(srv.Close)
	return srv, b
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func TestService_Systems(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/systems", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "metro", body["active"])
	builtins := body["builtins"].([]any)
	require.Len(t, builtins, 1)

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/systems/select", map[string]string{"id": "nope"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body["error"], "nope")
}

func TestService_AssignAudioPromotes(t *testing.T) {
	srv, b := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/slots/station-alpha/audio", map[string]string{
		"kind": "uploaded",
		"url":  "mem://chime",
		"name": "Chime",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(body["system"].(string), "custom-"))
	assert.Equal(t, true, body["can_undo"])

	m := b.Model()
	assert.Equal(t, "mem://chime", m.Assignments[transit.StationSlot("alpha")].URL)
}

func TestService_BadSlotKey(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/slots/bogus/category", map[string]string{
		"category": "station",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["error"], "bogus")
}

func TestService_UndoRedo(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/history/undo", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/slots/station-alpha/audio", map[string]string{
		"kind": "uploaded", "url": "mem://a", "name": "A",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/history/undo", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["can_undo"])
	assert.Equal(t, true, body["can_redo"])

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/history/redo", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["can_undo"])
}

func TestService_QueueAndPlayback(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/slots/station-alpha/audio", map[string]string{
		"kind": "uploaded", "url": "mem://a", "name": "A",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/queue", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	items := body["items"].([]any)
	require.Len(t, items, 1)
	first := items[0].(map[string]any)
	assert.Equal(t, "station-alpha", first["slot"])

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/playback/play", map[string]string{
		"slot": "station-alpha",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "playing", body["state"])
	assert.Equal(t, "station-alpha", body["slot"])

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/playback/stop", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "idle", body["state"])

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/playback/play", map[string]string{
		"slot": "station-beta",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, body["error"], "no playable audio")
}

func TestService_PlaybackTuning(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/playback/speed", map[string]float64{"speed": 1.5})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1.5, body["speed"])

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/playback/effects", map[string]string{"preset": "underground"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "underground", body["effects_preset"])

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/playback/effects", map[string]string{"preset": "cathedral"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/effects", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body["presets"], "hall")
}

func TestService_Upload(t *testing.T) {
	srv, b := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "door chime.mp3")
	require.NoError(t, err)
	_, err = fw.Write([]byte("not really audio"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(srv.URL+"/api/uploads", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	up := body["upload"].(map[string]any)
	assert.Equal(t, "door chime.mp3", up["name"])
	assert.True(t, strings.HasPrefix(up["url"].(string), "/media/uploads/"))

	require.Len(t, b.Model().Uploads, 1)
}

func TestService_Transcript(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/slots/station-alpha/transcript", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body["text"], "Alpha")
}

func TestService_GenerateWithoutGenerator(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/slots/station-alpha/generate", map[string]string{
		"text": "hello",
	})
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestService_Events(t *testing.T) {
	srv, b := newTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool {
		return b.Events().SubscriberCount() == 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, b.AssignAudio(transit.StationSlot("alpha"), announce.Assignment{
		Kind: announce.KindUploaded, URL: "mem://a", Name: "A",
	}))

	scanner := bufio.NewScanner(resp.Body)
	var event, data string
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "event: ") {
			event = strings.TrimPrefix(line, "event: ")
		}
		if strings.HasPrefix(line, "data: ") {
			data = strings.TrimPrefix(line, "data: ")
			break
		}
	}
	require.NoError(t, scanner.Err())
	assert.Equal(t, board.TopicModel, event)
	assert.Contains(t, data, fmt.Sprintf("%q", board.TopicModel))
}

type staticVoices struct {
	voices []elevenlabs.Voice
}

func (v *staticVoices) Voices(context.Context) ([]elevenlabs.Voice, error) {
	return v.voices, nil
}

func TestService_Voices(t *testing.T) {
	srv, _ := newTestServer(t)

	// Generation disabled: the endpoint still answers with an empty list.
	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/voices", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, body["voices"])

	chain, err := effects.NewChain(nil)
	require.NoError(t, err)
	store, err := mediastore.New(t.TempDir(), "/media/uploads")
	require.NoError(t, err)
	b, err := board.New(board.Options{
		Presets:         preset.NewManager([]transit.System{testSystem()}, nil),
		History:         history.New(),
		Resolver:        media.NewResolver(nil, nil),
		Store:           store,
		Opener:          playback.TimedOpener{Fallback: 200 * time.Millisecond},
		Chain:           chain,
		Playback:        playback.Config{},
		DefaultSystemID: "metro",
	})
	require.NoError(t, err)
	t.Cleanup(b.Close)

	lister := &staticVoices{voices: []elevenlabs.Voice{{ID: "v1", Name: "Clara", Category: "premade"}}}
	voiced := httptest.NewServer(NewService(b, nil, store, lister).Routes())
	t.Cleanup(voiced.Close)

	resp, body = doJSON(t, http.MethodGet, voiced.URL+"/api/voices", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	voices, ok := body["voices"].([]any)
	require.True(t, ok)
	require.Len(t, voices, 1)
	first := voices[0].(map[string]any)
	assert.Equal(t, "v1", first["voice_id"])
	assert.Equal(t, "Clara", first["name"])
}
