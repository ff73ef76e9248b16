// Package elevenlabs provides a client for the ElevenLabs speech and
// sound effect synthesis API.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

const defaultBaseURL = "https://api.elevenlabs.io"

// Client is an ElevenLabs API client.
type Client struct {
	apiKey         string
	baseURL        string
	modelID        string
	defaultVoiceID string
	httpClient     *http.Client
}

// Config represents ElevenLabs client configuration.
type Config struct {
	APIKey         string
	BaseURL        string
	ModelID        string
	DefaultVoiceID string
	Timeout        time.Duration
}

// Voice is one synthesis voice offered by the API.
type Voice struct {
	ID       string `json:"voice_id"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

type voicesResponse struct {
	Voices []Voice `json:"voices"`
}

type apiError struct {
	Detail struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"detail"`
}

// New creates a new ElevenLabs client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("elevenlabs API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	return &Client{
		apiKey:         cfg.APIKey,
		baseURL:        cfg.BaseURL,
		modelID:        cfg.ModelID,
		defaultVoiceID: cfg.DefaultVoiceID,
		httpClient:     &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// DefaultVoiceID returns the configured fallback voice.
func (c *Client) DefaultVoiceID() string {
	return c.defaultVoiceID
}

// TextToSpeech synthesizes speech audio for the given text.
// Reference: https://elevenlabs.io/docs/api-reference/text-to-speech
func (c *Client) TextToSpeech(ctx context.Context, text, voiceID string) ([]byte, error) {
	if text == "" {
		return nil, errors.New("text is required")
	}
	if voiceID == "" {
		voiceID = c.defaultVoiceID
	}
	if voiceID == "" {
		return nil, errors.New("voice id is required")
	}

	body := map[string]any{"text": text}
	if c.modelID != "" {
		body["model_id"] = c.modelID
	}
	return c.postAudio(ctx, "/v1/text-to-speech/"+voiceID, body)
}

// SoundEffect synthesizes a sound effect from a text prompt.
// Reference: https://elevenlabs.io/docs/api-reference/sound-generation
func (c *Client) SoundEffect(ctx context.Context, prompt string) ([]byte, error) {
	if prompt == "" {
		return nil, errors.New("prompt is required")
	}
	return c.postAudio(ctx, "/v1/sound-generation", map[string]any{"text": prompt})
}

// Voices lists the available synthesis voices.
func (c *Client) Voices(ctx context.Context) ([]Voice, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/voices", nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "voices request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, c.asError(resp)
	}

	var parsed voicesResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, errors.Wrap(err, "failed to parse voices response")
	}
	return parsed.Voices, nil
}

func (c *Client) postAudio(ctx context.Context, path string, body map[string]any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("xi-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "synthesis request failed: %s", path)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, c.asError(resp)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read audio body")
	}
	if len(audio) == 0 {
		return nil, errors.Newf("empty audio response from %s", path)
	}

	zlog.Debug().
		Str("path", path).
		Int("bytes", len(audio)).
		Dur("elapsed", time.Since(start)).
		Msg("elevenlabs: synthesis completed")
	return audio, nil
}

func (c *Client) asError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var parsed apiError
	if err := json.Unmarshal(data, &parsed); err == nil && parsed.Detail.Message != "" {
		return errors.Newf("elevenlabs: %s (%s, http %d)", parsed.Detail.Message, parsed.Detail.Status, resp.StatusCode)
	}
	return errors.Newf("elevenlabs: http %d: %s", resp.StatusCode, string(data))
}
