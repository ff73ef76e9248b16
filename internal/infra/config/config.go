// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Server     ServerConfig              `yaml:"server"`
	Catalog    CatalogConfig             `yaml:"catalog"`
	Store      StoreConfig               `yaml:"store"`
	Playback   PlaybackConfig            `yaml:"playback"`
	Effects    map[string]map[string]any `yaml:"effects"`
	ElevenLabs ElevenLabsConfig          `yaml:"elevenlabs"`
	Log        LogConfig                 `yaml:"log"`
}

// ServerConfig represents HTTP server configuration.
type ServerConfig struct {
	Addr  string      `yaml:"addr" default:":8080"`
	Hooks HooksConfig `yaml:"hooks"`
}

// HooksConfig represents lifecycle hooks configuration.
type HooksConfig struct {
	OnStarted []string `yaml:"on_started"`
	OnStopped []string `yaml:"on_stopped"`
}

// CatalogConfig locates the shipped transit systems and audio presets.
type CatalogConfig struct {
	SystemsDir string `yaml:"systems_dir" default:"catalog/systems"`
	AudioDir   string `yaml:"audio_dir" default:"catalog/audio"`
	// AudioBaseURL is the URL prefix preset audio is served under.
	AudioBaseURL string `yaml:"audio_base_url" default:"/media/presets"`
	// DefaultSystem is loaded at startup.
	DefaultSystem string `yaml:"default_system" validate:"required"`
}

// StoreConfig represents persistent data configuration.
type StoreConfig struct {
	DataDir string `yaml:"data_dir" default:"data"`
	// UploadBaseURL is the URL prefix uploaded audio is served under.
	UploadBaseURL string `yaml:"upload_base_url" default:"/media/uploads"`
}

// PlaybackConfig represents playback control configuration.
type PlaybackConfig struct {
	PollIntervalMs      int     `yaml:"poll_interval_ms" default:"250" validate:"gte=50,lte=5000"`
	FallbackDurationSec int     `yaml:"fallback_duration_sec" default:"30" validate:"gte=1,lte=600"`
	MinSpeed            float64 `yaml:"min_speed" default:"0.5" validate:"gt=0"`
	MaxSpeed            float64 `yaml:"max_speed" default:"2.0" validate:"gt=0"`
	// FFprobePath enables server-side duration probing when set.
	FFprobePath string `yaml:"ffprobe_path"`
}

// ElevenLabsConfig represents the speech synthesis API configuration.
// Generation is disabled when the API key is empty.
type ElevenLabsConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url" default:"https://api.elevenlabs.io"`
	ModelID string `yaml:"model_id" default:"eleven_multilingual_v2"`
	// DefaultVoiceID is used when a request names no voice.
	DefaultVoiceID string `yaml:"default_voice_id"`
	// SpeechVariations and EffectVariations are how many candidates one
	// generation produces.
	SpeechVariations int `yaml:"speech_variations" default:"2" validate:"gte=1,lte=10"`
	EffectVariations int `yaml:"effect_variations" default:"4" validate:"gte=1,lte=10"`
	TimeoutSec       int `yaml:"timeout_sec" default:"60" validate:"gte=1,lte=600"`
}

// LogConfig represents logger configuration.
type LogConfig struct {
	Output string `yaml:"output" default:"stdout"`
	Level  string `yaml:"level" default:"info"`
	File   string `yaml:"file"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for secrets.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("ELEVENLABS_API_KEY"); v != "" {
		c.ElevenLabs.APIKey = v
	}
	if v := os.Getenv("ELEVENLABS_BASE_URL"); v != "" {
		c.ElevenLabs.BaseURL = v
	}
	if v := os.Getenv("TRANSIT_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("TRANSIT_DATA_DIR"); v != "" {
		c.Store.DataDir = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	if c.Playback.MinSpeed > c.Playback.MaxSpeed {
		return errors.Newf("min_speed (%v) must not exceed max_speed (%v)", c.Playback.MinSpeed, c.Playback.MaxSpeed)
	}
	return nil
}

// PollInterval returns the playback progress poll period.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Playback.PollIntervalMs) * time.Millisecond
}

// FallbackDuration returns the assumed clip length when probing fails.
func (c *Config) FallbackDuration() time.Duration {
	return time.Duration(c.Playback.FallbackDurationSec) * time.Second
}

// GenerationEnabled reports whether speech synthesis is configured.
func (c *Config) GenerationEnabled() bool {
	return c.ElevenLabs.APIKey != ""
}
