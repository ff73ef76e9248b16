// Package effects provides named audio-processing presets applied to
// the live playback handle.
package effects

import (
	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
)

// Preset is one named processing chain. Gain and rate trims are applied
// directly to the handle; compressor and reverb parameters describe the
// downstream processing stages.
type Preset struct {
	Name     string  `mapstructure:"-"`
	Gain     float64 `mapstructure:"gain" default:"1.0" validate:"gte=0,lte=2"`
	RateTrim float64 `mapstructure:"rate_trim" default:"1.0" validate:"gte=0.5,lte=1.5"`

	Compressor Compressor `mapstructure:"compressor"`
	Reverb     Reverb     `mapstructure:"reverb"`
}

// Compressor holds dynamics settings.
type Compressor struct {
	ThresholdDB float64 `mapstructure:"threshold_db" default:"-24" validate:"lte=0"`
	Ratio       float64 `mapstructure:"ratio" default:"4" validate:"gte=1"`
	AttackMs    float64 `mapstructure:"attack_ms" default:"3" validate:"gte=0"`
	ReleaseMs   float64 `mapstructure:"release_ms" default:"250" validate:"gte=0"`
}

// Reverb holds room simulation settings.
type Reverb struct {
	Mix   float64 `mapstructure:"mix" default:"0" validate:"gte=0,lte=1"`
	Decay float64 `mapstructure:"decay" default:"1.5" validate:"gte=0"`
}

// DecodePreset builds a preset from a settings map, applying defaults
// and validating the result.
func DecodePreset(name string, settings map[string]any) (Preset, error) {
	var p Preset
	if err := mapstructure.Decode(settings, &p); err != nil {
		return Preset{}, errors.Wrapf(err, "failed to decode effects preset %s", name)
	}
	if err := defaults.Set(&p); err != nil {
		return Preset{}, errors.Wrapf(err, "failed to set defaults for effects preset %s", name)
	}
	if err := validator.New().Struct(p); err != nil {
		return Preset{}, errors.Wrapf(err, "effects preset %s validation failed", name)
	}
	p.Name = name
	return p, nil
}

// BuiltinPresets returns the shipped processing chains.
func BuiltinPresets() map[string]Preset {
	return map[string]Preset{
		"standard": {
			Name:       "standard",
			Gain:       1.0,
			RateTrim:   1.0,
			Compressor: Compressor{ThresholdDB: -24, Ratio: 4, AttackMs: 3, ReleaseMs: 250},
		},
		"underground": {
			Name:       "underground",
			Gain:       0.9,
			RateTrim:   1.0,
			Compressor: Compressor{ThresholdDB: -30, Ratio: 6, AttackMs: 5, ReleaseMs: 300},
			Reverb:     Reverb{Mix: 0.35, Decay: 2.8},
		},
		"hall": {
			Name:       "hall",
			Gain:       0.95,
			RateTrim:   1.0,
			Compressor: Compressor{ThresholdDB: -20, Ratio: 3, AttackMs: 10, ReleaseMs: 400},
			Reverb:     Reverb{Mix: 0.5, Decay: 4.0},
		},
		"vintage": {
			Name:       "vintage",
			Gain:       0.8,
			RateTrim:   0.98,
			Compressor: Compressor{ThresholdDB: -18, Ratio: 8, AttackMs: 1, ReleaseMs: 150},
			Reverb:     Reverb{Mix: 0.15, Decay: 1.2},
		},
	}
}
