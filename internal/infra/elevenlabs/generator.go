package elevenlabs

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/LandoNikko/transit-designer/internal/domain/announce"
)

// Sink stores synthesized audio and yields a served URL for it.
type Sink interface {
	SaveGenerated(name string, data []byte) (string, error)
}

// Generator synthesizes a batch of candidate clips per request so the
// user can pick a take. A failed variation fails the whole batch.
type Generator struct {
	client           *Client
	sink             Sink
	speechVariations int
	effectVariations int
}

// NewGenerator creates a generator producing the given candidate
// counts per request.
func NewGenerator(client *Client, sink Sink, speechVariations, effectVariations int) *Generator {
	if speechVariations <= 0 {
		speechVariations = 2
	}
	if effectVariations <= 0 {
		effectVariations = 4
	}
	return &Generator{
		client:           client,
		sink:             sink,
		speechVariations: speechVariations,
		effectVariations: effectVariations,
	}
}

// GenerateSpeech synthesizes spoken announcement candidates.
func (g *Generator) GenerateSpeech(ctx context.Context, text, voiceID, voiceName string) ([]announce.Clip, error) {
	if voiceID == "" {
		voiceID = g.client.DefaultVoiceID()
	}

	clips := make([]announce.Clip, 0, g.speechVariations)
	for i := 0; i < g.speechVariations; i++ {
		audio, err := g.client.TextToSpeech(ctx, text, voiceID)
		if err != nil {
			return nil, errors.Wrapf(err, "speech variation %d of %d", i+1, g.speechVariations)
		}
		url, err := g.sink.SaveGenerated(fmt.Sprintf("tts_%d.mp3", i+1), audio)
		if err != nil {
			return nil, errors.Wrapf(err, "store speech variation %d", i+1)
		}
		clips = append(clips, announce.Clip{
			Kind:      announce.KindGenerated,
			URL:       url,
			Name:      fmt.Sprintf("Take %d", i+1),
			Text:      text,
			VoiceID:   voiceID,
			VoiceName: voiceName,
			At:        time.Now(),
		})
	}

	zlog.Info().Int("variations", len(clips)).Str("voice", voiceID).Msg("elevenlabs: speech batch generated")
	return clips, nil
}

// GenerateSoundEffect synthesizes sound effect candidates.
func (g *Generator) GenerateSoundEffect(ctx context.Context, prompt string) ([]announce.Clip, error) {
	clips := make([]announce.Clip, 0, g.effectVariations)
	for i := 0; i < g.effectVariations; i++ {
		audio, err := g.client.SoundEffect(ctx, prompt)
		if err != nil {
			return nil, errors.Wrapf(err, "effect variation %d of %d", i+1, g.effectVariations)
		}
		url, err := g.sink.SaveGenerated(fmt.Sprintf("sfx_%d.mp3", i+1), audio)
		if err != nil {
			return nil, errors.Wrapf(err, "store effect variation %d", i+1)
		}
		clips = append(clips, announce.Clip{
			Kind: announce.KindSoundEffect,
			URL:  url,
			Name: fmt.Sprintf("Effect %d", i+1),
			Text: prompt,
			At:   time.Now(),
		})
	}

	zlog.Info().Int("variations", len(clips)).Msg("elevenlabs: sound effect batch generated")
	return clips, nil
}
