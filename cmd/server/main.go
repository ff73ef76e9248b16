// Package main provides the server entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/LandoNikko/transit-designer/internal/api/rest"
	"github.com/LandoNikko/transit-designer/internal/app/board"
	"github.com/LandoNikko/transit-designer/internal/app/effects"
	"github.com/LandoNikko/transit-designer/internal/app/history"
	"github.com/LandoNikko/transit-designer/internal/app/media"
	"github.com/LandoNikko/transit-designer/internal/app/playback"
	"github.com/LandoNikko/transit-designer/internal/app/preset"
	"github.com/LandoNikko/transit-designer/internal/infra/catalog"
	"github.com/LandoNikko/transit-designer/internal/infra/config"
	"github.com/LandoNikko/transit-designer/internal/infra/elevenlabs"
	"github.com/LandoNikko/transit-designer/internal/infra/logger"
	"github.com/LandoNikko/transit-designer/internal/infra/mediaprobe"
	"github.com/LandoNikko/transit-designer/internal/infra/mediastore"
)

var (
	app        = kingpin.New("transit-board-server", "Transit announcement board server")
	configPath = app.Flag("config", "Path to config file").Default("config/server.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()

	// list-effects command
	listEffectsCmd = app.Command("list-effects", "List built-in effects presets and exit")
)

func init() {
	// start command (default) - no need to store the command
	app.Command("start", "Start the server (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if command == listEffectsCmd.FullCommand() {
		printEffects()
		return
	}

	loggerConfig := logger.Config{
		Output: "stdout",
		Level:  "info",
		File:   "",
	}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
		loggerConfig.File = *logfile
	}
	if err := logger.Init(loggerConfig); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Server error: %v", err)
		os.Exit(1)
	}
}

// run executes the main server logic. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.Config) error {
	cat, err := catalog.Load(cfg.Catalog.SystemsDir, cfg.Catalog.AudioDir, cfg.Catalog.AudioBaseURL)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}

	store, err := mediastore.New(cfg.Store.DataDir, cfg.Store.UploadBaseURL)
	if err != nil {
		return fmt.Errorf("failed to open media store: %w", err)
	}

	customs, err := store.LoadCustomSystems()
	if err != nil {
		return fmt.Errorf("failed to load custom systems: %w", err)
	}
	zlog.Info().Msgf("Loaded %d custom systems", len(customs))

	// Duration probing is optional; without ffprobe every clip falls
	// back to the configured default length.
	var prober media.Prober
	if cfg.Playback.FFprobePath != "" {
		probe := mediaprobe.New(cfg.Playback.FFprobePath)
		probe.Mount(cfg.Catalog.AudioBaseURL, cat.AudioDir())
		probe.Mount(cfg.Store.UploadBaseURL+"/generated", store.GeneratedDir())
		probe.Mount(cfg.Store.UploadBaseURL, store.UploadsDir())
		prober = probe
	}
	resolver := media.NewResolver(cat, prober)
	resolver.SetFallback(cfg.FallbackDuration())

	chain, err := effects.NewChain(cfg.Effects)
	if err != nil {
		return fmt.Errorf("invalid effects config: %w", err)
	}

	var (
		generator board.Generator
		voices    rest.VoiceLister
	)
	if cfg.GenerationEnabled() {
		client, err := elevenlabs.New(elevenlabs.Config{
			APIKey:         cfg.ElevenLabs.APIKey,
			BaseURL:        cfg.ElevenLabs.BaseURL,
			ModelID:        cfg.ElevenLabs.ModelID,
			DefaultVoiceID: cfg.ElevenLabs.DefaultVoiceID,
			Timeout:        time.Duration(cfg.ElevenLabs.TimeoutSec) * time.Second,
		})
		if err != nil {
			return fmt.Errorf("failed to create synthesis client: %w", err)
		}
		generator = elevenlabs.NewGenerator(client, store,
			cfg.ElevenLabs.SpeechVariations, cfg.ElevenLabs.EffectVariations)
		voices = client
		zlog.Info().Msg("Speech synthesis enabled")
	} else {
		zlog.Info().Msg("Speech synthesis disabled (no API key)")
	}

	b, err := board.New(board.Options{
		Presets:   preset.NewManager(cat.Systems(), customs),
		History:   history.New(),
		Resolver:  resolver,
		Store:     store,
		Generator: generator,
		Defaults:  cat,
		Opener:    playback.TimedOpener{Fallback: cfg.FallbackDuration()},
		Chain:     chain,
		Playback: playback.Config{
			PollInterval: cfg.PollInterval(),
			MinSpeed:     cfg.Playback.MinSpeed,
			MaxSpeed:     cfg.Playback.MaxSpeed,
		},
		DefaultSystemID: cfg.Catalog.DefaultSystem,
	})
	if err != nil {
		return fmt.Errorf("failed to create board: %w", err)
	}
	defer b.Close()

	applySavedSettings(b, store)

	svc := rest.NewService(b, cat, store, voices)

	serverAddr := cfg.Server.Addr
	// h2c lets HTTP/2 clients connect without TLS
	server := &http.Server{
		Addr:    serverAddr,
		Handler: h2c.NewHandler(svc.Routes(), &http2.Server{}),
	}

	serverErrCh := make(chan error, 1)
	serverStartedCh := make(chan struct{})

	go func() {
		zlog.Info().Msgf("Starting server: addr=%s", serverAddr)
		close(serverStartedCh)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- err
		}
	}()

	// Wait for the server to start listening before firing hooks
	<-serverStartedCh
	time.Sleep(100 * time.Millisecond)

	executeHooks(cfg.Server.Hooks.OnStarted, "on_started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		zlog.Info().Msg("Received shutdown signal...")
	case err := <-serverErrCh:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Stop playback first so event subscribers drain cleanly
	b.StopPlayback()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to shutdown server: %v", err)
	}

	zlog.Info().Msg("Server stopped")

	executeHooks(cfg.Server.Hooks.OnStopped, "on_stopped")

	return nil
}

// applySavedSettings restores the tuning preferences from the last run.
func applySavedSettings(b *board.Board, store *mediastore.Store) {
	settings, ok, err := store.LoadSettings()
	if err != nil {
		zlog.Warn().Err(err).Msg("Failed to load saved settings")
		return
	}
	if !ok {
		return
	}
	if settings.Speed > 0 {
		b.SetSpeed(settings.Speed)
	}
	if settings.Volume > 0 {
		b.SetVolume(settings.Volume)
	}
	b.SetMuted(settings.Muted)
	if settings.EffectsPreset != "" {
		if err := b.SetEffectsPreset(settings.EffectsPreset); err != nil {
			zlog.Warn().Msgf("Saved effects preset %q no longer exists", settings.EffectsPreset)
		}
	}
}

// printEffects prints the built-in effects presets.
func printEffects() {
	chain, err := effects.NewChain(nil)
	if err != nil {
		panic(err)
	}
	fmt.Println("Available effects presets:")
	for _, name := range chain.Names() {
		fmt.Printf("  %s\n", name)
	}
}

// executeHooks runs a list of shell commands.
func executeHooks(hooks []string, stage string) {
	if len(hooks) == 0 {
		return
	}

	zlog.Info().Msgf("Executing %s hooks (%d commands)", stage, len(hooks))

	for _, hook := range hooks {
		zlog.Info().Msgf("Executing hook: %s", hook)
		// Use sh -c to allow shell features like redirection or pipes
		cmd := exec.Command("sh", "-c", hook)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			zlog.Error().Err(err).Msgf("Failed to execute hook: %s", hook)
		}
	}
}
