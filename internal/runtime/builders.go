package runtime

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/castforge/castforge/internal/audio"
	"github.com/castforge/castforge/internal/config"
	"github.com/castforge/castforge/internal/pipeline"
	"github.com/castforge/castforge/internal/synth"
	"github.com/castforge/castforge/internal/voice"
)

// BuildSynthesizer maps the synthesis config onto a provider, wrapping
// it in the retry decorator when enabled.
func BuildSynthesizer(cfg config.SynthesisConfig) (synth.Synthesizer, error) {
	var (
		s   synth.Synthesizer
		err error
	)
	switch cfg.Mode {
	case "mock":
		s = synth.NewMockSynth(cfg.SampleRate)
	case "exec":
		s, err = synth.NewExecSynth(cfg.Command)
	case "google":
		s, err = synth.NewGoogleSynth(cfg.Endpoint, cfg.APIKey, cfg.Encoding)
	default:
		return nil, fmt.Errorf("unknown synthesis mode %q", cfg.Mode)
	}
	if err != nil {
		return nil, err
	}
	if cfg.Retry.Enabled {
		s = synth.WithRetry(s, synth.RetryConfig{
			MaxAttempts:    cfg.Retry.MaxAttempts,
			InitialBackoff: time.Duration(cfg.Retry.InitialBackoffMS) * time.Millisecond,
			MaxBackoff:     time.Duration(cfg.Retry.MaxBackoffMS) * time.Millisecond,
		})
	}
	return s, nil
}

// BuildOrchestrator assembles the full episode pipeline from config:
// voice registry, synthesizer, duration prober, and assembler.
func BuildOrchestrator(cfg config.Config, logger *slog.Logger) (*pipeline.Orchestrator, error) {
	voices, err := voice.NewRegistry(cfg.Voices)
	if err != nil {
		return nil, fmt.Errorf("build voice registry: %w", err)
	}

	s, err := BuildSynthesizer(cfg.Synthesis)
	if err != nil {
		return nil, fmt.Errorf("build synthesizer: %w", err)
	}

	prober := audio.NewProber(audio.ResolveTool(cfg.Assembly.RemuxCommand))
	assembler, err := audio.NewAssembler(cfg.Assembly.RemuxCommand, cfg.Assembly.Format, prober, logger)
	if err != nil {
		return nil, fmt.Errorf("build assembler: %w", err)
	}

	return pipeline.New(voices, s, assembler, pipeline.Options{
		Workers:    cfg.Pipeline.Workers,
		OutputDir:  cfg.Pipeline.OutputDir,
		ScratchDir: cfg.Pipeline.ScratchDir,
	}, logger), nil
}
