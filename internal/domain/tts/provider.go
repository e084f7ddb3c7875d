package tts

import (
	"context"
	"fmt"

	"storyteller-server-go/internal/domain/tts/edge"
	"storyteller-server-go/internal/platform/config"
	"storyteller-server-go/internal/platform/logging"
)

// Provider renders text to speech and persists the artifact.
type Provider interface {
	// SynthesizeToFile writes the spoken audio for text as a WAV file named
	// {artifactID}.wav under the provider's output directory and returns the
	// absolute file path.
	SynthesizeToFile(ctx context.Context, text, artifactID string) (string, error)
}

// New builds the provider named by cfg.Type. Artifacts are written under
// outputDir.
func New(cfg config.TTSConfig, outputDir string, logger *logging.Logger) (Provider, error) {
	switch cfg.Type {
	case "", "edge":
		return edge.NewProvider(edge.Config{
			Voice:     cfg.Voice,
			Language:  cfg.Language,
			OutputDir: outputDir,
		}, logger)
	case "mock":
		return NewMockProvider(outputDir), nil
	default:
		return nil, fmt.Errorf("unknown tts provider type %q", cfg.Type)
	}
}
