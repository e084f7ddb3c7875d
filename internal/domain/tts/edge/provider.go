package edge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/wujunwei928/edge-tts-go/edge_tts"

	platformerrors "storyteller-server-go/internal/platform/errors"
	"storyteller-server-go/internal/platform/logging"
)

// Config holds the Edge TTS engine settings.
type Config struct {
	Voice     string `json:"voice" yaml:"voice"`
	Language  string `json:"language" yaml:"language"`
	OutputDir string `json:"output_dir" yaml:"output_dir"`
}

// Provider synthesizes speech through the Microsoft Edge TTS service and
// stores each artifact as a WAV file addressed by artifact id.
type Provider struct {
	voice     string
	language  string
	outputDir string
	logger    *logging.Logger
}

// NewProvider validates the configuration and prepares the output directory.
func NewProvider(cfg Config, logger *logging.Logger) (*Provider, error) {
	if logger == nil {
		logger = logging.DefaultLogger
	}
	voice := cfg.Voice
	if voice == "" {
		voice = "en-US-AriaNeural"
	}
	language := cfg.Language
	if language == "" {
		language = languageFromVoice(voice)
	}
	if cfg.OutputDir == "" {
		return nil, fmt.Errorf("edge tts requires an output directory")
	}
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	logger.InfoTag("TTS", "edge provider ready, voice=%s language=%s", voice, language)
	return &Provider{
		voice:     voice,
		language:  language,
		outputDir: cfg.OutputDir,
		logger:    logger,
	}, nil
}

// SynthesizeToFile renders text and writes {artifactID}.wav, returning the
// file path. The engine emits MP3; the payload is transcoded to WAV so the
// artifact can be served directly to browser audio elements.
func (p *Provider) SynthesizeToFile(ctx context.Context, text, artifactID string) (string, error) {
	if text == "" {
		return "", platformerrors.New(platformerrors.KindSynthesis, "tts.synthesize",
			"text cannot be empty")
	}
	if err := ctx.Err(); err != nil {
		return "", platformerrors.Wrap(platformerrors.KindSynthesis, "tts.synthesize",
			"context cancelled", err)
	}

	start := time.Now()
	communicate, err := edge_tts.NewCommunicate(text, edge_tts.SetVoice(p.voice))
	if err != nil {
		return "", platformerrors.Wrap(platformerrors.KindSynthesis, "tts.synthesize",
			"failed to create edge tts communicator", err)
	}

	mp3Data, err := communicate.Stream()
	if err != nil {
		return "", platformerrors.Wrap(platformerrors.KindSynthesis, "tts.synthesize",
			"edge tts synthesis failed", err)
	}

	wavData, err := mp3ToWAV(mp3Data)
	if err != nil {
		return "", platformerrors.Wrap(platformerrors.KindSynthesis, "tts.synthesize",
			"failed to transcode audio", err)
	}

	path := filepath.Join(p.outputDir, artifactID+".wav")
	if err := os.WriteFile(path, wavData, 0o644); err != nil {
		return "", platformerrors.Wrap(platformerrors.KindSynthesis, "tts.synthesize",
			"failed to write artifact", err)
	}

	p.logger.DebugTag("TTS", "synthesized %d chars to %s in %v", len(text), path, time.Since(start))
	return path, nil
}

func languageFromVoice(voice string) string {
	if len(voice) >= 5 {
		return voice[:5]
	}
	return "en-US"
}
