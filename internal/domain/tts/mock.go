package tts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
)

// MockProvider writes a short silent WAV artifact without contacting any
// engine. Used in tests and for development without network access.
type MockProvider struct {
	outputDir string
	calls     atomic.Int64
	failWith  error
}

// NewMockProvider creates a mock provider writing into outputDir.
func NewMockProvider(outputDir string) *MockProvider {
	return &MockProvider{outputDir: outputDir}
}

// FailWith makes every subsequent synthesis return err.
func (p *MockProvider) FailWith(err error) {
	p.failWith = err
}

// Calls reports how many syntheses were attempted.
func (p *MockProvider) Calls() int64 {
	return p.calls.Load()
}

func (p *MockProvider) SynthesizeToFile(ctx context.Context, text, artifactID string) (string, error) {
	p.calls.Add(1)
	if p.failWith != nil {
		return "", p.failWith
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if text == "" {
		return "", fmt.Errorf("text cannot be empty")
	}

	if err := os.MkdirAll(p.outputDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(p.outputDir, artifactID+".wav")
	if err := os.WriteFile(path, silentWAV(), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// silentWAV returns a minimal valid WAV file: 100ms of silence at 16kHz mono.
func silentWAV() []byte {
	const sampleRate = 16000
	const samples = sampleRate / 10
	pcm := make([]byte, samples*2)

	header := make([]byte, 0, 44+len(pcm))
	header = append(header, []byte("RIFF")...)
	header = appendUint32(header, uint32(36+len(pcm)))
	header = append(header, []byte("WAVEfmt ")...)
	header = appendUint32(header, 16)
	header = appendUint16(header, 1) // PCM
	header = appendUint16(header, 1) // mono
	header = appendUint32(header, sampleRate)
	header = appendUint32(header, sampleRate*2)
	header = appendUint16(header, 2)
	header = appendUint16(header, 16)
	header = append(header, []byte("data")...)
	header = appendUint32(header, uint32(len(pcm)))
	return append(header, pcm...)
}

func appendUint16(b []byte, v uint16) []byte {
	return append(b, byte(v), byte(v>>8))
}

func appendUint32(b []byte, v uint32) []byte {
	return append(b, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}
