package tts

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestMockProviderWritesArtifact(t *testing.T) {
	dir := t.TempDir()
	p := NewMockProvider(dir)

	path, err := p.SynthesizeToFile(context.Background(), "hello world", "abc123")
	if err != nil {
		t.Fatalf("SynthesizeToFile error: %v", err)
	}
	if path != filepath.Join(dir, "abc123.wav") {
		t.Errorf("unexpected path: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("RIFF")) {
		t.Error("artifact is not a RIFF file")
	}
	if p.Calls() != 1 {
		t.Errorf("expected one call, got %d", p.Calls())
	}
}

func TestMockProviderFailure(t *testing.T) {
	p := NewMockProvider(t.TempDir())
	engineErr := errors.New("engine down")
	p.FailWith(engineErr)

	if _, err := p.SynthesizeToFile(context.Background(), "text", "id"); !errors.Is(err, engineErr) {
		t.Fatalf("expected configured failure, got %v", err)
	}
	if p.Calls() != 1 {
		t.Errorf("failures still count as attempts, got %d", p.Calls())
	}
}

func TestMockProviderRejectsEmptyText(t *testing.T) {
	p := NewMockProvider(t.TempDir())
	if _, err := p.SynthesizeToFile(context.Background(), "", "id"); err == nil {
		t.Fatal("expected error for empty text")
	}
}
