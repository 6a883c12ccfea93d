package audio

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestValidateMissingFile(t *testing.T) {
	n := NewNormalizer()
	err := n.Validate(context.Background(), filepath.Join(t.TempDir(), "gone.wav"))
	if err == nil {
		t.Error("Validate() = nil, want error for missing file")
	}
}

func TestValidateEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.wav")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	n := NewNormalizer()
	if err := n.Validate(context.Background(), path); err == nil {
		t.Error("Validate() = nil, want error for empty file")
	}
}

func TestNormalizeFailsValidationBeforeConversion(t *testing.T) {
	n := NewNormalizer()
	// ffmpeg path is bogus on purpose; validation must fail first
	n.FFmpegPath = filepath.Join(t.TempDir(), "no-such-ffmpeg")
	n.FFprobePath = filepath.Join(t.TempDir(), "no-such-ffprobe")

	out, err := n.Normalize(context.Background(), filepath.Join(t.TempDir(), "gone.mp3"), t.TempDir())
	if err == nil {
		t.Error("Normalize() = nil error, want validation failure")
	}
	if out != "" {
		t.Errorf("Normalize() path = %q, want empty", out)
	}
}
