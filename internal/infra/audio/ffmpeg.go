package audio

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Normalizer converts uploaded audio to the canonical container: 16 kHz mono
// 16-bit PCM WAV, produced by ffmpeg. Validation probes the file with ffprobe,
// the same way it will be decoded.
type Normalizer struct {
	FFmpegPath  string // defaults to "ffmpeg" on PATH
	FFprobePath string // defaults to "ffprobe" on PATH
}

func NewNormalizer() *Normalizer {
	return &Normalizer{FFmpegPath: "ffmpeg", FFprobePath: "ffprobe"}
}

// Validate checks that the file exists, is non-empty, and decodes as audio.
func (n *Normalizer) Validate(ctx context.Context, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("audio file not readable: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("audio file is empty: %s", path)
	}

	cmd := exec.CommandContext(ctx, n.ffprobe(),
		"-v", "error",
		"-select_streams", "a:0",
		"-show_entries", "stream=codec_name",
		"-of", "csv=p=0",
		path,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffprobe failed for %s: %v: %s", path, err, strings.TrimSpace(string(out)))
	}
	if strings.TrimSpace(string(out)) == "" {
		return fmt.Errorf("no audio stream in %s", path)
	}
	return nil
}

// Normalize validates path and returns a canonical WAV inside scratchDir.
// A source that is already WAV is returned unchanged. Every failure collapses
// to a single error; the caller records it and moves on.
func (n *Normalizer) Normalize(ctx context.Context, path, scratchDir string) (string, error) {
	if err := n.Validate(ctx, path); err != nil {
		return "", err
	}

	if strings.EqualFold(filepath.Ext(path), ".wav") {
		return path, nil
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	out := filepath.Join(scratchDir, base+".wav")

	cmd := exec.CommandContext(ctx, n.ffmpeg(),
		"-i", path,
		"-ar", "16000", // 16kHz sample rate
		"-ac", "1", // mono
		"-c:a", "pcm_s16le", // 16-bit PCM
		"-y",
		out,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("ffmpeg conversion failed: %v: %s", err, strings.TrimSpace(string(output)))
	}
	return out, nil
}

func (n *Normalizer) ffmpeg() string {
	if n.FFmpegPath != "" {
		return n.FFmpegPath
	}
	return "ffmpeg"
}

func (n *Normalizer) ffprobe() string {
	if n.FFprobePath != "" {
		return n.FFprobePath
	}
	return "ffprobe"
}
