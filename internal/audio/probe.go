package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"

	"github.com/go-audio/wav"
)

// ErrProbeUnavailable signals that no prober could measure a buffer.
// Callers degrade to a duration of 0.0 and must surface the loss of
// chapter-timestamp accuracy as a warning, never silently.
var ErrProbeUnavailable = errors.New("duration probe unavailable")

// Prober measures the playback duration of one encoded audio buffer.
// Durations are always measured per sub-stream; the concatenated file's
// self-reported metadata is never trusted.
type Prober interface {
	Duration(ctx context.Context, audio []byte) (float64, error)
}

// WavProber decodes RIFF/WAVE headers in-process. Cheap, no external
// tools, but only understands WAV.
type WavProber struct{}

func (WavProber) Duration(_ context.Context, audio []byte) (float64, error) {
	dec := wav.NewDecoder(bytes.NewReader(audio))
	d, err := dec.Duration()
	if err != nil {
		return 0, fmt.Errorf("decode wav duration: %w", err)
	}
	return d.Seconds(), nil
}

// FFmpegProber shells out to ffmpeg and parses the reported duration.
// Handles any container ffmpeg understands (MP3, OGG, WAV, ...).
type FFmpegProber struct {
	ffmpegPath string
}

func NewFFmpegProber(ffmpegPath string) *FFmpegProber {
	return &FFmpegProber{ffmpegPath: ffmpegPath}
}

func (p *FFmpegProber) Duration(ctx context.Context, audio []byte) (float64, error) {
	tmp, err := os.CreateTemp("", "castforge-probe-*")
	if err != nil {
		return 0, fmt.Errorf("probe scratch file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(audio); err != nil {
		tmp.Close()
		return 0, fmt.Errorf("write probe input: %w", err)
	}
	tmp.Close()

	cmd := exec.CommandContext(ctx, p.ffmpegPath, "-i", tmp.Name(), "-f", "null", "-")
	// ffmpeg exits non-zero for the null muxer invocation on some
	// builds; the duration line is still printed, so parse regardless.
	output, err := cmd.CombinedOutput()
	if len(output) == 0 && err != nil {
		return 0, fmt.Errorf("run ffmpeg probe: %w", err)
	}
	return parseFFmpegDuration(string(output))
}

var ffmpegDuration = regexp.MustCompile(`Duration:\s*(\d+):(\d+):(\d+)\.(\d+)`)

func parseFFmpegDuration(output string) (float64, error) {
	m := ffmpegDuration.FindStringSubmatch(output)
	if m == nil {
		return 0, fmt.Errorf("no duration in ffmpeg output")
	}
	h, _ := strconv.Atoi(m[1])
	min, _ := strconv.Atoi(m[2])
	s, _ := strconv.Atoi(m[3])
	frac, _ := strconv.Atoi(m[4])
	fracSeconds := float64(frac)
	for range len(m[4]) {
		fracSeconds /= 10
	}
	return float64(h*3600+min*60+s) + fracSeconds, nil
}

// ChainProber tries each prober in order and returns the first
// successful measurement. When every prober fails it returns 0 wrapped
// in ErrProbeUnavailable.
type ChainProber struct {
	probers []Prober
}

func NewChainProber(probers ...Prober) *ChainProber {
	return &ChainProber{probers: probers}
}

func (c *ChainProber) Duration(ctx context.Context, audio []byte) (float64, error) {
	var lastErr error
	for _, p := range c.probers {
		d, err := p.Duration(ctx, audio)
		if err == nil {
			return d, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no probers configured")
	}
	return 0, fmt.Errorf("%w: %v", ErrProbeUnavailable, lastErr)
}

// NewProber builds the standard probe chain: in-process WAV decoding
// first, then ffmpeg when available.
func NewProber(ffmpegPath string) Prober {
	if ffmpegPath == "" {
		return NewChainProber(WavProber{})
	}
	return NewChainProber(WavProber{}, NewFFmpegProber(ffmpegPath))
}
