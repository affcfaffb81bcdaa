package audio

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/mattn/go-shellwords"
)

// AssemblyError is a fatal concatenation or I/O failure. The pipeline
// treats it as run-aborting and releases every temporary artifact.
type AssemblyError struct {
	Op  string
	Err error
}

func (e *AssemblyError) Error() string {
	return fmt.Sprintf("audio assembly failed during %s: %v", e.Op, e.Err)
}

func (e *AssemblyError) Unwrap() error { return e.Err }

// Assembler concatenates encoded audio buffers and measures their
// durations. Two strategies: lossless container remux through ffmpeg
// when available, raw frame append otherwise. Raw append works for
// frame-oriented formats (MP3) whose decoders tolerate back-to-back
// streams, but leaves the container's own duration metadata wrong,
// which is why durations are probed per sub-stream.
type Assembler struct {
	ffmpegCmd []string // nil when remuxing is unavailable
	format    string   // file extension without dot: "mp3", "wav"
	prober    Prober
	logger    *slog.Logger
}

// NewAssembler resolves the remux utility from command (shell-style
// string, usually just "ffmpeg"). An empty or unresolvable command
// selects the raw-append fallback with a logged degradation notice.
func NewAssembler(command, format string, prober Prober, log *slog.Logger) (*Assembler, error) {
	if format == "" {
		format = "mp3"
	}
	a := &Assembler{
		format: format,
		prober: prober,
		logger: log.With(slog.String("component", "assembler")),
	}
	if command == "" {
		a.logger.Warn("no remux utility configured, falling back to raw frame append")
		return a, nil
	}
	args, err := shellwords.NewParser().Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse remux command: %w", err)
	}
	if len(args) == 0 {
		a.logger.Warn("no remux utility configured, falling back to raw frame append")
		return a, nil
	}
	if _, err := exec.LookPath(args[0]); err != nil {
		a.logger.Warn("remux utility not found, falling back to raw frame append",
			slog.String("command", args[0]))
		return a, nil
	}
	a.ffmpegCmd = args
	return a, nil
}

// ResolveTool parses a shell-style command and resolves its binary on
// PATH, returning "" when unavailable.
func ResolveTool(command string) string {
	args, err := shellwords.NewParser().Parse(command)
	if err != nil || len(args) == 0 {
		return ""
	}
	path, err := exec.LookPath(args[0])
	if err != nil {
		return ""
	}
	return path
}

// FFmpegPath returns the resolved remux binary, or "" when raw append
// is in effect.
func (a *Assembler) FFmpegPath() string {
	if len(a.ffmpegCmd) == 0 {
		return ""
	}
	return a.ffmpegCmd[0]
}

// Format returns the container extension used for output files.
func (a *Assembler) Format() string { return a.format }

// Duration measures one buffer's playback length in seconds.
func (a *Assembler) Duration(ctx context.Context, audio []byte) (float64, error) {
	return a.prober.Duration(ctx, audio)
}

// Concat folds ordered audio buffers into one stream. Temporary files
// are created inside the arena so the caller's Release cleans them up.
func (a *Assembler) Concat(ctx context.Context, arena *Arena, parts [][]byte) ([]byte, error) {
	switch len(parts) {
	case 0:
		return nil, &AssemblyError{Op: "concat", Err: fmt.Errorf("no audio to assemble")}
	case 1:
		return parts[0], nil
	}
	if len(a.ffmpegCmd) == 0 {
		return bytes.Join(parts, nil), nil
	}
	return a.remux(ctx, arena, parts)
}

func (a *Assembler) remux(ctx context.Context, arena *Arena, parts [][]byte) ([]byte, error) {
	var list strings.Builder
	for _, part := range parts {
		path, err := arena.WriteFile("."+a.format, part)
		if err != nil {
			return nil, &AssemblyError{Op: "remux input", Err: err}
		}
		fmt.Fprintf(&list, "file '%s'\n", path)
	}
	listPath, err := arena.WriteFile(".txt", []byte(list.String()))
	if err != nil {
		return nil, &AssemblyError{Op: "remux list", Err: err}
	}
	outPath, err := arena.NewPath("." + a.format)
	if err != nil {
		return nil, &AssemblyError{Op: "remux output", Err: err}
	}

	args := append([]string{}, a.ffmpegCmd[1:]...)
	args = append(args, "-y", "-f", "concat", "-safe", "0", "-i", listPath, "-c", "copy", outPath)
	cmd := exec.CommandContext(ctx, a.ffmpegCmd[0], args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, &AssemblyError{
			Op:  "remux",
			Err: fmt.Errorf("%v: %s", err, bytes.TrimSpace(output)),
		}
	}
	joined, err := os.ReadFile(outPath)
	if err != nil {
		return nil, &AssemblyError{Op: "remux read", Err: err}
	}
	return joined, nil
}

// WriteEpisode writes the final artifact atomically: the bytes land in
// a scratch file next to outPath and are renamed into place only once
// fully written, so either the complete file exists or none does.
func (a *Assembler) WriteEpisode(audio []byte, outPath string) error {
	dir := filepath.Dir(outPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &AssemblyError{Op: "prepare output dir", Err: err}
	}
	tmp, err := os.CreateTemp(dir, ".castforge-episode-*")
	if err != nil {
		return &AssemblyError{Op: "stage output", Err: err}
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(audio); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &AssemblyError{Op: "write output", Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &AssemblyError{Op: "flush output", Err: err}
	}
	if err := os.Rename(tmpName, outPath); err != nil {
		os.Remove(tmpName)
		return &AssemblyError{Op: "publish output", Err: err}
	}
	return nil
}
