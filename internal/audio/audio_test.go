package audio

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/castforge/castforge/internal/synth"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestWavProberMeasuresSilence(t *testing.T) {
	buf := synth.SilentWAV(2.0, 22050)
	d, err := WavProber{}.Duration(context.Background(), buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d < 1.99 || d > 2.01 {
		t.Fatalf("expected ~2.0s, got %f", d)
	}
}

func TestWavProberRejectsGarbage(t *testing.T) {
	if _, err := (WavProber{}).Duration(context.Background(), []byte("not audio")); err == nil {
		t.Fatal("expected error for non-wav input")
	}
}

func TestChainProberDegradesToUnavailable(t *testing.T) {
	c := NewChainProber(WavProber{})
	d, err := c.Duration(context.Background(), []byte("mp3-ish garbage"))
	if !errors.Is(err, ErrProbeUnavailable) {
		t.Fatalf("expected ErrProbeUnavailable, got %v", err)
	}
	if d != 0 {
		t.Fatalf("degraded probe must report 0.0, got %f", d)
	}
}

func TestParseFFmpegDuration(t *testing.T) {
	out := "Input #0, mp3, from 'x.mp3':\n  Duration: 00:01:30.50, start: 0.0\n"
	d, err := parseFFmpegDuration(out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d != 90.5 {
		t.Fatalf("expected 90.5, got %f", d)
	}
}

func TestArenaReleaseRemovesEverything(t *testing.T) {
	arena, err := NewArena(t.TempDir())
	if err != nil {
		t.Fatalf("new arena: %v", err)
	}
	p1, err := arena.WriteFile(".mp3", []byte("a"))
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := os.Stat(p1); err != nil {
		t.Fatalf("scratch file missing before release: %v", err)
	}
	arena.Release()
	if _, err := os.Stat(arena.Dir()); !os.IsNotExist(err) {
		t.Fatalf("scratch dir survived release: %v", err)
	}
	arena.Release() // idempotent
	if _, err := arena.WriteFile(".mp3", []byte("b")); err == nil {
		t.Fatal("expected error writing to released arena")
	}
}

func TestRawAppendFallback(t *testing.T) {
	asm, err := NewAssembler("", "mp3", NewChainProber(WavProber{}), newLogger())
	if err != nil {
		t.Fatalf("new assembler: %v", err)
	}
	if asm.FFmpegPath() != "" {
		t.Fatal("expected raw-append mode")
	}
	arena, err := NewArena(t.TempDir())
	if err != nil {
		t.Fatalf("new arena: %v", err)
	}
	defer arena.Release()

	parts := [][]byte{[]byte("frame-one|"), []byte("frame-two|"), []byte("frame-three")}
	joined, err := asm.Concat(context.Background(), arena, parts)
	if err != nil {
		t.Fatalf("concat: %v", err)
	}
	want := bytes.Join(parts, nil)
	if !bytes.Equal(joined, want) {
		t.Fatalf("raw append mangled frames: %q", joined)
	}
}

func TestConcatSinglePartPassesThrough(t *testing.T) {
	asm, err := NewAssembler("", "mp3", NewChainProber(WavProber{}), newLogger())
	if err != nil {
		t.Fatalf("new assembler: %v", err)
	}
	arena, err := NewArena(t.TempDir())
	if err != nil {
		t.Fatalf("new arena: %v", err)
	}
	defer arena.Release()

	part := []byte("only-part")
	got, err := asm.Concat(context.Background(), arena, [][]byte{part})
	if err != nil {
		t.Fatalf("concat: %v", err)
	}
	if !bytes.Equal(got, part) {
		t.Fatal("single part must pass through unchanged")
	}
}

func TestConcatEmptyFails(t *testing.T) {
	asm, err := NewAssembler("", "mp3", NewChainProber(WavProber{}), newLogger())
	if err != nil {
		t.Fatalf("new assembler: %v", err)
	}
	arena, err := NewArena(t.TempDir())
	if err != nil {
		t.Fatalf("new arena: %v", err)
	}
	defer arena.Release()

	var asmErr *AssemblyError
	if _, err := asm.Concat(context.Background(), arena, nil); !errors.As(err, &asmErr) {
		t.Fatalf("expected AssemblyError, got %v", err)
	}
}

func TestWriteEpisodeAtomic(t *testing.T) {
	asm, err := NewAssembler("", "mp3", NewChainProber(WavProber{}), newLogger())
	if err != nil {
		t.Fatalf("new assembler: %v", err)
	}
	dir := t.TempDir()
	out := filepath.Join(dir, "episodes", "ep1.mp3")
	if err := asm.WriteEpisode([]byte("audio"), out); err != nil {
		t.Fatalf("write episode: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "audio" {
		t.Fatalf("unexpected content %q", data)
	}
	// No stray staging files left behind.
	entries, err := os.ReadDir(filepath.Dir(out))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the episode file, found %d entries", len(entries))
	}
}
