// Package pipeline drives one episode through classification, chunking,
// synthesis, and assembly, producing the final audio artifact and its
// chapter markers.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/castforge/castforge/internal/audio"
	"github.com/castforge/castforge/internal/chapters"
	"github.com/castforge/castforge/internal/script"
	"github.com/castforge/castforge/internal/synth"
	"github.com/castforge/castforge/internal/voice"
)

// ValidationError rejects bad input before any synthesis call is made.
type ValidationError struct {
	Segment string
	Reason  string
}

func (e *ValidationError) Error() string {
	if e.Segment == "" {
		return fmt.Sprintf("invalid episode: %s", e.Reason)
	}
	return fmt.Sprintf("invalid segment %q: %s", e.Segment, e.Reason)
}

// Warning is a non-fatal degradation surfaced alongside a successful
// result instead of being swallowed.
type Warning struct {
	Segment string
	Message string
}

// Result is the final artifact of one episode run.
type Result struct {
	AudioPath    string
	ChaptersPath string
	Chapters     []chapters.Marker
	Duration     float64
	Warnings     []Warning
}

// Options tunes one orchestrator instance.
type Options struct {
	// Workers bounds synthesis concurrency within a single segment's
	// chunk list. Values <= 1 run strictly sequentially. Segments are
	// never processed concurrently with each other: their order defines
	// chapter order.
	Workers    int
	OutputDir  string
	ScratchDir string

	// OnSegment, if set, is called after each segment is rendered with
	// its index, title, and measured duration.
	OnSegment func(index int, title string, duration float64)
}

// Orchestrator is the top-level synthesis entry point.
type Orchestrator struct {
	voices    *voice.Registry
	synth     synth.Synthesizer
	assembler *audio.Assembler
	opts      Options
	logger    *slog.Logger
	tracer    trace.Tracer
}

func New(voices *voice.Registry, s synth.Synthesizer, assembler *audio.Assembler, opts Options, log *slog.Logger) *Orchestrator {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "."
	}
	return &Orchestrator{
		voices:    voices,
		synth:     s,
		assembler: assembler,
		opts:      opts,
		logger:    log.With(slog.String("component", "pipeline")),
		tracer:    otel.Tracer("castforge/pipeline"),
	}
}

// WithSegmentHook returns a shallow copy whose renders report each
// finished segment through fn. The copy shares all underlying state.
func (o *Orchestrator) WithSegmentHook(fn func(index int, title string, duration float64)) *Orchestrator {
	clone := *o
	clone.opts.OnSegment = fn
	return &clone
}

// SynthesizeEpisode renders ordered segments into one audio file named
// after name, plus a chapter sidecar. Any synthesis or assembly failure
// aborts the whole run; every temporary artifact is removed before the
// error propagates, and no partial output file is left in place.
func (o *Orchestrator) SynthesizeEpisode(ctx context.Context, name string, segments []script.Segment) (*Result, error) {
	ctx, span := o.tracer.Start(ctx, "pipeline.episode",
		trace.WithAttributes(attribute.Int("segments", len(segments))))
	defer span.End()

	if err := validate(name, segments); err != nil {
		return nil, err
	}

	arena, err := audio.NewArena(o.opts.ScratchDir)
	if err != nil {
		return nil, &audio.AssemblyError{Op: "scratch setup", Err: err}
	}
	defer arena.Release()

	var (
		episodeParts [][]byte
		markers      []chapters.Marker
		warnings     []Warning
		elapsed      float64
	)
	for i, seg := range segments {
		segAudio, dur, warn, err := o.renderSegment(ctx, arena, seg)
		if err != nil {
			return nil, fmt.Errorf("segment %d (%q): %w", i, seg.Title, err)
		}
		if warn != nil {
			warnings = append(warnings, *warn)
		}
		markers = append(markers, chapters.Marker{Title: seg.Title, StartTime: elapsed})
		elapsed += dur
		episodeParts = append(episodeParts, segAudio)
		o.logger.Info("segment rendered",
			slog.Int("index", i),
			slog.String("title", seg.Title),
			slog.Float64("duration_s", dur))
		if o.opts.OnSegment != nil {
			o.opts.OnSegment(i, seg.Title, dur)
		}
	}

	final, err := o.assembler.Concat(ctx, arena, episodeParts)
	if err != nil {
		return nil, err
	}

	audioPath := filepath.Join(o.opts.OutputDir, name+"."+o.assembler.Format())
	chaptersPath := filepath.Join(o.opts.OutputDir, name+"_chapters.json")
	if err := o.assembler.WriteEpisode(final, audioPath); err != nil {
		return nil, err
	}
	if err := chapters.WriteFile(markers, chaptersPath); err != nil {
		// All-or-nothing: an episode without its chapter index is a
		// partial artifact.
		os.Remove(audioPath)
		return nil, err
	}

	o.logger.Info("episode assembled",
		slog.String("audio", audioPath),
		slog.Float64("duration_s", elapsed),
		slog.Int("chapters", len(markers)),
		slog.Int("warnings", len(warnings)))

	return &Result{
		AudioPath:    audioPath,
		ChaptersPath: chaptersPath,
		Chapters:     markers,
		Duration:     elapsed,
		Warnings:     warnings,
	}, nil
}

// renderSegment folds one segment into a single audio buffer and its
// measured duration. The returned warning, if any, records a degraded
// duration probe.
func (o *Orchestrator) renderSegment(ctx context.Context, arena *audio.Arena, seg script.Segment) ([]byte, float64, *Warning, error) {
	ctx, span := o.tracer.Start(ctx, "pipeline.segment",
		trace.WithAttributes(attribute.String("title", seg.Title)))
	defer span.End()

	requests := o.planSegment(seg)
	parts, err := o.synthesizeAll(ctx, requests)
	if err != nil {
		return nil, 0, nil, err
	}

	// Durations are summed from per-chunk probes: under the raw-append
	// fallback the folded buffer's own metadata cannot be trusted.
	var dur float64
	var degraded bool
	for _, part := range parts {
		d, err := o.assembler.Duration(ctx, part)
		if err != nil {
			if !errors.Is(err, audio.ErrProbeUnavailable) {
				return nil, 0, nil, err
			}
			degraded = true
			continue
		}
		dur += d
	}

	folded, err := o.assembler.Concat(ctx, arena, parts)
	if err != nil {
		return nil, 0, nil, err
	}

	var warn *Warning
	if degraded {
		warn = &Warning{
			Segment: seg.Title,
			Message: "duration probe unavailable; chapter timestamps after this segment are unreliable",
		}
		o.logger.Warn("duration probe degraded", slog.String("segment", seg.Title))
	}
	return folded, dur, warn, nil
}

// planSegment classifies a segment and expands it into ordered synthesis
// requests. Dialogue lines carry their speaker's profile; monologue
// chunks carry the narrator profile. Oversized unsplittable tokens are
// logged and sent through anyway.
func (o *Orchestrator) planSegment(seg script.Segment) []synth.Request {
	var requests []synth.Request
	push := func(text string, profile voice.Profile) {
		for _, chunk := range script.Chunk(text) {
			if script.Oversized(chunk) {
				o.logger.Warn("chunk exceeds provider byte ceiling",
					slog.String("segment", seg.Title),
					slog.Int("bytes", len(chunk)))
			}
			requests = append(requests, synth.Request{Text: chunk, Voice: profile})
		}
	}

	switch parsed := script.Parse(seg.Body, o.voices.Known).(type) {
	case script.Dialogue:
		for _, line := range parsed.Lines {
			push(line.Text, o.voices.Resolve(line.Speaker))
		}
	case script.Monologue:
		push(parsed.Text, o.voices.Default())
	}
	return requests
}

func validate(name string, segments []script.Segment) error {
	if strings.TrimSpace(name) == "" {
		return &ValidationError{Reason: "episode name must not be empty"}
	}
	if len(segments) == 0 {
		return &ValidationError{Reason: "no segments to synthesize"}
	}
	for _, seg := range segments {
		if strings.TrimSpace(seg.Body) == "" {
			return &ValidationError{Segment: seg.Title, Reason: "segment body is empty"}
		}
	}
	return nil
}
