package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/castforge/castforge/internal/audio"
	"github.com/castforge/castforge/internal/script"
	"github.com/castforge/castforge/internal/synth"
	"github.com/castforge/castforge/internal/voice"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testRegistry(t *testing.T) *voice.Registry {
	t.Helper()
	reg, err := voice.NewRegistry(map[string]voice.Profile{
		"narrator": {LanguageCode: "en-US", VoiceName: "en-US-Neural2-J", SpeakingRate: 1.0, Pitch: 0.0},
		"Chloe":    {LanguageCode: "en-US", VoiceName: "en-US-Neural2-F", SpeakingRate: 1.0, Pitch: 2.0},
		"David":    {LanguageCode: "en-US", VoiceName: "en-US-Neural2-D", SpeakingRate: 1.0, Pitch: -2.0},
	})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return reg
}

// scriptedSynth renders fixed durations of silence per text, recording
// the requests it sees.
type scriptedSynth struct {
	mu        sync.Mutex
	durations map[string]float64 // text -> seconds; missing texts get 1s
	failOn    string             // text that triggers a provider error
	calls     int
	requests  []synth.Request
}

func (s *scriptedSynth) Synthesize(ctx context.Context, req synth.Request) ([]byte, error) {
	s.mu.Lock()
	s.calls++
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.failOn != "" && req.Text == s.failOn {
		return nil, &synth.ProviderError{Provider: "scripted", Status: 500, Err: errors.New("boom")}
	}
	seconds := 1.0
	if s.durations != nil {
		if d, ok := s.durations[req.Text]; ok {
			seconds = d
		}
	}
	return synth.SilentWAV(seconds, 22050), nil
}

func newTestOrchestrator(t *testing.T, s synth.Synthesizer, workers int) (*Orchestrator, string, string) {
	t.Helper()
	outDir := t.TempDir()
	scratch := t.TempDir()
	asm, err := audio.NewAssembler("", "wav", audio.NewProber(""), newLogger())
	if err != nil {
		t.Fatalf("assembler: %v", err)
	}
	o := New(testRegistry(t), s, asm, Options{
		Workers:    workers,
		OutputDir:  outDir,
		ScratchDir: scratch,
	}, newLogger())
	return o, outDir, scratch
}

func TestChapterOffsetsAreRunningSums(t *testing.T) {
	s := &scriptedSynth{durations: map[string]float64{
		"First segment.":  10.0,
		"Second segment.": 25.5,
		"Third segment.":  4.0,
	}}
	o, _, _ := newTestOrchestrator(t, s, 1)

	res, err := o.SynthesizeEpisode(context.Background(), "ep1", []script.Segment{
		{Title: "Intro", Body: "First segment."},
		{Title: "Story 1", Body: "Second segment."},
		{Title: "Outro", Body: "Third segment."},
	})
	if err != nil {
		t.Fatalf("synthesize episode: %v", err)
	}
	if len(res.Chapters) != 3 {
		t.Fatalf("expected 3 chapters, got %d", len(res.Chapters))
	}
	wantStarts := []float64{0.0, 10.0, 35.5}
	wantTitles := []string{"Intro", "Story 1", "Outro"}
	for i, ch := range res.Chapters {
		if ch.Title != wantTitles[i] {
			t.Fatalf("chapter %d title %q, want %q", i, ch.Title, wantTitles[i])
		}
		if diff := ch.StartTime - wantStarts[i]; diff < -0.01 || diff > 0.01 {
			t.Fatalf("chapter %d start %f, want %f", i, ch.StartTime, wantStarts[i])
		}
	}
	if diff := res.Duration - 39.5; diff < -0.01 || diff > 0.01 {
		t.Fatalf("total duration %f, want 39.5", res.Duration)
	}
}

func TestDialogueRoutesDistinctVoices(t *testing.T) {
	s := &scriptedSynth{}
	o, _, _ := newTestOrchestrator(t, s, 1)

	res, err := o.SynthesizeEpisode(context.Background(), "ep2", []script.Segment{
		{Title: "Intro", Body: "Hello. Welcome."},
		{Title: "Story 1", Body: "Chloe: Hi there. David: Good morning."},
	})
	if err != nil {
		t.Fatalf("synthesize episode: %v", err)
	}
	if len(res.Chapters) != 2 {
		t.Fatalf("expected 2 chapters, got %d", len(res.Chapters))
	}
	if res.Chapters[1].StartTime <= 0 {
		t.Fatal("second chapter must start after the intro's measured duration")
	}

	// Intro: one monologue chunk with the narrator voice. Story: two
	// dialogue lines with two distinct profiles.
	if len(s.requests) != 3 {
		t.Fatalf("expected 3 synthesis requests, got %d", len(s.requests))
	}
	if s.requests[0].Voice.VoiceName != "en-US-Neural2-J" {
		t.Fatalf("intro should use narrator voice, got %q", s.requests[0].Voice.VoiceName)
	}
	chloe, david := s.requests[1].Voice, s.requests[2].Voice
	if chloe.VoiceName == david.VoiceName && chloe.Pitch == david.Pitch {
		t.Fatal("dialogue speakers must resolve to audibly distinct profiles")
	}
	if s.requests[1].Text != "Hi there." || s.requests[2].Text != "Good morning." {
		t.Fatalf("unexpected dialogue texts: %q / %q", s.requests[1].Text, s.requests[2].Text)
	}
}

func TestFailFastLeavesNoTempFiles(t *testing.T) {
	// Five dialogue turns; the second one fails.
	body := "Chloe: Alpha.\nDavid: Beta.\nChloe: Gamma.\nDavid: Delta.\nChloe: Epsilon."
	s := &scriptedSynth{failOn: "Beta."}
	o, outDir, scratch := newTestOrchestrator(t, s, 1)

	_, err := o.SynthesizeEpisode(context.Background(), "ep3", []script.Segment{
		{Title: "Doomed", Body: body},
	})
	var provErr *synth.ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("expected provider error, got %v", err)
	}
	if s.calls != 2 {
		t.Fatalf("expected fail-fast after the second chunk, got %d calls", s.calls)
	}

	for _, dir := range []string{outDir, scratch} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			t.Fatalf("read dir: %v", err)
		}
		if len(entries) != 0 {
			t.Fatalf("expected %s empty after failed run, found %d entries", dir, len(entries))
		}
	}
}

func TestConcurrentWorkersPreserveChunkOrder(t *testing.T) {
	// Many single-sentence chunks; with 4 workers completion order is
	// arbitrary but output order must match request order.
	s := &scriptedSynth{durations: map[string]float64{}}
	o, _, _ := newTestOrchestrator(t, s, 4)

	reqs := make([]synth.Request, 20)
	narrator := testRegistry(t).Default()
	for i := range reqs {
		reqs[i] = synth.Request{Text: string(rune('a'+i)) + ".", Voice: narrator}
	}
	parts, err := o.synthesizeAll(context.Background(), reqs)
	if err != nil {
		t.Fatalf("synthesizeAll: %v", err)
	}
	if len(parts) != len(reqs) {
		t.Fatalf("expected %d parts, got %d", len(reqs), len(parts))
	}
	for i, p := range parts {
		if len(p) == 0 {
			t.Fatalf("slot %d empty: results not re-sorted by index", i)
		}
	}
}

func TestConcurrentFailureCancelsSegment(t *testing.T) {
	s := &scriptedSynth{failOn: "f."}
	o, _, scratch := newTestOrchestrator(t, s, 4)

	narrator := testRegistry(t).Default()
	reqs := make([]synth.Request, 12)
	for i := range reqs {
		reqs[i] = synth.Request{Text: string(rune('a'+i)) + ".", Voice: narrator}
	}
	if _, err := o.synthesizeAll(context.Background(), reqs); err == nil {
		t.Fatal("expected failure to propagate")
	}
	entries, err := os.ReadDir(scratch)
	if err != nil {
		t.Fatalf("read scratch: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("scratch dir not empty after failure")
	}
}

func TestValidationBeforeSynthesis(t *testing.T) {
	s := &scriptedSynth{}
	o, _, _ := newTestOrchestrator(t, s, 1)

	cases := []struct {
		name     string
		episode  string
		segments []script.Segment
	}{
		{"empty body", "ep", []script.Segment{{Title: "Intro", Body: "   \n "}}},
		{"no segments", "ep", nil},
		{"empty name", "", []script.Segment{{Title: "Intro", Body: "Hello."}}},
	}
	for _, tc := range cases {
		_, err := o.SynthesizeEpisode(context.Background(), tc.episode, tc.segments)
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("%s: expected ValidationError, got %v", tc.name, err)
		}
	}
	if s.calls != 0 {
		t.Fatalf("validation must reject before any synthesis call, got %d calls", s.calls)
	}
}

func TestArtifactsWrittenAtomically(t *testing.T) {
	s := &scriptedSynth{}
	o, outDir, _ := newTestOrchestrator(t, s, 1)

	res, err := o.SynthesizeEpisode(context.Background(), "ep4", []script.Segment{
		{Title: "Intro", Body: "Hello there."},
	})
	if err != nil {
		t.Fatalf("synthesize episode: %v", err)
	}
	if filepath.Dir(res.AudioPath) != outDir {
		t.Fatalf("audio written outside output dir: %s", res.AudioPath)
	}
	if _, err := os.Stat(res.AudioPath); err != nil {
		t.Fatalf("audio artifact missing: %v", err)
	}
	if _, err := os.Stat(res.ChaptersPath); err != nil {
		t.Fatalf("chapters artifact missing: %v", err)
	}
	entries, err := os.ReadDir(outDir)
	if err != nil {
		t.Fatalf("read out dir: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected exactly audio + chapters, found %d entries", len(entries))
	}
}

func TestProbeDegradationSurfacesWarning(t *testing.T) {
	// mp3 frames that no configured prober understands.
	raw := &opaqueSynth{}
	o, _, _ := newTestOrchestrator(t, raw, 1)

	res, err := o.SynthesizeEpisode(context.Background(), "ep5", []script.Segment{
		{Title: "Intro", Body: "Hello."},
	})
	if err != nil {
		t.Fatalf("synthesize episode: %v", err)
	}
	if len(res.Warnings) != 1 {
		t.Fatalf("expected 1 probe warning, got %+v", res.Warnings)
	}
	if res.Chapters[0].StartTime != 0 {
		t.Fatalf("first chapter must still start at 0, got %f", res.Chapters[0].StartTime)
	}
}

type opaqueSynth struct{}

func (opaqueSynth) Synthesize(ctx context.Context, req synth.Request) ([]byte, error) {
	return []byte("opaque-frames-" + req.Text), nil
}
