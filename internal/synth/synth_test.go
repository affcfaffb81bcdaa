package synth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/castforge/castforge/internal/voice"
)

var testVoice = voice.Profile{
	LanguageCode: "en-US",
	VoiceName:    "en-US-Neural2-J",
	SpeakingRate: 1.0,
	Pitch:        0.0,
}

func TestMockSynthRejectsEmptyText(t *testing.T) {
	s := NewMockSynth(22050)
	if _, err := s.Synthesize(context.Background(), Request{Voice: testVoice}); !errors.Is(err, ErrEmptyText) {
		t.Fatalf("expected ErrEmptyText, got %v", err)
	}
}

func TestMockSynthDurationTracksTextLength(t *testing.T) {
	s := NewMockSynth(22050)
	short, err := s.Synthesize(context.Background(), Request{Text: "Hi.", Voice: testVoice})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	long, err := s.Synthesize(context.Background(), Request{Text: "A considerably longer piece of narration text.", Voice: testVoice})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(long) <= len(short) {
		t.Fatalf("expected longer text to produce more audio: %d vs %d", len(long), len(short))
	}
	if string(short[0:4]) != "RIFF" || string(short[8:12]) != "WAVE" {
		t.Fatal("mock output is not a WAV container")
	}
}

func TestGoogleSynth(t *testing.T) {
	audio := []byte("fake-mp3-frames")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/text:synthesize" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "test-key" {
			t.Errorf("missing api key")
		}
		var req googleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Input.Text != "Hello." || req.Voice.Name != "en-US-Neural2-J" {
			t.Errorf("unexpected request payload: %+v", req)
		}
		_ = json.NewEncoder(w).Encode(googleResponse{
			AudioContent: base64.StdEncoding.EncodeToString(audio),
		})
	}))
	defer srv.Close()

	s, err := NewGoogleSynth(srv.URL, "test-key", "MP3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := s.Synthesize(context.Background(), Request{Text: "Hello.", Voice: testVoice})
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if string(got) != string(audio) {
		t.Fatalf("unexpected audio bytes: %q", got)
	}
}

func TestGoogleSynthProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	s, err := NewGoogleSynth(srv.URL, "test-key", "MP3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err = s.Synthesize(context.Background(), Request{Text: "Hello.", Voice: testVoice})
	var provErr *ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if provErr.Status != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d", provErr.Status)
	}
}

type flakySynth struct {
	failures int
	calls    int
	err      error
}

func (f *flakySynth) Synthesize(ctx context.Context, req Request) ([]byte, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, f.err
	}
	return []byte("ok"), nil
}

func TestWithRetryRecoversTransientFailure(t *testing.T) {
	inner := &flakySynth{failures: 2, err: &ProviderError{Provider: "test", Status: 503, Err: errors.New("unavailable")}}
	s := WithRetry(inner, RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond})
	if _, err := s.Synthesize(context.Background(), Request{Text: "x", Voice: testVoice}); err != nil {
		t.Fatalf("expected recovery, got %v", err)
	}
	if inner.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", inner.calls)
	}
}

func TestWithRetryDoesNotRepeatClientErrors(t *testing.T) {
	inner := &flakySynth{failures: 5, err: &ProviderError{Provider: "test", Status: 400, Err: errors.New("bad input")}}
	s := WithRetry(inner, RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond})
	if _, err := s.Synthesize(context.Background(), Request{Text: "x", Voice: testVoice}); err == nil {
		t.Fatal("expected error")
	}
	if inner.calls != 1 {
		t.Fatalf("client error must not be retried, got %d calls", inner.calls)
	}
}
