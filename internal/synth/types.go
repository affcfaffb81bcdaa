package synth

import (
	"context"
	"errors"
	"fmt"

	"github.com/castforge/castforge/internal/voice"
)

// ErrEmptyText is returned when a request carries no text to render.
var ErrEmptyText = errors.New("synthesis request has empty text")

// Request contains one chunk of text and the voice to render it with.
// Callers are responsible for keeping Text within script.MaxChunkBytes;
// the synthesizer performs no chunking of its own.
type Request struct {
	Text  string
	Voice voice.Profile
}

// Synthesizer renders one text fragment to encoded audio bytes. It never
// retries internally; retry policy belongs to the caller.
type Synthesizer interface {
	Synthesize(ctx context.Context, req Request) ([]byte, error)
}

// ProviderError is a failure reported by the external synthesis
// provider: auth, quota, malformed input, or transport faults.
type ProviderError struct {
	Provider string
	Status   int // HTTP status or process exit code, 0 when unknown
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s synthesis failed (status %d): %v", e.Provider, e.Status, e.Err)
	}
	return fmt.Sprintf("%s synthesis failed: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// retryable reports whether a provider failure is worth repeating:
// rate limits, server-side faults, and transport errors without a
// status code.
func (e *ProviderError) retryable() bool {
	return e.Status == 0 || e.Status == 429 || e.Status >= 500
}
