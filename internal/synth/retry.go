package synth

import (
	"context"
	"errors"
	"time"
)

// RetryConfig bounds the retry decorator. Zero values fall back to the
// defaults from DefaultRetryConfig.
type RetryConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
	}
}

type retrySynth struct {
	inner Synthesizer
	cfg   RetryConfig
}

// WithRetry layers retry-with-backoff over a synthesizer. The wrapped
// synthesizer itself stays retry-free; only transient provider failures
// (rate limits, 5xx, transport faults) are repeated. Validation errors
// and client-side rejections surface immediately.
func WithRetry(inner Synthesizer, cfg RetryConfig) Synthesizer {
	def := DefaultRetryConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = def.MaxBackoff
	}
	return &retrySynth{inner: inner, cfg: cfg}
}

func (r *retrySynth) Synthesize(ctx context.Context, req Request) ([]byte, error) {
	backoff := r.cfg.InitialBackoff
	var lastErr error
	for attempt := 0; attempt < r.cfg.MaxAttempts; attempt++ {
		audio, err := r.inner.Synthesize(ctx, req)
		if err == nil {
			return audio, nil
		}
		lastErr = err

		var provErr *ProviderError
		if !errors.As(err, &provErr) || !provErr.retryable() {
			return nil, err
		}
		if attempt == r.cfg.MaxAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > r.cfg.MaxBackoff {
			backoff = r.cfg.MaxBackoff
		}
	}
	return nil, lastErr
}
