package pipeline

import (
	"context"
	"sync"

	"github.com/castforge/castforge/internal/synth"
)

// synthesizeAll renders every request and returns the audio buffers in
// request order. With one worker the loop is strictly sequential; with
// more, a bounded pool runs requests concurrently and results land in
// indexed slots, so ordering never depends on completion order. The
// first failure cancels all in-flight work and aborts the segment.
func (o *Orchestrator) synthesizeAll(ctx context.Context, requests []synth.Request) ([][]byte, error) {
	if len(requests) == 0 {
		return nil, &ValidationError{Reason: "segment produced no synthesizable text"}
	}

	if o.opts.Workers <= 1 {
		parts := make([][]byte, len(requests))
		for i, req := range requests {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			part, err := o.synth.Synthesize(ctx, req)
			if err != nil {
				return nil, err
			}
			parts[i] = part
		}
		return parts, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type job struct {
		index int
		req   synth.Request
	}
	jobs := make(chan job)
	parts := make([][]byte, len(requests))

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	fail := func(err error) {
		errOnce.Do(func() {
			firstErr = err
			cancel()
		})
	}

	workers := o.opts.Workers
	if workers > len(requests) {
		workers = len(requests)
	}
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				part, err := o.synth.Synthesize(ctx, j.req)
				if err != nil {
					fail(err)
					return
				}
				parts[j.index] = part
			}
		}()
	}

feed:
	for i, req := range requests {
		select {
		case jobs <- job{index: i, req: req}:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return parts, nil
}
