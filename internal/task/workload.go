package task

import (
	"context"
	"hash/fnv"
	"math/rand"
	"time"
)

// ProgressFunc receives advisory percent-complete updates during execution.
// Progress never influences the terminal outcome of a task.
type ProgressFunc func(percent float64)

// Workload is the pluggable unit of computation a worker executes.
// The payload is the opaque blob the submitter provided; implementations
// define their own typed view of it. Execute returns either a result or an
// error, never both.
type Workload interface {
	Execute(ctx context.Context, payload []byte, progress ProgressFunc) (int64, error)
}

// WorkloadFunc adapts a plain function to the Workload interface.
type WorkloadFunc func(ctx context.Context, payload []byte, progress ProgressFunc) (int64, error)

// Execute calls the wrapped function.
func (f WorkloadFunc) Execute(ctx context.Context, payload []byte, progress ProgressFunc) (int64, error) {
	return f(ctx, payload, progress)
}

// sumUpperBound is the range the placeholder computation sums over.
const sumUpperBound = 1_000_000

// payloadOffsetModulus bounds the payload-derived contribution to the result.
const payloadOffsetModulus = 1000

// SumWorkload is the placeholder computation: it sleeps for a duration in
// [MinDuration, MaxDuration] in one-second steps, reporting progress after
// each step, then returns the sum of integers below sumUpperBound plus a
// payload-derived offset. It stands in for real work such as ML inference
// or data processing.
type SumWorkload struct {
	MinDuration time.Duration
	MaxDuration time.Duration
}

// NewSumWorkload creates the placeholder workload with the given duration range.
func NewSumWorkload(minDuration, maxDuration time.Duration) *SumWorkload {
	if maxDuration < minDuration {
		maxDuration = minDuration
	}
	return &SumWorkload{
		MinDuration: minDuration,
		MaxDuration: maxDuration,
	}
}

// Execute runs the simulated computation. It honors context cancellation
// between sleep steps so a per-attempt timeout interrupts it promptly.
func (w *SumWorkload) Execute(ctx context.Context, payload []byte, progress ProgressFunc) (int64, error) {
	total := w.MinDuration
	if spread := w.MaxDuration - w.MinDuration; spread > 0 {
		total += time.Duration(rand.Int63n(int64(spread)))
	}

	elapsed := time.Duration(0)
	for elapsed < total {
		step := time.Second
		if remaining := total - elapsed; remaining < step {
			step = remaining
		}

		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(step):
		}

		elapsed += step
		if progress != nil {
			progress(float64(elapsed) / float64(total) * 100)
		}
	}

	var result int64
	for i := int64(0); i < sumUpperBound; i++ {
		result += i
	}

	if len(payload) > 0 {
		result += payloadOffset(payload)
	}

	return result, nil
}

// payloadOffset derives a small deterministic offset from the payload so
// distinct inputs produce distinct results.
func payloadOffset(payload []byte) int64 {
	h := fnv.New64a()
	_, _ = h.Write(payload)
	return int64(h.Sum64() % payloadOffsetModulus)
}
