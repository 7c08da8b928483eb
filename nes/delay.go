// ABOUTME: Delay shaping for suggestion requests: debounce before fetch, pacing before the first edit.
// ABOUTME: Both waits are context-aware and skipped entirely under simulation.

package nes

import (
	"context"
	"time"
)

// DelaySession supplies the two pacing durations for one suggestion request.
// The pipeline only consumes the durations; their policy lives elsewhere.
type DelaySession interface {
	// Debounce is awaited before the network request is issued.
	Debounce() time.Duration
	// ArtificialDelay is awaited before the first edit is forwarded.
	ArtificialDelay() time.Duration
}

// FixedDelaySession returns constant durations.
type FixedDelaySession struct {
	DebounceDelay time.Duration
	EmitDelay     time.Duration
}

func (s FixedDelaySession) Debounce() time.Duration {
	return s.DebounceDelay
}

func (s FixedDelaySession) ArtificialDelay() time.Duration {
	return s.EmitDelay
}

// wait suspends for d or until ctx is cancelled. A non-positive duration
// returns immediately.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
