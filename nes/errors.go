// ABOUTME: Outcome classification for suggestion requests.
// ABOUTME: Distinguishes no-suggestions, cancellation, and real fetch failures.

package nes

import (
	"context"
	"errors"
	"fmt"

	"github.com/zugzugs/nextedit/llm"
)

// ErrNoSuggestions is the terminal outcome when the model proposed no change
// even after the expanded-window retry. It is a valid result, not a failure.
var ErrNoSuggestions = errors.New("no suggestions")

// FetchError wraps a network or provider failure from the completion backend.
// Edits already forwarded before the failure was detected stand; pending ones
// were discarded.
type FetchError struct {
	Cause error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("suggestion fetch failed: %v", e.Cause)
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}

// IsCanceled reports whether err represents cooperative cancellation rather
// than a real failure.
func IsCanceled(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var abort *llm.AbortError
	return errors.As(err, &abort)
}

// IsModelNotFound reports whether err indicates the requested model is
// unknown to the provider, which triggers the default-model substitution.
func IsModelNotFound(err error) bool {
	var nf *llm.NotFoundError
	return errors.As(err, &nf)
}
