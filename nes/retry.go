// ABOUTME: Retry policy for suggestion requests: one expanded-window retry on empty results.
// ABOUTME: Also owns the one-shot default-model substitution for unknown-model failures.

package nes

// RetryState describes where a suggestion request sits in its retry lifecycle.
type RetryState int

const (
	// NotRetrying is the initial state.
	NotRetrying RetryState = iota
	// RetryingWithExpandedWindow is terminal; there is never a second retry.
	RetryingWithExpandedWindow
)

// RetryController tracks the single permitted expanded-window retry and the
// orthogonal one-shot default-model fallback. It is scoped to one logical
// suggestion request and is not safe for concurrent use.
type RetryController struct {
	state           RetryState
	expandedEnabled bool
	usedDefault     bool
}

// NewRetryController builds a controller. expandedEnabled gates the
// zero-edit expanded-window retry.
func NewRetryController(expandedEnabled bool) *RetryController {
	return &RetryController{expandedEnabled: expandedEnabled}
}

// State returns the current retry state.
func (c *RetryController) State() RetryState {
	return c.state
}

// Expanded reports whether window planning should apply the retry expansion.
func (c *RetryController) Expanded() bool {
	return c.state == RetryingWithExpandedWindow
}

// RetryEmpty is called when a full response produced zero edits. It returns
// true and transitions to the expanded-window state exactly once; any later
// zero-edit outcome reports false, meaning no suggestions is the final answer.
func (c *RetryController) RetryEmpty() bool {
	if !c.expandedEnabled || c.state != NotRetrying {
		return false
	}
	c.state = RetryingWithExpandedWindow
	return true
}

// SubstituteDefaultModel is called when the provider rejected the model as
// unknown. It returns true exactly once; the flag is independent of the
// retry state so a model substitution does not consume the window retry.
func (c *RetryController) SubstituteDefaultModel() bool {
	if c.usedDefault {
		return false
	}
	c.usedDefault = true
	return true
}
