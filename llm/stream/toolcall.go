// ABOUTME: Per-index tool-call state machine for the streaming decoder.
// ABOUTME: Tracks Opening -> Accumulating -> Resolved phases and best-effort argument parsing.

package stream

import (
	"encoding/json"
	"strings"
)

type toolCallPhase int

const (
	toolOpening toolCallPhase = iota
	toolAccumulating
	toolResolved
)

// toolCallState accumulates one tool call identified by its own index within
// a choice. Argument fragments are concatenated; a speculative parse runs on
// every fragment so Resolved is entered the moment the buffer is valid JSON.
type toolCallState struct {
	phase toolCallPhase
	id    string
	name  string
	args  strings.Builder
}

func newToolCallState(id, name string) *toolCallState {
	return &toolCallState{phase: toolOpening, id: id, name: name}
}

// appendArgs adds an argument fragment and re-attempts the speculative parse.
// Failure is not an error; the state simply stays in Accumulating.
func (t *toolCallState) appendArgs(fragment string) {
	if fragment == "" {
		return
	}
	t.args.WriteString(fragment)
	t.phase = toolAccumulating
	if json.Valid([]byte(t.args.String())) {
		t.phase = toolResolved
	}
}

// resolve produces the final ToolCall. An argument buffer that never became
// valid JSON degrades to an empty object rather than failing the response.
func (t *toolCallState) resolve() ToolCall {
	raw := strings.TrimSpace(t.args.String())
	if raw == "" || !json.Valid([]byte(raw)) {
		raw = "{}"
	}
	t.phase = toolResolved
	return ToolCall{
		ID:        t.id,
		Name:      t.name,
		Arguments: json.RawMessage(raw),
	}
}
