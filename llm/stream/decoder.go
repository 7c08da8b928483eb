// ABOUTME: Streaming decoder that turns an OpenAI-style SSE completion stream into finished per-choice completions.
// ABOUTME: Handles sparse choice indices, truncation callbacks, usage attribution, and the cancellation usage-drop rule.

package stream

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/zugzugs/nextedit/llm/sse"
)

// TruncationFunc is invoked after every text delta with the full accumulated
// text so far, the choice index, and the delta that just arrived. Returning
// trim=true finalizes the choice immediately with its text cut to offset,
// measured in bytes and clamped back to a rune boundary.
type TruncationFunc func(accumulated string, index int, delta string) (offset int, trim bool)

// DeltaFunc observes each text delta as it is merged, before any truncation
// decision. Used by adapters to forward tokens to interactive consumers.
type DeltaFunc func(index int, delta string)

// Options configures a Decoder.
type Options struct {
	// ExpectedChoices is the request's n parameter. Informational; indices
	// beyond it are still accepted since providers may send sparse indices.
	ExpectedChoices int

	// RequestID is stamped onto every emitted Completion.
	RequestID string

	// OnToken, when set, is the caller's truncation callback.
	OnToken TruncationFunc

	// OnDelta, when set, observes text deltas without affecting decoding.
	OnDelta DeltaFunc

	// Reasoning, when set, receives cot_*/reasoning_* fragments. A nil store
	// means reasoning deltas are dropped.
	Reasoning *ReasoningStore
}

// choiceState is the mutable accumulator for one choice index. Created lazily
// on the first event referencing the index.
type choiceState struct {
	index       int
	text        strings.Builder
	toolCalls   map[int]*toolCallState
	toolOrder   []int
	firstToolID string
	resolved    []ToolCall
	reason      FinishReason
	finished    bool
	usage       *Usage
	filter      json.RawMessage
	trimmed     bool
	emitted     bool
}

// Decoder consumes one SSE completion stream and emits Completions as each
// choice reaches its terminal condition. A Decoder is single-use.
type Decoder struct {
	opts    Options
	err     error
	skipped int

	choices  map[int]*choiceState
	creation []int
	pending  []int // finished choices awaiting usage, in finish order
	doneSeen bool
}

// NewDecoder creates a decoder with the given options.
func NewDecoder(opts Options) *Decoder {
	return &Decoder{
		opts:    opts,
		choices: make(map[int]*choiceState),
	}
}

// Err returns the stream-level failure, if any, once the completion channel
// has closed. A clean [DONE] or EOF leaves it nil; cancellation leaves it nil
// as well (cancellation is reflected in completion reasons, not as a failure).
func (d *Decoder) Err() error {
	return d.err
}

// SkippedEvents reports how many malformed events were dropped. Malformed
// individual events never abort the stream.
func (d *Decoder) SkippedEvents() int {
	return d.skipped
}

// Decode reads the SSE body and returns a channel of finished completions.
// The channel closes when the stream is drained, fails, or ctx is cancelled.
// Order follows each choice's terminal condition, not index order.
func (d *Decoder) Decode(ctx context.Context, body io.Reader) <-chan Completion {
	out := make(chan Completion, 8)
	go d.run(ctx, body, out)
	return out
}

func (d *Decoder) run(ctx context.Context, body io.Reader, out chan<- Completion) {
	defer close(out)

	parser := sse.NewParser(body)

	for {
		select {
		case <-ctx.Done():
			d.flushCanceled(out)
			return
		default:
		}

		evt, err := parser.Next()
		if err != nil {
			if err == io.EOF {
				d.flushEndOfStream(out)
				return
			}
			if ctx.Err() != nil {
				// The read failed because the caller tore the connection
				// down; apply the cancellation bookkeeping, not a failure.
				d.flushCanceled(out)
				return
			}
			d.err = err
			return
		}

		if evt.Done() {
			d.doneSeen = true
			continue
		}

		d.handleEvent(evt.Data, out)
	}
}

// handleEvent merges one data payload into per-choice state.
func (d *Decoder) handleEvent(data string, out chan<- Completion) {
	var c chunk
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		d.skipped++
		return
	}

	if len(c.Choices) == 0 {
		if c.Usage != nil {
			d.attributeUsage(*c.Usage, out)
		}
		return
	}

	for _, ch := range c.Choices {
		d.mergeChoice(ch, out)
	}

	if c.Usage != nil {
		d.attributeUsage(*c.Usage, out)
	}
}

// attributeUsage assigns a top-level usage total to all currently open
// choices, emitting any that were finished and waiting on it. A choice that
// already went out (for example via truncation) never gets re-emitted with
// usage attached.
func (d *Decoder) attributeUsage(u Usage, out chan<- Completion) {
	for _, idx := range d.creation {
		st := d.choices[idx]
		if st.emitted {
			continue
		}
		usage := u
		st.usage = &usage
	}

	for _, idx := range d.pending {
		st := d.choices[idx]
		if !st.emitted {
			d.emit(st, out)
		}
	}
	d.pending = d.pending[:0]
}

func (d *Decoder) state(index int) *choiceState {
	st, ok := d.choices[index]
	if !ok {
		st = &choiceState{index: index, toolCalls: make(map[int]*toolCallState)}
		d.choices[index] = st
		d.creation = append(d.creation, index)
	}
	return st
}

// mergeChoice applies one choice delta. Events for trimmed or finished
// choices are still consumed to keep the read loop alive, but ignored.
func (d *Decoder) mergeChoice(ch choiceChunk, out chan<- Completion) {
	st := d.state(ch.Index)

	if len(ch.FilterResults) > 0 && st.filter == nil {
		st.filter = ch.FilterResults
	}

	if st.trimmed || st.finished {
		return
	}

	textDelta := ch.Text
	if ch.Delta != nil {
		if ch.Delta.Content != nil {
			textDelta += *ch.Delta.Content
		}
		d.mergeToolCalls(st, ch.Delta)
		d.mergeReasoning(st, ch.Delta)
	}

	if textDelta != "" {
		st.text.WriteString(textDelta)
		if d.opts.OnDelta != nil {
			d.opts.OnDelta(st.index, textDelta)
		}
		if d.opts.OnToken != nil {
			if offset, trim := d.opts.OnToken(st.text.String(), st.index, textDelta); trim {
				d.trim(st, offset, out)
				return
			}
		}
	}

	if ch.FinishReason != "" {
		d.finish(st, ch.FinishReason, out)
	}
}

func (d *Decoder) mergeToolCalls(st *choiceState, delta *deltaChunk) {
	for _, tc := range delta.ToolCalls {
		idx := 0
		if tc.Index != nil {
			idx = *tc.Index
		}
		d.mergeToolFragment(st, idx, tc.ID, tc.Function.Name, tc.Function.Arguments)
	}
	if delta.FunctionCall != nil {
		// Legacy single-call shape; always slot 0 and no server-assigned ID.
		d.mergeToolFragment(st, 0, "", delta.FunctionCall.Name, delta.FunctionCall.Arguments)
	}
}

func (d *Decoder) mergeToolFragment(st *choiceState, idx int, id, name, args string) {
	call, ok := st.toolCalls[idx]
	if !ok || name != "" {
		call = newToolCallState(id, name)
		if ok {
			// A fresh name on an existing slot restarts that slot.
			call.id = firstNonEmpty(id, st.toolCalls[idx].id)
		}
		st.toolCalls[idx] = call
		if !ok {
			st.toolOrder = append(st.toolOrder, idx)
		}
	}
	if call.id == "" && id != "" {
		call.id = id
	}
	if st.firstToolID == "" && call.id != "" {
		st.firstToolID = call.id
	}
	call.appendArgs(args)
}

func (d *Decoder) mergeReasoning(st *choiceState, delta *deltaChunk) {
	if d.opts.Reasoning == nil {
		return
	}
	if delta.CotID == "" && delta.CotSummary == "" && delta.ReasoningOpaque == "" && delta.ReasoningText == "" {
		return
	}
	d.opts.Reasoning.Update(st.index, *delta, st.firstToolID)
}

// finish handles an explicit finish_reason. tool_calls/function_call resolves
// the pending tool calls but is not itself a terminal text reason; the choice
// still finalizes on the end-of-stream path.
func (d *Decoder) finish(st *choiceState, raw string, out chan<- Completion) {
	switch raw {
	case "tool_calls", "function_call":
		st.resolved = d.resolveToolCalls(st)
		return
	case "content_filter":
		st.reason = FinishContentFilter
	default:
		st.reason = FinishStop
	}

	st.finished = true
	st.resolved = d.resolveToolCalls(st)

	if st.usage != nil {
		d.emit(st, out)
		return
	}
	d.pending = append(d.pending, st.index)
}

// trim finalizes a choice at the caller-requested byte offset. An offset
// inside a multi-byte rune backs up to the rune's start so the finalized text
// stays valid UTF-8. Emission is immediate; later events for the index are
// consumed but ignored.
func (d *Decoder) trim(st *choiceState, offset int, out chan<- Completion) {
	text := st.text.String()
	if offset < 0 {
		offset = 0
	}
	if offset > len(text) {
		offset = len(text)
	}
	for offset > 0 && offset < len(text) && !utf8.RuneStart(text[offset]) {
		offset--
	}
	st.text.Reset()
	st.text.WriteString(text[:offset])
	st.trimmed = true
	st.finished = true
	st.reason = FinishClientTrimmed
	st.resolved = d.resolveToolCalls(st)
	d.emit(st, out)
}

func (d *Decoder) resolveToolCalls(st *choiceState) []ToolCall {
	if len(st.toolOrder) == 0 {
		return st.resolved
	}
	calls := make([]ToolCall, 0, len(st.toolOrder))
	for _, idx := range st.toolOrder {
		calls = append(calls, st.toolCalls[idx].resolve())
	}
	return calls
}

// flushEndOfStream finalizes every unemitted choice after a clean end.
// Finished choices that were waiting on usage go first, in finish order.
func (d *Decoder) flushEndOfStream(out chan<- Completion) {
	for _, idx := range d.pending {
		st := d.choices[idx]
		if !st.emitted {
			d.emit(st, out)
		}
	}
	for _, idx := range d.creation {
		st := d.choices[idx]
		if st.emitted {
			continue
		}
		if d.doneSeen {
			st.reason = FinishClientDone
		} else {
			st.reason = FinishClientIterationDone
		}
		st.finished = true
		st.resolved = d.resolveToolCalls(st)
		d.emit(st, out)
	}
}

// flushCanceled applies the cancellation rule: a choice whose usage never
// arrived is dropped entirely rather than emitted with an unreliable usage
// field. Choices that picked up usage before the cancel are emitted, with
// reason Canceled if they had not yet finished.
func (d *Decoder) flushCanceled(out chan<- Completion) {
	for _, idx := range d.creation {
		st := d.choices[idx]
		if st.emitted || st.usage == nil {
			continue
		}
		if !st.finished {
			st.reason = FinishCanceled
			st.finished = true
			st.resolved = d.resolveToolCalls(st)
		}
		d.emit(st, out)
	}
}

func (d *Decoder) emit(st *choiceState, out chan<- Completion) {
	if st.emitted {
		return
	}
	st.emitted = true
	out <- Completion{
		Index:        st.index,
		Reason:       st.reason,
		Text:         st.text.String(),
		ToolCalls:    st.resolved,
		Usage:        st.usage,
		FilterResult: st.filter,
		RequestID:    d.opts.RequestID,
	}
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
