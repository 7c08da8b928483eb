// ABOUTME: Aggregator for fragmented reasoning/chain-of-thought deltas in completion streams.
// ABOUTME: Merges cot_* and reasoning_* shaped fragments into records addressable by tool-call ID.

package stream

import "sync"

// reasoningShape records which of the two historical payload shapes populated
// a record. The first-seen shape wins for the record's lifetime.
type reasoningShape int

const (
	shapeUnset reasoningShape = iota
	shapeCot
	shapeReasoning
)

// ReasoningRecord is the merged reasoning state for one choice. ID is the
// opaque token some providers require echoed back on follow-up requests;
// Text is the human-readable summary when one is streamed.
type ReasoningRecord struct {
	ChoiceIndex int
	ToolCallID  string
	ID          string
	Text        string
}

// ReasoningStore collects reasoning fragments keyed by choice index during a
// stream, then re-keys them by tool-call ID so they survive past the stream's
// end (choice indices are meaningless across requests; the tool-call ID is
// the only durable lookup key).
type ReasoningStore struct {
	mu         sync.Mutex
	byChoice   map[int]*ReasoningRecord
	shapes     map[int]reasoningShape
	byToolCall map[string]*ReasoningRecord
}

// NewReasoningStore creates an empty store.
func NewReasoningStore() *ReasoningStore {
	return &ReasoningStore{
		byChoice:   make(map[int]*ReasoningRecord),
		shapes:     make(map[int]reasoningShape),
		byToolCall: make(map[string]*ReasoningRecord),
	}
}

// Update merges one reasoning-bearing delta for the given choice index.
// Text fields concatenate; id fields are set once (first non-empty wins).
// Once toolCallID is known the record becomes addressable by it, whether the
// id arrives before or after the text.
func (s *ReasoningStore) Update(choiceIndex int, delta deltaChunk, toolCallID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.byChoice[choiceIndex]
	if rec == nil {
		rec = &ReasoningRecord{ChoiceIndex: choiceIndex}
		s.byChoice[choiceIndex] = rec
	}

	shape := s.shapes[choiceIndex]
	id, text := "", ""
	switch {
	case shape == shapeCot || (shape == shapeUnset && (delta.CotID != "" || delta.CotSummary != "")):
		s.shapes[choiceIndex] = shapeCot
		id, text = delta.CotID, delta.CotSummary
	case shape == shapeReasoning || (shape == shapeUnset && (delta.ReasoningOpaque != "" || delta.ReasoningText != "")):
		s.shapes[choiceIndex] = shapeReasoning
		id, text = delta.ReasoningOpaque, delta.ReasoningText
	default:
		return
	}

	if rec.ID == "" && id != "" {
		rec.ID = id
	}
	rec.Text += text

	if toolCallID != "" && rec.ToolCallID == "" {
		rec.ToolCallID = toolCallID
		s.byToolCall[toolCallID] = rec
	}
}

// Peek returns a snapshot of the record for the given tool-call ID without
// removing anything.
func (s *ReasoningStore) Peek(toolCallID string) (ReasoningRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byToolCall[toolCallID]
	if !ok {
		return ReasoningRecord{}, false
	}
	return *rec, true
}

// Consume returns a snapshot of the record for the given tool-call ID and
// removes its choice-index linkage so a later Update for a stale index cannot
// double-count into it.
func (s *ReasoningStore) Consume(toolCallID string) (ReasoningRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byToolCall[toolCallID]
	if !ok {
		return ReasoningRecord{}, false
	}
	delete(s.byChoice, rec.ChoiceIndex)
	delete(s.shapes, rec.ChoiceIndex)
	delete(s.byToolCall, toolCallID)
	return *rec, true
}
