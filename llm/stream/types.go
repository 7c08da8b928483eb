// ABOUTME: Data model for the streaming chat-completion decoder.
// ABOUTME: Defines Completion, FinishReason, Usage, ToolCall, and the raw chunk wire shapes.

package stream

import "encoding/json"

// FinishReason describes why a choice's completion reached its terminal state.
type FinishReason string

const (
	// FinishStop is an explicit server-side stop (stop, length, or any other
	// unrecognized explicit reason).
	FinishStop FinishReason = "stop"

	// FinishContentFilter means the provider's moderation layer cut the choice off.
	FinishContentFilter FinishReason = "content_filter"

	// FinishClientDone means the stream terminated with [DONE] before the
	// server sent an explicit reason for this choice.
	FinishClientDone FinishReason = "client_done"

	// FinishClientIterationDone means the stream ended without [DONE] and
	// without an explicit reason.
	FinishClientIterationDone FinishReason = "client_iteration_done"

	// FinishClientTrimmed means the caller's per-token callback requested
	// truncation of this choice.
	FinishClientTrimmed FinishReason = "client_trimmed"

	// FinishCanceled means cancellation was observed while this choice was
	// still streaming.
	FinishCanceled FinishReason = "canceled"
)

// Usage tracks token consumption reported by the provider for a request.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ToolCall is a fully resolved tool invocation extracted from a choice.
// Arguments is always valid JSON: fragments that never parse by end of stream
// degrade to an empty object.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Completion is the terminal snapshot of one choice index.
type Completion struct {
	Index        int             `json:"index"`
	Reason       FinishReason    `json:"reason"`
	Text         string          `json:"text"`
	ToolCalls    []ToolCall      `json:"tool_calls,omitempty"`
	Usage        *Usage          `json:"usage,omitempty"`
	FilterResult json.RawMessage `json:"filter_result,omitempty"`
	RequestID    string          `json:"request_id,omitempty"`
}

// chunk is one decoded SSE payload from an OpenAI-style completion stream.
type chunk struct {
	ID      string        `json:"id"`
	Choices []choiceChunk `json:"choices"`
	Usage   *Usage        `json:"usage"`
}

// choiceChunk carries the per-choice delta. Both the chat "delta" shape and
// the legacy completions "text" shape are accepted.
type choiceChunk struct {
	Index         int             `json:"index"`
	Delta         *deltaChunk     `json:"delta"`
	Text          string          `json:"text"`
	FinishReason  string          `json:"finish_reason"`
	FilterResults json.RawMessage `json:"content_filter_results"`
}

// deltaChunk is the incremental content for one choice. All fields are
// optional; reasoning arrives in one of two historical shapes (cot_* or
// reasoning_*) that are normalized downstream.
type deltaChunk struct {
	Content         *string         `json:"content"`
	ToolCalls       []toolCallChunk `json:"tool_calls"`
	FunctionCall    *functionChunk  `json:"function_call"`
	CotID           string          `json:"cot_id"`
	CotSummary      string          `json:"cot_summary"`
	ReasoningOpaque string          `json:"reasoning_opaque"`
	ReasoningText   string          `json:"reasoning_text"`
}

// toolCallChunk is an incremental tool-call fragment. The first fragment for a
// call carries the ID and name; later ones carry argument pieces.
type toolCallChunk struct {
	Index    *int          `json:"index"`
	ID       string        `json:"id"`
	Function functionChunk `json:"function"`
}

// functionChunk holds the name and argument fragment shared by the tool_calls
// and legacy function_call shapes.
type functionChunk struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}
