// ABOUTME: OpenAI-compatible Chat Completions adapter speaking raw HTTP and SSE.
// ABOUTME: Streams through the stream.Decoder so gateways outside the official SDK's reach get full delta handling.

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/google/uuid"

	"github.com/zugzugs/nextedit/llm/stream"
)

const chatCompatDefaultBaseURL = "https://api.openai.com/v1"

// ChatCompatAdapter implements ProviderAdapter against the /chat/completions
// wire protocol directly. Unlike the SDK-backed adapter, it supports custom
// base URLs for OpenAI-compatible services and surfaces the full per-choice
// semantics of the decoder (multi-choice, truncation, usage attribution).
type ChatCompatAdapter struct {
	*BaseAdapter
	defaultModel string
	// Reasoning, when set, collects reasoning fragments from streams for
	// later re-attachment to follow-up requests.
	Reasoning *stream.ReasoningStore
}

// ChatCompatOption is a functional option for configuring a ChatCompatAdapter.
type ChatCompatOption func(*ChatCompatAdapter)

// WithChatCompatBaseURL overrides the default API base URL.
func WithChatCompatBaseURL(url string) ChatCompatOption {
	return func(a *ChatCompatAdapter) {
		a.BaseURL = url
	}
}

// WithChatCompatModel sets the model used when a request does not name one.
func WithChatCompatModel(model string) ChatCompatOption {
	return func(a *ChatCompatAdapter) {
		a.defaultModel = model
	}
}

// WithChatCompatTimeout sets custom timeout values for the adapter.
func WithChatCompatTimeout(timeout AdapterTimeout) ChatCompatOption {
	return func(a *ChatCompatAdapter) {
		a.Timeout = timeout
		a.HTTPClient = &http.Client{Timeout: timeout.Request}
	}
}

// WithChatCompatReasoningStore attaches a reasoning store to the adapter.
func WithChatCompatReasoningStore(store *stream.ReasoningStore) ChatCompatOption {
	return func(a *ChatCompatAdapter) {
		a.Reasoning = store
	}
}

// NewChatCompatAdapter creates a ChatCompatAdapter with the given API key and options.
func NewChatCompatAdapter(apiKey string, opts ...ChatCompatOption) *ChatCompatAdapter {
	adapter := &ChatCompatAdapter{
		BaseAdapter: NewBaseAdapter(apiKey, chatCompatDefaultBaseURL, DefaultAdapterTimeout()),
	}
	for _, opt := range opts {
		opt(adapter)
	}
	return adapter
}

// Name returns the provider name "chat-compat".
func (a *ChatCompatAdapter) Name() string {
	return "chat-compat"
}

// Close releases any resources held by the adapter.
func (a *ChatCompatAdapter) Close() error {
	return nil
}

// Complete sends a non-streaming chat completion request.
func (a *ChatCompatAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	body := a.buildRequestBody(req, false)

	resp, err := a.DoRequest(ctx, http.MethodPost, "/chat/completions", body, req.ExtraHeaders)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, a.parseError(resp.StatusCode, respBody)
	}

	return a.parseResponse(respBody, resp.Header)
}

// Stream sends a streaming chat completion request. The SSE body is decoded by
// stream.Decoder; text deltas are forwarded as they arrive and each choice's
// terminal state becomes a StreamFinish event.
func (a *ChatCompatAdapter) Stream(ctx context.Context, req Request) (<-chan StreamEvent, error) {
	body := a.buildRequestBody(req, true)

	resp, err := a.DoRequest(ctx, http.MethodPost, "/chat/completions", body, req.ExtraHeaders)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		respBody, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return nil, fmt.Errorf("reading error response body: %w", readErr)
		}
		return nil, a.parseError(resp.StatusCode, respBody)
	}

	expected := 1
	if req.N != nil {
		expected = *req.N
	}

	ch := make(chan StreamEvent, 64)

	decoder := stream.NewDecoder(stream.Options{
		ExpectedChoices: expected,
		RequestID:       uuid.NewString(),
		Reasoning:       a.Reasoning,
		OnDelta: func(index int, delta string) {
			ch <- StreamEvent{
				Type:        StreamTextDelta,
				ChoiceIndex: index,
				Delta:       delta,
			}
		},
	})

	go a.forwardStream(resp.Body, decoder, decoder.Decode(ctx, resp.Body), ch)

	return ch, nil
}

// forwardStream drains the decoder's completion channel into StreamEvents.
func (a *ChatCompatAdapter) forwardStream(body io.ReadCloser, decoder *stream.Decoder, completions <-chan stream.Completion, ch chan<- StreamEvent) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Warning: panic recovered in chat-compat stream: %v\n", r)
			ch <- StreamEvent{
				Type:  StreamErrorEvt,
				Error: fmt.Errorf("panic in stream processing: %v", r),
			}
		}
		close(ch)
	}()
	defer body.Close()

	ch <- StreamEvent{Type: StreamStart}

	for completion := range completions {
		for _, tc := range completion.ToolCalls {
			id := tc.ID
			if id == "" {
				// Some gateways omit tool call IDs on the wire
				id = GenerateCallID()
			}
			ch <- StreamEvent{
				Type:        StreamToolEnd,
				ChoiceIndex: completion.Index,
				ToolCall: &ToolCall{
					ID:        id,
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			}
		}

		finish := mapStreamReason(completion.Reason)
		evt := StreamEvent{
			Type:         StreamFinish,
			ChoiceIndex:  completion.Index,
			FinishReason: &finish,
			FilterResult: completion.FilterResult,
		}
		if completion.Usage != nil {
			evt.Usage = &Usage{
				InputTokens:  completion.Usage.PromptTokens,
				OutputTokens: completion.Usage.CompletionTokens,
				TotalTokens:  completion.Usage.TotalTokens,
			}
		}
		ch <- evt
	}

	if err := decoder.Err(); err != nil {
		ch <- StreamEvent{
			Type: StreamErrorEvt,
			Error: &StreamError{
				SDKError: SDKError{Message: "chat completion stream failed", Cause: err},
			},
		}
	}
}

// mapStreamReason converts a decoder finish reason to the unified FinishReason.
func mapStreamReason(reason stream.FinishReason) FinishReason {
	var unified string
	switch reason {
	case stream.FinishStop, stream.FinishClientDone, stream.FinishClientIterationDone:
		unified = FinishStop
	case stream.FinishContentFilter:
		unified = FinishContentFilter
	case stream.FinishClientTrimmed, stream.FinishCanceled:
		unified = FinishOther
	default:
		unified = FinishOther
	}
	return FinishReason{Reason: unified, Raw: string(reason)}
}

// buildRequestBody translates a unified Request into a chat completions body.
func (a *ChatCompatAdapter) buildRequestBody(req Request, streaming bool) map[string]any {
	model := req.Model
	if model == "" {
		model = a.defaultModel
	}

	body := map[string]any{
		"model":    model,
		"messages": a.translateMessages(req.Messages),
	}

	if req.MaxTokens != nil {
		body["max_completion_tokens"] = *req.MaxTokens
	}
	if req.Temperature != nil {
		body["temperature"] = *req.Temperature
	}
	if req.TopP != nil {
		body["top_p"] = *req.TopP
	}
	if req.N != nil {
		body["n"] = *req.N
	}
	if len(req.StopSequences) > 0 {
		body["stop"] = req.StopSequences
	}

	if len(req.Tools) > 0 {
		tools := make([]map[string]any, 0, len(req.Tools))
		for _, tool := range req.Tools {
			tools = append(tools, map[string]any{
				"type": "function",
				"function": map[string]any{
					"name":        tool.Name,
					"description": tool.Description,
					"parameters":  tool.Parameters,
				},
			})
		}
		body["tools"] = tools
	}

	if streaming {
		body["stream"] = true
		body["stream_options"] = map[string]any{"include_usage": true}
	}

	return body
}

// translateMessages converts unified messages to the chat completions format.
func (a *ChatCompatAdapter) translateMessages(messages []Message) []map[string]any {
	result := make([]map[string]any, 0, len(messages))

	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem, RoleDeveloper:
			result = append(result, map[string]any{
				"role":    "system",
				"content": msg.TextContent(),
			})

		case RoleUser:
			result = append(result, map[string]any{
				"role":    "user",
				"content": msg.TextContent(),
			})

		case RoleAssistant:
			m := map[string]any{"role": "assistant"}
			if text := msg.TextContent(); text != "" {
				m["content"] = text
			}
			calls := msg.ToolCalls()
			if len(calls) > 0 {
				wire := make([]map[string]any, 0, len(calls))
				for _, call := range calls {
					wire = append(wire, map[string]any{
						"id":   call.ID,
						"type": "function",
						"function": map[string]any{
							"name":      call.Name,
							"arguments": string(call.Arguments),
						},
					})
				}
				m["tool_calls"] = wire
			}
			if opaque := a.reasoningToken(msg, calls); opaque != "" {
				m["reasoning_opaque"] = opaque
			}
			result = append(result, m)

		case RoleTool:
			for _, part := range msg.Content {
				if part.Kind == ContentToolResult && part.ToolResult != nil {
					result = append(result, map[string]any{
						"role":         "tool",
						"tool_call_id": part.ToolResult.ToolCallID,
						"content":      part.ToolResult.Content,
					})
				}
			}
		}
	}

	return result
}

// reasoningToken resolves the opaque reasoning token to echo back on an
// assistant turn. An explicit thinking part on the message wins; otherwise
// the reasoning store is consumed by the turn's first tool-call ID, which is
// how streamed reasoning re-attaches to the follow-up request that carries
// the tool results.
func (a *ChatCompatAdapter) reasoningToken(msg Message, calls []ToolCallData) string {
	for _, part := range msg.Content {
		if part.Kind == ContentThinking && part.Thinking != nil && part.Thinking.ID != "" {
			return part.Thinking.ID
		}
	}
	if a.Reasoning == nil || len(calls) == 0 {
		return ""
	}
	if rec, ok := a.Reasoning.Consume(calls[0].ID); ok {
		return rec.ID
	}
	return ""
}

// chatCompletionResponse represents the non-streaming response body.
type chatCompletionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int    `json:"index"`
		FinishReason string `json:"finish_reason"`
		Message      struct {
			Role      string `json:"role"`
			Content   string `json:"content"`
			ToolCalls []struct {
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// parseResponse parses the non-streaming response into a unified Response.
func (a *ChatCompatAdapter) parseResponse(body []byte, headers http.Header) (*Response, error) {
	var raw chatCompletionResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}

	resp := &Response{
		ID:       raw.ID,
		Model:    raw.Model,
		Provider: a.Name(),
		Usage: Usage{
			InputTokens:  raw.Usage.PromptTokens,
			OutputTokens: raw.Usage.CompletionTokens,
			TotalTokens:  raw.Usage.TotalTokens,
		},
		RateLimit: a.ParseRateLimitHeaders(headers),
		Raw:       json.RawMessage(body),
	}

	if len(raw.Choices) == 0 {
		resp.Message = Message{Role: RoleAssistant}
		return resp, nil
	}

	choice := raw.Choices[0]
	msg := Message{Role: RoleAssistant}
	if choice.Message.Content != "" {
		msg.Content = append(msg.Content, TextPart(choice.Message.Content))
	}
	for _, tc := range choice.Message.ToolCalls {
		args := json.RawMessage(tc.Function.Arguments)
		if !json.Valid(args) {
			fmt.Fprintf(os.Stderr, "Warning: invalid tool call arguments for %s, using empty object\n", tc.Function.Name)
			args = json.RawMessage("{}")
		}
		id := tc.ID
		if id == "" {
			id = GenerateCallID()
		}
		msg.Content = append(msg.Content, ToolCallPart(id, tc.Function.Name, args))
	}
	resp.Message = msg

	switch choice.FinishReason {
	case "stop":
		resp.FinishReason = FinishReason{Reason: FinishStop, Raw: choice.FinishReason}
	case "length":
		resp.FinishReason = FinishReason{Reason: FinishLength, Raw: choice.FinishReason}
	case "tool_calls", "function_call":
		resp.FinishReason = FinishReason{Reason: FinishToolCalls, Raw: choice.FinishReason}
	case "content_filter":
		resp.FinishReason = FinishReason{Reason: FinishContentFilter, Raw: choice.FinishReason}
	default:
		resp.FinishReason = FinishReason{Reason: FinishOther, Raw: choice.FinishReason}
	}

	return resp, nil
}

// chatCompatErrorResponse represents the error response format.
type chatCompatErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// parseError parses an error response and returns the appropriate error type.
func (a *ChatCompatAdapter) parseError(statusCode int, body []byte) error {
	var errResp chatCompatErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil {
		return ErrorFromStatusCode(statusCode, fmt.Sprintf("HTTP %d", statusCode), a.Name(), "", json.RawMessage(body), nil)
	}

	code := errResp.Error.Code
	if code == "" {
		code = errResp.Error.Type
	}

	return ErrorFromStatusCode(
		statusCode,
		errResp.Error.Message,
		a.Name(),
		code,
		json.RawMessage(body),
		nil,
	)
}
