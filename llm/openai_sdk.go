// ABOUTME: OpenAI provider adapter backed by the official openai-go SDK.
// ABOUTME: Converts unified requests to ChatCompletionNewParams and SDK streaming back into unified events.

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAISDKAdapter implements ProviderAdapter using the official OpenAI SDK's
// Chat Completions surface. A custom base URL switches it onto compatible
// gateways that the SDK can still represent; for anything stranger, use
// ChatCompatAdapter.
type OpenAISDKAdapter struct {
	client       openai.Client
	defaultModel string
}

// NewOpenAISDKAdapter creates an adapter with the given API key. An empty
// baseURL uses the SDK's default endpoint.
func NewOpenAISDKAdapter(apiKey, baseURL string) *OpenAISDKAdapter {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAISDKAdapter{
		client:       openai.NewClient(opts...),
		defaultModel: "gpt-5.2",
	}
}

// Name returns the provider name "openai".
func (a *OpenAISDKAdapter) Name() string {
	return "openai"
}

// Close releases any resources held by the adapter.
func (a *OpenAISDKAdapter) Close() error {
	return nil
}

// Complete sends a synchronous completion request through the SDK.
func (a *OpenAISDKAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	params := a.convertRequest(req)

	resp, err := a.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, err
	}

	return a.convertResponse(resp), nil
}

// Stream sends a streaming request through the SDK and adapts its chunk
// stream into unified StreamEvents. Text deltas are forwarded for every
// choice with ChoiceIndex set; the terminal finish event reflects the first
// choice only, since the SDK accumulator aggregates a single message. N>1
// consumers that need full per-choice terminal state should use
// ChatCompatAdapter instead.
func (a *OpenAISDKAdapter) Stream(ctx context.Context, req Request) (<-chan StreamEvent, error) {
	params := a.convertRequest(req)
	sdkStream := a.client.Chat.Completions.NewStreaming(ctx, params)

	ch := make(chan StreamEvent, 64)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				fmt.Fprintf(os.Stderr, "Warning: panic recovered in openai stream: %v\n", r)
				ch <- StreamEvent{
					Type:  StreamErrorEvt,
					Error: fmt.Errorf("panic in stream processing: %v", r),
				}
			}
			close(ch)
		}()

		var acc openai.ChatCompletionAccumulator

		ch <- StreamEvent{Type: StreamStart}

		for sdkStream.Next() {
			chunk := sdkStream.Current()
			acc.AddChunk(chunk)

			for _, choice := range chunk.Choices {
				if choice.Delta.Content == "" {
					continue
				}
				ch <- StreamEvent{
					Type:        StreamTextDelta,
					ChoiceIndex: int(choice.Index),
					Delta:       choice.Delta.Content,
				}
			}

			if toolCall, ok := acc.JustFinishedToolCall(); ok {
				args := json.RawMessage(toolCall.Arguments)
				if !json.Valid(args) {
					fmt.Fprintf(os.Stderr, "Warning: failed to parse tool call arguments for %s, using empty object\n", toolCall.Name)
					args = json.RawMessage("{}")
				}
				ch <- StreamEvent{
					Type: StreamToolEnd,
					ToolCall: &ToolCall{
						ID:           toolCall.ID,
						Name:         toolCall.Name,
						Arguments:    args,
						RawArguments: toolCall.Arguments,
					},
				}
			}
		}

		if err := sdkStream.Err(); err != nil {
			ch <- StreamEvent{
				Type: StreamErrorEvt,
				Error: &StreamError{
					SDKError: SDKError{Message: "openai stream failed", Cause: err},
				},
			}
			return
		}

		final := a.convertResponse(&acc.ChatCompletion)
		finish := final.FinishReason
		ch <- StreamEvent{
			Type:         StreamFinish,
			FinishReason: &finish,
			Usage:        &final.Usage,
			Response:     final,
		}
	}()

	return ch, nil
}

// convertRequest converts a unified Request to SDK params.
func (a *OpenAISDKAdapter) convertRequest(req Request) openai.ChatCompletionNewParams {
	model := req.Model
	if model == "" {
		model = a.defaultModel
	}

	params := openai.ChatCompletionNewParams{
		Model: model,
	}

	if req.MaxTokens != nil {
		params.MaxCompletionTokens = openai.Int(int64(*req.MaxTokens))
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	if req.N != nil {
		params.N = openai.Int(int64(*req.N))
	}

	systemText, remaining := ExtractSystemMessages(req.Messages)

	var messages []openai.ChatCompletionMessageParamUnion
	if systemText != "" {
		messages = append(messages, openai.SystemMessage(systemText))
	}

	for _, msg := range remaining {
		switch msg.Role {
		case RoleUser:
			messages = append(messages, openai.UserMessage(msg.TextContent()))
		case RoleAssistant:
			messages = append(messages, a.convertAssistantMessage(msg))
		case RoleTool:
			for _, part := range msg.Content {
				if part.Kind == ContentToolResult && part.ToolResult != nil {
					messages = append(messages, openai.ToolMessage(part.ToolResult.Content, part.ToolResult.ToolCallID))
				}
			}
		}
	}
	params.Messages = messages

	if len(req.Tools) > 0 {
		tools := make([]openai.ChatCompletionToolParam, 0, len(req.Tools))
		for _, tool := range req.Tools {
			var schema map[string]any
			if len(tool.Parameters) > 0 {
				json.Unmarshal(tool.Parameters, &schema)
			}
			tools = append(tools, openai.ChatCompletionToolParam{
				Type: "function",
				Function: openai.FunctionDefinitionParam{
					Name:        tool.Name,
					Description: openai.String(tool.Description),
					Parameters:  openai.FunctionParameters(schema),
				},
			})
		}
		params.Tools = tools
	}

	return params
}

// convertAssistantMessage converts a unified assistant message to SDK format.
func (a *OpenAISDKAdapter) convertAssistantMessage(msg Message) openai.ChatCompletionMessageParamUnion {
	textContent := msg.TextContent()
	calls := msg.ToolCalls()

	if len(calls) == 0 {
		return openai.AssistantMessage(textContent)
	}

	toolCalls := make([]openai.ChatCompletionMessageToolCallParam, 0, len(calls))
	for _, call := range calls {
		toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCallParam{
			ID:   call.ID,
			Type: "function",
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      call.Name,
				Arguments: string(call.Arguments),
			},
		})
	}

	asstMsg := openai.ChatCompletionAssistantMessageParam{
		Role:      "assistant",
		ToolCalls: toolCalls,
	}
	if textContent != "" {
		asstMsg.Content = openai.ChatCompletionAssistantMessageParamContentUnion{
			OfString: openai.String(textContent),
		}
	}
	return openai.ChatCompletionMessageParamUnion{OfAssistant: &asstMsg}
}

// convertResponse converts an SDK ChatCompletion to a unified Response.
func (a *OpenAISDKAdapter) convertResponse(resp *openai.ChatCompletion) *Response {
	result := &Response{
		ID:       resp.ID,
		Model:    resp.Model,
		Provider: a.Name(),
		Message:  Message{Role: RoleAssistant},
		Usage: Usage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:  int(resp.Usage.TotalTokens),
		},
	}

	if len(resp.Choices) == 0 {
		return result
	}

	choice := resp.Choices[0]

	switch choice.FinishReason {
	case "stop":
		result.FinishReason = FinishReason{Reason: FinishStop, Raw: choice.FinishReason}
	case "length":
		result.FinishReason = FinishReason{Reason: FinishLength, Raw: choice.FinishReason}
	case "tool_calls":
		result.FinishReason = FinishReason{Reason: FinishToolCalls, Raw: choice.FinishReason}
	case "content_filter":
		result.FinishReason = FinishReason{Reason: FinishContentFilter, Raw: choice.FinishReason}
	default:
		result.FinishReason = FinishReason{Reason: FinishOther, Raw: choice.FinishReason}
	}

	if choice.Message.Content != "" {
		result.Message.Content = append(result.Message.Content, TextPart(choice.Message.Content))
	}

	for _, tc := range choice.Message.ToolCalls {
		args := json.RawMessage(tc.Function.Arguments)
		if !json.Valid(args) {
			fmt.Fprintf(os.Stderr, "Warning: failed to parse tool call arguments for %s, using empty object\n", tc.Function.Name)
			args = json.RawMessage("{}")
		}
		result.Message.Content = append(result.Message.Content, ToolCallPart(tc.ID, tc.Function.Name, args))
	}

	return result
}

// Compile-time interface assertion.
var _ ProviderAdapter = (*OpenAISDKAdapter)(nil)
