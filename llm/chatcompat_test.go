// ABOUTME: Tests for the raw-HTTP chat completions adapter using httptest SSE servers.
// ABOUTME: Covers delta forwarding, tool-call ID synthesis, usage mapping, and error translation.

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/zugzugs/nextedit/llm/stream"
)

func chatChunk(data string) string {
	return "data: " + data + "\n\n"
}

func chatCompatServer(t *testing.T, body string, capture *map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if capture != nil {
			reqBody, _ := io.ReadAll(r.Body)
			json.Unmarshal(reqBody, capture)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte(body))
	}))
}

func TestChatCompatStreamsTextAndUsage(t *testing.T) {
	var body strings.Builder
	body.WriteString(chatChunk(`{"id":"c1","choices":[{"index":0,"delta":{"role":"assistant","content":"Hel"}}]}`))
	body.WriteString(chatChunk(`{"id":"c1","choices":[{"index":0,"delta":{"content":"lo"}}]}`))
	body.WriteString(chatChunk(`{"id":"c1","choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`))
	body.WriteString(chatChunk(`{"id":"c1","choices":[],"usage":{"prompt_tokens":9,"completion_tokens":4,"total_tokens":13}}`))
	body.WriteString("data: [DONE]\n\n")

	var receivedBody map[string]any
	server := chatCompatServer(t, body.String(), &receivedBody)
	defer server.Close()

	adapter := NewChatCompatAdapter("test-key", WithChatCompatBaseURL(server.URL))
	ch, err := adapter.Stream(context.Background(), Request{
		Model:    "gpt-5.2",
		Messages: []Message{UserMessage("hi")},
	})
	if err != nil {
		t.Fatalf("Stream() error: %v", err)
	}

	var events []StreamEvent
	for evt := range ch {
		events = append(events, evt)
	}

	if events[0].Type != StreamStart {
		t.Fatalf("first event = %v", events[0].Type)
	}

	var text strings.Builder
	var finish *StreamEvent
	for i := range events {
		switch events[i].Type {
		case StreamTextDelta:
			text.WriteString(events[i].Delta)
		case StreamFinish:
			finish = &events[i]
		case StreamErrorEvt:
			t.Fatalf("unexpected stream error: %v", events[i].Error)
		}
	}

	if text.String() != "Hello" {
		t.Errorf("forwarded text = %q", text.String())
	}
	if finish == nil {
		t.Fatal("no finish event")
	}
	if finish.FinishReason.Reason != FinishStop {
		t.Errorf("finish reason = %+v", finish.FinishReason)
	}
	if finish.Usage == nil || finish.Usage.InputTokens != 9 || finish.Usage.OutputTokens != 4 {
		t.Errorf("usage = %+v", finish.Usage)
	}

	if receivedBody["stream"] != true {
		t.Error("request must set stream=true")
	}
	so, ok := receivedBody["stream_options"].(map[string]any)
	if !ok || so["include_usage"] != true {
		t.Errorf("stream_options = %v", receivedBody["stream_options"])
	}
}

func TestChatCompatSynthesizesMissingToolCallIDs(t *testing.T) {
	var body strings.Builder
	body.WriteString(chatChunk(`{"id":"c1","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"name":"lookup","arguments":"{\"k\":\"v\"}"}}]}}]}`))
	body.WriteString(chatChunk(`{"id":"c1","choices":[{"index":0,"delta":{},"finish_reason":"tool_calls"}]}`))
	body.WriteString("data: [DONE]\n\n")

	server := chatCompatServer(t, body.String(), nil)
	defer server.Close()

	adapter := NewChatCompatAdapter("test-key", WithChatCompatBaseURL(server.URL))
	ch, err := adapter.Stream(context.Background(), Request{Model: "m", Messages: []Message{UserMessage("hi")}})
	if err != nil {
		t.Fatalf("Stream() error: %v", err)
	}

	var toolCall *ToolCall
	for evt := range ch {
		if evt.Type == StreamToolEnd {
			toolCall = evt.ToolCall
		}
	}

	if toolCall == nil {
		t.Fatal("no tool call event")
	}
	if toolCall.Name != "lookup" {
		t.Errorf("name = %q", toolCall.Name)
	}
	if !strings.HasPrefix(toolCall.ID, "call_") {
		t.Errorf("synthesized ID = %q, want call_ prefix", toolCall.ID)
	}
	var args map[string]string
	if err := json.Unmarshal(toolCall.Arguments, &args); err != nil || args["k"] != "v" {
		t.Errorf("arguments = %s", toolCall.Arguments)
	}
}

func TestChatCompatStreamErrorSurfaced(t *testing.T) {
	// Truncated stream with no [DONE] and an abrupt connection close mid-event
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte(chatChunk(`{"id":"c1","choices":[{"index":0,"delta":{"content":"par`)))
		// Hijack and close so the client sees an unexpected EOF
		if hj, ok := w.(http.Hijacker); ok {
			conn, _, _ := hj.Hijack()
			conn.Close()
		}
	}))
	defer server.Close()

	adapter := NewChatCompatAdapter("test-key", WithChatCompatBaseURL(server.URL))
	ch, err := adapter.Stream(context.Background(), Request{Model: "m", Messages: []Message{UserMessage("hi")}})
	if err != nil {
		t.Fatalf("Stream() error: %v", err)
	}

	var streamErr error
	for evt := range ch {
		if evt.Type == StreamErrorEvt {
			streamErr = evt.Error
		}
	}

	if streamErr == nil {
		t.Fatal("expected a stream error event")
	}
	var se *StreamError
	if !errors.As(streamErr, &se) {
		t.Errorf("error type = %T", streamErr)
	}
}

func TestChatCompatComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "c2",
			"model": "gpt-5.2",
			"choices": [{
				"index": 0,
				"finish_reason": "stop",
				"message": {"role": "assistant", "content": "Done."}
			}],
			"usage": {"prompt_tokens": 3, "completion_tokens": 2, "total_tokens": 5}
		}`))
	}))
	defer server.Close()

	adapter := NewChatCompatAdapter("test-key", WithChatCompatBaseURL(server.URL))
	resp, err := adapter.Complete(context.Background(), Request{Model: "gpt-5.2", Messages: []Message{UserMessage("hi")}})
	if err != nil {
		t.Fatalf("Complete() error: %v", err)
	}

	if resp.Message.TextContent() != "Done." {
		t.Errorf("text = %q", resp.Message.TextContent())
	}
	if resp.FinishReason.Reason != FinishStop {
		t.Errorf("finish reason = %+v", resp.FinishReason)
	}
	if resp.Usage.TotalTokens != 5 {
		t.Errorf("usage = %+v", resp.Usage)
	}
	if resp.Provider != "chat-compat" {
		t.Errorf("provider = %q", resp.Provider)
	}
}

func TestChatCompatCompleteRepairsInvalidToolArguments(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "c3",
			"choices": [{
				"index": 0,
				"finish_reason": "tool_calls",
				"message": {
					"role": "assistant",
					"tool_calls": [{"id": "call_1", "function": {"name": "bad", "arguments": "{truncated"}}]
				}
			}]
		}`))
	}))
	defer server.Close()

	adapter := NewChatCompatAdapter("test-key", WithChatCompatBaseURL(server.URL))
	resp, err := adapter.Complete(context.Background(), Request{Model: "m", Messages: []Message{UserMessage("hi")}})
	if err != nil {
		t.Fatalf("Complete() error: %v", err)
	}

	calls := resp.Message.ToolCalls()
	if len(calls) != 1 {
		t.Fatalf("tool calls = %d", len(calls))
	}
	if string(calls[0].Arguments) != "{}" {
		t.Errorf("arguments = %s, want {}", calls[0].Arguments)
	}
	if resp.FinishReason.Reason != FinishToolCalls {
		t.Errorf("finish reason = %+v", resp.FinishReason)
	}
}

func TestChatCompatErrorTranslation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error","code":"invalid_api_key"}}`))
	}))
	defer server.Close()

	adapter := NewChatCompatAdapter("test-key", WithChatCompatBaseURL(server.URL))
	_, err := adapter.Complete(context.Background(), Request{Model: "m", Messages: []Message{UserMessage("hi")}})

	var ae *AuthenticationError
	if !errors.As(err, &ae) {
		t.Fatalf("expected AuthenticationError, got %v", err)
	}
	if ae.ErrorCode != "invalid_api_key" {
		t.Errorf("error code = %q", ae.ErrorCode)
	}
}

func TestChatCompatBearerAuth(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"c4","choices":[]}`))
	}))
	defer server.Close()

	adapter := NewChatCompatAdapter("secret", WithChatCompatBaseURL(server.URL))
	adapter.Complete(context.Background(), Request{Model: "m", Messages: []Message{UserMessage("hi")}})

	if gotAuth != "Bearer secret" {
		t.Errorf("Authorization = %q", gotAuth)
	}
}

func TestChatCompatAssistantThinkingPartEchoedAsReasoningOpaque(t *testing.T) {
	adapter := NewChatCompatAdapter("test-key")

	wire := adapter.translateMessages([]Message{
		{
			Role: RoleAssistant,
			Content: []ContentPart{
				ThinkingPart("considered the options", "rs_opaque_1"),
				TextPart("done"),
			},
		},
	})

	if len(wire) != 1 {
		t.Fatalf("wire messages = %d, want 1", len(wire))
	}
	if wire[0]["reasoning_opaque"] != "rs_opaque_1" {
		t.Errorf("reasoning_opaque = %v, want rs_opaque_1", wire[0]["reasoning_opaque"])
	}
}

func TestChatCompatStreamedReasoningReattachesToToolCallTurn(t *testing.T) {
	var body strings.Builder
	body.WriteString(chatChunk(`{"id":"c1","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"call_9","function":{"name":"lookup","arguments":"{}"}}]}}]}`))
	body.WriteString(chatChunk(`{"id":"c1","choices":[{"index":0,"delta":{"reasoning_opaque":"rs_hidden_7"}}]}`))
	body.WriteString(chatChunk(`{"id":"c1","choices":[{"index":0,"delta":{},"finish_reason":"tool_calls"}]}`))
	body.WriteString("data: [DONE]\n\n")

	server := chatCompatServer(t, body.String(), nil)
	defer server.Close()

	adapter := NewChatCompatAdapter("test-key",
		WithChatCompatBaseURL(server.URL),
		WithChatCompatReasoningStore(stream.NewReasoningStore()),
	)
	ch, err := adapter.Stream(context.Background(), Request{
		Model:    "gpt-5.2",
		Messages: []Message{UserMessage("hi")},
	})
	if err != nil {
		t.Fatalf("Stream() error: %v", err)
	}
	var toolCall *ToolCall
	for evt := range ch {
		if evt.Type == StreamToolEnd {
			toolCall = evt.ToolCall
		}
	}
	if toolCall == nil || toolCall.ID != "call_9" {
		t.Fatalf("tool call = %+v", toolCall)
	}

	// The follow-up request replays the tool-call turn; the hidden token must
	// ride along on it.
	wire := adapter.translateMessages([]Message{
		{
			Role:    RoleAssistant,
			Content: []ContentPart{ToolCallPart("call_9", "lookup", json.RawMessage(`{}`))},
		},
		ToolResultMessage("call_9", "result", false),
	})

	if wire[0]["reasoning_opaque"] != "rs_hidden_7" {
		t.Errorf("reasoning_opaque = %v, want rs_hidden_7", wire[0]["reasoning_opaque"])
	}

	// Consumed once; a second replay must not re-attach it.
	again := adapter.translateMessages([]Message{
		{
			Role:    RoleAssistant,
			Content: []ContentPart{ToolCallPart("call_9", "lookup", json.RawMessage(`{}`))},
		},
	})
	if _, ok := again[0]["reasoning_opaque"]; ok {
		t.Error("reasoning token must be consumed on first re-attachment")
	}
}

func TestChatCompatFinishCarriesFilterResult(t *testing.T) {
	var body strings.Builder
	body.WriteString(chatChunk(`{"id":"c1","choices":[{"index":0,"delta":{"content":"no"},"content_filter_results":{"hate":{"filtered":true}}}]}`))
	body.WriteString(chatChunk(`{"id":"c1","choices":[{"index":0,"delta":{},"finish_reason":"content_filter"}]}`))
	body.WriteString("data: [DONE]\n\n")

	server := chatCompatServer(t, body.String(), nil)
	defer server.Close()

	adapter := NewChatCompatAdapter("test-key", WithChatCompatBaseURL(server.URL))
	ch, err := adapter.Stream(context.Background(), Request{
		Model:    "gpt-5.2",
		Messages: []Message{UserMessage("hi")},
	})
	if err != nil {
		t.Fatalf("Stream() error: %v", err)
	}

	var finish *StreamEvent
	for evt := range ch {
		if evt.Type == StreamFinish {
			e := evt
			finish = &e
		}
	}
	if finish == nil {
		t.Fatal("no finish event")
	}
	if finish.FinishReason.Reason != FinishContentFilter {
		t.Errorf("finish reason = %+v", finish.FinishReason)
	}
	if len(finish.FilterResult) == 0 {
		t.Fatal("filter result must survive to the finish event")
	}
	var verdict map[string]any
	if err := json.Unmarshal(finish.FilterResult, &verdict); err != nil {
		t.Fatalf("filter result not valid JSON: %v", err)
	}
	if _, ok := verdict["hate"]; !ok {
		t.Errorf("filter result = %s", finish.FilterResult)
	}
}
