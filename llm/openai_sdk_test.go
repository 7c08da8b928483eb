// ABOUTME: Tests for the SDK-backed OpenAI adapter's stream event translation.
// ABOUTME: Covers per-choice delta forwarding when the request samples multiple candidates.

package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func openAISDKServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte(body))
	}))
}

func TestOpenAISDKStreamForwardsAllChoiceDeltas(t *testing.T) {
	var body strings.Builder
	body.WriteString(chatChunk(`{"id":"c1","object":"chat.completion.chunk","model":"gpt-5.2","choices":[{"index":0,"delta":{"role":"assistant","content":"alpha"}}]}`))
	body.WriteString(chatChunk(`{"id":"c1","object":"chat.completion.chunk","model":"gpt-5.2","choices":[{"index":1,"delta":{"role":"assistant","content":"beta"}}]}`))
	body.WriteString(chatChunk(`{"id":"c1","object":"chat.completion.chunk","model":"gpt-5.2","choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`))
	body.WriteString(chatChunk(`{"id":"c1","object":"chat.completion.chunk","model":"gpt-5.2","choices":[{"index":1,"delta":{},"finish_reason":"stop"}]}`))
	body.WriteString("data: [DONE]\n\n")

	server := openAISDKServer(t, body.String())
	defer server.Close()

	adapter := NewOpenAISDKAdapter("test-key", server.URL)
	n := 2
	ch, err := adapter.Stream(context.Background(), Request{
		Model:    "gpt-5.2",
		N:        &n,
		Messages: []Message{UserMessage("hi")},
	})
	if err != nil {
		t.Fatalf("Stream() error: %v", err)
	}

	text := map[int]string{}
	sawFinish := false
	for evt := range ch {
		switch evt.Type {
		case StreamTextDelta:
			text[evt.ChoiceIndex] += evt.Delta
		case StreamFinish:
			sawFinish = true
		case StreamErrorEvt:
			t.Fatalf("unexpected stream error: %v", evt.Error)
		}
	}

	if text[0] != "alpha" {
		t.Errorf("choice 0 text = %q, want alpha", text[0])
	}
	if text[1] != "beta" {
		t.Errorf("choice 1 text = %q, want beta", text[1])
	}
	if !sawFinish {
		t.Error("no finish event")
	}
}
