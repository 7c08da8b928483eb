// ABOUTME: Tests for shared provider utilities.
// ABOUTME: Covers system message extraction, message merging, call ID generation, and the header decorator.

package llm

import (
	"context"
	"strings"
	"testing"
)

func TestExtractSystemMessages(t *testing.T) {
	messages := []Message{
		SystemMessage("first instruction"),
		UserMessage("hello"),
		{Role: RoleDeveloper, Content: []ContentPart{TextPart("dev note")}},
		AssistantMessage("hi"),
	}

	systemText, remaining := ExtractSystemMessages(messages)
	if systemText != "first instruction\ndev note" {
		t.Errorf("systemText = %q", systemText)
	}
	if len(remaining) != 2 {
		t.Fatalf("remaining = %d messages, want 2", len(remaining))
	}
	if remaining[0].Role != RoleUser || remaining[1].Role != RoleAssistant {
		t.Errorf("remaining roles = %v, %v", remaining[0].Role, remaining[1].Role)
	}
}

// TestMergeAdjacentUserMessages verifies that two adjacent user messages merge
// into exactly one message whose parts preserve their original order.
func TestMergeAdjacentUserMessages(t *testing.T) {
	messages := []Message{
		{Role: RoleUser, Content: []ContentPart{TextPart("a"), TextPart("b")}},
		{Role: RoleUser, Content: []ContentPart{TextPart("c")}},
	}

	merged := MergeConsecutiveMessages(messages)
	if len(merged) != 1 {
		t.Fatalf("merged = %d messages, want 1", len(merged))
	}
	if merged[0].Role != RoleUser {
		t.Errorf("role = %v, want user", merged[0].Role)
	}
	var texts []string
	for _, part := range merged[0].Content {
		texts = append(texts, part.Text)
	}
	if strings.Join(texts, "") != "abc" {
		t.Errorf("part order = %v, want a,b,c", texts)
	}
}

func TestMergeConsecutiveMessagesAlternating(t *testing.T) {
	messages := []Message{
		UserMessage("q1"),
		AssistantMessage("a1"),
		UserMessage("q2"),
	}

	merged := MergeConsecutiveMessages(messages)
	if len(merged) != 3 {
		t.Errorf("alternating roles must not merge, got %d messages", len(merged))
	}
}

func TestMergeConsecutiveMessagesDoesNotMutateInput(t *testing.T) {
	original := []Message{
		{Role: RoleUser, Content: []ContentPart{TextPart("a")}},
		{Role: RoleUser, Content: []ContentPart{TextPart("b")}},
	}

	MergeConsecutiveMessages(original)
	if len(original[0].Content) != 1 {
		t.Error("merge must copy content, not append into the input slice")
	}
}

func TestGenerateCallID(t *testing.T) {
	a := GenerateCallID()
	b := GenerateCallID()

	if !strings.HasPrefix(a, "call_") {
		t.Errorf("id %q missing call_ prefix", a)
	}
	if a == b {
		t.Error("consecutive IDs must differ")
	}
}

// recordingAdapter captures the request each call receives.
type recordingAdapter struct {
	lastReq Request
}

func (r *recordingAdapter) Name() string { return "recording" }

func (r *recordingAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	r.lastReq = req
	return &Response{Provider: "recording"}, nil
}

func (r *recordingAdapter) Stream(ctx context.Context, req Request) (<-chan StreamEvent, error) {
	r.lastReq = req
	ch := make(chan StreamEvent)
	close(ch)
	return ch, nil
}

func (r *recordingAdapter) Close() error { return nil }

func TestHeaderDecoratorInjectsHeaders(t *testing.T) {
	inner := &recordingAdapter{}
	decorated := NewHeaderDecorator(inner, map[string]string{"X-Editor-Session": "abc123"})

	_, err := decorated.Complete(context.Background(), Request{Model: "m"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.lastReq.ExtraHeaders["X-Editor-Session"] != "abc123" {
		t.Errorf("headers = %v", inner.lastReq.ExtraHeaders)
	}
}

func TestHeaderDecoratorRequestHeadersWin(t *testing.T) {
	inner := &recordingAdapter{}
	decorated := NewHeaderDecorator(inner, map[string]string{"X-Tag": "decorator"})

	req := Request{Model: "m", ExtraHeaders: map[string]string{"X-Tag": "request"}}
	if _, err := decorated.Complete(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.lastReq.ExtraHeaders["X-Tag"] != "request" {
		t.Errorf("per-request header must win, got %q", inner.lastReq.ExtraHeaders["X-Tag"])
	}
}

func TestHeaderDecoratorForwardsName(t *testing.T) {
	decorated := NewHeaderDecorator(&recordingAdapter{}, nil)
	if decorated.Name() != "recording" {
		t.Errorf("Name() = %q, want the inner adapter's name", decorated.Name())
	}
}
