// ABOUTME: ProviderAdapter interface and base adapter utilities for the unified completion client.
// ABOUTME: Provides shared HTTP functionality, header parsing, message manipulation, and ID generation.

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// ProviderAdapter is the interface that all provider adapters implement.
// It provides a uniform way to send completion and streaming requests to
// different backends (Anthropic, OpenAI-compatible HTTP, OpenAI SDK).
type ProviderAdapter interface {
	Name() string
	Complete(ctx context.Context, req Request) (*Response, error)
	Stream(ctx context.Context, req Request) (<-chan StreamEvent, error)
	Close() error
}

// BaseAdapter provides common HTTP functionality shared across all provider adapters.
// Provider-specific adapters embed BaseAdapter to reuse request building, header
// management, and rate limit parsing.
type BaseAdapter struct {
	APIKey         string
	BaseURL        string
	DefaultHeaders map[string]string
	Timeout        AdapterTimeout
	HTTPClient     *http.Client
}

// NewBaseAdapter creates a BaseAdapter with the given API key, base URL, and timeout config.
func NewBaseAdapter(apiKey, baseURL string, timeout AdapterTimeout) *BaseAdapter {
	return &BaseAdapter{
		APIKey:         apiKey,
		BaseURL:        baseURL,
		DefaultHeaders: make(map[string]string),
		Timeout:        timeout,
		HTTPClient: &http.Client{
			Timeout: timeout.Request,
		},
	}
}

// DoRequest builds and executes an HTTP request against the provider's API.
// It JSON-encodes the body (if non-nil), sets authorization and content type
// headers, applies default headers, and then applies per-request overrides.
// The request respects the provided context for timeout and cancellation.
func (b *BaseAdapter) DoRequest(ctx context.Context, method, path string, body any, headers map[string]string) (*http.Response, error) {
	url := b.BaseURL + path

	var reqBody *bytes.Buffer
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		reqBody = bytes.NewBuffer(encoded)
	}

	var httpReq *http.Request
	var err error
	if reqBody != nil {
		httpReq, err = http.NewRequestWithContext(ctx, method, url, reqBody)
	} else {
		httpReq, err = http.NewRequestWithContext(ctx, method, url, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	if b.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+b.APIKey)
	}

	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	for k, v := range b.DefaultHeaders {
		httpReq.Header.Set(k, v)
	}

	// Per-request headers override defaults
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := b.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}

	return resp, nil
}

// ParseRateLimitHeaders extracts rate limit information from provider response headers.
// It parses the standard x-ratelimit-* headers and the retry-after header.
// Returns nil if no rate limit headers are present.
func (b *BaseAdapter) ParseRateLimitHeaders(headers http.Header) *RateLimitInfo {
	info := &RateLimitInfo{}
	found := false

	if v := headers.Get("x-ratelimit-remaining-requests"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			info.RequestsRemaining = &n
			found = true
		}
	}

	if v := headers.Get("x-ratelimit-limit-requests"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			info.RequestsLimit = &n
			found = true
		}
	}

	if v := headers.Get("x-ratelimit-remaining-tokens"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			info.TokensRemaining = &n
			found = true
		}
	}

	if v := headers.Get("x-ratelimit-limit-tokens"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			info.TokensLimit = &n
			found = true
		}
	}

	if v := headers.Get("retry-after"); v != "" {
		if seconds, err := strconv.Atoi(v); err == nil {
			resetAt := time.Now().Add(time.Duration(seconds) * time.Second)
			info.ResetAt = &resetAt
			found = true
		}
	}

	if !found {
		return nil
	}
	return info
}

// ExtractSystemMessages separates system and developer role messages from the rest.
// It concatenates the text content of all system/developer messages (joined by
// newlines) and returns them along with the remaining non-system messages.
func ExtractSystemMessages(messages []Message) (systemText string, remaining []Message) {
	var systemParts []string

	for _, msg := range messages {
		if msg.Role == RoleSystem || msg.Role == RoleDeveloper {
			text := msg.TextContent()
			if text != "" {
				systemParts = append(systemParts, text)
			}
		} else {
			remaining = append(remaining, msg)
		}
	}

	systemText = strings.Join(systemParts, "\n")
	return systemText, remaining
}

// MergeConsecutiveMessages combines consecutive messages with the same role by
// appending their content arrays, preserving part order. This is required for
// providers like Anthropic that enforce strict message role alternation.
func MergeConsecutiveMessages(messages []Message) []Message {
	if len(messages) == 0 {
		return nil
	}

	result := []Message{
		{
			Role:    messages[0].Role,
			Content: append([]ContentPart(nil), messages[0].Content...),
			Name:    messages[0].Name,
		},
	}

	for i := 1; i < len(messages); i++ {
		last := &result[len(result)-1]
		if messages[i].Role == last.Role {
			last.Content = append(last.Content, messages[i].Content...)
		} else {
			result = append(result, Message{
				Role:    messages[i].Role,
				Content: append([]ContentPart(nil), messages[i].Content...),
				Name:    messages[i].Name,
			})
		}
	}

	return result
}

// GenerateCallID produces a unique identifier for tool calls, prefixed with
// "call_". Used for wire formats that omit their own tool call IDs.
func GenerateCallID() string {
	id, err := gonanoid.New()
	if err != nil {
		// gonanoid only fails when the OS entropy source does.
		return fmt.Sprintf("call_%d", time.Now().UnixNano())
	}
	return "call_" + id
}

// HeaderDecorator wraps a ProviderAdapter and injects extra HTTP headers into
// every request. It holds the wrapped adapter explicitly and forwards all
// calls, overriding nothing else.
type HeaderDecorator struct {
	Inner   ProviderAdapter
	Headers map[string]string
}

// NewHeaderDecorator wraps inner so that every request carries headers.
func NewHeaderDecorator(inner ProviderAdapter, headers map[string]string) *HeaderDecorator {
	return &HeaderDecorator{Inner: inner, Headers: headers}
}

func (d *HeaderDecorator) Name() string { return d.Inner.Name() }

func (d *HeaderDecorator) Complete(ctx context.Context, req Request) (*Response, error) {
	return d.Inner.Complete(ctx, d.withHeaders(req))
}

func (d *HeaderDecorator) Stream(ctx context.Context, req Request) (<-chan StreamEvent, error) {
	return d.Inner.Stream(ctx, d.withHeaders(req))
}

func (d *HeaderDecorator) Close() error { return d.Inner.Close() }

// withHeaders copies the request with the decorator's headers merged in.
// Headers already present on the request win.
func (d *HeaderDecorator) withHeaders(req Request) Request {
	if len(d.Headers) == 0 {
		return req
	}
	merged := make(map[string]string, len(d.Headers)+len(req.ExtraHeaders))
	for k, v := range d.Headers {
		merged[k] = v
	}
	for k, v := range req.ExtraHeaders {
		merged[k] = v
	}
	req.ExtraHeaders = merged
	return req
}
