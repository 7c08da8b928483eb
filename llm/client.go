// ABOUTME: Client infrastructure for the unified completion client with provider routing and middleware.
// ABOUTME: Provides NewClient with functional options, middleware chain execution, and env-based construction.

package llm

import (
	"context"
	"fmt"
	"os"
)

// Middleware is a function that wraps a completion call, enabling request and
// response transformation, logging, caching, and other cross-cutting concerns.
// Middleware executes in registration order for requests and reverse order
// for responses (onion/chain-of-responsibility pattern).
type Middleware func(ctx context.Context, req Request, next NextFunc) (*Response, error)

// NextFunc is the function signature passed to middleware to continue the chain.
type NextFunc func(ctx context.Context, req Request) (*Response, error)

// Client is the primary entry point for making completion calls. It manages
// provider adapters, routes requests to the correct provider, and applies
// the middleware chain.
type Client struct {
	providers       map[string]ProviderAdapter
	defaultProvider string
	middleware      []Middleware
	retryPolicy     *RetryPolicy
}

// ClientOption is a functional option for configuring a Client.
type ClientOption func(*Client)

// WithProvider registers a ProviderAdapter under the given name. If this is
// the first provider registered and no default has been set, it becomes the
// default provider.
func WithProvider(name string, adapter ProviderAdapter) ClientOption {
	return func(c *Client) {
		c.providers[name] = adapter
		if c.defaultProvider == "" {
			c.defaultProvider = name
		}
	}
}

// WithDefaultProvider sets the name of the provider used when a Request does
// not specify a Provider field.
func WithDefaultProvider(name string) ClientOption {
	return func(c *Client) {
		c.defaultProvider = name
	}
}

// WithMiddleware appends one or more middleware functions to the client's
// middleware chain.
func WithMiddleware(mw ...Middleware) ClientOption {
	return func(c *Client) {
		c.middleware = append(c.middleware, mw...)
	}
}

// WithRetryPolicy enables automatic retry of retryable provider failures
// (rate limits, 5xx, network errors) around every adapter call. Without it
// the client makes a single attempt and surfaces the error as-is.
func WithRetryPolicy(policy RetryPolicy) ClientOption {
	return func(c *Client) {
		c.retryPolicy = &policy
	}
}

// NewClient creates a new Client with the given options applied.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		providers: make(map[string]ProviderAdapter),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FromEnv creates a Client by detecting API keys in the environment. It checks
// ANTHROPIC_API_KEY and OPENAI_API_KEY; OPENAI_BASE_URL switches the OpenAI
// key onto the raw chat-completions adapter for compatible gateways. The first
// detected provider becomes the default. Returns a ConfigurationError if no
// keys are found.
func FromEnv() (*Client, error) {
	var opts []ClientOption

	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		opts = append(opts, WithProvider("anthropic", NewAnthropicAdapter(key)))
	}

	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
			opts = append(opts, WithProvider("openai", NewChatCompatAdapter(key, WithChatCompatBaseURL(baseURL))))
		} else {
			opts = append(opts, WithProvider("openai", NewOpenAISDKAdapter(key, "")))
		}
	}

	if len(opts) == 0 {
		return nil, &ConfigurationError{
			SDKError: SDKError{
				Message: "no API keys found in environment (checked ANTHROPIC_API_KEY, OPENAI_API_KEY)",
			},
		}
	}

	return NewClient(opts...), nil
}

// resolveProvider determines which ProviderAdapter should handle the request.
// It uses the request's Provider field if set, otherwise falls back to the
// client's default provider. Returns a ConfigurationError if no provider is found.
func (c *Client) resolveProvider(req Request) (ProviderAdapter, error) {
	name := req.Provider
	if name == "" {
		name = c.defaultProvider
	}
	if name == "" {
		return nil, &ConfigurationError{
			SDKError: SDKError{
				Message: "no provider specified and no default provider configured",
			},
		}
	}

	adapter, ok := c.providers[name]
	if !ok {
		return nil, &ConfigurationError{
			SDKError: SDKError{
				Message: fmt.Sprintf("provider %q not registered", name),
			},
		}
	}
	return adapter, nil
}

// Complete sends a completion request through the middleware chain and then to
// the appropriate provider adapter.
func (c *Client) Complete(ctx context.Context, req Request) (*Response, error) {
	handler := func(ctx context.Context, req Request) (*Response, error) {
		adapter, err := c.resolveProvider(req)
		if err != nil {
			return nil, err
		}
		if c.retryPolicy == nil {
			return adapter.Complete(ctx, req)
		}
		var resp *Response
		retryErr := Retry(ctx, *c.retryPolicy, func() error {
			var completeErr error
			resp, completeErr = adapter.Complete(ctx, req)
			return completeErr
		})
		return resp, retryErr
	}

	// Wrap with middleware in reverse order so the first middleware registered
	// is the outermost layer.
	chain := handler
	for i := len(c.middleware) - 1; i >= 0; i-- {
		mw := c.middleware[i]
		next := chain
		chain = func(ctx context.Context, req Request) (*Response, error) {
			return mw(ctx, req, next)
		}
	}

	return chain(ctx, req)
}

// Stream sends a streaming request to the appropriate provider adapter. When a
// retry policy is configured, retryable setup failures (the request being
// rejected before any event flows) are retried; failures mid-stream are not,
// since events may already have been delivered.
func (c *Client) Stream(ctx context.Context, req Request) (<-chan StreamEvent, error) {
	adapter, err := c.resolveProvider(req)
	if err != nil {
		return nil, err
	}
	if c.retryPolicy == nil {
		return adapter.Stream(ctx, req)
	}
	var ch <-chan StreamEvent
	retryErr := Retry(ctx, *c.retryPolicy, func() error {
		var streamErr error
		ch, streamErr = adapter.Stream(ctx, req)
		return streamErr
	})
	return ch, retryErr
}

// Close shuts down all registered provider adapters. Errors from individual
// adapters are collected and returned as a combined error.
func (c *Client) Close() error {
	var errs []error
	for name, adapter := range c.providers {
		if err := adapter.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing provider %q: %w", name, err))
		}
	}
	if len(errs) > 0 {
		combined := errs[0]
		for _, e := range errs[1:] {
			combined = fmt.Errorf("%w; %v", combined, e)
		}
		return combined
	}
	return nil
}

// RegisterProvider adds or replaces a provider adapter on the client.
// If no default provider is set, the newly registered provider becomes the default.
func (c *Client) RegisterProvider(name string, adapter ProviderAdapter) {
	c.providers[name] = adapter
	if c.defaultProvider == "" {
		c.defaultProvider = name
	}
}
