// ABOUTME: Tests for client provider routing and the middleware chain.
// ABOUTME: Validates default routing, explicit provider selection, middleware ordering, and error cases.

package llm

import (
	"context"
	"errors"
	"testing"
)

// namedAdapter is a stub ProviderAdapter that stamps its name on responses.
type namedAdapter struct {
	name string
}

func (a *namedAdapter) Name() string { return a.name }

func (a *namedAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	return &Response{Provider: a.name}, nil
}

func (a *namedAdapter) Stream(ctx context.Context, req Request) (<-chan StreamEvent, error) {
	ch := make(chan StreamEvent, 1)
	ch <- StreamEvent{Type: StreamFinish}
	close(ch)
	return ch, nil
}

func (a *namedAdapter) Close() error { return nil }

func TestClientRoutesToDefaultProvider(t *testing.T) {
	c := NewClient(
		WithProvider("alpha", &namedAdapter{name: "alpha"}),
		WithProvider("beta", &namedAdapter{name: "beta"}),
	)

	resp, err := c.Complete(context.Background(), Request{Model: "m"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Provider != "alpha" {
		t.Errorf("first registered provider should be the default, got %q", resp.Provider)
	}
}

func TestClientRoutesToNamedProvider(t *testing.T) {
	c := NewClient(
		WithProvider("alpha", &namedAdapter{name: "alpha"}),
		WithProvider("beta", &namedAdapter{name: "beta"}),
	)

	resp, err := c.Complete(context.Background(), Request{Model: "m", Provider: "beta"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Provider != "beta" {
		t.Errorf("provider = %q, want beta", resp.Provider)
	}
}

func TestClientUnknownProviderIsConfigurationError(t *testing.T) {
	c := NewClient(WithProvider("alpha", &namedAdapter{name: "alpha"}))

	_, err := c.Complete(context.Background(), Request{Provider: "missing"})
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestClientNoProvidersIsConfigurationError(t *testing.T) {
	c := NewClient()

	_, err := c.Complete(context.Background(), Request{})
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestMiddlewareExecutionOrder(t *testing.T) {
	var order []string

	mw := func(name string) Middleware {
		return func(ctx context.Context, req Request, next NextFunc) (*Response, error) {
			order = append(order, name+"-in")
			resp, err := next(ctx, req)
			order = append(order, name+"-out")
			return resp, err
		}
	}

	c := NewClient(
		WithProvider("alpha", &namedAdapter{name: "alpha"}),
		WithMiddleware(mw("first"), mw("second")),
	)

	if _, err := c.Complete(context.Background(), Request{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"first-in", "second-in", "second-out", "first-out"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestMiddlewareCanRewriteRequest(t *testing.T) {
	recorder := &recordingAdapter{}
	c := NewClient(
		WithProvider("recording", recorder),
		WithMiddleware(func(ctx context.Context, req Request, next NextFunc) (*Response, error) {
			req.Model = "rewritten"
			return next(ctx, req)
		}),
	)

	if _, err := c.Complete(context.Background(), Request{Model: "original"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if recorder.lastReq.Model != "rewritten" {
		t.Errorf("model = %q, want rewritten", recorder.lastReq.Model)
	}
}

func TestRegisterProviderSetsDefault(t *testing.T) {
	c := NewClient()
	c.RegisterProvider("late", &namedAdapter{name: "late"})

	resp, err := c.Complete(context.Background(), Request{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Provider != "late" {
		t.Errorf("provider = %q, want late", resp.Provider)
	}
}

// flakyAdapter fails the first failures calls with err, then succeeds.
type flakyAdapter struct {
	failures int
	err      error
	calls    int
}

func (a *flakyAdapter) Name() string { return "flaky" }

func (a *flakyAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	a.calls++
	if a.calls <= a.failures {
		return nil, a.err
	}
	return &Response{Provider: a.Name()}, nil
}

func (a *flakyAdapter) Stream(ctx context.Context, req Request) (<-chan StreamEvent, error) {
	a.calls++
	if a.calls <= a.failures {
		return nil, a.err
	}
	ch := make(chan StreamEvent, 1)
	ch <- StreamEvent{Type: StreamFinish}
	close(ch)
	return ch, nil
}

func (a *flakyAdapter) Close() error { return nil }

func immediateRetryPolicy(maxRetries int) RetryPolicy {
	return RetryPolicy{
		MaxRetries:        maxRetries,
		BaseDelay:         0,
		MaxDelay:          0,
		BackoffMultiplier: 2.0,
	}
}

func TestClientRetriesRetryableCompleteFailure(t *testing.T) {
	adapter := &flakyAdapter{
		failures: 1,
		err:      &RateLimitError{ProviderError: ProviderError{SDKError: SDKError{Message: "slow down"}}},
	}
	c := NewClient(
		WithProvider("flaky", adapter),
		WithRetryPolicy(immediateRetryPolicy(2)),
	)

	resp, err := c.Complete(context.Background(), Request{Model: "m"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp == nil || resp.Provider != "flaky" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if adapter.calls != 2 {
		t.Errorf("calls = %d, want 2", adapter.calls)
	}
}

func TestClientDoesNotRetryNonRetryableFailure(t *testing.T) {
	adapter := &flakyAdapter{
		failures: 5,
		err:      &AuthenticationError{ProviderError: ProviderError{SDKError: SDKError{Message: "bad key"}}},
	}
	c := NewClient(
		WithProvider("flaky", adapter),
		WithRetryPolicy(immediateRetryPolicy(2)),
	)

	_, err := c.Complete(context.Background(), Request{Model: "m"})
	var authErr *AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthenticationError, got %v", err)
	}
	if adapter.calls != 1 {
		t.Errorf("calls = %d, want 1", adapter.calls)
	}
}

func TestClientWithoutRetryPolicySingleAttempt(t *testing.T) {
	adapter := &flakyAdapter{
		failures: 1,
		err:      &RateLimitError{ProviderError: ProviderError{SDKError: SDKError{Message: "slow down"}}},
	}
	c := NewClient(WithProvider("flaky", adapter))

	if _, err := c.Complete(context.Background(), Request{Model: "m"}); err == nil {
		t.Fatal("expected error without a retry policy")
	}
	if adapter.calls != 1 {
		t.Errorf("calls = %d, want 1", adapter.calls)
	}
}

func TestClientRetriesRetryableStreamSetupFailure(t *testing.T) {
	adapter := &flakyAdapter{
		failures: 1,
		err:      &ServerError{ProviderError: ProviderError{SDKError: SDKError{Message: "overloaded"}}},
	}
	c := NewClient(
		WithProvider("flaky", adapter),
		WithRetryPolicy(immediateRetryPolicy(2)),
	)

	ch, err := c.Stream(context.Background(), Request{Model: "m"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ch == nil {
		t.Fatal("expected a stream channel")
	}
	if adapter.calls != 2 {
		t.Errorf("calls = %d, want 2", adapter.calls)
	}
}
