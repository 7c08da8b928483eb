// ABOUTME: Tests for the error hierarchy.
// ABOUTME: Validates status-code mapping, retryability, and errors.As up-casting through the hierarchy.

package llm

import (
	"errors"
	"testing"
)

func TestErrorFromStatusCodeMapping(t *testing.T) {
	cases := []struct {
		status    int
		wantType  string
		retryable bool
	}{
		{400, "*llm.InvalidRequestError", false},
		{401, "*llm.AuthenticationError", false},
		{403, "*llm.AccessDeniedError", false},
		{404, "*llm.NotFoundError", false},
		{408, "*llm.RequestTimeoutError", true},
		{422, "*llm.InvalidRequestError", false},
		{429, "*llm.RateLimitError", true},
		{500, "*llm.ServerError", true},
		{503, "*llm.ServerError", true},
	}

	type retryable interface {
		IsRetryable() bool
	}

	for _, tc := range cases {
		err := ErrorFromStatusCode(tc.status, "boom", "test", "", nil, nil)
		r, ok := err.(retryable)
		if !ok {
			t.Fatalf("status %d: error does not report retryability", tc.status)
		}
		if r.IsRetryable() != tc.retryable {
			t.Errorf("status %d: IsRetryable() = %v, want %v", tc.status, r.IsRetryable(), tc.retryable)
		}
	}
}

func TestErrorFromStatusCodeUnknownIsRetryable(t *testing.T) {
	err := ErrorFromStatusCode(418, "teapot", "test", "", nil, nil)
	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatal("expected a ProviderError for unknown status")
	}
	if !pe.IsRetryable() {
		t.Error("unknown status codes should default to retryable")
	}
}

func TestErrorsAsUpcast(t *testing.T) {
	err := ErrorFromStatusCode(429, "slow down", "test", "rate_limited", nil, nil)

	var rle *RateLimitError
	if !errors.As(err, &rle) {
		t.Fatal("expected RateLimitError")
	}

	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatal("expected ProviderError via As")
	}
	if pe.StatusCode != 429 || pe.ErrorCode != "rate_limited" {
		t.Errorf("provider error = %+v", pe)
	}

	var sdk *SDKError
	if !errors.As(err, &sdk) {
		t.Fatal("expected SDKError via As")
	}
	if sdk.Message != "slow down" {
		t.Errorf("message = %q", sdk.Message)
	}
}

func TestNotFoundErrorForUnknownModel(t *testing.T) {
	err := ErrorFromStatusCode(404, "model not found", "chat-compat", "model_not_found", nil, nil)
	var nfe *NotFoundError
	if !errors.As(err, &nfe) {
		t.Fatal("expected NotFoundError for 404")
	}
	if nfe.IsRetryable() {
		t.Error("404 must not be retryable at this layer")
	}
}

func TestSDKErrorWrapping(t *testing.T) {
	cause := errors.New("connection reset")
	err := &NetworkError{SDKError: SDKError{Message: "network failure", Cause: cause}}

	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause")
	}
	if err.Error() != "network failure: connection reset" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !err.IsRetryable() {
		t.Error("network errors are retryable")
	}
}

func TestAbortErrorDistinctFromStreamError(t *testing.T) {
	abort := &AbortError{SDKError: SDKError{Message: "cancelled"}}
	stream := &StreamError{SDKError: SDKError{Message: "stream broke"}}

	if abort.IsRetryable() {
		t.Error("abort must not be retryable")
	}
	if !stream.IsRetryable() {
		t.Error("stream errors are retryable")
	}
}
