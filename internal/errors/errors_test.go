package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		checkFn  func(error) bool
		expected bool
	}{
		{
			name:     "ErrNotFound is recognized",
			err:      ErrNotFound,
			checkFn:  IsNotFound,
			expected: true,
		},
		{
			name:     "Wrapped ErrNotFound is recognized",
			err:      errors.Join(ErrNotFound, errors.New("additional context")),
			checkFn:  IsNotFound,
			expected: true,
		},
		{
			name:     "Different error is not ErrNotFound",
			err:      ErrDecode,
			checkFn:  IsNotFound,
			expected: false,
		},
		{
			name:     "ErrStaleToken is recognized",
			err:      ErrStaleToken,
			checkFn:  IsStaleToken,
			expected: true,
		},
		{
			name:     "Plain error is not remote",
			err:      ErrDecode,
			checkFn:  IsRemote,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.checkFn(tt.err)
			if result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestRemoteError_StatusMapping(t *testing.T) {
	tests := []struct {
		name      string
		err       *RemoteError
		notFound  bool
		stale     bool
		wantError string
	}{
		{
			name:      "404 maps to not found",
			err:       NewRemoteError("get_profile", 404, `{"message":"Not found"}`, nil),
			notFound:  true,
			wantError: `get_profile: unexpected status 404: {"message":"Not found"}`,
		},
		{
			name:      "400 invalid reply token maps to stale token",
			err:       NewRemoteError("reply", 400, `{"message":"Invalid reply token"}`, nil),
			stale:     true,
			wantError: `reply: unexpected status 400: {"message":"Invalid reply token"}`,
		},
		{
			name:      "other 400 is neither",
			err:       NewRemoteError("reply", 400, `{"message":"The request body has 1 error(s)"}`, nil),
			wantError: `reply: unexpected status 400: {"message":"The request body has 1 error(s)"}`,
		},
		{
			name:      "transport error",
			err:       NewRemoteError("push", 0, "", errors.New("context deadline exceeded")),
			wantError: "push: request failed: context deadline exceeded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("handler: %w", tt.err)
			if got := IsNotFound(wrapped); got != tt.notFound {
				t.Errorf("IsNotFound() = %v, want %v", got, tt.notFound)
			}
			if got := IsStaleToken(wrapped); got != tt.stale {
				t.Errorf("IsStaleToken() = %v, want %v", got, tt.stale)
			}
			if !IsRemote(wrapped) {
				t.Error("IsRemote() = false, want true")
			}
			if tt.err.Error() != tt.wantError {
				t.Errorf("Error() = %q, want %q", tt.err.Error(), tt.wantError)
			}
		})
	}
}

func TestRemoteError_Unwrap(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := NewRemoteError("reply", 0, "", cause)

	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the underlying cause")
	}
}
