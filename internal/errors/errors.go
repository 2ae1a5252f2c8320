// Package errors provides the error taxonomy shared by the webhook
// dispatcher, the LINE API client and the login flow.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Sentinel errors for common scenarios.
// Use errors.Is() to check these errors in your code.
var (
	// ErrDecode indicates a webhook body could not be decoded.
	ErrDecode = errors.New("malformed webhook body")

	// ErrInvalidSignature indicates the X-Line-Signature header did not match the body.
	ErrInvalidSignature = errors.New("invalid webhook signature")

	// ErrNotFound indicates a requested resource was not found.
	ErrNotFound = errors.New("resource not found")

	// ErrStaleToken indicates a reply token was already used or has expired.
	ErrStaleToken = errors.New("reply token expired or already used")

	// ErrInvalidState indicates a login callback carried a malformed state parameter.
	ErrInvalidState = errors.New("invalid login state")
)

// staleTokenMarker is the message LINE returns for an unusable reply token.
const staleTokenMarker = "Invalid reply token"

// RemoteError represents a failed outbound call to the LINE platform.
// Status is 0 when no HTTP response was received (transport error, timeout).
type RemoteError struct {
	Operation string
	Status    int
	Body      string
	Err       error
}

func (e *RemoteError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: request failed: %v", e.Operation, e.Err)
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Operation, e.Status, e.Body)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// Is maps remote statuses onto the sentinel errors so callers can use errors.Is.
func (e *RemoteError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrStaleToken:
		return e.Status == http.StatusBadRequest && strings.Contains(e.Body, staleTokenMarker)
	}
	return false
}

// NewRemoteError creates a new remote error.
func NewRemoteError(operation string, status int, body string, err error) *RemoteError {
	return &RemoteError{
		Operation: operation,
		Status:    status,
		Body:      body,
		Err:       err,
	}
}

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsStaleToken reports whether err is or wraps ErrStaleToken.
func IsStaleToken(err error) bool {
	return errors.Is(err, ErrStaleToken)
}

// IsRemote reports whether err is or wraps a *RemoteError.
func IsRemote(err error) bool {
	var remote *RemoteError
	return errors.As(err, &remote)
}
