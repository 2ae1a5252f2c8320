// Package login completes the LINE Login handshake that binds a LINE user
// to an internal account identified by tax id and device id.
package login

import (
	"fmt"
	"strings"

	domerrors "github.com/garyellow/line-webhook-bridge/internal/errors"
)

const stateSeparator = "-"

// ParseState splits an OAuth state of the form "{taxId}-{deviceId}" on the
// first separator. The device id may itself contain separators.
func ParseState(state string) (taxID, deviceID string, err error) {
	taxID, deviceID, ok := strings.Cut(state, stateSeparator)
	if !ok || taxID == "" || deviceID == "" {
		return "", "", fmt.Errorf("%w: %q", domerrors.ErrInvalidState, state)
	}
	return taxID, deviceID, nil
}

// ComposeState is the inverse of ParseState. A tax id containing the
// separator could not be parsed back and is rejected.
func ComposeState(taxID, deviceID string) (string, error) {
	if taxID == "" || deviceID == "" || strings.Contains(taxID, stateSeparator) {
		return "", fmt.Errorf("%w: tax id %q, device id %q", domerrors.ErrInvalidState, taxID, deviceID)
	}
	return taxID + stateSeparator + deviceID, nil
}
