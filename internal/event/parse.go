package event

import (
	"encoding/json"
	"fmt"

	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"

	domerrors "github.com/garyellow/line-webhook-bridge/internal/errors"
)

// ParseCallback decodes a webhook body. Unknown event and source types
// decode without error; they are left for the dispatcher to ignore.
func ParseCallback(body []byte) (*Callback, error) {
	var cb Callback
	if err := json.Unmarshal(body, &cb); err != nil {
		return nil, fmt.Errorf("%w: %w", domerrors.ErrDecode, err)
	}
	return &cb, nil
}

// ValidateSignature checks the X-Line-Signature header against body.
func ValidateSignature(channelSecret, signature string, body []byte) error {
	if signature == "" || !webhook.ValidateSignature(channelSecret, signature, body) {
		return domerrors.ErrInvalidSignature
	}
	return nil
}
