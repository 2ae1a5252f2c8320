package login

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	domerrors "github.com/garyellow/line-webhook-bridge/internal/errors"
	"github.com/garyellow/line-webhook-bridge/internal/lineapi"
	"github.com/garyellow/line-webhook-bridge/internal/metrics"
)

const (
	opToken  = "token"
	opVerify = "verify"
)

// maxResponseBody bounds how much of a verify response is read.
const maxResponseBody = 64 << 10

type verifyResponse struct {
	Sub  string `json:"sub"`
	Name string `json:"name"`
}

// verifier resolves an ID token to the LINE user id through the verify endpoint.
type verifier struct {
	client    *http.Client
	verifyURL string
	clientID  string
	metrics   *metrics.Metrics
}

func (v *verifier) Verify(ctx context.Context, idToken string) (string, error) {
	start := time.Now()
	sub, err := v.verify(ctx, idToken)
	recordCall(v.metrics, opVerify, start, err)
	return sub, err
}

func (v *verifier) verify(ctx context.Context, idToken string) (string, error) {
	form := url.Values{
		"id_token":  {idToken},
		"client_id": {v.clientID},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build verify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := v.client.Do(req)
	if err != nil {
		return "", domerrors.NewRemoteError(opVerify, 0, "", err)
	}
	defer func() { _ = res.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBody))
	if err != nil {
		return "", domerrors.NewRemoteError(opVerify, 0, "", err)
	}
	if res.StatusCode/100 != 2 {
		return "", domerrors.NewRemoteError(opVerify, res.StatusCode, strings.TrimSpace(string(body)), nil)
	}

	var payload verifyResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("decode verify response: %w", err)
	}
	if payload.Sub == "" {
		return "", errors.New("verify response has no subject")
	}
	return payload.Sub, nil
}

func recordCall(m *metrics.Metrics, op string, start time.Time, err error) {
	if m != nil {
		m.RecordLineAPI(op, lineapi.StatusLabel(err), time.Since(start).Seconds())
	}
}
