// Package lineapi is the outbound side of the bridge: reply, push and
// profile lookups against the LINE Messaging API.
package lineapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"

	"github.com/garyellow/line-webhook-bridge/internal/config"
	domerrors "github.com/garyellow/line-webhook-bridge/internal/errors"
	"github.com/garyellow/line-webhook-bridge/internal/metrics"
)

// Operation names used in errors and metric labels.
const (
	OpReply      = "reply"
	OpPush       = "push"
	OpGetProfile = "get_profile"
)

// maxErrorBody bounds how much of a failed response is kept in a RemoteError.
const maxErrorBody = 4 << 10

// UserProfile is a LINE user's public profile.
type UserProfile struct {
	UserID        string
	DisplayName   string
	PictureURL    string
	StatusMessage string
}

// Config configures a Client.
type Config struct {
	ChannelToken string
	// Endpoint overrides the API base URL (tests, proxies). Empty means the SDK default.
	Endpoint string
	Timeout  time.Duration
	Metrics  *metrics.Metrics
}

// Client is safe for concurrent use and meant to be shared process-wide.
// The SDK keeps its context on the instance, so per-call deadlines come
// from the HTTP client timeout rather than from ctx.
type Client struct {
	api     *messaging_api.MessagingApiAPI
	metrics *metrics.Metrics
}

// New creates a Client with a dedicated HTTP client.
func New(cfg Config) (*Client, error) {
	httpClient := &http.Client{Timeout: cfg.Timeout}

	opts := []messaging_api.MessagingApiAPIOption{
		messaging_api.WithHTTPClient(httpClient),
	}
	if cfg.Endpoint != "" {
		opts = append(opts, messaging_api.WithEndpoint(cfg.Endpoint))
	}

	api, err := messaging_api.NewMessagingApiAPI(cfg.ChannelToken, opts...)
	if err != nil {
		return nil, fmt.Errorf("create messaging API client: %w", err)
	}

	return &Client{api: api, metrics: cfg.Metrics}, nil
}

// ReplyMessage answers an event through its reply token with one text message.
func (c *Client) ReplyMessage(ctx context.Context, replyToken, text string) error {
	if err := ctx.Err(); err != nil {
		return domerrors.NewRemoteError(OpReply, 0, "", err)
	}

	start := time.Now()
	res, _, err := c.api.ReplyMessageWithHttpInfo(&messaging_api.ReplyMessageRequest{
		ReplyToken: replyToken,
		Messages:   textMessages(text),
	})
	return c.finish(OpReply, start, res, err)
}

// PushMessage sends one text message to a user. A fresh retry key is sent
// with every call; the call itself is never retried.
func (c *Client) PushMessage(ctx context.Context, userID, text string) error {
	if err := ctx.Err(); err != nil {
		return domerrors.NewRemoteError(OpPush, 0, "", err)
	}

	start := time.Now()
	res, _, err := c.api.PushMessageWithHttpInfo(&messaging_api.PushMessageRequest{
		To:       userID,
		Messages: textMessages(text),
	}, uuid.NewString())
	return c.finish(OpPush, start, res, err)
}

// GetUserProfile fetches a user's profile. A missing user yields an error
// matching errors.ErrNotFound.
func (c *Client) GetUserProfile(ctx context.Context, userID string) (*UserProfile, error) {
	if err := ctx.Err(); err != nil {
		return nil, domerrors.NewRemoteError(OpGetProfile, 0, "", err)
	}

	start := time.Now()
	res, profile, err := c.api.GetProfileWithHttpInfo(userID)
	if err := c.finish(OpGetProfile, start, res, err); err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, domerrors.NewRemoteError(OpGetProfile, res.StatusCode, "", errors.New("empty profile response"))
	}

	return &UserProfile{
		UserID:        profile.UserId,
		DisplayName:   profile.DisplayName,
		PictureURL:    profile.PictureUrl,
		StatusMessage: profile.StatusMessage,
	}, nil
}

// finish converts an SDK result into a RemoteError and records metrics.
func (c *Client) finish(op string, start time.Time, res *http.Response, err error) error {
	var remoteErr error
	if err != nil {
		remoteErr = toRemoteError(op, res, err)
	}
	if c.metrics != nil {
		c.metrics.RecordLineAPI(op, StatusLabel(remoteErr), time.Since(start).Seconds())
	}
	return remoteErr
}

func toRemoteError(op string, res *http.Response, err error) error {
	if res == nil {
		return domerrors.NewRemoteError(op, 0, "", err)
	}

	// The SDK restores the body of non-2xx responses before returning.
	var body string
	if res.Body != nil {
		data, readErr := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		_ = res.Body.Close()
		if readErr == nil {
			body = strings.TrimSpace(string(data))
		}
	}
	return domerrors.NewRemoteError(op, res.StatusCode, body, err)
}

// StatusLabel maps an outbound call result to its metric status label.
func StatusLabel(err error) string {
	var netErr net.Error
	switch {
	case err == nil:
		return "success"
	case domerrors.IsNotFound(err):
		return "not_found"
	case domerrors.IsStaleToken(err):
		return "stale_token"
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return "timeout"
	default:
		return "error"
	}
}

// textMessages wraps text as a single text message, cut to the API's
// per-message character limit.
func textMessages(text string) []messaging_api.MessageInterface {
	if r := []rune(text); len(r) > config.LINEMaxTextMessageLength {
		text = string(r[:config.LINEMaxTextMessageLength])
	}
	return []messaging_api.MessageInterface{
		&messaging_api.TextMessage{Text: text},
	}
}
