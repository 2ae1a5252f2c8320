// Package sentry wires error reporting to a Sentry-compatible backend
// (Better Stack Errors). Everything here is a no-op until Initialize is
// called with a token.
package sentry

import (
	"context"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/garyellow/line-webhook-bridge/internal/ctxutil"
)

// Config holds Sentry configuration for Better Stack integration.
type Config struct {
	// Token is the Better Stack Errors application token.
	Token string

	// Host is the ingesting host (e.g., "errors.betterstack.com").
	Host string

	Environment string
	Release     string

	// SampleRate controls error sampling (0.0-1.0). Zero means 1.0.
	SampleRate float64

	Debug bool
}

// Initialize sets up the Sentry SDK.
// If Token is empty, Sentry stays disabled and nil is returned.
// The DSN is built as https://$TOKEN@$HOST/1.
func Initialize(cfg Config) error {
	if cfg.Token == "" {
		return nil
	}

	if cfg.Host == "" {
		return fmt.Errorf("sentry host is required when token is provided")
	}

	// The project ID (/1) is required by the SDK but ignored by Better Stack.
	dsn := fmt.Sprintf("https://%s@%s/1", cfg.Token, cfg.Host)

	sampleRate := cfg.SampleRate
	if sampleRate <= 0 {
		sampleRate = 1.0
	}

	return sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		SampleRate:       sampleRate,
		Debug:            cfg.Debug,
		AttachStacktrace: true,
	})
}

// Flush waits for buffered events to be sent.
// Returns true if all events were sent within the timeout.
func Flush(timeout time.Duration) bool {
	return sentry.Flush(timeout)
}

// IsEnabled reports whether a client is bound to the current hub.
func IsEnabled() bool {
	return sentry.CurrentHub().Client() != nil
}

// CaptureExceptionWithContext captures err on the hub bound to ctx (or the
// global hub) and tags it with the tracing identifiers stored in ctx.
func CaptureExceptionWithContext(ctx context.Context, err error, tags map[string]string) {
	if err == nil || !IsEnabled() {
		return
	}

	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}

	hub.WithScope(func(scope *sentry.Scope) {
		if id, ok := ctxutil.GetRequestID(ctx); ok {
			scope.SetTag("request_id", id)
		}
		if id := ctxutil.GetEventID(ctx); id != "" {
			scope.SetTag("webhook_event_id", id)
		}
		if id := ctxutil.GetChatID(ctx); id != "" {
			scope.SetTag("chat_id", id)
		}
		if id := ctxutil.GetUserID(ctx); id != "" {
			scope.SetUser(sentry.User{ID: id})
		}
		scope.SetTags(tags)
		hub.CaptureException(err)
	})
}
