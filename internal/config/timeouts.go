// Package config provides centralized timeout constants for the application.
//
// # LINE API Constraints
//
// LINE webhook has specific timing requirements:
//   - Reply token: single use, valid for a short window after the event
//   - Webhook response: LINE expects a quick 200 and redelivers the whole
//     batch on any other status
//
// The handler therefore answers first and processes the batch afterwards.
package config

import "time"

// Webhook timeouts
const (
	// WebhookHTTPRead is the HTTP server read timeout for webhook requests.
	// Should be short since LINE sends small JSON payloads.
	WebhookHTTPRead = 10 * time.Second

	// WebhookHTTPWrite is the HTTP server write timeout.
	WebhookHTTPWrite = 15 * time.Second

	// WebhookHTTPIdle is the HTTP server idle timeout for keep-alive connections.
	WebhookHTTPIdle = 120 * time.Second

	// WebhookBatchProcessing bounds a whole delivery's background processing.
	// Each outbound call is additionally bounded by LINEAPIRequest.
	WebhookBatchProcessing = 5 * time.Minute
)

// Outbound API timeouts
const (
	// LINEAPIRequest is the per-call timeout for Messaging API requests.
	// Expiry surfaces as a RemoteError with status 0.
	LINEAPIRequest = 10 * time.Second

	// LoginRequest is the per-call timeout for LINE Login token/verify requests.
	LoginRequest = 10 * time.Second
)

// Health
const (
	// ReadinessCheckTimeout bounds the database ping in /readyz.
	ReadinessCheckTimeout = 2 * time.Second

	// MetricsUpdateInterval is how often the bindings gauge is refreshed.
	MetricsUpdateInterval = time.Minute
)

// Graceful shutdown
const (
	// GracefulShutdown is the timeout for graceful server shutdown.
	// Allows in-flight deliveries to finish before forceful termination.
	GracefulShutdown = 30 * time.Second
)

// LINE API limits
const (
	// LINEMaxEventsPerWebhook caps how many events of a single delivery are processed.
	LINEMaxEventsPerWebhook = 100

	// LINEMaxWebhookBodyBytes caps the webhook body read into memory.
	LINEMaxWebhookBodyBytes = 1 << 20

	// LINEMaxTextMessageLength is the Messaging API limit for a text message.
	LINEMaxTextMessageLength = 5000
)
