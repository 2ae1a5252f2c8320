// Package config defines environment variable keys for configuration.
package config

//nolint:gosec,revive // Environment variable keys are not credentials and do not need per-const comments.
const (
	// Messaging API channel (required)
	EnvLineChannelAccessToken = "LINE_CHANNEL_ACCESS_TOKEN"
	EnvLineChannelSecret      = "LINE_CHANNEL_SECRET"
	EnvLineBotBasicID         = "LINE_BOT_BASIC_ID"
	EnvLineAPIEndpoint        = "LINE_API_ENDPOINT"
	EnvLineAPITimeout         = "LINE_API_TIMEOUT"

	// LINE Login channel
	EnvLoginChannelID     = "LINE_LOGIN_CHANNEL_ID"
	EnvLoginChannelSecret = "LINE_LOGIN_CHANNEL_SECRET"
	EnvLoginCallbackURL   = "LINE_LOGIN_CALLBACK_URL"
	EnvLoginFallbackURL   = "LOGIN_FALLBACK_URL"
	EnvLoginSuccessText   = "LOGIN_SUCCESS_MESSAGE"

	// Server
	EnvPort            = "PORT"
	EnvLogLevel        = "LOG_LEVEL"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	// Webhook
	EnvMaxEventsPerWebhook = "WEBHOOK_MAX_EVENTS"

	// Data
	EnvDataDir = "DATA_DIR"

	// Metrics Auth
	EnvMetricsUsername = "METRICS_USERNAME"
	EnvMetricsPassword = "METRICS_PASSWORD"

	// Better Stack logs
	EnvBetterStackToken = "BETTERSTACK_SOURCE_TOKEN"

	// Sentry (Better Stack errors)
	EnvSentryToken       = "SENTRY_TOKEN"
	EnvSentryHost        = "SENTRY_HOST"
	EnvSentryEnvironment = "SENTRY_ENVIRONMENT"
)
