package login

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"

	"github.com/garyellow/line-webhook-bridge/internal/config"
	"github.com/garyellow/line-webhook-bridge/internal/ctxutil"
	domerrors "github.com/garyellow/line-webhook-bridge/internal/errors"
	"github.com/garyellow/line-webhook-bridge/internal/logger"
	"github.com/garyellow/line-webhook-bridge/internal/metrics"
	"github.com/garyellow/line-webhook-bridge/internal/sentry"
	"github.com/garyellow/line-webhook-bridge/internal/storage"
)

// Callback results recorded in linebridge_login_callbacks_total.
const (
	resultSuccess        = "success"
	resultDenied         = "denied"
	resultInvalidRequest = "invalid_request"
	resultExchangeError  = "exchange_error"
	resultVerifyError    = "verify_error"
	resultStoreError     = "store_error"
)

// Endpoints are the LINE Login URLs.
type Endpoints struct {
	AuthURL   string
	TokenURL  string
	VerifyURL string
}

// LINEEndpoints are the production LINE Login v2.1 endpoints.
var LINEEndpoints = Endpoints{
	AuthURL:   "https://access.line.me/oauth2/v2.1/authorize",
	TokenURL:  "https://api.line.me/oauth2/v2.1/token",
	VerifyURL: "https://api.line.me/oauth2/v2.1/verify",
}

// BindingStore persists account bindings.
type BindingStore interface {
	GetBinding(ctx context.Context, taxID, deviceID string) (*storage.Binding, error)
	SaveBinding(ctx context.Context, b *storage.Binding) error
}

// Pusher sends a message to a LINE user without a reply token.
type Pusher interface {
	PushMessage(ctx context.Context, userID, text string) error
}

// HandlerConfig holds configuration for creating a new Handler
type HandlerConfig struct {
	Login      config.LoginConfig
	BotBasicID string
	// Endpoints overrides LINEEndpoints when non-zero.
	Endpoints Endpoints
	Timeout   time.Duration
	Store     BindingStore
	Pusher    Pusher
	Metrics   *metrics.Metrics
	Logger    *logger.Logger
}

// Handler serves /login and /callback.
type Handler struct {
	oauth      *oauth2.Config
	verifier   *verifier
	httpClient *http.Client
	store      BindingStore
	pusher     Pusher
	metrics    *metrics.Metrics
	logger     *logger.Logger

	deepLink       string
	fallbackURL    string
	successMessage string
}

// NewHandler creates a login handler.
func NewHandler(cfg HandlerConfig) *Handler {
	endpoints := cfg.Endpoints
	if endpoints == (Endpoints{}) {
		endpoints = LINEEndpoints
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.LoginRequest
	}
	httpClient := &http.Client{Timeout: timeout}

	return &Handler{
		oauth: &oauth2.Config{
			ClientID:     cfg.Login.ChannelID,
			ClientSecret: cfg.Login.ChannelSecret,
			RedirectURL:  cfg.Login.CallbackURL,
			Scopes:       []string{"openid", "profile"},
			Endpoint: oauth2.Endpoint{
				AuthURL:   endpoints.AuthURL,
				TokenURL:  endpoints.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		verifier: &verifier{
			client:    httpClient,
			verifyURL: endpoints.VerifyURL,
			clientID:  cfg.Login.ChannelID,
			metrics:   cfg.Metrics,
		},
		httpClient:     httpClient,
		store:          cfg.Store,
		pusher:         cfg.Pusher,
		metrics:        cfg.Metrics,
		logger:         cfg.Logger.WithModule("login"),
		deepLink:       "line://ti/p/" + cfg.BotBasicID,
		fallbackURL:    cfg.Login.FallbackURL,
		successMessage: cfg.Login.SuccessMessage,
	}
}

// Login redirects the browser to the LINE authorize page for the account
// given by the taxId and deviceId query parameters.
func (h *Handler) Login(c *gin.Context) {
	state, err := ComposeState(c.Query("taxId"), c.Query("deviceId"))
	if err != nil {
		h.logger.WithError(err).Debug("Rejected login request")
		c.String(http.StatusBadRequest, "taxId and deviceId are required")
		return
	}
	c.Redirect(http.StatusFound, h.oauth.AuthCodeURL(state))
}

// Callback completes the authorization code flow. Every failure before the
// binding is stored redirects to the fallback URL; a failed confirmation
// push after the binding is only logged.
func (h *Handler) Callback(c *gin.Context) {
	ctx := c.Request.Context()
	log := h.logger

	if reason := c.Query("error"); reason != "" {
		log.WithField("error_code", reason).
			WithField("error_description", c.Query("error_description")).
			Info("Login was not authorized")
		h.fail(c, resultDenied)
		return
	}

	code := c.Query("code")
	if code == "" {
		log.Warn("Login callback without authorization code")
		h.fail(c, resultInvalidRequest)
		return
	}
	taxID, deviceID, err := ParseState(c.Query("state"))
	if err != nil {
		log.WithError(err).Warn("Invalid login callback state")
		h.fail(c, resultInvalidRequest)
		return
	}
	log = log.WithFields(map[string]any{"tax_id": taxID, "device_id": deviceID})

	// 1. Exchange the code for tokens
	ctx = context.WithValue(ctx, oauth2.HTTPClient, h.httpClient)
	start := time.Now()
	tok, err := h.oauth.Exchange(ctx, code)
	recordCall(h.metrics, opToken, start, err)
	if err != nil {
		log.WithError(describeExchangeError(err)).Warn("Token exchange failed")
		h.fail(c, resultExchangeError)
		return
	}
	idToken, _ := tok.Extra("id_token").(string)
	if idToken == "" {
		log.Warn("Token response has no id_token")
		h.fail(c, resultExchangeError)
		return
	}

	// 2. Resolve the LINE user id
	userID, err := h.verifier.Verify(ctx, idToken)
	if err != nil {
		log.WithError(err).Warn("ID token verification failed")
		h.fail(c, resultVerifyError)
		return
	}
	ctx = ctxutil.WithUserID(ctx, userID)

	// 3. Persist
	if prev, err := h.store.GetBinding(ctx, taxID, deviceID); err == nil {
		if prev.LineUserID != userID {
			log.WithField("previous_line_user_id", prev.LineUserID).
				InfoContext(ctx, "Rebinding account to a different LINE user")
		}
	} else if !domerrors.IsNotFound(err) {
		log.WithError(err).WarnContext(ctx, "Failed to look up existing binding")
	}

	binding := &storage.Binding{TaxID: taxID, DeviceID: deviceID, LineUserID: userID}
	if err := h.store.SaveBinding(ctx, binding); err != nil {
		log.WithError(err).ErrorContext(ctx, "Failed to store binding")
		sentry.CaptureExceptionWithContext(ctx, err, map[string]string{"operation": "save_binding"})
		h.fail(c, resultStoreError)
		return
	}
	log.InfoContext(ctx, "Account bound")

	// 4. Confirm to the user
	if err := h.pusher.PushMessage(ctx, userID, h.successMessage); err != nil {
		log.WithError(err).WarnContext(ctx, "Failed to push binding confirmation")
	}

	h.record(resultSuccess)
	c.Redirect(http.StatusFound, h.deepLink)
}

func (h *Handler) fail(c *gin.Context, result string) {
	h.record(result)
	c.Redirect(http.StatusFound, h.fallbackURL)
}

func (h *Handler) record(result string) {
	if h.metrics != nil {
		h.metrics.RecordLoginCallback(result)
	}
}

// describeExchangeError adds the token endpoint's status and body when available.
func describeExchangeError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
		return fmt.Errorf("token endpoint returned %d: %w", retrieveErr.Response.StatusCode, err)
	}
	return err
}
