// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/garyellow/line-webhook-bridge/internal/buildinfo"
	"github.com/garyellow/line-webhook-bridge/internal/config"
	"github.com/garyellow/line-webhook-bridge/internal/ctxutil"
	"github.com/garyellow/line-webhook-bridge/internal/dispatch"
	"github.com/garyellow/line-webhook-bridge/internal/lineapi"
	"github.com/garyellow/line-webhook-bridge/internal/logger"
	"github.com/garyellow/line-webhook-bridge/internal/login"
	"github.com/garyellow/line-webhook-bridge/internal/metrics"
	"github.com/garyellow/line-webhook-bridge/internal/sentry"
	"github.com/garyellow/line-webhook-bridge/internal/storage"
	"github.com/garyellow/line-webhook-bridge/internal/webhook"
)

const serviceName = "line-webhook-bridge"

// Application manages the application lifecycle and dependencies.
type Application struct {
	cfg            *config.Config
	logger         *logger.Logger
	db             *storage.DB
	metrics        *metrics.Metrics
	registry       *prometheus.Registry
	lineClient     *lineapi.Client
	engine         *dispatch.Engine
	webhookHandler *webhook.Handler
	loginHandler   *login.Handler // nil when the login channel is not configured
	router         *gin.Engine
	server         *http.Server
	wg             sync.WaitGroup // Track background goroutines for graceful shutdown
}

// Initialize creates and initializes a new application with all dependencies.
func Initialize(ctx context.Context, cfg *config.Config) (*Application, error) {
	log := logger.NewWithOptions(cfg.LogLevel, os.Stdout, logger.Options{
		BetterStackToken: cfg.BetterStackToken,
	})

	log = log.WithField("service", serviceName)
	if host, err := os.Hostname(); err == nil && host != "" {
		log = log.WithField("instance_id", host)
	}

	// Package-level slog.*Context() calls (storage) go through the same
	// handler chain and pick up context values.
	slog.SetDefault(log.Logger)

	log.WithField("version", buildinfo.Release()).Info("Initializing application...")
	if cfg.BetterStackToken != "" {
		log.Info("Better Stack logging enabled")
	}

	if err := sentry.Initialize(sentry.Config{
		Token:       cfg.SentryToken,
		Host:        cfg.SentryHost,
		Environment: cfg.SentryEnv,
		Release:     buildinfo.Release(),
	}); err != nil {
		log.WithError(err).Warn("Sentry initialization failed; error reporting disabled")
	} else if sentry.IsEnabled() {
		log.Info("Sentry error reporting enabled")
	}

	db, err := storage.New(ctx, cfg.SQLitePath())
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	log.WithField("path", db.Path()).Info("Database connected")

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewBuildInfoCollector(),
	)
	m := metrics.New(registry)

	app, err := build(cfg, log, db, registry, m)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	log.Info("Initialization complete")
	return app, nil
}

// build wires handlers and the router around already opened resources.
func build(cfg *config.Config, log *logger.Logger, db *storage.DB, registry *prometheus.Registry, m *metrics.Metrics) (*Application, error) {
	lineClient, err := lineapi.New(lineapi.Config{
		ChannelToken: cfg.LineChannelToken,
		Endpoint:     cfg.LineAPIEndpoint,
		Timeout:      cfg.LineAPITimeout,
		Metrics:      m,
	})
	if err != nil {
		return nil, fmt.Errorf("line client: %w", err)
	}

	engine := dispatch.NewEngine(lineClient, log, m)

	webhookHandler := webhook.NewHandler(webhook.HandlerConfig{
		ChannelSecret:       cfg.LineChannelSecret,
		Dispatcher:          engine,
		Metrics:             m,
		Logger:              log,
		MaxEventsPerWebhook: cfg.MaxEventsPerWebhook,
		MaxBodyBytes:        cfg.MaxWebhookBodyBytes,
	})
	if cfg.LineChannelSecret == "" {
		log.Warn("LINE_CHANNEL_SECRET not set; webhook signatures are not verified")
	}

	app := &Application{
		cfg:            cfg,
		logger:         log,
		db:             db,
		metrics:        m,
		registry:       registry,
		lineClient:     lineClient,
		engine:         engine,
		webhookHandler: webhookHandler,
	}

	if cfg.Login.Enabled() {
		app.loginHandler = login.NewHandler(login.HandlerConfig{
			Login:      cfg.Login,
			BotBasicID: cfg.LineBotBasicID,
			Store:      db,
			Pusher:     lineClient,
			Metrics:    m,
			Logger:     log,
		})
	} else {
		log.Info("LINE Login channel not configured; /login and /callback disabled")
	}

	app.router = app.newRouter()
	app.server = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           app.router,
		ReadHeaderTimeout: config.WebhookHTTPRead,
		ReadTimeout:       config.WebhookHTTPRead,
		WriteTimeout:      config.WebhookHTTPWrite,
		IdleTimeout:       config.WebhookHTTPIdle,
	}

	return app, nil
}

func (a *Application) newRouter() *gin.Engine {
	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	router.Use(securityHeadersMiddleware())
	router.Use(loggingMiddleware(a.logger))

	router.GET("/", a.index)
	router.GET("/livez", a.livenessCheck)
	router.HEAD("/livez", a.livenessCheck)
	router.GET("/readyz", a.readinessCheck)
	router.HEAD("/readyz", a.readinessCheck)
	router.POST("/webhook", a.webhookHandler.Handle)
	if a.loginHandler != nil {
		router.GET("/login", a.loginHandler.Login)
		router.GET("/callback", a.loginHandler.Callback)
	}
	router.GET("/metrics",
		metricsAuthMiddleware(a.cfg.MetricsAuthEnabled(), a.cfg.MetricsUsername, a.cfg.MetricsPassword),
		gin.WrapH(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})))

	return router
}

func (a *Application) index(c *gin.Context) {
	c.String(http.StatusOK, serviceName+" is running")
}

func (a *Application) livenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
	})
}

func (a *Application) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), config.ReadinessCheckTimeout)
	defer cancel()

	if err := a.db.Ping(ctx); err != nil {
		a.logger.WithError(err).Warn("Readiness check failed: database unavailable")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "database unavailable",
		})
		return
	}

	bindings, err := a.db.CountBindings(ctx)
	if err != nil {
		a.logger.WithError(err).Warn("Failed to count bindings for readiness")
		bindings = -1
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "ready",
		"database": "connected",
		"bindings": bindings,
		"features": gin.H{
			"signature_verification": a.cfg.LineChannelSecret != "",
			"login":                  a.loginHandler != nil,
			"error_reporting":        sentry.IsEnabled(),
		},
	})
}

// Run starts the HTTP server and background jobs and blocks until a
// shutdown signal arrives or the server fails.
//
// Shutdown order: cancel background jobs and wait for them, stop the HTTP
// server, drain in-flight webhook batches, then close the database.
func (a *Application) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.startBackgroundJobs(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.WithField("port", a.cfg.Port).Info("Starting HTTP server")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		if ctx.Err() != nil {
			a.logger.Info("Received shutdown signal")
		}
		stop()

		a.logger.Info("Waiting for background jobs to finish...")
		start := time.Now()
		a.wg.Wait()
		a.logger.WithField("duration_ms", time.Since(start).Milliseconds()).
			Info("All background jobs completed")

		return a.shutdown()
	})

	return g.Wait()
}

// startBackgroundJobs starts all background goroutines tracked by WaitGroup.
func (a *Application) startBackgroundJobs(ctx context.Context) {
	a.wg.Go(func() {
		a.updateBindingMetrics(ctx)
	})
}

// shutdown performs graceful shutdown of HTTP server and resources.
// It must run after background jobs have stopped.
func (a *Application) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	a.logger.Info("Stopping HTTP server...")
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Error("HTTP server shutdown error")
	}

	a.logger.Info("Waiting for webhook events to complete...")
	if err := a.webhookHandler.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Warn("Webhook handler shutdown timeout")
	}

	a.logger.Info("Closing resources...")
	if err := a.db.Close(); err != nil {
		a.logger.WithError(err).WithField("component", "database").Error("Component close error")
	}

	if sentry.IsEnabled() && !sentry.Flush(2*time.Second) {
		a.logger.Warn("Sentry flush timed out")
	}

	if err := a.logger.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Warn("Logger shutdown timed out")
	}

	a.logger.Info("Shutdown complete")
	return nil
}

// updateBindingMetrics periodically records the number of stored bindings.
func (a *Application) updateBindingMetrics(ctx context.Context) {
	a.logger.Debug("Binding metrics job started")
	defer a.logger.Debug("Binding metrics job stopped")

	a.recordBindingMetrics(ctx)

	ticker := time.NewTicker(config.MetricsUpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.recordBindingMetrics(ctx)
		}
	}
}

func (a *Application) recordBindingMetrics(ctx context.Context) {
	if a.metrics == nil {
		return
	}

	count, err := a.db.CountBindings(ctx)
	if err != nil {
		if ctx.Err() == nil {
			a.logger.WithError(err).Warn("Failed to count bindings")
		}
		return
	}
	a.metrics.SetBindings(count)
}

// securityHeadersMiddleware adds security headers to responses.
func securityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Content-Security-Policy", "default-src 'none'")
		c.Next()
	}
}

// loggingMiddleware logs HTTP requests with status-based log levels:
// 5xx=Error, 4xx=Warn, 404=Debug, 3xx/2xx=Debug.
func loggingMiddleware(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		requestID := c.GetHeader("X-Request-Id")
		if requestID == "" {
			requestID = c.GetHeader("X-Correlation-Id")
		}
		if requestID != "" {
			ctx := ctxutil.WithRequestID(c.Request.Context(), requestID)
			c.Request = c.Request.WithContext(ctx)
		}

		c.Next()

		status := c.Writer.Status()
		entry := log.WithField("http_method", method).
			WithField("http_path", path).
			WithField("http_status", status).
			WithField("duration_ms", time.Since(start).Milliseconds()).
			WithField("client_ip", c.ClientIP())

		if requestID != "" {
			entry = entry.WithRequestID(requestID)
		}

		switch {
		case status >= 500:
			entry.Error("HTTP request failed")
		case status == http.StatusNotFound:
			entry.Debug("HTTP request not found")
		case status >= 400:
			entry.Warn("HTTP request rejected")
		default:
			entry.Debug("HTTP request completed")
		}
	}
}
