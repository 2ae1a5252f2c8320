// Package webhook receives LINE webhook deliveries and hands each event to
// the dispatcher in the background.
package webhook

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/garyellow/line-webhook-bridge/internal/config"
	"github.com/garyellow/line-webhook-bridge/internal/ctxutil"
	"github.com/garyellow/line-webhook-bridge/internal/event"
	"github.com/garyellow/line-webhook-bridge/internal/logger"
	"github.com/garyellow/line-webhook-bridge/internal/metrics"
)

// SignatureHeader carries the HMAC-SHA256 of the request body.
const SignatureHeader = "X-Line-Signature"

// Delivery outcomes recorded in linebridge_webhook_batches_total.
const (
	statusAccepted         = "accepted"
	statusInvalidSignature = "invalid_signature"
	statusDecodeError      = "decode_error"
	statusReadError        = "read_error"
)

// Dispatcher handles one decoded event. It must not panic.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev event.Event)
}

// Handler handles LINE webhook deliveries
type Handler struct {
	channelSecret string
	dispatcher    Dispatcher
	metrics       *metrics.Metrics
	logger        *logger.Logger
	wg            sync.WaitGroup // tracks background batches

	maxEventsPerWebhook int
	maxBodyBytes        int64
	batchTimeout        time.Duration
}

// HandlerConfig holds configuration for creating a new Handler
type HandlerConfig struct {
	// ChannelSecret enables signature verification when non-empty.
	ChannelSecret       string
	Dispatcher          Dispatcher
	Metrics             *metrics.Metrics
	Logger              *logger.Logger
	MaxEventsPerWebhook int
	MaxBodyBytes        int64
}

// NewHandler creates a new webhook handler.
func NewHandler(cfg HandlerConfig) *Handler {
	maxEvents := cfg.MaxEventsPerWebhook
	if maxEvents <= 0 {
		maxEvents = config.LINEMaxEventsPerWebhook
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = config.LINEMaxWebhookBodyBytes
	}

	return &Handler{
		channelSecret:       cfg.ChannelSecret,
		dispatcher:          cfg.Dispatcher,
		metrics:             cfg.Metrics,
		logger:              cfg.Logger.WithModule("webhook"),
		maxEventsPerWebhook: maxEvents,
		maxBodyBytes:        maxBody,
		batchTimeout:        config.WebhookBatchProcessing,
	}
}

// Handle is the Gin handler for the webhook endpoint. It always answers
// 200 OK with an empty body: LINE redelivers the whole batch on any other
// status, so rejected or failing deliveries are only logged.
func (h *Handler) Handle(c *gin.Context) {
	requestID, ok := ctxutil.GetRequestID(c.Request.Context())
	if !ok || requestID == "" {
		requestID = uuid.NewString()
	}
	log := h.logger.WithRequestID(requestID)

	// 1. Read and authenticate the raw body
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			log.WithField("limit", tooLarge.Limit).Warn("Webhook body too large; dropping delivery")
		} else {
			log.WithError(err).Warn("Failed to read webhook body; dropping delivery")
		}
		h.recordBatch(statusReadError, 0)
		c.Status(http.StatusOK)
		return
	}

	if h.channelSecret != "" {
		if err := event.ValidateSignature(h.channelSecret, c.GetHeader(SignatureHeader), body); err != nil {
			log.WithError(err).Warn("Invalid webhook signature; dropping delivery")
			h.recordBatch(statusInvalidSignature, 0)
			c.Status(http.StatusOK)
			return
		}
	}

	// 2. Decode
	cb, err := event.ParseCallback(body)
	if err != nil {
		log.WithError(err).Warn("Failed to decode webhook body; dropping delivery")
		h.recordBatch(statusDecodeError, 0)
		c.Status(http.StatusOK)
		return
	}

	if len(cb.Events) > h.maxEventsPerWebhook {
		log.WithField("event_count", len(cb.Events)).
			WithField("limit", h.maxEventsPerWebhook).
			Warn("Too many events in webhook batch; truncating")
		cb.Events = cb.Events[:h.maxEventsPerWebhook]
	}
	h.recordBatch(statusAccepted, len(cb.Events))

	// 3. Answer before doing any work
	c.Status(http.StatusOK)

	if len(cb.Events) == 0 {
		return
	}

	// Copy events so nothing is shared with the finished request
	events := make([]event.Event, len(cb.Events))
	copy(events, cb.Events)

	// The batch must outlive the request but keep its request id.
	ctx := ctxutil.PreserveTracing(ctxutil.WithRequestID(c.Request.Context(), requestID))

	h.wg.Go(func() {
		defer func() {
			if r := recover(); r != nil {
				log.WithField("panic", r).Error("Panic in async event processing")
			}
		}()

		h.processBatch(ctx, log, events)
	})
}

// processBatch dispatches events one at a time in delivery order.
func (h *Handler) processBatch(ctx context.Context, log *logger.Logger, events []event.Event) {
	ctx, cancel := context.WithTimeout(ctx, h.batchTimeout)
	defer cancel()

	start := time.Now()
	for _, ev := range events {
		h.dispatcher.Dispatch(ctx, ev)
	}

	log.WithField("event_count", len(events)).
		WithField("batch_duration_ms", time.Since(start).Milliseconds()).
		Debug("Webhook batch processed")
}

func (h *Handler) recordBatch(status string, events int) {
	if h.metrics != nil {
		h.metrics.RecordWebhookBatch(status, events)
	}
}

// Shutdown waits for all async event processing to complete.
// It returns an error if the context is canceled before completion.
func (h *Handler) Shutdown(ctx context.Context) error {
	c := make(chan struct{})
	go func() {
		defer close(c)
		h.wg.Wait()
	}()

	select {
	case <-c:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
