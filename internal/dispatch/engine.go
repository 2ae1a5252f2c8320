// Package dispatch routes webhook events to their handlers.
//
// Every event is resolved through a single table keyed by
// (source type, event type). Pairs missing from the table are ignored,
// which mirrors the platform: a follow never arrives from a group, a
// memberJoined never arrives from a one-to-one chat.
package dispatch

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/garyellow/line-webhook-bridge/internal/ctxutil"
	domerrors "github.com/garyellow/line-webhook-bridge/internal/errors"
	"github.com/garyellow/line-webhook-bridge/internal/event"
	"github.com/garyellow/line-webhook-bridge/internal/lineapi"
	"github.com/garyellow/line-webhook-bridge/internal/logger"
	"github.com/garyellow/line-webhook-bridge/internal/metrics"
	"github.com/garyellow/line-webhook-bridge/internal/sentry"
)

// Messenger is the subset of the LINE client the handlers use.
type Messenger interface {
	ReplyMessage(ctx context.Context, replyToken, text string) error
	GetUserProfile(ctx context.Context, userID string) (*lineapi.UserProfile, error)
}

type handlerFunc func(ctx context.Context, ev event.Event) error

// RouteKey identifies one legal (source, event type) combination.
type RouteKey struct {
	Source event.SourceType
	Type   event.Type
}

func (k RouteKey) String() string {
	return string(k.Source) + "/" + string(k.Type)
}

// Engine is stateless after construction and safe for concurrent use.
type Engine struct {
	messenger Messenger
	logger    *logger.Logger
	metrics   *metrics.Metrics
	routes    map[RouteKey]handlerFunc
}

// NewEngine builds an engine and its route table.
func NewEngine(messenger Messenger, log *logger.Logger, m *metrics.Metrics) *Engine {
	e := &Engine{
		messenger: messenger,
		logger:    log.WithModule("dispatch"),
		metrics:   m,
	}
	e.routes = e.buildRoutes()
	return e
}

func (e *Engine) buildRoutes() map[RouteKey]handlerFunc {
	routes := map[RouteKey]handlerFunc{
		{event.SourceUser, event.TypeMessage}:     e.handleMessage,
		{event.SourceUser, event.TypeFollow}:      e.handleFollow,
		{event.SourceUser, event.TypeUnfollow}:    e.handleUnfollow,
		{event.SourceUser, event.TypePostback}:    e.handlePostback,
		{event.SourceUser, event.TypeBeacon}:      e.handleBeacon,
		{event.SourceUser, event.TypeAccountLink}: e.handleAccountLink,
	}

	// Rooms behave exactly like groups.
	for _, src := range []event.SourceType{event.SourceGroup, event.SourceRoom} {
		routes[RouteKey{src, event.TypeMessage}] = e.handleMessage
		routes[RouteKey{src, event.TypeJoin}] = e.handleJoin
		routes[RouteKey{src, event.TypeLeave}] = e.handleLeave
		routes[RouteKey{src, event.TypePostback}] = e.handlePostback
		routes[RouteKey{src, event.TypeBeacon}] = e.handleBeacon
		routes[RouteKey{src, event.TypeMemberJoined}] = e.handleMemberJoined
		routes[RouteKey{src, event.TypeMemberLeft}] = e.handleMemberLeft
	}

	return routes
}

// Routes returns every routed combination, sorted.
func (e *Engine) Routes() []RouteKey {
	keys := make([]RouteKey, 0, len(e.routes))
	for k := range e.routes {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b RouteKey) int {
		return strings.Compare(a.String(), b.String())
	})
	return keys
}

// Handles reports whether the pair has a handler.
func (e *Engine) Handles(src event.SourceType, typ event.Type) bool {
	_, ok := e.routes[RouteKey{src, typ}]
	return ok
}

// Dispatch runs the handler for ev, if any. It never panics and never
// returns an error: failures are logged, counted and reported here so
// the rest of the batch keeps going.
func (e *Engine) Dispatch(ctx context.Context, ev event.Event) {
	start := time.Now()
	sourceType, eventType := metricLabels(ev)

	log := e.logger.WithFields(map[string]any{
		"source_type": string(ev.Source.Type),
		"event_type":  string(ev.Type),
	})

	handler, ok := e.routes[RouteKey{ev.Source.Type, ev.Type}]
	if !ok {
		log.Debug("No handler for event; ignoring")
		e.record(sourceType, eventType, "ignored", start)
		return
	}

	if ev.Source.UserID != "" {
		ctx = ctxutil.WithUserID(ctx, ev.Source.UserID)
	}
	if chatID := ev.Source.ChatID(); chatID != "" {
		ctx = ctxutil.WithChatID(ctx, chatID)
	}
	if ev.WebhookEventID != "" {
		ctx = ctxutil.WithEventID(ctx, ev.WebhookEventID)
	}

	err := e.run(ctx, handler, ev)
	if err == nil {
		e.record(sourceType, eventType, "success", start)
		log.WithField("duration_ms", time.Since(start).Milliseconds()).Debug("Event handled")
		return
	}

	e.record(sourceType, eventType, "error", start)
	log = log.WithError(err).WithField("is_redelivery", ev.IsRedelivery())
	if domerrors.IsNotFound(err) || domerrors.IsStaleToken(err) {
		log.WarnContext(ctx, "Event handling aborted")
		return
	}
	log.ErrorContext(ctx, "Failed to handle event")
	sentry.CaptureExceptionWithContext(ctx, err, map[string]string{
		"source_type": sourceType,
		"event_type":  eventType,
	})
}

func (e *Engine) run(ctx context.Context, handler handlerFunc, ev event.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s handler: %v", ev.Type, r)
		}
	}()
	return handler(ctx, ev)
}

// metricLabels bounds label values to the known variants; anything else in
// a delivery body is counted as unknown source or other type.
func metricLabels(ev event.Event) (sourceType, eventType string) {
	sourceType, eventType = "unknown", "other"
	if ev.Source.Type.Known() {
		sourceType = string(ev.Source.Type)
	}
	if ev.Type.Known() {
		eventType = string(ev.Type)
	}
	return sourceType, eventType
}

func (e *Engine) record(sourceType, eventType, status string, start time.Time) {
	if e.metrics != nil {
		e.metrics.RecordEvent(sourceType, eventType, status, time.Since(start).Seconds())
	}
}
