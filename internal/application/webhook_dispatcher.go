package application

import (
	"context"
	"fmt"
	"strings"
	"time"

	"shopify-multishop-layer/internal/domain"
	"shopify-multishop-layer/internal/ports"

	"github.com/rs/zerolog"
)

// Result is the outcome of handling one webhook event
type Result struct {
	failed bool
	reason string
}

// Success reports a handled event
func Success() Result {
	return Result{}
}

// Failure reports a handler error recorded on the event
func Failure(reason string) Result {
	return Result{failed: true, reason: reason}
}

// Failuref is Failure with formatting
func Failuref(format string, args ...interface{}) Result {
	return Failure(fmt.Sprintf(format, args...))
}

// OK reports whether the handler succeeded
func (r Result) OK() bool {
	return !r.failed
}

// Reason is the failure message, empty on success
func (r Result) Reason() string {
	return r.reason
}

// WebhookHandler processes events for the topics it claims
type WebhookHandler interface {
	CanHandle(topic string) bool
	Handle(ctx context.Context, event *domain.WebhookEvent) Result
}

// WebhookDispatcher routes queued webhook events to their handlers and records the outcome
type WebhookDispatcher struct {
	handlers []WebhookHandler
	events   ports.WebhookEventRepository
	metrics  ports.Metrics
	timeout  time.Duration
	clock    ports.Clock
	logger   zerolog.Logger
}

// NewWebhookDispatcher creates a dispatcher. timeout bounds the handling of a single event.
func NewWebhookDispatcher(events ports.WebhookEventRepository, metrics ports.Metrics, timeout time.Duration, logger zerolog.Logger) *WebhookDispatcher {
	return &WebhookDispatcher{
		events:  events,
		metrics: metrics,
		timeout: timeout,
		clock:   time.Now,
		logger:  logger,
	}
}

// RegisterHandler adds a handler. Handlers are consulted in registration order.
func (d *WebhookDispatcher) RegisterHandler(h WebhookHandler) {
	d.handlers = append(d.handlers, h)
}

// Process is the queue job handler: reload the event, dispatch it and persist the terminal status
func (d *WebhookDispatcher) Process(ctx context.Context, job *domain.WebhookJob) {
	ctx = context.WithoutCancel(ctx)
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	log := d.logger.With().Str("eventId", job.EventID).Str("topic", job.Topic).Str("shop", job.ShopDomain).Logger()

	event, err := d.events.GetEvent(ctx, job.EventID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load webhook event")
		return
	}
	if event == nil {
		log.Error().Msg("Webhook event not found")
		return
	}
	if !event.Pending() {
		log.Debug().Msg("Webhook event already handled")
		return
	}

	start := d.clock()
	res := d.Dispatch(ctx, event)
	d.metrics.WebhookProcessed(event.Topic, res.OK(), d.clock().Sub(start))

	if res.OK() {
		if err := d.events.MarkProcessed(ctx, event.ID, d.clock().UTC()); err != nil {
			log.Error().Err(err).Msg("Failed to mark webhook event processed")
			return
		}
		log.Info().Msg("Webhook event processed")
		return
	}

	if err := d.events.MarkFailed(ctx, event.ID, res.Reason()); err != nil {
		log.Error().Err(err).Msg("Failed to record webhook event failure")
		return
	}
	log.Warn().Str("reason", res.Reason()).Msg("Webhook event failed")
}

// Dispatch runs every handler that claims the event topic. Unknown topics succeed.
func (d *WebhookDispatcher) Dispatch(ctx context.Context, event *domain.WebhookEvent) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error().
				Str("eventId", event.ID).
				Str("topic", event.Topic).
				Interface("panic", r).
				Msg("Webhook handler panicked")
			res = Failuref("handler panic: %v", r)
		}
	}()

	var reasons []string
	handled := false
	for _, h := range d.handlers {
		if !h.CanHandle(event.Topic) {
			continue
		}
		handled = true
		if r := h.Handle(ctx, event); !r.OK() {
			reasons = append(reasons, r.Reason())
		}
	}

	if !handled {
		d.logger.Info().
			Str("topic", event.Topic).
			Str("shop", event.ShopDomain).
			Msg("No handler registered for webhook topic")
		return Success()
	}
	if len(reasons) > 0 {
		return Failure(strings.Join(reasons, "; "))
	}
	return Success()
}

// RecoverPending re-enqueues events left pending by a previous run
func (d *WebhookDispatcher) RecoverPending(ctx context.Context, queue ports.WebhookQueue, limit int) (int, error) {
	events, err := d.events.ListPending(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending webhook events: %w", err)
	}

	enqueued := 0
	for _, event := range events {
		job := &domain.WebhookJob{
			EventID:    event.ID,
			Topic:      event.Topic,
			ShopDomain: event.ShopDomain,
			Payload:    event.Payload,
		}
		if err := queue.Enqueue(ctx, job); err != nil {
			return enqueued, fmt.Errorf("failed to enqueue pending webhook event %s: %w", event.ID, err)
		}
		enqueued++
	}

	if enqueued > 0 {
		d.logger.Info().Int("count", enqueued).Msg("Re-enqueued pending webhook events")
	}
	return enqueued, nil
}
