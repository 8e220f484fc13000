package application

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"shopify-multishop-layer/internal/domain"
	"shopify-multishop-layer/internal/ports"

	"github.com/rs/zerolog"
)

const (
	defaultEventListLimit = 100
	maxEventListLimit     = 500
)

// WebhookDelivery is one inbound webhook request as received on the wire
type WebhookDelivery struct {
	Topic      string
	ShopDomain string
	HMAC       string
	WebhookID  string
	Headers    map[string]string
	Body       []byte
}

// WebhookService authenticates, persists and enqueues webhook deliveries
type WebhookService struct {
	events   ports.WebhookEventRepository
	queue    ports.WebhookQueue
	verifier ports.SignatureVerifier
	metrics  ports.Metrics
	clock    ports.Clock
	logger   zerolog.Logger
}

// NewWebhookService creates a new webhook ingress service
func NewWebhookService(
	events ports.WebhookEventRepository,
	queue ports.WebhookQueue,
	verifier ports.SignatureVerifier,
	metrics ports.Metrics,
	logger zerolog.Logger,
) *WebhookService {
	return &WebhookService{
		events:   events,
		queue:    queue,
		verifier: verifier,
		metrics:  metrics,
		clock:    time.Now,
		logger:   logger,
	}
}

// Receive stores the delivery and hands it to the queue.
// The event is durable before this returns; processing happens later.
func (s *WebhookService) Receive(ctx context.Context, d WebhookDelivery) (*domain.WebhookEvent, error) {
	if d.Topic == "" || d.ShopDomain == "" || d.HMAC == "" {
		return nil, domain.ErrMissingHeaders
	}

	if !s.verifier.VerifyWebhook(d.Body, d.HMAC) {
		s.logger.Warn().Str("shop", d.ShopDomain).Str("topic", d.Topic).Msg("Webhook signature verification failed")
		return nil, domain.ErrInvalidSignature
	}

	payload, err := parsePayload(d.Body)
	if err != nil {
		s.logger.Warn().Err(err).Str("shop", d.ShopDomain).Str("topic", d.Topic).Msg("Webhook payload is not a JSON object")
		return nil, err
	}

	event := &domain.WebhookEvent{
		ShopDomain: d.ShopDomain,
		Topic:      d.Topic,
		WebhookID:  d.WebhookID,
		Payload:    payload,
		Headers:    d.Headers,
		ReceivedAt: s.clock().UTC(),
	}
	if err := s.events.CreateEvent(ctx, event); err != nil {
		s.logger.Error().Err(err).Str("shop", d.ShopDomain).Str("topic", d.Topic).Msg("Failed to store webhook event")
		return nil, fmt.Errorf("%w: %w", domain.ErrStorageFailure, err)
	}
	s.metrics.WebhookReceived(d.Topic)

	job := &domain.WebhookJob{
		EventID:    event.ID,
		Topic:      event.Topic,
		ShopDomain: event.ShopDomain,
		Payload:    event.Payload,
	}
	// The event stays pending on failure and is picked up by the recovery sweep
	if err := s.queue.Enqueue(context.WithoutCancel(ctx), job); err != nil {
		s.logger.Error().Err(err).Str("eventId", event.ID).Str("topic", event.Topic).Msg("Failed to enqueue webhook event")
	}

	s.logger.Info().
		Str("eventId", event.ID).
		Str("shop", event.ShopDomain).
		Str("topic", event.Topic).
		Str("webhookId", event.WebhookID).
		Msg("Webhook received")
	return event, nil
}

// ListEvents returns recent events, newest first
func (s *WebhookService) ListEvents(ctx context.Context, filter domain.WebhookEventFilter) ([]*domain.WebhookEvent, error) {
	switch {
	case filter.Limit <= 0:
		filter.Limit = defaultEventListLimit
	case filter.Limit > maxEventListLimit:
		filter.Limit = maxEventListLimit
	}

	events, err := s.events.ListEvents(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStorageFailure, err)
	}
	return events, nil
}

// parsePayload decodes a JSON object body. An empty body is an empty object.
func parsePayload(body []byte) (map[string]interface{}, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return map[string]interface{}{}, nil
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidPayload, err)
	}
	if payload == nil {
		return nil, domain.ErrInvalidPayload
	}
	return payload, nil
}
