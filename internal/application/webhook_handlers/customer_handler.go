package webhook_handlers

import (
	"context"

	"shopify-multishop-layer/internal/application"
	"shopify-multishop-layer/internal/domain"

	"github.com/rs/zerolog"
)

// CustomerHandler handles customer-related webhook events
type CustomerHandler struct {
	logger zerolog.Logger
}

// NewCustomerHandler creates a new customer webhook handler
func NewCustomerHandler(logger zerolog.Logger) *CustomerHandler {
	return &CustomerHandler{
		logger: logger,
	}
}

// CanHandle returns true if this handler can process the given topic
func (h *CustomerHandler) CanHandle(topic string) bool {
	return topic == domain.TopicCustomersCreate
}

// Handle processes a customer webhook event. Contact details stay out of the logs.
func (h *CustomerHandler) Handle(ctx context.Context, event *domain.WebhookEvent) application.Result {
	h.logger.Info().
		Str("topic", event.Topic).
		Str("shop", event.ShopDomain).
		Float64("customerId", num(event.Payload, "id")).
		Str("state", str(event.Payload, "state")).
		Strs("fields", event.PayloadKeys()).
		Msg("Processing customer webhook event")

	return application.Success()
}
