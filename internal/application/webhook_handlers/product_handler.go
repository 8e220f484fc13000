package webhook_handlers

import (
	"context"

	"shopify-multishop-layer/internal/application"
	"shopify-multishop-layer/internal/domain"

	"github.com/rs/zerolog"
)

// ProductHandler handles product-related webhook events
type ProductHandler struct {
	logger zerolog.Logger
}

// NewProductHandler creates a new product webhook handler
func NewProductHandler(logger zerolog.Logger) *ProductHandler {
	return &ProductHandler{
		logger: logger,
	}
}

// CanHandle returns true if this handler can process the given topic
func (h *ProductHandler) CanHandle(topic string) bool {
	return topic == domain.TopicProductsCreate ||
		topic == domain.TopicProductsUpdate
}

// Handle processes a product webhook event
func (h *ProductHandler) Handle(ctx context.Context, event *domain.WebhookEvent) application.Result {
	product := event.Payload

	h.logger.Info().
		Str("topic", event.Topic).
		Str("shop", event.ShopDomain).
		Float64("productId", num(product, "id")).
		Str("title", str(product, "title")).
		Str("handle", str(product, "handle")).
		Str("vendor", str(product, "vendor")).
		Str("productType", str(product, "product_type")).
		Msg("Processing product webhook event")

	return application.Success()
}
