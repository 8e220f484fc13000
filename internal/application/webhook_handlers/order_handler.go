package webhook_handlers

import (
	"context"

	"shopify-multishop-layer/internal/application"
	"shopify-multishop-layer/internal/domain"
	"shopify-multishop-layer/internal/ports"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// OrderHandler handles order-related webhook events
type OrderHandler struct {
	metrics ports.Metrics
	logger  zerolog.Logger
}

// NewOrderHandler creates a new order webhook handler
func NewOrderHandler(metrics ports.Metrics, logger zerolog.Logger) *OrderHandler {
	return &OrderHandler{
		metrics: metrics,
		logger:  logger,
	}
}

// CanHandle returns true if this handler can process the given topic
func (h *OrderHandler) CanHandle(topic string) bool {
	return topic == domain.TopicOrdersCreate ||
		topic == domain.TopicOrdersUpdated
}

// Handle processes an order webhook event
func (h *OrderHandler) Handle(ctx context.Context, event *domain.WebhookEvent) application.Result {
	order := event.Payload

	orderID := num(order, "id")
	totalPrice := str(order, "total_price")
	currency := str(order, "currency")

	h.logger.Info().
		Str("topic", event.Topic).
		Str("shop", event.ShopDomain).
		Float64("orderId", orderID).
		Float64("orderNumber", num(order, "order_number")).
		Str("totalPrice", totalPrice).
		Str("currency", currency).
		Str("financialStatus", str(order, "financial_status")).
		Str("fulfillmentStatus", str(order, "fulfillment_status")).
		Msg("Processing order webhook event")

	if event.Topic != domain.TopicOrdersCreate || totalPrice == "" {
		return application.Success()
	}

	// A malformed price is logged and skipped; the order itself was delivered fine
	amount, err := decimal.NewFromString(totalPrice)
	if err != nil {
		h.logger.Warn().Err(err).Str("shop", event.ShopDomain).Float64("orderId", orderID).Msg("Unparseable order total")
		return application.Success()
	}
	value, _ := amount.Float64()
	h.metrics.OrderValue(event.ShopDomain, currency, value)

	return application.Success()
}
