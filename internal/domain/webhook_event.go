package domain

import "time"

// Webhook topics with dedicated handlers
const (
	TopicAppUninstalled  = "app/uninstalled"
	TopicOrdersCreate    = "orders/create"
	TopicOrdersUpdated   = "orders/updated"
	TopicProductsCreate  = "products/create"
	TopicProductsUpdate  = "products/update"
	TopicCustomersCreate = "customers/create"
)

// WebhookEvent is the durable record of one inbound delivery.
// Processed flips to true only when a handler succeeded; ErrorMessage is set independently.
type WebhookEvent struct {
	ID           string                 `json:"id"`
	ShopDomain   string                 `json:"shop_domain"`
	Topic        string                 `json:"topic"`
	WebhookID    string                 `json:"webhook_id,omitempty"`
	Payload      map[string]interface{} `json:"payload,omitempty"`
	Headers      map[string]string      `json:"headers,omitempty"`
	Processed    bool                   `json:"processed"`
	ProcessedAt  *time.Time             `json:"processed_at,omitempty"`
	ErrorMessage *string                `json:"error_message,omitempty"`
	ReceivedAt   time.Time              `json:"received_at"`
}

// Pending reports whether the event has neither completed nor failed
func (e *WebhookEvent) Pending() bool {
	return !e.Processed && e.ErrorMessage == nil
}

// PayloadKeys lists the top level keys of the payload
func (e *WebhookEvent) PayloadKeys() []string {
	keys := make([]string, 0, len(e.Payload))
	for k := range e.Payload {
		keys = append(keys, k)
	}
	return keys
}

// WebhookJob is the unit handed from ingress to the dispatcher
type WebhookJob struct {
	EventID    string                 `json:"event_id"`
	Topic      string                 `json:"topic"`
	ShopDomain string                 `json:"shop_domain"`
	Payload    map[string]interface{} `json:"payload"`
}

// WebhookEventFilter narrows event listings
type WebhookEventFilter struct {
	ShopDomain string
	Topic      string
	Limit      int
}
