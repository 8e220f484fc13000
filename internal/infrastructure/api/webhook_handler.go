package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"shopify-multishop-layer/internal/application"
	"shopify-multishop-layer/internal/domain"
)

// WebhookHandler serves webhook ingress and the event listing
type WebhookHandler struct {
	webhooks     *application.WebhookService
	maxBodyBytes int64
	writeError   func(http.ResponseWriter, *http.Request, error)
}

// Receive authenticates and stores a webhook delivery, acknowledging once it is durable
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, r, fmt.Errorf("%w: body exceeds %d bytes", domain.ErrInvalidPayload, tooLarge.Limit))
			return
		}
		h.writeError(w, r, fmt.Errorf("%w: %w", domain.ErrInvalidPayload, err))
		return
	}

	event, err := h.webhooks.Receive(r.Context(), application.WebhookDelivery{
		Topic:      r.Header.Get("X-Shopify-Topic"),
		ShopDomain: r.Header.Get("X-Shopify-Shop-Domain"),
		HMAC:       r.Header.Get("X-Shopify-Hmac-Sha256"),
		WebhookID:  r.Header.Get("X-Shopify-Webhook-Id"),
		Headers:    headerSnapshot(r.Header),
		Body:       body,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "received",
		"topic":  event.Topic,
		"shop":   event.ShopDomain,
	})
}

// ListEvents returns recent webhook events, optionally filtered by shop and topic
func (h *WebhookHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.WebhookEventFilter{
		ShopDomain: q.Get("shop"),
		Topic:      q.Get("topic"),
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			h.writeError(w, r, fmt.Errorf("%w: limit", domain.ErrInvalidQuery))
			return
		}
		filter.Limit = limit
	}

	events, err := h.webhooks.ListEvents(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"count":  len(events),
	})
}

// headerSnapshot flattens request headers for storage with the event
func headerSnapshot(h http.Header) map[string]string {
	snapshot := make(map[string]string, len(h))
	for k, v := range h {
		snapshot[k] = strings.Join(v, ", ")
	}
	return snapshot
}
