package application

import (
	"context"
	"testing"

	"shopify-multishop-layer/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookService_Receive(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	body := []byte(`{"id": 820982911946154508, "total_price": "19.99"}`)

	event, err := h.webhooks.Receive(ctx, delivery(domain.TopicOrdersCreate, testShop, body))
	require.NoError(t, err)
	require.NotEmpty(t, event.ID)

	stored, err := h.events.GetEvent(ctx, event.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.Pending())
	assert.Equal(t, testShop, stored.ShopDomain)
	assert.Equal(t, "wh-1", stored.WebhookID)
	assert.Equal(t, "19.99", stored.Payload["total_price"])
	assert.Equal(t, domain.TopicOrdersCreate, stored.Headers["X-Shopify-Topic"])

	jobs := h.queue.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, event.ID, jobs[0].EventID)
	assert.Equal(t, domain.TopicOrdersCreate, jobs[0].Topic)
	assert.Equal(t, testShop, jobs[0].ShopDomain)
}

func TestWebhookService_ReceiveRejections(t *testing.T) {
	ctx := context.Background()
	body := []byte(`{"id": 1}`)

	tests := []struct {
		name    string
		mutate  func(d *WebhookDelivery)
		wantErr error
	}{
		{"missing topic", func(d *WebhookDelivery) { d.Topic = "" }, domain.ErrMissingHeaders},
		{"missing shop", func(d *WebhookDelivery) { d.ShopDomain = "" }, domain.ErrMissingHeaders},
		{"missing hmac", func(d *WebhookDelivery) { d.HMAC = "" }, domain.ErrMissingHeaders},
		{"tampered body", func(d *WebhookDelivery) { d.Body = []byte(`{"id": 2}`) }, domain.ErrInvalidSignature},
		{"wrong secret", func(d *WebhookDelivery) { d.HMAC = "bm9wZQ==" }, domain.ErrInvalidSignature},
		{"not json", func(d *WebhookDelivery) {
			d.Body = []byte(`{"id":`)
			d.HMAC = signBody(d.Body)
		}, domain.ErrInvalidPayload},
		{"json array", func(d *WebhookDelivery) {
			d.Body = []byte(`[1,2]`)
			d.HMAC = signBody(d.Body)
		}, domain.ErrInvalidPayload},
		{"json null", func(d *WebhookDelivery) {
			d.Body = []byte(`null`)
			d.HMAC = signBody(d.Body)
		}, domain.ErrInvalidPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			d := delivery(domain.TopicOrdersCreate, testShop, body)
			tt.mutate(&d)

			_, err := h.webhooks.Receive(ctx, d)
			assert.ErrorIs(t, err, tt.wantErr)

			events, err := h.webhooks.ListEvents(ctx, domain.WebhookEventFilter{})
			require.NoError(t, err)
			assert.Empty(t, events, "rejected deliveries are not stored")
			assert.Empty(t, h.queue.Jobs())
		})
	}
}

func TestWebhookService_EmptyBody(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	event, err := h.webhooks.Receive(ctx, delivery(domain.TopicAppUninstalled, testShop, nil))
	require.NoError(t, err)

	stored, err := h.events.GetEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.Payload)
	assert.Empty(t, stored.Payload)
}

func TestWebhookService_EnqueueFailureStillAcknowledges(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.queue.err = errBoom

	event, err := h.webhooks.Receive(ctx, delivery(domain.TopicProductsCreate, testShop, []byte(`{}`)))
	require.NoError(t, err)

	pending, err := h.events.ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, event.ID, pending[0].ID)
}

func TestWebhookService_ListEvents(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for _, topic := range []string{domain.TopicOrdersCreate, domain.TopicProductsUpdate, domain.TopicOrdersCreate} {
		_, err := h.webhooks.Receive(ctx, delivery(topic, testShop, []byte(`{}`)))
		require.NoError(t, err)
	}
	_, err := h.webhooks.Receive(ctx, delivery(domain.TopicOrdersCreate, "beta.myshopify.com", []byte(`{}`)))
	require.NoError(t, err)

	all, err := h.webhooks.ListEvents(ctx, domain.WebhookEventFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 4)

	orders, err := h.webhooks.ListEvents(ctx, domain.WebhookEventFilter{ShopDomain: testShop, Topic: domain.TopicOrdersCreate})
	require.NoError(t, err)
	assert.Len(t, orders, 2)

	limited, err := h.webhooks.ListEvents(ctx, domain.WebhookEventFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}
