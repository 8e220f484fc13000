package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheus_Counters(t *testing.T) {
	m := NewPrometheus()

	m.OAuthInstall("success")
	m.OAuthInstall("success")
	m.WebhookReceived("orders/create")
	m.WebhookProcessed("orders/create", false, 10*time.Millisecond)
	m.OrderValue("alpha.myshopify.com", "EUR", 12.5)
	m.OrderValue("alpha.myshopify.com", "EUR", -1)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.oauthInstalls.WithLabelValues("success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.webhooksHandled.WithLabelValues("orders/create", "false")))
	assert.Equal(t, 12.5, testutil.ToFloat64(m.orderValue.WithLabelValues("alpha.myshopify.com", "EUR")))
}

func TestPrometheus_Handler(t *testing.T) {
	m := NewPrometheus()
	m.ShopifyCall("graphql", "ok", time.Second)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `shopify_layer_shopify_calls_total{operation="graphql",status="ok"} 1`)
}
