package metrics

import (
	"net/http"
	"strconv"
	"time"

	"shopify-multishop-layer/internal/ports"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "shopify_layer"

// Prometheus implements ports.Metrics on its own registry
type Prometheus struct {
	registry         *prometheus.Registry
	oauthInstalls    *prometheus.CounterVec
	webhooksReceived *prometheus.CounterVec
	webhooksHandled  *prometheus.CounterVec
	webhookDuration  *prometheus.HistogramVec
	shopifyCalls     *prometheus.CounterVec
	shopifyDuration  *prometheus.HistogramVec
	orderValue       *prometheus.CounterVec
}

// NewPrometheus registers every collector plus the Go and process collectors
func NewPrometheus() *Prometheus {
	m := &Prometheus{
		registry: prometheus.NewRegistry(),
		oauthInstalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oauth_installs_total",
			Help:      "OAuth callbacks by result.",
		}, []string{"result"}),
		webhooksReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhooks_received_total",
			Help:      "Authenticated webhook deliveries persisted.",
		}, []string{"topic"}),
		webhooksHandled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhooks_processed_total",
			Help:      "Webhook events reaching a terminal status.",
		}, []string{"topic", "success"}),
		webhookDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "webhook_processing_seconds",
			Help:      "Time spent in webhook handlers.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"topic"}),
		shopifyCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shopify_calls_total",
			Help:      "Outbound Shopify calls by operation and status.",
		}, []string{"operation", "status"}),
		shopifyDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "shopify_call_seconds",
			Help:      "Outbound Shopify call latency.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"operation"}),
		orderValue: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_value_total",
			Help:      "Sum of created order totals by shop and currency.",
		}, []string{"shop", "currency"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.oauthInstalls,
		m.webhooksReceived,
		m.webhooksHandled,
		m.webhookDuration,
		m.shopifyCalls,
		m.shopifyDuration,
		m.orderValue,
	)
	return m
}

var _ ports.Metrics = (*Prometheus)(nil)

// Handler serves the registry in the Prometheus exposition format
func (m *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry
func (m *Prometheus) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Prometheus) OAuthInstall(result string) {
	m.oauthInstalls.WithLabelValues(result).Inc()
}

func (m *Prometheus) WebhookReceived(topic string) {
	m.webhooksReceived.WithLabelValues(topic).Inc()
}

func (m *Prometheus) WebhookProcessed(topic string, success bool, duration time.Duration) {
	m.webhooksHandled.WithLabelValues(topic, strconv.FormatBool(success)).Inc()
	m.webhookDuration.WithLabelValues(topic).Observe(duration.Seconds())
}

func (m *Prometheus) ShopifyCall(operation string, status string, duration time.Duration) {
	m.shopifyCalls.WithLabelValues(operation, status).Inc()
	m.shopifyDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *Prometheus) OrderValue(shop string, currency string, amount float64) {
	if amount <= 0 {
		return
	}
	m.orderValue.WithLabelValues(shop, currency).Add(amount)
}

// Noop discards every measurement
type Noop struct{}

func (Noop) OAuthInstall(string)                          {}
func (Noop) WebhookReceived(string)                       {}
func (Noop) WebhookProcessed(string, bool, time.Duration) {}
func (Noop) ShopifyCall(string, string, time.Duration)    {}
func (Noop) OrderValue(string, string, float64)           {}
