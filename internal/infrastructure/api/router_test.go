package api

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"
	"time"

	"shopify-multishop-layer/internal/application"
	"shopify-multishop-layer/internal/application/webhook_handlers"
	"shopify-multishop-layer/internal/domain"
	"shopify-multishop-layer/internal/infrastructure/encryption"
	"shopify-multishop-layer/internal/infrastructure/metrics"
	"shopify-multishop-layer/internal/infrastructure/queue"
	"shopify-multishop-layer/internal/infrastructure/shopify"
	"shopify-multishop-layer/internal/infrastructure/sqlrepo"
	"shopify-multishop-layer/internal/ports"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	apiKey    = "router-key"
	apiSecret = "router-secret"
	appURL    = "https://app.example.com"
	shopName  = "acme.myshopify.com"
)

type stubShopify struct{}

func (stubShopify) AuthorizeURL(shop string, scopes []string, redirectURI string, state string) string {
	return "https://" + shop + "/admin/oauth/authorize?" + url.Values{"state": {state}, "redirect_uri": {redirectURI}}.Encode()
}

func (stubShopify) ExchangeToken(ctx context.Context, shop string, code string) (*ports.TokenResponse, error) {
	if code == "expired-code" {
		return nil, domain.ErrUpstreamFailure
	}
	return &ports.TokenResponse{AccessToken: "shpat_router", Scope: "read_products"}, nil
}

func (stubShopify) GetShopProfile(ctx context.Context, shop string, accessToken string) (*domain.ShopProfile, error) {
	return &domain.ShopProfile{Name: "Acme", PlanDisplayName: "Shopify Plus"}, nil
}

func (stubShopify) GraphQL(ctx context.Context, shop string, accessToken string, query string, variables map[string]interface{}, out interface{}) error {
	return json.Unmarshal([]byte(`{"products":{"edges":[{"node":{"id":"gid://shopify/Product/1","title":"Hat"}}]}}`), out)
}

func (stubShopify) CreateWebhook(ctx context.Context, shop string, accessToken string, topic string, address string) (int64, error) {
	return 1, nil
}

type testServer struct {
	*httptest.Server
	events ports.WebhookEventRepository
	creds  *application.CredentialsService
	oauth  *application.OAuthService
}

func newTestServer(t *testing.T, opts ...func(*Dependencies)) *testServer {
	t.Helper()
	logger := zerolog.Nop()

	db, err := sqlrepo.Open(sqlrepo.DriverSQLite, ":memory:")
	require.NoError(t, err)
	enc, err := encryption.NewService("router-encryption-key")
	require.NoError(t, err)

	shops := sqlrepo.NewShopRepository(db)
	events := sqlrepo.NewWebhookEventRepository(db)
	client := stubShopify{}
	verifier := shopify.NewVerifier(apiKey, apiSecret)
	prom := metrics.NewPrometheus()

	creds := application.NewCredentialsService(shops, shopify.NewTokenManager(enc, logger), logger)
	states := application.NewStateService(sqlrepo.NewOAuthStateRepository(db), 10*time.Minute, logger)
	oauth := application.NewOAuthService(states, creds, client, verifier, prom, application.OAuthConfig{
		Scopes: []string{"read_products"},
		AppURL: appURL,
	}, logger)

	q := queue.NewMemoryQueue(16, 2, logger)
	webhooks := application.NewWebhookService(events, q, verifier, prom, logger)
	shopAPI, err := application.NewShopAPIService(creds, client, sqlrepo.NewUsageRepository(db), events, logger)
	require.NoError(t, err)

	dispatcher := application.NewWebhookDispatcher(events, prom, 5*time.Second, logger)
	dispatcher.RegisterHandler(webhook_handlers.NewAppUninstalledHandler(creds, logger))
	dispatcher.RegisterHandler(webhook_handlers.NewOrderHandler(prom, logger))

	ctx, cancel := context.WithCancel(context.Background())
	q.Start(ctx, dispatcher.Process)

	deps := Dependencies{
		OAuth:               oauth,
		Credentials:         creds,
		Webhooks:            webhooks,
		Shops:               shopAPI,
		SessionTokens:       shopify.NewSessionTokenVerifier(apiKey, apiSecret, "HS256"),
		Metrics:             prom.Handler(),
		AllowedOrigins:      []string{"*"},
		MaxWebhookBodyBytes: 1 << 16,
		Logger:              logger,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	router := NewRouter(deps)
	srv := httptest.NewServer(router)

	t.Cleanup(func() {
		srv.Close()
		cancel()
		_ = q.Close()
		_ = sqlrepo.Close(db)
	})
	return &testServer{Server: srv, events: events, creds: creds, oauth: oauth}
}

// client never follows redirects so 307 responses can be inspected
func (s *testServer) client() *http.Client {
	return &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
	}
}

func (s *testServer) get(t *testing.T, path string, header http.Header) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, s.URL+path, nil)
	require.NoError(t, err)
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := s.client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (s *testServer) postWebhook(t *testing.T, topic string, body []byte, signature string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, s.URL+"/webhooks/shopify", strings.NewReader(string(body)))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Shopify-Topic", topic)
	req.Header.Set("X-Shopify-Shop-Domain", shopName)
	req.Header.Set("X-Shopify-Webhook-Id", "b54557e4-bdd9-4b37-8a5f-bf7d70bcd043")
	if signature != "" {
		req.Header.Set("X-Shopify-Hmac-Sha256", signature)
	}
	resp, err := s.client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

// install walks the OAuth redirect round trip for shopName
func (s *testServer) install(t *testing.T) {
	t.Helper()
	resp := s.get(t, "/auth/install?shop="+shopName, nil)
	require.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)

	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	params := callbackParams(loc.Query().Get("state"), "good-code")

	resp = s.get(t, "/auth/callback?"+params.Encode(), nil)
	require.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	assert.Equal(t, appURL+"/auth/success?shop="+shopName, resp.Header.Get("Location"))
}

func callbackParams(state, code string) url.Values {
	params := url.Values{
		"shop":      {shopName},
		"code":      {code},
		"state":     {state},
		"timestamp": {"1700000000"},
		"host":      {"YWNtZS5teXNob3BpZnkuY29tL2FkbWlu"},
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params.Get(k))
	}
	mac := hmac.New(sha256.New, []byte(apiSecret))
	mac.Write([]byte(strings.Join(pairs, "&")))
	params.Set("hmac", hex.EncodeToString(mac.Sum(nil)))
	return params
}

func sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(apiSecret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func requireError(t *testing.T, resp *http.Response, status int, path string) ErrorResponse {
	t.Helper()
	require.Equal(t, status, resp.StatusCode)
	var body ErrorResponse
	decode(t, resp, &body)
	assert.Equal(t, status, body.StatusCode)
	assert.Equal(t, path, body.Path)
	assert.NotEmpty(t, body.Error)
	return body
}

func TestHealthAndHeaders(t *testing.T) {
	s := newTestServer(t)
	resp := s.get(t, "/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.Contains(t, resp.Header.Get("Content-Security-Policy"), "frame-ancestors")

	resp = s.get(t, "/metrics", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestInstallFlow(t *testing.T) {
	s := newTestServer(t)
	s.install(t)

	resp := s.get(t, "/auth/success?shop="+shopName, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]interface{}
	decode(t, resp, &body)
	assert.Equal(t, "installed", body["status"])
	assert.Equal(t, "Acme", body["name"])

	t.Run("uninstalled shop is not reported as installed", func(t *testing.T) {
		require.NoError(t, s.creds.MarkUninstalled(context.Background(), shopName))

		resp := s.get(t, "/auth/success?shop="+shopName, nil)
		body := requireError(t, resp, http.StatusNotFound, "/auth/success")
		assert.Equal(t, domain.ErrShopNotFound.Error(), body.Error)
	})
}

func TestInstallErrors(t *testing.T) {
	s := newTestServer(t)

	resp := s.get(t, "/auth/install?shop=not-a-shop.com", nil)
	body := requireError(t, resp, http.StatusBadRequest, "/auth/install")
	assert.Equal(t, domain.ErrInvalidDomain.Error(), body.Error)

	resp = s.get(t, "/auth/callback?shop="+shopName, nil)
	requireError(t, resp, http.StatusBadRequest, "/auth/callback")

	params := callbackParams("never-issued", "good-code")
	resp = s.get(t, "/auth/callback?"+params.Encode(), nil)
	requireError(t, resp, http.StatusUnauthorized, "/auth/callback")

	params.Set("hmac", strings.Repeat("0", 64))
	resp = s.get(t, "/auth/callback?"+params.Encode(), nil)
	body = requireError(t, resp, http.StatusUnauthorized, "/auth/callback")
	assert.Equal(t, domain.ErrInvalidSignature.Error(), body.Error)

	install := s.get(t, "/auth/install?shop="+shopName, nil)
	loc, err := url.Parse(install.Header.Get("Location"))
	require.NoError(t, err)
	params = callbackParams(loc.Query().Get("state"), "expired-code")
	resp = s.get(t, "/auth/callback?"+params.Encode(), nil)
	body = requireError(t, resp, http.StatusInternalServerError, "/auth/callback")
	assert.Equal(t, domain.ErrTokenExchangeFailed.Error(), body.Error)

	resp = s.get(t, "/auth/success?shop="+shopName, nil)
	requireError(t, resp, http.StatusNotFound, "/auth/success")
}

func TestWebhookIngress(t *testing.T) {
	s := newTestServer(t)
	s.install(t)
	ctx := context.Background()

	body := []byte(`{"id": 5, "total_price": "12.50", "currency": "EUR"}`)
	resp := s.postWebhook(t, domain.TopicOrdersCreate, body, sign(body))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var ack map[string]string
	decode(t, resp, &ack)
	assert.Equal(t, map[string]string{"status": "received", "topic": domain.TopicOrdersCreate, "shop": shopName}, ack)

	require.Eventually(t, func() bool {
		events, err := s.events.ListEvents(ctx, domain.WebhookEventFilter{Topic: domain.TopicOrdersCreate})
		return err == nil && len(events) == 1 && events[0].Processed
	}, 2*time.Second, 10*time.Millisecond)

	t.Run("bad signature is rejected and not stored", func(t *testing.T) {
		resp := s.postWebhook(t, domain.TopicProductsCreate, body, sign([]byte("other")))
		requireError(t, resp, http.StatusUnauthorized, "/webhooks/shopify")

		events, err := s.events.ListEvents(ctx, domain.WebhookEventFilter{Topic: domain.TopicProductsCreate})
		require.NoError(t, err)
		assert.Empty(t, events)
	})

	t.Run("missing signature header", func(t *testing.T) {
		resp := s.postWebhook(t, domain.TopicProductsCreate, body, "")
		requireError(t, resp, http.StatusBadRequest, "/webhooks/shopify")
	})

	t.Run("invalid json", func(t *testing.T) {
		bad := []byte(`{"id":`)
		resp := s.postWebhook(t, domain.TopicProductsCreate, bad, sign(bad))
		requireError(t, resp, http.StatusBadRequest, "/webhooks/shopify")
	})

	t.Run("oversized body", func(t *testing.T) {
		big := []byte(`{"blob":"` + strings.Repeat("x", 1<<16) + `"}`)
		resp := s.postWebhook(t, domain.TopicProductsCreate, big, sign(big))
		requireError(t, resp, http.StatusBadRequest, "/webhooks/shopify")
	})
}

func TestUninstallWebhook(t *testing.T) {
	s := newTestServer(t)
	s.install(t)
	ctx := context.Background()

	body := []byte(`{"id": 1, "domain": "acme.myshopify.com"}`)
	resp := s.postWebhook(t, domain.TopicAppUninstalled, body, sign(body))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Eventually(t, func() bool {
		shop, err := s.creds.Get(ctx, shopName)
		return err == nil && shop.Uninstalled && shop.AccessToken == ""
	}, 2*time.Second, 10*time.Millisecond)

	resp = s.get(t, "/api/products?shop="+shopName, nil)
	requireError(t, resp, http.StatusForbidden, "/api/products")

	resp = s.get(t, "/api/shops/"+shopName, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var details map[string]interface{}
	decode(t, resp, &details)
	assert.Equal(t, "uninstalled", details["status"])
}

func TestListEvents(t *testing.T) {
	s := newTestServer(t)
	for i := 0; i < 3; i++ {
		body := []byte(`{}`)
		resp := s.postWebhook(t, "shop/update", body, sign(body))
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp := s.get(t, "/webhooks/events?shop="+shopName+"&limit=2", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Events []domain.WebhookEvent `json:"events"`
		Count  int                   `json:"count"`
	}
	decode(t, resp, &body)
	assert.Equal(t, 2, body.Count)
	assert.Len(t, body.Events, 2)

	resp = s.get(t, "/webhooks/events?limit=abc", nil)
	requireError(t, resp, http.StatusBadRequest, "/webhooks/events")
}

func TestShopRoutes(t *testing.T) {
	s := newTestServer(t)

	resp := s.get(t, "/api/shops/"+shopName, nil)
	requireError(t, resp, http.StatusNotFound, "/api/shops/"+shopName)

	s.install(t)

	resp = s.get(t, "/api/products?shop="+shopName+"&limit=5", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var products map[string]interface{}
	decode(t, resp, &products)
	assert.Equal(t, shopName, products["shop"])
	assert.Contains(t, products["data"], "products")

	req, err := http.NewRequest(http.MethodPut, s.URL+"/api/shops/"+shopName+"/settings", strings.NewReader(`{"currency_display":"symbol"}`))
	require.NoError(t, err)
	put, err := s.client().Do(req)
	require.NoError(t, err)
	defer put.Body.Close()
	require.Equal(t, http.StatusOK, put.StatusCode)

	req, err = http.NewRequest(http.MethodPut, s.URL+"/api/shops/"+shopName+"/settings", strings.NewReader(`[1]`))
	require.NoError(t, err)
	bad, err := s.client().Do(req)
	require.NoError(t, err)
	defer bad.Body.Close()
	requireError(t, bad, http.StatusBadRequest, "/api/shops/"+shopName+"/settings")

	resp = s.get(t, "/api/shops/"+shopName, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var details struct {
		Status string                 `json:"status"`
		Shop   map[string]interface{} `json:"shop"`
		Usage  map[string]int64       `json:"usage_7d"`
	}
	decode(t, resp, &details)
	assert.Equal(t, "active", details.Status)
	assert.Equal(t, int64(1), details.Usage[domain.MetricAPICalls])
	assert.NotContains(t, details.Shop, "access_token")
	assert.Equal(t, map[string]interface{}{"currency_display": "symbol"}, details.Shop["settings"])
}

func TestEmbeddedProducts(t *testing.T) {
	s := newTestServer(t)
	s.install(t)

	token := func(dest string, exp time.Time) string { return sessionToken(t, dest, exp) }
	path := "/api/products/embedded?shop=" + shopName

	resp := s.get(t, path, nil)
	requireError(t, resp, http.StatusUnauthorized, "/api/products/embedded")

	resp = s.get(t, path, http.Header{"Authorization": {"Bearer " + token("https://other.myshopify.com", time.Now().Add(time.Minute))}})
	requireError(t, resp, http.StatusUnauthorized, "/api/products/embedded")

	resp = s.get(t, path, http.Header{"Authorization": {"Bearer " + token("https://evil"+shopName, time.Now().Add(time.Minute))}})
	requireError(t, resp, http.StatusUnauthorized, "/api/products/embedded")

	resp = s.get(t, path, http.Header{"Authorization": {"Bearer " + token("https://"+shopName, time.Now().Add(-time.Minute))}})
	requireError(t, resp, http.StatusUnauthorized, "/api/products/embedded")

	resp = s.get(t, path, http.Header{"Authorization": {"Bearer " + token("https://"+shopName, time.Now().Add(time.Minute))}})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSessionTokenRequired(t *testing.T) {
	s := newTestServer(t, func(d *Dependencies) { d.RequireSessionToken = true })
	s.install(t)

	bearer := func(dest string) http.Header {
		return http.Header{"Authorization": {"Bearer " + sessionToken(t, dest, time.Now().Add(time.Minute))}}
	}
	own := bearer("https://" + shopName)

	for _, path := range []string{"/api/shops/" + shopName, "/api/products?shop=" + shopName} {
		resp := s.get(t, path, nil)
		requireError(t, resp, http.StatusUnauthorized, strings.Split(path, "?")[0])

		resp = s.get(t, path, bearer("https://other.myshopify.com"))
		requireError(t, resp, http.StatusUnauthorized, strings.Split(path, "?")[0])

		resp = s.get(t, path, own)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}

	put := func(header http.Header) *http.Response {
		req, err := http.NewRequest(http.MethodPut, s.URL+"/api/shops/"+shopName+"/settings", strings.NewReader(`{"theme":"dark"}`))
		require.NoError(t, err)
		for k, v := range header {
			req.Header[k] = v
		}
		resp, err := s.client().Do(req)
		require.NoError(t, err)
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}
	requireError(t, put(nil), http.StatusUnauthorized, "/api/shops/"+shopName+"/settings")
	assert.Equal(t, http.StatusOK, put(own).StatusCode)
}

func sessionToken(t *testing.T, dest string, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss":  dest + "/admin",
		"dest": dest,
		"aud":  apiKey,
		"sub":  "42",
		"exp":  exp.Unix(),
		"nbf":  time.Now().Add(-time.Minute).Unix(),
	})
	signed, err := tok.SignedString([]byte(apiSecret))
	require.NoError(t, err)
	return signed
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{domain.ErrInvalidDomain, http.StatusBadRequest},
		{domain.ErrInvalidOrExpiredState, http.StatusUnauthorized},
		{domain.ErrCredentialRevoked, http.StatusForbidden},
		{domain.ErrShopNotFound, http.StatusNotFound},
		{domain.ErrUpstreamTimeout, http.StatusGatewayTimeout},
		{domain.ErrUpstreamFailure, http.StatusBadGateway},
		{wrapErr(domain.ErrTokenExchangeFailed, domain.ErrUpstreamTimeout), http.StatusInternalServerError},
		{wrapErr(domain.ErrInstallationFailed, domain.ErrStorageFailure), http.StatusInternalServerError},
		{context.DeadlineExceeded, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		status, msg := classifyError(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
		assert.NotContains(t, msg, "deadline")
	}
}

func wrapErr(outer, inner error) error {
	return fmt.Errorf("%w: %w", outer, inner)
}
