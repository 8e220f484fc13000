package application

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/url"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"shopify-multishop-layer/internal/domain"
	"shopify-multishop-layer/internal/infrastructure/encryption"
	"shopify-multishop-layer/internal/infrastructure/metrics"
	"shopify-multishop-layer/internal/infrastructure/shopify"
	"shopify-multishop-layer/internal/infrastructure/sqlrepo"
	"shopify-multishop-layer/internal/ports"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const (
	testAPIKey    = "app-key"
	testAPISecret = "app-secret"
	testAppURL    = "https://app.example.com"
	testShop      = "acme.myshopify.com"
)

// fakeShopify stands in for the Admin API
type fakeShopify struct {
	mu sync.Mutex

	token       *ports.TokenResponse
	exchangeErr error
	profile     *domain.ShopProfile
	profileErr  error
	graphqlData map[string]interface{}
	graphqlErr  error
	webhookErr  error

	exchanges    int
	lastVars     map[string]interface{}
	lastQuery    string
	registered   []string
	graphqlCalls int
}

func newFakeShopify() *fakeShopify {
	return &fakeShopify{
		token: &ports.TokenResponse{AccessToken: "shpat_live", Scope: "read_products,write_orders"},
		profile: &domain.ShopProfile{
			Name:            "Acme",
			Email:           "owner@acme.test",
			Currency:        "EUR",
			PlanDisplayName: "Basic",
			MyshopifyDomain: testShop,
		},
		graphqlData: map[string]interface{}{
			"products": map[string]interface{}{"edges": []interface{}{}},
		},
	}
}

func (f *fakeShopify) AuthorizeURL(shop string, scopes []string, redirectURI string, state string) string {
	q := url.Values{
		"client_id":     {testAPIKey},
		"scope":         {strings.Join(scopes, ",")},
		"redirect_uri":  {redirectURI},
		"state":         {state},
		"response_type": {"code"},
	}
	return "https://" + shop + "/admin/oauth/authorize?" + q.Encode()
}

func (f *fakeShopify) ExchangeToken(ctx context.Context, shop string, code string) (*ports.TokenResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exchanges++
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	return f.token, nil
}

func (f *fakeShopify) GetShopProfile(ctx context.Context, shop string, accessToken string) (*domain.ShopProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	return f.profile, nil
}

func (f *fakeShopify) GraphQL(ctx context.Context, shop string, accessToken string, query string, variables map[string]interface{}, out interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.graphqlCalls++
	f.lastQuery = query
	f.lastVars = variables
	if f.graphqlErr != nil {
		return f.graphqlErr
	}
	raw, err := json.Marshal(f.graphqlData)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (f *fakeShopify) CreateWebhook(ctx context.Context, shop string, accessToken string, topic string, address string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.webhookErr != nil {
		return 0, f.webhookErr
	}
	f.registered = append(f.registered, topic)
	return int64(len(f.registered)), nil
}

func (f *fakeShopify) exchangeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exchanges
}

// recordingQueue keeps enqueued jobs for inspection
type recordingQueue struct {
	mu   sync.Mutex
	jobs []*domain.WebhookJob
	err  error
}

func (q *recordingQueue) Enqueue(ctx context.Context, job *domain.WebhookJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *recordingQueue) Start(ctx context.Context, handle ports.JobHandler) {}

func (q *recordingQueue) Close() error { return nil }

func (q *recordingQueue) Jobs() []*domain.WebhookJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]*domain.WebhookJob(nil), q.jobs...)
}

type harness struct {
	shops  ports.ShopRepository
	states ports.OAuthStateRepository
	events ports.WebhookEventRepository
	usage  ports.UsageRepository

	client *fakeShopify
	queue  *recordingQueue

	stateSvc   *StateService
	creds      *CredentialsService
	oauth      *OAuthService
	webhooks   *WebhookService
	dispatcher *WebhookDispatcher
	shopAPI    *ShopAPIService
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	db, err := sqlrepo.Open(sqlrepo.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlrepo.Close(db) })

	enc, err := encryption.NewService("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)

	logger := zerolog.Nop()
	h := &harness{
		shops:  sqlrepo.NewShopRepository(db),
		states: sqlrepo.NewOAuthStateRepository(db),
		events: sqlrepo.NewWebhookEventRepository(db),
		usage:  sqlrepo.NewUsageRepository(db),
		client: newFakeShopify(),
		queue:  &recordingQueue{},
	}

	verifier := shopify.NewVerifier(testAPIKey, testAPISecret)
	h.stateSvc = NewStateService(h.states, 10*time.Minute, logger)
	h.creds = NewCredentialsService(h.shops, shopify.NewTokenManager(enc, logger), logger)
	h.oauth = NewOAuthService(h.stateSvc, h.creds, h.client, verifier, metrics.Noop{}, OAuthConfig{
		Scopes: []string{"read_products", "write_orders"},
		AppURL: testAppURL + "/",
	}, logger)
	h.webhooks = NewWebhookService(h.events, h.queue, verifier, metrics.Noop{}, logger)
	h.dispatcher = NewWebhookDispatcher(h.events, metrics.Noop{}, time.Second, logger)
	h.shopAPI, err = NewShopAPIService(h.creds, h.client, h.usage, h.events, logger)
	require.NoError(t, err)
	return h
}

// install runs a complete install for shop and returns the success redirect
func (h *harness) install(t *testing.T, shop string) string {
	t.Helper()
	ctx := context.Background()

	authURL, err := h.oauth.Install(ctx, shop)
	require.NoError(t, err)

	redirect, err := h.oauth.Callback(ctx, signedCallback(t, authURL, shop, "code-123"))
	require.NoError(t, err)
	return redirect
}

// signedCallback builds the query Shopify sends back after consent
func signedCallback(t *testing.T, authURL, shop, code string) url.Values {
	t.Helper()
	u, err := url.Parse(authURL)
	require.NoError(t, err)

	params := url.Values{
		"shop":      {shop},
		"code":      {code},
		"state":     {u.Query().Get("state")},
		"timestamp": {"1700000000"},
	}
	params.Set("hmac", signParams(params))
	return params
}

func signParams(params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k != "hmac" && k != "signature" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params.Get(k))
	}

	mac := hmac.New(sha256.New, []byte(testAPISecret))
	mac.Write([]byte(strings.Join(pairs, "&")))
	return hex.EncodeToString(mac.Sum(nil))
}

func signBody(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testAPISecret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func delivery(topic, shop string, body []byte) WebhookDelivery {
	return WebhookDelivery{
		Topic:      topic,
		ShopDomain: shop,
		HMAC:       signBody(body),
		WebhookID:  "wh-1",
		Headers:    map[string]string{"X-Shopify-Topic": topic},
		Body:       body,
	}
}

var errBoom = errors.New("boom")
