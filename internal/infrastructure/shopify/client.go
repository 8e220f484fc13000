package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"shopify-multishop-layer/internal/domain"
	"shopify-multishop-layer/internal/ports"

	goshopify "github.com/bold-commerce/go-shopify/v4"
	"github.com/rs/zerolog"
)

// DefaultAPIVersion is the Admin API version used for every call
const DefaultAPIVersion = "2023-10"

// ClientConfig holds the app credentials and transport settings for the Shopify client
type ClientConfig struct {
	APIKey     string
	APISecret  string
	APIVersion string
	Timeout    time.Duration
	// HTTPClient overrides the transport; Timeout is ignored when set
	HTTPClient *http.Client
}

type client struct {
	apiKey     string
	apiSecret  string
	apiVersion string
	app        goshopify.App
	httpClient *http.Client
	metrics    ports.Metrics
	logger     zerolog.Logger
}

// NewClient creates a new Shopify client adapter
func NewClient(cfg ClientConfig, metrics ports.Metrics, logger zerolog.Logger) ports.ShopifyClient {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	apiVersion := cfg.APIVersion
	if apiVersion == "" {
		apiVersion = DefaultAPIVersion
	}
	return &client{
		apiKey:     cfg.APIKey,
		apiSecret:  cfg.APISecret,
		apiVersion: apiVersion,
		app: goshopify.App{
			ApiKey:    cfg.APIKey,
			ApiSecret: cfg.APISecret,
		},
		httpClient: httpClient,
		metrics:    metrics,
		logger:     logger,
	}
}

// createClient is a helper to create a goshopify client
func (c *client) createClient(shopDomain string, accessToken string) (*goshopify.Client, error) {
	client, err := goshopify.NewClient(c.app, shopDomain, accessToken,
		goshopify.WithVersion(c.apiVersion),
		goshopify.WithHTTPClient(c.httpClient),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return client, nil
}

// Authentication methods

func (c *client) AuthorizeURL(shop string, scopes []string, redirectURI string, state string) string {
	// Shopify expects scopes to be comma-separated (no spaces)
	query := url.Values{}
	query.Set("client_id", c.apiKey)
	query.Set("scope", strings.Join(scopes, ","))
	query.Set("redirect_uri", redirectURI)
	query.Set("state", state)
	query.Set("response_type", "code")

	c.logger.Debug().
		Str("shop", shop).
		Strs("scopes", scopes).
		Msg("Generated OAuth authorization URL")

	return fmt.Sprintf("https://%s/admin/oauth/authorize?%s", shop, query.Encode())
}

func (c *client) ExchangeToken(ctx context.Context, shop string, code string) (*ports.TokenResponse, error) {
	start := time.Now()
	tokenURL := fmt.Sprintf("https://%s/admin/oauth/access_token", shop)

	body, err := json.Marshal(map[string]string{
		"client_id":     c.apiKey,
		"client_secret": c.apiSecret,
		"code":          code,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe("exchange_token", err, start)
		return nil, fmt.Errorf("failed to exchange token: %w", classify(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("status %d, body: %s", resp.StatusCode, string(bodyBytes))
		c.observe("exchange_token", err, start)
		return nil, fmt.Errorf("failed to exchange token: %w", err)
	}

	var tokenResponse ports.TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResponse); err != nil {
		c.observe("exchange_token", err, start)
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}

	c.observe("exchange_token", nil, start)
	return &tokenResponse, nil
}

// Shop API

func (c *client) GetShopProfile(ctx context.Context, shopDomain string, accessToken string) (*domain.ShopProfile, error) {
	start := time.Now()
	client, err := c.createClient(shopDomain, accessToken)
	if err != nil {
		return nil, err
	}
	shop, err := client.Shop.Get(ctx, nil)
	c.observe("shop_get", err, start)
	if err != nil {
		return nil, fmt.Errorf("failed to get shop: %w", classify(err))
	}
	return &domain.ShopProfile{
		Name:            shop.Name,
		Email:           shop.Email,
		ShopOwner:       shop.ShopOwner,
		CountryCode:     shop.CountryCode,
		CountryName:     shop.CountryName,
		Currency:        shop.Currency,
		IanaTimezone:    shop.IanaTimezone,
		PrimaryLocale:   shop.PrimaryLocale,
		PlanName:        shop.PlanName,
		PlanDisplayName: shop.PlanDisplayName,
		Domain:          shop.Domain,
		MyshopifyDomain: shop.MyshopifyDomain,
	}, nil
}

// GraphQL API

func (c *client) GraphQL(ctx context.Context, shopDomain string, accessToken string, query string, variables map[string]interface{}, out interface{}) error {
	start := time.Now()
	client, err := c.createClient(shopDomain, accessToken)
	if err != nil {
		return err
	}
	err = client.GraphQL.Query(ctx, query, variables, out)
	c.observe("graphql", err, start)
	if err != nil {
		return fmt.Errorf("failed to run graphql query: %w", classify(err))
	}
	return nil
}

// Webhook API

func (c *client) CreateWebhook(ctx context.Context, shopDomain string, accessToken string, topic string, address string) (int64, error) {
	start := time.Now()
	client, err := c.createClient(shopDomain, accessToken)
	if err != nil {
		return 0, err
	}
	webhook := goshopify.Webhook{
		Topic:   topic,
		Address: address,
		Format:  "json",
	}
	created, err := client.Webhook.Create(ctx, webhook)
	c.observe("webhook_create", err, start)
	if err != nil {
		return 0, fmt.Errorf("failed to create webhook: %w", classify(err))
	}
	return int64(created.Id), nil
}

func (c *client) observe(operation string, err error, start time.Time) {
	if c.metrics == nil {
		return
	}
	status := "ok"
	switch {
	case err == nil:
	case isTimeout(err):
		status = "timeout"
	default:
		status = "error"
	}
	c.metrics.ShopifyCall(operation, status, time.Since(start))
}

// classify tags transport and auth failures with the matching domain error
func classify(err error) error {
	switch {
	case isTimeout(err):
		return fmt.Errorf("%w: %w", domain.ErrUpstreamTimeout, err)
	case IsAuthError(err):
		return fmt.Errorf("%w: %w", domain.ErrCredentialRevoked, err)
	default:
		return fmt.Errorf("%w: %w", domain.ErrUpstreamFailure, err)
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
