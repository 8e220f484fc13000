package ports

import (
	"context"

	"shopify-multishop-layer/internal/domain"
)

// TokenResponse is the result of exchanging an OAuth code
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	Scope       string `json:"scope"`
}

// ShopifyClient defines the outbound Shopify Admin API operations
type ShopifyClient interface {
	// Authentication
	AuthorizeURL(shop string, scopes []string, redirectURI string, state string) string
	ExchangeToken(ctx context.Context, shop string, code string) (*TokenResponse, error)

	// Shop API
	GetShopProfile(ctx context.Context, shop string, accessToken string) (*domain.ShopProfile, error)

	// GraphQL decodes the data member of the response into out
	GraphQL(ctx context.Context, shop string, accessToken string, query string, variables map[string]interface{}, out interface{}) error

	// Webhook API
	CreateWebhook(ctx context.Context, shop string, accessToken string, topic string, address string) (int64, error)
}

// SignatureVerifier authenticates requests signed with the app secret
type SignatureVerifier interface {
	VerifyOAuthCallback(params map[string][]string) bool
	VerifyWebhook(rawBody []byte, hmacHeader string) bool
}

// SessionTokenVerifier validates App Bridge session tokens
type SessionTokenVerifier interface {
	Verify(token string, shop string) (map[string]interface{}, error)
}
