package application

import (
	"context"
	"fmt"
	"time"

	"shopify-multishop-layer/internal/domain"
	"shopify-multishop-layer/internal/ports"

	"github.com/rs/zerolog"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

const (
	defaultProductLimit = 50
	maxProductLimit     = 100
	usageWindow         = 7 * 24 * time.Hour
)

const productsQuery = `query ListProducts($first: Int!) {
  products(first: $first) {
    edges {
      node {
        id
        title
        handle
        status
        createdAt
        updatedAt
        totalInventory
      }
    }
  }
}`

// PreparedQuery is a GraphQL document checked before it is sent to Shopify
type PreparedQuery struct {
	Query     string
	Operation string
}

// PrepareQuery parses a GraphQL document and extracts its single operation name
func PrepareQuery(query string) (*PreparedQuery, error) {
	doc, err := parser.ParseQuery(&ast.Source{Name: "shopify", Input: query})
	if err != nil {
		return nil, fmt.Errorf("failed to parse GraphQL query: %w", err)
	}
	if len(doc.Operations) != 1 {
		return nil, fmt.Errorf("expected exactly one GraphQL operation, got %d", len(doc.Operations))
	}

	op := doc.Operations[0]
	name := op.Name
	if name == "" {
		name = string(op.Operation)
	}
	return &PreparedQuery{Query: query, Operation: name}, nil
}

// ShopDetails is the shop record enriched with recent activity
type ShopDetails struct {
	Shop          *domain.Shop     `json:"shop"`
	Status        string           `json:"status"`
	Usage         map[string]int64 `json:"usage_7d"`
	WebhookCounts map[string]int64 `json:"webhooks_7d"`
}

// ShopAPIService makes metered calls to Shopify on behalf of installed shops
type ShopAPIService struct {
	creds    *CredentialsService
	client   ports.ShopifyClient
	usage    ports.UsageRepository
	events   ports.WebhookEventRepository
	products *PreparedQuery
	clock    ports.Clock
	logger   zerolog.Logger
}

// NewShopAPIService creates a new shop API service
func NewShopAPIService(
	creds *CredentialsService,
	client ports.ShopifyClient,
	usage ports.UsageRepository,
	events ports.WebhookEventRepository,
	logger zerolog.Logger,
) (*ShopAPIService, error) {
	products, err := PrepareQuery(productsQuery)
	if err != nil {
		return nil, err
	}
	return &ShopAPIService{
		creds:    creds,
		client:   client,
		usage:    usage,
		events:   events,
		products: products,
		clock:    time.Now,
		logger:   logger,
	}, nil
}

// GetProducts fetches the first limit products of an installed shop
func (s *ShopAPIService) GetProducts(ctx context.Context, shop string, limit int) (map[string]interface{}, error) {
	if !domain.IsValidShopDomain(shop) {
		return nil, domain.ErrInvalidDomain
	}
	switch {
	case limit <= 0:
		limit = defaultProductLimit
	case limit > maxProductLimit:
		limit = maxProductLimit
	}

	token, err := s.creds.ActiveToken(ctx, shop)
	if err != nil {
		return nil, err
	}

	var data map[string]interface{}
	vars := map[string]interface{}{"first": limit}
	if err := s.client.GraphQL(ctx, shop, token, s.products.Query, vars, &data); err != nil {
		s.logger.Error().Err(err).Str("shop", shop).Str("operation", s.products.Operation).Msg("Shopify GraphQL call failed")
		return nil, err
	}

	s.recordCall(ctx, shop, map[string]interface{}{
		"endpoint":  "products",
		"operation": s.products.Operation,
		"limit":     limit,
	})
	return data, nil
}

// recordCall meters one API call and refreshes last_seen_at. Failures are logged only.
func (s *ShopAPIService) recordCall(ctx context.Context, shop string, data map[string]interface{}) {
	now := s.clock().UTC()
	record := &domain.UsageRecord{
		ShopDomain:  shop,
		MetricName:  domain.MetricAPICalls,
		MetricValue: 1,
		MetricData:  data,
		Date:        now,
	}
	if err := s.usage.RecordUsage(ctx, record); err != nil {
		s.logger.Warn().Err(err).Str("shop", shop).Msg("Failed to record API usage")
	}
	if err := s.creds.Touch(ctx, shop); err != nil {
		s.logger.Warn().Err(err).Str("shop", shop).Msg("Failed to update last seen")
	}
}

// GetShopDetails returns the shop with its usage and webhook activity over the last seven days
func (s *ShopAPIService) GetShopDetails(ctx context.Context, shop string) (*ShopDetails, error) {
	if !domain.IsValidShopDomain(shop) {
		return nil, domain.ErrInvalidDomain
	}

	record, err := s.creds.Get(ctx, shop)
	if err != nil {
		return nil, err
	}

	since := s.clock().UTC().Add(-usageWindow)
	usage, err := s.usage.SumUsage(ctx, shop, since)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStorageFailure, err)
	}
	counts, err := s.events.CountByTopic(ctx, shop, since)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStorageFailure, err)
	}

	return &ShopDetails{
		Shop:          record,
		Status:        record.Status(),
		Usage:         usage,
		WebhookCounts: counts,
	}, nil
}

// UpdateSettings merges settings for an installed shop
func (s *ShopAPIService) UpdateSettings(ctx context.Context, shop string, changes map[string]interface{}) (map[string]interface{}, error) {
	if !domain.IsValidShopDomain(shop) {
		return nil, domain.ErrInvalidDomain
	}
	if len(changes) == 0 {
		return nil, domain.ErrInvalidSettings
	}
	return s.creds.UpdateSettings(ctx, shop, changes)
}
