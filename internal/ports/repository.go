package ports

import (
	"context"
	"time"

	"shopify-multishop-layer/internal/domain"
)

// ShopRepository defines the interface for shop credential persistence.
// Lookups return nil, nil when the shop does not exist.
type ShopRepository interface {
	// UpsertShop writes token, scopes and profile for shop.Domain, clearing any uninstall marker.
	// A new record gets installed_at, settings and subscription status set from shop.
	UpsertShop(ctx context.Context, shop *domain.Shop, now time.Time) error
	GetShop(ctx context.Context, shopDomain string) (*domain.Shop, error)
	// MarkUninstalled clears the token and flags the shop. found is false when no record exists.
	MarkUninstalled(ctx context.Context, shopDomain string, at time.Time) (found bool, err error)
	TouchShop(ctx context.Context, shopDomain string, at time.Time) error
	SaveSettings(ctx context.Context, shopDomain string, settings map[string]interface{}, at time.Time) error
}

// OAuthStateRepository stores single-use OAuth state tokens
type OAuthStateRepository interface {
	CreateState(ctx context.Context, state *domain.OAuthState) error
	// ConsumeState atomically deletes the token if it exists for shopDomain and has not expired at now.
	ConsumeState(ctx context.Context, state, shopDomain string, now time.Time) (bool, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// WebhookEventRepository stores inbound webhook deliveries and their processing status
type WebhookEventRepository interface {
	CreateEvent(ctx context.Context, event *domain.WebhookEvent) error
	GetEvent(ctx context.Context, id string) (*domain.WebhookEvent, error)
	MarkProcessed(ctx context.Context, id string, at time.Time) error
	MarkFailed(ctx context.Context, id string, message string) error
	// ListEvents returns events newest first
	ListEvents(ctx context.Context, filter domain.WebhookEventFilter) ([]*domain.WebhookEvent, error)
	// ListPending returns events that are neither processed nor failed, oldest first
	ListPending(ctx context.Context, limit int) ([]*domain.WebhookEvent, error)
	CountByTopic(ctx context.Context, shopDomain string, since time.Time) (map[string]int64, error)
}

// UsageRepository records metered API usage per shop
type UsageRepository interface {
	RecordUsage(ctx context.Context, record *domain.UsageRecord) error
	SumUsage(ctx context.Context, shopDomain string, since time.Time) (map[string]int64, error)
}
