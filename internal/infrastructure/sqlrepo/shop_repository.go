package sqlrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shopify-multishop-layer/internal/domain"
	"shopify-multishop-layer/internal/ports"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// upsertColumns are overwritten when a shop reinstalls; install time, settings and subscription survive
var upsertColumns = []string{
	"access_token", "scopes", "name", "email", "owner", "country_code", "country_name",
	"currency", "timezone", "primary_locale", "plan_name", "plan_display_name",
	"primary_domain", "myshopify_domain", "last_seen_at", "uninstalled", "uninstalled_at", "updated_at",
}

// ShopRepository implements ports.ShopRepository using GORM
type ShopRepository struct {
	db *gorm.DB
}

// NewShopRepository creates a new SQL shop repository
func NewShopRepository(db *gorm.DB) ports.ShopRepository {
	return &ShopRepository{db: db}
}

// UpsertShop inserts the shop or refreshes its credential in one statement
func (r *ShopRepository) UpsertShop(ctx context.Context, shop *domain.Shop, now time.Time) error {
	now = now.UTC()
	model := shopModelFromDomain(shop)
	if model.ID == "" {
		model.ID = uuid.NewString()
	}
	if model.Settings == nil {
		model.Settings = map[string]interface{}{}
	}
	if model.SubscriptionStatus == "" {
		model.SubscriptionStatus = domain.DefaultSubscriptionStatus
	}
	model.InstalledAt = now
	model.LastSeenAt = now
	model.Uninstalled = false
	model.UninstalledAt = nil
	model.CreatedAt = now
	model.UpdatedAt = now

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "domain"}},
		DoUpdates: clause.AssignmentColumns(upsertColumns),
	}).Create(model).Error
	if err != nil {
		return fmt.Errorf("failed to upsert shop: %w", err)
	}
	return nil
}

// GetShop retrieves a shop by domain
func (r *ShopRepository) GetShop(ctx context.Context, shopDomain string) (*domain.Shop, error) {
	var model ShopModel
	err := r.db.WithContext(ctx).Where("domain = ?", shopDomain).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get shop: %w", err)
	}
	return model.ToDomain(), nil
}

// MarkUninstalled flags the shop and clears its access token
func (r *ShopRepository) MarkUninstalled(ctx context.Context, shopDomain string, at time.Time) (bool, error) {
	at = at.UTC()
	result := r.db.WithContext(ctx).Model(&ShopModel{}).
		Where("domain = ?", shopDomain).
		Updates(map[string]interface{}{
			"uninstalled":    true,
			"uninstalled_at": at,
			"access_token":   "",
			"updated_at":     at,
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to mark shop uninstalled: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// TouchShop records activity on the shop
func (r *ShopRepository) TouchShop(ctx context.Context, shopDomain string, at time.Time) error {
	at = at.UTC()
	err := r.db.WithContext(ctx).Model(&ShopModel{}).
		Where("domain = ?", shopDomain).
		Updates(map[string]interface{}{"last_seen_at": at, "updated_at": at}).Error
	if err != nil {
		return fmt.Errorf("failed to touch shop: %w", err)
	}
	return nil
}

// SaveSettings replaces the stored settings document
func (r *ShopRepository) SaveSettings(ctx context.Context, shopDomain string, settings map[string]interface{}, at time.Time) error {
	at = at.UTC()
	err := r.db.WithContext(ctx).Model(&ShopModel{}).
		Where("domain = ?", shopDomain).
		Select("settings", "last_seen_at", "updated_at").
		Updates(&ShopModel{Settings: settings, LastSeenAt: at, UpdatedAt: at}).Error
	if err != nil {
		return fmt.Errorf("failed to save shop settings: %w", err)
	}
	return nil
}
