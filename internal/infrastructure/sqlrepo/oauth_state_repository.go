package sqlrepo

import (
	"context"
	"fmt"
	"time"

	"shopify-multishop-layer/internal/domain"
	"shopify-multishop-layer/internal/ports"

	"gorm.io/gorm"
)

// OAuthStateRepository implements ports.OAuthStateRepository using GORM
type OAuthStateRepository struct {
	db *gorm.DB
}

// NewOAuthStateRepository creates a new SQL OAuth state repository
func NewOAuthStateRepository(db *gorm.DB) ports.OAuthStateRepository {
	return &OAuthStateRepository{db: db}
}

// CreateState stores a freshly issued state token
func (r *OAuthStateRepository) CreateState(ctx context.Context, state *domain.OAuthState) error {
	model := &OAuthStateModel{
		State:      state.State,
		ShopDomain: state.ShopDomain,
		CreatedAt:  state.CreatedAt.UTC(),
	}
	if state.ExpiresAt != nil {
		expires := state.ExpiresAt.UTC()
		model.ExpiresAt = &expires
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to create oauth state: %w", err)
	}
	state.ID = fmt.Sprint(model.ID)
	return nil
}

// ConsumeState deletes the matching unexpired token. Only the caller whose delete hits a row wins.
func (r *OAuthStateRepository) ConsumeState(ctx context.Context, state, shopDomain string, now time.Time) (bool, error) {
	now = now.UTC()
	result := r.db.WithContext(ctx).
		Where("state = ? AND shop_domain = ? AND (expires_at IS NULL OR expires_at > ?)", state, shopDomain, now).
		Delete(&OAuthStateModel{})
	if result.Error != nil {
		return false, fmt.Errorf("failed to consume oauth state: %w", result.Error)
	}
	if result.RowsAffected == 1 {
		return true, nil
	}

	// An expired token is dead either way
	if err := r.db.WithContext(ctx).
		Where("state = ? AND expires_at IS NOT NULL AND expires_at <= ?", state, now).
		Delete(&OAuthStateModel{}).Error; err != nil {
		return false, fmt.Errorf("failed to remove expired oauth state: %w", err)
	}
	return false, nil
}

// DeleteExpired removes every token whose expiry has passed
func (r *OAuthStateRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at <= ?", now.UTC()).
		Delete(&OAuthStateModel{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete expired oauth states: %w", result.Error)
	}
	return result.RowsAffected, nil
}
