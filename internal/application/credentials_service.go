package application

import (
	"context"
	"fmt"
	"time"

	"shopify-multishop-layer/internal/domain"
	"shopify-multishop-layer/internal/ports"

	"github.com/rs/zerolog"
)

// CredentialsService manages the per-shop access credential
type CredentialsService struct {
	repo   ports.ShopRepository
	tokens ports.TokenSealer
	clock  ports.Clock
	logger zerolog.Logger
}

// NewCredentialsService creates a new credentials service
func NewCredentialsService(repo ports.ShopRepository, tokens ports.TokenSealer, logger zerolog.Logger) *CredentialsService {
	return &CredentialsService{
		repo:   repo,
		tokens: tokens,
		clock:  time.Now,
		logger: logger,
	}
}

// Upsert stores the credential for shop, creating the record on first install
func (s *CredentialsService) Upsert(ctx context.Context, shopDomain string, cred *domain.Credential) error {
	sealed, err := s.tokens.Seal(cred.AccessToken)
	if err != nil {
		return err
	}

	shop := &domain.Shop{
		Domain:      shopDomain,
		AccessToken: sealed,
		Scopes:      cred.Scopes,
	}
	shop.ApplyProfile(cred.Profile)

	if err := s.repo.UpsertShop(ctx, shop, s.clock().UTC()); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStorageFailure, err)
	}

	s.logger.Info().
		Str("shop", shopDomain).
		Strs("scopes", cred.Scopes).
		Str("plan", cred.Profile.PlanDisplayName).
		Msg("Shop credential saved")
	return nil
}

// MarkUninstalled revokes the credential. An unknown shop is logged and ignored.
func (s *CredentialsService) MarkUninstalled(ctx context.Context, shopDomain string) error {
	found, err := s.repo.MarkUninstalled(ctx, shopDomain, s.clock().UTC())
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStorageFailure, err)
	}
	if !found {
		s.logger.Warn().Str("shop", shopDomain).Msg("Shop not found for uninstallation")
		return nil
	}
	s.logger.Info().Str("shop", shopDomain).Msg("Marked shop as uninstalled")
	return nil
}

// Get returns the shop with its access token decrypted
func (s *CredentialsService) Get(ctx context.Context, shopDomain string) (*domain.Shop, error) {
	shop, err := s.repo.GetShop(ctx, shopDomain)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStorageFailure, err)
	}
	if shop == nil {
		return nil, domain.ErrShopNotFound
	}

	token, err := s.tokens.Open(shop.AccessToken)
	if err != nil {
		return nil, err
	}
	shop.AccessToken = token
	return shop, nil
}

// ActiveToken returns the token for an installed shop
func (s *CredentialsService) ActiveToken(ctx context.Context, shopDomain string) (string, error) {
	shop, err := s.Get(ctx, shopDomain)
	if err != nil {
		return "", err
	}
	if !shop.IsActive() {
		return "", domain.ErrCredentialRevoked
	}
	return shop.AccessToken, nil
}

// Touch records that the shop was just served
func (s *CredentialsService) Touch(ctx context.Context, shopDomain string) error {
	if err := s.repo.TouchShop(ctx, shopDomain, s.clock().UTC()); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStorageFailure, err)
	}
	return nil
}

// UpdateSettings merges changes into the settings of an installed shop
func (s *CredentialsService) UpdateSettings(ctx context.Context, shopDomain string, changes map[string]interface{}) (map[string]interface{}, error) {
	shop, err := s.repo.GetShop(ctx, shopDomain)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStorageFailure, err)
	}
	if shop == nil || shop.Uninstalled {
		return nil, domain.ErrShopNotFound
	}

	merged := make(map[string]interface{}, len(shop.Settings)+len(changes))
	for k, v := range shop.Settings {
		merged[k] = v
	}
	for k, v := range changes {
		merged[k] = v
	}

	if err := s.repo.SaveSettings(ctx, shopDomain, merged, s.clock().UTC()); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStorageFailure, err)
	}

	s.logger.Info().Str("shop", shopDomain).Int("keys", len(changes)).Msg("Updated shop settings")
	return merged, nil
}
