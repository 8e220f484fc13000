package application

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"shopify-multishop-layer/internal/domain"
	"shopify-multishop-layer/internal/ports"

	"github.com/rs/zerolog"
)

const stateBytes = 32

// StateService issues and consumes single-use OAuth state tokens
type StateService struct {
	repo   ports.OAuthStateRepository
	ttl    time.Duration
	clock  ports.Clock
	logger zerolog.Logger
}

// NewStateService creates a state service. A zero ttl issues tokens that never expire.
func NewStateService(repo ports.OAuthStateRepository, ttl time.Duration, logger zerolog.Logger) *StateService {
	return &StateService{
		repo:   repo,
		ttl:    ttl,
		clock:  time.Now,
		logger: logger,
	}
}

// Issue creates and stores a fresh token bound to shop
func (s *StateService) Issue(ctx context.Context, shop string) (string, error) {
	token, err := generateState()
	if err != nil {
		return "", err
	}

	now := s.clock().UTC()
	state := &domain.OAuthState{
		State:      token,
		ShopDomain: shop,
		CreatedAt:  now,
	}
	if s.ttl > 0 {
		expires := now.Add(s.ttl)
		state.ExpiresAt = &expires
	}

	if err := s.repo.CreateState(ctx, state); err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrStorageFailure, err)
	}
	return token, nil
}

// Consume reports whether token was live for shop, deleting it in the same step
func (s *StateService) Consume(ctx context.Context, token, shop string) (bool, error) {
	ok, err := s.repo.ConsumeState(ctx, token, shop, s.clock().UTC())
	if err != nil {
		return false, fmt.Errorf("%w: %w", domain.ErrStorageFailure, err)
	}
	return ok, nil
}

// PurgeExpired removes stale tokens left by abandoned installs
func (s *StateService) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteExpired(ctx, s.clock().UTC())
	if err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrStorageFailure, err)
	}
	if n > 0 {
		s.logger.Info().Int64("deleted", n).Msg("Purged expired OAuth states")
	}
	return n, nil
}

// RunPurger purges expired states every interval until ctx is done
func (s *StateService) RunPurger(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.PurgeExpired(ctx); err != nil {
				s.logger.Warn().Err(err).Msg("Failed to purge expired OAuth states")
			}
		}
	}
}

// generateState returns 32 random bytes as unpadded URL-safe base64
func generateState() (string, error) {
	b := make([]byte, stateBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
