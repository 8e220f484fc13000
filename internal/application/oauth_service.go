package application

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"shopify-multishop-layer/internal/domain"
	"shopify-multishop-layer/internal/ports"

	"github.com/rs/zerolog"
)

const webhookRegistrationTimeout = time.Minute

// OAuthConfig holds the app settings the install flow needs
type OAuthConfig struct {
	Scopes        []string
	AppURL        string
	WebhookTopics []string
}

// OAuthService drives the install handshake: issue state, verify the callback, exchange, finalize
type OAuthService struct {
	states     *StateService
	creds      *CredentialsService
	client     ports.ShopifyClient
	verifier   ports.SignatureVerifier
	metrics    ports.Metrics
	cfg        OAuthConfig
	logger     zerolog.Logger
	background sync.WaitGroup
}

// NewOAuthService creates a new OAuth service
func NewOAuthService(
	states *StateService,
	creds *CredentialsService,
	client ports.ShopifyClient,
	verifier ports.SignatureVerifier,
	metrics ports.Metrics,
	cfg OAuthConfig,
	logger zerolog.Logger,
) *OAuthService {
	cfg.AppURL = strings.TrimRight(cfg.AppURL, "/")
	return &OAuthService{
		states:   states,
		creds:    creds,
		client:   client,
		verifier: verifier,
		metrics:  metrics,
		cfg:      cfg,
		logger:   logger,
	}
}

// RedirectURI is the callback address registered with Shopify
func (s *OAuthService) RedirectURI() string {
	return s.cfg.AppURL + "/auth/callback"
}

// WebhookAddress is where Shopify delivers webhooks for this app
func (s *OAuthService) WebhookAddress() string {
	return s.cfg.AppURL + "/webhooks/shopify"
}

// SuccessURL is where the merchant lands after a completed install
func (s *OAuthService) SuccessURL(shop string) string {
	return s.cfg.AppURL + "/auth/success?" + url.Values{"shop": {shop}}.Encode()
}

// Install validates the shop and returns the Shopify authorize URL carrying a fresh state token
func (s *OAuthService) Install(ctx context.Context, shop string) (string, error) {
	if !domain.IsValidShopDomain(shop) {
		return "", domain.ErrInvalidDomain
	}

	state, err := s.states.Issue(ctx, shop)
	if err != nil {
		s.logger.Error().Err(err).Str("shop", shop).Msg("Failed to issue OAuth state")
		return "", err
	}

	s.logger.Info().Str("shop", shop).Msg("Starting OAuth install")
	return s.client.AuthorizeURL(shop, s.cfg.Scopes, s.RedirectURI(), state), nil
}

// Callback completes the install and returns the success redirect.
// Each step short-circuits: verify, consume state, exchange, fetch profile, upsert.
func (s *OAuthService) Callback(ctx context.Context, params url.Values) (string, error) {
	redirect, err := s.callback(ctx, params)
	s.metrics.OAuthInstall(installResult(err))
	return redirect, err
}

func (s *OAuthService) callback(ctx context.Context, params url.Values) (string, error) {
	shop := params.Get("shop")
	code := params.Get("code")
	state := params.Get("state")

	if shop == "" || code == "" || state == "" {
		return "", domain.ErrMissingParameters
	}
	if !domain.IsValidShopDomain(shop) {
		return "", domain.ErrInvalidDomain
	}

	if !s.verifier.VerifyOAuthCallback(params) {
		s.logger.Warn().Str("shop", shop).Msg("OAuth callback signature verification failed")
		return "", domain.ErrInvalidSignature
	}

	ok, err := s.states.Consume(ctx, state, shop)
	if err != nil {
		s.logger.Error().Err(err).Str("shop", shop).Msg("Failed to consume OAuth state")
		return "", err
	}
	if !ok {
		s.logger.Warn().Str("shop", shop).Msg("OAuth state rejected")
		return "", domain.ErrInvalidOrExpiredState
	}

	token, err := s.client.ExchangeToken(ctx, shop, code)
	if err != nil {
		s.logger.Error().Err(err).Str("shop", shop).Msg("Failed to exchange OAuth code")
		return "", fmt.Errorf("%w: %w", domain.ErrTokenExchangeFailed, err)
	}
	if token == nil || token.AccessToken == "" {
		s.logger.Error().Str("shop", shop).Msg("Token exchange returned no access token")
		return "", domain.ErrTokenExchangeFailed
	}

	if err := s.finalize(ctx, shop, token); err != nil {
		s.logger.Error().Err(err).Str("shop", shop).Msg("Failed to finalize installation")
		return "", fmt.Errorf("%w: %w", domain.ErrInstallationFailed, err)
	}

	s.registerWebhooks(ctx, shop, token.AccessToken)

	s.logger.Info().Str("shop", shop).Msg("OAuth install completed")
	return s.SuccessURL(shop), nil
}

func (s *OAuthService) finalize(ctx context.Context, shop string, token *ports.TokenResponse) error {
	profile, err := s.client.GetShopProfile(ctx, shop, token.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to fetch shop profile: %w", err)
	}

	return s.creds.Upsert(ctx, shop, &domain.Credential{
		AccessToken: token.AccessToken,
		Scopes:      domain.ParseScopes(token.Scope),
		Profile:     *profile,
	})
}

// registerWebhooks subscribes the configured topics in the background.
// Failures are logged only; the install has already succeeded.
func (s *OAuthService) registerWebhooks(ctx context.Context, shop, accessToken string) {
	if len(s.cfg.WebhookTopics) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), webhookRegistrationTimeout)
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		defer cancel()

		address := s.WebhookAddress()
		for _, topic := range s.cfg.WebhookTopics {
			id, err := s.client.CreateWebhook(ctx, shop, accessToken, topic, address)
			if err != nil {
				s.logger.Warn().Err(err).Str("shop", shop).Str("topic", topic).Msg("Failed to register webhook")
				continue
			}
			s.logger.Info().Str("shop", shop).Str("topic", topic).Int64("webhookId", id).Msg("Registered webhook")
		}
	}()
}

// Wait blocks until background webhook registrations finish
func (s *OAuthService) Wait() {
	s.background.Wait()
}

func installResult(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrMissingParameters), errors.Is(err, domain.ErrInvalidDomain):
		return "bad_request"
	case errors.Is(err, domain.ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, domain.ErrInvalidOrExpiredState):
		return "invalid_state"
	case errors.Is(err, domain.ErrTokenExchangeFailed):
		return "exchange_failed"
	default:
		return "error"
	}
}
