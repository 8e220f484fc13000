package webhook_handlers

import (
	"context"

	"shopify-multishop-layer/internal/application"
	"shopify-multishop-layer/internal/domain"

	"github.com/rs/zerolog"
)

// AppUninstalledHandler revokes the shop credential when the app is removed
type AppUninstalledHandler struct {
	creds  *application.CredentialsService
	logger zerolog.Logger
}

// NewAppUninstalledHandler creates a new app uninstalled webhook handler
func NewAppUninstalledHandler(creds *application.CredentialsService, logger zerolog.Logger) *AppUninstalledHandler {
	return &AppUninstalledHandler{
		creds:  creds,
		logger: logger,
	}
}

// CanHandle returns true if this handler can process the given topic
func (h *AppUninstalledHandler) CanHandle(topic string) bool {
	return topic == domain.TopicAppUninstalled
}

// Handle marks the shop uninstalled. Repeated deliveries leave the same end state.
func (h *AppUninstalledHandler) Handle(ctx context.Context, event *domain.WebhookEvent) application.Result {
	shopDomain := event.ShopDomain
	if shopDomain == "" {
		shopDomain = str(event.Payload, "myshopify_domain")
	}

	h.logger.Info().
		Str("topic", event.Topic).
		Str("shop", shopDomain).
		Msg("Processing app uninstalled webhook event")

	if err := h.creds.MarkUninstalled(ctx, shopDomain); err != nil {
		h.logger.Error().Err(err).Str("shop", shopDomain).Msg("Failed to mark shop uninstalled")
		return application.Failure(err.Error())
	}
	return application.Success()
}
