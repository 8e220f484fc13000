package api

import (
	"context"
	"net/http"
	"time"

	"shopify-multishop-layer/internal/application"
	securitymiddleware "shopify-multishop-layer/internal/infrastructure/middleware"
	"shopify-multishop-layer/internal/ports"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger"
)

const healthTimeout = 2 * time.Second

// Dependencies wires the services behind the HTTP routes
type Dependencies struct {
	OAuth         *application.OAuthService
	Credentials   *application.CredentialsService
	Webhooks      *application.WebhookService
	Shops         *application.ShopAPIService
	SessionTokens ports.SessionTokenVerifier

	// Health reports storage reachability; nil means always healthy
	Health func(ctx context.Context) error
	// Metrics serves /metrics when set
	Metrics http.Handler

	// RequireSessionToken puts the shop and product routes behind session token auth
	RequireSessionToken bool

	AllowedOrigins      []string
	MaxWebhookBodyBytes int64
	SwaggerFile         string
	Logger              zerolog.Logger
}

// NewRouter builds the HTTP handler for every public route
func NewRouter(deps Dependencies) http.Handler {
	writeError := errorWriter(deps.Logger)

	auth := &AuthHandler{oauth: deps.OAuth, creds: deps.Credentials, writeError: writeError}
	webhooks := &WebhookHandler{webhooks: deps.Webhooks, maxBodyBytes: deps.MaxWebhookBodyBytes, writeError: writeError}
	shops := &ShopHandler{shops: deps.Shops, validate: validator.New(), writeError: writeError}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(securitymiddleware.RequestLogger(deps.Logger))
	r.Use(middleware.Recoverer)
	r.Use(securitymiddleware.SecurityHeadersMiddleware())
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: deps.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if deps.Health != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
			defer cancel()
			if err := deps.Health(ctx); err != nil {
				deps.Logger.Warn().Err(err).Msg("Health check failed")
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics)
	}

	if deps.SwaggerFile != "" {
		r.Get("/swagger/doc.json", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			http.ServeFile(w, r, deps.SwaggerFile)
		})
		r.Get("/swagger/*", httpSwagger.Handler(
			httpSwagger.URL("/swagger/doc.json"),
		))
	}

	// OAuth routes
	r.Get("/auth/install", auth.Install)
	r.Get("/auth/callback", auth.Callback)
	r.Get("/auth/success", auth.Success)

	// Webhook routes
	r.Post("/webhooks/shopify", webhooks.Receive)
	r.Get("/webhooks/events", webhooks.ListEvents)

	// Shop API routes
	sessionAuth := securitymiddleware.SessionTokenMiddleware(deps.SessionTokens, writeError)
	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if deps.RequireSessionToken {
				r.Use(sessionAuth)
			}
			r.Get("/shops/{shop}", shops.GetShop)
			r.Put("/shops/{shop}/settings", shops.UpdateSettings)
			r.Get("/products", shops.GetProducts)
		})
		r.With(sessionAuth).Get("/products/embedded", shops.GetProducts)
	})

	return r
}
