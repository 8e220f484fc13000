package middleware

import (
	"context"
	"net/http"
	"strings"

	"shopify-multishop-layer/internal/domain"
	"shopify-multishop-layer/internal/ports"

	"github.com/go-chi/chi/v5"
)

type contextKey string

const sessionClaimsKey contextKey = "session_claims"

// ErrorWriter renders an error response
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// SessionTokenMiddleware requires a Shopify session token issued for the shop named by the
// {shop} route parameter or the shop query parameter
func SessionTokenMiddleware(verifier ports.SessionTokenVerifier, writeError ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			shop := chi.URLParam(r, "shop")
			if shop == "" {
				shop = r.URL.Query().Get("shop")
			}
			if !domain.IsValidShopDomain(shop) {
				writeError(w, r, domain.ErrInvalidDomain)
				return
			}

			token, ok := bearerToken(r)
			if !ok {
				writeError(w, r, domain.ErrInvalidSessionToken)
				return
			}

			claims, err := verifier.Verify(token, shop)
			if err != nil {
				writeError(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), sessionClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionClaims returns the verified session token claims, if any
func SessionClaims(ctx context.Context) map[string]interface{} {
	claims, _ := ctx.Value(sessionClaimsKey).(map[string]interface{})
	return claims
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}
