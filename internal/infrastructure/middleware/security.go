package middleware

import "net/http"

// Embedded apps render inside the Shopify admin, so framing is limited to Shopify instead of denied
const frameAncestors = "frame-ancestors https://*.myshopify.com https://admin.shopify.com"

// SecurityHeadersMiddleware sets the response headers every route shares
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Content-Security-Policy", frameAncestors)
			next.ServeHTTP(w, r)
		})
	}
}
