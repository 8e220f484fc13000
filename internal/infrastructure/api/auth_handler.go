package api

import (
	"net/http"

	"shopify-multishop-layer/internal/application"
	"shopify-multishop-layer/internal/domain"
)

// AuthHandler serves the OAuth install flow
type AuthHandler struct {
	oauth      *application.OAuthService
	creds      *application.CredentialsService
	writeError func(http.ResponseWriter, *http.Request, error)
}

// Install redirects the merchant to the Shopify consent screen
func (h *AuthHandler) Install(w http.ResponseWriter, r *http.Request) {
	authURL, err := h.oauth.Install(r.Context(), r.URL.Query().Get("shop"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	http.Redirect(w, r, authURL, http.StatusTemporaryRedirect)
}

// Callback completes the install and redirects to the success page
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	redirect, err := h.oauth.Callback(r.Context(), r.URL.Query())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	http.Redirect(w, r, redirect, http.StatusTemporaryRedirect)
}

// Success reports the installed shop; uninstalled shops answer 404
func (h *AuthHandler) Success(w http.ResponseWriter, r *http.Request) {
	shopDomain := r.URL.Query().Get("shop")
	if !domain.IsValidShopDomain(shopDomain) {
		h.writeError(w, r, domain.ErrInvalidDomain)
		return
	}

	shop, err := h.creds.Get(r.Context(), shopDomain)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !shop.IsActive() {
		h.writeError(w, r, domain.ErrShopNotFound)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "installed",
		"shop":   shop.Domain,
		"name":   shop.Name,
		"plan":   shop.PlanDisplayName,
		"scopes": shop.Scopes,
	})
}
