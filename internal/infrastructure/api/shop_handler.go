package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"shopify-multishop-layer/internal/application"
	"shopify-multishop-layer/internal/domain"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

const maxSettingsBodyBytes = 1 << 20

// ShopHandler serves shop details, settings and the product proxy
type ShopHandler struct {
	shops      *application.ShopAPIService
	validate   *validator.Validate
	writeError func(http.ResponseWriter, *http.Request, error)
}

// GetShop returns the shop with its recent usage and webhook activity
func (h *ShopHandler) GetShop(w http.ResponseWriter, r *http.Request) {
	details, err := h.shops.GetShopDetails(r.Context(), chi.URLParam(r, "shop"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

// UpdateSettings merges the JSON object body into the shop settings
func (h *ShopHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var changes map[string]interface{}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSettingsBodyBytes))
	if err := dec.Decode(&changes); err != nil {
		h.writeError(w, r, fmt.Errorf("%w: %w", domain.ErrInvalidSettings, err))
		return
	}
	if err := h.validate.Var(changes, "required,min=1,max=100"); err != nil {
		h.writeError(w, r, fmt.Errorf("%w: %w", domain.ErrInvalidSettings, err))
		return
	}

	shop := chi.URLParam(r, "shop")
	settings, err := h.shops.UpdateSettings(r.Context(), shop, changes)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"shop":     shop,
		"settings": settings,
	})
}

// GetProducts fetches products through the Shopify GraphQL API
func (h *ShopHandler) GetProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	shop := q.Get("shop")

	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.writeError(w, r, fmt.Errorf("%w: limit", domain.ErrInvalidQuery))
			return
		}
		limit = n
	}

	data, err := h.shops.GetProducts(r.Context(), shop, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"shop": shop,
		"data": data,
	})
}
