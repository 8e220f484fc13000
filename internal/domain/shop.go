package domain

import (
	"regexp"
	"strings"
	"time"
)

// DefaultSubscriptionStatus is assigned to every newly installed shop
const DefaultSubscriptionStatus = "trial"

var shopDomainPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9-]*\.myshopify\.com$`)

// IsValidShopDomain reports whether domain has the form <subdomain>.myshopify.com
func IsValidShopDomain(domain string) bool {
	if domain == "" {
		return false
	}
	return shopDomainPattern.MatchString(domain)
}

// Shop is the per-tenant credential record.
// The shop domain is the stable identity; an uninstalled shop never carries an access token.
type Shop struct {
	ID                 string                 `json:"id"`
	Domain             string                 `json:"domain"`
	MyshopifyDomain    string                 `json:"myshopify_domain,omitempty"`
	AccessToken        string                 `json:"-"`
	Scopes             []string               `json:"scopes"`
	Name               string                 `json:"name,omitempty"`
	Email              string                 `json:"email,omitempty"`
	Owner              string                 `json:"owner,omitempty"`
	CountryCode        string                 `json:"country_code,omitempty"`
	CountryName        string                 `json:"country_name,omitempty"`
	Currency           string                 `json:"currency,omitempty"`
	Timezone           string                 `json:"timezone,omitempty"`
	PrimaryLocale      string                 `json:"primary_locale,omitempty"`
	PlanName           string                 `json:"plan_name,omitempty"`
	PlanDisplayName    string                 `json:"plan_display_name,omitempty"`
	PrimaryDomain      string                 `json:"primary_domain,omitempty"`
	InstalledAt        time.Time              `json:"installed_at"`
	LastSeenAt         time.Time              `json:"last_seen_at"`
	Uninstalled        bool                   `json:"uninstalled"`
	UninstalledAt      *time.Time             `json:"uninstalled_at,omitempty"`
	Settings           map[string]interface{} `json:"settings"`
	SubscriptionStatus string                 `json:"subscription_status"`
	CreatedAt          time.Time              `json:"created_at"`
	UpdatedAt          time.Time              `json:"updated_at"`
}

// IsActive reports whether the shop can be called on behalf of
func (s *Shop) IsActive() bool {
	return !s.Uninstalled && s.AccessToken != ""
}

// Status returns "active" or "uninstalled"
func (s *Shop) Status() string {
	if s.Uninstalled {
		return "uninstalled"
	}
	return "active"
}

// ApplyProfile copies the profile fields fetched from Shopify onto the shop
func (s *Shop) ApplyProfile(p ShopProfile) {
	s.Name = p.Name
	s.Email = p.Email
	s.Owner = p.ShopOwner
	s.CountryCode = p.CountryCode
	s.CountryName = p.CountryName
	s.Currency = p.Currency
	s.Timezone = p.IanaTimezone
	s.PrimaryLocale = p.PrimaryLocale
	s.PlanName = p.PlanName
	s.PlanDisplayName = p.PlanDisplayName
	s.PrimaryDomain = p.Domain
	s.MyshopifyDomain = p.MyshopifyDomain
}

// ShopProfile is the subset of the Shopify shop resource stored with a credential
type ShopProfile struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	ShopOwner       string `json:"shop_owner"`
	CountryCode     string `json:"country_code"`
	CountryName     string `json:"country_name"`
	Currency        string `json:"currency"`
	IanaTimezone    string `json:"iana_timezone"`
	PrimaryLocale   string `json:"primary_locale"`
	PlanName        string `json:"plan_name"`
	PlanDisplayName string `json:"plan_display_name"`
	Domain          string `json:"domain"`
	MyshopifyDomain string `json:"myshopify_domain"`
}

// Credential is what a successful OAuth exchange produces for a shop
type Credential struct {
	AccessToken string
	Scopes      []string
	Profile     ShopProfile
}

// ParseScopes splits a comma separated scope string
func ParseScopes(scope string) []string {
	if strings.TrimSpace(scope) == "" {
		return []string{}
	}
	parts := strings.Split(scope, ",")
	scopes := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			scopes = append(scopes, p)
		}
	}
	return scopes
}
