package entity

import (
	"strings"
	"time"

	"shopify-multishop-layer/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MongoShopDoc represents a shop credential in MongoDB
type MongoShopDoc struct {
	ID                 primitive.ObjectID     `bson:"_id,omitempty"`
	Domain             string                 `bson:"domain"`
	MyshopifyDomain    string                 `bson:"myshopifyDomain,omitempty"`
	AccessToken        string                 `bson:"accessToken"`
	Scopes             string                 `bson:"scopes"`
	Name               string                 `bson:"name,omitempty"`
	Email              string                 `bson:"email,omitempty"`
	Owner              string                 `bson:"owner,omitempty"`
	CountryCode        string                 `bson:"countryCode,omitempty"`
	CountryName        string                 `bson:"countryName,omitempty"`
	Currency           string                 `bson:"currency,omitempty"`
	Timezone           string                 `bson:"timezone,omitempty"`
	PrimaryLocale      string                 `bson:"primaryLocale,omitempty"`
	PlanName           string                 `bson:"planName,omitempty"`
	PlanDisplayName    string                 `bson:"planDisplayName,omitempty"`
	PrimaryDomain      string                 `bson:"primaryDomain,omitempty"`
	InstalledAt        time.Time              `bson:"installedAt"`
	LastSeenAt         time.Time              `bson:"lastSeenAt"`
	Uninstalled        bool                   `bson:"uninstalled"`
	UninstalledAt      *time.Time             `bson:"uninstalledAt"`
	Settings           map[string]interface{} `bson:"settings"`
	SubscriptionStatus string                 `bson:"subscriptionStatus"`
	CreatedAt          time.Time              `bson:"createdAt"`
	UpdatedAt          time.Time              `bson:"updatedAt"`
}

// ToDomain converts the MongoDB document to a domain entity
func (d *MongoShopDoc) ToDomain() *domain.Shop {
	settings := d.Settings
	if settings == nil {
		settings = map[string]interface{}{}
	}
	return &domain.Shop{
		ID:                 d.ID.Hex(),
		Domain:             d.Domain,
		MyshopifyDomain:    d.MyshopifyDomain,
		AccessToken:        d.AccessToken,
		Scopes:             domain.ParseScopes(d.Scopes),
		Name:               d.Name,
		Email:              d.Email,
		Owner:              d.Owner,
		CountryCode:        d.CountryCode,
		CountryName:        d.CountryName,
		Currency:           d.Currency,
		Timezone:           d.Timezone,
		PrimaryLocale:      d.PrimaryLocale,
		PlanName:           d.PlanName,
		PlanDisplayName:    d.PlanDisplayName,
		PrimaryDomain:      d.PrimaryDomain,
		InstalledAt:        d.InstalledAt,
		LastSeenAt:         d.LastSeenAt,
		Uninstalled:        d.Uninstalled,
		UninstalledAt:      d.UninstalledAt,
		Settings:           settings,
		SubscriptionStatus: d.SubscriptionStatus,
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
	}
}

// ShopCredentialFields returns the fields refreshed on every install
func ShopCredentialFields(shop *domain.Shop, now time.Time) map[string]interface{} {
	return map[string]interface{}{
		"accessToken":     shop.AccessToken,
		"scopes":          strings.Join(shop.Scopes, ","),
		"name":            shop.Name,
		"email":           shop.Email,
		"owner":           shop.Owner,
		"countryCode":     shop.CountryCode,
		"countryName":     shop.CountryName,
		"currency":        shop.Currency,
		"timezone":        shop.Timezone,
		"primaryLocale":   shop.PrimaryLocale,
		"planName":        shop.PlanName,
		"planDisplayName": shop.PlanDisplayName,
		"primaryDomain":   shop.PrimaryDomain,
		"myshopifyDomain": shop.MyshopifyDomain,
		"lastSeenAt":      now,
		"uninstalled":     false,
		"uninstalledAt":   nil,
		"updatedAt":       now,
	}
}

// MongoOAuthStateDoc represents an issued OAuth state token
type MongoOAuthStateDoc struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	State      string             `bson:"state"`
	ShopDomain string             `bson:"shopDomain"`
	CreatedAt  time.Time          `bson:"createdAt"`
	ExpiresAt  *time.Time         `bson:"expiresAt"`
}

// MongoOAuthStateDocFromDomain converts a domain state to a MongoDB document
func MongoOAuthStateDocFromDomain(state *domain.OAuthState) *MongoOAuthStateDoc {
	return &MongoOAuthStateDoc{
		State:      state.State,
		ShopDomain: state.ShopDomain,
		CreatedAt:  state.CreatedAt,
		ExpiresAt:  state.ExpiresAt,
	}
}
