package sqlrepo

import (
	"strings"
	"time"

	"shopify-multishop-layer/internal/domain"
)

// ShopModel is the persistence model for domain.Shop
type ShopModel struct {
	ID                 string    `gorm:"type:varchar(36);primaryKey"`
	Domain             string    `gorm:"type:varchar(255);not null;uniqueIndex"`
	MyshopifyDomain    string    `gorm:"type:varchar(255)"`
	AccessToken        string    `gorm:"type:text"`
	Scopes             string    `gorm:"type:text"`
	Name               string    `gorm:"type:varchar(255)"`
	Email              string    `gorm:"type:varchar(255)"`
	Owner              string    `gorm:"type:varchar(255)"`
	CountryCode        string    `gorm:"type:varchar(8)"`
	CountryName        string    `gorm:"type:varchar(100)"`
	Currency           string    `gorm:"type:varchar(8)"`
	Timezone           string    `gorm:"type:varchar(100)"`
	PrimaryLocale      string    `gorm:"type:varchar(16)"`
	PlanName           string    `gorm:"type:varchar(100)"`
	PlanDisplayName    string    `gorm:"type:varchar(100)"`
	PrimaryDomain      string    `gorm:"type:varchar(255)"`
	InstalledAt        time.Time `gorm:"not null"`
	LastSeenAt         time.Time `gorm:"not null"`
	Uninstalled        bool      `gorm:"not null;index"`
	UninstalledAt      *time.Time
	Settings           map[string]interface{} `gorm:"type:text;serializer:json"`
	SubscriptionStatus string                 `gorm:"type:varchar(32);not null"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// TableName returns the table name for GORM
func (ShopModel) TableName() string {
	return "shops"
}

func shopModelFromDomain(s *domain.Shop) *ShopModel {
	return &ShopModel{
		ID:                 s.ID,
		Domain:             s.Domain,
		MyshopifyDomain:    s.MyshopifyDomain,
		AccessToken:        s.AccessToken,
		Scopes:             strings.Join(s.Scopes, ","),
		Name:               s.Name,
		Email:              s.Email,
		Owner:              s.Owner,
		CountryCode:        s.CountryCode,
		CountryName:        s.CountryName,
		Currency:           s.Currency,
		Timezone:           s.Timezone,
		PrimaryLocale:      s.PrimaryLocale,
		PlanName:           s.PlanName,
		PlanDisplayName:    s.PlanDisplayName,
		PrimaryDomain:      s.PrimaryDomain,
		InstalledAt:        s.InstalledAt,
		LastSeenAt:         s.LastSeenAt,
		Uninstalled:        s.Uninstalled,
		UninstalledAt:      s.UninstalledAt,
		Settings:           s.Settings,
		SubscriptionStatus: s.SubscriptionStatus,
		CreatedAt:          s.CreatedAt,
		UpdatedAt:          s.UpdatedAt,
	}
}

// ToDomain converts the persistence model to a domain shop
func (m *ShopModel) ToDomain() *domain.Shop {
	settings := m.Settings
	if settings == nil {
		settings = map[string]interface{}{}
	}
	return &domain.Shop{
		ID:                 m.ID,
		Domain:             m.Domain,
		MyshopifyDomain:    m.MyshopifyDomain,
		AccessToken:        m.AccessToken,
		Scopes:             domain.ParseScopes(m.Scopes),
		Name:               m.Name,
		Email:              m.Email,
		Owner:              m.Owner,
		CountryCode:        m.CountryCode,
		CountryName:        m.CountryName,
		Currency:           m.Currency,
		Timezone:           m.Timezone,
		PrimaryLocale:      m.PrimaryLocale,
		PlanName:           m.PlanName,
		PlanDisplayName:    m.PlanDisplayName,
		PrimaryDomain:      m.PrimaryDomain,
		InstalledAt:        m.InstalledAt,
		LastSeenAt:         m.LastSeenAt,
		Uninstalled:        m.Uninstalled,
		UninstalledAt:      m.UninstalledAt,
		Settings:           settings,
		SubscriptionStatus: m.SubscriptionStatus,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
}

// OAuthStateModel is the persistence model for domain.OAuthState
type OAuthStateModel struct {
	ID         uint       `gorm:"primaryKey"`
	State      string     `gorm:"type:varchar(128);not null;uniqueIndex"`
	ShopDomain string     `gorm:"type:varchar(255);not null;index"`
	CreatedAt  time.Time  `gorm:"not null"`
	ExpiresAt  *time.Time `gorm:"index"`
}

// TableName returns the table name for GORM
func (OAuthStateModel) TableName() string {
	return "oauth_states"
}

// WebhookEventModel is the persistence model for domain.WebhookEvent
type WebhookEventModel struct {
	ID           string                 `gorm:"type:varchar(36);primaryKey"`
	ShopDomain   string                 `gorm:"type:varchar(255);not null;index"`
	Topic        string                 `gorm:"type:varchar(100);not null;index"`
	WebhookID    string                 `gorm:"type:varchar(255)"`
	Payload      map[string]interface{} `gorm:"type:text;serializer:json"`
	Headers      map[string]string      `gorm:"type:text;serializer:json"`
	Processed    bool                   `gorm:"not null;index"`
	ProcessedAt  *time.Time
	ErrorMessage *string   `gorm:"type:text"`
	ReceivedAt   time.Time `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (WebhookEventModel) TableName() string {
	return "webhook_events"
}

func webhookEventModelFromDomain(e *domain.WebhookEvent) *WebhookEventModel {
	return &WebhookEventModel{
		ID:           e.ID,
		ShopDomain:   e.ShopDomain,
		Topic:        e.Topic,
		WebhookID:    e.WebhookID,
		Payload:      e.Payload,
		Headers:      e.Headers,
		Processed:    e.Processed,
		ProcessedAt:  e.ProcessedAt,
		ErrorMessage: e.ErrorMessage,
		ReceivedAt:   e.ReceivedAt,
	}
}

// ToDomain converts the persistence model to a domain webhook event
func (m *WebhookEventModel) ToDomain() *domain.WebhookEvent {
	return &domain.WebhookEvent{
		ID:           m.ID,
		ShopDomain:   m.ShopDomain,
		Topic:        m.Topic,
		WebhookID:    m.WebhookID,
		Payload:      m.Payload,
		Headers:      m.Headers,
		Processed:    m.Processed,
		ProcessedAt:  m.ProcessedAt,
		ErrorMessage: m.ErrorMessage,
		ReceivedAt:   m.ReceivedAt,
	}
}

// UsageModel is the persistence model for domain.UsageRecord
type UsageModel struct {
	ID          uint                   `gorm:"primaryKey"`
	ShopDomain  string                 `gorm:"type:varchar(255);not null;index"`
	MetricName  string                 `gorm:"type:varchar(100);not null;index"`
	MetricValue int64                  `gorm:"not null"`
	MetricData  map[string]interface{} `gorm:"type:text;serializer:json"`
	Date        time.Time              `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (UsageModel) TableName() string {
	return "shop_usage"
}
