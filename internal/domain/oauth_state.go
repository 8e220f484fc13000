package domain

import "time"

// OAuthState binds one install attempt to its callback. It is valid for exactly one consume.
type OAuthState struct {
	ID         string     `json:"id"`
	State      string     `json:"state"`
	ShopDomain string     `json:"shop_domain"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether the state carries an expiry that has elapsed at now
func (s *OAuthState) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && !now.Before(*s.ExpiresAt)
}
