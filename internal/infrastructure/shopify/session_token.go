package shopify

import (
	"fmt"
	"net/url"

	"shopify-multishop-layer/internal/domain"
	"shopify-multishop-layer/internal/ports"

	"github.com/golang-jwt/jwt/v5"
)

// SessionTokenVerifier validates App Bridge session tokens signed with the app secret
type SessionTokenVerifier struct {
	apiKey    string
	apiSecret []byte
	algorithm string
}

// NewSessionTokenVerifier creates a verifier accepting only the given signing algorithm
func NewSessionTokenVerifier(apiKey, apiSecret, algorithm string) ports.SessionTokenVerifier {
	if algorithm == "" {
		algorithm = jwt.SigningMethodHS256.Alg()
	}
	return &SessionTokenVerifier{
		apiKey:    apiKey,
		apiSecret: []byte(apiSecret),
		algorithm: algorithm,
	}
}

// Verify checks signature, expiry and audience, and that the token was issued for shop
func (v *SessionTokenVerifier) Verify(tokenString string, shop string) (map[string]interface{}, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return v.apiSecret, nil
	},
		jwt.WithValidMethods([]string{v.algorithm}),
		jwt.WithAudience(v.apiKey),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidSessionToken, err)
	}

	dest, _ := claims["dest"].(string)
	if dest == "" {
		dest, _ = claims["iss"].(string)
	}
	if shop == "" || tokenShop(dest) != shop {
		return nil, fmt.Errorf("%w: session token shop mismatch", domain.ErrInvalidSessionToken)
	}

	return claims, nil
}

// tokenShop returns the host of a dest or iss claim, or "" when it is not an absolute URL
func tokenShop(claim string) string {
	u, err := url.Parse(claim)
	if err != nil || u.Scheme == "" {
		return ""
	}
	return u.Hostname()
}
