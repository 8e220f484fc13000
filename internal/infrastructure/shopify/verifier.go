package shopify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"sort"
	"strings"

	"shopify-multishop-layer/internal/ports"

	goshopify "github.com/bold-commerce/go-shopify/v4"
)

// Verifier checks Shopify request signatures with the app's client secret
type Verifier struct {
	app    goshopify.App
	secret []byte
}

// NewVerifier creates a signature verifier for the given app credentials
func NewVerifier(apiKey, apiSecret string) ports.SignatureVerifier {
	return &Verifier{
		app:    goshopify.App{ApiKey: apiKey, ApiSecret: apiSecret},
		secret: []byte(apiSecret),
	}
}

// VerifyOAuthCallback checks the hmac query parameter of an OAuth redirect.
// The message is every other parameter except signature, sorted by key and joined as k=v pairs with '&'.
func (v *Verifier) VerifyOAuthCallback(params map[string][]string) bool {
	received := first(params["hmac"])
	if received == "" {
		return false
	}
	return v.app.VerifyMessage(oauthMessage(params), received)
}

// VerifyWebhook checks the base64 X-Shopify-Hmac-Sha256 header against the raw request body
func (v *Verifier) VerifyWebhook(rawBody []byte, hmacHeader string) bool {
	if hmacHeader == "" {
		return false
	}
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(rawBody)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(hmacHeader))
}

func oauthMessage(params map[string][]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == "hmac" || k == "signature" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(first(params[k]))
	}
	return b.String()
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
