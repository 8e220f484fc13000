package shopify

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"shopify-multishop-layer/internal/ports"

	goshopify "github.com/bold-commerce/go-shopify/v4"
	"github.com/rs/zerolog"
)

// TokenManager seals access tokens before storage and opens them after retrieval
type TokenManager struct {
	encryptionSvc ports.EncryptionService
	logger        zerolog.Logger
}

// NewTokenManager creates a new token manager
func NewTokenManager(encryptionSvc ports.EncryptionService, logger zerolog.Logger) *TokenManager {
	return &TokenManager{
		encryptionSvc: encryptionSvc,
		logger:        logger,
	}
}

// Seal encrypts an access token before storage. An empty token stays empty so a cleared credential stays cleared.
func (tm *TokenManager) Seal(token string) (string, error) {
	if token == "" {
		return "", nil
	}
	sealed, err := tm.encryptionSvc.Encrypt(token)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt access token: %w", err)
	}
	return sealed, nil
}

// Open decrypts a stored access token
func (tm *TokenManager) Open(sealed string) (string, error) {
	if sealed == "" {
		return "", nil
	}
	token, err := tm.encryptionSvc.Decrypt(sealed)
	if err != nil {
		tm.logger.Error().Err(err).Msg("Stored access token could not be decrypted")
		return "", fmt.Errorf("failed to decrypt access token: %w", err)
	}
	return token, nil
}

// IsAuthError reports whether err means Shopify rejected the access token.
// Shopify tokens don't expire, so this is how a revoked token shows up.
func IsAuthError(err error) bool {
	if err == nil {
		return false
	}

	var respErr goshopify.ResponseError
	if errors.As(err, &respErr) {
		return respErr.Status == http.StatusUnauthorized || respErr.Status == http.StatusForbidden
	}

	// The go-shopify library wraps some HTTP errors, so fall back to the message
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "401") ||
		strings.Contains(errStr, "unauthorized") ||
		strings.Contains(errStr, "invalid api key or access token")
}
