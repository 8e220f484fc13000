package ports

import (
	"context"
	"time"

	"shopify-multishop-layer/internal/domain"
)

// EncryptionService defines the interface for encryption operations
type EncryptionService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// JobHandler processes a single webhook job
type JobHandler func(ctx context.Context, job *domain.WebhookJob)

// WebhookQueue hands persisted webhook events to background workers
type WebhookQueue interface {
	Enqueue(ctx context.Context, job *domain.WebhookJob) error
	// Start begins delivering jobs to handle until ctx is done or Close is called
	Start(ctx context.Context, handle JobHandler)
	Close() error
}

// Metrics records operational counters
type Metrics interface {
	OAuthInstall(result string)
	WebhookReceived(topic string)
	WebhookProcessed(topic string, success bool, duration time.Duration)
	ShopifyCall(operation string, status string, duration time.Duration)
	OrderValue(shop string, currency string, amount float64)
}

// Clock returns the current time
type Clock func() time.Time

// TokenSealer protects access tokens at rest
type TokenSealer interface {
	Seal(token string) (string, error)
	Open(sealed string) (string, error)
}
