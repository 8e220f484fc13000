package entity

import (
	"time"

	"shopify-multishop-layer/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MongoWebhookEventDoc represents a webhook delivery in MongoDB
type MongoWebhookEventDoc struct {
	ID           primitive.ObjectID     `bson:"_id,omitempty"`
	ShopDomain   string                 `bson:"shopDomain"`
	Topic        string                 `bson:"topic"`
	WebhookID    string                 `bson:"webhookId,omitempty"`
	Payload      map[string]interface{} `bson:"payload"`
	Headers      map[string]string      `bson:"headers"`
	Processed    bool                   `bson:"processed"`
	ProcessedAt  *time.Time             `bson:"processedAt"`
	ErrorMessage *string                `bson:"errorMessage"`
	ReceivedAt   time.Time              `bson:"receivedAt"`
}

// ToDomain converts the MongoDB document to a domain entity
func (d *MongoWebhookEventDoc) ToDomain() *domain.WebhookEvent {
	return &domain.WebhookEvent{
		ID:           d.ID.Hex(),
		ShopDomain:   d.ShopDomain,
		Topic:        d.Topic,
		WebhookID:    d.WebhookID,
		Payload:      d.Payload,
		Headers:      d.Headers,
		Processed:    d.Processed,
		ProcessedAt:  d.ProcessedAt,
		ErrorMessage: d.ErrorMessage,
		ReceivedAt:   d.ReceivedAt,
	}
}

// MongoWebhookEventDocFromDomain converts a domain entity to a MongoDB document
func MongoWebhookEventDocFromDomain(event *domain.WebhookEvent) *MongoWebhookEventDoc {
	doc := &MongoWebhookEventDoc{
		ShopDomain:   event.ShopDomain,
		Topic:        event.Topic,
		WebhookID:    event.WebhookID,
		Payload:      event.Payload,
		Headers:      event.Headers,
		Processed:    event.Processed,
		ProcessedAt:  event.ProcessedAt,
		ErrorMessage: event.ErrorMessage,
		ReceivedAt:   event.ReceivedAt,
	}

	if event.ID != "" {
		if objID, err := primitive.ObjectIDFromHex(event.ID); err == nil {
			doc.ID = objID
		}
	}

	return doc
}

// MongoUsageDoc represents a metered usage record
type MongoUsageDoc struct {
	ID          primitive.ObjectID     `bson:"_id,omitempty"`
	ShopDomain  string                 `bson:"shopDomain"`
	MetricName  string                 `bson:"metricName"`
	MetricValue int64                  `bson:"metricValue"`
	MetricData  map[string]interface{} `bson:"metricData,omitempty"`
	Date        time.Time              `bson:"date"`
}
