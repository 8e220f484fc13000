package repository

import (
	"context"
	"fmt"
	"time"

	"shopify-multishop-layer/internal/domain"
	"shopify-multishop-layer/internal/infrastructure/repository/entity"
	"shopify-multishop-layer/internal/ports"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoWebhookEventRepository implements WebhookEventRepository using MongoDB
type MongoWebhookEventRepository struct {
	collection *mongo.Collection
}

// NewMongoWebhookEventRepository creates a new MongoDB webhook event repository
func NewMongoWebhookEventRepository(db *mongo.Database) ports.WebhookEventRepository {
	return &MongoWebhookEventRepository{
		collection: db.Collection(webhookEventsCollection),
	}
}

// CreateEvent logs a webhook delivery and assigns its ID
func (r *MongoWebhookEventRepository) CreateEvent(ctx context.Context, event *domain.WebhookEvent) error {
	doc := entity.MongoWebhookEventDocFromDomain(event)
	if doc.ID.IsZero() {
		doc.ID = primitive.NewObjectID()
	}
	if doc.ReceivedAt.IsZero() {
		doc.ReceivedAt = time.Now()
	}

	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to log webhook: %w", err)
	}
	event.ID = doc.ID.Hex()
	return nil
}

// GetEvent retrieves an event by ID
func (r *MongoWebhookEventRepository) GetEvent(ctx context.Context, id string) (*domain.WebhookEvent, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}

	var doc entity.MongoWebhookEventDoc
	err = r.collection.FindOne(ctx, bson.M{"_id": objID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get webhook event: %w", err)
	}
	return doc.ToDomain(), nil
}

// MarkProcessed records successful handling
func (r *MongoWebhookEventRepository) MarkProcessed(ctx context.Context, id string, at time.Time) error {
	return r.update(ctx, id, bson.M{"processed": true, "processedAt": at})
}

// MarkFailed records the failure reason and leaves processed false
func (r *MongoWebhookEventRepository) MarkFailed(ctx context.Context, id string, message string) error {
	return r.update(ctx, id, bson.M{"errorMessage": message})
}

func (r *MongoWebhookEventRepository) update(ctx context.Context, id string, set bson.M) error {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("invalid webhook event id %q: %w", id, err)
	}
	if _, err := r.collection.UpdateOne(ctx, bson.M{"_id": objID}, bson.M{"$set": set}); err != nil {
		return fmt.Errorf("failed to update webhook event: %w", err)
	}
	return nil
}

// ListEvents returns matching events newest first
func (r *MongoWebhookEventRepository) ListEvents(ctx context.Context, filter domain.WebhookEventFilter) ([]*domain.WebhookEvent, error) {
	query := bson.M{}
	if filter.ShopDomain != "" {
		query["shopDomain"] = filter.ShopDomain
	}
	if filter.Topic != "" {
		query["topic"] = filter.Topic
	}

	opts := options.Find().SetSort(bson.D{{Key: "receivedAt", Value: -1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}
	return r.find(ctx, query, opts)
}

// ListPending returns events with no terminal status, oldest first
func (r *MongoWebhookEventRepository) ListPending(ctx context.Context, limit int) ([]*domain.WebhookEvent, error) {
	query := bson.M{"processed": false, "errorMessage": nil}
	opts := options.Find().SetSort(bson.D{{Key: "receivedAt", Value: 1}}).SetLimit(int64(limit))
	return r.find(ctx, query, opts)
}

func (r *MongoWebhookEventRepository) find(ctx context.Context, query bson.M, opts *options.FindOptions) ([]*domain.WebhookEvent, error) {
	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhook events: %w", err)
	}
	defer cursor.Close(ctx)

	events := []*domain.WebhookEvent{}
	for cursor.Next(ctx) {
		var doc entity.MongoWebhookEventDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode webhook event: %w", err)
		}
		events = append(events, doc.ToDomain())
	}

	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}

	return events, nil
}

// CountByTopic counts a shop's deliveries per topic since the given time
func (r *MongoWebhookEventRepository) CountByTopic(ctx context.Context, shopDomain string, since time.Time) (map[string]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"shopDomain": shopDomain, "receivedAt": bson.M{"$gte": since}}}},
		{{Key: "$group", Value: bson.M{"_id": "$topic", "count": bson.M{"$sum": 1}}}},
	}
	return aggregateCounts(ctx, r.collection, pipeline)
}

// aggregateCounts reads {_id: string, count: number} rows into a map
func aggregateCounts(ctx context.Context, collection *mongo.Collection, pipeline mongo.Pipeline) (map[string]int64, error) {
	cursor, err := collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Key   string `bson:"_id"`
		Count int64  `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode aggregate: %w", err)
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Key] = row.Count
	}
	return counts, nil
}
