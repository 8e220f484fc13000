package repository

import (
	"context"
	"fmt"
	"time"

	"shopify-multishop-layer/internal/domain"
	"shopify-multishop-layer/internal/infrastructure/repository/entity"
	"shopify-multishop-layer/internal/ports"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names
const (
	shopsCollection         = "shops"
	oauthStatesCollection   = "oauth_states"
	webhookEventsCollection = "webhook_events"
	usageCollection         = "shop_usage"
)

// EnsureIndexes creates the unique and lookup indexes every repository relies on
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		shopsCollection: {
			{Keys: bson.D{{Key: "domain", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		oauthStatesCollection: {
			{Keys: bson.D{{Key: "state", Value: 1}}, Options: options.Index().SetUnique(true)},
			// Mongo removes expired states on its own; consume still checks expiry itself
			{Keys: bson.D{{Key: "expiresAt", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
		},
		webhookEventsCollection: {
			{Keys: bson.D{{Key: "shopDomain", Value: 1}, {Key: "receivedAt", Value: -1}}},
			{Keys: bson.D{{Key: "topic", Value: 1}}},
			{Keys: bson.D{{Key: "processed", Value: 1}, {Key: "receivedAt", Value: 1}}},
		},
		usageCollection: {
			{Keys: bson.D{{Key: "shopDomain", Value: 1}, {Key: "date", Value: -1}}},
		},
	}

	for name, models := range indexes {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", name, err)
		}
	}
	return nil
}

// MongoShopRepository implements ShopRepository using MongoDB
type MongoShopRepository struct {
	collection *mongo.Collection
}

// NewMongoShopRepository creates a new MongoDB shop repository
func NewMongoShopRepository(db *mongo.Database) ports.ShopRepository {
	return &MongoShopRepository{
		collection: db.Collection(shopsCollection),
	}
}

// UpsertShop saves or refreshes a shop credential
func (r *MongoShopRepository) UpsertShop(ctx context.Context, shop *domain.Shop, now time.Time) error {
	settings := shop.Settings
	if settings == nil {
		settings = map[string]interface{}{}
	}
	subscription := shop.SubscriptionStatus
	if subscription == "" {
		subscription = domain.DefaultSubscriptionStatus
	}

	opts := options.Update().SetUpsert(true)
	filter := bson.M{"domain": shop.Domain}
	update := bson.M{
		"$set": entity.ShopCredentialFields(shop, now),
		"$setOnInsert": bson.M{
			"installedAt":        now,
			"settings":           settings,
			"subscriptionStatus": subscription,
			"createdAt":          now,
		},
	}

	_, err := r.collection.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return fmt.Errorf("failed to save shop: %w", err)
	}

	return nil
}

// GetShop retrieves a shop by domain
func (r *MongoShopRepository) GetShop(ctx context.Context, shopDomain string) (*domain.Shop, error) {
	var doc entity.MongoShopDoc
	filter := bson.M{"domain": shopDomain}

	err := r.collection.FindOne(ctx, filter).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get shop: %w", err)
	}

	return doc.ToDomain(), nil
}

// MarkUninstalled flags the shop and clears its access token
func (r *MongoShopRepository) MarkUninstalled(ctx context.Context, shopDomain string, at time.Time) (bool, error) {
	update := bson.M{"$set": bson.M{
		"uninstalled":   true,
		"uninstalledAt": at,
		"accessToken":   "",
		"updatedAt":     at,
	}}
	result, err := r.collection.UpdateOne(ctx, bson.M{"domain": shopDomain}, update)
	if err != nil {
		return false, fmt.Errorf("failed to mark shop uninstalled: %w", err)
	}
	return result.MatchedCount > 0, nil
}

// TouchShop records activity on the shop
func (r *MongoShopRepository) TouchShop(ctx context.Context, shopDomain string, at time.Time) error {
	update := bson.M{"$set": bson.M{"lastSeenAt": at, "updatedAt": at}}
	if _, err := r.collection.UpdateOne(ctx, bson.M{"domain": shopDomain}, update); err != nil {
		return fmt.Errorf("failed to touch shop: %w", err)
	}
	return nil
}

// SaveSettings replaces the stored settings document
func (r *MongoShopRepository) SaveSettings(ctx context.Context, shopDomain string, settings map[string]interface{}, at time.Time) error {
	update := bson.M{"$set": bson.M{"settings": settings, "lastSeenAt": at, "updatedAt": at}}
	if _, err := r.collection.UpdateOne(ctx, bson.M{"domain": shopDomain}, update); err != nil {
		return fmt.Errorf("failed to save shop settings: %w", err)
	}
	return nil
}
