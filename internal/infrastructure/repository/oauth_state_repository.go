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
)

// MongoOAuthStateRepository implements OAuthStateRepository using MongoDB
type MongoOAuthStateRepository struct {
	collection *mongo.Collection
}

// NewMongoOAuthStateRepository creates a new MongoDB OAuth state repository
func NewMongoOAuthStateRepository(db *mongo.Database) ports.OAuthStateRepository {
	return &MongoOAuthStateRepository{
		collection: db.Collection(oauthStatesCollection),
	}
}

// CreateState stores a freshly issued state token
func (r *MongoOAuthStateRepository) CreateState(ctx context.Context, state *domain.OAuthState) error {
	res, err := r.collection.InsertOne(ctx, entity.MongoOAuthStateDocFromDomain(state))
	if err != nil {
		return fmt.Errorf("failed to create oauth state: %w", err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		state.ID = oid.Hex()
	}
	return nil
}

// ConsumeState removes the matching unexpired token in a single FindOneAndDelete
func (r *MongoOAuthStateRepository) ConsumeState(ctx context.Context, state, shopDomain string, now time.Time) (bool, error) {
	filter := bson.M{
		"state":      state,
		"shopDomain": shopDomain,
		"$or": bson.A{
			bson.M{"expiresAt": nil},
			bson.M{"expiresAt": bson.M{"$gt": now}},
		},
	}

	err := r.collection.FindOneAndDelete(ctx, filter).Err()
	if err == nil {
		return true, nil
	}
	if err != mongo.ErrNoDocuments {
		return false, fmt.Errorf("failed to consume oauth state: %w", err)
	}

	// An expired token is dead either way
	if _, err := r.collection.DeleteOne(ctx, bson.M{"state": state, "expiresAt": bson.M{"$lte": now}}); err != nil {
		return false, fmt.Errorf("failed to remove expired oauth state: %w", err)
	}
	return false, nil
}

// DeleteExpired removes every token whose expiry has passed
func (r *MongoOAuthStateRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.collection.DeleteMany(ctx, bson.M{"expiresAt": bson.M{"$lte": now}})
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired oauth states: %w", err)
	}
	return res.DeletedCount, nil
}
