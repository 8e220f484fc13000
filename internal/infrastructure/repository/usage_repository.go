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

// MongoUsageRepository implements UsageRepository using MongoDB
type MongoUsageRepository struct {
	collection *mongo.Collection
}

// NewMongoUsageRepository creates a new MongoDB usage repository
func NewMongoUsageRepository(db *mongo.Database) ports.UsageRepository {
	return &MongoUsageRepository{
		collection: db.Collection(usageCollection),
	}
}

// RecordUsage appends a usage record
func (r *MongoUsageRepository) RecordUsage(ctx context.Context, record *domain.UsageRecord) error {
	doc := &entity.MongoUsageDoc{
		ShopDomain:  record.ShopDomain,
		MetricName:  record.MetricName,
		MetricValue: record.MetricValue,
		MetricData:  record.MetricData,
		Date:        record.Date,
	}
	res, err := r.collection.InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("failed to record usage: %w", err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		record.ID = oid.Hex()
	}
	return nil
}

// SumUsage totals each metric for a shop since the given time
func (r *MongoUsageRepository) SumUsage(ctx context.Context, shopDomain string, since time.Time) (map[string]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"shopDomain": shopDomain, "date": bson.M{"$gte": since}}}},
		{{Key: "$group", Value: bson.M{"_id": "$metricName", "count": bson.M{"$sum": "$metricValue"}}}},
	}
	return aggregateCounts(ctx, r.collection, pipeline)
}
