package sqlrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shopify-multishop-layer/internal/domain"
	"shopify-multishop-layer/internal/ports"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WebhookEventRepository implements ports.WebhookEventRepository using GORM
type WebhookEventRepository struct {
	db *gorm.DB
}

// NewWebhookEventRepository creates a new SQL webhook event repository
func NewWebhookEventRepository(db *gorm.DB) ports.WebhookEventRepository {
	return &WebhookEventRepository{db: db}
}

// CreateEvent persists a delivery and assigns its ID
func (r *WebhookEventRepository) CreateEvent(ctx context.Context, event *domain.WebhookEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	event.ReceivedAt = event.ReceivedAt.UTC()
	if err := r.db.WithContext(ctx).Create(webhookEventModelFromDomain(event)).Error; err != nil {
		return fmt.Errorf("failed to create webhook event: %w", err)
	}
	return nil
}

// GetEvent retrieves an event by ID
func (r *WebhookEventRepository) GetEvent(ctx context.Context, id string) (*domain.WebhookEvent, error) {
	var model WebhookEventModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get webhook event: %w", err)
	}
	return model.ToDomain(), nil
}

// MarkProcessed records successful handling
func (r *WebhookEventRepository) MarkProcessed(ctx context.Context, id string, at time.Time) error {
	err := r.db.WithContext(ctx).Model(&WebhookEventModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"processed": true, "processed_at": at.UTC()}).Error
	if err != nil {
		return fmt.Errorf("failed to mark webhook event processed: %w", err)
	}
	return nil
}

// MarkFailed records the failure reason and leaves processed false
func (r *WebhookEventRepository) MarkFailed(ctx context.Context, id string, message string) error {
	err := r.db.WithContext(ctx).Model(&WebhookEventModel{}).
		Where("id = ?", id).
		Update("error_message", message).Error
	if err != nil {
		return fmt.Errorf("failed to mark webhook event failed: %w", err)
	}
	return nil
}

// ListEvents returns matching events newest first
func (r *WebhookEventRepository) ListEvents(ctx context.Context, filter domain.WebhookEventFilter) ([]*domain.WebhookEvent, error) {
	query := r.db.WithContext(ctx).Model(&WebhookEventModel{}).Order("received_at DESC")
	if filter.ShopDomain != "" {
		query = query.Where("shop_domain = ?", filter.ShopDomain)
	}
	if filter.Topic != "" {
		query = query.Where("topic = ?", filter.Topic)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var models []WebhookEventModel
	if err := query.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list webhook events: %w", err)
	}
	return toDomainEvents(models), nil
}

// ListPending returns events with no terminal status, oldest first
func (r *WebhookEventRepository) ListPending(ctx context.Context, limit int) ([]*domain.WebhookEvent, error) {
	var models []WebhookEventModel
	err := r.db.WithContext(ctx).
		Where("processed = ? AND error_message IS NULL", false).
		Order("received_at ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list pending webhook events: %w", err)
	}
	return toDomainEvents(models), nil
}

// CountByTopic counts a shop's deliveries per topic since the given time
func (r *WebhookEventRepository) CountByTopic(ctx context.Context, shopDomain string, since time.Time) (map[string]int64, error) {
	var rows []struct {
		Topic string
		Count int64
	}
	err := r.db.WithContext(ctx).Model(&WebhookEventModel{}).
		Select("topic, COUNT(*) AS count").
		Where("shop_domain = ? AND received_at >= ?", shopDomain, since.UTC()).
		Group("topic").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count webhook events: %w", err)
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Topic] = row.Count
	}
	return counts, nil
}

func toDomainEvents(models []WebhookEventModel) []*domain.WebhookEvent {
	events := make([]*domain.WebhookEvent, 0, len(models))
	for i := range models {
		events = append(events, models[i].ToDomain())
	}
	return events
}
