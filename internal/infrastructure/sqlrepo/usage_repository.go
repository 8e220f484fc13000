package sqlrepo

import (
	"context"
	"fmt"
	"time"

	"shopify-multishop-layer/internal/domain"
	"shopify-multishop-layer/internal/ports"

	"gorm.io/gorm"
)

// UsageRepository implements ports.UsageRepository using GORM
type UsageRepository struct {
	db *gorm.DB
}

// NewUsageRepository creates a new SQL usage repository
func NewUsageRepository(db *gorm.DB) ports.UsageRepository {
	return &UsageRepository{db: db}
}

// RecordUsage appends a usage record
func (r *UsageRepository) RecordUsage(ctx context.Context, record *domain.UsageRecord) error {
	model := &UsageModel{
		ShopDomain:  record.ShopDomain,
		MetricName:  record.MetricName,
		MetricValue: record.MetricValue,
		MetricData:  record.MetricData,
		Date:        record.Date.UTC(),
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to record usage: %w", err)
	}
	record.ID = fmt.Sprint(model.ID)
	return nil
}

// SumUsage totals each metric for a shop since the given time
func (r *UsageRepository) SumUsage(ctx context.Context, shopDomain string, since time.Time) (map[string]int64, error) {
	var rows []struct {
		MetricName string
		Total      int64
	}
	err := r.db.WithContext(ctx).Model(&UsageModel{}).
		Select("metric_name, SUM(metric_value) AS total").
		Where("shop_domain = ? AND date >= ?", shopDomain, since.UTC()).
		Group("metric_name").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to sum usage: %w", err)
	}

	totals := make(map[string]int64, len(rows))
	for _, row := range rows {
		totals[row.MetricName] = row.Total
	}
	return totals, nil
}
