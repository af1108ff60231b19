// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm/clause"

	"toolkitforseo-api/internal/domain/entity"
	"toolkitforseo-api/internal/domain/repository"
)

// UsageRecordRepository 额度消耗记录仓储实现
type UsageRecordRepository struct {
	client *Client
}

func NewUsageRecordRepository(client *Client) *UsageRecordRepository {
	return &UsageRecordRepository{client: client}
}

// Create 追加记录，预分配 ID 已存在时不做任何事，重放因此幂等
func (r *UsageRecordRepository) Create(ctx context.Context, record *entity.UsageRecord) error {
	ctx, span := tracer.Start(ctx, "postgres.UsageRecordRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(record).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create usage record: %w", err)
	}
	return nil
}

func (r *UsageRecordRepository) SumCredits(ctx context.Context, subscriberID, category string, startInclusive, endExclusive time.Time) (int64, error) {
	ctx, span := tracer.Start(ctx, "postgres.UsageRecordRepository.SumCredits")
	defer span.End()

	db := getDB(ctx, r.client.db)

	var total int64
	if err := db.Model(&entity.UsageRecord{}).
		Where("subscriber_id = ? AND tool_category = ? AND created_at >= ? AND created_at < ?",
			subscriberID, category, startInclusive, endExclusive).
		Select("COALESCE(SUM(credits_used),0)").
		Scan(&total).Error; err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to sum usage credits: %w", err)
	}
	return total, nil
}

func (r *UsageRecordRepository) ListBySubscriber(ctx context.Context, subscriberID string, pagination repository.Pagination) (*repository.PagedResult[*entity.UsageRecord], error) {
	ctx, span := tracer.Start(ctx, "postgres.UsageRecordRepository.ListBySubscriber")
	defer span.End()

	db := getDB(ctx, r.client.db)

	var total int64
	if err := db.Model(&entity.UsageRecord{}).Where("subscriber_id = ?", subscriberID).Count(&total).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count usage records: %w", err)
	}

	var records []*entity.UsageRecord
	if err := db.Where("subscriber_id = ?", subscriberID).
		Order("created_at DESC").
		Offset(pagination.Offset()).
		Limit(pagination.Limit()).
		Find(&records).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list usage records: %w", err)
	}

	return repository.NewPagedResult(records, total, pagination), nil
}
