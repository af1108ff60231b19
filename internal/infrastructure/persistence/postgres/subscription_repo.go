// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"toolkitforseo-api/internal/domain/entity"
)

// SubscriptionRepository 订阅仓储实现
type SubscriptionRepository struct {
	client *Client
}

// NewSubscriptionRepository 创建订阅仓储
func NewSubscriptionRepository(client *Client) *SubscriptionRepository {
	return &SubscriptionRepository{client: client}
}

// GetBySubscriberID 根据订阅者 ID 获取订阅
func (r *SubscriptionRepository) GetBySubscriberID(ctx context.Context, subscriberID string) (*entity.Subscription, error) {
	ctx, span := tracer.Start(ctx, "postgres.SubscriptionRepository.GetBySubscriberID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var sub entity.Subscription
	if err := db.First(&sub, "subscriber_id = ?", subscriberID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return &sub, nil
}

// Upsert 按订阅者 ID 创建或更新订阅
func (r *SubscriptionRepository) Upsert(ctx context.Context, sub *entity.Subscription) error {
	ctx, span := tracer.Start(ctx, "postgres.SubscriptionRepository.Upsert")
	defer span.End()

	db := getDB(ctx, r.client.db)
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "subscriber_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"plan", "status", "current_period_end", "external_ref", "updated_at"}),
	}).Create(sub).Error
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}
	return nil
}

// UpdateStatus 更新订阅状态
func (r *SubscriptionRepository) UpdateStatus(ctx context.Context, subscriberID string, status entity.SubscriptionStatus) error {
	ctx, span := tracer.Start(ctx, "postgres.SubscriptionRepository.UpdateStatus")
	defer span.End()

	db := getDB(ctx, r.client.db)
	res := db.Model(&entity.Subscription{}).
		Where("subscriber_id = ?", subscriberID).
		Updates(map[string]any{"status": status, "updated_at": time.Now()})
	if res.Error != nil {
		span.RecordError(res.Error)
		return fmt.Errorf("failed to update subscription status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
