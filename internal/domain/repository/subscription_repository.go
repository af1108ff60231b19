// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"toolkitforseo-api/internal/domain/entity"
)

// SubscriptionRepository 订阅仓储接口
type SubscriptionRepository interface {
	// GetBySubscriberID 获取订阅者的订阅，不存在时返回 nil, nil
	GetBySubscriberID(ctx context.Context, subscriberID string) (*entity.Subscription, error)

	// Upsert 按订阅者 ID 创建或更新订阅
	Upsert(ctx context.Context, sub *entity.Subscription) error

	// UpdateStatus 更新订阅状态
	UpdateStatus(ctx context.Context, subscriberID string, status entity.SubscriptionStatus) error
}
