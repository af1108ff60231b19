package repository

import (
	"context"
	"time"

	"toolkitforseo-api/internal/domain/entity"
)

// UsageRecordRepository 额度消耗记录仓储接口，只提供追加与查询
type UsageRecordRepository interface {
	// Create 追加记录，ID 已存在时忽略
	Create(ctx context.Context, record *entity.UsageRecord) error

	// SumCredits 汇总 [startInclusive, endExclusive) 区间内某类别已消耗的额度
	SumCredits(ctx context.Context, subscriberID, category string, startInclusive, endExclusive time.Time) (int64, error)

	// ListBySubscriber 按创建时间倒序分页列出订阅者的消耗记录
	ListBySubscriber(ctx context.Context, subscriberID string, pagination Pagination) (*PagedResult[*entity.UsageRecord], error)
}
