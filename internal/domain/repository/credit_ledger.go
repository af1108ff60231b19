package repository

import (
	"context"
	"time"
)

// CreditCounter 定位一个订阅者在某类别、某计费周期的额度计数器
type CreditCounter struct {
	SubscriberID string
	Category     string
	// Period 计费周期标识，如 202603
	Period string
	// TTL 计数器的存活时长，应覆盖到周期结束之后
	TTL time.Duration
}

// ReserveOutcome 额度占用结果
type ReserveOutcome struct {
	Allowed bool
	// Used 占用成功时为占用后的已用额度，拒绝时为当前已用额度
	Used int64
}

// UsageLoader 计数器缺失时从权威存储加载周期内已用额度
type UsageLoader func(ctx context.Context) (int64, error)

// CreditLedger 周期额度计数器，保证检查与占用的原子性
type CreditLedger interface {
	// Reserve 在 limit-used >= amount 时原子地占用 amount
	Reserve(ctx context.Context, counter CreditCounter, limit, amount int64, load UsageLoader) (*ReserveOutcome, error)

	// Adjust 计数器存在时调整已用额度，不存在时忽略
	Adjust(ctx context.Context, counter CreditCounter, delta int64) error
}
