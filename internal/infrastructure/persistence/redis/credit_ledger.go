package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"toolkitforseo-api/internal/domain/repository"
)

// Lua 返回码
const (
	statusReserved     = 1
	statusCounterMiss  = -1
	statusInsufficient = -2
)

// reserveScript 检查剩余额度并占用
// KEYS[1]: 计数器 key, ARGV[1]: limit, ARGV[2]: amount
var reserveScript = redis.NewScript(`
local used = redis.call('GET', KEYS[1])
if not used then
	return {-1, 0}
end
used = tonumber(used)
local limit = tonumber(ARGV[1])
local amount = tonumber(ARGV[2])
if limit - used < amount then
	return {-2, used}
end
used = redis.call('INCRBY', KEYS[1], amount)
return {1, used}
`)

// adjustScript 仅在计数器存在时调整，避免凭空创建偏离数据库的计数
var adjustScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if not cur then
	return 0
end
cur = tonumber(cur)
local delta = tonumber(ARGV[1])
if cur + delta < 0 then
	delta = -cur
end
redis.call('INCRBY', KEYS[1], delta)
return 1
`)

// CreditLedger 基于 Redis 的周期额度计数器
// 计数器缺失时从数据库汇总预热，预热用 singleflight 合并并发请求
type CreditLedger struct {
	client *Client
	group  singleflight.Group
}

// NewCreditLedger 创建额度计数器
func NewCreditLedger(client *Client) *CreditLedger {
	return &CreditLedger{client: client}
}

var _ repository.CreditLedger = (*CreditLedger)(nil)

// CounterKey 构建计数器 key
func CounterKey(c repository.CreditCounter) string {
	return fmt.Sprintf("credits:%s:%s:%s", c.SubscriberID, c.Category, c.Period)
}

// Reserve 原子地检查并占用额度
func (l *CreditLedger) Reserve(ctx context.Context, counter repository.CreditCounter, limit, amount int64, load repository.UsageLoader) (*repository.ReserveOutcome, error) {
	key := CounterKey(counter)
	ctx, span := tracer.Start(ctx, "redis.CreditLedger.Reserve",
		trace.WithAttributes(
			attribute.String("credits.key", key),
			attribute.Int64("credits.limit", limit),
			attribute.Int64("credits.amount", amount),
		))
	defer span.End()

	for attempt := 0; attempt < 2; attempt++ {
		status, used, err := l.evalReserve(ctx, key, limit, amount)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}

		switch status {
		case statusReserved:
			span.SetAttributes(attribute.Bool("credits.allowed", true))
			return &repository.ReserveOutcome{Allowed: true, Used: used}, nil
		case statusInsufficient:
			span.SetAttributes(attribute.Bool("credits.allowed", false))
			return &repository.ReserveOutcome{Allowed: false, Used: used}, nil
		case statusCounterMiss:
			span.AddEvent("counter_miss")
			if err := l.warmUp(ctx, key, counter, load); err != nil {
				span.RecordError(err)
				return nil, err
			}
		default:
			return nil, fmt.Errorf("unexpected reserve status %d", status)
		}
	}

	return nil, fmt.Errorf("credit counter %s missing after warm-up", key)
}

// Adjust 计数器存在时调整已用额度
func (l *CreditLedger) Adjust(ctx context.Context, counter repository.CreditCounter, delta int64) error {
	if delta == 0 {
		return nil
	}
	key := CounterKey(counter)
	ctx, span := tracer.Start(ctx, "redis.CreditLedger.Adjust",
		trace.WithAttributes(
			attribute.String("credits.key", key),
			attribute.Int64("credits.delta", delta),
		))
	defer span.End()

	if err := adjustScript.Run(ctx, l.client.rdb, []string{key}, delta).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to adjust credit counter: %w", err)
	}
	return nil
}

func (l *CreditLedger) evalReserve(ctx context.Context, key string, limit, amount int64) (int64, int64, error) {
	res, err := reserveScript.Run(ctx, l.client.rdb, []string{key}, limit, amount).Int64Slice()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to run reserve script: %w", err)
	}
	if len(res) != 2 {
		return 0, 0, fmt.Errorf("unexpected reserve script result length %d", len(res))
	}
	return res[0], res[1], nil
}

// warmUp 从数据库加载已用额度并以 SET NX 写入计数器
// 已有其他实例写入时保留既有值
func (l *CreditLedger) warmUp(ctx context.Context, key string, counter repository.CreditCounter, load repository.UsageLoader) error {
	_, err, shared := l.group.Do(key, func() (interface{}, error) {
		used, err := load(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load usage for warm-up: %w", err)
		}
		if err := l.client.rdb.SetNX(ctx, key, strconv.FormatInt(used, 10), counter.TTL).Err(); err != nil {
			return nil, fmt.Errorf("failed to warm credit counter: %w", err)
		}
		return nil, nil
	})
	trace.SpanFromContext(ctx).SetAttributes(attribute.Bool("credits.warmup_shared", shared))
	return err
}
