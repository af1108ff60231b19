package wire

import (
	"context"
	"fmt"
	"os"

	"toolkitforseo-api/internal/application/credit"
	"toolkitforseo-api/internal/config"
	"toolkitforseo-api/internal/infrastructure/llm"
	"toolkitforseo-api/internal/infrastructure/messaging"
	"toolkitforseo-api/internal/infrastructure/persistence/postgres"
	"toolkitforseo-api/internal/infrastructure/persistence/redis"
	"toolkitforseo-api/internal/interfaces/http/handler"
	"toolkitforseo-api/internal/interfaces/http/middleware"
	"toolkitforseo-api/internal/workflow/model"
	"toolkitforseo-api/pkg/logger"
)

// PostgresOnlyDataLayer 仅包含 PostgreSQL 的数据层（用于 bootstrap）
type PostgresOnlyDataLayer struct {
	PgClient         *postgres.Client
	TxManager        *postgres.TxManager
	SubscriptionRepo *postgres.SubscriptionRepository
	UsageRepo        *postgres.UsageRecordRepository
}

// UsageWorker 消耗记录重放 worker 依赖
type UsageWorker struct {
	Consumer *messaging.Consumer
	Meter    *credit.Meter
}

// ProvidePostgresClient 提供 PostgreSQL 客户端
func ProvidePostgresClient(cfg *config.Config) (*postgres.Client, func(), error) {
	client, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		client.Close()
	}
	return client, cleanup, nil
}

// ProvideRedisClient 提供 Redis 客户端
func ProvideRedisClient(cfg *config.Config) (*redis.Client, func(), error) {
	client, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		client.Close()
	}
	return client, cleanup, nil
}

// ProvideMessagingProducer 提供消息生产者
func ProvideMessagingProducer(redisClient *redis.Client, cfg *config.Config) *messaging.Producer {
	maxLen := cfg.Messaging.RedisStream.MaxLen
	if maxLen <= 0 {
		maxLen = 100000
	}
	return messaging.NewProducer(redisClient.Redis(), int64(maxLen))
}

// ProvideCostTable 提供工具成本表，缺少成本的工具调用时会返回 404
func ProvideCostTable(ctx context.Context, cfg *config.Config) *credit.CostTable {
	costs := credit.NewCostTable(cfg.Credits.Costs)
	for _, tool := range model.ToolNames() {
		if _, err := costs.Lookup(tool); err != nil {
			logger.Warn(ctx, "tool has no cost entry", "tool", tool)
		}
	}
	return costs
}

// ProvidePlanCatalog 提供套餐目录
func ProvidePlanCatalog(cfg *config.Config) *credit.PlanCatalog {
	return credit.NewPlanCatalog(cfg.Credits.Plans)
}

// ProvideCreditPolicy 提供计量策略
func ProvideCreditPolicy(cfg *config.Config) credit.Policy {
	return credit.Policy{
		ChargeFailedAttempts: cfg.Credits.ChargeFailedAttempts,
		CounterTTLSlack:      cfg.Credits.CounterTTLSlack,
	}
}

// ProvideGateway 提供供应商网关，启动时校验供应商配置
func ProvideGateway(ctx context.Context, cfg *config.Config) (*llm.Gateway, error) {
	gw, err := llm.NewGateway(&cfg.LLM)
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "llm gateway ready", "default_provider", cfg.LLM.DefaultProvider)
	return gw, nil
}

// ProvideHealthHandler 提供健康检查处理器
func ProvideHealthHandler(cfg *config.Config, pg *postgres.Client, redisClient *redis.Client) *handler.HealthHandler {
	return handler.NewHealthHandler(cfg.App.Version, pg, redisClient)
}

// ProvideRateLimitKeyFunc 提供限流键构建函数
func ProvideRateLimitKeyFunc() middleware.KeyFunc {
	return redis.BuildRateLimitKey
}

// ProvideUsageConsumer 提供消耗记录重放消费者，处理器由计量器完成追加
func ProvideUsageConsumer(cfg *config.Config, redisClient *redis.Client, meter *credit.Meter) *messaging.Consumer {
	rs := cfg.Messaging.RedisStream
	hostname, _ := os.Hostname()
	consumer := messaging.NewConsumer(redisClient.Redis(), messaging.ConsumerConfig{
		Stream:        messaging.StreamUsageRetry,
		Group:         messaging.ConsumerGroupUsageWriter,
		ConsumerName:  fmt.Sprintf("%s-%d", hostname, os.Getpid()),
		BlockTimeout:  rs.BlockTimeout,
		ClaimInterval: rs.ClaimInterval,
		RetryLimit:    rs.RetryLimit,
		Backoff: messaging.BackoffConfig{
			Initial:    rs.RetryBackoff.Initial,
			Max:        rs.RetryBackoff.Max,
			Multiplier: rs.RetryBackoff.Multiplier,
		},
	})
	consumer.RegisterHandler(messaging.MessageTypeUsageRecord, messaging.NewUsageReplayHandler(meter))
	return consumer
}
