//go:build wireinject
// +build wireinject

// Package wire 提供依赖注入配置
package wire

import (
	"context"

	"github.com/google/wire"

	"toolkitforseo-api/internal/application/credit"
	"toolkitforseo-api/internal/application/tools"
	"toolkitforseo-api/internal/config"
	"toolkitforseo-api/internal/domain/repository"
	"toolkitforseo-api/internal/infrastructure/llm"
	"toolkitforseo-api/internal/infrastructure/messaging"
	"toolkitforseo-api/internal/infrastructure/persistence/postgres"
	"toolkitforseo-api/internal/infrastructure/persistence/redis"
	"toolkitforseo-api/internal/interfaces/http/handler"
	"toolkitforseo-api/internal/interfaces/http/middleware"
	"toolkitforseo-api/internal/interfaces/http/router"
	"toolkitforseo-api/internal/workflow/port"
	"toolkitforseo-api/internal/workflow/prompt"
)

// InitializePostgresOnly 仅初始化 PostgreSQL 数据层（用于 bootstrap）
func InitializePostgresOnly(ctx context.Context, cfg *config.Config) (*PostgresOnlyDataLayer, func(), error) {
	wire.Build(
		PostgresSet,
		wire.Struct(new(PostgresOnlyDataLayer), "*"),
	)
	return nil, nil, nil
}

// InitializeApp 初始化整个应用（带路由器）
func InitializeApp(ctx context.Context, cfg *config.Config) (*router.Router, func(), error) {
	wire.Build(
		RepoSet,
		RedisSet,
		MessagingSet,
		CreditSet,
		ToolSet,
		RouterSet,
	)
	return nil, nil, nil
}

// InitializeUsageWorker 初始化消耗记录重放 worker
func InitializeUsageWorker(ctx context.Context, cfg *config.Config) (*UsageWorker, func(), error) {
	wire.Build(
		RepoSet,
		LedgerSet,
		CreditSet,
		ProvideUsageConsumer,
		wire.Struct(new(UsageWorker), "*"),
	)
	return nil, nil, nil
}

// PostgresSet PostgreSQL 提供者集合
var PostgresSet = wire.NewSet(
	ProvidePostgresClient,
	postgres.NewTxManager,
	postgres.NewSubscriptionRepository,
	postgres.NewUsageRecordRepository,
)

// RepoSet 整合了具体实现与接口绑定的集合
var RepoSet = wire.NewSet(
	ProvidePostgresClient,
	postgres.NewSubscriptionRepository,
	postgres.NewUsageRecordRepository,
	wire.Bind(new(repository.SubscriptionRepository), new(*postgres.SubscriptionRepository)),
	wire.Bind(new(repository.UsageRecordRepository), new(*postgres.UsageRecordRepository)),
)

// LedgerSet 额度计数器提供者集合
var LedgerSet = wire.NewSet(
	ProvideRedisClient,
	redis.NewCreditLedger,
	wire.Bind(new(repository.CreditLedger), new(*redis.CreditLedger)),
)

// RedisSet Redis 提供者集合
var RedisSet = wire.NewSet(
	LedgerSet,
	redis.NewRateLimiter,
	wire.Bind(new(middleware.RateLimiter), new(*redis.RateLimiter)),
)

// MessagingSet 消息队列提供者集合
var MessagingSet = wire.NewSet(
	ProvideMessagingProducer,
	messaging.NewUsageRetryQueue,
	wire.Bind(new(credit.RetryQueue), new(*messaging.UsageRetryQueue)),
)

// CreditSet 额度计量提供者集合
var CreditSet = wire.NewSet(
	ProvideCostTable,
	ProvidePlanCatalog,
	ProvideCreditPolicy,
	credit.NewMeter,
)

// ToolSet 工具执行提供者集合
var ToolSet = wire.NewSet(
	ProvideGateway,
	prompt.NewRegistry,
	tools.NewRunner,
	tools.NewCatalog,
	wire.Bind(new(port.TextGenerator), new(*llm.Gateway)),
	wire.Bind(new(tools.PromptRenderer), new(*prompt.Registry)),
	wire.Bind(new(tools.CreditMeter), new(*credit.Meter)),
)

// RouterSet 路由器提供者集合
var RouterSet = wire.NewSet(
	ProvideHealthHandler,
	handler.NewToolHandler,
	handler.NewCreditHandler,
	ProvideRateLimitKeyFunc,
	wire.Bind(new(handler.CreditReader), new(*credit.Meter)),
	wire.Struct(new(router.Handlers), "*"),
	router.New,
)
