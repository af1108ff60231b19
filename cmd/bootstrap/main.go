package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"toolkitforseo-api/internal/config"
	"toolkitforseo-api/internal/domain/entity"
	"toolkitforseo-api/internal/infrastructure/persistence/postgres"
	"toolkitforseo-api/internal/wire"
	"toolkitforseo-api/pkg/utils"
)

func main() {
	_ = godotenv.Load()

	fmt.Println("Starting system bootstrap...")

	// 1. 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx := context.Background()

	// 2. 执行迁移
	if err := postgres.RunMigrations(ctx, postgres.DSN(&cfg.Database.Postgres), "up"); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	// 3. 初始化数据层（仅 PostgreSQL）
	dataLayer, cleanup, err := wire.InitializePostgresOnly(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to initialize data layer: %v", err)
	}
	defer cleanup()

	// 4. 为开发订阅者开通套餐
	subscriberID := os.Getenv("BOOTSTRAP_SUBSCRIBER_ID")
	if subscriberID == "" {
		subscriberID = "dev-subscriber"
	}
	plan := os.Getenv("BOOTSTRAP_PLAN")
	if plan == "" {
		plan = "pro"
	}
	if _, ok := cfg.Credits.Plans[plan]; !ok {
		log.Fatalf("plan %q is not configured", plan)
	}

	var sub *entity.Subscription
	err = dataLayer.TxManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := dataLayer.SubscriptionRepo.Upsert(txCtx, entity.NewSubscription(subscriberID, plan)); err != nil {
			return err
		}
		sub, err = dataLayer.SubscriptionRepo.GetBySubscriberID(txCtx, subscriberID)
		return err
	})
	if err != nil {
		log.Fatalf("failed to provision subscription: %v", err)
	}
	fmt.Printf("Subscription ready: subscriber=%s plan=%s status=%s\n", sub.SubscriberID, sub.Plan, sub.Status)

	// 5. 签发本地调试令牌
	ttl := cfg.Security.JWT.Expiration
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	token, err := utils.NewJWTManager(cfg.Security.JWT.Secret, cfg.Security.JWT.Issuer).
		GenerateToken(subscriberID, os.Getenv("BOOTSTRAP_EMAIL"), ttl)
	if err != nil {
		log.Fatalf("failed to issue token: %v", err)
	}
	fmt.Printf("Bearer token (expires in %s):\n%s\n", ttl, token)

	fmt.Println("Bootstrap completed successfully.")
}
