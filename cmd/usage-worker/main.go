// Package main 消耗记录重放 worker 入口
// 消费写库失败后入队的消耗记录，按记录 ID 幂等追加
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"toolkitforseo-api/internal/config"
	"toolkitforseo-api/internal/wire"
	"toolkitforseo-api/pkg/logger"
	"toolkitforseo-api/pkg/tracer"
)

const (
	dlqCheckInterval  = time.Minute
	dlqAlertThreshold = 100
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := tracer.Init(ctx, tracer.Config{
		ServiceName:    "usage-worker",
		ServiceVersion: cfg.App.Version,
		Environment:    cfg.App.Env,
		Endpoint:       cfg.Observability.Tracing.Endpoint,
		SampleRate:     cfg.Observability.Tracing.SampleRate,
		Enabled:        cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		logger.Fatal(ctx, "failed to init tracer", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	worker, cleanup, err := wire.InitializeUsageWorker(ctx, cfg)
	if err != nil {
		logger.Fatal(ctx, "failed to initialize usage worker", err)
	}
	defer cleanup()

	logger.Info(ctx, "usage-worker started")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return worker.Consumer.Run(gctx)
	})
	g.Go(func() error {
		return worker.Consumer.MonitorDLQ(gctx, dlqCheckInterval, dlqAlertThreshold)
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		logger.Error(ctx, "usage-worker stopped with error", err)
		cleanup()
		os.Exit(1)
	}
	logger.Info(ctx, "usage-worker exited")
}
