// Package main 数据库迁移入口
// 用法: migrate [up|down|status|redo|version]
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"toolkitforseo-api/internal/config"
	"toolkitforseo-api/internal/infrastructure/persistence/postgres"
	"toolkitforseo-api/pkg/logger"
)

var allowedCommands = map[string]bool{
	"up":      true,
	"down":    true,
	"status":  true,
	"redo":    true,
	"version": true,
}

func main() {
	_ = godotenv.Load()

	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}
	if !allowedCommands[command] {
		fmt.Printf("unknown command %q, expected one of up/down/status/redo/version\n", command)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Init(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)

	ctx := context.Background()
	if err := postgres.RunMigrations(ctx, postgres.DSN(&cfg.Database.Postgres), command, os.Args[2:]...); err != nil {
		logger.Fatal(ctx, "migration failed", err, "command", command)
	}
	logger.Info(ctx, "migration completed", "command", command)
}
