package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/povarna/generative-ai-agents/llm-bridge/internal/audit"
	"github.com/povarna/generative-ai-agents/llm-bridge/internal/redis"
	"github.com/povarna/generative-ai-agents/llm-bridge/internal/setup"
	setuplogger "github.com/povarna/generative-ai-agents/llm-bridge/internal/setup/logger"
)

func main() {
	_ = godotenv.Load()

	cfg := setup.LoadConfig()
	logger := setuplogger.New(cfg.LogLevel)

	hostname, _ := os.Hostname()
	group := flag.String("group", audit.DefaultGroup, "consumer group name")
	consumerName := flag.String("consumer", hostname, "consumer name within the group")
	flag.Parse()

	if cfg.RedisAddr == "" {
		logger.Fatal().Msg("REDIS_ADDR must be set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := redis.ConnectRedis(ctx, redis.Options{
		Addr:       cfg.RedisAddr,
		Password:   cfg.RedisPassword,
		MaxRetries: 5,
	}, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Unable to connect to Redis")
	}
	defer client.Close()

	consumer := audit.NewConsumer(client, cfg.AuditStream, *group, *consumerName, audit.LogHandler(&logger), &logger)
	if err := consumer.Setup(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to create consumer group")
	}

	if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("Audit consumer stopped")
		os.Exit(1)
	}
	logger.Info().Msg("Audit consumer stopped")
}
