package setup

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/povarna/generative-ai-agents/llm-bridge/internal/audit"
	"github.com/povarna/generative-ai-agents/llm-bridge/internal/bridge"
	"github.com/povarna/generative-ai-agents/llm-bridge/internal/config"
	"github.com/povarna/generative-ai-agents/llm-bridge/internal/llm"
	"github.com/povarna/generative-ai-agents/llm-bridge/internal/llm/bedrock"
	"github.com/povarna/generative-ai-agents/llm-bridge/internal/llm/gpt"
	"github.com/povarna/generative-ai-agents/llm-bridge/internal/redis"
	"github.com/povarna/generative-ai-agents/llm-bridge/internal/security"
	"github.com/povarna/generative-ai-agents/llm-bridge/internal/setup/logger"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type Config struct {
	AWSRegion          string
	ClaudeModelID      string
	OpenAIKey          string
	OpenAIModelID      string
	DefaultMaxTokens   int
	DefaultTemperature float64
	PatternCacheSize   int
	RedisAddr          string
	RedisPassword      string
	AuditStream        string
	AuditMaxLen        int64
	LogLevel           string
	// Source tags audit events with the binary that received the prompt.
	Source string
}

type Dependencies struct {
	Guard   *security.Guard
	Service *bridge.Service
	Redis   *goredis.Client
	Logger  *zerolog.Logger
}

func LoadConfig() *Config {
	return &Config{
		AWSRegion:          getEnv("AWS_REGION", "us-east-1"),
		ClaudeModelID:      getEnv("CLAUDE_MODEL_ID", ""),
		OpenAIKey:          getEnv("OPEN_AI_KEY", ""),
		OpenAIModelID:      getEnv("OPEN_AI_MODEL_ID", "gpt-4o-mini"),
		DefaultMaxTokens:   getEnvInt("DEFAULT_MAX_TOKENS", 1024),
		DefaultTemperature: getEnvFloat("DEFAULT_TEMPERATURE", 0.7),
		PatternCacheSize:   getEnvInt("PATTERN_CACHE_SIZE", security.DefaultCacheSize),
		RedisAddr:          getEnv("REDIS_ADDR", ""),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		AuditStream:        getEnv("AUDIT_STREAM", audit.DefaultStream),
		AuditMaxLen:        int64(getEnvInt("AUDIT_STREAM_MAX_LEN", 10000)),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
	}
}

// WireGuard builds the validation pipeline from the security options file and environment.
func WireGuard(cfg *Config, log *zerolog.Logger) (*security.Guard, error) {
	opts, err := config.LoadSecurityOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to load security options: %w", err)
	}

	securityLogger := logger.ForSecurity(log)
	compiler, err := security.NewCompiler(security.DefaultRegistry(), cfg.PatternCacheSize, securityLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to create pattern compiler: %w", err)
	}

	policy := security.ResolvePolicy(opts)
	log.Info().
		Str("level", string(policy.Level)).
		Str("fingerprint", policy.Fingerprint()[:12]).
		Msg("security policy resolved")

	return security.NewGuard(security.NewEngine(compiler, securityLogger), policy, securityLogger), nil
}

func Wire(ctx context.Context, cfg *Config, log *zerolog.Logger) (*Dependencies, error) {
	guard, err := WireGuard(cfg, log)
	if err != nil {
		return nil, err
	}

	clients, err := createLLMClients(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	var publisher audit.Publisher = audit.NopPublisher{}
	var redisClient *goredis.Client
	if cfg.RedisAddr != "" {
		redisClient, err = redis.ConnectRedis(ctx, redis.Options{
			Addr:       cfg.RedisAddr,
			Password:   cfg.RedisPassword,
			MaxRetries: 3,
		}, log)
		if err != nil {
			return nil, err
		}
		publisher = audit.NewStreamPublisher(redisClient, cfg.AuditStream, cfg.AuditMaxLen, log)
	}

	service := bridge.NewService(guard, clients, publisher, bridge.Defaults{
		MaxTokens:   cfg.DefaultMaxTokens,
		Temperature: cfg.DefaultTemperature,
		Source:      cfg.Source,
	}, log)

	return &Dependencies{
		Guard:   guard,
		Service: service,
		Redis:   redisClient,
		Logger:  log,
	}, nil
}

// Close releases connections opened by Wire.
func (d *Dependencies) Close() {
	if d.Redis != nil {
		_ = d.Redis.Close()
	}
}

func createLLMClients(ctx context.Context, cfg *Config, log *zerolog.Logger) (map[llm.Provider]llm.LLMClient, error) {
	clients := map[llm.Provider]llm.LLMClient{}

	if cfg.ClaudeModelID != "" {
		client, err := bedrock.NewClient(ctx, cfg.AWSRegion, cfg.ClaudeModelID)
		if err != nil {
			return nil, fmt.Errorf("failed to create Bedrock client: %w", err)
		}
		clients[llm.ProviderClaude] = client
	} else {
		log.Warn().Msg("CLAUDE_MODEL_ID not set, claude provider disabled")
	}

	if cfg.OpenAIKey != "" {
		client, err := gpt.NewClient(cfg.OpenAIKey, cfg.OpenAIModelID)
		if err != nil {
			return nil, fmt.Errorf("failed to create OpenAI client: %w", err)
		}
		clients[llm.ProviderGPT] = client
	} else {
		log.Warn().Msg("OPEN_AI_KEY not set, gpt provider disabled")
	}

	return clients, nil
}

func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		value = defaultValue
	}

	return value
}

func getEnvInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		value = defaultValue
	}

	return value
}

func getEnvFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		value = defaultValue
	}

	return value
}
