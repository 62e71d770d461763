package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type TierDefaults struct {
	Model            string
	Models           string // CSV
	RateLimit        int
	MaxHistory       int
	Commands         string // CSV
	AllowModelSwitch bool
}

type Config struct {
	DBDSN     string
	JWTSecret string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// AI service
	AIServiceURL string
	AITimeout    time.Duration

	// Tier defaults applied when a channel carries no override.
	Public  TierDefaults
	Private TierDefaults

	SessionIdleTimeout time.Duration

	// Admin surface
	AdminUser         string
	AdminPasswordHash string // bcrypt

	// RabbitMQ usage event fan-out (empty URL disables publishing)
	RabbitURL   string
	RabbitQueue string

	ListenAddr string
}

func Load() Config {
	// DSN demo:
	// app:apppass@tcp(127.0.0.1:3306)/chatgate?charset=utf8mb4&parseTime=true&loc=Local
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		dsn = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=Local",
			"app", "apppass", "127.0.0.1", "3306", "chatgate",
		)
	}

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "dev-secret-change-me"
	}

	redisDB := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			redisDB = n
		}
	}

	aiURL := os.Getenv("AI_SERVICE_URL")
	if aiURL == "" {
		aiURL = "http://localhost:8000"
	}

	aiTimeout := 60 * time.Second
	if v := os.Getenv("AI_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			aiTimeout = time.Duration(n) * time.Second
		}
	}

	idle := 30 * time.Minute
	if v := os.Getenv("SESSION_IDLE_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			idle = time.Duration(n) * time.Minute
		}
	}

	rabbitQueue := os.Getenv("RABBIT_QUEUE")
	if rabbitQueue == "" {
		rabbitQueue = "usage_events"
	}

	listen := os.Getenv("LISTEN_ADDR")
	if listen == "" {
		listen = ":3000"
	}

	adminUser := os.Getenv("ADMIN_USER")
	if adminUser == "" {
		adminUser = "admin"
	}

	return Config{
		DBDSN:     dsn,
		JWTSecret: secret,

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       redisDB,

		AIServiceURL: aiURL,
		AITimeout:    aiTimeout,

		Public: TierDefaults{
			Model:            envOr("PUBLIC_DEFAULT_MODEL", "google/gemini-2.0-flash-001"),
			Models:           envOr("PUBLIC_MODELS", "google/gemini-2.0-flash-001,google/gemini-2.5-flash,deepseek/deepseek-chat-v3-0324,openai/gpt-4o-mini"),
			RateLimit:        envIntOr("PUBLIC_RATE_LIMIT", 20),
			MaxHistory:       envIntOr("PUBLIC_MAX_HISTORY", 10),
			Commands:         envOr("PUBLIC_COMMANDS", "start,help,status,clear,model,models"),
			AllowModelSwitch: envBoolOr("PUBLIC_ALLOW_MODEL_SWITCH", true),
		},
		Private: TierDefaults{
			Model:            envOr("PRIVATE_DEFAULT_MODEL", "openai/gpt-5-chat"),
			Models:           envOr("PRIVATE_MODELS", "openai/gpt-5-chat,openai/gpt-4.1,openai/gpt-4o-mini,anthropic/claude-sonnet-4,x-ai/grok-4"),
			RateLimit:        envIntOr("PRIVATE_RATE_LIMIT", 60),
			MaxHistory:       envIntOr("PRIVATE_MAX_HISTORY", 30),
			Commands:         envOr("PRIVATE_COMMANDS", "start,help,status,clear,model,models,settings"),
			AllowModelSwitch: envBoolOr("PRIVATE_ALLOW_MODEL_SWITCH", true),
		},

		SessionIdleTimeout: idle,

		AdminUser:         adminUser,
		AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),

		RabbitURL:   os.Getenv("RABBIT_URL"),
		RabbitQueue: rabbitQueue,

		ListenAddr: listen,
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOr(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envBoolOr(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
