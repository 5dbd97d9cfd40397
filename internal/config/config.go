package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	AppName string
	Env     string
	Host    string
	Port    int

	// DatabaseURL selects PostgreSQL when set; otherwise the SQLite file at
	// SQLitePath is used.
	DatabaseURL string
	SQLitePath  string

	NATSURL  string
	RedisURL string

	JWTSecret          string
	AccessTokenMinutes int

	CORSOrigins []string
	Debug       bool

	// Engagement pipeline settings.
	EngageSchedule     string // cron spec for the daily draft scheduler
	QueuerSchedule     string // cron spec for the per-minute draft queuer
	ActivityWindowDays int    // recency window for pairing eligibility
	QueuerBatchSize    int    // max drafts promoted per queuer tick
	ConsumerMaxDeliver int    // redeliveries before a draft is dead-lettered
	AckWaitSeconds     int
}

func Load() (*Config, error) {
	// .env is a development convenience; absence is not an error.
	_ = godotenv.Load()

	cfg := &Config{
		AppName: getEnv("APP_NAME", "chatspark"),
		Env:     getEnv("APP_ENV", "development"),
		Host:    getEnv("HTTP_HOST", "0.0.0.0"),
		Port:    getEnvAsInt("HTTP_PORT", 8000),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		SQLitePath:  getEnv("SQLITE_PATH", "chatspark.db"),

		NATSURL:  getEnv("NATS_URL", "nats://localhost:4222"),
		RedisURL: os.Getenv("REDIS_URL"),

		JWTSecret:          os.Getenv("JWT_SECRET"),
		AccessTokenMinutes: getEnvAsInt("ACCESS_TOKEN_EXPIRE_MINUTES", 60*24),

		Debug: getEnvAsBool("DEBUG", true),

		EngageSchedule:     getEnv("ENGAGE_SCHEDULE", "0 9 * * *"),
		QueuerSchedule:     getEnv("ENGAGE_QUEUER_SCHEDULE", "* * * * *"),
		ActivityWindowDays: getEnvAsInt("ENGAGE_ACTIVITY_WINDOW_DAYS", 30),
		QueuerBatchSize:    getEnvAsInt("ENGAGE_QUEUER_BATCH_SIZE", 100),
		ConsumerMaxDeliver: getEnvAsInt("ENGAGE_CONSUMER_MAX_DELIVER", 5),
		AckWaitSeconds:     getEnvAsInt("ENGAGE_ACK_WAIT_SECONDS", 30),
	}

	cors := getEnv("CORS_ORIGINS", "")
	if cors != "" {
		parts := strings.Split(cors, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		cfg.CORSOrigins = parts
	} else {
		cfg.CORSOrigins = []string{"http://localhost:3000", "http://localhost:5173"}
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.QueuerBatchSize <= 0 {
		return nil, fmt.Errorf("ENGAGE_QUEUER_BATCH_SIZE must be positive")
	}
	if cfg.ConsumerMaxDeliver <= 0 {
		return nil, fmt.Errorf("ENGAGE_CONSUMER_MAX_DELIVER must be positive")
	}

	return cfg, nil
}

func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvAsInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvAsBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
