package config

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
)

// Balance update modes. "atomic" applies withdraw/deposit as a single
// conditional UPDATE so concurrent withdrawals cannot overdraw the account.
// "legacy" keeps the original two-round-trip read-check-write behavior.
const (
	ModeAtomic = "atomic"
	ModeLegacy = "legacy"
)

type Config struct {
	PostgresDSN       string
	RedisAddr         string
	KafkaBrokers      []string
	JWTSecret         string
	HTTPAddr          string
	LogLevel          string
	BalanceUpdateMode string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Warn("failed to load .env file, using default values", "error", err)
	}

	cfg := &Config{
		PostgresDSN:       os.Getenv("POSTGRES_DSN"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		KafkaBrokers:      []string{os.Getenv("KAFKA_BROKER")},
		JWTSecret:         os.Getenv("JWT_SECRET"),
		HTTPAddr:          os.Getenv("HTTP_ADDR"),
		LogLevel:          os.Getenv("LOG_LEVEL"),
		BalanceUpdateMode: os.Getenv("BALANCE_UPDATE_MODE"),
	}

	if cfg.PostgresDSN == "" {
		cfg.PostgresDSN = "host=localhost user=postgres password=postgres dbname=bank sslmode=disable"
	}
	if cfg.RedisAddr == "" {
		cfg.RedisAddr = "localhost:6379"
	}
	if len(cfg.KafkaBrokers) == 1 && cfg.KafkaBrokers[0] == "" {
		cfg.KafkaBrokers = []string{"localhost:9092"}
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "supersecret"
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.BalanceUpdateMode != ModeLegacy {
		cfg.BalanceUpdateMode = ModeAtomic
	}

	slog.Info("config loaded",
		"postgres_dsn", cfg.PostgresDSN,
		"redis_addr", cfg.RedisAddr,
		"kafka_brokers", cfg.KafkaBrokers,
		"http_addr", cfg.HTTPAddr,
		"balance_update_mode", cfg.BalanceUpdateMode)
	return cfg
}
