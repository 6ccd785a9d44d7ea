package config

import (
	"log/slog"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	Env      string `env:"ENV" env-default:"local"`
	HTTP     HTTPConfig
	Database DBConfig
	Token    TokenConfig
	Quote    QuoteConfig
	Redis    RedisConfig
	Trading  TradingConfig
}

type HTTPConfig struct {
	Port    uint16        `env:"HTTP_PORT" env-default:"8080"`
	Timeout time.Duration `env:"HTTP_TIMEOUT" env-default:"30s"`
}

type DBConfig struct {
	Host     string `env:"POSTGRES_HOST" env-default:"localhost"`
	Port     uint16 `env:"POSTGRES_PORT" env-default:"5432"`
	User     string `env:"POSTGRES_USER" env-default:"postgres"`
	Password string `env:"POSTGRES_PASSWORD" env-default:"postgres"`
	DBName   string `env:"POSTGRES_DB" env-default:"broker_db"`
}

type TokenConfig struct {
	Secret                 string        `env:"JWT_SECRET" env-required:"true"`
	AccessToken            time.Duration `env:"ACCESS_TOKEN_TTL" env-default:"15m"`
	RefreshToken           time.Duration `env:"REFRESH_TOKEN_TTL" env-default:"168h"`
	SessionCleanupInterval time.Duration `env:"SESSION_CLEANUP_INTERVAL" env-default:"1h"`
}

type QuoteConfig struct {
	BaseURL  string        `env:"QUOTE_BASE_URL" env-default:"https://query2.finance.yahoo.com"`
	Timeout  time.Duration `env:"QUOTE_TIMEOUT" env-default:"8s"`
	CacheTTL time.Duration `env:"QUOTE_CACHE_TTL" env-default:"1m"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD" env-default:""`
	DB       int    `env:"REDIS_DB" env-default:"0"`
}

type TradingConfig struct {
	// StartingCash is the cash balance seeded into every new account.
	StartingCash string `env:"STARTING_CASH" env-default:"10000"`
}

func MustLoad() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, reading from environment variables")
	}

	var cfg Config

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		slog.Error("failed to read environment variables", "error", err)
		os.Exit(1)
	}

	return &cfg
}
