package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// 敏感配置不放在 toml 里，从环境变量覆盖
const (
	EnvPostgresDSN   = "PRICEALERT_POSTGRES_DSN"
	EnvRedisPassword = "PRICEALERT_REDIS_PASSWORD"
	EnvKafkaBrokers  = "PRICEALERT_KAFKA_BROKERS"
	EnvHTTPAddr      = "PRICEALERT_HTTP_ADDR"
)

// LoadDotEnv loads .env files into the process environment. Missing files
// are not an error; existing variables are never overwritten.
func LoadDotEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			log.Warn().Str("file", f).Err(err).Msg("load env file failed")
		}
	}
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvPostgresDSN)); v != "" {
		cfg.Storage.Postgres.DSN = v
	}
	if v := os.Getenv(EnvRedisPassword); v != "" {
		cfg.Channel.Redis.Password = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvKafkaBrokers)); v != "" {
		cfg.Channel.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := strings.TrimSpace(os.Getenv(EnvHTTPAddr)); v != "" {
		cfg.HTTP.Addr = v
	}
}
