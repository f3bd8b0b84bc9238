package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/robfig/cron/v3"

	"pricealert/internal/domain"
)

type Config struct {
	App struct {
		LogLevel string `toml:"log_level"`
		LogFile  string `toml:"log_file"` // 为空时只输出到控制台
	} `toml:"app"`

	Symbols struct {
		List []string `toml:"list"`
	} `toml:"symbols"`

	Feed struct {
		Source            string  `toml:"source"` // binance | bybit
		WsURL             string  `toml:"ws_url"`
		ConnectTimeoutSec int     `toml:"connect_timeout_sec"`
		QueryTimeoutSec   int     `toml:"query_timeout_sec"`
		DialRatePerSec    float64 `toml:"dial_rate_per_sec"`
		DialBurst         int     `toml:"dial_burst"`
		ReconcileCron     string  `toml:"reconcile_cron"`
	} `toml:"feed"`

	Evaluator struct {
		Workers          int `toml:"workers"`
		PublishTimeoutMs int `toml:"publish_timeout_ms"`
	} `toml:"evaluator"`

	Storage struct {
		Driver string `toml:"driver"` // sqlite | postgres | memory
		SQLite struct {
			Path string `toml:"path"`
		} `toml:"sqlite"`
		Postgres struct {
			DSN string `toml:"dsn"`
		} `toml:"postgres"`
	} `toml:"storage"`

	Channel struct {
		Driver string `toml:"driver"` // inproc | redis | kafka
		Buffer int    `toml:"buffer"`
		Redis  struct {
			Addr       string `toml:"addr"`
			Password   string `toml:"password"`
			DB         int    `toml:"db"`
			Prefix     string `toml:"prefix"`
			Channel    string `toml:"channel"`
			TTLSeconds int    `toml:"ttl_seconds"`
		} `toml:"redis"`
		Kafka struct {
			Brokers []string `toml:"brokers"`
			Topic   string   `toml:"topic"`
			GroupID string   `toml:"group_id"`
		} `toml:"kafka"`
	} `toml:"channel"`

	Quote struct {
		Enabled    bool     `toml:"enabled"`
		Providers  []string `toml:"providers"` // coingecko | binance | latest
		CoinGecko  string   `toml:"coingecko_url"`
		BinanceURL string   `toml:"binance_url"`
		TimeoutSec int      `toml:"timeout_sec"`
	} `toml:"quote"`

	HTTP struct {
		Addr string `toml:"addr"`
	} `toml:"http"`
}

func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.App.LogLevel == "" {
		cfg.App.LogLevel = "info"
	}
	if len(cfg.Symbols.List) == 0 {
		for _, inst := range domain.SupportedInstruments() {
			cfg.Symbols.List = append(cfg.Symbols.List, inst.String())
		}
	}
	if cfg.Feed.Source == "" {
		cfg.Feed.Source = "binance"
	}
	if cfg.Feed.ConnectTimeoutSec <= 0 {
		cfg.Feed.ConnectTimeoutSec = 10
	}
	if cfg.Feed.QueryTimeoutSec <= 0 {
		cfg.Feed.QueryTimeoutSec = 5
	}
	if cfg.Feed.DialRatePerSec <= 0 {
		cfg.Feed.DialRatePerSec = 1
	}
	if cfg.Feed.DialBurst <= 0 {
		cfg.Feed.DialBurst = 3
	}
	if cfg.Evaluator.Workers <= 0 {
		cfg.Evaluator.Workers = 4
	}
	if cfg.Evaluator.PublishTimeoutMs <= 0 {
		cfg.Evaluator.PublishTimeoutMs = 5000
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "sqlite"
	}
	if cfg.Storage.SQLite.Path == "" {
		cfg.Storage.SQLite.Path = "data/pricealert.db"
	}
	if cfg.Channel.Driver == "" {
		cfg.Channel.Driver = "inproc"
	}
	if cfg.Channel.Buffer <= 0 {
		cfg.Channel.Buffer = 1024
	}
	if cfg.Channel.Redis.Addr == "" {
		cfg.Channel.Redis.Addr = "127.0.0.1:6379"
	}
	if cfg.Channel.Redis.Prefix == "" {
		cfg.Channel.Redis.Prefix = "pricealert"
	}
	if cfg.Channel.Kafka.Topic == "" {
		cfg.Channel.Kafka.Topic = "pricealert.ticks"
	}
	if cfg.Channel.Kafka.GroupID == "" {
		cfg.Channel.Kafka.GroupID = "pricealert-evaluator"
	}
	if len(cfg.Quote.Providers) == 0 {
		cfg.Quote.Providers = []string{"coingecko"}
	}
	if cfg.Quote.TimeoutSec <= 0 {
		cfg.Quote.TimeoutSec = 10
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":3000"
	}
}

func validate(cfg *Config) error {
	insts, rejected := domain.NormalizeInstruments(cfg.Symbols.List)
	if len(rejected) > 0 {
		return fmt.Errorf("symbols.list: unsupported %v", rejected)
	}
	if len(insts) == 0 {
		return errors.New("symbols.list is empty")
	}
	cfg.Symbols.List = cfg.Symbols.List[:0]
	for _, inst := range insts {
		cfg.Symbols.List = append(cfg.Symbols.List, inst.String())
	}

	switch cfg.Feed.Source {
	case "binance", "bybit":
	default:
		return fmt.Errorf("feed.source %q not supported", cfg.Feed.Source)
	}
	if cfg.Feed.ReconcileCron != "" {
		if _, err := cron.ParseStandard(cfg.Feed.ReconcileCron); err != nil {
			return fmt.Errorf("feed.reconcile_cron: %w", err)
		}
	}

	switch cfg.Storage.Driver {
	case "sqlite", "memory":
	case "postgres":
		if strings.TrimSpace(cfg.Storage.Postgres.DSN) == "" {
			return errors.New("storage.postgres.dsn empty but driver is postgres")
		}
	default:
		return fmt.Errorf("storage.driver %q not supported", cfg.Storage.Driver)
	}

	switch cfg.Channel.Driver {
	case "inproc", "redis":
	case "kafka":
		cfg.Channel.Kafka.Brokers = normalizeList(cfg.Channel.Kafka.Brokers)
		if len(cfg.Channel.Kafka.Brokers) == 0 {
			return errors.New("channel.kafka.brokers empty but driver is kafka")
		}
	default:
		return fmt.Errorf("channel.driver %q not supported", cfg.Channel.Driver)
	}

	for _, p := range cfg.Quote.Providers {
		switch p {
		case "coingecko", "binance", "latest":
		default:
			return fmt.Errorf("quote.providers: unknown provider %q", p)
		}
	}
	return nil
}

// Instruments returns symbols.list as instruments.
func (c *Config) Instruments() []domain.Instrument {
	out, _ := domain.NormalizeInstruments(c.Symbols.List)
	return out
}

func (c *Config) ConnectTimeout() time.Duration {
	return time.Duration(c.Feed.ConnectTimeoutSec) * time.Second
}

func (c *Config) QueryTimeout() time.Duration {
	return time.Duration(c.Feed.QueryTimeoutSec) * time.Second
}

func (c *Config) PublishTimeout() time.Duration {
	return time.Duration(c.Evaluator.PublishTimeoutMs) * time.Millisecond
}

func (c *Config) QuoteTimeout() time.Duration {
	return time.Duration(c.Quote.TimeoutSec) * time.Second
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]struct{}{}
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
