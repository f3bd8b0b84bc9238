package svc

import (
	"context"
	"fmt"
	"strings"
	"time"

	redisclient "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"pricealert/internal/application/feed"
	"pricealert/internal/application/port"
	"pricealert/internal/application/service"
	"pricealert/internal/domain"
	"pricealert/internal/infrastructure/config"
	"pricealert/internal/infrastructure/exchange/binance"
	"pricealert/internal/infrastructure/messaging/inproc"
	kafkach "pricealert/internal/infrastructure/messaging/kafka"
	redisch "pricealert/internal/infrastructure/messaging/redis"
	"pricealert/internal/infrastructure/pricefeed"
	"pricealert/internal/infrastructure/quote"
	"pricealert/internal/infrastructure/storage"

	// 注册行情源
	_ "pricealert/internal/infrastructure/exchange/bybit"
)

type ServiceContext struct {
	Ctx    context.Context
	Config *config.Config

	// 基础设施层（第一层初始化）
	Alerts      port.AlertRepository
	Channel     port.NotificationChannel
	Quotes      port.QuoteProvider // 可能为 nil（quote.enabled = false）
	MarketFeed  port.MarketFeed
	redisClient *redisclient.Client
	redisCh     *redisch.Channel

	// 应用业务组件（依赖基础设施）
	Registry     *service.SymbolRegistry
	Supervisor   *feed.Supervisor
	Relay        *service.PriceRelay
	Evaluator    *service.AlertEvaluator
	AlertService *service.AlertService

	StartedAt time.Time

	// 资源管理
	closerChain []func() error
}

// New 创建并初始化 ServiceContext
// 这是应用启动的唯一入口点，所有依赖初始化都在这里完成。
// 不会主动建立行情连接，调用方决定何时 StartAll。
func New(ctx context.Context, cfg *config.Config) (*ServiceContext, error) {
	sc := &ServiceContext{
		Ctx:         ctx,
		Config:      cfg,
		StartedAt:   time.Now(),
		closerChain: make([]func() error, 0),
	}
	if err := sc.initializeComponents(); err != nil {
		_ = sc.Close()
		return nil, err
	}
	return sc, nil
}

func (sc *ServiceContext) initializeComponents() error {
	if err := sc.initStorage(); err != nil {
		return err
	}
	if err := sc.initChannel(); err != nil {
		return err
	}
	sc.initQuotes()
	if err := sc.initMarketFeed(); err != nil {
		return err
	}

	cfg := sc.Config
	sc.Registry = service.NewSymbolRegistry(sc.Alerts, cfg.Instruments())
	sc.Relay = service.NewPriceRelay(sc.Channel, cfg.PublishTimeout())
	sc.Evaluator = service.NewAlertEvaluator(sc.Alerts)
	sc.Supervisor = feed.NewSupervisor(feed.SupervisorConfig{
		Transport:      sc.MarketFeed,
		Decoder:        sc.MarketFeed,
		Alerts:         sc.Alerts,
		Source:         sc.Registry,
		OnTick:         sc.Relay.OnTick,
		ConnectTimeout: cfg.ConnectTimeout(),
		QueryTimeout:   cfg.QueryTimeout(),
		DialRate:       rate.Limit(cfg.Feed.DialRatePerSec),
		DialBurst:      cfg.Feed.DialBurst,
	})
	sc.closerChain = append(sc.closerChain, func() error {
		sc.Supervisor.Stop()
		return nil
	})
	sc.AlertService = service.NewAlertService(sc.Alerts, sc.Registry, sc.Quotes, sc.Supervisor)

	log.Info().
		Str("feed", sc.MarketFeed.Name()).
		Strs("symbols", cfg.Symbols.List).
		Msg("✓ Application services initialized")
	return nil
}

func (sc *ServiceContext) initStorage() error {
	cfg := sc.Config
	repo, err := storage.Open(storage.Options{
		Driver:      cfg.Storage.Driver,
		SQLitePath:  cfg.Storage.SQLite.Path,
		PostgresDSN: cfg.Storage.Postgres.DSN,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageInitFailed, err)
	}
	sc.Alerts = repo
	sc.closerChain = append(sc.closerChain, repo.Close)
	log.Info().Str("driver", cfg.Storage.Driver).Msg("✓ Alert storage initialized")
	return nil
}

func (sc *ServiceContext) initChannel() error {
	cfg := sc.Config
	switch cfg.Channel.Driver {
	case "inproc", "":
		sc.Channel = inproc.New(cfg.Channel.Buffer, cfg.Evaluator.Workers)
	case "redis":
		if err := sc.initRedis(); err != nil {
			return fmt.Errorf("%w: %v", ErrChannelInitFailed, err)
		}
		sc.redisCh = redisch.New(sc.redisClient, redisch.Options{
			Prefix:  cfg.Channel.Redis.Prefix,
			Channel: cfg.Channel.Redis.Channel,
			TTL:     time.Duration(cfg.Channel.Redis.TTLSeconds) * time.Second,
		})
		sc.Channel = sc.redisCh
	case "kafka":
		sc.Channel = kafkach.New(kafkach.Options{
			Brokers: cfg.Channel.Kafka.Brokers,
			Topic:   cfg.Channel.Kafka.Topic,
			GroupID: cfg.Channel.Kafka.GroupID,
		})
	default:
		return fmt.Errorf("%w: unknown driver %q", ErrChannelInitFailed, cfg.Channel.Driver)
	}
	sc.closerChain = append(sc.closerChain, sc.Channel.Close)
	log.Info().Str("driver", cfg.Channel.Driver).Msg("✓ Notification channel initialized")
	return nil
}

func (sc *ServiceContext) initRedis() error {
	r := sc.Config.Channel.Redis
	client := redisclient.NewClient(&redisclient.Options{
		Addr:     r.Addr,
		Password: r.Password,
		DB:       r.DB,
	})
	ctx, cancel := context.WithTimeout(sc.Ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("redis ping failed: %w", err)
	}
	sc.redisClient = client
	sc.closerChain = append(sc.closerChain, client.Close)
	log.Info().Str("addr", r.Addr).Msg("✓ Redis initialized")
	return nil
}

func (sc *ServiceContext) initQuotes() {
	var latest port.QuoteProvider
	if sc.redisCh != nil {
		latest = sc.redisCh
	}
	sc.Quotes = BuildQuotes(sc.Config, latest)
}

// BuildQuotes 按 quote.providers 顺序组装参考价来源。latest 为 redis 最新价缓存，
// 可为 nil。未启用或没有可用来源时返回 nil
func BuildQuotes(cfg *config.Config, latest port.QuoteProvider) port.QuoteProvider {
	if !cfg.Quote.Enabled {
		log.Warn().Msg("reference quotes disabled, already-met check skipped")
		return nil
	}
	chain := quote.NewChain()
	for _, name := range cfg.Quote.Providers {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "coingecko":
			chain.Add("coingecko", quote.NewCoinGecko(cfg.Quote.CoinGecko, cfg.QuoteTimeout()))
		case "binance":
			chain.Add("binance", binance.NewMarkPriceClient(cfg.Quote.BinanceURL, cfg.QuoteTimeout()))
		case "latest":
			if latest == nil {
				log.Warn().Msg("quote provider latest needs channel.driver = redis, skipped")
				continue
			}
			chain.Add("latest", latest)
		default:
			log.Warn().Str("provider", name).Msg("unknown quote provider, skipped")
		}
	}
	if chain.Len() == 0 {
		log.Warn().Msg("no quote provider available, already-met check skipped")
		return nil
	}
	log.Info().Int("providers", chain.Len()).Msg("✓ Quote providers initialized")
	return chain
}

func (sc *ServiceContext) initMarketFeed() error {
	cfg := sc.Config
	factory, ok := pricefeed.Get(cfg.Feed.Source)
	if !ok {
		return fmt.Errorf("%w: %q (registered: %v)", ErrNoFeedsEnabled, cfg.Feed.Source, pricefeed.Names())
	}
	sc.MarketFeed = factory(cfg.Feed.WsURL)
	log.Info().Str("source", sc.MarketFeed.Name()).Msg("✓ Market feed initialized")
	return nil
}

// StartFeeds 为所有有活跃告警的标的建立连接，并按配置启动定时 reconcile
func (sc *ServiceContext) StartFeeds(ctx context.Context) error {
	if err := sc.Supervisor.StartAll(ctx); err != nil {
		return err
	}
	if err := sc.Supervisor.StartReconcile(sc.Config.Feed.ReconcileCron); err != nil {
		return err
	}
	log.Info().Int("feeds", len(sc.Supervisor.Instruments())).Msg("feeds started")
	return nil
}

// RunEvaluator 消费通知通道直到 ctx 结束
func (sc *ServiceContext) RunEvaluator(ctx context.Context) error {
	return sc.Channel.Subscribe(ctx, sc.Evaluator.Consume)
}

// Uptime 进程运行时长
func (sc *ServiceContext) Uptime() time.Duration {
	return time.Since(sc.StartedAt)
}

// Instruments 配置中启用的标的
func (sc *ServiceContext) Instruments() []domain.Instrument {
	return sc.Config.Instruments()
}

// Close 关闭所有资源
func (sc *ServiceContext) Close() error {
	// 按照相反的顺序关闭所有资源
	for i := len(sc.closerChain) - 1; i >= 0; i-- {
		if err := sc.closerChain[i](); err != nil {
			log.Error().Err(err).Msg("error closing resource")
		}
	}
	sc.closerChain = nil
	return nil
}
