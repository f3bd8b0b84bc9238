package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"pricealert/internal/application/port"
	"pricealert/internal/domain"
	"pricealert/internal/infrastructure/messaging"
)

type Options struct {
	Prefix  string        // key 前缀，默认 "pricealert"
	Channel string        // PUBLISH 频道，默认 prefix + ":ticks"
	Stream  string        // XADD 审计流，默认 prefix + ":ticks:stream"
	MaxLen  int64         // 审计流近似上限
	TTL     time.Duration // latest hash 的过期时间
}

// Channel publishes ticks over redis pub/sub. Each publish also refreshes the
// latest-price hash and appends to a capped stream for replay and audit.
type Channel struct {
	rdb       *redis.Client
	channel   string
	stream    string
	maxLen    int64
	keyLatest string
	ttl       time.Duration
}

func New(rdb *redis.Client, opts Options) *Channel {
	prefix := strings.TrimSpace(opts.Prefix)
	if prefix == "" {
		prefix = "pricealert"
	}
	if strings.TrimSpace(opts.Channel) == "" {
		opts.Channel = prefix + ":ticks"
	}
	if strings.TrimSpace(opts.Stream) == "" {
		opts.Stream = prefix + ":ticks:stream"
	}
	if opts.MaxLen <= 0 {
		opts.MaxLen = 10000
	}
	return &Channel{
		rdb:       rdb,
		channel:   opts.Channel,
		stream:    opts.Stream,
		maxLen:    opts.MaxLen,
		keyLatest: prefix + ":latest",
		ttl:       opts.TTL,
	}
}

func (c *Channel) Publish(ctx context.Context, tick domain.PriceTick) error {
	b, err := messaging.EncodeTick(tick)
	if err != nil {
		return err
	}

	pipe := c.rdb.Pipeline()
	// Hash: field = "btc" -> json
	pipe.HSet(ctx, c.keyLatest, tick.Instrument.String(), string(b))
	if c.ttl > 0 {
		pipe.Expire(ctx, c.keyLatest, c.ttl)
	}
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: c.stream,
		MaxLen: c.maxLen,
		Approx: true,
		Values: map[string]any{
			"symbol": tick.Instrument.String(),
			"price":  strconv.FormatFloat(tick.Price, 'f', -1, 64),
			"ts_ms":  tick.ObservedAt.UnixMilli(),
		},
	})
	pipe.Publish(ctx, c.channel, string(b))
	_, err = pipe.Exec(ctx)
	return err
}

// Subscribe consumes the pub/sub channel until ctx is done.
func (c *Channel) Subscribe(ctx context.Context, handler port.TickHandler) error {
	ps := c.rdb.Subscribe(ctx, c.channel)
	defer ps.Close()

	if _, err := ps.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", c.channel, err)
	}
	log.Info().Str("channel", c.channel).Msg("redis subscriber started")

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return errors.New("redis subscription closed")
			}
			tick, err := messaging.DecodeTick([]byte(msg.Payload))
			if err != nil {
				log.Warn().Str("channel", msg.Channel).Err(err).Msg("dropping bad tick message")
				continue
			}
			if err := handler(ctx, tick); err != nil {
				log.Warn().Str("instrument", tick.Instrument.String()).Err(err).Msg("tick handler failed")
			}
		}
	}
}

// CurrentPrice returns the last published price for inst.
func (c *Channel) CurrentPrice(ctx context.Context, inst domain.Instrument) (float64, error) {
	s, err := c.rdb.HGet(ctx, c.keyLatest, inst.String()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, fmt.Errorf("no cached price for %s", inst)
		}
		return 0, err
	}
	tick, err := messaging.DecodeTick([]byte(s))
	if err != nil {
		return 0, err
	}
	return tick.Price, nil
}

// Close is a no-op; the client is owned by the caller.
func (c *Channel) Close() error { return nil }

var (
	_ port.NotificationChannel = (*Channel)(nil)
	_ port.QuoteProvider       = (*Channel)(nil)
)
