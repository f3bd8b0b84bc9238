package feed

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"pricealert/internal/application/port"
	"pricealert/internal/domain"
	"pricealert/internal/infrastructure/metrics"
)

// DefaultConnectTimeout bounds how long a connection may stay Connecting.
const DefaultConnectTimeout = 10 * time.Second

var errStreamEnded = errors.New("stream ended")

// TickHandler receives every decoded tick of a connection, in arrival order.
type TickHandler func(tick domain.PriceTick)

// CloseHandler is invoked exactly once when a connection reaches Closed.
// cause is context.Canceled for an explicit Close.
type CloseHandler func(c *Connection, cause error)

// Limiter gates dial attempts.
type Limiter interface {
	Wait(ctx context.Context) error
}

type ConnectionConfig struct {
	Instrument     domain.Instrument
	Transport      port.MarketFeedTransport
	Decoder        port.TickDecoder
	ConnectTimeout time.Duration
	Limiter        Limiter // optional
	OnTick         TickHandler
	OnClose        CloseHandler
}

// Connection owns one streaming subscription for a single instrument.
// State machine: Connecting -> Open -> Closed. It never reconnects itself;
// the close event is reported to OnClose and the owner decides.
type Connection struct {
	cfg ConnectionConfig

	mu      sync.Mutex
	state   domain.FeedState
	cancel  context.CancelFunc
	started bool
	closing bool

	closeOnce sync.Once
	done      chan struct{}
}

func NewConnection(cfg ConnectionConfig) *Connection {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	return &Connection{
		cfg:   cfg,
		state: domain.FeedConnecting,
		done:  make(chan struct{}),
	}
}

func (c *Connection) Instrument() domain.Instrument { return c.cfg.Instrument }

func (c *Connection) State() domain.FeedState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Done is closed after the connection is Closed and OnClose has returned.
func (c *Connection) Done() <-chan struct{} { return c.done }

// Open starts the connection in its own goroutine and returns immediately.
func (c *Connection) Open(ctx context.Context) {
	go c.Run(ctx)
}

// Run dials, pumps messages and blocks until the connection is Closed.
// Calling Run more than once is a no-op.
func (c *Connection) Run(ctx context.Context) {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	closing := c.closing
	c.mu.Unlock()
	defer cancel()

	metrics.FeedOpened()
	if closing {
		c.finish(context.Canceled)
		return
	}
	c.finish(c.serve(ctx))
}

// Close terminates the underlying stream so no further ticks are delivered.
// The close event still fires once through OnClose.
func (c *Connection) Close() {
	c.mu.Lock()
	c.closing = true
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (c *Connection) serve(ctx context.Context) error {
	inst := c.cfg.Instrument

	if c.cfg.Limiter != nil {
		if err := c.cfg.Limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &domain.TransportError{Instrument: inst, Err: err}
		}
	}

	log.Info().Str("instrument", inst.String()).Msg("feed connecting")
	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	stream, err := c.cfg.Transport.Open(dialCtx, inst)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &domain.TransportError{Instrument: inst, Err: err}
	}
	defer func() { _ = stream.Close() }()

	c.mu.Lock()
	c.state = domain.FeedOpen
	c.mu.Unlock()
	log.Info().Str("instrument", inst.String()).Msg("feed connected")

	msgs := stream.Messages()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case b, ok := <-msgs:
			if !ok {
				err := stream.Err()
				if err == nil {
					err = errStreamEnded
				}
				log.Error().Str("instrument", inst.String()).Err(err).Msg("feed stream error")
				return &domain.TransportError{Instrument: inst, Err: err}
			}
			// select 在已取消和缓冲消息之间随机选择，Close 之后不再投递
			if err := ctx.Err(); err != nil {
				return err
			}
			c.handleMessage(ctx, b)
		}
	}
}

func (c *Connection) handleMessage(ctx context.Context, b []byte) {
	inst := c.cfg.Instrument
	tick, ok, err := c.cfg.Decoder.Decode(inst, b)
	if err != nil {
		metrics.RecordParseError(inst.String())
		log.Warn().Str("instrument", inst.String()).Err(err).Msg("dropping malformed feed message")
		return
	}
	if !ok {
		return
	}
	metrics.RecordTick(inst.String())
	log.Debug().Str("instrument", inst.String()).Float64("price", tick.Price).Msg("tick")
	if c.cfg.OnTick != nil && ctx.Err() == nil {
		c.cfg.OnTick(tick)
	}
}

func (c *Connection) finish(cause error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.state = domain.FeedClosed
		c.mu.Unlock()
		metrics.FeedClosed()

		inst := c.cfg.Instrument.String()
		if errors.Is(cause, context.Canceled) {
			log.Info().Str("instrument", inst).Msg("feed closed")
		} else {
			log.Warn().Str("instrument", inst).Err(cause).Msg("feed disconnected")
		}

		if c.cfg.OnClose != nil {
			c.cfg.OnClose(c, cause)
		}
		close(c.done)
	})
}
