package inproc

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/rs/zerolog/log"

	"pricealert/internal/application/port"
	"pricealert/internal/domain"
	"pricealert/internal/infrastructure/messaging"
)

const (
	DefaultBuffer  = 1024
	DefaultWorkers = 4
)

// Channel is a buffered in-process queue. Subscribe shards ticks across
// workers by instrument so one instrument's ticks are handled in order.
type Channel struct {
	buf     chan domain.PriceTick
	workers int

	closeOnce sync.Once
	done      chan struct{}
}

func New(buffer, workers int) *Channel {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Channel{
		buf:     make(chan domain.PriceTick, buffer),
		workers: workers,
		done:    make(chan struct{}),
	}
}

// Publish never waits on the evaluator: a full buffer drops the tick with
// ErrBufferFull so the feed read loop keeps draining the socket.
func (c *Channel) Publish(ctx context.Context, tick domain.PriceTick) error {
	select {
	case <-c.done:
		return messaging.ErrClosed
	default:
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case c.buf <- tick:
		return nil
	default:
		return messaging.ErrBufferFull
	}
}

func (c *Channel) Subscribe(ctx context.Context, handler port.TickHandler) error {
	workerChans := make([]chan domain.PriceTick, c.workers)
	var wg sync.WaitGroup
	for i := range workerChans {
		workerChans[i] = make(chan domain.PriceTick, 64)
		wg.Add(1)
		go func(in <-chan domain.PriceTick) {
			defer wg.Done()
			for tick := range in {
				if err := handler(ctx, tick); err != nil {
					log.Warn().Str("instrument", tick.Instrument.String()).Err(err).Msg("tick handler failed")
				}
			}
		}(workerChans[i])
	}
	defer func() {
		for _, ch := range workerChans {
			close(ch)
		}
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.done:
			return nil
		case tick := <-c.buf:
			select {
			case workerChans[workerID(tick.Instrument, c.workers)] <- tick:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

func (c *Channel) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}

func workerID(inst domain.Instrument, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(inst))
	return int(h.Sum32() % uint32(n))
}

var _ port.NotificationChannel = (*Channel)(nil)
