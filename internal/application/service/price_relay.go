package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"pricealert/internal/application/port"
	"pricealert/internal/domain"
	"pricealert/internal/infrastructure/metrics"
)

const DefaultPublishTimeout = 5 * time.Second

// PriceRelay forwards every tick to the notification channel, unfiltered.
type PriceRelay struct {
	channel port.NotificationChannel
	timeout time.Duration
}

func NewPriceRelay(channel port.NotificationChannel, timeout time.Duration) *PriceRelay {
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}
	return &PriceRelay{channel: channel, timeout: timeout}
}

// OnTick publishes tick. Failures are logged and the tick is dropped.
func (r *PriceRelay) OnTick(tick domain.PriceTick) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if err := r.channel.Publish(ctx, tick); err != nil {
		metrics.RecordPublishFailure()
		log.Warn().
			Str("instrument", tick.Instrument.String()).
			Float64("price", tick.Price).
			Err(err).
			Msg("publish tick failed, dropping")
	}
}
