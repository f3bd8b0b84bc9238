package kafka

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"pricealert/internal/application/port"
	"pricealert/internal/domain"
	"pricealert/internal/infrastructure/messaging"
)

type Options struct {
	Brokers []string
	Topic   string
	GroupID string
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Channel publishes ticks keyed by instrument, so each instrument lands on a
// single partition and keeps its order.
type Channel struct {
	writer    messageWriter
	newReader func() messageReader
}

func New(opts Options) *Channel {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(opts.Brokers...),
		Topic:        opts.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
	return &Channel{
		writer: writer,
		newReader: func() messageReader {
			return kafka.NewReader(kafka.ReaderConfig{
				Brokers:           opts.Brokers,
				Topic:             opts.Topic,
				GroupID:           opts.GroupID,
				MinBytes:          1,
				MaxBytes:          10e6,
				MaxWait:           200 * time.Millisecond,
				HeartbeatInterval: 3 * time.Second,
				SessionTimeout:    10 * time.Second,
			})
		},
	}
}

func (c *Channel) Publish(ctx context.Context, tick domain.PriceTick) error {
	b, err := messaging.EncodeTick(tick)
	if err != nil {
		return err
	}
	return c.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(tick.Instrument.String()),
		Value: b,
		Time:  tick.ObservedAt,
	})
}

// Subscribe reads with the consumer group and commits after the handler ran.
// Undecodable messages are committed and skipped.
func (c *Channel) Subscribe(ctx context.Context, handler port.TickHandler) error {
	reader := c.newReader()
	defer func() {
		if err := reader.Close(); err != nil {
			log.Error().Err(err).Msg("close kafka reader")
		}
	}()

	for {
		m, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			log.Error().Err(err).Msg("kafka read error")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		tick, err := messaging.DecodeTick(m.Value)
		if err != nil {
			log.Warn().Str("key", string(m.Key)).Err(err).Msg("dropping bad tick message")
		} else if err := handler(ctx, tick); err != nil {
			log.Warn().Str("instrument", tick.Instrument.String()).Err(err).Msg("tick handler failed")
		}

		if err := reader.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Int64("offset", m.Offset).Msg("kafka commit failed")
		}
	}
}

func (c *Channel) Close() error {
	return c.writer.Close()
}

var _ port.NotificationChannel = (*Channel)(nil)
