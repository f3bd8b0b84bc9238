package port

import (
	"context"

	"pricealert/internal/domain"
)

// FeedStream is one open market-data stream. Messages is closed when the
// stream ends; Err then reports why.
type FeedStream interface {
	Messages() <-chan []byte
	Err() error
	Close() error
}

// MarketFeedTransport opens a stream scoped to a single instrument.
type MarketFeedTransport interface {
	Open(ctx context.Context, inst domain.Instrument) (FeedStream, error)
}

// TickDecoder turns a raw message into a tick. ok=false with a nil error means
// the message carries no price (acks, heartbeats) and is skipped silently.
type TickDecoder interface {
	Decode(inst domain.Instrument, raw []byte) (tick domain.PriceTick, ok bool, err error)
}

// MarketFeed 一个交易所行情源：传输 + 解码
type MarketFeed interface {
	Name() string
	MarketFeedTransport
	TickDecoder
}
