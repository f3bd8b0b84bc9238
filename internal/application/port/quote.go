package port

import (
	"context"

	"pricealert/internal/domain"
)

// QuoteProvider fetches a one-off reference price.
type QuoteProvider interface {
	CurrentPrice(ctx context.Context, inst domain.Instrument) (float64, error)
}
