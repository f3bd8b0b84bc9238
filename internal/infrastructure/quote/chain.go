package quote

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"pricealert/internal/application/port"
	"pricealert/internal/domain"
)

type namedProvider struct {
	name string
	port.QuoteProvider
}

// Chain asks each provider in order and returns the first price it gets.
type Chain struct {
	providers []namedProvider
}

func NewChain() *Chain { return &Chain{} }

// Add appends p; nil providers are ignored.
func (c *Chain) Add(name string, p port.QuoteProvider) *Chain {
	if p != nil {
		c.providers = append(c.providers, namedProvider{name: name, QuoteProvider: p})
	}
	return c
}

func (c *Chain) Len() int { return len(c.providers) }

func (c *Chain) CurrentPrice(ctx context.Context, inst domain.Instrument) (float64, error) {
	if len(c.providers) == 0 {
		return 0, errors.New("no quote provider configured")
	}
	var errs []error
	for _, p := range c.providers {
		price, err := p.CurrentPrice(ctx, inst)
		if err == nil {
			return price, nil
		}
		log.Warn().Str("provider", p.name).Str("instrument", inst.String()).Err(err).Msg("quote failed, trying next")
		errs = append(errs, fmt.Errorf("%s: %w", p.name, err))
		if ctx.Err() != nil {
			break
		}
	}
	return 0, errors.Join(errs...)
}

var _ port.QuoteProvider = (*Chain)(nil)
