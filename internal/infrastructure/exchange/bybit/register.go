package bybit

import (
	"pricealert/internal/application/port"
	"pricealert/internal/infrastructure/pricefeed"
)

// init() automatically registers the Bybit ticker feed factory
func init() {
	pricefeed.Register(Name, func(wsURL string) port.MarketFeed {
		return NewTickerFeed(wsURL)
	})
}
