package binance

import (
	"pricealert/internal/application/port"
	"pricealert/internal/infrastructure/pricefeed"
)

// init() automatically registers the Binance mark-price feed factory
// 这样避免了在 svc 中硬编码 Binance
func init() {
	pricefeed.Register(Name, func(wsURL string) port.MarketFeed {
		return NewMarkPriceFeed(wsURL)
	})
}
