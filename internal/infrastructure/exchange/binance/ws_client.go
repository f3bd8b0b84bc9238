package binance

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"pricealert/internal/application/port"
	"pricealert/internal/domain"
	"pricealert/internal/infrastructure/exchange"
)

const (
	Name           = "binance"
	DefaultWSURL   = "wss://fstream.binance.com"
	markPriceEvent = "markPriceUpdate"
)

var symbolConverter = exchange.NewCommonSymbolConverter("USDT", true)

// MarkPriceFeed 每个标的一条 <symbol>usdt@markPrice 流
type MarkPriceFeed struct {
	wsURL string // e.g. wss://fstream.binance.com
}

func NewMarkPriceFeed(wsURL string) *MarkPriceFeed {
	wsURL = strings.TrimSpace(wsURL)
	if wsURL == "" {
		wsURL = DefaultWSURL
	}
	return &MarkPriceFeed{wsURL: wsURL}
}

func (f *MarkPriceFeed) Name() string { return Name }

// StreamURL 例: wss://fstream.binance.com/ws/btcusdt@markPrice
func (f *MarkPriceFeed) StreamURL(inst domain.Instrument) (string, error) {
	return exchange.BuildStreamURL(f.wsURL, "/ws/"+symbolConverter.InstrumentSymbol(inst)+"@markPrice")
}

func (f *MarkPriceFeed) Open(ctx context.Context, inst domain.Instrument) (port.FeedStream, error) {
	u, err := f.StreamURL(inst)
	if err != nil {
		return nil, fmt.Errorf("build url: %w", err)
	}
	s, err := exchange.DialStream(ctx, u, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", u, err)
	}
	return s, nil
}

// Decode 解析 markPriceUpdate：p 为价格字符串，E 为事件时间(ms)
func (f *MarkPriceFeed) Decode(inst domain.Instrument, raw []byte) (domain.PriceTick, bool, error) {
	if !gjson.ValidBytes(raw) {
		return domain.PriceTick{}, false, domain.NewParseError(inst, raw, errors.New("invalid json"))
	}
	msg := gjson.ParseBytes(raw)

	// 订阅应答 {"result":null,"id":1}
	if msg.Get("result").Exists() || msg.Get("id").Exists() {
		return domain.PriceTick{}, false, nil
	}
	if e := msg.Get("e"); e.Exists() && e.String() != markPriceEvent {
		return domain.PriceTick{}, false, nil
	}

	if s := msg.Get("s"); s.Exists() {
		got, err := symbolConverter.SymbolInstrument(s.String())
		if err != nil || got != inst {
			return domain.PriceTick{}, false, domain.NewParseError(inst, raw, fmt.Errorf("unexpected symbol %q", s.String()))
		}
	}

	p := msg.Get("p")
	if !p.Exists() {
		return domain.PriceTick{}, false, domain.NewParseError(inst, raw, errors.New("missing price field p"))
	}
	price, err := strconv.ParseFloat(strings.TrimSpace(p.String()), 64)
	if err != nil {
		return domain.PriceTick{}, false, domain.NewParseError(inst, raw, err)
	}
	if price <= 0 {
		return domain.PriceTick{}, false, domain.NewParseError(inst, raw, fmt.Errorf("non-positive price %v", price))
	}

	ts := time.Now()
	if e := msg.Get("E"); e.Exists() && e.Int() > 0 {
		ts = time.UnixMilli(e.Int())
	}
	return domain.PriceTick{Instrument: inst, Price: price, ObservedAt: ts}, true, nil
}

var _ port.MarketFeed = (*MarkPriceFeed)(nil)
