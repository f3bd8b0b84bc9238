package bybit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"

	"pricealert/internal/application/port"
	"pricealert/internal/domain"
	"pricealert/internal/infrastructure/exchange"
)

const (
	Name         = "bybit"
	DefaultWSURL = "wss://stream.bybit.com/v5/public/linear"
)

var symbolConverter = exchange.NewCommonSymbolConverter("USDT", false)

type TickerFeed struct {
	wsURL string // e.g. wss://stream.bybit.com/v5/public/linear
}

func NewTickerFeed(wsURL string) *TickerFeed {
	wsURL = strings.TrimSpace(wsURL)
	if wsURL == "" {
		wsURL = DefaultWSURL
	}
	return &TickerFeed{wsURL: wsURL}
}

func (f *TickerFeed) Name() string { return Name }

type bybitSubReq struct {
	Op   string   `json:"op"`
	Args []string `json:"args"`
}

func topic(inst domain.Instrument) string {
	return "tickers." + symbolConverter.InstrumentSymbol(inst)
}

func (f *TickerFeed) Open(ctx context.Context, inst domain.Instrument) (port.FeedStream, error) {
	s, err := exchange.DialStream(ctx, f.wsURL, func(conn *websocket.Conn) error {
		return conn.WriteJSON(bybitSubReq{Op: "subscribe", Args: []string{topic(inst)}})
	})
	if err != nil {
		return nil, fmt.Errorf("bybit %s: %w", topic(inst), err)
	}
	return s, nil
}

// Decode 解析 tickers 推送，使用 data.markPrice
// delta 推送可能不带 markPrice，这类消息直接跳过
func (f *TickerFeed) Decode(inst domain.Instrument, raw []byte) (domain.PriceTick, bool, error) {
	if !gjson.ValidBytes(raw) {
		return domain.PriceTick{}, false, domain.NewParseError(inst, raw, errors.New("invalid json"))
	}
	msg := gjson.ParseBytes(raw)

	// ack / pong
	if s := msg.Get("success"); s.Exists() {
		if !s.Bool() {
			return domain.PriceTick{}, false, domain.NewParseError(inst, raw, fmt.Errorf("subscribe rejected: %s", msg.Get("ret_msg").String()))
		}
		return domain.PriceTick{}, false, nil
	}
	if msg.Get("op").Exists() {
		return domain.PriceTick{}, false, nil
	}

	if t := msg.Get("topic").String(); t != topic(inst) {
		return domain.PriceTick{}, false, domain.NewParseError(inst, raw, fmt.Errorf("unexpected topic %q", t))
	}

	mp := msg.Get("data.markPrice")
	if !mp.Exists() {
		return domain.PriceTick{}, false, nil
	}
	price, err := strconv.ParseFloat(strings.TrimSpace(mp.String()), 64)
	if err != nil {
		return domain.PriceTick{}, false, domain.NewParseError(inst, raw, err)
	}
	if price <= 0 {
		return domain.PriceTick{}, false, domain.NewParseError(inst, raw, fmt.Errorf("non-positive price %v", price))
	}

	ts := time.Now()
	if v := msg.Get("ts"); v.Exists() && v.Int() > 0 {
		ts = time.UnixMilli(v.Int())
	}
	return domain.PriceTick{Instrument: inst, Price: price, ObservedAt: ts}, true, nil
}

var _ port.MarketFeed = (*TickerFeed)(nil)
