// Package messaging carries price ticks between the feed process and the
// evaluator process.
package messaging

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"pricealert/internal/domain"
)

var (
	ErrClosed     = errors.New("notification channel closed")
	ErrBufferFull = errors.New("notification channel buffer full")
)

// TickMessage 通道上的 tick 报文
type TickMessage struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
	TsMs   int64   `json:"ts"`
}

func EncodeTick(t domain.PriceTick) ([]byte, error) {
	return json.Marshal(TickMessage{
		Symbol: t.Instrument.String(),
		Price:  t.Price,
		TsMs:   t.ObservedAt.UnixMilli(),
	})
}

// DecodeTick rejects unknown instruments and non-positive prices.
func DecodeTick(b []byte) (domain.PriceTick, error) {
	var m TickMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return domain.PriceTick{}, fmt.Errorf("decode tick: %w", err)
	}
	inst, err := domain.ParseInstrument(m.Symbol)
	if err != nil {
		return domain.PriceTick{}, err
	}
	if math.IsNaN(m.Price) || math.IsInf(m.Price, 0) || m.Price <= 0 {
		return domain.PriceTick{}, fmt.Errorf("decode tick: invalid price %v", m.Price)
	}
	ts := time.Now()
	if m.TsMs > 0 {
		ts = time.UnixMilli(m.TsMs)
	}
	return domain.PriceTick{Instrument: inst, Price: m.Price, ObservedAt: ts}, nil
}
