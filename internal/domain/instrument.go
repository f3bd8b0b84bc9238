package domain

import (
	"fmt"
	"sort"
	"strings"
)

// Instrument 受支持的交易标的（小写规范形式），例如 "btc"
type Instrument string

const (
	SOL  Instrument = "sol"
	BTC  Instrument = "btc"
	ETH  Instrument = "eth"
	DOGE Instrument = "doge"
	ADA  Instrument = "ada"
	XRP  Instrument = "xrp"
)

// quoteIDs 标的 -> 报价 API 中的币种 id
var quoteIDs = map[Instrument]string{
	SOL:  "solana",
	BTC:  "bitcoin",
	ETH:  "ethereum",
	DOGE: "dogecoin",
	ADA:  "cardano",
	XRP:  "ripple",
}

// SupportedInstruments returns the fixed instrument set in a stable order.
func SupportedInstruments() []Instrument {
	out := make([]Instrument, 0, len(quoteIDs))
	for inst := range quoteIDs {
		out = append(out, inst)
	}
	SortInstruments(out)
	return out
}

// ParseInstrument 规范化并校验标的，不在固定集合内时返回 ErrUnsupportedInstrument
func ParseInstrument(s string) (Instrument, error) {
	inst := Instrument(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := quoteIDs[inst]; !ok {
		return "", fmt.Errorf("%w: %q (allowed: %s)", ErrUnsupportedInstrument, s, joinInstruments(SupportedInstruments()))
	}
	return inst, nil
}

func (i Instrument) String() string { return string(i) }

// Valid reports whether i belongs to the fixed set.
func (i Instrument) Valid() bool {
	_, ok := quoteIDs[i]
	return ok
}

// QuoteID 返回报价 API 使用的币种 id，例如 btc -> bitcoin
func (i Instrument) QuoteID() string {
	return quoteIDs[i]
}

// NormalizeInstruments 去重、规范化并过滤掉不支持的标的，结果有序
// 返回被丢弃的原始值，便于调用方记录日志
func NormalizeInstruments(in []string) (out []Instrument, rejected []string) {
	seen := map[Instrument]struct{}{}
	for _, s := range in {
		if strings.TrimSpace(s) == "" {
			continue
		}
		inst, err := ParseInstrument(s)
		if err != nil {
			rejected = append(rejected, s)
			continue
		}
		if _, ok := seen[inst]; ok {
			continue
		}
		seen[inst] = struct{}{}
		out = append(out, inst)
	}
	SortInstruments(out)
	return out, rejected
}

func SortInstruments(in []Instrument) {
	sort.Slice(in, func(a, b int) bool { return in[a] < in[b] })
}

func joinInstruments(in []Instrument) string {
	parts := make([]string, len(in))
	for i, inst := range in {
		parts[i] = string(inst)
	}
	return strings.Join(parts, ", ")
}
