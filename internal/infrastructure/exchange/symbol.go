package exchange

import (
	"strings"

	"pricealert/internal/domain"
)

// SymbolConverter 符号转换接口
// 各交易所可以实现此接口来提供标的与交易对之间的转换
type SymbolConverter interface {
	// InstrumentSymbol 将标的转换为交易对
	// 例: btc -> BTCUSDT
	InstrumentSymbol(inst domain.Instrument) string

	// SymbolInstrument 将交易对转换为标的
	// 例: BTCUSDT -> btc, btcusdt -> btc
	SymbolInstrument(symbol string) (domain.Instrument, error)
}

// CommonSymbolConverter 通用符号转换器
type CommonSymbolConverter struct {
	suffix string
	lower  bool
}

// NewCommonSymbolConverter 创建通用符号转换器，lower 为 true 时输出小写交易对
func NewCommonSymbolConverter(suffix string, lower bool) *CommonSymbolConverter {
	return &CommonSymbolConverter{suffix: strings.ToUpper(strings.TrimSpace(suffix)), lower: lower}
}

func (c *CommonSymbolConverter) InstrumentSymbol(inst domain.Instrument) string {
	sym := strings.ToUpper(inst.String()) + c.suffix
	if c.lower {
		return strings.ToLower(sym)
	}
	return sym
}

func (c *CommonSymbolConverter) SymbolInstrument(symbol string) (domain.Instrument, error) {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	sym = strings.TrimSuffix(sym, c.suffix)
	return domain.ParseInstrument(sym)
}
