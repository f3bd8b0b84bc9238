package service

import (
	"context"

	"github.com/rs/zerolog/log"

	"pricealert/internal/application/port"
	"pricealert/internal/domain"
)

// SymbolRegistry 查询当前有活跃告警的标的，不做缓存
type SymbolRegistry struct {
	alerts  port.StorageAlertQuery
	allowed map[domain.Instrument]struct{}
}

// NewSymbolRegistry restricts results to allowed; an empty list allows the whole fixed set.
func NewSymbolRegistry(alerts port.StorageAlertQuery, allowed []domain.Instrument) *SymbolRegistry {
	r := &SymbolRegistry{alerts: alerts}
	if len(allowed) > 0 {
		r.allowed = make(map[domain.Instrument]struct{}, len(allowed))
		for _, inst := range allowed {
			r.allowed[inst] = struct{}{}
		}
	}
	return r
}

// Allowed reports whether inst is in the fixed set and enabled by configuration.
func (r *SymbolRegistry) Allowed(inst domain.Instrument) bool {
	if !inst.Valid() {
		return false
	}
	if r.allowed == nil {
		return true
	}
	_, ok := r.allowed[inst]
	return ok
}

func (r *SymbolRegistry) InstrumentsWithActiveAlerts(ctx context.Context) ([]domain.Instrument, error) {
	found, err := r.alerts.FindActiveInstruments(ctx)
	if err != nil {
		return nil, &domain.StorageError{Op: "find_active_instruments", Err: err}
	}

	raw := make([]string, len(found))
	for i, inst := range found {
		raw[i] = string(inst)
	}
	insts, rejected := domain.NormalizeInstruments(raw)
	for _, s := range rejected {
		log.Warn().Str("instrument", s).Msg("ignoring stored alert with unsupported instrument")
	}

	out := insts[:0]
	for _, inst := range insts {
		if r.Allowed(inst) {
			out = append(out, inst)
			continue
		}
		log.Warn().Str("instrument", inst.String()).Msg("instrument not enabled, skipping")
	}
	return out, nil
}
