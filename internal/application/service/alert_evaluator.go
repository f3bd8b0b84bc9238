package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"pricealert/internal/application/port"
	"pricealert/internal/domain"
	"pricealert/internal/infrastructure/metrics"
)

// AlertEvaluator 对每个 tick 检查该标的的活跃告警，满足条件的批量置为 triggered
type AlertEvaluator struct {
	alerts port.StorageAlertQuery
	now    func() time.Time
}

func NewAlertEvaluator(alerts port.StorageAlertQuery) *AlertEvaluator {
	return &AlertEvaluator{alerts: alerts, now: time.Now}
}

// Handle evaluates one tick and returns the ids this call flipped to Triggered.
// Replaying the same tick is safe: the conditional update flips nothing twice.
func (e *AlertEvaluator) Handle(ctx context.Context, tick domain.PriceTick) ([]string, error) {
	start := time.Now()
	ids, err := e.evaluate(ctx, tick)

	outcome := "noop"
	switch {
	case err != nil:
		outcome = "error"
	case len(ids) > 0:
		outcome = "triggered"
	}
	metrics.RecordEvaluation(outcome, time.Since(start).Seconds())
	return ids, err
}

func (e *AlertEvaluator) evaluate(ctx context.Context, tick domain.PriceTick) ([]string, error) {
	active, err := e.alerts.FindActive(ctx, tick.Instrument)
	if err != nil {
		return nil, &domain.StorageError{Op: "find_active", Err: err}
	}
	if len(active) == 0 {
		return nil, nil
	}

	var ids []string
	for i := range active {
		if active[i].IsActive() && active[i].SatisfiedBy(tick.Price) {
			ids = append(ids, active[i].ID)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	flipped, err := e.alerts.TriggerBatch(ctx, ids, tick.Price, e.now())
	if err != nil {
		return nil, &domain.StorageError{Op: "trigger_batch", Err: err}
	}
	if len(flipped) > 0 {
		metrics.RecordTriggered(tick.Instrument.String(), len(flipped))
		log.Info().
			Str("instrument", tick.Instrument.String()).
			Float64("price", tick.Price).
			Strs("alert_ids", flipped).
			Msg("alerts triggered")
	}
	return flipped, nil
}

// Consume adapts Handle to a channel subscriber. Storage failures are logged
// and the tick is dropped so the consume loop keeps going.
func (e *AlertEvaluator) Consume(ctx context.Context, tick domain.PriceTick) error {
	if _, err := e.Handle(ctx, tick); err != nil {
		log.Error().
			Str("instrument", tick.Instrument.String()).
			Float64("price", tick.Price).
			Err(err).
			Msg("evaluate tick failed")
	}
	return nil
}
