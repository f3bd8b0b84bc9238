package port

import (
	"context"
	"time"

	"pricealert/internal/domain"
)

// StorageAlertQuery is the read/trigger surface the feed and evaluation
// pipeline needs from alert storage.
type StorageAlertQuery interface {
	// FindActive returns the Active conditions for one instrument.
	FindActive(ctx context.Context, inst domain.Instrument) ([]domain.AlertCondition, error)
	// FindActiveInstruments returns every instrument with at least one Active condition.
	FindActiveInstruments(ctx context.Context) ([]domain.Instrument, error)
	// TriggerBatch flips the given conditions to Triggered in one conditional
	// update (only rows still Active change) and returns the ids it flipped.
	TriggerBatch(ctx context.Context, ids []string, price float64, at time.Time) ([]string, error)
}

// AlertRepository 告警 CRUD 仓储
type AlertRepository interface {
	StorageAlertQuery

	Create(ctx context.Context, alert *domain.AlertCondition) error
	Get(ctx context.Context, id string) (*domain.AlertCondition, error)
	List(ctx context.Context) ([]domain.AlertCondition, error)
	// UpdateCondition changes comparator/threshold of an Active alert.
	// Returns domain.ErrAlertTriggered if the alert is no longer Active.
	UpdateCondition(ctx context.Context, id string, cmp domain.Comparator, threshold float64, at time.Time) (*domain.AlertCondition, error)
	Delete(ctx context.Context, id string) error
	CountByInstrument(ctx context.Context, inst domain.Instrument) (int, error)

	Close() error
}
