package port

import (
	"context"

	"pricealert/internal/domain"
)

// TickHandler consumes one tick delivered by a NotificationChannel.
type TickHandler func(ctx context.Context, tick domain.PriceTick) error

// NotificationChannel decouples feed ingestion from alert evaluation.
type NotificationChannel interface {
	Publish(ctx context.Context, tick domain.PriceTick) error
	// Subscribe blocks, dispatching ticks to handler until ctx is done.
	Subscribe(ctx context.Context, handler TickHandler) error
	Close() error
}
