package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"pricealert/internal/application/port"
	"pricealert/internal/domain"
)

// ErrQuoteUnavailable means the reference price needed to validate an alert
// could not be fetched.
var ErrQuoteUnavailable = errors.New("reference price unavailable")

// Subscriber is the feed side of alert creation.
type Subscriber interface {
	EnsureSubscribed(ctx context.Context, inst domain.Instrument) (bool, error)
}

type CreateAlertInput struct {
	Symbol    string  `json:"symbol"`
	Condition string  `json:"condition"`
	Price     float64 `json:"price"`
}

// UpdateAlertInput 只允许修改价格和方向
type UpdateAlertInput struct {
	Condition *string  `json:"condition,omitempty"`
	Price     *float64 `json:"price,omitempty"`
}

// AlertService 告警 CRUD
type AlertService struct {
	repo     port.AlertRepository
	registry *SymbolRegistry
	quotes   port.QuoteProvider // optional
	subs     Subscriber         // optional
	now      func() time.Time
}

func NewAlertService(repo port.AlertRepository, registry *SymbolRegistry, quotes port.QuoteProvider, subs Subscriber) *AlertService {
	if registry == nil {
		registry = NewSymbolRegistry(repo, nil)
	}
	return &AlertService{
		repo:     repo,
		registry: registry,
		quotes:   quotes,
		subs:     subs,
		now:      time.Now,
	}
}

func (s *AlertService) Create(ctx context.Context, in CreateAlertInput) (*domain.AlertCondition, error) {
	inst, err := domain.ParseInstrument(in.Symbol)
	if err != nil {
		return nil, err
	}
	if !s.registry.Allowed(inst) {
		return nil, fmt.Errorf("%w: %q is not enabled", domain.ErrUnsupportedInstrument, in.Symbol)
	}
	cmp, err := domain.ParseComparator(in.Condition)
	if err != nil {
		return nil, err
	}
	if err := validThreshold(in.Price); err != nil {
		return nil, err
	}
	if err := s.checkNotMet(ctx, inst, cmp, in.Price); err != nil {
		return nil, err
	}

	now := s.now()
	a := &domain.AlertCondition{
		Instrument: inst,
		Comparator: cmp,
		Threshold:  in.Price,
		Status:     domain.StatusActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, storageErr("create", err)
	}
	log.Info().
		Str("alert_id", a.ID).
		Str("instrument", inst.String()).
		Str("condition", cmp.String()).
		Float64("price", a.Threshold).
		Msg("alert created")

	if s.subs != nil {
		// 订阅失败不影响告警创建，reconcile 会补上
		if _, err := s.subs.EnsureSubscribed(ctx, inst); err != nil {
			log.Warn().Str("instrument", inst.String()).Err(err).Msg("subscribe after create failed")
		}
	}
	return a, nil
}

func (s *AlertService) Update(ctx context.Context, id string, in UpdateAlertInput) (*domain.AlertCondition, error) {
	if in.Condition == nil && in.Price == nil {
		return nil, fmt.Errorf("%w: nothing to update, only price and condition can change", domain.ErrInvalidAlert)
	}
	cur, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, storageErr("get", err)
	}
	if !cur.IsActive() {
		return nil, domain.ErrAlertTriggered
	}

	cmp, price := cur.Comparator, cur.Threshold
	if in.Condition != nil {
		if cmp, err = domain.ParseComparator(*in.Condition); err != nil {
			return nil, err
		}
	}
	if in.Price != nil {
		if err := validThreshold(*in.Price); err != nil {
			return nil, err
		}
		price = *in.Price
	}
	if err := s.checkNotMet(ctx, cur.Instrument, cmp, price); err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateCondition(ctx, id, cmp, price, s.now())
	if err != nil {
		return nil, storageErr("update", err)
	}
	log.Info().Str("alert_id", id).Str("condition", cmp.String()).Float64("price", price).Msg("alert updated")
	return updated, nil
}

func (s *AlertService) Get(ctx context.Context, id string) (*domain.AlertCondition, error) {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, storageErr("get", err)
	}
	return a, nil
}

func (s *AlertService) List(ctx context.Context) ([]domain.AlertCondition, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, storageErr("list", err)
	}
	return all, nil
}

// Delete removes the alert. The feed is left alone; its next close event
// drops the subscription if nothing else is active.
func (s *AlertService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return storageErr("delete", err)
	}
	log.Info().Str("alert_id", id).Msg("alert deleted")
	return nil
}

func (s *AlertService) checkNotMet(ctx context.Context, inst domain.Instrument, cmp domain.Comparator, threshold float64) error {
	if s.quotes == nil {
		return nil
	}
	current, err := s.quotes.CurrentPrice(ctx, inst)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrQuoteUnavailable, inst, err)
	}
	if domain.AlreadyMet(cmp, threshold, current) {
		return fmt.Errorf("%w: %s %s %g with current price %g", domain.ErrConditionAlreadyMet, inst, cmp, threshold, current)
	}
	return nil
}

func validThreshold(p float64) error {
	if math.IsNaN(p) || math.IsInf(p, 0) || p <= 0 {
		return fmt.Errorf("%w: price must be a positive number", domain.ErrInvalidAlert)
	}
	return nil
}

func storageErr(op string, err error) error {
	if errors.Is(err, domain.ErrAlertNotFound) || errors.Is(err, domain.ErrAlertTriggered) || errors.Is(err, domain.ErrStorage) {
		return err
	}
	return &domain.StorageError{Op: op, Err: err}
}
