package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"pricealert/internal/application/port"
	"pricealert/internal/domain"
)

// Repo is a simple in-memory implementation, used by tests and
// storage.driver = "memory".
type Repo struct {
	mu     sync.RWMutex
	alerts map[string]domain.AlertCondition
	now    func() time.Time
}

func New() *Repo {
	return &Repo{
		alerts: make(map[string]domain.AlertCondition),
		now:    time.Now,
	}
}

func (r *Repo) Create(ctx context.Context, a *domain.AlertCondition) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Status == "" {
		a.Status = domain.StatusActive
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = r.now()
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = a.CreatedAt
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.alerts[a.ID]; ok {
		return fmt.Errorf("alert %s already exists", a.ID)
	}
	r.alerts[a.ID] = *a
	return nil
}

func (r *Repo) Get(ctx context.Context, id string) (*domain.AlertCondition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.alerts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrAlertNotFound, id)
	}
	return &a, nil
}

func (r *Repo) List(ctx context.Context) ([]domain.AlertCondition, error) {
	r.mu.RLock()
	out := make([]domain.AlertCondition, 0, len(r.alerts))
	for _, a := range r.alerts {
		out = append(out, a)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *Repo) FindActive(ctx context.Context, inst domain.Instrument) ([]domain.AlertCondition, error) {
	r.mu.RLock()
	var out []domain.AlertCondition
	for _, a := range r.alerts {
		if a.Instrument == inst && a.IsActive() {
			out = append(out, a)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *Repo) FindActiveInstruments(ctx context.Context) ([]domain.Instrument, error) {
	r.mu.RLock()
	seen := map[domain.Instrument]struct{}{}
	for _, a := range r.alerts {
		if a.IsActive() {
			seen[a.Instrument] = struct{}{}
		}
	}
	r.mu.RUnlock()
	out := make([]domain.Instrument, 0, len(seen))
	for inst := range seen {
		out = append(out, inst)
	}
	domain.SortInstruments(out)
	return out, nil
}

func (r *Repo) TriggerBatch(ctx context.Context, ids []string, price float64, at time.Time) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var flipped []string
	for _, id := range ids {
		a, ok := r.alerts[id]
		if !ok || !a.IsActive() {
			continue
		}
		t, p := at, price
		a.Status = domain.StatusTriggered
		a.TriggeredAt = &t
		a.TriggerPrice = &p
		a.UpdatedAt = at
		r.alerts[id] = a
		flipped = append(flipped, id)
	}
	return flipped, nil
}

func (r *Repo) UpdateCondition(ctx context.Context, id string, cmp domain.Comparator, threshold float64, at time.Time) (*domain.AlertCondition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.alerts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrAlertNotFound, id)
	}
	if !a.IsActive() {
		return nil, domain.ErrAlertTriggered
	}
	a.Comparator = cmp
	a.Threshold = threshold
	a.UpdatedAt = at
	r.alerts[id] = a
	return &a, nil
}

func (r *Repo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.alerts[id]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrAlertNotFound, id)
	}
	delete(r.alerts, id)
	return nil
}

func (r *Repo) CountByInstrument(ctx context.Context, inst domain.Instrument) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, a := range r.alerts {
		if a.Instrument == inst && a.IsActive() {
			n++
		}
	}
	return n, nil
}

func (r *Repo) Close() error { return nil }

var _ port.AlertRepository = (*Repo)(nil)
