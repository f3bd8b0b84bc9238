// Package sqlstore holds the alert queries shared by the sqlite and postgres
// repositories. Only placeholder syntax differs between the two.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"pricealert/internal/domain"
)

// Dialect 占位符风格
type Dialect int

const (
	Question Dialect = iota // sqlite: ?
	Dollar                  // postgres: $1
)

func (d Dialect) ph(n int) string {
	if d == Dollar {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// list renders count placeholders starting at position start.
func (d Dialect) list(start, count int) string {
	parts := make([]string, count)
	for i := range parts {
		parts[i] = d.ph(start + i)
	}
	return strings.Join(parts, ", ")
}

const alertColumns = `id, symbol, comparator, price, status, created_at_ms, updated_at_ms, triggered_at_ms, trigger_price`

type Store struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect, now: time.Now}
}

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Create(ctx context.Context, a *domain.AlertCondition) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Status == "" {
		a.Status = domain.StatusActive
	}
	now := s.now()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = a.CreatedAt
	}
	q := fmt.Sprintf(`INSERT INTO alerts(id, symbol, comparator, price, status, created_at_ms, updated_at_ms) VALUES(%s)`,
		s.dialect.list(1, 7))
	_, err := s.db.ExecContext(ctx, q,
		a.ID, a.Instrument.String(), a.Comparator.String(), a.Threshold, string(a.Status),
		a.CreatedAt.UnixMilli(), a.UpdatedAt.UnixMilli())
	return err
}

func (s *Store) Get(ctx context.Context, id string) (*domain.AlertCondition, error) {
	q := fmt.Sprintf(`SELECT %s FROM alerts WHERE id = %s`, alertColumns, s.dialect.ph(1))
	a, err := scanAlert(s.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrAlertNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Store) List(ctx context.Context) ([]domain.AlertCondition, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+alertColumns+` FROM alerts ORDER BY created_at_ms DESC, id`)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (s *Store) FindActive(ctx context.Context, inst domain.Instrument) ([]domain.AlertCondition, error) {
	q := fmt.Sprintf(`SELECT %s FROM alerts WHERE symbol = %s AND status = %s ORDER BY created_at_ms, id`,
		alertColumns, s.dialect.ph(1), s.dialect.ph(2))
	rows, err := s.db.QueryContext(ctx, q, inst.String(), string(domain.StatusActive))
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (s *Store) FindActiveInstruments(ctx context.Context) ([]domain.Instrument, error) {
	q := fmt.Sprintf(`SELECT DISTINCT symbol FROM alerts WHERE status = %s ORDER BY symbol`, s.dialect.ph(1))
	rows, err := s.db.QueryContext(ctx, q, string(domain.StatusActive))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Instrument
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, err
		}
		out = append(out, domain.Instrument(sym))
	}
	return out, rows.Err()
}

// TriggerBatch 条件更新：只有仍为 active 的行会被翻转，重复执行无副作用
func (s *Store) TriggerBatch(ctx context.Context, ids []string, price float64, at time.Time) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q := fmt.Sprintf(`UPDATE alerts SET status = %s, triggered_at_ms = %s, trigger_price = %s, updated_at_ms = %s
WHERE status = %s AND id IN (%s) RETURNING id`,
		s.dialect.ph(1), s.dialect.ph(2), s.dialect.ph(3), s.dialect.ph(4), s.dialect.ph(5),
		s.dialect.list(6, len(ids)))

	ms := at.UnixMilli()
	args := make([]any, 0, 5+len(ids))
	args = append(args, string(domain.StatusTriggered), ms, price, ms, string(domain.StatusActive))
	for _, id := range ids {
		args = append(args, id)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var flipped []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		flipped = append(flipped, id)
	}
	return flipped, rows.Err()
}

func (s *Store) UpdateCondition(ctx context.Context, id string, cmp domain.Comparator, threshold float64, at time.Time) (*domain.AlertCondition, error) {
	q := fmt.Sprintf(`UPDATE alerts SET comparator = %s, price = %s, updated_at_ms = %s WHERE id = %s AND status = %s`,
		s.dialect.ph(1), s.dialect.ph(2), s.dialect.ph(3), s.dialect.ph(4), s.dialect.ph(5))
	res, err := s.db.ExecContext(ctx, q, cmp.String(), threshold, at.UnixMilli(), id, string(domain.StatusActive))
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		// 区分不存在和已触发
		cur, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if cur.Status == domain.StatusTriggered {
			return nil, domain.ErrAlertTriggered
		}
		return nil, fmt.Errorf("update %s: no rows affected", id)
	}
	return s.Get(ctx, id)
}

func (s *Store) Delete(ctx context.Context, id string) error {
	q := fmt.Sprintf(`DELETE FROM alerts WHERE id = %s`, s.dialect.ph(1))
	res, err := s.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", domain.ErrAlertNotFound, id)
	}
	return nil
}

func (s *Store) CountByInstrument(ctx context.Context, inst domain.Instrument) (int, error) {
	q := fmt.Sprintf(`SELECT COUNT(*) FROM alerts WHERE symbol = %s AND status = %s`, s.dialect.ph(1), s.dialect.ph(2))
	var n int
	err := s.db.QueryRowContext(ctx, q, inst.String(), string(domain.StatusActive)).Scan(&n)
	return n, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAlert(sc scanner) (*domain.AlertCondition, error) {
	var (
		a                  domain.AlertCondition
		sym, cmp, status   string
		createdMs, updated int64
		triggeredMs        sql.NullInt64
		triggerPrice       sql.NullFloat64
	)
	if err := sc.Scan(&a.ID, &sym, &cmp, &a.Threshold, &status, &createdMs, &updated, &triggeredMs, &triggerPrice); err != nil {
		return nil, err
	}
	c, err := domain.ParseComparator(cmp)
	if err != nil {
		return nil, fmt.Errorf("alert %s: %w", a.ID, err)
	}
	a.Instrument = domain.Instrument(sym)
	a.Comparator = c
	a.Status = domain.Status(status)
	a.CreatedAt = time.UnixMilli(createdMs)
	a.UpdatedAt = time.UnixMilli(updated)
	if triggeredMs.Valid {
		t := time.UnixMilli(triggeredMs.Int64)
		a.TriggeredAt = &t
	}
	if triggerPrice.Valid {
		p := triggerPrice.Float64
		a.TriggerPrice = &p
	}
	return &a, nil
}

func collect(rows *sql.Rows) ([]domain.AlertCondition, error) {
	defer rows.Close()
	var out []domain.AlertCondition
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}
