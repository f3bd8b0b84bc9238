package postgres

import (
	"context"
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib"

	"pricealert/internal/application/port"
	"pricealert/internal/infrastructure/storage/sqlstore"
)

type Repo struct {
	*sqlstore.Store
}

func New(dsn string) (*Repo, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	r := NewWithDB(db)
	if err := r.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

// NewWithDB wraps an existing handle without running migrations.
func NewWithDB(db *sql.DB) *Repo {
	return &Repo{Store: sqlstore.New(db, sqlstore.Dollar)}
}

func (r *Repo) migrate(ctx context.Context) error {
	_, err := r.DB().ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS alerts (
  id TEXT PRIMARY KEY,
  symbol TEXT NOT NULL,
  comparator TEXT NOT NULL,
  price DOUBLE PRECISION NOT NULL,
  status TEXT NOT NULL DEFAULT 'active',
  created_at_ms BIGINT NOT NULL,
  updated_at_ms BIGINT NOT NULL,
  triggered_at_ms BIGINT,
  trigger_price DOUBLE PRECISION
);
CREATE INDEX IF NOT EXISTS idx_alerts_symbol_status ON alerts(symbol, status);
`)
	return err
}

var _ port.AlertRepository = (*Repo)(nil)
