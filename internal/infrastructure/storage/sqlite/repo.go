package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"pricealert/internal/application/port"
	"pricealert/internal/infrastructure/storage/sqlstore"
)

type Repo struct {
	*sqlstore.Store
}

func New(path string) (*Repo, error) {
	// ensure directory exists
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		_ = os.MkdirAll(dir, 0o755)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	r := &Repo{Store: sqlstore.New(db, sqlstore.Question)}
	if err := r.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repo) migrate(ctx context.Context) error {
	_, err := r.DB().ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS alerts (
  id TEXT PRIMARY KEY,
  symbol TEXT NOT NULL,
  comparator TEXT NOT NULL,
  price REAL NOT NULL,
  status TEXT NOT NULL DEFAULT 'active',
  created_at_ms INTEGER NOT NULL,
  updated_at_ms INTEGER NOT NULL,
  triggered_at_ms INTEGER,
  trigger_price REAL
);
CREATE INDEX IF NOT EXISTS idx_alerts_symbol_status ON alerts(symbol, status);
CREATE INDEX IF NOT EXISTS idx_alerts_status ON alerts(status);
`)
	return err
}

var _ port.AlertRepository = (*Repo)(nil)
