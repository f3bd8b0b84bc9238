package storage

import (
	"fmt"

	"pricealert/internal/application/port"
	"pricealert/internal/infrastructure/storage/memory"
	"pricealert/internal/infrastructure/storage/postgres"
	"pricealert/internal/infrastructure/storage/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Options selects and configures the alert store.
type Options struct {
	Driver      string
	SQLitePath  string
	PostgresDSN string
}

// Open returns the AlertRepository for the configured driver.
func Open(opts Options) (port.AlertRepository, error) {
	switch opts.Driver {
	case DriverSQLite, "":
		repo, err := sqlite.New(opts.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %q: %w", opts.SQLitePath, err)
		}
		return repo, nil
	case DriverPostgres:
		repo, err := postgres.New(opts.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return repo, nil
	case DriverMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", opts.Driver)
	}
}
