package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"pricealert/internal/domain"
)

type stubQuery struct {
	insts []domain.Instrument
	err   error
}

func (s stubQuery) FindActive(context.Context, domain.Instrument) ([]domain.AlertCondition, error) {
	return nil, nil
}

func (s stubQuery) FindActiveInstruments(context.Context) ([]domain.Instrument, error) {
	return s.insts, s.err
}

func (s stubQuery) TriggerBatch(context.Context, []string, float64, time.Time) ([]string, error) {
	return nil, nil
}

func TestSymbolRegistryNormalizes(t *testing.T) {
	reg := NewSymbolRegistry(stubQuery{insts: []domain.Instrument{"ETH", "btc", "eth", "shib"}}, nil)

	got, err := reg.InstrumentsWithActiveAlerts(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != domain.BTC || got[1] != domain.ETH {
		t.Fatalf("unexpected instruments %v", got)
	}
}

func TestSymbolRegistryRespectsEnabledSet(t *testing.T) {
	reg := NewSymbolRegistry(stubQuery{insts: []domain.Instrument{"btc", "doge"}}, []domain.Instrument{domain.DOGE})

	got, _ := reg.InstrumentsWithActiveAlerts(context.Background())
	if len(got) != 1 || got[0] != domain.DOGE {
		t.Fatalf("unexpected instruments %v", got)
	}
	if reg.Allowed(domain.BTC) {
		t.Fatal("btc is not enabled")
	}
}

func TestSymbolRegistryStorageError(t *testing.T) {
	reg := NewSymbolRegistry(stubQuery{err: errors.New("timeout")}, nil)

	_, err := reg.InstrumentsWithActiveAlerts(context.Background())
	var serr *domain.StorageError
	if !errors.As(err, &serr) || serr.Op != "find_active_instruments" {
		t.Fatalf("expected StorageError, got %v", err)
	}
}
