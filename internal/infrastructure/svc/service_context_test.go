package svc

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"pricealert/internal/domain"
	"pricealert/internal/infrastructure/config"
)

func loadConfig(t *testing.T, body string) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	return cfg
}

const memoryConfig = `
[symbols]
list = ["btc", "eth"]

[feed]
source = "binance"
ws_url = "ws://127.0.0.1:1"

[storage]
driver = "memory"

[channel]
driver = "inproc"
buffer = 16

[quote]
enabled = false
`

func TestNew_MemoryInproc(t *testing.T) {
	sc, err := New(context.Background(), loadConfig(t, memoryConfig))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer sc.Close()

	if sc.Quotes != nil {
		t.Fatalf("quotes should be nil when disabled")
	}
	if sc.MarketFeed.Name() != "binance" {
		t.Fatalf("feed = %s", sc.MarketFeed.Name())
	}
	if got := sc.Instruments(); len(got) != 2 {
		t.Fatalf("instruments = %v", got)
	}
	if sc.Registry.Allowed(domain.SOL) {
		t.Fatalf("sol is not in symbols.list")
	}
}

func TestEvaluatorPipeline_TriggersThroughChannel(t *testing.T) {
	sc, err := New(context.Background(), loadConfig(t, memoryConfig))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer sc.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	now := time.Now()
	a := &domain.AlertCondition{
		Instrument: domain.BTC,
		Comparator: domain.GreaterThan,
		Threshold:  100,
		Status:     domain.StatusActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := sc.Alerts.Create(ctx, a); err != nil {
		t.Fatalf("create: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- sc.RunEvaluator(ctx) }()

	sc.Relay.OnTick(domain.PriceTick{Instrument: domain.BTC, Price: 101, ObservedAt: now})

	deadline := time.Now().Add(2 * time.Second)
	for {
		got, err := sc.Alerts.Get(ctx, a.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Status == domain.StatusTriggered {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("alert not triggered, status=%s", got.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("evaluator did not stop")
	}
}

func TestNew_StorageFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := loadConfig(t, memoryConfig)
	cfg.Storage.Driver = "sqlite"
	cfg.Storage.SQLite.Path = filepath.Join(blocker, "sub", "alerts.db")

	_, err := New(context.Background(), cfg)
	if !errors.Is(err, ErrStorageInitFailed) {
		t.Fatalf("err = %v, want ErrStorageInitFailed", err)
	}
}

func TestNew_UnknownFeed(t *testing.T) {
	cfg := loadConfig(t, memoryConfig)
	cfg.Feed.Source = "kraken"

	_, err := New(context.Background(), cfg)
	if !errors.Is(err, ErrNoFeedsEnabled) {
		t.Fatalf("err = %v, want ErrNoFeedsEnabled", err)
	}
}
