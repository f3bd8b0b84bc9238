package inproc

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"pricealert/internal/domain"
	"pricealert/internal/infrastructure/messaging"
)

func TestChannelDeliversInOrderPerInstrument(t *testing.T) {
	ch := New(64, 3)
	defer ch.Close()

	var mu sync.Mutex
	got := map[domain.Instrument][]float64{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- ch.Subscribe(ctx, func(_ context.Context, tick domain.PriceTick) error {
			mu.Lock()
			got[tick.Instrument] = append(got[tick.Instrument], tick.Price)
			mu.Unlock()
			return nil
		})
	}()

	for i := 1; i <= 20; i++ {
		for _, inst := range []domain.Instrument{domain.BTC, domain.ETH} {
			if err := ch.Publish(context.Background(), domain.PriceTick{Instrument: inst, Price: float64(i)}); err != nil {
				t.Fatal(err)
			}
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(got[domain.BTC]) + len(got[domain.ETH])
		mu.Unlock()
		if n == 40 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("only %d ticks delivered", n)
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Subscribe returned %v", err)
	}

	for inst, prices := range got {
		for i, p := range prices {
			if p != float64(i+1) {
				t.Fatalf("%s out of order at %d: %v", inst, i, prices)
			}
		}
	}
}

func TestChannelPublishAfterClose(t *testing.T) {
	ch := New(1, 1)
	_ = ch.Close()
	_ = ch.Close()

	err := ch.Publish(context.Background(), domain.PriceTick{Instrument: domain.BTC, Price: 1})
	if !errors.Is(err, messaging.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestChannelPublishDropsWhenFull(t *testing.T) {
	ch := New(1, 1)
	defer ch.Close()

	if err := ch.Publish(context.Background(), domain.PriceTick{Instrument: domain.BTC, Price: 1}); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	start := time.Now()
	err := ch.Publish(ctx, domain.PriceTick{Instrument: domain.BTC, Price: 2})
	if !errors.Is(err, messaging.ErrBufferFull) {
		t.Fatalf("expected ErrBufferFull on full buffer, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("publish on full buffer waited %v", elapsed)
	}
}
