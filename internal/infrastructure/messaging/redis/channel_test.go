package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"pricealert/internal/domain"
)

// 需要真实 redis：PRICEALERT_TEST_REDIS=127.0.0.1:6379
func testClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("PRICEALERT_TEST_REDIS")
	if addr == "" {
		t.Skip("PRICEALERT_TEST_REDIS not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestRedisChannelPublishSubscribe(t *testing.T) {
	rdb := testClient(t)
	prefix := "pricealert-test-" + time.Now().Format("150405.000")
	ch := New(rdb, Options{Prefix: prefix, TTL: time.Minute})
	t.Cleanup(func() {
		rdb.Del(context.Background(), prefix+":latest", prefix+":ticks:stream")
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got := make(chan domain.PriceTick, 1)
	go func() {
		_ = ch.Subscribe(ctx, func(_ context.Context, tick domain.PriceTick) error {
			got <- tick
			return nil
		})
	}()
	time.Sleep(200 * time.Millisecond)

	want := domain.PriceTick{Instrument: domain.SOL, Price: 151.25, ObservedAt: time.UnixMilli(1700000000000)}
	if err := ch.Publish(ctx, want); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	select {
	case tick := <-got:
		if tick.Instrument != want.Instrument || tick.Price != want.Price {
			t.Fatalf("unexpected tick %+v", tick)
		}
	case <-ctx.Done():
		t.Fatal("tick not received")
	}

	price, err := ch.CurrentPrice(ctx, domain.SOL)
	if err != nil || price != 151.25 {
		t.Fatalf("CurrentPrice = %v, %v", price, err)
	}
	if n, _ := rdb.XLen(ctx, prefix+":ticks:stream").Result(); n != 1 {
		t.Fatalf("expected 1 stream entry, got %d", n)
	}
}
