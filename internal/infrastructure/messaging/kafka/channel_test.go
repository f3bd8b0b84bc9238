package kafka

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"pricealert/internal/domain"
	"pricealert/internal/infrastructure/messaging"
)

type fakeWriter struct {
	msgs []kafka.Message
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []int64
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		m := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return nil
}

func TestPublishKeysByInstrument(t *testing.T) {
	w := &fakeWriter{}
	ch := &Channel{writer: w}

	tick := domain.PriceTick{Instrument: domain.DOGE, Price: 0.081, ObservedAt: time.UnixMilli(1700000000000)}
	if err := ch.Publish(context.Background(), tick); err != nil {
		t.Fatal(err)
	}
	if len(w.msgs) != 1 || string(w.msgs[0].Key) != "doge" {
		t.Fatalf("unexpected messages %+v", w.msgs)
	}
	got, err := messaging.DecodeTick(w.msgs[0].Value)
	if err != nil || got.Price != 0.081 {
		t.Fatalf("bad payload: %+v %v", got, err)
	}
}

func TestSubscribeCommitsAfterHandling(t *testing.T) {
	good, _ := messaging.EncodeTick(domain.PriceTick{Instrument: domain.BTC, Price: 50001, ObservedAt: time.Now()})
	r := &fakeReader{queue: []kafka.Message{
		{Offset: 1, Key: []byte("btc"), Value: good},
		{Offset: 2, Key: []byte("btc"), Value: []byte("garbage")},
	}}
	ch := &Channel{writer: &fakeWriter{}, newReader: func() messageReader { return r }}

	ctx, cancel := context.WithCancel(context.Background())
	handled := make(chan domain.PriceTick, 2)
	done := make(chan error, 1)
	go func() {
		done <- ch.Subscribe(ctx, func(_ context.Context, tick domain.PriceTick) error {
			handled <- tick
			return nil
		})
	}()

	select {
	case tick := <-handled:
		if tick.Price != 50001 {
			t.Fatalf("unexpected tick %+v", tick)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("tick not handled")
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		r.mu.Lock()
		n := len(r.committed)
		r.mu.Unlock()
		if n == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected both offsets committed, got %d", n)
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Subscribe returned %v", err)
	}
	if !r.closed {
		t.Fatal("reader not closed")
	}
}
