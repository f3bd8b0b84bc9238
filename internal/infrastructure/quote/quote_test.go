package quote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"pricealert/internal/domain"
)

func TestCoinGeckoCurrentPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/simple/price" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("ids") != "ripple" || r.URL.Query().Get("vs_currencies") != "usd" {
			http.Error(w, "bad query", http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"ripple":{"usd":0.5231}}`))
	}))
	defer srv.Close()

	c := NewCoinGecko(srv.URL, time.Second)
	price, err := c.CurrentPrice(context.Background(), domain.XRP)
	if err != nil {
		t.Fatalf("CurrentPrice failed: %v", err)
	}
	if price != 0.5231 {
		t.Errorf("expected 0.5231, got %v", price)
	}
}

func TestCoinGeckoErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("ids") == "bitcoin" {
			http.Error(w, `{"status":{"error_code":429}}`, http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewCoinGecko(srv.URL, time.Second)
	if _, err := c.CurrentPrice(context.Background(), domain.BTC); err == nil {
		t.Error("expected error on 429")
	}
	if _, err := c.CurrentPrice(context.Background(), domain.ETH); err == nil {
		t.Error("expected error when price missing")
	}
}

type fixedQuote struct {
	price float64
	err   error
	calls int
}

func (f *fixedQuote) CurrentPrice(context.Context, domain.Instrument) (float64, error) {
	f.calls++
	return f.price, f.err
}

func TestChainFallsThrough(t *testing.T) {
	first := &fixedQuote{err: errors.New("down")}
	second := &fixedQuote{price: 42}
	third := &fixedQuote{price: 99}
	c := NewChain().Add("first", first).Add("none", nil).Add("second", second).Add("third", third)

	if c.Len() != 3 {
		t.Fatalf("nil provider should be skipped, got %d", c.Len())
	}
	price, err := c.CurrentPrice(context.Background(), domain.SOL)
	if err != nil || price != 42 {
		t.Fatalf("expected 42, got %v %v", price, err)
	}
	if third.calls != 0 {
		t.Error("chain should stop at first success")
	}
}

func TestChainAllFail(t *testing.T) {
	c := NewChain().Add("a", &fixedQuote{err: errors.New("a down")}).Add("b", &fixedQuote{err: errors.New("b down")})
	if _, err := c.CurrentPrice(context.Background(), domain.ADA); err == nil {
		t.Fatal("expected joined error")
	}
	if _, err := NewChain().CurrentPrice(context.Background(), domain.ADA); err == nil {
		t.Fatal("empty chain must fail")
	}
}
