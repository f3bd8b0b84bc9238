package messaging

import (
	"errors"
	"testing"
	"time"

	"pricealert/internal/domain"
)

func TestTickCodecRoundTrip(t *testing.T) {
	in := domain.PriceTick{Instrument: domain.ETH, Price: 3012.55, ObservedAt: time.UnixMilli(1700000000123)}

	b, err := EncodeTick(in)
	if err != nil {
		t.Fatal(err)
	}
	out, err := DecodeTick(b)
	if err != nil {
		t.Fatal(err)
	}
	if out.Instrument != in.Instrument || out.Price != in.Price || !out.ObservedAt.Equal(in.ObservedAt) {
		t.Fatalf("round trip mismatch: %+v vs %+v", out, in)
	}
}

func TestDecodeTickRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"not json":    `{`,
		"unknown sym": `{"symbol":"shib","price":1,"ts":1}`,
		"zero price":  `{"symbol":"btc","price":0,"ts":1}`,
		"negative":    `{"symbol":"btc","price":-3,"ts":1}`,
	}
	for name, raw := range cases {
		if _, err := DecodeTick([]byte(raw)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}

	_, err := DecodeTick([]byte(`{"symbol":"shib","price":1}`))
	if !errors.Is(err, domain.ErrUnsupportedInstrument) {
		t.Errorf("expected ErrUnsupportedInstrument, got %v", err)
	}
}
