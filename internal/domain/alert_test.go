package domain

import (
	"errors"
	"testing"
)

func TestSatisfiedByStrictInequality(t *testing.T) {
	cases := []struct {
		name  string
		cmp   Comparator
		thr   float64
		price float64
		want  bool
	}{
		{"gt above", GreaterThan, 150000, 150001, true},
		{"gt equal", GreaterThan, 150000, 150000, false},
		{"gt below", GreaterThan, 150000, 149999, false},
		{"lt below", LessThan, 1000, 999.99, true},
		{"lt equal", LessThan, 1000, 1000, false},
		{"lt above", LessThan, 1000, 1200, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := &AlertCondition{Comparator: tc.cmp, Threshold: tc.thr, Status: StatusActive}
			if got := a.SatisfiedBy(tc.price); got != tc.want {
				t.Errorf("SatisfiedBy(%v) = %v, want %v", tc.price, got, tc.want)
			}
		})
	}
}

func TestParseInstrument(t *testing.T) {
	inst, err := ParseInstrument("  BTC ")
	if err != nil {
		t.Fatalf("ParseInstrument failed: %v", err)
	}
	if inst != BTC {
		t.Errorf("expected btc, got %s", inst)
	}
	if inst.QuoteID() != "bitcoin" {
		t.Errorf("expected bitcoin, got %s", inst.QuoteID())
	}

	_, err = ParseInstrument("shib")
	if !errors.Is(err, ErrUnsupportedInstrument) {
		t.Errorf("expected ErrUnsupportedInstrument, got %v", err)
	}
}

func TestNormalizeInstruments(t *testing.T) {
	out, rejected := NormalizeInstruments([]string{"ETH", "btc", "eth", "", "luna", " Doge"})
	want := []Instrument{BTC, DOGE, ETH}
	if len(out) != len(want) {
		t.Fatalf("expected %v, got %v", want, out)
	}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("index %d: expected %s, got %s", i, want[i], out[i])
		}
	}
	if len(rejected) != 1 || rejected[0] != "luna" {
		t.Errorf("expected [luna] rejected, got %v", rejected)
	}
}

func TestParseComparator(t *testing.T) {
	for _, s := range []string{">", "gt", "ABOVE"} {
		c, err := ParseComparator(s)
		if err != nil || c != GreaterThan {
			t.Errorf("ParseComparator(%q) = %v, %v", s, c, err)
		}
	}
	for _, s := range []string{"<", "lt", "below"} {
		c, err := ParseComparator(s)
		if err != nil || c != LessThan {
			t.Errorf("ParseComparator(%q) = %v, %v", s, c, err)
		}
	}
	if _, err := ParseComparator("invalid"); !errors.Is(err, ErrInvalidAlert) {
		t.Errorf("expected ErrInvalidAlert, got %v", err)
	}
}

func TestAlreadyMet(t *testing.T) {
	if !AlreadyMet(GreaterThan, 50000, 100000) {
		t.Error("> 50000 at 100000 should already be met")
	}
	if !AlreadyMet(GreaterThan, 100000, 100000) {
		t.Error("> 100000 at 100000 should be rejected")
	}
	if AlreadyMet(GreaterThan, 150000, 100000) {
		t.Error("> 150000 at 100000 should not be met")
	}
	if !AlreadyMet(LessThan, 125000, 100000) {
		t.Error("< 125000 at 100000 should already be met")
	}
	if AlreadyMet(LessThan, 70000, 100000) {
		t.Error("< 70000 at 100000 should not be met")
	}
}

func TestErrorTaxonomy(t *testing.T) {
	cause := errors.New("boom")

	var err error = &TransportError{Instrument: BTC, Err: cause}
	if !errors.Is(err, ErrTransport) || !errors.Is(err, cause) {
		t.Errorf("transport error should match sentinel and cause: %v", err)
	}

	err = NewParseError(ETH, []byte(`{"p":`), cause)
	if !errors.Is(err, ErrParse) {
		t.Errorf("parse error should match ErrParse: %v", err)
	}

	err = &StorageError{Op: "find_active", Err: cause}
	if !errors.Is(err, ErrStorage) || errors.Is(err, ErrParse) {
		t.Errorf("storage error taxonomy mismatch: %v", err)
	}
}
