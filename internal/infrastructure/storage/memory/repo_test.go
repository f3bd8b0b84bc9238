package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"pricealert/internal/domain"
)

func TestMemoryRepoTriggerIsOneWay(t *testing.T) {
	repo := New()
	ctx := context.Background()

	a := &domain.AlertCondition{Instrument: domain.BTC, Comparator: domain.GreaterThan, Threshold: 100}
	if err := repo.Create(ctx, a); err != nil {
		t.Fatal(err)
	}

	flipped, _ := repo.TriggerBatch(ctx, []string{a.ID, "unknown"}, 101, time.Now())
	if len(flipped) != 1 || flipped[0] != a.ID {
		t.Fatalf("unexpected flipped %v", flipped)
	}
	flipped, _ = repo.TriggerBatch(ctx, []string{a.ID}, 102, time.Now())
	if len(flipped) != 0 {
		t.Fatalf("second trigger must be a no-op, got %v", flipped)
	}

	if _, err := repo.UpdateCondition(ctx, a.ID, domain.LessThan, 50, time.Now()); !errors.Is(err, domain.ErrAlertTriggered) {
		t.Fatalf("expected ErrAlertTriggered, got %v", err)
	}
	insts, _ := repo.FindActiveInstruments(ctx)
	if len(insts) != 0 {
		t.Fatalf("expected no active instruments, got %v", insts)
	}
}

func TestMemoryRepoGetReturnsCopy(t *testing.T) {
	repo := New()
	ctx := context.Background()

	a := &domain.AlertCondition{Instrument: domain.ETH, Comparator: domain.LessThan, Threshold: 10}
	_ = repo.Create(ctx, a)

	got, _ := repo.Get(ctx, a.ID)
	got.Threshold = 999

	again, _ := repo.Get(ctx, a.ID)
	if again.Threshold != 10 {
		t.Fatalf("stored alert was mutated through Get: %v", again.Threshold)
	}
}
