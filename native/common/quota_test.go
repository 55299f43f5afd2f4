package common

import (
	"errors"
	"testing"
)

func TestCheckQuotaRequestLimit(t *testing.T) {
	q := Quota{MaxRequestsPerMin: 10}
	prev := QuotaNow{EpochID: 1}

	next, err := CheckQuota(q, 1, prev, 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.ReqCount != 10 {
		t.Fatalf("unexpected request count: %d", next.ReqCount)
	}

	denied, err := CheckQuota(q, 1, next, 1, 0)
	if !errors.Is(err, ErrQuotaRequestsExceeded) {
		t.Fatalf("expected ErrQuotaRequestsExceeded, got %v", err)
	}
	if denied != next {
		t.Fatalf("expected counters to remain unchanged on denial")
	}

	rollover, err := CheckQuota(q, 2, next, 1, 0)
	if err != nil {
		t.Fatalf("unexpected error after epoch rollover: %v", err)
	}
	if rollover.EpochID != 2 || rollover.ReqCount != 1 {
		t.Fatalf("unexpected state after rollover: %+v", rollover)
	}
}

func TestCheckQuotaReserveVolume(t *testing.T) {
	q := Quota{MaxReservePerEpoch: 1000}
	prev := QuotaNow{EpochID: 5}

	next, err := CheckQuota(q, 5, prev, 0, 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.ReserveMoved != 1000 {
		t.Fatalf("unexpected reserve moved: %d", next.ReserveMoved)
	}

	denied, err := CheckQuota(q, 5, next, 0, 1)
	if !errors.Is(err, ErrQuotaReserveCapExceeded) {
		t.Fatalf("expected ErrQuotaReserveCapExceeded, got %v", err)
	}
	if denied != next {
		t.Fatalf("expected counters to remain unchanged on denial")
	}

	rollover, err := CheckQuota(q, 6, next, 0, 500)
	if err != nil {
		t.Fatalf("unexpected error after epoch rollover: %v", err)
	}
	if rollover.ReserveMoved != 500 {
		t.Fatalf("unexpected reserve moved after rollover: %d", rollover.ReserveMoved)
	}
}

func TestMemStoreRoundTrip(t *testing.T) {
	store := NewMemStore()
	addr := []byte("executor-address")

	if _, ok, err := store.Load("pool", 1, addr); err != nil || ok {
		t.Fatalf("expected no entry yet, got ok=%v err=%v", ok, err)
	}

	if err := store.Save("pool", 1, addr, QuotaNow{ReqCount: 3, EpochID: 1}); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, ok, err := store.Load("pool", 1, addr)
	if err != nil || !ok {
		t.Fatalf("expected stored entry, got ok=%v err=%v", ok, err)
	}
	if got.ReqCount != 3 {
		t.Fatalf("unexpected req count: %d", got.ReqCount)
	}
}

func TestApplyUpdatesStore(t *testing.T) {
	store := NewMemStore()
	q := Quota{MaxRequestsPerMin: 5}
	addr := []byte("executor")

	next, err := Apply(store, "pool", 1, addr, q, 3, 0)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if next.ReqCount != 3 {
		t.Fatalf("unexpected req count: %d", next.ReqCount)
	}

	if _, err := Apply(store, "pool", 1, addr, q, 3, 0); !errors.Is(err, ErrQuotaRequestsExceeded) {
		t.Fatalf("expected ErrQuotaRequestsExceeded, got %v", err)
	}
}
