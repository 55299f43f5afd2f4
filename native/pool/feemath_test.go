package pool

import "testing"

func TestApplyBpsSplitsAmount(t *testing.T) {
	net, fee, err := ApplyBps(1_034_200_000, 100)
	if err != nil {
		t.Fatalf("ApplyBps: %v", err)
	}
	if want := uint64(10_342_000); fee != want {
		t.Fatalf("fee: got %d want %d", fee, want)
	}
	if want := uint64(1_023_858_000); net != want {
		t.Fatalf("net: got %d want %d", net, want)
	}
}

func TestApplyBpsZeroBps(t *testing.T) {
	net, fee, err := ApplyBps(1_000, 0)
	if err != nil {
		t.Fatalf("ApplyBps: %v", err)
	}
	if fee != 0 || net != 1_000 {
		t.Fatalf("expected no-op split, got net=%d fee=%d", net, fee)
	}
}

func TestApplyBpsZeroAmount(t *testing.T) {
	net, fee, err := ApplyBps(0, 500)
	if err != nil {
		t.Fatalf("ApplyBps: %v", err)
	}
	if fee != 0 || net != 0 {
		t.Fatalf("expected zero split, got net=%d fee=%d", net, fee)
	}
}

func TestApplyBpsRejectsOutOfRange(t *testing.T) {
	if _, _, err := ApplyBps(1_000, 10_001); err != ErrInvalidFeeRate {
		t.Fatalf("expected ErrInvalidFeeRate, got %v", err)
	}
}

func TestApplyBpsFullRate(t *testing.T) {
	net, fee, err := ApplyBps(1_000, 10_000)
	if err != nil {
		t.Fatalf("ApplyBps: %v", err)
	}
	if net != 0 || fee != 1_000 {
		t.Fatalf("expected full fee, got net=%d fee=%d", net, fee)
	}
}

func TestApplyBpsLargeAmountDoesNotOverflow(t *testing.T) {
	// amount*bps would overflow a uint64 multiply; ApplyBps must fall back to
	// the wide mulDivFloor path instead of wrapping.
	amount := maxUint64 / 2
	net, fee, err := ApplyBps(amount, 10_000)
	if err != nil {
		t.Fatalf("ApplyBps: %v", err)
	}
	if net != 0 {
		t.Fatalf("expected zero net at full fee rate, got %d", net)
	}
	if fee != amount {
		t.Fatalf("expected fee to equal amount, got %d", fee)
	}
}
