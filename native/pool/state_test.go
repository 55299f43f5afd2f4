package pool

import "testing"

func newTestState() *PoolState {
	p := &Pool{
		Config:              testConfig(makeAddress(0x01), makeAddress(0x02), makeAddress(0x03), 0, 100, 1_000_000, 0, 5),
		CurrentExchangeRate: 1_000_000,
		Queue:               Queue{Capacity: 5},
	}
	return NewPoolState(p)
}

func TestCreditDebitReserveRoundTrip(t *testing.T) {
	s := newTestState()
	if err := s.creditReserve(100); err != nil {
		t.Fatalf("creditReserve: %v", err)
	}
	if s.Pool().TotalReserveHoldings != 100 {
		t.Fatalf("unexpected holdings: %d", s.Pool().TotalReserveHoldings)
	}
	if err := s.debitReserve(40); err != nil {
		t.Fatalf("debitReserve: %v", err)
	}
	if s.Pool().TotalReserveHoldings != 60 {
		t.Fatalf("unexpected holdings: %d", s.Pool().TotalReserveHoldings)
	}
}

func TestDebitReserveUnderflow(t *testing.T) {
	s := newTestState()
	if err := s.debitReserve(1); err != ErrArithmeticOverflow {
		t.Fatalf("expected ErrArithmeticOverflow, got %v", err)
	}
}

func TestCreditSupplyRejectsOverCap(t *testing.T) {
	s := newTestState()
	s.Pool().Config.MaxTotalSupply = 100
	if err := s.creditSupply(100); err != nil {
		t.Fatalf("creditSupply at cap: %v", err)
	}
	if err := s.creditSupply(1); err != ErrMaxTotalSupplyExceeded {
		t.Fatalf("expected ErrMaxTotalSupplyExceeded, got %v", err)
	}
}

func TestSetExchangeRateRejectsZero(t *testing.T) {
	s := newTestState()
	if err := s.setExchangeRate(0); err != ErrInvalidExchangeRate {
		t.Fatalf("expected ErrInvalidExchangeRate, got %v", err)
	}
	if s.Pool().CurrentExchangeRate != 1_000_000 {
		t.Fatalf("rate mutated despite rejection")
	}
}

func TestCheckInvariantsPanicsOnQueueOverCapacity(t *testing.T) {
	s := newTestState()
	s.Pool().Queue.Capacity = 1
	s.Pool().Config.MaxQueueSize = 1
	s.Pool().Queue.entries = []PendingWithdrawal{{User: makeAddress(0x11)}, {User: makeAddress(0x12)}}

	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected panic on invariant violation")
		}
	}()
	s.checkInvariants()
}

func TestCheckInvariantsPanicsOnSupplyOverCap(t *testing.T) {
	s := newTestState()
	s.Pool().Config.MaxTotalSupply = 10
	s.Pool().TotalShareSupply = 11

	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected panic on invariant violation")
		}
	}()
	s.checkInvariants()
}

func TestCheckInvariantsPanicsOnDuplicateQueueUser(t *testing.T) {
	s := newTestState()
	u := makeAddress(0x09)
	s.Pool().Queue.entries = []PendingWithdrawal{{User: u}, {User: u}}

	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected panic on duplicate queued user")
		}
	}()
	s.checkInvariants()
}
