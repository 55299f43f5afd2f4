package pool

// PoolState wraps the authoritative Pool record with guarded mutators: every
// mutator that writes to the pool also runs checkInvariants, panicking on a
// violation after mutation. A violation here means
// the engine itself has a bug, never a user error — the caller-facing
// validation that rejects bad user input happens earlier, in Engine's
// operation methods.
type PoolState struct {
	pool *Pool
}

// NewPoolState wraps an existing Pool record.
func NewPoolState(p *Pool) *PoolState {
	return &PoolState{pool: p}
}

// Pool returns the wrapped record. Callers must not mutate it directly;
// go through the guarded methods below instead.
func (s *PoolState) Pool() *Pool {
	if s == nil {
		return nil
	}
	return s.pool
}

// checkInvariants verifies the invariants that can be read from the Pool
// fields alone, panicking on any violation: I4-I7, plus that
// total_reserve_holdings + total_accumulated_fees fits in a uint64. PoolState
// holds no TokenLedger, so I2 and the ledger side of I1/I3 (the actual
// reserve_vault balance and share-mint supply) are not checked here. It is
// called after every guarded mutation.
func (s *PoolState) checkInvariants() {
	p := s.pool
	if p == nil {
		panic("pool state: nil pool")
	}
	// I1: reserve_vault.balance == total_reserve_holdings + total_accumulated_fees.
	// The ledger balance is not compared here; only the right-hand sum is
	// checked for overflow.
	if _, err := checkedAdd(p.TotalReserveHoldings, p.TotalAccumulatedFees); err != nil {
		panic("pool state: invariant I1 violated: " + err.Error())
	}
	// I3: total_accumulated_fees <= reserve_vault.balance, against the
	// balance I1 implies (holdings + fees) rather than the ledger's.
	vaultBalance, _ := p.VaultBalance()
	if p.TotalAccumulatedFees > vaultBalance {
		panic("pool state: invariant I3 violated: fees exceed vault balance")
	}
	// I4: total_share_supply <= max_total_supply unless max_total_supply == 0.
	if p.Config.MaxTotalSupply != 0 && p.TotalShareSupply > p.Config.MaxTotalSupply {
		panic("pool state: invariant I4 violated: share supply exceeds cap")
	}
	// I5: |pending_queue| <= max_queue_size.
	if uint32(p.Queue.Len()) > p.Config.MaxQueueSize {
		panic("pool state: invariant I5 violated: queue exceeds capacity")
	}
	// I6: all user values in pending_queue are distinct.
	entries := p.Queue.Entries()
	for i := range entries {
		for j := i + 1; j < len(entries); j++ {
			if addrEqual(entries[i].User, entries[j].User) {
				panic("pool state: invariant I6 violated: duplicate queued user")
			}
		}
	}
	// I7: current_exchange_rate > 0.
	if p.CurrentExchangeRate == 0 {
		panic("pool state: invariant I7 violated: exchange rate is zero")
	}
}

// creditReserve increases total_reserve_holdings by amount and re-checks
// invariants.
func (s *PoolState) creditReserve(amount uint64) error {
	next, err := checkedAdd(s.pool.TotalReserveHoldings, amount)
	if err != nil {
		return err
	}
	s.pool.TotalReserveHoldings = next
	s.checkInvariants()
	return nil
}

// debitReserve decreases total_reserve_holdings by amount and re-checks
// invariants.
func (s *PoolState) debitReserve(amount uint64) error {
	next, err := checkedSub(s.pool.TotalReserveHoldings, amount)
	if err != nil {
		return err
	}
	s.pool.TotalReserveHoldings = next
	s.checkInvariants()
	return nil
}

// creditFees increases total_accumulated_fees by amount and re-checks
// invariants.
func (s *PoolState) creditFees(amount uint64) error {
	next, err := checkedAdd(s.pool.TotalAccumulatedFees, amount)
	if err != nil {
		return err
	}
	s.pool.TotalAccumulatedFees = next
	s.checkInvariants()
	return nil
}

// debitFees decreases total_accumulated_fees by amount and re-checks
// invariants.
func (s *PoolState) debitFees(amount uint64) error {
	next, err := checkedSub(s.pool.TotalAccumulatedFees, amount)
	if err != nil {
		return err
	}
	s.pool.TotalAccumulatedFees = next
	s.checkInvariants()
	return nil
}

// creditSupply increases total_share_supply by amount and re-checks
// invariants, rejecting the mutation with MaxTotalSupplyExceeded before it
// is applied rather than panicking, since exceeding the cap is reachable by
// ordinary user input (handled by the caller ahead of calling this, but
// re-validated here as the last line of defense).
func (s *PoolState) creditSupply(amount uint64) error {
	next, err := checkedAdd(s.pool.TotalShareSupply, amount)
	if err != nil {
		return err
	}
	if s.pool.Config.MaxTotalSupply != 0 && next > s.pool.Config.MaxTotalSupply {
		return ErrMaxTotalSupplyExceeded
	}
	s.pool.TotalShareSupply = next
	s.checkInvariants()
	return nil
}

// debitSupply decreases total_share_supply by amount and re-checks
// invariants.
func (s *PoolState) debitSupply(amount uint64) error {
	next, err := checkedSub(s.pool.TotalShareSupply, amount)
	if err != nil {
		return err
	}
	s.pool.TotalShareSupply = next
	s.checkInvariants()
	return nil
}

// setExchangeRate updates current_exchange_rate and re-checks invariants.
func (s *PoolState) setExchangeRate(rate uint64) error {
	if rate == 0 {
		return ErrInvalidExchangeRate
	}
	s.pool.CurrentExchangeRate = rate
	s.checkInvariants()
	return nil
}
