package pool

import (
	"testing"

	"iptpool/crypto"
)

// newTestEngine wires an Engine directly around a Pool record and a fresh
// MemoryLedger, skipping InitPool/InitPoolStep2 so each scenario starts from
// exactly the state it needs.
func newTestEngine(cfg Config) (*Engine, *Pool, *MemoryLedger) {
	reserveAssetMint := makeAddress(0xAA)
	poolID := crypto.DerivePoolAddress(reserveAssetMint)
	poolAuthority := poolID
	shareMint := crypto.DeriveShareMintAddress(poolID)
	reserveVault := crypto.DeriveReserveVaultAddress(poolID)

	ledger := NewMemoryLedger(poolAuthority, reserveVault)
	p := &Pool{
		Config:              cfg,
		ReserveAssetMint:    reserveAssetMint,
		ShareMint:           shareMint,
		ReserveVault:        reserveVault,
		CurrentExchangeRate: cfg.InitialExchangeRate,
		Queue:               Queue{Capacity: cfg.MaxQueueSize},
	}
	state := NewPoolState(p)
	engine := NewEngine(state, ledger)
	return engine, p, ledger
}

func TestScenarioHappyPathDeposit(t *testing.T) {
	admin, oracle, fc := makeAddress(1), makeAddress(2), makeAddress(3)
	cfg := testConfig(admin, oracle, fc, 0, 100, 1_034_200, 0, 5)
	engine, p, ledger := newTestEngine(cfg)

	user := makeAddress(10)
	ledger.CreditReserve(user, 10_000_000_000)

	if err := engine.UserDeposit(user, 10_000_000_000, 0); err != nil {
		t.Fatalf("UserDeposit: %v", err)
	}

	wantShares := uint64(9_669_309_611)
	if bal, _ := ledger.BalanceOf(user); bal != wantShares {
		t.Fatalf("shares minted: got %d want %d", bal, wantShares)
	}
	if p.TotalReserveHoldings != 10_000_000_000 {
		t.Fatalf("total_reserve_holdings: got %d", p.TotalReserveHoldings)
	}
	if p.TotalAccumulatedFees != 0 {
		t.Fatalf("total_accumulated_fees: got %d", p.TotalAccumulatedFees)
	}
}

func TestScenarioImmediateWithdrawWithFee(t *testing.T) {
	admin, oracle, fc := makeAddress(1), makeAddress(2), makeAddress(3)
	cfg := testConfig(admin, oracle, fc, 0, 100, 1_034_200, 0, 5)
	engine, p, ledger := newTestEngine(cfg)

	user := makeAddress(10)
	ledger.CreditReserve(user, 10_000_000_000)
	if err := engine.UserDeposit(user, 10_000_000_000, 0); err != nil {
		t.Fatalf("UserDeposit: %v", err)
	}

	poolAuthority := p.PoolAuthority()
	ledger.Approve(user, poolAuthority, 1_000_000_000)

	if err := engine.UserWithdraw(user, 1_000_000_000, 0); err != nil {
		t.Fatalf("UserWithdraw: %v", err)
	}

	wantFee := uint64(10_342_000)
	wantNet := uint64(1_023_858_000)
	if p.TotalAccumulatedFees != wantFee {
		t.Fatalf("total_accumulated_fees: got %d want %d", p.TotalAccumulatedFees, wantFee)
	}
	if got := ledger.ReserveBalanceOf(user); got != wantNet {
		t.Fatalf("payout: got %d want %d", got, wantNet)
	}
}

func TestScenarioQueuedWithdrawOnShortage(t *testing.T) {
	admin, oracle, fc := makeAddress(1), makeAddress(2), makeAddress(3)
	cfg := testConfig(admin, oracle, fc, 0, 100, 1_034_200, 0, 5)
	engine, p, ledger := newTestEngine(cfg)
	p.TotalReserveHoldings = 1_000_000_000

	user2 := makeAddress(20)
	ledger.CreditShares(user2, 2_000_000_000)
	poolAuthority := p.PoolAuthority()
	ledger.Approve(user2, poolAuthority, 2_000_000_000)

	if err := engine.UserWithdraw(user2, 2_000_000_000, 0); err != nil {
		t.Fatalf("UserWithdraw: %v", err)
	}

	if p.Queue.Len() != 1 {
		t.Fatalf("queue length: got %d want 1", p.Queue.Len())
	}
	if bal, _ := ledger.BalanceOf(user2); bal != 2_000_000_000 {
		t.Fatalf("user2 balance should be untouched, got %d", bal)
	}
}

func TestScenarioGriefThenBatch(t *testing.T) {
	admin, oracle, fc := makeAddress(1), makeAddress(2), makeAddress(3)
	cfg := testConfig(admin, oracle, fc, 0, 0, 1_000_000, 0, 5)
	engine, p, ledger := newTestEngine(cfg)
	p.TotalReserveHoldings = 1_000
	ledger.CreditReserve(p.ReserveVault, 1_000)

	attacker := makeAddress(0x20)
	user1 := makeAddress(0x21)
	poolAuthority := p.PoolAuthority()

	if err := p.Queue.Enqueue(PendingWithdrawal{User: attacker, ShareAmount: 500}); err != nil {
		t.Fatalf("enqueue attacker: %v", err)
	}
	if err := p.Queue.Enqueue(PendingWithdrawal{User: user1, ShareAmount: 300}); err != nil {
		t.Fatalf("enqueue user1: %v", err)
	}
	// Attacker has already transferred their shares away by the time the
	// batch runs, leaving a zero balance behind.
	ledger.CreditShares(user1, 300)
	ledger.Approve(user1, poolAuthority, 300)
	p.TotalShareSupply = 300

	executor := makeAddress(0x30)
	accounts := []BatchSettlementAccounts{
		{ShareAccount: attacker, ReserveAccount: attacker},
		{ShareAccount: user1, ReserveAccount: user1},
	}
	if err := engine.BatchExecuteWithdraw(executor, []uint64{500, 300}, accounts); err != nil {
		t.Fatalf("BatchExecuteWithdraw: %v", err)
	}

	if p.Queue.Len() != 0 {
		t.Fatalf("expected empty queue, got %d entries", p.Queue.Len())
	}
	if bal, _ := ledger.BalanceOf(user1); bal != 0 {
		t.Fatalf("expected user1 shares burned, got %d", bal)
	}
	if got := ledger.ReserveBalanceOf(user1); got != 300 {
		t.Fatalf("expected user1 paid out 300, got %d", got)
	}
}

func TestScenarioFeeCollectionCeiling(t *testing.T) {
	admin, oracle, fc := makeAddress(1), makeAddress(2), makeAddress(3)
	cfg := testConfig(admin, oracle, fc, 0, 100, 1_000_000, 0, 5)
	engine, p, ledger := newTestEngine(cfg)
	p.TotalAccumulatedFees = 10_342_000
	p.TotalReserveHoldings = 10_342_000
	ledger.CreditReserve(p.ReserveVault, 20_684_000)

	if err := engine.FeeCollectorWithdraw(fc, 10_342_001); err != ErrInsufficientAccumulatedFees {
		t.Fatalf("expected ErrInsufficientAccumulatedFees, got %v", err)
	}
	if err := engine.FeeCollectorWithdraw(fc, 10_342_000); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if p.TotalAccumulatedFees != 0 {
		t.Fatalf("expected fees drained, got %d", p.TotalAccumulatedFees)
	}
	if err := engine.FeeCollectorWithdraw(fc, 1); err != ErrInsufficientAccumulatedFees {
		t.Fatalf("expected ErrInsufficientAccumulatedFees, got %v", err)
	}
}

func TestScenarioSupplyCap(t *testing.T) {
	admin, oracle, fc := makeAddress(1), makeAddress(2), makeAddress(3)
	cfg := testConfig(admin, oracle, fc, 100, 0, 1_000_000, 1_000_000_000, 5)
	engine, _, ledger := newTestEngine(cfg)

	user := makeAddress(40)
	ledger.CreditReserve(user, 2_000_000_000)

	if err := engine.UserDeposit(user, 2_000_000_000, 0); err != ErrMaxTotalSupplyExceeded {
		t.Fatalf("expected ErrMaxTotalSupplyExceeded, got %v", err)
	}
}

func TestInitPoolAndStep2DeriveAddresses(t *testing.T) {
	admin, oracle, fc := makeAddress(1), makeAddress(2), makeAddress(3)
	cfg := testConfig(admin, oracle, fc, 0, 0, 1_000_000, 0, 5)
	p := &Pool{}
	state := NewPoolState(p)
	ledger := NewMemoryLedger(crypto.Address{}, crypto.Address{})
	engine := NewEngine(state, ledger)

	reserveAssetMint := makeAddress(0xAA)
	if err := engine.InitPool(admin, reserveAssetMint, cfg); err != nil {
		t.Fatalf("InitPool: %v", err)
	}
	if err := engine.InitPoolStep2(admin); err != nil {
		t.Fatalf("InitPoolStep2: %v", err)
	}

	wantPoolID := crypto.DerivePoolAddress(reserveAssetMint)
	if !addrEqual(p.ShareMint, crypto.DeriveShareMintAddress(wantPoolID)) {
		t.Fatalf("unexpected share mint address")
	}
	if !addrEqual(p.ReserveVault, crypto.DeriveReserveVaultAddress(wantPoolID)) {
		t.Fatalf("unexpected reserve vault address")
	}
}

func TestAdminUpdateConfigRejectsShrinkingQueueBelowOccupancy(t *testing.T) {
	admin, oracle, fc := makeAddress(1), makeAddress(2), makeAddress(3)
	cfg := testConfig(admin, oracle, fc, 0, 0, 1_000_000, 0, 5)
	engine, p, _ := newTestEngine(cfg)

	u1, u2 := makeAddress(0x40), makeAddress(0x41)
	_ = p.Queue.Enqueue(PendingWithdrawal{User: u1, ShareAmount: 1})
	_ = p.Queue.Enqueue(PendingWithdrawal{User: u2, ShareAmount: 1})

	shrunk := cfg.Clone()
	shrunk.MaxQueueSize = 1
	if err := engine.AdminUpdateConfig(admin, shrunk); err != ErrInvalidConfigParameter {
		t.Fatalf("expected ErrInvalidConfigParameter, got %v", err)
	}
}

func TestUserWithdrawRejectsWithoutAllowance(t *testing.T) {
	admin, oracle, fc := makeAddress(1), makeAddress(2), makeAddress(3)
	cfg := testConfig(admin, oracle, fc, 0, 0, 1_000_000, 0, 5)
	engine, p, ledger := newTestEngine(cfg)
	p.TotalReserveHoldings = 1_000

	user := makeAddress(50)
	ledger.CreditShares(user, 500)

	if err := engine.UserWithdraw(user, 500, 0); err != ErrInsufficientApproval {
		t.Fatalf("expected ErrInsufficientApproval, got %v", err)
	}
}

func TestCancelWithdrawalRequestRemovesOwnEntry(t *testing.T) {
	admin, oracle, fc := makeAddress(1), makeAddress(2), makeAddress(3)
	cfg := testConfig(admin, oracle, fc, 0, 0, 1_000_000, 0, 5)
	engine, p, _ := newTestEngine(cfg)

	user := makeAddress(60)
	_ = p.Queue.Enqueue(PendingWithdrawal{User: user, ShareAmount: 1})

	if err := engine.CancelWithdrawalRequest(user); err != nil {
		t.Fatalf("CancelWithdrawalRequest: %v", err)
	}
	if p.Queue.Len() != 0 {
		t.Fatalf("expected empty queue after cancel")
	}
	if err := engine.CancelWithdrawalRequest(user); err != ErrInvalidUserAccount {
		t.Fatalf("expected ErrInvalidUserAccount on repeat cancel, got %v", err)
	}
}

func TestBatchExecuteWithdrawHaltsOnLiquidityShortfall(t *testing.T) {
	admin, oracle, fc := makeAddress(1), makeAddress(2), makeAddress(3)
	cfg := testConfig(admin, oracle, fc, 0, 0, 1_000_000, 0, 5)
	engine, p, ledger := newTestEngine(cfg)
	p.TotalReserveHoldings = 100

	user := makeAddress(70)
	poolAuthority := p.PoolAuthority()
	ledger.CreditShares(user, 500)
	ledger.Approve(user, poolAuthority, 500)
	if err := p.Queue.Enqueue(PendingWithdrawal{User: user, ShareAmount: 500}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	executor := makeAddress(0x31)
	accounts := []BatchSettlementAccounts{{ShareAccount: user, ReserveAccount: user}}
	if err := engine.BatchExecuteWithdraw(executor, []uint64{500}, accounts); err != nil {
		t.Fatalf("BatchExecuteWithdraw: %v", err)
	}

	if p.Queue.Len() != 1 {
		t.Fatalf("expected entry re-queued on halt, got len %d", p.Queue.Len())
	}
	if bal, _ := ledger.BalanceOf(user); bal != 500 {
		t.Fatalf("expected shares untouched on halt, got %d", bal)
	}
}

func TestBatchExecuteWithdrawRejectsEmptyBatch(t *testing.T) {
	admin, oracle, fc := makeAddress(1), makeAddress(2), makeAddress(3)
	cfg := testConfig(admin, oracle, fc, 0, 0, 1_000_000, 0, 5)
	engine, _, _ := newTestEngine(cfg)

	if err := engine.BatchExecuteWithdraw(makeAddress(0x31), nil, nil); err != ErrEmptyWithdrawalBatch {
		t.Fatalf("expected ErrEmptyWithdrawalBatch, got %v", err)
	}
}

func TestUnauthorizedAdminOperationsAreRejected(t *testing.T) {
	admin, oracle, fc := makeAddress(1), makeAddress(2), makeAddress(3)
	cfg := testConfig(admin, oracle, fc, 0, 0, 1_000_000, 0, 5)
	engine, _, ledger := newTestEngine(cfg)

	stranger := makeAddress(0x99)
	ledger.CreditReserve(stranger, 1_000)
	if err := engine.AdminDepositReserve(stranger, 1_000); err != ErrUnauthorizedAdmin {
		t.Fatalf("expected ErrUnauthorizedAdmin, got %v", err)
	}
	if err := engine.UpdateExchangeRate(stranger, 2_000_000); err != ErrUnauthorizedOracle {
		t.Fatalf("expected ErrUnauthorizedOracle, got %v", err)
	}
	if err := engine.FeeCollectorWithdraw(stranger, 1); err != ErrUnauthorizedFeeCollector {
		t.Fatalf("expected ErrUnauthorizedFeeCollector, got %v", err)
	}
}
