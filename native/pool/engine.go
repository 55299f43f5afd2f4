package pool

import (
	"sync"
	"time"

	nativecommon "iptpool/native/common"
	"iptpool/observability"

	"iptpool/crypto"
)

const moduleName = "pool"

const maxBatchSize = 10

// Engine orchestrates the twelve public pool operations, validating
// authority and arguments, delegating arithmetic to FixedPoint/FeeMath,
// moving tokens through the TokenLedger boundary, mutating PoolState, and
// emitting events. Every method runs to completion with no internal
// suspension point; Engine itself adds the single mutex that gives the host
// the total ordering §5 requires within one process.
type Engine struct {
	mu      sync.Mutex
	state   *PoolState
	ledger  TokenLedger
	store   *Store
	emitter Emitter
	pauses  nativecommon.PauseView
	metrics *observability.PoolMetrics

	quotaStore nativecommon.Store
	quota      nativecommon.Quota
	quotaEpoch func() uint64
}

// NewEngine constructs an Engine around an already-initialized PoolState and
// TokenLedger. SetStore/SetEmitter/SetPauses/SetExecutorQuota/SetMetrics wire
// the remaining optional collaborators.
func NewEngine(state *PoolState, ledger TokenLedger) *Engine {
	return &Engine{state: state, ledger: ledger, emitter: NoopEmitter{}, metrics: observability.Pool()}
}

// SetMetrics overrides the Prometheus registry Engine reports to; defaults
// to the process-wide observability.Pool() singleton.
func (e *Engine) SetMetrics(m *observability.PoolMetrics) {
	if e == nil {
		return
	}
	e.metrics = m
}

// observe records one operation's outcome and, when mutating succeeded,
// refreshes the vault/fee/supply/queue gauges from the current pool state.
func (e *Engine) observe(operation string, start time.Time, err error) error {
	e.metrics.Observe(operation, err, time.Since(start))
	if err == nil && e.state != nil {
		p := e.state.Pool()
		e.metrics.SetPoolState(p.TotalReserveHoldings, p.TotalAccumulatedFees, p.TotalShareSupply, p.Queue.Len(), p.CurrentExchangeRate)
	}
	return err
}

// SetStore wires persistence; when set, every successful mutating operation
// is flushed to the store before returning.
func (e *Engine) SetStore(store *Store) {
	if e == nil {
		return
	}
	e.store = store
}

// SetEmitter wires the event sink; defaults to NoopEmitter.
func (e *Engine) SetEmitter(emitter Emitter) {
	if e == nil {
		return
	}
	if emitter == nil {
		emitter = NoopEmitter{}
	}
	e.emitter = emitter
}

// SetPauses wires the module pause circuit breaker (A5).
func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetExecutorQuota wires the per-epoch executor quota guarding
// BatchExecuteWithdraw. epochFn returns the current epoch identifier (e.g.
// wall-clock bucketed to a window); store persists the rolling counters.
func (e *Engine) SetExecutorQuota(store nativecommon.Store, q nativecommon.Quota, epochFn func() uint64) {
	if e == nil {
		return
	}
	e.quotaStore = store
	e.quota = q
	e.quotaEpoch = epochFn
}

// Pool returns a point-in-time copy of the pool record, safe for a reader
// to inspect concurrently with in-flight operations. Implements the
// gateway's PoolSnapshot interface.
func (e *Engine) Pool() *Pool {
	e.mu.Lock()
	defer e.mu.Unlock()
	p := *e.state.Pool()
	p.Queue = Queue{Capacity: p.Queue.Capacity, entries: p.Queue.Entries()}
	return &p
}

func (e *Engine) guard() error {
	if e == nil || e.state == nil || e.ledger == nil {
		return ErrEngineNotConfigured
	}
	return nativecommon.Guard(e.pauses, moduleName)
}

func (e *Engine) emit(ev Event) {
	if e.emitter != nil {
		e.emitter.Emit(ev)
	}
}

// persist flushes the current pool record to the store, when one is
// configured, under the pool's deterministic address.
func (e *Engine) persist() error {
	if e.store == nil {
		return nil
	}
	p := e.state.Pool()
	poolID := crypto.DerivePoolAddress(p.ReserveAssetMint)
	return e.store.Save(poolID, p)
}

// InitPool creates the pool record with the given config. See
// SPEC_FULL.md §4.7(a).
func (e *Engine) InitPool(signer crypto.Address, reserveAssetMint crypto.Address, cfg Config) (err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := time.Now()
	defer func() { err = e.observe("init_pool", start, err) }()

	if err := e.guard(); err != nil {
		return err
	}
	if err := requireRole(cfg, RoleAdmin, signer); err != nil {
		return err
	}
	if err := cfg.validate(); err != nil {
		return err
	}
	p := e.state.Pool()
	p.Config = cfg
	p.ReserveAssetMint = reserveAssetMint
	p.CurrentExchangeRate = cfg.InitialExchangeRate
	p.TotalShareSupply = 0
	p.TotalReserveHoldings = 0
	p.TotalAccumulatedFees = 0
	p.Queue = Queue{Capacity: cfg.MaxQueueSize}
	e.state.checkInvariants()

	poolID := crypto.DerivePoolAddress(reserveAssetMint)
	e.emit(PoolInitialized{PoolID: poolID, Config: cfg})
	return e.persist()
}

// InitPoolStep2 derives and records the share-mint and reserve-vault
// addresses. See SPEC_FULL.md §4.7(b).
func (e *Engine) InitPoolStep2(signer crypto.Address) (err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := time.Now()
	defer func() { err = e.observe("init_pool_step2", start, err) }()

	if err := e.guard(); err != nil {
		return err
	}
	p := e.state.Pool()
	if err := requireRole(p.Config, RoleAdmin, signer); err != nil {
		return err
	}
	poolID := crypto.DerivePoolAddress(p.ReserveAssetMint)
	p.ShareMint = crypto.DeriveShareMintAddress(poolID)
	p.ReserveVault = crypto.DeriveReserveVaultAddress(poolID)
	return e.persist()
}

// AdminDepositReserve moves amount R from the admin into the vault without
// minting shares. See SPEC_FULL.md §4.7(c).
func (e *Engine) AdminDepositReserve(signer crypto.Address, amount uint64) (err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := time.Now()
	defer func() { err = e.observe("admin_deposit_reserve", start, err) }()

	if err := e.guard(); err != nil {
		return err
	}
	p := e.state.Pool()
	if err := requireRole(p.Config, RoleAdmin, signer); err != nil {
		return err
	}
	if amount == 0 {
		return ErrZeroAmountNotAllowed
	}
	if err := e.ledger.TransferReserveIn(signer, amount); err != nil {
		return err
	}
	if err := e.state.creditReserve(amount); err != nil {
		return err
	}
	e.emit(ReserveDeposited{By: signer, Amount: amount})
	return e.persist()
}

// AdminWithdrawReserve moves amount R out of total_reserve_holdings (never
// the fee pot) back to the admin. See SPEC_FULL.md §4.7(d).
func (e *Engine) AdminWithdrawReserve(signer crypto.Address, amount uint64) (err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := time.Now()
	defer func() { err = e.observe("admin_withdraw_reserve", start, err) }()

	if err := e.guard(); err != nil {
		return err
	}
	p := e.state.Pool()
	if err := requireRole(p.Config, RoleAdmin, signer); err != nil {
		return err
	}
	if amount == 0 {
		return ErrZeroAmountNotAllowed
	}
	if amount > p.TotalReserveHoldings {
		return ErrInsufficientReserves
	}
	if err := e.ledger.TransferReserveOut(signer, amount); err != nil {
		return err
	}
	if err := e.state.debitReserve(amount); err != nil {
		return err
	}
	e.emit(ReserveWithdrawn{By: signer, Amount: amount})
	return e.persist()
}

// UpdateExchangeRate marks a new exogenous rate. See SPEC_FULL.md §4.7(e).
func (e *Engine) UpdateExchangeRate(signer crypto.Address, newRate uint64) (err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := time.Now()
	defer func() { err = e.observe("update_exchange_rate", start, err) }()

	if err := e.guard(); err != nil {
		return err
	}
	p := e.state.Pool()
	if err := requireRole(p.Config, RoleOracle, signer); err != nil {
		return err
	}
	if newRate == 0 || newRate == p.CurrentExchangeRate {
		return ErrInvalidExchangeRate
	}
	old := p.CurrentExchangeRate
	if err := e.state.setExchangeRate(newRate); err != nil {
		return err
	}
	e.emit(ExchangeRateUpdated{Old: old, New: newRate})
	return e.persist()
}

// AdminUpdateConfig atomically replaces the pool config. See SPEC_FULL.md
// §4.7(f).
func (e *Engine) AdminUpdateConfig(signer crypto.Address, newConfig Config) (err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := time.Now()
	defer func() { err = e.observe("admin_update_config", start, err) }()

	if err := e.guard(); err != nil {
		return err
	}
	p := e.state.Pool()
	if err := requireRole(p.Config, RoleAdmin, signer); err != nil {
		return err
	}
	if err := newConfig.validate(); err != nil {
		return err
	}
	if newConfig.MaxQueueSize < uint32(p.Queue.Len()) {
		return ErrInvalidConfigParameter
	}
	old := p.Config
	p.Config = newConfig
	p.Queue.Capacity = newConfig.MaxQueueSize
	e.state.checkInvariants()
	e.emit(ConfigUpdated{Old: old, New: newConfig})
	return e.persist()
}

// UserDeposit converts reserve_in R into S at the current rate, minting
// shares to the user. See SPEC_FULL.md §4.7(g).
func (e *Engine) UserDeposit(user crypto.Address, reserveIn, minSharesOut uint64) (err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := time.Now()
	defer func() { err = e.observe("user_deposit", start, err) }()

	if err := e.guard(); err != nil {
		return err
	}
	if reserveIn == 0 {
		return ErrInvalidAmount
	}
	p := e.state.Pool()
	netR, feeR, err := ApplyBps(reserveIn, p.Config.DepositFeeBps)
	if err != nil {
		return err
	}
	shares, err := RToS(netR, p.CurrentExchangeRate)
	if err != nil {
		return err
	}
	if shares < minSharesOut {
		return ErrSlippageExceeded
	}
	if p.Config.MaxTotalSupply != 0 {
		total, err := checkedAdd(p.TotalShareSupply, shares)
		if err != nil {
			return err
		}
		if total > p.Config.MaxTotalSupply {
			return ErrMaxTotalSupplyExceeded
		}
	}

	if err := e.ledger.TransferReserveIn(user, reserveIn); err != nil {
		return err
	}
	if err := e.ledger.MintShares(user, shares); err != nil {
		return err
	}
	if err := e.state.creditReserve(netR); err != nil {
		return err
	}
	if err := e.state.creditFees(feeR); err != nil {
		return err
	}
	if err := e.state.creditSupply(shares); err != nil {
		return err
	}
	e.emit(UserDeposited{User: user, ReserveIn: reserveIn, NetR: netR, FeeR: feeR, SharesOut: shares})
	return e.persist()
}

// UserWithdraw burns shares_in S and pays out R, either immediately or by
// enqueueing a PendingWithdrawal when reserves are insufficient. See
// SPEC_FULL.md §4.7(h).
func (e *Engine) UserWithdraw(user crypto.Address, sharesIn, minReserveOut uint64) (err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := time.Now()
	defer func() { err = e.observe("user_withdraw", start, err) }()

	if err := e.guard(); err != nil {
		return err
	}
	if sharesIn == 0 {
		return ErrInvalidAmount
	}
	p := e.state.Pool()
	netR, feeR, poolAuthority, err := e.prepareWithdraw(p, sharesIn, minReserveOut)
	if err != nil {
		return err
	}
	if netR <= p.TotalReserveHoldings {
		return e.executeImmediateWithdraw(user, sharesIn, netR, feeR, poolAuthority)
	}
	return e.enqueueWithdraw(user, sharesIn, minReserveOut, poolAuthority)
}

// UserWithdrawalRequest always takes the queued path. See SPEC_FULL.md
// §4.7(i).
func (e *Engine) UserWithdrawalRequest(user crypto.Address, sharesIn, minReserveOut uint64) (err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := time.Now()
	defer func() { err = e.observe("user_withdrawal_request", start, err) }()

	if err := e.guard(); err != nil {
		return err
	}
	if sharesIn == 0 {
		return ErrInvalidAmount
	}
	p := e.state.Pool()
	_, _, poolAuthority, err := e.prepareWithdraw(p, sharesIn, minReserveOut)
	if err != nil {
		return err
	}
	return e.enqueueWithdraw(user, sharesIn, minReserveOut, poolAuthority)
}

// prepareWithdraw computes and validates the slippage-checked net payout
// shared by UserWithdraw and UserWithdrawalRequest.
func (e *Engine) prepareWithdraw(p *Pool, sharesIn, minReserveOut uint64) (netR, feeR uint64, poolAuthority crypto.Address, err error) {
	grossR, err := SToR(sharesIn, p.CurrentExchangeRate)
	if err != nil {
		return 0, 0, crypto.Address{}, err
	}
	netR, feeR, err = ApplyBps(grossR, p.Config.WithdrawalFeeBps)
	if err != nil {
		return 0, 0, crypto.Address{}, err
	}
	if netR < minReserveOut {
		return 0, 0, crypto.Address{}, ErrSlippageExceeded
	}
	return netR, feeR, p.PoolAuthority(), nil
}

func (e *Engine) executeImmediateWithdraw(user crypto.Address, sharesIn, netR, feeR uint64, poolAuthority crypto.Address) error {
	allowance, err := e.ledger.AllowanceOf(user, poolAuthority)
	if err != nil {
		return err
	}
	if allowance < sharesIn {
		return ErrInsufficientApproval
	}
	if err := e.ledger.BurnSharesFrom(user, sharesIn); err != nil {
		return err
	}
	if err := e.ledger.TransferReserveOut(user, netR); err != nil {
		return err
	}
	total, err := checkedAdd(netR, feeR)
	if err != nil {
		return err
	}
	if err := e.state.debitReserve(total); err != nil {
		return err
	}
	if err := e.state.creditFees(feeR); err != nil {
		return err
	}
	if err := e.state.debitSupply(sharesIn); err != nil {
		return err
	}
	e.emit(WithdrawExecuted{User: user, Shares: sharesIn, NetR: netR, FeeR: feeR})
	return e.persist()
}

func (e *Engine) enqueueWithdraw(user crypto.Address, sharesIn, minReserveOut uint64, poolAuthority crypto.Address) error {
	allowance, err := e.ledger.AllowanceOf(user, poolAuthority)
	if err != nil {
		return err
	}
	if allowance < sharesIn {
		return ErrInsufficientApproval
	}
	p := e.state.Pool()
	entry := PendingWithdrawal{User: user, ShareAmount: sharesIn, MinReserveOut: minReserveOut}
	if err := p.Queue.Enqueue(entry); err != nil {
		return err
	}
	e.state.checkInvariants()
	e.emit(WithdrawalQueued{User: user, Shares: sharesIn, Position: p.Queue.Len() - 1})
	return e.persist()
}

// CancelWithdrawalRequest removes the caller's own queued entry. See
// SPEC_FULL.md §4.7(j).
func (e *Engine) CancelWithdrawalRequest(user crypto.Address) (err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := time.Now()
	defer func() { err = e.observe("cancel_withdrawal_request", start, err) }()

	if err := e.guard(); err != nil {
		return err
	}
	p := e.state.Pool()
	idx := p.Queue.FindByUser(user)
	if idx < 0 {
		return ErrInvalidUserAccount
	}
	p.Queue.RemoveAt(idx)
	e.state.checkInvariants()
	e.emit(WithdrawalCancelled{User: user})
	return e.persist()
}

// BatchSettlementAccounts pairs the share-account and reserve-account
// references the host supplies out of band for one batch position.
type BatchSettlementAccounts struct {
	ShareAccount   crypto.Address
	ReserveAccount crypto.Address
}

// BatchExecuteWithdraw is the skip-don't-fail settlement procedure. See
// SPEC_FULL.md §4.7(k).
func (e *Engine) BatchExecuteWithdraw(executor crypto.Address, amounts []uint64, accounts []BatchSettlementAccounts) (err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := time.Now()
	defer func() { err = e.observe("batch_execute_withdraw", start, err) }()

	if err := e.guard(); err != nil {
		return err
	}
	if len(amounts) == 0 {
		return ErrEmptyWithdrawalBatch
	}
	if len(amounts) > maxBatchSize {
		return ErrBatchSizeTooLarge
	}
	if len(accounts) != len(amounts) {
		return ErrInvalidAccountsCount
	}
	p := e.state.Pool()
	if len(amounts) > p.Queue.Len() {
		return ErrEmptyWithdrawalBatch
	}
	totalR, err := totalReserveForBatch(amounts, p.CurrentExchangeRate)
	if err != nil {
		return err
	}
	if err := e.checkExecutorQuota(executor, len(amounts), totalR); err != nil {
		return err
	}

	successful := 0
	skipped := 0
	for i := 0; i < len(amounts); i++ {
		entry, ok := p.Queue.RemoveFront()
		if !ok {
			break
		}
		skip, reason, netR, feeR := e.evaluateBatchEntry(p, entry, amounts[i], accounts[i])
		if skip {
			skipped++
			e.emit(WithdrawSkipped{User: entry.User, Reason: reason})
			e.state.checkInvariants()
			continue
		}
		if reason == "halt" {
			// Put the entry back at the front; it and everything after it
			// remain queued for a later batch.
			p.Queue.entries = append([]PendingWithdrawal{entry}, p.Queue.entries...)
			break
		}

		if err := e.ledger.BurnSharesFrom(entry.User, entry.ShareAmount); err != nil {
			panic("pool engine: batch execute: " + err.Error())
		}
		if err := e.ledger.TransferReserveOut(accounts[i].ReserveAccount, netR); err != nil {
			panic("pool engine: batch execute: " + err.Error())
		}
		total, err := checkedAdd(netR, feeR)
		if err != nil {
			panic("pool engine: batch execute: " + err.Error())
		}
		if err := e.state.debitReserve(total); err != nil {
			panic("pool engine: batch execute: " + err.Error())
		}
		if err := e.state.creditFees(feeR); err != nil {
			panic("pool engine: batch execute: " + err.Error())
		}
		if err := e.state.debitSupply(entry.ShareAmount); err != nil {
			panic("pool engine: batch execute: " + err.Error())
		}
		successful++
		e.emit(WithdrawExecuted{User: entry.User, Shares: entry.ShareAmount, NetR: netR, FeeR: feeR})
	}

	e.metrics.RecordBatch(successful, skipped)
	e.emit(BatchWithdrawExecuted{Successful: successful, Skipped: skipped})
	return e.persist()
}

// evaluateBatchEntry runs steps 1-5 of §4.7(k) against one queue entry,
// returning whether to skip (with a reason) or, for the halt case, a reason
// of "halt". When neither skip nor halt applies it returns the net/fee
// amounts the caller should execute with.
func (e *Engine) evaluateBatchEntry(p *Pool, entry PendingWithdrawal, expectedAmount uint64, acct BatchSettlementAccounts) (skip bool, reason string, netR, feeR uint64) {
	if !addrEqual(acct.ShareAccount, entry.User) || !addrEqual(acct.ReserveAccount, entry.User) {
		return true, "account_mismatch", 0, 0
	}
	if expectedAmount != entry.ShareAmount {
		return true, "amount_mismatch", 0, 0
	}
	balance, err := e.ledger.BalanceOf(acct.ShareAccount)
	if err != nil || balance < entry.ShareAmount {
		return true, "insufficient_balance", 0, 0
	}
	allowance, err := e.ledger.AllowanceOf(acct.ShareAccount, p.PoolAuthority())
	if err != nil || allowance < entry.ShareAmount {
		return true, "insufficient_approval", 0, 0
	}
	grossR, err := SToR(entry.ShareAmount, p.CurrentExchangeRate)
	if err != nil {
		return true, "arithmetic", 0, 0
	}
	net, fee, err := ApplyBps(grossR, p.Config.WithdrawalFeeBps)
	if err != nil {
		return true, "arithmetic", 0, 0
	}
	if net < entry.MinReserveOut {
		return true, "slippage", 0, 0
	}
	if net > p.TotalReserveHoldings {
		return false, "halt", 0, 0
	}
	return false, "", net, fee
}

func (e *Engine) checkExecutorQuota(executor crypto.Address, batchLen int, totalR uint64) error {
	if e.quotaStore == nil || e.quotaEpoch == nil {
		return nil
	}
	epoch := e.quotaEpoch()
	prev, _, err := e.quotaStore.Load(moduleName, epoch, executor.Bytes())
	if err != nil {
		return err
	}
	next, err := nativecommon.CheckQuota(e.quota, epoch, prev, uint32(batchLen), totalR)
	if err != nil {
		return err
	}
	return e.quotaStore.Save(moduleName, epoch, executor.Bytes(), next)
}

// totalReserveForBatch sums the gross reserve amount each batch position
// would move at the pool's current exchange rate, for the executor quota's
// per-epoch volume cap.
func totalReserveForBatch(amounts []uint64, rate uint64) (uint64, error) {
	var total uint64
	for _, shareAmount := range amounts {
		r, err := SToR(shareAmount, rate)
		if err != nil {
			return 0, err
		}
		total, err = checkedAdd(total, r)
		if err != nil {
			return 0, err
		}
	}
	return total, nil
}

// FeeCollectorWithdraw pays accumulated fees out to the fee collector. See
// SPEC_FULL.md §4.7(l).
func (e *Engine) FeeCollectorWithdraw(signer crypto.Address, amount uint64) (err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := time.Now()
	defer func() { err = e.observe("fee_collector_withdraw", start, err) }()

	if err := e.guard(); err != nil {
		return err
	}
	p := e.state.Pool()
	if err := requireRole(p.Config, RoleFeeCollector, signer); err != nil {
		return err
	}
	if amount == 0 {
		return ErrZeroAmountNotAllowed
	}
	if amount > p.TotalAccumulatedFees {
		return ErrInsufficientAccumulatedFees
	}
	if err := e.ledger.TransferReserveOut(signer, amount); err != nil {
		return err
	}
	if err := e.state.debitFees(amount); err != nil {
		return err
	}
	e.emit(FeesCollected{To: signer, Amount: amount})
	return e.persist()
}
