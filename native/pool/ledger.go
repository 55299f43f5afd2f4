package pool

import "iptpool/crypto"

// TokenLedger abstracts the host's token subsystem. The engine never reads
// or writes balances directly; every movement of R or S passes through this
// boundary. A production deployment supplies an adapter against the real
// chain's token program; MemoryLedger below is the reference implementation
// used by tests and the bundled standalone daemon mode.
type TokenLedger interface {
	// MintShares credits amount S to the to account. Only ever called by the
	// engine on behalf of the pool authority.
	MintShares(to crypto.Address, amount uint64) error
	// BurnSharesFrom debits amount S from owner's account, requiring that the
	// pool authority hold an allowance of at least amount on owner.
	BurnSharesFrom(owner crypto.Address, amount uint64) error
	// TransferReserveIn moves amount R from fromUser into the reserve vault.
	TransferReserveIn(fromUser crypto.Address, amount uint64) error
	// TransferReserveOut moves amount R out of the reserve vault to the given
	// account.
	TransferReserveOut(to crypto.Address, amount uint64) error
	// BalanceOf returns the current S balance of a share account.
	BalanceOf(account crypto.Address) (uint64, error)
	// AllowanceOf returns the amount the delegate may currently burn from
	// account's S balance.
	AllowanceOf(account, delegate crypto.Address) (uint64, error)
}

type balanceKey struct {
	account string
}

type allowanceKey struct {
	account  string
	delegate string
}

// MemoryLedger is an in-memory TokenLedger used for tests and for operating
// the pool engine without a live chain connection. Allowances are the sole
// mechanism permitting BurnSharesFrom, matching the on-chain delegation
// model exactly: MemoryLedger never moves shares into escrow custody.
type MemoryLedger struct {
	poolAuthority crypto.Address
	shareBalances map[balanceKey]uint64
	reserveVault  crypto.Address
	reserveBalances map[balanceKey]uint64
	allowances    map[allowanceKey]uint64
}

// NewMemoryLedger constructs an empty ledger. poolAuthority is the principal
// whose delegated burns and reserve-vault transfers are authorized;
// reserveVault is the account TransferReserveIn/Out treat as the pool's
// reserve.
func NewMemoryLedger(poolAuthority, reserveVault crypto.Address) *MemoryLedger {
	return &MemoryLedger{
		poolAuthority:   poolAuthority,
		reserveVault:    reserveVault,
		shareBalances:   make(map[balanceKey]uint64),
		reserveBalances: make(map[balanceKey]uint64),
		allowances:      make(map[allowanceKey]uint64),
	}
}

// CreditReserve seeds an account's reserve balance, used by tests to
// establish starting state without going through a deposit.
func (l *MemoryLedger) CreditReserve(account crypto.Address, amount uint64) {
	key := balanceKey{account: string(account.Bytes())}
	l.reserveBalances[key] += amount
}

// CreditShares seeds an account's share balance directly, without going
// through MintShares, used by tests to simulate pre-existing holders.
func (l *MemoryLedger) CreditShares(account crypto.Address, amount uint64) {
	key := balanceKey{account: string(account.Bytes())}
	l.shareBalances[key] += amount
}

// Approve sets the allowance a delegate holds over account's share balance,
// mirroring the user-signed approval the chain would record.
func (l *MemoryLedger) Approve(account, delegate crypto.Address, amount uint64) {
	key := allowanceKey{account: string(account.Bytes()), delegate: string(delegate.Bytes())}
	l.allowances[key] = amount
}

func (l *MemoryLedger) MintShares(to crypto.Address, amount uint64) error {
	key := balanceKey{account: string(to.Bytes())}
	next, err := checkedAdd(l.shareBalances[key], amount)
	if err != nil {
		return err
	}
	l.shareBalances[key] = next
	return nil
}

func (l *MemoryLedger) BurnSharesFrom(owner crypto.Address, amount uint64) error {
	key := balanceKey{account: string(owner.Bytes())}
	bal := l.shareBalances[key]
	if bal < amount {
		return ErrInsufficientAccountBalance
	}
	allowKey := allowanceKey{account: string(owner.Bytes()), delegate: string(l.poolAuthority.Bytes())}
	allowed := l.allowances[allowKey]
	if allowed < amount {
		return ErrInsufficientApproval
	}
	l.shareBalances[key] = bal - amount
	l.allowances[allowKey] = allowed - amount
	return nil
}

func (l *MemoryLedger) TransferReserveIn(fromUser crypto.Address, amount uint64) error {
	fromKey := balanceKey{account: string(fromUser.Bytes())}
	if l.reserveBalances[fromKey] < amount {
		return ErrInsufficientAccountBalance
	}
	vaultKey := balanceKey{account: string(l.reserveVault.Bytes())}
	l.reserveBalances[fromKey] -= amount
	next, err := checkedAdd(l.reserveBalances[vaultKey], amount)
	if err != nil {
		return err
	}
	l.reserveBalances[vaultKey] = next
	return nil
}

func (l *MemoryLedger) TransferReserveOut(to crypto.Address, amount uint64) error {
	vaultKey := balanceKey{account: string(l.reserveVault.Bytes())}
	if l.reserveBalances[vaultKey] < amount {
		return ErrInsufficientReserves
	}
	toKey := balanceKey{account: string(to.Bytes())}
	l.reserveBalances[vaultKey] -= amount
	next, err := checkedAdd(l.reserveBalances[toKey], amount)
	if err != nil {
		return err
	}
	l.reserveBalances[toKey] = next
	return nil
}

func (l *MemoryLedger) BalanceOf(account crypto.Address) (uint64, error) {
	return l.shareBalances[balanceKey{account: string(account.Bytes())}], nil
}

func (l *MemoryLedger) AllowanceOf(account, delegate crypto.Address) (uint64, error) {
	return l.allowances[allowanceKey{account: string(account.Bytes()), delegate: string(delegate.Bytes())}], nil
}

// ReserveBalanceOf reports the reserve (R) balance of any account, including
// the vault itself; exposed for tests asserting invariant I1.
func (l *MemoryLedger) ReserveBalanceOf(account crypto.Address) uint64 {
	return l.reserveBalances[balanceKey{account: string(account.Bytes())}]
}
