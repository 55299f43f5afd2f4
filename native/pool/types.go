package pool

import "iptpool/crypto"

// Config holds the immutable-unless-replaced-by-admin parameters of a Pool.
type Config struct {
	AdminAuthority   crypto.Address `toml:"-"`
	OracleAuthority  crypto.Address `toml:"-"`
	FeeCollector     crypto.Address `toml:"-"`

	DepositFeeBps     uint16 `toml:"deposit_fee_bps"`
	WithdrawalFeeBps  uint16 `toml:"withdrawal_fee_bps"`
	ManagementFeeBps  uint16 `toml:"management_fee_bps"`

	InitialExchangeRate uint64 `toml:"initial_exchange_rate"`
	MaxTotalSupply       uint64 `toml:"max_total_supply"`
	MaxQueueSize         uint32 `toml:"max_queue_size"`
}

// Clone returns a copy of the configuration. The Address fields share their
// underlying bytes with the original.
func (c Config) Clone() Config {
	return c
}

// validate checks the fields that are common to both InitPool and
// AdminUpdateConfig, per SPEC_FULL.md §4.7(a)/(f).
func (c Config) validate() error {
	if c.AdminAuthority.IsNull() || c.OracleAuthority.IsNull() || c.FeeCollector.IsNull() {
		return ErrInvalidAuthority
	}
	if c.DepositFeeBps > maxBps || c.WithdrawalFeeBps > maxBps || c.ManagementFeeBps > maxBps {
		return ErrInvalidFeeRate
	}
	if c.InitialExchangeRate == 0 {
		return ErrInvalidExchangeRate
	}
	if c.MaxQueueSize < 1 || c.MaxQueueSize > 20 {
		return ErrInvalidConfigParameter
	}
	return nil
}

// PendingWithdrawal is a single entry in the pool's bounded withdrawal queue.
type PendingWithdrawal struct {
	User          crypto.Address
	ShareAmount   uint64
	MinReserveOut uint64
	EnqueuedAt    uint64
}

// Pool is the authoritative, mutable record for one pool instance.
type Pool struct {
	Config Config

	ReserveAssetMint crypto.Address
	ShareMint        crypto.Address
	ReserveVault     crypto.Address

	CurrentExchangeRate  uint64
	TotalShareSupply     uint64
	TotalReserveHoldings uint64
	TotalAccumulatedFees uint64

	Queue Queue
}

// VaultBalance returns the expected reserve_vault balance per invariant I1.
func (p *Pool) VaultBalance() (uint64, error) {
	return checkedAdd(p.TotalReserveHoldings, p.TotalAccumulatedFees)
}

// PoolAuthority returns the deterministic, program-owned principal that
// signs every pool-originated token movement: it alone may mint S, burn
// delegated S, and transfer out of reserve_vault. It is the pool record's
// own derived address, not the reserve vault.
func (p *Pool) PoolAuthority() crypto.Address {
	return crypto.DerivePoolAddress(p.ReserveAssetMint)
}
