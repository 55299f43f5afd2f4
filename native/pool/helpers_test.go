package pool

import "iptpool/crypto"

// makeAddress builds a deterministic test address, distinct per suffix byte,
// following the teacher's makeAddress helper pattern.
func makeAddress(suffix byte) crypto.Address {
	raw := make([]byte, 20)
	raw[len(raw)-1] = suffix
	return crypto.MustNewAddress(crypto.PoolPrefix, raw)
}

func testConfig(admin, oracle, feeCollector crypto.Address, depBps, wdBps uint16, rate uint64, maxSupply uint64, queueSize uint32) Config {
	return Config{
		AdminAuthority:      admin,
		OracleAuthority:     oracle,
		FeeCollector:        feeCollector,
		DepositFeeBps:       depBps,
		WithdrawalFeeBps:    wdBps,
		InitialExchangeRate: rate,
		MaxTotalSupply:      maxSupply,
		MaxQueueSize:        queueSize,
	}
}
