package pool

// maxBps is 10_000 bps, i.e. 100%.
const maxBps = 10_000

// ApplyBps splits a gross amount into (net, fee) using floor division:
// fee = (amount * bps) / 10_000, net = amount - fee.
func ApplyBps(amount uint64, bps uint16) (net uint64, fee uint64, err error) {
	if bps > maxBps {
		return 0, 0, ErrInvalidFeeRate
	}
	if bps == 0 || amount == 0 {
		return amount, 0, nil
	}
	wide := uint64(bps) * amount
	if amount != 0 && wide/amount != uint64(bps) {
		// amount*bps overflowed uint64; widen via big math.
		fee, err = mulDivFloor(amount, uint64(bps), maxBps)
		if err != nil {
			return 0, 0, err
		}
	} else {
		fee = wide / maxBps
	}
	net, err = checkedSub(amount, fee)
	if err != nil {
		return 0, 0, err
	}
	return net, fee, nil
}
