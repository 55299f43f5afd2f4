package common

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrQuotaRequestsExceeded   = errors.New("quota requests exceeded")
	ErrQuotaReserveCapExceeded = errors.New("quota reserve cap exceeded")
	ErrQuotaCounterOverflow    = errors.New("quota counter overflow")
)

// Store provides persistence for quota counters.
type Store interface {
	Load(module string, epoch uint64, addr []byte) (QuotaNow, bool, error)
	Save(module string, epoch uint64, addr []byte, counters QuotaNow) error
}

// QuotaNow captures the current quota usage counters for an address.
type QuotaNow struct {
	ReqCount     uint32
	ReserveMoved uint64
	EpochID      uint64
}

// Quota defines the limits enforced for a module interaction per address:
// the number of calls and the reserve-asset volume moved per epoch.
type Quota struct {
	MaxRequestsPerMin  uint32
	MaxReservePerEpoch uint64
	EpochSeconds       uint32
}

// CheckQuota verifies whether the additional request and reserve-volume usage
// fit within the configured quota. The returned QuotaNow reflects the updated
// counters when the quota is not exceeded.
func CheckQuota(q Quota, nowEpoch uint64, prev QuotaNow, addReq uint32, addReserve uint64) (QuotaNow, error) {
	next := prev
	if prev.EpochID != nowEpoch {
		next = QuotaNow{EpochID: nowEpoch}
	}

	if addReq > 0 {
		if next.ReqCount > math.MaxUint32-addReq {
			return prev, ErrQuotaCounterOverflow
		}
		next.ReqCount += addReq
	}
	if q.MaxRequestsPerMin > 0 && next.ReqCount > q.MaxRequestsPerMin {
		return prev, ErrQuotaRequestsExceeded
	}

	if addReserve > 0 {
		if next.ReserveMoved > math.MaxUint64-addReserve {
			return prev, ErrQuotaCounterOverflow
		}
		next.ReserveMoved += addReserve
	}
	if q.MaxReservePerEpoch > 0 && next.ReserveMoved > q.MaxReservePerEpoch {
		return prev, ErrQuotaReserveCapExceeded
	}

	return next, nil
}

// Apply loads the persisted counters for the provided address and updates them
// with the supplied increments when within quota limits. The updated counters
// are stored back to the underlying persistence layer. When the quota is
// exceeded the original counters are returned alongside the error.
func Apply(store Store, module string, nowEpoch uint64, addr []byte, q Quota, addReq uint32, addReserve uint64) (QuotaNow, error) {
	if store == nil {
		return QuotaNow{}, fmt.Errorf("quota: store unavailable")
	}
	if len(addr) == 0 {
		return QuotaNow{}, fmt.Errorf("quota: address required")
	}
	prev, _, err := store.Load(module, nowEpoch, addr)
	if err != nil {
		return QuotaNow{}, err
	}
	next, err := CheckQuota(q, nowEpoch, prev, addReq, addReserve)
	if err != nil {
		return prev, err
	}
	if err := store.Save(module, nowEpoch, addr, next); err != nil {
		return QuotaNow{}, err
	}
	return next, nil
}
