package pool

import "iptpool/crypto"

// Role names the authorized principal class for one operation.
type Role int

const (
	RoleAdmin Role = iota
	RoleOracle
	RoleFeeCollector
	RoleUser
	RoleExecutor
)

// requireRole compares signer against the config field governing the role,
// failing with the matching UnauthorizedX error. RoleUser and RoleExecutor
// are checked by the caller instead: a user operation is authorized against
// the principal named in the request itself, and an executor may be any
// signer.
func requireRole(cfg Config, role Role, signer crypto.Address) error {
	switch role {
	case RoleAdmin:
		if !addrEqual(signer, cfg.AdminAuthority) {
			return ErrUnauthorizedAdmin
		}
	case RoleOracle:
		if !addrEqual(signer, cfg.OracleAuthority) {
			return ErrUnauthorizedOracle
		}
	case RoleFeeCollector:
		if !addrEqual(signer, cfg.FeeCollector) {
			return ErrUnauthorizedFeeCollector
		}
	}
	return nil
}
