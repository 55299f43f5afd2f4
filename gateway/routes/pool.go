package routes

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	nativecommon "iptpool/native/common"
	"iptpool/crypto"
	"iptpool/gateway/middleware"
	"iptpool/native/pool"
)

const poolRequestLimit = 1 << 20 // 1 MiB

// PoolEngine is the subset of *pool.Engine the gateway drives; declared as an
// interface so tests can substitute a stub without constructing a full
// Engine/PoolState/TokenLedger stack.
type PoolEngine interface {
	InitPool(signer crypto.Address, reserveAssetMint crypto.Address, cfg pool.Config) error
	InitPoolStep2(signer crypto.Address) error
	AdminDepositReserve(signer crypto.Address, amount uint64) error
	AdminWithdrawReserve(signer crypto.Address, amount uint64) error
	UpdateExchangeRate(signer crypto.Address, newRate uint64) error
	AdminUpdateConfig(signer crypto.Address, newConfig pool.Config) error
	UserDeposit(user crypto.Address, reserveIn, minSharesOut uint64) error
	UserWithdraw(user crypto.Address, sharesIn, minReserveOut uint64) error
	UserWithdrawalRequest(user crypto.Address, sharesIn, minReserveOut uint64) error
	CancelWithdrawalRequest(user crypto.Address) error
	BatchExecuteWithdraw(executor crypto.Address, amounts []uint64, accounts []pool.BatchSettlementAccounts) error
	FeeCollectorWithdraw(signer crypto.Address, amount uint64) error
}

// PoolSnapshot reports the read-only fields served by GET /v1/pool.
type PoolSnapshot interface {
	Pool() *pool.Pool
}

// poolRoutes mounts the twelve pool operations plus the read-only snapshot
// as in-process HTTP handlers over an Engine, grounded on the teacher's
// lendingRoutes pattern generalized from gRPC-proxy-backed handlers to
// direct Engine calls (the pool engine has no separate process to dial).
type poolRoutes struct {
	engine   PoolEngine
	snapshot PoolSnapshot
}

func newPoolRoutes(engine PoolEngine, snapshot PoolSnapshot) *poolRoutes {
	return &poolRoutes{engine: engine, snapshot: snapshot}
}

func (pr *poolRoutes) mount(r chi.Router) {
	r.Get("/pool", pr.getSnapshot)
	r.Post("/pool/init", pr.initPool)
	r.Post("/pool/init/step2", pr.initPoolStep2)
	r.Post("/pool/reserve/deposit", pr.adminDepositReserve)
	r.Post("/pool/reserve/withdraw", pr.adminWithdrawReserve)
	r.Post("/pool/rate", pr.updateExchangeRate)
	r.Post("/pool/config", pr.adminUpdateConfig)
	r.Post("/pool/deposit", pr.userDeposit)
	r.Post("/pool/withdraw", pr.userWithdraw)
	r.Post("/pool/withdraw/queue", pr.userWithdrawalRequest)
	r.Post("/pool/withdraw/cancel", pr.cancelWithdrawalRequest)
	r.Post("/pool/withdraw/batch", pr.batchExecuteWithdraw)
	r.Post("/pool/fees/withdraw", pr.feeCollectorWithdraw)
}

func (pr *poolRoutes) getSnapshot(w http.ResponseWriter, r *http.Request) {
	if pr.snapshot == nil {
		writeInternalError(w, errors.New("pool snapshot not configured"))
		return
	}
	writeJSON(w, http.StatusOK, pr.snapshot.Pool())
}

type initPoolRequest struct {
	Signer           crypto.Address `json:"signer"`
	ReserveAssetMint crypto.Address `json:"reserve_asset_mint"`
	Config           poolConfigDTO  `json:"config"`
}

func (pr *poolRoutes) initPool(w http.ResponseWriter, r *http.Request) {
	var req initPoolRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := pr.engine.InitPool(req.Signer, req.ReserveAssetMint, req.Config.toConfig()); err != nil {
		writePoolError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type signerOnlyRequest struct {
	Signer crypto.Address `json:"signer"`
}

func (pr *poolRoutes) initPoolStep2(w http.ResponseWriter, r *http.Request) {
	var req signerOnlyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := pr.engine.InitPoolStep2(req.Signer); err != nil {
		writePoolError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type signerAmountRequest struct {
	Signer crypto.Address `json:"signer"`
	Amount uint64         `json:"amount"`
}

func (pr *poolRoutes) adminDepositReserve(w http.ResponseWriter, r *http.Request) {
	var req signerAmountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := pr.engine.AdminDepositReserve(req.Signer, req.Amount); err != nil {
		writePoolError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (pr *poolRoutes) adminWithdrawReserve(w http.ResponseWriter, r *http.Request) {
	var req signerAmountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := pr.engine.AdminWithdrawReserve(req.Signer, req.Amount); err != nil {
		writePoolError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type updateExchangeRateRequest struct {
	Signer  crypto.Address `json:"signer"`
	NewRate uint64         `json:"new_rate"`
}

func (pr *poolRoutes) updateExchangeRate(w http.ResponseWriter, r *http.Request) {
	var req updateExchangeRateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := pr.engine.UpdateExchangeRate(req.Signer, req.NewRate); err != nil {
		writePoolError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type adminUpdateConfigRequest struct {
	Signer    crypto.Address `json:"signer"`
	NewConfig poolConfigDTO  `json:"new_config"`
}

func (pr *poolRoutes) adminUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var req adminUpdateConfigRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := pr.engine.AdminUpdateConfig(req.Signer, req.NewConfig.toConfig()); err != nil {
		writePoolError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (pr *poolRoutes) userDeposit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		User         crypto.Address `json:"user"`
		ReserveIn    uint64         `json:"reserve_in"`
		MinSharesOut uint64         `json:"min_shares_out"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := pr.engine.UserDeposit(req.User, req.ReserveIn, req.MinSharesOut); err != nil {
		writePoolError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type userWithdrawRequest struct {
	User          crypto.Address `json:"user"`
	SharesIn      uint64         `json:"shares_in"`
	MinReserveOut uint64         `json:"min_reserve_out"`
}

func (pr *poolRoutes) userWithdraw(w http.ResponseWriter, r *http.Request) {
	var req userWithdrawRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := pr.engine.UserWithdraw(req.User, req.SharesIn, req.MinReserveOut); err != nil {
		writePoolError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (pr *poolRoutes) userWithdrawalRequest(w http.ResponseWriter, r *http.Request) {
	var req userWithdrawRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := pr.engine.UserWithdrawalRequest(req.User, req.SharesIn, req.MinReserveOut); err != nil {
		writePoolError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (pr *poolRoutes) cancelWithdrawalRequest(w http.ResponseWriter, r *http.Request) {
	var req signerOnlyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := pr.engine.CancelWithdrawalRequest(req.Signer); err != nil {
		writePoolError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type batchExecuteWithdrawRequest struct {
	Executor crypto.Address                 `json:"executor"`
	Amounts  []uint64                       `json:"amounts"`
	Accounts []pool.BatchSettlementAccounts `json:"accounts"`
}

func (pr *poolRoutes) batchExecuteWithdraw(w http.ResponseWriter, r *http.Request) {
	var req batchExecuteWithdrawRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	executor := req.Executor
	if bound, ok := r.Context().Value(middleware.ContextKeyExecutor).(crypto.Address); ok {
		executor = bound
	}
	if err := pr.engine.BatchExecuteWithdraw(executor, req.Amounts, req.Accounts); err != nil {
		writePoolError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (pr *poolRoutes) feeCollectorWithdraw(w http.ResponseWriter, r *http.Request) {
	var req signerAmountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := pr.engine.FeeCollectorWithdraw(req.Signer, req.Amount); err != nil {
		writePoolError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// poolConfigDTO is the wire shape of pool.Config: Config's authority fields
// carry `toml:"-"` tags but still need a JSON form for the gateway's
// init/update-config requests.
type poolConfigDTO struct {
	AdminAuthority      crypto.Address `json:"admin_authority"`
	OracleAuthority     crypto.Address `json:"oracle_authority"`
	FeeCollector        crypto.Address `json:"fee_collector"`
	DepositFeeBps       uint16         `json:"deposit_fee_bps"`
	WithdrawalFeeBps    uint16         `json:"withdrawal_fee_bps"`
	ManagementFeeBps    uint16         `json:"management_fee_bps"`
	InitialExchangeRate uint64         `json:"initial_exchange_rate"`
	MaxTotalSupply      uint64         `json:"max_total_supply"`
	MaxQueueSize        uint32         `json:"max_queue_size"`
}

func (dto poolConfigDTO) toConfig() pool.Config {
	return pool.Config{
		AdminAuthority:      dto.AdminAuthority,
		OracleAuthority:     dto.OracleAuthority,
		FeeCollector:        dto.FeeCollector,
		DepositFeeBps:       dto.DepositFeeBps,
		WithdrawalFeeBps:    dto.WithdrawalFeeBps,
		ManagementFeeBps:    dto.ManagementFeeBps,
		InitialExchangeRate: dto.InitialExchangeRate,
		MaxTotalSupply:      dto.MaxTotalSupply,
		MaxQueueSize:        dto.MaxQueueSize,
	}
}

func decodeJSON(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return errors.New("missing request body")
	}
	defer r.Body.Close()
	reader := io.LimitReader(r.Body, poolRequestLimit)
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return errors.New("request body is empty")
	}
	return json.Unmarshal(data, v)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	payload, err := json.Marshal(v)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}

// writePoolError translates a pool.Error's class into the HTTP status the
// gateway's error-handling design assigns it.
func writePoolError(w http.ResponseWriter, err error) {
	if errors.Is(err, nativecommon.ErrModulePaused) {
		writeJSONError(w, http.StatusServiceUnavailable, err)
		return
	}
	if errors.Is(err, nativecommon.ErrQuotaRequestsExceeded) ||
		errors.Is(err, nativecommon.ErrQuotaReserveCapExceeded) ||
		errors.Is(err, nativecommon.ErrQuotaCounterOverflow) {
		writeJSONError(w, http.StatusTooManyRequests, err)
		return
	}
	var perr *pool.Error
	if errors.As(err, &perr) {
		switch perr.Kind {
		case pool.KindAuthority:
			writeJSONError(w, http.StatusForbidden, err)
		case pool.KindArgument:
			writeJSONError(w, http.StatusBadRequest, err)
		case pool.KindFeasibility, pool.KindQueue:
			writeJSONError(w, http.StatusConflict, err)
		case pool.KindInternal:
			slog.Error("pool engine internal error", "error", err)
			writeInternalError(w, err)
		default:
			writeInternalError(w, err)
		}
		return
	}
	writeInternalError(w, err)
}
