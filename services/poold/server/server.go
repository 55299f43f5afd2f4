// Package server wires the pool engine, its storage/quota/pause
// dependencies, and the HTTP gateway into one http.Handler, grounded on
// services/lendingd's config-to-service wiring generalized from a gRPC
// service constructor to an in-process engine plus chi router.
package server

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	gopkgconfig "iptpool/config"
	"iptpool/crypto"
	gatewayauth "iptpool/gateway/auth"
	"iptpool/gateway/middleware"
	"iptpool/gateway/routes"
	nativecommon "iptpool/native/common"
	"iptpool/native/pool"
	"iptpool/observability"
	"iptpool/services/poold/config"
	"iptpool/storage"

	"github.com/syndtr/goleveldb/leveldb"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Server bundles the constructed engine with the resources main needs to
// close on shutdown.
type Server struct {
	Handler http.Handler
	Engine  *pool.Engine

	db          storage.Database
	noncePersist *gatewayauth.LevelDBNoncePersistence
}

// Close releases the LevelDB handles opened by New.
func (s *Server) Close() error {
	if s == nil {
		return nil
	}
	if s.noncePersist != nil {
		_ = s.noncePersist.Close()
	}
	if s.db != nil {
		s.db.Close()
	}
	return nil
}

// New constructs the pool engine and HTTP gateway described by cfg.
func New(cfg config.Config, logger *log.Logger) (*Server, error) {
	if logger == nil {
		logger = log.Default()
	}

	engineCfg, err := gopkgconfig.Load(cfg.EngineConfig)
	if err != nil {
		return nil, fmt.Errorf("load engine config: %w", err)
	}
	reserveAssetMint, err := engineCfg.ReserveAssetMintAddress()
	if err != nil {
		return nil, fmt.Errorf("decode reserve asset mint: %w", err)
	}
	poolAuthority := crypto.DerivePoolAddress(reserveAssetMint)
	reserveVault := crypto.DeriveReserveVaultAddress(poolAuthority)

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open pool data dir: %w", err)
	}

	store := pool.NewStore(db)
	initial := &pool.Pool{ReserveAssetMint: reserveAssetMint}
	loaded, err := store.Load(poolAuthority)
	switch {
	case err == nil:
		initial = loaded
	case !errors.Is(err, leveldb.ErrNotFound):
		db.Close()
		return nil, fmt.Errorf("load pool record: %w", err)
	}
	state := pool.NewPoolState(initial)

	engine := pool.NewEngine(state, pool.NewMemoryLedger(poolAuthority, reserveVault))
	engine.SetStore(store)
	engine.SetPauses(nativecommon.NewMemPauseView())
	epochSeconds := uint64(cfg.ExecutorAuth.EpochSeconds)
	engine.SetExecutorQuota(nativecommon.NewMemStore(), nativecommon.Quota{
		MaxRequestsPerMin:  cfg.ExecutorAuth.MaxRequestsPerEpoch,
		MaxReservePerEpoch: cfg.ExecutorAuth.MaxReserveVolumePerEpoch,
		EpochSeconds:       cfg.ExecutorAuth.EpochSeconds,
	}, func() uint64 { return uint64(time.Now().Unix()) / epochSeconds })
	engine.SetMetrics(observability.Pool())

	if cfg.EventLog.Path != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.EventLog.Path,
			MaxSize:    cfg.EventLog.MaxSizeMB,
			MaxBackups: cfg.EventLog.MaxBackups,
			MaxAge:     cfg.EventLog.MaxAgeDays,
			Compress:   cfg.EventLog.Compress,
		}
		engine.SetEmitter(pool.NewJSONFileEmitter(rotator))
	}

	srv := &Server{Engine: engine, db: db}

	authenticator := middleware.NewAuthenticator(middleware.AuthConfig{
		Enabled:    cfg.Auth.Enabled,
		HMACSecret: cfg.Auth.HMACSecret,
		Issuer:     cfg.Auth.Issuer,
		Audience:   cfg.Auth.Audience,
		ScopeClaim: cfg.Auth.ScopeClaim,
		ClockSkew:  cfg.Auth.ClockSkew(),
	}, logger)

	var executorAuth *middleware.ExecutorAuthenticator
	if cfg.ExecutorAuth.Enabled {
		persist, err := gatewayauth.NewLevelDBNoncePersistence(cfg.DataDir + "/executor-nonces")
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("open executor nonce store: %w", err)
		}
		srv.noncePersist = persist

		hmacAuth := gatewayauth.NewAuthenticator(
			cfg.ExecutorAuth.Secrets,
			cfg.ExecutorAuth.TimestampSkew(),
			cfg.ExecutorAuth.NonceWindow(),
			cfg.ExecutorAuth.NonceCapacity,
			nil,
			persist,
		)
		executors, err := decodeExecutorAddresses(cfg.ExecutorAuth.Executors)
		if err != nil {
			return nil, fmt.Errorf("decode executor addresses: %w", err)
		}
		executorAuth = middleware.NewExecutorAuthenticator(middleware.ExecutorAuthConfig{
			Enabled:   true,
			Executors: executors,
		}, hmacAuth)
	}

	rateLimiter := middleware.NewRateLimiter(map[string]middleware.RateLimit{
		"pool": {
			RatePerSecond: cfg.RateLimit.RatePerSecond,
			Burst:         cfg.RateLimit.Burst,
		},
	}, logger)

	obs := middleware.NewObservability(middleware.ObservabilityConfig{
		ServiceName:   cfg.Observability.ServiceName,
		MetricsPrefix: cfg.Observability.MetricsPrefix,
		LogRequests:   cfg.Observability.LogRequests,
		Enabled:       cfg.Observability.Enabled,
	}, logger)

	handler, err := routes.New(routes.Config{
		Engine:        engine,
		Snapshot:      engine,
		Authenticator: authenticator,
		RateLimiter:   rateLimiter,
		Observability: obs,
		ExecutorAuth:  executorAuth,
		CORS: middleware.CORSConfig{
			AllowedOrigins:   cfg.CORS.AllowedOrigins,
			AllowedMethods:   cfg.CORS.AllowedMethods,
			AllowedHeaders:   cfg.CORS.AllowedHeaders,
			AllowCredentials: cfg.CORS.AllowCredentials,
		},
		RequireAuth:        cfg.Auth.Enabled,
		AdminScopes:        cfg.Auth.AdminScopes,
		OracleScopes:       cfg.Auth.OracleScopes,
		FeeCollectorScopes: cfg.Auth.FeeCollectorScopes,
		UserScopes:         cfg.Auth.UserScopes,
	})
	if err != nil {
		return nil, fmt.Errorf("build router: %w", err)
	}
	srv.Handler = handler
	return srv, nil
}

// decodeExecutorAddresses parses the API-key-to-bech32-address bindings
// configured for the executor HMAC authenticator.
func decodeExecutorAddresses(raw map[string]string) (map[string]crypto.Address, error) {
	out := make(map[string]crypto.Address, len(raw))
	for apiKey, addr := range raw {
		decoded, err := crypto.DecodeAddress(addr)
		if err != nil {
			return nil, fmt.Errorf("executor %q: %w", apiKey, err)
		}
		out[apiKey] = decoded
	}
	return out, nil
}
