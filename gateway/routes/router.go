package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"iptpool/gateway/middleware"
)

// Config wires the gateway router to the in-process pool engine and its
// middleware chain. There is no upstream service to proxy to: the pool
// engine runs in the same process as the gateway.
type Config struct {
	Engine        PoolEngine
	Snapshot      PoolSnapshot
	Authenticator *middleware.Authenticator
	RateLimiter   *middleware.RateLimiter
	Observability *middleware.Observability
	CORS          middleware.CORSConfig
	// ExecutorAuth gates BatchExecuteWithdraw behind the HMAC+nonce
	// executor scheme (gateway/auth) instead of the JWT Authenticator,
	// since any signer bound to an executor address may call it.
	ExecutorAuth *middleware.ExecutorAuthenticator

	// RequireAuth gates the admin/oracle/fee_collector/user routes behind
	// the Authenticator; BatchExecuteWithdraw is gated by ExecutorAuth
	// instead.
	RequireAuth bool
	// AdminScopes/OracleScopes/FeeCollectorScopes/UserScopes name the JWT
	// scopes required for each route group.
	AdminScopes        []string
	OracleScopes       []string
	FeeCollectorScopes []string
	UserScopes         []string
}

func New(cfg Config) (http.Handler, error) {
	r := chi.NewRouter()
	if cfg.CORS.AllowedOrigins != nil || cfg.CORS.AllowedMethods != nil {
		r.Use(middleware.CORS(cfg.CORS))
	} else {
		r.Use(middleware.CORS(middleware.CORSConfig{}))
	}

	obs := cfg.Observability
	if obs != nil {
		r.Use(obs.Middleware("root"))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	pr := newPoolRoutes(cfg.Engine, cfg.Snapshot)

	r.Route("/v1", func(sr chi.Router) {
		if cfg.RateLimiter != nil {
			sr.Use(cfg.RateLimiter.Middleware("pool"))
		}
		if obs != nil {
			sr.Use(obs.Middleware("pool"))
		}

		sr.Get("/pool", pr.getSnapshot)

		sr.Group(func(ar chi.Router) {
			if cfg.Authenticator != nil && cfg.RequireAuth {
				ar.Use(cfg.Authenticator.Middleware(cfg.AdminScopes...))
			}
			ar.Post("/pool/init", pr.initPool)
			ar.Post("/pool/init/step2", pr.initPoolStep2)
			ar.Post("/pool/reserve/deposit", pr.adminDepositReserve)
			ar.Post("/pool/reserve/withdraw", pr.adminWithdrawReserve)
			ar.Post("/pool/config", pr.adminUpdateConfig)
		})

		sr.Group(func(or chi.Router) {
			if cfg.Authenticator != nil && cfg.RequireAuth {
				or.Use(cfg.Authenticator.Middleware(cfg.OracleScopes...))
			}
			or.Post("/pool/rate", pr.updateExchangeRate)
		})

		sr.Group(func(ur chi.Router) {
			if cfg.Authenticator != nil && cfg.RequireAuth {
				ur.Use(cfg.Authenticator.Middleware(cfg.UserScopes...))
			}
			ur.Post("/pool/deposit", pr.userDeposit)
			ur.Post("/pool/withdraw", pr.userWithdraw)
			ur.Post("/pool/withdraw/queue", pr.userWithdrawalRequest)
			ur.Post("/pool/withdraw/cancel", pr.cancelWithdrawalRequest)
		})

		sr.Group(func(fr chi.Router) {
			if cfg.Authenticator != nil && cfg.RequireAuth {
				fr.Use(cfg.Authenticator.Middleware(cfg.FeeCollectorScopes...))
			}
			fr.Post("/pool/fees/withdraw", pr.feeCollectorWithdraw)
		})

		sr.Group(func(br chi.Router) {
			if cfg.ExecutorAuth != nil {
				br.Use(cfg.ExecutorAuth.Middleware())
			}
			br.Post("/pool/withdraw/batch", pr.batchExecuteWithdraw)
		})
	})

	if obs != nil {
		r.Handle("/metrics", obs.MetricsHandler())
	}

	return r, nil
}
