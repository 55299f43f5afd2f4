package middleware

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"

	"iptpool/crypto"
	gatewayauth "iptpool/gateway/auth"
)

// ExecutorAuthConfig maps HMAC API key identifiers (gatewayauth.Principal.APIKey)
// to the pool executor address each key is allowed to act as.
type ExecutorAuthConfig struct {
	Enabled   bool
	Executors map[string]crypto.Address
}

const maxExecutorBody = gatewayauth.MaxBodyForSignature

type executorContextKey string

// ContextKeyExecutor carries the authenticated executor address.
const ContextKeyExecutor executorContextKey = "gateway.executor"

// ExecutorAuthenticator verifies the HMAC+nonce signature on batch settlement
// requests and confirms the caller's API key is bound to an executor
// address, grounded on gateway/middleware/auth.go's Authenticator.Middleware
// shape but backed by gateway/auth's HMAC-SHA256+nonce scheme instead of JWT.
type ExecutorAuthenticator struct {
	cfg  ExecutorAuthConfig
	auth *gatewayauth.Authenticator
}

func NewExecutorAuthenticator(cfg ExecutorAuthConfig, auth *gatewayauth.Authenticator) *ExecutorAuthenticator {
	return &ExecutorAuthenticator{cfg: cfg, auth: auth}
}

func (ea *ExecutorAuthenticator) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !ea.cfg.Enabled {
				next.ServeHTTP(w, r)
				return
			}
			if ea.auth == nil {
				http.Error(w, "executor authentication not configured", http.StatusInternalServerError)
				return
			}
			body, err := io.ReadAll(io.LimitReader(r.Body, int64(maxExecutorBody)+1))
			if err != nil {
				http.Error(w, "failed to read request body", http.StatusBadRequest)
				return
			}
			r.Body.Close()
			r.Body = io.NopCloser(bytes.NewReader(body))

			principal, err := ea.auth.Authenticate(r, body)
			if err != nil {
				http.Error(w, "executor authentication failed: "+err.Error(), http.StatusUnauthorized)
				return
			}
			executor, ok := ea.cfg.Executors[strings.TrimSpace(principal.APIKey)]
			if !ok {
				http.Error(w, "api key not bound to an executor address", http.StatusForbidden)
				return
			}
			ctx := context.WithValue(r.Context(), ContextKeyExecutor, executor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
