package router

import (
	"context"
	"net/http"
	"time"

	"github.com/inaiurai/settlement/internal/auth"
	"github.com/inaiurai/settlement/internal/authz"
	"github.com/inaiurai/settlement/internal/dashboard"
	"github.com/inaiurai/settlement/internal/escrow"
	"github.com/inaiurai/settlement/internal/httpapi"
	"github.com/inaiurai/settlement/internal/ledger"
	"github.com/inaiurai/settlement/internal/middleware"
	"github.com/inaiurai/settlement/internal/observability"
	"github.com/inaiurai/settlement/internal/reputation"
	"github.com/inaiurai/settlement/internal/stake"
)

const base = "/api/v1"

type Handlers struct {
	Auth       *auth.Handler
	Stake      *stake.Handler
	Reputation *reputation.Handler
	Escrow     *escrow.Handler
	Ledger     *ledger.Handler
	Authz      *authz.Handler
	Dashboard  *dashboard.Handler
}

type Options struct {
	Tokens  middleware.TokenValidator
	Limiter *middleware.RateLimiter
	// Health reports backend readiness; nil means always ready.
	Health func(ctx context.Context) error
}

// New returns an http.Handler serving the API under /api/v1 plus /healthz and /metrics.
// Chain: RequestID -> Instrument -> [BearerAuth] -> RateLimit -> handler.
func New(h Handlers, opts Options) http.Handler {
	mux := http.NewServeMux()
	public := chain(opts.Limiter)
	protected := chain(opts.Limiter, middleware.BearerAuth(opts.Tokens))

	// Auth
	mux.Handle("POST "+base+"/auth/accounts", public(h.Auth.CreateAccount))
	mux.Handle("POST "+base+"/auth/login", public(h.Auth.Login))

	mux.Handle("GET "+base+"/me", protected(h.Dashboard.GetMe))

	// Identities (stake ledger)
	mux.Handle("POST "+base+"/identities", protected(h.Stake.Register))
	mux.Handle("GET "+base+"/identities", public(h.Stake.List))
	mux.Handle("GET "+base+"/identities/{address}", public(h.Stake.Get))
	mux.Handle("PATCH "+base+"/identities/me", protected(h.Stake.UpdateProfile))
	mux.Handle("POST "+base+"/identities/me/stake", protected(h.Stake.Deposit))
	mux.Handle("POST "+base+"/identities/me/withdraw", protected(h.Stake.Withdraw))
	mux.Handle("POST "+base+"/identities/me/deactivate", protected(h.Stake.Deactivate))

	// Reputation
	mux.Handle("GET "+base+"/reputation/{address}", public(h.Reputation.Get))

	// Jobs (escrow)
	mux.Handle("POST "+base+"/jobs", protected(h.Escrow.CreateJob))
	mux.Handle("GET "+base+"/jobs", public(h.Escrow.ListJobs))
	mux.Handle("GET "+base+"/jobs/{id}", public(h.Escrow.GetJob))
	mux.Handle("POST "+base+"/jobs/{id}/accept", protected(h.Escrow.Accept))
	mux.Handle("POST "+base+"/jobs/{id}/submit", protected(h.Escrow.Submit))
	mux.Handle("POST "+base+"/jobs/{id}/approve", protected(h.Escrow.Approve))
	mux.Handle("POST "+base+"/jobs/{id}/reject", protected(h.Escrow.Reject))
	mux.Handle("POST "+base+"/jobs/{id}/cancel", protected(h.Escrow.Cancel))
	mux.Handle("GET "+base+"/escrow", public(h.Escrow.Stats))

	// Funds
	mux.Handle("GET "+base+"/balances/{address}", public(h.Ledger.GetBalance))

	// Admin (owner checks happen in the core)
	mux.Handle("POST "+base+"/admin/mint", protected(h.Ledger.Mint))
	mux.Handle("POST "+base+"/admin/fee-recipient", protected(h.Escrow.SetFeeRecipient))
	mux.Handle("POST "+base+"/admin/authorizations", protected(h.Authz.Grant))
	mux.Handle("DELETE "+base+"/admin/authorizations", protected(h.Authz.Revoke))
	mux.Handle("GET "+base+"/admin/forfeited", public(h.Stake.Forfeited))
	mux.Handle("POST "+base+"/admin/forfeited/sweep", protected(h.Stake.Sweep))

	mux.HandleFunc("GET /healthz", healthz(opts.Health))
	mux.Handle("GET /metrics", observability.Handler())

	return middleware.RequestID(observability.Instrument(mux))
}

// chain applies mws outermost-last: the final middleware runs first.
func chain(limiter *middleware.RateLimiter, mws ...func(http.Handler) http.Handler) func(http.HandlerFunc) http.Handler {
	return func(fn http.HandlerFunc) http.Handler {
		var h http.Handler = fn
		if limiter != nil {
			h = limiter.Middleware(h)
		}
		for _, mw := range mws {
			h = mw(h)
		}
		return h
	}
}

func healthz(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				httpapi.WriteMessage(w, r, http.StatusServiceUnavailable, "unavailable")
				return
			}
		}
		httpapi.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
