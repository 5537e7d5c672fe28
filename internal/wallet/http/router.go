package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/xian-network/go-uwp/internal/wallet/chain"
	"github.com/xian-network/go-uwp/internal/wallet/obs"
	"github.com/xian-network/go-uwp/internal/wallet/push"
	"github.com/xian-network/go-uwp/internal/wallet/service"
	"github.com/xian-network/go-uwp/pkg/cachex"
	"github.com/xian-network/go-uwp/pkg/httpx"
	"github.com/xian-network/go-uwp/pkg/protocol"
	"github.com/xian-network/go-uwp/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	logger *slog.Logger

	Wallet   *chain.Wallet
	Chain    chain.Client
	Registry *service.RequestRegistry
	Sessions *service.SessionStore
	Limiter  *service.UnlockLimiter
	Bus      *push.Bus
	Cache    *cachex.Cache
	CacheTTL time.Duration
}

func NewRouter(logger *slog.Logger, cors httpx.CORSConfig) *Router {
	r := &Router{
		Mux:      http.NewServeMux(),
		logger:   logger,
		CacheTTL: protocol.DefaultCacheTTL,
	}

	// Request logging wraps everything; CORS sits inside so preflight
	// responses are measured too.
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		obs.Instrument,
		cors.Middleware(),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerWallet()
	r.registerAuth()
	r.registerChain()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerWallet() {
	// GET /wallet/status - the discovery probe; DApps poll it in a tight
	// loop while waiting for the wallet to come up.
	r.Mux.Handle("GET "+protocol.EndpointWalletStatus,
		httpx.Chain(&StatusHandler{Wallet: r.Wallet},
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)

	// GET /wallet/info - scoped call
	r.Mux.Handle("GET "+protocol.EndpointWalletInfo,
		httpx.Chain(&InfoHandler{Wallet: r.Wallet},
			Authn(r.Sessions, protocol.PermissionWalletInfo),
			httpx.RateLimitBySession(httpx.LenientLimit),
		),
	)

	// POST /wallet/unlock - credential attempts; the strict bucket sits
	// in front of the per-source backoff limiter.
	r.Mux.Handle("POST "+protocol.EndpointWalletUnlock,
		httpx.Chain(&UnlockHandler{Wallet: r.Wallet, Limiter: r.Limiter, Bus: r.Bus},
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// POST /wallet/lock - any valid session may re-lock
	r.Mux.Handle("POST "+protocol.EndpointWalletLock,
		httpx.Chain(&LockHandler{Wallet: r.Wallet, Bus: r.Bus},
			Authn(r.Sessions, ""),
			httpx.RateLimitBySession(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerAuth() {
	// POST /auth/request - unauthenticated by design; capacity bound and
	// rate limit keep it from being flooded.
	r.Mux.Handle("POST "+protocol.EndpointAuthRequest,
		httpx.Chain(&AuthRequestHandler{Registry: r.Registry},
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	// GET /auth/status/{request_id} - polled while awaiting a decision
	r.Mux.Handle("GET "+protocol.EndpointAuthStatus+"{request_id}",
		httpx.Chain(&AuthStatusHandler{Registry: r.Registry},
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)

	// Wallet-local decision endpoints. The listener binds to loopback;
	// anything that can reach it is trusted as the wallet's own UI.
	r.Mux.Handle("POST "+protocol.EndpointAuthApprove+"{request_id}",
		httpx.Chain(&ApproveHandler{Registry: r.Registry},
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("POST "+protocol.EndpointAuthDeny+"{request_id}",
		httpx.Chain(&DenyHandler{Registry: r.Registry},
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET "+protocol.EndpointAuthPending,
		httpx.Chain(&PendingHandler{Registry: r.Registry},
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)

	// POST /auth/revoke - a DApp ending its own session
	r.Mux.Handle("POST "+protocol.EndpointAuthRevoke,
		httpx.Chain(&RevokeHandler{Sessions: r.Sessions},
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerChain() {
	balanceHandler := &BalanceHandler{
		Wallet:   r.Wallet,
		Chain:    r.Chain,
		Cache:    r.Cache,
		CacheTTL: r.CacheTTL,
	}
	r.Mux.Handle("GET "+protocol.EndpointBalance+"{contract}",
		httpx.Chain(balanceHandler,
			Authn(r.Sessions, protocol.PermissionBalance),
			httpx.RateLimitBySession(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET "+protocol.EndpointBalance+"{contract}/{spender}",
		httpx.Chain(balanceHandler,
			Authn(r.Sessions, protocol.PermissionBalance),
			httpx.RateLimitBySession(httpx.LenientLimit),
		),
	)

	r.Mux.Handle("POST "+protocol.EndpointTransaction,
		httpx.Chain(&TransactionHandler{Wallet: r.Wallet, Chain: r.Chain, Cache: r.Cache},
			Authn(r.Sessions, protocol.PermissionTransactions),
			httpx.RateLimitBySession(httpx.ModerateLimit),
		),
	)

	r.Mux.Handle("POST "+protocol.EndpointSign,
		httpx.Chain(&SignHandler{Wallet: r.Wallet},
			Authn(r.Sessions, protocol.PermissionSignMessage),
			httpx.RateLimitBySession(httpx.ModerateLimit),
		),
	)

	r.Mux.Handle("POST "+protocol.EndpointTokensAdd,
		httpx.Chain(&TokensAddHandler{Wallet: r.Wallet},
			Authn(r.Sessions, protocol.PermissionAddToken),
			httpx.RateLimitBySession(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("GET "+protocol.EndpointTokens,
		httpx.Chain(&TokensListHandler{Wallet: r.Wallet},
			Authn(r.Sessions, protocol.PermissionWalletInfo),
			httpx.RateLimitBySession(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET "+protocol.EndpointWebSocket, &WSHandler{Bus: r.Bus})
	r.Mux.Handle("GET /metrics", obs.Handler())
}
